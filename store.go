/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

type StoreState int32

const (
	StoreActive StoreState = iota
	StoreInvalidated
	StoreDestroying
	StoreInactive
)

func (t StoreState) String() string {
	switch t {
	case StoreActive:
		return "StoreActive"
	case StoreInvalidated:
		return "StoreInvalidated"
	case StoreDestroying:
		return "StoreDestroying"
	case StoreInactive:
		return "StoreInactive"
	default:
		return "StoreUnknown"
	}
}

/**
Store holds contextual instances of one scope activation, keyed by bean id in creation order.
*/
type Store struct {

	/**
	Scope kind of the activation
	*/
	kind ScopeKind

	/**
	Activation key, for example request id, session id or conversation id
	*/
	key string

	/**
	Nil for stores touched by a single unit of work
	*/
	mu *sync.Mutex

	state int32

	instances map[string]*Instance
	order     []*Instance
}

func newStore(kind ScopeKind, key string, synchronized bool) *Store {
	t := &Store{
		kind:      kind,
		key:       key,
		instances: make(map[string]*Instance),
	}
	if synchronized {
		t.mu = new(sync.Mutex)
	}
	return t
}

func (t *Store) lock() {
	if t.mu != nil {
		t.mu.Lock()
	}
}

func (t *Store) unlock() {
	if t.mu != nil {
		t.mu.Unlock()
	}
}

func (t *Store) Kind() ScopeKind {
	return t.kind
}

func (t *Store) Key() string {
	return t.key
}

/**
Conversation promoted to long-running keeps its store under the new id
*/
func (t *Store) rename(key string) {
	t.lock()
	t.key = key
	t.unlock()
}

func (t *Store) State() StoreState {
	return StoreState(atomic.LoadInt32(&t.state))
}

func (t *Store) setState(state StoreState) {
	atomic.StoreInt32(&t.state, int32(state))
}

func (t *Store) readable() error {
	switch t.State() {
	case StoreActive, StoreDestroying:
		return nil
	case StoreInvalidated:
		return notActive(t.kind, fmt.Sprintf("activation '%s' is invalidated", t.key))
	default:
		return notActive(t.kind, fmt.Sprintf("activation '%s' is deactivated", t.key))
	}
}

func (t *Store) writable() error {
	if t.State() == StoreDestroying {
		return notActive(t.kind, fmt.Sprintf("activation '%s' is being destroyed", t.key))
	}
	return t.readable()
}

/**
Returns the instance of the bean if exist, fails with ContextNotActiveError unless active
*/
func (t *Store) Get(beanID string) (*Instance, bool, error) {
	t.lock()
	defer t.unlock()
	if err := t.readable(); err != nil {
		return nil, false, err
	}
	inst, ok := t.instances[beanID]
	return inst, ok, nil
}

/**
Puts the instance replacing the previous one, the previous instance is returned and not destroyed
*/
func (t *Store) Put(inst *Instance) (*Instance, error) {
	t.lock()
	defer t.unlock()
	if err := t.writable(); err != nil {
		return nil, err
	}
	id := inst.bean.id
	prev := t.instances[id]
	if prev != nil {
		t.unlink(prev)
	}
	inst.store = t
	t.instances[id] = inst
	t.order = append(t.order, inst)
	return prev, nil
}

/**
Puts the instance unless another one is already stored. Returns the stored instance and true if it was the given one.
*/
func (t *Store) putIfAbsent(inst *Instance) (*Instance, bool, error) {
	t.lock()
	defer t.unlock()
	if err := t.writable(); err != nil {
		return nil, false, err
	}
	id := inst.bean.id
	if existing, ok := t.instances[id]; ok {
		return existing, false, nil
	}
	inst.store = t
	t.instances[id] = inst
	t.order = append(t.order, inst)
	return inst, true, nil
}

/**
Removes exactly this instance, returns false if the store holds another one or none
*/
func (t *Store) remove(inst *Instance) bool {
	t.lock()
	defer t.unlock()
	if t.instances[inst.bean.id] != inst {
		return false
	}
	delete(t.instances, inst.bean.id)
	t.unlink(inst)
	return true
}

func (t *Store) unlink(inst *Instance) {
	for i, el := range t.order {
		if el == inst {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}

func (t *Store) Len() int {
	t.lock()
	defer t.unlock()
	return len(t.instances)
}

/**
Instances in creation order
*/
func (t *Store) Instances() []*Instance {
	t.lock()
	defer t.unlock()
	return append([]*Instance(nil), t.order...)
}

/**
Marks the store invalidated, instances stay until deactivation
*/
func (t *Store) invalidate() bool {
	return atomic.CompareAndSwapInt32(&t.state, int32(StoreActive), int32(StoreInvalidated))
}

/**
Destroys every instance in reverse creation order and makes the store inactive.
Runs to completion, destructor errors are collected in DestructionError.
*/
func (t *Store) deactivate(ctx context.Context, destroy func(context.Context, *Instance) error) error {
	t.lock()
	state := t.State()
	if state == StoreInactive || state == StoreDestroying {
		t.unlock()
		return nil
	}
	t.setState(StoreDestroying)
	list := append([]*Instance(nil), t.order...)
	t.unlock()

	var listErr []error
	for j := len(list) - 1; j >= 0; j-- {
		if err := destroy(ctx, list[j]); err != nil {
			listErr = append(listErr, err)
		}
	}

	t.lock()
	t.instances = make(map[string]*Instance)
	t.order = nil
	t.setState(StoreInactive)
	t.unlock()

	if len(listErr) > 0 {
		return &DestructionError{Scope: t.kind, Errors: listErr}
	}
	return nil
}

func (t *Store) String() string {
	return fmt.Sprintf("Store [kind=%s, key=%s, state=%s, instances=%d]", t.kind, t.key, t.State(), t.Len())
}

type activationKey struct {
	kind ScopeKind
}

func withStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, activationKey{kind: s.kind}, s)
}

func storeFrom(ctx context.Context, kind ScopeKind) (*Store, bool) {
	if ctx == nil {
		return nil, false
	}
	s, ok := ctx.Value(activationKey{kind: kind}).(*Store)
	return s, ok && s != nil
}

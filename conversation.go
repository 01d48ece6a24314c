/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
	"fmt"
	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

/**
Conversation is a unit of work spanning several requests. It starts transient and is destroyed at the end
of the request unless promoted to long-running by Begin.
*/
type Conversation struct {
	scope *ConversationScope
	store *Store

	mu        sync.Mutex
	id        string
	transient bool
	timeout   time.Duration
	lastUsed  time.Time

	/**
	Set while a unit of work holds the conversation
	*/
	busy int32
}

func (t *Conversation) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

func (t *Conversation) Transient() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transient
}

func (t *Conversation) Timeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout
}

func (t *Conversation) SetTimeout(timeout time.Duration) {
	t.mu.Lock()
	t.timeout = timeout
	t.mu.Unlock()
}

/**
Begin promotes the transient conversation to long-running, with the given id or a generated one
*/
func (t *Conversation) Begin(id ...string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.transient {
		return errors.Errorf("conversation '%s' is already long-running", t.id)
	}
	cid := t.id
	if len(id) > 0 && id[0] != "" {
		cid = id[0]
	}
	if err := t.scope.register(t, cid); err != nil {
		return err
	}
	t.id = cid
	t.store.rename(cid)
	t.transient = false
	t.scope.c.log.WithFields(logrus.Fields{"scope": ConversationScoped, "key": cid}).Debug("Begin")
	return nil
}

/**
End marks the long-running conversation transient, it is destroyed at the end of the current request
*/
func (t *Conversation) End() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.transient {
		return errors.Errorf("conversation '%s' is not long-running", t.id)
	}
	t.transient = true
	t.scope.c.log.WithFields(logrus.Fields{"scope": ConversationScoped, "key": t.id}).Debug("End")
	return nil
}

func (t *Conversation) expired(now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.transient && t.timeout > 0 && now.Sub(t.lastUsed) > t.timeout
}

func (t *Conversation) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("Conversation [id=%s, transient=%v, timeout=%v]", t.id, t.transient, t.timeout)
}

type conversationKey struct{}

/**
ConversationScope keeps long-running conversations by id. A unit of work uses one conversation at a time,
concurrent units of work for the same id wait up to the concurrent access timeout.
*/
type ConversationScope struct {
	c *container

	timeout       time.Duration
	accessTimeout time.Duration

	mu            sync.Mutex
	conversations map[string]*Conversation
}

func newConversationScope(c *container, timeout, accessTimeout time.Duration) *ConversationScope {
	return &ConversationScope{
		c:             c,
		timeout:       timeout,
		accessTimeout: accessTimeout,
		conversations: make(map[string]*Conversation),
	}
}

func (t *ConversationScope) Kind() ScopeKind {
	return ConversationScoped
}

func (t *ConversationScope) Normal() bool {
	return true
}

/**
Activate starts a transient conversation for empty cid, otherwise resumes the long-running one.
Fails with NonexistentConversationError for unknown or expired ids and with BusyConversationError
if another unit of work holds the conversation longer than the concurrent access timeout.
*/
func (t *ConversationScope) Activate(ctx context.Context, cid string) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cid == "" {
		id, err := newID()
		if err != nil {
			return nil, err
		}
		conv := &Conversation{
			scope:     t,
			store:     newStore(ConversationScoped, id, false),
			id:        id,
			transient: true,
			timeout:   t.timeout,
			lastUsed:  time.Now(),
			busy:      1,
		}
		t.c.log.WithFields(logrus.Fields{"scope": ConversationScoped, "key": id}).Debug("Activate transient")
		return t.bind(ctx, conv), nil
	}

	t.mu.Lock()
	conv, ok := t.conversations[cid]
	t.mu.Unlock()
	if !ok {
		return nil, &NonexistentConversationError{ID: cid}
	}

	if err := t.acquire(conv, cid); err != nil {
		return nil, err
	}

	if conv.store.State() != StoreActive {
		atomic.StoreInt32(&conv.busy, 0)
		return nil, &NonexistentConversationError{ID: cid}
	}

	if conv.expired(time.Now()) {
		t.unregister(conv)
		err := conv.store.deactivate(withStore(ctx, conv.store), t.c.mgr.destroy)
		atomic.StoreInt32(&conv.busy, 0)
		if err != nil {
			t.c.log.WithFields(logrus.Fields{"scope": ConversationScoped, "key": cid}).Warnf("Destroy expired conversation, %v", err)
		}
		return nil, &NonexistentConversationError{ID: cid}
	}

	t.c.log.WithFields(logrus.Fields{"scope": ConversationScoped, "key": cid}).Debug("Activate")
	return t.bind(ctx, conv), nil
}

func (t *ConversationScope) acquire(conv *Conversation, cid string) error {
	op := func() error {
		if atomic.CompareAndSwapInt32(&conv.busy, 0, 1) {
			return nil
		}
		return &BusyConversationError{ID: cid}
	}
	if t.accessTimeout <= 0 {
		return op()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Millisecond
	b.MaxInterval = t.accessTimeout / 4
	if b.MaxInterval < b.InitialInterval {
		b.MaxInterval = b.InitialInterval
	}
	b.MaxElapsedTime = t.accessTimeout
	return backoff.Retry(op, b)
}

func (t *ConversationScope) bind(ctx context.Context, conv *Conversation) context.Context {
	return withStore(context.WithValue(ctx, conversationKey{}, conv), conv.store)
}

func (t *ConversationScope) register(conv *Conversation, cid string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if other, ok := t.conversations[cid]; ok && other != conv {
		return errors.Errorf("conversation id '%s' is already in use", cid)
	}
	t.conversations[cid] = conv
	t.c.stats.conversations.Update(int64(len(t.conversations)))
	return nil
}

func (t *ConversationScope) unregister(conv *Conversation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, el := range t.conversations {
		if el == conv {
			delete(t.conversations, id)
		}
	}
	t.c.stats.conversations.Update(int64(len(t.conversations)))
}

/**
Deactivate ends the association with the unit of work. A transient conversation is destroyed,
a long-running one is released for the next request.
*/
func (t *ConversationScope) Deactivate(ctx context.Context) error {
	conv, ok := t.Current(ctx)
	if !ok {
		return notActive(ConversationScoped, "no conversation in the context")
	}
	conv.mu.Lock()
	conv.lastUsed = time.Now()
	transient := conv.transient
	id := conv.id
	conv.mu.Unlock()

	var err error
	if transient {
		t.unregister(conv)
		t.c.log.WithFields(logrus.Fields{"scope": ConversationScoped, "key": id}).Debug("Deactivate transient")
		err = conv.store.deactivate(ctx, t.c.mgr.destroy)
	} else {
		t.c.log.WithFields(logrus.Fields{"scope": ConversationScoped, "key": id}).Debug("Release")
	}
	atomic.StoreInt32(&conv.busy, 0)
	return err
}

/**
Current returns the conversation associated with the ctx
*/
func (t *ConversationScope) Current(ctx context.Context) (*Conversation, bool) {
	if ctx == nil {
		return nil, false
	}
	conv, ok := ctx.Value(conversationKey{}).(*Conversation)
	return conv, ok && conv != nil
}

/**
Sweep destroys long-running conversations not used longer than their timeout, busy ones are skipped
*/
func (t *ConversationScope) Sweep(now time.Time) error {
	var listErr []error
	for _, conv := range t.list() {
		if !atomic.CompareAndSwapInt32(&conv.busy, 0, 1) {
			continue
		}
		if conv.expired(now) {
			t.unregister(conv)
			t.c.log.WithFields(logrus.Fields{"scope": ConversationScoped, "key": conv.ID()}).Debug("Sweep")
			if err := conv.store.deactivate(withStore(context.Background(), conv.store), t.c.mgr.destroy); err != nil {
				listErr = append(listErr, err)
			}
		}
		atomic.StoreInt32(&conv.busy, 0)
	}
	return multipleErr(listErr)
}

/**
Long-running conversation ids, sorted
*/
func (t *ConversationScope) Conversations() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := make([]string, 0, len(t.conversations))
	for id := range t.conversations {
		list = append(list, id)
	}
	sort.Strings(list)
	return list
}

func (t *ConversationScope) list() []*Conversation {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := make([]string, 0, len(t.conversations))
	for id := range t.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	list := make([]*Conversation, len(ids))
	for i, id := range ids {
		list[i] = t.conversations[id]
	}
	return list
}

func (t *ConversationScope) IsActive(ctx context.Context) bool {
	s, ok := storeFrom(ctx, ConversationScoped)
	return ok && s.State() == StoreActive
}

func (t *ConversationScope) Store(ctx context.Context) (*Store, error) {
	s, ok := storeFrom(ctx, ConversationScoped)
	if !ok {
		return nil, notActive(ConversationScoped, "no conversation in the context")
	}
	return s, nil
}

func (t *ConversationScope) deactivateAll() error {
	var listErr []error
	for _, conv := range t.list() {
		t.unregister(conv)
		if err := conv.store.deactivate(withStore(context.Background(), conv.store), t.c.mgr.destroy); err != nil {
			listErr = append(listErr, err)
		}
	}
	return multipleErr(listErr)
}

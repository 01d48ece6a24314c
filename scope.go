/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
	uuid "github.com/nu7hatch/gouuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"sync"
)

type ScopeKind string

const (
	Dependent          ScopeKind = "Dependent"
	RequestScoped      ScopeKind = "RequestScoped"
	SessionScoped      ScopeKind = "SessionScoped"
	ConversationScoped ScopeKind = "ConversationScoped"
	ApplicationScoped  ScopeKind = "ApplicationScoped"

	/**
	Pseudo scope, cached for the container lifetime but never proxied
	*/
	Singleton ScopeKind = "Singleton"
)

/**
ScopeDefinition registers a custom scope. Custom scopes are activated per unit of work like the request scope.
*/
type ScopeDefinition struct {
	Kind ScopeKind

	/**
	Normal scopes are proxyable and may take part in dependency cycles
	*/
	Normal bool

	/**
	Guard the store with a mutex if an activation is shared by concurrent units of work
	*/
	Synchronized bool
}

type Scope interface {
	Kind() ScopeKind

	/**
	Returns true for proxyable scopes
	*/
	Normal() bool

	/**
	Returns true if the scope has an active store visible from the ctx
	*/
	IsActive(ctx context.Context) bool

	/**
	Returns the store visible from the ctx or ContextNotActiveError
	*/
	Store(ctx context.Context) (*Store, error)
}

func newID() (string, error) {
	u, err := uuid.NewV4()
	if err != nil {
		return "", errors.Wrap(err, "generate id")
	}
	return u.String(), nil
}

/**
SharedScope has one synchronized store for the whole container, visible from every context once activated.
Used for application and singleton scopes.
*/
type SharedScope struct {
	c      *container
	kind   ScopeKind
	normal bool

	mu      sync.Mutex
	current *Store
}

func newSharedScope(c *container, kind ScopeKind, normal bool) *SharedScope {
	return &SharedScope{c: c, kind: kind, normal: normal}
}

func (t *SharedScope) Kind() ScopeKind {
	return t.kind
}

func (t *SharedScope) Normal() bool {
	return t.normal
}

/**
Activate creates the store, no-op if already active
*/
func (t *SharedScope) Activate() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil && t.current.State() == StoreActive {
		return nil
	}
	t.current = newStore(t.kind, string(t.kind), true)
	t.c.log.WithField("scope", t.kind).Debug("Activate")
	return nil
}

/**
Deactivate destroys every instance of the store in reverse creation order
*/
func (t *SharedScope) Deactivate() error {
	t.mu.Lock()
	s := t.current
	t.mu.Unlock()
	if s == nil {
		return nil
	}
	t.c.log.WithField("scope", t.kind).Debug("Deactivate")
	err := s.deactivate(context.Background(), t.c.mgr.destroy)
	t.mu.Lock()
	if t.current == s {
		t.current = nil
	}
	t.mu.Unlock()
	return err
}

func (t *SharedScope) IsActive(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current != nil && t.current.State() == StoreActive
}

func (t *SharedScope) Store(ctx context.Context) (*Store, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return nil, notActive(t.kind, "")
	}
	return t.current, nil
}

/**
BoundScope creates a fresh store per activation and carries it in the derived context.
Used for the request scope and custom scopes.
*/
type BoundScope struct {
	c            *container
	kind         ScopeKind
	normal       bool
	synchronized bool

	/**
	Stores activated and not yet deactivated, destroyed on shutdown
	*/
	mu   sync.Mutex
	live map[*Store]struct{}
}

func newBoundScope(c *container, def ScopeDefinition) *BoundScope {
	return &BoundScope{
		c:            c,
		kind:         def.Kind,
		normal:       def.Normal,
		synchronized: def.Synchronized,
		live:         make(map[*Store]struct{}),
	}
}

func (t *BoundScope) Kind() ScopeKind {
	return t.kind
}

func (t *BoundScope) Normal() bool {
	return t.normal
}

/**
Activate returns the derived context carrying a fresh empty store, empty key generates one.

Example:
	ctx, err := c.RequestScope().Activate(ctx, "")
	if err != nil {
		return err
	}
	defer c.RequestScope().Deactivate(ctx)
*/
func (t *BoundScope) Activate(ctx context.Context, key string) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s, ok := storeFrom(ctx, t.kind); ok && s.State() == StoreActive {
		return nil, errors.Errorf("scope '%s' is already active with key '%s'", t.kind, s.key)
	}
	if key == "" {
		var err error
		if key, err = newID(); err != nil {
			return nil, err
		}
	}
	s := newStore(t.kind, key, t.synchronized)
	t.mu.Lock()
	t.live[s] = struct{}{}
	t.mu.Unlock()
	t.c.log.WithFields(logrus.Fields{"scope": t.kind, "key": key}).Debug("Activate")
	return withStore(ctx, s), nil
}

/**
Deactivate destroys the store carried by the ctx
*/
func (t *BoundScope) Deactivate(ctx context.Context) error {
	s, ok := storeFrom(ctx, t.kind)
	if !ok {
		return notActive(t.kind, "no activation in the context")
	}
	t.mu.Lock()
	delete(t.live, s)
	t.mu.Unlock()
	t.c.log.WithFields(logrus.Fields{"scope": t.kind, "key": s.key}).Debug("Deactivate")
	return s.deactivate(ctx, t.c.mgr.destroy)
}

func (t *BoundScope) IsActive(ctx context.Context) bool {
	s, ok := storeFrom(ctx, t.kind)
	return ok && s.State() == StoreActive
}

func (t *BoundScope) Store(ctx context.Context) (*Store, error) {
	s, ok := storeFrom(ctx, t.kind)
	if !ok {
		return nil, notActive(t.kind, "no activation in the context")
	}
	return s, nil
}

/**
Key returns the activation key carried by the ctx
*/
func (t *BoundScope) Key(ctx context.Context) (string, bool) {
	s, ok := storeFrom(ctx, t.kind)
	if !ok {
		return "", false
	}
	return s.key, true
}

func (t *BoundScope) deactivateAll() error {
	t.mu.Lock()
	var list []*Store
	for s := range t.live {
		list = append(list, s)
	}
	t.live = make(map[*Store]struct{})
	t.mu.Unlock()
	var listErr []error
	for _, s := range list {
		if err := s.deactivate(withStore(context.Background(), s), t.c.mgr.destroy); err != nil {
			listErr = append(listErr, err)
		}
	}
	return multipleErr(listErr)
}

/**
Scope of dependent beans, never stored
*/
type dependentScope struct{}

func (dependentScope) Kind() ScopeKind {
	return Dependent
}

func (dependentScope) Normal() bool {
	return false
}

func (dependentScope) IsActive(ctx context.Context) bool {
	return true
}

func (dependentScope) Store(ctx context.Context) (*Store, error) {
	return nil, errors.New("dependent scope has no store")
}

/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"sort"
	"sync"
)

/**
SessionScope keeps one synchronized store per session id, resumed by every unit of work of the session.
*/
type SessionScope struct {
	c *container

	mu       sync.Mutex
	sessions map[string]*Store
}

func newSessionScope(c *container) *SessionScope {
	return &SessionScope{c: c, sessions: make(map[string]*Store)}
}

func (t *SessionScope) Kind() ScopeKind {
	return SessionScoped
}

func (t *SessionScope) Normal() bool {
	return true
}

/**
Activate associates the session with the derived context, the store is created on the first activation and resumed later.
An invalidated session stays invalidated until it is deactivated.
*/
func (t *SessionScope) Activate(ctx context.Context, sid string) (context.Context, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if sid == "" {
		return nil, errors.New("empty session id")
	}
	t.mu.Lock()
	s, ok := t.sessions[sid]
	created := !ok || s.State() == StoreInactive
	if created {
		s = newStore(SessionScoped, sid, true)
		t.sessions[sid] = s
	}
	t.mu.Unlock()
	t.c.log.WithFields(logrus.Fields{"scope": SessionScoped, "key": sid, "created": created}).Debug("Activate")
	return withStore(ctx, s), nil
}

/**
Detach ends the association of the session with one unit of work, the session survives
*/
func (t *SessionScope) Detach(ctx context.Context) context.Context {
	return context.WithValue(ctx, activationKey{kind: SessionScoped}, (*Store)(nil))
}

/**
Invalidate marks the session invalidated, get and put fail from now on, instances are destroyed on deactivation
*/
func (t *SessionScope) Invalidate(ctx context.Context) error {
	s, ok := storeFrom(ctx, SessionScoped)
	if !ok {
		return notActive(SessionScoped, "no session in the context")
	}
	if !s.invalidate() && s.State() != StoreInvalidated {
		return notActive(SessionScoped, "session '"+s.key+"' is not active")
	}
	t.c.log.WithFields(logrus.Fields{"scope": SessionScoped, "key": s.key}).Debug("Invalidate")
	return nil
}

/**
Deactivate destroys the session associated with the ctx
*/
func (t *SessionScope) Deactivate(ctx context.Context) error {
	s, ok := storeFrom(ctx, SessionScoped)
	if !ok {
		return notActive(SessionScoped, "no session in the context")
	}
	return t.destroy(ctx, s)
}

/**
Destroy destroys the session by id, used by hosts on session timeout
*/
func (t *SessionScope) Destroy(sid string) error {
	t.mu.Lock()
	s, ok := t.sessions[sid]
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return t.destroy(withStore(context.Background(), s), s)
}

func (t *SessionScope) destroy(ctx context.Context, s *Store) error {
	t.mu.Lock()
	if t.sessions[s.key] == s {
		delete(t.sessions, s.key)
	}
	t.mu.Unlock()
	t.c.log.WithFields(logrus.Fields{"scope": SessionScoped, "key": s.key}).Debug("Deactivate")
	return s.deactivate(ctx, t.c.mgr.destroy)
}

func (t *SessionScope) IsActive(ctx context.Context) bool {
	s, ok := storeFrom(ctx, SessionScoped)
	return ok && s.State() == StoreActive
}

func (t *SessionScope) Store(ctx context.Context) (*Store, error) {
	s, ok := storeFrom(ctx, SessionScoped)
	if !ok {
		return nil, notActive(SessionScoped, "no session in the context")
	}
	return s, nil
}

/**
Known session ids, sorted
*/
func (t *SessionScope) Sessions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	list := make([]string, 0, len(t.sessions))
	for sid := range t.sessions {
		list = append(list, sid)
	}
	sort.Strings(list)
	return list
}

func (t *SessionScope) deactivateAll() error {
	var listErr []error
	for _, sid := range t.Sessions() {
		if err := t.Destroy(sid); err != nil {
			listErr = append(listErr, err)
		}
	}
	return multipleErr(listErr)
}

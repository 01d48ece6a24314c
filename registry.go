/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"sync"
)

/**
	Holds all registered beans and observers. Read-only once the deployment is sealed.
 */

type registry struct {
	sync.RWMutex
	beansByID   map[string]*Bean
	beansByType map[Type][]*Bean
	beans       []*Bean

	observersByID   map[string]*Observer
	observersByType map[Type][]*Observer
	observers       []*Observer

	sealed bool
	seq    int64
}

func newRegistry() *registry {
	return &registry{
		beansByID:       make(map[string]*Bean),
		beansByType:     make(map[Type][]*Bean),
		observersByID:   make(map[string]*Observer),
		observersByType: make(map[Type][]*Observer),
	}
}

func (t *registry) register(b *Bean) error {
	t.Lock()
	defer t.Unlock()
	if t.sealed {
		return definitionErrorf(b.id, "registry is sealed after deployment")
	}
	if _, ok := t.beansByID[b.id]; ok {
		return &DuplicateIdError{ID: b.id}
	}
	t.beansByID[b.id] = b
	for _, typ := range b.types {
		t.beansByType[typ] = append(t.beansByType[typ], b)
	}
	t.beans = append(t.beans, b)
	return nil
}

/**
Registers a copy of the observer with the next registration sequence
*/
func (t *registry) registerObserver(o *Observer) (*Observer, error) {
	t.Lock()
	defer t.Unlock()
	if t.sealed {
		return nil, definitionErrorf(o.id, "registry is sealed after deployment")
	}
	if _, ok := t.observersByID[o.id]; ok {
		return nil, &DuplicateIdError{ID: o.id}
	}
	t.seq++
	reg := *o
	reg.seq = t.seq
	t.observersByID[reg.id] = &reg
	t.observersByType[reg.observedType] = append(t.observersByType[reg.observedType], &reg)
	t.observers = append(t.observers, &reg)
	return &reg, nil
}

func (t *registry) findByType(typ Type) []*Bean {
	t.RLock()
	defer t.RUnlock()
	return t.beansByType[typ]
}

func (t *registry) findByID(id string) (*Bean, bool) {
	t.RLock()
	defer t.RUnlock()
	b, ok := t.beansByID[id]
	return b, ok
}

/**
Beans in registration order
*/
func (t *registry) list() []*Bean {
	t.RLock()
	defer t.RUnlock()
	return append([]*Bean(nil), t.beans...)
}

func (t *registry) findObserver(id string) (*Observer, bool) {
	t.RLock()
	defer t.RUnlock()
	o, ok := t.observersByID[id]
	return o, ok
}

func (t *registry) observersOf(typ Type) []*Observer {
	t.RLock()
	defer t.RUnlock()
	return t.observersByType[typ]
}

/**
Observers in registration order
*/
func (t *registry) observerList() []*Observer {
	t.RLock()
	defer t.RUnlock()
	return append([]*Observer(nil), t.observers...)
}

func (t *registry) seal() {
	t.Lock()
	t.sealed = true
	t.Unlock()
}

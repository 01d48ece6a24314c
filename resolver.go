/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"sort"
	"sync"
	"sync/atomic"
)

/**
Resolver answers typesafe lookups over the registry
*/
type resolver struct {
	registry *registry
	stats    *containerStats

	/**
	Alternatives enabled by configuration, alternatives with priority are always enabled
	*/
	alternatives map[string]bool

	sealed int32

	/**
	Resolution results of the sealed registry, key is type and canonical qualifiers
	*/
	cache sync.Map
}

type resolution struct {
	bean *Bean
	err  error
}

func newResolver(r *registry, stats *containerStats, alternatives []string) *resolver {
	enabled := make(map[string]bool, len(alternatives))
	for _, id := range alternatives {
		enabled[id] = true
	}
	return &resolver{registry: r, stats: stats, alternatives: enabled}
}

func (t *resolver) seal() {
	atomic.StoreInt32(&t.sealed, 1)
}

func (t *resolver) resolve(typ Type, qualifiers Qualifiers) (*Bean, error) {
	required := requiredQualifiers(qualifiers)
	if atomic.LoadInt32(&t.sealed) == 0 {
		return t.count(t.doResolve(typ, required))
	}
	key := string(typ) + "|" + required.key()
	if v, ok := t.cache.Load(key); ok {
		r := v.(resolution)
		return t.count(r.bean, r.err)
	}
	b, err := t.doResolve(typ, required)
	t.cache.Store(key, resolution{bean: b, err: err})
	return t.count(b, err)
}

func (t *resolver) count(b *Bean, err error) (*Bean, error) {
	if err != nil {
		t.stats.failures.Inc(1)
	}
	return b, err
}

func (t *resolver) doResolve(typ Type, required Qualifiers) (*Bean, error) {
	candidates := t.candidates(typ, required)
	if len(candidates) == 0 {
		return nil, &UnsatisfiedResolutionError{Type: typ, Qualifiers: required}
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	candidates = t.narrowAlternatives(candidates)
	if len(candidates) > 1 {
		candidates = t.narrowSpecialized(candidates)
	}
	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return t.narrowPriority(typ, required, candidates)
}

/**
Beans of the type with all required qualifiers, except interceptors, decorators and disabled alternatives
*/
func (t *resolver) candidates(typ Type, required Qualifiers) []*Bean {
	var list []*Bean
	for _, b := range t.registry.findByType(typ) {
		if !b.kind.resolvable() || !t.available(b) {
			continue
		}
		if b.matches(required) {
			list = append(list, b)
		}
	}
	return list
}

func (t *resolver) available(b *Bean) bool {
	return !b.alternative || t.enabledAlternative(b)
}

func (t *resolver) enabledAlternative(b *Bean) bool {
	return b.alternative && (b.hasPriority || t.alternatives[b.id])
}

func (t *resolver) narrowAlternatives(candidates []*Bean) []*Bean {
	var list []*Bean
	for _, b := range candidates {
		if t.enabledAlternative(b) {
			list = append(list, b)
		}
	}
	if len(list) == 0 {
		return candidates
	}
	return list
}

/**
Removes every bean specialized by a candidate, directly or transitively
*/
func (t *resolver) narrowSpecialized(candidates []*Bean) []*Bean {
	specialized := make(map[string]bool)
	for _, b := range candidates {
		for id := b.specializes; id != "" && !specialized[id]; {
			specialized[id] = true
			next, ok := t.registry.findByID(id)
			if !ok {
				break
			}
			id = next.specializes
		}
	}
	if len(specialized) == 0 {
		return candidates
	}
	var list []*Bean
	for _, b := range candidates {
		if !specialized[b.id] {
			list = append(list, b)
		}
	}
	return list
}

/**
Keeps candidates sharing the maximum declared priority, unprioritized candidates lose
*/
func (t *resolver) narrowPriority(typ Type, required Qualifiers, candidates []*Bean) (*Bean, error) {
	top, found := 0, false
	for _, b := range candidates {
		if b.hasPriority && (!found || b.priority > top) {
			top, found = b.priority, true
		}
	}
	if !found {
		return nil, ambiguous(typ, required, candidates)
	}
	var list []*Bean
	for _, b := range candidates {
		if b.hasPriority && b.priority == top {
			list = append(list, b)
		}
	}
	if len(list) == 1 {
		return list[0], nil
	}
	return nil, ambiguous(typ, required, list)
}

func ambiguous(typ Type, required Qualifiers, candidates []*Bean) error {
	ids := make([]string, len(candidates))
	for i, b := range candidates {
		ids[i] = b.id
	}
	sort.Strings(ids)
	return &AmbiguousResolutionError{Type: typ, Qualifiers: required, Candidates: ids}
}

/**
Every available candidate after alternative and specialization narrowing, sorted by id
*/
func (t *resolver) resolveAll(typ Type, qualifiers Qualifiers) []*Bean {
	candidates := t.candidates(typ, requiredQualifiers(qualifiers))
	if len(candidates) > 1 {
		candidates = t.narrowSpecialized(t.narrowAlternatives(candidates))
	}
	list := append([]*Bean(nil), candidates...)
	sort.Slice(list, func(i, j int) bool {
		return list[i].id < list[j].id
	})
	return list
}

/**
Observers of the closure whose qualifiers are all carried by the event.
Ordered by ascending priority, then by specificity of the observed type, then by registration.
*/
func (t *resolver) resolveObservers(closure TypeClosure, qualifiers []Qualifier) []*Observer {
	event := eventQualifiers(qualifiers)
	type entry struct {
		o           *Observer
		specificity int
	}
	var list []entry
	for i, typ := range closure {
		for _, o := range t.registry.observersOf(typ) {
			if !event.ContainsAll(o.qualifiers) {
				continue
			}
			if o.declaringBean != "" {
				if b, ok := t.registry.findByID(o.declaringBean); ok && !t.available(b) {
					continue
				}
			}
			list = append(list, entry{o: o, specificity: i})
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.o.priority != b.o.priority {
			return a.o.priority < b.o.priority
		}
		if a.specificity != b.specificity {
			return a.specificity < b.specificity
		}
		return a.o.seq < b.o.seq
	})
	out := make([]*Observer, len(list))
	for i, e := range list {
		out[i] = e.o
	}
	return out
}

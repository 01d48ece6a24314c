/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"sort"
	"sync/atomic"
)

/**
Deployment populates the registry, validates it and deploys the container once.

Example:
	d := cdi.NewDeployment(cdi.Verbose{Log: log})
	if err := d.RegisterBean(engine); err != nil {
		return err
	}
	c, err := d.Deploy()
*/
type Deployment struct {
	c *container
}

func NewDeployment(opts ...Option) *Deployment {
	return &Deployment{c: newContainer(opts)}
}

func (t *Deployment) RegisterBean(b *Bean) error {
	if b == nil {
		return errors.New("register of nil bean")
	}
	t.c.log.WithFields(logrus.Fields{"bean": b.id, "kind": b.kind, "scope": b.scope}).Debug("Register bean")
	return t.c.registry.register(b)
}

func (t *Deployment) RegisterObserver(o *Observer) error {
	if o == nil {
		return errors.New("register of nil observer")
	}
	t.c.log.WithFields(logrus.Fields{"observer": o.id, "type": o.observedType}).Debug("Register observer")
	_, err := t.c.registry.registerObserver(o)
	return err
}

func (t *Deployment) AddScope(def ScopeDefinition) error {
	return t.c.addScope(def)
}

/**
Resolve answers a typesafe lookup before deployment, results are not cached
*/
func (t *Deployment) Resolve(typ Type, qualifiers ...Qualifier) (*Bean, error) {
	t.c.ensureBuiltins()
	return t.c.Resolve(typ, qualifiers...)
}

func (t *Deployment) ResolveAll(typ Type, qualifiers ...Qualifier) []*Bean {
	t.c.ensureBuiltins()
	return t.c.ResolveAll(typ, qualifiers...)
}

func (t *Deployment) ResolveObservers(closure TypeClosure, qualifiers ...Qualifier) []*Observer {
	return t.c.ResolveObservers(closure, qualifiers...)
}

/**
Registered beans in bootstrap order, built-ins included
*/
func (t *Deployment) Beans() []*Bean {
	t.c.ensureBuiltins()
	return t.c.Beans()
}

/**
Registered observers in registration order
*/
func (t *Deployment) Observers() []*Observer {
	return t.c.registry.observerList()
}

/**
Validate resolves every injection point eagerly and collects all problems in DeploymentError
*/
func (t *Deployment) Validate() error {
	t.c.ensureBuiltins()
	return t.c.validate()
}

/**
Deploy validates, seals the registry and activates application and singleton scopes
*/
func (t *Deployment) Deploy() (Container, error) {
	c := t.c
	if !atomic.CompareAndSwapInt32(&c.deployed, 0, 1) {
		return nil, errors.New("deployment is already deployed")
	}
	c.ensureBuiltins()
	if err := c.validate(); err != nil {
		atomic.StoreInt32(&c.deployed, 0)
		return nil, err
	}

	c.registry.seal()
	c.resolver.seal()

	c.order = bootstrapOrder(c.registry.list())
	interceptors := make(map[string][]*Bean, len(c.order))
	decorators := make(map[string][]*Bean, len(c.order))
	for _, b := range c.order {
		if list := c.computeInterceptors(b); len(list) > 0 {
			interceptors[b.id] = list
		}
		if list := c.computeDecorators(b); len(list) > 0 {
			decorators[b.id] = list
		}
	}
	c.interceptors = interceptors
	c.decorators = decorators

	if err := c.application.Activate(); err != nil {
		return nil, err
	}
	if err := c.singleton.Activate(); err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"beans": len(c.order), "observers": len(c.registry.observerList())}).Debug("Deployed")
	return c, nil
}

func kindRank(k Kind) int {
	switch k {
	case BuiltIn:
		return 0
	case Managed:
		return 1
	case ProducerMethod:
		return 2
	case ProducerField:
		return 3
	case Extension:
		return 4
	case Decorator:
		return 5
	case Interceptor:
		return 6
	default:
		return 7
	}
}

/**
Deterministic order: built-ins first, then by kind, then by id
*/
func bootstrapOrder(list []*Bean) []*Bean {
	out := append([]*Bean(nil), list...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := kindRank(out[i].kind), kindRank(out[j].kind)
		if a != b {
			return a < b
		}
		return out[i].id < out[j].id
	})
	return out
}

func (t *container) validate() error {
	var listErr []error
	listErr = append(listErr, t.optionErrs...)

	order := bootstrapOrder(t.registry.list())
	specializedBy := make(map[string]string)

	for _, b := range order {
		if _, ok := t.scope(b.scope); !ok {
			listErr = append(listErr, definitionErrorf(b.id, "unknown scope '%s'", b.scope))
		}

		if b.kind.isProducer() {
			if _, ok := t.registry.findByID(b.declaringBean); !ok {
				listErr = append(listErr, definitionErrorf(b.id, "declaring bean '%s' not found", b.declaringBean))
			}
		}

		if b.specializes != "" {
			if target, ok := t.registry.findByID(b.specializes); !ok {
				listErr = append(listErr, definitionErrorf(b.id, "specialized bean '%s' not found", b.specializes))
			} else {
				for _, typ := range target.types {
					if !b.HasType(typ) {
						listErr = append(listErr, definitionErrorf(b.id, "specializing bean lacks type '%s' of specialized bean '%s'", typ, target.id))
						break
					}
				}
				if other, dup := specializedBy[target.id]; dup {
					listErr = append(listErr, definitionErrorf(b.id, "bean '%s' is specialized by both '%s' and '%s'", target.id, other, b.id))
				} else {
					specializedBy[target.id] = b.id
				}
			}
		}

		for i, ip := range b.injectionPoints {
			if ip.All {
				continue
			}
			if _, err := t.resolver.resolve(ip.Type, ip.Qualifiers); err != nil {
				if _, unsatisfied := err.(*UnsatisfiedResolutionError); unsatisfied && !ip.Required {
					continue
				}
				listErr = append(listErr, atInjectionPoint(err, b, i, ip))
			}
		}
	}

	listErr = append(listErr, t.validateEnabled(t.config.Alternatives, "an alternative", func(b *Bean) bool { return b.alternative })...)
	listErr = append(listErr, t.validateEnabled(t.config.Decorators, "a decorator", func(b *Bean) bool { return b.kind == Decorator })...)
	listErr = append(listErr, t.validateEnabled(t.config.Interceptors, "an interceptor", func(b *Bean) bool { return b.kind == Interceptor })...)

	for _, o := range t.registry.observerList() {
		if o.declaringBean == "" {
			continue
		}
		b, ok := t.registry.findByID(o.declaringBean)
		if !ok {
			listErr = append(listErr, definitionErrorf(o.id, "declaring bean '%s' of observer not found", o.declaringBean))
			continue
		}
		if o.reception == IfExists && b.scope == Dependent {
			listErr = append(listErr, definitionErrorf(o.id, "conditional observer declared by dependent bean '%s'", b.id))
		}
	}

	listErr = append(listErr, t.detectCycles(order)...)

	if len(listErr) > 0 {
		return &DeploymentError{Errors: listErr}
	}
	return nil
}

func (t *container) validateEnabled(ids []string, what string, is func(*Bean) bool) []error {
	var listErr []error
	for _, id := range ids {
		b, ok := t.registry.findByID(id)
		if !ok {
			listErr = append(listErr, definitionErrorf(id, "configured bean not found, expected %s", what))
		} else if !is(b) {
			listErr = append(listErr, definitionErrorf(id, "configured bean is not %s", what))
		}
	}
	return listErr
}

/**
Splits the dependency graph into strongly connected components, a component forming a cycle is fatal
if any bean in it has a scope that is not normal. The reported path runs through that bean.
*/
func (t *container) detectCycles(order []*Bean) []error {
	graph := make(map[string][]*Bean, len(order))
	edges := func(b *Bean) []*Bean {
		if list, ok := graph[b.id]; ok {
			return list
		}
		list := []*Bean{}
		if b.kind.isProducer() {
			if decl, ok := t.registry.findByID(b.declaringBean); ok {
				list = append(list, decl)
			}
		}
		for _, ip := range b.injectionPoints {
			if ip.All {
				list = append(list, t.resolver.resolveAll(ip.Type, ip.Qualifiers)...)
			} else if dep, err := t.resolver.resolve(ip.Type, ip.Qualifiers); err == nil {
				list = append(list, dep)
			}
		}
		graph[b.id] = list
		return list
	}

	var (
		next       int
		index      = make(map[string]int, len(order))
		low        = make(map[string]int, len(order))
		onStack    = make(map[string]bool, len(order))
		stack      []*Bean
		components [][]*Bean
	)

	var connect func(b *Bean)
	connect = func(b *Bean) {
		index[b.id] = next
		low[b.id] = next
		next++
		stack = append(stack, b)
		onStack[b.id] = true
		for _, dep := range edges(b) {
			if _, visited := index[dep.id]; !visited {
				connect(dep)
				if low[dep.id] < low[b.id] {
					low[b.id] = low[dep.id]
				}
			} else if onStack[dep.id] && index[dep.id] < low[b.id] {
				low[b.id] = index[dep.id]
			}
		}
		if low[b.id] != index[b.id] {
			return
		}
		var component []*Bean
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top.id] = false
			component = append(component, top)
			if top == b {
				break
			}
		}
		components = append(components, component)
	}

	for _, b := range order {
		if _, visited := index[b.id]; !visited {
			connect(b)
		}
	}

	position := make(map[string]int, len(order))
	for i, b := range order {
		position[b.id] = i
	}

	var listErr []error
	for _, component := range components {
		if len(component) == 1 && !containsBean(edges(component[0]), component[0]) {
			continue
		}
		var start *Bean
		for _, el := range component {
			if t.isNormal(el.scope) {
				continue
			}
			if start == nil || position[el.id] < position[start.id] {
				start = el
			}
		}
		if start == nil {
			continue
		}
		members := make(map[string]bool, len(component))
		for _, el := range component {
			members[el.id] = true
		}
		listErr = append(listErr, &CircularDependencyError{Path: cyclePath(start, members, edges)})
	}
	return listErr
}

func containsBean(list []*Bean, b *Bean) bool {
	for _, el := range list {
		if el == b {
			return true
		}
	}
	return false
}

/**
Shortest path from the bean back to itself inside one component
*/
func cyclePath(start *Bean, members map[string]bool, edges func(*Bean) []*Bean) []string {
	prev := map[string]*Bean{start.id: nil}
	queue := []*Bean{start}
	for len(queue) > 0 {
		b := queue[0]
		queue = queue[1:]
		for _, dep := range edges(b) {
			if dep == start {
				var path []string
				for el := b; el != nil; el = prev[el.id] {
					path = append(path, el.id)
				}
				for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
					path[i], path[j] = path[j], path[i]
				}
				return append(path, start.id)
			}
			if _, seen := prev[dep.id]; seen || !members[dep.id] {
				continue
			}
			prev[dep.id] = b
			queue = append(queue, dep)
		}
	}
	return []string{start.id, start.id}
}

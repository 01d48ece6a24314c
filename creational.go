/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"sync"
)

/**
Creational is the creational context of one instance. Factories obtain their injection points through it
and it owns every dependent instance created on the way, so they are destroyed together with the instance.
*/
type Creational struct {
	m    *manager
	bean *Bean

	/**
	Creational context of the instance that triggered this creation, cleared when construction completes
	*/
	parent *Creational

	/**
	Injection point satisfied by this creation if any
	*/
	target *InjectionPoint

	mu         sync.Mutex
	dependents []*Instance
}

func newCreational(m *manager, bean *Bean, parent *Creational, target *InjectionPoint) *Creational {
	return &Creational{m: m, bean: bean, parent: parent, target: target}
}

/**
Returns the bean under construction
*/
func (t *Creational) Bean() *Bean {
	return t.bean
}

/**
Returns the injection point of the bean under construction by index
*/
func (t *Creational) InjectionPoint(i int) (InjectionPoint, bool) {
	if t.bean == nil || i < 0 || i >= len(t.bean.injectionPoints) {
		return InjectionPoint{}, false
	}
	return t.bean.injectionPoints[i], true
}

/**
Returns the injection point this creation is satisfying, false for top-level lookups
*/
func (t *Creational) Target() (InjectionPoint, bool) {
	if t.target == nil {
		return InjectionPoint{}, false
	}
	return *t.target, true
}

func (t *Creational) point(i int) (InjectionPoint, error) {
	ip, ok := t.InjectionPoint(i)
	if !ok {
		var id string
		if t.bean != nil {
			id = t.bean.id
		}
		return ip, errors.Errorf("bean '%s' has no injection point #%d", id, i)
	}
	return ip, nil
}

/**
Value resolves the injection point and obtains the object. An unsatisfied optional injection point gives nil.
*/
func (t *Creational) Value(ctx context.Context, i int) (interface{}, error) {
	ip, err := t.point(i)
	if err != nil {
		return nil, err
	}
	b, err := t.m.c.resolver.resolve(ip.Type, ip.Qualifiers)
	if err != nil {
		if _, unsatisfied := err.(*UnsatisfiedResolutionError); unsatisfied && !ip.Required {
			return nil, nil
		}
		return nil, atInjectionPoint(err, t.bean, i, ip)
	}
	inst, err := t.m.obtain(ctx, b, t, &ip)
	if err != nil {
		return nil, err
	}
	return inst.object, nil
}

/**
Reference resolves the injection point to a lazy handle, only beans with normal scope can be referenced.
*/
func (t *Creational) Reference(i int) (*Reference, error) {
	ip, err := t.point(i)
	if err != nil {
		return nil, err
	}
	b, err := t.m.c.resolver.resolve(ip.Type, ip.Qualifiers)
	if err != nil {
		return nil, atInjectionPoint(err, t.bean, i, ip)
	}
	return t.m.c.reference(b)
}

/**
Values obtains every available bean of the injection point, sorted by bean id
*/
func (t *Creational) Values(ctx context.Context, i int) ([]interface{}, error) {
	ip, err := t.point(i)
	if err != nil {
		return nil, err
	}
	beans := t.m.c.resolver.resolveAll(ip.Type, ip.Qualifiers)
	list := make([]interface{}, 0, len(beans))
	for _, b := range beans {
		inst, err := t.m.obtain(ctx, b, t, &ip)
		if err != nil {
			return nil, err
		}
		list = append(list, inst.object)
	}
	return list, nil
}

/**
Obtain gets the object of the bean on behalf of the instance under construction, dependent instances are owned by it
*/
func (t *Creational) Obtain(ctx context.Context, b *Bean) (interface{}, error) {
	inst, err := t.m.obtain(ctx, b, t, nil)
	if err != nil {
		return nil, err
	}
	return inst.object, nil
}

/**
Dependent instances in creation order
*/
func (t *Creational) Dependents() []*Instance {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*Instance(nil), t.dependents...)
}

func (t *Creational) addDependent(inst *Instance) {
	t.mu.Lock()
	t.dependents = append(t.dependents, inst)
	t.mu.Unlock()
}

func (t *Creational) underConstruction(b *Bean) bool {
	for cc := t; cc != nil; cc = cc.parent {
		if cc.bean == b {
			return true
		}
	}
	return false
}

/**
Bean ids from the root of the chain to the given bean
*/
func (t *Creational) path(b *Bean) []string {
	var rev []string
	for cc := t; cc != nil; cc = cc.parent {
		if cc.bean != nil {
			rev = append(rev, cc.bean.id)
		}
	}
	path := make([]string, 0, len(rev)+1)
	for j := len(rev) - 1; j >= 0; j-- {
		path = append(path, rev[j])
	}
	start := 0
	for i, id := range path {
		if id == b.id {
			start = i
			break
		}
	}
	return append(path[start:], b.id)
}

/**
Destroys dependents in reverse creation order
*/
func (t *Creational) release(ctx context.Context) error {
	t.mu.Lock()
	list := t.dependents
	t.dependents = nil
	t.mu.Unlock()
	var listErr []error
	for j := len(list) - 1; j >= 0; j-- {
		if err := t.m.destroy(ctx, list[j]); err != nil {
			listErr = append(listErr, err)
		}
	}
	return multipleErr(listErr)
}

func describePoint(b *Bean, i int, ip InjectionPoint) string {
	if b == nil {
		return fmt.Sprintf("#%d %s", i, ip)
	}
	return fmt.Sprintf("'%s' #%d %s", b.id, i, ip)
}

/**
Copies resolution errors with the injection point description, other errors are wrapped
*/
func atInjectionPoint(err error, b *Bean, i int, ip InjectionPoint) error {
	desc := describePoint(b, i, ip)
	switch e := err.(type) {
	case *UnsatisfiedResolutionError:
		c := *e
		c.InjectionPoint = desc
		return &c
	case *AmbiguousResolutionError:
		c := *e
		c.InjectionPoint = desc
		return &c
	default:
		return errors.Wrapf(err, "injection point %s", desc)
	}
}

/**
ValueAs obtains the injection point and converts the object to T
*/
func ValueAs[T any](ctx context.Context, cc *Creational, i int) (T, error) {
	var zero T
	v, err := cc.Value(ctx, i)
	if err != nil || v == nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("injection point #%d of '%s' expected %v, but was %T", i, cc.bean.id, TypeOf[T](), v)
	}
	return typed, nil
}

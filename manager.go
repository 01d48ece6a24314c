/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"sync"
	"time"
)

/**
Invocation is the around-construct chain of one creation
*/
type Invocation struct {
	bean        *Bean
	interceptor *Bean
	proceed     func(ctx context.Context) (interface{}, error)
}

/**
Returns the bean under construction
*/
func (t *Invocation) Bean() *Bean {
	return t.bean
}

func (t *Invocation) Interceptor() *Bean {
	return t.interceptor
}

/**
Proceed runs the next interceptor or the factory itself
*/
func (t *Invocation) Proceed(ctx context.Context) (interface{}, error) {
	return t.proceed(ctx)
}

/**
Contextual instance manager, the get-or-create path of the container
*/
type manager struct {
	c *container

	/**
	Top-level dependent instances destroyed on release or shutdown
	*/
	mu      sync.Mutex
	unowned []*Instance
}

func (t *manager) obtain(ctx context.Context, b *Bean, parent *Creational, target *InjectionPoint) (*Instance, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if b.scope == Dependent {
		if parent != nil && parent.underConstruction(b) {
			return nil, &CircularDependencyError{Path: parent.path(b)}
		}
		inst, err := t.create(ctx, b, parent, target)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			parent.addDependent(inst)
		} else {
			t.track(inst)
		}
		return inst, nil
	}

	sc, ok := t.c.scope(b.scope)
	if !ok {
		return nil, definitionErrorf(b.id, "unknown scope '%s'", b.scope)
	}
	store, err := sc.Store(ctx)
	if err != nil {
		return nil, err
	}

	if inst, ok, err := store.Get(b.id); err != nil {
		return nil, err
	} else if ok {
		t.c.stats.hits.Inc(1)
		return inst, nil
	}
	t.c.stats.misses.Inc(1)

	if parent != nil && parent.underConstruction(b) {
		return nil, &CircularDependencyError{Path: parent.path(b)}
	}

	// the factory runs outside of the store lock, racing creations are resolved by putIfAbsent
	inst, err := t.create(ctx, b, parent, target)
	if err != nil {
		return nil, err
	}

	winner, stored, err := store.putIfAbsent(inst)
	if err != nil {
		if derr := t.destroy(ctx, inst); derr != nil {
			t.c.log.WithField("bean", b.id).Warnf("Destroy rejected instance, %v", derr)
		}
		return nil, err
	}
	if !stored {
		t.c.stats.races.Inc(1)
		t.c.log.WithFields(logrus.Fields{"bean": b.id, "scope": b.scope, "key": store.key}).Debug("Lost creation race")
		if derr := t.destroy(ctx, inst); derr != nil {
			t.c.log.WithField("bean", b.id).Warnf("Destroy losing instance, %v", derr)
		}
	}
	return winner, nil
}

func (t *manager) create(ctx context.Context, b *Bean, parent *Creational, target *InjectionPoint) (*Instance, error) {
	cc := newCreational(t, b, parent, target)
	inst := &Instance{bean: b, creational: cc}
	inst.setLifecycle(BeanConstructing)

	start := time.Now()
	t.c.log.WithFields(logrus.Fields{"bean": b.id, "scope": b.scope}).Debug("Create")

	raw, err := t.construct(ctx, b, cc)
	if err == nil {
		inst.setLifecycle(BeanCreated)
		err = t.postConstruct(b, raw)
	}
	obj := raw
	if err == nil {
		obj, err = t.decorate(ctx, b, raw, cc)
	}
	if err != nil {
		if rerr := cc.release(ctx); rerr != nil {
			t.c.log.WithField("bean", b.id).Warnf("Destroy dependents of failed creation, %v", rerr)
		}
		inst.setLifecycle(BeanDestroyed)
		return nil, &CreationError{Bean: b.id, Err: err}
	}

	cc.parent = nil
	inst.raw = raw
	inst.object = obj
	inst.setLifecycle(BeanInitialized)

	t.c.stats.created.Inc(1)
	t.c.stats.createLatency.UpdateSince(start)
	return inst, nil
}

func (t *manager) construct(ctx context.Context, b *Bean, cc *Creational) (obj interface{}, err error) {

	defer func() {
		if r := recover(); r != nil {
			err = recoverErr(r, "construct bean '%s'", b.id)
		}
	}()

	invoke := func(ctx context.Context) (interface{}, error) {
		return t.produce(ctx, b, cc)
	}

	chain := t.c.interceptorsFor(b)
	for j := len(chain) - 1; j >= 0; j-- {
		interceptor, next := chain[j], invoke
		invoke = func(ctx context.Context) (interface{}, error) {
			return interceptor.around(ctx, &Invocation{bean: b, interceptor: interceptor, proceed: next})
		}
	}

	return invoke(ctx)
}

func (t *manager) produce(ctx context.Context, b *Bean, cc *Creational) (interface{}, error) {
	if !b.kind.isProducer() {
		return b.factory(ctx, cc)
	}

	decl, ok := t.c.registry.findByID(b.declaringBean)
	if !ok {
		return nil, errors.Errorf("declaring bean '%s' of producer '%s' not found", b.declaringBean, b.id)
	}

	// dependent declaring instance lives only for the producer call
	holder := newCreational(t, b, cc, nil)
	declInst, err := t.obtain(ctx, decl, holder, nil)
	if err != nil {
		return nil, err
	}
	obj, err := b.producer(ctx, declInst.object, cc)
	if rerr := holder.release(ctx); rerr != nil {
		t.c.log.WithField("bean", b.id).Warnf("Destroy declaring instance, %v", rerr)
	}
	return obj, err
}

func (t *manager) postConstruct(b *Bean, obj interface{}) error {
	if initializer, ok := obj.(InitializingBean); ok {
		return guard(initializer.PostConstruct, "post construct bean '%s'", b.id)
	}
	return nil
}

/**
Decorators with lower priority end up outermost, so they are invoked first
*/
func (t *manager) decorate(ctx context.Context, b *Bean, obj interface{}, cc *Creational) (interface{}, error) {
	list := t.c.decoratorsFor(b)
	for j := len(list) - 1; j >= 0; j-- {
		d := list[j]
		dcc := newCreational(t, d, cc, nil)
		var decorated interface{}
		err := guard(func() (err error) {
			decorated, err = d.decorator(ctx, obj, dcc)
			return
		}, "decorator '%s' of bean '%s'", d.id, b.id)
		if err != nil {
			if rerr := dcc.release(ctx); rerr != nil {
				t.c.log.WithField("bean", d.id).Warnf("Destroy decorator dependents, %v", rerr)
			}
			return nil, err
		}
		for _, dep := range dcc.Dependents() {
			cc.addDependent(dep)
		}
		obj = decorated
	}
	return obj, nil
}

/**
Destroys the instance once: bean destroyer, disposer, Destroy callback, then the dependents
*/
func (t *manager) destroy(ctx context.Context, inst *Instance) error {
	if !inst.transit(BeanInitialized, BeanDestroying) {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	b := inst.bean
	t.c.log.WithFields(logrus.Fields{"bean": b.id, "scope": b.scope}).Debug("Destroy")

	var listErr []error
	if b.destroyer != nil {
		if err := guard(func() error { return b.destroyer(ctx, inst.raw) }, "destroy bean '%s'", b.id); err != nil {
			listErr = append(listErr, err)
		}
	}
	if b.disposer != nil {
		if err := t.dispose(ctx, inst); err != nil {
			listErr = append(listErr, err)
		}
	}
	if dis, ok := inst.raw.(DisposableBean); ok {
		if err := guard(dis.Destroy, "destroy bean '%s'", b.id); err != nil {
			listErr = append(listErr, err)
		}
	}
	inst.setLifecycle(BeanDestroyed)

	if err := inst.creational.release(ctx); err != nil {
		listErr = append(listErr, err)
	}
	t.c.stats.destroyed.Inc(1)
	return multipleErr(listErr)
}

func (t *manager) dispose(ctx context.Context, inst *Instance) error {
	b := inst.bean
	decl, ok := t.c.registry.findByID(b.declaringBean)
	if !ok {
		return errors.Errorf("declaring bean '%s' of disposer '%s' not found", b.declaringBean, b.id)
	}
	holder := newCreational(t, nil, nil, nil)
	declInst, err := t.obtain(ctx, decl, holder, nil)
	if err != nil {
		return errors.Wrapf(err, "dispose bean '%s'", b.id)
	}
	err = guard(func() error { return b.disposer(ctx, declInst.object, inst.raw) }, "dispose bean '%s'", b.id)
	if rerr := holder.release(ctx); rerr != nil {
		t.c.log.WithField("bean", b.id).Warnf("Destroy declaring instance, %v", rerr)
	}
	return err
}

func (t *manager) release(ctx context.Context, inst *Instance) error {
	if inst == nil {
		return errors.New("release of nil instance")
	}
	if inst.store != nil {
		inst.store.remove(inst)
	} else {
		t.untrack(inst)
	}
	return t.destroy(ctx, inst)
}

/**
Returns the instance of the bean in the store visible from ctx, never creates
*/
func (t *manager) existing(ctx context.Context, b *Bean) (*Instance, bool) {
	if b.scope == Dependent {
		return nil, false
	}
	sc, ok := t.c.scope(b.scope)
	if !ok {
		return nil, false
	}
	store, err := sc.Store(ctx)
	if err != nil {
		return nil, false
	}
	inst, ok, err := store.Get(b.id)
	if err != nil {
		return nil, false
	}
	return inst, ok
}

func (t *manager) track(inst *Instance) {
	t.mu.Lock()
	t.unowned = append(t.unowned, inst)
	t.mu.Unlock()
}

func (t *manager) untrack(inst *Instance) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, el := range t.unowned {
		if el == inst {
			t.unowned = append(t.unowned[:i], t.unowned[i+1:]...)
			return
		}
	}
}

func (t *manager) releaseUnowned(ctx context.Context) error {
	t.mu.Lock()
	list := t.unowned
	t.unowned = nil
	t.mu.Unlock()
	var listErr []error
	for j := len(list) - 1; j >= 0; j-- {
		if err := t.destroy(ctx, list[j]); err != nil {
			listErr = append(listErr, err)
		}
	}
	return multipleErr(listErr)
}

func guard(fn func() error, format string, args ...interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverErr(r, format, args...)
		}
	}()
	if err = fn(); err != nil {
		err = errors.Wrapf(err, format, args...)
	}
	return
}

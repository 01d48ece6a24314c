/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
	"github.com/pkg/errors"
)

/**
Reference is a lazy handle to a bean with normal scope. It holds no instance, every Get obtains
the current contextual instance through the scopes active in the ctx, so it breaks creation cycles.
*/
type Reference struct {
	c    *container
	bean *Bean
}

func (t *Reference) Bean() *Bean {
	return t.bean
}

/**
Get obtains the contextual instance of the bean in the active scope
*/
func (t *Reference) Get(ctx context.Context) (interface{}, error) {
	inst, err := t.c.mgr.obtain(ctx, t.bean, nil, nil)
	if err != nil {
		return nil, err
	}
	return inst.object, nil
}

func (t *Reference) String() string {
	return "<Reference " + t.bean.id + ">"
}

func (t *container) reference(b *Bean) (*Reference, error) {
	sc, ok := t.scope(b.scope)
	if !ok || !sc.Normal() {
		return nil, &UnproxyableResolutionError{Bean: b.id, Scope: b.scope}
	}
	return &Reference{c: t, bean: b}, nil
}

/**
Deref obtains the object behind the reference converted to T
*/
func Deref[T any](ctx context.Context, ref *Reference) (T, error) {
	var zero T
	v, err := ref.Get(ctx)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errors.Errorf("bean '%s' object %T is not %v", ref.bean.id, v, TypeOf[T]())
	}
	return typed, nil
}

/**
Get resolves the bean of type T and obtains its object.

Example:
	svc, err := cdi.Get[app.UserService](ctx, container)
*/
func Get[T any](ctx context.Context, c Container, qualifiers ...Qualifier) (T, error) {
	var zero T
	b, err := c.Resolve(TypeOf[T](), qualifiers...)
	if err != nil {
		return zero, err
	}
	inst, err := c.Obtain(ctx, b)
	if err != nil {
		return zero, err
	}
	typed, ok := inst.Object().(T)
	if !ok {
		return zero, errors.Errorf("bean '%s' object %T is not %v", b.id, inst.Object(), TypeOf[T]())
	}
	return typed, nil
}

func MustGet[T any](ctx context.Context, c Container, qualifiers ...Qualifier) T {
	v, err := Get[T](ctx, c, qualifiers...)
	if err != nil {
		panic(err)
	}
	return v
}

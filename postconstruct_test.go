/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi_test

import (
	"context"
	"github.com/codeallergy/cdi"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

type ServerService interface {
	cdi.InitializingBean
	cdi.DisposableBean
	Serve(app string) string
}

var ServerServiceType = cdi.TypeOf[ServerService]()

type beanServer struct {
	j          *journal
	engine     *Engine
	throwError bool
}

func (t *beanServer) Serve(app string) string {
	return "serve " + app
}

func (t *beanServer) PostConstruct() error {
	if t.throwError {
		return errors.New("server construct error")
	}
	t.j.add("server.PostConstruct")
	return nil
}

func (t *beanServer) Destroy() error {
	t.j.add("server.Destroy")
	return nil
}

type beanClient struct {
	j      *journal
	server ServerService
}

func (t *beanClient) PostConstruct() error {
	t.j.add("client.PostConstruct")
	return nil
}

func (t *beanClient) Destroy() error {
	t.j.add("client.Destroy")
	return nil
}

var beanClientType = cdi.TypeOf[*beanClient]()

func serverBean(j *journal, scope cdi.ScopeKind, throwError bool) *cdi.BeanBuilder {
	return cdi.NewBean("server").
		Types(ServerServiceType).
		Scope(scope).
		Inject(cdi.Inject(EngineType)).
		Factory(func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
			engine, err := cdi.ValueAs[*Engine](ctx, cc, 0)
			if err != nil {
				return nil, err
			}
			j.add("server.Factory")
			return &beanServer{j: j, engine: engine, throwError: throwError}, nil
		}).
		Destroyer(func(ctx context.Context, object interface{}) error {
			j.add("server.Destroyer")
			return nil
		})
}

func clientBean(j *journal) *cdi.BeanBuilder {
	return cdi.NewBean("client").
		Types(beanClientType).
		Inject(cdi.Inject(ServerServiceType)).
		Factory(func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
			server, err := cdi.ValueAs[ServerService](ctx, cc, 0)
			if err != nil {
				return nil, err
			}
			j.add("client.Factory")
			return &beanClient{j: j, server: server}, nil
		})
}

func TestPostConstructOrder(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(
		engineBean(j, cdi.Dependent),
		serverBean(j, cdi.ApplicationScoped, false),
		clientBean(j),
	)
	require.NoError(t, err)

	client, err := cdi.Get[*beanClient](context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, "serve app", client.server.Serve("app"))

	require.NoError(t, c.Shutdown())

	require.Equal(t, []string{
		"create engine",
		"server.Factory",
		"server.PostConstruct",
		"client.Factory",
		"client.PostConstruct",
		"client.Destroy",
		"server.Destroyer",
		"server.Destroy",
		"destroy engine",
	}, j.list())
}

func TestPostConstructError(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(
		engineBean(j, cdi.Dependent),
		serverBean(j, cdi.ApplicationScoped, true),
		clientBean(j),
	)
	require.NoError(t, err)
	defer c.Shutdown()

	_, err = cdi.Get[*beanClient](context.Background(), c)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "server construct error"))

	cerr, ok := err.(*cdi.CreationError)
	require.True(t, ok)
	require.Equal(t, "client", cerr.Bean)

	var inner *cdi.CreationError
	require.True(t, errors.As(cerr.Err, &inner))
	require.Equal(t, "server", inner.Bean)

	require.Equal(t, []string{"create engine", "server.Factory", "destroy engine"}, j.list())

	store, err := c.ApplicationScope().Store(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, store.Len())
}

func TestFactoryPanic(t *testing.T) {

	c, err := cdi.New(
		cdi.NewBean("panic").Types(EngineType).Factory(func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
			panic("boom")
		}),
	)
	require.NoError(t, err)
	defer c.Shutdown()

	_, err = cdi.Get[*Engine](context.Background(), c)
	require.Error(t, err)
	require.Equal(t, "creation of bean 'panic' failed, construct bean 'panic' recovered with error boom", err.Error())
}

type failingDestroy struct {
	j  *journal
	id string
}

func (t *failingDestroy) Destroy() error {
	t.j.add("destroy " + t.id)
	if t.id == "first" {
		return errors.New("close failed")
	}
	return nil
}

func TestDestroyErrors(t *testing.T) {

	j := new(journal)
	bean := func(id string) *cdi.BeanBuilder {
		return cdi.NewBean(id).
			Types(cdi.Type("test." + id)).
			Scope(cdi.ApplicationScoped).
			Factory(func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
				return &failingDestroy{j: j, id: id}, nil
			})
	}

	c, err := cdi.New(bean("first"), bean("second"))
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []string{"first", "second"} {
		b, ok := c.Bean(id)
		require.True(t, ok)
		_, err = c.Obtain(ctx, b)
		require.NoError(t, err)
	}

	err = c.Shutdown()
	require.Error(t, err)
	derr, ok := err.(*cdi.DestructionError)
	require.True(t, ok)
	require.Equal(t, cdi.ApplicationScoped, derr.Scope)
	require.Equal(t, 1, len(derr.Errors))
	require.True(t, strings.Contains(derr.Error(), "close failed"))

	require.Equal(t, []string{"destroy second", "destroy first"}, j.list())
}

func TestInstanceLifecycle(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(engineBean(j, cdi.Dependent))
	require.NoError(t, err)
	defer c.Shutdown()

	b, ok := c.Bean("engine")
	require.True(t, ok)

	inst, err := c.Obtain(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, cdi.BeanInitialized, inst.Lifecycle())
	require.True(t, inst.Bean() == b)

	require.NoError(t, c.Release(context.Background(), inst))
	require.Equal(t, cdi.BeanDestroyed, inst.Lifecycle())
	require.NoError(t, c.Release(context.Background(), inst))

	require.Equal(t, []string{"create engine", "destroy engine"}, j.list())
}

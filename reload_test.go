/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi_test

import (
	"context"
	"github.com/codeallergy/cdi"
	"github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/require"
	"strings"
	"sync"
	"testing"
)

type reloadableBean struct {
	constructed int
	destroyed   int
}

func (t *reloadableBean) PostConstruct() error {
	t.constructed++
	return nil
}

func (t *reloadableBean) Destroy() error {
	t.destroyed++
	return nil
}

var reloadableBeanType = cdi.TypeOf[*reloadableBean]()

func TestBeanReload(t *testing.T) {

	c, err := cdi.New(
		cdi.NewBean("reloadable").Types(reloadableBeanType).Scope(cdi.ApplicationScoped).
			Factory(func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
				return new(reloadableBean), nil
			}),
	)
	require.NoError(t, err)
	defer c.Shutdown()

	ctx := context.Background()
	b, ok := c.Bean("reloadable")
	require.True(t, ok)

	inst, err := c.Obtain(ctx, b)
	require.NoError(t, err)
	first := inst.Object().(*reloadableBean)
	require.Equal(t, 1, first.constructed)

	same, err := c.Obtain(ctx, b)
	require.NoError(t, err)
	require.True(t, same == inst)

	require.NoError(t, c.Release(ctx, inst))
	require.Equal(t, 1, first.destroyed)

	store, err := c.ApplicationScope().Store(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, store.Len())

	inst, err = c.Obtain(ctx, b)
	require.NoError(t, err)
	second := inst.Object().(*reloadableBean)
	require.True(t, first != second)
	require.Equal(t, 1, second.constructed)
	require.Equal(t, 0, second.destroyed)
	require.Equal(t, 1, store.Len())
}

type Cart struct {
	Items []string
}

var CartType = cdi.TypeOf[*Cart]()

func TestSessionScope(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(
		journaled(j, "cart", cdi.NewBean("cart").Types(CartType).Scope(cdi.SessionScoped), func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
			return new(Cart), nil
		}),
	)
	require.NoError(t, err)
	defer c.Shutdown()

	sessions := c.SessionScope()

	ctx, err := sessions.Activate(context.Background(), "s1")
	require.NoError(t, err)
	cart := cdi.MustGet[*Cart](ctx, c)
	cart.Items = append(cart.Items, "book")

	ctx = sessions.Detach(ctx)
	require.False(t, sessions.IsActive(ctx))
	_, err = cdi.Get[*Cart](ctx, c)
	require.Error(t, err)

	ctx, err = sessions.Activate(ctx, "s1")
	require.NoError(t, err)
	require.True(t, cdi.MustGet[*Cart](ctx, c) == cart)

	other, err := sessions.Activate(context.Background(), "s2")
	require.NoError(t, err)
	require.True(t, cdi.MustGet[*Cart](other, c) != cart)
	require.Equal(t, []string{"s1", "s2"}, sessions.Sessions())

	require.NoError(t, sessions.Invalidate(ctx))
	_, err = cdi.Get[*Cart](ctx, c)
	require.Error(t, err)
	notActive, ok := err.(*cdi.ContextNotActiveError)
	require.True(t, ok)
	require.Equal(t, cdi.SessionScoped, notActive.Scope)
	require.Equal(t, []string{"create cart", "create cart"}, j.list())

	require.NoError(t, sessions.Deactivate(ctx))
	require.Equal(t, []string{"s2"}, sessions.Sessions())
	require.Equal(t, []string{"create cart", "create cart", "destroy cart"}, j.list())

	ctx, err = sessions.Activate(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, 0, len(cdi.MustGet[*Cart](ctx, c).Items))

	require.NoError(t, sessions.Destroy("s2"))
	require.NoError(t, sessions.Destroy("unknown"))
	require.Equal(t, []string{"s1"}, sessions.Sessions())

	_, err = sessions.Activate(context.Background(), "")
	require.Error(t, err)
}

func TestCustomScope(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(
		cdi.ScopeDefinition{Kind: "Batch", Normal: true, Synchronized: true},
		journaled(j, "job", cdi.NewBean("job").Types(CartType).Scope("Batch"), func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
			return new(Cart), nil
		}),
	)
	require.NoError(t, err)

	sc, ok := c.Scope("Batch")
	require.True(t, ok)
	require.True(t, sc.Normal())
	batch, ok := sc.(*cdi.BoundScope)
	require.True(t, ok)

	first, err := batch.Activate(context.Background(), "b1")
	require.NoError(t, err)
	second, err := batch.Activate(context.Background(), "b2")
	require.NoError(t, err)

	job1 := cdi.MustGet[*Cart](first, c)
	require.True(t, cdi.MustGet[*Cart](first, c) == job1)
	require.True(t, cdi.MustGet[*Cart](second, c) != job1)

	require.NoError(t, batch.Deactivate(first))
	require.Equal(t, []string{"create job", "create job", "destroy job"}, j.list())

	require.NoError(t, c.Shutdown())
	require.Equal(t, []string{"create job", "create job", "destroy job", "destroy job"}, j.list())
}

func TestUnknownScope(t *testing.T) {

	_, err := cdi.New(
		cdi.NewBean("job").Types(CartType).Scope("Nope").Factory(func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
			return new(Cart), nil
		}),
	)
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "unknown scope 'Nope'"))

	_, err = cdi.New(
		cdi.ScopeDefinition{Kind: "Batch"},
		cdi.ScopeDefinition{Kind: "Batch"},
	)
	require.Error(t, err)
	require.Equal(t, "scope 'Batch' is already defined", err.Error())

	_, err = cdi.New(cdi.ScopeDefinition{Kind: cdi.RequestScoped})
	require.Error(t, err)
}

func TestConcurrentCreation(t *testing.T) {

	const n = 4

	var entered sync.WaitGroup
	entered.Add(n)

	j := new(journal)
	registry := metrics.NewRegistry()
	c, err := cdi.New(
		cdi.Metrics{Registry: registry},
		journaled(j, "engine", cdi.NewBean("engine").Types(EngineType).Scope(cdi.ApplicationScoped), func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
			entered.Done()
			entered.Wait()
			return &Engine{Power: 100}, nil
		}),
	)
	require.NoError(t, err)

	results := make([]*Engine, n)
	errs := make([]error, n)
	var done sync.WaitGroup
	for i := 0; i < n; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			results[i], errs[i] = cdi.Get[*Engine](context.Background(), c)
		}(i)
	}
	done.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.True(t, results[i] == results[0])
	}

	require.True(t, c.Metrics() == registry)
	require.Equal(t, int64(n), registry.Get(cdi.InstancesCreatedCounter).(metrics.Counter).Count())
	require.Equal(t, int64(n-1), registry.Get(cdi.StoreRacesCounter).(metrics.Counter).Count())
	require.Equal(t, int64(n-1), registry.Get(cdi.InstancesDestroyedCounter).(metrics.Counter).Count())

	require.NoError(t, c.Shutdown())
	require.Equal(t, int64(n), registry.Get(cdi.InstancesDestroyedCounter).(metrics.Counter).Count())

	creates := 0
	for _, line := range j.list() {
		if line == "create engine" {
			creates++
		}
	}
	require.Equal(t, n, creates)
}

/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi_test

import (
	"context"
	"github.com/codeallergy/cdi"
	"github.com/stretchr/testify/require"
	"strings"
	"sync"
	"testing"
)

/**
Records lifecycle callbacks of test beans in order
*/
type journal struct {
	mu    sync.Mutex
	lines []string
}

func (t *journal) add(line string) {
	t.mu.Lock()
	t.lines = append(t.lines, line)
	t.mu.Unlock()
}

func (t *journal) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.lines...)
}

type Engine struct {
	Power int
}

type Car struct {
	Engine *Engine
}

var (
	EngineType = cdi.TypeOf[*Engine]()
	CarType    = cdi.TypeOf[*Car]()
)

/**
Factory returning a fresh object built by fn, recording creation and destruction in the journal
*/
func journaled(j *journal, id string, b *cdi.BeanBuilder, fn func(ctx context.Context, cc *cdi.Creational) (interface{}, error)) *cdi.BeanBuilder {
	return b.Factory(func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
		obj, err := fn(ctx, cc)
		if err == nil {
			j.add("create " + id)
		}
		return obj, err
	}).Destroyer(func(ctx context.Context, object interface{}) error {
		j.add("destroy " + id)
		return nil
	})
}

func engineBean(j *journal, scope cdi.ScopeKind) *cdi.BeanBuilder {
	return journaled(j, "engine", cdi.NewBean("engine").Types(EngineType).Scope(scope), func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
		return &Engine{Power: 300}, nil
	})
}

func carBean(j *journal, scope cdi.ScopeKind) *cdi.BeanBuilder {
	return journaled(j, "car", cdi.NewBean("car").Types(CarType).Scope(scope).Inject(cdi.Inject(EngineType).Named("engine")), func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
		engine, err := cdi.ValueAs[*Engine](ctx, cc, 0)
		if err != nil {
			return nil, err
		}
		return &Car{Engine: engine}, nil
	})
}

func TestCarEngine(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(
		engineBean(j, cdi.ApplicationScoped),
		carBean(j, cdi.Dependent),
	)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := cdi.Get[*Car](ctx, c)
	require.NoError(t, err)
	second, err := cdi.Get[*Car](ctx, c)
	require.NoError(t, err)

	require.True(t, first != second)
	require.True(t, first.Engine == second.Engine)
	require.Equal(t, 300, first.Engine.Power)

	require.NoError(t, c.Shutdown())
	require.Equal(t, []string{"create engine", "create car", "create car", "destroy car", "destroy car", "destroy engine"}, j.list())
}

func TestSharedCarDependentEngine(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(
		engineBean(j, cdi.Dependent),
		carBean(j, cdi.ApplicationScoped),
	)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := cdi.Get[*Car](ctx, c)
	require.NoError(t, err)
	second, err := cdi.Get[*Car](ctx, c)
	require.NoError(t, err)

	require.True(t, first == second)
	require.Equal(t, []string{"create engine", "create car"}, j.list())

	require.NoError(t, c.Shutdown())
	require.Equal(t, []string{"create engine", "create car", "destroy car", "destroy engine"}, j.list())
}

func TestSessionCarDependentEngine(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(
		engineBean(j, cdi.Dependent),
		carBean(j, cdi.SessionScoped),
	)
	require.NoError(t, err)
	defer c.Shutdown()

	sessions := c.SessionScope()
	ctx, err := sessions.Activate(context.Background(), "driver")
	require.NoError(t, err)

	car := cdi.MustGet[*Car](ctx, c)
	require.True(t, cdi.MustGet[*Car](ctx, c) == car)
	require.Equal(t, []string{"create engine", "create car"}, j.list())

	require.NoError(t, sessions.Deactivate(ctx))
	require.Equal(t, []string{"create engine", "create car", "destroy car", "destroy engine"}, j.list())
}

func TestShutdownOnce(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(engineBean(j, cdi.ApplicationScoped))
	require.NoError(t, err)

	_, err = cdi.Get[*Engine](context.Background(), c)
	require.NoError(t, err)

	require.NoError(t, c.Shutdown())
	require.NoError(t, c.Shutdown())
	require.Equal(t, []string{"create engine", "destroy engine"}, j.list())

	_, err = cdi.Get[*Engine](context.Background(), c)
	require.Error(t, err)
	_, notActive := err.(*cdi.ContextNotActiveError)
	require.True(t, notActive)
}

type garage struct {
	beans []interface{}
}

func (t garage) Beans() []interface{} {
	return t.beans
}

func TestScan(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(
		cdi.Verbose{Log: nil},
		garage{beans: []interface{}{
			engineBean(j, cdi.Singleton),
			[]interface{}{carBean(j, cdi.Dependent)},
		}},
		[]*cdi.Observer{
			cdi.NewObserver("noop", CarType).Notify(func(ctx context.Context, instance interface{}, event interface{}, meta cdi.EventMetadata) error {
				return nil
			}).MustBuild(),
		},
		cdi.ScopeDefinition{Kind: "Batch", Normal: true},
	)
	require.NoError(t, err)
	defer c.Shutdown()

	_, ok := c.Bean("engine")
	require.True(t, ok)
	_, ok = c.Scope("Batch")
	require.True(t, ok)
	require.Equal(t, 1, len(c.ResolveObservers(cdi.Closure(CarType))))

	ids := make([]string, 0)
	for _, b := range c.Beans() {
		ids = append(ids, b.ID())
	}
	require.Equal(t, []string{cdi.ContainerBeanID, cdi.ConversationBeanID, cdi.EventBeanID, "car", "engine"}, ids)
	require.True(t, strings.HasPrefix(c.String(), "Container [beans=5, observers=1"))
}

func TestScanUnknownObject(t *testing.T) {

	c, err := cdi.New(&Engine{})
	require.Error(t, err)
	require.Nil(t, c)
	require.True(t, strings.Contains(err.Error(), "unknown object type '*cdi_test.Engine'"))
}

func TestScanDuplicateID(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(
		engineBean(j, cdi.Dependent),
		engineBean(j, cdi.Dependent),
	)
	require.Error(t, err)
	require.Nil(t, c)
	dup, ok := err.(*cdi.DuplicateIdError)
	require.True(t, ok)
	require.Equal(t, "engine", dup.ID)
}

func TestContainerBuiltin(t *testing.T) {

	type holder struct {
		c cdi.Container
	}

	c, err := cdi.New(
		cdi.NewBean("holder").
			Types(cdi.TypeOf[*holder]()).
			Inject(cdi.Inject(cdi.ContainerType)).
			Factory(func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
				self, err := cdi.ValueAs[cdi.Container](ctx, cc, 0)
				return &holder{c: self}, err
			}),
	)
	require.NoError(t, err)
	defer c.Shutdown()

	h, err := cdi.Get[*holder](context.Background(), c)
	require.NoError(t, err)
	require.True(t, h.c == c)

	require.Equal(t, cdi.TypeOf[cdi.Container](), cdi.ContainerType)
	b, err := c.Resolve(cdi.TypeOf[cdi.Container]())
	require.NoError(t, err)
	require.Equal(t, cdi.ContainerBeanID, b.ID())
}

func TestObtainForeignBean(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(engineBean(j, cdi.Dependent))
	require.NoError(t, err)
	defer c.Shutdown()

	foreign := engineBean(j, cdi.Dependent).MustBuild()
	_, err = c.Obtain(context.Background(), foreign)
	require.Error(t, err)
}

/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi_test

import (
	"context"
	"fmt"
	"github.com/codeallergy/cdi"
	"github.com/stretchr/testify/require"
	"strings"
	"testing"
)

type connFactory struct {
	url    string
	opened int
}

type Conn struct {
	id     int
	closed bool
}

var (
	connFactoryType = cdi.TypeOf[*connFactory]()
	ConnType        = cdi.TypeOf[*Conn]()
	URLType         = cdi.Type("test.URL")
)

func connBeans(j *journal) []interface{} {

	factory := journaled(j, "factory", cdi.NewBean("factory").Types(connFactoryType).Scope(cdi.ApplicationScoped), func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
		return &connFactory{url: "db://local"}, nil
	})

	conn := cdi.NewBean("conn").Types(ConnType).
		Produces("factory", func(ctx context.Context, declaring interface{}, cc *cdi.Creational) (interface{}, error) {
			f := declaring.(*connFactory)
			f.opened++
			j.add(fmt.Sprintf("open conn %d", f.opened))
			return &Conn{id: f.opened}, nil
		}).
		Disposer(func(ctx context.Context, declaring interface{}, object interface{}) error {
			c := object.(*Conn)
			c.closed = true
			j.add(fmt.Sprintf("close conn %d by %s", c.id, declaring.(*connFactory).url))
			return nil
		})

	url := cdi.NewBean("url").Types(URLType).
		ProducesField("factory", func(declaring interface{}) interface{} {
			return declaring.(*connFactory).url
		})

	return []interface{}{factory, conn, url}
}

func TestProducerMethod(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(connBeans(j))
	require.NoError(t, err)

	ctx := context.Background()

	first, err := cdi.Get[*Conn](ctx, c)
	require.NoError(t, err)
	second, err := cdi.Get[*Conn](ctx, c)
	require.NoError(t, err)
	require.Equal(t, 1, first.id)
	require.Equal(t, 2, second.id)

	b, ok := c.Bean("conn")
	require.True(t, ok)
	require.Equal(t, cdi.ProducerMethod, b.Kind())
	require.Equal(t, "factory", b.DeclaringBean())

	require.NoError(t, c.Shutdown())
	require.True(t, first.closed)
	require.True(t, second.closed)

	require.Equal(t, []string{
		"create factory",
		"open conn 1",
		"open conn 2",
		"close conn 2 by db://local",
		"close conn 1 by db://local",
		"destroy factory",
	}, j.list())
}

func TestProducerField(t *testing.T) {

	j := new(journal)
	c, err := cdi.New(connBeans(j))
	require.NoError(t, err)
	defer c.Shutdown()

	b, err := c.Resolve(URLType)
	require.NoError(t, err)
	require.Equal(t, cdi.ProducerField, b.Kind())

	inst, err := c.Obtain(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, "db://local", inst.Object())
}

type widgetBuilder struct {
	color string
}

type Widget struct {
	Color string
}

func TestDependentDeclaringBean(t *testing.T) {

	j := new(journal)
	builder := journaled(j, "builder", cdi.NewBean("builder").Types(cdi.TypeOf[*widgetBuilder]()), func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
		return &widgetBuilder{color: "red"}, nil
	})
	widget := cdi.NewBean("widget").Types(cdi.TypeOf[*Widget]()).
		Produces("builder", func(ctx context.Context, declaring interface{}, cc *cdi.Creational) (interface{}, error) {
			j.add("produce widget")
			return &Widget{Color: declaring.(*widgetBuilder).color}, nil
		})

	c, err := cdi.New(builder, widget)
	require.NoError(t, err)
	defer c.Shutdown()

	w, err := cdi.Get[*Widget](context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, "red", w.Color)

	require.Equal(t, []string{"create builder", "produce widget", "destroy builder"}, j.list())
}

func TestProducerWithoutDeclaringBean(t *testing.T) {

	widget := cdi.NewBean("widget").Types(cdi.TypeOf[*Widget]()).
		Produces("builder", func(ctx context.Context, declaring interface{}, cc *cdi.Creational) (interface{}, error) {
			return &Widget{}, nil
		})

	_, err := cdi.New(widget)
	require.Error(t, err)

	derr, ok := err.(*cdi.DeploymentError)
	require.True(t, ok)
	require.Equal(t, 1, len(derr.Errors))
	require.True(t, strings.Contains(derr.Errors[0].Error(), "declaring bean 'builder' not found"))
}

func TestProducerInjection(t *testing.T) {

	j := new(journal)
	type repository struct {
		conn *Conn
	}
	repo := cdi.NewBean("repository").
		Types(cdi.TypeOf[*repository]()).
		Inject(cdi.Inject(ConnType)).
		Factory(func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
			conn, err := cdi.ValueAs[*Conn](ctx, cc, 0)
			return &repository{conn: conn}, err
		})

	c, err := cdi.New(connBeans(j), repo)
	require.NoError(t, err)

	r, err := cdi.Get[*repository](context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, 1, r.conn.id)

	b, ok := c.Bean("repository")
	require.True(t, ok)
	require.Equal(t, 1, len(b.InjectionPoints()))

	require.NoError(t, c.Shutdown())
	require.True(t, r.conn.closed)
}

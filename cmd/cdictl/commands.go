/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package main

import (
	"context"
	"fmt"
	"github.com/codeallergy/cdi"
	"github.com/codeallergy/cdi/manifest"
	"github.com/davecgh/go-spew/spew"
	uuid "github.com/nu7hatch/gouuid"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"sort"
	"strings"
)

type validateCmd struct{}

func (c *validateCmd) registerFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [manifest]",
		Short: "Validate the deployment and print every problem",
	}
}

func (c *validateCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	m, err := cl.load(args)
	if err != nil {
		return err
	}
	d, err := cl.deployment(m)
	if err == nil {
		err = d.Validate()
	}
	if err != nil {
		if derr, ok := err.(*cdi.DeploymentError); ok {
			for _, e := range derr.Errors {
				cl.printf("%v\n", e)
			}
			return errors.Errorf("deployment has %d problem(s)", len(derr.Errors))
		}
		return err
	}
	cl.printf("OK %d beans, %d observers\n", len(d.Beans()), len(d.Observers()))
	return nil
}

type resolveCmd struct {
	typ        string
	qualifiers []string
}

func (c *resolveCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "resolve [manifest]",
		Short: "Explain which bean satisfies the type and qualifiers",
	}
	r.Flags().StringVar(&c.typ, "type", "", "contract type")
	r.Flags().StringArrayVar(&c.qualifiers, "qualifier", nil, "required qualifier, for example 'Named(value=db)'")
	return r
}

func (c *resolveCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	if c.typ == "" {
		return errors.New("a type must be provided")
	}
	qualifiers, err := manifest.ParseQualifiers(c.qualifiers)
	if err != nil {
		return err
	}
	m, err := cl.load(args)
	if err != nil {
		return err
	}
	d, err := cl.deployment(m)
	if err != nil {
		return err
	}
	b, err := d.Resolve(cdi.Type(c.typ), qualifiers...)
	if err != nil {
		return err
	}
	cl.printf("%s\n", b.ID())
	for _, other := range d.ResolveAll(cdi.Type(c.typ), qualifiers...) {
		if other != b {
			cl.printf("  also available %s\n", other.ID())
		}
	}
	return nil
}

type observersCmd struct {
	types      string
	qualifiers []string
}

func (c *observersCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "observers [manifest]",
		Short: "Print observers of the event in delivery order",
	}
	r.Flags().StringVar(&c.types, "type", "", "event type closure, the most specific first, for example 'Dog,Animal'")
	r.Flags().StringArrayVar(&c.qualifiers, "qualifier", nil, "event qualifier")
	return r
}

func (c *observersCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	if c.types == "" {
		return errors.New("a type must be provided")
	}
	qualifiers, err := manifest.ParseQualifiers(c.qualifiers)
	if err != nil {
		return err
	}
	m, err := cl.load(args)
	if err != nil {
		return err
	}
	d, err := cl.deployment(m)
	if err != nil {
		return err
	}
	closure := manifest.ParseTypes(c.types)
	for i, o := range d.ResolveObservers(closure, qualifiers...) {
		cl.printf("%d. %s observes %s priority=%d specificity=%d\n", i+1, o.ID(), o.ObservedType(), o.Priority(), closure.IndexOf(o.ObservedType()))
	}
	return nil
}

type simulateCmd struct {
	bean     string
	requests int
	session  string
}

func (c *simulateCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "simulate [manifest]",
		Short: "Deploy with stub factories and obtain the bean in a number of requests",
	}
	r.Flags().StringVar(&c.bean, "bean", "", "bean id to obtain")
	r.Flags().IntVar(&c.requests, "requests", 1, "number of requests")
	r.Flags().StringVar(&c.session, "session", "", "session id, generated if empty")
	return r
}

func (c *simulateCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	if c.bean == "" {
		return errors.New("a bean id must be provided")
	}
	m, err := cl.load(args)
	if err != nil {
		return err
	}
	d, err := cl.deployment(m)
	if err != nil {
		return err
	}
	container, err := d.Deploy()
	if err != nil {
		return err
	}
	b, ok := container.Bean(c.bean)
	if !ok {
		container.Shutdown()
		return errors.Errorf("bean '%s' not found", c.bean)
	}

	sid := c.session
	if sid == "" {
		u, err := uuid.NewV4()
		if err != nil {
			return err
		}
		sid = u.String()
	}

	for i := 0; i < c.requests; i++ {
		if err := c.request(cl, container, b, sid, i); err != nil {
			container.Shutdown()
			return err
		}
	}

	if err := container.SessionScope().Destroy(sid); err != nil {
		cl.log.Warnf("Destroy session '%s', %v", sid, err)
	}
	if err := container.Shutdown(); err != nil {
		return err
	}
	printMetrics(cl, container.Metrics())
	return nil
}

/**
One unit of work with request, session and transient conversation activated
*/
func (c *simulateCmd) request(cl *cli, container cdi.Container, b *cdi.Bean, sid string, n int) (err error) {
	reqCtx, err := container.RequestScope().Activate(context.Background(), "")
	if err != nil {
		return err
	}
	defer func() {
		if derr := container.RequestScope().Deactivate(reqCtx); derr != nil && err == nil {
			err = derr
		}
	}()
	ctx, err := container.SessionScope().Activate(reqCtx, sid)
	if err != nil {
		return err
	}
	if ctx, err = container.ConversationScope().Activate(ctx, ""); err != nil {
		return err
	}
	convCtx := ctx
	defer func() {
		if derr := container.ConversationScope().Deactivate(convCtx); derr != nil && err == nil {
			err = derr
		}
	}()

	key, _ := container.RequestScope().Key(ctx)
	cl.log.WithFields(logrus.Fields{"request": n, "key": key, "session": sid}).Info("Request")

	inst, err := container.Obtain(ctx, b)
	if err != nil {
		return err
	}
	if b.Scope() == cdi.Dependent {
		return container.Release(ctx, inst)
	}
	return nil
}

func printMetrics(cl *cli, r metrics.Registry) {
	lines := make(map[string]string)
	var names []string
	r.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case metrics.Counter:
			lines[name] = fmt.Sprintf("%d", m.Count())
		case metrics.Gauge:
			lines[name] = fmt.Sprintf("%d", m.Value())
		case metrics.Timer:
			lines[name] = fmt.Sprintf("count=%d mean=%.0fns", m.Count(), m.Mean())
		default:
			return
		}
		names = append(names, name)
	})
	sort.Strings(names)
	for _, name := range names {
		cl.printf("%s %s\n", name, lines[name])
	}
}

type describeCmd struct {
	dump bool
}

func (c *describeCmd) registerFlags() *cobra.Command {
	r := &cobra.Command{
		Use:   "describe [manifest]",
		Short: "List beans and observers of the manifest",
	}
	r.Flags().BoolVar(&c.dump, "dump", false, "dump descriptors")
	return r
}

func (c *describeCmd) run(cl *cli, cmd *cobra.Command, args []string) error {
	m, err := cl.load(args)
	if err != nil {
		return err
	}
	if c.dump {
		conf := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}
		conf.Fdump(cl.out, m)
		return nil
	}
	d, err := cl.deployment(m)
	if err != nil {
		return err
	}
	for _, b := range d.Beans() {
		types := make([]string, len(b.Types()))
		for i, typ := range b.Types() {
			types[i] = string(typ)
		}
		cl.printf("%s %s %s [%s] %s\n", b.ID(), b.Kind(), b.Scope(), strings.Join(types, ", "), b.Qualifiers())
	}
	for _, o := range d.Observers() {
		cl.printf("%s\n", o)
	}
	return nil
}

/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
	"fmt"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
)

/**
Option configures the deployment, see Verbose, Config, Metrics and Transactions
*/
type Option interface {
	apply(c *container)
}

/**
Use this option to defer transactional observers through the host transaction manager
*/
type Transactions struct {
	Services TransactionServices
}

func (t Transactions) apply(c *container) {
	c.tx = t.Services
}

type container struct {
	config  *Config
	log     logrus.FieldLogger
	verbose bool
	metrics metrics.Registry
	stats   *containerStats
	tx      TransactionServices

	/**
	Problems found before validation, reported by it
	*/
	optionErrs []error

	registry *registry
	resolver *resolver
	mgr      *manager

	application   *SharedScope
	singleton     *SharedScope
	request       *BoundScope
	session       *SessionScope
	conversations *ConversationScope

	scopesMu sync.RWMutex
	scopes   map[ScopeKind]Scope
	custom   []*BoundScope

	builtinsOnce sync.Once
	deployed     int32

	/**
	Bootstrap order and enabled interceptors and decorators per bean, computed on deploy
	*/
	order        []*Bean
	interceptors map[string][]*Bean
	decorators   map[string][]*Bean

	/**
	Guarantees that container would be shut down once
	*/
	shutdownOnce sync.Once
	shutdownErr  error
}

func newContainer(opts []Option) *container {
	t := &container{
		config:  DefaultConfig(),
		log:     silentLogger(),
		metrics: metrics.NewRegistry(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(t)
		}
	}
	if !t.verbose && t.config.LogLevel != "" {
		if log, err := NewLogger(t.config.LogLevel); err != nil {
			t.optionErrs = append(t.optionErrs, errors.Wrap(err, "config logLevel"))
		} else {
			t.log = log
		}
	}
	t.stats = newContainerStats(t.metrics)
	t.registry = newRegistry()
	t.resolver = newResolver(t.registry, t.stats, t.config.Alternatives)
	t.mgr = &manager{c: t}
	t.application = newSharedScope(t, ApplicationScoped, true)
	t.singleton = newSharedScope(t, Singleton, false)
	t.request = newBoundScope(t, ScopeDefinition{Kind: RequestScoped, Normal: true})
	t.session = newSessionScope(t)
	t.conversations = newConversationScope(t, t.config.ConversationTimeout, t.config.ConcurrentAccessTimeout)
	t.scopes = map[ScopeKind]Scope{
		ApplicationScoped:  t.application,
		Singleton:          t.singleton,
		RequestScoped:      t.request,
		SessionScoped:      t.session,
		ConversationScoped: t.conversations,
		Dependent:          dependentScope{},
	}
	return t
}

/**
New scans beans, observers, scope definitions and options, registers them and deploys the container.
Nested slices and Scanner values are scanned recursively.

Example:
	c, err := cdi.New(
		cdi.Verbose{Log: logrus.New()},
		engineBean,
		carBean,
	)
*/
func New(scan ...interface{}) (Container, error) {

	var opts []Option
	var scopes []ScopeDefinition
	var beans []*Bean
	var observers []*Observer

	err := forEach("", scan, func(pos string, obj interface{}) error {
		switch instance := obj.(type) {
		case *Bean:
			beans = append(beans, instance)
		case *BeanBuilder:
			b, err := instance.Build()
			if err != nil {
				return err
			}
			beans = append(beans, b)
		case *Observer:
			observers = append(observers, instance)
		case *ObserverBuilder:
			o, err := instance.Build()
			if err != nil {
				return err
			}
			observers = append(observers, o)
		case ScopeDefinition:
			scopes = append(scopes, instance)
		case *ScopeDefinition:
			scopes = append(scopes, *instance)
		case Option:
			opts = append(opts, instance)
		default:
			return errors.Errorf("unknown object type '%T' on position '%s'", obj, pos)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	d := NewDeployment(opts...)
	for _, def := range scopes {
		if err := d.AddScope(def); err != nil {
			return nil, err
		}
	}
	for _, b := range beans {
		if err := d.RegisterBean(b); err != nil {
			return nil, err
		}
	}
	for _, o := range observers {
		if err := d.RegisterObserver(o); err != nil {
			return nil, err
		}
	}
	return d.Deploy()
}

func forEach(initialPos string, scan []interface{}, cb func(i string, obj interface{}) error) error {
	for j, item := range scan {
		var pos string
		if len(initialPos) > 0 {
			pos = fmt.Sprintf("%s.%d", initialPos, j)
		} else {
			pos = strconv.Itoa(j)
		}
		if item == nil {
			continue
		}
		switch obj := item.(type) {
		case Scanner:
			if err := forEach(pos, obj.Beans(), cb); err != nil {
				return err
			}
		case []interface{}:
			if err := forEach(pos, obj, cb); err != nil {
				return err
			}
		case []*Bean:
			for i, b := range obj {
				if err := cb(fmt.Sprintf("%s.%d", pos, i), b); err != nil {
					return err
				}
			}
		case []*Observer:
			for i, o := range obj {
				if err := cb(fmt.Sprintf("%s.%d", pos, i), o); err != nil {
					return err
				}
			}
		default:
			if err := cb(pos, obj); err != nil {
				return errors.Errorf("object '%T' error, %v", item, err)
			}
		}
	}
	return nil
}

func (t *container) scope(kind ScopeKind) (Scope, bool) {
	t.scopesMu.RLock()
	defer t.scopesMu.RUnlock()
	sc, ok := t.scopes[kind]
	return sc, ok
}

func (t *container) isNormal(kind ScopeKind) bool {
	sc, ok := t.scope(kind)
	return ok && sc.Normal()
}

func (t *container) addScope(def ScopeDefinition) error {
	if def.Kind == "" {
		return errors.New("empty scope kind")
	}
	if atomic.LoadInt32(&t.deployed) == 1 {
		return errors.Errorf("scope '%s' added after deployment", def.Kind)
	}
	t.scopesMu.Lock()
	defer t.scopesMu.Unlock()
	if _, ok := t.scopes[def.Kind]; ok {
		return errors.Errorf("scope '%s' is already defined", def.Kind)
	}
	sc := newBoundScope(t, def)
	t.scopes[def.Kind] = sc
	t.custom = append(t.custom, sc)
	return nil
}

func (t *container) Resolve(typ Type, qualifiers ...Qualifier) (*Bean, error) {
	return t.resolver.resolve(typ, qualifiers)
}

func (t *container) ResolveAll(typ Type, qualifiers ...Qualifier) []*Bean {
	return t.resolver.resolveAll(typ, qualifiers)
}

func (t *container) ResolveObservers(closure TypeClosure, qualifiers ...Qualifier) []*Observer {
	return t.resolver.resolveObservers(Closure(closure...), qualifiers)
}

func (t *container) Obtain(ctx context.Context, b *Bean) (*Instance, error) {
	if b == nil {
		return nil, errors.New("obtain of nil bean")
	}
	if reg, ok := t.registry.findByID(b.id); !ok || reg != b {
		return nil, errors.Errorf("bean '%s' is not registered in the container", b.id)
	}
	return t.mgr.obtain(ctx, b, nil, nil)
}

func (t *container) Release(ctx context.Context, instance *Instance) error {
	return t.mgr.release(ctx, instance)
}

func (t *container) Reference(b *Bean) (*Reference, error) {
	if b == nil {
		return nil, errors.New("reference of nil bean")
	}
	return t.reference(b)
}

func (t *container) Fire(ctx context.Context, event interface{}, closure TypeClosure, qualifiers ...Qualifier) error {
	return t.fire(ctx, event, closure, qualifiers)
}

func (t *container) Event(closure TypeClosure, qualifiers ...Qualifier) *Event {
	return &Event{c: t, closure: closure, qualifiers: dedupQualifiers(qualifiers)}
}

func (t *container) Bean(id string) (*Bean, bool) {
	return t.registry.findByID(id)
}

func (t *container) Beans() []*Bean {
	if t.order != nil {
		return append([]*Bean(nil), t.order...)
	}
	return bootstrapOrder(t.registry.list())
}

func (t *container) ApplicationScope() *SharedScope {
	return t.application
}

func (t *container) SingletonScope() *SharedScope {
	return t.singleton
}

func (t *container) RequestScope() *BoundScope {
	return t.request
}

func (t *container) SessionScope() *SessionScope {
	return t.session
}

func (t *container) ConversationScope() *ConversationScope {
	return t.conversations
}

func (t *container) Scope(kind ScopeKind) (Scope, bool) {
	return t.scope(kind)
}

func (t *container) Metrics() metrics.Registry {
	return t.metrics
}

// destroy in reverse activation order, application last
func (t *container) Shutdown() error {
	t.shutdownOnce.Do(func() {
		t.log.Debug("Shutdown")
		ctx := context.Background()

		var listErr []error
		collect := func(err error) {
			if err != nil {
				t.log.Warnf("Shutdown error, %v", err)
				listErr = append(listErr, err)
			}
		}

		collect(t.conversations.deactivateAll())
		collect(t.request.deactivateAll())
		t.scopesMu.RLock()
		custom := append([]*BoundScope(nil), t.custom...)
		t.scopesMu.RUnlock()
		for j := len(custom) - 1; j >= 0; j-- {
			collect(custom[j].deactivateAll())
		}
		collect(t.session.deactivateAll())
		collect(t.mgr.releaseUnowned(ctx))
		collect(t.singleton.Deactivate())
		collect(t.application.Deactivate())

		t.shutdownErr = multipleErr(listErr)
	})
	return t.shutdownErr
}

func (t *container) String() string {
	return fmt.Sprintf("Container [beans=%d, observers=%d, deployed=%v]", len(t.registry.list()), len(t.registry.observerList()), atomic.LoadInt32(&t.deployed) == 1)
}

/**
Enabled interceptors bound to the bean, the first one is invoked first
*/
func (t *container) interceptorsFor(b *Bean) []*Bean {
	if t.interceptors != nil {
		return t.interceptors[b.id]
	}
	return t.computeInterceptors(b)
}

func (t *container) computeInterceptors(b *Bean) []*Bean {
	if !b.kind.resolvable() || b.kind == BuiltIn || len(b.interceptorBindings) == 0 {
		return nil
	}
	var list []*Bean
	for _, ic := range t.registry.list() {
		if ic.kind != Interceptor || !t.enabled(ic, t.config.Interceptors) {
			continue
		}
		for _, name := range ic.interceptorBindings {
			if b.hasBinding(name) {
				list = append(list, ic)
				break
			}
		}
	}
	t.sortEnabled(list, t.config.Interceptors)
	return list
}

/**
Enabled decorators of the bean, the first one is the outermost
*/
func (t *container) decoratorsFor(b *Bean) []*Bean {
	if t.decorators != nil {
		return t.decorators[b.id]
	}
	return t.computeDecorators(b)
}

func (t *container) computeDecorators(b *Bean) []*Bean {
	if !b.kind.resolvable() || b.kind == BuiltIn {
		return nil
	}
	var list []*Bean
	for _, d := range t.registry.list() {
		if d.kind != Decorator || !t.enabled(d, t.config.Decorators) {
			continue
		}
		if !b.matches(d.delegateQualifiers) {
			continue
		}
		for _, typ := range d.decorates {
			if b.HasType(typ) {
				list = append(list, d)
				break
			}
		}
	}
	t.sortEnabled(list, t.config.Decorators)
	return list
}

func (t *container) enabled(b *Bean, configured []string) bool {
	return b.hasPriority || t.config.enabledIndex(configured, b.id) >= 0
}

/**
Prioritized first in ascending priority, then configured ones in configuration order
*/
func (t *container) sortEnabled(list []*Bean, configured []string) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.hasPriority != b.hasPriority {
			return a.hasPriority
		}
		if a.hasPriority {
			if a.priority != b.priority {
				return a.priority < b.priority
			}
			return a.id < b.id
		}
		return t.config.enabledIndex(configured, a.id) < t.config.enabledIndex(configured, b.id)
	})
}

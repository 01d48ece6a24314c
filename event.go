/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
	"fmt"
	"github.com/sirupsen/logrus"
)

const DefaultObserverPriority = 2500

type Reception int

const (
	Always Reception = iota

	/**
	Notify only if the declaring bean already has an instance in its active scope
	*/
	IfExists
)

func (t Reception) String() string {
	switch t {
	case Always:
		return "Always"
	case IfExists:
		return "IfExists"
	default:
		return "Unknown"
	}
}

type TransactionPhase int

const (
	InProgress TransactionPhase = iota
	BeforeCompletion
	AfterCompletion
	AfterFailure
	AfterSuccess
)

func (t TransactionPhase) String() string {
	switch t {
	case InProgress:
		return "InProgress"
	case BeforeCompletion:
		return "BeforeCompletion"
	case AfterCompletion:
		return "AfterCompletion"
	case AfterFailure:
		return "AfterFailure"
	case AfterSuccess:
		return "AfterSuccess"
	default:
		return "Unknown"
	}
}

/**
EventMetadata describes the fired event to the observer
*/
type EventMetadata struct {
	Types      TypeClosure
	Qualifiers Qualifiers
}

/**
NotifyFunc receives the event, instance is the object of the declaring bean or nil for static observers
*/
type NotifyFunc func(ctx context.Context, instance interface{}, event interface{}, meta EventMetadata) error

/**
Observer is the immutable descriptor of one observer method
*/
type Observer struct {
	id           string
	observedType Type

	/**
	Qualifiers the event must carry, empty observes every event of the type
	*/
	qualifiers Qualifiers

	reception     Reception
	phase         TransactionPhase
	declaringBean string
	priority      int
	notify        NotifyFunc

	/**
	Registration sequence
	*/
	seq int64
}

func (t *Observer) ID() string {
	return t.id
}

func (t *Observer) ObservedType() Type {
	return t.observedType
}

func (t *Observer) Qualifiers() Qualifiers {
	return t.qualifiers
}

func (t *Observer) Reception() Reception {
	return t.reception
}

func (t *Observer) Phase() TransactionPhase {
	return t.phase
}

func (t *Observer) DeclaringBean() string {
	return t.declaringBean
}

func (t *Observer) Priority() int {
	return t.priority
}

func (t *Observer) String() string {
	return fmt.Sprintf("<Observer %s %s%s priority=%d>", t.id, t.observedType, t.qualifiers, t.priority)
}

type ObserverBuilder struct {
	o Observer
}

func NewObserver(id string, observed Type) *ObserverBuilder {
	return &ObserverBuilder{o: Observer{id: id, observedType: observed, priority: DefaultObserverPriority}}
}

func (t *ObserverBuilder) Qualifiers(qualifiers ...Qualifier) *ObserverBuilder {
	t.o.qualifiers = append(t.o.qualifiers, qualifiers...)
	return t
}

func (t *ObserverBuilder) Reception(reception Reception) *ObserverBuilder {
	t.o.reception = reception
	return t
}

func (t *ObserverBuilder) Phase(phase TransactionPhase) *ObserverBuilder {
	t.o.phase = phase
	return t
}

func (t *ObserverBuilder) DeclaredBy(beanID string) *ObserverBuilder {
	t.o.declaringBean = beanID
	return t
}

func (t *ObserverBuilder) Priority(priority int) *ObserverBuilder {
	t.o.priority = priority
	return t
}

func (t *ObserverBuilder) Notify(fn NotifyFunc) *ObserverBuilder {
	t.o.notify = fn
	return t
}

func (t *ObserverBuilder) Build() (*Observer, error) {
	o := t.o
	if o.id == "" {
		return nil, definitionErrorf("", "empty observer id")
	}
	if o.observedType == "" {
		return nil, definitionErrorf(o.id, "observer without observed type")
	}
	if o.notify == nil {
		return nil, definitionErrorf(o.id, "observer without notify function")
	}
	if o.reception == IfExists && o.declaringBean == "" {
		return nil, definitionErrorf(o.id, "static observer can not be conditional")
	}
	o.qualifiers = dedupQualifiers(o.qualifiers)
	return &o, nil
}

func (t *ObserverBuilder) MustBuild() *Observer {
	o, err := t.Build()
	if err != nil {
		panic(err)
	}
	return o
}

/**
Event is the injectable handle firing events with fixed qualifiers
*/
type Event struct {
	c          *container
	closure    TypeClosure
	qualifiers Qualifiers
}

/**
Returns a child handle with additional qualifiers
*/
func (t *Event) Select(qualifiers ...Qualifier) *Event {
	list := append(append(Qualifiers(nil), t.qualifiers...), qualifiers...)
	return &Event{c: t.c, closure: t.closure, qualifiers: dedupQualifiers(list)}
}

/**
Returns a handle firing with the given closure, empty closure means the dynamic type of the event
*/
func (t *Event) WithTypes(closure TypeClosure) *Event {
	return &Event{c: t.c, closure: closure, qualifiers: t.qualifiers}
}

func (t *Event) Fire(ctx context.Context, event interface{}) error {
	return t.c.fire(ctx, event, t.closure, t.qualifiers)
}

func (t *Event) Qualifiers() Qualifiers {
	return t.qualifiers
}

func (t *Event) Types() TypeClosure {
	return t.closure
}

/**
Delivers the event to observers in order, the first failure stops delivery
*/
func (t *container) fire(ctx context.Context, event interface{}, closure TypeClosure, qualifiers []Qualifier) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(closure) == 0 {
		closure = ClosureOf(event)
	} else {
		closure = Closure(closure...)
	}
	meta := EventMetadata{Types: closure, Qualifiers: eventQualifiers(qualifiers)}
	observers := t.resolver.resolveObservers(closure, qualifiers)

	t.stats.fired.Inc(1)
	t.log.WithFields(logrus.Fields{"event": closure[0], "observers": len(observers)}).Debug("Fire")

	for _, o := range observers {
		if o.phase != InProgress && t.tx != nil && t.tx.IsTransactionActive(ctx) {
			if err := t.tx.RegisterSynchronization(ctx, &deferredNotification{c: t, ctx: ctx, o: o, event: event, meta: meta}); err != nil {
				return &ObserverError{Observer: o.id, Err: err}
			}
			continue
		}
		if err := t.notify(ctx, o, event, meta); err != nil {
			return &ObserverError{Observer: o.id, Err: err}
		}
	}
	return nil
}

func (t *container) notify(ctx context.Context, o *Observer, event interface{}, meta EventMetadata) (err error) {

	defer func() {
		if r := recover(); r != nil {
			err = recoverErr(r, "notify observer '%s'", o.id)
		}
	}()

	if o.declaringBean == "" {
		t.stats.notified.Inc(1)
		return o.notify(ctx, nil, event, meta)
	}

	b, ok := t.registry.findByID(o.declaringBean)
	if !ok {
		return definitionErrorf(o.id, "declaring bean '%s' not found", o.declaringBean)
	}

	if o.reception == IfExists {
		inst, ok := t.mgr.existing(ctx, b)
		if !ok {
			t.log.WithFields(logrus.Fields{"observer": o.id, "bean": b.id}).Debug("Skip conditional observer")
			return nil
		}
		t.stats.notified.Inc(1)
		return o.notify(ctx, inst.object, event, meta)
	}

	if b.scope == Dependent {
		holder := newCreational(t.mgr, nil, nil, nil)
		inst, err := t.mgr.obtain(ctx, b, holder, nil)
		if err != nil {
			return err
		}
		t.stats.notified.Inc(1)
		err = o.notify(ctx, inst.object, event, meta)
		if rerr := holder.release(ctx); rerr != nil && err == nil {
			err = rerr
		}
		return err
	}

	inst, err := t.mgr.obtain(ctx, b, nil, nil)
	if err != nil {
		return err
	}
	t.stats.notified.Inc(1)
	return o.notify(ctx, inst.object, event, meta)
}

/**
Transactional observer waiting for the completion of the transaction
*/
type deferredNotification struct {
	c     *container
	ctx   context.Context
	o     *Observer
	event interface{}
	meta  EventMetadata
}

func (t *deferredNotification) BeforeCompletion() {
	if t.o.phase == BeforeCompletion {
		t.deliver()
	}
}

func (t *deferredNotification) AfterCompletion(status TransactionStatus) {
	switch t.o.phase {
	case AfterCompletion:
		t.deliver()
	case AfterSuccess:
		if status == StatusCommitted {
			t.deliver()
		}
	case AfterFailure:
		if status == StatusRolledBack {
			t.deliver()
		}
	}
}

func (t *deferredNotification) deliver() {
	if err := t.c.notify(t.ctx, t.o, t.event, t.meta); err != nil {
		t.c.log.WithField("observer", t.o.id).Warnf("Transactional observer failed, %v", err)
	}
}

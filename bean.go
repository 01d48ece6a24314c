/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
	"fmt"
	"strings"
)

type Kind int

const (
	Managed Kind = iota
	ProducerMethod
	ProducerField
	Extension
	BuiltIn
	Interceptor
	Decorator
)

func (t Kind) String() string {
	switch t {
	case Managed:
		return "Managed"
	case ProducerMethod:
		return "ProducerMethod"
	case ProducerField:
		return "ProducerField"
	case Extension:
		return "Extension"
	case BuiltIn:
		return "BuiltIn"
	case Interceptor:
		return "Interceptor"
	case Decorator:
		return "Decorator"
	default:
		return "Unknown"
	}
}

func (t Kind) isProducer() bool {
	return t == ProducerMethod || t == ProducerField
}

/**
Resolvable kinds take part in typesafe resolution
*/
func (t Kind) resolvable() bool {
	return t != Interceptor && t != Decorator
}

/**
Factory creates the object of the bean, the injection points are obtained through the creational context.
*/
type Factory func(ctx context.Context, cc *Creational) (interface{}, error)

/**
Producer creates the object from the instance of the declaring bean. Static producers get nil declaring instance.
*/
type Producer func(ctx context.Context, declaring interface{}, cc *Creational) (interface{}, error)

type Destroyer func(ctx context.Context, object interface{}) error

type Disposer func(ctx context.Context, declaring interface{}, object interface{}) error

/**
DecoratorFunc wraps the delegate object and returns the decorated one.
*/
type DecoratorFunc func(ctx context.Context, delegate interface{}, cc *Creational) (interface{}, error)

/**
AroundConstruct intercepts the creation of the object, inv.Proceed runs the rest of the chain.
*/
type AroundConstruct func(ctx context.Context, inv *Invocation) (interface{}, error)

type InjectionPoint struct {
	Type       Type
	Qualifiers Qualifiers

	/**
	Unsatisfied optional injection points resolve to nil
	*/
	Required bool

	/**
	Obtained with Values, every available bean, never validated for ambiguity
	*/
	All bool

	/**
	Name of the field or parameter, used in error messages
	*/
	Name string
}

func Inject(typ Type, qualifiers ...Qualifier) InjectionPoint {
	return InjectionPoint{Type: typ, Qualifiers: requiredQualifiers(qualifiers), Required: true}
}

func InjectOptional(typ Type, qualifiers ...Qualifier) InjectionPoint {
	return InjectionPoint{Type: typ, Qualifiers: requiredQualifiers(qualifiers)}
}

func InjectAll(typ Type, qualifiers ...Qualifier) InjectionPoint {
	return InjectionPoint{Type: typ, Qualifiers: requiredQualifiers(qualifiers), All: true}
}

func (t InjectionPoint) Named(name string) InjectionPoint {
	t.Name = name
	return t
}

func (t InjectionPoint) String() string {
	var out strings.Builder
	if t.Name != "" {
		out.WriteString(t.Name)
		out.WriteByte(' ')
	}
	out.WriteString(string(t.Type))
	out.WriteString(t.Qualifiers.String())
	if t.All {
		out.WriteString("[all]")
	} else if !t.Required {
		out.WriteString("[optional]")
	}
	return out.String()
}

/**
Bean is the immutable descriptor of one resolvable component.
*/
type Bean struct {

	/**
	Stable unique identifier, used for deterministic ordering
	*/
	id string

	/**
	Flattened contract types
	*/
	types []Type

	/**
	Normalized qualifiers, always contains Any
	*/
	qualifiers Qualifiers

	scope ScopeKind

	injectionPoints []InjectionPoint

	alternative bool

	priority    int
	hasPriority bool

	kind Kind

	/**
	Id of the bean this one replaces
	*/
	specializes string

	/**
	Id of the bean declaring the producer
	*/
	declaringBean string

	/**
	Name from the Named qualifier
	*/
	name string

	factory   Factory
	producer  Producer
	destroyer Destroyer
	disposer  Disposer

	decorates          []Type
	delegateQualifiers Qualifiers
	decorator          DecoratorFunc

	interceptorBindings []string
	around              AroundConstruct

	/**
	Built-in beans matching any requested qualifiers, like the Event handle
	*/
	anyQualifier bool
}

func (t *Bean) ID() string {
	return t.id
}

func (t *Bean) Types() []Type {
	return t.types
}

func (t *Bean) HasType(typ Type) bool {
	return containsType(t.types, typ)
}

func (t *Bean) Qualifiers() Qualifiers {
	return t.qualifiers
}

func (t *Bean) Scope() ScopeKind {
	return t.scope
}

func (t *Bean) InjectionPoints() []InjectionPoint {
	return t.injectionPoints
}

func (t *Bean) Alternative() bool {
	return t.alternative
}

/**
Returns priority and true if declared
*/
func (t *Bean) Priority() (int, bool) {
	return t.priority, t.hasPriority
}

func (t *Bean) Kind() Kind {
	return t.kind
}

func (t *Bean) Specializes() string {
	return t.specializes
}

func (t *Bean) DeclaringBean() string {
	return t.declaringBean
}

func (t *Bean) Name() string {
	return t.name
}

func (t *Bean) Decorates() []Type {
	return t.decorates
}

func (t *Bean) InterceptorBindings() []string {
	return t.interceptorBindings
}

func (t *Bean) matches(required Qualifiers) bool {
	return t.anyQualifier || t.qualifiers.ContainsAll(required)
}

func (t *Bean) hasBinding(name string) bool {
	for _, b := range t.interceptorBindings {
		if b == name {
			return true
		}
	}
	return false
}

func (t *Bean) String() string {
	if t.name != "" {
		return fmt.Sprintf("<Bean %s(%s) %s %s>", t.id, t.name, t.kind, t.scope)
	}
	return fmt.Sprintf("<Bean %s %s %s>", t.id, t.kind, t.scope)
}

/**
BeanBuilder collects the descriptor and validates it on Build.

Example:
	car, err := cdi.NewBean("car").
		Types(cdi.TypeOf[*Car]()).
		Scope(cdi.ApplicationScoped).
		Inject(cdi.Inject(cdi.TypeOf[*Engine]())).
		Factory(newCar).
		Build()
*/
type BeanBuilder struct {
	b          Bean
	qualifiers []Qualifier
}

func NewBean(id string) *BeanBuilder {
	return &BeanBuilder{b: Bean{id: id, scope: Dependent, kind: Managed}}
}

func (t *BeanBuilder) Types(types ...Type) *BeanBuilder {
	for _, typ := range types {
		if !containsType(t.b.types, typ) {
			t.b.types = append(t.b.types, typ)
		}
	}
	return t
}

func (t *BeanBuilder) Qualifiers(qualifiers ...Qualifier) *BeanBuilder {
	t.qualifiers = append(t.qualifiers, qualifiers...)
	return t
}

func (t *BeanBuilder) Named(name string) *BeanBuilder {
	return t.Qualifiers(Named(name))
}

func (t *BeanBuilder) Scope(kind ScopeKind) *BeanBuilder {
	t.b.scope = kind
	return t
}

func (t *BeanBuilder) Inject(points ...InjectionPoint) *BeanBuilder {
	for _, ip := range points {
		ip.Qualifiers = requiredQualifiers(ip.Qualifiers)
		t.b.injectionPoints = append(t.b.injectionPoints, ip)
	}
	return t
}

func (t *BeanBuilder) Alternative() *BeanBuilder {
	t.b.alternative = true
	return t
}

func (t *BeanBuilder) Priority(priority int) *BeanBuilder {
	t.b.priority = priority
	t.b.hasPriority = true
	return t
}

func (t *BeanBuilder) Kind(kind Kind) *BeanBuilder {
	t.b.kind = kind
	return t
}

func (t *BeanBuilder) Specializes(id string) *BeanBuilder {
	t.b.specializes = id
	return t
}

func (t *BeanBuilder) Factory(fn Factory) *BeanBuilder {
	t.b.factory = fn
	return t
}

/**
Producer method declared by the bean with id declaring
*/
func (t *BeanBuilder) Produces(declaring string, fn Producer) *BeanBuilder {
	t.b.kind = ProducerMethod
	t.b.declaringBean = declaring
	t.b.producer = fn
	return t
}

/**
Producer field declared by the bean with id declaring
*/
func (t *BeanBuilder) ProducesField(declaring string, fn func(declaring interface{}) interface{}) *BeanBuilder {
	t.b.kind = ProducerField
	t.b.declaringBean = declaring
	t.b.producer = func(ctx context.Context, declaring interface{}, cc *Creational) (interface{}, error) {
		return fn(declaring), nil
	}
	return t
}

func (t *BeanBuilder) Destroyer(fn Destroyer) *BeanBuilder {
	t.b.destroyer = fn
	return t
}

func (t *BeanBuilder) Disposer(fn Disposer) *BeanBuilder {
	t.b.disposer = fn
	return t
}

/**
Decorator of the given types, delegate qualifiers default to Default
*/
func (t *BeanBuilder) Decorates(fn DecoratorFunc, types ...Type) *BeanBuilder {
	t.b.kind = Decorator
	t.b.decorator = fn
	t.b.decorates = append(t.b.decorates, types...)
	return t
}

func (t *BeanBuilder) Delegate(qualifiers ...Qualifier) *BeanBuilder {
	t.b.delegateQualifiers = append(t.b.delegateQualifiers, qualifiers...)
	return t
}

/**
Interceptor bindings of the bean, or of the interceptor itself when used with Around
*/
func (t *BeanBuilder) Bindings(names ...string) *BeanBuilder {
	t.b.interceptorBindings = append(t.b.interceptorBindings, names...)
	return t
}

func (t *BeanBuilder) Around(fn AroundConstruct) *BeanBuilder {
	t.b.kind = Interceptor
	t.b.around = fn
	return t
}

func (t *BeanBuilder) Build() (*Bean, error) {
	b := t.b
	if b.id == "" {
		return nil, definitionErrorf("", "empty bean id")
	}
	if b.scope == "" {
		b.scope = Dependent
	}
	b.qualifiers = beanQualifiers(t.qualifiers)
	for _, q := range b.qualifiers {
		if q.Name == NamedName {
			if m, ok := q.member("value"); ok {
				b.name = fmt.Sprint(m.Value)
			}
		}
	}
	if len(b.types) == 0 && b.kind.resolvable() {
		return nil, definitionErrorf(b.id, "bean has no types")
	}
	switch b.kind {
	case Managed, Extension, BuiltIn:
		if b.factory == nil {
			return nil, definitionErrorf(b.id, "%s bean without factory", b.kind)
		}
	case ProducerMethod, ProducerField:
		if b.declaringBean == "" {
			return nil, definitionErrorf(b.id, "producer without declaring bean")
		}
		if b.producer == nil {
			return nil, definitionErrorf(b.id, "producer without producer function")
		}
	case Decorator:
		if len(b.decorates) == 0 {
			return nil, definitionErrorf(b.id, "decorator without decorated types")
		}
		if b.decorator == nil {
			return nil, definitionErrorf(b.id, "decorator without decorator function")
		}
		b.delegateQualifiers = requiredQualifiers(b.delegateQualifiers)
	case Interceptor:
		if len(b.interceptorBindings) == 0 {
			return nil, definitionErrorf(b.id, "interceptor without bindings")
		}
		if b.around == nil {
			return nil, definitionErrorf(b.id, "interceptor without around function")
		}
	default:
		return nil, definitionErrorf(b.id, "unknown kind %d", int(b.kind))
	}
	if b.disposer != nil && !b.kind.isProducer() {
		return nil, definitionErrorf(b.id, "disposer is only allowed on producers")
	}
	if b.specializes == b.id {
		return nil, definitionErrorf(b.id, "bean specializes itself")
	}
	b.types = append([]Type(nil), b.types...)
	b.injectionPoints = append([]InjectionPoint(nil), b.injectionPoints...)
	return &b, nil
}

/**
MustBuild panics on definition error, convenient for static descriptors
*/
func (t *BeanBuilder) MustBuild() *Bean {
	b, err := t.Build()
	if err != nil {
		panic(err)
	}
	return b
}

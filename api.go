/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"context"
	"github.com/rcrowley/go-metrics"
	"reflect"
)

type BeanLifecycle int32

const (
	BeanAllocated BeanLifecycle = iota
	BeanCreated
	BeanConstructing
	BeanInitialized
	BeanDestroying
	BeanDestroyed
)

func (t BeanLifecycle) String() string {
	switch t {
	case BeanAllocated:
		return "BeanAllocated"
	case BeanCreated:
		return "BeanCreated"
	case BeanConstructing:
		return "BeanConstructing"
	case BeanInitialized:
		return "BeanInitialized"
	case BeanDestroying:
		return "BeanDestroying"
	case BeanDestroyed:
		return "BeanDestroyed"
	default:
		return "BeanUnknown"
	}
}

var ContainerClass = reflect.TypeOf((*Container)(nil)).Elem()

/**
Contract type of the built-in container bean
*/
var ContainerType = TypeFor(ContainerClass)

type Container interface {

	/**
	Resolves exactly one bean for the contract type and qualifiers.
	Empty qualifiers means Default.

	Example:
		b, err := c.Resolve(cdi.TypeOf[app.UserService](), cdi.Named("users"))
	*/
	Resolve(typ Type, qualifiers ...Qualifier) (*Bean, error)

	/**
	Returns every available bean for the contract type and qualifiers after alternative and specialization narrowing, sorted by id.
	*/
	ResolveAll(typ Type, qualifiers ...Qualifier) []*Bean

	/**
	Returns observers of the event closure in delivery order.
	*/
	ResolveObservers(closure TypeClosure, qualifiers ...Qualifier) []*Observer

	/**
	Gets or creates the contextual instance of the bean in the scopes active in the ctx.
	Dependent instances obtained here are owned by the container until Release or Shutdown.
	*/
	Obtain(ctx context.Context, bean *Bean) (*Instance, error)

	/**
	Destroys the instance. Normal scoped instances are removed from their store first.
	*/
	Release(ctx context.Context, instance *Instance) error

	/**
	Returns lazy reference to the bean with normal scope, every Get call goes through the active scopes.
	*/
	Reference(bean *Bean) (*Reference, error)

	/**
	Fires event to the matching observers synchronously. Empty closure means the dynamic type of the event.
	*/
	Fire(ctx context.Context, event interface{}, closure TypeClosure, qualifiers ...Qualifier) error

	/**
	Returns event handle bound to the closure and qualifiers.
	*/
	Event(closure TypeClosure, qualifiers ...Qualifier) *Event

	/**
	Finds the bean by id
	*/
	Bean(id string) (*Bean, bool)

	/**
	All registered beans in bootstrap order
	*/
	Beans() []*Bean

	ApplicationScope() *SharedScope
	SingletonScope() *SharedScope
	RequestScope() *BoundScope
	SessionScope() *SessionScope
	ConversationScope() *ConversationScope

	/**
	Returns scope by kind including custom scopes
	*/
	Scope(kind ScopeKind) (Scope, bool)

	/**
	Returns metrics registry of the container
	*/
	Metrics() metrics.Registry

	/**
	Deactivates every still active scope owned by the container and destroys tracked dependent instances.
	Safe to call more than once.
	*/
	Shutdown() error

	/**
	Returns information about container
	*/
	String() string
}

/**
This interface used to provide pre-scanned beans and observers in cdi.New method
*/
type Scanner interface {

	/**
	Returns pre-scanned descriptors
	*/
	Beans() []interface{}
}

/**
Initializing bean is using to run required method after the factory created the object
*/
type InitializingBean interface {

	/**
	Runs this method automatically after creation of the object, before decorators wrap it
	*/

	PostConstruct() error
}

/**
This interface uses to select objects that could free resources on destruction of the contextual instance
*/
type DisposableBean interface {

	/**
	Called once after the bean destroyer, before dependents are destroyed.
	*/

	Destroy() error
}

type TransactionStatus int

const (
	StatusCommitted TransactionStatus = iota
	StatusRolledBack
)

func (t TransactionStatus) String() string {
	switch t {
	case StatusCommitted:
		return "StatusCommitted"
	case StatusRolledBack:
		return "StatusRolledBack"
	default:
		return "StatusUnknown"
	}
}

/**
Synchronization is registered in the running transaction for transactional observers.
*/
type Synchronization interface {
	BeforeCompletion()
	AfterCompletion(status TransactionStatus)
}

//go:generate mockgen -destination cdimock/transaction_mock.go -package cdimock github.com/codeallergy/cdi TransactionServices

/**
Transaction services are provided by the host, the container only defers transactional observers through them.
*/
type TransactionServices interface {

	/**
	Returns true if a transaction is running in the ctx
	*/
	IsTransactionActive(ctx context.Context) bool

	/**
	Registers synchronization with the transaction running in the ctx
	*/
	RegisterSynchronization(ctx context.Context, sync Synchronization) error
}

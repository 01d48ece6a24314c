/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

/**
Instance is a contextual instance of a bean, the object created by the factory together with
the dependent instances created for it.
*/
type Instance struct {
	bean *Bean

	/**
	Created and decorated object
	*/
	object interface{}

	/**
	Object before decoration, receives lifecycle callbacks
	*/
	raw interface{}

	/**
	Owns dependent instances created for the object
	*/
	creational *Creational

	/**
	Store holding the instance, nil for dependent instances
	*/
	store *Store

	lifecycle int32
}

func (t *Instance) Bean() *Bean {
	return t.bean
}

func (t *Instance) Object() interface{} {
	return t.object
}

func (t *Instance) Lifecycle() BeanLifecycle {
	return BeanLifecycle(atomic.LoadInt32(&t.lifecycle))
}

func (t *Instance) setLifecycle(l BeanLifecycle) {
	atomic.StoreInt32(&t.lifecycle, int32(l))
}

func (t *Instance) transit(from, to BeanLifecycle) bool {
	return atomic.CompareAndSwapInt32(&t.lifecycle, int32(from), int32(to))
}

/**
Dependent instances in creation order
*/
func (t *Instance) Dependents() []*Instance {
	if t.creational == nil {
		return nil
	}
	return t.creational.Dependents()
}

func (t *Instance) String() string {
	pointer := uintptr(unsafe.Pointer(t))
	return fmt.Sprintf("<Instance %s %s>(%x)", t.bean.id, t.Lifecycle(), pointer)
}

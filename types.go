/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"reflect"
	"strings"
)

/**
Type is the identity of a contract type. Beans list every contract type they satisfy,
the registry matches them exactly.
*/
type Type string

/**
AnyType is the identity of interface{}, the widest type of every event.
*/
const AnyType Type = "interface {}"

func TypeOf[T any]() Type {
	return TypeFor(reflect.TypeOf((*T)(nil)).Elem())
}

func TypeFor(t reflect.Type) Type {
	if t == nil {
		return AnyType
	}
	if t.Kind() == reflect.Interface && t.NumMethod() == 0 && t.Name() == "" {
		return AnyType
	}
	return Type(qualifiedName(t))
}

func qualifiedName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Ptr:
		return "*" + qualifiedName(t.Elem())
	case reflect.Slice:
		return "[]" + qualifiedName(t.Elem())
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

func (t Type) String() string {
	return string(t)
}

/**
TypeClosure is the ordered type set of an event, the most specific type first.
The position of an observed type in the closure is its specificity.
*/
type TypeClosure []Type

/**
Closure builds a closure from the given types, drops duplicates and appends AnyType if missing.
*/
func Closure(types ...Type) TypeClosure {
	seen := make(map[Type]bool, len(types)+1)
	out := make(TypeClosure, 0, len(types)+1)
	for _, t := range types {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if !seen[AnyType] {
		out = append(out, AnyType)
	}
	return out
}

/**
ClosureOf builds a closure from the dynamic type of the value followed by the given supertypes.
*/
func ClosureOf(v interface{}, supertypes ...Type) TypeClosure {
	return Closure(append([]Type{TypeFor(reflect.TypeOf(v))}, supertypes...)...)
}

func (t TypeClosure) IndexOf(typ Type) int {
	for i, el := range t {
		if el == typ {
			return i
		}
	}
	return -1
}

func (t TypeClosure) Contains(typ Type) bool {
	return t.IndexOf(typ) >= 0
}

func (t TypeClosure) String() string {
	parts := make([]string, len(t))
	for i, el := range t {
		parts[i] = string(el)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func containsType(list []Type, typ Type) bool {
	for _, el := range list {
		if el == typ {
			return true
		}
	}
	return false
}

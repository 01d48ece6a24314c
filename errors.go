/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"fmt"
	"github.com/pkg/errors"
	"strings"
)

type DuplicateIdError struct {
	ID string
}

func (e *DuplicateIdError) Error() string {
	return fmt.Sprintf("duplicate id '%s'", e.ID)
}

/**
Definition error reports an invalid descriptor, found by the builder or during validation.
*/
type DefinitionError struct {
	Bean   string
	Reason string
}

func (e *DefinitionError) Error() string {
	return fmt.Sprintf("definition error of '%s', %s", e.Bean, e.Reason)
}

func definitionErrorf(bean string, format string, args ...interface{}) error {
	return &DefinitionError{Bean: bean, Reason: fmt.Sprintf(format, args...)}
}

type UnsatisfiedResolutionError struct {
	Type       Type
	Qualifiers Qualifiers

	/**
	Describes the injection point if the lookup was made for one
	*/
	InjectionPoint string
}

func (e *UnsatisfiedResolutionError) Error() string {
	msg := fmt.Sprintf("unsatisfied dependency for type '%s' with qualifiers %s", e.Type, e.Qualifiers)
	if e.InjectionPoint != "" {
		msg += " at injection point " + e.InjectionPoint
	}
	return msg
}

type AmbiguousResolutionError struct {
	Type       Type
	Qualifiers Qualifiers

	/**
	Ids of the remaining candidates sorted
	*/
	Candidates     []string
	InjectionPoint string
}

func (e *AmbiguousResolutionError) Error() string {
	msg := fmt.Sprintf("ambiguous dependency for type '%s' with qualifiers %s, candidates [%s]", e.Type, e.Qualifiers, strings.Join(e.Candidates, ", "))
	if e.InjectionPoint != "" {
		msg += " at injection point " + e.InjectionPoint
	}
	return msg
}

type UnproxyableResolutionError struct {
	Bean  string
	Scope ScopeKind
}

func (e *UnproxyableResolutionError) Error() string {
	return fmt.Sprintf("bean '%s' with scope '%s' can not be referenced lazily, only normal scopes are proxyable", e.Bean, e.Scope)
}

type ContextNotActiveError struct {
	Scope  ScopeKind
	Reason string
}

func (e *ContextNotActiveError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("context '%s' is not active, %s", e.Scope, e.Reason)
	}
	return fmt.Sprintf("context '%s' is not active", e.Scope)
}

func notActive(kind ScopeKind, reason string) error {
	return &ContextNotActiveError{Scope: kind, Reason: reason}
}

type CircularDependencyError struct {

	/**
	Bean ids of the cycle, the first id repeated at the end
	*/
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("detected cycle dependency %s", strings.Join(e.Path, "->"))
}

type CreationError struct {
	Bean string
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("creation of bean '%s' failed, %v", e.Bean, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

/**
Destruction error aggregates every destructor failure of one teardown.
*/
type DestructionError struct {
	Scope  ScopeKind
	Errors []error
}

func (e *DestructionError) Error() string {
	return fmt.Sprintf("destruction of '%s' context failed, %v", e.Scope, e.Errors)
}

func (e *DestructionError) Unwrap() []error {
	return e.Errors
}

type ObserverError struct {
	Observer string
	Err      error
}

func (e *ObserverError) Error() string {
	return fmt.Sprintf("observer '%s' failed, %v", e.Observer, e.Err)
}

func (e *ObserverError) Unwrap() error {
	return e.Err
}

/**
Deployment error collects every problem found by validation.
*/
type DeploymentError struct {
	Errors []error
}

func (e *DeploymentError) Error() string {
	var out strings.Builder
	fmt.Fprintf(&out, "deployment failed with %d error(s)", len(e.Errors))
	for _, err := range e.Errors {
		out.WriteString("\n\t")
		out.WriteString(err.Error())
	}
	return out.String()
}

func (e *DeploymentError) Unwrap() []error {
	return e.Errors
}

type NonexistentConversationError struct {
	ID string
}

func (e *NonexistentConversationError) Error() string {
	return fmt.Sprintf("conversation '%s' does not exist", e.ID)
}

type BusyConversationError struct {
	ID string
}

func (e *BusyConversationError) Error() string {
	return fmt.Sprintf("conversation '%s' is used by another unit of work", e.ID)
}

func multipleErr(err []error) error {
	switch len(err) {
	case 0:
		return nil
	case 1:
		return err[0]
	default:
		return errors.Errorf("multiple errors, %v", err)
	}
}

func recoverErr(r interface{}, format string, args ...interface{}) error {
	if err, ok := r.(error); ok {
		return errors.Wrapf(err, format, args...)
	}
	return errors.Errorf(format+" recovered with error %v", append(args, r)...)
}

/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi_test

import (
	"context"
	"fmt"
	"github.com/codeallergy/cdi"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"reflect"
	"sort"
	"testing"
)

func distinct(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func Test_AmbiguousCandidatesSorted(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Ambiguous candidates are sorted regardless of registration order", prop.ForAll(
		func(ids []string) bool {
			ids = distinct(ids)
			if len(ids) < 2 {
				return true
			}
			var scan []interface{}
			for _, id := range ids {
				scan = append(scan, processor(id))
			}
			c, err := cdi.New(scan...)
			if err != nil {
				return false
			}
			defer c.Shutdown()

			_, err = c.Resolve(PaymentProcessorType)
			ambiguous, ok := err.(*cdi.AmbiguousResolutionError)
			if !ok {
				return false
			}
			expected := append([]string(nil), ids...)
			sort.Strings(expected)
			return reflect.DeepEqual(expected, ambiguous.Candidates)
		},
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}

func Test_PriorityNarrowing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("Alternatives with the maximum priority are kept", prop.ForAll(
		func(priorities []int) bool {
			scan := []interface{}{processor("plain")}
			top := 0
			for i, p := range priorities {
				scan = append(scan, processor(fmt.Sprintf("alt%02d", i)).Alternative().Priority(p))
				if i == 0 || p > top {
					top = p
				}
			}
			c, err := cdi.New(scan...)
			if err != nil {
				return false
			}
			defer c.Shutdown()

			var expected []string
			for i, p := range priorities {
				if p == top {
					expected = append(expected, fmt.Sprintf("alt%02d", i))
				}
			}

			b, err := c.Resolve(PaymentProcessorType)
			switch {
			case len(priorities) == 0:
				return err == nil && b.ID() == "plain"
			case len(expected) == 1:
				return err == nil && b.ID() == expected[0]
			default:
				ambiguous, ok := err.(*cdi.AmbiguousResolutionError)
				return ok && reflect.DeepEqual(expected, ambiguous.Candidates)
			}
		},
		gen.SliceOfN(6, gen.IntRange(-3, 3)),
	))

	properties.TestingRun(t)
}

func Test_QualifierSubset(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("Bean satisfies every subset of its qualifiers and no superset", prop.ForAll(
		func(names []string, cut int) bool {
			names = distinct(names)
			var qualifiers []cdi.Qualifier
			for _, name := range names {
				qualifiers = append(qualifiers, cdi.Qualifier{Name: name})
			}
			c, err := cdi.New(processor("only", qualifiers...))
			if err != nil {
				return false
			}
			defer c.Shutdown()

			if cut > len(qualifiers) {
				cut = len(qualifiers)
			}
			required := append([]cdi.Qualifier{cdi.Any}, qualifiers[:cut]...)
			if b, err := c.Resolve(PaymentProcessorType, required...); err != nil || b.ID() != "only" {
				return false
			}

			_, err = c.Resolve(PaymentProcessorType, append(required, cdi.Qualifier{Name: "Missing"})...)
			_, unsatisfied := err.(*cdi.UnsatisfiedResolutionError)
			return unsatisfied
		},
		gen.SliceOf(gen.Identifier()),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

func Test_ObserverOrder(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("Observers are ordered by priority then by registration", prop.ForAll(
		func(priorities []int) bool {
			var scan []interface{}
			for i, p := range priorities {
				scan = append(scan, cdi.NewObserver(fmt.Sprintf("o%02d", i), EngineType).Priority(p).
					Notify(func(ctx context.Context, instance interface{}, event interface{}, meta cdi.EventMetadata) error {
						return nil
					}))
			}
			c, err := cdi.New(scan...)
			if err != nil {
				return false
			}
			defer c.Shutdown()

			list := c.ResolveObservers(cdi.Closure(EngineType))
			if len(list) != len(priorities) {
				return false
			}
			for i := 1; i < len(list); i++ {
				a, b := list[i-1], list[i]
				if a.Priority() > b.Priority() {
					return false
				}
				if a.Priority() == b.Priority() && a.ID() > b.ID() {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(8, gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}

/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

package cdi

import (
	"fmt"
	"github.com/pkg/errors"
	"reflect"
	"sort"
	"strings"
)

const (
	DefaultName = "Default"
	AnyName     = "Any"
	NamedName   = "Named"
)

var (
	Default = Qualifier{Name: DefaultName}
	Any     = Qualifier{Name: AnyName}
)

/**
Member is a named value of a qualifier. Non-binding members do not take part in matching.
*/
type Member struct {
	Name       string
	Value      interface{}
	NonBinding bool
}

func Bind(name string, value interface{}) Member {
	return Member{Name: name, Value: value}
}

func NonBinding(name string, value interface{}) Member {
	return Member{Name: name, Value: value, NonBinding: true}
}

/**
Qualifier narrows which bean among several satisfying the same contract type is meant.
*/
type Qualifier struct {

	/**
	Name of the qualifier, for example 'Named' or 'Payment'
	*/
	Name string

	/**
	Members sorted by name
	*/
	Members []Member
}

func NewQualifier(name string, members ...Member) Qualifier {
	list := make([]Member, len(members))
	copy(list, members)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return Qualifier{Name: name, Members: list}
}

/**
Named qualifier carries the name of the bean in the 'value' member.
*/
func Named(name string) Qualifier {
	return NewQualifier(NamedName, Bind("value", name))
}

func (q Qualifier) member(name string) (Member, bool) {
	for _, m := range q.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

/**
Matches compares names and every binding member value. A qualifier without members matches by name only.
*/
func (q Qualifier) Matches(other Qualifier) bool {
	if q.Name != other.Name {
		return false
	}
	if len(q.Members) == 0 || len(other.Members) == 0 {
		return true
	}
	return q.bindingEqual(other) && other.bindingEqual(q)
}

func (q Qualifier) bindingEqual(other Qualifier) bool {
	for _, m := range q.Members {
		if m.NonBinding {
			continue
		}
		om, ok := other.member(m.Name)
		if !ok {
			return false
		}
		if om.NonBinding {
			continue
		}
		if !reflect.DeepEqual(m.Value, om.Value) {
			return false
		}
	}
	return true
}

func (q Qualifier) String() string {
	var out strings.Builder
	out.WriteString(q.Name)
	n := 0
	for _, m := range q.Members {
		if m.NonBinding {
			continue
		}
		if n == 0 {
			out.WriteByte('(')
		} else {
			out.WriteByte(',')
		}
		fmt.Fprintf(&out, "%s=%v", m.Name, m.Value)
		n++
	}
	if n > 0 {
		out.WriteByte(')')
	}
	return out.String()
}

/**
Identity of the qualifier for keys and deduplication, member values carry their type.
*/
func (q Qualifier) identity() string {
	var out strings.Builder
	out.WriteString(q.Name)
	for _, m := range q.Members {
		if m.NonBinding {
			continue
		}
		fmt.Fprintf(&out, ";%s=%T:%#v", m.Name, m.Value, m.Value)
	}
	return out.String()
}

/**
ParseQualifier reads the textual form 'Name' or 'Name(key=value,...)' used by manifests and the command line.
Member values are kept as strings.
*/
func ParseQualifier(s string) (Qualifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Qualifier{}, errors.New("empty qualifier")
	}
	open := strings.IndexByte(s, '(')
	if open == -1 {
		if strings.ContainsAny(s, ")=,") {
			return Qualifier{}, errors.Errorf("invalid qualifier '%s'", s)
		}
		return Qualifier{Name: s}, nil
	}
	if !strings.HasSuffix(s, ")") || open == 0 {
		return Qualifier{}, errors.Errorf("invalid qualifier '%s'", s)
	}
	name := strings.TrimSpace(s[:open])
	body := s[open+1 : len(s)-1]
	var members []Member
	for _, pair := range strings.Split(body, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		eq := strings.IndexByte(pair, '=')
		if eq <= 0 {
			return Qualifier{}, errors.Errorf("invalid member '%s' in qualifier '%s'", pair, s)
		}
		members = append(members, Bind(strings.TrimSpace(pair[:eq]), strings.TrimSpace(pair[eq+1:])))
	}
	return NewQualifier(name, members...), nil
}

type Qualifiers []Qualifier

func (t Qualifiers) Contains(q Qualifier) bool {
	for _, el := range t {
		if el.Matches(q) {
			return true
		}
	}
	return false
}

/**
ContainsAll returns true if every required qualifier matches one of the set.
*/
func (t Qualifiers) ContainsAll(required Qualifiers) bool {
	for _, q := range required {
		if !t.Contains(q) {
			return false
		}
	}
	return true
}

func (t Qualifiers) has(name string) bool {
	for _, el := range t {
		if el.Name == name {
			return true
		}
	}
	return false
}

/**
Canonical key of the set, stable regardless of the order of qualifiers.
*/
func (t Qualifiers) key() string {
	list := make([]string, len(t))
	for i, q := range t {
		list[i] = q.identity()
	}
	sort.Strings(list)
	return strings.Join(list, "|")
}

func (t Qualifiers) String() string {
	list := make([]string, len(t))
	for i, q := range t {
		list[i] = q.String()
	}
	return "{" + strings.Join(list, ", ") + "}"
}

func (t Qualifiers) without(name string) Qualifiers {
	var out Qualifiers
	for _, q := range t {
		if q.Name != name {
			out = append(out, q)
		}
	}
	return out
}

func dedupQualifiers(qualifiers []Qualifier) Qualifiers {
	out := make(Qualifiers, 0, len(qualifiers)+2)
	seen := make(map[string]bool, len(qualifiers))
	for _, q := range qualifiers {
		k := q.identity()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, q)
	}
	return out
}

/**
Bean qualifiers: no qualifiers or only Named also means Default, every bean carries Any.
*/
func beanQualifiers(qualifiers []Qualifier) Qualifiers {
	out := dedupQualifiers(qualifiers)
	if len(out.without(NamedName).without(AnyName)) == 0 && !out.has(DefaultName) {
		out = append(out, Default)
	}
	if !out.has(AnyName) {
		out = append(out, Any)
	}
	return out
}

/**
Required qualifiers of an injection point or a lookup: empty means Default.
*/
func requiredQualifiers(qualifiers []Qualifier) Qualifiers {
	out := dedupQualifiers(qualifiers)
	if len(out) == 0 {
		out = append(out, Default)
	}
	return out
}

/**
Event qualifiers: every event carries Any, an event without qualifiers also carries Default.
*/
func eventQualifiers(qualifiers []Qualifier) Qualifiers {
	out := dedupQualifiers(qualifiers)
	if len(out.without(AnyName)) == 0 && !out.has(DefaultName) {
		out = append(out, Default)
	}
	if !out.has(AnyName) {
		out = append(out, Any)
	}
	return out
}

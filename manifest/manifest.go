/*
 * Copyright (c) 2023 Zander Schwid & Co. LLC.
 * SPDX-License-Identifier: BUSL-1.1
 */

/**
Package manifest reads a YAML deployment manifest and turns it into cdi descriptors with stub factories.
It lets tooling validate and explore a bean graph without the application code.
*/
package manifest

import (
	"context"
	"github.com/codeallergy/cdi"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"strings"
)

/**
Manifest of one deployment.

Example:
	scopes:
	  - kind: Transaction
	    normal: true
	beans:
	  - id: engine
	    types: [Engine]
	    scope: ApplicationScoped
	  - id: car
	    types: [Car]
	    inject:
	      - type: Engine
	observers:
	  - id: audit
	    type: CarStarted
	    priority: 100
	config:
	  alternatives: [mockEngine]
*/
type Manifest struct {
	Scopes    []ScopeEntry    `yaml:"scopes,omitempty"`
	Beans     []BeanEntry     `yaml:"beans"`
	Observers []ObserverEntry `yaml:"observers,omitempty"`
	Config    *cdi.Config     `yaml:"config,omitempty"`
}

type ScopeEntry struct {
	Kind         string `yaml:"kind"`
	Normal       bool   `yaml:"normal,omitempty"`
	Synchronized bool   `yaml:"synchronized,omitempty"`
}

type InjectEntry struct {
	Type       string   `yaml:"type"`
	Qualifiers []string `yaml:"qualifiers,omitempty"`
	Optional   bool     `yaml:"optional,omitempty"`
	Name       string   `yaml:"name,omitempty"`
}

type BeanEntry struct {
	ID          string        `yaml:"id"`
	Types       []string      `yaml:"types,omitempty"`
	Qualifiers  []string      `yaml:"qualifiers,omitempty"`
	Scope       string        `yaml:"scope,omitempty"`
	Kind        string        `yaml:"kind,omitempty"`
	Inject      []InjectEntry `yaml:"inject,omitempty"`
	Alternative bool          `yaml:"alternative,omitempty"`
	Priority    *int          `yaml:"priority,omitempty"`
	Specializes string        `yaml:"specializes,omitempty"`

	/**
	Declaring bean of producers
	*/
	DeclaringBean string `yaml:"declaringBean,omitempty"`

	/**
	Producers with a disposer method
	*/
	Disposer bool `yaml:"disposer,omitempty"`

	/**
	Decorated types of decorators
	*/
	Decorates []string `yaml:"decorates,omitempty"`
	Delegate  []string `yaml:"delegate,omitempty"`

	/**
	Interceptor bindings of beans and interceptors
	*/
	Bindings []string `yaml:"bindings,omitempty"`
}

type ObserverEntry struct {
	ID            string   `yaml:"id"`
	Type          string   `yaml:"type"`
	Qualifiers    []string `yaml:"qualifiers,omitempty"`
	Reception     string   `yaml:"reception,omitempty"`
	Phase         string   `yaml:"phase,omitempty"`
	DeclaringBean string   `yaml:"declaringBean,omitempty"`
	Priority      *int     `yaml:"priority,omitempty"`
}

func Parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{Config: cdi.DefaultConfig()}
	if err := yaml.NewDecoder(r).Decode(m); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode manifest")
	}
	return m, nil
}

func ParseFile(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Errorf("i/o error with manifest file '%s', %v", path, err)
	}
	defer file.Close()
	return Parse(file)
}

/**
Stub is the object created for every managed or produced bean of a manifest
*/
type Stub struct {
	Bean string

	/**
	Objects of the injection points, nil for unsatisfied optional ones
	*/
	Deps []interface{}
}

/**
Decorated is the object returned by stub decorators
*/
type Decorated struct {
	By       string
	Delegate interface{}
}

/**
Hooks observe what the stub factories do, every field is optional
*/
type Hooks struct {
	Created   func(b *cdi.Bean, obj interface{})
	Destroyed func(b *cdi.Bean, obj interface{})
	Notified  func(o *cdi.Observer, event interface{}, meta cdi.EventMetadata)
}

/**
Scan builds descriptors of the manifest, the result can be passed to cdi.New as is.
Every definition problem is collected.
*/
func (t *Manifest) Scan(hooks Hooks) ([]interface{}, error) {
	var scan []interface{}
	var listErr []error

	if t.Config != nil {
		scan = append(scan, t.Config)
	}
	for _, s := range t.Scopes {
		if s.Kind == "" {
			listErr = append(listErr, errors.New("scope without kind"))
			continue
		}
		scan = append(scan, cdi.ScopeDefinition{Kind: cdi.ScopeKind(s.Kind), Normal: s.Normal, Synchronized: s.Synchronized})
	}
	for _, entry := range t.Beans {
		b, err := entry.build(hooks)
		if err != nil {
			listErr = append(listErr, err)
			continue
		}
		scan = append(scan, b)
	}
	for _, entry := range t.Observers {
		o, err := entry.build(hooks)
		if err != nil {
			listErr = append(listErr, err)
			continue
		}
		scan = append(scan, o)
	}

	if len(listErr) > 0 {
		return nil, &cdi.DeploymentError{Errors: listErr}
	}
	return scan, nil
}

/**
Deployment registers the manifest in a new deployment without deploying it
*/
func (t *Manifest) Deployment(hooks Hooks, opts ...cdi.Option) (*cdi.Deployment, error) {
	scan, err := t.Scan(hooks)
	if err != nil {
		return nil, err
	}
	if t.Config != nil {
		opts = append([]cdi.Option{t.Config}, opts...)
	}
	d := cdi.NewDeployment(opts...)
	var listErr []error
	for _, item := range scan {
		switch obj := item.(type) {
		case cdi.ScopeDefinition:
			err = d.AddScope(obj)
		case *cdi.Bean:
			err = d.RegisterBean(obj)
		case *cdi.Observer:
			err = d.RegisterObserver(obj)
		default:
			err = nil
		}
		if err != nil {
			listErr = append(listErr, err)
		}
	}
	if len(listErr) > 0 {
		return nil, &cdi.DeploymentError{Errors: listErr}
	}
	return d, nil
}

/**
ParseQualifiers reads the textual form of every qualifier
*/
func ParseQualifiers(list []string) ([]cdi.Qualifier, error) {
	out := make([]cdi.Qualifier, 0, len(list))
	for _, s := range list {
		q, err := cdi.ParseQualifier(s)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

/**
ParseTypes splits comma separated type names into the closure, the most specific first
*/
func ParseTypes(s string) cdi.TypeClosure {
	var types []cdi.Type
	for _, el := range strings.Split(s, ",") {
		if el = strings.TrimSpace(el); el != "" {
			types = append(types, cdi.Type(el))
		}
	}
	return cdi.Closure(types...)
}

func ParseKind(s string) (cdi.Kind, error) {
	switch strings.ToLower(s) {
	case "", "managed":
		return cdi.Managed, nil
	case "producermethod", "producer":
		return cdi.ProducerMethod, nil
	case "producerfield":
		return cdi.ProducerField, nil
	case "extension":
		return cdi.Extension, nil
	case "interceptor":
		return cdi.Interceptor, nil
	case "decorator":
		return cdi.Decorator, nil
	default:
		return cdi.Managed, errors.Errorf("unknown kind '%s'", s)
	}
}

func ParseReception(s string) (cdi.Reception, error) {
	switch strings.ToLower(s) {
	case "", "always":
		return cdi.Always, nil
	case "ifexists", "if_exists":
		return cdi.IfExists, nil
	default:
		return cdi.Always, errors.Errorf("unknown reception '%s'", s)
	}
}

func ParsePhase(s string) (cdi.TransactionPhase, error) {
	switch strings.ToLower(s) {
	case "", "inprogress", "in_progress":
		return cdi.InProgress, nil
	case "beforecompletion", "before_completion":
		return cdi.BeforeCompletion, nil
	case "aftercompletion", "after_completion":
		return cdi.AfterCompletion, nil
	case "afterfailure", "after_failure":
		return cdi.AfterFailure, nil
	case "aftersuccess", "after_success":
		return cdi.AfterSuccess, nil
	default:
		return cdi.InProgress, errors.Errorf("unknown transaction phase '%s'", s)
	}
}

func (t BeanEntry) build(hooks Hooks) (*cdi.Bean, error) {
	kind, err := ParseKind(t.Kind)
	if err != nil {
		return nil, errors.Wrapf(err, "bean '%s'", t.ID)
	}
	qualifiers, err := ParseQualifiers(t.Qualifiers)
	if err != nil {
		return nil, errors.Wrapf(err, "bean '%s'", t.ID)
	}

	bb := cdi.NewBean(t.ID).
		Qualifiers(qualifiers...).
		Specializes(t.Specializes)

	for _, typ := range t.Types {
		bb.Types(cdi.Type(typ))
	}
	if t.Scope != "" {
		bb.Scope(cdi.ScopeKind(t.Scope))
	}
	if t.Alternative {
		bb.Alternative()
	}
	if t.Priority != nil {
		bb.Priority(*t.Priority)
	}
	for _, ie := range t.Inject {
		ip, err := ie.point()
		if err != nil {
			return nil, errors.Wrapf(err, "bean '%s'", t.ID)
		}
		bb.Inject(ip)
	}
	if len(t.Bindings) > 0 {
		bb.Bindings(t.Bindings...)
	}

	var self *cdi.Bean
	destroyed := func(obj interface{}) {
		if hooks.Destroyed != nil {
			hooks.Destroyed(self, obj)
		}
	}
	created := func(obj interface{}) {
		if hooks.Created != nil {
			hooks.Created(self, obj)
		}
	}

	switch kind {
	case cdi.Managed, cdi.Extension:
		bb.Kind(kind).Factory(func(ctx context.Context, cc *cdi.Creational) (interface{}, error) {
			obj, err := stub(ctx, cc)
			if err == nil {
				created(obj)
			}
			return obj, err
		})
	case cdi.ProducerMethod:
		bb.Produces(t.DeclaringBean, func(ctx context.Context, declaring interface{}, cc *cdi.Creational) (interface{}, error) {
			obj, err := stub(ctx, cc)
			if err == nil {
				created(obj)
			}
			return obj, err
		})
	case cdi.ProducerField:
		id := t.ID
		bb.ProducesField(t.DeclaringBean, func(declaring interface{}) interface{} {
			obj := &Stub{Bean: id}
			created(obj)
			return obj
		})
	case cdi.Decorator:
		types := make([]cdi.Type, len(t.Decorates))
		for i, typ := range t.Decorates {
			types[i] = cdi.Type(typ)
		}
		delegate, err := ParseQualifiers(t.Delegate)
		if err != nil {
			return nil, errors.Wrapf(err, "bean '%s'", t.ID)
		}
		id := t.ID
		bb.Decorates(func(ctx context.Context, obj interface{}, cc *cdi.Creational) (interface{}, error) {
			return &Decorated{By: id, Delegate: obj}, nil
		}, types...).Delegate(delegate...)
	case cdi.Interceptor:
		bb.Around(func(ctx context.Context, inv *cdi.Invocation) (interface{}, error) {
			return inv.Proceed(ctx)
		})
	}

	if kind != cdi.Decorator && kind != cdi.Interceptor {
		if t.Disposer {
			bb.Disposer(func(ctx context.Context, declaring interface{}, obj interface{}) error {
				destroyed(obj)
				return nil
			})
		} else {
			bb.Destroyer(func(ctx context.Context, obj interface{}) error {
				destroyed(obj)
				return nil
			})
		}
	}

	self, err = bb.Build()
	return self, err
}

func (t InjectEntry) point() (cdi.InjectionPoint, error) {
	if t.Type == "" {
		return cdi.InjectionPoint{}, errors.New("injection point without type")
	}
	qualifiers, err := ParseQualifiers(t.Qualifiers)
	if err != nil {
		return cdi.InjectionPoint{}, err
	}
	var ip cdi.InjectionPoint
	if t.Optional {
		ip = cdi.InjectOptional(cdi.Type(t.Type), qualifiers...)
	} else {
		ip = cdi.Inject(cdi.Type(t.Type), qualifiers...)
	}
	return ip.Named(t.Name), nil
}

func (t ObserverEntry) build(hooks Hooks) (*cdi.Observer, error) {
	qualifiers, err := ParseQualifiers(t.Qualifiers)
	if err != nil {
		return nil, errors.Wrapf(err, "observer '%s'", t.ID)
	}
	reception, err := ParseReception(t.Reception)
	if err != nil {
		return nil, errors.Wrapf(err, "observer '%s'", t.ID)
	}
	phase, err := ParsePhase(t.Phase)
	if err != nil {
		return nil, errors.Wrapf(err, "observer '%s'", t.ID)
	}

	ob := cdi.NewObserver(t.ID, cdi.Type(t.Type)).
		Qualifiers(qualifiers...).
		Reception(reception).
		Phase(phase).
		DeclaredBy(t.DeclaringBean)
	if t.Priority != nil {
		ob.Priority(*t.Priority)
	}

	var self *cdi.Observer
	ob.Notify(func(ctx context.Context, instance interface{}, event interface{}, meta cdi.EventMetadata) error {
		if hooks.Notified != nil {
			hooks.Notified(self, event, meta)
		}
		return nil
	})

	self, err = ob.Build()
	return self, err
}

/**
Obtains every injection point of the bean under construction
*/
func stub(ctx context.Context, cc *cdi.Creational) (*Stub, error) {
	obj := &Stub{Bean: cc.Bean().ID()}
	for i := range cc.Bean().InjectionPoints() {
		v, err := cc.Value(ctx, i)
		if err != nil {
			return nil, err
		}
		obj.Deps = append(obj.Deps, v)
	}
	return obj, nil
}

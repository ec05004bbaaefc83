/*
   Copyright 2025 The DIRPX Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package model

import (
	"iter"
	"log/slog"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model/semver"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
)

// Compile-time check that Registry answers subtype questions for the value
// type system.
var _ valuetype.Hierarchy = (*Registry)(nil)

// Registry is the set of models known to one engine. Model names are unique
// within a registry.
type Registry struct {
	// mu guards models and order.
	mu     sync.RWMutex
	models map[string]*Model
	order  []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// DefineOption configures a model at definition time.
type DefineOption func(*defineOptions)

type defineOptions struct {
	parent  string
	entity  bool
	version string
}

// Extends makes the defined model a subtype of the model called parent,
// which MUST already be defined in the same registry.
func Extends(parent string) DefineOption {
	return func(o *defineOptions) { o.parent = parent }
}

// AsEntity tags the defined model as an entity. Subtypes of an entity are
// entities without this option.
func AsEntity() DefineOption {
	return func(o *defineOptions) { o.entity = true }
}

// WithVersion sets the schema version of the defined model.
func WithVersion(v string) DefineOption {
	return func(o *defineOptions) { o.version = v }
}

// Define creates a model called name.
//
// Define fails with *errors.DefinitionError when name is invalid, is a
// primitive type name or is already defined, with *errors.UnknownTypeError
// when the parent is not defined, and with *errors.ParseError when the
// version is malformed.
func (r *Registry) Define(name string, opts ...DefineOption) (*Model, error) {
	var o defineOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !namePattern.MatchString(name) || strings.HasPrefix(name, "_") {
		return nil, &errors.DefinitionError{Model: name, Reason: "invalid model name"}
	}
	if t, err := valuetype.Parse(name); err != nil || !t.IsComponent() {
		return nil, &errors.DefinitionError{Model: name, Reason: "model name collides with a primitive type"}
	}

	version, err := semver.ParseVersion(o.version)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.models[name]; ok {
		return nil, &errors.DefinitionError{Model: name, Reason: "model already defined"}
	}

	m := &Model{
		registry:  r,
		name:      name,
		version:   version,
		props:     make(map[string]*Property),
		exposures: make(map[string]Exposure),
	}
	if o.parent != "" {
		parent, ok := r.models[o.parent]
		if !ok {
			return nil, &errors.UnknownTypeError{Type: o.parent}
		}
		m.parent = parent
		m.trait = parent.trait
		if version.IsZero() {
			m.version = parent.version
		}
	}
	if o.entity {
		m.trait = TraitEntity
	}

	r.models[name] = m
	r.order = append(r.order, name)
	slog.Debug("model defined", "model", name, "parent", o.parent, "trait", m.trait.String())
	return m, nil
}

// MustDefine is like Define but panics on error. It is intended for
// package-level model definitions.
func (r *Registry) MustDefine(name string, opts ...DefineOption) *Model {
	m, err := r.Define(name, opts...)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the model called name, or *errors.UnknownTypeError.
func (r *Registry) Lookup(name string) (*Model, error) {
	r.mu.RLock()
	m, ok := r.models[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &errors.UnknownTypeError{Type: name}
	}
	return m, nil
}

// IsSubtype reports whether the model called typeName is the model called
// ancestor or one of its descendants. Unknown names are never subtypes.
func (r *Registry) IsSubtype(typeName, ancestor string) bool {
	m, err := r.Lookup(typeName)
	if err != nil {
		return false
	}
	for c := m; c != nil; c = c.parent {
		if c.name == ancestor {
			return true
		}
	}
	return false
}

// Models returns the defined models in definition order.
func (r *Registry) Models() iter.Seq[*Model] {
	return func(yield func(*Model) bool) {
		for _, m := range r.snapshot() {
			if !yield(m) {
				return
			}
		}
	}
}

// Len returns the number of defined models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) snapshot() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Model, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.models[name])
	}
	return out
}

// Check verifies the registry as a whole: every component-typed attribute
// references a defined model and every entity model has a primary
// identifier. All problems are reported together.
func (r *Registry) Check() error {
	var err error
	for _, m := range r.snapshot() {
		if m.IsEntity() && m.PrimaryIdentifier() == nil {
			err = multierr.Append(err, &errors.DefinitionError{Model: m.name, Reason: "entity model has no primary identifier"})
		}
		m.mu.RLock()
		for _, name := range m.order {
			p := m.props[name]
			if !p.IsAttribute() {
				continue
			}
			if t := p.vtype.Innermost(); t.IsComponent() {
				if _, lerr := r.Lookup(t.Name()); lerr != nil {
					err = multierr.Append(err, &errors.DefinitionError{
						Model:    m.name,
						Property: name,
						Reason:   "unknown component type " + t.Name(),
					})
				}
			}
		}
		m.mu.RUnlock()
	}
	return err
}

// Catalog describes every defined model, in definition order.
func (r *Registry) Catalog() Catalog {
	models := r.snapshot()
	c := make(Catalog, 0, len(models))
	for _, m := range models {
		c = append(c, entryOf(m))
	}
	return c
}

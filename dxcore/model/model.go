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

// Package model holds the static metadata of the component engine: models,
// their properties, and the registry that names them.
//
// A model is declared once, during static initialisation, through explicit
// builder calls:
//
//	reg := model.NewRegistry()
//	movie := reg.MustDefine("Movie", model.AsEntity(), model.WithVersion("1.0.0"))
//	movie.MustAttribute("id", "string", model.AsPrimaryIdentifier())
//	movie.MustAttribute("title", "string", model.WithValidators(model.NotEmpty()))
//	movie.MustAttribute("actors", "Actor[]", model.WithDefault([]any{}))
//	movie.MustMethod("play", model.WithExposure(model.VerbCall))
//
// Every model carries a closed Trait (embedded or entity) fixed at definition
// time and inherited by subtypes. Property lookups walk the inheritance
// chain most-derived first; listings are finite, restartable sequences in
// declaration order.
//
// Definitions are expected to complete before instances are created. Models
// and the Registry are nevertheless safe for concurrent use: reads never
// observe a partially declared property.
package model

import (
	"iter"
	"regexp"
	"strings"
	"sync"

	"dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model/semver"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Model describes one component type.
type Model struct {
	registry *Registry
	name     string
	parent   *Model
	trait    Trait
	version  semver.Version

	mu        sync.RWMutex
	order     []string
	props     map[string]*Property
	exposures map[string]Exposure
}

// Name returns the component type name.
func (m *Model) Name() string { return m.name }

// Parent returns the model m extends, or nil.
func (m *Model) Parent() *Model { return m.parent }

// Registry returns the registry m was defined in.
func (m *Model) Registry() *Registry { return m.registry }

// Trait returns the capability tag of m.
func (m *Model) Trait() Trait { return m.trait }

// IsEntity reports whether instances of m have a primary identifier.
func (m *Model) IsEntity() bool { return m.trait == TraitEntity }

// Version returns the schema version of m. Subtypes without an explicit
// version report their parent's.
func (m *Model) Version() semver.Version { return m.version }

// IsSubtypeOf reports whether m is other or one of its descendants.
func (m *Model) IsSubtypeOf(other *Model) bool {
	for c := m; c != nil; c = c.parent {
		if c == other {
			return true
		}
	}
	return false
}

// Declare adds a property to m.
//
// Declaring a name twice on the same model is a definition error. A subtype
// MAY redeclare an inherited property of the same kind to override it,
// except for identifiers, which are fixed by the model that introduced them.
// Identifier attributes MUST be non-optional string or number attributes; a
// primary identifier is only allowed on entity models and only once per
// inheritance chain.
func (m *Model) Declare(name string, kind PropertyKind, opts ...PropertyOption) (*Property, error) {
	p := &Property{name: name, owner: m, kind: kind}
	for _, opt := range opts {
		opt(p)
	}
	if err := m.checkDeclaration(p); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.props[name]; ok {
		return nil, m.definitionError(name, "property already declared")
	}
	m.props[name] = p
	m.order = append(m.order, name)
	if !p.exposure.IsNone() {
		m.exposures[name] = m.inheritedExposure(name).Union(p.exposure)
	}
	return p, nil
}

// MustDeclare is like Declare but panics on error.
func (m *Model) MustDeclare(name string, kind PropertyKind, opts ...PropertyOption) *Property {
	p, err := m.Declare(name, kind, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Attribute declares an attribute whose type is given as a type specifier
// such as "string?" or "Actor[]".
func (m *Model) Attribute(name, typeSpec string, opts ...PropertyOption) (*Property, error) {
	t, err := valuetype.Parse(typeSpec)
	if err != nil {
		return nil, m.definitionError(name, err.Error())
	}
	return m.Declare(name, KindAttribute, append([]PropertyOption{WithType(t)}, opts...)...)
}

// MustAttribute is like Attribute but panics on error.
func (m *Model) MustAttribute(name, typeSpec string, opts ...PropertyOption) *Property {
	p, err := m.Attribute(name, typeSpec, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Method declares a method.
func (m *Model) Method(name string, opts ...PropertyOption) (*Property, error) {
	return m.Declare(name, KindMethod, opts...)
}

// MustMethod is like Method but panics on error.
func (m *Model) MustMethod(name string, opts ...PropertyOption) *Property {
	p, err := m.Method(name, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func (m *Model) checkDeclaration(p *Property) error {
	name := p.name
	if !namePattern.MatchString(name) || strings.HasPrefix(name, "_") {
		return m.definitionError(name, "invalid property name")
	}
	if !p.kind.Valid() {
		return m.definitionError(name, "invalid property kind")
	}

	if p.kind == KindMethod {
		switch {
		case !p.vtype.IsZero():
			return m.definitionError(name, "methods have no value type")
		case p.role != NotIdentifier:
			return m.definitionError(name, "methods cannot be identifiers")
		case p.hasDefault || len(p.validators) > 0:
			return m.definitionError(name, "methods have no default or validators")
		case p.exposure.Has(VerbGet) || p.exposure.Has(VerbSet) || p.exposure.Has(VerbFind):
			return m.definitionError(name, "methods can only be exposed for call")
		}
	} else {
		if p.vtype.IsZero() {
			return m.definitionError(name, "attribute has no value type")
		}
		if p.exposure.Has(VerbCall) {
			return m.definitionError(name, "attributes cannot be exposed for call")
		}
	}

	if p.role != NotIdentifier {
		t := p.vtype
		if t.IsOptional() || !t.IsPrimitive() || (t.Name() != valuetype.StringName && t.Name() != valuetype.NumberName) {
			return m.definitionError(name, "identifiers must be required string or number attributes")
		}
	}
	if p.role == PrimaryIdentifier {
		if !m.IsEntity() {
			return m.definitionError(name, "primary identifier on a non-entity model")
		}
		if existing := m.PrimaryIdentifier(); existing != nil {
			return m.definitionError(name, "primary identifier already declared as "+existing.String())
		}
	}

	if m.parent != nil {
		if inherited, err := m.parent.Lookup(name); err == nil {
			switch {
			case inherited.kind != p.kind:
				return m.definitionError(name, "override changes the property kind")
			case inherited.IsIdentifier() || p.IsIdentifier():
				return m.definitionError(name, "identifiers cannot be overridden")
			}
		}
	}

	if p.kind == KindAttribute && p.hasDefault && p.defFunc == nil {
		if err := valuetype.Check(name, valuetype.Normalize(p.def), p.vtype, m.registry); err != nil {
			return m.definitionError(name, "invalid default: "+err.Error())
		}
	}
	return nil
}

func (m *Model) definitionError(property, reason string) error {
	return &errors.DefinitionError{Model: m.name, Property: property, Reason: reason}
}

// Lookup returns the property called name, searching m first and then its
// ancestors. It returns *errors.NotFoundError when no model in the chain
// declares name.
func (m *Model) Lookup(name string) (*Property, error) {
	for c := m; c != nil; c = c.parent {
		c.mu.RLock()
		p, ok := c.props[name]
		c.mu.RUnlock()
		if ok {
			return p, nil
		}
	}
	return nil, &errors.NotFoundError{Kind: "property", Owner: m.name, Name: name}
}

// Properties returns the properties of m accepted by filter (all of them
// when filter is nil), inherited ones included. Properties are yielded in
// declaration order, ancestors first; an override takes the slot of the
// property it overrides. The sequence can be ranged over any number of
// times and reflects declarations made in between.
func (m *Model) Properties(filter func(*Property) bool) iter.Seq[*Property] {
	return func(yield func(*Property) bool) {
		for _, p := range m.collect() {
			if filter != nil && !filter(p) {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

// Attributes returns the attributes of m in declaration order.
func (m *Model) Attributes() iter.Seq[*Property] {
	return m.Properties(IsAttribute)
}

func (m *Model) collect() []*Property {
	var chain []*Model
	for c := m; c != nil; c = c.parent {
		chain = append(chain, c)
	}

	var out []*Property
	index := make(map[string]int)
	for i := len(chain) - 1; i >= 0; i-- {
		c := chain[i]
		c.mu.RLock()
		for _, name := range c.order {
			p := c.props[name]
			if at, ok := index[name]; ok {
				out[at] = p
				continue
			}
			index[name] = len(out)
			out = append(out, p)
		}
		c.mu.RUnlock()
	}
	return out
}

// PrimaryIdentifier returns the primary identifier attribute of m or of one
// of its ancestors, or nil.
func (m *Model) PrimaryIdentifier() *Property {
	for c := m; c != nil; c = c.parent {
		c.mu.RLock()
		for _, name := range c.order {
			if p := c.props[name]; p.IsPrimaryIdentifier() {
				c.mu.RUnlock()
				return p
			}
		}
		c.mu.RUnlock()
	}
	return nil
}

// SecondaryIdentifiers returns the secondary identifier attributes of m in
// declaration order.
func (m *Model) SecondaryIdentifiers() []*Property {
	var out []*Property
	for p := range m.Properties(func(p *Property) bool { return p.IsSecondaryIdentifier() }) {
		out = append(out, p)
	}
	return out
}

// Expose adds verbs to the exposure of the property called name on m. The
// added verbs are visible on m and its subtypes but not on m's ancestors.
func (m *Model) Expose(name string, verbs ...Verb) error {
	p, err := m.Lookup(name)
	if err != nil {
		return err
	}
	add := NewExposure(verbs...)
	if p.IsMethod() && (add.Has(VerbGet) || add.Has(VerbSet) || add.Has(VerbFind)) {
		return m.definitionError(name, "methods can only be exposed for call")
	}
	if p.IsAttribute() && add.Has(VerbCall) {
		return m.definitionError(name, "attributes cannot be exposed for call")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.exposures[name] = m.inheritedExposure(name).Union(add)
	return nil
}

// ExposureOf returns the verbs permitted on the property called name, as
// seen from m. Exposure is inherited from ancestors unless m or a closer
// ancestor extends it. Unknown names are not exposed.
func (m *Model) ExposureOf(name string) Exposure {
	m.mu.RLock()
	e, ok := m.exposures[name]
	m.mu.RUnlock()
	if ok {
		return e
	}
	if m.parent == nil {
		return 0
	}
	return m.parent.ExposureOf(name)
}

// inheritedExposure MUST be called with m.mu held.
func (m *Model) inheritedExposure(name string) Exposure {
	if e, ok := m.exposures[name]; ok {
		return e
	}
	if m.parent == nil {
		return 0
	}
	return m.parent.ExposureOf(name)
}

// String returns the model name.
func (m *Model) String() string { return m.name }

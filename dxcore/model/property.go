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
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
)

// Property is the static description of one named member of a model.
//
// A Property is created by Model.Declare (or its Attribute and Method
// shorthands) and is immutable afterwards; only the exposure of its name on
// a model may grow, through Model.Expose. Properties hold a non-owning
// back-reference to the model that declared them.
type Property struct {
	name       string
	owner      *Model
	kind       PropertyKind
	vtype      valuetype.ValueType
	role       IdentifierRole
	exposure   Exposure
	def        any
	defFunc    func() any
	hasDefault bool
	validators []Validator
}

// PropertyOption configures a property at declaration time.
type PropertyOption func(*Property)

// WithType sets the value type of an attribute.
func WithType(t valuetype.ValueType) PropertyOption {
	return func(p *Property) { p.vtype = t }
}

// AsPrimaryIdentifier marks the attribute as the primary identifier of an
// entity model.
func AsPrimaryIdentifier() PropertyOption {
	return func(p *Property) { p.role = PrimaryIdentifier }
}

// AsSecondaryIdentifier marks the attribute as a unique, mutable
// alternative key.
func AsSecondaryIdentifier() PropertyOption {
	return func(p *Property) { p.role = SecondaryIdentifier }
}

// WithIdentifierRole sets the identifier role directly.
func WithIdentifierRole(r IdentifierRole) PropertyOption {
	return func(p *Property) { p.role = r }
}

// WithDefault sets the value applied to the attribute when an instance is
// constructed without it. Slices are copied on every application.
func WithDefault(v any) PropertyOption {
	return func(p *Property) {
		p.def = v
		p.defFunc = nil
		p.hasDefault = true
	}
}

// WithDefaultFunc sets a function producing the default value on every
// application.
func WithDefaultFunc(fn func() any) PropertyOption {
	return func(p *Property) {
		p.def = nil
		p.defFunc = fn
		p.hasDefault = fn != nil
	}
}

// WithValidators appends validators to the attribute.
func WithValidators(vs ...Validator) PropertyOption {
	return func(p *Property) { p.validators = append(p.validators, vs...) }
}

// WithExposure permits the given remote verbs on the property.
func WithExposure(verbs ...Verb) PropertyOption {
	return func(p *Property) { p.exposure = p.exposure.With(verbs...) }
}

// Name returns the property name, unique within its model.
func (p *Property) Name() string { return p.name }

// Owner returns the model that declared p.
func (p *Property) Owner() *Model { return p.owner }

// Kind returns whether p is an attribute or a method.
func (p *Property) Kind() PropertyKind { return p.kind }

// IsAttribute reports whether p is an attribute.
func (p *Property) IsAttribute() bool { return p.kind == KindAttribute }

// IsMethod reports whether p is a method.
func (p *Property) IsMethod() bool { return p.kind == KindMethod }

// ValueType returns the declared type of an attribute. It is the zero
// ValueType for methods.
func (p *Property) ValueType() valuetype.ValueType { return p.vtype }

// IdentifierRole returns the identifier role of p.
func (p *Property) IdentifierRole() IdentifierRole { return p.role }

// IsPrimaryIdentifier reports whether p is the primary identifier.
func (p *Property) IsPrimaryIdentifier() bool { return p.role == PrimaryIdentifier }

// IsSecondaryIdentifier reports whether p is a secondary identifier.
func (p *Property) IsSecondaryIdentifier() bool { return p.role == SecondaryIdentifier }

// IsIdentifier reports whether p is a primary or secondary identifier.
func (p *Property) IsIdentifier() bool { return p.role != NotIdentifier }

// Exposure returns the verbs permitted on p by its owning model, including
// the ones added after declaration with Model.Expose.
func (p *Property) Exposure() Exposure { return p.owner.ExposureOf(p.name) }

// Default returns the default value of p, evaluating a default function
// when one was declared. The boolean is false when p has no default.
func (p *Property) Default() (any, bool) {
	if !p.hasDefault {
		return nil, false
	}
	if p.defFunc != nil {
		return valuetype.Normalize(p.defFunc()), true
	}
	return valuetype.Normalize(p.def), true
}

// Validators returns a copy of the validators of p.
func (p *Property) Validators() []Validator {
	return append([]Validator(nil), p.validators...)
}

// FailedValidators returns the names of the validators that reject value.
// The Undefined sentinel is never validated.
func (p *Property) FailedValidators(value any) []string {
	if valuetype.IsUndefined(value) {
		return nil
	}
	var failed []string
	for _, v := range p.validators {
		if !v.Valid(value) {
			failed = append(failed, v.Name)
		}
	}
	return failed
}

// String returns "Model.name".
func (p *Property) String() string {
	if p.owner == nil {
		return p.name
	}
	return p.owner.name + "." + p.name
}

// Filters usable with Model.Properties.
var (
	IsAttribute  = func(p *Property) bool { return p.IsAttribute() }
	IsMethod     = func(p *Property) bool { return p.IsMethod() }
	IsIdentifier = func(p *Property) bool { return p.IsIdentifier() }
)

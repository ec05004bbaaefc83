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

package component

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/identity"
	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
	"dirpx.dev/dxcomp/dxcore/selector"
)

// Compile-time checks.
var (
	_ valuetype.Typed = (*Instance)(nil)
	_ slog.LogValuer  = (*Instance)(nil)
)

// AttributeState is the live value of one attribute on one instance.
//
// An attribute that is not set has an unknown value: it was never written
// locally and never loaded. Value and Source are meaningless in that state.
// An attribute set to valuetype.Undefined is known to hold no value.
type AttributeState struct {
	prop   *model.Property
	set    bool
	value  any
	source model.Source
}

// Property returns the declaration of the attribute.
func (a AttributeState) Property() *model.Property { return a.prop }

// IsSet reports whether the value of the attribute is known.
func (a AttributeState) IsSet() bool { return a.set }

// Value returns the attribute value. Arrays and objects are copied.
func (a AttributeState) Value() any {
	if !a.set {
		return nil
	}
	return copyValue(a.value)
}

// Source returns the origin of the value, or model.SourceUnset.
func (a AttributeState) Source() model.Source {
	if !a.set {
		return model.SourceUnset
	}
	return a.source
}

// Instance is one node of a component graph.
//
// The state of an instance is guarded by its own lock, so individual calls
// are safe for concurrent use. Sequences of calls are not atomic.
type Instance struct {
	model *model.Model

	mu       sync.RWMutex
	scope    *Scope
	attrs    map[string]AttributeState
	isNew    bool
	detached bool
	forkOf   *Instance
}

func newInstance(s *Scope, m *model.Model, isNew bool) *Instance {
	return &Instance{
		model: m,
		scope: s,
		attrs: make(map[string]AttributeState),
		isNew: isNew,
	}
}

// New constructs an instance of typeName from values.
//
// Values are type checked; plain map[string]any values of component-typed
// attributes are promoted to instances. When the scope configuration says
// so, declared defaults fill the attributes missing from values and an
// entity without a string primary identifier receives a ULID. The instance
// is then registered under its identifiers: a primary or secondary
// identifier already bound to another instance yields
// *errors.DuplicateIdentifierError. The same holds for the entities built
// from nested plain maps, which are never merged into live instances. On
// error every instance created along the way is removed from the identity
// map again.
//
// The returned instance is marked as new until it is saved.
func (s *Scope) New(typeName string, values map[string]any) (*Instance, error) {
	m, err := s.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	var fresh []*Instance
	inst, err := s.construct(m, values, &fresh)
	if err != nil {
		s.discard(fresh)
		return nil, err
	}
	s.logger.Debug("component created", "component", inst)
	return inst, nil
}

func (s *Scope) construct(m *model.Model, values map[string]any, fresh *[]*Instance) (*Instance, error) {
	inst := newInstance(s, m, true)

	props := make(map[string]*model.Property, len(values))
	prepared := make(map[string]any, len(values))
	for _, name := range slices.Sorted(maps.Keys(values)) {
		p, err := attributeOf(m, name)
		if err != nil {
			return nil, err
		}
		v, err := s.prepare(name, values[name], p.ValueType(), fresh)
		if err != nil {
			return nil, err
		}
		props[name], prepared[name] = p, v
	}

	for p := range m.Attributes() {
		if _, ok := prepared[p.Name()]; ok {
			continue
		}
		if p.IsPrimaryIdentifier() {
			if id := s.newIdentifier(p); id != nil {
				props[p.Name()], prepared[p.Name()] = p, id
			}
			continue
		}
		if !s.cfg.ApplyDefaults {
			continue
		}
		if d, ok := p.Default(); ok {
			v, err := s.prepare(p.Name(), d, p.ValueType(), fresh)
			if err != nil {
				return nil, err
			}
			props[p.Name()], prepared[p.Name()] = p, v
		}
	}

	var keys []identity.Key
	for name, p := range props {
		if p.IsIdentifier() && keyValue(prepared[name]) != nil {
			keys = append(keys, identity.Key{Field: name, Value: prepared[name]})
		}
	}
	if len(keys) > 0 {
		if err := s.identities.Register(m.Name(), inst, keys...); err != nil {
			return nil, err
		}
	}

	for name, v := range prepared {
		inst.attrs[name] = AttributeState{prop: props[name], set: true, value: v, source: model.SourceLocal}
	}
	return inst, nil
}

func attributeOf(m *model.Model, name string) (*model.Property, error) {
	p, err := m.Lookup(name)
	if err != nil || !p.IsAttribute() {
		return nil, &dxerrors.NotFoundError{Kind: "attribute", Owner: m.Name(), Name: name}
	}
	return p, nil
}

// ComponentType returns the model name of i.
func (i *Instance) ComponentType() string { return i.model.Name() }

// TypeName returns the model name of i.
func (i *Instance) TypeName() string { return i.model.Name() }

// Model returns the model of i.
func (i *Instance) Model() *model.Model { return i.model }

// Scope returns the scope i lives in.
func (i *Instance) Scope() *Scope {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.scope
}

// IsNew reports whether i has not been persisted yet.
func (i *Instance) IsNew() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.isNew
}

// IsDetached reports whether i was removed from its identity map.
func (i *Instance) IsDetached() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.detached
}

// ForkOf returns the instance i was forked from, or nil.
func (i *Instance) ForkOf() *Instance {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.forkOf
}

// Identifier returns the primary identifier value of i.
func (i *Instance) Identifier() (any, bool) {
	pid := i.model.PrimaryIdentifier()
	if pid == nil {
		return nil, false
	}
	st := i.state(pid.Name())
	return st.value, st.set
}

// GetOption configures Get.
type GetOption func(*getOptions)

type getOptions struct {
	allowUnset bool
}

// AllowUnset makes Get return nil instead of an error for attributes that
// are not set.
func AllowUnset() GetOption {
	return func(o *getOptions) { o.allowUnset = true }
}

// Get returns the value of the attribute called name. Reading an attribute
// that is not set fails with *errors.UnsetAttributeError unless AllowUnset
// is given.
func (i *Instance) Get(name string, opts ...GetOption) (any, error) {
	var o getOptions
	for _, opt := range opts {
		opt(&o)
	}
	if _, err := attributeOf(i.model, name); err != nil {
		return nil, err
	}
	st := i.state(name)
	if !st.set {
		if o.allowUnset {
			return nil, nil
		}
		return nil, &dxerrors.UnsetAttributeError{Type: i.TypeName(), Field: name}
	}
	return copyValue(st.value), nil
}

// Attribute returns the state of the attribute called name.
func (i *Instance) Attribute(name string) (*AttributeState, error) {
	p, err := attributeOf(i.model, name)
	if err != nil {
		return nil, err
	}
	st := i.state(name)
	st.prop = p
	return &st, nil
}

// Set writes the attribute called name and returns the selector of the
// fields that changed (None when the value was already set locally to an
// equal value).
//
// A primary identifier is immutable once set: changing it fails with
// *errors.ImmutableIdentifierError and leaves the value untouched. Setting
// an unset primary identifier registers i under it. Secondary identifiers
// are reindexed atomically.
func (i *Instance) Set(name string, value any) (selector.Selector, error) {
	if err := i.checkAttached(); err != nil {
		return selector.None, err
	}
	p, err := attributeOf(i.model, name)
	if err != nil {
		return selector.None, err
	}
	s := i.Scope()
	var fresh []*Instance
	v, err := s.prepare(name, value, p.ValueType(), &fresh)
	if err != nil {
		s.discard(fresh)
		return selector.None, err
	}
	changed, err := i.assign(p, v, model.SourceLocal)
	if err != nil {
		s.discard(fresh)
		return selector.None, err
	}
	return changed, nil
}

// Unset forgets the value of the attribute called name. Primary
// identifiers cannot be unset once set.
func (i *Instance) Unset(name string) (selector.Selector, error) {
	if err := i.checkAttached(); err != nil {
		return selector.None, err
	}
	p, err := attributeOf(i.model, name)
	if err != nil {
		return selector.None, err
	}
	return i.forget(p)
}

// forget drops the value of p, removing secondary identifier entries.
func (i *Instance) forget(p *model.Property) (selector.Selector, error) {
	name := p.Name()
	old := i.state(name)
	if !old.set {
		return selector.None, nil
	}
	switch {
	case p.IsPrimaryIdentifier():
		return selector.None, &dxerrors.ImmutableIdentifierError{Type: i.TypeName(), Field: name, Value: old.value}
	case p.IsSecondaryIdentifier():
		if err := i.Scope().identities.Reindex(i.TypeName(), i, name, keyValue(old.value), nil); err != nil {
			return selector.None, err
		}
	}
	i.mu.Lock()
	delete(i.attrs, name)
	i.mu.Unlock()
	return selector.FromFieldNames(name), nil
}

// assign writes an already prepared value, maintaining the identity map.
func (i *Instance) assign(p *model.Property, v any, src model.Source) (selector.Selector, error) {
	name := p.Name()
	old := i.state(name)
	s := i.Scope()

	switch {
	case p.IsPrimaryIdentifier():
		if old.set {
			if sameValue(old.value, v) {
				return selector.None, nil
			}
			return selector.None, &dxerrors.ImmutableIdentifierError{Type: i.TypeName(), Field: name, Value: old.value, Attempted: v}
		}
		if err := s.identities.Register(i.TypeName(), i, identity.Key{Field: name, Value: v}); err != nil {
			return selector.None, err
		}
	case p.IsSecondaryIdentifier():
		var oldValue any
		if old.set {
			oldValue = keyValue(old.value)
		}
		if err := s.identities.Reindex(i.TypeName(), i, name, oldValue, keyValue(v)); err != nil {
			return selector.None, err
		}
	}

	if old.set && old.source == src && sameValue(old.value, v) {
		return selector.None, nil
	}
	i.mu.Lock()
	i.attrs[name] = AttributeState{prop: p, set: true, value: v, source: src}
	i.mu.Unlock()
	return selector.FromFieldNames(name), nil
}

// Detach removes i from the identity map of its scope. A detached instance
// keeps its state but can no longer be modified, loaded, saved or forked,
// and is never returned by identity lookups.
func (i *Instance) Detach() {
	i.mu.Lock()
	if i.detached {
		i.mu.Unlock()
		return
	}
	i.detached = true
	s := i.scope
	i.mu.Unlock()

	n := s.identities.Forget(i.TypeName(), i)
	s.logger.Debug("component detached", "component", i, "entries", n)
}

func (i *Instance) checkAttached() error {
	if i.IsDetached() {
		id, _ := i.Identifier()
		return &dxerrors.DetachedEntityError{Type: i.TypeName(), Identifier: id}
	}
	return nil
}

// ResolvedSelector describes the fields of i, and of the components it
// holds, that are set. A component reached again through a cycle
// contributes the empty mapping.
func (i *Instance) ResolvedSelector() selector.Selector {
	return i.resolved(make(map[*Instance]bool))
}

func (i *Instance) resolved(visiting map[*Instance]bool) selector.Selector {
	if visiting[i] {
		return selector.Fields(nil)
	}
	visiting[i] = true
	defer delete(visiting, i)

	out := make(map[string]selector.Selector)
	for _, st := range i.snapshot() {
		out[st.prop.Name()] = resolvedValue(st.value, visiting)
	}
	return selector.Fields(out)
}

func resolvedValue(v any, visiting map[*Instance]bool) selector.Selector {
	switch x := v.(type) {
	case *Instance:
		return x.resolved(visiting)
	case []any:
		sel := selector.All
		for _, e := range x {
			sel = selector.Intersect(sel, resolvedValue(e, visiting))
		}
		return sel
	}
	return selector.All
}

// Validate runs the validators of every attribute selected by sel,
// descending into embedded components. Entities held by i are foreign
// state and are not validated. Required attributes that are unset or
// Undefined fail with model.RequiredValidatorName. All failures are
// reported in one *errors.ValidationError whose paths look like
// "title", "address.city" or "cast[0].name".
func (i *Instance) Validate(sel selector.Selector) error {
	var failures []dxerrors.ValidationFailure
	i.collectFailures(sel, "", make(map[*Instance]bool), &failures)
	if len(failures) > 0 {
		return &dxerrors.ValidationError{Type: i.TypeName(), Failures: failures}
	}
	return nil
}

func (i *Instance) collectFailures(sel selector.Selector, prefix string, visited map[*Instance]bool, out *[]dxerrors.ValidationFailure) {
	if sel.IsNone() || visited[i] {
		return
	}
	visited[i] = true

	for p := range i.model.Attributes() {
		sub := sel.Get(p.Name())
		if sub.IsNone() {
			continue
		}
		path := p.Name()
		if prefix != "" {
			path = prefix + "." + path
		}
		st := i.state(p.Name())
		if !st.set || valuetype.IsUndefined(st.value) {
			if !p.ValueType().IsOptional() {
				*out = append(*out, dxerrors.ValidationFailure{Validator: model.RequiredValidatorName, Path: path})
			}
			continue
		}
		for _, name := range p.FailedValidators(st.value) {
			*out = append(*out, dxerrors.ValidationFailure{Validator: name, Path: path})
		}
		validateNested(st.value, sub, path, visited, out)
	}
}

func validateNested(v any, sel selector.Selector, path string, visited map[*Instance]bool, out *[]dxerrors.ValidationFailure) {
	switch x := v.(type) {
	case *Instance:
		if !x.model.IsEntity() {
			x.collectFailures(sel, path, visited, out)
		}
	case []any:
		for idx, e := range x {
			validateNested(e, sel, fmt.Sprintf("%s[%d]", path, idx), visited, out)
		}
	}
}

// String returns "Type" or "Type(identifier)".
func (i *Instance) String() string {
	if id, ok := i.Identifier(); ok {
		return fmt.Sprintf("%s(%v)", i.TypeName(), id)
	}
	return i.TypeName()
}

// LogValue implements slog.LogValuer.
func (i *Instance) LogValue() slog.Value {
	attrs := []slog.Attr{slog.String("type", i.TypeName())}
	if id, ok := i.Identifier(); ok {
		attrs = append(attrs, slog.Any("id", id))
	}
	attrs = append(attrs, slog.Bool("new", i.IsNew()))
	return slog.GroupValue(attrs...)
}

// state returns a copy of the state of name; the zero state when unset.
func (i *Instance) state(name string) AttributeState {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.attrs[name]
}

// snapshot returns the set attributes of i in declaration order.
func (i *Instance) snapshot() []AttributeState {
	i.mu.RLock()
	attrs := maps.Clone(i.attrs)
	i.mu.RUnlock()

	out := make([]AttributeState, 0, len(attrs))
	for p := range i.model.Attributes() {
		if st, ok := attrs[p.Name()]; ok && st.set {
			out = append(out, st)
		}
	}
	return out
}

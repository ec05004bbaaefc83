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
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/identity"
	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
	"dirpx.dev/dxcomp/dxcore/wire"
)

// DeserializeOptions configures Deserialize.
type DeserializeOptions struct {
	// Source is recorded on every written attribute. SourceUnset selects
	// the configured default source.
	Source model.Source

	// RootType is the expected type of the root node. The node MAY name a
	// subtype. When empty the node MUST carry a type tag.
	RootType string

	// ApplyDefaults fills declared defaults into instances created by this
	// call. Existing instances are never defaulted.
	ApplyDefaults bool

	// RequireExposure rejects fields that are not exposed for set. The
	// primary identifier is always accepted.
	RequireExposure bool
}

// Deserialize merges tree into the graph of s and returns the root
// instance.
//
// Entity nodes resolve through the identity map: a node whose primary
// identifier is already bound updates that instance in place, a node
// without one is matched on its secondary identifiers, and only then is a
// new instance created. Identifier values are type checked before any
// lookup. Reference nodes yield the bound instance or a placeholder that
// carries only its identifier; a reference to an embedded model fails with
// *errors.UnreferenceableEntityError. Embedded nodes merge into
// the embedded component currently held by the same attribute when it has
// the same type.
//
// Fields absent from a node are left untouched. A null or undefined field
// sets an optional attribute to valuetype.Undefined and makes a required
// attribute unset again. Unknown fields fail with *errors.NotFoundError.
//
// Deserialize is not transactional: on error, the fields merged before the
// failing one stay merged.
func (s *Scope) Deserialize(ctx context.Context, tree any, opts DeserializeOptions) (*Instance, error) {
	node, ok := tree.(map[string]any)
	if !ok {
		return nil, &dxerrors.UnmarshalError{Type: "tree", Reason: fmt.Sprintf("root is %s, not a component node", valuetype.Describe(tree))}
	}
	src := opts.Source
	if src == model.SourceUnset {
		src = s.cfg.DefaultSource
	}
	d := s.decoder(src, opts.ApplyDefaults, opts.RequireExposure)
	d.log = s.log(ctx)

	inst, err := d.component("", node, opts.RootType, 1, nil)
	if err != nil {
		d.log.Debug("deserialize failed", "source", src, "error", err)
		return nil, err
	}
	d.log.Debug("component deserialized", "component", inst, "source", src, "created", len(d.fresh))
	return inst, nil
}

// decoder holds the state of one deserialization pass.
type decoder struct {
	scope           *Scope
	source          model.Source
	applyDefaults   bool
	requireExposure bool
	log             *slog.Logger

	// promoting marks a local plain map promotion: instances found in the
	// input are accepted as they are, created components are new and an
	// entity node naming a bound identifier is a duplicate, not an update.
	promoting bool

	// fresh lists the instances created by this pass.
	fresh []*Instance
}

func (s *Scope) decoder(src model.Source, applyDefaults, requireExposure bool) *decoder {
	return &decoder{
		scope:           s,
		source:          src,
		applyDefaults:   applyDefaults,
		requireExposure: requireExposure,
		log:             s.logger,
	}
}

// component decodes one component node found at path.
func (d *decoder) component(path string, node map[string]any, expected string, depth int, current any) (*Instance, error) {
	s := d.scope
	if depth > s.cfg.MaxDepth {
		return nil, &dxerrors.UnmarshalError{Type: expected, Reason: fmt.Sprintf("tree deeper than %d levels at %s", s.cfg.MaxDepth, pathOrRoot(path))}
	}

	typeName := wire.TypeOf(node)
	if typeName == "" {
		if _, tagged := node[wire.ComponentKey]; tagged || expected == "" {
			return nil, &dxerrors.UnknownTypeError{Type: typeName}
		}
		typeName = expected
	}
	m, err := s.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	if expected != "" && typeName != expected && !s.registry.IsSubtype(typeName, expected) {
		return nil, &dxerrors.TypeMismatchError{Field: pathOrRoot(path), Expected: expected, Actual: typeName}
	}

	var (
		inst    *Instance
		created bool
	)
	if m.IsEntity() {
		inst, created, err = d.entity(path, m, node)
		if err != nil {
			return nil, err
		}
	} else {
		if wire.IsRef(node) {
			return nil, &dxerrors.UnreferenceableEntityError{Type: m.Name(), Path: pathOrRoot(path)}
		}
		if c, ok := current.(*Instance); ok && c.model == m && c.Scope() == s {
			inst = c
		} else {
			inst, created = newInstance(s, m, true), true
		}
	}
	if created {
		d.fresh = append(d.fresh, inst)
	}

	if wire.IsRef(node) {
		return inst, nil
	}
	inst.mu.Lock()
	switch {
	case created:
		inst.isNew = d.promoting || wire.IsNew(node)
	case !wire.IsNew(node) && d.source.IsRemote():
		inst.isNew = false
	}
	inst.mu.Unlock()
	if err := d.fields(path, inst, node, depth); err != nil {
		return nil, err
	}
	if created && d.applyDefaults {
		if err := d.defaults(inst); err != nil {
			return nil, err
		}
	}
	return inst, nil
}

// entity resolves the instance an entity node denotes. Identifier values
// are type checked before they reach the identity map.
func (d *decoder) entity(path string, m *model.Model, node map[string]any) (*Instance, bool, error) {
	s := d.scope
	ref := wire.IsRef(node)
	pid := m.PrimaryIdentifier()
	if pid != nil {
		if raw := node[pid.Name()]; keyValue(raw) != nil && !wire.IsUndefined(raw) {
			id := valuetype.Normalize(raw)
			if err := valuetype.Check(joinPath(path, pid.Name()), id, pid.ValueType(), nil); err != nil {
				return nil, false, err
			}
			inst, created := s.identities.ResolveOrRegister(m.Name(), identity.Key{Field: pid.Name(), Value: id}, func() *Instance {
				n := newInstance(s, m, false)
				n.attrs[pid.Name()] = AttributeState{prop: pid, set: true, value: id, source: d.source}
				return n
			})
			if d.promoting && !ref && !created {
				return nil, false, &dxerrors.DuplicateIdentifierError{Type: m.Name(), Field: pid.Name(), Value: id}
			}
			return inst, created, nil
		}
	}
	if ref {
		return nil, false, &dxerrors.UnreferenceableEntityError{Type: m.Name(), Path: path}
	}

	for _, p := range m.SecondaryIdentifiers() {
		raw := node[p.Name()]
		if keyValue(raw) == nil || wire.IsUndefined(raw) {
			continue
		}
		v := valuetype.Normalize(raw)
		if err := valuetype.Check(joinPath(path, p.Name()), v, p.ValueType(), nil); err != nil {
			return nil, false, err
		}
		if inst, ok := s.identities.Resolve(m.Name(), p.Name(), v); ok {
			if d.promoting {
				return nil, false, &dxerrors.DuplicateIdentifierError{Type: m.Name(), Field: p.Name(), Value: v}
			}
			return inst, false, nil
		}
	}

	inst := newInstance(s, m, true)
	if pid != nil {
		if id := s.newIdentifier(pid); id != nil {
			if _, err := inst.assign(pid, id, model.SourceLocal); err != nil {
				return nil, false, err
			}
		}
	}
	return inst, true, nil
}

// fields merges the attributes of node into inst in declaration order.
func (d *decoder) fields(path string, inst *Instance, node map[string]any, depth int) error {
	m := inst.model
	keys := wire.Fields(node)
	slices.Sort(keys)
	for _, k := range keys {
		p, err := attributeOf(m, k)
		if err != nil {
			return err
		}
		if d.requireExposure && !p.IsPrimaryIdentifier() && !p.Exposure().Has(model.VerbSet) {
			return &dxerrors.ExposureError{Type: m.Name(), Field: k, Verb: model.VerbSet.String()}
		}
	}

	for p := range m.Attributes() {
		raw, ok := node[p.Name()]
		if !ok {
			continue
		}
		fp := joinPath(path, p.Name())
		if p.IsPrimaryIdentifier() && (raw == nil || wire.IsUndefined(raw)) {
			continue
		}
		v, err := d.value(fp, raw, p.ValueType(), depth, inst.state(p.Name()).value)
		if err != nil {
			return err
		}
		if valuetype.IsUndefined(v) && !p.ValueType().IsOptional() {
			if _, err := inst.forget(p); err != nil {
				return err
			}
			continue
		}
		if err := valuetype.Check(fp, v, p.ValueType(), d.scope.registry); err != nil {
			return err
		}
		if _, err := inst.assign(p, v, d.source); err != nil {
			return err
		}
	}
	return nil
}

// value decodes a field value of type vt. null and the undefined marker
// decode to valuetype.Undefined.
func (d *decoder) value(path string, node any, vt valuetype.ValueType, depth int, current any) (any, error) {
	if node == nil || wire.IsUndefined(node) || valuetype.IsUndefined(node) {
		return valuetype.Undefined, nil
	}
	switch {
	case vt.IsArray():
		items, ok := valuetype.Normalize(node).([]any)
		if !ok {
			return node, nil
		}
		out := make([]any, len(items))
		for idx, e := range items {
			v, err := d.value(fmt.Sprintf("%s[%d]", path, idx), e, vt.Elem(), depth, nil)
			if err != nil {
				return nil, err
			}
			out[idx] = v
		}
		return out, nil

	case vt.IsComponent():
		switch c := node.(type) {
		case *Instance:
			if d.promoting && c.Scope() == d.scope {
				return c, nil
			}
		case map[string]any:
			return d.component(path, c, vt.Name(), depth+1, current)
		}
		return node, nil

	case vt.Name() == valuetype.DateName:
		switch {
		case wire.IsDate(node):
			return wire.ParseDate(node)
		case d.promoting:
			if t, ok := node.(time.Time); ok {
				return t, nil
			}
		}
		return node, nil

	case vt.Name() == valuetype.ObjectName:
		if d.promoting {
			return plainValue(node), nil
		}
		return wire.DecodePlain(node)
	}
	return valuetype.Normalize(node), nil
}

// defaults fills the declared defaults of the unset attributes of inst.
func (d *decoder) defaults(inst *Instance) error {
	for p := range inst.model.Attributes() {
		if p.IsPrimaryIdentifier() || inst.state(p.Name()).set {
			continue
		}
		def, ok := p.Default()
		if !ok {
			continue
		}
		v, err := d.scope.prepare(p.Name(), def, p.ValueType(), &d.fresh)
		if err != nil {
			return err
		}
		if _, err := inst.assign(p, v, model.SourceLocal); err != nil {
			return err
		}
	}
	return nil
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func pathOrRoot(path string) string {
	if path == "" {
		return "root"
	}
	return path
}

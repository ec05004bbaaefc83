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
	"time"

	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
	"dirpx.dev/dxcomp/dxcore/selector"
	"dirpx.dev/dxcomp/dxcore/wire"
)

// ReferenceMode selects how nested entities are encoded.
type ReferenceMode int

const (
	// ReferenceDeep inlines nested entities with their selected fields.
	ReferenceDeep ReferenceMode = iota

	// ReferenceOnly encodes nested entities as reference nodes carrying
	// only their primary identifier.
	ReferenceOnly
)

// String returns "deep" or "only".
func (m ReferenceMode) String() string {
	switch m {
	case ReferenceDeep:
		return "deep"
	case ReferenceOnly:
		return "only"
	}
	return fmt.Sprintf("ReferenceMode(%d)", int(m))
}

// SerializeOptions configures Serialize.
type SerializeOptions struct {
	// Target is the receiver of the tree. Attributes whose source equals
	// Target are omitted since the receiver already holds them.
	// SourceUnset omits nothing.
	Target model.Source

	// References selects how nested entities are encoded. The root is
	// always inlined.
	References ReferenceMode

	// Referenced, when not nil, collects every instance the tree mentions.
	Referenced *Referenced

	// SkipValidation disables the validation of the root.
	SkipValidation bool

	// RequireExposure omits attributes that are not exposed for get.
	RequireExposure bool
}

// Serialize encodes the fields of i selected by sel into a tree.
//
// The root is validated against sel first. Unset attributes are never
// emitted. Entity nodes always carry their primary identifier. An entity
// reached again while it is being encoded is emitted as a reference node,
// which makes cyclic graphs terminate; an embedded component, or an entity
// without identifier, in that position fails with
// *errors.UnreferenceableEntityError.
func (i *Instance) Serialize(sel selector.Selector, opts SerializeOptions) (map[string]any, error) {
	if !opts.SkipValidation {
		if err := i.Validate(sel); err != nil {
			return nil, err
		}
	}
	e := &encoder{
		registry: i.Scope().registry,
		opts:     opts,
		stack:    make(map[*Instance]bool),
	}
	return e.component(i, sel, "", true)
}

type encoder struct {
	registry *model.Registry
	opts     SerializeOptions
	stack    map[*Instance]bool
}

func (e *encoder) component(c *Instance, sel selector.Selector, path string, root bool) (map[string]any, error) {
	if m, err := e.registry.Lookup(c.TypeName()); err != nil || m != c.model {
		return nil, &dxerrors.UnknownTypeError{Type: c.TypeName()}
	}
	if e.stack[c] || (!root && c.model.IsEntity() && e.opts.References == ReferenceOnly) {
		return e.reference(c, path)
	}
	e.stack[c] = true
	defer delete(e.stack, c)
	e.opts.Referenced.Add(c)

	node := map[string]any{wire.ComponentKey: c.TypeName()}
	if c.IsNew() {
		node[wire.NewKey] = true
	}
	for _, st := range c.snapshot() {
		p := st.prop
		name := p.Name()
		if p.IsPrimaryIdentifier() {
			node[name] = st.value
			continue
		}
		sub := sel.Get(name)
		if sub.IsNone() {
			continue
		}
		if e.opts.Target != model.SourceUnset && st.source == e.opts.Target {
			continue
		}
		if e.opts.RequireExposure && !p.Exposure().Has(model.VerbGet) {
			continue
		}
		v, err := e.value(st.value, sub, joinPath(path, name))
		if err != nil {
			return nil, err
		}
		node[name] = v
	}
	return node, nil
}

func (e *encoder) reference(c *Instance, path string) (map[string]any, error) {
	pid := c.model.PrimaryIdentifier()
	id, ok := c.Identifier()
	if !c.model.IsEntity() || pid == nil || !ok {
		return nil, &dxerrors.UnreferenceableEntityError{Type: c.TypeName(), Path: path}
	}
	e.opts.Referenced.Add(c)
	return map[string]any{
		wire.ComponentKey: c.TypeName(),
		wire.RefKey:       true,
		pid.Name():        id,
	}, nil
}

func (e *encoder) value(v any, sel selector.Selector, path string) (any, error) {
	switch x := v.(type) {
	case *Instance:
		return e.component(x, sel, path, false)
	case []any:
		out := make([]any, len(x))
		for idx, item := range x {
			enc, err := e.value(item, sel, fmt.Sprintf("%s[%d]", path, idx))
			if err != nil {
				return nil, err
			}
			out[idx] = enc
		}
		return out, nil
	case time.Time:
		return wire.Date(x), nil
	case map[string]any:
		return wire.EncodePlain(x), nil
	}
	if valuetype.IsUndefined(v) {
		return wire.Undefined(), nil
	}
	return v, nil
}

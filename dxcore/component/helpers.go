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

	"dirpx.dev/rxmerr"

	"dirpx.dev/dxcomp/dxcore/selector"
	"dirpx.dev/dxcomp/dxcore/wire"
)

// ValidateAll validates a batch of instances against the same selector and
// returns every failure instead of stopping at the first one.
//
// Each failure is wrapped with the position of the instance in the slice
// and its description, so callers can tell exactly which instance failed
// and why. The combined error is built with rxmerr.Collector and can be
// inspected with errors.As for the individual *errors.ValidationError
// values. Empty slices are valid.
//
// Example usage before a batch save:
//
//	if err := component.ValidateAll(movies, selector.All); err != nil {
//	    log.Error("validation failed", "error", err)
//	}
func ValidateAll(insts []*Instance, sel selector.Selector) error {
	c := rxmerr.NewCollector()

	for i, inst := range insts {
		if err := inst.Validate(sel); err != nil {
			c.Append(fmt.Errorf("instance[%d] (%s): %w", i, inst, err))
		}
	}

	return c.Err()
}

// ToJSON serializes the fields of inst selected by sel and renders the tree
// as JSON. The root is validated first unless opts.SkipValidation is set;
// no bytes are produced for an invalid instance.
func ToJSON(inst *Instance, sel selector.Selector, opts SerializeOptions) ([]byte, error) {
	tree, err := inst.Serialize(sel, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal %s: %w", inst, err)
	}
	return wire.EncodeJSON(tree)
}

// ToYAML is the YAML counterpart of ToJSON.
func ToYAML(inst *Instance, sel selector.Selector, opts SerializeOptions) ([]byte, error) {
	tree, err := inst.Serialize(sel, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot marshal %s: %w", inst, err)
	}
	return wire.EncodeYAML(tree)
}

// FromJSON parses a JSON tree and merges it into s. Malformed input yields
// an *errors.UnmarshalError and leaves s untouched.
func FromJSON(ctx context.Context, s *Scope, data []byte, opts DeserializeOptions) (*Instance, error) {
	tree, err := wire.DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return s.Deserialize(ctx, tree, opts)
}

// FromYAML is the YAML counterpart of FromJSON.
func FromYAML(ctx context.Context, s *Scope, data []byte, opts DeserializeOptions) (*Instance, error) {
	tree, err := wire.DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	return s.Deserialize(ctx, tree, opts)
}

// Equal reports whether a and b have the same type, the same new flag and
// the same set attributes with equal values. Nested instances are compared
// structurally, so instances of different scopes can be equal; attribute
// sources are ignored. Cycles are handled.
func Equal(a, b *Instance) bool {
	return equalInstances(a, b, make(map[[2]*Instance]bool))
}

func equalInstances(a, b *Instance, assumed map[[2]*Instance]bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.TypeName() != b.TypeName() || a.IsNew() != b.IsNew() {
		return false
	}
	pair := [2]*Instance{a, b}
	if assumed[pair] {
		return true
	}
	assumed[pair] = true

	as, bs := a.snapshot(), b.snapshot()
	if len(as) != len(bs) {
		return false
	}
	for idx := range as {
		if as[idx].prop.Name() != bs[idx].prop.Name() || !equalValues(as[idx].value, bs[idx].value, assumed) {
			return false
		}
	}
	return true
}

func equalValues(a, b any, assumed map[[2]*Instance]bool) bool {
	switch x := a.(type) {
	case *Instance:
		y, ok := b.(*Instance)
		return ok && equalInstances(x, y, assumed)
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for idx := range x {
			if !equalValues(x[idx], y[idx], assumed) {
				return false
			}
		}
		return true
	}
	if _, ok := b.(*Instance); ok {
		return false
	}
	return sameValue(a, b)
}

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

	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
)

// prepare turns a caller supplied value into the stored representation of
// an attribute of type vt and checks it. Instances created by promotion
// are appended to fresh.
func (s *Scope) prepare(field string, value any, vt valuetype.ValueType, fresh *[]*Instance) (any, error) {
	v, err := s.promote(field, value, vt, fresh)
	if err != nil {
		return nil, err
	}
	if err := valuetype.Check(field, v, vt, s.registry); err != nil {
		return nil, err
	}
	return v, nil
}

// discard removes instances created by a failed construction from the
// identity map.
func (s *Scope) discard(fresh []*Instance) {
	for _, inst := range fresh {
		s.identities.Forget(inst.TypeName(), inst)
	}
}

// promote normalizes value and turns plain maps held by component-typed
// attributes into new instances of s, appending them to fresh.
func (s *Scope) promote(field string, value any, vt valuetype.ValueType, fresh *[]*Instance) (any, error) {
	if value == nil || valuetype.IsUndefined(value) {
		return value, nil
	}
	switch {
	case vt.IsArray():
		items, ok := valuetype.Normalize(value).([]any)
		if !ok {
			return value, nil
		}
		out := make([]any, len(items))
		for idx, e := range items {
			v, err := s.promote(fmt.Sprintf("%s[%d]", field, idx), e, vt.Elem(), fresh)
			if err != nil {
				return nil, err
			}
			out[idx] = v
		}
		return out, nil

	case vt.IsComponent():
		switch c := value.(type) {
		case *Instance:
			if c.Scope() != s {
				return nil, fmt.Errorf("dxcomp: %s for %s belongs to another scope", c, field)
			}
			return c, nil
		case map[string]any:
			d := s.decoder(model.SourceLocal, s.cfg.ApplyDefaults, false)
			d.promoting = true
			inst, err := d.component(field, c, vt.Name(), 1, nil)
			*fresh = append(*fresh, d.fresh...)
			return inst, err
		}
		return value, nil

	case vt.Name() == valuetype.ObjectName:
		return plainValue(value), nil
	}
	return valuetype.Normalize(value), nil
}

// keyValue maps a stored identifier value to an identity map key; nil
// means no entry.
func keyValue(v any) any {
	if v == nil || valuetype.IsUndefined(v) {
		return nil
	}
	return v
}

// plainValue copies a free-form object, normalizing the values it holds.
func plainValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plainValue(e)
		}
		return out
	}
	n := valuetype.Normalize(v)
	if items, ok := n.([]any); ok {
		for i, e := range items {
			items[i] = plainValue(e)
		}
	}
	return n
}

// copyValue copies the containers of a stored value. Instances are shared.
func copyValue(v any) any {
	switch x := v.(type) {
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = copyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = copyValue(e)
		}
		return out
	}
	return v
}

// sameValue compares two stored values. Instances compare by identity.
func sameValue(a, b any) bool {
	switch x := a.(type) {
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !sameValue(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, e := range x {
			f, ok := y[k]
			if !ok || !sameValue(e, f) {
				return false
			}
		}
		return true
	case time.Time:
		y, ok := b.(time.Time)
		return ok && x.Equal(y)
	}
	switch b.(type) {
	case []any, map[string]any, time.Time:
		return false
	}
	return a == b
}

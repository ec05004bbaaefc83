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

package valuetype

import (
	"fmt"
	"reflect"
	"time"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"

	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
)

// Coerce converts a loosely typed value into the canonical representation
// of t. Primitive conversions go through cty, so "42" becomes 42 for a
// number field and "true" becomes true for a boolean. Arrays are coerced
// item by item; component values are returned as they are.
//
// nil and Undefined coerce to Undefined for optional types and fail
// otherwise.
func Coerce(field string, value any, t ValueType) (any, error) {
	if value == nil || IsUndefined(value) {
		if t.optional {
			return Undefined, nil
		}
		return nil, mismatch(field, t, Describe(value))
	}

	switch t.kind {
	case KindArray:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice {
			return nil, mismatch(field, t, Describe(value))
		}
		out := make([]any, rv.Len())
		for i := range out {
			v, err := Coerce(fmt.Sprintf("%s[%d]", field, i), rv.Index(i).Interface(), *t.elem)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case KindComponent:
		return value, nil
	}

	switch t.name {
	case ObjectName:
		if cv, ok := value.(cty.Value); ok {
			value, _ = FromCty(cv)
		}
		m, ok := value.(map[string]any)
		if !ok {
			return nil, mismatch(field, t, Describe(value))
		}
		return m, nil
	case DateName:
		switch v := value.(type) {
		case time.Time:
			return v, nil
		case string:
			d, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return nil, mismatch(field, t, StringName)
			}
			return d, nil
		}
		return nil, mismatch(field, t, Describe(value))
	}

	cv, ok := toCty(value)
	if !ok {
		return nil, mismatch(field, t, Describe(value))
	}
	converted, err := convert.Convert(cv, primitiveCtyType(t.name))
	if err != nil {
		return nil, mismatch(field, t, Describe(value))
	}
	return FromCty(converted)
}

// FromCty converts a known cty value into plain Go data: string, float64,
// bool, []any or map[string]any. A null value converts to nil.
func FromCty(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	if !v.IsKnown() {
		return nil, &dxerrors.UnmarshalError{Type: "cty.Value", Reason: "value is not known"}
	}

	ty := v.Type()
	switch {
	case ty.Equals(cty.String):
		return v.AsString(), nil
	case ty.Equals(cty.Number):
		f, _ := v.AsBigFloat().Float64()
		return f, nil
	case ty.Equals(cty.Bool):
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			x, err := FromCty(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, x)
		}
		return out, nil
	case ty.IsMapType() || ty.IsObjectType():
		out := make(map[string]any)
		for k, ev := range v.AsValueMap() {
			x, err := FromCty(ev)
			if err != nil {
				return nil, err
			}
			out[k] = x
		}
		return out, nil
	}
	return nil, &dxerrors.UnmarshalError{Type: "cty.Value", Reason: "unsupported type " + ty.FriendlyName()}
}

func toCty(value any) (cty.Value, bool) {
	switch v := value.(type) {
	case cty.Value:
		return v, true
	case string:
		return cty.StringVal(v), true
	case bool:
		return cty.BoolVal(v), true
	}
	if f, ok := toFloat(value); ok {
		return cty.NumberFloatVal(f), true
	}
	return cty.NilVal, false
}

func primitiveCtyType(name string) cty.Type {
	switch name {
	case NumberName:
		return cty.Number
	case BooleanName:
		return cty.Bool
	}
	return cty.String
}

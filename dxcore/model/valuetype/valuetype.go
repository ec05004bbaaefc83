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

// Package valuetype describes the declared type of a model attribute and
// checks runtime values against it.
//
// A type specifier is a base name followed by optional suffixes:
//
//	string        a required string
//	number?       a number that may be undefined
//	Movie         a component of model Movie (or one of its subtypes)
//	string?[]     a required array of optional strings
//	Movie[]?      an optional array of required Movie components
//	number[][]    nested arrays
//
// Base names are string, number, boolean, object (a free-form
// map[string]any), Date (time.Time) or a component type name. The
// optionality of an array and the optionality of its items are orthogonal.
//
// nil is never a valid value. A field that holds "no value" holds the
// Undefined sentinel, which is accepted only by optional types; the wire
// decoder is the only place where a null is translated into Undefined.
package valuetype

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
)

// Kind classifies a ValueType.
type Kind int

const (
	// KindPrimitive is one of string, number, boolean, object or Date.
	KindPrimitive Kind = iota
	// KindComponent refers to a model by name.
	KindComponent
	// KindArray is an array of an item ValueType.
	KindArray
)

// Primitive base names.
const (
	StringName  = "string"
	NumberName  = "number"
	BooleanName = "boolean"
	ObjectName  = "object"
	DateName    = "Date"
)

var namePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValueType is the immutable description of one field's accepted shape.
type ValueType struct {
	kind     Kind
	name     string
	elem     *ValueType
	optional bool
}

// String returns the required string type.
func String() ValueType { return ValueType{kind: KindPrimitive, name: StringName} }

// Number returns the required number type.
func Number() ValueType { return ValueType{kind: KindPrimitive, name: NumberName} }

// Boolean returns the required boolean type.
func Boolean() ValueType { return ValueType{kind: KindPrimitive, name: BooleanName} }

// Object returns the required free-form object type.
func Object() ValueType { return ValueType{kind: KindPrimitive, name: ObjectName} }

// Date returns the required Date type.
func Date() ValueType { return ValueType{kind: KindPrimitive, name: DateName} }

// Component returns the required component type for the named model.
func Component(name string) ValueType { return ValueType{kind: KindComponent, name: name} }

// ArrayOf returns a required array type of elem items.
func ArrayOf(elem ValueType) ValueType {
	return ValueType{kind: KindArray, elem: &elem}
}

// Parse parses a type specifier such as "string?[]".
func Parse(spec string) (ValueType, error) {
	t, ok := parse(strings.TrimSpace(spec))
	if !ok {
		return ValueType{}, &dxerrors.ParseError{Type: "ValueType", Value: spec}
	}
	return t, nil
}

// MustParse is like Parse but panics on error.
func MustParse(spec string) ValueType {
	t, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return t
}

func parse(s string) (ValueType, bool) {
	optional := false
	if strings.HasSuffix(s, "?") {
		optional = true
		s = s[:len(s)-1]
	}
	if strings.HasSuffix(s, "[]") {
		elem, ok := parse(s[:len(s)-2])
		if !ok {
			return ValueType{}, false
		}
		return ValueType{kind: KindArray, elem: &elem, optional: optional}, true
	}
	if !namePattern.MatchString(s) {
		return ValueType{}, false
	}
	kind := KindComponent
	if isPrimitiveName(s) {
		kind = KindPrimitive
	}
	return ValueType{kind: kind, name: s, optional: optional}, true
}

func isPrimitiveName(name string) bool {
	switch name {
	case StringName, NumberName, BooleanName, ObjectName, DateName:
		return true
	}
	return false
}

// Kind returns the kind of t.
func (t ValueType) Kind() Kind { return t.kind }

// Name returns the base name of a primitive or component type, or an empty
// string for arrays.
func (t ValueType) Name() string { return t.name }

// IsOptional reports whether t accepts Undefined.
func (t ValueType) IsOptional() bool { return t.optional }

// IsArray reports whether t is an array type.
func (t ValueType) IsArray() bool { return t.kind == KindArray }

// IsComponent reports whether t refers to a model.
func (t ValueType) IsComponent() bool { return t.kind == KindComponent }

// IsPrimitive reports whether t is a primitive type.
func (t ValueType) IsPrimitive() bool { return t.kind == KindPrimitive }

// IsZero reports whether t is the zero ValueType, which describes nothing.
func (t ValueType) IsZero() bool { return t.kind == KindPrimitive && t.name == "" }

// Elem returns the item type of an array type. It returns the zero
// ValueType for non-array types.
func (t ValueType) Elem() ValueType {
	if t.elem == nil {
		return ValueType{}
	}
	return *t.elem
}

// Innermost returns the first non-array type reached by following Elem.
func (t ValueType) Innermost() ValueType {
	for t.kind == KindArray {
		t = *t.elem
	}
	return t
}

// Optional returns a copy of t that accepts Undefined.
func (t ValueType) Optional() ValueType {
	t.optional = true
	return t
}

// Required returns a copy of t that rejects Undefined.
func (t ValueType) Required() ValueType {
	t.optional = false
	return t
}

// Equal reports whether t and other describe the same shape.
func (t ValueType) Equal(other ValueType) bool {
	return t.String() == other.String()
}

// String returns the canonical type specifier; Parse(t.String()) == t.
func (t ValueType) String() string {
	var s string
	if t.kind == KindArray {
		s = t.elem.String() + "[]"
	} else {
		s = t.name
	}
	if t.optional {
		s += "?"
	}
	return s
}

// undefined is the type of the Undefined sentinel.
type undefined struct{}

func (undefined) String() string { return "undefined" }

// Undefined is the value held by an attribute that is set to "no value".
// It is distinct from an unset attribute, whose value is unknown.
var Undefined any = undefined{}

// IsUndefined reports whether v is the Undefined sentinel.
func IsUndefined(v any) bool {
	_, ok := v.(undefined)
	return ok
}

// Typed is implemented by component instances.
type Typed interface {
	ComponentType() string
}

// Hierarchy answers subtype questions about component type names.
type Hierarchy interface {
	IsSubtype(typeName, ancestor string) bool
}

// Check verifies that value satisfies t. field names the checked value in
// the returned *errors.TypeMismatchError. h MAY be nil, in which case a
// component value must match the declared type name exactly.
func Check(field string, value any, t ValueType, h Hierarchy) error {
	if value == nil {
		return mismatch(field, t, "null")
	}
	if IsUndefined(value) {
		if t.optional {
			return nil
		}
		return mismatch(field, t, "undefined")
	}

	switch t.kind {
	case KindArray:
		rv := reflect.ValueOf(value)
		if rv.Kind() != reflect.Slice {
			return mismatch(field, t, Describe(value))
		}
		for i := 0; i < rv.Len(); i++ {
			if err := Check(fmt.Sprintf("%s[%d]", field, i), rv.Index(i).Interface(), *t.elem, h); err != nil {
				return err
			}
		}
		return nil

	case KindComponent:
		switch v := value.(type) {
		case Typed:
			if v.ComponentType() == t.name || (h != nil && h.IsSubtype(v.ComponentType(), t.name)) {
				return nil
			}
		case map[string]any:
			// Plain objects are promoted by the deserialization engine.
			return nil
		}
		return mismatch(field, t, Describe(value))
	}

	ok := false
	switch t.name {
	case StringName:
		_, ok = value.(string)
	case NumberName:
		_, ok = toFloat(value)
	case BooleanName:
		_, ok = value.(bool)
	case ObjectName:
		_, ok = value.(map[string]any)
	case DateName:
		_, ok = value.(time.Time)
	}
	if !ok {
		return mismatch(field, t, Describe(value))
	}
	return nil
}

// Normalize returns the canonical representation of an accepted value:
// every Go number becomes a float64 and every slice becomes a fresh []any.
// Other values are returned unchanged.
func Normalize(value any) any {
	switch v := value.(type) {
	case nil, string, bool, float64, time.Time, undefined, map[string]any, Typed:
		return v
	}
	if f, ok := toFloat(value); ok {
		return f
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	}
	return value
}

// Describe names the runtime type of value the way TypeMismatchError
// reports it.
func Describe(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case undefined:
		return "undefined"
	case string:
		return StringName
	case bool:
		return BooleanName
	case time.Time:
		return DateName
	case map[string]any:
		return ObjectName
	case Typed:
		return v.ComponentType()
	}
	if _, ok := toFloat(value); ok {
		return NumberName
	}
	if reflect.ValueOf(value).Kind() == reflect.Slice {
		return "array"
	}
	return fmt.Sprintf("%T", value)
}

func mismatch(field string, t ValueType, actual string) error {
	return &dxerrors.TypeMismatchError{Field: field, Expected: t.String(), Actual: actual}
}

// maxExact bounds the integers that convert to float64 without loss.
const maxExact = 1 << 53

// toFloat converts a Go number to float64. Integers beyond 2^53 in
// magnitude are rejected: they have no exact float64 representation and
// would collide with their neighbours once used as identifiers.
func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return exactInt(int64(n))
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return exactInt(n)
	case uint:
		return exactUint(uint64(n))
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return exactUint(n)
	}
	return 0, false
}

func exactInt(n int64) (float64, bool) {
	if n > maxExact || n < -maxExact {
		return 0, false
	}
	return float64(n), true
}

func exactUint(n uint64) (float64, bool) {
	if n > maxExact {
		return 0, false
	}
	return float64(n), true
}

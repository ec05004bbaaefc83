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

// Package selector implements attribute selectors: recursive structures that
// say which fields of a component graph an operation covers, and how deep.
//
// A Selector is one of
//
//	All       every field beneath this point (true on the wire)
//	None      nothing (false on the wire); the zero value
//	mapping   field name -> Selector, where an absent field means None
//
// An empty mapping is not None: selecting a component-valued attribute with
// an empty mapping covers the attribute itself (its type tag and
// identifier) but none of its fields.
//
// Selectors are immutable values. Every operation returns a new Selector and
// never modifies its operands, so selectors can be shared freely between
// goroutines.
package selector

import (
	"encoding/json"
	"slices"
	"strings"

	"dirpx.dev/dxcomp/dxcore/errors"
	"gopkg.in/yaml.v3"
)

// Selector describes a set of fields of a component graph.
type Selector struct {
	all    bool
	fields map[string]Selector
}

// Compile-time checks that Selector satisfies the encoding interfaces.
var (
	_ json.Marshaler   = Selector{}
	_ json.Unmarshaler = (*Selector)(nil)
	_ yaml.Marshaler   = Selector{}
	_ yaml.Unmarshaler = (*Selector)(nil)
)

var (
	// All selects everything.
	All = Selector{all: true}
	// None selects nothing.
	None = Selector{}
)

// Of returns All when b is true and None otherwise.
func Of(b bool) Selector {
	if b {
		return All
	}
	return None
}

// Fields returns a mapping selector. None entries are dropped; a nil or
// empty map yields the empty mapping.
func Fields(m map[string]Selector) Selector {
	out := make(map[string]Selector, len(m))
	for k, v := range m {
		if !v.IsNone() {
			out[k] = v
		}
	}
	return Selector{fields: out}
}

// FromFieldNames returns a mapping selecting each named field entirely.
func FromFieldNames(names ...string) Selector {
	out := make(map[string]Selector, len(names))
	for _, n := range names {
		out[n] = All
	}
	return Selector{fields: out}
}

// IsAll reports whether s is All.
func (s Selector) IsAll() bool { return s.all }

// IsNone reports whether s is None.
func (s Selector) IsNone() bool { return !s.all && s.fields == nil }

// IsMapping reports whether s is a mapping, possibly empty.
func (s Selector) IsMapping() bool { return !s.all && s.fields != nil }

// Get returns the sub-selector for field: All beneath All, None beneath
// None, and the mapped entry (None when absent) beneath a mapping.
func (s Selector) Get(field string) Selector {
	if s.all {
		return All
	}
	return s.fields[field]
}

// Set returns a copy of s whose entry for field is sub. All already covers
// every field and is returned unchanged. Setting a field to None removes
// it; doing so on None yields None.
func (s Selector) Set(field string, sub Selector) Selector {
	if s.all {
		return All
	}
	if s.IsNone() && sub.IsNone() {
		return None
	}
	out := make(map[string]Selector, len(s.fields)+1)
	for k, v := range s.fields {
		out[k] = v
	}
	if sub.IsNone() {
		delete(out, field)
	} else {
		out[field] = sub
	}
	return Selector{fields: out}
}

// Names returns the fields selected by a mapping, sorted. All and None have
// no names.
func (s Selector) Names() []string {
	if s.fields == nil {
		return nil
	}
	out := make([]string, 0, len(s.fields))
	for k := range s.fields {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Merge returns the union of a and b. All absorbs, None is the identity.
func Merge(a, b Selector) Selector {
	switch {
	case a.all || b.all:
		return All
	case a.IsNone():
		return b
	case b.IsNone():
		return a
	}
	out := make(map[string]Selector, len(a.fields)+len(b.fields))
	for k, v := range a.fields {
		out[k] = v
	}
	for k, v := range b.fields {
		out[k] = Merge(out[k], v)
	}
	return Selector{fields: out}
}

// Intersect returns the fields selected by both a and b. None absorbs, All
// is the identity.
func Intersect(a, b Selector) Selector {
	switch {
	case a.IsNone() || b.IsNone():
		return None
	case a.all:
		return b
	case b.all:
		return a
	}
	out := make(map[string]Selector)
	for k, v := range a.fields {
		if r := Intersect(v, b.fields[k]); !r.IsNone() {
			out[k] = r
		}
	}
	return Selector{fields: out}
}

// Subtract returns the fields selected by a that b does not already cover.
// It is None exactly when Includes(b, a). Subtracting a mapping from All
// leaves All, since the remainder of an open set cannot be enumerated.
func Subtract(a, b Selector) Selector {
	switch {
	case Includes(b, a):
		return None
	case a.all || b.IsNone():
		return a
	}
	out := make(map[string]Selector)
	for k, v := range a.fields {
		if r := Subtract(v, b.Get(k)); !r.IsNone() {
			out[k] = r
		}
	}
	return Selector{fields: out}
}

// Includes reports whether every field selected by b is also selected by a,
// recursively. It is a partial order: Includes(s, s) holds for every s.
func Includes(a, b Selector) bool {
	switch {
	case b.IsNone():
		return true
	case a.IsNone():
		return false
	case a.all:
		return true
	case b.all:
		return false
	}
	for k, v := range b.fields {
		if !Includes(a.fields[k], v) {
			return false
		}
	}
	return true
}

// Equals reports whether a and b are structurally equal.
func Equals(a, b Selector) bool {
	if a.all != b.all || (a.fields == nil) != (b.fields == nil) || len(a.fields) != len(b.fields) {
		return false
	}
	for k, v := range a.fields {
		w, ok := b.fields[k]
		if !ok || !Equals(v, w) {
			return false
		}
	}
	return true
}

// String returns a compact, deterministic rendering such as
// "{actors: {name: true}, title: true}".
func (s Selector) String() string {
	switch {
	case s.all:
		return "true"
	case s.IsNone():
		return "false"
	}
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range s.Names() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(s.fields[k].String())
	}
	b.WriteByte('}')
	return b.String()
}

// MarshalJSON encodes All as true, None as false and a mapping as an
// object.
func (s Selector) MarshalJSON() ([]byte, error) {
	switch {
	case s.all:
		return []byte("true"), nil
	case s.IsNone():
		return []byte("false"), nil
	}
	return json.Marshal(s.fields)
}

// UnmarshalJSON decodes true, false, an object of selectors, or an array of
// field names.
func (s *Selector) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return &errors.UnmarshalError{Type: "Selector", Data: data, Reason: err.Error()}
	}
	parsed, err := FromPlain(raw)
	if err != nil {
		return &errors.UnmarshalError{Type: "Selector", Data: data, Reason: err.Error()}
	}
	*s = parsed
	return nil
}

// MarshalYAML encodes s like MarshalJSON does.
func (s Selector) MarshalYAML() (any, error) {
	switch {
	case s.all:
		return true, nil
	case s.IsNone():
		return false, nil
	}
	return s.fields, nil
}

// UnmarshalYAML decodes a boolean, a mapping or a sequence of names.
func (s *Selector) UnmarshalYAML(node *yaml.Node) error {
	var raw any
	if err := node.Decode(&raw); err != nil {
		return &errors.UnmarshalError{Type: "Selector", Data: []byte(node.Value), Reason: err.Error()}
	}
	parsed, err := FromPlain(raw)
	if err != nil {
		return &errors.UnmarshalError{Type: "Selector", Data: []byte(node.Value), Reason: err.Error()}
	}
	*s = parsed
	return nil
}

// FromPlain converts decoded JSON or YAML data into a Selector.
func FromPlain(raw any) (Selector, error) {
	switch v := raw.(type) {
	case bool:
		return Of(v), nil
	case nil:
		return None, nil
	case map[string]any:
		out := make(map[string]Selector, len(v))
		for k, sub := range v {
			child, err := FromPlain(sub)
			if err != nil {
				return None, err
			}
			if !child.IsNone() {
				out[k] = child
			}
		}
		return Selector{fields: out}, nil
	case []any:
		names := make([]string, 0, len(v))
		for _, n := range v {
			name, ok := n.(string)
			if !ok {
				return None, &errors.ParseError{Type: "Selector", Value: "non-string field name"}
			}
			names = append(names, name)
		}
		return FromFieldNames(names...), nil
	}
	return None, &errors.ParseError{Type: "Selector", Value: "unsupported value"}
}

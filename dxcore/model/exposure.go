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
	"encoding/json"
	"strings"

	"dirpx.dev/dxcomp/dxcore/errors"
	"gopkg.in/yaml.v3"
)

// Verb is one remote operation that may be permitted on a property.
type Verb uint8

const (
	// VerbGet permits remote reads of an attribute.
	VerbGet Verb = 1 << iota
	// VerbSet permits remote writes of an attribute.
	VerbSet
	// VerbCall permits remote invocation of a method.
	VerbCall
	// VerbFind permits remote lookups by an attribute.
	VerbFind
)

var verbNames = []struct {
	verb Verb
	name string
}{
	{VerbGet, "get"},
	{VerbSet, "set"},
	{VerbCall, "call"},
	{VerbFind, "find"},
}

// String returns the lowercase verb name, or "unknown" for values that are
// not exactly one defined verb.
func (v Verb) String() string {
	for _, vn := range verbNames {
		if vn.verb == v {
			return vn.name
		}
	}
	return "unknown"
}

// ParseVerb converts a verb name (case-insensitive) into a Verb.
func ParseVerb(str string) (Verb, error) {
	for _, vn := range verbNames {
		if strings.EqualFold(vn.name, str) {
			return vn.verb, nil
		}
	}
	return 0, &errors.ParseError{Type: "Verb", Value: str}
}

// Exposure is the set of remote verbs permitted on a property. The zero
// value permits nothing: properties are local-only unless exposed.
type Exposure uint8

// Compile-time checks that Exposure satisfies the encoding interfaces.
var (
	_ json.Marshaler   = Exposure(0)
	_ json.Unmarshaler = (*Exposure)(nil)
	_ yaml.Marshaler   = Exposure(0)
	_ yaml.Unmarshaler = (*Exposure)(nil)
)

// NewExposure returns the set containing verbs.
func NewExposure(verbs ...Verb) Exposure {
	return Exposure(0).With(verbs...)
}

// ParseExposure parses a list of verb names.
func ParseExposure(names []string) (Exposure, error) {
	var e Exposure
	for _, n := range names {
		v, err := ParseVerb(strings.TrimSpace(n))
		if err != nil {
			return 0, err
		}
		e |= Exposure(v)
	}
	return e, nil
}

// With returns the union of e and verbs.
func (e Exposure) With(verbs ...Verb) Exposure {
	for _, v := range verbs {
		e |= Exposure(v)
	}
	return e
}

// Union returns the union of e and other.
func (e Exposure) Union(other Exposure) Exposure { return e | other }

// Has reports whether v is permitted.
func (e Exposure) Has(v Verb) bool { return e&Exposure(v) != 0 }

// IsNone reports whether no verb is permitted.
func (e Exposure) IsNone() bool { return e == 0 }

// Verbs returns the permitted verbs in canonical order.
func (e Exposure) Verbs() []Verb {
	var out []Verb
	for _, vn := range verbNames {
		if e.Has(vn.verb) {
			out = append(out, vn.verb)
		}
	}
	return out
}

// Names returns the permitted verb names in canonical order.
func (e Exposure) Names() []string {
	out := make([]string, 0, 4)
	for _, v := range e.Verbs() {
		out = append(out, v.String())
	}
	return out
}

// String returns the comma separated verb names, or "none".
func (e Exposure) String() string {
	if e.IsNone() {
		return "none"
	}
	return strings.Join(e.Names(), ",")
}

// MarshalJSON encodes e as an array of verb names.
func (e Exposure) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Names())
}

// UnmarshalJSON decodes an array of verb names.
func (e *Exposure) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return &errors.UnmarshalError{Type: "Exposure", Data: data, Reason: err.Error()}
	}
	parsed, err := ParseExposure(names)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

// MarshalYAML encodes e as a sequence of verb names.
func (e Exposure) MarshalYAML() (any, error) {
	return e.Names(), nil
}

// UnmarshalYAML decodes a sequence of verb names.
func (e *Exposure) UnmarshalYAML(node *yaml.Node) error {
	var names []string
	if err := node.Decode(&names); err != nil {
		return &errors.UnmarshalError{Type: "Exposure", Data: []byte(node.Value), Reason: err.Error()}
	}
	parsed, err := ParseExposure(names)
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

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

	"dirpx.dev/dxcomp/dxcore/errors"
	"gopkg.in/yaml.v3"
)

// Trait is the closed capability tag attached to every model at definition
// time. Code that needs to know whether a component is an entity checks the
// tag directly instead of walking type names.
type Trait int

const (
	// TraitEmbedded marks a model whose instances have no independent
	// identity. Embedded components are copied inline wherever they appear
	// and are never reference-encoded.
	TraitEmbedded Trait = iota

	// TraitEntity marks a model whose instances carry a primary identifier
	// and are subject to identity-map uniqueness.
	TraitEntity
)

const (
	TraitEmbeddedStr = "embedded"
	TraitEntityStr   = "entity"
)

// String returns "embedded", "entity" or "unknown".
func (t Trait) String() string {
	switch t {
	case TraitEmbedded:
		return TraitEmbeddedStr
	case TraitEntity:
		return TraitEntityStr
	default:
		return "unknown"
	}
}

// ParseTrait converts a textual representation into a Trait value.
func ParseTrait(str string) (Trait, error) {
	switch str {
	case TraitEmbeddedStr, "Embedded", "EMBEDDED", "component":
		return TraitEmbedded, nil
	case TraitEntityStr, "Entity", "ENTITY":
		return TraitEntity, nil
	default:
		return TraitEmbedded, &errors.ParseError{Type: "Trait", Value: str}
	}
}

// Valid reports whether the Trait value is one of the defined constants.
func (t Trait) Valid() bool {
	return t == TraitEmbedded || t == TraitEntity
}

// MarshalJSON implements json.Marshaler for Trait.
func (t Trait) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, &errors.MarshalError{Type: "Trait", Value: int(t)}
	}
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Trait. Only the string form
// is accepted.
func (t *Trait) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return &errors.UnmarshalError{Type: "Trait", Data: data, Reason: err.Error()}
	}
	parsed, err := ParseTrait(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for Trait.
func (t Trait) MarshalYAML() (any, error) {
	if !t.Valid() {
		return nil, &errors.MarshalError{Type: "Trait", Value: int(t)}
	}
	return t.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Trait.
func (t *Trait) UnmarshalYAML(node *yaml.Node) error {
	var str string
	if err := node.Decode(&str); err != nil {
		return &errors.UnmarshalError{Type: "Trait", Data: []byte(node.Value), Reason: err.Error()}
	}
	parsed, err := ParseTrait(str)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

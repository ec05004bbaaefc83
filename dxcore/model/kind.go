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

// PropertyKind distinguishes the two kinds of members a model declares.
type PropertyKind int

const (
	// KindAttribute is a typed, stateful field.
	KindAttribute PropertyKind = iota

	// KindMethod is a callable member. Methods carry no value type and no
	// per-instance state; they exist so that exposure rules can be attached
	// to them.
	KindMethod
)

const (
	KindAttributeStr = "attribute"
	KindMethodStr    = "method"
)

// String returns "attribute", "method" or "unknown".
func (k PropertyKind) String() string {
	switch k {
	case KindAttribute:
		return KindAttributeStr
	case KindMethod:
		return KindMethodStr
	default:
		return "unknown"
	}
}

// ParsePropertyKind converts a textual representation into a PropertyKind.
func ParsePropertyKind(str string) (PropertyKind, error) {
	switch str {
	case KindAttributeStr, "Attribute", "ATTRIBUTE", "field":
		return KindAttribute, nil
	case KindMethodStr, "Method", "METHOD":
		return KindMethod, nil
	default:
		return KindAttribute, &errors.ParseError{Type: "PropertyKind", Value: str}
	}
}

// Valid reports whether k is one of the defined constants.
func (k PropertyKind) Valid() bool {
	return k == KindAttribute || k == KindMethod
}

// MarshalJSON implements json.Marshaler for PropertyKind.
func (k PropertyKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, &errors.MarshalError{Type: "PropertyKind", Value: int(k)}
	}
	return []byte(`"` + k.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for PropertyKind.
func (k *PropertyKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return &errors.UnmarshalError{Type: "PropertyKind", Data: data, Reason: err.Error()}
	}
	parsed, err := ParsePropertyKind(str)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML implements yaml.Marshaler for PropertyKind.
func (k PropertyKind) MarshalYAML() (any, error) {
	if !k.Valid() {
		return nil, &errors.MarshalError{Type: "PropertyKind", Value: int(k)}
	}
	return k.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for PropertyKind.
func (k *PropertyKind) UnmarshalYAML(node *yaml.Node) error {
	var str string
	if err := node.Decode(&str); err != nil {
		return &errors.UnmarshalError{Type: "PropertyKind", Data: []byte(node.Value), Reason: err.Error()}
	}
	parsed, err := ParsePropertyKind(str)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IdentifierRole tells whether an attribute identifies its instance.
type IdentifierRole int

const (
	// NotIdentifier is the role of ordinary attributes.
	NotIdentifier IdentifierRole = iota
	// PrimaryIdentifier is the immutable key of an entity in its identity
	// map.
	PrimaryIdentifier
	// SecondaryIdentifier is a mutable, unique alternative key.
	SecondaryIdentifier
)

// String returns "none", "primary", "secondary" or "unknown".
func (r IdentifierRole) String() string {
	switch r {
	case NotIdentifier:
		return "none"
	case PrimaryIdentifier:
		return "primary"
	case SecondaryIdentifier:
		return "secondary"
	default:
		return "unknown"
	}
}

// ParseIdentifierRole converts "primary", "secondary" or "none" (also the
// empty string) into an IdentifierRole.
func ParseIdentifierRole(str string) (IdentifierRole, error) {
	switch str {
	case "", "none":
		return NotIdentifier, nil
	case "primary", "Primary", "PRIMARY":
		return PrimaryIdentifier, nil
	case "secondary", "Secondary", "SECONDARY":
		return SecondaryIdentifier, nil
	default:
		return NotIdentifier, &errors.ParseError{Type: "IdentifierRole", Value: str}
	}
}

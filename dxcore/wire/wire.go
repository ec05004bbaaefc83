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

// Package wire defines the plain tagged-tree format exchanged with the
// transport and store collaborators, and codecs for it.
//
// A tree is made of map[string]any, []any, string, float64 and bool values.
// Component nodes carry a type tag and optional markers:
//
//	{"__component": "Movie", "__new": true, "id": "m1", "title": "Alien"}
//	{"__component": "Cinema", "_ref": true, "id": "c1"}
//
// Scalars that JSON cannot carry natively are wrapped:
//
//	{"__date": "2024-03-01T10:00:00.000Z"}
//	{"__undefined": true}
//
// Key and tag names are part of the interoperability contract and MUST NOT
// change.
package wire

import (
	"time"

	"dirpx.dev/dxcomp/dxcore/errors"
)

// Tag keys.
const (
	ComponentKey = "__component"
	NewKey       = "__new"
	RefKey       = "_ref"
	DateKey      = "__date"
	UndefinedKey = "__undefined"
)

// DateLayout is the layout used to encode dates: UTC, millisecond
// precision.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Date wraps t.
func Date(t time.Time) map[string]any {
	return map[string]any{DateKey: t.UTC().Format(DateLayout)}
}

// IsDate reports whether node is a date wrapper.
func IsDate(node any) bool {
	m, ok := node.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	_, ok = m[DateKey]
	return ok
}

// ParseDate decodes a date wrapper. Any RFC 3339 timestamp is accepted.
func ParseDate(node any) (time.Time, error) {
	m, ok := node.(map[string]any)
	if !ok {
		return time.Time{}, &errors.UnmarshalError{Type: "Date", Reason: "not a date wrapper"}
	}
	s, ok := m[DateKey].(string)
	if !ok {
		return time.Time{}, &errors.UnmarshalError{Type: "Date", Reason: "missing " + DateKey + " string"}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, &errors.UnmarshalError{Type: "Date", Data: []byte(s), Reason: err.Error()}
	}
	return t, nil
}

// Undefined returns the undefined marker.
func Undefined() map[string]any {
	return map[string]any{UndefinedKey: true}
}

// IsUndefined reports whether node is the undefined marker.
func IsUndefined(node any) bool {
	m, ok := node.(map[string]any)
	if !ok || len(m) != 1 {
		return false
	}
	b, _ := m[UndefinedKey].(bool)
	return b
}

// TypeOf returns the component type tag of node, or "" when node is not a
// component node.
func TypeOf(node any) string {
	m, ok := node.(map[string]any)
	if !ok {
		return ""
	}
	s, _ := m[ComponentKey].(string)
	return s
}

// IsComponent reports whether node carries a component type tag.
func IsComponent(node any) bool {
	m, ok := node.(map[string]any)
	if !ok {
		return false
	}
	_, ok = m[ComponentKey]
	return ok
}

// IsRef reports whether node is a reference-only component node.
func IsRef(node any) bool { return flag(node, RefKey) }

// IsNew reports whether node is marked as not yet persisted.
func IsNew(node any) bool { return flag(node, NewKey) }

func flag(node any, key string) bool {
	m, ok := node.(map[string]any)
	if !ok {
		return false
	}
	b, _ := m[key].(bool)
	return b
}

// IsTag reports whether key is one of the reserved tag keys.
func IsTag(key string) bool {
	switch key {
	case ComponentKey, NewKey, RefKey, DateKey, UndefinedKey:
		return true
	}
	return false
}

// Fields returns the non-tag keys of a component node.
func Fields(node map[string]any) []string {
	out := make([]string, 0, len(node))
	for k := range node {
		if !IsTag(k) {
			out = append(out, k)
		}
	}
	return out
}

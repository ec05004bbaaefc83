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

package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
)

// EncodePlain converts a free-form value into tree form: dates and the
// Undefined sentinel are wrapped, numbers become float64, and maps and
// slices are copied.
func EncodePlain(v any) any {
	switch x := v.(type) {
	case time.Time:
		return Date(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = EncodePlain(e)
		}
		return out
	}
	if valuetype.IsUndefined(v) {
		return Undefined()
	}
	n := valuetype.Normalize(v)
	if items, ok := n.([]any); ok {
		for i, e := range items {
			items[i] = EncodePlain(e)
		}
		return items
	}
	return n
}

// DecodePlain is the inverse of EncodePlain.
func DecodePlain(node any) (any, error) {
	switch x := node.(type) {
	case map[string]any:
		if IsDate(x) {
			return ParseDate(x)
		}
		if IsUndefined(x) {
			return valuetype.Undefined, nil
		}
		out := make(map[string]any, len(x))
		for k, e := range x {
			d, err := DecodePlain(e)
			if err != nil {
				return nil, err
			}
			out[k] = d
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			d, err := DecodePlain(e)
			if err != nil {
				return nil, err
			}
			out[i] = d
		}
		return out, nil
	}
	return valuetype.Normalize(node), nil
}

// EncodeJSON renders a tree as JSON.
func EncodeJSON(tree any) ([]byte, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode json tree: %w", err)
	}
	return data, nil
}

// DecodeJSON parses a JSON document into a tree. Numbers decode as
// float64.
func DecodeJSON(data []byte) (any, error) {
	var tree any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&tree); err != nil {
		return nil, &errors.UnmarshalError{Type: "tree", Data: data, Reason: err.Error()}
	}
	return tree, nil
}

// EncodeYAML renders a tree as YAML.
func EncodeYAML(tree any) ([]byte, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode yaml tree: %w", err)
	}
	return data, nil
}

// DecodeYAML parses a YAML document into a tree with the same shape
// DecodeJSON produces: integers become float64, timestamps stay strings and
// mapping keys are strings.
func DecodeYAML(data []byte) (any, error) {
	var tree any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, &errors.UnmarshalError{Type: "tree", Data: data, Reason: err.Error()}
	}
	return normalizeYAML(tree), nil
}

func normalizeYAML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalizeYAML(e)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[fmt.Sprint(k)] = normalizeYAML(e)
		}
		return out
	case []any:
		for i, e := range x {
			x[i] = normalizeYAML(e)
		}
		return x
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	}
	return valuetype.Normalize(v)
}

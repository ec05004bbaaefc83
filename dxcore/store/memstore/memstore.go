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

// Package memstore provides an in-memory component.Store.
//
// Records are plain tagged trees keyed by type name and primary
// identifier. Persist merges an incoming tree into the stored record field
// by field; Fetch projects a record through a selector. The whole store can
// be dumped to and restored from YAML, which makes it usable as a fixture
// in tests and as a snapshot format in tools.
package memstore

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/component"
	"dirpx.dev/dxcomp/dxcore/ctxlog"
	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
	"dirpx.dev/dxcomp/dxcore/selector"
	"dirpx.dev/dxcomp/dxcore/wire"
)

// Compile-time check.
var _ component.Store = (*Store)(nil)

// Store is an in-memory record store. It is safe for concurrent use.
type Store struct {
	registry *model.Registry

	mu      sync.RWMutex
	records map[string]map[string]any
}

// New returns an empty store for the models of reg.
func New(reg *model.Registry) *Store {
	return &Store{registry: reg, records: make(map[string]map[string]any)}
}

func recordKey(typeName string, id any) string {
	return fmt.Sprintf("%s/%v", typeName, valuetype.Normalize(id))
}

// Fetch implements component.Store.
func (s *Store) Fetch(ctx context.Context, typeName string, id any, sel selector.Selector) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := s.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	key := recordKey(typeName, id)

	s.mu.RLock()
	rec, ok := s.records[key]
	var out map[string]any
	if ok {
		out = project(rec, sel, primaryName(m))
	}
	s.mu.RUnlock()

	if !ok {
		return nil, &dxerrors.NotFoundError{Kind: "record", Owner: typeName, Name: fmt.Sprint(id)}
	}
	ctxlog.FromContext(ctx).Debug("record fetched", "key", key, "selector", sel, "fields", len(wire.Fields(out)))
	return out, nil
}

// Persist implements component.Store.
func (s *Store) Persist(ctx context.Context, typeName string, id any, tree map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.registry.Lookup(typeName); err != nil {
		return err
	}
	key := recordKey(typeName, id)

	s.mu.Lock()
	rec, ok := s.records[key]
	if !ok {
		rec = map[string]any{wire.ComponentKey: typeName}
		s.records[key] = rec
	}
	for k, v := range tree {
		if k == wire.NewKey {
			continue
		}
		rec[k] = clone(v)
	}
	s.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("record persisted", "key", key, "created", !ok, "fields", len(wire.Fields(tree)))
	return nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Keys returns the sorted record keys, formatted as "Type/id".
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.records))
	for k := range s.records {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Dump writes every record to w as a YAML mapping from record key to tree.
func (s *Store) Dump(w io.Writer) error {
	s.mu.RLock()
	snapshot := make(map[string]any, len(s.records))
	for k, rec := range s.records {
		snapshot[k] = clone(rec)
	}
	s.mu.RUnlock()

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snapshot); err != nil {
		return fmt.Errorf("dump records: %w", err)
	}
	return enc.Close()
}

// Restore replaces the records of s with the ones read from r, in the
// format written by Dump.
func (s *Store) Restore(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("restore records: %w", err)
	}
	tree, err := wire.DecodeYAML(data)
	if err != nil {
		return err
	}
	records := make(map[string]map[string]any)
	if tree != nil {
		top, ok := tree.(map[string]any)
		if !ok {
			return &dxerrors.UnmarshalError{Type: "records", Data: data, Reason: "not a mapping"}
		}
		for k, v := range top {
			rec, ok := v.(map[string]any)
			if !ok || wire.TypeOf(rec) == "" {
				return &dxerrors.UnmarshalError{Type: "records", Reason: "record " + k + " is not a component node"}
			}
			records[k] = rec
		}
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()
	return nil
}

func primaryName(m *model.Model) string {
	if p := m.PrimaryIdentifier(); p != nil {
		return p.Name()
	}
	return ""
}

// project copies the parts of node selected by sel. Tags and the field
// named id are always kept.
func project(node map[string]any, sel selector.Selector, id string) map[string]any {
	out := make(map[string]any, len(node))
	for k, v := range node {
		switch {
		case wire.IsTag(k), k == id:
			out[k] = clone(v)
		case sel.IsAll():
			out[k] = clone(v)
		default:
			if sub := sel.Get(k); !sub.IsNone() {
				out[k] = projectValue(v, sub)
			}
		}
	}
	return out
}

func projectValue(v any, sel selector.Selector) any {
	switch x := v.(type) {
	case map[string]any:
		if wire.IsComponent(x) && !wire.IsRef(x) {
			return project(x, sel, "")
		}
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = projectValue(e, sel)
		}
		return out
	}
	return clone(v)
}

func clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = clone(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = clone(e)
		}
		return out
	}
	return v
}

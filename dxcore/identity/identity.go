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

// Package identity implements the identity map: per-type tables that bind
// identifier values to the one live instance holding them.
//
// Every concrete type name gets its own table, created empty the first time
// the type is touched. Tables are never shared between a type and its
// subtypes.
//
// A table indexes instances by (field, value) pairs, which covers both the
// primary identifier and any secondary identifiers of a type. Identifier
// values are normalised before use, so int(7) and float64(7) address the
// same slot. Integers beyond 2^53 in magnitude are not converted to
// float64 and keep their Go type, so two distinct large identifiers never
// share a slot.
//
// A Map is safe for concurrent use. Each operation is atomic; in particular
// ResolveOrRegister makes the resolve-then-register sequence indivisible.
package identity

import (
	"reflect"
	"slices"
	"sync"

	"dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
)

// Key addresses one identifier slot of a type.
type Key struct {
	Field string
	Value any
}

type slot struct {
	field string
	value any
}

type table[T comparable] map[slot]T

// Map holds one table per type name.
type Map[T comparable] struct {
	// mu guards tables.
	mu     sync.Mutex
	tables map[string]table[T]
}

// New returns an empty Map.
func New[T comparable]() *Map[T] {
	return &Map[T]{tables: make(map[string]table[T])}
}

func slotOf(k Key) slot {
	return slot{field: k.Field, value: valuetype.Normalize(k.Value)}
}

// usable reports whether v can key a table. Slices and maps cannot.
func usable(v any) bool {
	return v == nil || reflect.TypeOf(valuetype.Normalize(v)).Comparable()
}

func unusable(typeName string, k Key) error {
	return &errors.TypeMismatchError{
		Field:    typeName + "." + k.Field,
		Expected: "identifier",
		Actual:   valuetype.Describe(k.Value),
	}
}

// table returns the table for typeName, creating it when absent. MUST be
// called with m.mu held.
func (m *Map[T]) table(typeName string) table[T] {
	t, ok := m.tables[typeName]
	if !ok {
		t = make(table[T])
		m.tables[typeName] = t
	}
	return t
}

// Resolve returns the instance of typeName bound to value in field. A
// value that cannot be an identifier, such as a slice, resolves to nothing.
func (m *Map[T]) Resolve(typeName, field string, value any) (T, bool) {
	if !usable(value) {
		var zero T
		return zero, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.table(typeName)[slotOf(Key{field, value})]
	return inst, ok
}

// Register binds every key to inst, all or nothing. Keys already bound to
// inst are left as they are, which makes Register idempotent. When any key
// is bound to a different instance nothing is modified and a
// *errors.DuplicateIdentifierError is returned. Values that cannot be
// identifiers yield a *errors.TypeMismatchError.
func (m *Map[T]) Register(typeName string, inst T, keys ...Key) error {
	for _, k := range keys {
		if !usable(k.Value) {
			return unusable(typeName, k)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(typeName)
	for _, k := range keys {
		if cur, ok := t[slotOf(k)]; ok && cur != inst {
			return &errors.DuplicateIdentifierError{Type: typeName, Field: k.Field, Value: k.Value}
		}
	}
	for _, k := range keys {
		t[slotOf(k)] = inst
	}
	return nil
}

// ResolveOrRegister returns the instance bound to key, or binds the result
// of construct to it. created reports whether construct ran. construct is
// invoked with the map locked and MUST NOT call back into m.
func (m *Map[T]) ResolveOrRegister(typeName string, key Key, construct func() T) (inst T, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(typeName)
	s := slotOf(key)
	if cur, ok := t[s]; ok {
		return cur, false
	}
	inst = construct()
	t[s] = inst
	return inst, true
}

// Reindex moves inst from oldValue to newValue in field. A nil value means
// "no entry": a nil oldValue only inserts, a nil newValue only removes.
//
// When newValue is bound to another instance Reindex returns a
// *errors.DuplicateIdentifierError and leaves the table untouched.
func (m *Map[T]) Reindex(typeName string, inst T, field string, oldValue, newValue any) error {
	if !usable(newValue) {
		return unusable(typeName, Key{field, newValue})
	}
	if !usable(oldValue) {
		oldValue = nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(typeName)
	if newValue != nil {
		if cur, ok := t[slotOf(Key{field, newValue})]; ok && cur != inst {
			return &errors.DuplicateIdentifierError{Type: typeName, Field: field, Value: newValue}
		}
	}
	if oldValue != nil {
		s := slotOf(Key{field, oldValue})
		if cur, ok := t[s]; ok && cur == inst {
			delete(t, s)
		}
	}
	if newValue != nil {
		t[slotOf(Key{field, newValue})] = inst
	}
	return nil
}

// Unregister removes the given keys when they are bound to inst.
func (m *Map[T]) Unregister(typeName string, inst T, keys ...Key) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := m.table(typeName)
	for _, k := range keys {
		if !usable(k.Value) {
			continue
		}
		s := slotOf(k)
		if cur, ok := t[s]; ok && cur == inst {
			delete(t, s)
		}
	}
}

// Forget removes every entry of typeName bound to inst and returns how
// many were removed.
func (m *Map[T]) Forget(typeName string, inst T) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	t := m.table(typeName)
	for s, cur := range t {
		if cur == inst {
			delete(t, s)
			n++
		}
	}
	return n
}

// Len returns the number of distinct instances registered for typeName.
func (m *Map[T]) Len(typeName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[T]struct{})
	for _, inst := range m.tables[typeName] {
		seen[inst] = struct{}{}
	}
	return len(seen)
}

// Types returns the sorted names of the types that have a table.
func (m *Map[T]) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.tables))
	for name := range m.tables {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Reset drops every table.
func (m *Map[T]) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = make(map[string]table[T])
}

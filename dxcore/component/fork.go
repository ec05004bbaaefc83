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

package component

import (
	"errors"
	"fmt"

	"dirpx.dev/dxcomp/dxcore/identity"
)

// ErrNotAFork is returned by Merge when the argument was not forked from
// the receiver.
var ErrNotAFork = errors.New("dxcomp: instance is not a fork of the merge target")

// Fork copies i, and every instance reachable from it, into a fresh child
// scope. The copies keep attribute sources and the new flag, and remember
// the instance they were forked from. Changes made to the fork are
// invisible to i until Merge.
func (i *Instance) Fork() (*Instance, error) {
	if err := i.checkAttached(); err != nil {
		return nil, err
	}
	s := i.Scope()
	f, err := forkInto(i, s.fork(), make(map[*Instance]*Instance))
	if err != nil {
		return nil, err
	}
	s.logger.Debug("component forked", "component", i)
	return f, nil
}

func forkInto(src *Instance, dst *Scope, memo map[*Instance]*Instance) (*Instance, error) {
	if f, ok := memo[src]; ok {
		return f, nil
	}
	f := newInstance(dst, src.model, src.IsNew())
	f.forkOf = src
	memo[src] = f

	var keys []identity.Key
	for _, st := range src.snapshot() {
		v, err := forkValue(st.value, dst, memo)
		if err != nil {
			return nil, err
		}
		st.value = v
		f.attrs[st.prop.Name()] = st
		if st.prop.IsIdentifier() && keyValue(v) != nil {
			keys = append(keys, identity.Key{Field: st.prop.Name(), Value: v})
		}
	}
	if len(keys) > 0 {
		if err := dst.identities.Register(f.TypeName(), f, keys...); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func forkValue(v any, dst *Scope, memo map[*Instance]*Instance) (any, error) {
	switch x := v.(type) {
	case *Instance:
		return forkInto(x, dst, memo)
	case []any:
		out := make([]any, len(x))
		for idx, e := range x {
			f, err := forkValue(e, dst, memo)
			if err != nil {
				return nil, err
			}
			out[idx] = f
		}
		return out, nil
	}
	return copyValue(v), nil
}

// Merge copies the set attributes of fork, which MUST have been forked
// from i, back into i with their sources. Forked instances reachable from
// fork are merged into the instances they were forked from; instances
// created while working on the fork are adopted by the scope of i, unless
// an entity with the same primary identifier already lives there, in which
// case they are merged into it. Attributes unset in the fork are left
// untouched.
func (i *Instance) Merge(fork *Instance) error {
	if fork.ForkOf() != i {
		return fmt.Errorf("%w: %s", ErrNotAFork, fork)
	}
	if err := i.checkAttached(); err != nil {
		return err
	}
	m := &merger{scope: i.Scope(), memo: make(map[*Instance]*Instance)}
	if _, err := m.instance(fork); err != nil {
		return err
	}
	m.scope.logger.Debug("component merged", "component", i, "instances", len(m.memo))
	return nil
}

type merger struct {
	scope *Scope
	memo  map[*Instance]*Instance
}

func (m *merger) instance(f *Instance) (*Instance, error) {
	if t, ok := m.memo[f]; ok {
		return t, nil
	}
	target := f.ForkOf()
	if target == nil || target.Scope() != m.scope {
		target = nil
		if id, ok := f.Identifier(); ok {
			target, _ = m.scope.Resolve(f.TypeName(), id)
		}
	}
	if target == nil {
		return m.adopt(f)
	}
	m.memo[f] = target

	for _, st := range f.snapshot() {
		v, err := m.value(st.value)
		if err != nil {
			return nil, err
		}
		if _, err := target.assign(st.prop, v, st.source); err != nil {
			return nil, err
		}
	}
	if !f.IsNew() {
		target.mu.Lock()
		target.isNew = false
		target.mu.Unlock()
	}
	return target, nil
}

// adopt moves an instance created in a fork into the merge scope.
func (m *merger) adopt(f *Instance) (*Instance, error) {
	m.memo[f] = f
	f.mu.Lock()
	f.scope = m.scope
	f.forkOf = nil
	f.mu.Unlock()

	var keys []identity.Key
	for _, st := range f.snapshot() {
		v, err := m.value(st.value)
		if err != nil {
			return nil, err
		}
		st.value = v
		f.mu.Lock()
		f.attrs[st.prop.Name()] = st
		f.mu.Unlock()
		if st.prop.IsIdentifier() && keyValue(v) != nil {
			keys = append(keys, identity.Key{Field: st.prop.Name(), Value: v})
		}
	}
	if len(keys) > 0 {
		if err := m.scope.identities.Register(f.TypeName(), f, keys...); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (m *merger) value(v any) (any, error) {
	switch x := v.(type) {
	case *Instance:
		return m.instance(x)
	case []any:
		out := make([]any, len(x))
		for idx, e := range x {
			t, err := m.value(e)
			if err != nil {
				return nil, err
			}
			out[idx] = t
		}
		return out, nil
	}
	return copyValue(v), nil
}

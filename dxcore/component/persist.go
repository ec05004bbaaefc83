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
	"context"

	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/identity"
	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
	"dirpx.dev/dxcomp/dxcore/selector"
	"dirpx.dev/dxcomp/dxcore/wire"
)

// LoadOptions configures Load and Get.
type LoadOptions struct {
	// Reload fetches every selected field even when it is already
	// resolved.
	Reload bool
}

// Load makes the fields of i selected by sel resolved by fetching the
// missing ones from the store of the scope. When every selected field is
// already resolved the store is not contacted. Loaded fields are recorded
// with model.SourceStore.
func (i *Instance) Load(ctx context.Context, sel selector.Selector, opts LoadOptions) error {
	s := i.Scope()
	if s.store == nil {
		return ErrNoStore
	}
	if err := i.checkAttached(); err != nil {
		return err
	}
	id, err := i.storeKey()
	if err != nil {
		return err
	}

	log := s.log(ctx)
	want := sel
	if !opts.Reload {
		resolved := i.ResolvedSelector()
		if selector.Includes(resolved, sel) {
			log.Debug("load served from scope", "component", i, "selector", sel)
			return nil
		}
		want = selector.Subtract(sel, resolved)
	}

	tree, err := s.store.Fetch(ctx, i.TypeName(), id, want)
	if err != nil {
		return err
	}
	if _, ok := tree[wire.ComponentKey]; !ok {
		tree[wire.ComponentKey] = i.TypeName()
	}
	if _, err := s.Deserialize(ctx, tree, DeserializeOptions{Source: model.SourceStore, RootType: i.TypeName()}); err != nil {
		return err
	}
	log.Debug("component loaded", "component", i, "selector", want)
	return nil
}

// Get returns the entity of typeName identified by id with the fields
// selected by sel resolved, loading them through the store when needed.
// An instance already bound to id is reused.
func (s *Scope) Get(ctx context.Context, typeName string, id any, sel selector.Selector, opts LoadOptions) (*Instance, error) {
	m, err := s.registry.Lookup(typeName)
	if err != nil {
		return nil, err
	}
	pid := m.PrimaryIdentifier()
	if !m.IsEntity() || pid == nil {
		return nil, &dxerrors.UnreferenceableEntityError{Type: typeName}
	}
	key := valuetype.Normalize(id)
	if err := valuetype.Check(pid.Name(), key, pid.ValueType(), nil); err != nil {
		return nil, err
	}

	inst, created := s.identities.ResolveOrRegister(typeName, identity.Key{Field: pid.Name(), Value: key}, func() *Instance {
		n := newInstance(s, m, false)
		n.attrs[pid.Name()] = AttributeState{prop: pid, set: true, value: key, source: model.SourceStore}
		return n
	})
	if err := inst.Load(ctx, sel, opts); err != nil {
		if created {
			s.identities.Forget(typeName, inst)
		}
		return nil, err
	}
	return inst, nil
}

// Save validates the fields of i selected by sel and persists the ones the
// store does not hold yet. Nested entities are persisted as references
// only. Afterwards i is no longer new and the saved fields are recorded
// with model.SourceStore.
func (i *Instance) Save(ctx context.Context, sel selector.Selector) error {
	s := i.Scope()
	if s.store == nil {
		return ErrNoStore
	}
	if err := i.checkAttached(); err != nil {
		return err
	}
	id, err := i.storeKey()
	if err != nil {
		return err
	}
	if err := i.Validate(sel); err != nil {
		return err
	}
	tree, err := i.Serialize(sel, SerializeOptions{
		Target:         model.SourceStore,
		References:     ReferenceOnly,
		SkipValidation: true,
	})
	if err != nil {
		return err
	}
	if err := s.store.Persist(ctx, i.TypeName(), id, tree); err != nil {
		return err
	}
	i.markSaved(sel, make(map[*Instance]bool))
	s.log(ctx).Debug("component saved", "component", i, "fields", len(wire.Fields(tree)))
	return nil
}

// storeKey returns the primary identifier i is stored under.
func (i *Instance) storeKey() (any, error) {
	id, ok := i.Identifier()
	if !i.model.IsEntity() || !ok {
		return nil, &dxerrors.UnreferenceableEntityError{Type: i.TypeName()}
	}
	return id, nil
}

// markSaved records the selected fields of i, and of its embedded
// components, as stored.
func (i *Instance) markSaved(sel selector.Selector, visited map[*Instance]bool) {
	if visited[i] {
		return
	}
	visited[i] = true

	var embedded []*Instance
	var subs []selector.Selector
	i.mu.Lock()
	i.isNew = false
	for name, st := range i.attrs {
		sub := sel.Get(name)
		if sub.IsNone() && !st.prop.IsPrimaryIdentifier() {
			continue
		}
		st.source = model.SourceStore
		i.attrs[name] = st
		for _, c := range embeddedIn(st.value) {
			embedded = append(embedded, c)
			subs = append(subs, sub)
		}
	}
	i.mu.Unlock()

	for idx, c := range embedded {
		c.markSaved(subs[idx], visited)
	}
}

func embeddedIn(v any) []*Instance {
	switch x := v.(type) {
	case *Instance:
		if !x.model.IsEntity() {
			return []*Instance{x}
		}
	case []any:
		var out []*Instance
		for _, e := range x {
			out = append(out, embeddedIn(e)...)
		}
		return out
	}
	return nil
}

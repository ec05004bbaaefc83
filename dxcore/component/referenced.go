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
	"slices"
	"sync"

	"dirpx.dev/dxcomp/dxcore/model"
)

// Referenced collects the instances mentioned by serialized trees, in the
// order they were first met. A nil *Referenced ignores additions.
type Referenced struct {
	mu    sync.Mutex
	seen  map[*Instance]struct{}
	order []*Instance
}

// NewReferenced returns an empty collector.
func NewReferenced() *Referenced {
	return &Referenced{seen: make(map[*Instance]struct{})}
}

// Add records inst and reports whether it was not recorded before.
func (r *Referenced) Add(inst *Instance) bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[inst]; ok {
		return false
	}
	r.seen[inst] = struct{}{}
	r.order = append(r.order, inst)
	return true
}

// Instances returns the recorded instances.
func (r *Referenced) Instances() []*Instance {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.order)
}

// Len returns the number of recorded instances.
func (r *Referenced) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}

// Types returns the sorted names of the recorded types.
func (r *Referenced) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, inst := range r.order {
		if !slices.Contains(out, inst.TypeName()) {
			out = append(out, inst.TypeName())
		}
	}
	slices.Sort(out)
	return out
}

// Catalog returns the catalog entries of reg for the recorded types and
// their ancestors, which is what a receiver needs to check schema
// compatibility before decoding.
func (r *Referenced) Catalog(reg *model.Registry) model.Catalog {
	var names []string
	for _, t := range r.Types() {
		m, err := reg.Lookup(t)
		for err == nil && m != nil {
			if !slices.Contains(names, m.Name()) {
				names = append(names, m.Name())
			}
			m = m.Parent()
		}
	}
	return reg.Catalog().Filter(names...)
}

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
	"slices"

	"go.uber.org/multierr"

	"dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model/semver"
)

// CatalogEntry describes one model to a peer: enough for the receiving side
// to check that it understands the types in a serialized tree.
type CatalogEntry struct {
	Name    string         `json:"name" yaml:"name"`
	Parent  string         `json:"parent,omitempty" yaml:"parent,omitempty"`
	Trait   Trait          `json:"trait" yaml:"trait"`
	Version semver.Version `json:"version" yaml:"version,omitempty"`
}

// Catalog is an ordered list of model descriptions.
type Catalog []CatalogEntry

func entryOf(m *Model) CatalogEntry {
	e := CatalogEntry{Name: m.name, Trait: m.trait, Version: m.version}
	if m.parent != nil {
		e.Parent = m.parent.name
	}
	return e
}

// Lookup returns the entry called name.
func (c Catalog) Lookup(name string) (CatalogEntry, bool) {
	for _, e := range c {
		if e.Name == name {
			return e, true
		}
	}
	return CatalogEntry{}, false
}

// Names returns the model names in catalog order.
func (c Catalog) Names() []string {
	out := make([]string, len(c))
	for i, e := range c {
		out[i] = e.Name
	}
	return out
}

// Filter returns the entries whose names are in names, keeping catalog
// order.
func (c Catalog) Filter(names ...string) Catalog {
	out := make(Catalog, 0, len(names))
	for _, e := range c {
		if slices.Contains(names, e.Name) {
			out = append(out, e)
		}
	}
	return out
}

// CheckCompatible compares c with a catalog received from a peer. Models
// present on only one side are ignored. A model present on both sides is
// incompatible when the traits differ or the schema versions are not
// compatible; every incompatible model is reported as an
// *errors.IncompatibleSchemaError.
func (c Catalog) CheckCompatible(remote Catalog) error {
	var err error
	for _, local := range c {
		other, ok := remote.Lookup(local.Name)
		if !ok {
			continue
		}
		switch {
		case local.Trait != other.Trait:
			err = multierr.Append(err, &errors.IncompatibleSchemaError{
				Model:  local.Name,
				Local:  local.Trait.String(),
				Remote: other.Trait.String(),
			})
		case !local.Version.Compatible(other.Version):
			err = multierr.Append(err, &errors.IncompatibleSchemaError{
				Model:  local.Name,
				Local:  local.Version.String(),
				Remote: other.Version.String(),
			})
		}
	}
	return err
}

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

// Package semver provides schema versions for dxcomp models.
//
// Every model definition MAY carry a schema version. Versions follow
// Semantic Versioning 2.0.0 and are compared with github.com/blang/semver/v4.
// Two sides of a transport or store boundary interoperate on a model when
// their schema versions are Compatible: the same major version, or for the
// initial development range 0.y.z the same minor version. The zero Version
// means "unversioned" and is compatible with everything.
package semver

import (
	"encoding/json"
	"fmt"
	"strings"

	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
	bsemver "github.com/blang/semver/v4"

	"gopkg.in/yaml.v3"
)

// Version is a model schema version.
//
// The zero value is the unversioned schema. Version values are immutable and
// safe to copy and share.
type Version struct {
	v   bsemver.Version
	set bool
}

// ParseVersion parses a SemVer 2.0.0 string, optionally prefixed with "v".
// An empty string yields the zero Version.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, nil
	}
	bv, err := bsemver.Parse(strings.TrimPrefix(s, "v"))
	if err != nil {
		return Version{}, &dxerrors.ParseError{Type: "Version", Value: s}
	}
	return Version{v: bv, set: true}, nil
}

// MustParse is like ParseVersion but panics on error. It is intended for
// static model definitions.
func MustParse(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the canonical representation without a "v" prefix, or an
// empty string for the zero Version.
func (v Version) String() string {
	if !v.set {
		return ""
	}
	return v.v.String()
}

// IsZero reports whether v is the unversioned schema.
func (v Version) IsZero() bool {
	return !v.set
}

// Major returns the major component.
func (v Version) Major() uint64 {
	return v.v.Major
}

// Minor returns the minor component.
func (v Version) Minor() uint64 {
	return v.v.Minor
}

// Compare returns -1, 0 or 1 following SemVer precedence. The zero Version
// sorts before every explicit version.
func (v Version) Compare(other Version) int {
	switch {
	case !v.set && !other.set:
		return 0
	case !v.set:
		return -1
	case !other.set:
		return 1
	}
	return v.v.Compare(other.v)
}

// Compatible reports whether data written against schema v can be read by a
// peer using schema other.
func (v Version) Compatible(other Version) bool {
	if !v.set || !other.set {
		return true
	}
	if v.v.Major != other.v.Major {
		return false
	}
	if v.v.Major == 0 {
		return v.v.Minor == other.v.Minor
	}
	return true
}

// MarshalJSON encodes the version as a JSON string.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON decodes a JSON string produced by MarshalJSON.
func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return &dxerrors.UnmarshalError{Type: "Version", Data: data, Reason: err.Error()}
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return &dxerrors.UnmarshalError{Type: "Version", Data: data, Reason: err.Error()}
	}
	*v = parsed
	return nil
}

// MarshalYAML encodes the version as a YAML scalar.
func (v Version) MarshalYAML() (interface{}, error) {
	return v.String(), nil
}

// UnmarshalYAML decodes a YAML scalar produced by MarshalYAML.
func (v *Version) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return &dxerrors.UnmarshalError{Type: "Version", Reason: fmt.Sprintf("expected scalar, got kind %d", value.Kind)}
	}
	parsed, err := ParseVersion(value.Value)
	if err != nil {
		return &dxerrors.UnmarshalError{Type: "Version", Data: []byte(value.Value), Reason: err.Error()}
	}
	*v = parsed
	return nil
}

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

// Source records which origin last wrote the value of an attribute.
//
// Every set attribute carries a Source. The serialization engine compares it
// with the target of an outgoing tree and skips values the receiver already
// holds from that very origin, so the enum is part of the wire contract
// between layers even though it never appears on the wire itself.
//
// The zero value is SourceUnset, which is only meaningful for attributes that
// are not set.
type Source int

const (
	// SourceUnset marks an attribute whose provenance is unknown. An
	// attribute with isSet == false always reports SourceUnset.
	SourceUnset Source = iota

	// SourceLocal marks a value written by local code in this process, for
	// example through Instance.Set or a deserialization call that did not
	// name its origin.
	SourceLocal

	// SourceServer marks a value received from a remote server.
	SourceServer

	// SourceStore marks a value loaded from, or confirmed by, the store
	// collaborator.
	SourceStore

	// SourceClient marks a value received from a remote client.
	SourceClient
)

// Compile-time checks that Source satisfies the encoding interfaces.
var (
	_ json.Marshaler   = Source(0)
	_ json.Unmarshaler = (*Source)(nil)
	_ yaml.Marshaler   = Source(0)
	_ yaml.Unmarshaler = (*Source)(nil)
)

// String constants for Source values used in serialization, parsing, logs
// and configuration.
//
// Changing any of these strings is a breaking change for consumers that store
// them in configuration files.
const (
	SourceUnsetStr  = "unset"
	SourceLocalStr  = "local"
	SourceServerStr = "server"
	SourceStoreStr  = "store"
	SourceClientStr = "client"
)

// String returns the canonical string representation of the Source value.
//
// The mapping is:
//
//	SourceUnset  -> "unset"
//	SourceLocal  -> "local"
//	SourceServer -> "server"
//	SourceStore  -> "store"
//	SourceClient -> "client"
//
// If the value is not one of the defined constants, String returns "unknown".
func (s Source) String() string {
	switch s {
	case SourceUnset:
		return SourceUnsetStr
	case SourceLocal:
		return SourceLocalStr
	case SourceServer:
		return SourceServerStr
	case SourceStore:
		return SourceStoreStr
	case SourceClient:
		return SourceClientStr
	default:
		return "unknown"
	}
}

// ParseSource converts a textual representation into a Source value.
//
// Besides the canonical names, ParseSource accepts the "remote-" prefixed
// spellings used by older configuration files and the usual CamelCase and
// SCREAMING_SNAKE variants:
//
//	"server", "remote-server", "remoteServer", "REMOTE_SERVER" -> SourceServer
//	"store", "remote-store", "Store"                           -> SourceStore
//	"", "unset", "none"                                        -> SourceUnset
//
// If the input does not match any known Source, ParseSource returns a
// non-nil *ParseError and the returned Source MUST NOT be used.
func ParseSource(str string) (Source, error) {
	switch str {
	case SourceUnsetStr, "", "none", "Unset", "UNSET":
		return SourceUnset, nil
	case SourceLocalStr, "Local", "LOCAL":
		return SourceLocal, nil
	case SourceServerStr, "Server", "SERVER", "remote-server", "remoteServer", "remote_server", "REMOTE_SERVER":
		return SourceServer, nil
	case SourceStoreStr, "Store", "STORE", "remote-store", "remoteStore", "remote_store", "REMOTE_STORE":
		return SourceStore, nil
	case SourceClientStr, "Client", "CLIENT", "remote-client", "remoteClient", "remote_client", "REMOTE_CLIENT":
		return SourceClient, nil
	default:
		return SourceUnset, &errors.ParseError{Type: "Source", Value: str}
	}
}

// Valid reports whether the Source value is one of the defined constants.
func (s Source) Valid() bool {
	return s >= SourceUnset && s <= SourceClient
}

// IsRemote reports whether s names an origin outside this process.
func (s Source) IsRemote() bool {
	return s == SourceServer || s == SourceStore || s == SourceClient
}

// MarshalJSON implements json.Marshaler for Source.
//
// A valid Source is serialized as its canonical string. An invalid value
// yields a *MarshalError so that corrupted provenance never reaches a
// payload.
func (s Source) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, &errors.MarshalError{Type: "Source", Value: int(s)}
	}
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Source.
//
// Both the string form (resolved through ParseSource) and the numeric form
// (the constant's ordinal) are accepted.
func (s *Source) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return &errors.UnmarshalError{Type: "Source", Data: data, Reason: "empty data"}
	}

	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return &errors.UnmarshalError{Type: "Source", Data: data, Reason: err.Error()}
		}
		parsed, err := ParseSource(str)
		if err != nil {
			return err
		}
		*s = parsed
		return nil
	}

	var i int
	if err := json.Unmarshal(data, &i); err != nil {
		return &errors.UnmarshalError{Type: "Source", Data: data, Reason: err.Error()}
	}
	*s = Source(i)
	if !s.Valid() {
		return &errors.UnmarshalError{Type: "Source", Data: data, Reason: "invalid numeric value"}
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler for Source.
func (s Source) MarshalYAML() (any, error) {
	if !s.Valid() {
		return nil, &errors.MarshalError{Type: "Source", Value: int(s)}
	}
	return s.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler for Source.
func (s *Source) UnmarshalYAML(node *yaml.Node) error {
	var str string
	if err := node.Decode(&str); err != nil {
		return &errors.UnmarshalError{Type: "Source", Data: []byte(node.Value), Reason: err.Error()}
	}
	parsed, err := ParseSource(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

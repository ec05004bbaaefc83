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

// Package errors provides the error taxonomy shared by every dxcomp package.
//
// All errors in this package are simple value carriers with stable message
// formats prefixed with "dxcomp:". They are raised synchronously at the point
// of detection and are designed to be:
//
//   - easy to construct from definition, serialization and identity code,
//   - easy to recognize via errors.As,
//   - and easy to translate into protocol-specific responses (for example an
//     HTTP 400) by the transport and store layers that embed the engine.
//
// # Error Types
//
//   - ParseError
//     Returned when parsing textual input (a type specifier, an enum-like
//     value, a validator expression) fails.
//
//   - MarshalError / UnmarshalError
//     Returned when an enum-like value or a wire tree cannot be encoded or
//     decoded.
//
//   - TypeMismatchError
//     Returned when a value does not satisfy the declared type of a field.
//
//   - ValidationError
//     Returned when one or more field validators fail. It aggregates every
//     failure together with the path locating it inside nested structures.
//
//   - UnknownTypeError, NotFoundError
//     Returned when a model or a property cannot be resolved.
//
//   - UnreferenceableEntityError, DuplicateIdentifierError,
//     ImmutableIdentifierError, DetachedEntityError
//     Returned when an operation would break the identity-map invariant.
//
//   - UnsetAttributeError, ExposureError, DefinitionError,
//     IncompatibleSchemaError
//     Returned for reads of unknown values, remote access to unexposed
//     properties, invalid model definitions and schema version conflicts.
//
// No error in this package is ever swallowed by the engine: a structural
// error that went unreported would silently corrupt cross-process identity.
package errors

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError is returned when parsing a string into a strongly typed value
// fails.
//
// Type identifies the logical type being parsed (for example, "ValueType",
// "Source", "Validator"), and Value contains the exact string that could not
// be interpreted.
type ParseError struct {
	// Type is the logical name of the type being parsed.
	Type string

	// Value is the invalid textual representation that was provided.
	Value string
}

// Error implements the error interface for ParseError.
//
// The error message format is:
//
//	"dxcomp: invalid {Type} value: {Value}"
func (e *ParseError) Error() string {
	return "dxcomp: invalid " + e.Type + " value: " + e.Value
}

// MarshalError is returned when marshaling a typed value fails due to it being
// outside the set of valid constants.
type MarshalError struct {
	// Type is the logical name of the type being marshaled (for example, "Source").
	Type string

	// Value is the underlying numeric representation that could not be
	// marshaled because it does not correspond to a known constant.
	Value int
}

// Error implements the error interface for MarshalError.
//
// The error message format is:
//
//	"dxcomp: cannot marshal invalid {Type} value: {Value}"
func (e *MarshalError) Error() string {
	return "dxcomp: cannot marshal invalid " + e.Type + " value: " + strconv.Itoa(e.Value)
}

// UnmarshalError is returned when unmarshaling data into a typed value or a
// wire tree into components fails.
//
// The Data field is intentionally not included in the formatted message to
// avoid excessively verbose or sensitive logs; callers can log it separately
// when appropriate.
type UnmarshalError struct {
	// Type is the logical name of the type being unmarshaled into.
	Type string

	// Data is the raw input that failed to unmarshal. It MAY be nil when the
	// input was an already decoded tree.
	Data []byte

	// Reason is a short, human-readable explanation of the failure.
	Reason string
}

// Error implements the error interface for UnmarshalError.
//
// The error message format is:
//
//	"dxcomp: cannot unmarshal {Type}: {Reason}"
func (e *UnmarshalError) Error() string {
	return "dxcomp: cannot unmarshal " + e.Type + ": " + e.Reason
}

// TypeMismatchError is returned when a value does not satisfy the declared
// value type of a field.
//
// Field is the name (or path) of the field being checked, Expected is the
// canonical type specifier (for example "string?[]") and Actual describes the
// runtime value ("number", "null", "Movie", ...).
type TypeMismatchError struct {
	Field    string
	Expected string
	Actual   string
}

// Error implements the error interface for TypeMismatchError.
//
// The error message format is:
//
//	"dxcomp: type mismatch for {Field}: expected {Expected}, got {Actual}"
func (e *TypeMismatchError) Error() string {
	return "dxcomp: type mismatch for " + e.Field + ": expected " + e.Expected + ", got " + e.Actual
}

// ValidationFailure locates one failed validator inside a component graph.
type ValidationFailure struct {
	// Validator is the name of the failed validator, for example
	// "notEmpty()" or "required()".
	Validator string

	// Path locates the failing value, for example "title",
	// "address.city" or "actors[0].name".
	Path string
}

// String renders the failure as "{Validator} at {Path}".
func (f ValidationFailure) String() string {
	return f.Validator + " at " + f.Path
}

// ValidationError is returned when validation of a component fails.
//
// Type identifies the model of the validated component and Failures lists
// every failed validator in graph walk order. A ValidationError MUST carry at
// least one failure.
type ValidationError struct {
	// Type is the logical name of the type being validated.
	Type string

	// Failures lists every failed validator with its path.
	Failures []ValidationFailure
}

// Error implements the error interface for ValidationError.
//
// The error message format is:
//
//	"dxcomp: invalid {Type}: {Validator} at {Path}[, ...]"
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.String()
	}
	return "dxcomp: invalid " + e.Type + ": " + strings.Join(parts, ", ")
}

// UnknownTypeError is returned when a type name has no registered model.
type UnknownTypeError struct {
	Type string
}

// Error implements the error interface for UnknownTypeError.
func (e *UnknownTypeError) Error() string {
	if e.Type == "" {
		return "dxcomp: missing component type"
	}
	return "dxcomp: unknown component type: " + e.Type
}

// NotFoundError is returned when a named thing cannot be resolved.
//
// Kind describes what was looked up ("property", "attribute", "record"),
// Owner names the model or collection searched and Name is the missing key.
type NotFoundError struct {
	Kind  string
	Owner string
	Name  string
}

// Error implements the error interface for NotFoundError.
//
// The error message format is:
//
//	"dxcomp: {Kind} {Name} not found in {Owner}"
func (e *NotFoundError) Error() string {
	return "dxcomp: " + e.Kind + " " + e.Name + " not found in " + e.Owner
}

// UnreferenceableEntityError is returned when a reference-only encoding is
// required for a component that has no stable identity: an embedded
// component, or an entity whose primary identifier is not set yet.
type UnreferenceableEntityError struct {
	Type string
	Path string
}

// Error implements the error interface for UnreferenceableEntityError.
func (e *UnreferenceableEntityError) Error() string {
	msg := "dxcomp: cannot reference " + e.Type + " without an identifier"
	if e.Path != "" {
		msg += " at " + e.Path
	}
	return msg
}

// DuplicateIdentifierError is returned when an identifier value is already
// bound to another live instance of the same type.
type DuplicateIdentifierError struct {
	Type  string
	Field string
	Value any
}

// Error implements the error interface for DuplicateIdentifierError.
func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("dxcomp: duplicate identifier %s.%s = %v", e.Type, e.Field, e.Value)
}

// ImmutableIdentifierError is returned when code attempts to reassign a
// primary identifier after construction.
type ImmutableIdentifierError struct {
	Type      string
	Field     string
	Value     any
	Attempted any
}

// Error implements the error interface for ImmutableIdentifierError.
func (e *ImmutableIdentifierError) Error() string {
	return fmt.Sprintf("dxcomp: cannot change primary identifier %s.%s from %v to %v", e.Type, e.Field, e.Value, e.Attempted)
}

// DetachedEntityError is returned when operating on an instance that was
// explicitly removed from its identity map.
type DetachedEntityError struct {
	Type       string
	Identifier any
}

// Error implements the error interface for DetachedEntityError.
func (e *DetachedEntityError) Error() string {
	return fmt.Sprintf("dxcomp: %s %v is detached", e.Type, e.Identifier)
}

// UnsetAttributeError is returned when an attribute whose value is unknown is
// read without explicitly allowing unset values.
type UnsetAttributeError struct {
	Type  string
	Field string
}

// Error implements the error interface for UnsetAttributeError.
func (e *UnsetAttributeError) Error() string {
	return "dxcomp: attribute " + e.Type + "." + e.Field + " is not set"
}

// ExposureError is returned when a property is accessed remotely through a
// verb it does not expose.
type ExposureError struct {
	Type  string
	Field string
	Verb  string
}

// Error implements the error interface for ExposureError.
func (e *ExposureError) Error() string {
	return "dxcomp: " + e.Type + "." + e.Field + " is not exposed for " + e.Verb
}

// DefinitionError is returned when a model definition is invalid. Definition
// errors are programmer errors; the Must* definition helpers panic with them.
type DefinitionError struct {
	Model    string
	Property string
	Reason   string
}

// Error implements the error interface for DefinitionError.
//
// The error message format is:
//
//	"dxcomp: invalid definition of {Model}.{Property}: {Reason}" (when Property is specified)
//	"dxcomp: invalid definition of {Model}: {Reason}" (when Property is empty)
func (e *DefinitionError) Error() string {
	if e.Property != "" {
		return "dxcomp: invalid definition of " + e.Model + "." + e.Property + ": " + e.Reason
	}
	return "dxcomp: invalid definition of " + e.Model + ": " + e.Reason
}

// IncompatibleSchemaError is returned when two sides of a boundary declare
// the same model with schema versions that cannot interoperate.
type IncompatibleSchemaError struct {
	Model  string
	Local  string
	Remote string
}

// Error implements the error interface for IncompatibleSchemaError.
func (e *IncompatibleSchemaError) Error() string {
	return "dxcomp: incompatible schema for " + e.Model + ": local " + e.Local + ", remote " + e.Remote
}

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
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
)

// Validator is a named predicate over an attribute value. Name is what a
// ValidationError reports, so it SHOULD read like the expression that
// created the validator, for example "maxLength(10)".
//
// Validators are never invoked with the Undefined sentinel: an optional
// attribute set to Undefined is valid, and a required one fails with
// "required()" before any validator runs.
type Validator struct {
	Name string
	Func func(value any) bool
}

// Valid reports whether value passes v. A Validator with a nil Func accepts
// everything.
func (v Validator) Valid(value any) bool {
	if v.Func == nil {
		return true
	}
	return v.Func(value)
}

// RequiredValidatorName is reported for required attributes that are unset
// or Undefined at validation time.
const RequiredValidatorName = "required()"

// NotEmpty rejects empty strings, arrays and objects.
func NotEmpty() Validator {
	return Validator{Name: "notEmpty()", Func: func(value any) bool {
		n, ok := length(value)
		return !ok || n > 0
	}}
}

// MinLength rejects strings (counted in runes) and arrays shorter than n.
func MinLength(n int) Validator {
	return Validator{Name: "minLength(" + strconv.Itoa(n) + ")", Func: func(value any) bool {
		l, ok := length(value)
		return !ok || l >= n
	}}
}

// MaxLength rejects strings (counted in runes) and arrays longer than n.
func MaxLength(n int) Validator {
	return Validator{Name: "maxLength(" + strconv.Itoa(n) + ")", Func: func(value any) bool {
		l, ok := length(value)
		return !ok || l <= n
	}}
}

// Min rejects numbers lower than x.
func Min(x float64) Validator {
	return Validator{Name: "min(" + formatFloat(x) + ")", Func: func(value any) bool {
		f, ok := valuetype.Normalize(value).(float64)
		return !ok || f >= x
	}}
}

// Max rejects numbers greater than x.
func Max(x float64) Validator {
	return Validator{Name: "max(" + formatFloat(x) + ")", Func: func(value any) bool {
		f, ok := valuetype.Normalize(value).(float64)
		return !ok || f <= x
	}}
}

// Match rejects strings that do not match re.
func Match(re *regexp.Regexp) Validator {
	return Validator{Name: "match(" + re.String() + ")", Func: func(value any) bool {
		s, ok := value.(string)
		return !ok || re.MatchString(s)
	}}
}

var validatorExpr = regexp.MustCompile(`^([A-Za-z]+)\((.*)\)$`)

// ParseValidator parses the textual validator expressions used by model
// manifests:
//
//	notEmpty()
//	minLength(3)   maxLength(200)
//	min(0)         max(5)
//	match(^[a-z]+$)
//
// Unknown names or malformed arguments yield a *ParseError.
func ParseValidator(expr string) (Validator, error) {
	expr = strings.TrimSpace(expr)
	m := validatorExpr.FindStringSubmatch(expr)
	if m == nil {
		return Validator{}, &errors.ParseError{Type: "Validator", Value: expr}
	}
	name, arg := m[1], strings.TrimSpace(m[2])
	fail := func() (Validator, error) {
		return Validator{}, &errors.ParseError{Type: "Validator", Value: expr}
	}

	switch name {
	case "notEmpty":
		if arg != "" {
			return fail()
		}
		return NotEmpty(), nil
	case "minLength", "maxLength":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 0 {
			return fail()
		}
		if name == "minLength" {
			return MinLength(n), nil
		}
		return MaxLength(n), nil
	case "min", "max":
		x, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return fail()
		}
		if name == "min" {
			return Min(x), nil
		}
		return Max(x), nil
	case "match":
		re, err := regexp.Compile(arg)
		if err != nil {
			return fail()
		}
		return Match(re), nil
	}
	return fail()
}

func length(value any) (int, bool) {
	switch v := value.(type) {
	case string:
		return utf8.RuneCountInString(v), true
	case map[string]any:
		return len(v), true
	}
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Slice {
		return rv.Len(), true
	}
	return 0, false
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

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

package model_test

import (
	"encoding/json"
	"errors"
	"regexp"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/model/semver"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
)

func names(seq func(func(*model.Property) bool)) []string {
	var out []string
	for p := range seq {
		out = append(out, p.Name())
	}
	return out
}

func mediaRegistry(t *testing.T) *model.Registry {
	t.Helper()
	reg := model.NewRegistry()

	media := reg.MustDefine("Media", model.AsEntity(), model.WithVersion("1.0.0"))
	media.MustAttribute("id", "string", model.AsPrimaryIdentifier())
	media.MustAttribute("title", "string", model.WithExposure(model.VerbGet))
	media.MustAttribute("year", "number?")
	media.MustMethod("play", model.WithExposure(model.VerbCall))

	movie := reg.MustDefine("Movie", model.Extends("Media"))
	movie.MustAttribute("director", "string?")
	movie.MustAttribute("title", "string", model.WithValidators(model.NotEmpty()))
	return reg
}

func TestRegistry_Define(t *testing.T) {
	reg := mediaRegistry(t)

	movie, err := reg.Lookup("Movie")
	require.NoError(t, err)
	assert.Equal(t, "Movie", movie.Name())
	assert.Equal(t, "Media", movie.Parent().Name())
	assert.True(t, movie.IsEntity(), "subtypes inherit the entity trait")
	assert.Equal(t, "1.0.0", movie.Version().String(), "subtypes inherit the schema version")
	assert.True(t, reg.IsSubtype("Movie", "Media"))
	assert.False(t, reg.IsSubtype("Media", "Movie"))
	assert.False(t, reg.IsSubtype("Nope", "Media"))
	assert.Equal(t, 2, reg.Len())

	var got []string
	for m := range reg.Models() {
		got = append(got, m.Name())
	}
	assert.Equal(t, []string{"Media", "Movie"}, got)
}

func TestRegistry_DefineErrors(t *testing.T) {
	reg := mediaRegistry(t)

	tests := []struct {
		name   string
		model  string
		opts   []model.DefineOption
		target any
	}{
		{"duplicate", "Movie", nil, new(*dxerrors.DefinitionError)},
		{"primitive name", "string", nil, new(*dxerrors.DefinitionError)},
		{"invalid name", "9lives", nil, new(*dxerrors.DefinitionError)},
		{"reserved name", "__component", nil, new(*dxerrors.DefinitionError)},
		{"unknown parent", "Show", []model.DefineOption{model.Extends("Series")}, new(*dxerrors.UnknownTypeError)},
		{"bad version", "Show", []model.DefineOption{model.WithVersion("one")}, new(*dxerrors.ParseError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Define(tt.model, tt.opts...)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "unexpected error type %T", err)
		})
	}

	_, err := reg.Lookup("Series")
	var ute *dxerrors.UnknownTypeError
	require.True(t, errors.As(err, &ute))
	assert.Equal(t, "Series", ute.Type)

	assert.Panics(t, func() { reg.MustDefine("Movie") })
}

func TestModel_LookupWalksChain(t *testing.T) {
	reg := mediaRegistry(t)
	movie, _ := reg.Lookup("Movie")
	media, _ := reg.Lookup("Media")

	title, err := movie.Lookup("title")
	require.NoError(t, err)
	assert.Same(t, movie, title.Owner(), "most-derived declaration wins")

	id, err := movie.Lookup("id")
	require.NoError(t, err)
	assert.Same(t, media, id.Owner())

	_, err = movie.Lookup("budget")
	var nf *dxerrors.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "property", nf.Kind)
	assert.Equal(t, "Movie", nf.Owner)
	assert.Equal(t, "budget", nf.Name)
}

func TestModel_Properties(t *testing.T) {
	reg := mediaRegistry(t)
	movie, _ := reg.Lookup("Movie")

	all := movie.Properties(nil)
	assert.Equal(t, []string{"id", "title", "year", "play", "director"}, names(all))
	assert.Equal(t, names(all), names(all), "sequences are restartable")
	assert.Equal(t, []string{"id", "title", "year", "director"}, names(movie.Attributes()))
	assert.Equal(t, []string{"play"}, names(movie.Properties(model.IsMethod)))

	// The override keeps the slot but is the subtype's property.
	for p := range movie.Attributes() {
		if p.Name() == "title" {
			assert.Equal(t, "Movie", p.Owner().Name())
			assert.Equal(t, []string{"notEmpty()"}, p.FailedValidators(""))
		}
	}

	// Early termination.
	var first []string
	for p := range movie.Properties(nil) {
		first = append(first, p.Name())
		break
	}
	assert.Equal(t, []string{"id"}, first)

	// Declarations made later are visible to the same sequence.
	movie.MustAttribute("rating", "number?")
	assert.Contains(t, names(all), "rating")
}

func TestModel_Identifiers(t *testing.T) {
	reg := model.NewRegistry()
	user := reg.MustDefine("User", model.AsEntity())
	id := user.MustAttribute("id", "string", model.AsPrimaryIdentifier())
	email := user.MustAttribute("email", "string", model.AsSecondaryIdentifier())
	user.MustAttribute("name", "string")

	assert.Same(t, id, user.PrimaryIdentifier())
	assert.True(t, id.IsPrimaryIdentifier())
	assert.True(t, email.IsSecondaryIdentifier())
	assert.True(t, email.IsIdentifier())
	assert.Equal(t, []*model.Property{email}, user.SecondaryIdentifiers())

	admin := reg.MustDefine("Admin", model.Extends("User"))
	assert.Same(t, id, admin.PrimaryIdentifier())
}

func TestModel_DeclareErrors(t *testing.T) {
	reg := model.NewRegistry()
	user := reg.MustDefine("User", model.AsEntity())
	user.MustAttribute("id", "string", model.AsPrimaryIdentifier())
	user.MustAttribute("name", "string")
	address := reg.MustDefine("Address")
	admin := reg.MustDefine("Admin", model.Extends("User"))

	tests := []struct {
		name    string
		declare func() error
	}{
		{"duplicate", func() error { _, err := user.Attribute("name", "string"); return err }},
		{"invalid type", func() error { _, err := user.Attribute("age", "number??"); return err }},
		{"reserved name", func() error { _, err := user.Attribute("_ref", "boolean"); return err }},
		{"optional identifier", func() error {
			_, err := user.Attribute("handle", "string?", model.AsSecondaryIdentifier())
			return err
		}},
		{"boolean identifier", func() error {
			_, err := user.Attribute("flag", "boolean", model.AsSecondaryIdentifier())
			return err
		}},
		{"primary on embedded", func() error {
			_, err := address.Attribute("id", "string", model.AsPrimaryIdentifier())
			return err
		}},
		{"second primary in chain", func() error {
			_, err := admin.Attribute("adminID", "string", model.AsPrimaryIdentifier())
			return err
		}},
		{"override identifier", func() error { _, err := admin.Attribute("id", "number"); return err }},
		{"override kind", func() error { _, err := admin.Method("name"); return err }},
		{"bad default", func() error { _, err := user.Attribute("age", "number", model.WithDefault("old")); return err }},
		{"method with type", func() error {
			_, err := user.Declare("run", model.KindMethod, model.WithType(valuetype.String()))
			return err
		}},
		{"method exposed for get", func() error { _, err := user.Method("run", model.WithExposure(model.VerbGet)); return err }},
		{"attribute exposed for call", func() error {
			_, err := user.Attribute("age", "number", model.WithExposure(model.VerbCall))
			return err
		}},
		{"attribute without type", func() error { _, err := user.Declare("age", model.KindAttribute); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.declare()
			var de *dxerrors.DefinitionError
			require.True(t, errors.As(err, &de), "err = %v", err)
		})
	}

	assert.Panics(t, func() { user.MustAttribute("name", "string") })
}

func TestModel_Exposure(t *testing.T) {
	reg := mediaRegistry(t)
	media, _ := reg.Lookup("Media")
	movie, _ := reg.Lookup("Movie")

	assert.True(t, media.ExposureOf("title").Has(model.VerbGet))
	assert.True(t, movie.ExposureOf("title").Has(model.VerbGet), "exposure is inherited")
	assert.True(t, movie.ExposureOf("year").IsNone(), "default is local-only")
	assert.True(t, movie.ExposureOf("play").Has(model.VerbCall))

	require.NoError(t, movie.Expose("title", model.VerbSet))
	assert.Equal(t, model.NewExposure(model.VerbGet, model.VerbSet), movie.ExposureOf("title"))
	assert.Equal(t, model.NewExposure(model.VerbGet), media.ExposureOf("title"), "subtype exposure does not leak upwards")

	assert.Error(t, movie.Expose("play", model.VerbGet))
	assert.Error(t, movie.Expose("missing", model.VerbGet))
}

func TestProperty_Default(t *testing.T) {
	reg := model.NewRegistry()
	m := reg.MustDefine("Playlist")
	tags := m.MustAttribute("tags", "string[]", model.WithDefault([]string{"new"}))
	n := 0
	counter := m.MustAttribute("seq", "number", model.WithDefaultFunc(func() any { n++; return n }))
	plain := m.MustAttribute("name", "string")

	v1, ok := tags.Default()
	require.True(t, ok)
	assert.Equal(t, []any{"new"}, v1)
	v1.([]any)[0] = "changed"
	v2, _ := tags.Default()
	assert.Equal(t, []any{"new"}, v2, "defaults are copied on every application")

	c1, _ := counter.Default()
	c2, _ := counter.Default()
	assert.Equal(t, 1.0, c1)
	assert.Equal(t, 2.0, c2)

	_, ok = plain.Default()
	assert.False(t, ok)
}

func TestValidators(t *testing.T) {
	tests := []struct {
		expr  string
		value any
		want  bool
	}{
		{"notEmpty()", "", false},
		{"notEmpty()", []any{}, false},
		{"notEmpty()", "x", true},
		{"notEmpty()", 0, true},
		{"minLength(2)", "é", false},
		{"minLength(2)", "ab", true},
		{"maxLength(3)", "abcd", false},
		{"maxLength(3)", []any{1, 2, 3}, true},
		{"min(0)", -1, false},
		{"min(0)", 0, true},
		{"max(5)", 5.5, false},
		{"max(5)", "many", true},
		{"match(^[a-z]+$)", "abc", true},
		{"match(^[a-z]+$)", "ABC", false},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := model.ParseValidator(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expr, v.Name)
			assert.Equal(t, tt.want, v.Valid(tt.value))
		})
	}

	for _, bad := range []string{"", "notEmpty", "notEmpty(1)", "minLength(x)", "minLength(-1)", "min()", "match([)", "unique()"} {
		_, err := model.ParseValidator(bad)
		var pe *dxerrors.ParseError
		assert.True(t, errors.As(err, &pe), "ParseValidator(%q)", bad)
	}

	assert.Equal(t, "match(^a)", model.Match(regexp.MustCompile("^a")).Name)
	assert.True(t, model.Validator{Name: "noop"}.Valid(nil))
}

func TestRegistry_Check(t *testing.T) {
	reg := model.NewRegistry()
	cinema := reg.MustDefine("Cinema", model.AsEntity())
	cinema.MustAttribute("movies", "Movie[]")
	reg.MustDefine("Ghost", model.AsEntity())

	err := reg.Check()
	require.Error(t, err)
	errs := multierr.Errors(err)
	assert.Len(t, errs, 3)

	reasons := make([]string, 0, len(errs))
	for _, e := range errs {
		var de *dxerrors.DefinitionError
		require.True(t, errors.As(e, &de))
		reasons = append(reasons, de.Model+":"+de.Reason)
	}
	assert.True(t, slices.Contains(reasons, "Cinema:unknown component type Movie"))
	assert.True(t, slices.Contains(reasons, "Ghost:entity model has no primary identifier"))

	assert.NoError(t, mediaRegistry(t).Check())
}

func TestCatalog(t *testing.T) {
	reg := mediaRegistry(t)
	c := reg.Catalog()
	assert.Equal(t, []string{"Media", "Movie"}, c.Names())

	e, ok := c.Lookup("Movie")
	require.True(t, ok)
	assert.Equal(t, "Media", e.Parent)
	assert.Equal(t, model.TraitEntity, e.Trait)

	data, err := json.Marshal(c.Filter("Movie"))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"Movie","parent":"Media","trait":"entity","version":"1.0.0"}]`, string(data))

	var back model.Catalog
	require.NoError(t, yaml.Unmarshal(mustYAML(t, c), &back))
	assert.Equal(t, c.Names(), back.Names())
}

func TestCatalog_CheckCompatible(t *testing.T) {
	local := model.Catalog{
		{Name: "Movie", Trait: model.TraitEntity, Version: semver.MustParse("1.2.0")},
		{Name: "Address", Trait: model.TraitEmbedded, Version: semver.MustParse("0.3.0")},
		{Name: "LocalOnly", Trait: model.TraitEmbedded},
	}

	assert.NoError(t, local.CheckCompatible(model.Catalog{
		{Name: "Movie", Trait: model.TraitEntity, Version: semver.MustParse("1.9.1")},
		{Name: "Address", Trait: model.TraitEmbedded, Version: semver.MustParse("0.3.7")},
		{Name: "RemoteOnly", Trait: model.TraitEntity},
	}))

	err := local.CheckCompatible(model.Catalog{
		{Name: "Movie", Trait: model.TraitEntity, Version: semver.MustParse("2.0.0")},
		{Name: "Address", Trait: model.TraitEntity, Version: semver.MustParse("0.3.0")},
	})
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	var ise *dxerrors.IncompatibleSchemaError
	require.True(t, errors.As(errs[0], &ise))
	assert.Equal(t, "Movie", ise.Model)
	assert.Equal(t, "1.2.0", ise.Local)
	assert.Equal(t, "2.0.0", ise.Remote)
}

func mustYAML(t *testing.T, v any) []byte {
	t.Helper()
	data, err := yaml.Marshal(v)
	require.NoError(t, err)
	return data
}

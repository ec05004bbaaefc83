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

package component_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirpx.dev/dxcomp/dxcore/component"
	"dirpx.dev/dxcomp/dxcore/ctxlog"
	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/selector"
	"dirpx.dev/dxcomp/dxcore/store/memstore"
)

// seededStore returns a store holding Movie m1 and Cinema c1.
func seededStore(t *testing.T, reg *model.Registry) *memstore.Store {
	t.Helper()
	st := memstore.New(reg)
	s := newScope(t, reg, component.WithStore(st))
	c := mustNew(t, s, "Cinema", map[string]any{"id": "c1", "name": "Odeon"})
	m := mustNew(t, s, "Movie", map[string]any{"id": "m1", "title": "Alien", "rating": 8, "cinema": c})
	require.NoError(t, c.Save(t.Context(), selector.All))
	require.NoError(t, m.Save(t.Context(), selector.All))
	return st
}

func TestSave(t *testing.T) {
	reg := cinemaRegistry(t)
	st := memstore.New(reg)
	s := newScope(t, reg, component.WithStore(st))
	ctx := t.Context()

	m := mustNew(t, s, "Movie", map[string]any{
		"id":    "m1",
		"title": "Alien",
		"cast":  []any{map[string]any{"name": "Ian Holm"}},
	})
	require.NoError(t, m.Save(ctx, selector.All))
	assert.False(t, m.IsNew())
	assert.Equal(t, 1, st.Len())

	title, err := m.Attribute("title")
	require.NoError(t, err)
	assert.Equal(t, model.SourceStore, title.Source())
	actor := mustGet(t, m, "cast").([]any)[0].(*component.Instance)
	assert.False(t, actor.IsNew())

	rec, err := st.Fetch(ctx, "Movie", "m1", selector.All)
	require.NoError(t, err)
	assert.NotContains(t, rec, "__new")
	assert.Equal(t, "Alien", rec["title"])

	_, err = m.Set("title", "Aliens")
	require.NoError(t, err)
	require.NoError(t, m.Save(ctx, selector.FromFieldNames("title")))
	rec, err = st.Fetch(ctx, "Movie", "m1", selector.FromFieldNames("title"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"__component": "Movie", "id": "m1", "title": "Aliens"}, rec)
}

func TestSave_Errors(t *testing.T) {
	reg := cinemaRegistry(t)
	ctx := t.Context()

	bare := newScope(t, reg)
	m := mustNew(t, bare, "Movie", map[string]any{"id": "m1", "title": "Alien"})
	assert.ErrorIs(t, m.Save(ctx, selector.All), component.ErrNoStore)
	assert.ErrorIs(t, m.Load(ctx, selector.All, component.LoadOptions{}), component.ErrNoStore)

	s := newScope(t, reg, component.WithStore(memstore.New(reg)))
	invalid := mustNew(t, s, "Movie", map[string]any{"id": "m2", "title": ""})
	var verr *dxerrors.ValidationError
	assert.ErrorAs(t, invalid.Save(ctx, selector.All), &verr)
	assert.True(t, invalid.IsNew())
}

func TestGet_LoadsThroughTheStore(t *testing.T) {
	reg := cinemaRegistry(t)
	counting := &countingStore{Store: seededStore(t, reg)}
	s := newScope(t, reg, component.WithStore(counting))
	ctx := t.Context()

	m, err := s.Get(ctx, "Movie", "m1", selector.FromFieldNames("title"), component.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, counting.count())
	assert.False(t, m.IsNew())
	assert.Equal(t, "Alien", mustGet(t, m, "title"))
	v, err := m.Get("rating", component.AllowUnset())
	require.NoError(t, err)
	assert.Nil(t, v, "unselected fields stay unknown")

	title, err := m.Attribute("title")
	require.NoError(t, err)
	assert.Equal(t, model.SourceStore, title.Source())

	// Cache hits do not reach the store.
	require.NoError(t, m.Load(ctx, selector.FromFieldNames("title"), component.LoadOptions{}))
	again, err := s.Get(ctx, "Movie", "m1", selector.FromFieldNames("title"), component.LoadOptions{})
	require.NoError(t, err)
	assert.Same(t, m, again)
	assert.Equal(t, 1, counting.count())

	// Only the missing fields are fetched.
	require.NoError(t, m.Load(ctx, selector.FromFieldNames("title", "rating"), component.LoadOptions{}))
	assert.Equal(t, 2, counting.count())
	assert.True(t, selector.Equals(selector.FromFieldNames("rating"), counting.fetches[1]))
	assert.Equal(t, 8.0, mustGet(t, m, "rating"))

	require.NoError(t, m.Load(ctx, selector.FromFieldNames("title"), component.LoadOptions{Reload: true}))
	assert.Equal(t, 3, counting.count())
}

func TestGet_ResolvesReferences(t *testing.T) {
	reg := cinemaRegistry(t)
	s := newScope(t, reg, component.WithStore(seededStore(t, reg)))
	ctx := t.Context()

	m, err := s.Get(ctx, "Movie", "m1", selector.FromFieldNames("cinema"), component.LoadOptions{})
	require.NoError(t, err)
	c := mustGet(t, m, "cinema").(*component.Instance)
	_, err = c.Get("name")
	assert.Error(t, err, "references load only the identifier")

	require.NoError(t, c.Load(ctx, selector.All, component.LoadOptions{}))
	assert.Equal(t, "Odeon", mustGet(t, c, "name"))

	got, err := s.Get(ctx, "Cinema", "c1", selector.FromFieldNames("name"), component.LoadOptions{})
	require.NoError(t, err)
	assert.Same(t, c, got)
}

func TestGet_NotFound(t *testing.T) {
	reg := cinemaRegistry(t)
	s := newScope(t, reg, component.WithStore(memstore.New(reg)))

	_, err := s.Get(t.Context(), "Movie", "nope", selector.All, component.LoadOptions{})
	var nf *dxerrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "record", nf.Kind)
	_, ok := s.Resolve("Movie", "nope")
	assert.False(t, ok, "the placeholder is dropped")

	_, err = s.Get(t.Context(), "Actor", "x", selector.All, component.LoadOptions{})
	var unref *dxerrors.UnreferenceableEntityError
	assert.ErrorAs(t, err, &unref)
}

func TestLoad_UsesContextLogger(t *testing.T) {
	reg := cinemaRegistry(t)
	s := newScope(t, reg, component.WithStore(seededStore(t, reg)))
	ctx := ctxlog.WithLogger(context.Background(), quietLogger())

	m, err := s.Get(ctx, "Movie", "m1", selector.All, component.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Alien", mustGet(t, m, "title"))
}

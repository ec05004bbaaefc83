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

package memstore_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/selector"
	"dirpx.dev/dxcomp/dxcore/store/memstore"
)

func registry(t *testing.T) *model.Registry {
	t.Helper()
	reg := model.NewRegistry()
	actor := reg.MustDefine("Actor")
	actor.MustAttribute("name", "string")
	actor.MustAttribute("role", "string?")
	movie := reg.MustDefine("Movie", model.AsEntity())
	movie.MustAttribute("id", "string", model.AsPrimaryIdentifier())
	movie.MustAttribute("title", "string")
	movie.MustAttribute("rating", "number?")
	movie.MustAttribute("cast", "Actor[]?")
	return reg
}

func movieTree() map[string]any {
	return map[string]any{
		"__component": "Movie",
		"__new":       true,
		"id":          "m1",
		"title":       "Alien",
		"rating":      8.5,
		"cast": []any{
			map[string]any{"__component": "Actor", "name": "Sigourney Weaver", "role": "Ripley"},
		},
	}
}

func TestPersistFetch(t *testing.T) {
	st := memstore.New(registry(t))
	ctx := t.Context()
	require.NoError(t, st.Persist(ctx, "Movie", "m1", movieTree()))
	assert.Equal(t, 1, st.Len())
	assert.Equal(t, []string{"Movie/m1"}, st.Keys())

	tests := []struct {
		name string
		sel  selector.Selector
		want map[string]any
	}{
		{
			name: "all",
			sel:  selector.All,
			want: map[string]any{
				"__component": "Movie",
				"id":          "m1",
				"title":       "Alien",
				"rating":      8.5,
				"cast": []any{
					map[string]any{"__component": "Actor", "name": "Sigourney Weaver", "role": "Ripley"},
				},
			},
		},
		{
			name: "identifier is always kept",
			sel:  selector.FromFieldNames("title"),
			want: map[string]any{"__component": "Movie", "id": "m1", "title": "Alien"},
		},
		{
			name: "nested projection",
			sel: selector.Fields(map[string]selector.Selector{
				"cast": selector.FromFieldNames("name"),
			}),
			want: map[string]any{
				"__component": "Movie",
				"id":          "m1",
				"cast": []any{
					map[string]any{"__component": "Actor", "name": "Sigourney Weaver"},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.Fetch(ctx, "Movie", "m1", tt.sel)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Fetch() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPersist_Merges(t *testing.T) {
	st := memstore.New(registry(t))
	ctx := t.Context()
	require.NoError(t, st.Persist(ctx, "Movie", "m1", movieTree()))
	require.NoError(t, st.Persist(ctx, "Movie", "m1", map[string]any{"__component": "Movie", "id": "m1", "title": "Aliens"}))

	got, err := st.Fetch(ctx, "Movie", "m1", selector.FromFieldNames("title", "rating"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"__component": "Movie", "id": "m1", "title": "Aliens", "rating": 8.5}, got)
}

func TestFetch_ReturnsCopies(t *testing.T) {
	st := memstore.New(registry(t))
	ctx := t.Context()
	tree := movieTree()
	require.NoError(t, st.Persist(ctx, "Movie", "m1", tree))
	tree["title"] = "mutated"

	got, err := st.Fetch(ctx, "Movie", "m1", selector.All)
	require.NoError(t, err)
	got["cast"].([]any)[0].(map[string]any)["name"] = "mutated"

	again, err := st.Fetch(ctx, "Movie", "m1", selector.All)
	require.NoError(t, err)
	assert.Equal(t, "Alien", again["title"])
	assert.Equal(t, "Sigourney Weaver", again["cast"].([]any)[0].(map[string]any)["name"])
}

func TestFetch_Errors(t *testing.T) {
	st := memstore.New(registry(t))

	_, err := st.Fetch(t.Context(), "Movie", "nope", selector.All)
	var nf *dxerrors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "record", nf.Kind)
	assert.Equal(t, "Movie", nf.Owner)
	assert.Equal(t, "nope", nf.Name)

	_, err = st.Fetch(t.Context(), "Nope", "x", selector.All)
	var unknown *dxerrors.UnknownTypeError
	assert.ErrorAs(t, err, &unknown)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err = st.Fetch(ctx, "Movie", "m1", selector.All)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, st.Persist(ctx, "Movie", "m1", movieTree()), context.Canceled)
}

func TestDumpRestore(t *testing.T) {
	reg := registry(t)
	st := memstore.New(reg)
	ctx := t.Context()
	require.NoError(t, st.Persist(ctx, "Movie", "m1", movieTree()))
	require.NoError(t, st.Persist(ctx, "Movie", 7, map[string]any{"__component": "Movie", "id": 7, "title": "Seven"}))

	var buf bytes.Buffer
	require.NoError(t, st.Dump(&buf))
	assert.Contains(t, buf.String(), "Movie/m1:")

	restored := memstore.New(reg)
	require.NoError(t, restored.Restore(&buf))
	assert.Equal(t, st.Keys(), restored.Keys())

	want, err := st.Fetch(ctx, "Movie", "m1", selector.All)
	require.NoError(t, err)
	got, err := restored.Fetch(ctx, "Movie", "m1", selector.All)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("restored record mismatch (-want +got):\n%s", diff)
	}

	assert.Error(t, restored.Restore(bytes.NewBufferString("- just\n- a list\n")))
	assert.NoError(t, restored.Restore(bytes.NewBufferString("")))
	assert.Equal(t, 0, restored.Len())
}

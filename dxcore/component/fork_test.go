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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dirpx.dev/dxcomp/dxcore/component"
	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
)

func TestForkMerge(t *testing.T) {
	s := newScope(t, cinemaRegistry(t))
	c := mustNew(t, s, "Cinema", map[string]any{"id": "c1", "name": "Odeon"})
	m := mustNew(t, s, "Movie", map[string]any{"id": "m1", "title": "Alien", "cinema": c})
	_, err := c.Set("movies", []any{m})
	require.NoError(t, err)

	f, err := m.Fork()
	require.NoError(t, err)
	assert.NotSame(t, m, f)
	assert.Same(t, m, f.ForkOf())
	assert.Same(t, s, f.Scope().Parent())
	assert.True(t, component.Equal(m, f))

	fc := mustGet(t, f, "cinema").(*component.Instance)
	assert.NotSame(t, c, fc)
	assert.Same(t, c, fc.ForkOf())
	assert.Same(t, f, mustGet(t, fc, "movies").([]any)[0], "cycles are preserved in the fork")

	_, err = f.Set("title", "Aliens")
	require.NoError(t, err)
	_, err = fc.Set("name", "Rex")
	require.NoError(t, err)
	_, err = f.Set("cast", []any{map[string]any{"name": "Sigourney Weaver"}})
	require.NoError(t, err)

	assert.Equal(t, "Alien", mustGet(t, m, "title"), "the original is untouched before merging")
	got, ok := s.Resolve("Movie", "m1")
	require.True(t, ok)
	assert.Same(t, m, got)

	require.NoError(t, m.Merge(f))
	assert.Equal(t, "Aliens", mustGet(t, m, "title"))
	assert.Equal(t, "Rex", mustGet(t, c, "name"))
	assert.Same(t, c, mustGet(t, m, "cinema"))

	cast := mustGet(t, m, "cast").([]any)
	require.Len(t, cast, 1)
	actor := cast[0].(*component.Instance)
	assert.Same(t, s, actor.Scope(), "instances created in the fork are adopted")
	assert.Equal(t, "Sigourney Weaver", mustGet(t, actor, "name"))
}

func TestMerge_AdoptsNewEntities(t *testing.T) {
	s := newScope(t, cinemaRegistry(t))
	m := mustNew(t, s, "Movie", map[string]any{"id": "m1", "title": "Alien"})

	f, err := m.Fork()
	require.NoError(t, err)
	_, err = f.Set("cinema", map[string]any{"id": "c1", "name": "Odeon"})
	require.NoError(t, err)
	_, ok := s.Resolve("Cinema", "c1")
	assert.False(t, ok)

	require.NoError(t, m.Merge(f))
	c, ok := s.Resolve("Cinema", "c1")
	require.True(t, ok)
	assert.Same(t, c, mustGet(t, m, "cinema"))
	assert.True(t, c.IsNew())
}

func TestMerge_Errors(t *testing.T) {
	s := newScope(t, cinemaRegistry(t))
	m := mustNew(t, s, "Movie", map[string]any{"id": "m1", "title": "Alien"})
	other := mustNew(t, s, "Movie", map[string]any{"id": "m2", "title": "Aliens"})

	f, err := m.Fork()
	require.NoError(t, err)
	assert.ErrorIs(t, other.Merge(f), component.ErrNotAFork)

	m.Detach()
	var detached *dxerrors.DetachedEntityError
	assert.ErrorAs(t, m.Merge(f), &detached)
	_, err = m.Fork()
	assert.ErrorAs(t, err, &detached)
}

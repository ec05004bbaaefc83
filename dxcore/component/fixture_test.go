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
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"dirpx.dev/dxcomp/dxcore/component"
	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/selector"
)

// cinemaRegistry declares the models used across the package tests:
//
//	User      entity, id primary, email secondary
//	Actor     embedded
//	Cinema    entity holding Movie[] and a User
//	Movie     entity holding a Cinema and Actor[]
//	Premiere  entity extending Movie
func cinemaRegistry(t *testing.T) *model.Registry {
	t.Helper()
	reg := model.NewRegistry()

	user := reg.MustDefine("User", model.AsEntity(), model.WithVersion("1.0.0"))
	user.MustAttribute("id", "string", model.AsPrimaryIdentifier())
	user.MustAttribute("email", "string", model.AsSecondaryIdentifier())
	user.MustAttribute("name", "string?")
	user.MustAttribute("age", "number?", model.WithValidators(model.Min(0)))

	actor := reg.MustDefine("Actor")
	actor.MustAttribute("name", "string")
	actor.MustAttribute("role", "string?")

	cinema := reg.MustDefine("Cinema", model.AsEntity(), model.WithVersion("2.1.0"))
	cinema.MustAttribute("id", "string", model.AsPrimaryIdentifier())
	cinema.MustAttribute("name", "string")
	cinema.MustAttribute("movies", "Movie[]?")
	cinema.MustAttribute("owner", "User?")

	movie := reg.MustDefine("Movie", model.AsEntity(), model.WithVersion("2.1.0"))
	movie.MustAttribute("id", "string", model.AsPrimaryIdentifier())
	movie.MustAttribute("title", "string",
		model.WithValidators(model.NotEmpty()),
		model.WithExposure(model.VerbGet, model.VerbSet),
	)
	movie.MustAttribute("rating", "number", model.WithDefault(0))
	movie.MustAttribute("released", "Date?")
	movie.MustAttribute("cinema", "Cinema?")
	movie.MustAttribute("cast", "Actor[]?")
	movie.MustAttribute("meta", "object?")
	movie.MustMethod("play", model.WithExposure(model.VerbCall))

	premiere := reg.MustDefine("Premiere", model.Extends("Movie"))
	premiere.MustAttribute("venue", "string?")

	require.NoError(t, reg.Check())
	return reg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScope(t *testing.T, reg *model.Registry, opts ...component.Option) *component.Scope {
	t.Helper()
	return component.NewScope(reg, append([]component.Option{component.WithLogger(quietLogger())}, opts...)...)
}

func mustNew(t *testing.T, s *component.Scope, typeName string, values map[string]any) *component.Instance {
	t.Helper()
	inst, err := s.New(typeName, values)
	require.NoError(t, err)
	return inst
}

func mustGet(t *testing.T, inst *component.Instance, name string) any {
	t.Helper()
	v, err := inst.Get(name)
	require.NoError(t, err)
	return v
}

// countingStore counts the fetches reaching the wrapped store.
type countingStore struct {
	component.Store

	mu      sync.Mutex
	fetches []selector.Selector
}

func (c *countingStore) Fetch(ctx context.Context, typeName string, id any, sel selector.Selector) (map[string]any, error) {
	c.mu.Lock()
	c.fetches = append(c.fetches, sel)
	c.mu.Unlock()
	return c.Store.Fetch(ctx, typeName, id, sel)
}

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fetches)
}

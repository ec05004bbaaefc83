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

// Package component implements live component instances and the engine that
// moves them across process boundaries.
//
// A Scope owns the identity map of a graph of instances. Within one scope,
// two instances of the same entity type never share a primary identifier:
// constructing, deserializing and loading all resolve through the identity
// map first and reuse the instance bound there.
//
// Instances are serialized into the plain tagged trees of package wire and
// deserialized back with merge semantics: fields absent from an incoming
// tree are left untouched, and every written field records the origin it
// came from.
package component

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"dirpx.dev/dxcomp/dxcore/config"
	"dirpx.dev/dxcomp/dxcore/ctxlog"
	"dirpx.dev/dxcomp/dxcore/identity"
	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
)

// Scope is the runtime home of a graph of component instances.
type Scope struct {
	registry   *model.Registry
	identities *identity.Map[*Instance]
	cfg        config.Config
	logger     *slog.Logger
	store      Store
	parent     *Scope
}

// Option configures a Scope.
type Option func(*Scope)

// WithConfig replaces the default configuration.
func WithConfig(cfg config.Config) Option {
	return func(s *Scope) { s.cfg = cfg }
}

// WithLogger sets the logger used when a context carries none.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scope) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithStore attaches the persistence collaborator used by Load, Get and
// Save.
func WithStore(store Store) Option {
	return func(s *Scope) { s.store = store }
}

// NewScope returns a scope over the models of reg with an empty identity
// map.
func NewScope(reg *model.Registry, opts ...Option) *Scope {
	s := &Scope{
		registry:   reg,
		identities: identity.New[*Instance](),
		cfg:        config.DefaultConfig(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the model registry of s.
func (s *Scope) Registry() *model.Registry { return s.registry }

// Config returns the configuration of s.
func (s *Scope) Config() config.Config { return s.cfg }

// Logger returns the logger of s.
func (s *Scope) Logger() *slog.Logger { return s.logger }

// Parent returns the scope s was forked from, or nil.
func (s *Scope) Parent() *Scope { return s.parent }

// Resolve returns the live instance of typeName whose primary identifier
// is id. Subtypes are not searched: every concrete type has its own table.
// An id that does not fit the identifier type resolves to nothing.
func (s *Scope) Resolve(typeName string, id any) (*Instance, bool) {
	m, err := s.registry.Lookup(typeName)
	if err != nil {
		return nil, false
	}
	pid := m.PrimaryIdentifier()
	if pid == nil {
		return nil, false
	}
	return s.resolveKey(m, pid, id)
}

// ResolveSecondary returns the live instance of typeName whose secondary
// identifier field holds value.
func (s *Scope) ResolveSecondary(typeName, field string, value any) (*Instance, bool) {
	m, err := s.registry.Lookup(typeName)
	if err != nil {
		return nil, false
	}
	p, err := m.Lookup(field)
	if err != nil || !p.IsSecondaryIdentifier() {
		return nil, false
	}
	return s.resolveKey(m, p, value)
}

func (s *Scope) resolveKey(m *model.Model, p *model.Property, value any) (*Instance, bool) {
	v := valuetype.Normalize(value)
	if valuetype.Check(p.Name(), v, p.ValueType(), nil) != nil {
		return nil, false
	}
	return s.identities.Resolve(m.Name(), p.Name(), v)
}

// Len returns the number of live instances of typeName registered in s.
func (s *Scope) Len(typeName string) int {
	return s.identities.Len(typeName)
}

// fork returns an empty child scope sharing the registry, configuration,
// logger and store of s.
func (s *Scope) fork() *Scope {
	return &Scope{
		registry:   s.registry,
		identities: identity.New[*Instance](),
		cfg:        s.cfg,
		logger:     s.logger,
		store:      s.store,
		parent:     s,
	}
}

// log returns the logger carried by ctx, falling back to the scope logger.
func (s *Scope) log(ctx context.Context) *slog.Logger {
	if l := ctxlog.FromContext(ctx); l != slog.Default() {
		return l
	}
	return s.logger
}

// newIdentifier returns a fresh primary identifier for p, or nil when p is
// not a string attribute or generation is disabled.
func (s *Scope) newIdentifier(p *model.Property) any {
	if !s.cfg.GenerateIdentifiers || p.ValueType().Name() != "string" {
		return nil
	}
	return ulid.Make().String()
}

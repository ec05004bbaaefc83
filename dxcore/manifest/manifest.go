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

// Package manifest loads model definitions from HCL files.
//
// A manifest declares models with their attributes and methods:
//
//	model "Movie" {
//	  entity  = true
//	  extends = "Media"
//	  version = "1.2.0"
//
//	  attribute "id" {
//	    type       = "string"
//	    identifier = "primary"
//	  }
//
//	  attribute "title" {
//	    type       = "string"
//	    default    = ""
//	    validators = ["notEmpty()", "maxLength(200)"]
//	    expose     = ["get", "set"]
//	  }
//
//	  method "play" {
//	    expose = ["call"]
//	  }
//	}
//
// Models may be spread over several files and declared in any order:
// parents are always defined before the models extending them. Every
// problem found is reported, prefixed with the file that declared the
// model, and the registry is checked once all models are defined.
package manifest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"dirpx.dev/rxmerr"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"dirpx.dev/dxcomp/dxcore/ctxlog"
	dxerrors "dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model"
	"dirpx.dev/dxcomp/dxcore/model/valuetype"
)

// Extension is the file extension LoadDir looks for.
const Extension = ".hcl"

type fileBody struct {
	Models []modelBlock `hcl:"model,block"`
}

type modelBlock struct {
	Name       string           `hcl:"name,label"`
	Entity     *bool            `hcl:"entity,optional"`
	Extends    *string          `hcl:"extends,optional"`
	Version    *string          `hcl:"version,optional"`
	Attributes []attributeBlock `hcl:"attribute,block"`
	Methods    []methodBlock    `hcl:"method,block"`
}

type attributeBlock struct {
	Name       string         `hcl:"name,label"`
	Type       string         `hcl:"type"`
	Identifier *string        `hcl:"identifier,optional"`
	Default    hcl.Expression `hcl:"default,optional"`
	Validators []string       `hcl:"validators,optional"`
	Expose     []string       `hcl:"expose,optional"`
}

type methodBlock struct {
	Name   string   `hcl:"name,label"`
	Expose []string `hcl:"expose,optional"`
}

// declaration is a model block together with the file it came from.
type declaration struct {
	file  string
	block modelBlock
}

// Parse defines the models declared in src into reg. filename is used in
// diagnostics only.
func Parse(ctx context.Context, reg *model.Registry, src []byte, filename string) error {
	p := hclparse.NewParser()
	f, diags := p.ParseHCL(src, filename)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse manifest %s: %w", filename, diags)
	}
	decls, err := decode(f, filename)
	if err != nil {
		return err
	}
	return define(ctx, reg, decls)
}

// LoadFiles defines the models declared in the given files into reg.
func LoadFiles(ctx context.Context, reg *model.Registry, paths ...string) error {
	logger := ctxlog.FromContext(ctx)
	p := hclparse.NewParser()
	c := rxmerr.NewCollector()

	var decls []declaration
	for _, path := range paths {
		logger.Debug("decoding manifest", "path", path)
		f, diags := p.ParseHCLFile(path)
		if diags.HasErrors() {
			c.Append(fmt.Errorf("failed to parse manifest %s: %w", path, diags))
			continue
		}
		ds, err := decode(f, path)
		if err != nil {
			c.Append(err)
			continue
		}
		decls = append(decls, ds...)
	}
	if err := c.Err(); err != nil {
		return err
	}
	return define(ctx, reg, decls)
}

// LoadDir defines the models declared in the manifest files of dir. Files
// are read in lexical order; subdirectories are ignored.
func LoadDir(ctx context.Context, reg *model.Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read manifest directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == Extension {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return LoadFiles(ctx, reg, paths...)
}

func decode(f *hcl.File, filename string) ([]declaration, error) {
	var body fileBody
	if diags := gohcl.DecodeBody(f.Body, nil, &body); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", filename, diags)
	}
	out := make([]declaration, len(body.Models))
	for i, b := range body.Models {
		out[i] = declaration{file: filename, block: b}
	}
	return out, nil
}

// define registers decls into reg, parents first.
func define(ctx context.Context, reg *model.Registry, decls []declaration) error {
	logger := ctxlog.FromContext(ctx)
	c := rxmerr.NewCollector()

	byName := make(map[string]declaration, len(decls))
	for _, d := range decls {
		if prev, ok := byName[d.block.Name]; ok {
			c.Append(fmt.Errorf("%s: model %q already declared in %s", d.file, d.block.Name, prev.file))
			continue
		}
		byName[d.block.Name] = d
	}
	if err := c.Err(); err != nil {
		return err
	}

	order, err := parentsFirst(decls, byName)
	if err != nil {
		return err
	}
	for _, d := range order {
		if err := defineModel(reg, d.block); err != nil {
			c.Append(fmt.Errorf("%s: %w", d.file, err))
		}
	}
	if err := c.Err(); err != nil {
		return err
	}
	if err := reg.Check(); err != nil {
		return err
	}
	logger.Debug("manifest models defined", "models", len(order))
	return nil
}

// parentsFirst orders decls so that every model follows the model it
// extends, keeping declaration order otherwise.
func parentsFirst(decls []declaration, byName map[string]declaration) ([]declaration, error) {
	const (
		visiting = 1
		done     = 2
	)
	state := make(map[string]int, len(decls))
	out := make([]declaration, 0, len(decls))

	var visit func(d declaration) error
	visit = func(d declaration) error {
		switch state[d.block.Name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%s: model %q extends itself", d.file, d.block.Name)
		}
		state[d.block.Name] = visiting
		if d.block.Extends != nil {
			if parent, ok := byName[*d.block.Extends]; ok {
				if err := visit(parent); err != nil {
					return err
				}
			}
		}
		state[d.block.Name] = done
		out = append(out, d)
		return nil
	}

	for _, d := range decls {
		if err := visit(d); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func defineModel(reg *model.Registry, b modelBlock) error {
	var opts []model.DefineOption
	if b.Extends != nil {
		opts = append(opts, model.Extends(*b.Extends))
	}
	if b.Entity != nil && *b.Entity {
		opts = append(opts, model.AsEntity())
	}
	if b.Version != nil {
		opts = append(opts, model.WithVersion(*b.Version))
	}
	m, err := reg.Define(b.Name, opts...)
	if err != nil {
		return err
	}

	c := rxmerr.NewCollector()
	for _, a := range b.Attributes {
		if err := declareAttribute(m, a); err != nil {
			c.Append(err)
		}
	}
	for _, mb := range b.Methods {
		exposure, err := model.ParseExposure(mb.Expose)
		if err != nil {
			c.Append(err)
			continue
		}
		if _, err := m.Method(mb.Name, model.WithExposure(exposure.Verbs()...)); err != nil {
			c.Append(err)
		}
	}
	return c.Err()
}

func declareAttribute(m *model.Model, a attributeBlock) error {
	vt, err := valuetype.Parse(a.Type)
	if err != nil {
		return err
	}
	opts := []model.PropertyOption{model.WithType(vt)}

	if a.Identifier != nil {
		role, err := model.ParseIdentifierRole(*a.Identifier)
		if err != nil {
			return err
		}
		opts = append(opts, model.WithIdentifierRole(role))
	}

	if a.Default != nil {
		val, diags := a.Default.Value(nil)
		if diags.HasErrors() {
			return &dxerrors.DefinitionError{Model: m.Name(), Property: a.Name, Reason: "invalid default: " + diags.Error()}
		}
		if !val.IsNull() {
			plain, err := valuetype.FromCty(val)
			if err != nil {
				return err
			}
			def, err := valuetype.Coerce(a.Name, plain, vt)
			if err != nil {
				return &dxerrors.DefinitionError{Model: m.Name(), Property: a.Name, Reason: "invalid default: " + err.Error()}
			}
			opts = append(opts, model.WithDefault(def))
		}
	}

	if len(a.Validators) > 0 {
		vs := make([]model.Validator, 0, len(a.Validators))
		for _, expr := range a.Validators {
			v, err := model.ParseValidator(expr)
			if err != nil {
				return err
			}
			vs = append(vs, v)
		}
		opts = append(opts, model.WithValidators(vs...))
	}

	if len(a.Expose) > 0 {
		exposure, err := model.ParseExposure(a.Expose)
		if err != nil {
			return err
		}
		opts = append(opts, model.WithExposure(exposure.Verbs()...))
	}

	_, err = m.Declare(a.Name, model.KindAttribute, opts...)
	return err
}

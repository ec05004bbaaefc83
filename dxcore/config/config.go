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

// Package config holds the settings of a component scope.
//
// A Config is built from DefaultConfig and functional options, or loaded
// from YAML:
//
//	defaultSource: local
//	generateIdentifiers: true
//	applyDefaults: true
//	maxDepth: 256
//	logLevel: debug
//	logFormat: json
package config

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"gopkg.in/yaml.v3"

	"dirpx.dev/dxcomp/dxcore/errors"
	"dirpx.dev/dxcomp/dxcore/model"
)

const (
	// DefaultSource is the provenance recorded by deserialization calls
	// that do not name their origin.
	DefaultSource = model.SourceLocal
	// DefaultGenerateIdentifiers enables ULID primary identifiers for new
	// entities constructed without one.
	DefaultGenerateIdentifiers = true
	// DefaultApplyDefaults applies declared attribute defaults on
	// construction.
	DefaultApplyDefaults = true
	// DefaultMaxDepth bounds the nesting of deserialized trees.
	DefaultMaxDepth = 256
	// DefaultLogLevel is the level of loggers built by NewLogger.
	DefaultLogLevel = "info"
	// DefaultLogFormat is the handler format of loggers built by NewLogger.
	DefaultLogFormat = "text"
)

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"text", "json"}
)

// Config holds the settings of a component scope.
type Config struct {
	DefaultSource       model.Source `json:"defaultSource" yaml:"defaultSource"`
	GenerateIdentifiers bool         `json:"generateIdentifiers" yaml:"generateIdentifiers"`
	ApplyDefaults       bool         `json:"applyDefaults" yaml:"applyDefaults"`
	MaxDepth            int          `json:"maxDepth" yaml:"maxDepth"`
	LogLevel            string       `json:"logLevel" yaml:"logLevel"`
	LogFormat           string       `json:"logFormat" yaml:"logFormat"`
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		DefaultSource:       DefaultSource,
		GenerateIdentifiers: DefaultGenerateIdentifiers,
		ApplyDefaults:       DefaultApplyDefaults,
		MaxDepth:            DefaultMaxDepth,
		LogLevel:            DefaultLogLevel,
		LogFormat:           DefaultLogFormat,
	}
}

// NewConfig returns DefaultConfig modified by opts.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	return cfg
}

// Option modifies a Config.
type Option func(*Config)

// WithDefaultSource sets the provenance recorded when a caller names none.
func WithDefaultSource(s model.Source) Option {
	return func(c *Config) { c.DefaultSource = s }
}

// WithGenerateIdentifiers toggles ULID generation for new entities.
func WithGenerateIdentifiers(on bool) Option {
	return func(c *Config) { c.GenerateIdentifiers = on }
}

// WithApplyDefaults toggles declared defaults on construction.
func WithApplyDefaults(on bool) Option {
	return func(c *Config) { c.ApplyDefaults = on }
}

// WithMaxDepth bounds the nesting of deserialized trees. Non-positive
// values select DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(c *Config) {
		if n <= 0 {
			c.MaxDepth = DefaultMaxDepth
			return
		}
		c.MaxDepth = n
	}
}

// WithLogging sets the level and format used by NewLogger.
func WithLogging(level, format string) Option {
	return func(c *Config) {
		c.LogLevel = level
		c.LogFormat = format
	}
}

// Validate reports every invalid setting as one *errors.ValidationError.
func (c Config) Validate() error {
	var failures []errors.ValidationFailure
	if !c.DefaultSource.Valid() || c.DefaultSource == model.SourceUnset {
		failures = append(failures, errors.ValidationFailure{Validator: "source()", Path: "defaultSource"})
	}
	if c.MaxDepth <= 0 {
		failures = append(failures, errors.ValidationFailure{Validator: "min(1)", Path: "maxDepth"})
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		failures = append(failures, errors.ValidationFailure{Validator: "oneOf(debug,info,warn,error)", Path: "logLevel"})
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		failures = append(failures, errors.ValidationFailure{Validator: "oneOf(text,json)", Path: "logFormat"})
	}
	if len(failures) > 0 {
		return &errors.ValidationError{Type: "Config", Failures: failures}
	}
	return nil
}

// Load reads a YAML document over DefaultConfig and validates the result.
// Unknown keys are rejected.
func Load(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// NewLogger builds a logger writing to w with the level and format of cfg.
// It does not touch the global logger.
func NewLogger(cfg Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	return slog.New(handler)
}

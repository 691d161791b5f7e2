// Copyright (C) 2026 Plexus Contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config provides configuration loading for plexus stores.
//
// Configuration is plain YAML with embedded defaults; Load merges a file
// over the defaults so partial files stay valid.
//
// Thread Safety:
//
//	Config values are plain data; copy them freely. Load is safe for
//	concurrent use.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileSize is the maximum allowed config file size (1MB).
// Prevents memory issues from large or malformed files.
const MaxConfigFileSize = 1024 * 1024

// Duration is a time.Duration that decodes from YAML strings like "5m".
type Duration time.Duration

// UnmarshalYAML decodes "5m"-style strings and bare integers (seconds).
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int64
	if err := node.Decode(&secs); err != nil {
		return fmt.Errorf("config: invalid duration value")
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// MarshalYAML encodes the duration in time.Duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

//go:embed default.yaml
var defaultYAML []byte

// Limits bounds one store instance.
type Limits struct {
	// MaxNodes is the maximum number of nodes the store can hold.
	MaxNodes int `yaml:"max_nodes"`

	// MaxEdges is the maximum number of edges the store can hold.
	MaxEdges int `yaml:"max_edges"`
}

// Query bounds query and traversal parameters.
type Query struct {
	// DefaultLimit is the result cap applied when the caller sets none.
	DefaultLimit int `yaml:"default_limit"`

	// MaxLimit is the hard result cap; caller limits clamp to it.
	MaxLimit int `yaml:"max_limit"`

	// DefaultMaxDepth is the traversal depth used when the caller sets
	// none.
	DefaultMaxDepth int `yaml:"default_max_depth"`

	// MaxDepth is the hard traversal depth cap.
	MaxDepth int `yaml:"max_depth"`
}

// Parallel tunes algorithm fan-out.
type Parallel struct {
	// Threshold is the minimum traversal frontier size that triggers
	// parallel processing. Frontiers at or below it run sequentially so
	// parallelism overhead never penalizes small graphs.
	Threshold int `yaml:"threshold"`

	// MaxWorkers caps worker goroutines regardless of CPU count.
	MaxWorkers int `yaml:"max_workers"`
}

// References controls edge referential integrity.
type References struct {
	// CheckOnInsert rejects edges whose source or target node id does
	// not exist in the store. Off by default: the permissive behavior
	// leaves integrity to the caller.
	CheckOnInsert bool `yaml:"check_on_insert"`
}

// Persistence configures the optional write-through persister.
type Persistence struct {
	// Enabled turns write-through persistence on.
	Enabled bool `yaml:"enabled"`

	// Path is the directory for the embedded database files.
	Path string `yaml:"path"`

	// InMemory runs the persister without disk files (testing).
	InMemory bool `yaml:"in_memory"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `yaml:"sync_writes"`

	// GCInterval is how often value-log garbage collection runs.
	// Zero disables GC.
	GCInterval Duration `yaml:"gc_interval"`

	// GCDiscardRatio is the minimum discardable ratio before GC runs.
	GCDiscardRatio float64 `yaml:"gc_discard_ratio"`
}

// Config is the full store configuration.
type Config struct {
	Limits      Limits      `yaml:"limits"`
	Query       Query       `yaml:"query"`
	Parallel    Parallel    `yaml:"parallel"`
	References  References  `yaml:"references"`
	Persistence Persistence `yaml:"persistence"`
}

// Default returns the embedded default configuration.
func Default() Config {
	var cfg Config
	// The embedded file is validated by the package tests; a decode
	// failure here is a build defect, not a runtime condition.
	if err := yaml.Unmarshal(defaultYAML, &cfg); err != nil {
		panic(fmt.Sprintf("config: embedded default.yaml invalid: %v", err))
	}
	return cfg
}

// Load reads a YAML file and merges it over the defaults.
//
// Description:
//
//	Missing keys keep their default values, so a file may set only what
//	it cares about. Files above MaxConfigFileSize are rejected. Unknown
//	keys fail decoding (strict mode) to catch typos early.
//
// Inputs:
//
//	path - YAML file path.
//
// Outputs:
//
//	Config - Merged configuration.
//	error - Non-nil on read, size, or decode failure.
func Load(path string) (Config, error) {
	cfg := Default()

	info, err := os.Stat(path)
	if err != nil {
		return cfg, fmt.Errorf("config: stat %s: %w", path, err)
	}
	if info.Size() > MaxConfigFileSize {
		return cfg, fmt.Errorf("config: %s exceeds %d bytes", path, MaxConfigFileSize)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %s: %w", path, err)
	}

	slog.Debug("config loaded",
		slog.String("path", path),
		slog.Int("max_nodes", cfg.Limits.MaxNodes),
		slog.Int("max_edges", cfg.Limits.MaxEdges),
		slog.Bool("persistence", cfg.Persistence.Enabled),
	)

	return cfg, nil
}

// Validate normalizes out-of-range values back to their defaults, the
// same forgiving policy queries apply to their own options.
func (c *Config) Validate() {
	def := Default()
	if c.Limits.MaxNodes <= 0 {
		c.Limits.MaxNodes = def.Limits.MaxNodes
	}
	if c.Limits.MaxEdges <= 0 {
		c.Limits.MaxEdges = def.Limits.MaxEdges
	}
	if c.Query.DefaultLimit <= 0 {
		c.Query.DefaultLimit = def.Query.DefaultLimit
	}
	if c.Query.MaxLimit <= 0 {
		c.Query.MaxLimit = def.Query.MaxLimit
	}
	if c.Query.DefaultLimit > c.Query.MaxLimit {
		c.Query.DefaultLimit = c.Query.MaxLimit
	}
	if c.Query.DefaultMaxDepth <= 0 {
		c.Query.DefaultMaxDepth = def.Query.DefaultMaxDepth
	}
	if c.Query.MaxDepth <= 0 {
		c.Query.MaxDepth = def.Query.MaxDepth
	}
	if c.Parallel.Threshold <= 0 {
		c.Parallel.Threshold = def.Parallel.Threshold
	}
	if c.Parallel.MaxWorkers <= 0 {
		c.Parallel.MaxWorkers = def.Parallel.MaxWorkers
	}
	if c.Persistence.GCDiscardRatio <= 0 || c.Persistence.GCDiscardRatio >= 1 {
		c.Persistence.GCDiscardRatio = def.Persistence.GCDiscardRatio
	}
}

// Package config loads lumen.toml, the optional project configuration the
// CLI consults for module search paths, trace-on-start and language-server
// settings, grounded on the teacher's manifest.Load (maggie.toml).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config is the parsed shape of lumen.toml. Every field has a usable zero
// value, so a missing file is not an error (cmd/lumen falls back to
// Default()).
type Config struct {
	Module ModuleConfig `toml:"module"`
	Trace  TraceConfig  `toml:"trace"`
	Server ServerConfig `toml:"server"`

	// Dir is the directory containing lumen.toml, set at load time.
	Dir string `toml:"-"`
}

// ModuleConfig configures `import` resolution (§4.3 Export/Import).
type ModuleConfig struct {
	// SearchPaths are directories searched, in order, for a module named
	// by an `import "name"` statement.
	SearchPaths []string `toml:"search-paths"`
}

// TraceConfig configures the per-instruction trace log (§6).
type TraceConfig struct {
	OnStart bool `toml:"on-start"`
}

// ServerConfig configures the lspserver language-server mode.
type ServerConfig struct {
	Port int `toml:"port"`
}

// Default returns the configuration used when no lumen.toml is found.
func Default() *Config {
	return &Config{
		Module: ModuleConfig{SearchPaths: []string{"."}},
		Server: ServerConfig{Port: 0},
	}
}

// Load parses lumen.toml from dir, falling back to Default() if the file
// does not exist.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "lumen.toml")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	cfg.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if len(cfg.Module.SearchPaths) == 0 {
		cfg.Module.SearchPaths = []string{"."}
	}
	return cfg, nil
}

// FindAndLoad walks up from startDir looking for lumen.toml, the same
// upward-search convention as the teacher's manifest.FindAndLoad.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}
	for {
		path := filepath.Join(dir, "lumen.toml")
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// SearchPathAbs returns the module search paths resolved against Dir.
func (c *Config) SearchPathAbs() []string {
	base := c.Dir
	if base == "" {
		base = "."
	}
	paths := make([]string, len(c.Module.SearchPaths))
	for i, p := range c.Module.SearchPaths {
		if filepath.IsAbs(p) {
			paths[i] = p
		} else {
			paths[i] = filepath.Join(base, p)
		}
	}
	return paths
}

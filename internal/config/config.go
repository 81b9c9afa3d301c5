// Package config loads the YAML configuration used by the CLI and server.
package config

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// Config is the root configuration document.
type Config struct {
	Log        Log        `yaml:"log"`
	Sources    []Source   `yaml:"sources"`
	Introspect Introspect `yaml:"introspect"`
	Store      Store      `yaml:"store"`
	Server     Server     `yaml:"server"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Source is one named database to introspect.
type Source struct {
	Name   string       `yaml:"name"`
	Engine model.Engine `yaml:"engine"`
	DSN    string       `yaml:"dsn"`
}

// Introspect tunes extraction runs.
type Introspect struct {
	Concurrency  int           `yaml:"concurrency"`
	LayerTimeout time.Duration `yaml:"layer_timeout"`
	Schemas      SchemaFilter  `yaml:"schemas"`
	Layers       []string      `yaml:"layers"` // empty = all
}

// SchemaFilter restricts which containers are extracted.
type SchemaFilter struct {
	Allow []string `yaml:"allow"`
	Deny  []string `yaml:"deny"`
}

// Store configures the snapshot object store. A zero Endpoint disables it.
type Store struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Server configures the HTTP API.
type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log:    Log{Level: "info", Format: "json"},
		Server: Server{Addr: ":8080"},
		Introspect: Introspect{
			Concurrency:  4,
			LayerTimeout: 2 * time.Minute,
		},
	}
}

// Load reads and validates the YAML file at path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrKindInvalidInput, err, "cannot read config %s", path)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errs.Wrapf(errs.ErrKindInvalidInput, err, "cannot parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.Sources))
	for i, s := range c.Sources {
		if s.Name == "" {
			return errs.Newf(errs.ErrKindInvalidInput, "sources[%d]: name is required", i)
		}
		if names[s.Name] {
			return errs.Newf(errs.ErrKindInvalidInput, "duplicate source name %q", s.Name)
		}
		names[s.Name] = true
		if !s.Engine.Valid() {
			return errs.Newf(errs.ErrKindInvalidInput, "source %q: unknown engine %q", s.Name, s.Engine)
		}
		if s.DSN == "" {
			return errs.Newf(errs.ErrKindInvalidInput, "source %q: dsn is required", s.Name)
		}
	}
	for _, name := range c.Introspect.Layers {
		if _, ok := model.ParseLayer(name); !ok {
			return errs.Newf(errs.ErrKindInvalidInput, "unknown layer %q", name)
		}
	}
	return nil
}

// Source returns the named source.
func (c *Config) Source(name string) (*Source, error) {
	for i := range c.Sources {
		if c.Sources[i].Name == name {
			return &c.Sources[i], nil
		}
	}
	return nil, errs.Newf(errs.ErrKindInvalidInput, "no source named %q", name)
}

// LayerSet converts the configured layer names into the option map form.
// A nil result means every layer is enabled.
func (c *Config) LayerSet() (map[model.Layer]bool, error) {
	if len(c.Introspect.Layers) == 0 {
		return nil, nil
	}
	set := make(map[model.Layer]bool, len(c.Introspect.Layers))
	for _, name := range c.Introspect.Layers {
		l, ok := model.ParseLayer(name)
		if !ok {
			return nil, fmt.Errorf("unknown layer %q", name)
		}
		set[l] = true
	}
	return set, nil
}

package introspect

import (
	"time"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/logger"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

const (
	defaultConcurrency  = 4
	defaultLayerTimeout = 2 * time.Minute
)

// Options tunes one introspection run. The zero value extracts every layer
// of every schema with default concurrency and timeouts.
type Options struct {
	// AllowSchemas, when non-empty, restricts the run to the named schemas.
	AllowSchemas []string

	// DenySchemas excludes the named schemas after the allow filter.
	DenySchemas []string

	// Layers, when non-nil, enables only the layers mapped to true.
	// Containers is always extracted; nothing else can run without it.
	Layers map[model.Layer]bool

	// Concurrency caps the number of schemas extracted in parallel within
	// one layer. Layers themselves always run strictly in order.
	Concurrency int

	// LayerTimeout bounds each layer across all schemas.
	LayerTimeout time.Duration

	// Log receives per-layer progress. Defaults to the standard JSON logger.
	Log *logger.Logger
}

func (o *Options) normalize() {
	if o.Concurrency <= 0 {
		o.Concurrency = defaultConcurrency
	}
	if o.LayerTimeout <= 0 {
		o.LayerTimeout = defaultLayerTimeout
	}
	if o.Log == nil {
		o.Log = logger.New(nil)
	}
}

func (o *Options) layerEnabled(l model.Layer) bool {
	if l == model.LayerContainers {
		return true
	}
	if o.Layers == nil {
		return true
	}
	return o.Layers[l]
}

func (o *Options) schemaAllowed(name string) bool {
	if len(o.AllowSchemas) > 0 && !contains(o.AllowSchemas, name) {
		return false
	}
	return !contains(o.DenySchemas, name)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

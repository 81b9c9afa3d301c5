// Package dialect defines the contract every engine adapter implements: six
// read-only extraction operations over a caller-owned connection, one per
// layer, plus static capability metadata so the orchestrator can skip what an
// engine cannot do instead of calling and failing.
//
// Adapters translate engine catalogs (information_schema, sys.*, pg_catalog,
// sqlite_master) into model fragments. They never open or close the
// connection and never issue DDL or DML.
package dialect

import (
	"context"
	"sort"
	"sync"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// Querier is the minimal capability an adapter needs from the surrounding
// tooling: execute a read-only query and stream rows. Pooling, credentials,
// and transport stay with the connection provider.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
}

// Rows is an abstraction over a streamed result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row. Returns false when exhausted or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Capabilities is the static metadata an adapter declares about its engine.
type Capabilities struct {
	// Layers holds the extraction layers the engine has any analog for.
	// The orchestrator marks absent layers Unsupported without calling.
	Layers map[model.Layer]bool

	// Missing lists sub-features the engine lacks inside an otherwise
	// supported layer (e.g. SQLite: Logic is supported for views and
	// triggers but "procedures" and "functions" are missing).
	Missing map[model.Layer][]string

	// ExoticFeatures names the engine-specific extras the Exotics layer
	// produces ("events", "synonyms", "extensions").
	ExoticFeatures []string

	// Casing documents the adapter's identifier casing policy. Names are
	// compared byte-wise after this normalization.
	Casing string
}

// Supports reports whether the engine has any analog for layer l.
func (c Capabilities) Supports(l model.Layer) bool {
	return c.Layers[l]
}

// Adapter is one engine-specific translator from native catalog metadata to
// the canonical model. All operations are read-only; the schema argument
// scopes the call to one container discovered by Containers.
type Adapter interface {
	Engine() model.Engine
	Capabilities() Capabilities

	// Containers discovers the schema names. Every other layer is scoped to
	// one of the returned names.
	Containers(ctx context.Context, q Querier) ([]string, error)

	// Dependencies extracts user-defined types and sequences.
	Dependencies(ctx context.Context, q Querier, schema string) (*model.Fragment, error)

	// Structure extracts tables, columns, keys, and check constraints.
	Structure(ctx context.Context, q Querier, schema string) (*model.Fragment, error)

	// Indexes extracts secondary indexes; it runs after Structure because
	// index keys reference table columns.
	Indexes(ctx context.Context, q Querier, schema string) (*model.Fragment, error)

	// Logic extracts views, procedures, functions, and triggers.
	Logic(ctx context.Context, q Querier, schema string) (*model.Fragment, error)

	// Exotics extracts engine-specific extras declared in ExoticFeatures.
	Exotics(ctx context.Context, q Querier, schema string) (*model.Fragment, error)
}

// Extract dispatches to the adapter operation for layer l.
// LayerContainers has a different shape and is driven directly.
func Extract(ctx context.Context, a Adapter, l model.Layer, q Querier, schema string) (*model.Fragment, error) {
	switch l {
	case model.LayerDependencies:
		return a.Dependencies(ctx, q, schema)
	case model.LayerStructure:
		return a.Structure(ctx, q, schema)
	case model.LayerIndexes:
		return a.Indexes(ctx, q, schema)
	case model.LayerLogic:
		return a.Logic(ctx, q, schema)
	case model.LayerExotics:
		return a.Exotics(ctx, q, schema)
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "layer %s has no fragment operation", l)
	}
}

// --- registry ---

var (
	mu       sync.RWMutex
	registry = map[model.Engine]Adapter{}
)

// Register adds an adapter to the registry. Engine packages call it from
// init(); importing the package is enough to make the engine available.
func Register(a Adapter) {
	mu.Lock()
	defer mu.Unlock()
	registry[a.Engine()] = a
}

// For returns the adapter registered for the given engine.
func For(engine model.Engine) (Adapter, error) {
	mu.RLock()
	defer mu.RUnlock()
	a, ok := registry[engine]
	if !ok {
		return nil, errs.Newf(errs.ErrKindInvalidInput, "no adapter registered for engine %q", engine)
	}
	return a, nil
}

// Engines returns the registered engine names, sorted.
func Engines() []model.Engine {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]model.Engine, 0, len(registry))
	for e := range registry {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

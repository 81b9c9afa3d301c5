// Package introspect drives a full schema capture: it resolves the dialect
// adapter for the engine, runs the six extraction layers strictly in order,
// fans out across schemas within each layer, and seals the result into an
// immutable Snapshot with a complete per-layer manifest.
//
// A layer failure never aborts the run (Containers excepted, since every
// later layer is scoped to its output). Cancellation stops cleanly between
// operations: finished layers keep their results, remaining layers are marked
// cancelled, and the partial snapshot is still returned.
package introspect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/canon"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// Introspect captures the full schema of the database behind q.
//
// The returned error is non-nil only when nothing could be captured at all
// (unknown engine, Containers failure). Every other outcome, including
// cancellation mid-run, returns a best-effort Snapshot whose Manifest
// accounts for each layer.
func Introspect(ctx context.Context, q dialect.Querier, engine model.Engine, opts Options) (*model.Snapshot, error) {
	opts.normalize()

	adapter, err := dialect.For(engine)
	if err != nil {
		return nil, err
	}
	caps := adapter.Capabilities()
	log := opts.Log.With().Str("engine", string(engine)).Logger()

	b := model.NewBuilder(engine)
	var man model.Manifest

	// Containers first: every later layer is scoped to its output, so a
	// failure here is the one case with nothing to return.
	schemas, err := runContainers(ctx, adapter, q, &opts, b)
	if err != nil {
		if errs.IsCancelled(err) || ctx.Err() != nil {
			man.Set(model.LayerContainers, model.LayerResult{Status: model.StatusCancelled})
			markRemaining(&man, model.LayerContainers)
			man.Partial = true
			return b.Snapshot(man), nil
		}
		man.Set(model.LayerContainers, model.LayerResult{
			Status: model.StatusFailed,
			Reason: err.Error(),
		})
		return nil, err
	}
	man.Set(model.LayerContainers, model.LayerResult{Status: model.StatusSucceeded})
	log.Infof("discovered %d schemas", len(schemas))

	rest := []model.Layer{
		model.LayerDependencies,
		model.LayerStructure,
		model.LayerIndexes,
		model.LayerLogic,
		model.LayerExotics,
	}
	for _, l := range rest {
		if ctx.Err() != nil {
			markRemaining(&man, l-1)
			man.Partial = true
			break
		}
		if !opts.layerEnabled(l) {
			man.Set(l, model.LayerResult{Status: model.StatusSkipped})
			continue
		}
		if !caps.Supports(l) {
			man.Set(l, model.LayerResult{
				Status:  model.StatusUnsupported,
				Reason:  fmt.Sprintf("%s has no %s analog", engine, l),
				Missing: caps.Missing[l],
			})
			continue
		}

		res := runLayer(ctx, adapter, l, q, schemas, &opts, b)
		res.Missing = caps.Missing[l]
		man.Set(l, res)
		log.With().Str("layer", l.String()).Str("status", res.Status.String()).Logger().
			Info("layer finished")

		if res.Status == model.StatusCancelled {
			markRemaining(&man, l)
			man.Partial = true
			break
		}
	}

	resolveForeignKeys(b, &man)
	assignTypes(b, engine)
	return b.Snapshot(man), nil
}

func runContainers(ctx context.Context, a dialect.Adapter, q dialect.Querier, opts *Options, b *model.Builder) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.LayerTimeout)
	defer cancel()

	names, err := a.Containers(ctx, q)
	if err != nil {
		return nil, err
	}
	var kept []string
	for _, n := range names {
		if !opts.schemaAllowed(n) {
			continue
		}
		if err := b.AddSchema(n); err != nil {
			return nil, err
		}
		kept = append(kept, n)
	}
	return kept, nil
}

// runLayer fans the layer out across schemas, bounded by opts.Concurrency,
// and folds the per-schema outcomes into one manifest entry.
func runLayer(ctx context.Context, a dialect.Adapter, l model.Layer, q dialect.Querier,
	schemas []string, opts *Options, b *model.Builder) model.LayerResult {

	layerCtx, cancel := context.WithTimeout(ctx, opts.LayerTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		skipped []model.Skip
		failed  []string
	)
	g := new(errgroup.Group)
	g.SetLimit(opts.Concurrency)
	for _, schema := range schemas {
		g.Go(func() error {
			frag, err := dialect.Extract(layerCtx, a, l, q, schema)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if errs.IsCancelled(err) || layerCtx.Err() != nil {
					return err
				}
				failed = append(failed, fmt.Sprintf("schema %s: %v", schema, err))
				return nil
			}
			skipped = append(skipped, b.Merge(schema, frag)...)
			return nil
		})
	}
	err := g.Wait()

	if ctx.Err() != nil || (err != nil && errs.IsCancelled(err)) {
		return model.LayerResult{Status: model.StatusCancelled}
	}
	if layerCtx.Err() == context.DeadlineExceeded {
		return model.LayerResult{
			Status: model.StatusFailed,
			Reason: fmt.Sprintf("layer timed out after %s", opts.LayerTimeout),
		}
	}
	switch {
	case len(failed) == len(schemas) && len(schemas) > 0:
		return model.LayerResult{Status: model.StatusFailed, Reason: failed[0]}
	case len(failed) > 0:
		for _, f := range failed {
			skipped = append(skipped, model.Skip{Object: f, Reason: "layer failed for schema"})
		}
		return model.LayerResult{Status: model.StatusPartial, Skipped: skipped}
	case len(skipped) > 0:
		return model.LayerResult{Status: model.StatusPartial, Skipped: skipped}
	default:
		return model.LayerResult{Status: model.StatusSucceeded}
	}
}

// markRemaining marks every layer after last as cancelled, leaving finished
// layers untouched.
func markRemaining(man *model.Manifest, last model.Layer) {
	for l := last + 1; l < model.NumLayers; l++ {
		man.Set(l, model.LayerResult{Status: model.StatusCancelled})
	}
}

// resolveForeignKeys walks every FK after all structure is in place. A target
// outside the introspected scope is recorded as unresolved, never dropped.
func resolveForeignKeys(b *model.Builder, man *model.Manifest) {
	known := make(map[string]bool)
	b.Tables(func(t *model.Table) {
		known[t.Schema+"."+t.Name] = true
	})
	b.Tables(func(t *model.Table) {
		for i := range t.Constraints {
			con := &t.Constraints[i]
			if con.Kind != model.ConstraintForeign || con.Ref == nil {
				continue
			}
			if con.Ref.Schema == "" {
				con.Ref.Schema = t.Schema
			}
			if !known[con.Ref.Schema+"."+con.Ref.Table] {
				con.Ref.Unresolved = true
				man.Unresolved = append(man.Unresolved,
					fmt.Sprintf("%s.%s.%s -> %s.%s",
						t.Schema, t.Name, con.Name, con.Ref.Schema, con.Ref.Table))
			}
		}
	})
}

// assignTypes fills Column.Type with the engine-neutral taxonomy name.
func assignTypes(b *model.Builder, engine model.Engine) {
	b.Tables(func(t *model.Table) {
		for i := range t.Columns {
			if t.Columns[i].Type == "" {
				t.Columns[i].Type = canon.NormalizeType(engine, t.Columns[i].NativeType)
			}
		}
	})
}

// Elapsed is a small helper for callers that log run duration.
func Elapsed(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}

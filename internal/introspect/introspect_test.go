package introspect

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// fakeAdapter drives the orchestrator without a database. Each layer's
// behavior is programmable per schema.
type fakeAdapter struct {
	engine     model.Engine
	caps       dialect.Capabilities
	containers []string
	layers     map[model.Layer]func(schema string) (*model.Fragment, error)
	calls      atomic.Int64
}

func (f *fakeAdapter) Engine() model.Engine              { return f.engine }
func (f *fakeAdapter) Capabilities() dialect.Capabilities { return f.caps }

func (f *fakeAdapter) Containers(ctx context.Context, q dialect.Querier) ([]string, error) {
	return f.containers, nil
}

func (f *fakeAdapter) run(ctx context.Context, l model.Layer, schema string) (*model.Fragment, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrKindCancelled, "cancelled", err)
	}
	if fn, ok := f.layers[l]; ok {
		return fn(schema)
	}
	return &model.Fragment{}, nil
}

func (f *fakeAdapter) Dependencies(ctx context.Context, q dialect.Querier, s string) (*model.Fragment, error) {
	return f.run(ctx, model.LayerDependencies, s)
}
func (f *fakeAdapter) Structure(ctx context.Context, q dialect.Querier, s string) (*model.Fragment, error) {
	return f.run(ctx, model.LayerStructure, s)
}
func (f *fakeAdapter) Indexes(ctx context.Context, q dialect.Querier, s string) (*model.Fragment, error) {
	return f.run(ctx, model.LayerIndexes, s)
}
func (f *fakeAdapter) Logic(ctx context.Context, q dialect.Querier, s string) (*model.Fragment, error) {
	return f.run(ctx, model.LayerLogic, s)
}
func (f *fakeAdapter) Exotics(ctx context.Context, q dialect.Querier, s string) (*model.Fragment, error) {
	return f.run(ctx, model.LayerExotics, s)
}

type nopQuerier struct{}

func (nopQuerier) Query(ctx context.Context, sql string, args ...any) (dialect.Rows, error) {
	return nil, errs.New(errs.ErrKindCatalogQuery, "no database in this test")
}

func allLayers() map[model.Layer]bool {
	out := make(map[model.Layer]bool, model.NumLayers)
	for _, l := range model.Layers() {
		out[l] = true
	}
	return out
}

func tableFrag(name string) *model.Fragment {
	return &model.Fragment{Tables: []model.Table{{
		Name: name,
		Columns: []model.Column{
			{Name: "id", NativeType: "bigint", Ordinal: 1},
		},
	}}}
}

func register(t *testing.T, f *fakeAdapter) {
	t.Helper()
	dialect.Register(f)
}

func TestIntrospect_AllLayersSucceed(t *testing.T) {
	f := &fakeAdapter{
		engine:     model.Engine("fake-success"),
		caps:       dialect.Capabilities{Layers: allLayers()},
		containers: []string{"alpha", "beta"},
		layers: map[model.Layer]func(string) (*model.Fragment, error){
			model.LayerStructure: func(s string) (*model.Fragment, error) {
				return tableFrag("t_" + s), nil
			},
		},
	}
	register(t, f)

	snap, err := Introspect(context.Background(), nopQuerier{}, f.engine, Options{})
	require.NoError(t, err)
	require.Len(t, snap.Schemas, 2)
	for _, l := range model.Layers() {
		assert.Equal(t, model.StatusSucceeded, snap.Manifest.Result(l).Status, l.String())
	}
	assert.NotNil(t, snap.Schema("alpha").Table("t_alpha"))
	assert.False(t, snap.Manifest.Partial)
}

func TestIntrospect_LayerFailureDoesNotAbortRun(t *testing.T) {
	f := &fakeAdapter{
		engine:     model.Engine("fake-logicfail"),
		caps:       dialect.Capabilities{Layers: allLayers()},
		containers: []string{"app"},
		layers: map[model.Layer]func(string) (*model.Fragment, error){
			model.LayerStructure: func(s string) (*model.Fragment, error) {
				return tableFrag("users"), nil
			},
			model.LayerLogic: func(s string) (*model.Fragment, error) {
				return nil, errs.New(errs.ErrKindCatalogQuery, "permission denied on routines")
			},
		},
	}
	register(t, f)

	snap, err := Introspect(context.Background(), nopQuerier{}, f.engine, Options{})
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, snap.Manifest.Result(model.LayerLogic).Status)
	assert.Contains(t, snap.Manifest.Result(model.LayerLogic).Reason, "permission denied")

	// Layers after the failed one still ran.
	assert.Equal(t, model.StatusSucceeded, snap.Manifest.Result(model.LayerExotics).Status)
	assert.NotNil(t, snap.Schema("app").Table("users"))
}

func TestIntrospect_PartialWhenSomeSchemasFail(t *testing.T) {
	f := &fakeAdapter{
		engine:     model.Engine("fake-partial"),
		caps:       dialect.Capabilities{Layers: allLayers()},
		containers: []string{"good", "bad"},
		layers: map[model.Layer]func(string) (*model.Fragment, error){
			model.LayerStructure: func(s string) (*model.Fragment, error) {
				if s == "bad" {
					return nil, errs.New(errs.ErrKindCatalogQuery, "lock timeout")
				}
				return tableFrag("users"), nil
			},
		},
	}
	register(t, f)

	snap, err := Introspect(context.Background(), nopQuerier{}, f.engine, Options{})
	require.NoError(t, err)

	res := snap.Manifest.Result(model.LayerStructure)
	assert.Equal(t, model.StatusPartial, res.Status)
	require.Len(t, res.Skipped, 1)
	assert.Contains(t, res.Skipped[0].Object, "schema bad")
	assert.NotNil(t, snap.Schema("good").Table("users"))
}

func TestIntrospect_UnsupportedLayerNeverCalled(t *testing.T) {
	caps := allLayers()
	delete(caps, model.LayerDependencies)
	f := &fakeAdapter{
		engine: model.Engine("fake-nodeps"),
		caps: dialect.Capabilities{
			Layers:  caps,
			Missing: map[model.Layer][]string{model.LayerDependencies: {"user types", "sequences"}},
		},
		containers: []string{"main"},
		layers: map[model.Layer]func(string) (*model.Fragment, error){
			model.LayerDependencies: func(s string) (*model.Fragment, error) {
				panic("dependencies must not be invoked")
			},
		},
	}
	register(t, f)

	snap, err := Introspect(context.Background(), nopQuerier{}, f.engine, Options{})
	require.NoError(t, err)

	res := snap.Manifest.Result(model.LayerDependencies)
	assert.Equal(t, model.StatusUnsupported, res.Status)
	assert.Equal(t, []string{"user types", "sequences"}, res.Missing)
}

func TestIntrospect_DisabledLayerSkipped(t *testing.T) {
	f := &fakeAdapter{
		engine:     model.Engine("fake-skip"),
		caps:       dialect.Capabilities{Layers: allLayers()},
		containers: []string{"main"},
	}
	register(t, f)

	snap, err := Introspect(context.Background(), nopQuerier{}, f.engine, Options{
		Layers: map[model.Layer]bool{
			model.LayerStructure: true,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatusSucceeded, snap.Manifest.Result(model.LayerStructure).Status)
	assert.Equal(t, model.StatusSkipped, snap.Manifest.Result(model.LayerLogic).Status)
	assert.Equal(t, model.StatusSkipped, snap.Manifest.Result(model.LayerExotics).Status)
}

func TestIntrospect_CancellationKeepsFinishedLayers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeAdapter{
		engine:     model.Engine("fake-cancel"),
		caps:       dialect.Capabilities{Layers: allLayers()},
		containers: []string{"app"},
		layers: map[model.Layer]func(string) (*model.Fragment, error){
			model.LayerStructure: func(s string) (*model.Fragment, error) {
				return tableFrag("users"), nil
			},
			model.LayerIndexes: func(s string) (*model.Fragment, error) {
				cancel()
				return nil, errs.Wrap(errs.ErrKindCancelled, "cancelled", context.Canceled)
			},
		},
	}
	register(t, f)

	snap, err := Introspect(ctx, nopQuerier{}, f.engine, Options{})
	require.NoError(t, err, "cancellation returns the partial snapshot, not an error")

	assert.Equal(t, model.StatusSucceeded, snap.Manifest.Result(model.LayerStructure).Status)
	assert.Equal(t, model.StatusCancelled, snap.Manifest.Result(model.LayerIndexes).Status)
	assert.Equal(t, model.StatusCancelled, snap.Manifest.Result(model.LayerLogic).Status)
	assert.Equal(t, model.StatusCancelled, snap.Manifest.Result(model.LayerExotics).Status)
	assert.True(t, snap.Manifest.Partial)
	assert.NotNil(t, snap.Schema("app").Table("users"), "finished layers keep their results")
}

func TestIntrospect_SchemaFilter(t *testing.T) {
	f := &fakeAdapter{
		engine:     model.Engine("fake-filter"),
		caps:       dialect.Capabilities{Layers: allLayers()},
		containers: []string{"keep", "drop", "sys"},
	}
	register(t, f)

	snap, err := Introspect(context.Background(), nopQuerier{}, f.engine, Options{
		AllowSchemas: []string{"keep", "drop"},
		DenySchemas:  []string{"drop"},
	})
	require.NoError(t, err)
	require.Len(t, snap.Schemas, 1)
	assert.Equal(t, "keep", snap.Schemas[0].Name)
}

func TestIntrospect_DanglingForeignKeyRecorded(t *testing.T) {
	f := &fakeAdapter{
		engine:     model.Engine("fake-dangling"),
		caps:       dialect.Capabilities{Layers: allLayers()},
		containers: []string{"app"},
		layers: map[model.Layer]func(string) (*model.Fragment, error){
			model.LayerStructure: func(s string) (*model.Fragment, error) {
				frag := tableFrag("orders")
				frag.Tables[0].Constraints = []model.Constraint{{
					Name:    "fk_user",
					Kind:    model.ConstraintForeign,
					Columns: []string{"id"},
					Ref:     &model.FKRef{Schema: "auth", Table: "users", Columns: []string{"id"}},
				}}
				return frag, nil
			},
		},
	}
	register(t, f)

	snap, err := Introspect(context.Background(), nopQuerier{}, f.engine, Options{})
	require.NoError(t, err)

	con := snap.Schema("app").Table("orders").Constraints[0]
	require.NotNil(t, con.Ref)
	assert.True(t, con.Ref.Unresolved, "the reference is recorded, never dropped")
	require.Len(t, snap.Manifest.Unresolved, 1)
	assert.Equal(t, "app.orders.fk_user -> auth.users", snap.Manifest.Unresolved[0])
}

func TestIntrospect_AssignsNormalizedTypes(t *testing.T) {
	f := &fakeAdapter{
		engine:     model.EngineMySQL,
		caps:       dialect.Capabilities{Layers: allLayers()},
		containers: []string{"app"},
		layers: map[model.Layer]func(string) (*model.Fragment, error){
			model.LayerStructure: func(s string) (*model.Fragment, error) {
				return &model.Fragment{Tables: []model.Table{{
					Name: "users",
					Columns: []model.Column{
						{Name: "id", NativeType: "bigint", Ordinal: 1},
						{Name: "name", NativeType: "varchar(80)", Ordinal: 2},
					},
				}}}, nil
			},
		},
	}
	register(t, f)

	snap, err := Introspect(context.Background(), nopQuerier{}, f.engine, Options{})
	require.NoError(t, err)

	tbl := snap.Schema("app").Table("users")
	assert.Equal(t, "int64", tbl.Columns[0].Type)
	assert.Equal(t, "string(80)", tbl.Columns[1].Type)
}

func TestIntrospect_UnknownEngine(t *testing.T) {
	_, err := Introspect(context.Background(), nopQuerier{}, model.Engine("ingres"), Options{})
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestIntrospect_LayerTimeout(t *testing.T) {
	f := &fakeAdapter{
		engine:     model.Engine("fake-slow"),
		caps:       dialect.Capabilities{Layers: allLayers()},
		containers: []string{"app"},
		layers: map[model.Layer]func(string) (*model.Fragment, error){
			model.LayerDependencies: func(s string) (*model.Fragment, error) {
				time.Sleep(200 * time.Millisecond)
				return &model.Fragment{}, nil
			},
		},
	}
	register(t, f)

	snap, err := Introspect(context.Background(), nopQuerier{}, f.engine, Options{
		LayerTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, snap.Manifest.Result(model.LayerDependencies).Status)
	assert.Contains(t, snap.Manifest.Result(model.LayerDependencies).Reason, "timed out")
}

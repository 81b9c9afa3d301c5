package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

func snapWith(engine model.Engine, nativeType string) *model.Snapshot {
	return &model.Snapshot{
		Engine: engine,
		Schemas: []model.Schema{{
			Name: "app",
			Tables: []model.Table{{
				Schema: "app",
				Name:   "notes",
				Columns: []model.Column{
					{Name: "body", NativeType: nativeType, Nullable: true, Ordinal: 1},
				},
			}},
		}},
	}
}

func TestDiff_SemanticVsStrictTypes(t *testing.T) {
	pg := snapWith(model.EnginePostgres, "text")
	ms := snapWith(model.EngineSQLServer, "nvarchar(max)")

	assert.Empty(t, Diff(pg, ms, ModeSemantic),
		"TEXT and NVARCHAR(MAX) are semantically the same column type")

	strict := Diff(pg, ms, ModeStrict)
	require.Len(t, strict, 1)
	assert.Equal(t, ChangeType, strict[0].Kind)
	assert.Equal(t, "app.notes.body", strict[0].Path)
	assert.Equal(t, "text", strict[0].From)
	assert.Equal(t, "nvarchar(max)", strict[0].To)
}

func TestDiff_AddedAndRemoved(t *testing.T) {
	a := snapWith(model.EnginePostgres, "text")
	b := snapWith(model.EnginePostgres, "text")
	b.Schemas[0].Tables = append(b.Schemas[0].Tables, model.Table{
		Schema:  "app",
		Name:    "tags",
		Columns: []model.Column{{Name: "id", NativeType: "bigint", Ordinal: 1}},
	})
	b.Schemas = append(b.Schemas, model.Schema{Name: "audit"})

	changes := Diff(a, b, ModeSemantic)
	require.Len(t, changes, 2)
	assert.Equal(t, Change{Entity: "table", Path: "app.tags", Kind: ChangeAdded}, changes[0])
	assert.Equal(t, Change{Entity: "schema", Path: "audit", Kind: ChangeAdded}, changes[1])

	// The reverse direction reports removals.
	reverse := Diff(b, a, ModeSemantic)
	require.Len(t, reverse, 2)
	assert.Equal(t, ChangeRemoved, reverse[0].Kind)
	assert.Equal(t, ChangeRemoved, reverse[1].Kind)
}

func TestDiff_ColumnProperties(t *testing.T) {
	def := "now()"
	a := snapWith(model.EnginePostgres, "text")
	b := snapWith(model.EnginePostgres, "text")
	b.Schemas[0].Tables[0].Columns[0].Nullable = false
	b.Schemas[0].Tables[0].Columns[0].Default = &def

	changes := Diff(a, b, ModeSemantic)
	require.Len(t, changes, 2)
	assert.Equal(t, ChangeNullability, changes[0].Kind)
	assert.Equal(t, ChangeDefault, changes[1].Kind)
	assert.Equal(t, "now()", changes[1].To)
}

func TestDiff_IndexAndConstraint(t *testing.T) {
	mk := func() *model.Snapshot {
		s := snapWith(model.EngineMySQL, "text")
		tbl := &s.Schemas[0].Tables[0]
		tbl.Columns = append(tbl.Columns, model.Column{Name: "owner", NativeType: "bigint", Ordinal: 2})
		tbl.Constraints = []model.Constraint{
			{Name: "uq_owner", Kind: model.ConstraintUnique, Columns: []string{"owner"}},
		}
		tbl.Indexes = []model.Index{
			{Table: "notes", Name: "ix_owner", Columns: []model.IndexColumn{{Name: "owner"}}},
		}
		return s
	}
	a, b := mk(), mk()
	tbl := &b.Schemas[0].Tables[0]
	tbl.Constraints[0].Columns = []string{"owner", "body"}
	tbl.Indexes[0].Unique = true
	tbl.Indexes[0].Columns[0].Desc = true

	changes := Diff(a, b, ModeSemantic)
	require.Len(t, changes, 3)
	assert.Equal(t, ChangeColumns, changes[0].Kind)
	assert.Equal(t, "app.notes.uq_owner", changes[0].Path)
	assert.Equal(t, ChangeColumns, changes[1].Kind)
	assert.Equal(t, "owner desc", changes[1].To)
	assert.Equal(t, ChangeUnique, changes[2].Kind)
}

func TestDiff_RoutinesKeyedBySignature(t *testing.T) {
	mk := func(sig string) *model.Snapshot {
		return &model.Snapshot{
			Engine: model.EnginePostgres,
			Schemas: []model.Schema{{
				Name: "app",
				Routines: []model.Routine{
					{Name: "total", Kind: model.RoutineFunction, Signature: sig, Body: "..."},
				},
			}},
		}
	}
	changes := Diff(mk("a integer"), mk("a integer, b integer"), ModeSemantic)
	require.Len(t, changes, 2)
	assert.Equal(t, ChangeRemoved, changes[0].Kind)
	assert.Equal(t, "app.total(a integer)", changes[0].Path)
	assert.Equal(t, ChangeAdded, changes[1].Kind)
}

func TestDiff_EqualSnapshotsEmpty(t *testing.T) {
	a, b := scrambled()
	assert.Empty(t, Diff(a, b, ModeSemantic))
	assert.Empty(t, Diff(a, b, ModeStrict))
}

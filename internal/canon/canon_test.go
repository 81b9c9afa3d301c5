package canon

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// scrambled returns the same logical snapshot twice with collections in
// different orders and different capture times.
func scrambled() (*model.Snapshot, *model.Snapshot) {
	mk := func(takenAt time.Time, reverse bool) *model.Snapshot {
		tables := []model.Table{
			{
				Schema: "public",
				Name:   "orders",
				Columns: []model.Column{
					{Name: "id", NativeType: "bigint", Ordinal: 1},
					{Name: "user_id", NativeType: "bigint", Ordinal: 2},
				},
				Constraints: []model.Constraint{
					{Name: "orders_user_fk", Kind: model.ConstraintForeign,
						Columns: []string{"user_id"},
						Ref:     &model.FKRef{Schema: "public", Table: "users", Columns: []string{"id"}}},
					{Name: "orders_pkey", Kind: model.ConstraintPrimary, Columns: []string{"id"}},
				},
				Indexes: []model.Index{
					{Table: "orders", Name: "ix_user", Columns: []model.IndexColumn{{Name: "user_id"}}},
				},
			},
			{
				Schema:  "public",
				Name:    "users",
				Columns: []model.Column{{Name: "id", NativeType: "bigint", Ordinal: 1}},
			},
		}
		if reverse {
			tables[0], tables[1] = tables[1], tables[0]
		}
		return &model.Snapshot{
			Engine:  model.EnginePostgres,
			TakenAt: takenAt,
			Schemas: []model.Schema{{Name: "public", Tables: tables}},
		}
	}
	return mk(time.Unix(1000, 0), false), mk(time.Unix(2000, 0), true)
}

func TestCanonicalize_OrderIndependent(t *testing.T) {
	a, b := scrambled()
	ca, cb := Canonicalize(a), Canonicalize(b)

	ca.TakenAt, cb.TakenAt = time.Time{}, time.Time{}
	if diff := cmp.Diff(ca, cb); diff != "" {
		t.Fatalf("canonical forms differ (-a +b):\n%s", diff)
	}
}

func TestCanonicalize_DoesNotMutateInput(t *testing.T) {
	a, _ := scrambled()
	firstTable := a.Schemas[0].Tables[0].Name

	_ = Canonicalize(a)
	assert.Equal(t, firstTable, a.Schemas[0].Tables[0].Name)
	assert.Empty(t, a.Schemas[0].Tables[0].Columns[0].Type,
		"normalized type must be assigned on the copy, not the input")
}

func TestCanonicalize_Idempotent(t *testing.T) {
	a, _ := scrambled()
	once := Canonicalize(a)
	twice := Canonicalize(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("second canonicalization changed the snapshot:\n%s", diff)
	}
}

func TestCanonicalize_AssignsTaxonomyTypes(t *testing.T) {
	a, _ := scrambled()
	c := Canonicalize(a)
	for _, tbl := range c.Schemas[0].Tables {
		for _, col := range tbl.Columns {
			assert.Equal(t, "int64", col.Type)
		}
	}
}

func TestHash_StableAcrossOrderAndTime(t *testing.T) {
	a, b := scrambled()
	assert.Equal(t, Hash(a), Hash(b))
	assert.True(t, Equal(a, b))
}

func TestHash_ChangesWithSchema(t *testing.T) {
	a, b := scrambled()
	b.Schemas[0].Tables[0].Columns[0].Nullable = true
	assert.NotEqual(t, Hash(a), Hash(b))
	assert.False(t, Equal(a, b))
}

func TestHash_IgnoresSequenceCurrent(t *testing.T) {
	a, b := scrambled()
	lo, hi := int64(5), int64(9000)
	a.Schemas[0].Sequences = []model.Sequence{{Name: "orders_id_seq", Start: 1, Increment: 1, Current: &lo}}
	b.Schemas[0].Sequences = []model.Sequence{{Name: "orders_id_seq", Start: 1, Increment: 1, Current: &hi}}

	// The live counter advances with every insert; it is not schema shape.
	assert.Equal(t, Hash(a), Hash(b))
	assert.True(t, Equal(a, b))
	assert.NotContains(t, string(Serialize(a)), "current=")

	b.Schemas[0].Sequences[0].Increment = 10
	assert.NotEqual(t, Hash(a), Hash(b))
}

func TestSerialize_Deterministic(t *testing.T) {
	a, _ := scrambled()
	require.Equal(t, string(Serialize(a)), string(Serialize(a)))

	// Exotics are a map; serialization must still come out ordered.
	a.Schemas[0].Exotics = map[string][]model.ExoticObject{
		"zeta":  {{Name: "z1", Attrs: map[string]string{"b": "2", "a": "1"}}},
		"alpha": {{Name: "a1"}},
	}
	out := string(Serialize(a))
	assert.Less(t, strings.Index(out, "alpha"), strings.Index(out, "zeta"))
}

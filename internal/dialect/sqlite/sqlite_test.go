package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect/dialecttest"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

func TestContainers_AttachedDatabases(t *testing.T) {
	q := &dialecttest.FakeQuerier{Stubs: []dialecttest.Stub{
		{Match: "pragma_database_list", Rows: [][]any{{"main"}, {"archive"}}},
	}}
	a := &adapter{}

	names, err := a.Containers(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "archive"}, names)
}

func TestCapabilities_DeclaresGaps(t *testing.T) {
	caps := (&adapter{}).Capabilities()
	assert.True(t, caps.Supports(model.LayerStructure))
	assert.False(t, caps.Supports(model.LayerDependencies))
	assert.False(t, caps.Supports(model.LayerExotics))
	assert.Equal(t, []string{"check constraints"}, caps.Missing[model.LayerStructure])
	assert.Equal(t, []string{"procedures", "functions"}, caps.Missing[model.LayerLogic])
}

func TestDependenciesAndExotics_Unsupported(t *testing.T) {
	a := &adapter{}
	_, err := a.Dependencies(context.Background(), &dialecttest.FakeQuerier{}, "main")
	assert.True(t, errs.IsUnsupported(err))
	_, err = a.Exotics(context.Background(), &dialecttest.FakeQuerier{}, "main")
	assert.True(t, errs.IsUnsupported(err))
}

func TestStructure(t *testing.T) {
	q := &dialecttest.FakeQuerier{Stubs: []dialecttest.Stub{
		{Match: "type = 'table'", Rows: [][]any{{"orders"}}},
		{Match: "pragma_table_xinfo", Rows: [][]any{
			// cid, name, type, notnull, dflt_value, pk, hidden
			{0, "region", "TEXT", true, nil, int64(2), int64(0)},
			{1, "id", "INTEGER", true, nil, int64(1), int64(0)},
			{2, "total", "REAL", false, "0.0", int64(0), int64(0)},
			{3, "total_cents", "INTEGER", false, nil, int64(0), int64(2)},
		}},
		{Match: "pragma_foreign_key_list", Rows: [][]any{
			// id, table, from, to
			{int64(0), "regions", "region", "code"},
			{int64(1), "users", "user_id", nil},
		}},
	}}
	a := &adapter{}

	frag, err := a.Structure(context.Background(), q, "archive")
	require.NoError(t, err)
	require.Len(t, frag.Tables, 1)

	// Every catalog query is qualified by the container, so an attached
	// database reports its own objects rather than main's.
	assert.Contains(t, q.Queries[0], `"archive".sqlite_master`)
	assert.Contains(t, q.Queries[1], "pragma_table_xinfo(?, ?)")

	tbl := frag.Tables[0]
	require.Len(t, tbl.Columns, 4)
	assert.False(t, tbl.Columns[0].Nullable)
	require.NotNil(t, tbl.Columns[2].Default)
	assert.Equal(t, "0.0", *tbl.Columns[2].Default)
	assert.True(t, tbl.Columns[3].Generated, "hidden=2 marks a virtual generated column")

	require.Len(t, tbl.Constraints, 3)

	// The pk ordinals decide column order, not the column positions.
	pk := tbl.Constraints[0]
	assert.Equal(t, model.ConstraintPrimary, pk.Kind)
	assert.Equal(t, "pk_orders", pk.Name)
	assert.Equal(t, []string{"id", "region"}, pk.Columns)

	fk := tbl.Constraints[1]
	assert.Equal(t, "fk_orders_0", fk.Name)
	assert.Equal(t, model.ConstraintForeign, fk.Kind)
	assert.Equal(t, []string{"region"}, fk.Columns)
	require.NotNil(t, fk.Ref)
	assert.Equal(t, "regions", fk.Ref.Table)
	assert.Equal(t, []string{"code"}, fk.Ref.Columns)

	// A NULL "to" column means the key references the parent's primary key.
	implicit := tbl.Constraints[2]
	assert.Equal(t, "fk_orders_1", implicit.Name)
	assert.Equal(t, "users", implicit.Ref.Table)
	assert.Empty(t, implicit.Ref.Columns)
}

func TestIndexes_SkipsPrimaryKeepsUnique(t *testing.T) {
	q := &dialecttest.FakeQuerier{Stubs: []dialecttest.Stub{
		{Match: "pragma_index_list", Rows: [][]any{
			// table, index, origin, unique, sql
			{"orders", "sqlite_autoindex_orders_1", "pk", true, ""},
			{"orders", "ix_orders_open", "c", false,
				"CREATE INDEX ix_orders_open ON orders(region, placed_at) WHERE closed_at IS NULL"},
			{"orders", "uq_orders_number", "u", true, ""},
		}},
		{Match: "pragma_index_xinfo", Rows: [][]any{
			// seqno, name, desc
			{int64(0), "region", false},
			{int64(1), "placed_at", true},
		}},
	}}
	a := &adapter{}

	frag, err := a.Indexes(context.Background(), q, "main")
	require.NoError(t, err)
	require.Len(t, frag.Indexes, 2)

	assert.Contains(t, q.Queries[0], `"main".sqlite_master m`)
	assert.Contains(t, q.Queries[0], "pragma_index_list(m.name, ?)")

	ix := frag.Indexes[0]
	assert.Equal(t, "ix_orders_open", ix.Name)
	assert.Equal(t, "closed_at IS NULL", ix.Predicate)
	require.Len(t, ix.Columns, 2)
	assert.True(t, ix.Columns[1].Desc)

	assert.Equal(t, "uq_orders_number", frag.Indexes[1].Name)
	assert.True(t, frag.Indexes[1].Unique)
	assert.Empty(t, frag.Indexes[1].Predicate, "auto-created unique index has no sql text")
}

func TestLogic_ViewsAndTriggerClauses(t *testing.T) {
	q := &dialecttest.FakeQuerier{Stubs: []dialecttest.Stub{
		{Match: "type = 'view'", Rows: [][]any{
			{"v_open", "CREATE VIEW v_open AS SELECT * FROM orders WHERE closed_at IS NULL"},
		}},
		{Match: "type = 'trigger'", Rows: [][]any{
			{"trg_redirect", "v_open", "CREATE TRIGGER trg_redirect INSTEAD OF DELETE ON v_open BEGIN ... END"},
			{"trg_stamp", "orders", "CREATE TRIGGER trg_stamp AFTER UPDATE ON orders BEGIN ... END"},
			{"trg_check", "orders", "CREATE TRIGGER trg_check BEFORE INSERT ON orders BEGIN ... END"},
		}},
	}}
	a := &adapter{}

	frag, err := a.Logic(context.Background(), q, "main")
	require.NoError(t, err)

	require.Len(t, frag.Views, 1)
	assert.Equal(t, "v_open", frag.Views[0].Name)

	require.Len(t, frag.Triggers, 3)
	assert.Equal(t, "INSTEAD OF", frag.Triggers[0].Timing)
	assert.Equal(t, "DELETE", frag.Triggers[0].Event)
	assert.Equal(t, "AFTER", frag.Triggers[1].Timing)
	assert.Equal(t, "UPDATE", frag.Triggers[1].Event)
	assert.Equal(t, "BEFORE", frag.Triggers[2].Timing)
	assert.Equal(t, "INSERT", frag.Triggers[2].Event)
}

func TestPartialPredicate(t *testing.T) {
	cases := []struct {
		sql  string
		want string
	}{
		{"CREATE INDEX ix ON t(a) WHERE a > 0", "a > 0"},
		{"CREATE INDEX ix ON t(a) where deleted = 0", "deleted = 0"},
		{"CREATE INDEX ix ON t(a)", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, partialPredicate(tc.sql), tc.sql)
	}
}

var _ dialect.Adapter = (*adapter)(nil)

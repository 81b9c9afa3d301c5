package model

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
)

func usersTable() Table {
	return Table{
		Name: "users",
		Columns: []Column{
			{Name: "id", NativeType: "bigint", Ordinal: 1},
			{Name: "email", NativeType: "text", Nullable: true, Ordinal: 2},
		},
		Constraints: []Constraint{
			{Name: "users_pkey", Kind: ConstraintPrimary, Columns: []string{"id"}},
		},
	}
}

func TestBuilder_DuplicateSchema(t *testing.T) {
	b := NewBuilder(EnginePostgres)
	require.NoError(t, b.AddSchema("public"))

	err := b.AddSchema("public")
	require.Error(t, err)
	assert.True(t, errs.IsDuplicateKey(err))
}

func TestBuilder_DuplicateTable(t *testing.T) {
	b := NewBuilder(EnginePostgres)
	require.NoError(t, b.AddSchema("public"))
	require.NoError(t, b.AddTable("public", usersTable()))

	err := b.AddTable("public", usersTable())
	require.Error(t, err)
	assert.True(t, errs.IsDuplicateKey(err))
}

func TestBuilder_TableValidation(t *testing.T) {
	tests := []struct {
		name  string
		table Table
		check func(error) bool
	}{
		{
			name: "duplicate column",
			table: Table{
				Name: "t",
				Columns: []Column{
					{Name: "a", Ordinal: 1},
					{Name: "a", Ordinal: 2},
				},
			},
			check: errs.IsDuplicateKey,
		},
		{
			name: "two primary keys",
			table: Table{
				Name:    "t",
				Columns: []Column{{Name: "a", Ordinal: 1}, {Name: "b", Ordinal: 2}},
				Constraints: []Constraint{
					{Name: "pk1", Kind: ConstraintPrimary, Columns: []string{"a"}},
					{Name: "pk2", Kind: ConstraintPrimary, Columns: []string{"b"}},
				},
			},
			check: errs.IsDuplicateKey,
		},
		{
			name: "constraint names unknown column",
			table: Table{
				Name:    "t",
				Columns: []Column{{Name: "a", Ordinal: 1}},
				Constraints: []Constraint{
					{Name: "uq", Kind: ConstraintUnique, Columns: []string{"ghost"}},
				},
			},
			check: errs.IsDanglingReference,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(EnginePostgres)
			require.NoError(t, b.AddSchema("public"))
			err := b.AddTable("public", tt.table)
			require.Error(t, err)
			assert.True(t, tt.check(err))
		})
	}
}

func TestBuilder_IndexValidation(t *testing.T) {
	b := NewBuilder(EnginePostgres)
	require.NoError(t, b.AddSchema("public"))
	require.NoError(t, b.AddTable("public", usersTable()))

	err := b.AddIndex("public", Index{Table: "missing", Name: "ix"})
	require.Error(t, err)
	assert.True(t, errs.IsDanglingReference(err))

	err = b.AddIndex("public", Index{
		Table:   "users",
		Name:    "ix_ghost",
		Columns: []IndexColumn{{Name: "ghost"}},
	})
	require.Error(t, err)
	assert.True(t, errs.IsDanglingReference(err))

	// Expression keys have no backing column and are exempt.
	require.NoError(t, b.AddIndex("public", Index{
		Table:   "users",
		Name:    "ix_lower_email",
		Columns: []IndexColumn{{Name: ExprColumn}},
	}))
}

func TestBuilder_MergeConvertsErrorsToSkips(t *testing.T) {
	b := NewBuilder(EngineMySQL)
	require.NoError(t, b.AddSchema("app"))
	require.NoError(t, b.AddTable("app", usersTable()))

	frag := &Fragment{
		Tables: []Table{usersTable()}, // duplicate
		Indexes: []Index{
			{Table: "orders", Name: "ix_orders"}, // dangling table
		},
	}
	frag.Skip("view app.v_broken", "definition not readable")

	skips := b.Merge("app", frag)
	require.Len(t, skips, 3)
	assert.Equal(t, "table app.users", skips[0].Object)
	assert.Equal(t, "index app.ix_orders", skips[1].Object)
	assert.Equal(t, "view app.v_broken", skips[2].Object)

	// The run itself is unharmed.
	assert.True(t, b.HasTable("app", "users"))
}

func TestBuilder_ConcurrentMerge(t *testing.T) {
	b := NewBuilder(EnginePostgres)
	for i := 0; i < 8; i++ {
		require.NoError(t, b.AddSchema(fmt.Sprintf("s%d", i)))
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				frag := &Fragment{Tables: []Table{{
					Name:    fmt.Sprintf("t%d", j),
					Columns: []Column{{Name: "id", Ordinal: 1}},
				}}}
				skips := b.Merge(fmt.Sprintf("s%d", i), frag)
				if len(skips) != 0 {
					t.Errorf("unexpected skips: %v", skips)
				}
			}
		}(i)
	}
	wg.Wait()

	snap := b.Snapshot(Manifest{})
	require.Len(t, snap.Schemas, 8)
	for _, s := range snap.Schemas {
		assert.Len(t, s.Tables, 20)
	}
}

func TestBuilder_SnapshotDeterminism(t *testing.T) {
	build := func(order []string) *Snapshot {
		b := NewBuilder(EngineSQLite)
		require.NoError(t, b.AddSchema("main"))
		for _, name := range order {
			require.NoError(t, b.AddTable("main", Table{
				Name:    name,
				Columns: []Column{{Name: "id", Ordinal: 1}},
			}))
		}
		return b.Snapshot(Manifest{})
	}

	a := build([]string{"zebra", "apple", "mango"})
	c := build([]string{"mango", "zebra", "apple"})

	require.Len(t, a.Schemas, 1)
	names := make([]string, 0, 3)
	for _, tbl := range a.Schemas[0].Tables {
		names = append(names, tbl.Name)
	}
	assert.Equal(t, []string{"apple", "mango", "zebra"}, names)
	assert.Equal(t, a.Schemas, c.Schemas)
}

func TestManifest_SetKeepsByNameInSync(t *testing.T) {
	var m Manifest
	m.Set(LayerStructure, LayerResult{Status: StatusPartial})

	assert.Equal(t, StatusPartial, m.Result(LayerStructure).Status)
	assert.Equal(t, StatusPartial, m.ByName["structure"].Status)
	assert.Equal(t, StatusNotAttempted, m.Result(LayerLogic).Status)
}

func TestStatus_TextRoundTrip(t *testing.T) {
	for s := StatusNotAttempted; s <= StatusSkipped; s++ {
		text, err := s.MarshalText()
		require.NoError(t, err)

		var back Status
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}

	var s Status
	assert.Error(t, s.UnmarshalText([]byte("half_done")))
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	b := NewBuilder(EnginePostgres)
	require.NoError(t, b.AddSchema("app"))
	require.NoError(t, b.AddTable("app", usersTable()))

	var m Manifest
	m.Set(LayerContainers, LayerResult{Status: StatusSucceeded})
	m.Set(LayerStructure, LayerResult{Status: StatusSucceeded})
	m.Set(LayerLogic, LayerResult{
		Status:  StatusPartial,
		Skipped: []Skip{{Object: "view app.v_broken", Reason: "definition not readable"}},
	})
	m.Set(LayerExotics, LayerResult{Status: StatusUnsupported, Missing: []string{"events"}})
	snap := b.Snapshot(m)

	doc, err := json.Marshal(snap)
	require.NoError(t, err)

	var back Snapshot
	require.NoError(t, json.Unmarshal(doc, &back))

	assert.Equal(t, EnginePostgres, back.Engine)
	require.Len(t, back.Schemas, 1)
	assert.Equal(t, "users", back.Schemas[0].Tables[0].Name)
	assert.Equal(t, StatusSucceeded, back.Manifest.ByName["structure"].Status)
	assert.Equal(t, StatusPartial, back.Manifest.ByName["logic"].Status)
	assert.Equal(t, StatusUnsupported, back.Manifest.ByName["exotics"].Status)
	assert.Equal(t, "view app.v_broken", back.Manifest.ByName["logic"].Skipped[0].Object)
}

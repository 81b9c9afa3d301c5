// Package sqlite implements the dialect adapter for SQLite, reading
// sqlite_master and the pragma table-valued functions (pragma_table_xinfo,
// pragma_index_list, pragma_index_xinfo, pragma_foreign_key_list).
//
// SQLite has no user-defined types, sequences, procedures, or functions, and
// exposes check constraints only inside the original CREATE TABLE text; the
// capability metadata declares all of that up front.
//
// Casing: SQLite keeps identifiers as written but matches them
// case-insensitively; names are reported as stored.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

func init() {
	dialect.Register(&adapter{})
}

type adapter struct{}

func (a *adapter) Engine() model.Engine { return model.EngineSQLite }

func (a *adapter) Capabilities() dialect.Capabilities {
	return dialect.Capabilities{
		Layers: map[model.Layer]bool{
			model.LayerContainers: true,
			model.LayerStructure:  true,
			model.LayerIndexes:    true,
			model.LayerLogic:      true,
		},
		Missing: map[model.Layer][]string{
			model.LayerStructure: {"check constraints"},
			model.LayerLogic:     {"procedures", "functions"},
		},
		Casing: "as stored; identifiers match case-insensitively",
	}
}

// Containers lists the attached databases. A plain file connection yields
// exactly one container, "main".
func (a *adapter) Containers(ctx context.Context, q dialect.Querier) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT name FROM pragma_database_list ORDER BY seq`)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list databases", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan database name", err)
		}
		names = append(names, n)
	}
	return names, rowsErr(rows, "iterate databases")
}

// Dependencies has no analog: SQLite has neither user-defined types nor
// sequence objects. The capability metadata keeps this from being called.
func (a *adapter) Dependencies(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	return nil, errs.New(errs.ErrKindUnsupported, "sqlite has no user types or sequences")
}

// Structure extracts tables, columns, the primary key, and foreign keys.
// The primary key comes from the pk ordinal in pragma_table_xinfo and is
// synthesized as an unnamed constraint; SQLite does not name it.
func (a *adapter) Structure(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	tblRows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT name FROM %s.sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%%'
		ORDER BY name`, qident(schema)))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list tables", err)
	}
	defer tblRows.Close()

	var names []string
	for tblRows.Next() {
		var n string
		if err := tblRows.Scan(&n); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan table name", err)
		}
		names = append(names, n)
	}
	if err := rowsErr(tblRows, "iterate tables"); err != nil {
		return nil, err
	}

	frag := &model.Fragment{}
	for _, name := range names {
		t, err := a.table(ctx, q, schema, name)
		if err != nil {
			return nil, err
		}
		frag.Tables = append(frag.Tables, *t)
	}
	return frag, nil
}

func (a *adapter) table(ctx context.Context, q dialect.Querier, schema, name string) (*model.Table, error) {
	rows, err := q.Query(ctx, `
		SELECT cid, name, type, "notnull", dflt_value, pk, hidden
		FROM pragma_table_xinfo(?, ?)`, name, schema)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrKindCatalogQuery, err, "describe table %s", name)
	}
	defer rows.Close()

	t := &model.Table{Name: name}
	type pkCol struct {
		name string
		ord  int64
	}
	var pk []pkCol
	for rows.Next() {
		var (
			col     model.Column
			notNull bool
			def     sql.NullString
			pkOrd   int64
			hidden  int64
		)
		if err := rows.Scan(&col.Ordinal, &col.Name, &col.NativeType,
			&notNull, &def, &pkOrd, &hidden); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan column", err)
		}
		col.Nullable = !notNull
		if def.Valid {
			v := def.String
			col.Default = &v
		}
		// hidden 2 and 3 mark generated columns (virtual and stored).
		col.Generated = hidden == 2 || hidden == 3
		if pkOrd > 0 {
			pk = append(pk, pkCol{name: col.Name, ord: pkOrd})
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rowsErr(rows, "iterate columns"); err != nil {
		return nil, err
	}
	if len(pk) > 0 {
		for i := 1; i < len(pk); i++ {
			for j := i; j > 0 && pk[j-1].ord > pk[j].ord; j-- {
				pk[j-1], pk[j] = pk[j], pk[j-1]
			}
		}
		cols := make([]string, len(pk))
		for i, c := range pk {
			cols[i] = c.name
		}
		t.Constraints = append(t.Constraints, model.Constraint{
			Name:    "pk_" + name,
			Kind:    model.ConstraintPrimary,
			Columns: cols,
		})
	}

	fkRows, err := q.Query(ctx, `
		SELECT id, "table", "from", "to"
		FROM pragma_foreign_key_list(?, ?)
		ORDER BY id, seq`, name, schema)
	if err != nil {
		return nil, errs.Wrapf(errs.ErrKindCatalogQuery, err, "list foreign keys of %s", name)
	}
	defer fkRows.Close()

	byID := make(map[int64]*model.Constraint)
	var ids []int64
	for fkRows.Next() {
		var (
			id             int64
			refTable, from string
			to             sql.NullString
		)
		if err := fkRows.Scan(&id, &refTable, &from, &to); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan foreign key", err)
		}
		con, ok := byID[id]
		if !ok {
			con = &model.Constraint{
				Name: fmt.Sprintf("fk_%s_%d", name, id),
				Kind: model.ConstraintForeign,
				Ref:  &model.FKRef{Table: refTable},
			}
			byID[id] = con
			ids = append(ids, id)
		}
		con.Columns = append(con.Columns, from)
		if to.Valid {
			con.Ref.Columns = append(con.Ref.Columns, to.String)
		}
	}
	if err := rowsErr(fkRows, "iterate foreign keys"); err != nil {
		return nil, err
	}
	for _, id := range ids {
		t.Constraints = append(t.Constraints, *byID[id])
	}
	return t, nil
}

// Indexes extracts secondary indexes. The implicit index backing the primary
// key (origin 'pk') is excluded; unique-constraint indexes (origin 'u') are
// kept since SQLite exposes UNIQUE table constraints only this way.
func (a *adapter) Indexes(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT m.name, il.name, il.origin, il."unique", COALESCE(m2.sql, '')
		FROM %[1]s.sqlite_master m
		JOIN pragma_index_list(m.name, ?) il
		LEFT JOIN %[1]s.sqlite_master m2 ON m2.type = 'index' AND m2.name = il.name
		WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%%'
		ORDER BY m.name, il.name`, qident(schema)), schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list indexes", err)
	}
	defer rows.Close()

	type head struct {
		table, name, sql string
		unique           bool
	}
	var heads []head
	for rows.Next() {
		var (
			h      head
			origin string
		)
		if err := rows.Scan(&h.table, &h.name, &origin, &h.unique, &h.sql); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan index", err)
		}
		if origin == "pk" {
			continue
		}
		heads = append(heads, h)
	}
	if err := rowsErr(rows, "iterate indexes"); err != nil {
		return nil, err
	}

	frag := &model.Fragment{}
	for _, h := range heads {
		idx := model.Index{
			Table:     h.table,
			Name:      h.name,
			Unique:    h.unique,
			Predicate: partialPredicate(h.sql),
		}
		colRows, err := q.Query(ctx, `
			SELECT seqno, COALESCE(name, '(expr)'), "desc"
			FROM pragma_index_xinfo(?, ?)
			WHERE key = 1
			ORDER BY seqno`, h.name, schema)
		if err != nil {
			return nil, errs.Wrapf(errs.ErrKindCatalogQuery, err, "describe index %s", h.name)
		}
		for colRows.Next() {
			var (
				seq int64
				ic  model.IndexColumn
			)
			if err := colRows.Scan(&seq, &ic.Name, &ic.Desc); err != nil {
				colRows.Close()
				return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan index column", err)
			}
			idx.Columns = append(idx.Columns, ic)
		}
		err = rowsErr(colRows, "iterate index columns")
		colRows.Close()
		if err != nil {
			return nil, err
		}
		frag.Indexes = append(frag.Indexes, idx)
	}
	return frag, nil
}

// Logic extracts views and triggers from sqlite_master. SQLite stores the
// verbatim CREATE statement, so trigger timing and event are recovered from
// the statement text.
func (a *adapter) Logic(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	frag := &model.Fragment{}

	rows, err := q.Query(ctx, fmt.Sprintf(`
		SELECT name, COALESCE(sql, '')
		FROM %s.sqlite_master
		WHERE type = 'view'
		ORDER BY name`, qident(schema)))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list views", err)
	}
	defer rows.Close()
	for rows.Next() {
		var v model.View
		if err := rows.Scan(&v.Name, &v.Definition); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan view", err)
		}
		frag.Views = append(frag.Views, v)
	}
	if err := rowsErr(rows, "iterate views"); err != nil {
		return nil, err
	}

	rows, err = q.Query(ctx, fmt.Sprintf(`
		SELECT name, tbl_name, COALESCE(sql, '')
		FROM %s.sqlite_master
		WHERE type = 'trigger'
		ORDER BY name`, qident(schema)))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list triggers", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tr model.Trigger
		if err := rows.Scan(&tr.Name, &tr.Table, &tr.Body); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan trigger", err)
		}
		tr.Timing, tr.Event = triggerClause(tr.Body)
		frag.Triggers = append(frag.Triggers, tr)
	}
	return frag, rowsErr(rows, "iterate triggers")
}

// Exotics has no analog for SQLite.
func (a *adapter) Exotics(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	return nil, errs.New(errs.ErrKindUnsupported, "sqlite has no engine-specific extras")
}

// --- helpers ---

// qident quotes a schema name for use as a catalog qualifier. Every layer
// query is qualified so attached databases are introspected as themselves,
// not as copies of main.
func qident(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// partialPredicate pulls the WHERE clause out of a CREATE INDEX statement.
// Returns "" for non-partial indexes and auto-indexes (which have no sql).
func partialPredicate(createSQL string) string {
	upper := strings.ToUpper(createSQL)
	i := strings.LastIndex(upper, " WHERE ")
	if i < 0 {
		return ""
	}
	return strings.TrimSpace(createSQL[i+len(" WHERE "):])
}

// triggerClause recovers timing and event from CREATE TRIGGER text.
func triggerClause(createSQL string) (timing, event string) {
	upper := strings.ToUpper(createSQL)
	switch {
	case strings.Contains(upper, "INSTEAD OF"):
		timing = "INSTEAD OF"
	case strings.Contains(upper, " BEFORE "):
		timing = "BEFORE"
	default:
		timing = "AFTER"
	}
	for _, ev := range []string{"INSERT", "UPDATE", "DELETE"} {
		if strings.Contains(upper, " "+ev) {
			event = ev
			break
		}
	}
	return timing, event
}

func rowsErr(rows dialect.Rows, msg string) error {
	if err := rows.Err(); err != nil {
		return errs.Wrap(errs.ErrKindCatalogQuery, msg, err)
	}
	return nil
}

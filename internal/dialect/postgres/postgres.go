// Package postgres implements the dialect adapter for PostgreSQL, reading
// pg_catalog and information_schema.
//
// Casing: PostgreSQL folds unquoted identifiers to lowercase at DDL time, so
// the adapter reports names exactly as stored in the catalog.
package postgres

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

func (a *adapter) Engine() model.Engine { return model.EnginePostgres }

func (a *adapter) Capabilities() dialect.Capabilities {
	return dialect.Capabilities{
		Layers: map[model.Layer]bool{
			model.LayerContainers:   true,
			model.LayerDependencies: true,
			model.LayerStructure:    true,
			model.LayerIndexes:      true,
			model.LayerLogic:        true,
			model.LayerExotics:      true,
		},
		ExoticFeatures: []string{"extensions"},
		Casing:         "as stored; unquoted identifiers were folded to lowercase by the server",
	}
}

// Containers lists user schemas, excluding the catalog and TOAST namespaces.
func (a *adapter) Containers(ctx context.Context, q dialect.Querier) ([]string, error) {
	const qry = `
		SELECT nspname
		FROM pg_catalog.pg_namespace
		WHERE nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND nspname NOT LIKE 'pg_temp_%'
		  AND nspname NOT LIKE 'pg_toast_temp_%'
		ORDER BY nspname`

	rows, err := q.Query(ctx, qry)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list schemas", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan schema name", err)
		}
		names = append(names, n)
	}
	return names, rowsErr(rows, "iterate schemas")
}

// Dependencies extracts enum/composite/domain types and sequences.
func (a *adapter) Dependencies(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	frag := &model.Fragment{}

	const typeQry = `
		SELECT t.typname,
		       CASE t.typtype WHEN 'e' THEN 'enum' WHEN 'c' THEN 'composite' ELSE 'domain' END,
		       COALESCE((SELECT string_agg(e.enumlabel, ',' ORDER BY e.enumsortorder)
		                 FROM pg_catalog.pg_enum e WHERE e.enumtypid = t.oid), '')
		FROM pg_catalog.pg_type t
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		  AND t.typtype IN ('e', 'c', 'd')
		  AND (t.typtype <> 'c' OR EXISTS (
		        SELECT 1 FROM pg_catalog.pg_class c
		        WHERE c.oid = t.typrelid AND c.relkind = 'c'))
		ORDER BY t.typname`

	rows, err := q.Query(ctx, typeQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list user types", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t model.UserType
		if err := rows.Scan(&t.Name, &t.Kind, &t.Definition); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan user type", err)
		}
		frag.Types = append(frag.Types, t)
	}
	if err := rowsErr(rows, "iterate user types"); err != nil {
		return nil, err
	}

	const seqQry = `
		SELECT sequencename, start_value, increment_by, last_value
		FROM pg_catalog.pg_sequences
		WHERE schemaname = $1
		ORDER BY sequencename`

	rows, err = q.Query(ctx, seqQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list sequences", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sq model.Sequence
		var current sql.NullInt64
		if err := rows.Scan(&sq.Name, &sq.Start, &sq.Increment, &current); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan sequence", err)
		}
		if current.Valid {
			v := current.Int64
			sq.Current = &v
		}
		frag.Sequences = append(frag.Sequences, sq)
	}
	return frag, rowsErr(rows, "iterate sequences")
}

// Structure extracts tables with columns and all four constraint kinds.
func (a *adapter) Structure(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	const tableQry = `
		SELECT tablename
		FROM pg_catalog.pg_tables
		WHERE schemaname = $1
		ORDER BY tablename`

	rows, err := q.Query(ctx, tableQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list tables", err)
	}
	defer rows.Close()

	tables := make(map[string]*model.Table)
	var order []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan table name", err)
		}
		tables[name] = &model.Table{Name: name}
		order = append(order, name)
	}
	if err := rowsErr(rows, "iterate tables"); err != nil {
		return nil, err
	}

	const colQry = `
		SELECT c.table_name,
		       c.column_name,
		       c.data_type,
		       c.character_maximum_length,
		       c.numeric_precision,
		       c.numeric_scale,
		       c.is_nullable = 'YES',
		       c.column_default,
		       c.ordinal_position,
		       c.is_identity = 'YES' OR c.is_generated = 'ALWAYS'
		FROM information_schema.columns c
		WHERE c.table_schema = $1
		ORDER BY c.table_name, c.ordinal_position`

	rows, err = q.Query(ctx, colQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list columns", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			tbl, dataType    string
			col              model.Column
			maxLen           sql.NullInt64
			precision, scale sql.NullInt64
			def              sql.NullString
		)
		if err := rows.Scan(&tbl, &col.Name, &dataType, &maxLen, &precision, &scale,
			&col.Nullable, &def, &col.Ordinal, &col.Generated); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan column", err)
		}
		col.NativeType = nativeType(dataType, maxLen, precision, scale)
		if def.Valid {
			v := def.String
			col.Default = &v
		}
		if t, ok := tables[tbl]; ok {
			t.Columns = append(t.Columns, col)
		}
	}
	if err := rowsErr(rows, "iterate columns"); err != nil {
		return nil, err
	}

	const conQry = `
		SELECT rel.relname,
		       con.conname,
		       con.contype::text,
		       COALESCE((SELECT string_agg(a.attname, ',' ORDER BY k.ord)
		                 FROM unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord)
		                 JOIN pg_catalog.pg_attribute a
		                   ON a.attrelid = con.conrelid AND a.attnum = k.attnum), ''),
		       COALESCE(fn.nspname, ''),
		       COALESCE(frel.relname, ''),
		       COALESCE((SELECT string_agg(a.attname, ',' ORDER BY k.ord)
		                 FROM unnest(con.confkey) WITH ORDINALITY AS k(attnum, ord)
		                 JOIN pg_catalog.pg_attribute a
		                   ON a.attrelid = con.confrelid AND a.attnum = k.attnum), ''),
		       pg_get_constraintdef(con.oid)
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class rel ON rel.oid = con.conrelid
		JOIN pg_catalog.pg_namespace nsp ON nsp.oid = rel.relnamespace
		LEFT JOIN pg_catalog.pg_class frel ON frel.oid = con.confrelid
		LEFT JOIN pg_catalog.pg_namespace fn ON fn.oid = frel.relnamespace
		WHERE nsp.nspname = $1
		  AND con.contype IN ('p', 'u', 'f', 'c')
		ORDER BY rel.relname, con.conname`

	rows, err = q.Query(ctx, conQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list constraints", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tbl, name, contype, cols, refSchema, refTable, refCols, def string
		if err := rows.Scan(&tbl, &name, &contype, &cols, &refSchema, &refTable, &refCols, &def); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan constraint", err)
		}
		t, ok := tables[tbl]
		if !ok {
			continue
		}
		con := model.Constraint{Name: name, Columns: splitList(cols)}
		switch contype {
		case "p":
			con.Kind = model.ConstraintPrimary
		case "u":
			con.Kind = model.ConstraintUnique
		case "c":
			con.Kind = model.ConstraintCheck
			con.Columns = nil
			con.Expression = def
		case "f":
			con.Kind = model.ConstraintForeign
			con.Ref = &model.FKRef{
				Schema:  refSchema,
				Table:   refTable,
				Columns: splitList(refCols),
			}
		}
		t.Constraints = append(t.Constraints, con)
	}
	if err := rowsErr(rows, "iterate constraints"); err != nil {
		return nil, err
	}

	frag := &model.Fragment{}
	for _, name := range order {
		frag.Tables = append(frag.Tables, *tables[name])
	}
	return frag, nil
}

// Indexes extracts secondary indexes from pg_index; primary key indexes are
// already represented as constraints. Only key columns are walked: INCLUDE
// columns are not part of the key and have no indoption entry.
func (a *adapter) Indexes(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	const qry = `
		SELECT t.relname,
		       i.relname,
		       ix.indisunique,
		       COALESCE(pg_get_expr(ix.indpred, ix.indrelid), ''),
		       COALESCE(a.attname, '(expr)'),
		       (ix.indoption[k.ord - 1] & 1) = 1,
		       k.ord
		FROM pg_catalog.pg_index ix
		JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
		JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		JOIN unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
		LEFT JOIN pg_catalog.pg_attribute a
		  ON a.attrelid = t.oid AND a.attnum = k.attnum
		WHERE n.nspname = $1
		  AND NOT ix.indisprimary
		  AND k.ord <= ix.indnkeyatts
		ORDER BY t.relname, i.relname, k.ord`

	rows, err := q.Query(ctx, qry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list indexes", err)
	}
	defer rows.Close()

	frag := &model.Fragment{}
	byName := make(map[string]*model.Index)
	var order []string
	for rows.Next() {
		var (
			tbl, name, pred, col string
			unique, desc         bool
			ord                  int64
		)
		if err := rows.Scan(&tbl, &name, &unique, &pred, &col, &desc, &ord); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan index", err)
		}
		k := tbl + "." + name
		idx, ok := byName[k]
		if !ok {
			idx = &model.Index{Table: tbl, Name: name, Unique: unique, Predicate: pred}
			byName[k] = idx
			order = append(order, k)
		}
		idx.Columns = append(idx.Columns, model.IndexColumn{Name: col, Desc: desc})
	}
	if err := rowsErr(rows, "iterate indexes"); err != nil {
		return nil, err
	}
	for _, k := range order {
		frag.Indexes = append(frag.Indexes, *byName[k])
	}
	return frag, nil
}

// Logic extracts views, routines, and triggers.
func (a *adapter) Logic(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	frag := &model.Fragment{}

	const viewQry = `
		SELECT viewname, COALESCE(definition, '')
		FROM pg_catalog.pg_views
		WHERE schemaname = $1
		ORDER BY viewname`

	rows, err := q.Query(ctx, viewQry, schema)
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

	const routineQry = `
		SELECT p.proname,
		       CASE p.prokind WHEN 'p' THEN 'procedure' ELSE 'function' END,
		       pg_get_function_identity_arguments(p.oid),
		       pg_get_functiondef(p.oid),
		       l.lanname
		FROM pg_catalog.pg_proc p
		JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
		JOIN pg_catalog.pg_language l ON l.oid = p.prolang
		WHERE n.nspname = $1
		  AND p.prokind IN ('f', 'p')
		  AND l.lanname <> 'internal'
		ORDER BY p.proname, 3`

	rows, err = q.Query(ctx, routineQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list routines", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r model.Routine
		var kind string
		if err := rows.Scan(&r.Name, &kind, &r.Signature, &r.Body, &r.Language); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan routine", err)
		}
		r.Kind = model.RoutineKind(kind)
		frag.Routines = append(frag.Routines, r)
	}
	if err := rowsErr(rows, "iterate routines"); err != nil {
		return nil, err
	}

	const triggerQry = `
		SELECT t.tgname,
		       c.relname,
		       CASE WHEN t.tgtype & 2 = 2 THEN 'BEFORE'
		            WHEN t.tgtype & 64 = 64 THEN 'INSTEAD OF'
		            ELSE 'AFTER' END,
		       CONCAT_WS(' OR ',
		            CASE WHEN t.tgtype & 4 = 4 THEN 'INSERT' END,
		            CASE WHEN t.tgtype & 8 = 8 THEN 'DELETE' END,
		            CASE WHEN t.tgtype & 16 = 16 THEN 'UPDATE' END,
		            CASE WHEN t.tgtype & 32 = 32 THEN 'TRUNCATE' END),
		       pg_get_triggerdef(t.oid)
		FROM pg_catalog.pg_trigger t
		JOIN pg_catalog.pg_class c ON c.oid = t.tgrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND NOT t.tgisinternal
		ORDER BY c.relname, t.tgname`

	rows, err = q.Query(ctx, triggerQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list triggers", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tr model.Trigger
		if err := rows.Scan(&tr.Name, &tr.Table, &tr.Timing, &tr.Event, &tr.Body); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan trigger", err)
		}
		frag.Triggers = append(frag.Triggers, tr)
	}
	return frag, rowsErr(rows, "iterate triggers")
}

// Exotics extracts installed extensions owned by the schema.
func (a *adapter) Exotics(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	const qry = `
		SELECT e.extname, e.extversion
		FROM pg_catalog.pg_extension e
		JOIN pg_catalog.pg_namespace n ON n.oid = e.extnamespace
		WHERE n.nspname = $1
		ORDER BY e.extname`

	rows, err := q.Query(ctx, qry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list extensions", err)
	}
	defer rows.Close()

	frag := &model.Fragment{}
	for rows.Next() {
		var name, version string
		if err := rows.Scan(&name, &version); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan extension", err)
		}
		frag.AddExotic("extensions", model.ExoticObject{
			Name:  name,
			Attrs: map[string]string{"version": version},
		})
	}
	return frag, rowsErr(rows, "iterate extensions")
}

// --- helpers ---

// nativeType rebuilds the engine-native type spelling from the
// information_schema parts.
func nativeType(dataType string, maxLen, precision, scale sql.NullInt64) string {
	switch {
	case maxLen.Valid:
		return fmt.Sprintf("%s(%d)", dataType, maxLen.Int64)
	case (dataType == "numeric" || dataType == "decimal") && precision.Valid:
		if scale.Valid && scale.Int64 > 0 {
			return fmt.Sprintf("%s(%d,%d)", dataType, precision.Int64, scale.Int64)
		}
		return fmt.Sprintf("%s(%d)", dataType, precision.Int64)
	default:
		return dataType
	}
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func rowsErr(rows dialect.Rows, msg string) error {
	if err := rows.Err(); err != nil {
		return errs.Wrap(errs.ErrKindCatalogQuery, msg, err)
	}
	return nil
}

// Package mysql implements the dialect adapter for MySQL, reading
// information_schema.
//
// MySQL has no user-defined types and no sequences, so the Dependencies
// layer is absent from its capabilities. Its exotic feature is the event
// scheduler.
//
// Casing: on the stock Linux images table names are stored lowercase
// (lower_case_table_names=0 stores as written but the catalog is
// case-sensitive); the adapter reports names exactly as the catalog stores
// them and normalizes nothing further.
package mysql

import (
	"context"
	"database/sql"
	"strings"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/dialect"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

func init() {
	dialect.Register(&adapter{})
}

type adapter struct{}

func (a *adapter) Engine() model.Engine { return model.EngineMySQL }

func (a *adapter) Capabilities() dialect.Capabilities {
	return dialect.Capabilities{
		Layers: map[model.Layer]bool{
			model.LayerContainers: true,
			model.LayerStructure:  true,
			model.LayerIndexes:    true,
			model.LayerLogic:      true,
			model.LayerExotics:    true,
		},
		Missing: map[model.Layer][]string{
			model.LayerDependencies: {"user types", "sequences"},
		},
		ExoticFeatures: []string{"events"},
		Casing:         "as stored; schema and table names are lowercase on the reference deployment",
	}
}

// Containers lists databases (schema == database in MySQL), excluding the
// system databases.
func (a *adapter) Containers(ctx context.Context, q dialect.Querier) ([]string, error) {
	const qry = `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		ORDER BY schema_name`

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

// Dependencies has no MySQL analog; the orchestrator skips it via
// capabilities, and a direct call reports Unsupported.
func (a *adapter) Dependencies(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	return nil, errs.New(errs.ErrKindUnsupported, "mysql has no user types or sequences")
}

// Structure extracts tables, columns, keys, and (on 8.0.16+) check
// constraints. On older servers the check query fails against a missing
// catalog table; that is recorded as a skip, not a layer failure.
func (a *adapter) Structure(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	const tableQry = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

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

	// column_type carries the full native spelling ("varchar(255)",
	// "int unsigned"), unlike the bare data_type column.
	const colQry = `
		SELECT table_name,
		       column_name,
		       column_type,
		       is_nullable = 'YES',
		       column_default,
		       ordinal_position,
		       extra LIKE '%auto_increment%' OR extra LIKE '%GENERATED%'
		FROM information_schema.columns
		WHERE table_schema = ?
		ORDER BY table_name, ordinal_position`

	rows, err = q.Query(ctx, colQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list columns", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			tbl string
			col model.Column
			def sql.NullString
		)
		if err := rows.Scan(&tbl, &col.Name, &col.NativeType, &col.Nullable,
			&def, &col.Ordinal, &col.Generated); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan column", err)
		}
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

	const keyQry = `
		SELECT tc.table_name,
		       tc.constraint_name,
		       tc.constraint_type,
		       GROUP_CONCAT(kcu.column_name ORDER BY kcu.ordinal_position)
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		 AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = ?
		  AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')
		GROUP BY tc.table_name, tc.constraint_name, tc.constraint_type
		ORDER BY tc.table_name, tc.constraint_name`

	rows, err = q.Query(ctx, keyQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list key constraints", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tbl, name, kind, cols string
		if err := rows.Scan(&tbl, &name, &kind, &cols); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan key constraint", err)
		}
		t, ok := tables[tbl]
		if !ok {
			continue
		}
		con := model.Constraint{Name: name, Columns: splitList(cols)}
		if kind == "PRIMARY KEY" {
			con.Kind = model.ConstraintPrimary
		} else {
			con.Kind = model.ConstraintUnique
		}
		t.Constraints = append(t.Constraints, con)
	}
	if err := rowsErr(rows, "iterate key constraints"); err != nil {
		return nil, err
	}

	const fkQry = `
		SELECT kcu.table_name,
		       kcu.constraint_name,
		       GROUP_CONCAT(kcu.column_name ORDER BY kcu.ordinal_position),
		       kcu.referenced_table_schema,
		       kcu.referenced_table_name,
		       GROUP_CONCAT(kcu.referenced_column_name ORDER BY kcu.ordinal_position)
		FROM information_schema.key_column_usage kcu
		WHERE kcu.table_schema = ?
		  AND kcu.referenced_table_name IS NOT NULL
		GROUP BY kcu.table_name, kcu.constraint_name,
		         kcu.referenced_table_schema, kcu.referenced_table_name
		ORDER BY kcu.table_name, kcu.constraint_name`

	rows, err = q.Query(ctx, fkQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list foreign keys", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tbl, name, cols, refSchema, refTable, refCols string
		if err := rows.Scan(&tbl, &name, &cols, &refSchema, &refTable, &refCols); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan foreign key", err)
		}
		t, ok := tables[tbl]
		if !ok {
			continue
		}
		t.Constraints = append(t.Constraints, model.Constraint{
			Name:    name,
			Kind:    model.ConstraintForeign,
			Columns: splitList(cols),
			Ref: &model.FKRef{
				Schema:  refSchema,
				Table:   refTable,
				Columns: splitList(refCols),
			},
		})
	}
	if err := rowsErr(rows, "iterate foreign keys"); err != nil {
		return nil, err
	}

	frag := &model.Fragment{}

	const checkQry = `
		SELECT tc.table_name, cc.constraint_name, cc.check_clause
		FROM information_schema.check_constraints cc
		JOIN information_schema.table_constraints tc
		  ON tc.constraint_schema = cc.constraint_schema
		 AND tc.constraint_name = cc.constraint_name
		WHERE cc.constraint_schema = ?
		ORDER BY tc.table_name, cc.constraint_name`

	rows, err = q.Query(ctx, checkQry, schema)
	if err != nil {
		// information_schema.check_constraints only exists on 8.0.16+.
		frag.Skip("check constraints", "catalog not readable: "+err.Error())
	} else {
		defer rows.Close()
		for rows.Next() {
			var tbl, name, clause string
			if err := rows.Scan(&tbl, &name, &clause); err != nil {
				return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan check constraint", err)
			}
			if t, ok := tables[tbl]; ok {
				t.Constraints = append(t.Constraints, model.Constraint{
					Name:       name,
					Kind:       model.ConstraintCheck,
					Expression: clause,
				})
			}
		}
		if err := rowsErr(rows, "iterate check constraints"); err != nil {
			return nil, err
		}
	}

	for _, name := range order {
		frag.Tables = append(frag.Tables, *tables[name])
	}
	return frag, nil
}

// Indexes extracts secondary indexes from information_schema.statistics.
func (a *adapter) Indexes(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	const qry = `
		SELECT table_name,
		       index_name,
		       non_unique = 0,
		       COALESCE(collation, 'A') = 'D',
		       COALESCE(column_name, '(expr)'),
		       seq_in_index
		FROM information_schema.statistics
		WHERE table_schema = ?
		  AND index_name <> 'PRIMARY'
		ORDER BY table_name, index_name, seq_in_index`

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
			tbl, name, col string
			unique, desc   bool
			seq            int64
		)
		if err := rows.Scan(&tbl, &name, &unique, &desc, &col, &seq); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan index", err)
		}
		k := tbl + "." + name
		idx, ok := byName[k]
		if !ok {
			idx = &model.Index{Table: tbl, Name: name, Unique: unique}
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

// Logic extracts views, routines (with parameter signatures), and triggers.
func (a *adapter) Logic(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	frag := &model.Fragment{}

	const viewQry = `
		SELECT table_name, COALESCE(view_definition, '')
		FROM information_schema.views
		WHERE table_schema = ?
		ORDER BY table_name`

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
		if v.Definition == "" {
			// view_definition is NULL when the connected user lacks SHOW VIEW.
			frag.Skip("view "+schema+"."+v.Name, "definition not readable with current privileges")
		}
		frag.Views = append(frag.Views, v)
	}
	if err := rowsErr(rows, "iterate views"); err != nil {
		return nil, err
	}

	// Parameter lists, aggregated per routine for the signature field.
	sigs := make(map[string]string)
	const paramQry = `
		SELECT specific_name,
		       GROUP_CONCAT(CONCAT_WS(' ', parameter_mode, parameter_name, dtd_identifier)
		                    ORDER BY ordinal_position SEPARATOR ', ')
		FROM information_schema.parameters
		WHERE specific_schema = ?
		  AND parameter_name IS NOT NULL
		GROUP BY specific_name`

	rows, err = q.Query(ctx, paramQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list routine parameters", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, sig string
		if err := rows.Scan(&name, &sig); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan routine parameters", err)
		}
		sigs[name] = sig
	}
	if err := rowsErr(rows, "iterate routine parameters"); err != nil {
		return nil, err
	}

	const routineQry = `
		SELECT routine_name, LOWER(routine_type), routine_definition
		FROM information_schema.routines
		WHERE routine_schema = ?
		ORDER BY routine_name`

	rows, err = q.Query(ctx, routineQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list routines", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r model.Routine
		var kind string
		var body sql.NullString
		if err := rows.Scan(&r.Name, &kind, &body); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan routine", err)
		}
		r.Kind = model.RoutineKind(kind)
		r.Language = "sql"
		r.Signature = sigs[r.Name]
		if body.Valid {
			r.Body = body.String
		} else {
			frag.Skip(kind+" "+schema+"."+r.Name, "body not readable with current privileges")
		}
		frag.Routines = append(frag.Routines, r)
	}
	if err := rowsErr(rows, "iterate routines"); err != nil {
		return nil, err
	}

	const triggerQry = `
		SELECT trigger_name,
		       event_object_table,
		       event_manipulation,
		       action_timing,
		       action_statement
		FROM information_schema.triggers
		WHERE trigger_schema = ?
		ORDER BY event_object_table, trigger_name`

	rows, err = q.Query(ctx, triggerQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list triggers", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tr model.Trigger
		if err := rows.Scan(&tr.Name, &tr.Table, &tr.Event, &tr.Timing, &tr.Body); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan trigger", err)
		}
		frag.Triggers = append(frag.Triggers, tr)
	}
	return frag, rowsErr(rows, "iterate triggers")
}

// Exotics extracts scheduler events.
func (a *adapter) Exotics(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	const qry = `
		SELECT event_name,
		       status,
		       event_type,
		       COALESCE(CONCAT_WS(' ', interval_value, interval_field), ''),
		       COALESCE(CAST(execute_at AS CHAR), '')
		FROM information_schema.events
		WHERE event_schema = ?
		ORDER BY event_name`

	rows, err := q.Query(ctx, qry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list events", err)
	}
	defer rows.Close()

	frag := &model.Fragment{}
	for rows.Next() {
		var name, status, kind, every, at string
		if err := rows.Scan(&name, &status, &kind, &every, &at); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan event", err)
		}
		attrs := map[string]string{"status": status, "type": kind}
		if every != "" {
			attrs["every"] = every
		}
		if at != "" {
			attrs["at"] = at
		}
		frag.AddExotic("events", model.ExoticObject{Name: name, Attrs: attrs})
	}
	return frag, rowsErr(rows, "iterate events")
}

// --- helpers ---

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

// Package mssql implements the dialect adapter for SQL Server, reading the
// sys.* catalog views. Procedural code comes from sys.sql_modules, which
// carries the original definition text for views, procedures, functions, and
// triggers alike.
//
// Casing: identifier case sensitivity follows the database collation; the
// adapter reports names exactly as sys.* stores them.
package mssql

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

func (a *adapter) Engine() model.Engine { return model.EngineSQLServer }

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
		ExoticFeatures: []string{"synonyms"},
		Casing:         "as stored; case sensitivity follows the database collation",
	}
}

// Containers lists user schemas, excluding the fixed database roles and
// system schemas that exist in every database.
func (a *adapter) Containers(ctx context.Context, q dialect.Querier) ([]string, error) {
	const qry = `
		SELECT name
		FROM sys.schemas
		WHERE name NOT IN ('sys', 'INFORMATION_SCHEMA', 'guest')
		  AND name NOT LIKE 'db[_]%'
		ORDER BY name`

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

// Dependencies extracts user-defined types and sequences.
func (a *adapter) Dependencies(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	frag := &model.Fragment{}

	const typeQry = `
		SELECT t.name,
		       CASE WHEN t.is_table_type = 1 THEN 'table' ELSE 'alias' END,
		       COALESCE(bt.name, '')
		FROM sys.types t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		LEFT JOIN sys.types bt
		  ON bt.user_type_id = t.system_type_id AND bt.is_user_defined = 0
		WHERE t.is_user_defined = 1
		  AND s.name = @p1
		ORDER BY t.name`

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
		SELECT sq.name,
		       CAST(sq.start_value AS bigint),
		       CAST(sq.increment AS bigint),
		       CAST(sq.current_value AS bigint)
		FROM sys.sequences sq
		JOIN sys.schemas s ON s.schema_id = sq.schema_id
		WHERE s.name = @p1
		ORDER BY sq.name`

	rows, err = q.Query(ctx, seqQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list sequences", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sq model.Sequence
		var current int64
		if err := rows.Scan(&sq.Name, &sq.Start, &sq.Increment, &current); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan sequence", err)
		}
		sq.Current = &current
		frag.Sequences = append(frag.Sequences, sq)
	}
	return frag, rowsErr(rows, "iterate sequences")
}

// Structure extracts tables with columns and all four constraint kinds.
func (a *adapter) Structure(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	// Native type spelling is rebuilt from sys.types plus length/precision;
	// nvarchar lengths are stored in bytes, hence the division by two.
	const colQry = `
		SELECT t.name,
		       c.name,
		       ty.name +
		       CASE WHEN ty.name IN ('varchar', 'char', 'varbinary', 'binary') THEN
		              CASE WHEN c.max_length = -1 THEN '(max)'
		                   ELSE '(' + CAST(c.max_length AS varchar(10)) + ')' END
		            WHEN ty.name IN ('nvarchar', 'nchar') THEN
		              CASE WHEN c.max_length = -1 THEN '(max)'
		                   ELSE '(' + CAST(c.max_length / 2 AS varchar(10)) + ')' END
		            WHEN ty.name IN ('decimal', 'numeric') THEN
		              '(' + CAST(c.precision AS varchar(10)) + ',' + CAST(c.scale AS varchar(10)) + ')'
		            ELSE '' END,
		       c.is_nullable,
		       dc.definition,
		       c.column_id,
		       CAST(CASE WHEN c.is_identity = 1 OR c.is_computed = 1 THEN 1 ELSE 0 END AS bit)
		FROM sys.columns c
		JOIN sys.tables t ON t.object_id = c.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
		WHERE s.name = @p1
		ORDER BY t.name, c.column_id`

	rows, err := q.Query(ctx, colQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list columns", err)
	}
	defer rows.Close()

	tables := make(map[string]*model.Table)
	var order []string
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
		t, ok := tables[tbl]
		if !ok {
			t = &model.Table{Name: tbl}
			tables[tbl] = t
			order = append(order, tbl)
		}
		t.Columns = append(t.Columns, col)
	}
	if err := rowsErr(rows, "iterate columns"); err != nil {
		return nil, err
	}

	const keyQry = `
		SELECT t.name,
		       kc.name,
		       kc.type,
		       STUFF((SELECT ',' + col.name
		              FROM sys.index_columns ic
		              JOIN sys.columns col
		                ON col.object_id = ic.object_id AND col.column_id = ic.column_id
		              WHERE ic.object_id = kc.parent_object_id
		                AND ic.index_id = kc.unique_index_id
		              ORDER BY ic.key_ordinal
		              FOR XML PATH('')), 1, 1, '')
		FROM sys.key_constraints kc
		JOIN sys.tables t ON t.object_id = kc.parent_object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE s.name = @p1
		ORDER BY t.name, kc.name`

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
		if strings.TrimSpace(kind) == "PK" {
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
		SELECT t.name,
		       fk.name,
		       rs.name,
		       rt.name,
		       STUFF((SELECT ',' + pc.name
		              FROM sys.foreign_key_columns fkc
		              JOIN sys.columns pc
		                ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
		              WHERE fkc.constraint_object_id = fk.object_id
		              ORDER BY fkc.constraint_column_id
		              FOR XML PATH('')), 1, 1, ''),
		       STUFF((SELECT ',' + rc.name
		              FROM sys.foreign_key_columns fkc
		              JOIN sys.columns rc
		                ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
		              WHERE fkc.constraint_object_id = fk.object_id
		              ORDER BY fkc.constraint_column_id
		              FOR XML PATH('')), 1, 1, '')
		FROM sys.foreign_keys fk
		JOIN sys.tables t ON t.object_id = fk.parent_object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
		JOIN sys.schemas rs ON rs.schema_id = rt.schema_id
		WHERE s.name = @p1
		ORDER BY t.name, fk.name`

	rows, err = q.Query(ctx, fkQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list foreign keys", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tbl, name, refSchema, refTable, cols, refCols string
		if err := rows.Scan(&tbl, &name, &refSchema, &refTable, &cols, &refCols); err != nil {
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

	const checkQry = `
		SELECT t.name, cc.name, cc.definition
		FROM sys.check_constraints cc
		JOIN sys.tables t ON t.object_id = cc.parent_object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE s.name = @p1
		ORDER BY t.name, cc.name`

	rows, err = q.Query(ctx, checkQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list check constraints", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tbl, name, def string
		if err := rows.Scan(&tbl, &name, &def); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan check constraint", err)
		}
		if t, ok := tables[tbl]; ok {
			t.Constraints = append(t.Constraints, model.Constraint{
				Name:       name,
				Kind:       model.ConstraintCheck,
				Expression: def,
			})
		}
	}
	if err := rowsErr(rows, "iterate check constraints"); err != nil {
		return nil, err
	}

	frag := &model.Fragment{}
	for _, name := range order {
		frag.Tables = append(frag.Tables, *tables[name])
	}
	return frag, nil
}

// Indexes extracts secondary indexes, including filter predicates and
// per-column sort direction. PK and unique-constraint backing indexes are
// already represented as constraints.
func (a *adapter) Indexes(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	const qry = `
		SELECT t.name,
		       i.name,
		       i.is_unique,
		       COALESCE(i.filter_definition, ''),
		       c.name,
		       ic.is_descending_key,
		       ic.key_ordinal
		FROM sys.indexes i
		JOIN sys.tables t ON t.object_id = i.object_id
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
		WHERE s.name = @p1
		  AND i.type > 0
		  AND i.is_primary_key = 0
		  AND i.is_unique_constraint = 0
		  AND ic.key_ordinal > 0
		ORDER BY t.name, i.name, ic.key_ordinal`

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

// Logic extracts views, procedures, and functions from sys.sql_modules, and
// triggers (with firing metadata) from sys.triggers.
func (a *adapter) Logic(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	frag := &model.Fragment{}

	const moduleQry = `
		SELECT o.name,
		       RTRIM(o.type),
		       COALESCE(m.definition, ''),
		       COALESCE(STUFF((SELECT ', ' + p.name + ' ' + ty.name
		                       FROM sys.parameters p
		                       JOIN sys.types ty ON ty.user_type_id = p.user_type_id
		                       WHERE p.object_id = o.object_id AND p.parameter_id > 0
		                       ORDER BY p.parameter_id
		                       FOR XML PATH('')), 1, 2, ''), '')
		FROM sys.objects o
		JOIN sys.sql_modules m ON m.object_id = o.object_id
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		WHERE s.name = @p1
		  AND o.type IN ('V', 'P', 'FN', 'IF', 'TF')
		ORDER BY o.name`

	rows, err := q.Query(ctx, moduleQry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list sql modules", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, kind, def, sig string
		if err := rows.Scan(&name, &kind, &def, &sig); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan sql module", err)
		}
		switch kind {
		case "V":
			if def == "" {
				frag.Skip("view "+schema+"."+name, "definition encrypted or not readable")
			}
			frag.Views = append(frag.Views, model.View{Name: name, Definition: def})
		case "P":
			if def == "" {
				frag.Skip("procedure "+schema+"."+name, "definition encrypted or not readable")
			}
			frag.Routines = append(frag.Routines, model.Routine{
				Name: name, Kind: model.RoutineProcedure, Signature: sig, Body: def, Language: "tsql",
			})
		default: // FN, IF, TF
			if def == "" {
				frag.Skip("function "+schema+"."+name, "definition encrypted or not readable")
			}
			frag.Routines = append(frag.Routines, model.Routine{
				Name: name, Kind: model.RoutineFunction, Signature: sig, Body: def, Language: "tsql",
			})
		}
	}
	if err := rowsErr(rows, "iterate sql modules"); err != nil {
		return nil, err
	}

	const triggerQry = `
		SELECT tr.name,
		       pt.name,
		       CASE WHEN tr.is_instead_of_trigger = 1 THEN 'INSTEAD OF' ELSE 'AFTER' END,
		       COALESCE(STUFF((SELECT ' OR ' + te.type_desc
		                       FROM sys.trigger_events te
		                       WHERE te.object_id = tr.object_id
		                       FOR XML PATH('')), 1, 4, ''), ''),
		       COALESCE(m.definition, '')
		FROM sys.triggers tr
		JOIN sys.tables pt ON pt.object_id = tr.parent_id
		JOIN sys.schemas s ON s.schema_id = pt.schema_id
		LEFT JOIN sys.sql_modules m ON m.object_id = tr.object_id
		WHERE s.name = @p1
		ORDER BY pt.name, tr.name`

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
		if tr.Body == "" {
			// Encrypted modules have no definition in sys.sql_modules.
			frag.Skip("trigger "+schema+"."+tr.Name, "definition encrypted or not readable")
		}
		frag.Triggers = append(frag.Triggers, tr)
	}
	return frag, rowsErr(rows, "iterate triggers")
}

// Exotics extracts synonyms.
func (a *adapter) Exotics(ctx context.Context, q dialect.Querier, schema string) (*model.Fragment, error) {
	const qry = `
		SELECT sy.name, sy.base_object_name
		FROM sys.synonyms sy
		JOIN sys.schemas s ON s.schema_id = sy.schema_id
		WHERE s.name = @p1
		ORDER BY sy.name`

	rows, err := q.Query(ctx, qry, schema)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindCatalogQuery, "list synonyms", err)
	}
	defer rows.Close()

	frag := &model.Fragment{}
	for rows.Next() {
		var name, base string
		if err := rows.Scan(&name, &base); err != nil {
			return nil, errs.Wrap(errs.ErrKindCatalogQuery, "scan synonym", err)
		}
		frag.AddExotic("synonyms", model.ExoticObject{
			Name:  name,
			Attrs: map[string]string{"base_object": base},
		})
	}
	return frag, rowsErr(rows, "iterate synonyms")
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

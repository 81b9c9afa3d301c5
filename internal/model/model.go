// Package model defines the canonical, engine-neutral schema types shared by
// every dialect adapter and by the orchestrator.
//
// All entities are plain values. A Snapshot is assembled once per
// introspection run through a Builder and never mutated afterwards —
// downstream consumers (diff, serialization, reporting) operate on copies.
package model

import "time"

// Engine identifies the database engine a snapshot was taken from.
type Engine string

const (
	EngineMySQL     Engine = "mysql"
	EnginePostgres  Engine = "postgres"
	EngineSQLServer Engine = "sqlserver"
	EngineSQLite    Engine = "sqlite"
)

// Valid reports whether e is one of the supported engines.
func (e Engine) Valid() bool {
	switch e {
	case EngineMySQL, EnginePostgres, EngineSQLServer, EngineSQLite:
		return true
	}
	return false
}

// Column is a single table column. Ordinal preserves the physical
// declaration order; NativeType keeps the engine's own spelling while Type
// carries the normalized taxonomy name assigned after extraction.
type Column struct {
	Name       string  `json:"name"`
	Type       string  `json:"type,omitempty"`
	NativeType string  `json:"native_type"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default,omitempty"`
	Ordinal    int     `json:"ordinal"`
	Generated  bool    `json:"generated,omitempty"`
}

// ConstraintKind enumerates the constraint variants a Table may carry.
type ConstraintKind string

const (
	ConstraintPrimary ConstraintKind = "primary"
	ConstraintUnique  ConstraintKind = "unique"
	ConstraintCheck   ConstraintKind = "check"
	ConstraintForeign ConstraintKind = "foreign"
)

// FKRef is the target side of a foreign key. Unresolved is set by the
// orchestrator when the referenced table is outside the introspected scope —
// the reference is recorded, never dropped.
type FKRef struct {
	Schema     string   `json:"schema"`
	Table      string   `json:"table"`
	Columns    []string `json:"columns,omitempty"`
	Unresolved bool     `json:"unresolved,omitempty"`
}

// Constraint is a primary key, unique, check, or foreign key constraint.
// Expression is the opaque check clause; Ref is set only for foreign keys.
type Constraint struct {
	Name       string         `json:"name"`
	Kind       ConstraintKind `json:"kind"`
	Columns    []string       `json:"columns,omitempty"`
	Expression string         `json:"expression,omitempty"`
	Ref        *FKRef         `json:"ref,omitempty"`
}

// IndexColumn is one (column, direction) pair of an index key.
type IndexColumn struct {
	Name string `json:"name"`
	Desc bool   `json:"desc,omitempty"`
}

// Index is a secondary index on a table. Predicate is the opaque partial
// index filter, empty when the index covers every row.
type Index struct {
	Table     string        `json:"table"`
	Name      string        `json:"name"`
	Columns   []IndexColumn `json:"columns"`
	Unique    bool          `json:"unique,omitempty"`
	Predicate string        `json:"predicate,omitempty"`
}

// Table owns an ordered sequence of Columns, its Constraints (at most one
// primary key), and the Indexes that reference it.
type Table struct {
	Schema      string       `json:"schema"`
	Name        string       `json:"name"`
	Columns     []Column     `json:"columns"`
	Constraints []Constraint `json:"constraints,omitempty"`
	Indexes     []Index      `json:"indexes,omitempty"`
}

// PrimaryKey returns the table's primary key constraint, or nil.
func (t *Table) PrimaryKey() *Constraint {
	for i := range t.Constraints {
		if t.Constraints[i].Kind == ConstraintPrimary {
			return &t.Constraints[i]
		}
	}
	return nil
}

// Column returns the column with the given name, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// UserType is a named composite/enum/domain/alias type.
// Definition is opaque (enum labels, base type, …).
type UserType struct {
	Schema     string `json:"schema"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Definition string `json:"definition,omitempty"`
}

// Sequence is a named counter generator. Current is nil when the engine does
// not expose the live value (or the sequence was never advanced).
type Sequence struct {
	Schema    string `json:"schema"`
	Name      string `json:"name"`
	Start     int64  `json:"start"`
	Increment int64  `json:"increment"`
	Current   *int64 `json:"current,omitempty"`
}

// View is a named stored query. DependsOn is best-effort — an empty set is
// not an error.
type View struct {
	Schema     string   `json:"schema"`
	Name       string   `json:"name"`
	Definition string   `json:"definition"`
	DependsOn  []string `json:"depends_on,omitempty"`
}

// RoutineKind distinguishes procedures from functions.
type RoutineKind string

const (
	RoutineProcedure RoutineKind = "procedure"
	RoutineFunction  RoutineKind = "function"
)

// Routine is a stored procedure or function. Body and Signature are opaque.
type Routine struct {
	Schema    string      `json:"schema"`
	Name      string      `json:"name"`
	Kind      RoutineKind `json:"kind"`
	Signature string      `json:"signature,omitempty"`
	Body      string      `json:"body"`
	Language  string      `json:"language,omitempty"`
}

// Trigger fires on Event (INSERT/UPDATE/DELETE/…) with the given Timing
// (BEFORE/AFTER/INSTEAD OF) on its owning table.
type Trigger struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Name   string `json:"name"`
	Event  string `json:"event"`
	Timing string `json:"timing"`
	Body   string `json:"body"`
}

// ExoticObject is one instance of an engine-specific feature (a MySQL event,
// a SQL Server synonym, a Postgres extension, …). Attrs is an open key/value
// bag so new engine concepts never change the Snapshot shape.
type ExoticObject struct {
	Name  string            `json:"name"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Schema is a named container owning every object extracted for it.
// Exotics is keyed by feature name ("events", "synonyms", "extensions", …).
type Schema struct {
	Name      string                    `json:"name"`
	Types     []UserType                `json:"types,omitempty"`
	Sequences []Sequence                `json:"sequences,omitempty"`
	Tables    []Table                   `json:"tables,omitempty"`
	Views     []View                    `json:"views,omitempty"`
	Routines  []Routine                 `json:"routines,omitempty"`
	Triggers  []Trigger                 `json:"triggers,omitempty"`
	Exotics   map[string][]ExoticObject `json:"exotics,omitempty"`
}

// Table returns the table with the given name, or nil.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// Snapshot is the root aggregate: the complete canonical schema capture of
// one database at one point in time, plus the manifest recording what was
// attempted per layer.
type Snapshot struct {
	Engine   Engine    `json:"engine"`
	TakenAt  time.Time `json:"taken_at"`
	Schemas  []Schema  `json:"schemas"`
	Manifest Manifest  `json:"manifest"`
}

// Schema returns the schema with the given name, or nil.
func (s *Snapshot) Schema(name string) *Schema {
	for i := range s.Schemas {
		if s.Schemas[i].Name == name {
			return &s.Schemas[i]
		}
	}
	return nil
}

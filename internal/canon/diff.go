package canon

import (
	"fmt"
	"strings"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// Mode selects how column types are compared.
type Mode int

const (
	// ModeSemantic compares taxonomy types: Postgres TEXT and SQL Server
	// NVARCHAR(MAX) are the same type.
	ModeSemantic Mode = iota

	// ModeStrict compares native spellings byte-wise.
	ModeStrict
)

// ChangeKind classifies one reported difference.
type ChangeKind string

const (
	ChangeAdded       ChangeKind = "added"
	ChangeRemoved     ChangeKind = "removed"
	ChangeType        ChangeKind = "type_changed"
	ChangeNullability ChangeKind = "nullability_changed"
	ChangeDefault     ChangeKind = "default_changed"
	ChangeColumns     ChangeKind = "columns_changed"
	ChangeUnique      ChangeKind = "uniqueness_changed"
	ChangeDefinition  ChangeKind = "definition_changed"
)

// Change is one difference between two snapshots. Path is the dotted object
// path ("schema.table.column"); Entity names the object class.
type Change struct {
	Entity string     `json:"entity"`
	Path   string     `json:"path"`
	Kind   ChangeKind `json:"kind"`
	From   string     `json:"from,omitempty"`
	To     string     `json:"to,omitempty"`
}

func (c Change) String() string {
	if c.From != "" || c.To != "" {
		return fmt.Sprintf("%s %s: %s (%s -> %s)", c.Entity, c.Path, c.Kind, c.From, c.To)
	}
	return fmt.Sprintf("%s %s: %s", c.Entity, c.Path, c.Kind)
}

// Diff reports the changes needed to get from a to b. Both snapshots are
// canonicalized first, so input ordering never affects the report. Changes
// come out in canonical order: schema, then object class, then name.
func Diff(a, b *model.Snapshot, mode Mode) []Change {
	ca, cb := Canonicalize(a), Canonicalize(b)

	var changes []Change
	bySchema := make(map[string]*model.Schema, len(cb.Schemas))
	for i := range cb.Schemas {
		bySchema[cb.Schemas[i].Name] = &cb.Schemas[i]
	}
	seen := make(map[string]bool, len(ca.Schemas))
	for i := range ca.Schemas {
		sa := &ca.Schemas[i]
		seen[sa.Name] = true
		sb, ok := bySchema[sa.Name]
		if !ok {
			changes = append(changes, Change{Entity: "schema", Path: sa.Name, Kind: ChangeRemoved})
			continue
		}
		changes = append(changes, diffSchema(sa, sb, ca.Engine, cb.Engine, mode)...)
	}
	for i := range cb.Schemas {
		if !seen[cb.Schemas[i].Name] {
			changes = append(changes, Change{Entity: "schema", Path: cb.Schemas[i].Name, Kind: ChangeAdded})
		}
	}
	return changes
}

func diffSchema(a, b *model.Schema, ea, eb model.Engine, mode Mode) []Change {
	var changes []Change

	changes = append(changes, diffNamed(a.Name, "type",
		a.Types, b.Types,
		func(t model.UserType) string { return t.Name },
		func(p string, x, y model.UserType) []Change {
			if x.Kind != y.Kind || x.Definition != y.Definition {
				return []Change{{Entity: "type", Path: p, Kind: ChangeDefinition,
					From: x.Kind + " " + x.Definition, To: y.Kind + " " + y.Definition}}
			}
			return nil
		})...)

	changes = append(changes, diffNamed(a.Name, "sequence",
		a.Sequences, b.Sequences,
		func(s model.Sequence) string { return s.Name },
		func(p string, x, y model.Sequence) []Change {
			// Current is runtime state, not schema shape.
			if x.Start != y.Start || x.Increment != y.Increment {
				return []Change{{Entity: "sequence", Path: p, Kind: ChangeDefinition,
					From: fmt.Sprintf("start=%d incr=%d", x.Start, x.Increment),
					To:   fmt.Sprintf("start=%d incr=%d", y.Start, y.Increment)}}
			}
			return nil
		})...)

	changes = append(changes, diffNamed(a.Name, "table",
		a.Tables, b.Tables,
		func(t model.Table) string { return t.Name },
		func(p string, x, y model.Table) []Change {
			return diffTable(p, &x, &y, ea, eb, mode)
		})...)

	changes = append(changes, diffNamed(a.Name, "view",
		a.Views, b.Views,
		func(v model.View) string { return v.Name },
		func(p string, x, y model.View) []Change {
			if x.Definition != y.Definition {
				return []Change{{Entity: "view", Path: p, Kind: ChangeDefinition}}
			}
			return nil
		})...)

	changes = append(changes, diffNamed(a.Name, "routine",
		a.Routines, b.Routines,
		func(r model.Routine) string { return r.Name + "(" + r.Signature + ")" },
		func(p string, x, y model.Routine) []Change {
			if x.Body != y.Body || x.Kind != y.Kind {
				return []Change{{Entity: "routine", Path: p, Kind: ChangeDefinition}}
			}
			return nil
		})...)

	changes = append(changes, diffNamed(a.Name, "trigger",
		a.Triggers, b.Triggers,
		func(t model.Trigger) string { return t.Name },
		func(p string, x, y model.Trigger) []Change {
			if x.Body != y.Body || x.Timing != y.Timing || x.Event != y.Event || x.Table != y.Table {
				return []Change{{Entity: "trigger", Path: p, Kind: ChangeDefinition}}
			}
			return nil
		})...)

	for _, feature := range sortedKeys(mergedKeys(a.Exotics, b.Exotics)) {
		changes = append(changes, diffNamed(a.Name+"."+feature, "exotic",
			a.Exotics[feature], b.Exotics[feature],
			func(o model.ExoticObject) string { return o.Name },
			func(p string, x, y model.ExoticObject) []Change {
				if !mapsEqual(x.Attrs, y.Attrs) {
					return []Change{{Entity: "exotic", Path: p, Kind: ChangeDefinition}}
				}
				return nil
			})...)
	}
	return changes
}

func diffTable(path string, a, b *model.Table, ea, eb model.Engine, mode Mode) []Change {
	var changes []Change

	changes = append(changes, diffNamed(path, "column",
		a.Columns, b.Columns,
		func(c model.Column) string { return c.Name },
		func(p string, x, y model.Column) []Change {
			var out []Change
			fromType, toType := columnType(x, ea, mode), columnType(y, eb, mode)
			if fromType != toType {
				out = append(out, Change{Entity: "column", Path: p, Kind: ChangeType,
					From: fromType, To: toType})
			}
			if x.Nullable != y.Nullable {
				out = append(out, Change{Entity: "column", Path: p, Kind: ChangeNullability,
					From: fmt.Sprintf("%t", x.Nullable), To: fmt.Sprintf("%t", y.Nullable)})
			}
			if deref(x.Default) != deref(y.Default) {
				out = append(out, Change{Entity: "column", Path: p, Kind: ChangeDefault,
					From: deref(x.Default), To: deref(y.Default)})
			}
			return out
		})...)

	changes = append(changes, diffNamed(path, "constraint",
		a.Constraints, b.Constraints,
		func(c model.Constraint) string { return c.Name },
		func(p string, x, y model.Constraint) []Change {
			var out []Change
			if strings.Join(x.Columns, ",") != strings.Join(y.Columns, ",") {
				out = append(out, Change{Entity: "constraint", Path: p, Kind: ChangeColumns,
					From: strings.Join(x.Columns, ","), To: strings.Join(y.Columns, ",")})
			}
			if x.Kind != y.Kind || x.Expression != y.Expression || !refsEqual(x.Ref, y.Ref) {
				out = append(out, Change{Entity: "constraint", Path: p, Kind: ChangeDefinition})
			}
			return out
		})...)

	changes = append(changes, diffNamed(path, "index",
		a.Indexes, b.Indexes,
		func(i model.Index) string { return i.Name },
		func(p string, x, y model.Index) []Change {
			var out []Change
			if indexKey(x) != indexKey(y) {
				out = append(out, Change{Entity: "index", Path: p, Kind: ChangeColumns,
					From: indexKey(x), To: indexKey(y)})
			}
			if x.Unique != y.Unique {
				out = append(out, Change{Entity: "index", Path: p, Kind: ChangeUnique,
					From: fmt.Sprintf("%t", x.Unique), To: fmt.Sprintf("%t", y.Unique)})
			}
			if x.Predicate != y.Predicate {
				out = append(out, Change{Entity: "index", Path: p, Kind: ChangeDefinition,
					From: x.Predicate, To: y.Predicate})
			}
			return out
		})...)

	return changes
}

// diffNamed runs the generic added/removed/compare walk for one object class.
// Both slices must already be in canonical (sorted) order.
func diffNamed[T any](prefix, entity string, as, bs []T,
	key func(T) string, compare func(path string, a, b T) []Change) []Change {

	var changes []Change
	byKey := make(map[string]T, len(bs))
	for _, b := range bs {
		byKey[key(b)] = b
	}
	seen := make(map[string]bool, len(as))
	for _, a := range as {
		k := key(a)
		seen[k] = true
		path := prefix + "." + k
		b, ok := byKey[k]
		if !ok {
			changes = append(changes, Change{Entity: entity, Path: path, Kind: ChangeRemoved})
			continue
		}
		changes = append(changes, compare(path, a, b)...)
	}
	for _, b := range bs {
		if !seen[key(b)] {
			changes = append(changes, Change{Entity: entity, Path: prefix + "." + key(b), Kind: ChangeAdded})
		}
	}
	return changes
}

// --- helpers ---

func columnType(c model.Column, engine model.Engine, mode Mode) string {
	if mode == ModeStrict {
		return strings.ToLower(c.NativeType)
	}
	if c.Type != "" {
		return c.Type
	}
	return NormalizeType(engine, c.NativeType)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func refsEqual(a, b *model.FKRef) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return a.Schema == b.Schema && a.Table == b.Table &&
		strings.Join(a.Columns, ",") == strings.Join(b.Columns, ",")
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

func mergedKeys(a, b map[string][]model.ExoticObject) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

// Package canon normalizes snapshots into a canonical form and compares them.
//
// Canonicalize produces a deep copy with every collection sorted and every
// column carrying its taxonomy type, so two captures of the same schema are
// byte-identical regardless of extraction order. Serialize renders that form
// as a deterministic byte stream (capture time excluded), Hash fingerprints
// it, and Diff reports the changes between two snapshots.
package canon

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/model"
)

// Canonicalize returns a deep copy of s in canonical form: schemas and all
// object lists sorted by name, constraints by (kind, name), columns by
// ordinal, and Column.Type filled from the engine taxonomy where the
// extraction left it empty. The input is never mutated.
func Canonicalize(s *model.Snapshot) *model.Snapshot {
	out := &model.Snapshot{
		Engine:   s.Engine,
		TakenAt:  s.TakenAt,
		Manifest: s.Manifest,
	}
	for _, sc := range s.Schemas {
		out.Schemas = append(out.Schemas, canonSchema(s.Engine, sc))
	}
	sort.Slice(out.Schemas, func(i, j int) bool {
		return out.Schemas[i].Name < out.Schemas[j].Name
	})
	return out
}

func canonSchema(engine model.Engine, sc model.Schema) model.Schema {
	out := model.Schema{Name: sc.Name}

	out.Types = append(out.Types, sc.Types...)
	sort.Slice(out.Types, func(i, j int) bool { return out.Types[i].Name < out.Types[j].Name })

	out.Sequences = append(out.Sequences, sc.Sequences...)
	sort.Slice(out.Sequences, func(i, j int) bool { return out.Sequences[i].Name < out.Sequences[j].Name })

	for _, t := range sc.Tables {
		out.Tables = append(out.Tables, canonTable(engine, t))
	}
	sort.Slice(out.Tables, func(i, j int) bool { return out.Tables[i].Name < out.Tables[j].Name })

	out.Views = append(out.Views, sc.Views...)
	for i := range out.Views {
		out.Views[i].DependsOn = sortedCopy(out.Views[i].DependsOn)
	}
	sort.Slice(out.Views, func(i, j int) bool { return out.Views[i].Name < out.Views[j].Name })

	out.Routines = append(out.Routines, sc.Routines...)
	sort.Slice(out.Routines, func(i, j int) bool {
		a, b := out.Routines[i], out.Routines[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Signature < b.Signature
	})

	out.Triggers = append(out.Triggers, sc.Triggers...)
	sort.Slice(out.Triggers, func(i, j int) bool { return out.Triggers[i].Name < out.Triggers[j].Name })

	if len(sc.Exotics) > 0 {
		out.Exotics = make(map[string][]model.ExoticObject, len(sc.Exotics))
		for feature, objs := range sc.Exotics {
			cp := append([]model.ExoticObject(nil), objs...)
			sort.Slice(cp, func(i, j int) bool { return cp[i].Name < cp[j].Name })
			out.Exotics[feature] = cp
		}
	}
	return out
}

func canonTable(engine model.Engine, t model.Table) model.Table {
	out := model.Table{Schema: t.Schema, Name: t.Name}

	out.Columns = append(out.Columns, t.Columns...)
	sort.Slice(out.Columns, func(i, j int) bool { return out.Columns[i].Ordinal < out.Columns[j].Ordinal })
	for i := range out.Columns {
		if out.Columns[i].Type == "" {
			out.Columns[i].Type = NormalizeType(engine, out.Columns[i].NativeType)
		}
	}

	for _, c := range t.Constraints {
		c.Columns = append([]string(nil), c.Columns...)
		if c.Ref != nil {
			ref := *c.Ref
			ref.Columns = append([]string(nil), ref.Columns...)
			c.Ref = &ref
		}
		out.Constraints = append(out.Constraints, c)
	}
	sort.Slice(out.Constraints, func(i, j int) bool {
		a, b := out.Constraints[i], out.Constraints[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Name < b.Name
	})

	for _, idx := range t.Indexes {
		idx.Columns = append([]model.IndexColumn(nil), idx.Columns...)
		out.Indexes = append(out.Indexes, idx)
	}
	sort.Slice(out.Indexes, func(i, j int) bool { return out.Indexes[i].Name < out.Indexes[j].Name })

	return out
}

// Serialize renders a snapshot as a deterministic byte stream. The capture
// timestamp is excluded so equal schemas serialize identically regardless of
// when they were taken. Callers should pass a Canonicalize result; Serialize
// canonicalizes defensively when handed raw input.
func Serialize(s *model.Snapshot) []byte {
	c := Canonicalize(s)
	var b strings.Builder
	fmt.Fprintf(&b, "engine=%s\n", c.Engine)
	for _, sc := range c.Schemas {
		fmt.Fprintf(&b, "schema %s\n", sc.Name)
		for _, t := range sc.Types {
			fmt.Fprintf(&b, "  type %s kind=%s def=%q\n", t.Name, t.Kind, t.Definition)
		}
		for _, sq := range sc.Sequences {
			// Current is runtime state, not schema shape; it stays out of the
			// serialization so the hash agrees with Diff.
			fmt.Fprintf(&b, "  sequence %s start=%d incr=%d\n", sq.Name, sq.Start, sq.Increment)
		}
		for _, t := range sc.Tables {
			fmt.Fprintf(&b, "  table %s\n", t.Name)
			for _, col := range t.Columns {
				fmt.Fprintf(&b, "    column %s type=%s native=%q nullable=%t",
					col.Name, col.Type, col.NativeType, col.Nullable)
				if col.Default != nil {
					fmt.Fprintf(&b, " default=%q", *col.Default)
				}
				if col.Generated {
					b.WriteString(" generated")
				}
				b.WriteByte('\n')
			}
			for _, con := range t.Constraints {
				fmt.Fprintf(&b, "    constraint %s kind=%s cols=%s",
					con.Name, con.Kind, strings.Join(con.Columns, ","))
				if con.Expression != "" {
					fmt.Fprintf(&b, " expr=%q", con.Expression)
				}
				if con.Ref != nil {
					fmt.Fprintf(&b, " ref=%s.%s(%s)", con.Ref.Schema, con.Ref.Table,
						strings.Join(con.Ref.Columns, ","))
					if con.Ref.Unresolved {
						b.WriteString(" unresolved")
					}
				}
				b.WriteByte('\n')
			}
			for _, idx := range t.Indexes {
				fmt.Fprintf(&b, "    index %s unique=%t cols=%s", idx.Name, idx.Unique, indexKey(idx))
				if idx.Predicate != "" {
					fmt.Fprintf(&b, " where=%q", idx.Predicate)
				}
				b.WriteByte('\n')
			}
		}
		for _, v := range sc.Views {
			fmt.Fprintf(&b, "  view %s def=%q deps=%s\n", v.Name, v.Definition,
				strings.Join(v.DependsOn, ","))
		}
		for _, r := range sc.Routines {
			fmt.Fprintf(&b, "  routine %s(%s) kind=%s lang=%s body=%q\n",
				r.Name, r.Signature, r.Kind, r.Language, r.Body)
		}
		for _, tr := range sc.Triggers {
			fmt.Fprintf(&b, "  trigger %s on=%s timing=%s event=%s body=%q\n",
				tr.Name, tr.Table, tr.Timing, tr.Event, tr.Body)
		}
		for _, feature := range sortedKeys(sc.Exotics) {
			for _, obj := range sc.Exotics[feature] {
				fmt.Fprintf(&b, "  exotic %s %s", feature, obj.Name)
				for _, k := range sortedKeys(obj.Attrs) {
					fmt.Fprintf(&b, " %s=%q", k, obj.Attrs[k])
				}
				b.WriteByte('\n')
			}
		}
	}
	return []byte(b.String())
}

// Hash fingerprints the canonical serialization. Equal schemas hash equal
// regardless of extraction order or capture time.
func Hash(s *model.Snapshot) uint64 {
	return xxh3.Hash(Serialize(s))
}

// HashString renders Hash as the fixed-width hex form used in object keys
// and API responses.
func HashString(s *model.Snapshot) string {
	return fmt.Sprintf("%016x", Hash(s))
}

// Equal reports whether two snapshots describe the same schema.
func Equal(a, b *model.Snapshot) bool {
	return string(Serialize(a)) == string(Serialize(b))
}

// --- helpers ---

func indexKey(idx model.Index) string {
	parts := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		parts[i] = c.Name
		if c.Desc {
			parts[i] += " desc"
		}
	}
	return strings.Join(parts, ",")
}

func sortedCopy(ss []string) []string {
	if len(ss) == 0 {
		return nil
	}
	cp := append([]string(nil), ss...)
	sort.Strings(cp)
	return cp
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

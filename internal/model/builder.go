package model

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/RahulRocky0019/Enterprise-Database-Migration/internal/errs"
)

// Builder accumulates one Snapshot layer by layer. It rejects duplicate keys
// within the same container and structurally invalid additions (an index on a
// table that was never added, a constraint naming a column the table does not
// have). Every rejection is fatal to that single addition only.
//
// Builder is safe for concurrent use: independent schema workers merge their
// fragments under one lock, keyed by (schema, object).
type Builder struct {
	mu      sync.Mutex
	engine  Engine
	schemas map[string]*Schema
	seen    map[string]bool // "schema\x00kind\x00key" occupancy
}

// NewBuilder returns an empty Builder for the given engine.
func NewBuilder(engine Engine) *Builder {
	return &Builder{
		engine:  engine,
		schemas: make(map[string]*Schema),
		seen:    make(map[string]bool),
	}
}

func key(parts ...string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\x00"
		}
		out += p
	}
	return out
}

// AddSchema registers a new container. Duplicate names fail with DuplicateKey.
func (b *Builder) AddSchema(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addSchema(name)
}

func (b *Builder) addSchema(name string) error {
	if _, ok := b.schemas[name]; ok {
		return errs.Newf(errs.ErrKindDuplicateKey, "schema %q already added", name)
	}
	b.schemas[name] = &Schema{Name: name}
	return nil
}

func (b *Builder) schema(name string) (*Schema, error) {
	s, ok := b.schemas[name]
	if !ok {
		return nil, errs.Newf(errs.ErrKindDanglingReference, "schema %q not in snapshot", name)
	}
	return s, nil
}

func (b *Builder) claim(parts ...string) error {
	k := key(parts...)
	if b.seen[k] {
		return errs.Newf(errs.ErrKindDuplicateKey, "duplicate key %s", fmt.Sprintf("%v", parts))
	}
	b.seen[k] = true
	return nil
}

// AddType adds a user-defined type to its schema.
func (b *Builder) AddType(schema string, t UserType) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addType(schema, t)
}

func (b *Builder) addType(schema string, t UserType) error {
	s, err := b.schema(schema)
	if err != nil {
		return err
	}
	if err := b.claim(schema, "type", t.Name); err != nil {
		return err
	}
	t.Schema = schema
	s.Types = append(s.Types, t)
	return nil
}

// AddSequence adds a sequence to its schema.
func (b *Builder) AddSequence(schema string, sq Sequence) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addSequence(schema, sq)
}

func (b *Builder) addSequence(schema string, sq Sequence) error {
	s, err := b.schema(schema)
	if err != nil {
		return err
	}
	if err := b.claim(schema, "sequence", sq.Name); err != nil {
		return err
	}
	sq.Schema = schema
	s.Sequences = append(s.Sequences, sq)
	return nil
}

// AddTable adds a table with its columns and constraints. The table is
// validated as a unit: duplicate column names, a second primary key, or a
// constraint naming a nonexistent column reject the whole addition.
func (b *Builder) AddTable(schema string, t Table) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addTable(schema, t)
}

func (b *Builder) addTable(schema string, t Table) error {
	s, err := b.schema(schema)
	if err != nil {
		return err
	}

	cols := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if cols[c.Name] {
			return errs.Newf(errs.ErrKindDuplicateKey, "table %s.%s: duplicate column %q", schema, t.Name, c.Name)
		}
		cols[c.Name] = true
	}

	pks := 0
	for _, con := range t.Constraints {
		if con.Kind == ConstraintPrimary {
			pks++
		}
		if pks > 1 {
			return errs.Newf(errs.ErrKindDuplicateKey, "table %s.%s: more than one primary key", schema, t.Name)
		}
		for _, cn := range con.Columns {
			if !cols[cn] {
				return errs.Newf(errs.ErrKindDanglingReference,
					"table %s.%s: constraint %q names unknown column %q", schema, t.Name, con.Name, cn)
			}
		}
	}

	if err := b.claim(schema, "table", t.Name); err != nil {
		return err
	}

	sort.SliceStable(t.Columns, func(i, j int) bool { return t.Columns[i].Ordinal < t.Columns[j].Ordinal })
	t.Schema = schema
	s.Tables = append(s.Tables, t)
	return nil
}

// AddIndex attaches an index to its owning table. The table and every named
// key column must already exist; expression columns ("(expr)") are exempt.
func (b *Builder) AddIndex(schema string, idx Index) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addIndex(schema, idx)
}

func (b *Builder) addIndex(schema string, idx Index) error {
	s, err := b.schema(schema)
	if err != nil {
		return err
	}
	t := s.Table(idx.Table)
	if t == nil {
		return errs.Newf(errs.ErrKindDanglingReference,
			"index %q references unknown table %s.%s", idx.Name, schema, idx.Table)
	}
	for _, ic := range idx.Columns {
		if ic.Name == ExprColumn {
			continue
		}
		if t.Column(ic.Name) == nil {
			return errs.Newf(errs.ErrKindDanglingReference,
				"index %q on %s.%s names unknown column %q", idx.Name, schema, idx.Table, ic.Name)
		}
	}
	if err := b.claim(schema, "index", idx.Table, idx.Name); err != nil {
		return err
	}
	t.Indexes = append(t.Indexes, idx)
	return nil
}

// ExprColumn is the placeholder name adapters use for expression index keys,
// which have no backing column to validate against.
const ExprColumn = "(expr)"

// AddView adds a view to its schema.
func (b *Builder) AddView(schema string, v View) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addView(schema, v)
}

func (b *Builder) addView(schema string, v View) error {
	s, err := b.schema(schema)
	if err != nil {
		return err
	}
	if err := b.claim(schema, "view", v.Name); err != nil {
		return err
	}
	v.Schema = schema
	s.Views = append(s.Views, v)
	return nil
}

// AddRoutine adds a procedure or function. Overloads are keyed by
// (name, signature), so engines with overloading never collide.
func (b *Builder) AddRoutine(schema string, r Routine) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addRoutine(schema, r)
}

func (b *Builder) addRoutine(schema string, r Routine) error {
	s, err := b.schema(schema)
	if err != nil {
		return err
	}
	if err := b.claim(schema, "routine", r.Name, r.Signature); err != nil {
		return err
	}
	r.Schema = schema
	s.Routines = append(s.Routines, r)
	return nil
}

// AddTrigger adds a trigger. The owning table may legitimately be outside the
// introspected scope (engines keep triggers in the catalog even then), so
// only the (table, name) key is checked.
func (b *Builder) AddTrigger(schema string, tr Trigger) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addTrigger(schema, tr)
}

func (b *Builder) addTrigger(schema string, tr Trigger) error {
	s, err := b.schema(schema)
	if err != nil {
		return err
	}
	if err := b.claim(schema, "trigger", tr.Table, tr.Name); err != nil {
		return err
	}
	tr.Schema = schema
	s.Triggers = append(s.Triggers, tr)
	return nil
}

// AddExotic adds an engine-specific object under the given feature name.
func (b *Builder) AddExotic(schema, feature string, obj ExoticObject) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addExotic(schema, feature, obj)
}

func (b *Builder) addExotic(schema, feature string, obj ExoticObject) error {
	s, err := b.schema(schema)
	if err != nil {
		return err
	}
	if err := b.claim(schema, "exotic", feature, obj.Name); err != nil {
		return err
	}
	if s.Exotics == nil {
		s.Exotics = make(map[string][]ExoticObject)
	}
	s.Exotics[feature] = append(s.Exotics[feature], obj)
	return nil
}

// Merge applies an adapter fragment to the snapshot under a single lock.
// Invariant violations (DuplicateKey, DanglingReference) are converted into
// skip records — fatal to the single addition, never to the run. The
// fragment's own skips are carried through.
func (b *Builder) Merge(schema string, frag *Fragment) []Skip {
	b.mu.Lock()
	defer b.mu.Unlock()

	var skips []Skip
	reject := func(object string, err error) {
		if err != nil {
			skips = append(skips, Skip{Object: object, Reason: err.Error()})
		}
	}

	for _, t := range frag.Types {
		reject("type "+schema+"."+t.Name, b.addType(schema, t))
	}
	for _, sq := range frag.Sequences {
		reject("sequence "+schema+"."+sq.Name, b.addSequence(schema, sq))
	}
	for _, t := range frag.Tables {
		reject("table "+schema+"."+t.Name, b.addTable(schema, t))
	}
	for _, idx := range frag.Indexes {
		reject("index "+schema+"."+idx.Name, b.addIndex(schema, idx))
	}
	for _, v := range frag.Views {
		reject("view "+schema+"."+v.Name, b.addView(schema, v))
	}
	for _, r := range frag.Routines {
		reject("routine "+schema+"."+r.Name, b.addRoutine(schema, r))
	}
	for _, tr := range frag.Triggers {
		reject("trigger "+schema+"."+tr.Name, b.addTrigger(schema, tr))
	}
	for feature, objs := range frag.Exotics {
		for _, o := range objs {
			reject("exotic "+feature+" "+schema+"."+o.Name, b.addExotic(schema, feature, o))
		}
	}

	skips = append(skips, frag.Skipped...)
	return skips
}

// SchemaNames returns the registered container names, sorted.
func (b *Builder) SchemaNames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.schemas))
	for n := range b.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasTable reports whether the snapshot under construction contains the table.
func (b *Builder) HasTable(schema, table string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.schemas[schema]
	return ok && s.Table(table) != nil
}

// Tables calls fn for every table added so far, in sorted schema order.
// fn may mutate the table; it must not retain the pointer.
func (b *Builder) Tables(fn func(t *Table)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, name := range b.sortedNames() {
		s := b.schemas[name]
		for i := range s.Tables {
			fn(&s.Tables[i])
		}
	}
}

func (b *Builder) sortedNames() []string {
	names := make([]string, 0, len(b.schemas))
	for n := range b.schemas {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Snapshot seals the accumulated state into an immutable Snapshot carrying
// the given manifest. Schemas and their object lists come out sorted by name
// so re-introspecting an unchanged database yields a structurally equal value.
func (b *Builder) Snapshot(man Manifest) *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	man.Engine = b.engine
	for _, l := range Layers() {
		man.Set(l, man.Layers[l])
	}

	snap := &Snapshot{
		Engine:   b.engine,
		TakenAt:  time.Now().UTC(),
		Manifest: man,
	}
	for _, name := range b.sortedNames() {
		s := *b.schemas[name]
		sort.Slice(s.Types, func(i, j int) bool { return s.Types[i].Name < s.Types[j].Name })
		sort.Slice(s.Sequences, func(i, j int) bool { return s.Sequences[i].Name < s.Sequences[j].Name })
		sort.Slice(s.Tables, func(i, j int) bool { return s.Tables[i].Name < s.Tables[j].Name })
		sort.Slice(s.Views, func(i, j int) bool { return s.Views[i].Name < s.Views[j].Name })
		sort.Slice(s.Routines, func(i, j int) bool {
			if s.Routines[i].Name != s.Routines[j].Name {
				return s.Routines[i].Name < s.Routines[j].Name
			}
			return s.Routines[i].Signature < s.Routines[j].Signature
		})
		sort.Slice(s.Triggers, func(i, j int) bool {
			if s.Triggers[i].Table != s.Triggers[j].Table {
				return s.Triggers[i].Table < s.Triggers[j].Table
			}
			return s.Triggers[i].Name < s.Triggers[j].Name
		})
		snap.Schemas = append(snap.Schemas, s)
	}
	return snap
}

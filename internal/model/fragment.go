package model

// Fragment is the partial result of one adapter layer call, scoped to a
// single schema. The orchestrator merges fragments into the Builder; workers
// for independent schemas never touch the same fragment.
type Fragment struct {
	Types     []UserType
	Sequences []Sequence
	Tables    []Table
	Indexes   []Index
	Views     []View
	Routines  []Routine
	Triggers  []Trigger
	Exotics   map[string][]ExoticObject

	// Skipped records objects the adapter could read about but not fully
	// introspect (unreadable catalog rows, missing privileges, …).
	Skipped []Skip
}

// Skip appends a skipped-object record.
func (f *Fragment) Skip(object, reason string) {
	f.Skipped = append(f.Skipped, Skip{Object: object, Reason: reason})
}

// AddExotic appends an exotic object under the given feature name.
func (f *Fragment) AddExotic(feature string, obj ExoticObject) {
	if f.Exotics == nil {
		f.Exotics = make(map[string][]ExoticObject)
	}
	f.Exotics[feature] = append(f.Exotics[feature], obj)
}

// Empty reports whether the fragment carries no objects and no skips.
func (f *Fragment) Empty() bool {
	return len(f.Types) == 0 && len(f.Sequences) == 0 && len(f.Tables) == 0 &&
		len(f.Indexes) == 0 && len(f.Views) == 0 && len(f.Routines) == 0 &&
		len(f.Triggers) == 0 && len(f.Exotics) == 0 && len(f.Skipped) == 0
}

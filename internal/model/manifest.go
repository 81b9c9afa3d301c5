package model

import "fmt"

// Layer is one of the six extraction phases, driven strictly in this order:
// later layers depend on objects discovered by earlier ones.
type Layer int

const (
	LayerContainers Layer = iota
	LayerDependencies
	LayerStructure
	LayerIndexes
	LayerLogic
	LayerExotics

	NumLayers = 6
)

func (l Layer) String() string {
	switch l {
	case LayerContainers:
		return "containers"
	case LayerDependencies:
		return "dependencies"
	case LayerStructure:
		return "structure"
	case LayerIndexes:
		return "indexes"
	case LayerLogic:
		return "logic"
	case LayerExotics:
		return "exotics"
	default:
		return "unknown"
	}
}

// ParseLayer maps a layer name back to its Layer. ok is false for unknown names.
func ParseLayer(name string) (Layer, bool) {
	for l := LayerContainers; l < NumLayers; l++ {
		if l.String() == name {
			return l, true
		}
	}
	return 0, false
}

// Layers returns all layers in dependency order.
func Layers() []Layer {
	return []Layer{
		LayerContainers,
		LayerDependencies,
		LayerStructure,
		LayerIndexes,
		LayerLogic,
		LayerExotics,
	}
}

// Status is the terminal state of one layer in the manifest.
// The zero value is StatusNotAttempted so an untouched entry can never be
// mistaken for an empty success.
type Status int

const (
	StatusNotAttempted Status = iota
	StatusSucceeded
	StatusPartial // some objects introspected, others skipped — see Skipped
	StatusUnsupported
	StatusFailed
	StatusCancelled
	StatusSkipped // disabled by caller options
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusPartial:
		return "partially_succeeded"
	case StatusUnsupported:
		return "unsupported"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	case StatusSkipped:
		return "skipped"
	default:
		return "not_attempted"
	}
}

// MarshalText lets Status serialize as its name in JSON documents.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText maps a status name back to its value, so stored snapshot
// documents round-trip through JSON.
func (s *Status) UnmarshalText(text []byte) error {
	name := string(text)
	for c := StatusNotAttempted; c <= StatusSkipped; c++ {
		if c.String() == name {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown layer status %q", name)
}

// Skip records one object that could not be introspected, with the reason.
// Skips are surfaced in the manifest, never silently absorbed.
type Skip struct {
	Object string `json:"object"`
	Reason string `json:"reason"`
}

// LayerResult is the manifest entry for one layer.
type LayerResult struct {
	Status Status `json:"status"`

	// Reason explains a Failed status.
	Reason string `json:"reason,omitempty"`

	// Skipped lists objects dropped from a Partial result.
	Skipped []Skip `json:"skipped,omitempty"`

	// Missing lists sub-features the engine has no analog for, declared by
	// the adapter's capabilities (e.g. SQLite procedures). The layer itself
	// may still succeed for the features that do exist.
	Missing []string `json:"missing,omitempty"`
}

// Manifest accounts for every layer of an introspection run: what was
// attempted, what succeeded, what was skipped, and why. A caller always
// receives the best-effort Snapshot plus this complete account.
type Manifest struct {
	Engine Engine                 `json:"engine"`
	Layers [NumLayers]LayerResult `json:"-"`
	ByName map[string]LayerResult `json:"layers"`

	// Unresolved lists foreign keys whose target is outside the introspected
	// scope, as "schema.table.constraint -> refschema.reftable".
	Unresolved []string `json:"unresolved,omitempty"`

	// Partial is true when the run was cancelled before all layers finished.
	Partial bool `json:"partial,omitempty"`
}

// Result returns the manifest entry for l.
func (m *Manifest) Result(l Layer) LayerResult {
	return m.Layers[l]
}

// Set records the result for l and keeps the name-keyed view in sync.
func (m *Manifest) Set(l Layer, r LayerResult) {
	m.Layers[l] = r
	if m.ByName == nil {
		m.ByName = make(map[string]LayerResult, NumLayers)
	}
	m.ByName[l.String()] = r
}

package multiscreen

import (
	json "github.com/goccy/go-json"
)

// Trace captures provenance for one resolution: every scope the walk
// visited, in order from the starting scope up to the root.
type Trace struct {
	ScopePath string       `json:"scope_path"`
	Key       string       `json:"key"`
	Steps     []Provenance `json:"steps"`
}

// Provenance details how one scope on the walk contributed to the lookup.
type Provenance struct {
	Scope string `json:"scope"`
	Value string `json:"value,omitempty"`
	Found bool   `json:"found"`
}

// Winner returns the step that supplied the effective value, when any did.
func (t Trace) Winner() (Provenance, bool) {
	for _, step := range t.Steps {
		if step.Found {
			return step, true
		}
	}
	return Provenance{}, false
}

// ToJSON serialises the trace for logging or transport helpers.
func (t Trace) ToJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(alias(t))
}

// TraceFromJSON deserialises a payload previously generated via ToJSON.
func TraceFromJSON(payload []byte) (Trace, error) {
	type alias Trace
	var trace alias
	if err := json.Unmarshal(payload, &trace); err != nil {
		return Trace{}, err
	}
	return Trace(trace), nil
}

package multiscreen

import (
	"fmt"
	"sort"
)

// HostGraph is the surface the core needs from the embedding node-graph
// application. Targets are the host's externally addressable parameters
// (knobs in the original toolset); the value map covers the document-level
// settings enforcement applies and restores.
//
// Implementations are expected to be cheap: every call happens on the
// host's evaluation thread.
type HostGraph interface {
	// HasTarget reports whether ref is currently addressable.
	HasTarget(ref string) bool
	// SetTargetValue writes a pushed value into the target.
	SetTargetValue(ref, value string) error
	// AssignExpression installs a pull expression on the target. The host
	// owns evaluation; the expression resolves through the session's
	// variable store.
	AssignExpression(ref, expression string) error
	// ApplyValues writes enforcement values (format, fps, frame range,
	// output root) into the document-level state. Keys merge; absent keys
	// keep their current values.
	ApplyValues(values map[string]string) error
	// UnsetValues removes document-level keys entirely, so later
	// DocumentValues calls no longer report them. Keys the document does
	// not carry are ignored.
	UnsetValues(keys ...string) error
	// DocumentValues reports the current document-level values for keys.
	// Keys the document does not carry are absent from the result.
	DocumentValues(keys ...string) map[string]string
	// HasFormat reports whether the named output format exists.
	HasFormat(name string) bool
	// AddFormat registers a named output format from its definition.
	AddFormat(name, definition string) error
}

// memTarget is one addressable parameter on the in-memory host.
type memTarget struct {
	value      string
	expression string
}

// MemoryHost is an in-memory HostGraph for tests, examples, and the CLI.
//
// EvalFunc, when set, evaluates pull expressions on demand; Session.EvalPull
// is the usual implementation. ApplyErr, when set, makes ApplyValues fail,
// which is how tests inject apply and restore failures.
type MemoryHost struct {
	EvalFunc func(expression string) (string, error)
	ApplyErr error

	targets map[string]*memTarget
	applied map[string]string
	formats map[string]string
}

// NewMemoryHost constructs an empty in-memory host.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		targets: map[string]*memTarget{},
		applied: map[string]string{},
		formats: map[string]string{},
	}
}

// AddTarget registers an addressable parameter. Adding an existing ref is a
// no-op that keeps the current value.
func (h *MemoryHost) AddTarget(ref string) {
	if _, ok := h.targets[ref]; ok {
		return
	}
	h.targets[ref] = &memTarget{}
}

// RemoveTarget drops a parameter, leaving any bindings onto it dangling.
func (h *MemoryHost) RemoveTarget(ref string) {
	delete(h.targets, ref)
}

// HasTarget implements HostGraph.
func (h *MemoryHost) HasTarget(ref string) bool {
	_, ok := h.targets[ref]
	return ok
}

// SetTargetValue implements HostGraph.
func (h *MemoryHost) SetTargetValue(ref, value string) error {
	target, ok := h.targets[ref]
	if !ok {
		return fmt.Errorf("%w: target %q", ErrNotFound, ref)
	}
	target.value = value
	return nil
}

// AssignExpression implements HostGraph.
func (h *MemoryHost) AssignExpression(ref, expression string) error {
	target, ok := h.targets[ref]
	if !ok {
		return fmt.Errorf("%w: target %q", ErrNotFound, ref)
	}
	target.expression = expression
	return nil
}

// TargetValue returns the current value of ref. Targets carrying a pull
// expression are evaluated through EvalFunc; plain targets return the last
// pushed value.
func (h *MemoryHost) TargetValue(ref string) (string, error) {
	target, ok := h.targets[ref]
	if !ok {
		return "", fmt.Errorf("%w: target %q", ErrNotFound, ref)
	}
	if target.expression != "" {
		if h.EvalFunc == nil {
			return "", fmt.Errorf("multiscreen: host has no expression evaluator for target %q", ref)
		}
		return h.EvalFunc(target.expression)
	}
	return target.value, nil
}

// TargetExpression returns the pull expression assigned to ref, if any.
func (h *MemoryHost) TargetExpression(ref string) string {
	if target, ok := h.targets[ref]; ok {
		return target.expression
	}
	return ""
}

// ApplyValues implements HostGraph.
func (h *MemoryHost) ApplyValues(values map[string]string) error {
	if h.ApplyErr != nil {
		return h.ApplyErr
	}
	for k, v := range values {
		h.applied[k] = v
	}
	return nil
}

// UnsetValues implements HostGraph.
func (h *MemoryHost) UnsetValues(keys ...string) error {
	if h.ApplyErr != nil {
		return h.ApplyErr
	}
	for _, key := range keys {
		delete(h.applied, key)
	}
	return nil
}

// DocumentValues implements HostGraph.
func (h *MemoryHost) DocumentValues(keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, key := range keys {
		if value, ok := h.applied[key]; ok {
			out[key] = value
		}
	}
	return out
}

// Applied returns a copy of the current document-level settings.
func (h *MemoryHost) Applied() map[string]string {
	out := make(map[string]string, len(h.applied))
	for k, v := range h.applied {
		out[k] = v
	}
	return out
}

// HasFormat implements HostGraph.
func (h *MemoryHost) HasFormat(name string) bool {
	_, ok := h.formats[name]
	return ok
}

// AddFormat implements HostGraph. Registering an existing name fails so the
// create-if-missing guard cannot clobber host formats.
func (h *MemoryHost) AddFormat(name, definition string) error {
	if name == "" {
		return fmt.Errorf("multiscreen: format name is empty")
	}
	if _, ok := h.formats[name]; ok {
		return fmt.Errorf("%w: format %q already exists", ErrConflict, name)
	}
	h.formats[name] = definition
	return nil
}

// Formats returns the registered format names, sorted.
func (h *MemoryHost) Formats() []string {
	out := make([]string, 0, len(h.formats))
	for name := range h.formats {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

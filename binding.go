package multiscreen

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/georgeantonopoulos/Nuke/pkg/journal"
)

// BindingMode selects how an override reaches its target.
type BindingMode int

const (
	// ModeUnknown is the zero value. Bindings never carry it.
	ModeUnknown BindingMode = iota
	// ModePull installs a host expression on the target that resolves the
	// variable at evaluation time. Stateless, and the preferred mode.
	ModePull
	// ModePush writes the resolved value into the target whenever the
	// owning session applies screen values.
	ModePush
)

// String implements fmt.Stringer with the persisted spelling.
func (m BindingMode) String() string {
	switch m {
	case ModePull:
		return "pull"
	case ModePush:
		return "push"
	default:
		return "unknown"
	}
}

// ParseBindingMode maps the persisted spelling back to a mode.
func ParseBindingMode(input string) (BindingMode, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "pull":
		return ModePull, nil
	case "push":
		return ModePush, nil
	default:
		return ModeUnknown, fmt.Errorf("multiscreen: unknown binding mode %q", input)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m BindingMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *BindingMode) UnmarshalText(data []byte) error {
	mode, err := ParseBindingMode(string(data))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Binding connects one host target to one screen variable. A target carries
// at most one binding, and a binding is exclusively pull or push.
type Binding struct {
	ID        uuid.UUID   `json:"id"`
	TargetRef string      `json:"target"`
	ScreenID  string      `json:"screen"`
	Key       string      `json:"key"`
	Mode      BindingMode `json:"mode"`
	// Dangling marks a binding whose screen or target went away. Dangling
	// bindings are inert but stay listed and persisted so the link can be
	// repaired or unbound later.
	Dangling bool `json:"dangling,omitempty"`

	// lastDelivered remembers the value most recently pushed into the
	// target, making repeat deliveries of an unchanged value no-ops.
	lastDelivered *string
}

// clone returns a caller-owned copy without delivery state.
func (b *Binding) clone() Binding {
	out := *b
	out.lastDelivered = nil
	return out
}

// defaultPullExpression spells the stock pull expression for a bound key,
// e.g. gsv("Overrides.Write1.filepath"). The key resolves against whichever
// screen is active when the host evaluates the expression, so one target
// yields per-screen values during enforcement. Generators installed via
// WithPullExpression may pin the screen instead.
func defaultPullExpression(_, key string) string {
	return fmt.Sprintf("gsv(%q)", key)
}

// Bind connects targetRef to screenID's variable key in the given mode.
// Repeating an identical live bind returns the existing binding; any other
// binding already on the target is a conflict. Pull binds install the host
// expression before returning.
func (r *Registry) Bind(targetRef, screenID, key string, mode BindingMode) (Binding, error) {
	if strings.TrimSpace(targetRef) == "" {
		return Binding{}, fmt.Errorf("%w: target ref is empty", ErrInvalidPath)
	}
	if mode != ModePull && mode != ModePush {
		return Binding{}, fmt.Errorf("multiscreen: mode %q is not bindable", mode)
	}
	if _, err := splitKey(key); err != nil {
		return Binding{}, err
	}
	if _, ok := r.index[screenID]; !ok {
		return Binding{}, notFoundScreen(screenID, r.Nearest(screenID))
	}
	if !r.host.HasTarget(targetRef) {
		return Binding{}, fmt.Errorf("%w: target %q", ErrNotFound, targetRef)
	}
	for _, b := range r.bindings {
		if b.TargetRef != targetRef {
			continue
		}
		if b.Dangling {
			return r.reviveBinding(b, screenID, key, mode)
		}
		if b.ScreenID == screenID && b.Key == key && b.Mode == mode {
			return b.clone(), nil
		}
		return Binding{}, fmt.Errorf("%w: target %q is already bound to %s (%s)",
			ErrConflict, targetRef, joinPath(b.ScreenID, b.Key), b.Mode)
	}
	binding := &Binding{
		ID:        uuid.New(),
		TargetRef: targetRef,
		ScreenID:  screenID,
		Key:       key,
		Mode:      mode,
	}
	if mode == ModePull {
		if err := r.host.AssignExpression(targetRef, r.pullExpr(screenID, key)); err != nil {
			return Binding{}, fmt.Errorf("multiscreen: assigning pull expression to %q: %w", targetRef, err)
		}
	}
	r.bindings = append(r.bindings, binding)
	if mode == ModePush {
		r.deliverOne(binding, r.activeScope())
	}
	r.emit(journal.BuildBindingCreatedEvent(journal.EventInput{
		Screen: screenID,
		Path:   key,
		Target: targetRef,
		Mode:   mode.String(),
	}))
	return binding.clone(), nil
}

// Unbind removes the binding by id. A live pull binding gets its host
// expression cleared when the target still exists.
func (r *Registry) Unbind(id uuid.UUID) error {
	for i, b := range r.bindings {
		if b.ID != id {
			continue
		}
		if b.Mode == ModePull && !b.Dangling && r.host.HasTarget(b.TargetRef) {
			if err := r.host.AssignExpression(b.TargetRef, ""); err != nil {
				r.logger.Warnf("clearing expression on %q: %v", b.TargetRef, err)
			}
		}
		r.bindings = append(r.bindings[:i], r.bindings[i+1:]...)
		r.emit(journal.BuildBindingRemovedEvent(journal.EventInput{
			Screen: b.ScreenID,
			Path:   b.Key,
			Target: b.TargetRef,
			Mode:   b.Mode.String(),
		}))
		return nil
	}
	return fmt.Errorf("%w: binding %s", ErrNotFound, id)
}

// Bindings lists bindings for screenID in creation order, dangling ones
// included. An empty screenID lists every binding.
func (r *Registry) Bindings(screenID string) []Binding {
	out := make([]Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		if screenID != "" && b.ScreenID != screenID {
			continue
		}
		out = append(out, b.clone())
	}
	return out
}

// pushBindings returns the live push bindings in creation order.
func (r *Registry) pushBindings() []*Binding {
	out := make([]*Binding, 0, len(r.bindings))
	for _, b := range r.bindings {
		if b.Mode == ModePush && !b.Dangling {
			out = append(out, b)
		}
	}
	return out
}

// deliver recomputes every live push binding against the active scope and
// writes changed values to their targets, in registration order. It runs
// whenever the active screen changes, before control returns to whoever
// changed it. Delivery never fails the change that triggered it: a target
// that went away or refuses its value degrades to dangling instead.
func (r *Registry) deliver() {
	scope := r.activeScope()
	for _, b := range r.pushBindings() {
		r.deliverOne(b, scope)
	}
}

// deliverOne pushes one binding's value resolved under scope. Unresolved
// keys keep the target's current value; a repeat of the last delivered
// value is a no-op.
func (r *Registry) deliverOne(b *Binding, scope string) {
	if !r.host.HasTarget(b.TargetRef) {
		r.markDangling(b, "target is no longer addressable")
		return
	}
	value, err := r.resolver.Resolve(scope, b.Key)
	if err != nil {
		r.logger.Debugf("push %s: %q unresolved under scope %q: %v", b.ID, b.Key, scope, err)
		return
	}
	if b.lastDelivered != nil && *b.lastDelivered == value {
		return
	}
	if err := r.host.SetTargetValue(b.TargetRef, value); err != nil {
		r.markDangling(b, fmt.Sprintf("delivering %q: %v", value, err))
		return
	}
	b.lastDelivered = &value
	r.logger.Debugf("pushed %q to %q for %s", value, b.TargetRef, joinPath(b.ScreenID, b.Key))
}

// reviveBinding repairs a dangling record in place once its target is
// addressable again. The binding id stays stable across the repair.
func (r *Registry) reviveBinding(b *Binding, screenID, key string, mode BindingMode) (Binding, error) {
	b.ScreenID = screenID
	b.Key = key
	b.Mode = mode
	b.Dangling = false
	b.lastDelivered = nil
	if mode == ModePull {
		if err := r.host.AssignExpression(b.TargetRef, r.pullExpr(screenID, key)); err != nil {
			b.Dangling = true
			return Binding{}, fmt.Errorf("multiscreen: assigning pull expression to %q: %w", b.TargetRef, err)
		}
	}
	if mode == ModePush {
		r.deliverOne(b, r.activeScope())
	}
	r.emit(journal.BuildBindingCreatedEvent(journal.EventInput{
		Screen: screenID,
		Path:   key,
		Target: b.TargetRef,
		Mode:   mode.String(),
		Reason: "revived",
	}))
	return b.clone(), nil
}

// Verify sweeps every live binding against the host and degrades the ones
// whose targets are gone, one error per degraded binding. The cooperative
// model has no host deletion callbacks, so callers run the sweep at natural
// boundaries such as document load or a UI refresh.
func (r *Registry) Verify() []error {
	var errs []error
	for _, b := range r.bindings {
		if b.Dangling || r.host.HasTarget(b.TargetRef) {
			continue
		}
		r.markDangling(b, "target is no longer addressable")
		errs = append(errs, fmt.Errorf("%w: target %q (binding %s)", ErrDanglingReference, b.TargetRef, b.ID))
	}
	return errs
}

// markDangling degrades b in place and reports it. The binding stays listed.
func (r *Registry) markDangling(b *Binding, reason string) {
	b.Dangling = true
	b.lastDelivered = nil
	r.logger.Warnf("binding %s on %q is dangling: %s", b.ID, b.TargetRef, reason)
	r.emit(journal.BuildBindingDanglingEvent(journal.EventInput{
		Screen: b.ScreenID,
		Path:   b.Key,
		Target: b.TargetRef,
		Mode:   b.Mode.String(),
		Reason: reason,
	}))
}

// restoreBinding reinstates a persisted binding without touching the host.
// Document decoding drives any expression reassignment itself so dangling
// links survive a round trip untouched.
func (r *Registry) restoreBinding(b Binding) {
	restored := b
	restored.lastDelivered = nil
	r.bindings = append(r.bindings, &restored)
}

package multiscreen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/georgeantonopoulos/Nuke/pkg/journal"
)

// Registry owns the ordered screen list and the override bindings that
// reference it. It keeps the variable store's scope tree in step with the
// list: adding a screen creates its scope, removing one cascades to the
// scope subtree, renaming one moves the subtree and rewrites every binding
// path in the same operation.
type Registry struct {
	store    *Store
	host     HostGraph
	resolver *Resolver
	order    []string
	index    map[string]struct{}
	bindings []*Binding
	logger   Logger
	emitter  *journal.Emitter
	pullExpr func(screenID, key string) string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger routes registry diagnostics to logger.
func WithRegistryLogger(logger Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRegistryJournal emits screen and binding lifecycle events through
// emitter. Hook failures are logged and never roll back the change they
// describe.
func WithRegistryJournal(emitter *journal.Emitter) RegistryOption {
	return func(r *Registry) {
		r.emitter = emitter
	}
}

// WithPullExpression replaces the stock pull expression generator. fn
// receives the screen id and the dotted variable key of the bound value and
// returns the expression installed on the host target.
func WithPullExpression(fn func(screenID, key string) string) RegistryOption {
	return func(r *Registry) {
		if fn != nil {
			r.pullExpr = fn
		}
	}
}

// NewRegistry builds a registry over store and host.
func NewRegistry(store *Store, host HostGraph, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:    store,
		host:     host,
		resolver: NewResolver(store),
		index:    map[string]struct{}{},
		logger:   noopLogger{},
		pullExpr: defaultPullExpression,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// activeScope is the scope push delivery and enforcement resolve under: the
// active screen when set and still registered, the root scope otherwise.
func (r *Registry) activeScope() string {
	if active, ok := r.store.activeScreen(); ok && r.Has(active) {
		return active
	}
	return RootScopeName
}

// setActive repoints the active screen and runs push delivery before
// returning. An empty id clears the pointer, leaving root-scope values in
// effect.
func (r *Registry) setActive(id string) {
	if id == "" {
		r.store.clearActive()
	} else {
		r.store.writeActive(id)
	}
	r.deliver()
}

// validateScreenID accepts single path segments only. The root scope name is
// reserved.
func validateScreenID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: screen id is empty", ErrInvalidPath)
	}
	if id == RootScopeName {
		return fmt.Errorf("%w: screen id %q is reserved for the root scope", ErrInvalidPath, id)
	}
	if !validSegment(id) {
		return fmt.Errorf("%w: screen id %q", ErrInvalidPath, id)
	}
	return nil
}

// Add registers a screen and creates its variable scope. Insertion order is
// the order Screens and the persisted document report.
func (r *Registry) Add(id string) error {
	if err := validateScreenID(id); err != nil {
		return err
	}
	if _, ok := r.index[id]; ok {
		return fmt.Errorf("%w: screen %q already exists", ErrConflict, id)
	}
	if err := r.store.EnsureScope(id); err != nil {
		return err
	}
	r.order = append(r.order, id)
	r.index[id] = struct{}{}
	r.emit(journal.BuildScreenAddedEvent(journal.EventInput{Screen: id}))
	return nil
}

// Remove drops a screen. The scope subtree and every variable under it go
// with it; bindings that referenced the screen degrade to dangling and stay
// listed until unbound. When the active screen is removed the first
// remaining screen takes over, or the pointer clears if none remain.
func (r *Registry) Remove(id string) error {
	if _, ok := r.index[id]; !ok {
		return notFoundScreen(id, r.Nearest(id))
	}
	for _, b := range r.bindings {
		if b.ScreenID == id && !b.Dangling {
			r.markDangling(b, fmt.Sprintf("screen %q removed", id))
		}
	}
	if err := r.store.RemoveScope(id); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	delete(r.index, id)
	if active, ok := r.store.activeScreen(); ok && active == id {
		if len(r.order) > 0 {
			r.logger.Warnf("active screen %q removed, falling back to %q", id, r.order[0])
			r.setActive(r.order[0])
		} else {
			r.logger.Warnf("active screen %q removed, no screens remain", id)
			r.setActive("")
		}
	}
	r.emit(journal.BuildScreenRemovedEvent(journal.EventInput{Screen: id}))
	return nil
}

// Rename moves a screen and its whole scope subtree to a new id. The rename
// is all or nothing: every check runs before the first mutation, and the
// scope move itself validates fully before touching the tree. Bindings and
// the active screen pointer follow the new id; pull bindings get their host
// expressions reassigned, and a target the host no longer exposes degrades
// to dangling instead of failing the rename.
func (r *Registry) Rename(oldID, newID string) error {
	if err := validateScreenID(newID); err != nil {
		return err
	}
	if _, ok := r.index[oldID]; !ok {
		return notFoundScreen(oldID, r.Nearest(oldID))
	}
	if _, ok := r.index[newID]; ok {
		return fmt.Errorf("%w: screen %q already exists", ErrConflict, newID)
	}
	if err := r.store.MoveScope(oldID, newID); err != nil {
		return err
	}
	for i, existing := range r.order {
		if existing == oldID {
			r.order[i] = newID
			break
		}
	}
	delete(r.index, oldID)
	r.index[newID] = struct{}{}
	for _, b := range r.bindings {
		if b.ScreenID != oldID {
			continue
		}
		b.ScreenID = newID
		if b.Mode != ModePull || b.Dangling {
			continue
		}
		if err := r.host.AssignExpression(b.TargetRef, r.pullExpr(newID, b.Key)); err != nil {
			r.markDangling(b, fmt.Sprintf("reassigning expression after rename: %v", err))
		}
	}
	if active, ok := r.store.activeScreen(); ok && active == oldID {
		r.setActive(newID)
	}
	r.emit(journal.BuildScreenRenamedEvent(journal.EventInput{
		Screen:   newID,
		Metadata: map[string]any{"previous": oldID},
	}))
	return nil
}

// Screens returns the screen ids in insertion order.
func (r *Registry) Screens() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Has reports whether id is a registered screen.
func (r *Registry) Has(id string) bool {
	_, ok := r.index[id]
	return ok
}

// Nearest returns the registered screen closest to id by edit distance, or
// "" when nothing is close enough to be a plausible typo.
func (r *Registry) Nearest(id string) string {
	best := ""
	bestDist := 4
	lower := strings.ToLower(id)
	for _, candidate := range r.order {
		dist := levenshtein.ComputeDistance(lower, strings.ToLower(candidate))
		if dist < bestDist {
			best = candidate
			bestDist = dist
		}
	}
	return best
}

func (r *Registry) emit(event journal.Event) {
	if r.emitter == nil || !r.emitter.Enabled() {
		return
	}
	if err := r.emitter.Emit(context.Background(), event); err != nil {
		r.logger.Warnf("journal emit failed for %s: %v", event.Verb, err)
	}
}

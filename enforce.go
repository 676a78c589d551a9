package multiscreen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/georgeantonopoulos/Nuke/pkg/journal"
)

// ContextState is the render controller's position in the enforcement cycle.
type ContextState int

const (
	StateIdle ContextState = iota
	StateCapturing
	StateApplying
	StateExecuting
	StateRestoring
)

// String implements fmt.Stringer.
func (s ContextState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateApplying:
		return "applying"
	case StateExecuting:
		return "executing"
	case StateRestoring:
		return "restoring"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Document keys with meaning to the controller. The format name travels in
// FormatKey; when the host does not know the named format, its definition is
// read from FormatDefinitionKey and registered before values are applied.
const (
	FormatKey           = "format"
	FormatDefinitionKey = "format.definition"
)

// DefaultEnforcedKeys are the document-level settings enforcement captures,
// applies, and restores when no override is configured.
var DefaultEnforcedKeys = []string{
	FormatKey,
	FormatDefinitionKey,
	"fps",
	"range.first",
	"range.last",
	"output.root",
}

// Snapshot is the state captured on entry to one enforcement. It lives on
// the controller's stack for the duration of the call and restores on exit.
type Snapshot struct {
	ID       uuid.UUID
	ScreenID string
	// Active is the active screen at capture time, empty when none was set.
	Active string
	// Values holds the enforced document keys at capture time. Restore
	// reapplies these exact values, never a fresh resolution.
	Values map[string]string
	// Missing lists enforced keys the document did not carry at capture.
	// Restore unsets them, so a key first applied during enforcement does
	// not outlive it.
	Missing []string
	Depth   int
	TakenAt time.Time
}

// Operation is the caller-supplied work an enforcement runs under the
// target screen's resolved settings. Its outcome passes through Enforce
// unchanged.
type Operation func(ctx context.Context) error

// Controller guarantees operations run under a specific screen's resolved
// settings and that the prior state comes back afterwards, whether the
// operation succeeds, fails, or is cancelled. Nested enforcements stack:
// each inner call restores to the state its enclosing call established.
//
// A failed restore is fatal. The controller records it, refuses further
// work, and surfaces the lost snapshot for manual recovery.
type Controller struct {
	registry     *Registry
	enforcedKeys []string
	stack        []Snapshot
	state        ContextState
	logger       Logger
	emitter      *journal.Emitter
	broken       *RestoreError
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithEnforcedKeys replaces the document keys enforcement manages.
func WithEnforcedKeys(keys ...string) ControllerOption {
	return func(c *Controller) {
		if len(keys) > 0 {
			c.enforcedKeys = append([]string(nil), keys...)
		}
	}
}

// WithControllerLogger routes controller diagnostics to logger.
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithControllerJournal emits enforcement lifecycle events through emitter.
func WithControllerJournal(emitter *journal.Emitter) ControllerOption {
	return func(c *Controller) {
		c.emitter = emitter
	}
}

// NewController builds a render controller over registry.
func NewController(registry *Registry, opts ...ControllerOption) *Controller {
	c := &Controller{
		registry:     registry,
		enforcedKeys: append([]string(nil), DefaultEnforcedKeys...),
		logger:       noopLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Enforce runs op under screenID's resolved settings. It captures the
// current document state and active screen, applies screenID's values,
// invokes op, and restores the captured state before returning, regardless
// of op's outcome. op's error (or a context cancellation) is returned
// unchanged; only a restore failure replaces it.
func (c *Controller) Enforce(ctx context.Context, screenID string, op Operation) (err error) {
	if c.broken != nil {
		return fmt.Errorf("multiscreen: enforce %q refused: %w", screenID, c.broken)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if !c.registry.Has(screenID) {
		return notFoundScreen(screenID, c.registry.Nearest(screenID))
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	prevState := c.state
	c.state = StateCapturing
	snapshot := c.capture(screenID)
	c.stack = append(c.stack, snapshot)
	c.logger.Debugf("captured snapshot %s for screen %q (depth %d)", snapshot.ID, screenID, snapshot.Depth)

	defer func() {
		err = c.restore(snapshot, prevState, err)
	}()

	c.state = StateApplying
	if applyErr := c.applyScreen(screenID); applyErr != nil {
		return applyErr
	}
	c.emit(journal.BuildRenderEnforcedEvent(journal.EventInput{
		Screen:     screenID,
		SnapshotID: snapshot.ID.String(),
		Depth:      snapshot.Depth,
	}))

	c.state = StateExecuting
	if op == nil {
		return nil
	}
	return op(ctx)
}

// EnforceResult runs op under screenID's enforced context and returns its
// value. The restore guarantee is Enforce's; the wrapper only threads the
// result through.
func EnforceResult[T any](ctx context.Context, c *Controller, screenID string, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.Enforce(ctx, screenID, func(ctx context.Context) error {
		value, opErr := op(ctx)
		if opErr != nil {
			return opErr
		}
		out = value
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// Activate repoints the active screen outside an enforcement. Push bindings
// deliver before control returns.
func (c *Controller) Activate(screenID string) error {
	if c.broken != nil {
		return fmt.Errorf("multiscreen: activate %q refused: %w", screenID, c.broken)
	}
	if !c.registry.Has(screenID) {
		return notFoundScreen(screenID, c.registry.Nearest(screenID))
	}
	c.registry.setActive(screenID)
	c.emit(journal.BuildScreenActivatedEvent(journal.EventInput{Screen: screenID}))
	return nil
}

// ActiveScreen returns the active screen id, or false when none is set.
func (c *Controller) ActiveScreen() (string, bool) {
	return c.registry.store.activeScreen()
}

// State reports where the controller is in the enforcement cycle.
func (c *Controller) State() ContextState { return c.state }

// Depth reports the current enforcement nesting depth.
func (c *Controller) Depth() int { return len(c.stack) }

// Broken returns the restore failure that poisoned the controller, or nil
// while it is healthy.
func (c *Controller) Broken() *RestoreError { return c.broken }

// EnforcedKeys returns a copy of the managed document keys.
func (c *Controller) EnforcedKeys() []string {
	return append([]string(nil), c.enforcedKeys...)
}

func (c *Controller) capture(screenID string) Snapshot {
	active, _ := c.registry.store.activeScreen()
	values := c.registry.host.DocumentValues(c.enforcedKeys...)
	var missing []string
	for _, key := range c.enforcedKeys {
		if _, ok := values[key]; !ok {
			missing = append(missing, key)
		}
	}
	return Snapshot{
		ID:       uuid.New(),
		ScreenID: screenID,
		Active:   active,
		Values:   values,
		Missing:  missing,
		Depth:    len(c.stack) + 1,
		TakenAt:  time.Now(),
	}
}

// applyScreen resolves the enforced keys under screenID and makes them the
// document state. Keys the screen's scope chain never defines keep their
// document values. The active screen repoints to screenID afterwards, which
// runs push delivery.
func (c *Controller) applyScreen(screenID string) error {
	values := make(map[string]string, len(c.enforcedKeys))
	for _, key := range c.enforcedKeys {
		value, err := c.registry.resolver.Resolve(screenID, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				c.logger.Debugf("screen %q leaves %q at its document value", screenID, key)
				continue
			}
			return err
		}
		values[key] = value
	}
	if err := c.ensureFormat(screenID, values); err != nil {
		return err
	}
	if err := c.registry.host.ApplyValues(values); err != nil {
		return fmt.Errorf("multiscreen: applying screen %q: %w", screenID, err)
	}
	c.registry.setActive(screenID)
	return nil
}

// ensureFormat registers the screen's named output format on the host when
// the host does not know it yet.
func (c *Controller) ensureFormat(screenID string, values map[string]string) error {
	name, ok := values[FormatKey]
	if !ok || c.registry.host.HasFormat(name) {
		return nil
	}
	definition, ok := values[FormatDefinitionKey]
	if !ok {
		return fmt.Errorf("%w: format %q is not registered on the host and %q is unset for screen %q",
			ErrNotFound, name, FormatDefinitionKey, screenID)
	}
	if err := c.registry.host.AddFormat(name, definition); err != nil {
		return fmt.Errorf("multiscreen: registering format %q: %w", name, err)
	}
	c.logger.Infof("registered output format %q for screen %q", name, screenID)
	return nil
}

// restore pops the enforcement's snapshot and reapplies its captured values
// and active screen; enforced keys the document lacked at capture are unset
// again. It runs from Enforce's defer, so it executes whether the operation
// returned, failed, or panicked. On success the operation's
// outcome passes through untouched; a restore failure replaces it and
// poisons the controller.
func (c *Controller) restore(snapshot Snapshot, prevState ContextState, opErr error) error {
	c.state = StateRestoring

	n := len(c.stack)
	if n == 0 || c.stack[n-1].ID != snapshot.ID {
		restoreErr := &RestoreError{
			Snapshot: snapshot,
			Err:      fmt.Errorf("snapshot stack imbalance: %s is not on top at depth %d", snapshot.ID, n),
			OpErr:    opErr,
		}
		c.fail(restoreErr, prevState)
		return restoreErr
	}
	c.stack = c.stack[:n-1]

	if err := c.registry.host.UnsetValues(snapshot.Missing...); err != nil {
		restoreErr := &RestoreError{Snapshot: snapshot, Err: err, OpErr: opErr}
		c.fail(restoreErr, prevState)
		return restoreErr
	}
	if err := c.registry.host.ApplyValues(snapshot.Values); err != nil {
		restoreErr := &RestoreError{Snapshot: snapshot, Err: err, OpErr: opErr}
		c.fail(restoreErr, prevState)
		return restoreErr
	}

	switch {
	case snapshot.Active == "":
		c.registry.setActive("")
	case c.registry.Has(snapshot.Active):
		c.registry.setActive(snapshot.Active)
	default:
		// The screen active at capture time was removed during the
		// operation; the registry already fell back to a survivor.
		c.logger.Warnf("screen %q active at capture no longer exists, keeping current active", snapshot.Active)
	}

	c.state = prevState
	c.emit(journal.BuildRenderRestoredEvent(journal.EventInput{
		Screen:     snapshot.ScreenID,
		SnapshotID: snapshot.ID.String(),
		Depth:      snapshot.Depth,
	}))
	return opErr
}

// fail records a fatal restore failure. The snapshot's contents go to the
// log so the lost state can be reapplied by hand.
func (c *Controller) fail(restoreErr *RestoreError, prevState ContextState) {
	c.broken = restoreErr
	c.state = prevState
	c.logger.Errorf("%v", restoreErr)
	c.logger.Errorf("lost snapshot %s: screen=%q active=%q depth=%d values=%v",
		restoreErr.Snapshot.ID, restoreErr.Snapshot.ScreenID, restoreErr.Snapshot.Active,
		restoreErr.Snapshot.Depth, restoreErr.Snapshot.Values)
	c.emit(journal.BuildRenderRestoreFailedEvent(journal.EventInput{
		Screen:     restoreErr.Snapshot.ScreenID,
		SnapshotID: restoreErr.Snapshot.ID.String(),
		Depth:      restoreErr.Snapshot.Depth,
		Reason:     restoreErr.Err.Error(),
	}))
}

func (c *Controller) emit(event journal.Event) {
	if c.emitter == nil || !c.emitter.Enabled() {
		return
	}
	if err := c.emitter.Emit(context.Background(), event); err != nil {
		c.logger.Warnf("journal emit failed for %s: %v", event.Verb, err)
	}
}

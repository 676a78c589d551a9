package multiscreen

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPath indicates a malformed scope path or variable key. The
	// store rejects the call before mutating anything.
	ErrInvalidPath = errors.New("multiscreen: invalid path")
	// ErrNotFound indicates a missing scope, variable, screen, or binding.
	ErrNotFound = errors.New("multiscreen: not found")
	// ErrConflict indicates a uniqueness violation: duplicate screen id,
	// rename collision, or a target already bound in the opposite mode.
	ErrConflict = errors.New("multiscreen: conflict")
	// ErrDanglingReference marks a binding whose screen or host target no
	// longer exists. The record is kept; delivery skips it.
	ErrDanglingReference = errors.New("multiscreen: dangling reference")
	// ErrRestoreFailure indicates a render context could not be restored.
	// Unlike the errors above it is fatal: the applied document state no
	// longer matches any snapshot and callers must stop issuing work.
	ErrRestoreFailure = errors.New("multiscreen: render context restore failed")
)

// RestoreError carries the snapshot that could not be re-applied after an
// enforced operation. Err holds the restoration failure; OpErr holds the
// operation's own outcome when it also failed, so neither is lost.
type RestoreError struct {
	Snapshot Snapshot
	Err      error
	OpErr    error
}

func (e *RestoreError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("multiscreen: restore of screen %q (snapshot %s, depth %d) failed: %v",
		e.Snapshot.ScreenID, e.Snapshot.ID, e.Snapshot.Depth, e.Err)
	if e.OpErr != nil {
		msg = fmt.Sprintf("%s (operation error: %v)", msg, e.OpErr)
	}
	return msg
}

// Unwrap exposes ErrRestoreFailure plus both underlying causes so errors.Is
// and errors.As see through the wrapper.
func (e *RestoreError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := []error{ErrRestoreFailure}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	if e.OpErr != nil {
		out = append(out, e.OpErr)
	}
	return out
}

func notFoundScreen(id, nearest string) error {
	if nearest != "" {
		return fmt.Errorf("%w: screen %q (closest match %q)", ErrNotFound, id, nearest)
	}
	return fmt.Errorf("%w: screen %q", ErrNotFound, id)
}

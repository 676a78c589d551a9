// Package journal defines the activity surface for screen, variable,
// binding, and render-context lifecycle events.
//
// The core emits one Event per state change and fans it out to registered
// hooks. Hooks are consumer-owned: a CLI may log them, a pipeline service
// may forward them to an audit store, tests capture them with CaptureHook.
// The usersink subpackage adapts events to go-users activity sinks.
//
// Events are best-effort by design: hook errors are joined and reported to
// the caller but never roll back the state change that produced them.
package journal

package journal

import (
	"strings"
	"time"
)

// EventInput describes the common fields for lifecycle event builders.
// Builders ignore fields that do not apply to their verb.
type EventInput struct {
	ActorID    string
	UserID     string
	TenantID   string
	Channel    string
	Screen     string
	Path       string
	Target     string
	Mode       string
	OldValue   string
	NewValue   string
	SnapshotID string
	Depth      int
	Reason     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildScreenAddedEvent constructs an event for screen registration.
func BuildScreenAddedEvent(input EventInput) Event {
	return buildEvent("screen.added", "screen", input)
}

// BuildScreenRemovedEvent constructs an event for screen removal.
func BuildScreenRemovedEvent(input EventInput) Event {
	return buildEvent("screen.removed", "screen", input)
}

// BuildScreenRenamedEvent constructs an event for a screen rename. OldValue
// and NewValue carry the ids.
func BuildScreenRenamedEvent(input EventInput) Event {
	return buildEvent("screen.renamed", "screen", input)
}

// BuildScreenActivatedEvent constructs an event for an active-screen switch.
func BuildScreenActivatedEvent(input EventInput) Event {
	return buildEvent("screen.activated", "screen", input)
}

// BuildVariableSetEvent constructs an event for a variable write.
func BuildVariableSetEvent(input EventInput) Event {
	return buildEvent("variable.set", "variable", input)
}

// BuildVariableRemovedEvent constructs an event for a variable removal.
func BuildVariableRemovedEvent(input EventInput) Event {
	return buildEvent("variable.removed", "variable", input)
}

// BuildBindingCreatedEvent constructs an event for a new override binding.
func BuildBindingCreatedEvent(input EventInput) Event {
	return buildEvent("binding.created", "binding", input)
}

// BuildBindingRemovedEvent constructs an event for an unbound target.
func BuildBindingRemovedEvent(input EventInput) Event {
	return buildEvent("binding.removed", "binding", input)
}

// BuildBindingDanglingEvent constructs an event for a binding degraded to a
// dangling reference.
func BuildBindingDanglingEvent(input EventInput) Event {
	return buildEvent("binding.dangling", "binding", input)
}

// BuildRenderEnforcedEvent constructs an event for an enforced render
// context apply.
func BuildRenderEnforcedEvent(input EventInput) Event {
	return buildEvent("render.enforced", "render", input)
}

// BuildRenderRestoredEvent constructs an event for a completed restoration.
func BuildRenderRestoredEvent(input EventInput) Event {
	return buildEvent("render.restored", "render", input)
}

// BuildRenderRestoreFailedEvent constructs an event for a failed
// restoration. The snapshot metadata records what was lost.
func BuildRenderRestoreFailedEvent(input EventInput) Event {
	return buildEvent("render.restore_failed", "render", input)
}

func buildEvent(verb, objectType string, input EventInput) Event {
	metadata := cloneMap(input.Metadata)
	if input.Target != "" {
		metadata = ensureMetadata(metadata)
		metadata["target"] = input.Target
	}
	if input.Mode != "" {
		metadata = ensureMetadata(metadata)
		metadata["mode"] = input.Mode
	}
	if input.OldValue != "" {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != "" {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}
	if input.SnapshotID != "" {
		metadata = ensureMetadata(metadata)
		metadata["snapshot_id"] = input.SnapshotID
	}
	if input.Depth > 0 {
		metadata = ensureMetadata(metadata)
		metadata["depth"] = input.Depth
	}
	if input.Reason != "" {
		metadata = ensureMetadata(metadata)
		metadata["reason"] = input.Reason
	}

	objectID := strings.TrimSpace(input.Screen)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Path)
	}
	if objectID == "" {
		objectID = strings.TrimSpace(input.Target)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: objectType,
		ObjectID:   objectID,
		Screen:     strings.TrimSpace(input.Screen),
		Path:       strings.TrimSpace(input.Path),
		Channel:    strings.TrimSpace(input.Channel),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}

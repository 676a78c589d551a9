package journal

import (
	"testing"
)

func TestBuildBindingCreatedEventShapesMetadata(t *testing.T) {
	event := BuildBindingCreatedEvent(EventInput{
		Screen: "Godzilla",
		Path:   "Overrides.Write1.file",
		Target: "Write1.file",
		Mode:   "pull",
	})

	if event.Verb != "binding.created" || event.ObjectType != "binding" {
		t.Fatalf("unexpected identity: %+v", event)
	}
	if event.ObjectID != "Godzilla" || event.Screen != "Godzilla" || event.Path != "Overrides.Write1.file" {
		t.Fatalf("unexpected addressing: %+v", event)
	}
	if event.Metadata["target"] != "Write1.file" || event.Metadata["mode"] != "pull" {
		t.Fatalf("unexpected metadata: %+v", event.Metadata)
	}
}

func TestBuildVariableSetEventCarriesValues(t *testing.T) {
	event := BuildVariableSetEvent(EventInput{
		Path:     "Godzilla.fps",
		OldValue: "24",
		NewValue: "48",
	})

	if event.Verb != "variable.set" || event.ObjectType != "variable" {
		t.Fatalf("unexpected identity: %+v", event)
	}
	// No screen on the input, so the path becomes the object id.
	if event.ObjectID != "Godzilla.fps" {
		t.Fatalf("object id fallback broken: %+v", event)
	}
	if event.Metadata["old_value"] != "24" || event.Metadata["new_value"] != "48" {
		t.Fatalf("values missing: %+v", event.Metadata)
	}
}

func TestBuildEventObjectIDFallbackChain(t *testing.T) {
	byTarget := BuildBindingDanglingEvent(EventInput{Target: "Write1.file", Reason: "gone"})
	if byTarget.ObjectID != "Write1.file" || byTarget.Metadata["reason"] != "gone" {
		t.Fatalf("target fallback broken: %+v", byTarget)
	}

	byType := BuildRenderRestoredEvent(EventInput{})
	if byType.ObjectID != "render" {
		t.Fatalf("type fallback broken: %+v", byType)
	}
}

func TestBuildRenderEventsCarrySnapshot(t *testing.T) {
	enforced := BuildRenderEnforcedEvent(EventInput{
		Screen:     "Godzilla",
		SnapshotID: "snap-1",
		Depth:      2,
	})
	if enforced.Verb != "render.enforced" {
		t.Fatalf("unexpected verb: %s", enforced.Verb)
	}
	if enforced.Metadata["snapshot_id"] != "snap-1" || enforced.Metadata["depth"] != 2 {
		t.Fatalf("snapshot metadata missing: %+v", enforced.Metadata)
	}

	failed := BuildRenderRestoreFailedEvent(EventInput{
		Screen:     "Godzilla",
		SnapshotID: "snap-1",
		Reason:     "document is read-only",
	})
	if failed.Verb != "render.restore_failed" || failed.Metadata["reason"] != "document is read-only" {
		t.Fatalf("failure metadata missing: %+v", failed)
	}
}

func TestBuildEventDoesNotMutateCallerMetadata(t *testing.T) {
	meta := map[string]any{"note": "keep"}
	event := BuildScreenRenamedEvent(EventInput{
		Screen:   "NYD400_v2",
		Metadata: meta,
		OldValue: "NYD400",
		NewValue: "NYD400_v2",
	})

	if event.Metadata["note"] != "keep" {
		t.Fatalf("caller metadata lost: %+v", event.Metadata)
	}
	if event.Metadata["old_value"] != "NYD400" || event.Metadata["new_value"] != "NYD400_v2" {
		t.Fatalf("rename values missing: %+v", event.Metadata)
	}
	if _, leaked := meta["old_value"]; leaked {
		t.Fatalf("builder wrote into the caller's map: %+v", meta)
	}
}

func TestScreenLifecycleVerbs(t *testing.T) {
	for _, tc := range []struct {
		build func(EventInput) Event
		verb  string
	}{
		{BuildScreenAddedEvent, "screen.added"},
		{BuildScreenRemovedEvent, "screen.removed"},
		{BuildScreenActivatedEvent, "screen.activated"},
		{BuildVariableRemovedEvent, "variable.removed"},
		{BuildBindingRemovedEvent, "binding.removed"},
	} {
		event := tc.build(EventInput{Screen: "Godzilla"})
		if event.Verb != tc.verb {
			t.Fatalf("verb = %q, want %q", event.Verb, tc.verb)
		}
		if event.ObjectID != "Godzilla" {
			t.Fatalf("%s object id = %q", tc.verb, event.ObjectID)
		}
	}
}

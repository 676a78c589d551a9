package multiscreen

import (
	"errors"
	"strings"
	"testing"

	"github.com/georgeantonopoulos/Nuke/pkg/journal"
)

func newTestRegistry(t *testing.T, opts ...RegistryOption) (*Registry, *Store, *MemoryHost) {
	t.Helper()
	store := NewStore()
	host := NewMemoryHost()
	return NewRegistry(store, host, opts...), store, host
}

func TestRegistryAddKeepsOrderAndScopes(t *testing.T) {
	registry, store, _ := newTestRegistry(t)

	for _, id := range []string{"Godzilla", "NYD400", "Cloverfield"} {
		if err := registry.Add(id); err != nil {
			t.Fatalf("add %s: %v", id, err)
		}
	}

	screens := registry.Screens()
	want := []string{"Godzilla", "NYD400", "Cloverfield"}
	for i, id := range want {
		if screens[i] != id {
			t.Fatalf("screens[%d] = %q, want %q", i, screens[i], id)
		}
	}
	if !store.HasScope("NYD400") {
		t.Fatalf("add did not create the screen scope")
	}

	if err := registry.Add("Godzilla"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate, got %v", err)
	}
	for _, bad := range []string{"", RootScopeName, "two.parts", "with space"} {
		if err := registry.Add(bad); !errors.Is(err, ErrInvalidPath) {
			t.Fatalf("add(%q): expected ErrInvalidPath, got %v", bad, err)
		}
	}
}

func TestRegistryRemoveCascades(t *testing.T) {
	registry, store, host := newTestRegistry(t)
	host.AddTarget("Write1.file")

	if err := registry.Add("Godzilla"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := registry.Add("NYD400"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := store.Set("Godzilla", "Overrides.Write1.file", "/out/godzilla.exr"); err != nil {
		t.Fatalf("set: %v", err)
	}
	binding, err := registry.Bind("Write1.file", "Godzilla", "Overrides.Write1.file", ModePull)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	if err := registry.Remove("Godzilla"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if registry.Has("Godzilla") || store.HasScope("Godzilla") {
		t.Fatalf("screen or scope survived removal")
	}
	if got := registry.Screens(); len(got) != 1 || got[0] != "NYD400" {
		t.Fatalf("unexpected screens after remove: %v", got)
	}

	left := registry.Bindings("Godzilla")
	if len(left) != 1 {
		t.Fatalf("binding disappeared with its screen: %v", left)
	}
	if left[0].ID != binding.ID || !left[0].Dangling {
		t.Fatalf("expected the same binding dangling, got %+v", left[0])
	}
}

func TestRegistryRemoveActiveFallsBack(t *testing.T) {
	registry, store, _ := newTestRegistry(t)
	for _, id := range []string{"A", "B", "C"} {
		if err := registry.Add(id); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	registry.setActive("B")

	if err := registry.Remove("B"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	active, ok := store.activeScreen()
	if !ok || active != "A" {
		t.Fatalf("expected fallback to first remaining screen, got %q ok=%t", active, ok)
	}

	if err := registry.Remove("A"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := registry.Remove("C"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := store.activeScreen(); ok {
		t.Fatalf("active pointer should clear when no screens remain")
	}
}

func TestRegistryRenameMovesEverything(t *testing.T) {
	registry, store, host := newTestRegistry(t)
	host.AddTarget("Write1.file")

	// A generator that pins the screen id makes the reassignment visible.
	registry.pullExpr = func(screenID, key string) string {
		return "gsv(\"" + screenID + "." + key + "\")"
	}

	for _, id := range []string{"Godzilla", "NYD400"} {
		if err := registry.Add(id); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	if err := store.Set("NYD400", "Overrides.Write1.file", "/out/nyd400.exr"); err != nil {
		t.Fatalf("set: %v", err)
	}
	binding, err := registry.Bind("Write1.file", "NYD400", "Overrides.Write1.file", ModePull)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	registry.setActive("NYD400")

	if err := registry.Rename("NYD400", "NYD400_v2"); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if registry.Has("NYD400") || !registry.Has("NYD400_v2") {
		t.Fatalf("rename did not swap registration")
	}
	if got := registry.Screens(); got[1] != "NYD400_v2" {
		t.Fatalf("rename changed ordering: %v", got)
	}
	if value, err := store.Local("NYD400_v2", "Overrides.Write1.file"); err != nil || value != "/out/nyd400.exr" {
		t.Fatalf("scope subtree did not move: %q %v", value, err)
	}

	moved := registry.Bindings("NYD400_v2")
	if len(moved) != 1 || moved[0].ID != binding.ID || moved[0].Dangling {
		t.Fatalf("binding did not follow the rename: %+v", moved)
	}
	if expr := host.TargetExpression("Write1.file"); !strings.Contains(expr, "NYD400_v2") {
		t.Fatalf("pull expression not reassigned: %q", expr)
	}
	if active, ok := store.activeScreen(); !ok || active != "NYD400_v2" {
		t.Fatalf("active pointer did not follow: %q ok=%t", active, ok)
	}
}

func TestRegistryRenameValidatesBeforeMutating(t *testing.T) {
	registry, store, _ := newTestRegistry(t)
	for _, id := range []string{"A", "B"} {
		if err := registry.Add(id); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	if err := registry.Rename("missing", "C"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := registry.Rename("A", "B"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := registry.Rename("A", "A"); !errors.Is(err, ErrConflict) {
		t.Fatalf("rename to itself must conflict, got %v", err)
	}
	if err := registry.Rename("A", "bad id"); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("expected ErrInvalidPath, got %v", err)
	}

	if got := registry.Screens(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("failed renames disturbed the registry: %v", got)
	}
	if !store.HasScope("A") || !store.HasScope("B") {
		t.Fatalf("failed renames disturbed the scope tree")
	}
}

func TestRegistryNearestSuggestsTypo(t *testing.T) {
	registry, _, _ := newTestRegistry(t)
	for _, id := range []string{"Godzilla", "NYD400"} {
		if err := registry.Add(id); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	err := registry.Remove("NYD40")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), `"NYD400"`) {
		t.Fatalf("expected a closest-match hint, got %q", err.Error())
	}

	// Nothing is close to a wildly different id.
	if nearest := registry.Nearest("zzzzzzzzzz"); nearest != "" {
		t.Fatalf("expected no suggestion, got %q", nearest)
	}
}

func TestRegistryEmitsLifecycleEvents(t *testing.T) {
	capture := &journal.CaptureHook{}
	emitter := journal.NewEmitter(journal.Hooks{capture}, journal.Config{Enabled: true})
	registry, _, _ := newTestRegistry(t, WithRegistryJournal(emitter))

	if err := registry.Add("Godzilla"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := registry.Rename("Godzilla", "Godzilla_v2"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if err := registry.Remove("Godzilla_v2"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	verbs := capture.Verbs()
	want := []string{"screen.added", "screen.renamed", "screen.removed"}
	if len(verbs) != len(want) {
		t.Fatalf("unexpected verbs %v", verbs)
	}
	for i, verb := range want {
		if verbs[i] != verb {
			t.Fatalf("verbs[%d] = %q, want %q", i, verbs[i], verb)
		}
	}

	renamed := capture.Events[1]
	if renamed.Screen != "Godzilla_v2" || renamed.Metadata["previous"] != "Godzilla" {
		t.Fatalf("rename event missing previous id: %+v", renamed)
	}
}

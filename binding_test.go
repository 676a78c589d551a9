package multiscreen

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

// recordingHost observes push deliveries and can refuse them.
type recordingHost struct {
	*MemoryHost
	sets   []string
	setErr error
}

func (h *recordingHost) SetTargetValue(ref, value string) error {
	if h.setErr != nil {
		return h.setErr
	}
	if err := h.MemoryHost.SetTargetValue(ref, value); err != nil {
		return err
	}
	h.sets = append(h.sets, ref+"="+value)
	return nil
}

func newBindingFixture(t *testing.T) (*Registry, *Store, *recordingHost) {
	t.Helper()
	store := NewStore()
	host := &recordingHost{MemoryHost: NewMemoryHost()}
	registry := NewRegistry(store, host)
	if err := registry.Add("Godzilla"); err != nil {
		t.Fatalf("add: %v", err)
	}
	return registry, store, host
}

func TestBindPullInstallsRelativeExpression(t *testing.T) {
	registry, _, host := newBindingFixture(t)
	host.AddTarget("Write1.file")

	binding, err := registry.Bind("Write1.file", "Godzilla", "Overrides.Write1.file", ModePull)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if binding.ID == uuid.Nil || binding.Mode != ModePull || binding.Dangling {
		t.Fatalf("unexpected binding: %+v", binding)
	}

	// The expression names only the key. Whichever screen is active when
	// the host evaluates it supplies the value.
	want := `gsv("Overrides.Write1.file")`
	if got := host.TargetExpression("Write1.file"); got != want {
		t.Fatalf("expression = %q, want %q", got, want)
	}
}

func TestBindValidates(t *testing.T) {
	registry, _, host := newBindingFixture(t)
	host.AddTarget("Write1.file")

	if _, err := registry.Bind("  ", "Godzilla", "fps", ModePull); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("blank target: %v", err)
	}
	if _, err := registry.Bind("Write1.file", "Godzilla", "fps", ModeUnknown); err == nil {
		t.Fatalf("expected unknown mode to be rejected")
	}
	if _, err := registry.Bind("Write1.file", "Godzilla", "a..b", ModePull); !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("bad key: %v", err)
	}
	if _, err := registry.Bind("Write1.file", "Missing", "fps", ModePull); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing screen: %v", err)
	}
	if _, err := registry.Bind("NoSuch.node", "Godzilla", "fps", ModePull); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing target: %v", err)
	}
}

func TestBindTargetIsExclusive(t *testing.T) {
	registry, _, host := newBindingFixture(t)
	host.AddTarget("Write1.file")
	if err := registry.Add("NYD400"); err != nil {
		t.Fatalf("add: %v", err)
	}

	first, err := registry.Bind("Write1.file", "Godzilla", "Overrides.Write1.file", ModePull)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}

	// The identical bind is a no-op that hands back the existing record.
	again, err := registry.Bind("Write1.file", "Godzilla", "Overrides.Write1.file", ModePull)
	if err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("identical bind minted a new id: %s vs %s", again.ID, first.ID)
	}
	if got := registry.Bindings(""); len(got) != 1 {
		t.Fatalf("duplicate record appeared: %v", got)
	}

	if _, err := registry.Bind("Write1.file", "NYD400", "Overrides.Write1.file", ModePull); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := registry.Bind("Write1.file", "Godzilla", "Overrides.Write1.file", ModePush); !errors.Is(err, ErrConflict) {
		t.Fatalf("mode change must conflict, got %v", err)
	}
}

func TestPushDeliversOnBindAndActivation(t *testing.T) {
	registry, store, host := newBindingFixture(t)
	host.AddTarget("Monitor1.label")
	host.AddTarget("Monitor2.note")

	if err := store.Set(RootScopeName, "label", "house"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(RootScopeName, "note", "idle"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set("Godzilla", "label", "GODZILLA // 4K"); err != nil {
		t.Fatalf("set: %v", err)
	}

	// No screen is active yet, so the bind-time delivery resolves under
	// the root scope.
	if _, err := registry.Bind("Monitor1.label", "Godzilla", "label", ModePush); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := registry.Bind("Monitor2.note", "Godzilla", "note", ModePush); err != nil {
		t.Fatalf("bind: %v", err)
	}
	want := []string{"Monitor1.label=house", "Monitor2.note=idle"}
	if len(host.sets) != 2 || host.sets[0] != want[0] || host.sets[1] != want[1] {
		t.Fatalf("bind-time deliveries = %v, want %v", host.sets, want)
	}

	// Activation redelivers in registration order. The note resolves to
	// the same root value, so only the label moves.
	registry.setActive("Godzilla")
	if len(host.sets) != 3 || host.sets[2] != "Monitor1.label=GODZILLA // 4K" {
		t.Fatalf("activation deliveries = %v", host.sets)
	}

	// Repeating the activation delivers nothing new.
	registry.setActive("Godzilla")
	if len(host.sets) != 3 {
		t.Fatalf("repeat activation redelivered: %v", host.sets)
	}

	// A value change followed by a delivery sweep reaches the target.
	if err := store.Set("Godzilla", "note", "rolling"); err != nil {
		t.Fatalf("set: %v", err)
	}
	registry.deliver()
	if len(host.sets) != 4 || host.sets[3] != "Monitor2.note=rolling" {
		t.Fatalf("sweep deliveries = %v", host.sets)
	}
}

func TestPushUnresolvedKeyKeepsTarget(t *testing.T) {
	registry, _, host := newBindingFixture(t)
	host.AddTarget("Monitor1.label")

	binding, err := registry.Bind("Monitor1.label", "Godzilla", "label", ModePush)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if len(host.sets) != 0 {
		t.Fatalf("unresolved key delivered: %v", host.sets)
	}
	if got := registry.Bindings("")[0]; got.ID != binding.ID || got.Dangling {
		t.Fatalf("unresolved delivery degraded the binding: %+v", got)
	}
}

func TestPushRefusedDeliveryDegradesToDangling(t *testing.T) {
	registry, store, host := newBindingFixture(t)
	host.AddTarget("Monitor1.label")
	if err := store.Set(RootScopeName, "label", "house"); err != nil {
		t.Fatalf("set: %v", err)
	}

	host.setErr = errors.New("node is locked")
	if _, err := registry.Bind("Monitor1.label", "Godzilla", "label", ModePush); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if got := registry.Bindings(""); !got[0].Dangling {
		t.Fatalf("refused delivery left binding live: %+v", got[0])
	}

	// Repair accepts deliveries again and keeps the binding id.
	host.setErr = nil
	old := registry.Bindings("")[0]
	revived, err := registry.Bind("Monitor1.label", "Godzilla", "label", ModePush)
	if err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if revived.ID != old.ID || revived.Dangling {
		t.Fatalf("revive minted a new binding: %+v", revived)
	}
	if len(host.sets) != 1 || host.sets[0] != "Monitor1.label=house" {
		t.Fatalf("revive did not deliver: %v", host.sets)
	}
}

func TestUnbindClearsPullExpression(t *testing.T) {
	registry, _, host := newBindingFixture(t)
	host.AddTarget("Write1.file")

	binding, err := registry.Bind("Write1.file", "Godzilla", "Overrides.Write1.file", ModePull)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := registry.Unbind(binding.ID); err != nil {
		t.Fatalf("unbind: %v", err)
	}
	if expr := host.TargetExpression("Write1.file"); expr != "" {
		t.Fatalf("expression survived unbind: %q", expr)
	}
	if got := registry.Bindings(""); len(got) != 0 {
		t.Fatalf("binding survived unbind: %v", got)
	}
	if err := registry.Unbind(uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVerifySweepsMissingTargets(t *testing.T) {
	registry, store, host := newBindingFixture(t)
	host.AddTarget("Write1.file")
	host.AddTarget("Monitor1.label")
	if err := store.Set(RootScopeName, "label", "house"); err != nil {
		t.Fatalf("set: %v", err)
	}

	pull, err := registry.Bind("Write1.file", "Godzilla", "Overrides.Write1.file", ModePull)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if _, err := registry.Bind("Monitor1.label", "Godzilla", "label", ModePush); err != nil {
		t.Fatalf("bind: %v", err)
	}

	host.RemoveTarget("Write1.file")
	errs := registry.Verify()
	if len(errs) != 1 || !errors.Is(errs[0], ErrDanglingReference) {
		t.Fatalf("unexpected sweep result: %v", errs)
	}
	if got := registry.Bindings("")[0]; got.ID != pull.ID || !got.Dangling {
		t.Fatalf("sweep did not degrade the binding: %+v", got)
	}

	// Degraded bindings are reported once, not on every sweep.
	if errs := registry.Verify(); len(errs) != 0 {
		t.Fatalf("second sweep re-reported: %v", errs)
	}
}

func TestDanglingBindingStaysInertUntilRebound(t *testing.T) {
	registry, store, host := newBindingFixture(t)
	host.AddTarget("Monitor1.label")
	if err := store.Set(RootScopeName, "label", "house"); err != nil {
		t.Fatalf("set: %v", err)
	}

	binding, err := registry.Bind("Monitor1.label", "Godzilla", "label", ModePush)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	delivered := len(host.sets)

	host.RemoveTarget("Monitor1.label")
	if errs := registry.Verify(); len(errs) != 1 {
		t.Fatalf("sweep: %v", errs)
	}

	// The target coming back does not revive the link by itself.
	host.AddTarget("Monitor1.label")
	registry.setActive("Godzilla")
	if len(host.sets) != delivered {
		t.Fatalf("dangling binding delivered: %v", host.sets)
	}

	revived, err := registry.Bind("Monitor1.label", "Godzilla", "label", ModePush)
	if err != nil {
		t.Fatalf("rebind: %v", err)
	}
	if revived.ID != binding.ID || revived.Dangling {
		t.Fatalf("repair minted a new binding: %+v", revived)
	}
	if len(host.sets) != delivered+1 {
		t.Fatalf("repair did not redeliver: %v", host.sets)
	}
}

func TestWithPullExpressionGenerator(t *testing.T) {
	store := NewStore()
	host := NewMemoryHost()
	registry := NewRegistry(store, host, WithPullExpression(func(screenID, key string) string {
		return "lookup('" + screenID + "', '" + key + "')"
	}))
	if err := registry.Add("Godzilla"); err != nil {
		t.Fatalf("add: %v", err)
	}
	host.AddTarget("Write1.file")

	if _, err := registry.Bind("Write1.file", "Godzilla", "fps", ModePull); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if got := host.TargetExpression("Write1.file"); got != "lookup('Godzilla', 'fps')" {
		t.Fatalf("generator ignored: %q", got)
	}
}

func TestBindingModeText(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want BindingMode
	}{
		{"pull", ModePull},
		{" PUSH ", ModePush},
	} {
		mode, err := ParseBindingMode(tc.in)
		if err != nil || mode != tc.want {
			t.Fatalf("ParseBindingMode(%q) = %v, %v", tc.in, mode, err)
		}
	}
	if _, err := ParseBindingMode("drag"); err == nil {
		t.Fatalf("expected parse error")
	}

	var mode BindingMode
	if err := mode.UnmarshalText([]byte("push")); err != nil || mode != ModePush {
		t.Fatalf("UnmarshalText: %v %v", mode, err)
	}
	if ModeUnknown.String() != "unknown" {
		t.Fatalf("zero mode spelled %q", ModeUnknown.String())
	}
}

package docstore

import (
	"context"
	"errors"
	"testing"
)

// showDoc is a minimal document shape for store tests.
type showDoc struct {
	Screens []string `json:"screens"`
	FPS     string   `json:"fps"`
}

func TestMutateCreatesOnMiss(t *testing.T) {
	manager := Manager[showDoc]{Store: NewMemoryStore[showDoc]()}
	ref := Ref{Project: "berlin", Name: "stage-a"}

	doc, meta, err := manager.Mutate(context.Background(), ref, Meta{}, func(d *showDoc) error {
		d.Screens = []string{"Godzilla"}
		d.FPS = "48"
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if len(doc.Screens) != 1 || doc.FPS != "48" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if meta.SnapshotID == "" || meta.ETag == "" || meta.UpdatedAt.IsZero() {
		t.Fatalf("save metadata incomplete: %+v", meta)
	}

	stored, storedMeta, ok, err := manager.Store.Load(context.Background(), ref)
	if err != nil || !ok {
		t.Fatalf("load: ok=%t err=%v", ok, err)
	}
	if stored.FPS != "48" || storedMeta.ETag != meta.ETag {
		t.Fatalf("store drifted: %+v %+v", stored, storedMeta)
	}
}

func TestMutateETagPrecondition(t *testing.T) {
	manager := Manager[showDoc]{Store: NewMemoryStore[showDoc]()}
	ref := Ref{Project: "berlin", Name: "stage-a"}

	_, first, err := manager.Mutate(context.Background(), ref, Meta{}, func(d *showDoc) error {
		d.FPS = "24"
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// A stale etag rejects the edit and leaves the document alone.
	_, _, err = manager.Mutate(context.Background(), ref, Meta{ETag: "stale"}, func(d *showDoc) error {
		d.FPS = "9999"
		return nil
	})
	if !errors.Is(err, ErrETagMismatch) {
		t.Fatalf("expected ErrETagMismatch, got %v", err)
	}
	if doc, _, _, _ := manager.Store.Load(context.Background(), ref); doc.FPS != "24" {
		t.Fatalf("rejected edit was written: %+v", doc)
	}

	// The current etag admits the edit and a new etag comes back.
	doc, second, err := manager.Mutate(context.Background(), ref, Meta{ETag: first.ETag}, func(d *showDoc) error {
		d.FPS = "48"
		return nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if doc.FPS != "48" || second.ETag == first.ETag {
		t.Fatalf("edit not applied: %+v etag=%q", doc, second.ETag)
	}

	// No etag means no precondition.
	if _, _, err := manager.Mutate(context.Background(), ref, Meta{}, func(d *showDoc) error {
		d.FPS = "30"
		return nil
	}); err != nil {
		t.Fatalf("unconditional mutate: %v", err)
	}
}

func TestMutateETagTracksContent(t *testing.T) {
	ctx := context.Background()
	write := func(t *testing.T, fps string) Meta {
		t.Helper()
		manager := Manager[showDoc]{Store: NewMemoryStore[showDoc]()}
		_, meta, err := manager.Mutate(ctx, Ref{Project: "p", Name: "n"}, Meta{}, func(d *showDoc) error {
			d.FPS = fps
			return nil
		})
		if err != nil {
			t.Fatalf("mutate: %v", err)
		}
		return meta
	}

	a := write(t, "24")
	b := write(t, "24")
	c := write(t, "48")

	if a.ETag != b.ETag {
		t.Fatalf("identical content produced different etags: %q vs %q", a.ETag, b.ETag)
	}
	if a.ETag == c.ETag {
		t.Fatalf("different content shares an etag: %q", a.ETag)
	}
}

func TestMutateValidateBlocksSave(t *testing.T) {
	wantErr := errors.New("fps is required")
	manager := Manager[showDoc]{
		Store: NewMemoryStore[showDoc](),
		Validate: func(d showDoc) error {
			if d.FPS == "" {
				return wantErr
			}
			return nil
		},
	}
	ref := Ref{Project: "berlin", Name: "stage-a"}

	_, _, err := manager.Mutate(context.Background(), ref, Meta{}, func(d *showDoc) error {
		d.Screens = []string{"Godzilla"}
		return nil
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, _, ok, _ := manager.Store.Load(context.Background(), ref); ok {
		t.Fatalf("invalid document was saved")
	}
}

func TestMutateArgumentChecks(t *testing.T) {
	ctx := context.Background()
	noop := func(*showDoc) error { return nil }

	if _, _, err := (Manager[showDoc]{}).Mutate(ctx, Ref{Project: "p", Name: "n"}, Meta{}, noop); err == nil {
		t.Fatalf("nil store accepted")
	}

	manager := Manager[showDoc]{Store: NewMemoryStore[showDoc]()}
	if _, _, err := manager.Mutate(ctx, Ref{Project: "p", Name: "n"}, Meta{}, nil); err == nil {
		t.Fatalf("nil mutator accepted")
	}
	if _, _, err := manager.Mutate(ctx, Ref{Name: "n"}, Meta{}, noop); err == nil {
		t.Fatalf("ref without project accepted")
	}
	if _, _, err := manager.Mutate(ctx, Ref{Project: "p"}, Meta{}, noop); err == nil {
		t.Fatalf("ref without name accepted")
	}

	failing := errors.New("mutator gave up")
	if _, _, err := manager.Mutate(ctx, Ref{Project: "p", Name: "n"}, Meta{}, func(*showDoc) error {
		return failing
	}); !errors.Is(err, failing) {
		t.Fatalf("mutator error lost: %v", err)
	}
}

func TestMutateCarriesExtraMetadata(t *testing.T) {
	manager := Manager[showDoc]{Store: NewMemoryStore[showDoc]()}
	ref := Ref{Project: "berlin", Name: "stage-a"}
	ctx := context.Background()

	_, first, err := manager.Mutate(ctx, ref, Meta{Extra: map[string]string{"author": "jo"}}, func(d *showDoc) error {
		d.FPS = "24"
		return nil
	})
	if err != nil || first.Extra["author"] != "jo" {
		t.Fatalf("extra metadata lost on save: %+v %v", first, err)
	}

	// A later edit without Extra keeps what the store already holds.
	_, second, err := manager.Mutate(ctx, ref, Meta{}, func(d *showDoc) error {
		d.FPS = "48"
		return nil
	})
	if err != nil || second.Extra["author"] != "jo" {
		t.Fatalf("extra metadata dropped on edit: %+v %v", second, err)
	}
}

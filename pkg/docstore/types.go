// Package docstore persists screen documents outside the host graph, for
// tooling that edits multi-screen state without a running host. Stores are
// keyed by project and document name and guard concurrent edits with etags.
package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

var ErrETagMismatch = errors.New("docstore: etag mismatch")

// Ref identifies one stored document.
type Ref struct {
	Project string
	Name    string
}

// Identifier returns the deterministic storage key for a reference.
func (r Ref) Identifier() (string, error) {
	if r.Project == "" {
		return "", fmt.Errorf("docstore: project is required")
	}
	if r.Name == "" {
		return "", fmt.Errorf("docstore: document name is required")
	}
	return fmt.Sprintf("%s/%s", r.Project, r.Name), nil
}

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves one document per reference.
type Store[T any] interface {
	Load(ctx context.Context, ref Ref) (snapshot T, meta Meta, ok bool, err error)
	Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error)
}

// Mutator edits a document in place during Mutate.
type Mutator[T any] func(*T) error

// Manager wraps a Store with optimistic-concurrency edits and optional
// validation.
type Manager[T any] struct {
	Store Store[T]
	// Validate, when set, runs against the mutated document before save.
	Validate func(T) error
}

// Mutate loads ref, applies fn, validates, and saves under a fresh etag.
// When meta carries an ETag it must match the stored one, otherwise the
// edit is rejected with ErrETagMismatch and nothing is written.
func (m Manager[T]) Mutate(ctx context.Context, ref Ref, meta Meta, fn Mutator[T]) (T, Meta, error) {
	var zero T
	if m.Store == nil {
		return zero, Meta{}, fmt.Errorf("docstore: store is required")
	}
	if fn == nil {
		return zero, Meta{}, fmt.Errorf("docstore: mutator is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return zero, Meta{}, err
	}

	snapshot, loadedMeta, ok, err := m.Store.Load(ctx, ref)
	if err != nil {
		return zero, Meta{}, fmt.Errorf("docstore: load %s/%s: %w", ref.Project, ref.Name, err)
	}
	if !ok {
		snapshot = zero
		loadedMeta = Meta{}
	}

	if meta.ETag != "" && loadedMeta.ETag != "" && meta.ETag != loadedMeta.ETag {
		return zero, loadedMeta, fmt.Errorf("%w: expected %q, got %q", ErrETagMismatch, meta.ETag, loadedMeta.ETag)
	}

	if err := fn(&snapshot); err != nil {
		return zero, loadedMeta, err
	}
	if m.Validate != nil {
		if err := m.Validate(snapshot); err != nil {
			return zero, loadedMeta, err
		}
	}

	saveMeta := mergeMeta(loadedMeta, meta)
	saveMeta.SnapshotID = uuid.NewString()
	saveMeta.UpdatedAt = time.Now().UTC()
	saveMeta.ETag, err = contentETag(snapshot)
	if err != nil {
		return zero, loadedMeta, err
	}

	savedMeta, err := m.Store.Save(ctx, ref, snapshot, saveMeta)
	if err != nil {
		return zero, loadedMeta, fmt.Errorf("docstore: save %s/%s: %w", ref.Project, ref.Name, err)
	}
	return snapshot, savedMeta, nil
}

// contentETag derives the etag from the document's canonical JSON form, so
// identical content always carries the same tag regardless of which store
// holds it.
func contentETag[T any](snapshot T) (string, error) {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("docstore: etag: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

package docstore

import (
	"context"
	"sync"
)

// MemoryStore keeps documents in process memory. It is the default store
// for tests and for sessions that never touch disk.
type MemoryStore[T any] struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry[T]
}

type memoryEntry[T any] struct {
	snapshot T
	meta     Meta
}

func NewMemoryStore[T any]() *MemoryStore[T] {
	return &MemoryStore[T]{entries: map[string]memoryEntry[T]{}}
}

func (s *MemoryStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, Meta{}, false, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[key]
	if !ok {
		return zero, Meta{}, false, nil
	}
	return entry.snapshot, cloneMeta(entry.meta), true, nil
}

func (s *MemoryStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := cloneMeta(meta)
	s.entries[key] = memoryEntry[T]{snapshot: snapshot, meta: stored}
	return cloneMeta(stored), nil
}

// Delete removes a stored document. Deleting a missing reference is a no-op.
func (s *MemoryStore[T]) Delete(ctx context.Context, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := ref.Identifier()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra != nil {
		out.Extra = make(map[string]string, len(meta.Extra))
		for k, v := range meta.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

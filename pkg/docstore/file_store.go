package docstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
)

// FileStore persists documents as JSON envelopes under a root directory,
// one file per reference at <root>/<project>/<name>.screens.
type FileStore[T any] struct {
	root string
}

type fileEnvelope[T any] struct {
	Meta     Meta `json:"meta"`
	Snapshot T    `json:"snapshot"`
}

func NewFileStore[T any](root string) (*FileStore[T], error) {
	if root == "" {
		return nil, fmt.Errorf("docstore: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("docstore: create root: %w", err)
	}
	return &FileStore[T]{root: root}, nil
}

func (s *FileStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, Meta{}, false, err
	}
	path, err := s.path(ref)
	if err != nil {
		return zero, Meta{}, false, err
	}

	payload, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return zero, Meta{}, false, nil
	}
	if err != nil {
		return zero, Meta{}, false, fmt.Errorf("docstore: read %s: %w", path, err)
	}

	var envelope fileEnvelope[T]
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return zero, Meta{}, false, fmt.Errorf("docstore: decode %s: %w", path, err)
	}
	return envelope.Snapshot, envelope.Meta, true, nil
}

func (s *FileStore[T]) Save(ctx context.Context, ref Ref, snapshot T, meta Meta) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	path, err := s.path(ref)
	if err != nil {
		return Meta{}, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Meta{}, fmt.Errorf("docstore: create project dir: %w", err)
	}

	payload, err := json.MarshalIndent(fileEnvelope[T]{Meta: meta, Snapshot: snapshot}, "", "  ")
	if err != nil {
		return Meta{}, fmt.Errorf("docstore: encode %s: %w", path, err)
	}

	// Write through a temp file in the same directory so a crash mid-write
	// never leaves a truncated document behind.
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return Meta{}, fmt.Errorf("docstore: stage %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return Meta{}, fmt.Errorf("docstore: stage %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return Meta{}, fmt.Errorf("docstore: stage %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return Meta{}, fmt.Errorf("docstore: replace %s: %w", path, err)
	}
	return meta, nil
}

// Delete removes a stored document. Deleting a missing reference is a no-op.
func (s *FileStore[T]) Delete(ctx context.Context, ref Ref) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("docstore: remove %s: %w", path, err)
	}
	return nil
}

// List returns the references stored under one project, sorted by filename.
func (s *FileStore[T]) List(ctx context.Context, project string) ([]Ref, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateSegment(project); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(s.root, project))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", project, err)
	}

	var refs []Ref
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, ok := strings.CutSuffix(entry.Name(), fileExtension)
		if !ok {
			continue
		}
		refs = append(refs, Ref{Project: project, Name: name})
	}
	return refs, nil
}

const fileExtension = ".screens"

func (s *FileStore[T]) path(ref Ref) (string, error) {
	if _, err := ref.Identifier(); err != nil {
		return "", err
	}
	if err := validateSegment(ref.Project); err != nil {
		return "", err
	}
	if err := validateSegment(ref.Name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, ref.Project, ref.Name+fileExtension), nil
}

// validateSegment rejects path components that would escape the store root.
func validateSegment(segment string) error {
	if segment == "" {
		return fmt.Errorf("docstore: empty path segment")
	}
	if segment == "." || segment == ".." {
		return fmt.Errorf("docstore: reserved path segment %q", segment)
	}
	if strings.ContainsAny(segment, `/\`) {
		return fmt.Errorf("docstore: path segment %q contains a separator", segment)
	}
	return nil
}

package multiscreen

import (
	"fmt"
	"strings"
)

const (
	// RootScopeName is the reserved name of the scope tree root. It is the
	// only scope without a parent and the final stop of every resolution
	// walk.
	RootScopeName = "__default__"
	// ActiveScreenKey is the root variable holding the currently active
	// screen id. It is written through Controller.Activate and the enforce
	// apply path only.
	ActiveScreenKey = "screen"
)

// pathSeparator joins scope segments and variable keys.
const pathSeparator = "."

// validSegment accepts letters, digits, underscore, and hyphen. Dots are
// structural and never part of a segment, which also keeps screen ids free
// of path separators.
func validSegment(segment string) bool {
	if segment == "" {
		return false
	}
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '_' || r == '-':
		default:
			return false
		}
	}
	return true
}

// splitScopePath validates path and returns its segments relative to the
// root. The root itself is addressed by RootScopeName alone and yields an
// empty segment list; RootScopeName is rejected anywhere else so every scope
// has exactly one spelling.
func splitScopePath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: scope path is empty", ErrInvalidPath)
	}
	if path == RootScopeName {
		return nil, nil
	}
	segments := strings.Split(path, pathSeparator)
	for _, segment := range segments {
		if segment == RootScopeName {
			return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidPath, RootScopeName)
		}
		if !validSegment(segment) {
			return nil, fmt.Errorf("%w: bad segment %q in scope path %q", ErrInvalidPath, segment, path)
		}
	}
	return segments, nil
}

// splitKey validates a variable key. Keys are dot-separated relative names;
// the final segment is the leaf, leading segments address child scopes of
// the scope the key is read against.
func splitKey(key string) ([]string, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is empty", ErrInvalidPath)
	}
	segments := strings.Split(key, pathSeparator)
	for _, segment := range segments {
		if segment == RootScopeName {
			return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidPath, RootScopeName)
		}
		if !validSegment(segment) {
			return nil, fmt.Errorf("%w: bad segment %q in key %q", ErrInvalidPath, segment, key)
		}
	}
	return segments, nil
}

// joinPath appends a relative name to a scope path, collapsing the root
// prefix so canonical spellings stay canonical.
func joinPath(scopePath, name string) string {
	if scopePath == "" || scopePath == RootScopeName {
		return name
	}
	return scopePath + pathSeparator + name
}

// scopeScreen returns the screen owning a scope path: its first segment, or
// "" for the root.
func scopeScreen(path string) string {
	if path == "" || path == RootScopeName {
		return ""
	}
	head, _, _ := strings.Cut(path, pathSeparator)
	return head
}

// cutPath splits a path at its first separator.
func cutPath(path string) (head, rest string, found bool) {
	return strings.Cut(path, pathSeparator)
}

// SplitPath splits a full variable path such as
// "Godzilla.Overrides.Write1.filepath" into its scope path and leaf key.
// A single-segment path addresses a root variable: SplitPath("screen")
// returns (RootScopeName, "screen").
func SplitPath(full string) (scopePath, key string, err error) {
	if full == "" {
		return "", "", fmt.Errorf("%w: path is empty", ErrInvalidPath)
	}
	idx := strings.LastIndex(full, pathSeparator)
	if idx < 0 {
		if _, err := splitKey(full); err != nil {
			return "", "", err
		}
		return RootScopeName, full, nil
	}
	scopePath, key = full[:idx], full[idx+1:]
	if scopePath == RootScopeName {
		if _, err := splitKey(key); err != nil {
			return "", "", err
		}
		return RootScopeName, key, nil
	}
	if _, err := splitScopePath(scopePath); err != nil {
		return "", "", err
	}
	if _, err := splitKey(key); err != nil {
		return "", "", err
	}
	return scopePath, key, nil
}

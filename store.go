package multiscreen

import (
	"fmt"
	"sort"
	"strings"
)

// scopeNode is one scope in the tree. Children hold nested scopes, values
// hold the leaf variables stored directly on this scope.
type scopeNode struct {
	name     string
	path     string
	parent   *scopeNode
	children map[string]*scopeNode
	values   map[string]string
}

func newScopeNode(name, path string, parent *scopeNode) *scopeNode {
	return &scopeNode{
		name:     name,
		path:     path,
		parent:   parent,
		children: map[string]*scopeNode{},
		values:   map[string]string{},
	}
}

// lookup reads a relative dotted key below this scope without consulting
// ancestors. The final segment is the leaf, leading segments descend into
// child scopes.
func (n *scopeNode) lookup(segments []string) (string, bool) {
	cur := n
	for _, segment := range segments[:len(segments)-1] {
		child, ok := cur.children[segment]
		if !ok {
			return "", false
		}
		cur = child
	}
	value, ok := cur.values[segments[len(segments)-1]]
	return value, ok
}

// Store is the hierarchical variable store backing every screen scope. All
// values are opaque strings; typed interpretation belongs to consumers.
//
// The store is not synchronized: it mirrors the host's cooperative,
// single-threaded evaluation model and expects the host to serialize all
// graph-mutating calls.
type Store struct {
	root    *scopeNode
	version uint64
}

// NewStore constructs a store holding only the root scope.
func NewStore() *Store {
	return &Store{root: newScopeNode(RootScopeName, RootScopeName, nil)}
}

// Version returns a counter that moves on every mutation. Resolver caches
// key their entries on it.
func (s *Store) Version() uint64 {
	return s.version
}

func (s *Store) bump() {
	s.version++
}

func (s *Store) node(path string) (*scopeNode, bool) {
	segments, err := splitScopePath(path)
	if err != nil {
		return nil, false
	}
	return s.nodeBySegments(segments)
}

func (s *Store) nodeBySegments(segments []string) (*scopeNode, bool) {
	cur := s.root
	for _, segment := range segments {
		child, ok := cur.children[segment]
		if !ok {
			return nil, false
		}
		cur = child
	}
	return cur, true
}

// ensureSegments descends from the root creating missing scopes. It reports
// whether anything was created so callers can decide to bump the version.
func (s *Store) ensureSegments(segments []string) (*scopeNode, bool) {
	cur := s.root
	created := false
	for _, segment := range segments {
		child, ok := cur.children[segment]
		if !ok {
			child = newScopeNode(segment, joinPath(cur.path, segment), cur)
			cur.children[segment] = child
			created = true
		}
		cur = child
	}
	return cur, created
}

// EnsureScope creates the scope at path together with any missing
// intermediates. Calling it on an existing scope is a no-op.
func (s *Store) EnsureScope(path string) error {
	segments, err := splitScopePath(path)
	if err != nil {
		return err
	}
	if _, created := s.ensureSegments(segments); created {
		s.bump()
	}
	return nil
}

// HasScope reports whether path names an existing scope.
func (s *Store) HasScope(path string) bool {
	_, ok := s.node(path)
	return ok
}

// Set writes value under scopePath/key, creating intermediate scopes as
// needed. The root's active-screen variable is reserved for the render
// controller and rejected here.
func (s *Store) Set(scopePath, key, value string) error {
	scopeSegs, err := splitScopePath(scopePath)
	if err != nil {
		return err
	}
	keySegs, err := splitKey(key)
	if err != nil {
		return err
	}
	if len(scopeSegs) == 0 && len(keySegs) == 1 && keySegs[0] == ActiveScreenKey {
		return fmt.Errorf("%w: %s.%s is maintained by the render controller", ErrConflict, RootScopeName, ActiveScreenKey)
	}
	holderSegs := make([]string, 0, len(scopeSegs)+len(keySegs)-1)
	holderSegs = append(holderSegs, scopeSegs...)
	holderSegs = append(holderSegs, keySegs[:len(keySegs)-1]...)
	holder, _ := s.ensureSegments(holderSegs)
	holder.values[keySegs[len(keySegs)-1]] = value
	s.bump()
	return nil
}

// Local returns the value stored at scopePath/key without consulting
// ancestor scopes.
func (s *Store) Local(scopePath, key string) (string, error) {
	scopeSegs, err := splitScopePath(scopePath)
	if err != nil {
		return "", err
	}
	keySegs, err := splitKey(key)
	if err != nil {
		return "", err
	}
	scope, ok := s.nodeBySegments(scopeSegs)
	if !ok {
		return "", fmt.Errorf("%w: scope %q", ErrNotFound, scopePath)
	}
	value, ok := scope.lookup(keySegs)
	if !ok {
		return "", fmt.Errorf("%w: variable %q in scope %q", ErrNotFound, key, scopePath)
	}
	return value, nil
}

// Remove deletes the variable at scopePath/key. Intermediate scopes the key
// descended through are kept even when they end up empty.
func (s *Store) Remove(scopePath, key string) error {
	scopeSegs, err := splitScopePath(scopePath)
	if err != nil {
		return err
	}
	keySegs, err := splitKey(key)
	if err != nil {
		return err
	}
	scope, ok := s.nodeBySegments(scopeSegs)
	if !ok {
		return fmt.Errorf("%w: scope %q", ErrNotFound, scopePath)
	}
	holderSegs := keySegs[:len(keySegs)-1]
	holder := scope
	for _, segment := range holderSegs {
		child, ok := holder.children[segment]
		if !ok {
			return fmt.Errorf("%w: variable %q in scope %q", ErrNotFound, key, scopePath)
		}
		holder = child
	}
	leaf := keySegs[len(keySegs)-1]
	if _, ok := holder.values[leaf]; !ok {
		return fmt.Errorf("%w: variable %q in scope %q", ErrNotFound, key, scopePath)
	}
	delete(holder.values, leaf)
	s.bump()
	return nil
}

// Variables returns a copy of the leaf variables stored directly on
// scopePath. Nested scopes are listed by ScopePaths, not here.
func (s *Store) Variables(scopePath string) (map[string]string, error) {
	scope, ok := s.node(scopePath)
	if !ok {
		if _, err := splitScopePath(scopePath); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: scope %q", ErrNotFound, scopePath)
	}
	out := make(map[string]string, len(scope.values))
	for k, v := range scope.values {
		out[k] = v
	}
	return out, nil
}

// RemoveScope deletes the scope at path and its entire subtree. The root
// cannot be removed.
func (s *Store) RemoveScope(path string) error {
	segments, err := splitScopePath(path)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("%w: cannot remove the root scope", ErrInvalidPath)
	}
	node, ok := s.nodeBySegments(segments)
	if !ok {
		return fmt.Errorf("%w: scope %q", ErrNotFound, path)
	}
	delete(node.parent.children, node.name)
	node.parent = nil
	s.bump()
	return nil
}

// MoveScope relocates the subtree rooted at oldPath to newPath. The move is
// validated fully before any mutation, so it either happens as a whole or
// not at all.
func (s *Store) MoveScope(oldPath, newPath string) error {
	oldSegs, err := splitScopePath(oldPath)
	if err != nil {
		return err
	}
	newSegs, err := splitScopePath(newPath)
	if err != nil {
		return err
	}
	if len(oldSegs) == 0 {
		return fmt.Errorf("%w: cannot move the root scope", ErrInvalidPath)
	}
	if len(newSegs) == 0 {
		return fmt.Errorf("%w: cannot replace the root scope", ErrInvalidPath)
	}
	node, ok := s.nodeBySegments(oldSegs)
	if !ok {
		return fmt.Errorf("%w: scope %q", ErrNotFound, oldPath)
	}
	if newPath == oldPath || strings.HasPrefix(newPath, oldPath+pathSeparator) {
		return fmt.Errorf("%w: cannot move scope %q under itself", ErrInvalidPath, oldPath)
	}
	if _, exists := s.nodeBySegments(newSegs); exists {
		return fmt.Errorf("%w: scope %q already exists", ErrConflict, newPath)
	}

	parent, _ := s.ensureSegments(newSegs[:len(newSegs)-1])
	delete(node.parent.children, node.name)
	node.name = newSegs[len(newSegs)-1]
	node.parent = parent
	parent.children[node.name] = node
	node.repath(joinPath(parent.path, node.name))
	s.bump()
	return nil
}

func (n *scopeNode) repath(path string) {
	n.path = path
	for name, child := range n.children {
		child.repath(joinPath(path, name))
	}
}

// ScopePaths returns the canonical paths of every scope in the tree, root
// included, sorted lexically.
func (s *Store) ScopePaths() []string {
	var paths []string
	var walk func(*scopeNode)
	walk = func(n *scopeNode) {
		paths = append(paths, n.path)
		for _, child := range n.children {
			walk(child)
		}
	}
	walk(s.root)
	sort.Strings(paths)
	return paths
}

// writeActive records the active screen id on the root scope. Only the
// render controller and document loading go through here; Set rejects the
// key for everyone else.
func (s *Store) writeActive(id string) {
	s.root.values[ActiveScreenKey] = id
	s.bump()
}

// clearActive removes the active screen pointer, if any.
func (s *Store) clearActive() {
	if _, ok := s.root.values[ActiveScreenKey]; !ok {
		return
	}
	delete(s.root.values, ActiveScreenKey)
	s.bump()
}

// activeScreen returns the active screen id, false when unset.
func (s *Store) activeScreen() (string, bool) {
	id, ok := s.root.values[ActiveScreenKey]
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

package multiscreen

import (
	"fmt"
)

// Resolver answers nearest-scope-wins lookups against a Store. Resolution
// starts at the requested scope and walks parent by parent to the root; the
// first scope holding the key supplies the value.
//
// Resolution never mutates the store, so it is safe to call per frame from
// downstream evaluation.
type Resolver struct {
	store *Store
	cache map[resolveKey]resolveEntry
}

type resolveKey struct {
	scopePath string
	key       string
}

type resolveEntry struct {
	value   string
	version uint64
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache enables memoization of successful lookups. Entries are keyed on
// (scopePath, key) and carry the store version at fill time; any store
// mutation moves the version and invalidates every entry, which is a
// conservative superset of invalidating on ancestor writes.
func WithCache() ResolverOption {
	return func(r *Resolver) {
		r.cache = map[resolveKey]resolveEntry{}
	}
}

// NewResolver constructs a resolver over store.
func NewResolver(store *Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve returns the value of key visible from scopePath. A miss in every
// scope up to and including the root yields ErrNotFound.
func (r *Resolver) Resolve(scopePath, key string) (string, error) {
	value, _, err := r.resolve(scopePath, key, false)
	return value, err
}

// ResolveTrace resolves like Resolve and additionally reports which scopes
// the walk visited and which one won.
func (r *Resolver) ResolveTrace(scopePath, key string) (string, Trace, error) {
	return r.resolve(scopePath, key, true)
}

func (r *Resolver) resolve(scopePath, key string, traced bool) (string, Trace, error) {
	trace := Trace{ScopePath: scopePath, Key: key}
	scopeSegs, err := splitScopePath(scopePath)
	if err != nil {
		return "", trace, err
	}
	keySegs, err := splitKey(key)
	if err != nil {
		return "", trace, err
	}

	ck := resolveKey{scopePath: scopePath, key: key}
	if !traced && r.cache != nil {
		if entry, ok := r.cache[ck]; ok && entry.version == r.store.Version() {
			return entry.value, trace, nil
		}
	}

	start, ok := r.store.nodeBySegments(scopeSegs)
	if !ok {
		return "", trace, fmt.Errorf("%w: scope %q", ErrNotFound, scopePath)
	}

	for cur := start; cur != nil; cur = cur.parent {
		value, found := cur.lookup(keySegs)
		if traced {
			step := Provenance{Scope: cur.path, Found: found}
			if found {
				step.Value = value
			}
			trace.Steps = append(trace.Steps, step)
		}
		if found {
			if r.cache != nil {
				r.cache[ck] = resolveEntry{value: value, version: r.store.Version()}
			}
			return value, trace, nil
		}
	}
	return "", trace, fmt.Errorf("%w: variable %q from scope %q", ErrNotFound, key, scopePath)
}

// Effective flattens the chain visible from scopePath into a single map of
// this scope's and its ancestors' leaf variables, nearest scope winning.
// Pull expressions see it as their vars environment.
func (r *Resolver) Effective(scopePath string) (map[string]string, error) {
	scopeSegs, err := splitScopePath(scopePath)
	if err != nil {
		return nil, err
	}
	start, ok := r.store.nodeBySegments(scopeSegs)
	if !ok {
		return nil, fmt.Errorf("%w: scope %q", ErrNotFound, scopePath)
	}

	var chain []*scopeNode
	for cur := start; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	out := map[string]string{}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].values {
			out[k] = v
		}
	}
	return out, nil
}

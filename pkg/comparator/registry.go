// Package comparator implements the named key-comparator registry of
// spec §3: a mapping from comparator name to a user-supplied total order
// over byte strings, registered before any database that references the
// name is attached.
package comparator

import (
	"bytes"
	"fmt"
	"sync"
)

// Func is a total order over byte strings: negative if a < b, zero if
// a == b, positive if a > b — the same contract as bytes.Compare.
type Func func(a, b []byte) int

// Lexicographic is the default ordering used when a database has no
// comparator_name (spec §3).
var Lexicographic Func = bytes.Compare

// Registry holds named comparator functions. The zero value is not
// usable; construct with New.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// New creates an empty comparator registry.
func New() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register adds a named comparator. It must be called before any attach
// that names the comparator.
// Registering an already-registered name is rejected: re-registration
// under the same name would silently change the order key comparisons
// depend on for already-attached databases.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("comparator: name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("comparator: function must not be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		return fmt.Errorf("comparator: %q already registered", name)
	}
	r.funcs[name] = fn
	return nil
}

// Lookup resolves a comparator by name. An empty name resolves to the
// default lexicographic order (spec §3: "if absent, lexicographic byte
// order").
func (r *Registry) Lookup(name string) (Func, bool) {
	if name == "" {
		return Lexicographic, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

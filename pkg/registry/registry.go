// Package registry implements the database registry of spec §4.1: the
// provider-scoped table of attached databases, keyed by both name and an
// assigned numeric id, with the comparator resolution that precedes
// every attach.
package registry

import (
	"sync"

	"github.com/kvfabric/kvfabric/pkg/backend"
	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
)

// entry is one attached database: its backend instance plus the metadata
// needed to answer list/resolve calls and to build a migration fileset.
type entry struct {
	id      uint64
	cfg     types.AttachConfig
	backend backend.Backend
}

// Registry holds every database currently attached to a provider. Callers
// are expected to hold the provider's lock (pkg/lock) around mutating
// calls (Attach/Remove/RemoveAll); Registry itself only guards its own
// bookkeeping, not cross-method atomicity with backend I/O.
type Registry struct {
	mu         sync.RWMutex
	comparator *comparator.Registry
	byID       map[uint64]*entry
	byName     map[string]*entry
	nextID     uint64
	order      []uint64 // insertion order, for deterministic List
}

// New creates an empty registry backed by the given comparator registry
// (spec §4.1: attach resolves comparator_name before opening a backend).
func New(comparators *comparator.Registry) *Registry {
	return &Registry{
		comparator: comparators,
		byID:       make(map[uint64]*entry),
		byName:     make(map[string]*entry),
	}
}

// Attach opens a backend for cfg and registers it under a freshly
// assigned id. Re-attaching an already-registered name fails with
// DbName (spec §4.1, §7).
func (r *Registry) Attach(cfg types.AttachConfig) (types.DatabaseInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.Name == "" {
		return types.DatabaseInfo{}, errs.New(errs.DbName)
	}
	if _, exists := r.byName[cfg.Name]; exists {
		return types.DatabaseInfo{}, errs.New(errs.DbName)
	}

	cmpFn, ok := r.comparator.Lookup(cfg.ComparatorName)
	if !ok {
		return types.DatabaseInfo{}, errs.New(errs.CompFunc)
	}

	b, err := backend.Open(cfg.Backend, backend.Options{
		Name:        cfg.Name,
		Path:        cfg.Path,
		Comparator:  cmpFn,
		NoOverwrite: cfg.NoOverwrite,
	})
	if err != nil {
		return types.DatabaseInfo{}, err
	}

	r.nextID++
	id := r.nextID
	e := &entry{id: id, cfg: cfg, backend: b}
	r.byID[id] = e
	r.byName[cfg.Name] = e
	r.order = append(r.order, id)

	return types.DatabaseInfo{Name: cfg.Name, ID: id}, nil
}

// Remove detaches and closes the database with the given id.
func (r *Registry) Remove(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return errs.New(errs.UnknownDb)
	}
	r.removeLocked(e)
	return e.backend.Close()
}

// RemoveAll detaches and closes every database currently attached,
// returning the number removed (spec §4.1's remove_all).
func (r *Registry) RemoveAll() (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.order)
	var firstErr error
	for _, id := range append([]uint64(nil), r.order...) {
		e := r.byID[id]
		r.removeLocked(e)
		if err := e.backend.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return n, firstErr
}

func (r *Registry) removeLocked(e *entry) {
	delete(r.byID, e.id)
	delete(r.byName, e.cfg.Name)
	for i, id := range r.order {
		if id == e.id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Count returns the number of attached databases (spec's supplemented
// count_databases RPC).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// List returns every attached database's (name, id) pair in attach order
// (spec's supplemented list_databases RPC).
func (r *Registry) List() []types.DatabaseInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.DatabaseInfo, 0, len(r.order))
	for _, id := range r.order {
		e := r.byID[id]
		out = append(out, types.DatabaseInfo{Name: e.cfg.Name, ID: e.id})
	}
	return out
}

// ResolveByID returns the backend and config attached under id.
func (r *Registry) ResolveByID(id uint64) (backend.Backend, types.AttachConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, types.AttachConfig{}, errs.New(errs.UnknownDb)
	}
	return e.backend, e.cfg, nil
}

// ResolveByName returns the (backend, id, config) attached under name.
// Per spec §4.1, failure here is DbName (resolve_by_id fails UnknownDb).
func (r *Registry) ResolveByName(name string) (backend.Backend, uint64, types.AttachConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[name]
	if !ok {
		return nil, 0, types.AttachConfig{}, errs.New(errs.DbName)
	}
	return e.backend, e.id, e.cfg, nil
}

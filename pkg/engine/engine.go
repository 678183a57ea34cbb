// Package engine implements the per-provider request engine of spec §4.3:
// RPC-dispatched handlers for put/get/length/exists/erase/list in their
// single, multi, and packed variants, plus the registry-mutating ops
// (attach/remove/remove_all) that ride the provider's write lock.
//
// Every handler follows the same skeleton the spec prescribes: acquire
// the provider lock → resolve the database → stage bulk payload → call
// the backend → release the lock → respond. The multi/packed variants
// stage their bulk payload through pkg/wire; this package owns that
// staging so the transport layer only ever shuttles opaque byte buffers.
package engine

import (
	"context"

	"github.com/kvfabric/kvfabric/pkg/backend"
	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/lock"
	"github.com/kvfabric/kvfabric/pkg/registry"
	"github.com/kvfabric/kvfabric/pkg/types"
)

// Engine dispatches data-plane and registry-mutating operations for one
// provider. It holds no backend state directly — that lives in the
// registry — only the lock discipline of spec §4.6.
type Engine struct {
	registry *registry.Registry
	lock     *lock.ProviderLock
}

// New builds an Engine over an already-constructed registry and lock.
// The provider (pkg/provider) owns their lifetimes.
func New(reg *registry.Registry, lk *lock.ProviderLock) *Engine {
	return &Engine{registry: reg, lock: lk}
}

// resolve looks up a database's backend under the read lock's caller;
// the caller is expected to already hold the read lock when calling this.
func (e *Engine) resolve(dbID uint64) (backend.Backend, error) {
	b, _, err := e.registry.ResolveByID(dbID)
	return b, err
}

// --- Registry-mutating operations (write lock) ---

// Attach registers a new database (spec §4.1's attach).
func (e *Engine) Attach(cfg types.AttachConfig) (info types.DatabaseInfo, err error) {
	err = e.lock.WithLock(func() error {
		info, err = e.registry.Attach(cfg)
		return err
	})
	return info, err
}

// Remove detaches and closes a single database.
func (e *Engine) Remove(dbID uint64) error {
	return e.lock.WithLock(func() error {
		return e.registry.Remove(dbID)
	})
}

// RemoveAll detaches and closes every attached database.
func (e *Engine) RemoveAll() (n int, err error) {
	err = e.lock.WithLock(func() error {
		n, err = e.registry.RemoveAll()
		return err
	})
	return n, err
}

// --- Single-op handlers (read lock) ---

// Open resolves a database by name to its id (spec §4.3.1's open).
func (e *Engine) Open(name string) (uint64, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	_, id, _, err := e.registry.ResolveByName(name)
	return id, err
}

// CountDatabases reports the number of attached databases.
func (e *Engine) CountDatabases() int {
	e.lock.RLock()
	defer e.lock.RUnlock()
	return e.registry.Count()
}

// ListDatabases returns up to max (name, id) pairs in attach order; max
// <= 0 means unbounded.
func (e *Engine) ListDatabases(max int) []types.DatabaseInfo {
	e.lock.RLock()
	defer e.lock.RUnlock()
	all := e.registry.List()
	if max > 0 && len(all) > max {
		all = all[:max]
	}
	return all
}

// BackendKinds reports the backend kind of every attached database, keyed
// by name. It exists for metrics collection (pkg/metrics), which needs to
// break down DatabasesTotal by backend without touching the registry
// directly.
func (e *Engine) BackendKinds() map[string]types.BackendKind {
	e.lock.RLock()
	defer e.lock.RUnlock()
	out := make(map[string]types.BackendKind)
	for _, info := range e.registry.List() {
		if _, cfg, err := e.registry.ResolveByID(info.ID); err == nil {
			out[info.Name] = cfg.Backend
		}
	}
	return out
}

// Put writes a single key/value pair.
func (e *Engine) Put(ctx context.Context, dbID uint64, key, value []byte) error {
	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return err
	}
	return b.Put(ctx, key, value)
}

// GetResult is the outcome of a single get, including the §4.3.1
// undersized-buffer contract: when the stored value exceeds capacity,
// Status is Size, Value is nil, and RequiredSize reports the true length.
type GetResult struct {
	Value        []byte
	RequiredSize int
	Status       errs.Status
}

// Get fetches a single value, honoring the caller's output capacity.
// capacity <= 0 means "unbounded" (the caller wants the whole value
// regardless of size).
func (e *Engine) Get(ctx context.Context, dbID uint64, key []byte, capacity int) (GetResult, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return GetResult{Status: errs.StatusOf(err)}, err
	}
	v, err := b.Get(ctx, key)
	if err != nil {
		return GetResult{Status: errs.StatusOf(err)}, err
	}
	if capacity > 0 && len(v) > capacity {
		return GetResult{RequiredSize: len(v), Status: errs.Size}, nil
	}
	return GetResult{Value: v, RequiredSize: len(v), Status: errs.Success}, nil
}

// Length returns the byte length of a single stored value.
func (e *Engine) Length(ctx context.Context, dbID uint64, key []byte) (int, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return 0, err
	}
	return b.Length(ctx, key)
}

// Exists reports whether a single key is present.
func (e *Engine) Exists(ctx context.Context, dbID uint64, key []byte) (bool, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return false, err
	}
	return b.Exists(ctx, key), nil
}

// Erase removes a single key.
func (e *Engine) Erase(ctx context.Context, dbID uint64, key []byte) error {
	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return err
	}
	return b.Erase(ctx, key)
}

// --- Raw accessors for the migration coordinator ---
//
// Migration (pkg/migration) is, per spec §4.4, "a producer on top of the
// same request engine": it reads and writes through exactly the lock
// discipline and backend calls above, just without the wire staging a
// client-facing RPC handler needs. These methods give it that access
// one call at a time, so each key (or each listing batch) acquires and
// releases the read lock independently — the same per-batch granularity
// that produces the weak-consistency pagination behavior spec §4.4 pins.

// ListKeysRaw enumerates keys without any wire staging, for migration's
// batch iteration.
func (e *Engine) ListKeysRaw(ctx context.Context, dbID uint64, start, prefix []byte, max int) ([][]byte, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return nil, err
	}
	return b.ListKeys(ctx, start, prefix, max)
}

// ListRangeRaw enumerates an open (lower, upper) interval without wire
// staging, for migrate_key_range.
func (e *Engine) ListRangeRaw(ctx context.Context, dbID uint64, lower, upper []byte, max int) ([]types.KV, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return nil, err
	}
	return b.ListRange(ctx, lower, upper, max)
}

// Sync flushes a database's backend buffers (the first step of
// whole-database migration, spec §4.5).
func (e *Engine) Sync(dbID uint64) error {
	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return err
	}
	return b.Sync()
}

// DatabaseSizes reports each attached database's approximate backend size
// in bytes, keyed by name. It exists for metrics collection (pkg/metrics),
// which samples it into BackendBytesStored on the same periodic cadence
// as BackendKinds feeds DatabasesTotal.
func (e *Engine) DatabaseSizes() map[string]uint64 {
	e.lock.RLock()
	defer e.lock.RUnlock()
	out := make(map[string]uint64)
	for _, info := range e.registry.List() {
		b, _, err := e.registry.ResolveByID(info.ID)
		if err != nil {
			continue
		}
		if size, sizeErr := b.Size(); sizeErr == nil {
			out[info.Name] = size
		}
	}
	return out
}

// CreateFileset asks a database's backend for its fileset descriptor,
// filling in the metadata required by spec §4.5/§6.3.
func (e *Engine) CreateFileset(dbID uint64) (*types.FilesetDescriptor, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	b, cfg, err := e.registry.ResolveByID(dbID)
	if err != nil {
		return nil, err
	}
	return b.CreateFileset(cfg.Name, cfg.ComparatorName, cfg.NoOverwrite)
}

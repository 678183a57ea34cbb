// Package backend implements the storage backend contract of spec §4.2:
// persist/retrieve bytes with ordered iteration under a key comparator.
// Four implementations are provided — Null, MemStore (in-memory, ordered),
// LogStore (persistent log/LSM), and BTreeStore (persistent, hash-bucketed
// enumeration) — matching the backend_kind variants of spec §3/§4.2.
package backend

import (
	"bytes"
	"context"
	"fmt"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
)

// Backend is the storage contract every implementation satisfies. Methods
// are synchronous; the engine is responsible for any pool offloading
// (spec §4.2 header note) and for holding the provider lock around calls.
// Implementations MUST be safe for concurrent use: the engine's lock
// manager (§4.6) only excludes backend calls from attach/remove, not from
// each other.
type Backend interface {
	Put(ctx context.Context, key, value []byte) error
	// PutMulti writes items in order; the first failure short-circuits
	// the remainder of this batch, but items already written stay
	// written (spec §4.2, §9 Open Question #2). It returns the index of
	// the first failed item (-1 if all succeeded) and that item's error.
	PutMulti(ctx context.Context, items []types.KV) (failedAt int, err error)
	Get(ctx context.Context, key []byte) ([]byte, error)
	Length(ctx context.Context, key []byte) (int, error)
	Exists(ctx context.Context, key []byte) bool
	Erase(ctx context.Context, key []byte) error
	// ListKeys and ListKeyVals enumerate in the backend's active
	// comparator order (or an honest non-order for backends that do not
	// support one). start is exclusive; empty start means "from the
	// beginning". prefix filters on raw bytes, independent of comparator
	// order. max caps the result length (0 means unbounded).
	ListKeys(ctx context.Context, start, prefix []byte, max int) ([][]byte, error)
	ListKeyVals(ctx context.Context, start, prefix []byte, max int) ([]types.KV, error)
	// ListRange enumerates the open interval (lower, upper) in comparator
	// order. Backends without a meaningful order return ErrOrderingNotSupported.
	ListRange(ctx context.Context, lower, upper []byte, max int) ([]types.KV, error)
	Sync() error
	// Size reports the backend's current approximate on-disk or in-memory
	// footprint in bytes. The metrics collector samples it periodically
	// into BackendBytesStored; it is not synchronized with Sync.
	Size() (uint64, error)
	// CreateFileset returns a descriptor of this database's on-disk
	// artifacts for whole-database migration (spec §4.5), or nil for
	// backends with nothing to relocate as files.
	CreateFileset(name, comparatorName string, noOverwrite bool) (*types.FilesetDescriptor, error)
	Close() error
	Kind() types.BackendKind
}

// ErrOrderingNotSupported is returned by ListRange (and, via
// errs.OpNotImpl at the engine layer, migrate_key_range) on backends whose
// physical enumeration order carries no relationship to key order.
var ErrOrderingNotSupported = fmt.Errorf("backend: ordering not supported")

// Options carries the open-time parameters of spec §4.2's open(name,
// path, options).
type Options struct {
	Name        string
	Path        string
	Comparator  comparator.Func
	NoOverwrite bool
}

// Open constructs a Backend of the given kind. Callers resolve the
// comparator (if any) via the comparator registry before calling Open;
// Open itself does not consult a registry (spec §4.1 does that at
// attach time, returning CompFunc before Open is ever reached).
func Open(kind types.BackendKind, opts Options) (Backend, error) {
	switch kind {
	case types.BackendNull:
		return newNullStore(opts), nil
	case types.BackendMap:
		return newMemStore(opts), nil
	case types.BackendLogStore:
		return openLogStore(opts)
	case types.BackendBTree:
		return openBTreeStore(opts)
	default:
		return nil, errs.Wrap(errs.DbCreate, fmt.Errorf("backend: unknown kind %q", kind))
	}
}

// matchesPrefix reports whether key has the given raw-byte prefix. An
// empty prefix matches everything (spec §4.2: "prefix" filters raw bytes).
func matchesPrefix(key, prefix []byte) bool {
	return len(prefix) == 0 || bytes.HasPrefix(key, prefix)
}

// capped truncates n to max when max > 0.
func capped(n, max int) int {
	if max > 0 && n > max {
		return max
	}
	return n
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

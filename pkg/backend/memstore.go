package backend

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
)

const memStoreDegree = 32

// memItem is a single node of the in-memory ordered map. Ordering is by
// key only: the tree's Less func never inspects value, so ReplaceOrInsert
// correctly overwrites a key that is already present instead of producing
// a duplicate entry.
type memItem struct {
	key   []byte
	value []byte
}

// memStore is the in-memory ordered-map backend (spec's "map" backend
// kind). It supports a per-database custom comparator, fixed for the
// lifetime of the attach (spec §3, invariant I2).
type memStore struct {
	mu          sync.RWMutex
	tree        *btree.BTreeG[memItem]
	cmp         comparator.Func
	noOverwrite bool
}

func newMemStore(opts Options) Backend {
	cmp := opts.Comparator
	if cmp == nil {
		cmp = comparator.Lexicographic
	}
	less := func(a, b memItem) bool { return cmp(a.key, b.key) < 0 }
	return &memStore{
		tree:        btree.NewG(memStoreDegree, less),
		cmp:         cmp,
		noOverwrite: opts.NoOverwrite,
	}
}

func (s *memStore) Put(ctx context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putLocked(key, value)
}

// putLocked assumes mu is already held for writing.
func (s *memStore) putLocked(key, value []byte) error {
	if s.noOverwrite {
		if _, found := s.tree.Get(memItem{key: key}); found {
			return errs.New(errs.KeyExists)
		}
	}
	s.tree.ReplaceOrInsert(memItem{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (s *memStore) PutMulti(ctx context.Context, items []types.KV) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range items {
		if err := s.putLocked(it.Key, it.Value); err != nil {
			return i, err
		}
	}
	return -1, nil
}

func (s *memStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, found := s.tree.Get(memItem{key: key})
	if !found {
		return nil, errs.New(errs.UnknownKey)
	}
	return cloneBytes(item.value), nil
}

func (s *memStore) Length(ctx context.Context, key []byte) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, found := s.tree.Get(memItem{key: key})
	if !found {
		return 0, errs.New(errs.UnknownKey)
	}
	return len(item.value), nil
}

func (s *memStore) Exists(ctx context.Context, key []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, found := s.tree.Get(memItem{key: key})
	return found
}

func (s *memStore) Erase(ctx context.Context, key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(memItem{key: key})
	return nil
}

// listLocked walks the tree in comparator order, strictly after start
// (empty start means from the beginning), collecting up to max entries
// whose raw key matches prefix. Prefix is defined on raw bytes, not on
// comparator order (spec §4.2), so under an arbitrary custom comparator a
// matching key can reappear after a run of non-matching ones; the walk
// always runs to completion (or to max matches), never short-circuiting
// on the first mismatch.
func (s *memStore) listLocked(start, prefix []byte, max int, visit func(memItem) bool) {
	count := 0
	first := true
	iter := func(item memItem) bool {
		if first && len(start) > 0 && s.cmp(item.key, start) <= 0 {
			return true
		}
		first = false
		if matchesPrefix(item.key, prefix) {
			if !visit(item) {
				return false
			}
			count++
			if max > 0 && count >= max {
				return false
			}
		}
		return true
	}
	if len(start) == 0 {
		s.tree.Ascend(iter)
	} else {
		s.tree.AscendGreaterOrEqual(memItem{key: start}, iter)
	}
}

func (s *memStore) ListKeys(ctx context.Context, start, prefix []byte, max int) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out [][]byte
	s.listLocked(start, prefix, max, func(it memItem) bool {
		out = append(out, cloneBytes(it.key))
		return true
	})
	return out, nil
}

func (s *memStore) ListKeyVals(ctx context.Context, start, prefix []byte, max int) ([]types.KV, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.KV
	s.listLocked(start, prefix, max, func(it memItem) bool {
		out = append(out, types.KV{Key: cloneBytes(it.key), Value: cloneBytes(it.value)})
		return true
	})
	return out, nil
}

func (s *memStore) ListRange(ctx context.Context, lower, upper []byte, max int) ([]types.KV, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.KV
	count := 0
	s.tree.AscendGreaterOrEqual(memItem{key: lower}, func(item memItem) bool {
		if s.cmp(item.key, lower) == 0 {
			return true
		}
		if len(upper) > 0 && s.cmp(item.key, upper) >= 0 {
			return false
		}
		out = append(out, types.KV{Key: cloneBytes(item.key), Value: cloneBytes(item.value)})
		count++
		return max <= 0 || count < max
	})
	return out, nil
}

func (s *memStore) Sync() error { return nil }

// Size sums key+value bytes across every entry. There is no flush step
// for an in-memory tree, so this reflects live state rather than
// post-sync state the way the persistent backends' Size does.
func (s *memStore) Size() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total uint64
	s.tree.Ascend(func(item memItem) bool {
		total += uint64(len(item.key) + len(item.value))
		return true
	})
	return total, nil
}

func (s *memStore) CreateFileset(name, comparatorName string, noOverwrite bool) (*types.FilesetDescriptor, error) {
	// In-memory databases have no on-disk artifacts to relocate.
	return nil, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) Kind() types.BackendKind { return types.BackendMap }

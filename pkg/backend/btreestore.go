package backend

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
)

var dataBucket = []byte("data")

// btreeStore is the persistent "btree_store" backend kind. The name
// inherited from the original implementation describes a bucketed-hash
// table, not a sorted tree: bbolt, however, is always lexicographically
// ordered by physical key. To keep this backend's enumeration honestly
// hash-bucketed rather than silently becoming key-ordered, every logical
// key is stored under a physical key of fnv1a32(key) || key — enumeration
// walks bbolt's native byte order over that physical key, which is an
// insertion- and comparator-independent, but not a logical-key-ordered,
// sequence. set_comparator is accepted for databases on this backend
// (required by spec §4.1's attach signature) but has no effect on
// enumeration order; it is retained only in CreateFileset metadata so a
// migrated destination can re-register the same name.
type btreeStore struct {
	db          *bolt.DB
	path        string
	cmp         comparator.Func
	noOverwrite bool
}

func openBTreeStore(opts Options) (Backend, error) {
	if dir := filepath.Dir(opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errs.Wrap(errs.DbCreate, err)
		}
	}
	db, err := bolt.Open(opts.Path, 0o600, nil)
	if err != nil {
		return nil, errs.Wrap(errs.DbCreate, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(dataBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, errs.Wrap(errs.DbCreate, err)
	}
	cmp := opts.Comparator
	if cmp == nil {
		cmp = comparator.Lexicographic
	}
	return &btreeStore{db: db, path: opts.Path, cmp: cmp, noOverwrite: opts.NoOverwrite}, nil
}

// physicalKey computes the fnv1a32(key) || key layout that decouples
// bbolt's native ordering from logical key order.
func physicalKey(key []byte) []byte {
	h := fnv.New32a()
	h.Write(key)
	buf := make([]byte, 4+len(key))
	binary.BigEndian.PutUint32(buf, h.Sum32())
	copy(buf[4:], key)
	return buf
}

func logicalKey(physical []byte) []byte {
	if len(physical) < 4 {
		return nil
	}
	return physical[4:]
}

func (s *btreeStore) Put(ctx context.Context, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(dataBucket)
		pk := physicalKey(key)
		if s.noOverwrite && b.Get(pk) != nil {
			return errs.New(errs.KeyExists)
		}
		if err := b.Put(pk, value); err != nil {
			return errs.Wrap(errs.Put, err)
		}
		return nil
	})
}

func (s *btreeStore) PutMulti(ctx context.Context, items []types.KV) (int, error) {
	for i, it := range items {
		if err := s.Put(ctx, it.Key, it.Value); err != nil {
			return i, err
		}
	}
	return -1, nil
}

func (s *btreeStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(dataBucket).Get(physicalKey(key))
		if v == nil {
			return errs.New(errs.UnknownKey)
		}
		value = cloneBytes(v)
		return nil
	})
	return value, err
}

func (s *btreeStore) Length(ctx context.Context, key []byte) (int, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return len(v), nil
}

func (s *btreeStore) Exists(ctx context.Context, key []byte) bool {
	_, err := s.Get(ctx, key)
	return err == nil
}

func (s *btreeStore) Erase(ctx context.Context, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(dataBucket).Delete(physicalKey(key)); err != nil {
			return errs.Wrap(errs.Erase, err)
		}
		return nil
	})
}

// walk enumerates in bbolt's physical (hash-bucketed) order, strictly
// after the entry whose logical key equals start.
func (s *btreeStore) walk(start, prefix []byte, max int, visit func(key, val []byte) bool) error {
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(dataBucket).Cursor()
		var pk, pv []byte
		if len(start) == 0 {
			pk, pv = c.First()
		} else {
			startPhys := physicalKey(start)
			pk, pv = c.Seek(startPhys)
			if pk != nil && string(pk) == string(startPhys) {
				pk, pv = c.Next()
			}
		}
		count := 0
		for ; pk != nil; pk, pv = c.Next() {
			key := logicalKey(pk)
			if !matchesPrefix(key, prefix) {
				continue
			}
			if !visit(cloneBytes(key), cloneBytes(pv)) {
				break
			}
			count++
			if max > 0 && count >= max {
				break
			}
		}
		return nil
	})
}

func (s *btreeStore) ListKeys(ctx context.Context, start, prefix []byte, max int) ([][]byte, error) {
	var out [][]byte
	err := s.walk(start, prefix, max, func(key, _ []byte) bool {
		out = append(out, key)
		return true
	})
	return out, err
}

func (s *btreeStore) ListKeyVals(ctx context.Context, start, prefix []byte, max int) ([]types.KV, error) {
	var out []types.KV
	err := s.walk(start, prefix, max, func(key, val []byte) bool {
		out = append(out, types.KV{Key: key, Value: val})
		return true
	})
	return out, err
}

// ListRange is not supported: hash-bucketed physical order bears no
// relationship to logical key order, so a (lower, upper) range cannot be
// answered by a contiguous scan.
func (s *btreeStore) ListRange(ctx context.Context, lower, upper []byte, max int) ([]types.KV, error) {
	return nil, errs.Wrap(errs.OpNotImpl, ErrOrderingNotSupported)
}

// Sync is a no-op: every bolt.Update transaction commits (and fsyncs)
// before returning, so there is nothing buffered to flush explicitly.
func (s *btreeStore) Sync() error {
	return nil
}

// Size reports the mmap'd data file's size directly: bbolt keeps the
// entire database in one file, so a stat is exact and far cheaper than
// walking buckets.
func (s *btreeStore) Size() (uint64, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0, errs.Wrap(errs.Fabric, err)
	}
	return uint64(info.Size()), nil
}

func (s *btreeStore) CreateFileset(name, comparatorName string, noOverwrite bool) (*types.FilesetDescriptor, error) {
	return &types.FilesetDescriptor{
		Root:  filepath.Dir(s.path),
		Files: []string{filepath.Base(s.path)},
		Metadata: map[string]string{
			types.MetaDatabaseType:       string(types.BackendBTree),
			types.MetaDatabaseName:       name,
			types.MetaComparatorFunction: comparatorName,
			types.MetaNoOverwrite:        boolStr(noOverwrite),
		},
	}, nil
}

func (s *btreeStore) Close() error {
	return s.db.Close()
}

func (s *btreeStore) Kind() types.BackendKind { return types.BackendBTree }

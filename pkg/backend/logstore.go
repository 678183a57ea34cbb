package backend

import (
	"context"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
)

// leveldbComparer adapts a comparator.Func to leveldb's comparer.Comparer
// interface. Separator/Successor are left as identity transforms: they
// are a compaction size optimization only, never a correctness
// requirement, and a generic byte comparator gives us no safe way to
// synthesize a shorter separator between two arbitrary keys.
type leveldbComparer struct {
	name string
	cmp  comparator.Func
}

func (c *leveldbComparer) Compare(a, b []byte) int   { return c.cmp(a, b) }
func (c *leveldbComparer) Name() string              { return c.name }
func (c *leveldbComparer) Separator(dst, a, b []byte) []byte { return nil }
func (c *leveldbComparer) Successor(dst, b []byte) []byte    { return nil }

// logStore is the persistent log/LSM-structured backend (spec's
// "log_store" backend kind), backed by a goleveldb database. Ordering is
// driven entirely by the comparer installed at open time, so iteration
// honors a per-database custom comparator the same way memStore does.
type logStore struct {
	db          *leveldb.DB
	path        string
	cmp         comparator.Func
	noOverwrite bool
}

func openLogStore(opts Options) (Backend, error) {
	cmp := opts.Comparator
	if cmp == nil {
		cmp = comparator.Lexicographic
	}
	o := &opt.Options{
		Comparer: &leveldbComparer{name: "kvfabric.logstore.v1:" + opts.Name, cmp: cmp},
	}
	db, err := leveldb.OpenFile(opts.Path, o)
	if err != nil {
		return nil, errs.Wrap(errs.DbCreate, err)
	}
	return &logStore{db: db, path: opts.Path, cmp: cmp, noOverwrite: opts.NoOverwrite}, nil
}

func (s *logStore) Put(ctx context.Context, key, value []byte) error {
	if s.noOverwrite {
		if has, err := s.db.Has(key, nil); err != nil {
			return errs.Wrap(errs.Put, err)
		} else if has {
			return errs.New(errs.KeyExists)
		}
	}
	if err := s.db.Put(key, value, nil); err != nil {
		return errs.Wrap(errs.Put, err)
	}
	return nil
}

func (s *logStore) PutMulti(ctx context.Context, items []types.KV) (int, error) {
	for i, it := range items {
		if err := s.Put(ctx, it.Key, it.Value); err != nil {
			return i, err
		}
	}
	return -1, nil
}

func (s *logStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := s.db.Get(key, nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, errs.New(errs.UnknownKey)
		}
		return nil, errs.Wrap(errs.Fabric, err)
	}
	return v, nil
}

func (s *logStore) Length(ctx context.Context, key []byte) (int, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return len(v), nil
}

func (s *logStore) Exists(ctx context.Context, key []byte) bool {
	has, err := s.db.Has(key, nil)
	return err == nil && has
}

func (s *logStore) Erase(ctx context.Context, key []byte) error {
	if err := s.db.Delete(key, nil); err != nil {
		return errs.Wrap(errs.Erase, err)
	}
	return nil
}

// walk iterates in comparer order starting strictly after start (empty
// start means from the beginning), invoking visit for each entry whose
// raw key matches prefix, until visit returns false or max is reached.
func (s *logStore) walk(start, prefix []byte, max int, visit func(key, val []byte) bool) error {
	iter := s.db.NewIterator(&util.Range{}, nil)
	defer iter.Release()

	if len(start) == 0 {
		if !iter.First() {
			return iter.Error()
		}
	} else {
		if !iter.Seek(start) {
			return iter.Error()
		}
		if s.cmp(iter.Key(), start) == 0 && !iter.Next() {
			return iter.Error()
		}
	}

	count := 0
	for {
		key := iter.Key()
		if key == nil {
			break
		}
		if matchesPrefix(key, prefix) {
			if !visit(cloneBytes(key), cloneBytes(iter.Value())) {
				break
			}
			count++
			if max > 0 && count >= max {
				break
			}
		}
		if !iter.Next() {
			break
		}
	}
	return iter.Error()
}

func (s *logStore) ListKeys(ctx context.Context, start, prefix []byte, max int) ([][]byte, error) {
	var out [][]byte
	err := s.walk(start, prefix, max, func(key, _ []byte) bool {
		out = append(out, key)
		return true
	})
	if err != nil {
		return nil, errs.Wrap(errs.Fabric, err)
	}
	return out, nil
}

func (s *logStore) ListKeyVals(ctx context.Context, start, prefix []byte, max int) ([]types.KV, error) {
	var out []types.KV
	err := s.walk(start, prefix, max, func(key, val []byte) bool {
		out = append(out, types.KV{Key: key, Value: val})
		return true
	})
	if err != nil {
		return nil, errs.Wrap(errs.Fabric, err)
	}
	return out, nil
}

func (s *logStore) ListRange(ctx context.Context, lower, upper []byte, max int) ([]types.KV, error) {
	var out []types.KV
	count := 0
	err := s.walk(lower, nil, 0, func(key, val []byte) bool {
		if len(upper) > 0 && s.cmp(key, upper) >= 0 {
			return false
		}
		out = append(out, types.KV{Key: key, Value: val})
		count++
		return max <= 0 || count < max
	})
	if err != nil {
		return nil, errs.Wrap(errs.Fabric, err)
	}
	return out, nil
}

// Sync is a no-op here: goleveldb has no separate flush call, only a
// per-write opt.WriteOptions{Sync: true}; durability is controlled at
// the point of each Put instead of after the fact.
func (s *logStore) Sync() error {
	return nil
}

// Size approximates on-disk bytes via goleveldb's own size estimator over
// the full keyspace, rather than walking the directory: goleveldb's
// on-disk layout includes sstables and a manifest that a naive directory
// walk would double-count across compactions.
func (s *logStore) Size() (uint64, error) {
	sizes, err := s.db.SizeOf([]util.Range{{}})
	if err != nil {
		return 0, errs.Wrap(errs.Fabric, err)
	}
	return uint64(sizes.Sum()), nil
}

func (s *logStore) CreateFileset(name, comparatorName string, noOverwrite bool) (*types.FilesetDescriptor, error) {
	return &types.FilesetDescriptor{
		Root:  s.path,
		Files: nil, // the entire root directory is the fileset for an LSM store
		Metadata: map[string]string{
			types.MetaDatabaseType:       string(types.BackendLogStore),
			types.MetaDatabaseName:       name,
			types.MetaComparatorFunction: comparatorName,
			types.MetaNoOverwrite:        boolStr(noOverwrite),
		},
	}, nil
}

func (s *logStore) Close() error {
	return s.db.Close()
}

func (s *logStore) Kind() types.BackendKind { return types.BackendLogStore }

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
)

// conformant builds one instance of every data-keeping backend kind (map,
// log_store and the hash-ordered btree_store; null is left out) for a
// fresh, isolated store, rooted under t.TempDir(). Universal invariants
// (spec §8) are exercised against all of them; backend-specific tests
// (e.g. ListRange support) select a subset.
func conformant(t *testing.T, noOverwrite bool) map[types.BackendKind]Backend {
	t.Helper()
	dir := t.TempDir()

	mem := newMemStore(Options{NoOverwrite: noOverwrite})

	log, err := openLogStore(Options{Path: filepath.Join(dir, "log"), NoOverwrite: noOverwrite})
	require.NoError(t, err)

	bt, err := openBTreeStore(Options{Path: filepath.Join(dir, "bt.db"), NoOverwrite: noOverwrite})
	require.NoError(t, err)

	backends := map[types.BackendKind]Backend{
		types.BackendMap:      mem,
		types.BackendLogStore: log,
		types.BackendBTree:    bt,
	}
	t.Cleanup(func() {
		for _, b := range backends {
			_ = b.Close()
		}
	})
	return backends
}

func TestPutGetExists(t *testing.T) {
	ctx := context.Background()
	for kind, b := range conformant(t, false) {
		t.Run(string(kind), func(t *testing.T) {
			require.False(t, b.Exists(ctx, []byte("k1")))
			require.NoError(t, b.Put(ctx, []byte("k1"), []byte("v1")))
			require.True(t, b.Exists(ctx, []byte("k1")))

			v, err := b.Get(ctx, []byte("k1"))
			require.NoError(t, err)
			require.Equal(t, []byte("v1"), v)

			n, err := b.Length(ctx, []byte("k1"))
			require.NoError(t, err)
			require.Equal(t, 2, n)

			_, err = b.Get(ctx, []byte("missing"))
			require.Equal(t, errs.UnknownKey, errs.StatusOf(err))
		})
	}
}

func TestEraseRemovesKey(t *testing.T) {
	ctx := context.Background()
	for kind, b := range conformant(t, false) {
		t.Run(string(kind), func(t *testing.T) {
			require.NoError(t, b.Put(ctx, []byte("k"), []byte("v")))
			require.NoError(t, b.Erase(ctx, []byte("k")))
			require.False(t, b.Exists(ctx, []byte("k")))
			// erasing a key already absent is not an error
			require.NoError(t, b.Erase(ctx, []byte("k")))
		})
	}
}

func TestNoOverwriteRejectsExisting(t *testing.T) {
	ctx := context.Background()
	for kind, b := range conformant(t, true) {
		t.Run(string(kind), func(t *testing.T) {
			require.NoError(t, b.Put(ctx, []byte("k"), []byte("v1")))
			err := b.Put(ctx, []byte("k"), []byte("v2"))
			require.Equal(t, errs.KeyExists, errs.StatusOf(err))

			v, _ := b.Get(ctx, []byte("k"))
			require.Equal(t, []byte("v1"), v, "rejected overwrite must not change the stored value")
		})
	}
}

func TestPutMultiStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	for kind, b := range conformant(t, true) {
		t.Run(string(kind), func(t *testing.T) {
			require.NoError(t, b.Put(ctx, []byte("dup"), []byte("orig")))

			items := []types.KV{
				{Key: []byte("a"), Value: []byte("1")},
				{Key: []byte("dup"), Value: []byte("2")}, // rejected: already present
				{Key: []byte("c"), Value: []byte("3")},
			}
			failedAt, err := b.PutMulti(ctx, items)
			require.Equal(t, 1, failedAt)
			require.Equal(t, errs.KeyExists, errs.StatusOf(err))

			// items before the failure were written...
			require.True(t, b.Exists(ctx, []byte("a")))
			// ...items after the failure in this batch were not attempted.
			require.False(t, b.Exists(ctx, []byte("c")))
		})
	}
}

func TestListKeysStartIsExclusive(t *testing.T) {
	ctx := context.Background()
	for kind, b := range conformant(t, false) {
		t.Run(string(kind), func(t *testing.T) {
			for _, k := range []string{"a", "b", "c", "d"} {
				require.NoError(t, b.Put(ctx, []byte(k), []byte(k)))
			}

			all, err := b.ListKeys(ctx, nil, nil, 0)
			require.NoError(t, err)
			require.Len(t, all, 4)

			rest, err := b.ListKeys(ctx, all[0], nil, 0)
			require.NoError(t, err)
			require.Len(t, rest, 3)
			require.NotContains(t, rest, all[0])
		})
	}
}

func TestListKeysPrefixFiltersRawBytes(t *testing.T) {
	ctx := context.Background()
	for kind, b := range conformant(t, false) {
		t.Run(string(kind), func(t *testing.T) {
			for _, k := range []string{"app/1", "app/2", "zeta"} {
				require.NoError(t, b.Put(ctx, []byte(k), []byte("v")))
			}
			got, err := b.ListKeys(ctx, nil, []byte("app/"), 0)
			require.NoError(t, err)
			require.Len(t, got, 2)
		})
	}
}

func TestListKeysMaxCaps(t *testing.T) {
	ctx := context.Background()
	for kind, b := range conformant(t, false) {
		t.Run(string(kind), func(t *testing.T) {
			for _, k := range []string{"a", "b", "c"} {
				require.NoError(t, b.Put(ctx, []byte(k), []byte("v")))
			}
			got, err := b.ListKeys(ctx, nil, nil, 2)
			require.NoError(t, err)
			require.Len(t, got, 2)
		})
	}
}

func TestListRangeOrderedBackends(t *testing.T) {
	ctx := context.Background()
	backends := conformant(t, false)
	for _, kind := range []types.BackendKind{types.BackendMap, types.BackendLogStore} {
		b := backends[kind]
		t.Run(string(kind), func(t *testing.T) {
			for _, k := range []string{"a", "b", "c", "d", "e"} {
				require.NoError(t, b.Put(ctx, []byte(k), []byte(k)))
			}
			got, err := b.ListRange(ctx, []byte("b"), []byte("e"), 0)
			require.NoError(t, err)
			var keys []string
			for _, kv := range got {
				keys = append(keys, string(kv.Key))
			}
			require.Equal(t, []string{"c", "d"}, keys)
		})
	}
}

func TestListRangeNotSupportedOnBTreeStore(t *testing.T) {
	ctx := context.Background()
	b := conformant(t, false)[types.BackendBTree]
	_, err := b.ListRange(ctx, []byte("a"), []byte("z"), 0)
	require.Equal(t, errs.OpNotImpl, errs.StatusOf(err))
}

func TestNullStoreDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	b := newNullStore(Options{})
	require.NoError(t, b.Put(ctx, []byte("k"), []byte("v")))
	require.False(t, b.Exists(ctx, []byte("k")))
	_, err := b.Get(ctx, []byte("k"))
	require.Equal(t, errs.UnknownKey, errs.StatusOf(err))
}

func TestCreateFilesetPersistentBackendsOnly(t *testing.T) {
	backends := conformant(t, false)

	fs, err := backends[types.BackendMap].CreateFileset("db", "", false)
	require.NoError(t, err)
	require.Nil(t, fs, "in-memory backend has nothing to relocate as files")

	fs, err = backends[types.BackendLogStore].CreateFileset("db", "", false)
	require.NoError(t, err)
	require.NotNil(t, fs)
	require.Equal(t, "db", fs.Metadata[types.MetaDatabaseName])

	fs, err = backends[types.BackendBTree].CreateFileset("db", "", false)
	require.NoError(t, err)
	require.NotNil(t, fs)
	require.Len(t, fs.Files, 1)
}

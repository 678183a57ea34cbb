package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/lock"
	"github.com/kvfabric/kvfabric/pkg/registry"
	"github.com/kvfabric/kvfabric/pkg/types"
	"github.com/kvfabric/kvfabric/pkg/wire"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(registry.New(comparator.New()), lock.New())
}

func attachMap(t *testing.T, e *Engine, name string, noOverwrite bool) uint64 {
	t.Helper()
	info, err := e.Attach(types.AttachConfig{Name: name, Backend: types.BackendMap, NoOverwrite: noOverwrite})
	require.NoError(t, err)
	return info.ID
}

// Scenario 1 (spec §8): put/get roundtrip.
func TestScenarioPutGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	db := attachMap(t, e, "A", false)

	require.NoError(t, e.Put(ctx, db, []byte("alpha"), []byte("1")))
	require.NoError(t, e.Put(ctx, db, []byte("beta"), []byte("22")))

	res, err := e.Get(ctx, db, []byte("alpha"), 16)
	require.NoError(t, err)
	require.Equal(t, errs.Success, res.Status)
	require.Equal(t, []byte("1"), res.Value)
	require.Equal(t, 1, res.RequiredSize)

	n, err := e.Length(ctx, db, []byte("beta"))
	require.NoError(t, err)
	require.Equal(t, 2, n)

	exists, err := e.Exists(ctx, db, []byte("gamma"))
	require.NoError(t, err)
	require.False(t, exists)
}

// Scenario 2 (spec §8): undersized get reports Size and the true length,
// without truncating.
func TestScenarioUndersizedGet(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	db := attachMap(t, e, "A", false)
	require.NoError(t, e.Put(ctx, db, []byte("k"), []byte("0123456789ABCDEF")))

	res, err := e.Get(ctx, db, []byte("k"), 4)
	require.NoError(t, err)
	require.Equal(t, errs.Size, res.Status)
	require.Equal(t, 16, res.RequiredSize)
	require.Nil(t, res.Value)
}

// Scenario 3 (spec §8): no-overwrite.
func TestScenarioNoOverwrite(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	db := attachMap(t, e, "A", true)

	require.NoError(t, e.Put(ctx, db, []byte("k"), []byte("v1")))
	err := e.Put(ctx, db, []byte("k"), []byte("v2"))
	require.Equal(t, errs.KeyExists, errs.StatusOf(err))

	res, err := e.Get(ctx, db, []byte("k"), 0)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), res.Value)
}

// Scenario 4 (spec §8): list-keys with prefix, lexicographic order.
func TestScenarioListKeysWithPrefix(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	db := attachMap(t, e, "A", false)

	require.NoError(t, e.Put(ctx, db, []byte("app_1"), []byte("a")))
	require.NoError(t, e.Put(ctx, db, []byte("app_2"), []byte("b")))
	require.NoError(t, e.Put(ctx, db, []byte("zoo"), []byte("c")))

	res, err := e.ListKeys(ctx, db, nil, []byte("app_"), 10, nil)
	require.NoError(t, err)
	require.Equal(t, errs.Success, res.Status)

	keys, err := wire.DecodeMulti(res.Buf, res.Count)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("app_1"), []byte("app_2")}, keys)
}

func TestPutMultiStopsAtFirstFailureAndReportsLastAttempt(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	db := attachMap(t, e, "A", true)
	require.NoError(t, e.Put(ctx, db, []byte("dup"), []byte("orig")))

	keysBuf := wire.EncodeMulti([][]byte{[]byte("a"), []byte("dup"), []byte("c")})
	valsBuf := wire.EncodeMulti([][]byte{[]byte("1"), []byte("2"), []byte("3")})

	res, err := e.PutMulti(ctx, db, 3, keysBuf, valsBuf)
	require.NoError(t, err)
	require.Equal(t, errs.KeyExists, res.Status)
	require.Equal(t, []uint64{1, 0, 0}, res.Sizes)

	exists, _ := e.Exists(ctx, db, []byte("a"))
	require.True(t, exists)
	exists, _ = e.Exists(ctx, db, []byte("c"))
	require.False(t, exists)
}

func TestGetMultiZeroSizeMeansAbsentOrDidNotFit(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	db := attachMap(t, e, "A", false)
	require.NoError(t, e.Put(ctx, db, []byte("a"), []byte("hello")))
	require.NoError(t, e.Put(ctx, db, []byte("b"), []byte("toolongforslot")))

	keysBuf := wire.EncodeMulti([][]byte{[]byte("a"), []byte("b"), []byte("missing")})
	valsBuf, sizes, status, err := e.GetMulti(ctx, db, 3, keysBuf, []uint64{16, 4, 16})
	require.NoError(t, err)
	require.Equal(t, errs.Success, status)
	require.Equal(t, []uint64{5, 0, 0}, sizes)

	vals, err := wire.SplitItems(valsBuf, sizes)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), vals[0])
}

func TestGetPackedOverflowDeliversPrefixOnly(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	db := attachMap(t, e, "A", false)
	require.NoError(t, e.Put(ctx, db, []byte("a"), []byte("0123456789")))
	require.NoError(t, e.Put(ctx, db, []byte("b"), []byte("ABCDE")))
	require.NoError(t, e.Put(ctx, db, []byte("c"), []byte("more")))

	keysBuf := wire.EncodePackedKeys([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	respBuf, status, err := e.GetPacked(ctx, db, 3, keysBuf, 12)
	require.NoError(t, err)
	require.Equal(t, errs.Size, status)

	vals, err := wire.DecodePackedValues(respBuf, 3)
	require.NoError(t, err)
	require.Equal(t, []byte("0123456789"), vals[0])
	require.Empty(t, vals[1])
	require.Empty(t, vals[2])
}

func TestListKeysSizeStatusOnUndersizedSlot(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	db := attachMap(t, e, "A", false)
	require.NoError(t, e.Put(ctx, db, []byte("longkey"), []byte("v")))

	res, err := e.ListKeys(ctx, db, nil, nil, 0, []uint64{3})
	require.NoError(t, err)
	require.Equal(t, errs.Size, res.Status)
	require.Equal(t, []uint64{7}, res.Sizes)
	require.Nil(t, res.Buf)
}

package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/kvfabric/kvfabric/pkg/comparator"
	"github.com/kvfabric/kvfabric/pkg/engine"
	"github.com/kvfabric/kvfabric/pkg/filemover"
	"github.com/kvfabric/kvfabric/pkg/lock"
	"github.com/kvfabric/kvfabric/pkg/migration"
	"github.com/kvfabric/kvfabric/pkg/registry"
	"github.com/kvfabric/kvfabric/pkg/transport"
	"github.com/kvfabric/kvfabric/pkg/types"
)

// newLoopback starts a grpc server over the KV service on an OS-assigned
// loopback port and returns a dialed Client against it, plus the engine
// backing it (so tests can assert on in-process state when useful).
func newLoopback(t *testing.T) (*transport.Client, *engine.Engine, func()) {
	c, eng, _, cleanup := newLoopbackAddr(t)
	return c, eng, cleanup
}

// newLoopbackAddr is newLoopback plus the dialable listen address, for
// tests that need a second provider to migrate toward.
func newLoopbackAddr(t *testing.T) (*transport.Client, *engine.Engine, string, func()) {
	t.Helper()

	comparators := comparator.New()
	reg := registry.New(comparators)
	lk := lock.New()
	eng := engine.New(reg, lk)
	coord := migration.New(eng, filemover.NewLocal())

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := transport.NewServer(eng, comparators, coord, nil)
	grpcServer := grpc.NewServer()
	transport.RegisterKVServer(grpcServer, srv)

	go grpcServer.Serve(lis)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := transport.Dial(ctx, lis.Addr().String())
	require.NoError(t, err)

	cleanup := func() {
		c.Close()
		grpcServer.Stop()
	}
	return c, eng, lis.Addr().String(), cleanup
}

func TestClientAttachPutGetRoundtrip(t *testing.T) {
	c, _, cleanup := newLoopback(t)
	defer cleanup()
	ctx := context.Background()

	info, err := c.Attach(ctx, types.AttachConfig{Name: "orders", Backend: types.BackendMap})
	require.NoError(t, err)
	require.Equal(t, "orders", info.Name)

	require.NoError(t, c.Put(ctx, info.ID, []byte("k1"), []byte("v1")))

	value, requiredSize, err := c.Get(ctx, info.ID, []byte("k1"), 0)
	require.NoError(t, err)
	require.Equal(t, "v1", string(value))
	require.Equal(t, len("v1"), requiredSize)

	ok, err := c.Exists(ctx, info.ID, []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, c.Erase(ctx, info.ID, []byte("k1")))

	ok, err = c.Exists(ctx, info.ID, []byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClientGetUndersizedBufferReturnsSizeError(t *testing.T) {
	c, _, cleanup := newLoopback(t)
	defer cleanup()
	ctx := context.Background()

	info, err := c.Attach(ctx, types.AttachConfig{Name: "orders", Backend: types.BackendMap})
	require.NoError(t, err)
	require.NoError(t, c.Put(ctx, info.ID, []byte("k1"), []byte("a-long-value")))

	_, requiredSize, err := c.Get(ctx, info.ID, []byte("k1"), 2)
	require.Error(t, err)
	require.Equal(t, len("a-long-value"), requiredSize)
}

func TestClientOpenAndListDatabases(t *testing.T) {
	c, _, cleanup := newLoopback(t)
	defer cleanup()
	ctx := context.Background()

	_, err := c.Attach(ctx, types.AttachConfig{Name: "orders", Backend: types.BackendMap})
	require.NoError(t, err)
	_, err = c.Attach(ctx, types.AttachConfig{Name: "audit", Backend: types.BackendMap})
	require.NoError(t, err)

	count, err := c.CountDatabases(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	id, err := c.Open(ctx, "audit")
	require.NoError(t, err)
	require.NotZero(t, id)

	dbs, err := c.ListDatabases(ctx, 0)
	require.NoError(t, err)
	require.Len(t, dbs, 2)
}

func TestClientRemoveDatabase(t *testing.T) {
	c, _, cleanup := newLoopback(t)
	defer cleanup()
	ctx := context.Background()

	info, err := c.Attach(ctx, types.AttachConfig{Name: "orders", Backend: types.BackendMap})
	require.NoError(t, err)

	require.NoError(t, c.Remove(ctx, info.ID))

	_, err = c.Get(ctx, info.ID, []byte("k1"), 0)
	require.Error(t, err)
}

func TestClientMultiOpsRoundtrip(t *testing.T) {
	c, _, cleanup := newLoopback(t)
	defer cleanup()
	ctx := context.Background()

	info, err := c.Attach(ctx, types.AttachConfig{Name: "orders", Backend: types.BackendMap})
	require.NoError(t, err)

	keys := [][]byte{[]byte("k1"), []byte("k2"), []byte("k3")}
	vals := [][]byte{[]byte("v1"), []byte("v2"), []byte("v3")}

	sizes, err := c.PutMulti(ctx, info.ID, keys, vals)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 2, 2}, sizes)

	gotVals, gotSizes, err := c.GetMulti(ctx, info.ID, keys, []uint64{10, 10, 10})
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 2, 2}, gotSizes)
	require.Equal(t, [][]byte{[]byte("v1"), []byte("v2"), []byte("v3")}, gotVals)

	lens, err := c.LengthMulti(ctx, info.ID, keys)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 2, 2}, lens)

	exist, err := c.ExistsMulti(ctx, info.ID, append(keys, []byte("missing")))
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 1, 1, 0}, exist)

	require.NoError(t, c.EraseMulti(ctx, info.ID, keys[:1]))

	exist, err = c.ExistsMulti(ctx, info.ID, keys)
	require.NoError(t, err)
	require.Equal(t, []uint64{0, 1, 1}, exist)
}

func TestClientPackedOpsRoundtrip(t *testing.T) {
	c, _, cleanup := newLoopback(t)
	defer cleanup()
	ctx := context.Background()

	info, err := c.Attach(ctx, types.AttachConfig{Name: "orders", Backend: types.BackendMap})
	require.NoError(t, err)

	keys := [][]byte{[]byte("k1"), []byte("k2")}
	vals := [][]byte{[]byte("v1"), []byte("v22")}

	sizes, err := c.PutPacked(ctx, info.ID, keys, vals, "")
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 3}, sizes)

	gotVals, err := c.GetPacked(ctx, info.ID, keys, 1024)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("v1"), []byte("v22")}, gotVals)

	lens, err := c.LengthPacked(ctx, info.ID, keys)
	require.NoError(t, err)
	require.Equal(t, []uint64{2, 3}, lens)
}

func TestClientListingRoundtrip(t *testing.T) {
	c, _, cleanup := newLoopback(t)
	defer cleanup()
	ctx := context.Background()

	info, err := c.Attach(ctx, types.AttachConfig{Name: "orders", Backend: types.BackendMap})
	require.NoError(t, err)

	for _, k := range []string{"a1", "a2", "b1"} {
		require.NoError(t, c.Put(ctx, info.ID, []byte(k), []byte("v-"+k)))
	}

	keys, _, err := c.ListKeys(ctx, info.ID, nil, []byte("a"), 0, nil)
	require.NoError(t, err)
	require.ElementsMatch(t, [][]byte{[]byte("a1"), []byte("a2")}, keys)

	kvs, _, err := c.ListKeyVals(ctx, info.ID, nil, nil, 0, nil)
	require.NoError(t, err)
	require.Len(t, kvs, 3)
}

func TestClientMigrateKeysRoundtrip(t *testing.T) {
	src, _, _, cleanupSrc := newLoopbackAddr(t)
	defer cleanupSrc()
	dst, _, dstAddr, cleanupDst := newLoopbackAddr(t)
	defer cleanupDst()
	ctx := context.Background()

	srcInfo, err := src.Attach(ctx, types.AttachConfig{Name: "src", Backend: types.BackendMap})
	require.NoError(t, err)
	dstInfo, err := dst.Attach(ctx, types.AttachConfig{Name: "dst", Backend: types.BackendMap})
	require.NoError(t, err)

	for _, k := range []string{"k1", "k2"} {
		require.NoError(t, src.Put(ctx, srcInfo.ID, []byte(k), []byte("v-"+k)))
	}

	require.NoError(t, src.MigrateKeys(ctx, srcInfo.ID, dstAddr, dstInfo.ID, [][]byte{[]byte("k1"), []byte("k2")}, types.KeepOriginal))

	val, _, err := dst.Get(ctx, dstInfo.ID, []byte("k1"), 0)
	require.NoError(t, err)
	require.Equal(t, "v-k1", string(val))

	ok, err := src.Exists(ctx, srcInfo.ID, []byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestClientShutdownInvokesCallback(t *testing.T) {
	comparators := comparator.New()
	reg := registry.New(comparators)
	lk := lock.New()
	eng := engine.New(reg, lk)
	coord := migration.New(eng, filemover.NewLocal())

	shutdownCh := make(chan struct{}, 1)
	srv := transport.NewServer(eng, comparators, coord, func() { shutdownCh <- struct{}{} })

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcServer := grpc.NewServer()
	transport.RegisterKVServer(grpcServer, srv)
	go grpcServer.Serve(lis)
	defer grpcServer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := transport.Dial(ctx, lis.Addr().String())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Shutdown(ctx))

	select {
	case <-shutdownCh:
	case <-time.After(time.Second):
		t.Fatal("onShutdown callback was not invoked")
	}
}

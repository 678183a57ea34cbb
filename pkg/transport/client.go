package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
	"github.com/kvfabric/kvfabric/pkg/wire"
)

// Client is a thin Go wrapper over a KVClient connection, used both as
// pkg/client's transport and as migration.RemoteProvider when a
// Coordinator talks to a destination provider.
type Client struct {
	conn *grpc.ClientConn
	rpc  KVClient
}

// Dial opens a grpc connection to a provider endpoint. TLS/auth wiring
// is out of scope (spec §1 treats the RPC runtime as an external
// collaborator); this dials with insecure transport credentials, the
// correct choice for the trusted-network deployments this module
// targets.
func Dial(ctx context.Context, addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	return &Client{conn: conn, rpc: NewKVClient(conn)}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) call(ctx context.Context, req *Envelope) (*Envelope, error) {
	resp, err := c.rpc.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp, resp.AsError()
}

// Open resolves a database name to its id.
func (c *Client) Open(ctx context.Context, name string) (uint64, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpOpen, DBName: name})
	if err != nil {
		return 0, err
	}
	return resp.DBID, nil
}

// Attach registers a new database.
func (c *Client) Attach(ctx context.Context, cfg types.AttachConfig) (types.DatabaseInfo, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpAttach, AttachConfig: &cfg})
	if err != nil {
		return types.DatabaseInfo{}, err
	}
	return *resp.DatabaseInfo, nil
}

// Remove detaches a single database.
func (c *Client) Remove(ctx context.Context, dbID uint64) error {
	_, err := c.call(ctx, &Envelope{Op: OpRemove, DBID: dbID})
	return err
}

// CountDatabases reports how many databases are attached.
func (c *Client) CountDatabases(ctx context.Context) (int, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpCountDatabases})
	if err != nil {
		return 0, err
	}
	return resp.IntValue, nil
}

// ListDatabases lists up to max attached databases.
func (c *Client) ListDatabases(ctx context.Context, max int) ([]types.DatabaseInfo, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpListDatabases, Max: max})
	if err != nil {
		return nil, err
	}
	return resp.DatabaseList, nil
}

// Put writes a single key/value pair. This also satisfies
// migration.RemoteProvider.Put, letting a Client stand in directly as a
// migration destination.
func (c *Client) Put(ctx context.Context, dbID uint64, key, value []byte) error {
	_, err := c.call(ctx, &Envelope{Op: OpPut, DBID: dbID, Key: key, Value: value})
	return err
}

// Get fetches a single value, honoring capacity (<=0 means unbounded).
// When the stored value exceeds capacity, the returned error wraps
// errs.Size but RequiredSize still reports the value's true length, per
// spec §4.3.1 ("it does not truncate").
func (c *Client) Get(ctx context.Context, dbID uint64, key []byte, capacity int) ([]byte, int, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpGet, DBID: dbID, Key: key, Capacity: capacity})
	if resp == nil {
		return nil, 0, err
	}
	return resp.Value, resp.RequiredSize, err
}

// Length returns a single key's value length.
func (c *Client) Length(ctx context.Context, dbID uint64, key []byte) (int, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpLength, DBID: dbID, Key: key})
	if err != nil {
		return 0, err
	}
	return resp.IntValue, nil
}

// Exists reports whether a single key is present.
func (c *Client) Exists(ctx context.Context, dbID uint64, key []byte) (bool, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpExists, DBID: dbID, Key: key})
	if err != nil {
		return false, err
	}
	return resp.BoolValue, nil
}

// Erase removes a single key.
func (c *Client) Erase(ctx context.Context, dbID uint64, key []byte) error {
	_, err := c.call(ctx, &Envelope{Op: OpErase, DBID: dbID, Key: key})
	return err
}

// PutMulti writes N key/value pairs in one call (spec §4.3.2). Sizes
// reports, per entry, the length actually written — 0 for the failing
// entry and everything after it in the batch.
func (c *Client) PutMulti(ctx context.Context, dbID uint64, keys, vals [][]byte) ([]uint64, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpPutMulti, DBID: dbID, N: len(keys), KeysBuf: wire.EncodeMulti(keys), ValsBuf: wire.EncodeMulti(vals)})
	if resp == nil {
		return nil, err
	}
	return resp.Sizes, err
}

// GetMulti fetches N keys in one call, honoring a per-entry capacity
// (spec §4.3.2). A 0 entry in the returned sizes means absent or did
// not fit its slot's capacity.
func (c *Client) GetMulti(ctx context.Context, dbID uint64, keys [][]byte, capacities []uint64) ([][]byte, []uint64, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpGetMulti, DBID: dbID, N: len(keys), KeysBuf: wire.EncodeMulti(keys), Capacities: capacities})
	if resp == nil {
		return nil, nil, err
	}
	vals, splitErr := wire.SplitItems(resp.ValsBuf, resp.Sizes)
	if splitErr != nil {
		return nil, resp.Sizes, splitErr
	}
	return vals, resp.Sizes, err
}

// LengthMulti reports per-entry value lengths (0 for absent keys).
func (c *Client) LengthMulti(ctx context.Context, dbID uint64, keys [][]byte) ([]uint64, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpLengthMulti, DBID: dbID, N: len(keys), KeysBuf: wire.EncodeMulti(keys)})
	if resp == nil {
		return nil, err
	}
	return resp.Sizes, err
}

// ExistsMulti reports per-entry presence as a 1/0 flag per key.
func (c *Client) ExistsMulti(ctx context.Context, dbID uint64, keys [][]byte) ([]uint64, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpExistsMulti, DBID: dbID, N: len(keys), KeysBuf: wire.EncodeMulti(keys)})
	if resp == nil {
		return nil, err
	}
	return resp.Sizes, err
}

// EraseMulti erases N keys in one call.
func (c *Client) EraseMulti(ctx context.Context, dbID uint64, keys [][]byte) error {
	_, err := c.call(ctx, &Envelope{Op: OpEraseMulti, DBID: dbID, N: len(keys), KeysBuf: wire.EncodeMulti(keys)})
	return err
}

// PutPacked writes N items carried in a single packed buffer (spec
// §4.3.3, §6.2). originAddr names the bulk buffer's origin address for
// the proxy-write case; leave it empty for the common case of writing
// from locally-held keys/values.
func (c *Client) PutPacked(ctx context.Context, dbID uint64, keys, vals [][]byte, originAddr string) ([]uint64, error) {
	buf, err := wire.EncodePackedPut(keys, vals)
	if err != nil {
		return nil, err
	}
	resp, callErr := c.call(ctx, &Envelope{Op: OpPutPacked, DBID: dbID, N: len(keys), Buf: buf, OriginAddr: originAddr})
	if resp == nil {
		return nil, callErr
	}
	return resp.Sizes, callErr
}

// GetPacked fetches N keys into a single response buffer capped at
// capacity cumulative value bytes (spec §4.3.3). Entries that fit
// before an overflow are still delivered even when the call reports a
// Size error.
func (c *Client) GetPacked(ctx context.Context, dbID uint64, keys [][]byte, capacity int) ([][]byte, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpGetPacked, DBID: dbID, N: len(keys), Buf: wire.EncodePackedKeys(keys), Capacity: capacity})
	if resp == nil {
		return nil, err
	}
	vals, decodeErr := wire.DecodePackedValues(resp.Buf, len(keys))
	if decodeErr != nil {
		return nil, decodeErr
	}
	return vals, err
}

// LengthPacked reports per-entry value lengths for N keys carried in a
// packed key buffer (0 for absent keys).
func (c *Client) LengthPacked(ctx context.Context, dbID uint64, keys [][]byte) ([]uint64, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpLengthPacked, DBID: dbID, N: len(keys), Buf: wire.EncodePackedKeys(keys)})
	if resp == nil {
		return nil, err
	}
	sizes, _, decodeErr := wire.DecodeSizes(resp.Buf, len(keys))
	if decodeErr != nil {
		return nil, decodeErr
	}
	return sizes, err
}

// ListKeys enumerates keys in comparator order (spec §4.3.4). start is
// exclusive; empty start means from the beginning. On a Size error the
// returned sizes carry the true per-slot sizes so the caller can
// re-issue with larger capacities.
func (c *Client) ListKeys(ctx context.Context, dbID uint64, start, prefix []byte, max int, capacities []uint64) ([][]byte, []uint64, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpListKeys, DBID: dbID, Start: start, Prefix: prefix, Max: max, Capacities: capacities})
	if resp == nil {
		return nil, nil, err
	}
	if resp.Status != errs.Success {
		return nil, resp.Sizes, err
	}
	keys, decodeErr := wire.DecodeMulti(resp.Buf, resp.Count)
	if decodeErr != nil {
		return nil, resp.Sizes, decodeErr
	}
	return keys, resp.Sizes, err
}

// ListKeyVals enumerates (key, value) pairs the same way ListKeys
// enumerates keys.
func (c *Client) ListKeyVals(ctx context.Context, dbID uint64, start, prefix []byte, max int, capacities []uint64) ([]types.KV, []uint64, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpListKeyVals, DBID: dbID, Start: start, Prefix: prefix, Max: max, Capacities: capacities})
	if resp == nil {
		return nil, nil, err
	}
	if resp.Status != errs.Success {
		return nil, resp.Sizes, err
	}
	flat, decodeErr := wire.DecodeMulti(resp.Buf, resp.Count*2)
	if decodeErr != nil {
		return nil, resp.Sizes, decodeErr
	}
	kvs := make([]types.KV, resp.Count)
	for i := range kvs {
		kvs[i] = types.KV{Key: flat[i*2], Value: flat[i*2+1]}
	}
	return kvs, resp.Sizes, err
}

// MigrateKeys migrates an explicit key set from srcDB to dstDB on the
// provider at dstAddr (spec §4.4's migrate_keys), run on this Client's
// provider as the source.
func (c *Client) MigrateKeys(ctx context.Context, srcDB uint64, dstAddr string, dstDB uint64, keys [][]byte, flag types.MigrationFlag) error {
	_, err := c.call(ctx, &Envelope{Op: OpMigrateKeys, DBID: srcDB, DstAddr: dstAddr, DstDB: dstDB, Keys: keys, Flag: flag})
	return err
}

// MigrateKeyRange migrates every key in (lower, upper) in comparator
// order (spec §4.4's migrate_key_range).
func (c *Client) MigrateKeyRange(ctx context.Context, srcDB uint64, dstAddr string, dstDB uint64, lower, upper []byte, flag types.MigrationFlag) error {
	_, err := c.call(ctx, &Envelope{Op: OpMigrateKeyRange, DBID: srcDB, DstAddr: dstAddr, DstDB: dstDB, Lower: lower, Upper: upper, Flag: flag})
	return err
}

// MigrateKeysPrefixed migrates every key with the given prefix (spec
// §4.4's migrate_keys_prefixed).
func (c *Client) MigrateKeysPrefixed(ctx context.Context, srcDB uint64, dstAddr string, dstDB uint64, prefix []byte, flag types.MigrationFlag) error {
	_, err := c.call(ctx, &Envelope{Op: OpMigrateKeysPrefixed, DBID: srcDB, DstAddr: dstAddr, DstDB: dstDB, Prefix: prefix, Flag: flag})
	return err
}

// MigrateAllKeys migrates the entire keyspace (spec §4.4's
// migrate_all_keys).
func (c *Client) MigrateAllKeys(ctx context.Context, srcDB uint64, dstAddr string, dstDB uint64, flag types.MigrationFlag) error {
	_, err := c.call(ctx, &Envelope{Op: OpMigrateAllKeys, DBID: srcDB, DstAddr: dstAddr, DstDB: dstDB, Flag: flag})
	return err
}

// MigrateDatabase relocates an entire database, including its backend
// files, to the provider at dstAddr (spec §4.5).
func (c *Client) MigrateDatabase(ctx context.Context, srcDB uint64, dstAddr, dstRoot string, removeSrc bool) error {
	_, err := c.call(ctx, &Envelope{Op: OpMigrateDatabase, DBID: srcDB, DstAddr: dstAddr, DstRoot: dstRoot, RemoveSrc: removeSrc})
	return err
}

// ValidateFileset runs spec §4.5's destination-side pre-migration
// callback on the remote provider. Part of migration.RemoteProvider.
func (c *Client) ValidateFileset(ctx context.Context, fs *types.FilesetDescriptor) error {
	_, err := c.call(ctx, &Envelope{Op: OpValidateFileset, Fileset: fs})
	return err
}

// AttachFileset runs spec §4.5's destination-side post-migration
// callback on the remote provider. Part of migration.RemoteProvider.
func (c *Client) AttachFileset(ctx context.Context, fs *types.FilesetDescriptor, dstRoot string) (types.DatabaseInfo, error) {
	resp, err := c.call(ctx, &Envelope{Op: OpAttachFileset, Fileset: fs, DstRoot: dstRoot})
	if err != nil {
		return types.DatabaseInfo{}, err
	}
	return *resp.DatabaseInfo, nil
}

// Shutdown sends the privileged shutdown request of spec §5.
func (c *Client) Shutdown(ctx context.Context) error {
	_, err := c.call(ctx, &Envelope{Op: OpShutdown})
	return err
}

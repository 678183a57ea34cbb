// Package client is the ergonomic Go SDK for talking to a kv-provider:
// it wraps pkg/transport.Client with per-call timeouts so callers (kvctl,
// external Go programs) don't have to thread a context through every
// operation themselves.
package client

import (
	"context"
	"time"

	"github.com/kvfabric/kvfabric/pkg/transport"
	"github.com/kvfabric/kvfabric/pkg/types"
)

// migrationTimeout bounds the migrate_* Client methods, which can run far
// longer than a single key op: a migrate_all_keys on a large database may
// legitimately take minutes, so these don't share DefaultTimeout.
const migrationTimeout = 10 * time.Minute

func withMigrationTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), migrationTimeout)
}

// DefaultTimeout bounds every call made through Client except the migrate
// methods, which use migrationTimeout instead.
const DefaultTimeout = 10 * time.Second

// Client is a synchronous, timeout-bounded wrapper over a provider
// connection, the same shape the reference server's own CLI client takes.
type Client struct {
	rpc *transport.Client
}

// NewClient dials addr and returns a ready-to-use Client.
func NewClient(addr string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()
	rpc, err := transport.Dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.rpc.Close() }

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), DefaultTimeout)
}

// Open resolves a database name to its id.
func (c *Client) Open(name string) (uint64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.Open(ctx, name)
}

// Attach registers a new database.
func (c *Client) Attach(cfg types.AttachConfig) (types.DatabaseInfo, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.Attach(ctx, cfg)
}

// Remove detaches a single database.
func (c *Client) Remove(dbID uint64) error {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.Remove(ctx, dbID)
}

// CountDatabases reports how many databases are attached.
func (c *Client) CountDatabases() (int, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.CountDatabases(ctx)
}

// ListDatabases lists up to max attached databases.
func (c *Client) ListDatabases(max int) ([]types.DatabaseInfo, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.ListDatabases(ctx, max)
}

// Put writes a single key/value pair.
func (c *Client) Put(dbID uint64, key, value []byte) error {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.Put(ctx, dbID, key, value)
}

// Get fetches a single value, honoring capacity (<=0 means unbounded).
func (c *Client) Get(dbID uint64, key []byte, capacity int) ([]byte, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	value, _, err := c.rpc.Get(ctx, dbID, key, capacity)
	return value, err
}

// Length returns a single key's value length.
func (c *Client) Length(dbID uint64, key []byte) (int, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.Length(ctx, dbID, key)
}

// Exists reports whether a single key is present.
func (c *Client) Exists(dbID uint64, key []byte) (bool, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.Exists(ctx, dbID, key)
}

// Erase removes a single key.
func (c *Client) Erase(dbID uint64, key []byte) error {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.Erase(ctx, dbID, key)
}

// PutMulti writes N key/value pairs in one call.
func (c *Client) PutMulti(dbID uint64, keys, vals [][]byte) ([]uint64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.PutMulti(ctx, dbID, keys, vals)
}

// GetMulti fetches N keys in one call, honoring a per-entry capacity.
func (c *Client) GetMulti(dbID uint64, keys [][]byte, capacities []uint64) ([][]byte, []uint64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.GetMulti(ctx, dbID, keys, capacities)
}

// LengthMulti reports per-entry value lengths (0 for absent keys).
func (c *Client) LengthMulti(dbID uint64, keys [][]byte) ([]uint64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.LengthMulti(ctx, dbID, keys)
}

// ExistsMulti reports per-entry presence as a 1/0 flag per key.
func (c *Client) ExistsMulti(dbID uint64, keys [][]byte) ([]uint64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.ExistsMulti(ctx, dbID, keys)
}

// EraseMulti erases N keys in one call.
func (c *Client) EraseMulti(dbID uint64, keys [][]byte) error {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.EraseMulti(ctx, dbID, keys)
}

// PutPacked writes N items carried in a single packed buffer.
func (c *Client) PutPacked(dbID uint64, keys, vals [][]byte) ([]uint64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.PutPacked(ctx, dbID, keys, vals, "")
}

// GetPacked fetches N keys into a single response buffer capped at
// capacity cumulative value bytes.
func (c *Client) GetPacked(dbID uint64, keys [][]byte, capacity int) ([][]byte, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.GetPacked(ctx, dbID, keys, capacity)
}

// LengthPacked reports per-entry value lengths for N keys carried in a
// packed key buffer.
func (c *Client) LengthPacked(dbID uint64, keys [][]byte) ([]uint64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.LengthPacked(ctx, dbID, keys)
}

// ListKeys enumerates keys in comparator order. start is exclusive;
// empty start means from the beginning.
func (c *Client) ListKeys(dbID uint64, start, prefix []byte, max int, capacities []uint64) ([][]byte, []uint64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.ListKeys(ctx, dbID, start, prefix, max, capacities)
}

// ListKeyVals enumerates (key, value) pairs the same way ListKeys
// enumerates keys.
func (c *Client) ListKeyVals(dbID uint64, start, prefix []byte, max int, capacities []uint64) ([]types.KV, []uint64, error) {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.ListKeyVals(ctx, dbID, start, prefix, max, capacities)
}

// MigrateKeys migrates an explicit key set from dbID to dstDB on the
// provider at dstAddr, with this Client's provider acting as the source.
func (c *Client) MigrateKeys(dbID uint64, dstAddr string, dstDB uint64, keys [][]byte, flag types.MigrationFlag) error {
	ctx, cancel := withMigrationTimeout()
	defer cancel()
	return c.rpc.MigrateKeys(ctx, dbID, dstAddr, dstDB, keys, flag)
}

// MigrateKeyRange migrates every key in (lower, upper) in comparator order.
func (c *Client) MigrateKeyRange(dbID uint64, dstAddr string, dstDB uint64, lower, upper []byte, flag types.MigrationFlag) error {
	ctx, cancel := withMigrationTimeout()
	defer cancel()
	return c.rpc.MigrateKeyRange(ctx, dbID, dstAddr, dstDB, lower, upper, flag)
}

// MigrateKeysPrefixed migrates every key with the given prefix.
func (c *Client) MigrateKeysPrefixed(dbID uint64, dstAddr string, dstDB uint64, prefix []byte, flag types.MigrationFlag) error {
	ctx, cancel := withMigrationTimeout()
	defer cancel()
	return c.rpc.MigrateKeysPrefixed(ctx, dbID, dstAddr, dstDB, prefix, flag)
}

// MigrateAllKeys migrates the entire keyspace to dstDB on the provider at
// dstAddr.
func (c *Client) MigrateAllKeys(dbID uint64, dstAddr string, dstDB uint64, flag types.MigrationFlag) error {
	ctx, cancel := withMigrationTimeout()
	defer cancel()
	return c.rpc.MigrateAllKeys(ctx, dbID, dstAddr, dstDB, flag)
}

// MigrateDatabase relocates an entire database, including its backend
// files, to the provider at dstAddr.
func (c *Client) MigrateDatabase(dbID uint64, dstAddr, dstRoot string, removeSrc bool) error {
	ctx, cancel := withMigrationTimeout()
	defer cancel()
	return c.rpc.MigrateDatabase(ctx, dbID, dstAddr, dstRoot, removeSrc)
}

// Shutdown sends the privileged shutdown request of spec §5.
func (c *Client) Shutdown() error {
	ctx, cancel := withTimeout()
	defer cancel()
	return c.rpc.Shutdown(ctx)
}

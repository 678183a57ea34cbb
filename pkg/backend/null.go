package backend

import (
	"context"

	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
)

// nullStore discards every write and answers every read with UnknownKey.
// It exists for the same reason the original implementation ships one:
// isolating RPC-path overhead from storage-path overhead when benchmarking
// a provider (spec's supplemented NullStore backend).
type nullStore struct {
	opts Options
}

func newNullStore(opts Options) Backend {
	return &nullStore{opts: opts}
}

func (s *nullStore) Put(ctx context.Context, key, value []byte) error { return nil }

func (s *nullStore) PutMulti(ctx context.Context, items []types.KV) (int, error) {
	return -1, nil
}

func (s *nullStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	return nil, errs.New(errs.UnknownKey)
}

func (s *nullStore) Length(ctx context.Context, key []byte) (int, error) {
	return 0, errs.New(errs.UnknownKey)
}

func (s *nullStore) Exists(ctx context.Context, key []byte) bool { return false }

func (s *nullStore) Erase(ctx context.Context, key []byte) error { return nil }

func (s *nullStore) ListKeys(ctx context.Context, start, prefix []byte, max int) ([][]byte, error) {
	return nil, nil
}

func (s *nullStore) ListKeyVals(ctx context.Context, start, prefix []byte, max int) ([]types.KV, error) {
	return nil, nil
}

func (s *nullStore) ListRange(ctx context.Context, lower, upper []byte, max int) ([]types.KV, error) {
	return nil, nil
}

func (s *nullStore) Sync() error { return nil }

func (s *nullStore) Size() (uint64, error) { return 0, nil }

func (s *nullStore) CreateFileset(name, comparatorName string, noOverwrite bool) (*types.FilesetDescriptor, error) {
	return nil, nil
}

func (s *nullStore) Close() error { return nil }

func (s *nullStore) Kind() types.BackendKind { return types.BackendNull }

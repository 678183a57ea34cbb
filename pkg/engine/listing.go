package engine

import (
	"context"

	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/wire"
)

// ListingResult carries a listing handler's response. On Success, Buf
// holds the self-describing wire.EncodeMulti payload of the delivered
// items. On Size, Buf is nil and Sizes carries the true per-slot sizes
// so the caller can re-issue with larger capacities (spec §4.3.4).
type ListingResult struct {
	Buf    []byte
	Sizes  []uint64
	Count  int
	Status errs.Status
}

// fits reports whether every size has room in its caller-declared
// capacity slot. A nil/empty capacities slice means the caller declared
// no per-slot limit.
func fits(sizes, capacities []uint64) bool {
	for i, sz := range sizes {
		if i < len(capacities) && capacities[i] > 0 && sz > capacities[i] {
			return false
		}
	}
	return true
}

// ListKeys enumerates keys in the database's comparator order (spec
// §4.3.4). start is exclusive, empty start means from the beginning;
// prefix filters on raw bytes; max caps the result count. capacities, if
// non-nil, declares each result slot's capacity in caller order; a slot
// too small for its key aborts delivery with Status Size and the true
// sizes instead.
func (e *Engine) ListKeys(ctx context.Context, dbID uint64, start, prefix []byte, max int, capacities []uint64) (ListingResult, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return ListingResult{}, err
	}

	keys, err := b.ListKeys(ctx, start, prefix, max)
	if err != nil {
		return ListingResult{}, err
	}
	sizes := make([]uint64, len(keys))
	for i, k := range keys {
		sizes[i] = uint64(len(k))
	}
	if !fits(sizes, capacities) {
		return ListingResult{Sizes: sizes, Count: len(keys), Status: errs.Size}, nil
	}
	return ListingResult{Buf: wire.EncodeMulti(keys), Count: len(keys), Status: errs.Success}, nil
}

// ListKeyVals enumerates (key, value) pairs the same way ListKeys
// enumerates keys. Each capacity slot bounds the combined key+value size
// of its entry.
func (e *Engine) ListKeyVals(ctx context.Context, dbID uint64, start, prefix []byte, max int, capacities []uint64) (ListingResult, error) {
	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return ListingResult{}, err
	}

	kvs, err := b.ListKeyVals(ctx, start, prefix, max)
	if err != nil {
		return ListingResult{}, err
	}
	sizes := make([]uint64, len(kvs))
	flat := make([][]byte, 0, len(kvs)*2)
	for i, kv := range kvs {
		sizes[i] = uint64(len(kv.Key) + len(kv.Value))
		flat = append(flat, kv.Key, kv.Value)
	}
	if !fits(sizes, capacities) {
		return ListingResult{Sizes: sizes, Count: len(kvs), Status: errs.Size}, nil
	}
	// Each entry is two consecutive items (key, value) in the multi
	// buffer so the decoder on the far side can split pairs back out.
	return ListingResult{Buf: wire.EncodeMulti(flat), Count: len(kvs), Status: errs.Success}, nil
}

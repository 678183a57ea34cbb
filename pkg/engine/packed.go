package engine

import (
	"context"

	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
	"github.com/kvfabric/kvfabric/pkg/wire"
)

// PutPacked writes N items carried in a single put_packed bulk buffer
// (spec §4.3.3, §6.2). originAddr names the bulk buffer's origin address,
// present so the handler signature matches the proxy-write shape the
// spec describes ("the engine can pull from a third party"); this
// implementation always receives buf already pulled into process memory
// by the transport layer, so originAddr is accepted but unused — there is
// no separate remote-memory pull step to perform. Semantics otherwise
// match PutMulti exactly.
func (e *Engine) PutPacked(ctx context.Context, dbID uint64, n int, buf []byte, originAddr string) (MultiResult, error) {
	keys, vals, err := wire.DecodePackedPut(buf, n)
	if err != nil {
		return MultiResult{}, errs.Wrap(errs.InvalidArg, err)
	}

	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return MultiResult{}, err
	}

	items := make([]types.KV, n)
	for i := range keys {
		items[i] = types.KV{Key: keys[i], Value: vals[i]}
	}
	failedAt, putErr := b.PutMulti(ctx, items)

	sizes := make([]uint64, n)
	status := errs.Success
	if failedAt < 0 {
		for i, v := range vals {
			sizes[i] = uint64(len(v))
		}
	} else {
		for i := 0; i < failedAt; i++ {
			sizes[i] = uint64(len(vals[i]))
		}
		status = errs.StatusOf(putErr)
	}
	return MultiResult{Sizes: sizes, Status: status}, nil
}

// GetPacked fetches N keys carried in a packed key buffer, packing
// results into a single response buffer capped at capacity cumulative
// value bytes (spec §4.3.3). On overflow, the first offending entry and
// every entry after it are reported with size 0 and the handler returns
// Size, while entries that fit before the overflow point are delivered.
func (e *Engine) GetPacked(ctx context.Context, dbID uint64, n int, keysBuf []byte, capacity uint64) (respBuf []byte, status errs.Status, err error) {
	keys, err := wire.DecodePackedKeys(keysBuf, n)
	if err != nil {
		return nil, errs.InvalidArg, errs.Wrap(errs.InvalidArg, err)
	}

	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return nil, errs.StatusOf(err), err
	}

	vals := make([][]byte, n)
	for i, k := range keys {
		v, getErr := b.Get(ctx, k)
		if getErr == nil {
			vals[i] = v
		}
	}
	result := wire.EncodePackedValues(vals, capacity)
	status = errs.Success
	if result.Overflowed {
		status = errs.Size
	}
	return result.Buf, status, nil
}

// LengthPacked reports per-entry value lengths for N keys carried in a
// packed key buffer (0 for absent keys).
func (e *Engine) LengthPacked(ctx context.Context, dbID uint64, n int, keysBuf []byte) (sizesBuf []byte, status errs.Status, err error) {
	keys, err := wire.DecodePackedKeys(keysBuf, n)
	if err != nil {
		return nil, errs.InvalidArg, errs.Wrap(errs.InvalidArg, err)
	}

	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return nil, errs.StatusOf(err), err
	}

	sizes := make([]uint64, n)
	for i, k := range keys {
		if l, lenErr := b.Length(ctx, k); lenErr == nil {
			sizes[i] = uint64(l)
		}
	}
	return wire.EncodeSizes(sizes), errs.Success, nil
}

package engine

import (
	"context"

	"github.com/kvfabric/kvfabric/pkg/errs"
	"github.com/kvfabric/kvfabric/pkg/types"
	"github.com/kvfabric/kvfabric/pkg/wire"
)

// MultiResult carries the decoded outcome of a multi-op: a per-entry size
// array (0 means "not found / did not fit / not attempted", per spec
// §4.3.2) plus the aggregate status.
type MultiResult struct {
	Sizes  []uint64
	Status errs.Status
}

// PutMulti writes N items staged in two bulk buffers (keys, values).
// Per spec §9's resolution of the put_multi Open Question: earlier items
// in the batch stay written even after a later item fails; the returned
// sizes array reports, per entry, the length written (0 for the failing
// entry and everything after it in this batch); the aggregate status is
// that of the last attempted item.
func (e *Engine) PutMulti(ctx context.Context, dbID uint64, n int, keysBuf, valsBuf []byte) (MultiResult, error) {
	keys, err := wire.DecodeMulti(keysBuf, n)
	if err != nil {
		return MultiResult{}, errs.Wrap(errs.InvalidArg, err)
	}
	vals, err := wire.DecodeMulti(valsBuf, n)
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

// GetMulti fetches N keys staged in a bulk buffer, honoring a per-entry
// capacity. An entry that is absent, or whose value exceeds its slot's
// capacity, is reported with size 0 (spec §4.3.2: "value size 0 means
// not found / did not fit"); the operation as a whole still reports
// Success.
func (e *Engine) GetMulti(ctx context.Context, dbID uint64, n int, keysBuf []byte, capacities []uint64) (valsBuf []byte, sizes []uint64, status errs.Status, err error) {
	keys, err := wire.DecodeMulti(keysBuf, n)
	if err != nil {
		return nil, nil, errs.InvalidArg, errs.Wrap(errs.InvalidArg, err)
	}

	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return nil, nil, errs.StatusOf(err), err
	}

	sizes = make([]uint64, n)
	delivered := make([][]byte, n)
	for i, k := range keys {
		v, getErr := b.Get(ctx, k)
		if getErr != nil {
			continue
		}
		slotCap := uint64(0)
		if i < len(capacities) {
			slotCap = capacities[i]
		}
		if slotCap > 0 && uint64(len(v)) > slotCap {
			continue
		}
		delivered[i] = v
		sizes[i] = uint64(len(v))
	}
	return wire.EncodeItems(delivered), sizes, errs.Success, nil
}

// LengthMulti reports per-entry value lengths (0 for absent keys).
func (e *Engine) LengthMulti(ctx context.Context, dbID uint64, n int, keysBuf []byte) (sizes []uint64, status errs.Status, err error) {
	keys, err := wire.DecodeMulti(keysBuf, n)
	if err != nil {
		return nil, errs.InvalidArg, errs.Wrap(errs.InvalidArg, err)
	}

	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return nil, errs.StatusOf(err), err
	}

	sizes = make([]uint64, n)
	for i, k := range keys {
		l, lenErr := b.Length(ctx, k)
		if lenErr == nil {
			sizes[i] = uint64(l)
		}
	}
	return sizes, errs.Success, nil
}

// ExistsMulti reports per-entry presence. Results are carried as a u64
// array (1 present, 0 absent) so the wire layout stays uniform with the
// other multi-ops rather than introducing a bitset format of its own.
func (e *Engine) ExistsMulti(ctx context.Context, dbID uint64, n int, keysBuf []byte) (flags []uint64, err error) {
	keys, err := wire.DecodeMulti(keysBuf, n)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidArg, err)
	}

	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return nil, err
	}

	flags = make([]uint64, n)
	for i, k := range keys {
		if b.Exists(ctx, k) {
			flags[i] = 1
		}
	}
	return flags, nil
}

// EraseMulti erases N keys in order. The first backend Erase error is
// returned as-is and the keys after it are not attempted; whether an
// absent key counts as an error is up to the backend's Erase.
func (e *Engine) EraseMulti(ctx context.Context, dbID uint64, n int, keysBuf []byte) error {
	keys, err := wire.DecodeMulti(keysBuf, n)
	if err != nil {
		return errs.Wrap(errs.InvalidArg, err)
	}

	e.lock.RLock()
	defer e.lock.RUnlock()
	b, err := e.resolve(dbID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := b.Erase(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

// Package wire implements the packed/multi buffer layouts of spec §4.3.2,
// §4.3.3 and §6.2: fixed-width little-endian 64-bit sizes followed by
// concatenated, unpadded payloads. It has no knowledge of the transport
// that carries these buffers — it only encodes and decodes byte slices,
// so it is exercised directly by unit tests without any networking.
package wire

import (
	"encoding/binary"
	"fmt"
)

const sizeWidth = 8 // bytes per fixed-width u64 LE size entry

// EncodeSizes serializes a slice of sizes as fixed-width little-endian
// u64 values, concatenated with no padding (spec §4.3.2).
func EncodeSizes(sizes []uint64) []byte {
	buf := make([]byte, len(sizes)*sizeWidth)
	for i, s := range sizes {
		binary.LittleEndian.PutUint64(buf[i*sizeWidth:], s)
	}
	return buf
}

// DecodeSizes reads n fixed-width u64 values from the front of buf and
// returns them along with the remaining bytes.
func DecodeSizes(buf []byte, n int) (sizes []uint64, rest []byte, err error) {
	need := n * sizeWidth
	if len(buf) < need {
		return nil, nil, fmt.Errorf("wire: size array truncated: need %d bytes, have %d", need, len(buf))
	}
	sizes = make([]uint64, n)
	for i := 0; i < n; i++ {
		sizes[i] = binary.LittleEndian.Uint64(buf[i*sizeWidth:])
	}
	return sizes, buf[need:], nil
}

// EncodeItems concatenates items with no padding or separators, the
// "payloads concatenated" half of a multi/packed buffer.
func EncodeItems(items [][]byte) []byte {
	total := 0
	for _, it := range items {
		total += len(it)
	}
	buf := make([]byte, 0, total)
	for _, it := range items {
		buf = append(buf, it...)
	}
	return buf
}

// SplitItems slices buf into len(sizes) consecutive items whose lengths
// are given by sizes.
func SplitItems(buf []byte, sizes []uint64) ([][]byte, error) {
	items := make([][]byte, len(sizes))
	off := uint64(0)
	for i, sz := range sizes {
		if off+sz > uint64(len(buf)) {
			return nil, fmt.Errorf("wire: item %d overruns buffer: offset %d size %d buffer %d", i, off, sz, len(buf))
		}
		items[i] = buf[off : off+sz]
		off += sz
	}
	return items, nil
}

// EncodeMulti builds the single-bulk-buffer layout used by the multi-op
// and packed-op wire formats of §4.3.2/§6.2:
//
//	size[0] size[1] ... size[N-1] | payload[0] payload[1] ... payload[N-1]
func EncodeMulti(items [][]byte) []byte {
	sizes := make([]uint64, len(items))
	for i, it := range items {
		sizes[i] = uint64(len(it))
	}
	buf := EncodeSizes(sizes)
	return append(buf, EncodeItems(items)...)
}

// DecodeMulti is the inverse of EncodeMulti: n is the number of items the
// caller expects (carried out of band, e.g. as an RPC field).
func DecodeMulti(buf []byte, n int) ([][]byte, error) {
	sizes, rest, err := DecodeSizes(buf, n)
	if err != nil {
		return nil, err
	}
	return SplitItems(rest, sizes)
}

// EncodePackedPut builds the put_packed request layout of §6.2:
//
//	u64 key_size[0..N] , u64 val_size[0..N] , keys_concatenated , values_concatenated
func EncodePackedPut(keys, vals [][]byte) ([]byte, error) {
	if len(keys) != len(vals) {
		return nil, fmt.Errorf("wire: put_packed key/value count mismatch: %d keys, %d values", len(keys), len(vals))
	}
	keySizes := make([]uint64, len(keys))
	valSizes := make([]uint64, len(vals))
	for i := range keys {
		keySizes[i] = uint64(len(keys[i]))
		valSizes[i] = uint64(len(vals[i]))
	}
	buf := EncodeSizes(keySizes)
	buf = append(buf, EncodeSizes(valSizes)...)
	buf = append(buf, EncodeItems(keys)...)
	buf = append(buf, EncodeItems(vals)...)
	return buf, nil
}

// DecodePackedPut is the inverse of EncodePackedPut.
func DecodePackedPut(buf []byte, n int) (keys, vals [][]byte, err error) {
	keySizes, rest, err := DecodeSizes(buf, n)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: decoding key sizes: %w", err)
	}
	valSizes, rest, err := DecodeSizes(rest, n)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: decoding value sizes: %w", err)
	}
	keyTotal := uint64(0)
	for _, s := range keySizes {
		keyTotal += s
	}
	if uint64(len(rest)) < keyTotal {
		return nil, nil, fmt.Errorf("wire: put_packed keys truncated")
	}
	keys, err = SplitItems(rest[:keyTotal], keySizes)
	if err != nil {
		return nil, nil, err
	}
	vals, err = SplitItems(rest[keyTotal:], valSizes)
	if err != nil {
		return nil, nil, err
	}
	return keys, vals, nil
}

// EncodePackedKeys builds a get_packed/length_packed request buffer:
//
//	u64 key_size[0..N] , keys_concatenated
func EncodePackedKeys(keys [][]byte) []byte {
	return EncodeMulti(keys)
}

// DecodePackedKeys is the inverse of EncodePackedKeys.
func DecodePackedKeys(buf []byte, n int) ([][]byte, error) {
	return DecodeMulti(buf, n)
}

// PackValuesResult is the outcome of packing a get_packed response into a
// caller-provided capacity.
type PackValuesResult struct {
	Buf        []byte
	Sizes      []uint64
	Overflowed bool
}

// EncodePackedValues builds a get_packed response buffer of §6.2:
//
//	u64 val_size[0..N] , values_concatenated
//
// up to cumulative capacity. Per spec §4.3.3: on overflow the size for
// the first offending entry and every subsequent entry is set to 0, the
// caller is told Overflowed=true (maps to status Size), but entries that
// fit before the overflow are still delivered.
func EncodePackedValues(vals [][]byte, capacity uint64) PackValuesResult {
	sizes := make([]uint64, len(vals))
	delivered := make([][]byte, len(vals))
	used := uint64(0)
	overflowed := false
	for i, v := range vals {
		if overflowed || used+uint64(len(v)) > capacity {
			overflowed = true
			sizes[i] = 0
			delivered[i] = nil
			continue
		}
		sizes[i] = uint64(len(v))
		delivered[i] = v
		used += uint64(len(v))
	}
	buf := EncodeSizes(sizes)
	buf = append(buf, EncodeItems(delivered)...)
	return PackValuesResult{Buf: buf, Sizes: sizes, Overflowed: overflowed}
}

// DecodePackedValues is the inverse of the buffer built by
// EncodePackedValues: n is the number of entries the caller expects.
func DecodePackedValues(buf []byte, n int) ([][]byte, error) {
	return DecodeMulti(buf, n)
}

// Package store implements the header, primary bucket table and store
// table views over a memory-mapped dht file. It knows the exact byte
// layout (via internal/layout) but nothing about hashing or probing.
package store

import (
	"bytes"
	"encoding/binary"

	"github.com/theflywheel/dht/internal/layout"
)

// Magic identifies a valid dht file.
const Magic uint32 = 0x44485401 // "DHT" + format family byte

// Version is the current on-disk format version.
const Version uint32 = 1

// EmptyRef marks a bucket that has never been occupied.
const EmptyRef uint64 = 0

// TombstoneRef marks a bucket that was occupied and is now deleted.
const TombstoneRef uint64 = ^uint64(0)

// header field byte offsets, all little-endian. Magic and Version share
// the first 8 bytes as two uint32s; the rest are uint64.
const (
	offMagic         = 0
	offVersion       = 4
	offKeyMaxLen     = 8
	offObjectDataLen = 16
	offCapacity      = 24
	offSlotsUsed     = 32
	offSize          = 40
	offCursor        = 48
)

// Region is a live view over a dht file's mapped bytes: header, bucket
// table and store table. It performs no I/O of its own - callers (the
// table engine, the rehasher) own the *os.File and the mmap lifecycle and
// hand Region the resulting byte slice.
type Region struct {
	data []byte
	geo  layout.Geometry
}

// New wraps data (a full dht file mapping of at least geo.TotalBytes) with
// the given geometry. It does not write a header; use Init for that.
func New(data []byte, geo layout.Geometry) *Region {
	return &Region{data: data, geo: geo}
}

// Init writes a fresh header plus zeroed bucket/store tables into data,
// which must be at least geo.TotalBytes long.
func Init(data []byte, geo layout.Geometry) *Region {
	r := &Region{data: data, geo: geo}
	for i := range data[:geo.TotalBytes] {
		data[i] = 0
	}
	binary.LittleEndian.PutUint32(data[offMagic:], Magic)
	binary.LittleEndian.PutUint32(data[offVersion:], Version)
	binary.LittleEndian.PutUint64(data[offKeyMaxLen:], geo.KeyMaxLen)
	binary.LittleEndian.PutUint64(data[offObjectDataLen:], geo.ObjectDataLen)
	binary.LittleEndian.PutUint64(data[offCapacity:], geo.Capacity)
	binary.LittleEndian.PutUint64(data[offSlotsUsed:], 0)
	binary.LittleEndian.PutUint64(data[offSize:], 0)
	binary.LittleEndian.PutUint64(data[offCursor:], 0)
	return r
}

// PeekMagic reads the magic tag directly out of a raw mapping, before a
// Region has been constructed (used by Open to validate before trusting
// any other header field).
func PeekMagic(data []byte) uint32 { return binary.LittleEndian.Uint32(data[offMagic:]) }

// PeekVersion reads the format version directly out of a raw mapping.
func PeekVersion(data []byte) uint32 { return binary.LittleEndian.Uint32(data[offVersion:]) }

// ReadGeometry reconstructs a Geometry from the header fields present in
// data, without trusting anything but KeyMaxLen/ObjectDataLen/Capacity (the
// three numbers layout.Compute needs).
func ReadGeometry(data []byte) layout.Geometry {
	keyMaxLen := binary.LittleEndian.Uint64(data[offKeyMaxLen:])
	objectDataLen := binary.LittleEndian.Uint64(data[offObjectDataLen:])
	capacity := binary.LittleEndian.Uint64(data[offCapacity:])
	return layout.Compute(keyMaxLen, objectDataLen, capacity)
}

// Magic returns the header's magic tag.
func (r *Region) Magic() uint32 { return binary.LittleEndian.Uint32(r.data[offMagic:]) }

// Version returns the header's format version.
func (r *Region) Version() uint32 { return binary.LittleEndian.Uint32(r.data[offVersion:]) }

// Geometry returns the geometry this Region was constructed with.
func (r *Region) Geometry() layout.Geometry { return r.geo }

// KeyMaxLen returns the header's key_maxlen field.
func (r *Region) KeyMaxLen() uint64 { return binary.LittleEndian.Uint64(r.data[offKeyMaxLen:]) }

// ObjectDataLen returns the header's object_datalen field.
func (r *Region) ObjectDataLen() uint64 {
	return binary.LittleEndian.Uint64(r.data[offObjectDataLen:])
}

// Capacity returns the header's capacity field.
func (r *Region) Capacity() uint64 { return binary.LittleEndian.Uint64(r.data[offCapacity:]) }

// SlotsUsed returns the header's slots_used field.
func (r *Region) SlotsUsed() uint64 { return binary.LittleEndian.Uint64(r.data[offSlotsUsed:]) }

// SetSlotsUsed writes the header's slots_used field.
func (r *Region) SetSlotsUsed(v uint64) { binary.LittleEndian.PutUint64(r.data[offSlotsUsed:], v) }

// Size returns the header's size field (live entry count).
func (r *Region) Size() uint64 { return binary.LittleEndian.Uint64(r.data[offSize:]) }

// SetSize writes the header's size field.
func (r *Region) SetSize(v uint64) { binary.LittleEndian.PutUint64(r.data[offSize:], v) }

// Cursor returns the header's cursor field (next store-table index).
func (r *Region) Cursor() uint64 { return binary.LittleEndian.Uint64(r.data[offCursor:]) }

// SetCursor writes the header's cursor field.
func (r *Region) SetCursor(v uint64) { binary.LittleEndian.PutUint64(r.data[offCursor:], v) }

// DirtySlots returns slots_used - size, the number of tombstoned-but-
// unreclaimed bucket references.
func (r *Region) DirtySlots() uint64 { return r.SlotsUsed() - r.Size() }

// Bucket returns the store-index reference held by primary bucket i.
func (r *Region) Bucket(i uint64) uint64 {
	off := r.geo.BucketOffset(i)
	return binary.LittleEndian.Uint64(r.data[off:])
}

// SetBucket writes ref into primary bucket i.
func (r *Region) SetBucket(i uint64, ref uint64) {
	off := r.geo.BucketOffset(i)
	binary.LittleEndian.PutUint64(r.data[off:], ref)
}

// slotBytes returns the full slot record (key field + payload field) for
// store-table slot i, as a slice into the mapping.
func (r *Region) slotBytes(i uint64) []byte {
	off := r.geo.SlotOffset(i)
	return r.data[off : off+r.geo.SlotSize]
}

// KeyField returns the key_maxlen+1 byte NUL-padded key field of slot i, a
// live view into the mapping.
func (r *Region) KeyField(i uint64) []byte {
	return r.slotBytes(i)[:r.geo.KeyMaxLen+1]
}

// Payload returns the object_datalen byte payload field of slot i, a live
// view into the mapping. The pointer is stable until the next rehash or
// free, per spec.md §5.
func (r *Region) Payload(i uint64) []byte {
	b := r.slotBytes(i)
	return b[r.geo.KeyMaxLen+1 : r.geo.KeyMaxLen+1+r.geo.ObjectDataLen]
}

// KeyMatches reports whether slot i's stored key equals key (compared
// byte-wise including the NUL terminator, per spec.md §4.3).
func (r *Region) KeyMatches(i uint64, key []byte) bool {
	stored := r.KeyField(i)
	if uint64(len(key)) > r.geo.KeyMaxLen {
		return false
	}
	if stored[len(key)] != 0 {
		return false
	}
	return bytes.Equal(stored[:len(key)], key)
}

// KeyString returns slot i's stored key as a Go string, trimmed at its NUL
// terminator.
func (r *Region) KeyString(i uint64) string {
	field := r.KeyField(i)
	n := bytes.IndexByte(field, 0)
	if n < 0 {
		n = len(field)
	}
	return string(field[:n])
}

// WriteSlot writes key (NUL-padded to key_maxlen+1) and payload into
// store-table slot i.
func (r *Region) WriteSlot(i uint64, key []byte, payload []byte) {
	b := r.slotBytes(i)
	keyField := b[:r.geo.KeyMaxLen+1]
	for j := range keyField {
		keyField[j] = 0
	}
	copy(keyField, key)
	copy(b[r.geo.KeyMaxLen+1:], payload)
}

// WritePayload overwrites slot i's payload field in place, leaving its key
// field untouched.
func (r *Region) WritePayload(i uint64, payload []byte) {
	copy(r.Payload(i), payload)
}

// ClearKey zeroes slot i's key field, the convention delete uses to mark a
// store slot unreferenced for debugging. Invariant 4 (liveness is defined
// by primary-bucket membership, not this convention) is authoritative; the
// rehasher does not rely on this byte alone.
func (r *Region) ClearKey(i uint64) {
	keyField := r.KeyField(i)
	for j := range keyField {
		keyField[j] = 0
	}
}

// Bytes returns the full backing mapping, for msync/size-check callers.
func (r *Region) Bytes() []byte { return r.data }

// Package layout computes byte offsets and sizes for a dht file given its
// (key_maxlen, object_datalen, capacity) triple. Every offset is derived
// from these three numbers and the fixed header size, so a file can be
// re-opened without persisting any offset on disk.
package layout

// HeaderSize is the fixed size, in bytes, of the header record at the start
// of every dht file. It holds Magic, Version, KeyMaxLen, ObjectDataLen,
// Capacity, SlotsUsed, Size and Cursor, each as a little-endian uint64
// except Magic/Version which share the first 8 bytes as two uint32s.
const HeaderSize = 56

// BucketRefSize is the width, in bytes, of a single primary bucket entry.
const BucketRefSize = 8

// Geometry holds every derived offset and size for one (keyMaxLen,
// objectDataLen, capacity) triple.
type Geometry struct {
	KeyMaxLen     uint64
	ObjectDataLen uint64
	Capacity      uint64

	SlotSize uint64

	BucketTableOffset uint64
	BucketTableBytes  uint64

	StoreTableOffset uint64
	StoreTableBytes  uint64

	TotalBytes uint64
}

// AlignUp rounds n up to the next multiple of align. align must be a power
// of two.
func AlignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

// IsPowerOfTwo reports whether n is a power of two (n > 0).
func IsPowerOfTwo(n uint64) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n. n must be > 0.
func NextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	if IsPowerOfTwo(n) {
		return n
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Compute derives the full file geometry for the given parameters.
// Slot records are 8-byte aligned so the store table can be walked with
// simple pointer arithmetic on any little-endian 64-bit platform.
func Compute(keyMaxLen, objectDataLen, capacity uint64) Geometry {
	slotSize := AlignUp(keyMaxLen+1+objectDataLen, 8)

	bucketTableOffset := uint64(HeaderSize)
	bucketTableBytes := capacity * BucketRefSize

	storeTableOffset := bucketTableOffset + bucketTableBytes
	storeTableBytes := capacity * slotSize

	totalBytes := storeTableOffset + storeTableBytes

	return Geometry{
		KeyMaxLen:     keyMaxLen,
		ObjectDataLen: objectDataLen,
		Capacity:      capacity,

		SlotSize: slotSize,

		BucketTableOffset: bucketTableOffset,
		BucketTableBytes:  bucketTableBytes,

		StoreTableOffset: storeTableOffset,
		StoreTableBytes:  storeTableBytes,

		TotalBytes: totalBytes,
	}
}

// BucketOffset returns the byte offset of bucket i's 8-byte reference.
func (g Geometry) BucketOffset(i uint64) uint64 {
	return g.BucketTableOffset + i*BucketRefSize
}

// SlotOffset returns the byte offset of store-table slot i.
func (g Geometry) SlotOffset(i uint64) uint64 {
	return g.StoreTableOffset + i*g.SlotSize
}

// MaxLoadNumerator and MaxLoadDenominator express the 3/4 load factor bound,
// (3 * capacity) / 4.
const (
	MaxLoadNumerator   = 3
	MaxLoadDenominator = 4
)

// MaxSlotsUsed returns the load factor bound for capacity. Insert grows the
// table only when slots_used already exceeds it, so slots_used can reach
// MaxSlotsUsed(capacity)+1.
func MaxSlotsUsed(capacity uint64) uint64 {
	return (MaxLoadNumerator * capacity) / MaxLoadDenominator
}

// MinCapacity is the minimum initial/reserved capacity (invariant 1).
const MinCapacity = 8

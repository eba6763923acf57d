// Package probe implements the linear-probing search over a Region's
// primary bucket table, honoring tombstones on delete/insert and skipping
// them on lookup, per spec.md §4.3.
package probe

import (
	"github.com/theflywheel/dht/internal/store"
	"github.com/theflywheel/dht/internal/xhash"
)

// Result describes where a key was found (or would be inserted).
type Result struct {
	Bucket uint64 // primary bucket index
	Slot   uint64 // store-table slot (valid only if Found)
	Found  bool
}

// Lookup walks the probe sequence starting at hash's reduced bucket index,
// stopping at the first empty bucket. Tombstones are skipped. On a live
// bucket whose stored key matches key, it returns that bucket/slot.
func Lookup(r *store.Region, hash uint64, key []byte) Result {
	capacity := r.Capacity()
	start := xhash.BucketIndex(hash, capacity)

	for i := uint64(0); i < capacity; i++ {
		idx := (start + i) % capacity
		ref := r.Bucket(idx)

		switch ref {
		case store.EmptyRef:
			return Result{}
		case store.TombstoneRef:
			continue
		default:
			slot := ref - 1
			if r.KeyMatches(slot, key) {
				return Result{Bucket: idx, Slot: slot, Found: true}
			}
		}
	}
	return Result{}
}

// InsertResult describes the outcome of Insert.
type InsertResult struct {
	Inserted        bool // true if a new entry was placed
	AlreadyPresent  bool // true if the key already existed; no mutation
	ReusedTombstone bool // true if the new bucket ref replaced a tombstone
	Overflow        bool // true if the probe exhausted the table (unreachable under invariant 2)
	Bucket          uint64
	Slot            uint64
}

// Insert performs the single-pass insert probe from spec.md §4.3: it
// records the first tombstone seen, returns AlreadyPresent on a key match,
// and otherwise writes into the first empty bucket (or the recorded
// tombstone, if any) using storeSlot as the new store-table index.
//
// Insert does not touch the store table or header counters beyond what's
// needed to place the bucket reference; the caller (the table engine) is
// responsible for writing the slot record and updating size/slots_used/
// cursor, since those bookkeeping decisions depend on ReusedTombstone.
func Insert(r *store.Region, hash uint64, key []byte, storeSlot uint64) InsertResult {
	capacity := r.Capacity()
	start := xhash.BucketIndex(hash, capacity)

	var tombstoneIdx uint64
	haveTombstone := false

	for i := uint64(0); i < capacity; i++ {
		idx := (start + i) % capacity
		ref := r.Bucket(idx)

		switch ref {
		case store.EmptyRef:
			target := idx
			reused := false
			if haveTombstone {
				target = tombstoneIdx
				reused = true
			}
			r.SetBucket(target, storeSlot+1)
			return InsertResult{Inserted: true, ReusedTombstone: reused, Bucket: target, Slot: storeSlot}

		case store.TombstoneRef:
			if !haveTombstone {
				tombstoneIdx = idx
				haveTombstone = true
			}

		default:
			slot := ref - 1
			if r.KeyMatches(slot, key) {
				return InsertResult{AlreadyPresent: true, Bucket: idx, Slot: slot}
			}
		}
	}
	return InsertResult{Overflow: true}
}

// FindLiveSlot scans the entire primary bucket table for a reference to
// store-table slot idx, deciding liveness purely by bucket membership
// (invariant 4) rather than by anything read out of the store table
// itself. This is the only way to answer "is slot idx still live" that
// works for every key, including one whose stored bytes begin with a NUL:
// the store table has no persisted key length, so a key's original
// content can't always be reconstructed from its NUL-padded field, but
// invariant 4 never depends on that reconstruction.
func FindLiveSlot(r *store.Region, idx uint64) Result {
	capacity := r.Capacity()
	for i := uint64(0); i < capacity; i++ {
		ref := r.Bucket(i)
		if ref == store.EmptyRef || ref == store.TombstoneRef {
			continue
		}
		if ref-1 == idx {
			return Result{Bucket: i, Slot: idx, Found: true}
		}
	}
	return Result{}
}

// DeleteResult describes the outcome of Delete.
type DeleteResult struct {
	Deleted bool
	Bucket  uint64
	Slot    uint64
}

// Delete locates key as Lookup does; on success it writes the tombstone
// sentinel into the bucket and clears the store slot's key field. It does
// not update size/slots_used; the caller owns header bookkeeping.
func Delete(r *store.Region, hash uint64, key []byte) DeleteResult {
	found := Lookup(r, hash, key)
	if !found.Found {
		return DeleteResult{}
	}
	r.SetBucket(found.Bucket, store.TombstoneRef)
	r.ClearKey(found.Slot)
	return DeleteResult{Deleted: true, Bucket: found.Bucket, Slot: found.Slot}
}

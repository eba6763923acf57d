// Package rehash implements table growth: allocating a new file region,
// rebuilding the bucket table from the live entries of the old store
// table, and atomically replacing the live mapping, per spec.md §4.6.
package rehash

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"

	logging "github.com/ipfs/go-log/v2"

	"github.com/theflywheel/dht/internal/layout"
	"github.com/theflywheel/dht/internal/osfile"
	"github.com/theflywheel/dht/internal/probe"
	"github.com/theflywheel/dht/internal/store"
	"github.com/theflywheel/dht/internal/xhash"
)

var log = logging.Logger("dht/rehash")

// Result carries the new file/mapping/region after a successful Grow. The
// caller installs these into its handle in place of the old ones.
type Result struct {
	File   *os.File
	Data   []byte
	Region *store.Region
}

// Grow rebuilds path's table at newCapacity (which must be a power of two
// strictly greater than old's current capacity).
//
// It builds the new table entirely in a sibling temporary file, created
// with O_EXCL after any leftover temp file of that name has been removed
// (there is no guard against a concurrent rehash). Only after the
// new file is fully populated does Grow unmap and close the caller's old
// file/mapping and atomically rename the temp file over path (via
// natefinch/atomic, which falls back to copy+remove on platforms where
// rename can't replace an open destination). Any failure before that point
// leaves oldFile/oldData/old completely untouched and returns an error;
// the temp file, if created, is removed.
func Grow(path string, oldFile *os.File, oldData []byte, old *store.Region, newCapacity uint64) (*Result, error) {
	if newCapacity <= old.Capacity() {
		return nil, fmt.Errorf("rehash: new capacity %d must exceed current capacity %d", newCapacity, old.Capacity())
	}

	geo := layout.Compute(old.KeyMaxLen(), old.ObjectDataLen(), newCapacity)
	tmpPath := path + ".rehash.tmp"

	_ = os.Remove(tmpPath)

	tmpFile, err := osfile.Open(tmpPath, osfile.ReadWrite|osfile.Create|osfile.Exclusive, 0o644)
	if err != nil {
		return nil, fmt.Errorf("rehash: create temp file: %w", err)
	}
	// cleanup on any early return; cleared once the commit succeeds.
	cleanup := true
	defer func() {
		if cleanup {
			_ = tmpFile.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := osfile.Truncate(tmpFile, int64(geo.TotalBytes)); err != nil {
		return nil, fmt.Errorf("rehash: truncate temp file: %w", err)
	}

	// Some filesystems silently cap sparse-file growth; confirm the temp
	// file actually reached geo.TotalBytes before trusting an mmap of
	// that length.
	last := make([]byte, 1)
	if _, err := osfile.Pread(tmpFile, last, int64(geo.TotalBytes)-1); err != nil {
		return nil, fmt.Errorf("rehash: size-check temp file: %w", err)
	}

	tmpData, err := osfile.Mmap(tmpFile, int(geo.TotalBytes))
	if err != nil {
		return nil, fmt.Errorf("rehash: mmap temp file: %w", err)
	}
	// If we bail before the commit point, the temp mapping must be
	// unmapped too so cleanup's os.Remove doesn't race a live mapping.
	newMapped := true
	defer func() {
		if cleanup && newMapped {
			_ = osfile.Munmap(tmpData)
		}
	}()

	newRegion := store.Init(tmpData, geo)

	log.Infow("rehash starting", "path", path, "oldCapacity", old.Capacity(), "newCapacity", newCapacity)

	if err := rebuild(old, newRegion); err != nil {
		return nil, fmt.Errorf("rehash: rebuild: %w", err)
	}

	if err := osfile.Msync(tmpData); err != nil {
		return nil, fmt.Errorf("rehash: msync temp file: %w", err)
	}

	// Commit point: unmap/close the caller's old state, then swap the
	// temp file into place. Once we pass this line we do not clean up
	// the temp file on error - it IS the new live file.
	cleanup = false
	newMapped = false

	if err := osfile.Munmap(oldData); err != nil {
		return nil, fmt.Errorf("rehash: munmap old region: %w", err)
	}
	if err := osfile.Close(oldFile); err != nil {
		return nil, fmt.Errorf("rehash: close old file: %w", err)
	}

	if err := atomic.ReplaceFile(tmpPath, path); err != nil {
		return nil, fmt.Errorf("rehash: replace file: %w", err)
	}

	log.Infow("rehash complete", "path", path, "size", newRegion.Size(), "capacity", newRegion.Capacity())

	return &Result{File: tmpFile, Data: tmpData, Region: newRegion}, nil
}

// rebuild walks old's store table in insertion order and reinserts every
// live entry into newRegion via the ordinary insert path. Liveness is
// determined by a membership bitmap built from a single scan of old's
// primary buckets (invariant 4 is authoritative; the "zeroed key on
// delete" convention is a debugging hint only, per spec.md §4.6).
func rebuild(old, next *store.Region) error {
	oldCapacity := old.Capacity()
	oldCursor := old.Cursor()

	live := make([]bool, oldCursor)
	for i := uint64(0); i < oldCapacity; i++ {
		ref := old.Bucket(i)
		if ref == store.EmptyRef || ref == store.TombstoneRef {
			continue
		}
		slot := ref - 1
		if slot < oldCursor {
			live[slot] = true
		}
	}

	for slot := uint64(0); slot < oldCursor; slot++ {
		if !live[slot] {
			continue
		}

		// Only the NUL padding after the key is dropped; zero bytes inside
		// the key are kept, so the rewritten key field is byte-identical.
		key := append([]byte(nil), bytes.TrimRight(old.KeyField(slot), "\x00")...)
		payload := append([]byte(nil), old.Payload(slot)...)

		hash := xhash.Hash(key)
		newSlot := next.Cursor()
		ires := probe.Insert(next, hash, key, newSlot)
		if ires.Overflow {
			return fmt.Errorf("rehash: probe overflow rebuilding slot %d", slot)
		}
		if ires.AlreadyPresent {
			return fmt.Errorf("rehash: duplicate key encountered rebuilding slot %d", slot)
		}

		next.WriteSlot(newSlot, key, payload)
		next.SetCursor(newSlot + 1)
		next.SetSize(next.Size() + 1)
		next.SetSlotsUsed(next.SlotsUsed() + 1)
	}

	return nil
}

package dht

import (
	"fmt"
	"io"
	"os"

	logging "github.com/ipfs/go-log/v2"

	"github.com/theflywheel/dht/internal/dhterr"
	"github.com/theflywheel/dht/internal/layout"
	"github.com/theflywheel/dht/internal/osfile"
	"github.com/theflywheel/dht/internal/probe"
	"github.com/theflywheel/dht/internal/rehash"
	"github.com/theflywheel/dht/internal/store"
	"github.com/theflywheel/dht/internal/xhash"
)

var log = logging.Logger("dht")

// Table is an open handle onto a dht file. The zero value is not usable;
// obtain one with Open.
type Table struct {
	path     string
	file     *os.File // nil once LoadToMemory has run
	data     []byte
	region   *store.Region
	writable bool
	loaded   bool // LoadToMemory has replaced data with a private copy
	freed    bool
}

// Open opens or creates a dht file at path. If the file is empty (newly
// created, or truncated to zero by the caller), a fresh table is
// materialized at the minimum capacity and opts.KeyMaxLen must be
// non-zero. Otherwise the header is read and validated against opts (see
// Options). flags must include ReadWrite to create a new file.
func Open(path string, opts Options, flags OpenFlag) (*Table, error) {
	osFlags := osfile.Flag(flags)
	writable := osFlags.Writable()

	f, err := osfile.Open(path, osFlags, 0o644)
	if err != nil {
		return nil, err
	}

	size, err := osfile.Size(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if size == 0 {
		return createFresh(f, path, opts, writable)
	}
	return openExisting(f, path, opts, writable, size)
}

func createFresh(f *os.File, path string, opts Options, writable bool) (*Table, error) {
	if !writable {
		_ = f.Close()
		return nil, fmt.Errorf("dht: create %s: %w", path, dhterr.ErrReadOnly)
	}
	if opts.KeyMaxLen == 0 {
		_ = f.Close()
		return nil, fmt.Errorf("dht: create %s: KeyMaxLen must be > 0", path)
	}

	geo := layout.Compute(opts.KeyMaxLen, opts.ObjectDataLen, layout.MinCapacity)
	if err := osfile.Truncate(f, int64(geo.TotalBytes)); err != nil {
		_ = f.Close()
		return nil, err
	}

	data, err := osfile.Mmap(f, int(geo.TotalBytes))
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	region := store.Init(data, geo)
	log.Infow("created table", "path", path, "keyMaxLen", geo.KeyMaxLen, "objectDataLen", geo.ObjectDataLen, "capacity", geo.Capacity)

	return &Table{path: path, file: f, data: data, region: region, writable: true}, nil
}

func openExisting(f *os.File, path string, opts Options, writable bool, size int64) (*Table, error) {
	if uint64(size) < layout.HeaderSize {
		_ = f.Close()
		return nil, fmt.Errorf("dht: open %s: %w", path, dhterr.ErrShortFile)
	}

	var data []byte
	var err error
	if writable {
		data, err = osfile.Mmap(f, int(size))
	} else {
		data, err = osfile.MmapReadOnly(f, int(size))
	}
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	fail := func(cause error) (*Table, error) {
		_ = osfile.Munmap(data)
		_ = f.Close()
		return nil, fmt.Errorf("dht: open %s: %w", path, cause)
	}

	if magic := store.PeekMagic(data); magic != store.Magic {
		return fail(dhterr.ErrBadMagic)
	}
	if version := store.PeekVersion(data); version != store.Version {
		return fail(dhterr.ErrBadVersion)
	}

	geo := store.ReadGeometry(data)
	if !layout.IsPowerOfTwo(geo.Capacity) || geo.Capacity < layout.MinCapacity {
		return fail(dhterr.ErrCorrupt)
	}
	if geo.TotalBytes != uint64(size) {
		return fail(fmt.Errorf("%w: file is %d bytes, header implies %d", dhterr.ErrCorrupt, size, geo.TotalBytes))
	}
	if opts.KeyMaxLen != 0 && opts.KeyMaxLen != geo.KeyMaxLen {
		return fail(fmt.Errorf("%w: key_maxlen %d requested, %d on disk", dhterr.ErrIncompatibleOptions, opts.KeyMaxLen, geo.KeyMaxLen))
	}
	if opts.ObjectDataLen != 0 && opts.ObjectDataLen != geo.ObjectDataLen {
		return fail(fmt.Errorf("%w: object_datalen %d requested, %d on disk", dhterr.ErrIncompatibleOptions, opts.ObjectDataLen, geo.ObjectDataLen))
	}

	region := store.New(data, geo)
	// Insert checks the load-factor bound before placing an entry, so a
	// saved table may hold one slot more than MaxSlotsUsed.
	if region.SlotsUsed() > layout.MaxSlotsUsed(region.Capacity())+1 {
		return fail(dhterr.ErrCorrupt)
	}

	return &Table{path: path, file: f, data: data, region: region, writable: writable}, nil
}

// Lookup returns the payload stored for key. The returned slice is a live
// view into the mapping; it stays valid until the next Insert that
// triggers growth, the next Reserve, or Free. A key longer than the
// table's KeyMaxLen can never have been stored and is reported as not
// found rather than an error.
func (t *Table) Lookup(key []byte) ([]byte, bool, error) {
	if t.freed {
		return nil, false, dhterr.ErrAlreadyFreed
	}
	if uint64(len(key)) >= t.region.KeyMaxLen() {
		return nil, false, nil
	}
	res := probe.Lookup(t.region, xhash.Hash(key), key)
	if !res.Found {
		return nil, false, nil
	}
	return t.region.Payload(res.Slot), true, nil
}

// Insert adds key/payload if key is not already present. It returns true
// if the value was inserted, false (with no mutation) if the key already
// exists. Growing the table (via an implicit Reserve) invalidates slices
// previously returned by Lookup.
func (t *Table) Insert(key, payload []byte) (bool, error) {
	if t.freed {
		return false, dhterr.ErrAlreadyFreed
	}
	if !t.writable {
		return false, dhterr.ErrReadOnly
	}
	if uint64(len(key)) >= t.region.KeyMaxLen() {
		return false, fmt.Errorf("dht: insert: %w", dhterr.ErrKeyTooLong)
	}
	if uint64(len(payload)) != t.region.ObjectDataLen() {
		return false, fmt.Errorf("dht: insert: %w", dhterr.ErrInvalidPayloadSize)
	}

	// The load-factor bound is checked against the table's state as it
	// stands before this insert, not against what it would become after
	// one more entry: growth happens a step behind the 3/4 threshold,
	// the same cadence spec.md's worked boundary scenario walks through
	// (capacity 8 tolerates slots_used reaching 7 for exactly one
	// insert; the next call's precheck grows before doing anything
	// else).
	if t.region.SlotsUsed() > layout.MaxSlotsUsed(t.region.Capacity()) {
		if _, err := t.Reserve(2 * t.region.Capacity()); err != nil {
			return false, fmt.Errorf("dht: insert: %w", err)
		}
	}

	hash := xhash.Hash(key)
	cursor := t.region.Cursor()
	res := probe.Insert(t.region, hash, key, cursor)

	switch {
	case res.Overflow:
		return false, fmt.Errorf("dht: insert: %w", dhterr.ErrProbeOverflow)
	case res.AlreadyPresent:
		return false, nil
	}

	t.region.WriteSlot(cursor, key, payload)
	t.region.SetCursor(cursor + 1)
	t.region.SetSize(t.region.Size() + 1)
	if !res.ReusedTombstone {
		t.region.SetSlotsUsed(t.region.SlotsUsed() + 1)
	}
	return true, nil
}

// Update overwrites the payload for an existing key. It returns false (no
// error) if the key is not present.
func (t *Table) Update(key, payload []byte) (bool, error) {
	if t.freed {
		return false, dhterr.ErrAlreadyFreed
	}
	if !t.writable {
		return false, dhterr.ErrReadOnly
	}
	if uint64(len(payload)) != t.region.ObjectDataLen() {
		return false, fmt.Errorf("dht: update: %w", dhterr.ErrInvalidPayloadSize)
	}

	res := probe.Lookup(t.region, xhash.Hash(key), key)
	if !res.Found {
		return false, nil
	}
	t.region.WritePayload(res.Slot, payload)
	return true, nil
}

// Delete removes key. It returns false (no error) if the key is not
// present. slots_used is unchanged (the bucket becomes a tombstone); size
// decreases by one.
func (t *Table) Delete(key []byte) (bool, error) {
	if t.freed {
		return false, dhterr.ErrAlreadyFreed
	}
	if !t.writable {
		return false, dhterr.ErrReadOnly
	}

	res := probe.Delete(t.region, xhash.Hash(key), key)
	if !res.Deleted {
		return false, nil
	}
	t.region.SetSize(t.region.Size() - 1)
	return true, nil
}

// Reserve requests at least n slots of capacity, rounded up to the next
// power of two (never below the minimum initial capacity). If n is at or
// below the current capacity this is a no-op that returns the current
// capacity unchanged - in particular Reserve(1) is a pure capacity query.
// Otherwise it triggers a rehash (see internal/rehash), which invalidates
// every slice previously returned by Lookup.
func (t *Table) Reserve(n uint64) (uint64, error) {
	if t.freed {
		return 0, dhterr.ErrAlreadyFreed
	}

	target := layout.NextPowerOfTwo(maxU64(n, layout.MinCapacity))
	current := t.region.Capacity()
	if target <= current {
		return current, nil
	}
	if t.loaded {
		return 0, fmt.Errorf("dht: reserve: table is memory-resident and cannot grow")
	}
	if !t.writable {
		return 0, fmt.Errorf("dht: reserve: %w", dhterr.ErrReadOnly)
	}

	result, err := rehash.Grow(t.path, t.file, t.data, t.region, target)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", dhterr.ErrOutOfMemory, err)
	}

	t.file = result.File
	t.data = result.Data
	t.region = result.Region
	return t.region.Capacity(), nil
}

// Size returns the number of live entries.
func (t *Table) Size() uint64 { return t.region.Size() }

// Capacity returns the number of primary buckets currently allocated.
func (t *Table) Capacity() uint64 { return t.region.Capacity() }

// SlotsUsed returns the number of non-empty primary buckets, including
// tombstones.
func (t *Table) SlotsUsed() uint64 { return t.region.SlotsUsed() }

// DirtySlots returns SlotsUsed() - Size(): soft-deleted slots that have
// not been reclaimed by a subsequent insert or rehash.
func (t *Table) DirtySlots() uint64 { return t.region.DirtySlots() }

// IndexedLookup returns the key and payload stored at store-table index
// idx, for 0 <= idx < cursor (cursor only ever increases; it is not
// exposed directly, but is always >= Size()). payload must be at least
// ObjectDataLen() bytes long; IndexedLookup copies into it rather than
// returning a live view, since a dead slot's bytes are unspecified
// garbage.
//
// Returns ("", false, ErrInvalidIndex) for an out-of-range index, and
// ("", false, nil) for an index whose slot is not currently referenced by
// any primary bucket (the no-data case from spec.md §4.4). Liveness is
// decided purely by scanning the primary bucket table for a reference to
// idx (invariant 4, via probe.FindLiveSlot) - never by inspecting the
// stored key bytes, since a key whose content happens to start with a
// NUL byte (the empty key, or a fixed-width BigEndian-encoded small
// integer such as the ones example/main.go and bench/small_keys_test.go
// use) would otherwise be misread as dead.
func (t *Table) IndexedLookup(idx uint64, payload []byte) (string, bool, error) {
	if t.freed {
		return "", false, dhterr.ErrAlreadyFreed
	}
	if idx >= t.region.Cursor() {
		return "", false, fmt.Errorf("dht: indexed lookup %d: %w", idx, dhterr.ErrInvalidIndex)
	}
	if uint64(len(payload)) < t.region.ObjectDataLen() {
		return "", false, fmt.Errorf("dht: indexed lookup: payload buffer too small")
	}

	res := probe.FindLiveSlot(t.region, idx)
	if !res.Found {
		return "", false, nil
	}

	keyStr := t.region.KeyString(idx)
	copy(payload, t.region.Payload(idx))
	return keyStr, true, nil
}

// LoadToMemory copies the mapped bytes into a private, process-local
// allocation and releases the file descriptor, for read-only tables that
// want to drop their fd (e.g. to stay under an open-files limit) without
// losing access to the data. It is impossible on a read-write table or a
// handle that is already memory-resident. A failure during the underlying
// munmap marks the handle permanently freed; callers must discard it in
// that case (spec.md §4.4's "catastrophic failure" case).
func (t *Table) LoadToMemory() error {
	if t.freed {
		return dhterr.ErrAlreadyFreed
	}
	if t.writable || t.loaded {
		return dhterr.ErrAlreadyLoaded
	}

	cp := make([]byte, len(t.data))
	copy(cp, t.data)

	if err := osfile.Munmap(t.data); err != nil {
		t.freed = true
		return fmt.Errorf("dht: load to memory: %w", err)
	}
	if err := osfile.Close(t.file); err != nil {
		t.freed = true
		return fmt.Errorf("dht: load to memory: %w", err)
	}

	t.data = cp
	t.region = store.New(cp, t.region.Geometry())
	t.file = nil
	t.loaded = true
	return nil
}

// Free flushes the mapping to disk (unless the handle is memory-resident,
// in which case there is nothing backing it) and releases the handle. It
// is safe to call on a handle obtained from Open regardless of whether any
// read/write operation has taken place; it is a no-op on an already-freed
// handle.
func (t *Table) Free() error {
	if t.freed {
		return nil
	}
	t.freed = true

	if t.loaded {
		t.data = nil
		t.region = nil
		return nil
	}

	if err := osfile.Msync(t.data); err != nil {
		return err
	}
	if err := osfile.Munmap(t.data); err != nil {
		return err
	}
	if err := osfile.Close(t.file); err != nil {
		return err
	}
	t.data = nil
	t.region = nil
	return nil
}

// Dump writes a human-readable summary to w: one line of header counters,
// then one line per non-empty primary bucket (a tombstone, or the store
// slot a live bucket references with that slot's raw key field in hex).
// Payloads and store slots that no bucket references are not printed. It
// is a debugging aid (replacing the show_ht/show_st/show_ds dumpers from
// diskhash.h) and is not part of the stable contract.
func (t *Table) Dump(w io.Writer) error {
	if t.freed {
		return dhterr.ErrAlreadyFreed
	}
	r := t.region
	if _, err := fmt.Fprintf(w, "capacity=%d size=%d slots_used=%d dirty=%d cursor=%d\n",
		r.Capacity(), r.Size(), r.SlotsUsed(), r.DirtySlots(), r.Cursor()); err != nil {
		return err
	}
	for i := uint64(0); i < r.Capacity(); i++ {
		ref := r.Bucket(i)
		switch ref {
		case store.EmptyRef:
			continue
		case store.TombstoneRef:
			if _, err := fmt.Fprintf(w, "  bucket[%d] = tombstone\n", i); err != nil {
				return err
			}
		default:
			// Printed as hex, not KeyString's truncated-at-NUL string: a
			// live key whose bytes begin with 0x00 (the empty key, or a
			// small BigEndian-encoded integer) would otherwise render as
			// an indistinguishable "", even though the bucket reference
			// above already proves the slot is live.
			slot := ref - 1
			if _, err := fmt.Fprintf(w, "  bucket[%d] -> slot %d key=%x\n", i, slot, r.KeyField(slot)); err != nil {
				return err
			}
		}
	}
	return nil
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

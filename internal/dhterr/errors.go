// Package dhterr classifies the error taxonomy from spec.md §7: Validation,
// Capacity, Corruption, Unreachable and OS-failure, as sentinel errors
// callers can test with errors.Is. The style follows
// calvinalkan-agent-task/pkg/slotcache/errors.go: plain errors.New values,
// classified by errors.Is, wrapped with fmt.Errorf("...: %w", ...) for
// context.
package dhterr

import "errors"

var (
	// ErrKeyTooLong is a Validation error: strlen(key) >= key_maxlen.
	ErrKeyTooLong = errors.New("dht: key too long")
	// ErrInvalidIndex is a Validation error: IndexedLookup index out of
	// [0, cursor).
	ErrInvalidIndex = errors.New("dht: index out of range")
	// ErrReadOnly is a Validation error: mutation attempted on a table
	// opened without ReadWrite.
	ErrReadOnly = errors.New("dht: table is read-only")
	// ErrInvalidPayloadSize is a Validation error: a payload's length
	// does not equal object_datalen.
	ErrInvalidPayloadSize = errors.New("dht: payload size mismatch")

	// ErrOutOfMemory is a Capacity error: rehash failed to allocate the
	// grown region; the table is left unchanged.
	ErrOutOfMemory = errors.New("dht: out of memory")

	// ErrCorrupt is a Corruption error: header fields fail
	// self-consistency checks.
	ErrCorrupt = errors.New("dht: corrupt file")
	// ErrBadMagic is a Corruption error: the magic tag does not match.
	ErrBadMagic = errors.New("dht: bad magic")
	// ErrBadVersion is a Corruption error: the format version is not
	// supported by this build.
	ErrBadVersion = errors.New("dht: unsupported version")
	// ErrIncompatibleOptions is a Corruption-adjacent error: a caller
	// supplied a non-zero option that does not match what's on disk.
	ErrIncompatibleOptions = errors.New("dht: incompatible options")
	// ErrShortFile is a Corruption error: the file is too small to hold
	// the fixed-size header.
	ErrShortFile = errors.New("dht: file too short for header")

	// ErrProbeOverflow is the Unreachable error: a probe walked the
	// entire bucket table without finding an empty slot, despite the
	// load-factor invariant. Implementers must treat this as a
	// programming-error assertion; see spec.md §9's Open Question.
	ErrProbeOverflow = errors.New("dht: probe overflow (invariant violated)")

	// ErrAlreadyFreed is a usage error: an operation was attempted on a
	// handle that was already freed or that failed catastrophically
	// during LoadToMemory.
	ErrAlreadyFreed = errors.New("dht: handle already freed")
	// ErrAlreadyLoaded is returned by LoadToMemory on a handle that is
	// already memory-resident, or read-write (spec.md §4.4).
	ErrAlreadyLoaded = errors.New("dht: load-to-memory impossible on this handle")
)

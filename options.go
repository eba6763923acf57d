package dht

import "github.com/theflywheel/dht/internal/osfile"

// OpenFlag mirrors the standard operating-system open flags passed
// through by dht_open in spec.md §6, mapped onto their os.O_* values.
type OpenFlag int

const (
	ReadOnly  OpenFlag = OpenFlag(osfile.ReadOnly)
	ReadWrite OpenFlag = OpenFlag(osfile.ReadWrite)
	Create    OpenFlag = OpenFlag(osfile.Create)
	Exclusive OpenFlag = OpenFlag(osfile.Exclusive)
)

// Options carries the two compatibility-checked fields from spec.md's
// HashTableOpts. A zero value means "accept whatever is on disk"; when
// opening an existing file, a non-zero value is checked against the header
// and mismatches return ErrIncompatibleOptions. When creating a new file,
// KeyMaxLen must be non-zero (there is no disk value to default to);
// ObjectDataLen may legitimately be zero (a table of keys with no payload).
type Options struct {
	// KeyMaxLen is the maximum key length in bytes, excluding the NUL
	// terminator: Insert requires len(key) < KeyMaxLen.
	KeyMaxLen uint64
	// ObjectDataLen is the fixed payload size in bytes.
	ObjectDataLen uint64
}

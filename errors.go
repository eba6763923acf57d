package dht

import "github.com/theflywheel/dht/internal/dhterr"

// Error values callers can test with errors.Is. See internal/dhterr for the
// taxonomy each one belongs to (spec.md §7): Validation, Capacity,
// Corruption, Unreachable, OS failure.
var (
	ErrKeyTooLong          = dhterr.ErrKeyTooLong
	ErrInvalidIndex        = dhterr.ErrInvalidIndex
	ErrReadOnly            = dhterr.ErrReadOnly
	ErrInvalidPayloadSize  = dhterr.ErrInvalidPayloadSize
	ErrOutOfMemory         = dhterr.ErrOutOfMemory
	ErrCorrupt             = dhterr.ErrCorrupt
	ErrBadMagic            = dhterr.ErrBadMagic
	ErrBadVersion          = dhterr.ErrBadVersion
	ErrIncompatibleOptions = dhterr.ErrIncompatibleOptions
	ErrShortFile           = dhterr.ErrShortFile
	ErrProbeOverflow       = dhterr.ErrProbeOverflow
	ErrAlreadyFreed        = dhterr.ErrAlreadyFreed
	ErrAlreadyLoaded       = dhterr.ErrAlreadyLoaded
)

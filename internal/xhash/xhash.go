// Package xhash provides the deterministic, seed-less 64-bit key hash used
// to pick a bucket's initial probe position.
//
// The same function must be used across every version of the file format:
// changing it silently breaks every file written with the old one. We use
// xxhash64 (the same algorithm rpcpool/yellowstone-faithful leans on for its
// on-disk indexes) rather than the teacher's FNV-1a, for better avalanche
// behavior under sequential numeric keys - the teacher's own comments note
// FNV is a contested choice.
package xhash

import (
	"bytes"

	"github.com/cespare/xxhash/v2"
)

// Hash returns a 64-bit hash over key's NUL-terminated byte representation.
// Trailing zero bytes of key are dropped first: in the store table's
// NUL-padded key field they cannot be told apart from padding, so the
// rehasher can only recover a stored key up to them. Hash depends on every
// other byte of key and, being defined over bytes, is stable across
// process runs and platforms.
func Hash(key []byte) uint64 {
	d := xxhash.New()
	d.Write(bytes.TrimRight(key, "\x00"))
	d.Write(nulTerminator[:])
	return d.Sum64()
}

var nulTerminator = [1]byte{0}

// BucketIndex reduces a hash to a bucket index for a power-of-two capacity.
func BucketIndex(hash, capacity uint64) uint64 {
	return hash & (capacity - 1)
}

// Package osfile wraps the OS-level primitives the engine needs: open,
// close, ftruncate, mmap, munmap, msync and pread. It is a pure syscall
// leaf with no knowledge of the dht file format.
package osfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Flag mirrors the subset of standard open flags the engine passes through.
type Flag int

const (
	ReadOnly  Flag = os.O_RDONLY
	ReadWrite Flag = os.O_RDWR
	Create    Flag = os.O_CREATE
	Exclusive Flag = os.O_EXCL
)

// Writable reports whether flags request a writable open.
func (f Flag) Writable() bool {
	return f&ReadWrite != 0
}

// Open opens path with the given flags and permission bits, as os.OpenFile.
func Open(path string, flags Flag, perm os.FileMode) (*os.File, error) {
	f, err := os.OpenFile(path, int(flags), perm)
	if err != nil {
		return nil, fmt.Errorf("osfile: open %s: %w", path, err)
	}
	return f, nil
}

// Size returns the current on-disk length of f.
func Size(f *os.File) (int64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("osfile: stat: %w", err)
	}
	return fi.Size(), nil
}

// Truncate sets f's length to exactly n bytes, so a later mmap of the full
// region never runs past the end of the file. Growing a file this way does
// not allocate disk blocks; the new bytes read as zero.
func Truncate(f *os.File, n int64) error {
	if err := f.Truncate(n); err != nil {
		return fmt.Errorf("osfile: truncate: %w", err)
	}
	return nil
}

// Mmap maps the first n bytes of f's backing store, shared and read-write.
// f must be open read-write: a shared writable mapping of a read-only
// descriptor is refused by the kernel. Writes through the returned slice
// reach the file.
func Mmap(f *os.File, n int) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, n, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("osfile: mmap: %w", err)
	}
	return data, nil
}

// MmapReadOnly maps the first n bytes of f's backing store, shared,
// read-only. Writes through the returned slice will fault.
func MmapReadOnly(f *os.File, n int) ([]byte, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, n, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("osfile: mmap read-only: %w", err)
	}
	return data, nil
}

// Munmap unmaps a region previously returned by Mmap/MmapReadOnly.
func Munmap(data []byte) error {
	if data == nil {
		return nil
	}
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("osfile: munmap: %w", err)
	}
	return nil
}

// Msync flushes dirty pages in data to their backing file.
func Msync(data []byte) error {
	if data == nil {
		return nil
	}
	if err := unix.Msync(data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("osfile: msync: %w", err)
	}
	return nil
}

// Pread reads len(buf) bytes from f at offset, as a pure syscall wrapper
// for callers that want to inspect a file without mapping it (used by the
// rehasher to size-check a sibling temp file before mmap'ing it).
func Pread(f *os.File, buf []byte, offset int64) (int, error) {
	n, err := f.ReadAt(buf, offset)
	if err != nil {
		return n, fmt.Errorf("osfile: pread: %w", err)
	}
	return n, nil
}

// Close closes f.
func Close(f *os.File) error {
	if f == nil {
		return nil
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("osfile: close: %w", err)
	}
	return nil
}

/*
Package dht provides a persistent hash table implementation using memory-mapped files.

Table is a high-performance key-value store that persists data to disk
while keeping fast in-memory access: the data file is memory-mapped, so
reads require no deserialization and [Table.Lookup] hands back a pointer
straight into the mapping.

Basic usage:

	import "github.com/theflywheel/dht"

	// Open or create a table with 15-byte keys and 8-byte payloads.
	t, err := dht.Open("data.dht", dht.Options{KeyMaxLen: 15, ObjectDataLen: 8}, dht.ReadWrite|dht.Create)
	if err != nil {
		log.Fatal(err)
	}
	defer t.Free()

	// Insert data
	key := []byte("alice")
	value := make([]byte, 8)
	binary.LittleEndian.PutUint64(value, 67890)
	inserted, err := t.Insert(key, value)

	// Retrieve data
	result, ok, err := t.Lookup(key)
	if ok {
		val := binary.LittleEndian.Uint64(result)
		fmt.Println("Value:", val)
	}

Features:

  - Keys of bounded length and values of fixed size
  - Memory-mapped file storage for persistence and fast access
  - Multiple concurrent readers, one writer at a time (externally synchronized)
  - Automatic resizing when load factor exceeds 3/4, via tombstone-aware
    open addressing with linear probing
  - Insertion-order iteration via IndexedLookup, backed by a separate
    store table referenced from the primary buckets
  - Uses xxhash64 for good distribution across sequential and random keys

Implementation Details:

The file structure consists of a fixed-size header, a primary bucket table
(one 64-bit store-table reference per bucket) and a store table (one
NUL-terminated key plus fixed-size payload per live entry, in insertion
order). Deletes leave a tombstone in the primary bucket table so later
lookups keep probing past the gap; the store table slot is reclaimed only
by a subsequent rehash, never compacted in place.

When the load factor exceeds 3/4, the table is grown by rehashing into a
freshly allocated, double-capacity sibling temporary file that is then
atomically renamed over the original; see internal/rehash.
*/
package dht

package main

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"

	"github.com/theflywheel/dht"
)

func main() {
	// Clean up previous example
	os.Remove("example.dht")

	// Open or create a table with 8-byte keys and 8-byte payloads.
	table, err := dht.Open("example.dht", dht.Options{KeyMaxLen: 9, ObjectDataLen: 8}, dht.ReadWrite|dht.Create)
	if err != nil {
		log.Fatalf("Failed to open table: %v", err)
	}
	defer table.Free()

	fmt.Println("Table opened successfully")

	// Insert some data
	for i := 0; i < 10; i++ {
		key := make([]byte, 8)
		value := make([]byte, 8)

		binary.BigEndian.PutUint64(key, uint64(i))
		binary.BigEndian.PutUint64(value, uint64(i*100))

		if _, err := table.Insert(key, value); err != nil {
			log.Fatalf("Failed to insert key %d: %v", i, err)
		}
	}

	fmt.Println("Inserted 10 key-value pairs")

	// Retrieve and display some values
	for i := 0; i < 15; i += 2 {
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, uint64(i))

		value, found, err := table.Lookup(key)
		if err != nil {
			log.Fatalf("Lookup failed for key %d: %v", i, err)
		}
		if found {
			val := binary.BigEndian.Uint64(value)
			fmt.Printf("Key %d => Value %d\n", i, val)
		} else {
			fmt.Printf("Key %d not found\n", i)
		}
	}

	// Update a value
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(2))

	newValue := make([]byte, 8)
	binary.BigEndian.PutUint64(newValue, uint64(999))

	if _, err := table.Update(key, newValue); err != nil {
		log.Fatalf("Failed to update key: %v", err)
	}

	// Verify the update
	value, found, err := table.Lookup(key)
	if err != nil {
		log.Fatalf("Lookup failed after update: %v", err)
	}
	if found {
		val := binary.BigEndian.Uint64(value)
		fmt.Printf("Updated key 2 => Value %d\n", val)
	}

	fmt.Printf("Table stats: size=%d capacity=%d dirty_slots=%d\n",
		table.Size(), table.Capacity(), table.DirtySlots())

	fmt.Println("Example completed successfully")
}

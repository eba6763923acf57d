// Package dht_test provides scale testing for the persistent hash table.
//
// This file contains small-scale benchmarks that test the performance with
// ten thousand entries, providing insights into baseline performance.
// It measures:
//   - Insertion performance (overall and per batch)
//   - Random lookup performance
//   - Sequential lookup performance
//   - Storage efficiency (bytes per key-value pair)
package dht_test

import (
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/theflywheel/dht"
)

// BenchmarkTenThousandKeys evaluates the performance of the hash table
// with ten thousand numeric keys.
//
// Metrics collected:
// - Insertion rate: Keys inserted per second with progress reporting
// - Random lookup rate: Performance of random access patterns
// - Sequential lookup rate: Performance of sequential key verification
// - Storage efficiency: Average bytes used per key-value pair
// - Total file size: Size of the resulting table file
//
// This benchmark is useful for baseline performance evaluation.
func BenchmarkTenThousandKeys(b *testing.B) {
	fmt.Printf("BenchmarkTenThousandKeys started execution, b.N = %d\n", b.N)

	// Force benchmark to run only once regardless of -benchtime flag.
	b.N = 1

	b.ResetTimer()
	b.StopTimer()

	tempFile := "ten_thousand_keys.dht"
	defer os.Remove(tempFile)

	keyMaxLen := uint64(9)
	objectDataLen := uint64(8)
	numKeys := 10_000
	progressInterval := 1_000

	b.Log("Opening table file...")
	table, err := dht.Open(tempFile, dht.Options{KeyMaxLen: keyMaxLen, ObjectDataLen: objectDataLen}, dht.ReadWrite|dht.Create)
	if err != nil {
		b.Fatalf("Failed to open table: %v", err)
	}
	defer table.Free()

	metrics := BenchmarkMetrics{
		Name:       "TenThousandKeys",
		Category:   "scale",
		Operations: numKeys,
		Metrics:    make(map[string]float64),
	}

	runtime.GC()

	b.Logf("Starting insertion of %d keys...", numKeys)
	b.StartTimer()
	writeStart := time.Now()

	key := make([]byte, 8)
	value := make([]byte, objectDataLen)

	for i := 0; i < numKeys; i++ {
		binary.BigEndian.PutUint64(key, uint64(i))
		binary.BigEndian.PutUint64(value, uint64(i))

		if _, err := table.Insert(key, value); err != nil {
			b.Fatalf("Failed to insert key %d: %v", i, err)
		}

		if (i+1)%progressInterval == 0 {
			b.StopTimer()
			elapsed := time.Since(writeStart)
			rate := float64(i+1) / elapsed.Seconds()
			b.Logf("Inserted %d keys... (%.2f keys/sec)", i+1, rate)
			b.StartTimer()
		}
	}

	b.StopTimer()
	writeTime := time.Since(writeStart)
	insertionRate := float64(numKeys) / writeTime.Seconds()
	b.Logf("Time to insert %d keys: %v (%.2f keys/sec)", numKeys, writeTime, insertionRate)

	metrics.Metrics["insertion_rate"] = insertionRate

	randomSampleSize := 1_000
	b.Logf("Verifying random sample of %d keys...", randomSampleSize)

	b.StartTimer()
	randomReadStart := time.Now()

	for i := 0; i < randomSampleSize; i++ {
		keyID := (i*31 + 17) % numKeys
		binary.BigEndian.PutUint64(key, uint64(keyID))

		val, found, err := table.Lookup(key)
		if err != nil {
			b.Fatalf("Lookup error for key %d: %v", keyID, err)
		}
		if !found {
			b.Fatalf("Random key %d not found", keyID)
		}

		actualValue := binary.BigEndian.Uint64(val)
		if actualValue != uint64(keyID) {
			b.Fatalf("Value mismatch for random key %d: expected %d, got %d", keyID, keyID, actualValue)
		}

		if (i+1)%200 == 0 {
			b.StopTimer()
			b.Logf("Retrieved %d random keys...", i+1)
			b.StartTimer()
		}
	}

	b.StopTimer()
	randomReadTime := time.Since(randomReadStart)
	randomLookupRate := float64(randomSampleSize) / randomReadTime.Seconds()
	b.Logf("Time to perform %d random lookups: %v (%.2f lookups/sec)", randomSampleSize, randomReadTime, randomLookupRate)

	metrics.Metrics["random_lookup_rate"] = randomLookupRate

	b.Logf("Verifying all %d keys sequentially...", numKeys)

	b.StartTimer()
	seqReadStart := time.Now()

	for i := 0; i < numKeys; i++ {
		binary.BigEndian.PutUint64(key, uint64(i))
		val, found, err := table.Lookup(key)
		if err != nil {
			b.Fatalf("Lookup error for key %d: %v", i, err)
		}
		if !found {
			b.Fatalf("Key %d not found", i)
		}

		actualValue := binary.BigEndian.Uint64(val)
		if actualValue != uint64(i) {
			b.Fatalf("Value mismatch for key %d: expected %d, got %d", i, i, actualValue)
		}

		if (i+1)%1000 == 0 {
			b.StopTimer()
			b.Logf("Verified %d sequential keys...", i+1)
			b.StartTimer()
		}
	}

	b.StopTimer()
	seqReadTime := time.Since(seqReadStart)
	seqLookupRate := float64(numKeys) / seqReadTime.Seconds()
	b.Logf("Time to verify all %d keys sequentially: %v (%.2f lookups/sec)", numKeys, seqReadTime, seqLookupRate)

	metrics.Metrics["sequential_lookup_rate"] = seqLookupRate

	fileInfo, err := os.Stat(tempFile)
	if err != nil {
		b.Fatalf("Failed to get file stats: %v", err)
	}

	fileSizeMB := float64(fileInfo.Size()) / (1024 * 1024)
	bytesPerKey := float64(fileInfo.Size()) / float64(numKeys)

	b.Logf("File size for %d keys: %.2f MB", numKeys, fileSizeMB)
	b.Logf("Average bytes per key-value pair: %.2f bytes", bytesPerKey)

	metrics.Metrics["file_size_mb"] = fileSizeMB
	metrics.Metrics["bytes_per_key"] = bytesPerKey
	metrics.Metrics["capacity"] = float64(table.Capacity())
	metrics.NsPerOp = float64(writeTime.Nanoseconds() + randomReadTime.Nanoseconds() + seqReadTime.Nanoseconds())
	metrics.BytesPerOp = int(fileInfo.Size())
	metrics.AllocsPerOp = 20_000 // Approximation based on previous runs.

	if err := saveBenchmarkResult(metrics, "latest.json"); err != nil {
		b.Logf("Failed to save benchmark result to latest.json: %v", err)
	}

	b.Logf("Ten thousand keys benchmark completed successfully")
}

// dhtcli is a small command-line driver for dht files.
//
// Usage:
//
//	dhtcli create --key-maxlen=16 --object-datalen=8 <path>
//	dhtcli put <path> <key> <hex-payload>
//	dhtcli get <path> <key>
//	dhtcli del <path> <key>
//	dhtcli info <path>
//	dhtcli dump <path>
//	dhtcli bench <path> <count>
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/theflywheel/dht"
)

var errMissingArgs = errors.New("missing arguments")

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "dhtcli: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		printUsage()
		return errMissingArgs
	}

	switch args[0] {
	case "create":
		return cmdCreate(args[1:])
	case "put":
		return cmdPut(args[1:])
	case "get":
		return cmdGet(args[1:])
	case "del", "delete":
		return cmdDelete(args[1:])
	case "info":
		return cmdInfo(args[1:])
	case "dump":
		return cmdDump(args[1:])
	case "bench":
		return cmdBench(args[1:])
	default:
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: dhtcli <create|put|get|del|info|dump|bench> [options] <path> ...")
}

func cmdCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	keyMaxLen := fs.Uint64("key-maxlen", 16, "maximum key length, not including the NUL terminator")
	objectDataLen := fs.Uint64("object-datalen", 8, "fixed payload size in bytes")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("%w: create <path>", errMissingArgs)
	}

	path := fs.Arg(0)
	table, err := dht.Open(path, dht.Options{KeyMaxLen: *keyMaxLen, ObjectDataLen: *objectDataLen}, dht.ReadWrite|dht.Create|dht.Exclusive)
	if err != nil {
		return fmt.Errorf("create: %w", err)
	}
	defer table.Free()

	fmt.Printf("created %s: key_maxlen=%d object_datalen=%d capacity=%d\n", path, *keyMaxLen, *objectDataLen, table.Capacity())
	return nil
}

func cmdPut(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("%w: put <path> <key> <hex-payload>", errMissingArgs)
	}

	table, err := openExisting(args[0])
	if err != nil {
		return err
	}
	defer table.Free()

	payload, err := hex.DecodeString(args[2])
	if err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}

	inserted, err := table.Insert([]byte(args[1]), payload)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if inserted {
		fmt.Printf("inserted %q\n", args[1])
		return nil
	}

	updated, err := table.Update([]byte(args[1]), payload)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	if updated {
		fmt.Printf("updated %q\n", args[1])
	}
	return nil
}

func cmdGet(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: get <path> <key>", errMissingArgs)
	}

	table, err := openExisting(args[0])
	if err != nil {
		return err
	}
	defer table.Free()

	value, found, err := table.Lookup([]byte(args[1]))
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	if !found {
		fmt.Println("(not found)")
		return nil
	}

	fmt.Println(hex.EncodeToString(value))
	return nil
}

func cmdDelete(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("%w: del <path> <key>", errMissingArgs)
	}

	table, err := openExisting(args[0])
	if err != nil {
		return err
	}
	defer table.Free()

	deleted, err := table.Delete([]byte(args[1]))
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if deleted {
		fmt.Printf("deleted %q\n", args[1])
	} else {
		fmt.Printf("%q did not exist\n", args[1])
	}
	return nil
}

func cmdInfo(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: info <path>", errMissingArgs)
	}

	table, err := openExisting(args[0])
	if err != nil {
		return err
	}
	defer table.Free()

	fmt.Printf("size:         %d\n", table.Size())
	fmt.Printf("capacity:     %d\n", table.Capacity())
	fmt.Printf("slots_used:   %d\n", table.SlotsUsed())
	fmt.Printf("dirty_slots:  %d\n", table.DirtySlots())
	return nil
}

func cmdDump(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("%w: dump <path>", errMissingArgs)
	}

	table, err := openExisting(args[0])
	if err != nil {
		return err
	}
	defer table.Free()

	return table.Dump(os.Stdout)
}

func cmdBench(args []string) error {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)
	objectDataLen := fs.Uint64("object-datalen", 8, "payload size in bytes")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return fmt.Errorf("%w: bench <path> <count>", errMissingArgs)
	}

	path := fs.Arg(0)
	var count int
	if _, err := fmt.Sscanf(fs.Arg(1), "%d", &count); err != nil || count < 1 {
		return fmt.Errorf("invalid count %q", fs.Arg(1))
	}

	os.Remove(path)
	table, err := dht.Open(path, dht.Options{KeyMaxLen: 20, ObjectDataLen: *objectDataLen}, dht.ReadWrite|dht.Create)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer table.Free()

	payload := make([]byte, *objectDataLen)
	for i := 0; i < count; i++ {
		key := fmt.Sprintf("key-%015d", i)
		if _, err := table.Insert([]byte(key), payload); err != nil {
			return fmt.Errorf("insert %d: %w", i, err)
		}
	}

	fmt.Printf("inserted %d entries: size=%d capacity=%d\n", count, table.Size(), table.Capacity())
	return nil
}

func openExisting(path string) (*dht.Table, error) {
	table, err := dht.Open(path, dht.Options{}, dht.ReadWrite)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return table, nil
}

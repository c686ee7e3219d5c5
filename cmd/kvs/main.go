// Command kvs is the embedded-engine CLI. It opens the store at the
// configured log path and runs one subcommand against it:
//
//	kvs set <key> <value>
//	kvs get <key>
//	kvs rm <key>
//
// rm of an absent key prints the error and exits 1; get of an absent
// key prints "Key not found" and exits 0.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jassi-singh/kvs/internal/config"
	"github.com/jassi-singh/kvs/internal/engine"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Keep the CLI quiet; structured logs only for real problems.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	if len(args) < 1 {
		printUsage()
		return 1
	}

	store, err := engine.OpenWithThreshold(cfg.LOG_PATH, cfg.COMPACT_THRESHOLD)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("main: error closing store", "error", err)
		}
	}()

	switch args[0] {
	case "set":
		if len(args) != 3 {
			fmt.Fprintln(os.Stderr, "Usage: kvs set <key> <value>")
			return 1
		}
		if err := store.Set(args[1], args[2]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0

	case "get":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: kvs get <key>")
			return 1
		}
		value, ok, err := store.Get(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if !ok {
			fmt.Println(engine.ErrKeyNotFound.Error())
			return 0
		}
		fmt.Println(value)
		return 0

	case "rm":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: kvs rm <key>")
			return 1
		}
		if err := store.Remove(args[1]); err != nil {
			if errors.Is(err, engine.ErrKeyNotFound) {
				fmt.Println(engine.ErrKeyNotFound.Error())
			} else {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
			return 1
		}
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		printUsage()
		return 1
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: kvs <command>")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	fmt.Fprintln(os.Stderr, "  set <key> <value>   Store a value under key")
	fmt.Fprintln(os.Stderr, "  get <key>           Print the value stored under key")
	fmt.Fprintln(os.Stderr, "  rm <key>            Remove key")
}

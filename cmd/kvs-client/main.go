// Command kvs-client runs one command against a kvs-server.
//
//	kvs-client <set|get|rm> [--addr <ip:port>] <key> [value]
//
// Flags come before the positional arguments. The response payload is
// printed to standard output; an Error response to rm exits 1.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jassi-singh/kvs/internal/client"
	"github.com/jassi-singh/kvs/internal/config"
	"github.com/jassi-singh/kvs/internal/wire"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
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
	subcommand := args[0]

	fs := flag.NewFlagSet("kvs-client "+subcommand, flag.ExitOnError)
	addr := fs.String("addr", cfg.ADDR, "server address")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}
	rest := fs.Args()

	cmd, ok := buildCommand(subcommand, rest)
	if !ok {
		printUsage()
		return 1
	}

	c, err := client.Dial(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer c.Close()

	resp, err := c.Send(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	switch resp.Kind {
	case wire.RespGetOk:
		fmt.Println(resp.Value)
	case wire.RespSetOk, wire.RespRmOk:
	case wire.RespError:
		fmt.Println(resp.Msg)
		if cmd.Kind == wire.CmdRm {
			return 1
		}
	}
	return 0
}

// buildCommand maps a subcommand and its positional arguments onto a
// wire command.
func buildCommand(subcommand string, rest []string) (wire.Command, bool) {
	switch subcommand {
	case "set":
		if len(rest) != 2 {
			return wire.Command{}, false
		}
		return wire.Command{Kind: wire.CmdSet, Key: rest[0], Value: rest[1]}, true
	case "get":
		if len(rest) != 1 {
			return wire.Command{}, false
		}
		return wire.Command{Kind: wire.CmdGet, Key: rest[0]}, true
	case "rm":
		if len(rest) != 1 {
			return wire.Command{}, false
		}
		return wire.Command{Kind: wire.CmdRm, Key: rest[0]}, true
	}
	return wire.Command{}, false
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage: kvs-client <command> [--addr <ip:port>]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	fmt.Fprintln(os.Stderr, "  set [--addr <ip:port>] <key> <value>   Store a value under key")
	fmt.Fprintln(os.Stderr, "  get [--addr <ip:port>] <key>           Print the value stored under key")
	fmt.Fprintln(os.Stderr, "  rm [--addr <ip:port>] <key>            Remove key")
}

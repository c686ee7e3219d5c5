// Command kvs-server serves the key-value store over TCP.
//
//	kvs-server --addr <ip:port> --engine <kvs|sled>
//
// Both flags are optional; they default to the configured values and
// ultimately to 127.0.0.1:4000 and kvs.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/jassi-singh/kvs/internal/config"
	"github.com/jassi-singh/kvs/internal/engine"
	"github.com/jassi-singh/kvs/internal/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	addr := flag.String("addr", cfg.ADDR, "address to listen on")
	engineName := flag.String("engine", cfg.ENGINE, "engine backend (kvs|sled)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	})))

	slog.Info("main: starting kvs-server",
		"addr", *addr,
		"engine", *engineName,
		"log_path", cfg.LOG_PATH)

	store, err := engine.OpenWithThreshold(cfg.LOG_PATH, cfg.COMPACT_THRESHOLD)
	if err != nil {
		slog.Error("main: failed to open store", "error", err)
		log.Fatalf("Failed to open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("main: error closing store", "error", err)
		}
	}()

	srv, err := server.New(*addr, *engineName, store)
	if err != nil {
		slog.Error("main: failed to create server", "error", err)
		log.Fatalf("Failed to create server: %v", err)
	}

	if err := srv.ListenAndServe(); err != nil {
		slog.Error("main: server stopped", "error", err)
		log.Fatalf("Server error: %v", err)
	}
}

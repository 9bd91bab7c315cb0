// Package main is the entry point for the instalitre server.
//
// main only wires things together:
//  1. read configuration (environment, optional .env)
//  2. build the logger
//  3. open the configured store
//  4. start the HTTP server
//
// All actual logic lives in internal/.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/instalitre/internal/config"
	"github.com/sakif/instalitre/internal/logger"
	"github.com/sakif/instalitre/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No configured logger yet.
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	store, err := server.OpenStore(context.Background(), cfg, log)
	if err != nil {
		log.Error("failed to open store",
			slog.String("backend", cfg.Backend),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	srv, err := server.New(cfg, store, log)
	if err != nil {
		store.Close()
		log.Error("failed to create server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM and closes the store on the way out.
	if err := srv.Start(); err != nil {
		log.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

// tiercache-store runs the host-wide hot store: a fixed-capacity
// shared arena served over a Unix socket.
//
// Usage:
//
//	tiercache-store [--config path] [--socket path] [--arena-path path] [--capacity size] [--log-level level]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tiercache/lib/arena"
	"github.com/bureau-foundation/tiercache/lib/config"
	"github.com/bureau-foundation/tiercache/lib/process"
	"github.com/bureau-foundation/tiercache/lib/service"
	"github.com/bureau-foundation/tiercache/lib/storeserver"
	"github.com/bureau-foundation/tiercache/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		socketPath  string
		arenaPath   string
		capacity    string
		logLevel    string
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("tiercache-store", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to tiercache.yaml (default: $TIERCACHE_CONFIG)")
	flagSet.StringVar(&socketPath, "socket", "", "Unix socket to listen on (default: store_endpoint from config)")
	flagSet.StringVar(&arenaPath, "arena-path", "", "file backing the shared arena (default: store.arena_path from config)")
	flagSet.StringVar(&capacity, "capacity", "", "arena size, e.g. 512MiB (default: store.capacity from config)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default: log_level from config)")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Printf("tiercache-store %s\n", version.Full())
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if socketPath != "" {
		cfg.StoreEndpoint = socketPath
	}
	if arenaPath != "" {
		cfg.Store.ArenaPath = arenaPath
	}
	if capacity != "" {
		bytes, err := humanize.ParseBytes(capacity)
		if err != nil {
			return fmt.Errorf("--capacity: %w", err)
		}
		cfg.Store.Capacity = int64(bytes)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}
	logger := service.NewLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := arena.Open(cfg.Store.ArenaPath, cfg.Store.Capacity)
	if err != nil {
		return fmt.Errorf("opening arena: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing arena", "error", err)
		}
		os.Remove(cfg.Store.ArenaPath)
	}()

	logger.Info("hot store starting",
		"version", version.Info(),
		"socket", cfg.StoreEndpoint,
		"arena", cfg.Store.ArenaPath,
		"capacity", humanize.IBytes(uint64(cfg.Store.Capacity)),
	)

	if err := storeserver.New(store, logger).Serve(ctx, cfg.StoreEndpoint); err != nil {
		return fmt.Errorf("serving: %w", err)
	}
	logger.Info("hot store stopped")
	return nil
}

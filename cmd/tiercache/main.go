// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// tiercache is the operator CLI for the tiered dataset cache.
//
// Usage:
//
//	tiercache <command> [flags] [args...]
//
// Run "tiercache help" for the command list.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tiercache/lib/cachekey"
	"github.com/bureau-foundation/tiercache/lib/coldtier"
	"github.com/bureau-foundation/tiercache/lib/config"
	"github.com/bureau-foundation/tiercache/lib/dataset"
	"github.com/bureau-foundation/tiercache/lib/hotstore"
	"github.com/bureau-foundation/tiercache/lib/process"
	"github.com/bureau-foundation/tiercache/lib/service"
	"github.com/bureau-foundation/tiercache/lib/tiered"
	"github.com/bureau-foundation/tiercache/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// command is one subcommand. flags registers command-specific flags
// on the shared flag set; action runs after parsing.
type command struct {
	name    string
	summary string
	usage   string
	flags   func(flagSet *pflag.FlagSet)
	action  func(ctx context.Context, env *environment, args []string) error
}

func commands() []*command {
	return []*command{
		usageCommand(),
		listCommand(),
		getCommand(),
		warmCommand(),
		deleteCommand(),
		importCSVCommand(),
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "--version", "version":
		fmt.Printf("tiercache %s\n", version.Full())
		return nil
	case "--help", "help", "-h":
		printUsage()
		return nil
	}

	var selected *command
	for _, candidate := range commands() {
		if candidate.name == args[0] {
			selected = candidate
			break
		}
	}
	if selected == nil {
		printUsage()
		return fmt.Errorf("unknown command %q", args[0])
	}

	var configPath, logLevel string
	flagSet := pflag.NewFlagSet("tiercache "+selected.name, pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to tiercache.yaml (default: $TIERCACHE_CONFIG)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (default: log_level from config)")
	if selected.flags != nil {
		selected.flags(flagSet)
	}
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: tiercache %s\n\n%s\n\nflags:\n%s", selected.usage, selected.summary, flagSet.FlagUsages())
	}
	if err := flagSet.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
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

	env, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return env.escalator.Check(selected.action(ctx, env, flagSet.Args()))
}

// environment holds the connected components every command uses.
type environment struct {
	config    *config.Config
	logger    *slog.Logger
	keys      cachekey.Deriver
	hot       *hotstore.Client
	cache     *tiered.Cache
	escalator *process.Escalator
}

func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*environment, error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}
	escalator := process.NewEscalator(cfg.KillOnStoreFailure, logger)

	hot, err := hotstore.Dial(ctx, hotstore.Options{
		Endpoint:     cfg.StoreEndpoint,
		RegistryName: cfg.RegistryKeyName,
		Logger:       logger,
	})
	if err != nil {
		return nil, escalator.Check(err)
	}

	keys := cachekey.Deriver{DataRoot: cfg.DataRoot}
	cache, err := tiered.New(tiered.Options{
		Hot: hot,
		Cold: &coldtier.Tier{
			Root:   cfg.CacheRoot,
			Logger: logger,
		},
		Source: &dataset.FileSource{
			Summary: cfg.Summary,
			Logger:  logger,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	return &environment{
		config:    cfg,
		logger:    logger,
		keys:      keys,
		hot:       hot,
		cache:     cache,
		escalator: escalator,
	}, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `tiercache - tiered dataset cache

USAGE
    tiercache <command> [flags] [args...]

COMMANDS
`)
	for _, entry := range commands() {
		fmt.Fprintf(os.Stderr, "    %-12s %s\n", entry.name, entry.summary)
	}
	fmt.Fprintf(os.Stderr, `
Every command accepts --config and --log-level. Configuration is read
from --config or $TIERCACHE_CONFIG, then TIERCACHE_* environment
variables.
`)
}

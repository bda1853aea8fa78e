// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

// Package storetest runs an in-process hot store daemon for tests.
package storetest

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bureau-foundation/tiercache/lib/arena"
	"github.com/bureau-foundation/tiercache/lib/storeserver"
	"github.com/bureau-foundation/tiercache/lib/testutil"
)

// Daemon is a running test daemon.
type Daemon struct {
	SocketPath string
	Arena      *arena.Arena

	cancel context.CancelFunc
	done   sync.WaitGroup
}

// Start opens an arena of the given capacity in a temporary directory
// and serves it on a fresh socket. The daemon stops when the test
// ends.
func Start(t *testing.T, capacity int64) *Daemon {
	t.Helper()

	store, err := arena.Open(filepath.Join(t.TempDir(), "arena"), capacity)
	if err != nil {
		t.Fatalf("opening arena: %v", err)
	}

	daemon := &Daemon{
		SocketPath: filepath.Join(testutil.SocketDir(t), "store.sock"),
		Arena:      store,
	}
	server := storeserver.New(store, Logger())

	ctx, cancel := context.WithCancel(context.Background())
	daemon.cancel = cancel
	daemon.done.Add(1)
	go func() {
		defer daemon.done.Done()
		if err := server.Serve(ctx, daemon.SocketPath); err != nil {
			t.Errorf("store daemon: %v", err)
		}
	}()
	t.Cleanup(func() {
		daemon.Stop()
		store.Close()
	})

	testutil.WaitForSocket(t, daemon.SocketPath)
	return daemon
}

// Stop shuts the daemon down and waits for it to exit. Clients see
// connection failures from then on. Safe to call more than once.
func (d *Daemon) Stop() {
	d.cancel()
	d.done.Wait()
}

// Logger returns a logger that only reports errors, keeping test
// output quiet.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

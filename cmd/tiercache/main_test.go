// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/tiercache/lib/config"
	"github.com/bureau-foundation/tiercache/lib/storeserver/storetest"
)

func TestRunReadsConfigEnvAndCreatesCacheRoot(t *testing.T) {
	daemon := storetest.Start(t, 1<<20)
	directory := t.TempDir()
	cacheRoot := filepath.Join(directory, "cold", "nested")
	configPath := filepath.Join(directory, "tiercache.yaml")
	content := fmt.Sprintf("kill_on_store_failure: false\ndata_root: %s\ncache_root: %s\nstore_endpoint: %s\nlog_level: error\n",
		directory, cacheRoot, daemon.SocketPath)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv(config.EnvConfig, configPath)

	if err := run([]string{"usage"}); err != nil {
		t.Fatalf("run usage: %v", err)
	}
	info, err := os.Stat(cacheRoot)
	if err != nil {
		t.Fatalf("cache root not created: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("cache root %s is not a directory", cacheRoot)
	}
}

func TestRunVersion(t *testing.T) {
	if err := run([]string{"--version"}); err != nil {
		t.Errorf("run --version: %v", err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if err := run([]string{"frobnicate"}); err == nil {
		t.Error("unknown command should fail")
	}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"testing"

	"github.com/bureau-foundation/tiercache/lib/hotstore"
)

// envKillChild makes the test binary act as the process that kills
// itself.
const envKillChild = "TIERCACHE_PROCESS_KILL_CHILD"

func TestMain(m *testing.M) {
	if os.Getenv(envKillChild) == "1" {
		escalator := NewEscalator(true, quietLogger())
		escalator.Check(fmt.Errorf("contains: %w", hotstore.ErrStoreUnavailable))
		// Reaching this line means the kill did not happen.
		os.Exit(3)
	}
	os.Exit(m.Run())
}

func TestEscalatorKillsProcessWithSIGKILL(t *testing.T) {
	executable, err := os.Executable()
	if err != nil {
		t.Fatalf("Executable: %v", err)
	}
	command := exec.Command(executable, "-test.run=^$")
	command.Env = append(os.Environ(), envKillChild+"=1")

	err = command.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("child returned %v, want it killed by a signal", err)
	}
	status, ok := exitErr.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		t.Fatalf("wait status is %T", exitErr.ProcessState.Sys())
	}
	if !status.Signaled() || status.Signal() != syscall.SIGKILL {
		t.Errorf("child exited with %v, want SIGKILL", exitErr.ProcessState)
	}
}

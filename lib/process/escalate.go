// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"log/slog"
	"os"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/tiercache/lib/hotstore"
)

// Escalator decides what happens when the hot store is unreachable.
type Escalator struct {
	// KillOnFailure terminates the process on the first store
	// connectivity failure.
	KillOnFailure bool

	Logger *slog.Logger

	// terminate replaces the self-kill in tests.
	terminate func()
}

// NewEscalator returns an Escalator that kills the process when
// killOnFailure is set.
func NewEscalator(killOnFailure bool, logger *slog.Logger) *Escalator {
	return &Escalator{KillOnFailure: killOnFailure, Logger: logger}
}

// Check inspects err. Errors other than [hotstore.ErrStoreUnavailable]
// (including nil) are returned unchanged. A store connectivity failure
// is logged and then either terminates the process or is returned,
// depending on KillOnFailure.
func (e *Escalator) Check(err error) error {
	if err == nil || !errors.Is(err, hotstore.ErrStoreUnavailable) {
		return err
	}

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if !e.KillOnFailure {
		logger.Error("hot store unavailable, treating value as absent", "error", err)
		return err
	}

	logger.Error("hot store unavailable, terminating process",
		"error", err,
		"pid", os.Getpid(),
	)
	if e.terminate != nil {
		e.terminate()
		return err
	}
	killSelf()
	return err
}

// killSelf sends SIGKILL to the current process. It does not return
// in practice; the signal is delivered before the caller resumes.
func killSelf() {
	unix.Kill(os.Getpid(), unix.SIGKILL)
	select {}
}

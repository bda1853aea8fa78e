// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the tiercache
// binaries:
//
//   - [Fatal] reports an error to stderr and exits, for failures that
//     happen before the structured logger is initialized.
//   - [Escalator] applies the kill-on-store-failure policy. Library
//     code returns [hotstore.ErrStoreUnavailable] when the hot store
//     cannot be reached; binaries pass results through
//     [Escalator.Check], which either terminates the process or hands
//     the error back so the value is treated as absent.
//
// Escalation sends SIGKILL to the process itself. Deferred functions
// do not run and no retry is attempted.
package process

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] creates a short temporary directory in /tmp for Unix
// domain sockets, whose paths are limited to 108 bytes (sun_path in
// sockaddr_un). t.TempDir() paths are derived from the test name and
// routinely exceed that. [WaitForSocket] blocks until a server has
// created its socket file.
//
// [RequireReceive] wraps the select-with-timeout pattern so tests
// never hang on a channel that is never fed.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil

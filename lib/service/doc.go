// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the CBOR request/response protocol the hot
// store daemon speaks over its Unix socket, plus the logger every
// binary uses.
//
// Each connection carries exactly one exchange: the client writes one
// CBOR map holding an "action" field and action-specific fields, the
// server writes one [Response] envelope, and the connection closes.
// CBOR is self-delimiting, so no framing is needed.
//
// Handlers report failures by returning an error. An [*Error] carries
// a machine-readable code that travels in the envelope's "code" field
// and comes back to the client as [*ServiceError].Code; any other
// error travels as a message only.
//
// Services compose [SocketServer] and [NewLogger] in their own main()
// rather than subclassing a framework.
package service

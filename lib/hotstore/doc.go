// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package hotstore is the client of the shared hot store daemon.
//
// A [Client] is an explicit handle created once with [Dial] and passed
// to whatever needs the hot tier. Values are encoded with lib/objcodec
// into exact-size buffers and committed to the daemon in a single
// create action, so a sealed object is never partially visible.
//
// Connectivity failures are returned as errors wrapping
// [ErrStoreUnavailable]. The client never terminates the process
// itself: the outermost caller decides what an unavailable store means
// (see lib/process.Escalator). Running out of arena space is reported
// separately as [ErrStoreFull], which callers may treat as "skip
// caching this object".
//
// Every put also records the object's human-readable name in a
// reserved registry object. The registry is a read-merge-write of a
// single value and is not transactional: two concurrent puts can lose
// one of the names. Lookups never consult it; only [Client.List] does.
package hotstore

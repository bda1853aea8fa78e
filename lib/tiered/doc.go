// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package tiered serves dataset members from the hot store, falling
// back to the cold tier and finally to the source file.
//
// A request names a dataset key and the members it needs. If the key
// is a raw path, or any needed member has no cold file, the source is
// read in full (the source format cannot be read partially) and, for
// cached keys, every member is written to the cold tier. Otherwise
// exactly the requested members are read from the cold tier. Either
// way only the requested members are promoted to the hot store, always
// without overwriting, so a member never disappears from under a
// concurrent reader.
//
// The per-member accessors ([Cache.Summary], [Cache.Matrix], ...)
// check the hot store for their own keys first and materialize on a
// miss.
package tiered

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dataset defines the in-memory shapes a cached dataset is made
// of and reads datasets from their source bundles.
//
// A dataset has five members (see [Member]): two annotation frames
// (rows-meta, cols-meta), a numeric matrix with row and column labels,
// a derived summary, and a derived index listing. A [Record] maps
// members to their materialized values while a dataset is being read
// or promoted; it is never stored as a unit.
//
// Source bundles (*.dataset) are zstd-compressed CBOR documents holding
// the two frames, the matrix, and free-form attributes. They cannot be
// read partially: [FileSource] always materializes every member.
package dataset

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package coldtier stores dataset members as files on local disk.
//
// Each cached dataset has a directory under the tier root named after
// its key, holding one file per member:
//
//	<root>/<dataset>/rows-meta.rows      frame, row-oriented
//	<root>/<dataset>/matrix.parquet      frame too wide for rows
//	<root>/<dataset>/summary.yaml        structured value
//
// Frames use a compressed row-oriented record file (a CBOR header
// followed by one CBOR array per row, wrapped in a lib/compression
// block). Frames wider than [Tier.MaxRowColumns] use Apache Parquet
// instead. The matrix member is stored as a frame with the row labels
// as its index and one column per column label. Structured values are
// YAML.
//
// File presence is the only existence signal. Files are write-once:
// [Tier.Write] never replaces an existing member file, and concurrent
// writers of the same file resolve to whichever finished first.
package coldtier

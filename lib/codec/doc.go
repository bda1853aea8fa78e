// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by
// every tiercache component.
//
// CBOR carries three kinds of data:
//
//   - structured-value payloads in the hot store (summaries, index
//     listings, row and column labels, the name registry),
//   - the hot store socket protocol (one request and one response per
//     connection),
//   - the cold tier's row-oriented record files and dataset source
//     bundles.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same logical value always produces identical bytes. The decoder maps
// untyped CBOR maps to map[string]any and lifts the default element
// limits, because index listings routinely carry more labels than the
// library's conservative defaults allow.
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types that only ever travel as CBOR use `cbor` struct tags. Types
// that are also written as YAML or printed by the CLI use `json` tags,
// which fxamacker/cbor reads as a fallback.
package codec

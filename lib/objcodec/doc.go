// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package objcodec converts the three payload shapes the hot store
// holds to and from self-describing byte buffers:
//
//   - [ShapeFrame]: a [dataset.Frame], written as an Apache Arrow IPC
//     stream. The row index becomes the first column, named
//     "__index__:<index name>", and is lifted back into the index on
//     decode.
//   - [ShapeArray]: a [dataset.Array], written as an Arrow IPC stream
//     with one "values" column. Shape and dtype travel in the schema
//     metadata. Labels are not part of an array payload; callers
//     store them as separate values.
//   - [ShapeValue]: any structured value, written as Core
//     Deterministic CBOR.
//
// The store keeps no type information, so decoding needs the shape
// the value was written with. Decoding with the wrong shape returns
// an error wrapping [ErrShapeMismatch] or a decode error, never
// silently wrong data.
//
// Encoding is two-pass: [Size] computes the exact encoded length, the
// caller allocates a buffer of exactly that size, and [EncodeInto]
// fills it. [Encode] does both.
package objcodec

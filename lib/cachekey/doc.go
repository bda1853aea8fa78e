// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cachekey maps logical object names to stable identities.
//
// A [Key] is derived from a name alone: the name is normalized,
// classified as [Cached] (a dataset handle resolved against the data
// root) or [RawPath] (an absolute filesystem path), and hashed into a
// 20-byte [ID]. Independent processes that derive a key from the same
// name always agree on its ID, so the hot store needs no coordination
// to address objects.
//
// Member keys are derived from a dataset key with [WithMember]. The
// member key keeps the classification of its parent; only the name and
// the ID change.
package cachekey

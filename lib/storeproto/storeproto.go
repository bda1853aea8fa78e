// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package storeproto defines the wire types of the hot store daemon.
//
// The daemon speaks the lib/service protocol: one CBOR request per
// connection, answered by one {ok, code, error, data} envelope. The
// types here are the request fields each action reads and the data
// each action returns. Object identities travel as 20-byte CBOR byte
// strings.
package storeproto

// Actions served by the daemon.
const (
	ActionPing     = "ping"
	ActionContains = "contains"
	ActionCreate   = "create"
	ActionGet      = "get"
	ActionDelete   = "delete"
	ActionUsage    = "usage"
	ActionList     = "list"
)

// Error codes carried in the response envelope. Any failure without a
// code is a protocol or daemon error.
const (
	// CodeExists: create was called for an identity that is already
	// sealed in the store.
	CodeExists = "exists"

	// CodeStoreFull: the arena has no free range large enough for the
	// object.
	CodeStoreFull = "store_full"

	// CodeNotFound: get was called for an identity that is not in the
	// store.
	CodeNotFound = "not_found"

	// CodeInvalid: the request was well-formed CBOR but carried bad
	// fields (wrong identity length, missing data).
	CodeInvalid = "invalid"
)

// PingResponse is returned by ping.
type PingResponse struct {
	// Capacity is the arena size in bytes. Clients size their
	// response limit from it.
	Capacity int64 `cbor:"capacity"`
}

// IDsRequest is the request of contains and delete.
type IDsRequest struct {
	IDs [][]byte `cbor:"ids"`
}

// ContainsResponse is returned by contains. Present[i] reports
// whether IDs[i] of the request is sealed in the store.
type ContainsResponse struct {
	Present []bool `cbor:"present"`
}

// CreateRequest allocates, writes, and seals one object in a single
// step. The object becomes visible to other clients only once the
// whole payload is in the arena.
type CreateRequest struct {
	ID       []byte `cbor:"id"`
	Data     []byte `cbor:"data"`
	Metadata []byte `cbor:"metadata,omitempty"`
}

// CreateResponse is returned by create.
type CreateResponse struct {
	// Allocated is the number of arena bytes the object occupies,
	// including alignment padding.
	Allocated int64 `cbor:"allocated"`
}

// GetRequest is the request of get.
type GetRequest struct {
	ID []byte `cbor:"id"`
}

// GetResponse is returned by get.
type GetResponse struct {
	Data     []byte `cbor:"data"`
	Metadata []byte `cbor:"metadata,omitempty"`
}

// DeleteResponse is returned by delete. Absent identities are not
// counted and are not an error.
type DeleteResponse struct {
	Deleted int `cbor:"deleted"`
}

// UsageResponse is returned by usage.
type UsageResponse struct {
	Capacity    int64 `cbor:"capacity"`
	Used        int64 `cbor:"used"`
	ObjectCount int   `cbor:"object_count"`
}

// ObjectEntry describes one sealed object in a list response.
type ObjectEntry struct {
	ID             []byte `cbor:"id"`
	Size           int64  `cbor:"size"`
	MetadataSize   int64  `cbor:"metadata_size"`
	ReferenceCount int    `cbor:"reference_count"`
}

// ListResponse is returned by list.
type ListResponse struct {
	Objects []ObjectEntry `cbor:"objects"`
}

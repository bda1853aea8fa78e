// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cachekey

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
)

// IDSize is the length of an object identity in bytes. The hot store
// addresses objects by IDs of exactly this length.
const IDSize = 20

// SourceExtension is the file extension of dataset source bundles.
// It is stripped from cached names so "proj/ds.dataset" and "proj/ds"
// address the same dataset.
const SourceExtension = ".dataset"

// MaxCachedSegments is the largest number of path segments a name may
// have and still be classified as [Cached]. Three segments leave room
// for PROJECT/DATASET/MEMBER.
const MaxCachedSegments = 3

// ID is the deterministic identity of a key: the first IDSize bytes
// of the keyed BLAKE3 hash of its name.
type ID [IDSize]byte

// Hex returns the lowercase hex encoding of the ID. This is the form
// used in the name registry, logs, and CLI output.
func (id ID) Hex() string {
	return hex.EncodeToString(id[:])
}

// String implements fmt.Stringer.
func (id ID) String() string {
	return id.Hex()
}

// ParseID parses a hex-encoded ID.
func ParseID(hexString string) (ID, error) {
	var id ID
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return id, fmt.Errorf("parsing object id: %w", err)
	}
	if len(decoded) != IDSize {
		return id, fmt.Errorf("object id is %d bytes, want %d", len(decoded), IDSize)
	}
	copy(id[:], decoded)
	return id, nil
}

// IDFromBytes copies b into an ID. Returns an error if b has the wrong
// length.
func IDFromBytes(b []byte) (ID, error) {
	var id ID
	if len(b) != IDSize {
		return id, fmt.Errorf("object id is %d bytes, want %d", len(b), IDSize)
	}
	copy(id[:], b)
	return id, nil
}

// Class records where the object behind a key physically lives.
type Class uint8

const (
	// Cached keys name a dataset (or one of its members) relative to
	// the configured data root. They are eligible for the cold tier.
	Cached Class = iota + 1

	// RawPath keys name an arbitrary file by absolute path. They are
	// cached verbatim in the hot store and never written to the cold
	// tier.
	RawPath
)

// String returns "cached" or "raw-path".
func (c Class) String() string {
	switch c {
	case Cached:
		return "cached"
	case RawPath:
		return "raw-path"
	default:
		return fmt.Sprintf("class(%d)", uint8(c))
	}
}

// Key identifies one logical object or one member of a dataset. Keys
// are values: construct them with [Derive] or [WithMember] and pass
// them by value.
type Key struct {
	// Name is the canonical handle the ID is derived from.
	Name string

	// Class is the classification of Name.
	Class Class

	// ID is the hot store identity of the object.
	ID ID

	// SourcePath is the authoritative file read on a source read.
	SourcePath string
}

// String returns a short description of the key for logs.
func (k Key) String() string {
	return fmt.Sprintf("Key(%s, %s)", k.Name, k.Class)
}

// objectDomainKey separates object identities from any other BLAKE3
// use. Changing it changes every identity, which orphans every object
// in a running store.
var objectDomainKey = [32]byte{
	't', 'i', 'e', 'r', 'c', 'a', 'c', 'h', 'e', '.', 'o', 'b', 'j', 'e', 'c', 't',
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// HashName returns the identity for name. It is a pure function of
// the bytes of name.
func HashName(name string) ID {
	hasher, err := blake3.NewKeyed(objectDomainKey[:])
	if err != nil {
		panic("cachekey: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(name))
	var id ID
	copy(id[:], hasher.Sum(nil))
	return id
}

// Classify returns the class of a raw name based on its path segment
// count alone. The filesystem is never consulted.
func Classify(name string) Class {
	if segmentCount(name) <= MaxCachedSegments {
		return Cached
	}
	return RawPath
}

func segmentCount(name string) int {
	return len(strings.Split(strings.Trim(name, "/"), "/"))
}

// Derive builds the key for name. Cached names are resolved against
// dataRoot for source reads. Derive never fails: a malformed name
// still produces a usable key.
func Derive(name, dataRoot string) Key {
	if Classify(name) == Cached {
		canonical := strings.Trim(strings.ReplaceAll(name, SourceExtension, ""), "/.")
		return Key{
			Name:       canonical,
			Class:      Cached,
			ID:         HashName(canonical),
			SourcePath: filepath.Join(dataRoot, canonical+SourceExtension),
		}
	}

	absolute, err := filepath.Abs(name)
	if err != nil {
		absolute = filepath.Clean(name)
	}
	return Key{
		Name:       absolute,
		Class:      RawPath,
		ID:         HashName(absolute),
		SourcePath: absolute,
	}
}

// WithMember derives the key of a member of base by appending suffix
// to its name. The parent's class and source path are kept: a member
// of a cached dataset is always cached, even when the longer name
// would exceed MaxCachedSegments on its own.
func WithMember(base Key, suffix string) Key {
	name := base.Name + suffix
	return Key{
		Name:       name,
		Class:      base.Class,
		ID:         HashName(name),
		SourcePath: base.SourcePath,
	}
}

// Deriver derives keys against a fixed data root.
type Deriver struct {
	DataRoot string
}

// Derive is [Derive] with d.DataRoot.
func (d Deriver) Derive(name string) Key {
	return Derive(name, d.DataRoot)
}

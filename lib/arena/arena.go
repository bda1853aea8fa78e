// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

// Package arena provides the fixed-capacity memory region the hot
// store keeps object payloads in: a memory-mapped [Device] divided by
// a first-fit allocator into aligned [Span]s.
//
// The arena knows nothing about objects. The store daemon maps object
// identities to spans and decides when a span may be released.
package arena

import (
	"fmt"
	"sync"
)

// Arena is a memory-mapped device plus its allocator. Store, Read and
// Release are safe for concurrent use.
type Arena struct {
	device *Device

	mu        sync.Mutex
	allocator *allocator
}

// Open creates the backing file at path with the given capacity and
// maps it. Any previous contents are discarded.
func Open(path string, capacity int64) (*Arena, error) {
	if capacity < Alignment {
		return nil, fmt.Errorf("arena capacity must be at least %d bytes, got %d", Alignment, capacity)
	}
	device, err := OpenDevice(path, capacity)
	if err != nil {
		return nil, err
	}
	return &Arena{device: device, allocator: newAllocator(capacity)}, nil
}

// Store allocates a span for data and writes data into it. The span is
// not visible to anyone until the caller publishes it, so a failed
// write never exposes a partial object. Returns an error wrapping
// [ErrFull] when no free range is large enough.
func (a *Arena) Store(data []byte) (Span, error) {
	a.mu.Lock()
	span, err := a.allocator.allocate(int64(len(data)))
	a.mu.Unlock()
	if err != nil {
		return Span{}, err
	}

	// The span is exclusively ours; the write needs no lock.
	if _, err := a.device.WriteAt(data, span.Offset); err != nil {
		a.Release(span)
		return Span{}, fmt.Errorf("writing %d bytes at offset %d: %w", len(data), span.Offset, err)
	}
	return span, nil
}

// Read copies length bytes of span into a new slice. length may be
// smaller than span.Length, which is rounded up to [Alignment].
func (a *Arena) Read(span Span, length int64) ([]byte, error) {
	if length < 0 || length > span.Length {
		return nil, fmt.Errorf("read of %d bytes from span of %d", length, span.Length)
	}
	data := make([]byte, length)
	if length == 0 {
		return data, nil
	}
	if _, err := a.device.ReadAt(data, span.Offset); err != nil {
		return nil, fmt.Errorf("reading %d bytes at offset %d: %w", length, span.Offset, err)
	}
	return data, nil
}

// Release returns span to the free list. The caller must guarantee no
// reader still uses it.
func (a *Arena) Release(span Span) {
	a.mu.Lock()
	a.allocator.release(span)
	a.mu.Unlock()
}

// Capacity returns the usable size of the arena in bytes.
func (a *Arena) Capacity() int64 {
	return a.allocator.capacity
}

// Allocated returns the number of bytes currently held by spans,
// including alignment padding.
func (a *Arena) Allocated() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.allocator.used
}

// Close unmaps the device.
func (a *Arena) Close() error {
	return a.device.Close()
}

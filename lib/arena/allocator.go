// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package arena

import (
	"errors"
	"fmt"
	"sort"
)

// Alignment is the granularity of arena allocations. Every span starts
// on, and is rounded up to, a multiple of Alignment.
const Alignment = 64

// ErrFull is returned when no free range can hold an allocation. The
// arena never evicts: callers decide whether to skip the object.
var ErrFull = errors.New("arena full")

// Span is an allocated range of the arena.
type Span struct {
	Offset int64
	Length int64
}

// End returns the offset just past the span.
func (s Span) End() int64 {
	return s.Offset + s.Length
}

// allocator is a first-fit free-list allocator over [0, capacity).
// Free ranges are kept sorted by offset and coalesced on release. It
// is not safe for concurrent use.
type allocator struct {
	capacity int64
	used     int64
	free     []Span
}

func newAllocator(capacity int64) *allocator {
	capacity -= capacity % Alignment
	return &allocator{
		capacity: capacity,
		free:     []Span{{Offset: 0, Length: capacity}},
	}
}

func alignUp(size int64) int64 {
	if size <= 0 {
		return Alignment
	}
	return (size + Alignment - 1) / Alignment * Alignment
}

// allocate reserves a span of at least size bytes.
func (a *allocator) allocate(size int64) (Span, error) {
	length := alignUp(size)
	for i, candidate := range a.free {
		if candidate.Length < length {
			continue
		}
		span := Span{Offset: candidate.Offset, Length: length}
		if candidate.Length == length {
			a.free = append(a.free[:i], a.free[i+1:]...)
		} else {
			a.free[i] = Span{Offset: candidate.Offset + length, Length: candidate.Length - length}
		}
		a.used += length
		return span, nil
	}
	return Span{}, fmt.Errorf("%w: cannot allocate %d bytes (%d of %d in use, largest free range %d)",
		ErrFull, size, a.used, a.capacity, a.largestFree())
}

// release returns span to the free list, merging it with adjacent
// free ranges.
func (a *allocator) release(span Span) {
	index := sort.Search(len(a.free), func(i int) bool {
		return a.free[i].Offset > span.Offset
	})
	a.free = append(a.free, Span{})
	copy(a.free[index+1:], a.free[index:])
	a.free[index] = span
	a.used -= span.Length

	// Merge with the following range, then with the preceding one.
	if index+1 < len(a.free) && a.free[index].End() == a.free[index+1].Offset {
		a.free[index].Length += a.free[index+1].Length
		a.free = append(a.free[:index+1], a.free[index+2:]...)
	}
	if index > 0 && a.free[index-1].End() == a.free[index].Offset {
		a.free[index-1].Length += a.free[index].Length
		a.free = append(a.free[:index], a.free[index+1:]...)
	}
}

func (a *allocator) largestFree() int64 {
	var largest int64
	for _, span := range a.free {
		if span.Length > largest {
			largest = span.Length
		}
	}
	return largest
}

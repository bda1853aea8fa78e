// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package arena

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func openTestArena(t *testing.T, capacity int64) *Arena {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "arena"), capacity)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestStoreRead(t *testing.T) {
	a := openTestArena(t, 4096)
	data := []byte("payload bytes for the arena")
	span, err := a.Store(data)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if span.Offset%Alignment != 0 || span.Length != Alignment {
		t.Errorf("span = %+v, want aligned %d-byte span", span, Alignment)
	}
	got, err := a.Read(span, int64(len(data)))
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Read = %q, want %q", got, data)
	}
	if _, err := a.Read(span, span.Length+1); err == nil {
		t.Error("Read past the span should fail")
	}
}

func TestStoreFull(t *testing.T) {
	a := openTestArena(t, 256)
	if _, err := a.Store(make([]byte, 200)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := a.Store(make([]byte, 100)); !errors.Is(err, ErrFull) {
		t.Fatalf("Store beyond capacity: got %v, want ErrFull", err)
	}
}

func TestReleaseCoalesces(t *testing.T) {
	a := openTestArena(t, 4*Alignment)
	spans := make([]Span, 4)
	for i := range spans {
		span, err := a.Store([]byte{byte(i)})
		if err != nil {
			t.Fatalf("Store %d: %v", i, err)
		}
		spans[i] = span
	}
	if _, err := a.Store([]byte{9}); !errors.Is(err, ErrFull) {
		t.Fatalf("fifth Store: got %v, want ErrFull", err)
	}

	// Free out of order; the whole arena must become one range again.
	for _, index := range []int{1, 3, 0, 2} {
		a.Release(spans[index])
	}
	if a.Allocated() != 0 {
		t.Errorf("Allocated = %d after releasing everything", a.Allocated())
	}
	if _, err := a.Store(make([]byte, 4*Alignment)); err != nil {
		t.Errorf("full-capacity Store after coalescing: %v", err)
	}
}

func TestAllocatorFirstFitReusesHole(t *testing.T) {
	alloc := newAllocator(10 * Alignment)
	first, _ := alloc.allocate(Alignment)
	second, _ := alloc.allocate(2 * Alignment)
	if _, err := alloc.allocate(Alignment); err != nil {
		t.Fatal(err)
	}
	alloc.release(second)
	reused, err := alloc.allocate(Alignment + 1)
	if err != nil {
		t.Fatal(err)
	}
	if reused.Offset != second.Offset {
		t.Errorf("allocation went to offset %d, want the hole at %d", reused.Offset, second.Offset)
	}
	if first.Offset != 0 {
		t.Errorf("first allocation at %d, want 0", first.Offset)
	}
	if alloc.used != 4*Alignment {
		t.Errorf("used = %d, want %d", alloc.used, 4*Alignment)
	}
}

func TestOpenDiscardsPreviousContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arena")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xAA}, 1024), 0o600); err != nil {
		t.Fatal(err)
	}
	a, err := Open(path, 512)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer a.Close()

	got, err := a.Read(Span{Offset: 0, Length: Alignment}, Alignment)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, make([]byte, Alignment)) {
		t.Error("stale bytes survived Open")
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 512 {
		t.Errorf("file size = %d, want 512", info.Size())
	}
}

func TestConcurrentStoreRelease(t *testing.T) {
	a := openTestArena(t, 64*Alignment)
	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				data := bytes.Repeat([]byte{byte(worker)}, 100)
				span, err := a.Store(data)
				if err != nil {
					t.Errorf("worker %d Store: %v", worker, err)
					return
				}
				got, err := a.Read(span, int64(len(data)))
				if err != nil || !bytes.Equal(got, data) {
					t.Errorf("worker %d read back wrong data (err %v)", worker, err)
					return
				}
				a.Release(span)
			}
		}(worker)
	}
	wg.Wait()
	if a.Allocated() != 0 {
		t.Errorf("Allocated = %d after all workers released", a.Allocated())
	}
}

func TestOpenRejectsTinyCapacity(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "arena"), 8); err == nil {
		t.Error("Open with capacity below Alignment should fail")
	}
}

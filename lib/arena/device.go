// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package arena

import (
	"fmt"
	"io"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

// Device is a fixed-size file backing the arena. Reads go through a
// read-only memory map; writes use pwrite so that filling a fresh
// slot does not fault its pages in first.
//
// ReadAt is safe for concurrent use. WriteAt calls for overlapping
// ranges must be serialized by the caller; the allocator guarantees
// that concurrent writers never overlap.
type Device struct {
	fd   int
	data []byte // mmap'd MAP_SHARED, PROT_READ
	size int64
}

// OpenDevice creates the device file at path with exactly size bytes.
// An existing file is truncated first: arena contents do not survive
// a daemon restart, and stale bytes must not be mistaken for objects.
func OpenDevice(path string, size int64) (*Device, error) {
	if size <= 0 {
		return nil, fmt.Errorf("arena device size must be positive, got %d", size)
	}

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening arena device %s: %w", path, err)
	}
	if err := unix.Ftruncate(fd, 0); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("clearing arena device: %w", err)
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("sizing arena device to %d bytes: %w", size, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("stating arena device: %w", err)
	}
	if stat.Size != size {
		unix.Close(fd)
		return nil, fmt.Errorf("arena device %s is %d bytes after truncate, want %d", path, stat.Size, size)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("memory-mapping arena device: %w", err)
	}

	return &Device{fd: fd, data: data, size: size}, nil
}

// ReadAt reads len(p) bytes starting at off through the memory map.
func (d *Device) ReadAt(p []byte, off int64) (readCount int, err error) {
	if off < 0 || off >= d.size {
		return 0, io.EOF
	}

	// A backing-store I/O error surfaces as SIGBUS on the mapped
	// page; turn it into an error instead of a crash.
	old := debug.SetPanicOnFault(true)
	defer func() {
		debug.SetPanicOnFault(old)
		if r := recover(); r != nil {
			err = fmt.Errorf("page fault reading arena device at offset %d: %v", off, r)
		}
	}()

	readCount = copy(p, d.data[off:])
	if readCount < len(p) {
		return readCount, io.EOF
	}
	return readCount, nil
}

// WriteAt writes p starting at off with pwrite.
func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > d.size {
		return 0, fmt.Errorf("write at offset %d with length %d exceeds device size %d",
			off, len(p), d.size)
	}

	totalWritten := 0
	for len(p) > 0 {
		written, err := unix.Pwrite(d.fd, p, off)
		totalWritten += written
		if err != nil {
			return totalWritten, fmt.Errorf("pwrite at offset %d: %w", off, err)
		}
		p = p[written:]
		off += int64(written)
	}
	return totalWritten, nil
}

// Close unmaps the memory region and closes the file descriptor. The
// file itself is left in place.
func (d *Device) Close() error {
	var firstErr error
	if err := unix.Munmap(d.data); err != nil {
		firstErr = fmt.Errorf("unmapping arena device: %w", err)
	}
	if err := unix.Close(d.fd); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing arena device fd: %w", err)
	}
	d.data = nil
	d.fd = -1
	return firstErr
}

// Size returns the device size in bytes.
func (d *Device) Size() int64 {
	return d.size
}

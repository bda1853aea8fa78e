// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objcodec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/tiercache/lib/codec"
	"github.com/bureau-foundation/tiercache/lib/dataset"
)

// Shape tags the payload format of an encoded object.
type Shape uint8

const (
	ShapeFrame Shape = iota + 1
	ShapeArray
	ShapeValue
)

// String returns "frame", "array", or "value".
func (s Shape) String() string {
	switch s {
	case ShapeFrame:
		return "frame"
	case ShapeArray:
		return "array"
	case ShapeValue:
		return "value"
	default:
		return fmt.Sprintf("shape(%d)", uint8(s))
	}
}

var (
	// ErrShapeMismatch is returned when a buffer is decoded with a
	// shape other than the one it was encoded with.
	ErrShapeMismatch = errors.New("object shape mismatch")

	// ErrBufferTooSmall is returned by EncodeInto when the buffer
	// cannot hold the encoded value.
	ErrBufferTooSmall = errors.New("buffer too small for encoded object")
)

// ShapeOf returns the shape a value is encoded with: frames and arrays
// (by value or pointer) use their columnar formats, everything else is
// a structured value.
func ShapeOf(value any) Shape {
	switch value.(type) {
	case *dataset.Frame, dataset.Frame:
		return ShapeFrame
	case *dataset.Array, dataset.Array:
		return ShapeArray
	default:
		return ShapeValue
	}
}

// Size returns the exact number of bytes [EncodeInto] will write for
// value.
func Size(value any) (int64, error) {
	var counter countingWriter
	if err := encodeTo(&counter, value); err != nil {
		return 0, err
	}
	return counter.count, nil
}

// EncodeInto writes the encoding of value into buffer and returns the
// number of bytes written. Returns an error wrapping
// [ErrBufferTooSmall] if buffer is shorter than [Size] reports.
func EncodeInto(value any, buffer []byte) (int, error) {
	writer := fixedWriter{buffer: buffer}
	if err := encodeTo(&writer, value); err != nil {
		if writer.overflowed {
			// The Arrow writer does not always wrap the writer's error.
			return writer.written, fmt.Errorf("%w: %d bytes", ErrBufferTooSmall, len(buffer))
		}
		return writer.written, err
	}
	return writer.written, nil
}

// Encode sizes value, allocates an exact-size buffer, and encodes into
// it.
func Encode(value any) ([]byte, error) {
	size, err := Size(value)
	if err != nil {
		return nil, err
	}
	buffer := make([]byte, size)
	written, err := EncodeInto(value, buffer)
	if err != nil {
		return nil, err
	}
	if int64(written) != size {
		return nil, fmt.Errorf("encoded %d bytes, sizing pass reported %d", written, size)
	}
	return buffer, nil
}

func encodeTo(w io.Writer, value any) error {
	switch typed := value.(type) {
	case *dataset.Frame:
		return writeFrame(w, typed)
	case dataset.Frame:
		return writeFrame(w, &typed)
	case *dataset.Array:
		return writeArray(w, typed)
	case dataset.Array:
		return writeArray(w, &typed)
	default:
		data, err := codec.Marshal(value)
		if err != nil {
			return fmt.Errorf("encoding %T as value: %w", value, err)
		}
		_, err = w.Write(data)
		return err
	}
}

// Decode decodes data written with the given shape. Frames decode to
// *dataset.Frame, arrays to *dataset.Array, and values to the generic
// CBOR form (map[string]any, []any, string, int64, ...).
func Decode(data []byte, shape Shape) (any, error) {
	switch shape {
	case ShapeFrame:
		return DecodeFrame(data)
	case ShapeArray:
		return DecodeArray(data)
	case ShapeValue:
		var value any
		if err := DecodeValue(data, &value); err != nil {
			return nil, err
		}
		return value, nil
	default:
		return nil, fmt.Errorf("decoding: %w: unknown shape %s", ErrShapeMismatch, shape)
	}
}

// DecodeFrame decodes a frame payload.
func DecodeFrame(data []byte) (*dataset.Frame, error) {
	if !isArrowStream(data) {
		return nil, fmt.Errorf("decoding frame: %w: payload is not an Arrow stream", ErrShapeMismatch)
	}
	return readFrame(bytes.NewReader(data))
}

// DecodeArray decodes an array payload.
func DecodeArray(data []byte) (*dataset.Array, error) {
	if !isArrowStream(data) {
		return nil, fmt.Errorf("decoding array: %w: payload is not an Arrow stream", ErrShapeMismatch)
	}
	return readArray(bytes.NewReader(data))
}

// DecodeValue decodes a structured value payload into target, which
// must be a pointer.
func DecodeValue(data []byte, target any) error {
	if isArrowStream(data) {
		return fmt.Errorf("decoding value: %w: payload is an Arrow stream", ErrShapeMismatch)
	}
	if err := codec.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decoding value: %w", err)
	}
	return nil
}

// arrowContinuation starts every message of an Arrow IPC stream. As a
// CBOR initial byte 0xff is a bare "break", which no well-formed value
// starts with, so the two formats cannot be confused.
var arrowContinuation = []byte{0xff, 0xff, 0xff, 0xff}

func isArrowStream(data []byte) bool {
	return bytes.HasPrefix(data, arrowContinuation)
}

type countingWriter struct {
	count int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.count += int64(len(p))
	return len(p), nil
}

type fixedWriter struct {
	buffer     []byte
	written    int
	overflowed bool
}

func (w *fixedWriter) Write(p []byte) (int, error) {
	if w.written+len(p) > len(w.buffer) {
		w.overflowed = true
		return 0, fmt.Errorf("%w: need more than %d bytes", ErrBufferTooSmall, len(w.buffer))
	}
	copy(w.buffer[w.written:], p)
	w.written += len(p)
	return len(p), nil
}

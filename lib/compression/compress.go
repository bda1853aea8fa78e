// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package compression compresses whole files for the cold tier and the
// dataset source bundles. A packed block is self-describing:
//
//	tag (1 byte) | uncompressed size (uvarint) | payload
//
// The tag selects zstd, LZ4 block, or no compression. [Pack] probes the
// data and picks the algorithm; [Unpack] needs nothing but the block.
package compression

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the compression algorithm of a packed block. Tags are
// stored on disk: changing a value breaks every existing cold file.
type Tag uint8

const (
	// None stores data as-is. Used when probing shows compression
	// would not pay for itself.
	None Tag = 0

	// LZ4 is LZ4 block compression. Picked for moderately
	// compressible data where decode speed matters more than ratio.
	LZ4 Tag = 1

	// Zstd is zstd at the default level. Picked for highly
	// compressible data such as string-heavy annotation frames.
	Zstd Tag = 2
)

// String returns the name of a tag.
func (tag Tag) String() string {
	switch tag {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// Compress compresses data with the given algorithm. For None it
// returns the input unchanged (no copy). Returns an error matching
// [ErrIncompressible] when the output would not be smaller.
func Compress(data []byte, tag Tag) ([]byte, error) {
	switch tag {
	case None:
		return data, nil
	case LZ4:
		return compressLZ4(data)
	case Zstd:
		return compressZstd(data)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

// Decompress reverses [Compress]. uncompressedSize must match the
// original length exactly.
func Decompress(compressed []byte, tag Tag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case None:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("uncompressed block: size %d does not match expected %d",
				len(compressed), uncompressedSize)
		}
		return compressed, nil
	case LZ4:
		return decompressLZ4(compressed, uncompressedSize)
	case Zstd:
		return decompressZstd(compressed, uncompressedSize)
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, ErrIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

// zstd.Encoder and zstd.Decoder are safe for concurrent use through
// EncodeAll and DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("compression: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("compression: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, ErrIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, uncompressedSize int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}

// ErrIncompressible is returned by [Compress] when the compressed
// output is not smaller than the input.
var ErrIncompressible = errors.New("data is incompressible")

// probeLimit bounds how much of the input [selectTag] compresses to
// estimate the ratio.
const probeLimit = 256 << 10

// selectTag probes data and picks an algorithm: zstd when the probe ratio
// is at least 1.5, LZ4 between 1.1 and 1.5, None below.
func selectTag(data []byte) Tag {
	if len(data) == 0 {
		return None
	}
	probe := data
	if len(probe) > probeLimit {
		probe = probe[:probeLimit]
	}
	compressed := zstdEncoder.EncodeAll(probe, nil)
	ratio := float64(len(probe)) / float64(len(compressed))
	switch {
	case ratio >= 1.5:
		return Zstd
	case ratio >= 1.1:
		return LZ4
	default:
		return None
	}
}

// CompressAuto compresses data with the algorithm [selectTag] picks,
// falling back to None when the chosen algorithm does not shrink it.
func CompressAuto(data []byte) ([]byte, Tag, error) {
	tag := selectTag(data)
	compressed, err := Compress(data, tag)
	if err != nil {
		if errors.Is(err, ErrIncompressible) {
			return data, None, nil
		}
		return nil, 0, err
	}
	return compressed, tag, nil
}

// Pack compresses data with [CompressAuto] and prepends the block
// header.
func Pack(data []byte) ([]byte, error) {
	return PackWith(data, selectTag(data))
}

// PackWith is [Pack] with a fixed algorithm. An incompressible input
// is stored with None.
func PackWith(data []byte, tag Tag) ([]byte, error) {
	payload, err := Compress(data, tag)
	if errors.Is(err, ErrIncompressible) {
		payload, tag, err = data, None, nil
	}
	if err != nil {
		return nil, err
	}
	block := make([]byte, 0, 1+binary.MaxVarintLen64+len(payload))
	block = append(block, byte(tag))
	block = binary.AppendUvarint(block, uint64(len(data)))
	return append(block, payload...), nil
}

// Unpack parses the block header and decompresses the payload.
func Unpack(block []byte) ([]byte, error) {
	if len(block) < 2 {
		return nil, fmt.Errorf("packed block too short (%d bytes)", len(block))
	}
	tag := Tag(block[0])
	size, headerLength := binary.Uvarint(block[1:])
	if headerLength <= 0 {
		return nil, fmt.Errorf("packed block has a malformed size header")
	}
	if size > uint64(maxUnpackedSize) {
		return nil, fmt.Errorf("packed block declares %d bytes, limit is %d", size, maxUnpackedSize)
	}
	return Decompress(block[1+headerLength:], tag, int(size))
}

// maxUnpackedSize caps the allocation a corrupt header can request.
const maxUnpackedSize = 1 << 40

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/tiercache/lib/codec"
	"github.com/bureau-foundation/tiercache/lib/compression"
)

// ErrSourceNotFound is returned when a dataset's source file does not
// exist. It is recoverable: the caller reports "not found" and moves
// on.
var ErrSourceNotFound = errors.New("dataset source not found")

// Bundle is the on-disk content of a .dataset source file.
type Bundle struct {
	RowsMeta Frame  `cbor:"rows_meta"`
	ColsMeta Frame  `cbor:"cols_meta"`
	Matrix   Matrix `cbor:"matrix"`

	// Attributes is free-form dataset metadata. Recognized keys:
	// last_modified, release_notes, version, log_base.
	Attributes map[string]any `cbor:"attributes,omitempty"`
}

// Validate checks that the frames and the matrix are well-formed and
// that the matrix labels agree with the annotation frames.
func (b *Bundle) Validate() error {
	if err := b.RowsMeta.Validate(); err != nil {
		return fmt.Errorf("rows-meta: %w", err)
	}
	if err := b.ColsMeta.Validate(); err != nil {
		return fmt.Errorf("cols-meta: %w", err)
	}
	if err := b.Matrix.Validate(); err != nil {
		return fmt.Errorf("matrix: %w", err)
	}
	if len(b.Matrix.RowLabels) != b.RowsMeta.NumRows() {
		return fmt.Errorf("matrix has %d rows, rows-meta has %d", len(b.Matrix.RowLabels), b.RowsMeta.NumRows())
	}
	if len(b.Matrix.ColLabels) != b.ColsMeta.NumRows() {
		return fmt.Errorf("matrix has %d columns, cols-meta has %d", len(b.Matrix.ColLabels), b.ColsMeta.NumRows())
	}
	return nil
}

// EncodeBundle serializes a bundle to the .dataset file format.
func EncodeBundle(bundle *Bundle) ([]byte, error) {
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}
	data, err := codec.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("encoding bundle: %w", err)
	}
	return compression.PackWith(data, compression.Zstd)
}

// DecodeBundle parses the .dataset file format.
func DecodeBundle(data []byte) (*Bundle, error) {
	raw, err := compression.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("decompressing bundle: %w", err)
	}
	var bundle Bundle
	if err := codec.Unmarshal(raw, &bundle); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	if err := bundle.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bundle: %w", err)
	}
	return &bundle, nil
}

// WriteBundle writes a bundle to path, creating parent directories.
// Tests use it to produce source fixtures.
func WriteBundle(path string, bundle *Bundle) error {
	data, err := EncodeBundle(bundle)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating bundle directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}
	return nil
}

// ReadBundle reads and decodes the bundle at path. A missing file
// returns an error wrapping [ErrSourceNotFound].
func ReadBundle(path string) (*Bundle, fs.FileInfo, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("stat source %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading source %s: %w", path, err)
	}
	bundle, err := DecodeBundle(data)
	if err != nil {
		return nil, nil, fmt.Errorf("source %s: %w", path, err)
	}
	return bundle, info, nil
}

// FileSource reads dataset bundles from the filesystem. The zero value
// is usable; Logger defaults to slog.Default().
type FileSource struct {
	Summary SummaryOptions
	Logger  *slog.Logger
}

// ReadSource parses the bundle at path and returns every member. The
// source format cannot be read partially.
func (s *FileSource) ReadSource(ctx context.Context, path string) (Record, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "reading dataset source", "path", path)

	bundle, info, err := ReadBundle(path)
	if err != nil {
		return nil, err
	}
	summary, listing := Summarize(path, info.ModTime(), bundle, s.Summary)

	matrix := bundle.Matrix
	return Record{
		RowsMeta:     &bundle.RowsMeta,
		ColsMeta:     &bundle.ColsMeta,
		MatrixMember: &matrix,
		Summary:      summary,
		IndexListing: listing,
	}, nil
}

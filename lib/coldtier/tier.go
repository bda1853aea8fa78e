// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coldtier

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/tiercache/lib/cachekey"
	"github.com/bureau-foundation/tiercache/lib/dataset"
)

// DefaultMaxRowColumns is the widest frame stored in the row format.
const DefaultMaxRowColumns = 2048

// File extensions by storage format.
const (
	rowsExtension    = ".rows"
	parquetExtension = ".parquet"
	yamlExtension    = ".yaml"
)

var (
	// ErrRawPath is returned for keys that are not eligible for the
	// cold tier.
	ErrRawPath = errors.New("raw path keys have no cold tier")

	// ErrMissingColdFile is returned by Read when a requested member
	// has no file. Callers check Exists first, so this indicates a
	// bug or a cache directory modified underneath the process.
	ErrMissingColdFile = errors.New("cold tier file missing")
)

// Tier is a cold tier rooted at Root. The zero MaxRowColumns means
// DefaultMaxRowColumns; a nil Logger means slog.Default().
type Tier struct {
	Root          string
	MaxRowColumns int
	Logger        *slog.Logger
}

func (t *Tier) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func (t *Tier) maxRowColumns() int {
	if t.MaxRowColumns > 0 {
		return t.MaxRowColumns
	}
	return DefaultMaxRowColumns
}

// Dir returns the directory holding the members of key.
func (t *Tier) Dir(key cachekey.Key) string {
	return filepath.Join(t.Root, filepath.FromSlash(key.Name))
}

// memberPaths returns the candidate files of member, in the order Read
// tries them.
func (t *Tier) memberPaths(key cachekey.Key, member dataset.Member) []string {
	base := filepath.Join(t.Dir(key), string(member))
	if member.IsFrame() {
		return []string{base + rowsExtension, base + parquetExtension}
	}
	return []string{base + yamlExtension}
}

// memberFile returns the existing file of member, or "" if there is
// none.
func (t *Tier) memberFile(key cachekey.Key, member dataset.Member) (string, error) {
	for _, path := range t.memberPaths(key, member) {
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", nil
}

// Exists returns the members of key that have a cold file.
func (t *Tier) Exists(key cachekey.Key) (dataset.MemberSet, error) {
	if key.Class != cachekey.Cached {
		return nil, fmt.Errorf("%s: %w", key, ErrRawPath)
	}
	present := dataset.NewMemberSet()
	for _, member := range dataset.AllMembers {
		path, err := t.memberFile(key, member)
		if err != nil {
			return nil, err
		}
		if path != "" {
			present[member] = true
		}
	}
	return present, nil
}

// Write stores every member of record that has no file yet. Existing
// files are left untouched.
func (t *Tier) Write(key cachekey.Key, record dataset.Record) error {
	if key.Class != cachekey.Cached {
		return fmt.Errorf("%s: %w", key, ErrRawPath)
	}
	if err := os.MkdirAll(t.Dir(key), 0o755); err != nil {
		return fmt.Errorf("creating cold directory for %s: %w", key.Name, err)
	}

	for _, member := range record.Members().Members() {
		existing, err := t.memberFile(key, member)
		if err != nil {
			return err
		}
		if existing != "" {
			continue
		}
		path, data, err := t.encodeMember(key, record, member)
		if err != nil {
			return fmt.Errorf("encoding %s of %s: %w", member, key.Name, err)
		}
		created, err := writeOnce(path, data)
		if err != nil {
			return err
		}
		if created {
			t.logger().Debug("cold member written",
				"dataset", key.Name,
				"member", string(member),
				"path", path,
				"bytes", len(data),
			)
		}
	}
	return nil
}

// encodeMember returns the file path and contents for one member.
func (t *Tier) encodeMember(key cachekey.Key, record dataset.Record, member dataset.Member) (string, []byte, error) {
	base := filepath.Join(t.Dir(key), string(member))
	if !member.IsFrame() {
		value, err := record.Value(member)
		if err != nil {
			return "", nil, err
		}
		data, err := encodeValue(value)
		return base + yamlExtension, data, err
	}

	var (
		frame  *dataset.Frame
		layout *matrixLayout
	)
	if member == dataset.MatrixMember {
		matrix, err := record.Matrix()
		if err != nil {
			return "", nil, err
		}
		if frame, layout, err = matrixFrame(matrix); err != nil {
			return "", nil, err
		}
	} else {
		var err error
		if frame, err = record.Frame(member); err != nil {
			return "", nil, err
		}
	}

	if frame.NumColumns() > t.maxRowColumns() {
		data, err := encodeParquet(frame, layout)
		return base + parquetExtension, data, err
	}
	data, err := encodeRows(frame, layout)
	return base + rowsExtension, data, err
}

// Read loads exactly the requested members of key.
func (t *Tier) Read(key cachekey.Key, members dataset.MemberSet) (dataset.Record, error) {
	if key.Class != cachekey.Cached {
		return nil, fmt.Errorf("%s: %w", key, ErrRawPath)
	}
	record := make(dataset.Record, len(members))
	for _, member := range members.Members() {
		path, err := t.memberFile(key, member)
		if err != nil {
			return nil, err
		}
		if path == "" {
			t.logger().Error("cold read of missing member",
				"dataset", key.Name,
				"member", string(member),
				"dir", t.Dir(key),
			)
			return nil, fmt.Errorf("%w: %s of %s", ErrMissingColdFile, member, key.Name)
		}
		value, err := decodeMember(path, member)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		record[member] = value
	}
	return record, nil
}

func decodeMember(path string, member dataset.Member) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !member.IsFrame() {
		return decodeValue(data)
	}

	var (
		frame  *dataset.Frame
		layout *matrixLayout
	)
	if filepath.Ext(path) == parquetExtension {
		frame, layout, err = decodeParquet(data)
	} else {
		frame, layout, err = decodeRows(data)
	}
	if err != nil {
		return nil, err
	}
	if member == dataset.MatrixMember {
		if layout == nil {
			return nil, fmt.Errorf("matrix file has no matrix layout")
		}
		return layout.matrix(frame)
	}
	return frame, nil
}

// writeOnce creates path with data unless it already exists. The data
// is written to a temporary file and hard-linked into place, so path
// never holds partial contents and an existing file is never replaced.
// Reports whether this call created the file.
func writeOnce(path string, data []byte) (bool, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".member-*.tmp")
	if err != nil {
		return false, fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return false, fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return false, fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmpFile.Close(); err != nil {
		return false, fmt.Errorf("closing %s: %w", tmpPath, err)
	}

	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("linking %s: %w", path, err)
	}
	return true, nil
}

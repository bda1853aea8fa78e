// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tiered

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/bureau-foundation/tiercache/lib/cachekey"
	"github.com/bureau-foundation/tiercache/lib/dataset"
	"github.com/bureau-foundation/tiercache/lib/hotstore"
)

// CSVOptions controls how CSV passthrough parses a file.
type CSVOptions struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune

	// IndexColumn names the column used as the row index. Empty means
	// the index is the row number.
	IndexColumn string
}

// CSVPath returns the file a CSV key reads: the key's source path
// without the dataset extension.
func CSVPath(key cachekey.Key) string {
	return strings.TrimSuffix(key.SourcePath, cachekey.SourceExtension)
}

// CSV returns the file behind key as a frame. On a hot store miss the
// file is parsed and stored with overwrite; a full store still returns
// the parsed frame. CSV files never use the cold tier.
func (c *Cache) CSV(ctx context.Context, key cachekey.Key, options CSVOptions) (*dataset.Frame, error) {
	present, err := c.hot.Contains(ctx, key)
	if err != nil {
		return nil, err
	}
	if present {
		return c.hot.GetFrame(ctx, key)
	}

	path := CSVPath(key)
	c.logger.InfoContext(ctx, "reading CSV source", "path", path)
	frame, err := ReadCSV(path, options)
	if err != nil {
		return nil, err
	}
	err = c.hot.Put(ctx, frame, key, true)
	if errors.Is(err, hotstore.ErrStoreFull) {
		c.logger.WarnContext(ctx, "hot store full, CSV not cached",
			"path", path,
			"object", key.Name,
		)
		return frame, nil
	}
	if err != nil {
		return nil, err
	}
	return frame, nil
}

// ReadCSV parses a CSV file with a header row into a frame. Each
// column gets the narrowest kind every cell parses as: int64, float64,
// bool, or string. A missing file wraps dataset.ErrSourceNotFound.
func ReadCSV(path string, options CSVOptions) (*dataset.Frame, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", dataset.ErrSourceNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("opening CSV %s: %w", path, err)
	}
	defer file.Close()

	frame, err := parseCSV(file, options)
	if err != nil {
		return nil, fmt.Errorf("parsing CSV %s: %w", path, err)
	}
	return frame, nil
}

func parseCSV(r io.Reader, options CSVOptions) (*dataset.Frame, error) {
	reader := csv.NewReader(r)
	if options.Comma != 0 {
		reader.Comma = options.Comma
	}
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no header row")
	}
	header, rows := records[0], records[1:]

	indexPosition := -1
	if options.IndexColumn != "" {
		for i, name := range header {
			if name == options.IndexColumn {
				indexPosition = i
			}
		}
		if indexPosition < 0 {
			return nil, fmt.Errorf("index column %q not in header", options.IndexColumn)
		}
	}

	frame := &dataset.Frame{IndexName: dataset.DefaultIndexName, Index: make([]string, len(rows))}
	for i, row := range rows {
		if indexPosition >= 0 {
			frame.Index[i] = row[indexPosition]
		} else {
			frame.Index[i] = strconv.Itoa(i)
		}
	}
	if indexPosition >= 0 {
		frame.IndexName = header[indexPosition]
	}

	cells := make([]string, len(rows))
	for j, name := range header {
		if j == indexPosition {
			continue
		}
		for i, row := range rows {
			cells[i] = row[j]
		}
		frame.Columns = append(frame.Columns, inferColumn(name, cells))
	}
	return frame, frame.Validate()
}

// inferColumn builds a column of the narrowest kind all cells parse as.
func inferColumn(name string, cells []string) dataset.Column {
	if values, ok := parseAll(cells, func(cell string) (int64, error) {
		return strconv.ParseInt(cell, 10, 64)
	}); ok {
		return dataset.Int64Column(name, values...)
	}
	if values, ok := parseAll(cells, func(cell string) (float64, error) {
		return strconv.ParseFloat(cell, 64)
	}); ok {
		return dataset.Float64Column(name, values...)
	}
	if values, ok := parseAll(cells, strconv.ParseBool); ok {
		return dataset.BoolColumn(name, values...)
	}
	return dataset.StringColumn(name, append([]string(nil), cells...)...)
}

func parseAll[T any](cells []string, parse func(string) (T, error)) ([]T, bool) {
	values := make([]T, len(cells))
	for i, cell := range cells {
		value, err := parse(cell)
		if err != nil {
			return nil, false
		}
		values[i] = value
	}
	return values, true
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coldtier

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/bureau-foundation/tiercache/lib/codec"
	"github.com/bureau-foundation/tiercache/lib/compression"
	"github.com/bureau-foundation/tiercache/lib/dataset"
)

// rowsHeader opens a row file. It is followed by Rows CBOR arrays,
// each holding the index label and then one value per column. Matrix
// is set only in matrix files.
type rowsHeader struct {
	IndexName string         `cbor:"index_name"`
	Columns   []columnHeader `cbor:"columns"`
	Rows      int            `cbor:"rows"`
	Matrix    *matrixLayout  `cbor:"matrix,omitempty"`
}

type columnHeader struct {
	Name string       `cbor:"name"`
	Kind dataset.Kind `cbor:"kind"`
}

func encodeRows(frame *dataset.Frame, layout *matrixLayout) ([]byte, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}

	header := rowsHeader{
		IndexName: frame.IndexName,
		Columns:   make([]columnHeader, len(frame.Columns)),
		Rows:      frame.NumRows(),
		Matrix:    layout,
	}
	for i := range frame.Columns {
		header.Columns[i] = columnHeader{Name: frame.Columns[i].Name, Kind: frame.Columns[i].Kind}
	}

	var buffer bytes.Buffer
	encoder := codec.NewEncoder(&buffer)
	if err := encoder.Encode(header); err != nil {
		return nil, fmt.Errorf("encoding row header: %w", err)
	}
	row := make([]any, len(frame.Columns)+1)
	for i := range frame.Index {
		row[0] = frame.Index[i]
		for j := range frame.Columns {
			row[j+1] = frame.Columns[j].Value(i)
		}
		if err := encoder.Encode(row); err != nil {
			return nil, fmt.Errorf("encoding row %d: %w", i, err)
		}
	}

	return compression.Pack(buffer.Bytes())
}

func decodeRows(data []byte) (*dataset.Frame, *matrixLayout, error) {
	raw, err := compression.Unpack(data)
	if err != nil {
		return nil, nil, err
	}
	decoder := codec.NewDecoder(bytes.NewReader(raw))

	var header rowsHeader
	if err := decoder.Decode(&header); err != nil {
		return nil, nil, fmt.Errorf("decoding row header: %w", err)
	}
	frame := &dataset.Frame{
		IndexName: header.IndexName,
		Index:     make([]string, 0, header.Rows),
		Columns:   make([]dataset.Column, len(header.Columns)),
	}
	for j, column := range header.Columns {
		if !column.Kind.Valid() {
			return nil, nil, fmt.Errorf("column %q has unknown kind %q", column.Name, column.Kind)
		}
		frame.Columns[j] = dataset.Column{Name: column.Name, Kind: column.Kind}
	}

	for i := 0; i < header.Rows; i++ {
		var row []any
		if err := decoder.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, nil, fmt.Errorf("row file ends after %d of %d rows", i, header.Rows)
			}
			return nil, nil, fmt.Errorf("decoding row %d: %w", i, err)
		}
		if len(row) != len(frame.Columns)+1 {
			return nil, nil, fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(frame.Columns)+1)
		}
		label, ok := row[0].(string)
		if !ok {
			return nil, nil, fmt.Errorf("row %d: index label is %T, want string", i, row[0])
		}
		frame.Index = append(frame.Index, label)
		for j := range frame.Columns {
			if err := frame.Columns[j].AppendValue(coerce(row[j+1], frame.Columns[j].Kind)); err != nil {
				return nil, nil, fmt.Errorf("row %d: %w", i, err)
			}
		}
	}
	return frame, header.Matrix, nil
}

// coerce converts a generically decoded CBOR number to the Go type of
// kind. CBOR keeps float widths and integer signs but not Go types.
func coerce(value any, kind dataset.Kind) any {
	switch kind {
	case dataset.KindFloat64:
		switch typed := value.(type) {
		case float32:
			return float64(typed)
		case int64:
			return float64(typed)
		}
	case dataset.KindFloat32:
		switch typed := value.(type) {
		case float64:
			return float32(typed)
		case int64:
			return float32(typed)
		}
	case dataset.KindInt64:
		if typed, ok := value.(uint64); ok {
			return int64(typed)
		}
	case dataset.KindInt32:
		switch typed := value.(type) {
		case int64:
			return int32(typed)
		case uint64:
			return int32(typed)
		}
	}
	return value
}

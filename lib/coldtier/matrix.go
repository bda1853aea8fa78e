// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coldtier

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/bureau-foundation/tiercache/lib/codec"
	"github.com/bureau-foundation/tiercache/lib/dataset"
)

// metadataMatrixLayout is the Parquet key-value metadata entry that
// carries a matrix layout.
const metadataMatrixLayout = "tiercache.matrix"

// matrixLayout records what the positional columns of a matrix file
// stand for. Matrix column labels may repeat, so the frame stored on
// disk names its columns by position and the labels live here.
type matrixLayout struct {
	DType     dataset.Kind `cbor:"dtype"`
	ColLabels []string     `cbor:"col_labels"`
}

// matrixFrame converts matrix to a frame with columns named "0", "1",
// and so on, and returns the layout needed to rebuild it.
func matrixFrame(matrix *dataset.Matrix) (*dataset.Frame, *matrixLayout, error) {
	frame, err := matrix.Frame()
	if err != nil {
		return nil, nil, err
	}
	for j := range frame.Columns {
		frame.Columns[j].Name = strconv.Itoa(j)
	}
	layout := &matrixLayout{
		DType:     matrix.Values.DType,
		ColLabels: append([]string{}, matrix.ColLabels...),
	}
	return frame, layout, nil
}

// matrix rebuilds the matrix stored as frame.
func (l *matrixLayout) matrix(frame *dataset.Frame) (*dataset.Matrix, error) {
	if len(l.ColLabels) != frame.NumColumns() {
		return nil, fmt.Errorf("matrix layout has %d column labels, file has %d columns", len(l.ColLabels), frame.NumColumns())
	}
	matrix, err := dataset.MatrixFromFrame(frame, l.DType)
	if err != nil {
		return nil, err
	}
	matrix.ColLabels = append([]string{}, l.ColLabels...)
	return matrix, nil
}

func (l *matrixLayout) metadataValue() (string, error) {
	data, err := codec.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("encoding matrix layout: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func parseMatrixLayout(value string) (*matrixLayout, error) {
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decoding matrix layout: %w", err)
	}
	var layout matrixLayout
	if err := codec.Unmarshal(data, &layout); err != nil {
		return nil, fmt.Errorf("decoding matrix layout: %w", err)
	}
	return &layout, nil
}

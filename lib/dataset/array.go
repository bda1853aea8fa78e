// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"fmt"
)

// Array is a dense, row-major numeric array. Exactly the slice
// matching DType is populated and holds Len() elements.
type Array struct {
	Shape    []int     `cbor:"shape"`
	DType    Kind      `cbor:"dtype"`
	Float64s []float64 `cbor:"float64s,omitempty"`
	Float32s []float32 `cbor:"float32s,omitempty"`
	Int64s   []int64   `cbor:"int64s,omitempty"`
	Int32s   []int32   `cbor:"int32s,omitempty"`
}

// Len returns the number of elements implied by Shape.
func (a *Array) Len() int {
	if len(a.Shape) == 0 {
		return 0
	}
	count := 1
	for _, dimension := range a.Shape {
		count *= dimension
	}
	return count
}

// dataLen returns the length of the populated slice.
func (a *Array) dataLen() int {
	switch a.DType {
	case KindFloat64:
		return len(a.Float64s)
	case KindFloat32:
		return len(a.Float32s)
	case KindInt64:
		return len(a.Int64s)
	case KindInt32:
		return len(a.Int32s)
	}
	return -1
}

// Validate checks the dtype and that the data length matches Shape.
func (a *Array) Validate() error {
	if !a.DType.IsNumeric() {
		return fmt.Errorf("array dtype %q is not numeric", a.DType)
	}
	for _, dimension := range a.Shape {
		if dimension < 0 {
			return fmt.Errorf("array shape %v has a negative dimension", a.Shape)
		}
	}
	if a.dataLen() != a.Len() {
		return fmt.Errorf("array of shape %v needs %d elements, has %d", a.Shape, a.Len(), a.dataLen())
	}
	return nil
}

// Matrix is the numeric matrix member of a dataset: a two-dimensional
// array with one label per row and per column. In the hot store the
// values and the labels are three separate objects.
type Matrix struct {
	Values    Array    `cbor:"values"`
	RowLabels []string `cbor:"row_labels"`
	ColLabels []string `cbor:"col_labels"`
}

// Validate checks that Values is a 2-D array matching the labels.
func (m *Matrix) Validate() error {
	if err := m.Values.Validate(); err != nil {
		return err
	}
	if len(m.Values.Shape) != 2 {
		return fmt.Errorf("matrix values have %d dimensions, want 2", len(m.Values.Shape))
	}
	if m.Values.Shape[0] != len(m.RowLabels) || m.Values.Shape[1] != len(m.ColLabels) {
		return fmt.Errorf("matrix shape %v does not match %d row labels and %d column labels",
			m.Values.Shape, len(m.RowLabels), len(m.ColLabels))
	}
	return nil
}

// Frame converts the matrix to a frame with the row labels as index
// and one column per column label.
func (m *Matrix) Frame() (*Frame, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	rows, cols := m.Values.Shape[0], m.Values.Shape[1]
	frame := &Frame{
		IndexName: DefaultIndexName,
		Index:     append([]string(nil), m.RowLabels...),
		Columns:   make([]Column, cols),
	}
	for j := 0; j < cols; j++ {
		column := Column{Name: m.ColLabels[j], Kind: m.Values.DType}
		switch m.Values.DType {
		case KindFloat64:
			column.Float64s = gatherColumn(m.Values.Float64s, rows, cols, j)
		case KindFloat32:
			column.Float32s = gatherColumn(m.Values.Float32s, rows, cols, j)
		case KindInt64:
			column.Int64s = gatherColumn(m.Values.Int64s, rows, cols, j)
		case KindInt32:
			column.Int32s = gatherColumn(m.Values.Int32s, rows, cols, j)
		}
		frame.Columns[j] = column
	}
	return frame, nil
}

// MatrixFromFrame converts a frame whose columns all have kind dtype
// back into a matrix. Column names become the column labels and need
// not be unique. The dtype is explicit so a matrix without columns
// keeps it.
func MatrixFromFrame(frame *Frame, dtype Kind) (*Matrix, error) {
	if !dtype.IsNumeric() {
		return nil, fmt.Errorf("matrix dtype %q is not numeric", dtype)
	}
	rows, cols := frame.NumRows(), frame.NumColumns()
	for j := range frame.Columns {
		if frame.Columns[j].Len() != rows {
			return nil, fmt.Errorf("matrix frame column %d has %d values, index has %d", j, frame.Columns[j].Len(), rows)
		}
	}

	matrix := &Matrix{
		Values:    Array{Shape: []int{rows, cols}, DType: dtype},
		RowLabels: append([]string(nil), frame.Index...),
		ColLabels: frame.ColumnNames(),
	}
	switch dtype {
	case KindFloat64:
		matrix.Values.Float64s = make([]float64, rows*cols)
	case KindFloat32:
		matrix.Values.Float32s = make([]float32, rows*cols)
	case KindInt64:
		matrix.Values.Int64s = make([]int64, rows*cols)
	case KindInt32:
		matrix.Values.Int32s = make([]int32, rows*cols)
	}
	for j := range frame.Columns {
		column := &frame.Columns[j]
		if column.Kind != dtype {
			return nil, fmt.Errorf("matrix frame column %q is %s, want %s", column.Name, column.Kind, dtype)
		}
		switch dtype {
		case KindFloat64:
			scatterColumn(matrix.Values.Float64s, column.Float64s, cols, j)
		case KindFloat32:
			scatterColumn(matrix.Values.Float32s, column.Float32s, cols, j)
		case KindInt64:
			scatterColumn(matrix.Values.Int64s, column.Int64s, cols, j)
		case KindInt32:
			scatterColumn(matrix.Values.Int32s, column.Int32s, cols, j)
		}
	}
	return matrix, nil
}

func gatherColumn[T any](values []T, rows, cols, j int) []T {
	column := make([]T, rows)
	for i := 0; i < rows; i++ {
		column[i] = values[i*cols+j]
	}
	return column
}

func scatterColumn[T any](values, column []T, cols, j int) {
	for i, value := range column {
		values[i*cols+j] = value
	}
}

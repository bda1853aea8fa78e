// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package datasettest builds small synthetic datasets for tests.
package datasettest

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/tiercache/lib/dataset"
)

// Bundle returns a deterministic bundle with the given number of rows
// (samples) and columns (features). Rows-meta has a string "group"
// column cycling through three values and an int64 "depth" column;
// cols-meta has a string "symbol" column and a bool "marker" column.
// Matrix values are float32 row*cols+col.
func Bundle(rows, cols int) *dataset.Bundle {
	rowLabels := make([]string, rows)
	groups := make([]string, rows)
	depths := make([]int64, rows)
	for i := range rowLabels {
		rowLabels[i] = fmt.Sprintf("sample-%04d", i)
		groups[i] = []string{"alpha", "beta", "gamma"}[i%3]
		depths[i] = int64(1000 + i)
	}

	colLabels := make([]string, cols)
	symbols := make([]string, cols)
	markers := make([]bool, cols)
	for j := range colLabels {
		colLabels[j] = fmt.Sprintf("feature-%04d", j)
		symbols[j] = fmt.Sprintf("SYM%d", j)
		markers[j] = j%2 == 0
	}

	values := make([]float32, rows*cols)
	for i := range values {
		values[i] = float32(i)
	}

	return &dataset.Bundle{
		RowsMeta: dataset.Frame{
			IndexName: "sample",
			Index:     rowLabels,
			Columns: []dataset.Column{
				dataset.StringColumn("group", groups...),
				dataset.Int64Column("depth", depths...),
			},
		},
		ColsMeta: dataset.Frame{
			IndexName: "feature",
			Index:     append([]string(nil), colLabels...),
			Columns: []dataset.Column{
				dataset.StringColumn("symbol", symbols...),
				dataset.BoolColumn("marker", markers...),
			},
		},
		Matrix: dataset.Matrix{
			Values: dataset.Array{
				Shape:    []int{rows, cols},
				DType:    dataset.KindFloat32,
				Float32s: values,
			},
			RowLabels: append([]string(nil), rowLabels...),
			ColLabels: colLabels,
		},
		Attributes: map[string]any{
			"release_notes": "synthetic",
			"log_base":      int64(2),
		},
	}
}

// WriteSource writes [Bundle](rows, cols) to dataRoot/name.dataset
// and returns the file path.
func WriteSource(t *testing.T, dataRoot, name string, rows, cols int) string {
	t.Helper()
	path := filepath.Join(dataRoot, name+".dataset")
	if err := dataset.WriteBundle(path, Bundle(rows, cols)); err != nil {
		t.Fatalf("writing source bundle %s: %v", path, err)
	}
	return path
}

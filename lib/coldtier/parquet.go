// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coldtier

import (
	"bytes"
	"context"
	"fmt"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/memory"
	"github.com/apache/arrow/go/v11/parquet"
	"github.com/apache/arrow/go/v11/parquet/compress"
	"github.com/apache/arrow/go/v11/parquet/file"
	"github.com/apache/arrow/go/v11/parquet/pqarrow"

	"github.com/bureau-foundation/tiercache/lib/dataset"
	"github.com/bureau-foundation/tiercache/lib/objcodec"
)

var parquetAllocator = memory.NewGoAllocator()

// encodeParquet writes frame as a single-row-group Parquet file with
// the same column layout as the hot store's Arrow encoding. A non-nil
// layout is stored in the file's key-value metadata.
func encodeParquet(frame *dataset.Frame, layout *matrixLayout) ([]byte, error) {
	record, err := objcodec.FrameRecord(parquetAllocator, frame)
	if err != nil {
		return nil, err
	}
	defer record.Release()

	if layout != nil {
		value, err := layout.metadataValue()
		if err != nil {
			return nil, err
		}
		metadata := record.Schema().Metadata()
		keys := append(append([]string{}, metadata.Keys()...), metadataMatrixLayout)
		values := append(append([]string{}, metadata.Values()...), value)
		withLayout := arrow.NewMetadata(keys, values)
		schema := arrow.NewSchema(record.Schema().Fields(), &withLayout)
		record = array.NewRecord(schema, record.Columns(), record.NumRows())
		defer record.Release()
	}

	var buffer bytes.Buffer
	properties := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Zstd),
		parquet.WithAllocator(parquetAllocator),
	)
	writer, err := pqarrow.NewFileWriter(record.Schema(), &buffer, properties, pqarrow.DefaultWriterProps())
	if err != nil {
		return nil, fmt.Errorf("creating parquet writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("writing parquet record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing parquet writer: %w", err)
	}
	return buffer.Bytes(), nil
}

func decodeParquet(data []byte) (*dataset.Frame, *matrixLayout, error) {
	parquetFile, err := file.NewParquetReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("opening parquet file: %w", err)
	}
	defer parquetFile.Close()

	reader, err := pqarrow.NewFileReader(parquetFile, pqarrow.ArrowReadProperties{}, parquetAllocator)
	if err != nil {
		return nil, nil, fmt.Errorf("creating parquet reader: %w", err)
	}
	table, err := reader.ReadTable(context.Background())
	if err != nil {
		return nil, nil, fmt.Errorf("reading parquet table: %w", err)
	}
	defer table.Release()

	var layout *matrixLayout
	metadata := table.Schema().Metadata()
	if index := metadata.FindKey(metadataMatrixLayout); index >= 0 {
		if layout, err = parseMatrixLayout(metadata.Values()[index]); err != nil {
			return nil, nil, err
		}
	}

	frame, err := objcodec.FrameFromSchema(table.Schema())
	if err != nil {
		return nil, nil, err
	}
	chunkSize := table.NumRows()
	if chunkSize < 1 {
		chunkSize = 1
	}
	records := array.NewTableReader(table, chunkSize)
	defer records.Release()
	for records.Next() {
		part, err := objcodec.FrameFromRecord(records.Record())
		if err != nil {
			return nil, nil, err
		}
		if err := frame.AppendRows(part); err != nil {
			return nil, nil, err
		}
	}
	if frame.Index == nil {
		frame.Index = []string{}
	}
	return frame, layout, nil
}

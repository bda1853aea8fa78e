// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objcodec

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apache/arrow/go/v11/arrow"
	"github.com/apache/arrow/go/v11/arrow/array"
	"github.com/apache/arrow/go/v11/arrow/ipc"
	"github.com/apache/arrow/go/v11/arrow/memory"

	"github.com/bureau-foundation/tiercache/lib/dataset"
)

// IndexColumnPrefix marks the column that carries a frame's row index
// in columnar form. The index name follows the prefix.
const IndexColumnPrefix = "__index__:"

// Schema metadata keys.
const (
	metadataShape = "tiercache.shape"
	metadataDims  = "tiercache.dims"
	metadataDType = "tiercache.dtype"
)

// arrayValuesColumn is the single column of an array payload.
const arrayValuesColumn = "values"

var allocator = memory.NewGoAllocator()

// arrowType maps a column kind to its Arrow type.
func arrowType(kind dataset.Kind) (arrow.DataType, error) {
	switch kind {
	case dataset.KindFloat64:
		return arrow.PrimitiveTypes.Float64, nil
	case dataset.KindFloat32:
		return arrow.PrimitiveTypes.Float32, nil
	case dataset.KindInt64:
		return arrow.PrimitiveTypes.Int64, nil
	case dataset.KindInt32:
		return arrow.PrimitiveTypes.Int32, nil
	case dataset.KindString:
		return arrow.BinaryTypes.String, nil
	case dataset.KindBool:
		return arrow.FixedWidthTypes.Boolean, nil
	default:
		return nil, fmt.Errorf("no Arrow type for column kind %q", kind)
	}
}

// kindOf maps an Arrow type back to a column kind.
func kindOf(dataType arrow.DataType) (dataset.Kind, error) {
	switch dataType.ID() {
	case arrow.FLOAT64:
		return dataset.KindFloat64, nil
	case arrow.FLOAT32:
		return dataset.KindFloat32, nil
	case arrow.INT64:
		return dataset.KindInt64, nil
	case arrow.INT32:
		return dataset.KindInt32, nil
	case arrow.STRING:
		return dataset.KindString, nil
	case arrow.BOOL:
		return dataset.KindBool, nil
	default:
		return "", fmt.Errorf("unsupported Arrow column type %s", dataType)
	}
}

// FrameSchema returns the Arrow schema of a frame: the index column
// followed by one field per column.
func FrameSchema(frame *dataset.Frame) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(frame.Columns)+1)
	fields = append(fields, arrow.Field{Name: IndexColumnPrefix + frame.IndexName, Type: arrow.BinaryTypes.String})
	for i := range frame.Columns {
		dataType, err := arrowType(frame.Columns[i].Kind)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", frame.Columns[i].Name, err)
		}
		fields = append(fields, arrow.Field{Name: frame.Columns[i].Name, Type: dataType})
	}
	metadata := arrow.NewMetadata([]string{metadataShape}, []string{ShapeFrame.String()})
	return arrow.NewSchema(fields, &metadata), nil
}

// FrameRecord converts a frame to an Arrow record with the layout of
// [FrameSchema]. The caller must Release the record.
func FrameRecord(mem memory.Allocator, frame *dataset.Frame) (arrow.Record, error) {
	if err := frame.Validate(); err != nil {
		return nil, err
	}
	schema, err := FrameSchema(frame)
	if err != nil {
		return nil, err
	}
	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	builder.Field(0).(*array.StringBuilder).AppendValues(frame.Index, nil)
	for i := range frame.Columns {
		appendColumn(builder.Field(i+1), &frame.Columns[i])
	}
	return builder.NewRecord(), nil
}

func appendColumn(builder array.Builder, column *dataset.Column) {
	switch column.Kind {
	case dataset.KindFloat64:
		builder.(*array.Float64Builder).AppendValues(column.Float64s, nil)
	case dataset.KindFloat32:
		builder.(*array.Float32Builder).AppendValues(column.Float32s, nil)
	case dataset.KindInt64:
		builder.(*array.Int64Builder).AppendValues(column.Int64s, nil)
	case dataset.KindInt32:
		builder.(*array.Int32Builder).AppendValues(column.Int32s, nil)
	case dataset.KindString:
		builder.(*array.StringBuilder).AppendValues(column.Strings, nil)
	case dataset.KindBool:
		builder.(*array.BooleanBuilder).AppendValues(column.Bools, nil)
	}
}

// FrameFromSchema returns an empty frame with the columns of schema.
// A leading index column is recognized by [IndexColumnPrefix].
func FrameFromSchema(schema *arrow.Schema) (*dataset.Frame, error) {
	frame := &dataset.Frame{IndexName: dataset.DefaultIndexName}
	for i, field := range schema.Fields() {
		if i == 0 && strings.HasPrefix(field.Name, IndexColumnPrefix) {
			frame.IndexName = strings.TrimPrefix(field.Name, IndexColumnPrefix)
			continue
		}
		kind, err := kindOf(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		frame.Columns = append(frame.Columns, dataset.Column{Name: field.Name, Kind: kind})
	}
	return frame, nil
}

// FrameFromRecord copies an Arrow record into a frame. Records without
// an index column get the row numbers as index.
func FrameFromRecord(record arrow.Record) (*dataset.Frame, error) {
	frame, err := FrameFromSchema(record.Schema())
	if err != nil {
		return nil, err
	}
	rows := int(record.NumRows())
	first := 0
	if record.NumCols() > 0 && strings.HasPrefix(record.ColumnName(0), IndexColumnPrefix) {
		index, ok := record.Column(0).(*array.String)
		if !ok {
			return nil, fmt.Errorf("index column is %s, want utf8", record.Column(0).DataType())
		}
		frame.Index = make([]string, rows)
		for i := range frame.Index {
			frame.Index[i] = index.Value(i)
		}
		first = 1
	} else {
		frame.Index = make([]string, rows)
		for i := range frame.Index {
			frame.Index[i] = strconv.Itoa(i)
		}
	}

	for i := range frame.Columns {
		if err := copyColumn(&frame.Columns[i], record.Column(first+i)); err != nil {
			return nil, err
		}
	}
	return frame, frame.Validate()
}

func copyColumn(column *dataset.Column, values arrow.Array) error {
	if values.NullN() > 0 {
		return fmt.Errorf("column %q has %d null values", column.Name, values.NullN())
	}
	switch typed := values.(type) {
	case *array.Float64:
		column.Float64s = append([]float64(nil), typed.Float64Values()...)
	case *array.Float32:
		column.Float32s = append([]float32(nil), typed.Float32Values()...)
	case *array.Int64:
		column.Int64s = append([]int64(nil), typed.Int64Values()...)
	case *array.Int32:
		column.Int32s = append([]int32(nil), typed.Int32Values()...)
	case *array.String:
		column.Strings = make([]string, typed.Len())
		for i := range column.Strings {
			column.Strings[i] = typed.Value(i)
		}
	case *array.Boolean:
		column.Bools = make([]bool, typed.Len())
		for i := range column.Bools {
			column.Bools[i] = typed.Value(i)
		}
	default:
		return fmt.Errorf("column %q: unsupported Arrow array %T", column.Name, values)
	}
	return nil
}

func writeFrame(w io.Writer, frame *dataset.Frame) error {
	record, err := FrameRecord(allocator, frame)
	if err != nil {
		return fmt.Errorf("encoding frame: %w", err)
	}
	defer record.Release()
	return writeRecord(w, record)
}

func writeRecord(w io.Writer, record arrow.Record) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(record.Schema()), ipc.WithAllocator(allocator))
	if err := writer.Write(record); err != nil {
		writer.Close()
		return fmt.Errorf("writing Arrow record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing Arrow stream: %w", err)
	}
	return nil
}

// checkShape verifies the shape recorded in the schema metadata.
func checkShape(schema *arrow.Schema, want Shape) error {
	metadata := schema.Metadata()
	index := metadata.FindKey(metadataShape)
	if index < 0 {
		return fmt.Errorf("%w: stream has no shape metadata, want %s", ErrShapeMismatch, want)
	}
	if got := metadata.Values()[index]; got != want.String() {
		return fmt.Errorf("%w: stream holds %s, want %s", ErrShapeMismatch, got, want)
	}
	return nil
}

func metadataValue(schema *arrow.Schema, key string) (string, bool) {
	metadata := schema.Metadata()
	index := metadata.FindKey(key)
	if index < 0 {
		return "", false
	}
	return metadata.Values()[index], true
}

func readFrame(r io.Reader) (*dataset.Frame, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(allocator))
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	defer reader.Release()

	if err := checkShape(reader.Schema(), ShapeFrame); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	frame, err := FrameFromSchema(reader.Schema())
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	for reader.Next() {
		part, err := FrameFromRecord(reader.Record())
		if err != nil {
			return nil, fmt.Errorf("decoding frame: %w", err)
		}
		if err := frame.AppendRows(part); err != nil {
			return nil, fmt.Errorf("decoding frame: %w", err)
		}
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return frame, nil
}

func writeArray(w io.Writer, values *dataset.Array) error {
	if err := values.Validate(); err != nil {
		return fmt.Errorf("encoding array: %w", err)
	}
	dataType, err := arrowType(values.DType)
	if err != nil {
		return fmt.Errorf("encoding array: %w", err)
	}

	dims := make([]string, len(values.Shape))
	for i, dimension := range values.Shape {
		dims[i] = strconv.Itoa(dimension)
	}
	metadata := arrow.NewMetadata(
		[]string{metadataShape, metadataDims, metadataDType},
		[]string{ShapeArray.String(), strings.Join(dims, ","), string(values.DType)},
	)
	schema := arrow.NewSchema([]arrow.Field{{Name: arrayValuesColumn, Type: dataType}}, &metadata)

	builder := array.NewRecordBuilder(allocator, schema)
	defer builder.Release()
	appendColumn(builder.Field(0), &dataset.Column{
		Kind:     values.DType,
		Float64s: values.Float64s,
		Float32s: values.Float32s,
		Int64s:   values.Int64s,
		Int32s:   values.Int32s,
	})
	record := builder.NewRecord()
	defer record.Release()
	return writeRecord(w, record)
}

func readArray(r io.Reader) (*dataset.Array, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(allocator))
	if err != nil {
		return nil, fmt.Errorf("decoding array: %w", err)
	}
	defer reader.Release()

	schema := reader.Schema()
	if err := checkShape(schema, ShapeArray); err != nil {
		return nil, fmt.Errorf("decoding array: %w", err)
	}
	result := &dataset.Array{}
	dtype, _ := metadataValue(schema, metadataDType)
	result.DType = dataset.Kind(dtype)
	dims, _ := metadataValue(schema, metadataDims)
	if dims != "" {
		for _, field := range strings.Split(dims, ",") {
			dimension, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("decoding array: malformed dimension %q: %w", field, err)
			}
			result.Shape = append(result.Shape, dimension)
		}
	}

	for reader.Next() {
		record := reader.Record()
		if record.NumCols() != 1 {
			return nil, fmt.Errorf("decoding array: record has %d columns, want 1", record.NumCols())
		}
		part := dataset.Column{Name: arrayValuesColumn, Kind: result.DType}
		if err := copyColumn(&part, record.Column(0)); err != nil {
			return nil, fmt.Errorf("decoding array: %w", err)
		}
		result.Float64s = append(result.Float64s, part.Float64s...)
		result.Float32s = append(result.Float32s, part.Float32s...)
		result.Int64s = append(result.Int64s, part.Int64s...)
		result.Int32s = append(result.Int32s, part.Int32s...)
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decoding array: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("decoding array: %w", err)
	}
	return result, nil
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package objcodec

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bureau-foundation/tiercache/lib/dataset"
)

func sampleFrame() *dataset.Frame {
	return &dataset.Frame{
		IndexName: "sample",
		Index:     []string{"s1", "s2", "s3"},
		Columns: []dataset.Column{
			dataset.StringColumn("group", "a", "b", "a"),
			dataset.Float64Column("score", 0.5, -1.25, 3),
			dataset.Float32Column("ratio", 1, 2, 3),
			dataset.Int64Column("depth", 10, 20, 1<<40),
			dataset.Int32Column("lane", 1, 2, 3),
			dataset.BoolColumn("passed", true, false, true),
		},
	}
}

func TestFrameRoundtrip(t *testing.T) {
	frame := sampleFrame()
	data, err := Encode(frame)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if !reflect.DeepEqual(decoded, frame) {
		t.Errorf("frame roundtrip mismatch:\n got %+v\nwant %+v", decoded, frame)
	}
}

func TestFramePreservesColumnOrder(t *testing.T) {
	frame := &dataset.Frame{
		IndexName: "",
		Index:     []string{"r"},
		Columns: []dataset.Column{
			dataset.Int64Column("z", 1),
			dataset.Int64Column("a", 2),
			dataset.Int64Column("m", 3),
		},
	}
	data, err := Encode(frame)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got := decoded.ColumnNames(); !reflect.DeepEqual(got, []string{"z", "a", "m"}) {
		t.Errorf("column order = %v", got)
	}
	if decoded.IndexName != "" {
		t.Errorf("IndexName = %q, want empty", decoded.IndexName)
	}
}

func TestEmptyFrameRoundtrip(t *testing.T) {
	frame := &dataset.Frame{
		IndexName: "sample",
		Columns:   []dataset.Column{{Name: "group", Kind: dataset.KindString}},
	}
	data, err := Encode(frame)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if decoded.NumRows() != 0 || !reflect.DeepEqual(decoded.ColumnNames(), []string{"group"}) {
		t.Errorf("decoded %d rows, columns %v", decoded.NumRows(), decoded.ColumnNames())
	}
	if decoded.Columns[0].Kind != dataset.KindString {
		t.Errorf("column kind = %s, want string", decoded.Columns[0].Kind)
	}
}

func TestArrayRoundtrip(t *testing.T) {
	arrays := map[string]*dataset.Array{
		"float64": {Shape: []int{2, 3}, DType: dataset.KindFloat64, Float64s: []float64{1, 2, 3, 4, 5, 6}},
		"float32": {Shape: []int{3, 1}, DType: dataset.KindFloat32, Float32s: []float32{0.25, 0.5, 0.75}},
		"int64":   {Shape: []int{4}, DType: dataset.KindInt64, Int64s: []int64{-1, 0, 1, 1 << 50}},
		"int32":   {Shape: []int{1, 2, 2}, DType: dataset.KindInt32, Int32s: []int32{1, 2, 3, 4}},
	}
	for name, array := range arrays {
		t.Run(name, func(t *testing.T) {
			data, err := Encode(array)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			decoded, err := DecodeArray(data)
			if err != nil {
				t.Fatalf("DecodeArray: %v", err)
			}
			if !reflect.DeepEqual(decoded, array) {
				t.Errorf("array roundtrip mismatch:\n got %+v\nwant %+v", decoded, array)
			}
		})
	}
}

func TestArrayRejectsInvalid(t *testing.T) {
	array := &dataset.Array{Shape: []int{2, 2}, DType: dataset.KindFloat64, Float64s: []float64{1}}
	if _, err := Encode(array); err == nil {
		t.Error("Encode should reject an array whose data does not match its shape")
	}
}

func TestValueRoundtrip(t *testing.T) {
	value := map[string]any{
		"rows":    int64(3),
		"project": "proj",
		"labels":  []any{"a", "b"},
		"nested":  map[string]any{"base": int64(2)},
	}
	data, err := Encode(value)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(data, ShapeValue)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !reflect.DeepEqual(decoded, value) {
		t.Errorf("value roundtrip mismatch:\n got %#v\nwant %#v", decoded, value)
	}

	labels := []string{"x", "y"}
	data, err = Encode(labels)
	if err != nil {
		t.Fatalf("Encode labels: %v", err)
	}
	var decodedLabels []string
	if err := DecodeValue(data, &decodedLabels); err != nil {
		t.Fatalf("DecodeValue: %v", err)
	}
	if !reflect.DeepEqual(decodedLabels, labels) {
		t.Errorf("labels = %v, want %v", decodedLabels, labels)
	}
}

func TestWrongShapeFails(t *testing.T) {
	frameData, err := Encode(sampleFrame())
	if err != nil {
		t.Fatal(err)
	}
	arrayData, err := Encode(&dataset.Array{Shape: []int{1}, DType: dataset.KindInt32, Int32s: []int32{7}})
	if err != nil {
		t.Fatal(err)
	}
	valueData, err := Encode(map[string]any{"k": "v"})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		data  []byte
		shape Shape
	}{
		{"frame as array", frameData, ShapeArray},
		{"frame as value", frameData, ShapeValue},
		{"array as frame", arrayData, ShapeFrame},
		{"array as value", arrayData, ShapeValue},
		{"value as frame", valueData, ShapeFrame},
		{"value as array", valueData, ShapeArray},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := Decode(test.data, test.shape)
			if !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("Decode: got %v, want ErrShapeMismatch", err)
			}
		})
	}
}

func TestMalformedBufferFails(t *testing.T) {
	data, err := Encode(sampleFrame())
	if err != nil {
		t.Fatal(err)
	}
	// Cut into the record batch body, before the end-of-stream marker.
	if _, err := DecodeFrame(data[:len(data)-20]); err == nil {
		t.Error("DecodeFrame of a truncated buffer should fail")
	}
	if _, err := Decode([]byte{0xbf}, ShapeValue); err == nil {
		t.Error("Decode of truncated CBOR should fail")
	}
}

func TestSizeMatchesEncoding(t *testing.T) {
	for name, value := range map[string]any{
		"frame": sampleFrame(),
		"array": &dataset.Array{Shape: []int{2}, DType: dataset.KindFloat64, Float64s: []float64{1, 2}},
		"value": map[string]any{"k": []any{"v"}},
	} {
		size, err := Size(value)
		if err != nil {
			t.Fatalf("%s: Size: %v", name, err)
		}
		data, err := Encode(value)
		if err != nil {
			t.Fatalf("%s: Encode: %v", name, err)
		}
		if int64(len(data)) != size {
			t.Errorf("%s: Size = %d, encoding is %d bytes", name, size, len(data))
		}
	}
}

func TestEncodeIntoShortBuffer(t *testing.T) {
	frame := sampleFrame()
	size, err := Size(frame)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := EncodeInto(frame, make([]byte, size-1)); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("EncodeInto short frame buffer: got %v, want ErrBufferTooSmall", err)
	}
	if _, err := EncodeInto(map[string]any{"k": "v"}, make([]byte, 2)); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("EncodeInto short value buffer: got %v, want ErrBufferTooSmall", err)
	}
}

func TestShapeOf(t *testing.T) {
	tests := []struct {
		value any
		want  Shape
	}{
		{&dataset.Frame{}, ShapeFrame},
		{dataset.Frame{}, ShapeFrame},
		{&dataset.Array{}, ShapeArray},
		{map[string]any{}, ShapeValue},
		{[]string{"a"}, ShapeValue},
	}
	for _, test := range tests {
		if got := ShapeOf(test.value); got != test.want {
			t.Errorf("ShapeOf(%T) = %s, want %s", test.value, got, test.want)
		}
	}
}

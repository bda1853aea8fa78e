// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"fmt"
)

// Kind is the element type of a frame column or a numeric array.
type Kind string

const (
	KindFloat64 Kind = "float64"
	KindFloat32 Kind = "float32"
	KindInt64   Kind = "int64"
	KindInt32   Kind = "int32"
	KindString  Kind = "string"
	KindBool    Kind = "bool"
)

// IsNumeric reports whether k can be the dtype of an [Array].
func (k Kind) IsNumeric() bool {
	switch k {
	case KindFloat64, KindFloat32, KindInt64, KindInt32:
		return true
	}
	return false
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k.IsNumeric() || k == KindString || k == KindBool
}

// Column is one named, typed column of a [Frame]. Exactly the slice
// matching Kind is populated.
type Column struct {
	Name     string    `cbor:"name"`
	Kind     Kind      `cbor:"kind"`
	Float64s []float64 `cbor:"float64s,omitempty"`
	Float32s []float32 `cbor:"float32s,omitempty"`
	Int64s   []int64   `cbor:"int64s,omitempty"`
	Int32s   []int32   `cbor:"int32s,omitempty"`
	Strings  []string  `cbor:"strings,omitempty"`
	Bools    []bool    `cbor:"bools,omitempty"`
}

func Float64Column(name string, values ...float64) Column {
	return Column{Name: name, Kind: KindFloat64, Float64s: values}
}

func Float32Column(name string, values ...float32) Column {
	return Column{Name: name, Kind: KindFloat32, Float32s: values}
}

func Int64Column(name string, values ...int64) Column {
	return Column{Name: name, Kind: KindInt64, Int64s: values}
}

func Int32Column(name string, values ...int32) Column {
	return Column{Name: name, Kind: KindInt32, Int32s: values}
}

func StringColumn(name string, values ...string) Column {
	return Column{Name: name, Kind: KindString, Strings: values}
}

func BoolColumn(name string, values ...bool) Column {
	return Column{Name: name, Kind: KindBool, Bools: values}
}

// Len returns the number of values in the column.
func (c *Column) Len() int {
	switch c.Kind {
	case KindFloat64:
		return len(c.Float64s)
	case KindFloat32:
		return len(c.Float32s)
	case KindInt64:
		return len(c.Int64s)
	case KindInt32:
		return len(c.Int32s)
	case KindString:
		return len(c.Strings)
	case KindBool:
		return len(c.Bools)
	}
	return 0
}

// Value returns the i-th value as its Go type.
func (c *Column) Value(i int) any {
	switch c.Kind {
	case KindFloat64:
		return c.Float64s[i]
	case KindFloat32:
		return c.Float32s[i]
	case KindInt64:
		return c.Int64s[i]
	case KindInt32:
		return c.Int32s[i]
	case KindString:
		return c.Strings[i]
	case KindBool:
		return c.Bools[i]
	}
	return nil
}

// AppendValue appends v, which must have the Go type matching Kind.
func (c *Column) AppendValue(v any) error {
	ok := false
	switch c.Kind {
	case KindFloat64:
		var typed float64
		if typed, ok = v.(float64); ok {
			c.Float64s = append(c.Float64s, typed)
		}
	case KindFloat32:
		var typed float32
		if typed, ok = v.(float32); ok {
			c.Float32s = append(c.Float32s, typed)
		}
	case KindInt64:
		var typed int64
		if typed, ok = v.(int64); ok {
			c.Int64s = append(c.Int64s, typed)
		}
	case KindInt32:
		var typed int32
		if typed, ok = v.(int32); ok {
			c.Int32s = append(c.Int32s, typed)
		}
	case KindString:
		var typed string
		if typed, ok = v.(string); ok {
			c.Strings = append(c.Strings, typed)
		}
	case KindBool:
		var typed bool
		if typed, ok = v.(bool); ok {
			c.Bools = append(c.Bools, typed)
		}
	default:
		return fmt.Errorf("column %q has unknown kind %q", c.Name, c.Kind)
	}
	if !ok {
		return fmt.Errorf("column %q (%s): cannot append %T", c.Name, c.Kind, v)
	}
	return nil
}

// appendColumn appends the values of other, which must have the same
// kind.
func (c *Column) appendColumn(other *Column) error {
	if other.Kind != c.Kind {
		return fmt.Errorf("column %q: cannot append %s values to %s column", c.Name, other.Kind, c.Kind)
	}
	c.Float64s = append(c.Float64s, other.Float64s...)
	c.Float32s = append(c.Float32s, other.Float32s...)
	c.Int64s = append(c.Int64s, other.Int64s...)
	c.Int32s = append(c.Int32s, other.Int32s...)
	c.Strings = append(c.Strings, other.Strings...)
	c.Bools = append(c.Bools, other.Bools...)
	return nil
}

// DefaultIndexName is used for frames whose row index has no name.
const DefaultIndexName = "index"

// Frame is a tabular value: a string row index plus ordered, typed
// columns of equal length.
type Frame struct {
	IndexName string   `cbor:"index_name"`
	Index     []string `cbor:"index"`
	Columns   []Column `cbor:"columns"`
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	return len(f.Index)
}

// NumColumns returns the number of columns, excluding the index.
func (f *Frame) NumColumns() int {
	return len(f.Columns)
}

// ColumnNames returns the column names in order.
func (f *Frame) ColumnNames() []string {
	names := make([]string, len(f.Columns))
	for i := range f.Columns {
		names[i] = f.Columns[i].Name
	}
	return names
}

// Column returns the column with the given name.
func (f *Frame) Column(name string) (*Column, bool) {
	for i := range f.Columns {
		if f.Columns[i].Name == name {
			return &f.Columns[i], true
		}
	}
	return nil, false
}

// Validate checks that every column is well-formed, has a unique name,
// and matches the index length.
func (f *Frame) Validate() error {
	seen := make(map[string]bool, len(f.Columns))
	for i := range f.Columns {
		column := &f.Columns[i]
		if !column.Kind.Valid() {
			return fmt.Errorf("column %q has unknown kind %q", column.Name, column.Kind)
		}
		if seen[column.Name] {
			return fmt.Errorf("duplicate column name %q", column.Name)
		}
		seen[column.Name] = true
		if column.Len() != len(f.Index) {
			return fmt.Errorf("column %q has %d values, index has %d", column.Name, column.Len(), len(f.Index))
		}
	}
	return nil
}

// AppendRows appends the rows of other, which must have the same
// column layout.
func (f *Frame) AppendRows(other *Frame) error {
	if len(other.Columns) != len(f.Columns) {
		return fmt.Errorf("cannot append frame with %d columns to frame with %d", len(other.Columns), len(f.Columns))
	}
	for i := range f.Columns {
		if other.Columns[i].Name != f.Columns[i].Name {
			return fmt.Errorf("column %d: name %q does not match %q", i, other.Columns[i].Name, f.Columns[i].Name)
		}
		if err := f.Columns[i].appendColumn(&other.Columns[i]); err != nil {
			return err
		}
	}
	f.Index = append(f.Index, other.Index...)
	return nil
}

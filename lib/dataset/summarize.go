// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SummaryOptions selects the per-column statistics [Summarize] adds
// on top of the fixed summary fields.
type SummaryOptions struct {
	// UniqueColumns are rows-meta columns whose distinct-value count
	// goes into the summary and whose distinct values go into the
	// index listing.
	UniqueColumns []string `yaml:"unique_columns"`

	// GroupColumns are rows-meta columns whose per-value row counts
	// go into the summary as "<column> <value>".
	GroupColumns []string `yaml:"group_columns"`

	// GroupMinCount is the exclusive lower bound on a group's row
	// count for it to be reported.
	GroupMinCount int `yaml:"group_min_count"`
}

// DefaultGroupMinCount is the GroupMinCount used when none is
// configured.
const DefaultGroupMinCount = 10

// Summarize derives the summary and index-listing members of a
// dataset. path and modTime describe the source file.
//
// Every value is int64, string, or []any of strings, which is the form
// structured values take after a trip through the hot or cold tier.
func Summarize(path string, modTime time.Time, bundle *Bundle, options SummaryOptions) (summary, listing map[string]any) {
	rows := &bundle.RowsMeta
	cols := &bundle.ColsMeta

	summary = map[string]any{
		"id":                 path,
		"project":            filepath.Base(filepath.Dir(path)),
		"filename":           strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		"rows":               int64(rows.NumRows()),
		"columns":            int64(cols.NumRows()),
		"row annotations":    int64(rows.NumColumns()),
		"column annotations": int64(cols.NumColumns()),
		"last modified":      lastModified(bundle.Attributes, modTime),
		"release notes":      stringAttribute(bundle.Attributes, "release_notes", ""),
		"version":            stringAttribute(bundle.Attributes, "version", versionFromPath(path)),
		"log-base":           intAttribute(bundle.Attributes, "log_base"),
	}
	listing = map[string]any{
		"rows":               stringList(rows.Index),
		"row annotations":    stringList(rows.ColumnNames()),
		"column annotations": stringList(cols.ColumnNames()),
	}

	for _, name := range options.UniqueColumns {
		column, ok := rows.Column(name)
		if !ok {
			continue
		}
		unique := uniqueValues(column)
		summary[name] = int64(len(unique))
		listing[name] = stringList(unique)
	}

	minCount := options.GroupMinCount
	if minCount <= 0 {
		minCount = DefaultGroupMinCount
	}
	for _, name := range options.GroupColumns {
		column, ok := rows.Column(name)
		if !ok {
			continue
		}
		counts := make(map[string]int64)
		for i := 0; i < column.Len(); i++ {
			counts[cellString(column, i)]++
		}
		for value, count := range counts {
			if count > int64(minCount) {
				summary[name+" "+value] = count
			}
		}
	}
	return summary, listing
}

// lastModified returns the date part of the last_modified attribute,
// or the file's modification date.
func lastModified(attributes map[string]any, modTime time.Time) string {
	if value, ok := attributes["last_modified"].(string); ok && value != "" {
		date, _, _ := strings.Cut(value, " ")
		return date
	}
	return modTime.Format(time.DateOnly)
}

// versionFromPath returns the text after the last "-" in path.
func versionFromPath(path string) string {
	return path[strings.LastIndex(path, "-")+1:]
}

func stringAttribute(attributes map[string]any, name, fallback string) string {
	if value, ok := attributes[name]; ok {
		if text, ok := value.(string); ok {
			return text
		}
		return fmt.Sprint(value)
	}
	return fallback
}

func intAttribute(attributes map[string]any, name string) int64 {
	switch value := attributes[name].(type) {
	case int64:
		return value
	case uint64:
		return int64(value)
	case int:
		return int64(value)
	case float64:
		return int64(value)
	case float32:
		return int64(value)
	}
	return 0
}

func cellString(column *Column, i int) string {
	if column.Kind == KindString {
		return column.Strings[i]
	}
	return fmt.Sprint(column.Value(i))
}

// uniqueValues returns the distinct values of a column as strings, in
// order of first appearance.
func uniqueValues(column *Column) []string {
	seen := make(map[string]bool)
	var unique []string
	for i := 0; i < column.Len(); i++ {
		value := cellString(column, i)
		if !seen[value] {
			seen[value] = true
			unique = append(unique, value)
		}
	}
	return unique
}

func stringList(values []string) []any {
	list := make([]any, len(values))
	for i, value := range values {
		list[i] = value
	}
	return list
}

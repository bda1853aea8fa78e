// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/tiercache/lib/cachekey"
	"github.com/bureau-foundation/tiercache/lib/dataset"
	"github.com/bureau-foundation/tiercache/lib/tiered"
)

// maxPrintedColumns bounds the columns get prints for a frame.
const maxPrintedColumns = 8

func usageCommand() *command {
	return &command{
		name:    "usage",
		summary: "Show hot store capacity and utilization",
		usage:   "usage",
		action: func(ctx context.Context, env *environment, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("usage takes no arguments")
			}
			usage, err := env.hot.Usage(ctx)
			if err != nil {
				return err
			}
			writeUsage(os.Stdout, env.hot.Endpoint(), usage.Capacity, usage.Used, usage.ObjectCount, usage.Utilization)
			return nil
		},
	}
}

func writeUsage(w io.Writer, endpoint string, capacity, used int64, objects int, utilization float64) {
	writer := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "endpoint\t%s\n", endpoint)
	fmt.Fprintf(writer, "capacity\t%s\n", humanize.IBytes(uint64(capacity)))
	fmt.Fprintf(writer, "used\t%s (%.1f%%)\n", humanize.IBytes(uint64(used)), utilization*100)
	fmt.Fprintf(writer, "objects\t%s\n", humanize.Comma(int64(objects)))
	writer.Flush()
}

func listCommand() *command {
	var sortBy string
	return &command{
		name:    "list",
		summary: "List hot store objects with their registered names",
		usage:   "list [--sort name|size]",
		flags: func(flagSet *pflag.FlagSet) {
			flagSet.StringVar(&sortBy, "sort", "name", "sort order: name or size")
		},
		action: func(ctx context.Context, env *environment, args []string) error {
			if sortBy != "name" && sortBy != "size" {
				return fmt.Errorf("--sort must be name or size, got %q", sortBy)
			}
			objects, err := env.hot.List(ctx)
			if err != nil {
				return err
			}

			rows := make([]listRow, 0, len(objects))
			for id, info := range objects {
				rows = append(rows, listRow{
					id:         id,
					size:       info.Size + info.MetadataSize,
					references: info.ReferenceCount,
					name:       info.Name,
				})
			}
			sortRows(rows, sortBy)
			writeList(os.Stdout, rows)
			return nil
		},
	}
}

type listRow struct {
	id         cachekey.ID
	size       int64
	references int
	name       string
}

func sortRows(rows []listRow, sortBy string) {
	sort.Slice(rows, func(i, j int) bool {
		if sortBy == "size" && rows[i].size != rows[j].size {
			return rows[i].size > rows[j].size
		}
		if rows[i].name != rows[j].name {
			return rows[i].name < rows[j].name
		}
		return rows[i].id.Hex() < rows[j].id.Hex()
	})
}

func writeList(w io.Writer, rows []listRow) {
	writer := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	fmt.Fprintf(writer, "ID\tSIZE\tREFS\tNAME\n")
	for _, row := range rows {
		name := row.name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%d\t%s\n",
			row.id.Hex()[:12], humanize.IBytes(uint64(row.size)), row.references, name)
	}
	writer.Flush()
}

func getCommand() *command {
	var (
		memberName string
		rowLimit   int
	)
	return &command{
		name:    "get",
		summary: "Print one member of a dataset, loading it through the tiers",
		usage:   "get <name> [--member summary] [--rows 10]",
		flags: func(flagSet *pflag.FlagSet) {
			flagSet.StringVar(&memberName, "member", string(dataset.Summary), "member to print: rows-meta, cols-meta, matrix, summary, index-listing")
			flagSet.IntVar(&rowLimit, "rows", 10, "maximum rows printed for tabular members")
		},
		action: func(ctx context.Context, env *environment, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("get takes exactly one dataset name")
			}
			member, err := dataset.ParseMember(memberName)
			if err != nil {
				return err
			}
			key := env.keys.Derive(args[0])

			switch member {
			case dataset.Summary, dataset.IndexListing:
				var value map[string]any
				if member == dataset.Summary {
					value, err = env.cache.Summary(ctx, key)
				} else {
					value, err = env.cache.IndexListing(ctx, key)
				}
				if err != nil {
					return err
				}
				return writeValue(os.Stdout, value)
			case dataset.RowsMeta, dataset.ColsMeta:
				var frame *dataset.Frame
				if member == dataset.RowsMeta {
					frame, err = env.cache.RowsMeta(ctx, key)
				} else {
					frame, err = env.cache.ColsMeta(ctx, key)
				}
				if err != nil {
					return err
				}
				writeFrame(os.Stdout, frame, rowLimit)
				return nil
			default:
				matrix, err := env.cache.Matrix(ctx, key)
				if err != nil {
					return err
				}
				fmt.Printf("matrix %v %s\n", matrix.Values.Shape, matrix.Values.DType)
				frame, err := matrix.Frame()
				if err != nil {
					return err
				}
				writeFrame(os.Stdout, frame, rowLimit)
				return nil
			}
		},
	}
}

func writeValue(w io.Writer, value map[string]any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return err
	}
	return encoder.Close()
}

// writeFrame prints up to rowLimit rows and maxPrintedColumns columns
// of frame, followed by its full dimensions.
func writeFrame(w io.Writer, frame *dataset.Frame, rowLimit int) {
	columns := frame.Columns
	if len(columns) > maxPrintedColumns {
		columns = columns[:maxPrintedColumns]
	}
	rows := frame.NumRows()
	if rowLimit >= 0 && rows > rowLimit {
		rows = rowLimit
	}

	writer := tabwriter.NewWriter(w, 2, 0, 2, ' ', 0)
	header := []string{frame.IndexName}
	for i := range columns {
		header = append(header, truncate(columns[i].Name, 20))
	}
	fmt.Fprintln(writer, strings.Join(header, "\t"))
	for row := range rows {
		cells := []string{truncate(frame.Index[row], 30)}
		for i := range columns {
			cells = append(cells, truncate(fmt.Sprint(columns[i].Value(row)), 20))
		}
		fmt.Fprintln(writer, strings.Join(cells, "\t"))
	}
	writer.Flush()
	fmt.Fprintf(w, "[%s rows x %s columns]\n",
		humanize.Comma(int64(frame.NumRows())), humanize.Comma(int64(frame.NumColumns())))
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

// parseMembers converts member names to a set. An empty list means
// every member.
func parseMembers(names []string) (dataset.MemberSet, error) {
	if len(names) == 0 {
		return dataset.AllMemberSet(), nil
	}
	set := dataset.NewMemberSet()
	for _, name := range names {
		member, err := dataset.ParseMember(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		set[member] = true
	}
	return set, nil
}

func warmCommand() *command {
	var memberNames []string
	return &command{
		name:    "warm",
		summary: "Load datasets into the hot store and cold tier",
		usage:   "warm <name>... [--members rows-meta,summary]",
		flags: func(flagSet *pflag.FlagSet) {
			flagSet.StringSliceVar(&memberNames, "members", nil, "members to load (default: all)")
		},
		action: func(ctx context.Context, env *environment, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("warm needs at least one dataset name")
			}
			members, err := parseMembers(memberNames)
			if err != nil {
				return err
			}
			for _, name := range args {
				key := env.keys.Derive(name)
				record, err := env.cache.Materialize(ctx, key, members)
				if err != nil {
					return fmt.Errorf("warming %s: %w", name, err)
				}
				fmt.Printf("%s %s\n", key.Name, record.Members())
			}
			return nil
		},
	}
}

func deleteCommand() *command {
	var memberNames []string
	return &command{
		name:    "delete",
		summary: "Remove dataset members from the hot store",
		usage:   "delete <name>... [--members matrix]",
		flags: func(flagSet *pflag.FlagSet) {
			flagSet.StringSliceVar(&memberNames, "members", nil, "members to remove (default: all)")
		},
		action: func(ctx context.Context, env *environment, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("delete needs at least one dataset name")
			}
			members, err := parseMembers(memberNames)
			if err != nil {
				return err
			}
			var keys []cachekey.Key
			for _, name := range args {
				key := env.keys.Derive(name)
				for _, member := range members.Members() {
					keys = append(keys, tiered.MemberKeys(key, member)...)
				}
			}
			if err := env.hot.Delete(ctx, keys...); err != nil {
				return err
			}
			env.logger.Info("deleted hot store objects", "datasets", len(args), "objects", len(keys))
			return nil
		},
	}
}

func importCSVCommand() *command {
	var (
		delimiter   string
		indexColumn string
		rowLimit    int
	)
	return &command{
		name:    "import-csv",
		summary: "Load a CSV file into the hot store and print it",
		usage:   "import-csv <name> [--delimiter ,] [--index-column column]",
		flags: func(flagSet *pflag.FlagSet) {
			flagSet.StringVar(&delimiter, "delimiter", ",", "field delimiter (a single character)")
			flagSet.StringVar(&indexColumn, "index-column", "", "column used as the row index (default: row number)")
			flagSet.IntVar(&rowLimit, "rows", 10, "maximum rows printed")
		},
		action: func(ctx context.Context, env *environment, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("import-csv takes exactly one file name")
			}
			comma, size := utf8.DecodeRuneInString(delimiter)
			if comma == utf8.RuneError || size != len(delimiter) {
				return fmt.Errorf("--delimiter must be a single character, got %q", delimiter)
			}
			key := env.keys.Derive(args[0])
			frame, err := env.cache.CSV(ctx, key, tiered.CSVOptions{
				Comma:       comma,
				IndexColumn: indexColumn,
			})
			if err != nil {
				return err
			}
			writeFrame(os.Stdout, frame, rowLimit)
			return nil
		},
	}
}

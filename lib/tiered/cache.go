// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tiered

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/tiercache/lib/cachekey"
	"github.com/bureau-foundation/tiercache/lib/coldtier"
	"github.com/bureau-foundation/tiercache/lib/dataset"
	"github.com/bureau-foundation/tiercache/lib/hotstore"
)

// SourceReader parses an authoritative dataset file into all of its
// members. A missing file is an error wrapping
// dataset.ErrSourceNotFound.
type SourceReader interface {
	ReadSource(ctx context.Context, path string) (dataset.Record, error)
}

// Hot store key suffixes. The matrix member occupies three objects:
// the values array and the two label lists.
const (
	suffixRowLabels = "/row-labels"
	suffixColLabels = "/col-labels"
)

// Options configures New.
type Options struct {
	Hot    *hotstore.Client
	Cold   *coldtier.Tier
	Source SourceReader

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Cache is the tiered read path over one hot store, one cold tier,
// and one source reader.
type Cache struct {
	hot    *hotstore.Client
	cold   *coldtier.Tier
	source SourceReader
	logger *slog.Logger
}

// New creates a Cache. Hot, Cold, and Source are required.
func New(opts Options) (*Cache, error) {
	if opts.Hot == nil || opts.Cold == nil || opts.Source == nil {
		return nil, fmt.Errorf("tiered cache needs a hot store, a cold tier, and a source reader")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Cache{
		hot:    opts.Hot,
		cold:   opts.Cold,
		source: opts.Source,
		logger: opts.Logger,
	}, nil
}

// MemberKeys returns the hot store keys backing member of key. The
// matrix member has three: values, row labels, and column labels.
func MemberKeys(key cachekey.Key, member dataset.Member) []cachekey.Key {
	base := cachekey.WithMember(key, "/"+string(member))
	if member != dataset.MatrixMember {
		return []cachekey.Key{base}
	}
	return []cachekey.Key{
		base,
		cachekey.WithMember(key, suffixRowLabels),
		cachekey.WithMember(key, suffixColLabels),
	}
}

// Materialize brings the requested members of key into the hot store
// and returns them. Members already in the hot store are not checked:
// callers that want to skip work on a hit use the accessors.
//
// A member that does not fit in the hot store is logged and left out
// of the hot store; it is still present in the returned record.
func (c *Cache) Materialize(ctx context.Context, key cachekey.Key, members dataset.MemberSet) (dataset.Record, error) {
	if len(members) == 0 {
		return dataset.Record{}, nil
	}

	record, err := c.load(ctx, key, members)
	if err != nil {
		return nil, err
	}
	requested := record.Only(members)
	if err := c.promote(ctx, key, requested); err != nil {
		return nil, err
	}
	return requested, nil
}

// load returns a record holding at least the requested members, from
// the cold tier when possible and from the source otherwise.
func (c *Cache) load(ctx context.Context, key cachekey.Key, members dataset.MemberSet) (dataset.Record, error) {
	if key.Class == cachekey.Cached {
		present, err := c.cold.Exists(key)
		if err != nil {
			return nil, err
		}
		if present.HasAll(members) {
			c.logger.DebugContext(ctx, "reading cold tier",
				"dataset", key.Name,
				"members", members.String(),
			)
			return c.cold.Read(key, members)
		}
	}

	record, err := c.source.ReadSource(ctx, key.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("reading source of %s: %w", key.Name, err)
	}
	if !record.Members().HasAll(members) {
		return nil, fmt.Errorf("source of %s lacks members %s", key.Name, members)
	}
	if key.Class == cachekey.Cached {
		if err := c.cold.Write(key, record); err != nil {
			return nil, fmt.Errorf("writing cold tier for %s: %w", key.Name, err)
		}
	}
	return record, nil
}

// promote writes every member of record to the hot store without
// overwriting.
func (c *Cache) promote(ctx context.Context, key cachekey.Key, record dataset.Record) error {
	c.logger.InfoContext(ctx, "promoting to hot store",
		"dataset", key.Name,
		"members", record.Members().String(),
	)
	for _, member := range record.Members().Members() {
		objects, err := hotObjects(record, member)
		if err != nil {
			return err
		}
		keys := MemberKeys(key, member)
		for i, object := range objects {
			err := c.hot.Put(ctx, object, keys[i], false)
			if errors.Is(err, hotstore.ErrStoreFull) {
				c.logger.WarnContext(ctx, "hot store full, member not cached",
					"dataset", key.Name,
					"member", string(member),
					"object", keys[i].Name,
				)
				continue
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// hotObjects splits a member into the values stored under
// MemberKeys(key, member), in the same order.
func hotObjects(record dataset.Record, member dataset.Member) ([]any, error) {
	switch {
	case member == dataset.MatrixMember:
		matrix, err := record.Matrix()
		if err != nil {
			return nil, err
		}
		return []any{&matrix.Values, matrix.RowLabels, matrix.ColLabels}, nil
	case member.IsFrame():
		frame, err := record.Frame(member)
		if err != nil {
			return nil, err
		}
		return []any{frame}, nil
	default:
		value, err := record.Value(member)
		if err != nil {
			return nil, err
		}
		return []any{value}, nil
	}
}

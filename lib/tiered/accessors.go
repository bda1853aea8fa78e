// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package tiered

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/tiercache/lib/cachekey"
	"github.com/bureau-foundation/tiercache/lib/dataset"
	"github.com/bureau-foundation/tiercache/lib/hotstore"
)

// ensure makes member of key present in the hot store. On a hit it
// returns a nil record. On a miss it materializes the member (or, for
// raw paths, the whole dataset, which a raw read produces anyway) and
// returns what it materialized.
func (c *Cache) ensure(ctx context.Context, key cachekey.Key, member dataset.Member) (dataset.Record, error) {
	present, err := c.hot.Contains(ctx, MemberKeys(key, member)...)
	if err != nil {
		return nil, err
	}
	if present {
		return nil, nil
	}

	request := dataset.NewMemberSet(member)
	if key.Class == cachekey.RawPath {
		request = dataset.AllMemberSet()
	}
	return c.Materialize(ctx, key, request)
}

// missing reports whether err means an object was skipped by
// promotion and should be served from the materialized record.
func missing(err error, record dataset.Record) bool {
	return record != nil && errors.Is(err, hotstore.ErrNotFound)
}

// Summary returns the summary member of key.
func (c *Cache) Summary(ctx context.Context, key cachekey.Key) (map[string]any, error) {
	return c.value(ctx, key, dataset.Summary)
}

// IndexListing returns the index-listing member of key.
func (c *Cache) IndexListing(ctx context.Context, key cachekey.Key) (map[string]any, error) {
	return c.value(ctx, key, dataset.IndexListing)
}

func (c *Cache) value(ctx context.Context, key cachekey.Key, member dataset.Member) (map[string]any, error) {
	record, err := c.ensure(ctx, key, member)
	if err != nil {
		return nil, err
	}
	var value map[string]any
	err = c.hot.GetValue(ctx, MemberKeys(key, member)[0], &value)
	if missing(err, record) {
		return record.Value(member)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s of %s: %w", member, key.Name, err)
	}
	return value, nil
}

// RowsMeta returns the row metadata frame of key.
func (c *Cache) RowsMeta(ctx context.Context, key cachekey.Key) (*dataset.Frame, error) {
	return c.frame(ctx, key, dataset.RowsMeta)
}

// ColsMeta returns the column metadata frame of key.
func (c *Cache) ColsMeta(ctx context.Context, key cachekey.Key) (*dataset.Frame, error) {
	return c.frame(ctx, key, dataset.ColsMeta)
}

func (c *Cache) frame(ctx context.Context, key cachekey.Key, member dataset.Member) (*dataset.Frame, error) {
	record, err := c.ensure(ctx, key, member)
	if err != nil {
		return nil, err
	}
	frame, err := c.hot.GetFrame(ctx, MemberKeys(key, member)[0])
	if missing(err, record) {
		return record.Frame(member)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s of %s: %w", member, key.Name, err)
	}
	return frame, nil
}

// Matrix returns the labeled matrix of key. The values and both label
// lists must all be in the hot store for a hit.
func (c *Cache) Matrix(ctx context.Context, key cachekey.Key) (*dataset.Matrix, error) {
	record, err := c.ensure(ctx, key, dataset.MatrixMember)
	if err != nil {
		return nil, err
	}
	matrix, err := c.hotMatrix(ctx, key)
	if missing(err, record) {
		return record.Matrix()
	}
	if err != nil {
		return nil, fmt.Errorf("reading matrix of %s: %w", key.Name, err)
	}
	return matrix, nil
}

func (c *Cache) hotMatrix(ctx context.Context, key cachekey.Key) (*dataset.Matrix, error) {
	keys := MemberKeys(key, dataset.MatrixMember)
	values, err := c.hot.GetArray(ctx, keys[0])
	if err != nil {
		return nil, err
	}
	matrix := &dataset.Matrix{Values: *values}
	if err := c.hot.GetValue(ctx, keys[1], &matrix.RowLabels); err != nil {
		return nil, err
	}
	if err := c.hot.GetValue(ctx, keys[2], &matrix.ColLabels); err != nil {
		return nil, err
	}
	if err := matrix.Validate(); err != nil {
		return nil, fmt.Errorf("hot store matrix of %s: %w", key.Name, err)
	}
	return matrix, nil
}

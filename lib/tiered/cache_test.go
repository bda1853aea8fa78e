// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package tiered_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/bureau-foundation/tiercache/lib/cachekey"
	"github.com/bureau-foundation/tiercache/lib/coldtier"
	"github.com/bureau-foundation/tiercache/lib/dataset"
	"github.com/bureau-foundation/tiercache/lib/dataset/datasettest"
	"github.com/bureau-foundation/tiercache/lib/hotstore"
	"github.com/bureau-foundation/tiercache/lib/storeserver/storetest"
	"github.com/bureau-foundation/tiercache/lib/tiered"
)

// countingSource counts source reads.
type countingSource struct {
	inner dataset.FileSource
	reads atomic.Int32
}

func (s *countingSource) ReadSource(ctx context.Context, path string) (dataset.Record, error) {
	s.reads.Add(1)
	return s.inner.ReadSource(ctx, path)
}

type fixture struct {
	cache    *tiered.Cache
	hot      *hotstore.Client
	cold     *coldtier.Tier
	source   *countingSource
	dataRoot string
	keys     cachekey.Deriver
}

func newFixture(t *testing.T, capacity int64) *fixture {
	t.Helper()
	daemon := storetest.Start(t, capacity)
	hot, err := hotstore.Dial(context.Background(), hotstore.Options{
		Endpoint: daemon.SocketPath,
		Logger:   storetest.Logger(),
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	dataRoot := t.TempDir()
	f := &fixture{
		hot:      hot,
		cold:     &coldtier.Tier{Root: t.TempDir(), Logger: storetest.Logger()},
		source:   &countingSource{inner: dataset.FileSource{Logger: storetest.Logger()}},
		dataRoot: dataRoot,
		keys:     cachekey.Deriver{DataRoot: dataRoot},
	}
	f.cache, err = tiered.New(tiered.Options{
		Hot:    f.hot,
		Cold:   f.cold,
		Source: f.source,
		Logger: storetest.Logger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

// hotMembers returns the members of key whose hot store keys are all
// present.
func (f *fixture) hotMembers(t *testing.T, key cachekey.Key) dataset.MemberSet {
	t.Helper()
	present := dataset.NewMemberSet()
	for _, member := range dataset.AllMembers {
		ok, err := f.hot.Contains(context.Background(), tiered.MemberKeys(key, member)...)
		if err != nil {
			t.Fatalf("Contains: %v", err)
		}
		if ok {
			present[member] = true
		}
	}
	return present
}

func TestColdMissReadsSourceAndPromotesOnlyRequested(t *testing.T) {
	f := newFixture(t, 8<<20)
	ctx := context.Background()
	datasettest.WriteSource(t, f.dataRoot, "project/cells", 30, 6)
	key := f.keys.Derive("project/cells")

	summary, err := f.cache.Summary(ctx, key)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary["rows"] != int64(30) || summary["columns"] != int64(6) {
		t.Errorf("summary = %v", summary)
	}
	if reads := f.source.reads.Load(); reads != 1 {
		t.Errorf("source reads = %d, want 1", reads)
	}

	cold, err := f.cold.Exists(key)
	if err != nil {
		t.Fatalf("cold Exists: %v", err)
	}
	if !cold.HasAll(dataset.AllMemberSet()) {
		t.Errorf("cold members = %s, want all", cold)
	}
	if hot := f.hotMembers(t, key); !reflect.DeepEqual(hot.Members(), []dataset.Member{dataset.Summary}) {
		t.Errorf("hot members = %s, want [summary]", hot)
	}
}

func TestSecondMemberComesFromColdTier(t *testing.T) {
	f := newFixture(t, 8<<20)
	ctx := context.Background()
	datasettest.WriteSource(t, f.dataRoot, "project/cells", 30, 6)
	key := f.keys.Derive("project/cells")

	if _, err := f.cache.Summary(ctx, key); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	matrix, err := f.cache.Matrix(ctx, key)
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if reads := f.source.reads.Load(); reads != 1 {
		t.Errorf("source reads = %d, want 1 (matrix must come from the cold tier)", reads)
	}
	want := datasettest.Bundle(30, 6).Matrix
	if !reflect.DeepEqual(matrix, &want) {
		t.Errorf("matrix mismatch:\n got %+v\nwant %+v", matrix, want)
	}
	hot := f.hotMembers(t, key)
	if !hot.Has(dataset.MatrixMember) || !hot.Has(dataset.Summary) {
		t.Errorf("hot members = %s, want matrix and summary", hot)
	}
	if hot.Has(dataset.RowsMeta) || hot.Has(dataset.ColsMeta) || hot.Has(dataset.IndexListing) {
		t.Errorf("hot members = %s, unrequested members promoted", hot)
	}
}

func TestDuplicateMatrixColumnLabels(t *testing.T) {
	f := newFixture(t, 8<<20)
	ctx := context.Background()
	bundle := datasettest.Bundle(4, 3)
	bundle.Matrix.ColLabels[1] = bundle.Matrix.ColLabels[0]
	if err := dataset.WriteBundle(filepath.Join(f.dataRoot, "project/repeated.dataset"), bundle); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}
	key := f.keys.Derive("project/repeated")

	if _, err := f.cache.Summary(ctx, key); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	cold, err := f.cold.Exists(key)
	if err != nil {
		t.Fatalf("cold Exists: %v", err)
	}
	if !cold.Has(dataset.MatrixMember) {
		t.Errorf("cold members = %s, want matrix written", cold)
	}

	matrix, err := f.cache.Matrix(ctx, key)
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if !reflect.DeepEqual(matrix, &bundle.Matrix) {
		t.Errorf("matrix mismatch:\n got %+v\nwant %+v", matrix, bundle.Matrix)
	}
	if reads := f.source.reads.Load(); reads != 1 {
		t.Errorf("source reads = %d, want 1 (matrix must come from the cold tier)", reads)
	}
}

func TestHotHitSkipsLowerTiers(t *testing.T) {
	f := newFixture(t, 8<<20)
	ctx := context.Background()
	datasettest.WriteSource(t, f.dataRoot, "project/cells", 10, 4)
	key := f.keys.Derive("project/cells")

	first, err := f.cache.RowsMeta(ctx, key)
	if err != nil {
		t.Fatalf("RowsMeta: %v", err)
	}
	// Removing the cold tier proves the second call never touches it.
	if err := os.RemoveAll(f.cold.Root); err != nil {
		t.Fatalf("removing cold tier: %v", err)
	}
	second, err := f.cache.RowsMeta(ctx, key)
	if err != nil {
		t.Fatalf("second RowsMeta: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("hot hit returned a different frame")
	}
	if reads := f.source.reads.Load(); reads != 1 {
		t.Errorf("source reads = %d, want 1", reads)
	}
	want := datasettest.Bundle(10, 4).RowsMeta
	if !reflect.DeepEqual(second, &want) {
		t.Errorf("rows-meta = %+v, want %+v", second, want)
	}
}

func TestAllAccessors(t *testing.T) {
	f := newFixture(t, 8<<20)
	ctx := context.Background()
	datasettest.WriteSource(t, f.dataRoot, "project/cells", 12, 3)
	key := f.keys.Derive("project/cells")
	bundle := datasettest.Bundle(12, 3)

	cols, err := f.cache.ColsMeta(ctx, key)
	if err != nil {
		t.Fatalf("ColsMeta: %v", err)
	}
	if !reflect.DeepEqual(cols, &bundle.ColsMeta) {
		t.Errorf("cols-meta = %+v", cols)
	}
	listing, err := f.cache.IndexListing(ctx, key)
	if err != nil {
		t.Fatalf("IndexListing: %v", err)
	}
	if rows, _ := listing["rows"].([]any); len(rows) != 12 || rows[0] != "sample-0000" {
		t.Errorf("listing rows = %v", listing["rows"])
	}
	if hot := f.hotMembers(t, key); !hot.Has(dataset.ColsMeta) || !hot.Has(dataset.IndexListing) {
		t.Errorf("hot members = %s", hot)
	}
}

func TestMissingSource(t *testing.T) {
	f := newFixture(t, 8<<20)
	_, err := f.cache.Summary(context.Background(), f.keys.Derive("project/absent"))
	if !errors.Is(err, dataset.ErrSourceNotFound) {
		t.Fatalf("Summary = %v, want ErrSourceNotFound", err)
	}
}

func TestRawPathNeverUsesColdTier(t *testing.T) {
	f := newFixture(t, 8<<20)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "lab", "runs", "2024", "cells.dataset")
	if err := dataset.WriteBundle(path, datasettest.Bundle(8, 3)); err != nil {
		t.Fatalf("WriteBundle: %v", err)
	}
	key := f.keys.Derive(path)
	if key.Class != cachekey.RawPath {
		t.Fatalf("key class = %s, want raw-path", key.Class)
	}

	if _, err := f.cache.Summary(ctx, key); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	// A raw read materializes everything, so every member is promoted.
	if hot := f.hotMembers(t, key); !hot.HasAll(dataset.AllMemberSet()) {
		t.Errorf("hot members = %s, want all", hot)
	}
	if _, err := f.cache.Matrix(ctx, key); err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	if reads := f.source.reads.Load(); reads != 1 {
		t.Errorf("source reads = %d, want 1 while hot", reads)
	}

	// Once evicted from the hot tier, the source is read again.
	if err := f.hot.Delete(ctx, tiered.MemberKeys(key, dataset.Summary)...); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.cache.Summary(ctx, key); err != nil {
		t.Fatalf("Summary after delete: %v", err)
	}
	if reads := f.source.reads.Load(); reads != 2 {
		t.Errorf("source reads = %d, want 2", reads)
	}

	entries, err := os.ReadDir(f.cold.Root)
	if err != nil {
		t.Fatalf("reading cold root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("cold tier has %d entries for a raw path key", len(entries))
	}
}

func TestStoreFullServesMaterializedValue(t *testing.T) {
	f := newFixture(t, 16<<10)
	ctx := context.Background()
	datasettest.WriteSource(t, f.dataRoot, "project/wide", 100, 60)
	key := f.keys.Derive("project/wide")

	matrix, err := f.cache.Matrix(ctx, key)
	if err != nil {
		t.Fatalf("Matrix: %v", err)
	}
	want := datasettest.Bundle(100, 60).Matrix
	if !reflect.DeepEqual(matrix, &want) {
		t.Error("matrix served after a full store differs from the source")
	}
	if hot := f.hotMembers(t, key); hot.Has(dataset.MatrixMember) {
		t.Error("matrix reported in hot store although it cannot fit")
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	f := newFixture(t, 8<<20)
	ctx := context.Background()
	datasettest.WriteSource(t, f.dataRoot, "project/cells", 10, 4)
	key := f.keys.Derive("project/cells")
	members := dataset.NewMemberSet(dataset.Summary, dataset.RowsMeta)

	first, err := f.cache.Materialize(ctx, key, members)
	if err != nil {
		t.Fatalf("first Materialize: %v", err)
	}
	if !reflect.DeepEqual(first.Members(), members) {
		t.Errorf("Materialize returned %s, want %s", first.Members(), members)
	}
	usage, err := f.hot.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if _, err := f.cache.Materialize(ctx, key, members); err != nil {
		t.Fatalf("second Materialize: %v", err)
	}
	again, err := f.hot.Usage(ctx)
	if err != nil {
		t.Fatalf("Usage: %v", err)
	}
	if again != usage {
		t.Errorf("usage changed from %+v to %+v on repeated promotion", usage, again)
	}
	if reads := f.source.reads.Load(); reads != 1 {
		t.Errorf("source reads = %d, want 1", reads)
	}
}

func TestMemberKeysKeepClassification(t *testing.T) {
	for _, name := range []string{"project/cells", "group/project/cells"} {
		key := cachekey.Derive(name, "/data")
		for _, member := range dataset.AllMembers {
			for _, memberKey := range tiered.MemberKeys(key, member) {
				if memberKey.Class != cachekey.Cached {
					t.Errorf("%s: member key %s classified %s", name, memberKey.Name, memberKey.Class)
				}
			}
		}
	}

	// For two-segment dataset names the member suffixes never cross
	// the segment threshold, so re-deriving from scratch agrees.
	key := cachekey.Derive("project/cells", "/data")
	for _, member := range dataset.AllMembers {
		for _, memberKey := range tiered.MemberKeys(key, member) {
			if got := cachekey.Classify(memberKey.Name); got != cachekey.Cached {
				t.Errorf("Classify(%s) = %s", memberKey.Name, got)
			}
		}
	}
}

func TestMemberKeysDistinct(t *testing.T) {
	key := cachekey.Derive("project/cells", "")
	seen := make(map[cachekey.ID]string)
	for _, member := range dataset.AllMembers {
		for _, memberKey := range tiered.MemberKeys(key, member) {
			if previous, ok := seen[memberKey.ID]; ok {
				t.Errorf("%s and %s share an identity", previous, memberKey.Name)
			}
			seen[memberKey.ID] = memberKey.Name
		}
	}
	if _, ok := seen[key.ID]; ok {
		t.Error("a member key shares the dataset's identity")
	}
}

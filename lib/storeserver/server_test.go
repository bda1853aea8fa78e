// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

package storeserver_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bureau-foundation/tiercache/lib/cachekey"
	"github.com/bureau-foundation/tiercache/lib/service"
	"github.com/bureau-foundation/tiercache/lib/storeproto"
	"github.com/bureau-foundation/tiercache/lib/storeserver/storetest"
)

func newClient(t *testing.T, capacity int64) (*service.ServiceClient, *storetest.Daemon) {
	t.Helper()
	daemon := storetest.Start(t, capacity)
	return service.NewServiceClient(daemon.SocketPath, capacity+1<<20), daemon
}

func create(t *testing.T, client *service.ServiceClient, id cachekey.ID, data, metadata []byte) error {
	t.Helper()
	return client.Call(context.Background(), storeproto.ActionCreate, map[string]any{
		"id":       id[:],
		"data":     data,
		"metadata": metadata,
	}, nil)
}

func serviceCode(err error) string {
	var serviceErr *service.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Code
	}
	return ""
}

func TestPing(t *testing.T) {
	client, _ := newClient(t, 4096)
	var ping storeproto.PingResponse
	if err := client.Call(context.Background(), storeproto.ActionPing, nil, &ping); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if ping.Capacity != 4096 {
		t.Errorf("capacity = %d, want 4096", ping.Capacity)
	}
}

func TestCreateGet(t *testing.T) {
	client, _ := newClient(t, 1<<16)
	id := cachekey.HashName("project/dataset")
	data := []byte("payload bytes")
	metadata := []byte("frame")

	if err := create(t, client, id, data, metadata); err != nil {
		t.Fatalf("create: %v", err)
	}

	var got storeproto.GetResponse
	if err := client.Call(context.Background(), storeproto.ActionGet, map[string]any{"id": id[:]}, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got.Data, data) {
		t.Errorf("data = %q, want %q", got.Data, data)
	}
	if !bytes.Equal(got.Metadata, metadata) {
		t.Errorf("metadata = %q, want %q", got.Metadata, metadata)
	}
}

func TestCreateEmptyPayload(t *testing.T) {
	client, _ := newClient(t, 4096)
	id := cachekey.HashName("empty")
	if err := create(t, client, id, nil, nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	var got storeproto.GetResponse
	if err := client.Call(context.Background(), storeproto.ActionGet, map[string]any{"id": id[:]}, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Data) != 0 {
		t.Errorf("data = %q, want empty", got.Data)
	}
}

func TestCreateExisting(t *testing.T) {
	client, _ := newClient(t, 1<<16)
	id := cachekey.HashName("twice")
	if err := create(t, client, id, []byte("first"), nil); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := create(t, client, id, []byte("second"), nil)
	if code := serviceCode(err); code != storeproto.CodeExists {
		t.Fatalf("second create: code %q (err %v), want %q", code, err, storeproto.CodeExists)
	}

	var got storeproto.GetResponse
	if err := client.Call(context.Background(), storeproto.ActionGet, map[string]any{"id": id[:]}, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got.Data) != "first" {
		t.Errorf("data = %q, want first", got.Data)
	}
}

func TestCreateStoreFull(t *testing.T) {
	client, daemon := newClient(t, 1024)
	err := create(t, client, cachekey.HashName("big"), make([]byte, 2048), nil)
	if code := serviceCode(err); code != storeproto.CodeStoreFull {
		t.Fatalf("code %q (err %v), want %q", code, err, storeproto.CodeStoreFull)
	}
	if allocated := daemon.Arena.Allocated(); allocated != 0 {
		t.Errorf("failed create left %d bytes allocated", allocated)
	}
}

func TestCreateInvalidID(t *testing.T) {
	client, _ := newClient(t, 1024)
	err := client.Call(context.Background(), storeproto.ActionCreate, map[string]any{
		"id":   []byte{1, 2, 3},
		"data": []byte("x"),
	}, nil)
	if code := serviceCode(err); code != storeproto.CodeInvalid {
		t.Fatalf("code %q (err %v), want %q", code, err, storeproto.CodeInvalid)
	}
}

func TestGetNotFound(t *testing.T) {
	client, _ := newClient(t, 1024)
	id := cachekey.HashName("absent")
	err := client.Call(context.Background(), storeproto.ActionGet, map[string]any{"id": id[:]}, nil)
	if code := serviceCode(err); code != storeproto.CodeNotFound {
		t.Fatalf("code %q (err %v), want %q", code, err, storeproto.CodeNotFound)
	}
}

func TestContainsAndDelete(t *testing.T) {
	client, daemon := newClient(t, 1<<16)
	present := cachekey.HashName("present")
	absent := cachekey.HashName("absent")
	if err := create(t, client, present, []byte("here"), nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	var contains storeproto.ContainsResponse
	if err := client.Call(context.Background(), storeproto.ActionContains, map[string]any{
		"ids": [][]byte{present[:], absent[:]},
	}, &contains); err != nil {
		t.Fatalf("contains: %v", err)
	}
	if len(contains.Present) != 2 || !contains.Present[0] || contains.Present[1] {
		t.Fatalf("present = %v, want [true false]", contains.Present)
	}

	var deleted storeproto.DeleteResponse
	if err := client.Call(context.Background(), storeproto.ActionDelete, map[string]any{
		"ids": [][]byte{present[:], absent[:]},
	}, &deleted); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted.Deleted != 1 {
		t.Errorf("deleted = %d, want 1 (absent ids are ignored)", deleted.Deleted)
	}
	if allocated := daemon.Arena.Allocated(); allocated != 0 {
		t.Errorf("delete left %d bytes allocated", allocated)
	}

	if err := client.Call(context.Background(), storeproto.ActionContains, map[string]any{
		"ids": [][]byte{present[:]},
	}, &contains); err != nil {
		t.Fatalf("contains: %v", err)
	}
	if contains.Present[0] {
		t.Error("object still present after delete")
	}
}

func TestUsageAndList(t *testing.T) {
	client, _ := newClient(t, 1<<16)
	first := cachekey.HashName("first")
	second := cachekey.HashName("second")
	if err := create(t, client, first, make([]byte, 100), []byte("meta")); err != nil {
		t.Fatalf("create first: %v", err)
	}
	if err := create(t, client, second, make([]byte, 50), nil); err != nil {
		t.Fatalf("create second: %v", err)
	}

	var usage storeproto.UsageResponse
	if err := client.Call(context.Background(), storeproto.ActionUsage, nil, &usage); err != nil {
		t.Fatalf("usage: %v", err)
	}
	if usage.Capacity != 1<<16 || usage.Used != 154 || usage.ObjectCount != 2 {
		t.Errorf("usage = %+v, want capacity 65536, used 154, count 2", usage)
	}

	var list storeproto.ListResponse
	if err := client.Call(context.Background(), storeproto.ActionList, nil, &list); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list.Objects) != 2 {
		t.Fatalf("list has %d objects, want 2", len(list.Objects))
	}
	sizes := make(map[cachekey.ID]storeproto.ObjectEntry)
	for _, entry := range list.Objects {
		id, err := cachekey.IDFromBytes(entry.ID)
		if err != nil {
			t.Fatalf("list entry id: %v", err)
		}
		sizes[id] = entry
	}
	if entry := sizes[first]; entry.Size != 100 || entry.MetadataSize != 4 {
		t.Errorf("first entry = %+v", entry)
	}
	if entry := sizes[second]; entry.Size != 50 || entry.MetadataSize != 0 {
		t.Errorf("second entry = %+v", entry)
	}
}

func TestConcurrentCreateSameID(t *testing.T) {
	client, daemon := newClient(t, 1<<20)
	id := cachekey.HashName("contended")

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- create(t, client, id, bytes.Repeat([]byte{byte(i)}, 128), nil)
		}()
	}
	wg.Wait()
	close(results)

	created := 0
	for err := range results {
		switch {
		case err == nil:
			created++
		case serviceCode(err) == storeproto.CodeExists:
		default:
			t.Errorf("unexpected create error: %v", err)
		}
	}
	if created != 1 {
		t.Errorf("%d creates succeeded, want exactly 1", created)
	}
	if allocated := daemon.Arena.Allocated(); allocated != 128 {
		t.Errorf("allocated = %d, want 128 (losers must release their spans)", allocated)
	}
}

func TestConcurrentGetDelete(t *testing.T) {
	client, daemon := newClient(t, 1<<20)
	id := cachekey.HashName("busy")
	if err := create(t, client, id, bytes.Repeat([]byte{9}, 4096), nil); err != nil {
		t.Fatalf("create: %v", err)
	}

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var got storeproto.GetResponse
			err := client.Call(context.Background(), storeproto.ActionGet, map[string]any{"id": id[:]}, &got)
			if err != nil {
				if serviceCode(err) != storeproto.CodeNotFound {
					t.Errorf("get: %v", err)
				}
				return
			}
			if !bytes.Equal(got.Data, bytes.Repeat([]byte{9}, 4096)) {
				t.Error("get returned corrupted data")
			}
		}()
	}
	if err := client.Call(context.Background(), storeproto.ActionDelete, map[string]any{
		"ids": [][]byte{id[:]},
	}, nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	wg.Wait()

	if allocated := daemon.Arena.Allocated(); allocated != 0 {
		t.Errorf("allocated = %d after all readers finished, want 0", allocated)
	}
}

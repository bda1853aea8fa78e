// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bureau-foundation/tiercache/lib/codec"
)

func TestClientCall(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger(), 0)
	server.Handle("usage", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]any{"objects": 42}, nil
	})
	startServer(t, server, socketPath)

	client := NewServiceClient(socketPath, 0)
	var result map[string]any
	if err := client.Call(context.Background(), "usage", nil, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result["objects"] != int64(42) {
		t.Errorf("objects: got %v (%T), want 42", result["objects"], result["objects"])
	}
}

func TestClientCallSendsFields(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger(), 0)
	server.Handle("echo", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Action string `cbor:"action"`
			Data   []byte `cbor:"data"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return map[string]any{"action": request.Action, "data": request.Data}, nil
	})
	startServer(t, server, socketPath)

	client := NewServiceClient(socketPath, 0)
	payload := []byte{0, 1, 2, 0xff}
	var result struct {
		Action string `cbor:"action"`
		Data   []byte `cbor:"data"`
	}
	if err := client.Call(context.Background(), "echo", map[string]any{"data": payload}, &result); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result.Action != "echo" || !bytes.Equal(result.Data, payload) {
		t.Errorf("echo = %+v", result)
	}
}

func TestClientCallNilResult(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger(), 0)
	server.Handle("ping", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]any{"pong": true}, nil
	})
	startServer(t, server, socketPath)

	client := NewServiceClient(socketPath, 0)
	if err := client.Call(context.Background(), "ping", nil, nil); err != nil {
		t.Fatalf("Call with nil result: %v", err)
	}
}

func TestClientCallServiceError(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger(), 0)
	server.Handle("get", func(ctx context.Context, raw []byte) (any, error) {
		return nil, Errorf("not_found", "object abc not found")
	})
	startServer(t, server, socketPath)

	client := NewServiceClient(socketPath, 0)
	err := client.Call(context.Background(), "get", nil, nil)
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected *ServiceError, got %T: %v", err, err)
	}
	if serviceErr.Action != "get" || serviceErr.Code != "not_found" || serviceErr.Message != "object abc not found" {
		t.Errorf("ServiceError = %+v", serviceErr)
	}
}

func TestClientCallUnknownAction(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger(), 0)
	startServer(t, server, socketPath)

	client := NewServiceClient(socketPath, 0)
	err := client.Call(context.Background(), "missing", nil, nil)
	var serviceErr *ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("expected *ServiceError, got %T: %v", err, err)
	}
	if serviceErr.Code != "" {
		t.Errorf("unknown action code = %q, want empty", serviceErr.Code)
	}
}

func TestClientCallConnectionRefused(t *testing.T) {
	client := NewServiceClient(filepath.Join(t.TempDir(), "absent.sock"), 0)
	err := client.Call(context.Background(), "ping", nil, nil)
	if err == nil {
		t.Fatal("expected error for missing socket")
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		t.Errorf("connection failure should not be a *ServiceError: %v", err)
	}
}

func TestClientResponseTooLarge(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger(), 0)
	server.Handle("get", func(ctx context.Context, raw []byte) (any, error) {
		return map[string]any{"data": bytes.Repeat([]byte{7}, 4096)}, nil
	})
	startServer(t, server, socketPath)

	client := NewServiceClient(socketPath, 512)
	err := client.Call(context.Background(), "get", nil, nil)
	if err == nil {
		t.Fatal("response over the client limit should fail")
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		t.Errorf("oversized response should be a transport error, got %v", err)
	}
}

func TestClientConcurrentCalls(t *testing.T) {
	socketPath := testSocketPath(t)
	server := NewSocketServer(socketPath, testLogger(), 0)
	server.Handle("double", func(ctx context.Context, raw []byte) (any, error) {
		var request struct {
			Value int `cbor:"value"`
		}
		if err := codec.Unmarshal(raw, &request); err != nil {
			return nil, err
		}
		return request.Value * 2, nil
	})
	startServer(t, server, socketPath)

	client := NewServiceClient(socketPath, 0)
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var doubled int
			if err := client.Call(context.Background(), "double", map[string]any{"value": i}, &doubled); err != nil {
				t.Errorf("call %d: %v", i, err)
				return
			}
			if doubled != i*2 {
				t.Errorf("call %d: got %d, want %d", i, doubled, i*2)
			}
		}()
	}
	wg.Wait()
}

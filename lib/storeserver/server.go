// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build darwin || linux

// Package storeserver implements the hot store daemon: an object
// table keyed by identity over a fixed-capacity [arena.Arena], served
// on a Unix socket with the lib/service protocol.
//
// Objects are immutable once created. Create allocates, writes, and
// publishes in one action, so no client ever observes a partially
// written object. Get pins the object for the duration of the copy;
// deleting a pinned object removes it from the table immediately and
// returns its span to the arena when the last reader finishes.
package storeserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/bureau-foundation/tiercache/lib/arena"
	"github.com/bureau-foundation/tiercache/lib/cachekey"
	"github.com/bureau-foundation/tiercache/lib/codec"
	"github.com/bureau-foundation/tiercache/lib/service"
	"github.com/bureau-foundation/tiercache/lib/storeproto"
)

// requestSlack is added to the arena capacity to bound request size:
// the largest legal create carries a payload the size of the whole
// arena plus its envelope.
const requestSlack = 1 << 20

// object is one sealed entry in the table. The span holds the payload
// followed by the metadata.
type object struct {
	span         arena.Span
	size         int64
	metadataSize int64

	// readers counts in-flight gets. A deleted object with readers
	// keeps its span until the count drops to zero.
	readers int
	deleted bool
}

// Server owns the object table and the arena.
type Server struct {
	arena  *arena.Arena
	logger *slog.Logger

	mu      sync.Mutex
	objects map[cachekey.ID]*object
}

// New creates a server over an opened arena. The arena must be empty:
// the table starts with no objects.
func New(store *arena.Arena, logger *slog.Logger) *Server {
	return &Server{
		arena:   store,
		logger:  logger,
		objects: make(map[cachekey.ID]*object),
	}
}

// Serve listens on socketPath and handles requests until ctx is
// cancelled.
func (s *Server) Serve(ctx context.Context, socketPath string) error {
	socketServer := service.NewSocketServer(socketPath, s.logger, s.arena.Capacity()+requestSlack)
	s.Register(socketServer)
	return socketServer.Serve(ctx)
}

// Register installs the store actions on socketServer.
func (s *Server) Register(socketServer *service.SocketServer) {
	socketServer.Handle(storeproto.ActionPing, s.handlePing)
	socketServer.Handle(storeproto.ActionContains, s.handleContains)
	socketServer.Handle(storeproto.ActionCreate, s.handleCreate)
	socketServer.Handle(storeproto.ActionGet, s.handleGet)
	socketServer.Handle(storeproto.ActionDelete, s.handleDelete)
	socketServer.Handle(storeproto.ActionUsage, s.handleUsage)
	socketServer.Handle(storeproto.ActionList, s.handleList)
}

func (s *Server) handlePing(ctx context.Context, raw []byte) (any, error) {
	return storeproto.PingResponse{Capacity: s.arena.Capacity()}, nil
}

func (s *Server) handleContains(ctx context.Context, raw []byte) (any, error) {
	ids, err := decodeIDs(raw)
	if err != nil {
		return nil, err
	}

	present := make([]bool, len(ids))
	s.mu.Lock()
	for i, id := range ids {
		_, present[i] = s.objects[id]
	}
	s.mu.Unlock()

	return storeproto.ContainsResponse{Present: present}, nil
}

func (s *Server) handleCreate(ctx context.Context, raw []byte) (any, error) {
	var request storeproto.CreateRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, service.Errorf(storeproto.CodeInvalid, "invalid create request: %v", err)
	}
	id, err := cachekey.IDFromBytes(request.ID)
	if err != nil {
		return nil, service.Errorf(storeproto.CodeInvalid, "%v", err)
	}

	s.mu.Lock()
	_, exists := s.objects[id]
	s.mu.Unlock()
	if exists {
		return nil, service.Errorf(storeproto.CodeExists, "object %s already exists", id)
	}

	payload := make([]byte, 0, len(request.Data)+len(request.Metadata))
	payload = append(payload, request.Data...)
	payload = append(payload, request.Metadata...)

	span, err := s.arena.Store(payload)
	if err != nil {
		if errors.Is(err, arena.ErrFull) {
			return nil, service.Errorf(storeproto.CodeStoreFull,
				"no room for %d bytes (%d of %d allocated)",
				len(payload), s.arena.Allocated(), s.arena.Capacity())
		}
		return nil, fmt.Errorf("storing object %s: %w", id, err)
	}

	s.mu.Lock()
	if _, raced := s.objects[id]; raced {
		s.mu.Unlock()
		s.arena.Release(span)
		return nil, service.Errorf(storeproto.CodeExists, "object %s already exists", id)
	}
	s.objects[id] = &object{
		span:         span,
		size:         int64(len(request.Data)),
		metadataSize: int64(len(request.Metadata)),
	}
	s.mu.Unlock()

	s.logger.Debug("object created",
		"id", id.Hex(),
		"size", len(request.Data),
		"allocated", span.Length,
	)
	return storeproto.CreateResponse{Allocated: span.Length}, nil
}

func (s *Server) handleGet(ctx context.Context, raw []byte) (any, error) {
	var request storeproto.GetRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, service.Errorf(storeproto.CodeInvalid, "invalid get request: %v", err)
	}
	id, err := cachekey.IDFromBytes(request.ID)
	if err != nil {
		return nil, service.Errorf(storeproto.CodeInvalid, "%v", err)
	}

	s.mu.Lock()
	entry, exists := s.objects[id]
	if exists {
		entry.readers++
	}
	s.mu.Unlock()
	if !exists {
		return nil, service.Errorf(storeproto.CodeNotFound, "object %s not found", id)
	}
	defer s.unpin(entry)

	payload, err := s.arena.Read(entry.span, entry.size+entry.metadataSize)
	if err != nil {
		return nil, fmt.Errorf("reading object %s: %w", id, err)
	}

	response := storeproto.GetResponse{Data: payload[:entry.size]}
	if entry.metadataSize > 0 {
		response.Metadata = payload[entry.size:]
	}
	return response, nil
}

// unpin drops a reader and releases the span of a deleted object once
// nobody reads it.
func (s *Server) unpin(entry *object) {
	s.mu.Lock()
	entry.readers--
	release := entry.deleted && entry.readers == 0
	s.mu.Unlock()
	if release {
		s.arena.Release(entry.span)
	}
}

func (s *Server) handleDelete(ctx context.Context, raw []byte) (any, error) {
	ids, err := decodeIDs(raw)
	if err != nil {
		return nil, err
	}

	var release []arena.Span
	deleted := 0
	s.mu.Lock()
	for _, id := range ids {
		entry, exists := s.objects[id]
		if !exists {
			continue
		}
		delete(s.objects, id)
		deleted++
		if entry.readers > 0 {
			entry.deleted = true
		} else {
			release = append(release, entry.span)
		}
	}
	s.mu.Unlock()

	for _, span := range release {
		s.arena.Release(span)
	}
	return storeproto.DeleteResponse{Deleted: deleted}, nil
}

func (s *Server) handleUsage(ctx context.Context, raw []byte) (any, error) {
	s.mu.Lock()
	count := len(s.objects)
	var used int64
	for _, entry := range s.objects {
		used += entry.size + entry.metadataSize
	}
	s.mu.Unlock()

	return storeproto.UsageResponse{
		Capacity:    s.arena.Capacity(),
		Used:        used,
		ObjectCount: count,
	}, nil
}

func (s *Server) handleList(ctx context.Context, raw []byte) (any, error) {
	s.mu.Lock()
	entries := make([]storeproto.ObjectEntry, 0, len(s.objects))
	for id, entry := range s.objects {
		entries = append(entries, storeproto.ObjectEntry{
			ID:             bytes.Clone(id[:]),
			Size:           entry.size,
			MetadataSize:   entry.metadataSize,
			ReferenceCount: entry.readers,
		})
	}
	s.mu.Unlock()

	slices.SortFunc(entries, func(a, b storeproto.ObjectEntry) int {
		return bytes.Compare(a.ID, b.ID)
	})
	return storeproto.ListResponse{Objects: entries}, nil
}

func decodeIDs(raw []byte) ([]cachekey.ID, error) {
	var request storeproto.IDsRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, service.Errorf(storeproto.CodeInvalid, "invalid request: %v", err)
	}
	ids := make([]cachekey.ID, len(request.IDs))
	for i, raw := range request.IDs {
		id, err := cachekey.IDFromBytes(raw)
		if err != nil {
			return nil, service.Errorf(storeproto.CodeInvalid, "ids[%d]: %v", i, err)
		}
		ids[i] = id
	}
	return ids, nil
}

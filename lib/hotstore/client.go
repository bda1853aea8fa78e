// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hotstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/tiercache/lib/cachekey"
	"github.com/bureau-foundation/tiercache/lib/dataset"
	"github.com/bureau-foundation/tiercache/lib/objcodec"
	"github.com/bureau-foundation/tiercache/lib/service"
	"github.com/bureau-foundation/tiercache/lib/storeproto"
)

// DefaultRegistryName is the name of the reserved object mapping
// identities to names.
const DefaultRegistryName = "/id_name_map"

// responseSlack is added to the arena capacity to bound responses: a
// get returns at most one object plus its envelope.
const responseSlack = 1 << 20

var (
	// ErrStoreUnavailable means the daemon could not be reached or
	// failed in a way the client cannot recover from.
	ErrStoreUnavailable = errors.New("hot store unavailable")

	// ErrStoreFull means the arena has no room for the object.
	ErrStoreFull = errors.New("hot store full")

	// ErrNotFound means the requested object is not in the store.
	ErrNotFound = errors.New("object not found in hot store")

	// ErrObjectExists means a create lost a race with another writer
	// of the same identity.
	ErrObjectExists = errors.New("object already exists in hot store")
)

// Options configures Dial.
type Options struct {
	// Endpoint is the daemon's Unix socket path.
	Endpoint string

	// RegistryName names the registry object. Defaults to
	// DefaultRegistryName.
	RegistryName string

	// Logger receives store failures. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client talks to one hot store daemon. It holds no connection: each
// operation is one or more independent request/response exchanges, so
// a Client is safe for concurrent use.
type Client struct {
	service  *service.ServiceClient
	registry cachekey.Key
	capacity int64
	logger   *slog.Logger
}

// Dial pings the daemon at opts.Endpoint and returns a client for it.
// An unreachable daemon yields an error wrapping ErrStoreUnavailable.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("hot store endpoint is required")
	}
	if opts.RegistryName == "" {
		opts.RegistryName = DefaultRegistryName
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	client := &Client{
		service:  service.NewServiceClient(opts.Endpoint, 0),
		registry: cachekey.Derive(opts.RegistryName, ""),
		logger:   opts.Logger,
	}

	var ping storeproto.PingResponse
	if err := client.call(ctx, storeproto.ActionPing, cachekey.Key{}, nil, &ping); err != nil {
		return nil, err
	}
	client.capacity = ping.Capacity
	client.service = service.NewServiceClient(opts.Endpoint, ping.Capacity+responseSlack)

	client.logger.Debug("connected to hot store",
		"endpoint", opts.Endpoint,
		"capacity", ping.Capacity,
	)
	return client, nil
}

// Endpoint returns the daemon socket path.
func (c *Client) Endpoint() string {
	return c.service.SocketPath()
}

// Capacity returns the arena size reported by the daemon at Dial.
func (c *Client) Capacity() int64 {
	return c.capacity
}

// Registry returns the key of the registry object.
func (c *Client) Registry() cachekey.Key {
	return c.registry
}

// Contains reports whether every key is present in the store. It is
// true for an empty key list.
func (c *Client) Contains(ctx context.Context, keys ...cachekey.Key) (bool, error) {
	if len(keys) == 0 {
		return true, nil
	}
	var response storeproto.ContainsResponse
	if err := c.call(ctx, storeproto.ActionContains, keys[0], idsFields(keys), &response); err != nil {
		return false, err
	}
	if len(response.Present) != len(keys) {
		return false, c.unavailable(storeproto.ActionContains, keys[0],
			fmt.Errorf("daemon answered %d of %d identities", len(response.Present), len(keys)))
	}
	for _, present := range response.Present {
		if !present {
			return false, nil
		}
	}
	return true, nil
}

// Put stores value under key. With overwrite false an existing object
// is left untouched and Put returns nil. With overwrite true an
// existing object is deleted first; between the delete and the create
// other clients briefly see the key as absent.
//
// The registry is updated before the payload is written. Returns an
// error wrapping ErrStoreFull when the arena cannot hold the encoded
// value.
func (c *Client) Put(ctx context.Context, value any, key cachekey.Key, overwrite bool) error {
	if err := c.recordName(ctx, key); err != nil {
		return err
	}

	exists, err := c.Contains(ctx, key)
	if err != nil {
		return err
	}
	if exists {
		if !overwrite {
			return nil
		}
		if err := c.Delete(ctx, key); err != nil {
			return err
		}
	}

	err = c.create(ctx, key, value)
	if errors.Is(err, ErrObjectExists) && !overwrite {
		return nil
	}
	return err
}

// create encodes value into an exact-size buffer and commits it.
func (c *Client) create(ctx context.Context, key cachekey.Key, value any) error {
	size, err := objcodec.Size(value)
	if err != nil {
		return fmt.Errorf("sizing %s: %w", key, err)
	}
	metadata := []byte(objcodec.ShapeOf(value).String())
	// The daemon bounds requests by its capacity, so an object that can
	// never fit is refused here instead of being cut off mid-send.
	if needed := size + int64(len(metadata)); needed > c.capacity {
		c.logger.Info("hot store full",
			"operation", storeproto.ActionCreate,
			"key", key.Name,
			"bytes", needed,
			"capacity", c.capacity,
		)
		return fmt.Errorf("%s %s: %w: object of %d bytes exceeds capacity %d",
			storeproto.ActionCreate, key.Name, ErrStoreFull, needed, c.capacity)
	}

	buffer := make([]byte, size)
	if _, err := objcodec.EncodeInto(value, buffer); err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}

	return c.call(ctx, storeproto.ActionCreate, key, map[string]any{
		"id":       key.ID[:],
		"data":     buffer,
		"metadata": metadata,
	}, nil)
}

// Get fetches key and decodes it with shape. The store keeps no type
// information that Get trusts: the caller supplies the shape, and a
// wrong shape is a decode error.
func (c *Client) Get(ctx context.Context, key cachekey.Key, shape objcodec.Shape) (any, error) {
	data, err := c.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	value, err := objcodec.Decode(data, shape)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return value, nil
}

// GetFrame fetches a frame object.
func (c *Client) GetFrame(ctx context.Context, key cachekey.Key) (*dataset.Frame, error) {
	data, err := c.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	frame, err := objcodec.DecodeFrame(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return frame, nil
}

// GetArray fetches an array object.
func (c *Client) GetArray(ctx context.Context, key cachekey.Key) (*dataset.Array, error) {
	data, err := c.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	array, err := objcodec.DecodeArray(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return array, nil
}

// GetValue fetches a structured value into target, which must be a
// pointer.
func (c *Client) GetValue(ctx context.Context, key cachekey.Key, target any) error {
	data, err := c.fetch(ctx, key)
	if err != nil {
		return err
	}
	if err := objcodec.DecodeValue(data, target); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// GetRaw returns the encoded payload of key and the shape recorded
// when it was written. The recorded shape is informational; it is
// empty for objects written by other clients.
func (c *Client) GetRaw(ctx context.Context, key cachekey.Key) ([]byte, string, error) {
	var response storeproto.GetResponse
	if err := c.call(ctx, storeproto.ActionGet, key, map[string]any{"id": key.ID[:]}, &response); err != nil {
		return nil, "", err
	}
	return response.Data, string(response.Metadata), nil
}

func (c *Client) fetch(ctx context.Context, key cachekey.Key) ([]byte, error) {
	data, _, err := c.GetRaw(ctx, key)
	return data, err
}

// Delete removes keys from the store. Absent keys are ignored.
func (c *Client) Delete(ctx context.Context, keys ...cachekey.Key) error {
	if len(keys) == 0 {
		return nil
	}
	return c.call(ctx, storeproto.ActionDelete, keys[0], idsFields(keys), nil)
}

// Usage summarizes the store.
type Usage struct {
	Capacity    int64
	Used        int64
	ObjectCount int

	// Utilization is Used / Capacity.
	Utilization float64
}

// Usage returns the aggregate size of all objects in the store.
func (c *Client) Usage(ctx context.Context) (Usage, error) {
	var response storeproto.UsageResponse
	if err := c.call(ctx, storeproto.ActionUsage, cachekey.Key{}, nil, &response); err != nil {
		return Usage{}, err
	}
	usage := Usage{
		Capacity:    response.Capacity,
		Used:        response.Used,
		ObjectCount: response.ObjectCount,
	}
	if response.Capacity > 0 {
		usage.Utilization = float64(response.Used) / float64(response.Capacity)
	}
	return usage, nil
}

// ObjectInfo describes one object in the store.
type ObjectInfo struct {
	Size           int64
	MetadataSize   int64
	ReferenceCount int

	// Name is the name recorded in the registry, or empty when the
	// registry has no entry for the identity.
	Name string
}

// List describes every object in the store, with names resolved
// through the registry.
func (c *Client) List(ctx context.Context) (map[cachekey.ID]ObjectInfo, error) {
	var response storeproto.ListResponse
	if err := c.call(ctx, storeproto.ActionList, cachekey.Key{}, nil, &response); err != nil {
		return nil, err
	}
	names, err := c.readRegistry(ctx)
	if err != nil {
		return nil, err
	}

	objects := make(map[cachekey.ID]ObjectInfo, len(response.Objects))
	for _, entry := range response.Objects {
		id, err := cachekey.IDFromBytes(entry.ID)
		if err != nil {
			return nil, c.unavailable(storeproto.ActionList, cachekey.Key{}, err)
		}
		info := ObjectInfo{
			Size:           entry.Size,
			MetadataSize:   entry.MetadataSize,
			ReferenceCount: entry.ReferenceCount,
			Name:           names[id.Hex()],
		}
		if id == c.registry.ID {
			info.Name = c.registry.Name + " (internal)"
		}
		objects[id] = info
	}
	return objects, nil
}

func idsFields(keys []cachekey.Key) map[string]any {
	ids := make([][]byte, len(keys))
	for i, key := range keys {
		ids[i] = key.ID[:]
	}
	return map[string]any{"ids": ids}
}

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hotstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/tiercache/lib/cachekey"
	"github.com/bureau-foundation/tiercache/lib/service"
	"github.com/bureau-foundation/tiercache/lib/storeproto"
)

// call performs one daemon action and maps the outcome onto the
// package's error kinds. key is used for error messages and logs; it
// may be the zero Key for store-wide actions.
func (c *Client) call(ctx context.Context, action string, key cachekey.Key, fields map[string]any, result any) error {
	err := c.service.Call(ctx, action, fields, result)
	if err == nil {
		return nil
	}

	var serviceErr *service.ServiceError
	if !errors.As(err, &serviceErr) {
		if ctx.Err() != nil {
			return fmt.Errorf("%s %s: %w", action, key.Name, context.Cause(ctx))
		}
		return c.unavailable(action, key, err)
	}

	switch serviceErr.Code {
	case storeproto.CodeNotFound:
		return fmt.Errorf("%s %s: %w", action, key.Name, ErrNotFound)
	case storeproto.CodeExists:
		return fmt.Errorf("%s %s: %w", action, key.Name, ErrObjectExists)
	case storeproto.CodeStoreFull:
		c.logger.Info("hot store full",
			"operation", action,
			"key", key.Name,
			"detail", serviceErr.Message,
		)
		return fmt.Errorf("%s %s: %w: %s", action, key.Name, ErrStoreFull, serviceErr.Message)
	case storeproto.CodeInvalid:
		return fmt.Errorf("%s %s: daemon rejected request: %s", action, key.Name, serviceErr.Message)
	default:
		return c.unavailable(action, key, err)
	}
}

// unavailable logs a store failure and wraps it in ErrStoreUnavailable.
func (c *Client) unavailable(action string, key cachekey.Key, err error) error {
	c.logger.Error("hot store failure",
		"operation", action,
		"key", key.Name,
		"endpoint", c.service.SocketPath(),
		"error", err,
	)
	return fmt.Errorf("%s %s: %w: %w", action, key.Name, ErrStoreUnavailable, err)
}

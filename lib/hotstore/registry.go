// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hotstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/bureau-foundation/tiercache/lib/cachekey"
)

// readRegistry returns the identity-to-name map. A missing registry is
// an empty map.
func (c *Client) readRegistry(ctx context.Context) (map[string]string, error) {
	names := make(map[string]string)
	err := c.GetValue(ctx, c.registry, &names)
	if errors.Is(err, ErrNotFound) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, err
	}
	return names, nil
}

// recordName adds key to the registry. The update is read, merge,
// delete, create: a concurrent writer can overwrite this one's entry.
// A registry that no longer fits in the arena is logged and skipped;
// it only affects listings.
func (c *Client) recordName(ctx context.Context, key cachekey.Key) error {
	if key.ID == c.registry.ID {
		return nil
	}

	names, err := c.readRegistry(ctx)
	if err != nil {
		return fmt.Errorf("reading name registry: %w", err)
	}
	if names[key.ID.Hex()] == key.Name {
		return nil
	}
	names[key.ID.Hex()] = key.Name

	if err := c.Delete(ctx, c.registry); err != nil {
		return fmt.Errorf("replacing name registry: %w", err)
	}
	err = c.create(ctx, c.registry, names)
	switch {
	case err == nil, errors.Is(err, ErrObjectExists):
		return nil
	case errors.Is(err, ErrStoreFull):
		c.logger.Warn("name registry does not fit in hot store",
			"registry", c.registry.Name,
			"entries", len(names),
			"error", err,
		)
		return nil
	default:
		return fmt.Errorf("writing name registry: %w", err)
	}
}

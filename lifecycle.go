package tilecache

import (
	"context"
	"fmt"
)

// Clear deletes every entry in the cache namespace.
// The namespace is created again by the next write.
func (c *TileCache) Clear(ctx context.Context) error {
	existed, err := c.provider.Delete(ctx, c.namespace)
	if err != nil {
		c.metrics.RecordStoreError("clear")
		return fmt.Errorf("could not clear cache namespace %s: %w", c.namespace, err)
	}
	c.log.Debug().Bool("existed", existed).Msg("Cleared cache")
	return nil
}

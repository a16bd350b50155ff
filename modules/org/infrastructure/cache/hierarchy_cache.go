package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/domain/hierarchy"
	"github.com/me-ChrisHandoko/my-gloria-sub005/modules/org/services"
)

const DefaultKey = "org:hierarchy:nodes:v1"

// HierarchyCache keeps the full hierarchy node list in a single Redis key.
// Writers invalidate it; readers fill it after a miss.
type HierarchyCache struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

var _ services.HierarchyCache = (*HierarchyCache)(nil)

func NewHierarchyCache(client *redis.Client, key string, ttl time.Duration) *HierarchyCache {
	if key == "" {
		key = DefaultKey
	}
	return &HierarchyCache{client: client, key: key, ttl: ttl}
}

func (c *HierarchyCache) Get(ctx context.Context) ([]hierarchy.Node, bool, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read hierarchy cache: %w", err)
	}
	var nodes []hierarchy.Node
	if err := json.Unmarshal(raw, &nodes); err != nil {
		// A payload from an older layout counts as a miss; the next fill overwrites it.
		return nil, false, nil
	}
	return nodes, true, nil
}

func (c *HierarchyCache) Set(ctx context.Context, nodes []hierarchy.Node) error {
	if nodes == nil {
		nodes = []hierarchy.Node{}
	}
	raw, err := json.Marshal(nodes)
	if err != nil {
		return fmt.Errorf("encode hierarchy cache: %w", err)
	}
	if err := c.client.Set(ctx, c.key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("write hierarchy cache: %w", err)
	}
	return nil
}

func (c *HierarchyCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("invalidate hierarchy cache: %w", err)
	}
	return nil
}

package cache

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// MaxRecentChildren is how many looked-up children a parent keeps
const MaxRecentChildren = 10

// RecentChildrenCache is a per-parent most-recent-first list of child emails
type RecentChildrenCache interface {
	Touch(ctx context.Context, parent, child string) error
	List(ctx context.Context, parent string) ([]string, error)
}

type recentChildrenCache struct {
	client redis.UniversalClient
}

func NewRecentChildrenCache(client redis.UniversalClient) RecentChildrenCache {
	return &recentChildrenCache{client: client}
}

func (c *recentChildrenCache) key(parent string) string {
	return fmt.Sprintf("parent:%s:children", strings.ToLower(parent))
}

// Touch moves child to the front, dropping duplicates and the overflow
func (c *recentChildrenCache) Touch(ctx context.Context, parent, child string) error {
	key := c.key(parent)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, key, 0, child)
		pipe.LPush(ctx, key, child)
		pipe.LTrim(ctx, key, 0, MaxRecentChildren-1)
		return nil
	})
	return err
}

func (c *recentChildrenCache) List(ctx context.Context, parent string) ([]string, error) {
	return c.client.LRange(ctx, c.key(parent), 0, MaxRecentChildren-1).Result()
}

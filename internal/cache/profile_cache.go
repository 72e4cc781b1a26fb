package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
)

// ProfileCache remembers the last profile the backend returned for a reader,
// so live subscribers get a snapshot as soon as they connect.
type ProfileCache interface {
	Set(ctx context.Context, p *model.ReaderProfile) error
	Get(ctx context.Context, readerID string) (*model.ReaderProfile, error)
}

type profileCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewProfileCache(client redis.UniversalClient, ttl time.Duration) ProfileCache {
	return &profileCache{client: client, ttl: ttl}
}

func (c *profileCache) key(readerID string) string {
	return fmt.Sprintf("reader:%s:profile", readerID)
}

func (c *profileCache) Set(ctx context.Context, p *model.ReaderProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(p.ID), data, c.ttl).Err()
}

func (c *profileCache) Get(ctx context.Context, readerID string) (*model.ReaderProfile, error) {
	data, err := c.client.Get(ctx, c.key(readerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p model.ReaderProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

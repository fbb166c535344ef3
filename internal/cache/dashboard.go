package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/inventariate/backend-go/internal/config"
	"github.com/andresuchdata/inventariate/backend-go/internal/pipeline/inventory"
)

const runSummaryKeyPrefix = "dashboard:run_summary:"

// RunSummaryCache keeps decoded run summaries so the dashboard does not hit
// object storage on every request. Summaries never change once written, so
// entries only expire by TTL or explicit invalidation.
type RunSummaryCache interface {
	GetSummary(ctx context.Context, session string) (*inventory.RunSummary, bool, error)
	SetSummary(ctx context.Context, session string, summary *inventory.RunSummary) error
	Invalidate(ctx context.Context, session string) error
	InvalidateAll(ctx context.Context) error
}

type redisRunSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopRunSummaryCache struct{}

func NewRunSummaryCache(cfg config.CacheConfig) (RunSummaryCache, error) {
	if !cfg.Enabled {
		return &noopRunSummaryCache{}, nil
	}

	client, err := dialRedis(cfg)
	if err != nil {
		return nil, err
	}
	return NewRedisRunSummaryCache(client, cacheTTL(cfg)), nil
}

func NewRedisRunSummaryCache(client *redis.Client, ttl time.Duration) RunSummaryCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisRunSummaryCache{client: client, ttl: ttl}
}

func NewNoopRunSummaryCache() RunSummaryCache {
	return &noopRunSummaryCache{}
}

func runSummaryKey(session string) string {
	return runSummaryKeyPrefix + session
}

func (c *redisRunSummaryCache) GetSummary(ctx context.Context, session string) (*inventory.RunSummary, bool, error) {
	payload, err := c.client.Get(ctx, runSummaryKey(session)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var summary inventory.RunSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, false, fmt.Errorf("decode run summary cache: %w", err)
	}
	return &summary, true, nil
}

func (c *redisRunSummaryCache) SetSummary(ctx context.Context, session string, summary *inventory.RunSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run summary cache: %w", err)
	}
	if err := c.client.Set(ctx, runSummaryKey(session), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisRunSummaryCache) Invalidate(ctx context.Context, session string) error {
	if err := c.client.Del(ctx, runSummaryKey(session)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func (c *redisRunSummaryCache) InvalidateAll(ctx context.Context) error {
	removed, err := purgeRunSummaries(ctx, c.client)
	if err != nil {
		return err
	}
	log.Debug().Int64("keys", removed).Msg("run summary cache cleared")
	return nil
}

func (n *noopRunSummaryCache) GetSummary(ctx context.Context, session string) (*inventory.RunSummary, bool, error) {
	return nil, false, nil
}

func (n *noopRunSummaryCache) SetSummary(ctx context.Context, session string, summary *inventory.RunSummary) error {
	return nil
}

func (n *noopRunSummaryCache) Invalidate(ctx context.Context, session string) error {
	return nil
}

func (n *noopRunSummaryCache) InvalidateAll(ctx context.Context) error {
	return nil
}

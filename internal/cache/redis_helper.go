package cache

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/inventariate/backend-go/internal/config"
)

const (
	defaultCacheTTL  = time.Minute
	redisDialTimeout = 5 * time.Second
	scanBatchSize    = 100
)

// dialRedis connects the run summary cache and checks the server answers
// before any upload relies on it.
func dialRedis(cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisDialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("run summary cache unreachable at %s: %w", opts.Addr, err)
	}
	return client, nil
}

func cacheTTL(cfg config.CacheConfig) time.Duration {
	if cfg.DashboardTTLSeconds <= 0 {
		return defaultCacheTTL
	}
	return time.Duration(cfg.DashboardTTLSeconds) * time.Second
}

// buildRedisOptions prefers REDIS_URL and falls back to host, port and db.
func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return opt, nil
	}
	return &redis.Options{
		Addr:        net.JoinHostPort(cmp.Or(cfg.RedisHost, "127.0.0.1"), cmp.Or(cfg.RedisPort, "6379")),
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: redisDialTimeout,
	}, nil
}

// purgeRunSummaries deletes every cached run summary in batches and returns
// how many keys were removed.
func purgeRunSummaries(ctx context.Context, client *redis.Client) (int64, error) {
	var removed int64
	batch := make([]string, 0, scanBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("delete run summaries: %w", err)
		}
		removed += n
		batch = batch[:0]
		return nil
	}

	iter := client.Scan(ctx, 0, runSummaryKeyPrefix+"*", scanBatchSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := flush(); err != nil {
				return removed, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("scan run summaries: %w", err)
	}
	return removed, flush()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"crypto-volatility-alerts/internal/asset"
	"crypto-volatility-alerts/internal/config"
	"crypto-volatility-alerts/internal/storage"
)

// LatestQuotes caches the newest sample per asset in Redis so cheap
// freshness reads don't hit Postgres. Entries carry a TTL equal to the
// staleness bound, so an expired key means the asset is stale.
type LatestQuotes struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

type cachedQuote struct {
	Asset      string    `json:"asset"`
	Price      string    `json:"price"`
	ObservedAt time.Time `json:"observed_at"`
}

// NewLatestQuotes connects to Redis and verifies connectivity.
func NewLatestQuotes(ctx context.Context, cfg config.RedisConfig, ttl time.Duration, logger zerolog.Logger) (*LatestQuotes, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &LatestQuotes{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "latest_cache").Logger(),
	}, nil
}

// Close releases the Redis connection.
func (c *LatestQuotes) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Publish stores the sample as the asset's latest quote.
func (c *LatestQuotes) Publish(ctx context.Context, sample storage.PriceSample) error {
	payload, err := json.Marshal(cachedQuote{
		Asset:      sample.Asset.String(),
		Price:      sample.Price.String(),
		ObservedAt: sample.ObservedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal cached quote: %w", err)
	}
	if err := c.client.Set(ctx, key(sample.Asset), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached quote: %w", err)
	}
	return nil
}

// Latest reads the cached quote for an asset. The second return is
// false on a miss (never written, or expired past the staleness bound).
func (c *LatestQuotes) Latest(ctx context.Context, a asset.Asset) (storage.PriceSample, bool, error) {
	payload, err := c.client.Get(ctx, key(a)).Bytes()
	if errors.Is(err, redis.Nil) {
		return storage.PriceSample{}, false, nil
	}
	if err != nil {
		return storage.PriceSample{}, false, fmt.Errorf("get cached quote: %w", err)
	}

	var cached cachedQuote
	if err := json.Unmarshal(payload, &cached); err != nil {
		return storage.PriceSample{}, false, fmt.Errorf("unmarshal cached quote: %w", err)
	}

	parsed, err := asset.Parse(cached.Asset)
	if err != nil {
		return storage.PriceSample{}, false, fmt.Errorf("parse cached asset: %w", err)
	}
	price, err := decimal.NewFromString(cached.Price)
	if err != nil {
		return storage.PriceSample{}, false, fmt.Errorf("parse cached price: %w", err)
	}

	return storage.PriceSample{
		Asset:      parsed,
		Price:      price,
		ObservedAt: cached.ObservedAt,
	}, true, nil
}

func key(a asset.Asset) string {
	return "latest:" + a.String()
}

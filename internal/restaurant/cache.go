package restaurant

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"livraison-be/internal/logger"
	"livraison-be/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const cacheTTL = 10 * time.Minute

type cachedRepository struct {
	next Repository
	rdb  *redis.Client
}

// NewCachedRepository fronts repo with a Redis read-through cache. A nil
// client disables caching.
func NewCachedRepository(repo Repository, rdb *redis.Client) Repository {
	if rdb == nil {
		return repo
	}
	return &cachedRepository{next: repo, rdb: rdb}
}

func cacheKey(id string) string {
	return fmt.Sprintf("restaurant:%s", id)
}

func (c *cachedRepository) GetByID(ctx context.Context, id string) (*Restaurant, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "cache"), zap.String("restaurant_id", id))

	if raw, err := c.rdb.Get(ctx, cacheKey(id)).Bytes(); err == nil {
		var res Restaurant
		if err := json.Unmarshal(raw, &res); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return &res, nil
		}
	} else if err != redis.Nil {
		log.Warn("restaurant cache unavailable", zap.Error(err))
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	res, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err := c.rdb.Set(ctx, cacheKey(id), data, cacheTTL).Err(); err != nil {
			log.Warn("failed to populate restaurant cache", zap.Error(err))
		}
	}

	return res, nil
}

func (c *cachedRepository) UpdateCommissionOverride(ctx context.Context, id string, override decimal.NullDecimal) error {
	if err := c.next.UpdateCommissionOverride(ctx, id, override); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, cacheKey(id)).Err(); err != nil {
		logger.FromCtx(ctx).Warn("failed to evict restaurant cache", zap.String("restaurant_id", id), zap.Error(err))
	}
	return nil
}

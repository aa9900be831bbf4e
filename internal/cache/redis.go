package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/redis/go-redis/v9"
)

const (
	flightsKey    = "cache:flights"
	generationKey = "cache:flights:generation"
)

var errStaleListing = errors.New("listing invalidated since it was read")

// RedisCache caches the flight listing. Seat counters are never read from it;
// every applied seat change drops the listing through InvalidateFlights, which
// also bumps a generation counter. A refill carries the generation seen on the
// miss and is discarded once the counter has moved on.
type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL: flightsTTL,
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetFlights returns the cached listing, nil on a miss, together with the
// current generation to hand back to SetFlights.
func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, int64, error) {
	values, err := c.client.MGet(ctx, flightsKey, generationKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis get flights: %w", err)
	}
	generation, err := parseGeneration(values[1])
	if err != nil {
		return nil, 0, err
	}
	if values[0] == nil {
		metrics.IncCacheMiss()
		return nil, generation, nil
	}

	data, ok := values[0].(string)
	if !ok {
		return nil, 0, fmt.Errorf("redis get flights: unexpected %T", values[0])
	}
	var flights []domain.Flight
	if err := json.Unmarshal([]byte(data), &flights); err != nil {
		return nil, 0, fmt.Errorf("decode cached flights: %w", err)
	}
	metrics.IncCacheHit()
	return flights, generation, nil
}

// SetFlights stores a listing read from storage after GetFlights reported
// generation. Nothing is written when an invalidation ran in between.
func (c *RedisCache) SetFlights(ctx context.Context, generation int64, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return fmt.Errorf("encode flights: %w", err)
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleListing
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, flightsKey, payload, c.flightsTTL)
			return nil
		})
		return err
	}, generationKey)

	switch {
	case errors.Is(err, errStaleListing), errors.Is(err, redis.TxFailedErr):
		metrics.IncCacheStale()
		return nil
	case err != nil:
		return fmt.Errorf("redis set flights: %w", err)
	}
	return nil
}

func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, flightsKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate flights: %w", err)
	}
	return nil
}

func parseGeneration(v interface{}) (int64, error) {
	if v == nil {
		return 0, nil
	}
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("flights generation: unexpected %T", v)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("flights generation: %w", err)
	}
	return n, nil
}

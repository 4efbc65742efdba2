package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/ftms/config"
	"github.com/Domenick1991/ftms/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Cached search results are keyed by a version number. Bumping the
// version orphans every older entry; they expire through their TTL.
const versionKey = "cache:flights:version"

type RedisCache struct {
	client     *redis.Client
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL,
	)
}

func NewRedisCacheWithClient(client *redis.Client, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, flightsTTL: flightsTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Version returns the current flights cache version, 0 when unset.
func (c *RedisCache) Version(ctx context.Context) (int64, error) {
	v, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return v, nil
}

// InvalidateFlights bumps the version after a seat inventory change.
func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	return c.client.Incr(ctx, versionKey).Err()
}

// GetFlights returns nil, nil on a miss.
func (c *RedisCache) GetFlights(ctx context.Context, version int64, q domain.FlightQuery) ([]domain.Flight, error) {
	var flights []domain.Flight
	ok, err := c.get(ctx, flightsKey(version, q), &flights)
	if err != nil || !ok {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, version int64, q domain.FlightQuery, flights []domain.Flight) error {
	return c.set(ctx, flightsKey(version, q), flights)
}

// GetCities returns nil, nil on a miss.
func (c *RedisCache) GetCities(ctx context.Context, version int64) ([]string, error) {
	var cities []string
	ok, err := c.get(ctx, citiesKey(version), &cities)
	if err != nil || !ok {
		return nil, err
	}
	return cities, nil
}

func (c *RedisCache) SetCities(ctx context.Context, version int64, cities []string) error {
	return c.set(ctx, citiesKey(version), cities)
}

func (c *RedisCache) get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisCache) set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, string(payload), c.flightsTTL).Err()
}

func flightsKey(version int64, q domain.FlightQuery) string {
	date := ""
	if !q.Date.IsZero() {
		date = q.Date.Format(time.DateOnly)
	}
	return fmt.Sprintf("cache:flights:v%d:%s|%s|%s", version, q.Departure, q.Destination, date)
}

func citiesKey(version int64) string {
	return fmt.Sprintf("cache:cities:v%d", version)
}

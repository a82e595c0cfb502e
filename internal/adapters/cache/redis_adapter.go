package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	redisclient "github.com/ecogen/ecogen/backend/internal/infrastructure/clients/redis"
)

// BreakerSettings tunes the circuit breaker in front of Redis
type BreakerSettings struct {
	// ConsecutiveFailures opens the breaker
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

// DefaultBreakerSettings opens after 5 consecutive failures for 30s
var DefaultBreakerSettings = BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}

// RedisAdapter implements the CacheProvider interface using Redis. Calls
// go through a circuit breaker; while it is open every call fails fast and
// callers fall through to the store.
type RedisAdapter struct {
	client  *redisclient.Client
	breaker *gobreaker.CircuitBreaker
}

// NewRedisAdapter creates a new Redis cache adapter with the default breaker
func NewRedisAdapter(client *redisclient.Client) providers.CacheProvider {
	return NewRedisAdapterWithBreaker(client, DefaultBreakerSettings)
}

// NewRedisAdapterWithBreaker creates a Redis cache adapter with custom
// breaker settings
func NewRedisAdapterWithBreaker(client *redisclient.Client, settings BreakerSettings) *RedisAdapter {
	threshold := settings.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultBreakerSettings.ConsecutiveFailures
	}
	return &RedisAdapter{
		client: client,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "redis-cache",
			Timeout: settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("cache circuit breaker state changed")
			},
		}),
	}
}

// State reports the breaker state
func (a *RedisAdapter) State() gobreaker.State {
	return a.breaker.State()
}

func (a *RedisAdapter) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := a.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("cache unavailable: %w", err)
	}
	return result, err
}

// Get retrieves a value from cache. Missing keys yield providers.ErrCacheMiss
// and do not count against the breaker.
func (a *RedisAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := a.execute(func() (interface{}, error) {
		value, err := a.client.Client().Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return value, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}
	value, _ := result.([]byte)
	if value == nil {
		return nil, fmt.Errorf("%w: %s", providers.ErrCacheMiss, key)
	}
	return value, nil
}

// Set stores a value in cache. A non-positive expiration keeps the key
// until it is evicted.
func (a *RedisAdapter) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	expiration := time.Duration(expirationSeconds) * time.Second
	_, err := a.execute(func() (interface{}, error) {
		return nil, a.client.Client().Set(ctx, key, value, expiration).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to set in cache: %w", err)
	}
	return nil
}

// Delete removes a value from cache
func (a *RedisAdapter) Delete(ctx context.Context, key string) error {
	_, err := a.execute(func() (interface{}, error) {
		return nil, a.client.Client().Del(ctx, key).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to delete from cache: %w", err)
	}
	return nil
}

// Exists checks if a key exists in cache
func (a *RedisAdapter) Exists(ctx context.Context, key string) (bool, error) {
	result, err := a.execute(func() (interface{}, error) {
		return a.client.Client().Exists(ctx, key).Result()
	})
	if err != nil {
		return false, fmt.Errorf("failed to check existence in cache: %w", err)
	}
	n, _ := result.(int64)
	return n > 0, nil
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/domain/providers"
	redisclient "github.com/ecogen/ecogen/backend/internal/infrastructure/clients/redis"
)

// subscribeTimeout bounds the wait for Redis to confirm a subscription
const subscribeTimeout = 5 * time.Second

// redisChannel is one Redis subscription fanned out to local subscribers
type redisChannel struct {
	pubsub      *redis.PubSub
	subscribers map[chan *entities.SessionEvent]struct{}
}

// RedisEventBus implements the EventBus interface using Redis Pub/Sub so
// session events reach every API instance. Each channel holds a single
// Redis subscription shared by all local subscribers.
type RedisEventBus struct {
	client *redisclient.Client
	logger zerolog.Logger

	mu       sync.Mutex
	channels map[string]*redisChannel
	closed   bool
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client, logger zerolog.Logger) providers.EventBus {
	return &RedisEventBus{
		client:   client,
		logger:   logger.With().Str("component", "redis_event_bus").Logger(),
		channels: make(map[string]*redisChannel),
	}
}

// Publish publishes an event to every subscriber on every instance
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.SessionEvent) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrBusClosed
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug().Str("channel", channel).Str("event_id", event.ID).Str("kind", string(event.Kind)).Msg("published event")
	return nil
}

// Subscribe subscribes to events on a channel until ctx is cancelled. The
// first local subscriber waits for Redis to confirm the subscription so no
// event published after Subscribe returns is missed. The wait happens without
// holding the bus lock.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.SessionEvent, error) {
	var pubsub *redis.PubSub
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			if pubsub != nil {
				_ = pubsub.Close()
			}
			return nil, ErrBusClosed
		}

		rc, ok := b.channels[channel]
		if !ok && pubsub != nil {
			rc = &redisChannel{pubsub: pubsub, subscribers: make(map[chan *entities.SessionEvent]struct{})}
			b.channels[channel] = rc
			go b.receive(channel, rc)
			pubsub, ok = nil, true
		}
		if ok {
			eventChan := make(chan *entities.SessionEvent, subscriberBuffer)
			rc.subscribers[eventChan] = struct{}{}
			b.logger.Debug().Str("channel", channel).Int("subscribers", len(rc.subscribers)).Msg("subscribed")
			b.mu.Unlock()

			// another subscriber registered the channel first
			if pubsub != nil {
				_ = pubsub.Close()
			}

			go func() {
				<-ctx.Done()
				b.unsubscribe(channel, rc, eventChan)
			}()
			return eventChan, nil
		}
		b.mu.Unlock()

		var err error
		if pubsub, err = b.confirm(ctx, channel); err != nil {
			return nil, err
		}
	}
}

// confirm opens a Redis subscription to channel and waits for the server to
// acknowledge it
func (b *RedisEventBus) confirm(ctx context.Context, channel string) (*redis.PubSub, error) {
	pubsub := b.client.Client().Subscribe(ctx, channel)
	confirmCtx, cancel := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel()
	if _, err := pubsub.Receive(confirmCtx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}
	return pubsub, nil
}

// receive fans Redis messages out to rc's subscribers until its pubsub closes
func (b *RedisEventBus) receive(channel string, rc *redisChannel) {
	for msg := range rc.pubsub.Channel() {
		var event entities.SessionEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			b.logger.Warn().Err(err).Str("channel", channel).Msg("failed to unmarshal event")
			continue
		}

		b.mu.Lock()
		for subscriber := range rc.subscribers {
			e := event
			select {
			case subscriber <- &e:
			default:
				b.logger.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber channel full, skipping event")
			}
		}
		b.mu.Unlock()
	}
	b.drop(channel, rc)
}

func (b *RedisEventBus) unsubscribe(channel string, rc *redisChannel, eventChan chan *entities.SessionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := rc.subscribers[eventChan]; !ok {
		return
	}
	delete(rc.subscribers, eventChan)
	close(eventChan)

	if len(rc.subscribers) == 0 && b.channels[channel] == rc {
		delete(b.channels, channel)
		if err := rc.pubsub.Close(); err != nil {
			b.logger.Warn().Err(err).Str("channel", channel).Msg("failed to close subscription")
		}
	}
}

// drop closes every subscriber of rc once its Redis subscription has ended
func (b *RedisEventBus) drop(channel string, rc *redisChannel) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subscriber := range rc.subscribers {
		close(subscriber)
		delete(rc.subscribers, subscriber)
	}
	if b.channels[channel] == rc {
		delete(b.channels, channel)
	}
}

// Close closes every subscription
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	channels := b.channels
	b.channels = make(map[string]*redisChannel)
	b.mu.Unlock()

	var errs []error
	for channel, rc := range channels {
		if err := rc.pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close subscription %s: %w", channel, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	b.logger.Info().Msg("event bus closed")
	return nil
}

// Package redis carries document change notifications between server
// instances over Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/heartmarshall/labsim/internal/config"
	"github.com/heartmarshall/labsim/internal/docstore"
)

// NewClient creates a client from cfg and pings it.
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Feed implements docstore.Feed. Each document gets its own channel,
// "<prefix>:<collection>/<id>". The client is owned by the caller.
type Feed struct {
	client *redis.Client
	prefix string
	log    *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewFeed creates a Feed publishing under prefix.
func NewFeed(client *redis.Client, prefix string, logger *slog.Logger) *Feed {
	return &Feed{
		client: client,
		prefix: prefix,
		log:    logger.With("component", "redis_feed"),
		done:   make(chan struct{}),
	}
}

// Publish implements docstore.Feed.
func (f *Feed) Publish(ctx context.Context, c docstore.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel(c.Ref), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", c.Ref, err)
	}
	return nil
}

// Subscribe implements docstore.Feed.
func (f *Feed) Subscribe(ctx context.Context, ref docstore.Ref) (<-chan docstore.Change, error) {
	sub := f.client.Subscribe(ctx, f.channel(ref))
	// Wait for the confirmation so no publish after return is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", ref, err)
	}

	out := make(chan docstore.Change, 8)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-f.done:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var c docstore.Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					f.log.Warn("drop malformed change", slog.String("channel", msg.Channel), slog.String("error", err.Error()))
					continue
				}
				select {
				case out <- c:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Close implements docstore.Feed. Open subscriptions are closed.
func (f *Feed) Close() error {
	f.closeOnce.Do(func() { close(f.done) })
	return nil
}

func (f *Feed) channel(ref docstore.Ref) string {
	return f.prefix + ":" + ref.String()
}

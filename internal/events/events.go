// Package events publishes media lifecycle notifications. Delivery is
// fire-and-forget: a failed publish is logged and never surfaced to the
// request that triggered it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Kind identifies the lifecycle event being published.
type Kind string

const (
	KindUploaded Kind = "media.uploaded"
	KindDeleted  Kind = "media.deleted"
)

// Event is the payload published for every media lifecycle change.
type Event struct {
	Kind      Kind      `json:"kind"`
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	StoredKey string    `json:"storedKey"`
	Timestamp time.Time `json:"timestamp"`
}

// Notifier publishes lifecycle events with no delivery guarantee.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
}

// RedisNotifier publishes events on a Redis pub/sub channel.
type RedisNotifier struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisNotifier connects to Redis at redisURL and publishes on channel.
func NewRedisNotifier(redisURL, channel string) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisNotifier{client: client, channel: channel}, nil
}

// Publish sends the event on the configured channel.
func (n *RedisNotifier) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", event.Kind, err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

// NoopNotifier discards every event; used when Redis is not configured.
type NoopNotifier struct{}

// Publish does nothing.
func (NoopNotifier) Publish(context.Context, Event) error { return nil }

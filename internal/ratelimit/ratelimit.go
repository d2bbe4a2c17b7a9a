// Package ratelimit implements fixed-window admission control per identity.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter admits or rejects a request for the given identity.
type Limiter interface {
	// Admit reports whether the identity is within its window budget. The
	// counter is incremented only for admitted requests' accounting; a
	// rejected request mutates nothing beyond the already-exceeded counter.
	Admit(ctx context.Context, identity string) (bool, error)
}

// RedisLimiter counts requests in Redis with one key per identity. The key's
// expiry is armed only on the window's first increment, so repeated requests
// cannot extend the window.
type RedisLimiter struct {
	client redis.UniversalClient
	window time.Duration
	max    int
}

// NewRedisLimiter connects to Redis at redisURL and returns a limiter allowing
// max requests per window per identity.
func NewRedisLimiter(redisURL string, window time.Duration, max int) (*RedisLimiter, error) {
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

	return &RedisLimiter{client: client, window: window, max: max}, nil
}

// Admit increments the identity's window counter and compares it to the budget.
func (l *RedisLimiter) Admit(ctx context.Context, identity string) (bool, error) {
	key := "ratelimit:" + identity
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("increment counter: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, fmt.Errorf("arm window expiry: %w", err)
		}
	}
	return count <= int64(l.max), nil
}

// Close releases the underlying Redis connection.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

// MemoryLimiter is an in-process fixed-window limiter used when Redis is not
// configured. Windows reset lazily on the first request after expiry.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	window  time.Duration
	max     int
	now     func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemoryLimiter returns a limiter allowing max requests per window per identity.
func NewMemoryLimiter(windowSize time.Duration, max int) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*window),
		window:  windowSize,
		max:     max,
		now:     time.Now,
	}
}

// Admit increments the identity's window counter and compares it to the budget.
func (l *MemoryLimiter) Admit(_ context.Context, identity string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[identity]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[identity] = w
	}
	w.count++
	return w.count <= l.max, nil
}

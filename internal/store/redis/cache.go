// Package redis provides the Redis-backed runtime layer: per-symbol
// advisory locks for recompute runs and a latest-signal cache with pub/sub
// fanout for live subscribers. All of it is advisory; SQLite remains the
// source of truth.
package redis

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"stock-analyzer/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	lockPrefix     = "lock:recompute:"
	latestHashKey  = "signal:latest"
	signalChannel  = "pub:signals:daily"
	defaultLockTTL = 10 * time.Minute
)

// Config configures the Redis cache.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
	LockTTL  time.Duration // advisory lock expiry, default 10m
}

// Cache implements model.SymbolLocker and model.SignalPublisher over Redis.
// Publishes pass through a circuit breaker; while the breaker is open, the
// latest payload per symbol is held locally and flushed when Redis recovers.
type Cache struct {
	client  *goredis.Client
	breaker *Breaker
	lockTTL time.Duration

	mu      sync.Mutex
	pending map[string][]byte // symbol → latest unsent payload
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// New connects to Redis and pings the server.
func New(cfg Config) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	c := &Cache{
		client:  client,
		breaker: NewBreaker(5, 10*time.Second),
		lockTTL: ttl,
		pending: make(map[string][]byte),
	}
	c.breaker.OnStateChange = func(from, to BreakerState) {
		log.Printf("[redis] breaker %s -> %s", from, to)
		if to == BreakerClosed {
			go c.flushPending()
		}
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return c, nil
}

// TryLock acquires the advisory recompute lock for a symbol. Returns false
// without error when another holder has it. The TTL bounds how long a
// crashed run can block the symbol.
func (c *Cache) TryLock(ctx context.Context, symbol string) (bool, error) {
	ok, err := c.client.SetNX(ctx, lockPrefix+symbol, time.Now().UTC().Format(time.RFC3339), c.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis lock %s: %w", symbol, err)
	}
	return ok, nil
}

// Unlock releases the advisory lock for a symbol.
func (c *Cache) Unlock(ctx context.Context, symbol string) error {
	if err := c.client.Del(ctx, lockPrefix+symbol).Err(); err != nil {
		return fmt.Errorf("redis unlock %s: %w", symbol, err)
	}
	return nil
}

// PublishLatest caches a symbol's most recent bar and fans it out to
// pub/sub subscribers. While the breaker is open the payload is held
// locally instead; only the newest payload per symbol survives the outage.
func (c *Cache) PublishLatest(ctx context.Context, bar *model.DailyBar) error {
	payload := bar.JSON()

	err := c.breaker.Execute(func() error {
		return c.publish(ctx, bar.Symbol, payload)
	})
	if err == ErrBreakerOpen {
		c.mu.Lock()
		c.pending[bar.Symbol] = payload
		c.mu.Unlock()
		return nil
	}
	return err
}

func (c *Cache) publish(ctx context.Context, symbol string, payload []byte) error {
	pipe := c.client.Pipeline()
	pipe.HSet(ctx, latestHashKey, symbol, payload)
	pipe.Publish(ctx, signalChannel, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis publish %s: %w", symbol, err)
	}
	return nil
}

// flushPending replays payloads held during an outage.
func (c *Cache) flushPending() {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return
	}
	held := c.pending
	c.pending = make(map[string][]byte)
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	flushed := 0
	for symbol, payload := range held {
		if err := c.publish(ctx, symbol, payload); err != nil {
			log.Printf("[redis] flush %s: %v", symbol, err)
			continue
		}
		flushed++
	}
	log.Printf("[redis] flushed %d held signal payloads", flushed)
}

// PendingCount returns how many payloads are held waiting for Redis.
func (c *Cache) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Latest returns the cached latest payload for a symbol, or nil when the
// cache has none.
func (c *Cache) Latest(ctx context.Context, symbol string) ([]byte, error) {
	data, err := c.client.HGet(ctx, latestHashKey, symbol).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis latest %s: %w", symbol, err)
	}
	return data, nil
}

// SubscribeSignals subscribes to the daily signal channel. The caller owns
// the returned PubSub and must close it.
func (c *Cache) SubscribeSignals(ctx context.Context) (*goredis.PubSub, error) {
	pubsub := c.client.Subscribe(ctx, signalChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", signalChannel, err)
	}
	return pubsub, nil
}

// Ping checks connectivity for health endpoints.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

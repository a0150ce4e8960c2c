// Package redis implements the optional second cache tier: a client for a
// Redis-compatible process reachable over a local unix socket.
//
// The tier is strictly additive. If the socket is absent or the connection
// drops past the retry budget, every method degrades to a silent no-op; the
// rest of the system must behave as if this tier never existed.
package redis

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"portfolio/internal/logger"
)

const (
	connectTimeout     = 2 * time.Second
	opTimeout          = 500 * time.Millisecond
	baseBackoff        = 250 * time.Millisecond
	maxBackoff         = 5 * time.Second
	maxConnectAttempts = 10
	scanBatch          = 100
)

// Client wraps go-redis with a connected flag and fail-open semantics.
type Client struct {
	rdb *redis.Client
	log *logger.Logger

	mu           sync.Mutex
	connected    bool
	reconnecting bool
	attemptsLeft int

	hits   int64
	misses int64
}

// Stats reports connection health plus server-side diagnostics when
// connected.
type Stats struct {
	Connected   bool  `json:"connected"`
	Hits        int64 `json:"hits,omitempty"`
	Misses      int64 `json:"misses,omitempty"`
	Keys        int64 `json:"keys,omitempty"`
	MemoryBytes int64 `json:"memoryBytes,omitempty"`
}

// New creates a client for the given unix socket and starts connecting in
// the background. It never blocks and never fails: an unreachable socket
// just leaves the client degraded.
func New(socketPath string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Client{
		rdb: redis.NewClient(&redis.Options{
			Network:         "unix",
			Addr:            socketPath,
			DialTimeout:     connectTimeout,
			ReadTimeout:     opTimeout,
			WriteTimeout:    opTimeout,
			MaxRetries:      -1, // reconnect policy is ours, not go-redis's
			PoolSize:        4,
			MinIdleConns:    0,
			ConnMaxIdleTime: time.Minute,
		}),
		log:          log,
		attemptsLeft: maxConnectAttempts,
	}
	go c.connectLoop()
	return c
}

// Connected reports last-known socket health.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Get reads key into dest (JSON-decoded). Returns false on miss, decode
// failure, or when disconnected.
func (c *Client) Get(ctx context.Context, key string, dest any) bool {
	if !c.Connected() {
		return false
	}
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		c.countMiss()
		return false
	}
	if err != nil {
		c.opFailed("get", err)
		return false
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		c.log.Warn("redis: undecodable cached value", zap.String("key", key), zap.Error(err))
		c.countMiss()
		return false
	}
	c.countHit()
	return true
}

// Set stores value under key as JSON text. Returns false when disconnected
// or on any failure; never an error.
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !c.Connected() {
		return false
	}
	b, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("redis: unserializable value", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := c.rdb.Set(ctx, key, string(b), ttl).Err(); err != nil {
		c.opFailed("set", err)
		return false
	}
	return true
}

// Delete removes one key. Idempotent; no-op when disconnected.
func (c *Client) Delete(ctx context.Context, key string) bool {
	if !c.Connected() {
		return false
	}
	if err := c.rdb.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		c.opFailed("delete", err)
		return false
	}
	return true
}

// DeletePattern removes every key matching the glob pattern using SCAN and
// returns the count removed. Zero when disconnected or on error.
func (c *Client) DeletePattern(ctx context.Context, pattern string) int {
	if !c.Connected() {
		return 0
	}
	var cursor uint64
	var toDelete []string
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			c.opFailed("scan", err)
			return 0
		}
		toDelete = append(toDelete, keys...)
		if next == 0 {
			break
		}
		cursor = next
	}
	if len(toDelete) == 0 {
		return 0
	}
	if err := c.rdb.Del(ctx, toDelete...).Err(); err != nil && err != redis.Nil {
		c.opFailed("delete", err)
		return 0
	}
	return len(toDelete)
}

// FlushAll empties the server database. No-op when disconnected.
func (c *Client) FlushAll(ctx context.Context) bool {
	if !c.Connected() {
		return false
	}
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		c.opFailed("flushall", err)
		return false
	}
	return true
}

// Ping measures a round trip to the server. Used by the metrics endpoint.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	err := c.rdb.Ping(ctx).Err()
	return time.Since(start), err
}

// Stats returns {connected:false} when degraded, or connection health plus
// server-reported key count and memory usage when up.
func (c *Client) Stats(ctx context.Context) Stats {
	c.mu.Lock()
	s := Stats{Connected: c.connected, Hits: c.hits, Misses: c.misses}
	c.mu.Unlock()
	if !s.Connected {
		return Stats{Connected: false}
	}
	if size, err := c.rdb.DBSize(ctx).Result(); err == nil {
		s.Keys = size
	}
	if info, err := c.rdb.Info(ctx, "memory").Result(); err == nil {
		s.MemoryBytes = parseUsedMemory(info)
	}
	return s
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// connectLoop pings with capped exponential backoff until the socket answers
// or the attempt budget runs out, after which the client stays degraded
// until process restart.
func (c *Client) connectLoop() {
	backoff := baseBackoff
	for {
		c.mu.Lock()
		if c.attemptsLeft <= 0 {
			c.reconnecting = false
			c.mu.Unlock()
			c.log.Warn("redis: retry budget exhausted, cache tier disabled until restart")
			return
		}
		c.attemptsLeft--
		c.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		err := c.rdb.Ping(ctx).Err()
		cancel()
		if err == nil {
			c.mu.Lock()
			c.connected = true
			c.reconnecting = false
			c.mu.Unlock()
			c.log.Info("redis: cache tier connected")
			return
		}

		c.log.Debug("redis: connect attempt failed", zap.Error(err), zap.Duration("backoff", backoff))
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// opFailed marks the connection down and restarts the connect loop if any
// retry budget remains. Errors are logged, never propagated.
func (c *Client) opFailed(op string, err error) {
	c.log.Warn("redis: operation failed", zap.String("op", op), zap.Error(err))
	c.mu.Lock()
	c.connected = false
	restart := !c.reconnecting && c.attemptsLeft > 0
	if restart {
		c.reconnecting = true
	}
	c.mu.Unlock()
	if restart {
		go c.connectLoop()
	}
}

func (c *Client) countHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Client) countMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func parseUsedMemory(info string) int64 {
	for _, line := range strings.Split(info, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimRight(line, "\r"), "used_memory:"); ok {
			if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
				return n
			}
		}
	}
	return 0
}

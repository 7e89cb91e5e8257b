// Package redisstore persists save data in Redis.
//
// Values are cached in process. Reads hit Redis only on a cache miss and
// writes are buffered until Flush sends them in a single pipeline. Flush is
// one round trip bounded by Options.Timeout; the game calls it on purchases,
// tutorial completion, phase changes and its flush interval.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gravitas-games/sortshift/internal/logging"
	"github.com/gravitas-games/sortshift/internal/persist"
)

// Options configures the Redis connection.
type Options struct {
	Address   string
	Password  string
	DB        int
	KeyPrefix string
	Timeout   time.Duration
}

// Dial connects to Redis and verifies the connection with PING.
func Dial(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Store is a write-behind persist.Store over a Redis client.
type Store struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	cache  map[string]int
	dirty  map[string]struct{}
	closed bool
}

// New wraps client. The client stays owned by the caller.
func New(client *redis.Client, opts Options, logger *slog.Logger) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Second
	}
	return &Store{
		client:  client,
		prefix:  opts.KeyPrefix,
		timeout: opts.Timeout,
		logger:  logging.OrDiscard(logger),
		cache:   make(map[string]int),
		dirty:   make(map[string]struct{}),
	}
}

// GetInt returns the cached value, loading it from Redis on first use.
// Redis errors are logged and yield def.
func (s *Store) GetInt(key string, def int) int {
	s.mu.Lock()
	if v, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return v
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	v, err := s.client.Get(ctx, s.prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return def
	}
	if err != nil {
		s.logger.Warn("redis read failed, using default", "key", key, "error", err)
		return def
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[key]; ok {
		// A write landed while we were reading.
		return cached
	}
	s.cache[key] = v
	return v
}

// SetInt records the value and marks it for the next Flush.
func (s *Store) SetInt(key string, value int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = value
	s.dirty[key] = struct{}{}
}

// Flush writes every dirty key in one pipeline.
func (s *Store) Flush() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return persist.ErrClosed
	}
	if len(s.dirty) == 0 {
		s.mu.Unlock()
		return nil
	}
	pending := make(map[string]int, len(s.dirty))
	for k := range s.dirty {
		pending[k] = s.cache[k]
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	pipe := s.client.Pipeline()
	for k, v := range pending {
		pipe.Set(ctx, s.prefix+k, v, 0)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush %d keys to Redis: %w", len(pending), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range pending {
		if s.cache[k] == v {
			delete(s.dirty, k)
		}
	}
	return nil
}

// Dirty returns the number of keys waiting for Flush.
func (s *Store) Dirty() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dirty)
}

// Close flushes outstanding writes and refuses further flushes.
func (s *Store) Close() error {
	err := s.Flush()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return err
}

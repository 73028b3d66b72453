// Package redis provides a cache.Store backed by Redis, for sharing
// embeddings across processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fusego/fusego/cache"
	"github.com/redis/go-redis/v9"
)

// Compile time check to ensure Store satisfies the cache.Store interface.
var _ cache.Store = (*Store)(nil)

// Options represents the options for the Redis store.
type Options struct {
	// Prefix is prepended to every key, separating key spaces on a
	// shared Redis instance.
	Prefix string
}

// DefaultOptions contains the default options.
var DefaultOptions = Options{
	Prefix: "fusego:emb:",
}

// Store is a Redis-backed cache.Store. Transient Redis failures on Get
// degrade to a miss so retrieval keeps working without the cache.
type Store struct {
	client redis.UniversalClient
	opts   Options
}

// New creates a new Redis store on top of an existing client.
func New(client redis.UniversalClient, optFns ...func(o *Options)) *Store {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Store{client: client, opts: opts}
}

// Get implements the cache.Store interface.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	b, err := s.client.Get(ctx, s.opts.Prefix+key).Bytes()
	if err != nil {
		return nil, false
	}

	return b, true
}

// Set implements the cache.Store interface.
func (s *Store) Set(ctx context.Context, key string, b []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}

	if err := s.client.Set(ctx, s.opts.Prefix+key, b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Ping verifies connectivity. Useful at startup to fail fast on
// misconfiguration instead of degrading every lookup to a miss.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	return nil
}

// IsMiss reports whether err is the Redis nil reply, e.g. when callers
// use the client directly.
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

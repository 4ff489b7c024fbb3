// Package redisstore persists session records in Redis so that several
// gateway instances can share sessions. Records are stored as JSON under
// KeyPrefix+id with a native Redis expiry.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ggoodman/headerauth-go/sessions"
	"github.com/joeshaw/envdecode"
	"github.com/redis/go-redis/v9"
)

// Config for a Redis-backed Store. Defaults can be loaded via envdecode.
type Config struct {
	// RedisAddr like "localhost:6379". ENV: REDIS_ADDR
	RedisAddr string `env:"REDIS_ADDR,default=localhost:6379"`
	// RedisPassword is optional. ENV: REDIS_PASSWORD
	RedisPassword string `env:"REDIS_PASSWORD"`
	// RedisDB selects the logical database. ENV: REDIS_DB
	RedisDB int `env:"REDIS_DB,default=0"`
	// KeyPrefix for all keys. ENV: SESSIONS_KEY_PREFIX
	KeyPrefix string `env:"SESSIONS_KEY_PREFIX,default=headerauth:sessions:"`
}

const defaultKeyPrefix = "headerauth:sessions:"

type Store struct {
	client    redis.UniversalClient
	keyPrefix string
	owned     bool
}

var _ sessions.Store = (*Store)(nil)

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Store, error) {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "localhost:6379"
	}
	cl := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err := cl.Ping(ctx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	s := NewFromClient(cl, cfg.KeyPrefix)
	s.owned = true
	return s, nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv(ctx context.Context) (*Store, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode env: %w", err)
	}
	return New(ctx, cfg)
}

// NewFromClient wraps an existing client. Close does not close it.
func NewFromClient(client redis.UniversalClient, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &Store{client: client, keyPrefix: keyPrefix}
}

func (s *Store) key(id string) string { return s.keyPrefix + id }

func (s *Store) Put(ctx context.Context, rec *sessions.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("redisstore: invalid ttl %s", ttl)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redisstore: marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key(rec.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("redisstore: set: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*sessions.Record, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: get: %w", err)
	}
	var rec sessions.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("redisstore: unmarshal: %w", err)
	}
	if rec.IsExpired(time.Now()) {
		return nil, nil
	}
	return &rec, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redisstore: del: %w", err)
	}
	return nil
}

// Close closes the client if the Store created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

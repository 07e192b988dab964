// Package redisstore implements store.Store on Redis. Each namespace is a
// hash; keys are hash fields.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bft-labs/syncwire/pkg/log"
	"github.com/bft-labs/syncwire/pkg/store"
)

// Config holds the Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int

	// Prefix is prepended to every namespace hash name.
	Prefix string
}

// Store is a Redis backed store.Store.
type Store struct {
	client *redis.Client
	prefix string
	logger log.Logger
}

// New connects to Redis and pings it before returning.
func New(ctx context.Context, cfg Config, logger log.Logger) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger = log.OrNoop(logger).With(log.Component("redisstore"))
	logger.Info("connected to redis", log.String("addr", cfg.Addr))
	return NewWithClient(rdb, cfg.Prefix, logger), nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of it.
func NewWithClient(client *redis.Client, prefix string, logger log.Logger) *Store {
	if prefix == "" {
		prefix = "syncwire"
	}
	return &Store{client: client, prefix: prefix, logger: log.OrNoop(logger)}
}

func (s *Store) hash(namespace string) string {
	return s.prefix + ":" + namespace
}

func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := store.ValidateKey(namespace, key); err != nil {
		return nil, err
	}
	data, err := s.client.HGet(ctx, s.hash(namespace), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		s.logger.Error("redis get failed", log.String("namespace", namespace), log.String("key", key), log.Err(err))
		return nil, fmt.Errorf("redis hget %s/%s: %w", namespace, key, err)
	}
	return data, nil
}

func (s *Store) Set(ctx context.Context, namespace, key string, value []byte) error {
	if err := store.ValidateKey(namespace, key); err != nil {
		return err
	}
	if err := s.client.HSet(ctx, s.hash(namespace), key, value).Err(); err != nil {
		s.logger.Error("redis set failed", log.String("namespace", namespace), log.String("key", key), log.Err(err))
		return fmt.Errorf("redis hset %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

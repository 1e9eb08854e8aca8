package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/kirillkom/document-intelligence/internal/core/domain"
	"github.com/kirillkom/document-intelligence/internal/core/ports"
)

const keyNamespace = "docintel:object:"

var errCacheMiss = errors.New("cache miss")

// Backend is the subset of a key/value cache the decorator needs.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type redisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, addr, password string, db int) (Backend, func() error, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	return &redisBackend{client: client}, client.Close, nil
}

func (b *redisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, errCacheMiss
	}
	return data, err
}

func (b *redisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *redisBackend) Del(ctx context.Context, key string) error {
	return b.client.Del(ctx, key).Err()
}

// Storage caches reads of extracted texts in front of an object store.
// Retrieval reads every text of an identity on each query, so repeated
// queries hit the cache instead of the bucket. Cache failures never fail
// the call.
type Storage struct {
	inner    ports.ObjectStorage
	backend  Backend
	ttl      time.Duration
	prefixes []string
	logger   *zap.Logger
}

func New(inner ports.ObjectStorage, backend Backend, ttl time.Duration, prefixes []string, logger *zap.Logger) *Storage {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Storage{inner: inner, backend: backend, ttl: ttl, prefixes: prefixes, logger: logger}
}

func (s *Storage) Put(ctx context.Context, key string, data io.Reader, size int64, contentType string) error {
	if err := s.inner.Put(ctx, key, data, size, contentType); err != nil {
		return err
	}
	if s.cacheable(key) {
		if err := s.backend.Del(ctx, keyNamespace+key); err != nil {
			s.logger.Warn("object_cache_invalidate_failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	if !s.cacheable(key) {
		return s.inner.Get(ctx, key)
	}

	cached, err := s.backend.Get(ctx, keyNamespace+key)
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, errCacheMiss):
		s.logger.Warn("object_cache_read_failed", zap.String("key", key), zap.Error(err))
	}

	data, err := s.inner.Get(ctx, key)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			_ = s.backend.Del(ctx, keyNamespace+key)
		}
		return nil, err
	}
	if err := s.backend.Set(ctx, keyNamespace+key, data, s.ttl); err != nil {
		s.logger.Warn("object_cache_write_failed", zap.String("key", key), zap.Error(err))
	}
	return data, nil
}

func (s *Storage) List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	return s.inner.List(ctx, prefix)
}

func (s *Storage) URL(key string) string {
	return s.inner.URL(key)
}

func (s *Storage) cacheable(key string) bool {
	for _, p := range s.prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

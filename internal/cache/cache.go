// Package cache stores raw source responses so pipelines can run cache-first
// and fall back to stale data when an upstream is unavailable.
package cache

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/blake2b"

	"github.com/ONEcampaign/interest-rates/internal/config"
)

// Entry is one cached response body.
type Entry struct {
	Data        []byte    `msgpack:"data"`
	ContentType string    `msgpack:"content_type"`
	Source      string    `msgpack:"source"`
	FetchedAt   time.Time `msgpack:"fetched_at"`
	ExpiresAt   time.Time `msgpack:"expires_at"`
}

// Fresh reports whether the entry has not expired at now.
func (e *Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Repository is implemented by every cache backend. Get returns expired
// entries too (nil, nil when the key is unknown); callers decide whether
// stale data is acceptable.
type Repository interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key derives a fixed-length cache key for a request URL.
func Key(prefix, source, url string) string {
	sum := blake2b.Sum256([]byte(url))
	return prefix + source + ":" + hex.EncodeToString(sum[:])
}

func encode(e Entry) ([]byte, error) {
	b, err := msgpack.Marshal(&e)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return b, nil
}

func decode(b []byte) (*Entry, error) {
	var e Entry
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	return &e, nil
}

// New opens the backend selected in cfg.
func New(cfg config.CacheConfig, paths *config.Paths) (Repository, error) {
	switch cfg.Backend {
	case config.CacheBackendSQLite:
		return NewSQLiteCache(paths.CachePath(cfg.SQLiteFile))
	case config.CacheBackendRedis:
		return NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB), nil
	case config.CacheBackendMemory:
		return NewMemoryCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

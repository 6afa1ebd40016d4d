// Package cache stores detection results keyed by image content.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/MeKo-Tech/godetect/internal/detector"
)

// Backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Cache stores detections for previously seen inputs.
type Cache interface {
	// Get returns the cached detections and whether the key was present.
	Get(ctx context.Context, key string) ([]detector.DetectedObject, bool, error)
	Set(ctx context.Context, key string, objs []detector.DetectedObject) error
	Close() error
}

// Options selects and configures a cache backend.
type Options struct {
	Backend       string
	Size          int           // Memory entries
	TTL           time.Duration // Zero means no expiry
	RedisAddress  string
	RedisPassword string
	RedisDB       int
}

// New builds the cache described by opts.
func New(opts Options) (Cache, error) {
	switch opts.Backend {
	case "", BackendNone:
		return Noop{}, nil
	case BackendMemory:
		return NewMemory(opts.Size, opts.TTL)
	case BackendRedis:
		return NewRedis(RedisOptions{
			Address:  opts.RedisAddress,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			TTL:      opts.TTL,
		}), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", opts.Backend)
	}
}

// Key derives a cache key from the raw input bytes and a settings fingerprint, so
// results computed with other thresholds never collide.
func Key(data []byte, fingerprint string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Noop never stores anything.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]detector.DetectedObject, bool, error) {
	return nil, false, nil
}

func (Noop) Set(context.Context, string, []detector.DetectedObject) error { return nil }

func (Noop) Close() error { return nil }

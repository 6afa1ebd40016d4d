package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/godetect/internal/detector"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "godetect:detections:"

// RedisOptions configures the shared cache.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

// DefaultRedisOptions returns local-server defaults.
func DefaultRedisOptions() RedisOptions {
	return RedisOptions{
		Address: "localhost:6379",
		TTL:     24 * time.Hour,
	}
}

// Redis stores detections as JSON strings so several servers can share results.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a client. No connection is made until the first command.
func NewRedis(opts RedisOptions) *Redis {
	if opts.Address == "" {
		opts.Address = DefaultRedisOptions().Address
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Address,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &Redis{client: client, ttl: opts.TTL}
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]detector.DetectedObject, bool, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var objs []detector.DetectedObject
	if err := json.Unmarshal(data, &objs); err != nil {
		return nil, false, fmt.Errorf("redis get: corrupt entry: %w", err)
	}
	return objs, true, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, objs []detector.DetectedObject) error {
	if objs == nil {
		objs = []detector.DetectedObject{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close implements Cache.
func (r *Redis) Close() error {
	return r.client.Close()
}

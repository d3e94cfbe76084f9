package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ai-khaled/internal/textsim"
)

const redisKeyPrefix = "reply:"

// Redis keeps replies in Redis with a TTL so the cache survives restarts and
// is shared between bot processes. Redis errors count as misses.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedis(ctx context.Context, redisURL string, ttl time.Duration, log zerolog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl, log: log.With().Str("component", "reply_cache").Logger()}, nil
}

func redisKey(text string) string {
	sum := sha1.Sum([]byte(textsim.Normalize(text)))
	return redisKeyPrefix + hex.EncodeToString(sum[:])
}

func (r *Redis) Get(ctx context.Context, text string) (string, bool) {
	v, err := r.client.Get(ctx, redisKey(text)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Warn().Err(err).Msg("cache get failed")
		}
		return "", false
	}
	return v, true
}

func (r *Redis) Set(ctx context.Context, text, reply string) {
	if err := r.client.Set(ctx, redisKey(text), reply, r.ttl).Err(); err != nil {
		r.log.Warn().Err(err).Msg("cache set failed")
	}
}

func (r *Redis) Delete(ctx context.Context, text string) {
	if err := r.client.Del(ctx, redisKey(text)).Err(); err != nil {
		r.log.Warn().Err(err).Msg("cache delete failed")
	}
}

func (r *Redis) Close() error { return r.client.Close() }

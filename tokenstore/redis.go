// Copyright (c) 2025 Mirado Ravelo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "handshake:"

// Redis is a Store backed by a Redis hash per token with a native TTL.
// Eviction is Redis's job; Redeem never sees an expired entry.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis store with the given TTL (DefaultTTL if zero).
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

type redisEntry struct {
	VoterID  string `mapstructure:"voter_id"`
	IssuedAt string `mapstructure:"issued_at"`
}

func (r *Redis) Issue(ctx context.Context, voterID string) (string, error) {
	token := newToken()
	key := redisKeyPrefix + token

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"voter_id":  voterID,
		"issued_at": time.Now().UTC().Format(time.RFC3339),
	})
	pipe.Expire(ctx, key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store handshake token: %w", err)
	}
	return token, nil
}

func (r *Redis) Redeem(ctx context.Context, token string) (string, error) {
	data, err := r.client.HGetAll(ctx, redisKeyPrefix+token).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to look up handshake token: %w", err)
	}
	if len(data) == 0 {
		return "", ErrNotFound
	}

	var entry redisEntry
	if err := mapstructure.Decode(data, &entry); err != nil {
		return "", fmt.Errorf("failed to decode handshake token: %w", err)
	}
	return entry.VoterID, nil
}

func (r *Redis) Revoke(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, redisKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to revoke handshake token: %w", err)
	}
	return nil
}

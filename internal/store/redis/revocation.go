package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revocations is the list of revoked token ids. Entries expire together with
// the token they revoke, so the set never grows beyond live tokens.
type Revocations struct {
	client *redis.Client
}

func New(ctx context.Context, addr, password string, db int) (*Revocations, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return &Revocations{client: client}, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client) *Revocations {
	return &Revocations{client: client}
}

func (r *Revocations) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("redis.Revocations.Close: %w", err)
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (r *Revocations) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.Revocations.Ping: %w", err)
	}
	return nil
}

// Revoke marks jti as revoked until the given time. Tokens that already
// expired need no entry.
func (r *Revocations) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, RevokedKey(jti), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis.Revocations.Revoke: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti was revoked.
func (r *Revocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := r.client.Get(ctx, RevokedKey(jti)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis.Revocations.IsRevoked: %w", err)
	}
	return true, nil
}

// RevokedKey returns the Redis key marking a revoked token id.
func RevokedKey(jti string) string {
	return "revoked:jti:" + jti
}

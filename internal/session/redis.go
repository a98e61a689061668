// Package session provides the Redis-backed session store. Sessions live as
// JSON values whose key TTL tracks the sliding expiry, so Redis itself drops
// expired sessions and no sweeper is needed.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "soundpad:session:"
	pingTimeout = 2 * time.Second
)

// NewClient parses redisURL and returns a client that answered a ping.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: invalid URL: %w", err)
	}
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping failed: %w", err)
	}
	return client, nil
}

// record is the stored JSON value.
type record struct {
	UserID    int64     `json:"uid"`
	Username  string    `json:"unm"`
	ExpiresAt time.Time `json:"exp"`
}

// RedisStore implements the session store on top of Redis.
type RedisStore struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisStore returns a store using client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func key(id string) string {
	return keyPrefix + id
}

// ttl converts an absolute expiry into a key TTL. Redis rejects non-positive
// expirations on SET, so an already elapsed expiry keeps the key for a moment
// and lets the reader report it as expired.
func (s *RedisStore) ttl(expiresAt time.Time) time.Duration {
	d := expiresAt.Sub(s.now())
	if d < time.Second {
		return time.Second
	}
	return d
}

// Create stores sess under its id.
func (s *RedisStore) Create(ctx context.Context, sess models.Session) error {
	data, err := json.Marshal(record{UserID: sess.UserID, Username: sess.Username, ExpiresAt: sess.ExpiresAt})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.client.Set(ctx, key(sess.ID), data, s.ttl(sess.ExpiresAt)).Err(); err != nil {
		return apperr.IO("redis set session", err)
	}
	return nil
}

// Get loads session id, or apperr.ErrNotFound when the key is gone.
func (s *RedisStore) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.IO("redis get session", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, apperr.IO("decode session", err)
	}
	return &models.Session{ID: id, UserID: rec.UserID, Username: rec.Username, ExpiresAt: rec.ExpiresAt}, nil
}

// Touch slides the expiry of session id. The write only succeeds if the key
// still exists, so a concurrent logout is never undone.
func (s *RedisStore) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record{UserID: sess.UserID, Username: sess.Username, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	ok, err := s.client.SetXX(ctx, key(id), data, s.ttl(expiresAt)).Result()
	if err != nil {
		return apperr.IO("redis touch session", err)
	}
	if !ok {
		return fmt.Errorf("session: %w", apperr.ErrNotFound)
	}
	return nil
}

// Delete removes session id. Deleting a missing session is not an error.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, key(id)).Err(); err != nil {
		return apperr.IO("redis delete session", err)
	}
	return nil
}

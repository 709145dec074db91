// Package session keeps per-login state in Redis: the session record the
// auth middleware checks, the ephemeral fallback profile and the last known
// location. Everything expires with the session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pih12/Pravah/models"
)

var ErrNotFound = errors.New("session not found or expired")

// Record is what the store holds for a live session.
type Record struct {
	SessionID string      `json:"sid"`
	UserID    string      `json:"user_id"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

// Context is the resolved identity a request runs as.
type Context struct {
	SessionID string
	UserID    string
	Email     string
	Role      models.Role
	Profile   models.Profile
}

func (c Context) Principal() models.Principal {
	return models.Principal{Subject: c.UserID, Role: c.Role}
}

type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &RedisStore{client: client, prefix: "session:", ttl: ttl}
}

func (s *RedisStore) key(sid string) string         { return s.prefix + sid }
func (s *RedisStore) profileKey(sid string) string  { return s.prefix + sid + ":profile" }
func (s *RedisStore) locationKey(sid string) string { return s.prefix + sid + ":gps" }

func (s *RedisStore) Create(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return s.setJSON(ctx, s.key(rec.SessionID), rec, "save session")
}

func (s *RedisStore) Lookup(ctx context.Context, sid string) (Record, error) {
	var rec Record
	err := s.getJSON(ctx, s.key(sid), &rec, "lookup session")
	return rec, err
}

// Revoke deletes the session and everything scoped to it.
func (s *RedisStore) Revoke(ctx context.Context, sid string) error {
	if err := s.client.Del(ctx, s.key(sid), s.profileKey(sid), s.locationKey(sid)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// SaveFallbackProfile stores an ephemeral profile for the session. It is
// never written to the shared profile store.
func (s *RedisStore) SaveFallbackProfile(ctx context.Context, sid string, p models.Profile) error {
	p.LocalMode = true
	return s.setJSON(ctx, s.profileKey(sid), p, "save fallback profile")
}

func (s *RedisStore) FallbackProfile(ctx context.Context, sid string) (models.Profile, error) {
	var p models.Profile
	err := s.getJSON(ctx, s.profileKey(sid), &p, "lookup fallback profile")
	return p, err
}

func (s *RedisStore) SaveLocation(ctx context.Context, sid string, gps models.GPS) error {
	return s.setJSON(ctx, s.locationKey(sid), gps, "save location")
}

func (s *RedisStore) LastLocation(ctx context.Context, sid string) (models.GPS, error) {
	var gps models.GPS
	err := s.getJSON(ctx, s.locationKey(sid), &gps, "lookup location")
	return gps, err
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v interface{}, op string) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%s: marshal: %w", op, err)
	}
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *RedisStore) getJSON(ctx context.Context, key string, v interface{}, op string) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: unmarshal: %w", op, err)
	}
	return nil
}

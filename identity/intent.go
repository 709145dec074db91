package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/pih12/Pravah/models"
)

// IntentStore remembers the role a user asked for at registration, keyed by
// email. Entries do not expire.
type IntentStore interface {
	SaveIntendedRole(ctx context.Context, email string, role models.Role) error
	IntendedRole(ctx context.Context, email string) (models.Role, bool, error)
}

type RedisIntentStore struct {
	client *redis.Client
	prefix string
}

func NewRedisIntentStore(client *redis.Client) *RedisIntentStore {
	return &RedisIntentStore{client: client, prefix: "intended_role:"}
}

func (s *RedisIntentStore) key(email string) string {
	return s.prefix + normalizeEmail(email)
}

func (s *RedisIntentStore) SaveIntendedRole(ctx context.Context, email string, role models.Role) error {
	if err := s.client.Set(ctx, s.key(email), string(role), 0).Err(); err != nil {
		return fmt.Errorf("save intended role: %w", err)
	}
	return nil
}

func (s *RedisIntentStore) IntendedRole(ctx context.Context, email string) (models.Role, bool, error) {
	val, err := s.client.Get(ctx, s.key(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("lookup intended role: %w", err)
	}
	role, ok := models.ParseRole(val)
	return role, ok, nil
}

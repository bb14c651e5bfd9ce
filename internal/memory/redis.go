// internal/memory/redis.go
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"semantic-search-api/internal/models"
)

const sessionKeyPrefix = "session:context:"

// RedisStore keeps session contexts as JSON values in Redis with an
// optional TTL. Same contract as the in-memory store: a missing key
// loads as an empty context, saves overwrite unconditionally.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, sessionID string) (*models.ConversationContext, error) {
	val, err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if errors.Is(err, redis.Nil) {
		return &models.ConversationContext{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", sessionID, err)
	}

	var cc models.ConversationContext
	if err := json.Unmarshal([]byte(val), &cc); err != nil {
		// A corrupt value is treated as a fresh session rather than a
		// permanently broken one.
		return &models.ConversationContext{}, nil
	}
	return &cc, nil
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, cc *models.ConversationContext) error {
	data, err := json.Marshal(cc)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sessionID, err)
	}

	if err := s.client.Set(ctx, sessionKeyPrefix+sessionID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session %s: %w", sessionID, err)
	}
	return nil
}

// internal/memory/store.go
package memory

import (
	"context"

	"semantic-search-api/internal/models"
)

// Store is the session memory contract: load at turn start, save at
// turn end. Saves are last-writer-wins; the store never merges
// concurrent writes for the same session. No durability is promised
// beyond process lifetime (the Redis store adds a TTL, nothing more).
type Store interface {
	Load(ctx context.Context, sessionID string) (*models.ConversationContext, error)
	Save(ctx context.Context, sessionID string, cc *models.ConversationContext) error
}

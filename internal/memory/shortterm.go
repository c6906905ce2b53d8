package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ShortTermStore caches the recent conversation window in Redis lists.
// It is best effort: the durable message log in Postgres is authoritative,
// and callers fall back to it when Redis is empty or unavailable.
type ShortTermStore struct {
	client *redis.Client
}

// NewShortTermStore creates a new short-term conversation cache.
func NewShortTermStore(client *redis.Client) *ShortTermStore {
	return &ShortTermStore{client: client}
}

func turnsKey(conversationID uuid.UUID) string {
	return fmt.Sprintf("turns:%s", conversationID.String())
}

// RecentTurns returns the last `limit` turns for the conversation, oldest first.
func (s *ShortTermStore) RecentTurns(ctx context.Context, conversationID uuid.UUID, limit int) ([]Turn, error) {
	key := turnsKey(conversationID)

	vals, err := s.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}

	turns := make([]Turn, 0, len(vals))
	for _, v := range vals {
		var t Turn
		if err := json.Unmarshal([]byte(v), &t); err != nil {
			continue // skip malformed entries
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// AppendTurn adds a turn to the conversation window, trims it to maxTurns and
// refreshes the TTL.
func (s *ShortTermStore) AppendTurn(ctx context.Context, conversationID uuid.UUID, turn Turn, maxTurns, ttlSec int) error {
	key := turnsKey(conversationID)

	data, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("marshaling turn: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, int64(-maxTurns), -1)
	pipe.Expire(ctx, key, time.Duration(ttlSec)*time.Second)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

// Clear drops the cached window for a conversation.
func (s *ShortTermStore) Clear(ctx context.Context, conversationID uuid.UUID) error {
	return s.client.Del(ctx, turnsKey(conversationID)).Err()
}

// Package redis parks undeliverable envelopes on Redis lists.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"validation-worker/internal/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix prefixes the per-ai_service dead-letter lists.
const DefaultKeyPrefix = "validation:dead-letters:"

type redisDeadLetterRepository struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisDeadLetterRepository creates a repository appending dead letters
// to the list prefix+aiService. An empty prefix uses DefaultKeyPrefix.
func NewRedisDeadLetterRepository(client *redis.Client, prefix string, logger *slog.Logger) domain.DeadLetterRepository {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &redisDeadLetterRepository{
		client: client,
		prefix: prefix,
		logger: logger.With("component", "redis-dead-letters"),
	}
}

func (r *redisDeadLetterRepository) key(aiService string) string {
	return r.prefix + aiService
}

// Save appends the letter to its ai_service list.
func (r *redisDeadLetterRepository) Save(ctx context.Context, letter *domain.DeadLetter) error {
	if err := letter.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter %s: %w", letter.ID, err)
	}
	if err := r.client.RPush(ctx, r.key(letter.AIService), data).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter %s to redis: %w", letter.ID, err)
	}
	return nil
}

// List returns up to limit letters from the head of the list, oldest first.
func (r *redisDeadLetterRepository) List(ctx context.Context, aiService string, limit int) ([]*domain.DeadLetter, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	values, err := r.client.LRange(ctx, r.key(aiService), 0, stop).Result()
	if err == redis.Nil {
		return []*domain.DeadLetter{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters for %s from redis: %w", aiService, err)
	}

	letters := make([]*domain.DeadLetter, 0, len(values))
	for _, v := range values {
		var letter domain.DeadLetter
		if err := json.Unmarshal([]byte(v), &letter); err != nil {
			r.logger.Warn("failed to unmarshal dead letter from redis", "key", r.key(aiService), "error", err)
			continue
		}
		letters = append(letters, &letter)
	}
	return letters, nil
}

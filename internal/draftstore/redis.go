// internal/draftstore/redis.go
package draftstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"restaurant-onboarding/internal/models"
)

// RedisStore keeps wizard drafts in Redis as JSON values with a TTL, so
// abandoned sessions disappear without a cleanup job.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

func NewRedisStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "wizard:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (s *RedisStore) Get(ctx context.Context, key string) (*models.WizardSessionState, error) {
	raw, err := s.client.Get(ctx, s.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read draft %s: %w", key, err)
	}

	var state models.WizardSessionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to decode draft %s: %w", key, err)
	}
	return &state, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, state *models.WizardSessionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode draft %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.keyPrefix+key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store draft %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to clear draft %s: %w", key, err)
	}
	return nil
}

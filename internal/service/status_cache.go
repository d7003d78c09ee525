package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/coursework-api/internal/dto"
)

// StatusCache stores the enrolled-assignment listing per student. A nil
// cache or a nil client disables caching.
type StatusCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewStatusCache wires the listing cache.
func NewStatusCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *StatusCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &StatusCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "status_cache").Logger(),
	}
}

func statusCacheKey(studentID uint) string {
	return fmt.Sprintf("coursework:enrolled:student:%d", studentID)
}

func (c *StatusCache) enabled() bool {
	return c != nil && c.client != nil
}

// Load returns the cached listing when present.
func (c *StatusCache) Load(ctx context.Context, studentID uint) ([]dto.EnrolledAssignmentResponse, bool) {
	if !c.enabled() {
		return nil, false
	}

	cached, err := c.client.Get(ctx, statusCacheKey(studentID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to read enrolled listing cache")
		}
		return nil, false
	}

	var items []dto.EnrolledAssignmentResponse
	if err := json.Unmarshal([]byte(cached), &items); err != nil {
		c.logger.Warn().Err(err).Uint("student_id", studentID).Msg("discarding malformed enrolled listing cache")
		return nil, false
	}
	return items, true
}

// Store caches the listing for the configured TTL, or for limit when it is
// positive and shorter.
func (c *StatusCache) Store(ctx context.Context, studentID uint, items []dto.EnrolledAssignmentResponse, limit time.Duration) {
	if !c.enabled() {
		return
	}

	ttl := c.ttl
	if limit > 0 && limit < ttl {
		ttl = limit
	}

	payload, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statusCacheKey(studentID), payload, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to store enrolled listing cache")
	}
}

// Invalidate drops cached listings for the given students.
func (c *StatusCache) Invalidate(ctx context.Context, studentIDs ...uint) {
	if !c.enabled() || len(studentIDs) == 0 {
		return
	}

	keys := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		keys = append(keys, statusCacheKey(id))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate enrolled listing cache")
	}
}

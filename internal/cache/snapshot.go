package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/practice-queue/internal/scheduler"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when no snapshot is stored for the user and day
var ErrMiss = errors.New("cache miss")

const (
	keyPrefix     = "practice:queue"
	scanBatchSize = 100

	// DefaultTTL bounds how long a snapshot lives when no TTL is configured
	DefaultTTL = 10 * time.Minute
)

// SnapshotCache stores computed queue results in Redis, one entry per user and calendar day.
// A result only changes when the day rolls over, the user's attempts change or the catalog
// changes, so entries are addressed by day and generation. Invalidation bumps a generation
// counter, which makes snapshots computed before it unreachable even if they are written late.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache creates a cache over client. A non-positive ttl selects DefaultTTL.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

func globalGenerationKey() string {
	return keyPrefix + ":gen"
}

func userGenerationKey(userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:gen", keyPrefix, userID)
}

func snapshotKey(userID uuid.UUID, generation, day string) string {
	return fmt.Sprintf("%s:%s:v%s:%s", keyPrefix, userID, generation, day)
}

func userPattern(userID uuid.UUID) string {
	return fmt.Sprintf("%s:%s:v*", keyPrefix, userID)
}

func allSnapshotsPattern() string {
	return keyPrefix + ":*:v*"
}

// generationToken combines the catalog-wide and per-user counters; missing counters read as 0
func generationToken(global, user any) string {
	return fmt.Sprintf("%s.%s", counterValue(global), counterValue(user))
}

func counterValue(v any) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return "0"
	}
	return s
}

// Generation returns the token snapshots of userID are currently stored under.
// Read it before computing a result and pass it to Set.
func (c *SnapshotCache) Generation(ctx context.Context, userID uuid.UUID) (string, error) {
	values, err := c.client.MGet(ctx, globalGenerationKey(), userGenerationKey(userID)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to read queue snapshot generation: %w", err)
	}
	if len(values) != 2 {
		return "", fmt.Errorf("unexpected generation reply of %d values", len(values))
	}
	return generationToken(values[0], values[1]), nil
}

// Get returns the snapshot stored for userID on day (YYYY-MM-DD) under generation
func (c *SnapshotCache) Get(ctx context.Context, userID uuid.UUID, generation, day string) (*scheduler.Result, error) {
	data, err := c.client.Get(ctx, snapshotKey(userID, generation, day)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue snapshot: %w", err)
	}
	return decodeResult(data)
}

// Set stores result under its own day and generation
func (c *SnapshotCache) Set(ctx context.Context, userID uuid.UUID, generation string, result *scheduler.Result) error {
	data, err := encodeResult(result)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, snapshotKey(userID, generation, result.Day), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write queue snapshot: %w", err)
	}
	return nil
}

// Invalidate advances the generation of userID and drops its stored snapshots
func (c *SnapshotCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	if err := c.client.Incr(ctx, userGenerationKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to advance queue snapshot generation: %w", err)
	}
	return c.deleteMatching(ctx, userPattern(userID))
}

// InvalidateAll advances the generation of every user, e.g. after the catalog changed
func (c *SnapshotCache) InvalidateAll(ctx context.Context) error {
	if err := c.client.Incr(ctx, globalGenerationKey()).Err(); err != nil {
		return fmt.Errorf("failed to advance queue snapshot generation: %w", err)
	}
	return c.deleteMatching(ctx, allSnapshotsPattern())
}

// Ping checks that Redis is reachable
func (c *SnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *SnapshotCache) deleteMatching(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, scanBatchSize).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan queue snapshots: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete queue snapshots: %w", err)
	}
	return nil
}

func encodeResult(result *scheduler.Result) ([]byte, error) {
	if result == nil {
		return nil, errors.New("cannot cache a nil queue result")
	}
	if result.Day == "" {
		return nil, errors.New("queue result has no day")
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to encode queue snapshot: %w", err)
	}
	return data, nil
}

func decodeResult(data []byte) (*scheduler.Result, error) {
	var result scheduler.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode queue snapshot: %w", err)
	}
	return &result, nil
}

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XavierBriggs/Apollo/pkg/models"
	"github.com/redis/go-redis/v9"
)

const (
	opportunitiesKeyFormat = "opportunities:%s" // opportunities:premium
	lastRefreshKey         = "refresh:last_ts"
	cycleIDKey             = "refresh:cycle_id"

	// RefreshChannel carries cycle-complete notifications between
	// instances. The SSE broadcaster subscribes to it.
	RefreshChannel = "apollo.refresh"
)

// CachedCycle is the value stored under each tier key: one cycle's entitled
// opportunity list plus the cycle identity it came from.
type CachedCycle struct {
	CycleID       string               `json:"cycle_id"`
	RefreshedAt   time.Time            `json:"refreshed_at"`
	Opportunities []models.Opportunity `json:"opportunities"`
}

// RefreshEvent is the message published after a cache swap.
type RefreshEvent struct {
	Type    string    `json:"type"`
	CycleID string    `json:"cycle_id"`
	TS      time.Time `json:"ts"`
}

// Store is the hot read model on Redis. Writes are bulk-replace per cycle;
// readers always see one complete cycle, never a mix.
type Store struct {
	redis *redis.Client
}

// NewStore creates a hot cache store on an existing Redis client.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

// SwapCycle atomically replaces every tier's opportunity list and the
// refresh bookkeeping in a single MULTI/EXEC, so a reader observes either
// the previous cycle or this one in full.
func (s *Store) SwapCycle(ctx context.Context, byTier map[models.Tier][]models.Opportunity, cycleID string, refreshedAt time.Time) error {
	pipe := s.redis.TxPipeline()

	for tier, opps := range byTier {
		cycle := CachedCycle{
			CycleID:       cycleID,
			RefreshedAt:   refreshedAt,
			Opportunities: opps,
		}

		data, err := json.Marshal(cycle)
		if err != nil {
			return fmt.Errorf("marshal cycle for tier %s: %w", tier, err)
		}

		pipe.Set(ctx, fmt.Sprintf(opportunitiesKeyFormat, tier), data, 0)
	}

	pipe.Set(ctx, lastRefreshKey, refreshedAt.UTC().Unix(), 0)
	pipe.Set(ctx, cycleIDKey, cycleID, 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache swap exec: %w", err)
	}

	return nil
}

// GetCycle returns the cached cycle for a tier, or nil when the cache has
// not been populated yet (pre-first-cycle warm-up).
func (s *Store) GetCycle(ctx context.Context, tier models.Tier) (*CachedCycle, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf(opportunitiesKeyFormat, tier)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tier %s: %w", tier, err)
	}

	var cycle CachedCycle
	if err := json.Unmarshal(data, &cycle); err != nil {
		return nil, fmt.Errorf("unmarshal cycle for tier %s: %w", tier, err)
	}

	return &cycle, nil
}

// LastRefresh returns the timestamp of the last successful cycle. ok is
// false when no cycle has ever completed.
func (s *Store) LastRefresh(ctx context.Context) (time.Time, bool, error) {
	unix, err := s.redis.Get(ctx, lastRefreshKey).Int64()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get last refresh: %w", err)
	}

	return time.Unix(unix, 0).UTC(), true, nil
}

// PublishRefresh notifies subscribers (local and on other instances) that
// a cycle swapped in.
func (s *Store) PublishRefresh(ctx context.Context, event RefreshEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal refresh event: %w", err)
	}

	if err := s.redis.Publish(ctx, RefreshChannel, data).Err(); err != nil {
		return fmt.Errorf("publish refresh event: %w", err)
	}

	return nil
}

// SubscribeRefresh opens a subscription on the refresh channel. The caller
// owns the returned PubSub and must Close it.
func (s *Store) SubscribeRefresh(ctx context.Context) *redis.PubSub {
	return s.redis.Subscribe(ctx, RefreshChannel)
}

// Ping reports cache connectivity for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

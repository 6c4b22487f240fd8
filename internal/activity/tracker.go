package activity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/XavierBriggs/Apollo/internal/cache"
	"github.com/redis/go-redis/v9"
)

const sessionKeyFormat = "activity:sessions:%s"

// Never is the staleness reported before any cycle has completed.
const Never = time.Duration(math.MaxInt64)

// Tracker records viewer heartbeats and answers the two questions the
// scheduler asks: is anyone watching, and how stale is the data.
type Tracker struct {
	redis *redis.Client
	store *cache.Store
	ttl   time.Duration
}

// NewTracker creates an activity tracker. ttl is the heartbeat timeout; a
// session whose last heartbeat is ttl old no longer counts as active.
func NewTracker(redisClient *redis.Client, store *cache.Store, ttl time.Duration) *Tracker {
	return &Tracker{
		redis: redisClient,
		store: store,
		ttl:   ttl,
	}
}

// SessionID derives a stable session identity from the requester, so
// repeat requests from the same viewer coalesce into one session key.
func SessionID(userID, clientIP, userAgent string) string {
	h := sha256.Sum256([]byte(userID + "|" + clientIP + "|" + userAgent))
	return hex.EncodeToString(h[:16])
}

// RecordAccess marks a session as active now. The key carries the
// heartbeat TTL so expiry needs no sweeper.
func (t *Tracker) RecordAccess(ctx context.Context, sessionID string, now time.Time) error {
	key := fmt.Sprintf(sessionKeyFormat, sessionID)
	if err := t.redis.Set(ctx, key, now.UTC().Unix(), t.ttl).Err(); err != nil {
		return fmt.Errorf("record access: %w", err)
	}
	return nil
}

// HasActiveViewers reports whether at least one session heartbeat is
// unexpired.
func (t *Tracker) HasActiveViewers(ctx context.Context) (bool, error) {
	var cursor uint64
	for {
		keys, next, err := t.redis.Scan(ctx, cursor, fmt.Sprintf(sessionKeyFormat, "*"), 100).Result()
		if err != nil {
			return false, fmt.Errorf("scan sessions: %w", err)
		}
		if len(keys) > 0 {
			return true, nil
		}
		if next == 0 {
			return false, nil
		}
		cursor = next
	}
}

// TimeSinceLastRefresh returns now minus the last successful cycle
// timestamp, or Never when no cycle has completed.
func (t *Tracker) TimeSinceLastRefresh(ctx context.Context, now time.Time) (time.Duration, error) {
	last, ok, err := t.store.LastRefresh(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return Never, nil
	}
	return now.Sub(last), nil
}

// Staleness is TimeSinceLastRefresh against the wall clock.
func (t *Tracker) Staleness(ctx context.Context) (time.Duration, error) {
	return t.TimeSinceLastRefresh(ctx, time.Now().UTC())
}

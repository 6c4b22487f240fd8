//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/XavierBriggs/Apollo/internal/cache"
	"github.com/XavierBriggs/Apollo/pkg/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*cache.Store, *redis.Client) {
	t.Helper()

	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	t.Cleanup(func() { redisClient.Close() })

	require.NoError(t, redisClient.FlushDB(context.Background()).Err())
	return cache.NewStore(redisClient), redisClient
}

func TestSwapCycle_ReplacesAllTiers(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	refreshedAt := time.Now().UTC().Truncate(time.Second)
	byTier := map[models.Tier][]models.Opportunity{
		models.TierFree:    {{ID: "a", EVPercent: -3.0}},
		models.TierBasic:   {{ID: "a", EVPercent: -3.0}, {ID: "b", EVPercent: 2.1}},
		models.TierPremium: {{ID: "a"}, {ID: "b"}, {ID: "c"}},
		models.TierAdmin:   {{ID: "a"}, {ID: "b"}, {ID: "c"}},
	}

	require.NoError(t, store.SwapCycle(ctx, byTier, "cycle-1", refreshedAt))

	free, err := store.GetCycle(ctx, models.TierFree)
	require.NoError(t, err)
	require.NotNil(t, free)
	assert.Equal(t, "cycle-1", free.CycleID)
	assert.Len(t, free.Opportunities, 1)

	premium, err := store.GetCycle(ctx, models.TierPremium)
	require.NoError(t, err)
	assert.Len(t, premium.Opportunities, 3)

	last, ok, err := store.LastRefresh(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, last.Equal(refreshedAt))
}

func TestGetCycle_EmptyCache(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	cycle, err := store.GetCycle(ctx, models.TierPremium)
	require.NoError(t, err)
	assert.Nil(t, cycle)

	_, ok, err := store.LastRefresh(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSwapCycle_SecondCycleWinsEverywhere(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	first := map[models.Tier][]models.Opportunity{
		models.TierAdmin: {{ID: "a"}},
	}
	second := map[models.Tier][]models.Opportunity{
		models.TierAdmin: {{ID: "b"}, {ID: "c"}},
	}

	require.NoError(t, store.SwapCycle(ctx, first, "cycle-1", time.Now().UTC()))
	require.NoError(t, store.SwapCycle(ctx, second, "cycle-2", time.Now().UTC()))

	cycle, err := store.GetCycle(ctx, models.TierAdmin)
	require.NoError(t, err)
	assert.Equal(t, "cycle-2", cycle.CycleID)
	assert.Len(t, cycle.Opportunities, 2)
}

func TestPublishRefresh_ReachesSubscriber(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	sub := store.SubscribeRefresh(ctx)
	defer sub.Close()

	// Wait for the subscription to be established
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	event := cache.RefreshEvent{Type: "refresh", CycleID: "cycle-9", TS: time.Now().UTC()}
	require.NoError(t, store.PublishRefresh(ctx, event))

	select {
	case msg := <-sub.Channel():
		assert.Contains(t, msg.Payload, "cycle-9")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for refresh event")
	}
}

package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/XavierBriggs/Apollo/internal/assemble"
	"github.com/XavierBriggs/Apollo/internal/persist"
	"github.com/XavierBriggs/Apollo/pkg/models"
	"github.com/XavierBriggs/Apollo/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	snapshot *models.Snapshot
	err      error
}

func (f *fakeSource) FetchSnapshot(ctx context.Context, sportKeys []string, markets []models.MarketKind) (*models.Snapshot, error) {
	return f.snapshot, f.err
}

func (f *fakeSource) RateLimits() models.RateLimits { return models.RateLimits{} }

type captureSink struct {
	records []persist.Record
}

func (c *captureSink) Enqueue(records []persist.Record) {
	c.records = append(c.records, records...)
}

func testSnapshot(fetchedAt time.Time) *models.Snapshot {
	market := models.Market{
		Event: testutil.NewTestEvent("Celtics", "Lakers", 3),
		Kind:  models.MarketMoneyline,
		Outcomes: []models.Outcome{
			{Key: "Lakers", Offers: []models.Offer{{BookKey: "fanduel", Price: 110}}},
			{Key: "Celtics", Offers: []models.Offer{{BookKey: "fanduel", Price: -130}}},
		},
	}

	return &models.Snapshot{
		FetchedAt: fetchedAt,
		Markets:   []models.Market{market},
	}
}

func TestRunCycle_FetchFailureLeavesCacheAlone(t *testing.T) {
	source := &fakeSource{err: errors.New("upstream 503")}
	sink := &captureSink{}
	p := New(source, assemble.NewAssembler(nil, 0), nil, sink, []string{"basketball_nba"}, []models.MarketKind{models.MarketMoneyline})

	err := p.RunCycle(context.Background(), "cycle-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch snapshot")
	assert.Empty(t, sink.records, "nothing may reach persistence on a failed fetch")
}

func TestRunCycle_EmptySnapshotIsNotAnError(t *testing.T) {
	source := &fakeSource{snapshot: &models.Snapshot{FetchedAt: time.Now().UTC()}}
	sink := &captureSink{}
	p := New(source, assemble.NewAssembler(nil, 0), nil, sink, []string{"basketball_nba"}, []models.MarketKind{models.MarketMoneyline})

	err := p.RunCycle(context.Background(), "cycle-1")
	require.NoError(t, err)
	assert.Empty(t, sink.records)
}

func TestRecordsFromSnapshot(t *testing.T) {
	fetchedAt := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	snapshot := testSnapshot(fetchedAt)

	records := recordsFromSnapshot(snapshot)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "Lakers @ Celtics", first.EventName)
	assert.Equal(t, models.MarketMoneyline, first.MarketKind)
	assert.Equal(t, "Lakers", first.OutcomeKey)
	assert.Nil(t, first.Point)

	// Offers without a vendor timestamp inherit the fetch time.
	require.Len(t, first.Offers, 1)
	assert.True(t, first.Offers[0].ObservedAt.Equal(fetchedAt))
}

func TestRecordsFromSnapshot_SkipsEmptyOutcomes(t *testing.T) {
	fetchedAt := time.Now().UTC()
	snapshot := testSnapshot(fetchedAt)
	snapshot.Markets[0].Outcomes[1].Offers = nil

	records := recordsFromSnapshot(snapshot)
	assert.Len(t, records, 1)
}

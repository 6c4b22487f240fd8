package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/XavierBriggs/Apollo/internal/assemble"
	"github.com/XavierBriggs/Apollo/internal/cache"
	"github.com/XavierBriggs/Apollo/internal/entitle"
	"github.com/XavierBriggs/Apollo/internal/persist"
	"github.com/XavierBriggs/Apollo/internal/refresh"
	"github.com/XavierBriggs/Apollo/pkg/contracts"
	"github.com/XavierBriggs/Apollo/pkg/models"
)

// Sink receives persistence records without blocking the cycle.
type Sink interface {
	Enqueue(records []persist.Record)
}

// Pipeline runs one refresh cycle end to end: fetch the upstream
// snapshot, price and rank it, split it per tier, swap the cache, notify
// stream subscribers, and hand the raw observations to persistence.
//
// A cycle is all-or-nothing on the read path: any failure before the
// cache swap leaves the previous cycle's data untouched.
type Pipeline struct {
	source    contracts.OddsSource
	assembler *assemble.Assembler
	store     *cache.Store
	sink      Sink

	sportKeys []string
	markets   []models.MarketKind
}

func New(
	source contracts.OddsSource,
	assembler *assemble.Assembler,
	store *cache.Store,
	sink Sink,
	sportKeys []string,
	markets []models.MarketKind,
) *Pipeline {
	return &Pipeline{
		source:    source,
		assembler: assembler,
		store:     store,
		sink:      sink,
		sportKeys: sportKeys,
		markets:   markets,
	}
}

// RunCycle executes one refresh cycle under the given id.
func (p *Pipeline) RunCycle(ctx context.Context, cycleID string) error {
	snapshot, err := p.source.FetchSnapshot(ctx, p.sportKeys, p.markets)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	if len(snapshot.Markets) == 0 {
		// An empty feed is not an error, but it must not clobber the
		// last good cycle either.
		fmt.Printf("[pipeline] cycle %s: no_data from upstream, keeping previous cycle\n", cycleID)
		return nil
	}

	opportunities := p.assembler.Assemble(snapshot)

	byTier := make(map[models.Tier][]models.Opportunity, len(models.AllTiers()))
	for _, tier := range models.AllTiers() {
		byTier[tier] = entitle.ForTier(tier, opportunities)
	}

	if err := p.store.SwapCycle(ctx, byTier, cycleID, snapshot.FetchedAt); err != nil {
		return fmt.Errorf("swap cache: %w", err)
	}

	event := cache.RefreshEvent{Type: "refresh", CycleID: cycleID, TS: snapshot.FetchedAt}
	if err := p.store.PublishRefresh(ctx, event); err != nil {
		// Subscribers miss one push; the swapped data is already live.
		fmt.Printf("⚠ pipeline: publish refresh event failed: %v\n", err)
	}

	if p.sink != nil {
		p.sink.Enqueue(recordsFromSnapshot(snapshot))
	}

	fmt.Printf("✓ cycle %s: %d markets, %d opportunities (premium tier)\n",
		cycleID, len(snapshot.Markets), len(byTier[models.TierPremium]))
	return nil
}

// recordsFromSnapshot flattens the snapshot into one persistence record
// per (market, outcome).
func recordsFromSnapshot(snapshot *models.Snapshot) []persist.Record {
	var records []persist.Record

	for _, market := range snapshot.Markets {
		for _, outcome := range market.Outcomes {
			if len(outcome.Offers) == 0 {
				continue
			}

			offers := make([]models.Offer, len(outcome.Offers))
			for i, offer := range outcome.Offers {
				offer.ObservedAt = observedAtOrFetch(offer, snapshot.FetchedAt)
				offers[i] = offer
			}

			records = append(records, persist.Record{
				EventName:    market.Event.Name(),
				SportKey:     market.Event.SportKey,
				LeagueKey:    market.Event.LeagueKey,
				HomeTeam:     market.Event.HomeTeam,
				AwayTeam:     market.Event.AwayTeam,
				CommenceTime: market.Event.CommenceTime,
				MarketKind:   market.Kind,
				OutcomeKey:   outcome.Key,
				Point:        market.Point,
				Player:       market.Player,
				Offers:       offers,
			})
		}
	}

	return records
}

var _ refresh.Runner = (*Pipeline)(nil)

// observedAtOrFetch fills a missing per-offer timestamp with the snapshot
// fetch time. Vendors do not always stamp every quote.
func observedAtOrFetch(offer models.Offer, fetchedAt time.Time) time.Time {
	if offer.ObservedAt.IsZero() {
		return fetchedAt
	}
	return offer.ObservedAt
}

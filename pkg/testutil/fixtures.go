package testutil

import (
	"time"

	"github.com/XavierBriggs/Apollo/pkg/models"
)

// NewTestEvent creates a test event
func NewTestEvent(homeTeam, awayTeam string, hoursUntilStart float64) models.Event {
	return models.Event{
		EventID:      "test-" + awayTeam + "-" + homeTeam,
		SportKey:     "basketball_nba",
		LeagueKey:    "nba",
		HomeTeam:     homeTeam,
		AwayTeam:     awayTeam,
		CommenceTime: time.Now().UTC().Add(time.Duration(hoursUntilStart * float64(time.Hour))).Truncate(time.Second),
	}
}

// NewTestMarket creates a two-way test market with one offer per outcome
func NewTestMarket(event models.Event, kind models.MarketKind, point *float64, bookKey string, prices map[string]int) models.Market {
	now := time.Now().UTC()

	outcomes := make([]models.Outcome, 0, len(prices))
	for outcomeKey, price := range prices {
		outcomes = append(outcomes, models.Outcome{
			Key:    outcomeKey,
			Offers: []models.Offer{{BookKey: bookKey, Price: price, ObservedAt: now}},
		})
	}

	return models.Market{
		Event:    event,
		Kind:     kind,
		Point:    point,
		Outcomes: outcomes,
	}
}

// TwoWayMarket is the common fixture: one moneyline with both sides
// priced at every given book
func TwoWayMarket(homePrices, awayPrices map[string]int) models.Market {
	event := NewTestEvent("Celtics", "Lakers", 3)
	now := time.Now().UTC()

	toOffers := func(prices map[string]int) []models.Offer {
		offers := make([]models.Offer, 0, len(prices))
		for book, price := range prices {
			offers = append(offers, models.Offer{BookKey: book, Price: price, ObservedAt: now})
		}
		return offers
	}

	return models.Market{
		Event: event,
		Kind:  models.MarketMoneyline,
		Outcomes: []models.Outcome{
			{Key: "Celtics", Offers: toOffers(homePrices)},
			{Key: "Lakers", Offers: toOffers(awayPrices)},
		},
	}
}

// Ptr returns a pointer to v, for optional line fields
func Ptr[T any](v T) *T {
	return &v
}

package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// MarketKind discriminates the market variants Apollo prices.
type MarketKind string

const (
	MarketMoneyline   MarketKind = "moneyline"
	MarketSpread      MarketKind = "spread"
	MarketTotal       MarketKind = "total"
	MarketPlayerProp  MarketKind = "player_prop"
)

// MainLineKinds are the markets every tier is entitled to see.
func MainLineKinds() map[MarketKind]bool {
	return map[MarketKind]bool{
		MarketMoneyline: true,
		MarketSpread:    true,
		MarketTotal:     true,
	}
}

// Event represents a sporting event as observed from the upstream feed.
type Event struct {
	EventID      string
	SportKey     string
	LeagueKey    string
	HomeTeam     string
	AwayTeam     string
	CommenceTime time.Time
}

// Name returns the display string used throughout Apollo ("Away @ Home").
func (e Event) Name() string {
	return e.AwayTeam + " @ " + e.HomeTeam
}

// SHA returns the stable event identity hash. Two observations of the same
// contest hash identically regardless of the vendor's event id.
func (e Event) SHA() string {
	return EventSHA(e.Name(), e.CommenceTime.UTC().Unix(), e.SportKey)
}

// EventSHA hashes (event_name, event_time_unix_seconds, sport_key).
func EventSHA(eventName string, commenceUnix int64, sportKey string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%s", eventName, commenceUnix, sportKey)))
	return hex.EncodeToString(h[:])
}

// Market is one priced question on one event. Point is set for spreads and
// totals; Player is set for player props. Presence is dictated by Kind.
type Market struct {
	Event    Event
	Kind     MarketKind
	Point    *float64
	Player   string
	Outcomes []Outcome
}

// BetKey returns the persistent dedup tuple for one outcome of this market.
func (m Market) BetKey(outcomeKey string) BetKey {
	return BetKey{
		EventSHA:   m.Event.SHA(),
		MarketKind: m.Kind,
		OutcomeKey: outcomeKey,
		Point:      m.Point,
		Player:     m.Player,
	}
}

// Outcome is one side of a market with every book's current price on it.
// Point is the side's own line where it differs from the market's: spread
// sides carry opposite signs (home -3.5, away +3.5) while Market.Point
// holds the shared magnitude.
type Outcome struct {
	Key    string // outcome label, e.g. team name, "Over", "Under"
	Point  *float64
	Offers []Offer
}

// Offer is a single book's price on one outcome at one instant.
type Offer struct {
	BookKey    string
	Price      int // American odds
	ObservedAt time.Time
}

// Snapshot is the typed tree one upstream fetch produces.
type Snapshot struct {
	Markets    []Market
	FetchedAt  time.Time
}

// BetKey uniquely identifies a bet across time. It is the UNIQUE constraint
// in the bets table and the dedup anchor for the offer time series.
type BetKey struct {
	EventSHA   string
	MarketKind MarketKind
	OutcomeKey string
	Point      *float64
	Player     string
}

// String renders the tuple in a stable order for logging and map keys.
func (k BetKey) String() string {
	point := ""
	if k.Point != nil {
		point = fmt.Sprintf("%.2f", *k.Point)
	}
	return fmt.Sprintf("%s:%s:%s:%s:%s", k.EventSHA, k.MarketKind, k.OutcomeKey, point, k.Player)
}

// EVClass is the classification band for an opportunity's EV%.
type EVClass string

const (
	EVPositiveStrong   EVClass = "positive_strong"
	EVPositiveMarginal EVClass = "positive_marginal"
	EVNeutral          EVClass = "neutral"
	EVNegativeMarginal EVClass = "negative_marginal"
	EVNegativeStrong   EVClass = "negative_strong"
)

// BandRank orders classification bands for ranking ties (strong > marginal
// > neutral). Higher is better.
func (c EVClass) BandRank() int {
	switch c {
	case EVPositiveStrong:
		return 4
	case EVPositiveMarginal:
		return 3
	case EVNeutral:
		return 2
	case EVNegativeMarginal:
		return 1
	default:
		return 0
	}
}

// BookOffer is the wire shape for one book's price inside an opportunity.
type BookOffer struct {
	Book  string `json:"book"`
	Price int    `json:"price"`
}

// Opportunity is the cache-resident record a reader consumes. It is derived
// from offers + fair probabilities each cycle and never persisted as a row.
type Opportunity struct {
	ID             string      `json:"id"`
	Event          string      `json:"event"`
	BetDescription string      `json:"bet_description"`
	BetType        MarketKind  `json:"bet_type"`
	SportKey       string      `json:"sport"`
	EVPercent      float64     `json:"ev_pct"`
	EVClass        EVClass     `json:"ev_class"`
	BestOdds       int         `json:"best_odds"`
	BestBook       string      `json:"best_book"`
	FairOdds       int         `json:"fair_odds"`
	AllOffers      []BookOffer `json:"all_offers"`
	CommenceTime   time.Time   `json:"commence_time"`
	Timestamp      time.Time   `json:"ts"`
}

// Identity is the tuple the identity provider yields for a bearer token.
// Apollo consumes it; it does not provision accounts or subscriptions.
type Identity struct {
	UserID             string
	Email              string
	Role               Tier
	SubscriptionActive bool
}

// Tier is the closed set of entitlement levels.
type Tier string

const (
	TierFree    Tier = "free"
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
	TierAdmin   Tier = "admin"
)

// ParseTier maps a role claim to a Tier, defaulting unknown values to free.
func ParseTier(s string) Tier {
	switch Tier(s) {
	case TierBasic, TierPremium, TierAdmin:
		return Tier(s)
	default:
		return TierFree
	}
}

// AllTiers returns every tier key the cache is written under.
func AllTiers() []Tier {
	return []Tier{TierFree, TierBasic, TierPremium, TierAdmin}
}

// RateLimits tracks the upstream provider's request quota headers.
type RateLimits struct {
	RequestsRemaining int
	RequestsUsed      int
}

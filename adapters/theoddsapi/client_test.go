package theoddsapi

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/XavierBriggs/Apollo/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventTime(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    time.Time
		wantErr bool
	}{
		{
			name: "ISO-8601",
			raw:  `"2026-03-01T19:30:00Z"`,
			want: time.Date(2026, 3, 1, 19, 30, 0, 0, time.UTC),
		},
		{
			name: "unix seconds",
			raw:  `1772393400`,
			want: time.Unix(1772393400, 0).UTC(),
		},
		{
			name: "unix seconds as string",
			raw:  `"1772393400"`,
			want: time.Unix(1772393400, 0).UTC(),
		},
		{
			name: "unix milliseconds",
			raw:  `1772393400000`,
			want: time.UnixMilli(1772393400000).UTC(),
		},
		{
			name:    "ambiguous digit count",
			raw:     `17723934`,
			wantErr: true,
		},
		{
			name:    "empty",
			raw:     `""`,
			wantErr: true,
		},
		{
			name:    "null",
			raw:     `null`,
			wantErr: true,
		},
		{
			name:    "garbage",
			raw:     `"next tuesday"`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEventTime(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}
}

func TestParseMarkets_GroupsOffersByOutcome(t *testing.T) {
	c := NewClient("test-key", 10*time.Second)
	fetchedAt := time.Now().UTC()

	evt := models.Event{
		EventID:      "evt1",
		SportKey:     "basketball_nba",
		HomeTeam:     "Celtics",
		AwayTeam:     "Lakers",
		CommenceTime: fetchedAt.Add(4 * time.Hour),
	}

	point := -3.5
	books := []bookmaker{
		{
			Key: "fanduel",
			Markets: []market{
				{Key: "h2h", Outcomes: []outcome{
					{Name: "Lakers", Price: 110},
					{Name: "Celtics", Price: -130},
				}},
				{Key: "spreads", Outcomes: []outcome{
					{Name: "Lakers", Price: -110, Point: &point},
				}},
			},
		},
		{
			Key: "draftkings",
			Markets: []market{
				{Key: "h2h", Outcomes: []outcome{
					{Name: "Lakers", Price: 105},
					{Name: "Celtics", Price: -125},
					{Name: "BadQuote", Price: 50}, // |price| < 100, dropped
				}},
				{Key: "exotic_unknown", Outcomes: []outcome{
					{Name: "Whatever", Price: 200}, // unsupported market key, dropped
				}},
			},
		},
	}

	markets := c.parseMarkets(evt, books, fetchedAt)
	require.Len(t, markets, 2)

	h2h := markets[0]
	assert.Equal(t, models.MarketMoneyline, h2h.Kind)
	require.Len(t, h2h.Outcomes, 2)
	assert.Equal(t, "Lakers", h2h.Outcomes[0].Key)
	assert.Len(t, h2h.Outcomes[0].Offers, 2)
	assert.Len(t, h2h.Outcomes[1].Offers, 2)

	spread := markets[1]
	assert.Equal(t, models.MarketSpread, spread.Kind)
	require.NotNil(t, spread.Point)
	assert.Equal(t, 3.5, *spread.Point)
}

// The vendor quotes opposite-signed points for the two sides of a spread
// (home -3.5, away +3.5). Both sides must land in one market group so
// they de-vig together.
func TestParseMarkets_SpreadSidesShareOneMarket(t *testing.T) {
	c := NewClient("test-key", 10*time.Second)
	fetchedAt := time.Now().UTC()

	evt := models.Event{
		EventID:      "evt2",
		SportKey:     "basketball_nba",
		HomeTeam:     "Celtics",
		AwayTeam:     "Lakers",
		CommenceTime: fetchedAt.Add(4 * time.Hour),
	}

	homePoint := -3.5
	awayPoint := 3.5
	books := []bookmaker{
		{
			Key: "fanduel",
			Markets: []market{
				{Key: "spreads", Outcomes: []outcome{
					{Name: "Celtics", Price: -110, Point: &homePoint},
					{Name: "Lakers", Price: -110, Point: &awayPoint},
				}},
			},
		},
		{
			Key: "draftkings",
			Markets: []market{
				{Key: "spreads", Outcomes: []outcome{
					{Name: "Celtics", Price: -108, Point: &homePoint},
					{Name: "Lakers", Price: -112, Point: &awayPoint},
				}},
			},
		},
	}

	markets := c.parseMarkets(evt, books, fetchedAt)
	require.Len(t, markets, 1, "both spread sides belong to one market")

	spread := markets[0]
	require.Len(t, spread.Outcomes, 2)
	require.NotNil(t, spread.Point)
	assert.Equal(t, 3.5, *spread.Point)

	byKey := map[string]models.Outcome{}
	for _, oc := range spread.Outcomes {
		byKey[oc.Key] = oc
	}

	celtics := byKey["Celtics"]
	require.NotNil(t, celtics.Point)
	assert.Equal(t, -3.5, *celtics.Point)
	assert.Len(t, celtics.Offers, 2)

	lakers := byKey["Lakers"]
	require.NotNil(t, lakers.Point)
	assert.Equal(t, 3.5, *lakers.Point)
	assert.Len(t, lakers.Offers, 2)

	// A different line stays a different market.
	altPoint := -4.5
	books = append(books, bookmaker{
		Key: "betmgm",
		Markets: []market{
			{Key: "spreads", Outcomes: []outcome{
				{Name: "Celtics", Price: -105, Point: &altPoint},
			}},
		},
	})
	assert.Len(t, c.parseMarkets(evt, books, fetchedAt), 2)
}

func TestMarketKindForVendorKey(t *testing.T) {
	kind, ok := marketKindForVendorKey("h2h")
	assert.True(t, ok)
	assert.Equal(t, models.MarketMoneyline, kind)

	kind, ok = marketKindForVendorKey("player_points")
	assert.True(t, ok)
	assert.Equal(t, models.MarketPlayerProp, kind)

	_, ok = marketKindForVendorKey("alternate_spreads_corners")
	assert.False(t, ok)
}

package theoddsapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/XavierBriggs/Apollo/pkg/contracts"
	"github.com/XavierBriggs/Apollo/pkg/models"
	"golang.org/x/time/rate"
)

const (
	baseURL    = "https://api.the-odds-api.com"
	apiVersion = "v4"
	userAgent  = "Apollo/1.0 (Fortuna EV Scanner)"
	maxRetries = 3
	retryDelay = 2 * time.Second

	// The Odds API allows 500 requests per minute on the standard plan.
	requestsPerMinute = 500
)

// Upstream error kinds. Callers classify with errors.Is.
var (
	// ErrUpstreamUnavailable covers 5xx responses and network timeouts.
	// Retryable within a cycle.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrRateLimited covers 429 responses. Retryable with backoff.
	ErrRateLimited = errors.New("upstream rate limited")

	// ErrBadResponse covers unparsable bodies. Fatal for the cycle.
	ErrBadResponse = errors.New("upstream response malformed")
)

// Client implements the OddsSource interface for The Odds API
type Client struct {
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	rateLimits models.RateLimits
	mu         sync.RWMutex
}

// Ensure Client implements OddsSource
var _ contracts.OddsSource = (*Client)(nil)

// NewClient creates a new The Odds API client
func NewClient(apiKey string, timeout time.Duration) *Client {
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute/10),
		rateLimits: models.RateLimits{
			RequestsRemaining: requestsPerMinute,
		},
	}
}

// FetchSnapshot retrieves the current offer tree for the given sports and
// market kinds. Malformed events are discarded individually; the snapshot
// carries whatever parsed cleanly.
func (c *Client) FetchSnapshot(ctx context.Context, sportKeys []string, markets []models.MarketKind) (*models.Snapshot, error) {
	fetchedAt := time.Now().UTC()
	snapshot := &models.Snapshot{FetchedAt: fetchedAt}

	vendorMarkets := vendorMarketKeys(markets)

	for _, sportKey := range sportKeys {
		endpoint := fmt.Sprintf("%s/%s/sports/%s/odds", baseURL, apiVersion, sportKey)

		params := url.Values{}
		params.Set("apiKey", c.apiKey)
		params.Set("regions", "us")
		params.Set("markets", strings.Join(vendorMarkets, ","))
		params.Set("oddsFormat", "american")

		body, err := c.doRequestWithRetry(ctx, fmt.Sprintf("%s?%s", endpoint, params.Encode()))
		if err != nil {
			return nil, fmt.Errorf("fetch odds for %s: %w", sportKey, err)
		}

		var apiResp []oddsResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, fmt.Errorf("parse odds response for %s: %w: %v", sportKey, ErrBadResponse, err)
		}

		snapshot.Markets = append(snapshot.Markets, c.parseEvents(apiResp, sportKey, fetchedAt)...)
	}

	return snapshot, nil
}

// RateLimits returns current rate limit information
func (c *Client) RateLimits() models.RateLimits {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rateLimits
}

// doRequestWithRetry performs HTTP request with retry logic
func (c *Client) doRequestWithRetry(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			backoff := retryDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := c.doRequest(ctx, fullURL)
		if err == nil {
			return body, nil
		}

		lastErr = err

		// Only transient failures are worth retrying
		if !errors.Is(err, ErrUpstreamUnavailable) && !errors.Is(err, ErrRateLimited) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// doRequest performs a single HTTP request
func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	// Update rate limits from headers
	c.updateRateLimits(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP 429", ErrRateLimited)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", ErrUpstreamUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrBadResponse, resp.StatusCode, string(body))
	}
}

// updateRateLimits extracts rate limit info from response headers
func (c *Client) updateRateLimits(headers http.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if remaining := headers.Get("x-requests-remaining"); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimits.RequestsRemaining = val
		}
	}

	if used := headers.Get("x-requests-used"); used != "" {
		if val, err := strconv.Atoi(used); err == nil {
			c.rateLimits.RequestsUsed = val
		}
	}
}

// parseEvents converts API responses to the typed market tree. Events that
// fail validation are skipped; the rest of the response is kept.
func (c *Client) parseEvents(apiResp []oddsResponse, sportKey string, fetchedAt time.Time) []models.Market {
	var out []models.Market

	for _, evtResp := range apiResp {
		commence, err := ParseEventTime(evtResp.CommenceTime)
		if err != nil {
			fmt.Printf("[theoddsapi] skipping event %s: %v\n", evtResp.ID, err)
			continue
		}

		if evtResp.HomeTeam == "" || evtResp.AwayTeam == "" {
			fmt.Printf("[theoddsapi] skipping event %s: empty participant name\n", evtResp.ID)
			continue
		}

		evt := models.Event{
			EventID:      evtResp.ID,
			SportKey:     sportKey,
			LeagueKey:    evtResp.SportTitle,
			HomeTeam:     evtResp.HomeTeam,
			AwayTeam:     evtResp.AwayTeam,
			CommenceTime: commence,
		}

		out = append(out, c.parseMarkets(evt, evtResp.Bookmakers, fetchedAt)...)
	}

	return out
}

// parseMarkets regroups the vendor's per-book market listing into
// per-market outcome trees with one offer list per outcome.
//
// Spreads quote opposite-signed points for the two sides of one line
// (home -3.5, away +3.5), so spread groups key on the magnitude; the
// signed per-side value is kept on the outcome.
func (c *Client) parseMarkets(evt models.Event, bookmakers []bookmaker, fetchedAt time.Time) []models.Market {
	type marketIdent struct {
		kind   models.MarketKind
		point  string
		player string
	}

	grouped := make(map[marketIdent]*models.Market)
	var order []marketIdent

	for _, bk := range bookmakers {
		for _, mkt := range bk.Markets {
			kind, ok := marketKindForVendorKey(mkt.Key)
			if !ok {
				continue
			}

			for _, oc := range mkt.Outcomes {
				if oc.Price > -100 && oc.Price < 100 {
					// Not a valid American quote; drop the single offer
					continue
				}
				if oc.Name == "" {
					continue
				}

				ident := marketIdent{kind: kind}
				var groupPoint *float64
				if oc.Point != nil {
					p := *oc.Point
					if kind == models.MarketSpread {
						p = math.Abs(p)
					}
					groupPoint = &p
					ident.point = strconv.FormatFloat(p, 'f', -1, 64)
				}
				if kind == models.MarketPlayerProp {
					ident.player = oc.Description
				}

				m, exists := grouped[ident]
				if !exists {
					m = &models.Market{Event: evt, Kind: kind, Player: ident.player, Point: groupPoint}
					grouped[ident] = m
					order = append(order, ident)
				}

				offer := models.Offer{
					BookKey:    bk.Key,
					Price:      oc.Price,
					ObservedAt: fetchedAt,
				}

				outcomeKey := oc.Name
				found := false
				for i := range m.Outcomes {
					if m.Outcomes[i].Key == outcomeKey {
						m.Outcomes[i].Offers = append(m.Outcomes[i].Offers, offer)
						found = true
						break
					}
				}
				if !found {
					var sidePoint *float64
					if oc.Point != nil {
						p := *oc.Point
						sidePoint = &p
					}
					m.Outcomes = append(m.Outcomes, models.Outcome{
						Key:    outcomeKey,
						Point:  sidePoint,
						Offers: []models.Offer{offer},
					})
				}
			}
		}
	}

	out := make([]models.Market, 0, len(order))
	for _, ident := range order {
		out = append(out, *grouped[ident])
	}
	return out
}

// ParseEventTime normalises a vendor commence time to UTC. Accepted forms:
// Unix seconds (10 digits), Unix milliseconds (13 digits), ISO-8601.
// Anything else is rejected as ambiguous.
func ParseEventTime(raw json.RawMessage) (time.Time, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return time.Time{}, fmt.Errorf("empty commence time")
	}

	if isDigits(s) {
		switch len(s) {
		case 10:
			sec, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return time.Time{}, fmt.Errorf("parse unix seconds %q: %w", s, err)
			}
			return time.Unix(sec, 0).UTC(), nil
		case 13:
			ms, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return time.Time{}, fmt.Errorf("parse unix milliseconds %q: %w", s, err)
			}
			return time.UnixMilli(ms).UTC(), nil
		default:
			return time.Time{}, fmt.Errorf("ambiguous numeric commence time %q", s)
		}
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse commence time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// vendorMarketKeys maps Apollo market kinds to The Odds API market keys
func vendorMarketKeys(kinds []models.MarketKind) []string {
	var keys []string
	for _, k := range kinds {
		switch k {
		case models.MarketMoneyline:
			keys = append(keys, "h2h")
		case models.MarketSpread:
			keys = append(keys, "spreads")
		case models.MarketTotal:
			keys = append(keys, "totals")
		case models.MarketPlayerProp:
			keys = append(keys, "player_points", "player_rebounds", "player_assists", "player_threes")
		}
	}
	return keys
}

// marketKindForVendorKey maps a vendor market key back to the Apollo kind
func marketKindForVendorKey(key string) (models.MarketKind, bool) {
	switch key {
	case "h2h":
		return models.MarketMoneyline, true
	case "spreads":
		return models.MarketSpread, true
	case "totals":
		return models.MarketTotal, true
	}
	if strings.HasPrefix(key, "player_") {
		return models.MarketPlayerProp, true
	}
	return "", false
}

// API response structures matching The Odds API JSON format

type oddsResponse struct {
	ID           string          `json:"id"`
	SportKey     string          `json:"sport_key"`
	SportTitle   string          `json:"sport_title"`
	CommenceTime json.RawMessage `json:"commence_time"`
	HomeTeam     string          `json:"home_team"`
	AwayTeam     string          `json:"away_team"`
	Bookmakers   []bookmaker     `json:"bookmakers"`
}

type bookmaker struct {
	Key        string   `json:"key"`
	Title      string   `json:"title"`
	LastUpdate string   `json:"last_update"`
	Markets    []market `json:"markets"`
}

type market struct {
	Key        string    `json:"key"`
	LastUpdate string    `json:"last_update"`
	Outcomes   []outcome `json:"outcomes"`
}

type outcome struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       int      `json:"price"`
	Point       *float64 `json:"point,omitempty"`
}

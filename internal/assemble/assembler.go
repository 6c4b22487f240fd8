package assemble

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/XavierBriggs/Apollo/pkg/models"
	"github.com/XavierBriggs/Apollo/pkg/oddsmath"
)

// Assembler joins raw offers, fair probabilities, and EV scores into ranked
// opportunity records with best-book attribution.
type Assembler struct {
	exchangeBooks   map[string]bool
	exchangeFeeRate float64
}

// NewAssembler creates an assembler. exchangeBooks is the closed set of
// commission exchanges; feeRate is their take as a fraction (0.02 = 2%).
func NewAssembler(exchangeBooks map[string]bool, exchangeFeeRate float64) *Assembler {
	return &Assembler{
		exchangeBooks:   exchangeBooks,
		exchangeFeeRate: exchangeFeeRate,
	}
}

// Assemble produces the ranked opportunity list for one snapshot. Markets
// that cannot be de-vigged (single outcome, broken quotes, untrustworthy
// overround) are skipped; everything else flows through.
func (a *Assembler) Assemble(snapshot *models.Snapshot) []models.Opportunity {
	var out []models.Opportunity

	for _, market := range snapshot.Markets {
		opps, err := a.assembleMarket(market, snapshot)
		if err != nil {
			fmt.Printf("[assemble] skipping market %s %s: %v\n", market.Event.Name(), market.Kind, err)
			continue
		}
		out = append(out, opps...)
	}

	rankOpportunities(out)
	return out
}

// assembleMarket de-vigs one market and emits one opportunity per outcome.
func (a *Assembler) assembleMarket(market models.Market, snapshot *models.Snapshot) ([]models.Opportunity, error) {
	if len(market.Outcomes) < 2 {
		return nil, fmt.Errorf("need at least 2 outcomes, got %d", len(market.Outcomes))
	}

	// Consensus implied probability per outcome: the mean implied
	// probability across every book pricing that outcome.
	implied := make([]float64, len(market.Outcomes))
	for i, outcome := range market.Outcomes {
		if len(outcome.Offers) == 0 {
			return nil, fmt.Errorf("outcome %q has no offers", outcome.Key)
		}

		sum := 0.0
		for _, offer := range outcome.Offers {
			p, err := oddsmath.AmericanToImpliedProbability(offer.Price)
			if err != nil {
				return nil, fmt.Errorf("outcome %q book %s: %w", outcome.Key, offer.BookKey, err)
			}
			sum += p
		}
		implied[i] = sum / float64(len(outcome.Offers))
	}

	fair, err := oddsmath.RemoveVigProportional(implied)
	if err != nil {
		return nil, err
	}

	opps := make([]models.Opportunity, 0, len(market.Outcomes))

	for i, outcome := range market.Outcomes {
		best, bestResult, err := a.bestOffer(outcome.Offers, fair[i])
		if err != nil {
			fmt.Printf("[assemble] skipping outcome %q: %v\n", outcome.Key, err)
			continue
		}

		fairOdds, err := oddsmath.ProbabilityToAmerican(fair[i])
		if err != nil {
			continue
		}

		allOffers := make([]models.BookOffer, len(outcome.Offers))
		for j, offer := range outcome.Offers {
			allOffers[j] = models.BookOffer{Book: offer.BookKey, Price: offer.Price}
		}

		opps = append(opps, models.Opportunity{
			ID:             opportunityID(market.BetKey(outcome.Key)),
			Event:          market.Event.Name(),
			BetDescription: describeBet(market, outcome),
			BetType:        market.Kind,
			SportKey:       market.Event.SportKey,
			EVPercent:      bestResult.EVPercent,
			EVClass:        bestResult.Class,
			BestOdds:       best.Price,
			BestBook:       best.BookKey,
			FairOdds:       fairOdds,
			AllOffers:      allOffers,
			CommenceTime:   market.Event.CommenceTime,
			Timestamp:      snapshot.FetchedAt,
		})
	}

	return opps, nil
}

// bestOffer selects the recommended offer for one outcome: highest
// fee-adjusted decimal price, ties broken by lexicographically smallest
// book key.
func (a *Assembler) bestOffer(offers []models.Offer, fairProb float64) (models.Offer, *oddsmath.EVResult, error) {
	var (
		best       models.Offer
		bestResult *oddsmath.EVResult
	)

	for _, offer := range offers {
		result, err := oddsmath.ScoreOffer(offer.Price, fairProb, a.feeFor(offer.BookKey))
		if err != nil {
			continue
		}

		switch {
		case bestResult == nil:
		case result.AdjustedDecimal > bestResult.AdjustedDecimal:
		case result.AdjustedDecimal == bestResult.AdjustedDecimal && offer.BookKey < best.BookKey:
		default:
			continue
		}

		best = offer
		bestResult = result
	}

	if bestResult == nil {
		return models.Offer{}, nil, fmt.Errorf("no scoreable offers")
	}

	return best, bestResult, nil
}

// feeFor returns the commission rate for a book (0 for non-exchanges).
func (a *Assembler) feeFor(bookKey string) float64 {
	if a.exchangeBooks[bookKey] {
		return a.exchangeFeeRate
	}
	return 0
}

// rankOpportunities sorts in place: EV% descending, then classification
// band (strong beats marginal beats neutral), then event start ascending.
func rankOpportunities(opps []models.Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		if opps[i].EVPercent != opps[j].EVPercent {
			return opps[i].EVPercent > opps[j].EVPercent
		}
		if opps[i].EVClass.BandRank() != opps[j].EVClass.BandRank() {
			return opps[i].EVClass.BandRank() > opps[j].EVClass.BandRank()
		}
		return opps[i].CommenceTime.Before(opps[j].CommenceTime)
	})
}

// opportunityID derives a stable id from the bet dedup tuple so the same
// bet keeps the same id across cycles.
func opportunityID(key models.BetKey) string {
	h := sha256.Sum256([]byte(key.String()))
	return hex.EncodeToString(h[:8])
}

// describeBet renders the human-readable bet description for one outcome.
// Spread sides describe their own signed line; the market point only
// carries the shared magnitude.
func describeBet(market models.Market, outcome models.Outcome) string {
	switch market.Kind {
	case models.MarketMoneyline:
		return outcome.Key + " ML"
	case models.MarketSpread:
		if outcome.Point != nil {
			return fmt.Sprintf("%s %+.1f", outcome.Key, *outcome.Point)
		}
		if market.Point != nil {
			return fmt.Sprintf("%s %+.1f", outcome.Key, *market.Point)
		}
		return outcome.Key
	case models.MarketTotal:
		if market.Point != nil {
			return fmt.Sprintf("%s %.1f", outcome.Key, *market.Point)
		}
		return outcome.Key
	case models.MarketPlayerProp:
		parts := []string{}
		if market.Player != "" {
			parts = append(parts, market.Player)
		}
		parts = append(parts, outcome.Key)
		if market.Point != nil {
			parts = append(parts, fmt.Sprintf("%.1f", *market.Point))
		}
		return strings.Join(parts, " ")
	default:
		return outcome.Key
	}
}

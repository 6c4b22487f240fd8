package entitle

import (
	"sort"
	"strings"

	"github.com/XavierBriggs/Apollo/pkg/models"
)

// FreeTierCap limits how many records the free tier may see.
const FreeTierCap = 10

// ForTier applies a tier's entitlement rules to the full ranked list.
// It is a pure function of (tier, list); the pipeline calls it once per
// tier when building the cache, and tests call it directly.
//
// Rules:
//   - free (and anonymous): only EV% <= -2.0, main lines only, the 10
//     most negative records. The free list is a deterrent sample, so it
//     orders worst-first.
//   - basic: main lines only, all EV values.
//   - premium, admin: everything.
func ForTier(tier models.Tier, all []models.Opportunity) []models.Opportunity {
	switch tier {
	case models.TierPremium, models.TierAdmin:
		out := make([]models.Opportunity, len(all))
		copy(out, all)
		return out

	case models.TierBasic:
		return mainLinesOnly(all)

	default:
		return freeTier(all)
	}
}

// ApplyQuery applies the reader's query parameters on top of the entitled
// list: case-insensitive substring on the event display string, exact
// sport key, and a size cap. A limit can only shrink the result, never
// extend it past what the tier allows.
func ApplyQuery(opps []models.Opportunity, search, sport string, limit int) []models.Opportunity {
	out := make([]models.Opportunity, 0, len(opps))
	needle := strings.ToLower(search)

	for _, opp := range opps {
		if sport != "" && opp.SportKey != sport {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(opp.Event), needle) {
			continue
		}
		out = append(out, opp)
	}

	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}

	return out
}

func mainLinesOnly(all []models.Opportunity) []models.Opportunity {
	mainLines := models.MainLineKinds()

	out := make([]models.Opportunity, 0, len(all))
	for _, opp := range all {
		if mainLines[opp.BetType] {
			out = append(out, opp)
		}
	}
	return out
}

func freeTier(all []models.Opportunity) []models.Opportunity {
	mainLines := models.MainLineKinds()

	out := make([]models.Opportunity, 0, FreeTierCap)
	for _, opp := range all {
		if !mainLines[opp.BetType] {
			continue
		}
		if opp.EVPercent > -2.0 {
			continue
		}
		out = append(out, opp)
	}

	// Most negative first
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].EVPercent < out[j].EVPercent
	})

	if len(out) > FreeTierCap {
		out = out[:FreeTierCap]
	}

	return out
}

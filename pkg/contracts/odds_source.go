package contracts

import (
	"context"

	"github.com/XavierBriggs/Apollo/pkg/models"
)

// OddsSource defines the interface for pulling market snapshots from an
// upstream odds provider. Keeping this stable lets Apollo swap vendors
// without touching the pipeline.
type OddsSource interface {
	// FetchSnapshot retrieves the current offer tree for the given sports
	// and market kinds.
	FetchSnapshot(ctx context.Context, sportKeys []string, markets []models.MarketKind) (*models.Snapshot, error)

	// RateLimits returns the provider's current request quota state.
	RateLimits() models.RateLimits
}

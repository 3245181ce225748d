package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/Clish254/prediction-game/internal/domain"
)

// Disabled is a PriceOracle that never has a price. With it every round
// settles through the refund path, which is useful for local development
// and ledger testing without any external price source.
type Disabled struct{}

var _ domain.PriceOracle = Disabled{}

// GetPrice always reports the oracle as unavailable.
func (Disabled) GetPrice(ctx context.Context, assetID string, at time.Time) (domain.PricePoint, error) {
	return domain.PricePoint{}, fmt.Errorf("oracle: provider disabled: %w", domain.ErrOracleUnavailable)
}

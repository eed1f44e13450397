package ports

import (
	"context"
	"time"

	types "github.com/atlasmarkets/refdata/internal/domains/timeseries/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/domain"
)

// Ledger is the outbound port for the append-only observation store.
//
// Append writes a row only when the key has no current row yet. A
// duplicate append with identical values is an idempotent no-op; a
// duplicate with diverging values fails with versioning.ErrConflict.
// Refresh supersedes whatever currently holds the key's slot.
type Ledger interface {
	Append(ctx context.Context, obs *domain.Observation) error
	Refresh(ctx context.Context, obs *domain.Observation) error
	QueryRange(ctx context.Context, assetID, sourceID int64, start, end time.Time) ([]*types.ObservationRow, error)
	GetCoverage(ctx context.Context, assetID, sourceID int64) (*types.Coverage, error)
}

package ports

import (
	"context"

	types "github.com/atlasmarkets/refdata/internal/domains/timeseries/application/types"
)

// CatalogGuard resolves whether the referenced catalog entities exist as
// live current versions before ledger writes are accepted.
type CatalogGuard interface {
	EnsureAssetLive(ctx context.Context, assetID int64) error
	EnsureSourceLive(ctx context.Context, sourceID int64) error
}

// Service is the inbound port for the time-series ledger use cases.
type Service interface {
	Append(ctx context.Context, input types.WriteInput) error
	Refresh(ctx context.Context, input types.WriteInput) error
	QueryRange(ctx context.Context, input types.QueryRangeInput) ([]*types.ObservationRow, error)
	GetCoverage(ctx context.Context, input types.CoverageInput) (*types.Coverage, error)
}

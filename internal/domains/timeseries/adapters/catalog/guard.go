// Package catalog adapts the entity catalogs into the existence guard
// the ledger consults before accepting writes.
package catalog

import (
	"context"
	"fmt"

	assetports "github.com/atlasmarkets/refdata/internal/domains/assets/ports"
	sourceports "github.com/atlasmarkets/refdata/internal/domains/datasources/ports"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/ports"
)

var _ ports.CatalogGuard = (*Guard)(nil)

// Guard checks that referenced assets and data sources resolve to live
// current versions.
type Guard struct {
	assets  assetports.Repository
	sources sourceports.Repository
}

// NewGuard wires the guard over the two catalog repositories.
func NewGuard(assets assetports.Repository, sources sourceports.Repository) *Guard {
	return &Guard{assets: assets, sources: sources}
}

// EnsureAssetLive fails with versioning.ErrNotFound when the asset is
// missing or soft-deleted.
func (g *Guard) EnsureAssetLive(ctx context.Context, assetID int64) error {
	if _, err := g.assets.GetCurrent(ctx, assetID, false); err != nil {
		return fmt.Errorf("asset %d: %w", assetID, err)
	}
	return nil
}

// EnsureSourceLive fails with versioning.ErrNotFound when the data
// source is missing or soft-deleted.
func (g *Guard) EnsureSourceLive(ctx context.Context, sourceID int64) error {
	if _, err := g.sources.GetCurrent(ctx, sourceID, false); err != nil {
		return fmt.Errorf("data source %d: %w", sourceID, err)
	}
	return nil
}

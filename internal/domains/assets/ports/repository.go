package ports

import (
	"context"
	"time"

	"github.com/atlasmarkets/refdata/internal/domains/assets/domain"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

// Repository is the temporal store for asset version chains. Implementations
// own the chain invariants: one current version per entity, contiguous
// non-overlapping intervals, per-entity serialization of close-and-open pairs.
type Repository interface {
	// Create allocates a stable entity id and writes the first version.
	Create(ctx context.Context, asset *domain.Asset) (*versioning.Version[*domain.Asset], error)
	// GetCurrent returns the version holding the current slot. With
	// includeDeleted false a deletion marker reads as versioning.ErrNotFound.
	GetCurrent(ctx context.Context, id int64, includeDeleted bool) (*versioning.Version[*domain.Asset], error)
	// GetAsOf returns the version whose validity interval contains at.
	GetAsOf(ctx context.Context, id int64, at time.Time) (*versioning.Version[*domain.Asset], error)
	// ListCurrent returns one version per entity, ordered by entity id.
	ListCurrent(ctx context.Context, includeDeleted bool) ([]*versioning.Version[*domain.Asset], error)
	// ListVersions returns full history ordered by entity id then valid_from
	// descending; id zero means all entities.
	ListVersions(ctx context.Context, id int64) ([]*versioning.Version[*domain.Asset], error)
	// Update closes the current live version and opens a replacement.
	Update(ctx context.Context, id int64, asset *domain.Asset) (*versioning.Version[*domain.Asset], error)
	// SoftDelete closes the current live version and opens a deletion marker.
	SoftDelete(ctx context.Context, id int64) error
	// Resurrect closes a deletion marker and opens a live version.
	Resurrect(ctx context.Context, id int64, asset *domain.Asset) (*versioning.Version[*domain.Asset], error)
	// FindCurrentBySymbol resolves a live asset by its symbol attribute.
	FindCurrentBySymbol(ctx context.Context, symbol string) (*versioning.Version[*domain.Asset], error)
}

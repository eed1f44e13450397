package ports

import (
	"context"
	"time"

	"github.com/atlasmarkets/refdata/internal/domains/datasources/domain"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

// Repository is the outbound port for the data source version store.
type Repository interface {
	Create(ctx context.Context, source *domain.DataSource) (*versioning.Version[*domain.DataSource], error)
	GetCurrent(ctx context.Context, id int64, includeDeleted bool) (*versioning.Version[*domain.DataSource], error)
	GetAsOf(ctx context.Context, id int64, at time.Time) (*versioning.Version[*domain.DataSource], error)
	ListCurrent(ctx context.Context, includeDeleted bool) ([]*versioning.Version[*domain.DataSource], error)
	ListVersions(ctx context.Context, id int64) ([]*versioning.Version[*domain.DataSource], error)
	Update(ctx context.Context, id int64, source *domain.DataSource) (*versioning.Version[*domain.DataSource], error)
	SoftDelete(ctx context.Context, id int64) error
	Resurrect(ctx context.Context, id int64, source *domain.DataSource) (*versioning.Version[*domain.DataSource], error)
	FindCurrentByProvider(ctx context.Context, provider string) ([]*versioning.Version[*domain.DataSource], error)
}

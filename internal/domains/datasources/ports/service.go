package ports

import (
	"context"

	types "github.com/atlasmarkets/refdata/internal/domains/datasources/application/types"
)

// Service is the inbound port for the data source catalog use cases.
type Service interface {
	Create(ctx context.Context, input types.CreateDataSourceInput) (*types.DataSourceVersion, error)
	Get(ctx context.Context, input types.GetDataSourceInput) (*types.DataSourceVersion, error)
	List(ctx context.Context, input types.ListDataSourcesInput) ([]*types.DataSourceVersion, error)
	ListVersions(ctx context.Context, input types.ListVersionsInput) ([]*types.DataSourceVersion, error)
	FindByProvider(ctx context.Context, input types.FindByProviderInput) ([]*types.DataSourceVersion, error)
	Update(ctx context.Context, input types.UpdateDataSourceInput) (*types.DataSourceVersion, error)
	Delete(ctx context.Context, id int64) error
	Resurrect(ctx context.Context, input types.ResurrectDataSourceInput) (*types.DataSourceVersion, error)
}

package ports

import (
	"context"

	types "github.com/atlasmarkets/refdata/internal/domains/assets/application/types"
)

// Service is the inbound port for the asset catalog use cases.
type Service interface {
	Create(ctx context.Context, input types.CreateAssetInput) (*types.AssetVersion, error)
	Get(ctx context.Context, input types.GetAssetInput) (*types.AssetVersion, error)
	List(ctx context.Context, input types.ListAssetsInput) ([]*types.AssetVersion, error)
	ListVersions(ctx context.Context, input types.ListVersionsInput) ([]*types.AssetVersion, error)
	Update(ctx context.Context, input types.UpdateAssetInput) (*types.AssetVersion, error)
	Delete(ctx context.Context, id int64) error
	Resurrect(ctx context.Context, input types.ResurrectAssetInput) (*types.AssetVersion, error)
}

// Package types holds the asset use-case inputs and result aliases shared by
// transport, workflows, and the application service.
package types

import (
	"time"

	"github.com/atlasmarkets/refdata/internal/domains/assets/domain"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

// AssetVersion is the projection every read and mutation returns.
type AssetVersion = versioning.Version[*domain.Asset]

// AssetMutationInput captures create/update/resurrect payloads while
// preserving field presence: nil means "carry the prior value forward".
type AssetMutationInput struct {
	Name        *string
	Description *string
	Attributes  map[string]string
}

// CreateAssetInput creates a new asset chain.
type CreateAssetInput struct {
	AssetMutationInput
}

// UpdateAssetInput mutates an existing live asset.
type UpdateAssetInput struct {
	ID int64
	AssetMutationInput
}

// ResurrectAssetInput revives a soft-deleted asset with new data.
type ResurrectAssetInput struct {
	ID int64
	AssetMutationInput
}

// GetAssetInput identifies an asset read. AsOf nil means "current".
type GetAssetInput struct {
	ID             int64
	AsOf           *time.Time
	IncludeDeleted bool
}

// ListAssetsInput scopes a current-version listing.
type ListAssetsInput struct {
	IncludeDeleted bool
}

// ListVersionsInput scopes a history listing; ID zero means all entities.
type ListVersionsInput struct {
	ID int64
}

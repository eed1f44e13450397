// Package types holds the data source use-case inputs and result aliases
// shared by transport and the application service.
package types

import (
	"time"

	"github.com/atlasmarkets/refdata/internal/domains/datasources/domain"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

// DataSourceVersion is the projection every read and mutation returns.
type DataSourceVersion = versioning.Version[*domain.DataSource]

// DataSourceMutationInput captures create/update/resurrect payloads
// while preserving field presence: nil means "carry the prior value
// forward".
type DataSourceMutationInput struct {
	Name        *string
	Provider    *string
	Description *string
	Attributes  map[string]string
}

// CreateDataSourceInput creates a new data source chain.
type CreateDataSourceInput struct {
	DataSourceMutationInput
}

// UpdateDataSourceInput mutates an existing live data source.
type UpdateDataSourceInput struct {
	ID int64
	DataSourceMutationInput
}

// ResurrectDataSourceInput revives a soft-deleted data source.
type ResurrectDataSourceInput struct {
	ID int64
	DataSourceMutationInput
}

// GetDataSourceInput identifies a read. AsOf nil means "current".
type GetDataSourceInput struct {
	ID             int64
	AsOf           *time.Time
	IncludeDeleted bool
}

// ListDataSourcesInput scopes a current-version listing.
type ListDataSourcesInput struct {
	IncludeDeleted bool
}

// ListVersionsInput scopes a history listing; ID zero means all entities.
type ListVersionsInput struct {
	ID int64
}

// FindByProviderInput filters current live versions by exact provider.
type FindByProviderInput struct {
	Provider string
}

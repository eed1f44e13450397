// Package application implements the data source catalog use cases on
// top of the temporal version store.
package application

import (
	"context"
	"errors"
	"fmt"

	types "github.com/atlasmarkets/refdata/internal/domains/datasources/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/datasources/domain"
	"github.com/atlasmarkets/refdata/internal/domains/datasources/ports"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

// Service orchestrates the data source catalog use cases. Version-chain
// mechanics belong to the repository; the service owns field validation
// and the per-provider name uniqueness rule.
type Service struct {
	repo ports.Repository
}

// NewService wires the data source service with its dependencies.
func NewService(repo ports.Repository) *Service {
	return &Service{repo: repo}
}

// Create opens a new data source version chain.
func (s *Service) Create(ctx context.Context, input types.CreateDataSourceInput) (*types.DataSourceVersion, error) {
	source, err := domain.NewDataSource(deref(input.Name), deref(input.Provider), deref(input.Description), input.Attributes)
	if err != nil {
		return nil, mapError(err)
	}
	if err := s.ensureNameFree(ctx, source.Provider, source.Name, 0); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, source)
	if err != nil {
		return nil, mapError(err)
	}
	return created, nil
}

// Get loads the current version, or the version covering the as-of instant.
func (s *Service) Get(ctx context.Context, input types.GetDataSourceInput) (*types.DataSourceVersion, error) {
	if input.AsOf != nil {
		v, err := s.repo.GetAsOf(ctx, input.ID, *input.AsOf)
		if err != nil {
			return nil, mapError(err)
		}
		return v, nil
	}
	v, err := s.repo.GetCurrent(ctx, input.ID, input.IncludeDeleted)
	if err != nil {
		return nil, mapError(err)
	}
	return v, nil
}

// List returns each data source's current version.
func (s *Service) List(ctx context.Context, input types.ListDataSourcesInput) ([]*types.DataSourceVersion, error) {
	result, err := s.repo.ListCurrent(ctx, input.IncludeDeleted)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

// ListVersions exposes full history for admin inspection.
func (s *Service) ListVersions(ctx context.Context, input types.ListVersionsInput) ([]*types.DataSourceVersion, error) {
	result, err := s.repo.ListVersions(ctx, input.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

// FindByProvider filters live current versions by exact provider match.
// An unknown provider yields an empty list, not an error.
func (s *Service) FindByProvider(ctx context.Context, input types.FindByProviderInput) ([]*types.DataSourceVersion, error) {
	if input.Provider == "" {
		return nil, mapError(domain.ErrEmptyProvider)
	}
	result, err := s.repo.FindCurrentByProvider(ctx, input.Provider)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

// Update closes the current version and opens a replacement with the
// merged fields. Requires a current, non-deleted version.
func (s *Service) Update(ctx context.Context, input types.UpdateDataSourceInput) (*types.DataSourceVersion, error) {
	current, err := s.repo.GetCurrent(ctx, input.ID, false)
	if err != nil {
		return nil, mapError(err)
	}
	next := current.Entity.Clone()
	applyMutation(next, input.DataSourceMutationInput)
	if err := next.Validate(); err != nil {
		return nil, mapError(err)
	}
	if next.Provider != current.Entity.Provider || next.Name != current.Entity.Name {
		if err := s.ensureNameFree(ctx, next.Provider, next.Name, input.ID); err != nil {
			return nil, err
		}
	}
	updated, err := s.repo.Update(ctx, input.ID, next)
	if err != nil {
		return nil, mapError(err)
	}
	return updated, nil
}

// Delete closes the current version and writes a deletion marker.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return mapError(s.repo.SoftDelete(ctx, id))
}

// Resurrect revives a soft-deleted data source. The marker's data seeds
// the new version; supplied fields override it.
func (s *Service) Resurrect(ctx context.Context, input types.ResurrectDataSourceInput) (*types.DataSourceVersion, error) {
	current, err := s.repo.GetCurrent(ctx, input.ID, true)
	if err != nil {
		return nil, mapError(err)
	}
	if !current.Meta.IsDeleted {
		return nil, fmt.Errorf("%w: data source %d is not deleted", versioning.ErrConflict, input.ID)
	}
	next := current.Entity.Clone()
	applyMutation(next, input.DataSourceMutationInput)
	if err := next.Validate(); err != nil {
		return nil, mapError(err)
	}
	if err := s.ensureNameFree(ctx, next.Provider, next.Name, input.ID); err != nil {
		return nil, err
	}
	revived, err := s.repo.Resurrect(ctx, input.ID, next)
	if err != nil {
		return nil, mapError(err)
	}
	return revived, nil
}

// ensureNameFree enforces that a (provider, name) pair belongs to at
// most one live current version. Historical pairs may be reused freely.
func (s *Service) ensureNameFree(ctx context.Context, provider, name string, selfID int64) error {
	sources, err := s.repo.FindCurrentByProvider(ctx, provider)
	if err != nil {
		if errors.Is(err, versioning.ErrNotFound) {
			return nil
		}
		return mapError(err)
	}
	for _, v := range sources {
		if v.Entity.Name == name && v.Meta.EntityID != selfID {
			return fmt.Errorf("%w: data source %q already registered for provider %q by entity %d",
				versioning.ErrConflict, name, provider, v.Meta.EntityID)
		}
	}
	return nil
}

func applyMutation(target *domain.DataSource, input types.DataSourceMutationInput) {
	if input.Name != nil {
		target.Name = *input.Name
	}
	if input.Provider != nil {
		target.Provider = *input.Provider
	}
	if input.Description != nil {
		target.Description = *input.Description
	}
	target.MergeAttributes(input.Attributes)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ ports.Service = (*Service)(nil)

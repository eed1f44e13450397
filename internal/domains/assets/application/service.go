package application

import (
	"context"
	"errors"
	"fmt"

	types "github.com/atlasmarkets/refdata/internal/domains/assets/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/assets/domain"
	"github.com/atlasmarkets/refdata/internal/domains/assets/ports"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

// Service orchestrates the asset catalog use cases. Version-chain mechanics
// belong to the repository; the service owns field validation and the
// cross-entity symbol uniqueness rule.
type Service struct {
	repo ports.Repository
}

// NewService wires the asset service with its dependencies.
func NewService(repo ports.Repository) *Service {
	return &Service{repo: repo}
}

// Create opens a new asset version chain.
func (s *Service) Create(ctx context.Context, input types.CreateAssetInput) (*types.AssetVersion, error) {
	if input.Name == nil {
		return nil, mapError(domain.ErrEmptyName)
	}
	asset, err := domain.NewAsset(0, *input.Name, deref(input.Description), input.Attributes)
	if err != nil {
		return nil, mapError(err)
	}
	if err := s.ensureSymbolFree(ctx, asset.Symbol(), 0); err != nil {
		return nil, err
	}
	created, err := s.repo.Create(ctx, asset)
	if err != nil {
		return nil, mapError(err)
	}
	return created, nil
}

// Get loads the current version, or the version covering the as-of instant.
func (s *Service) Get(ctx context.Context, input types.GetAssetInput) (*types.AssetVersion, error) {
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

// List returns each asset's current version.
func (s *Service) List(ctx context.Context, input types.ListAssetsInput) ([]*types.AssetVersion, error) {
	result, err := s.repo.ListCurrent(ctx, input.IncludeDeleted)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

// ListVersions exposes full history for admin inspection.
func (s *Service) ListVersions(ctx context.Context, input types.ListVersionsInput) ([]*types.AssetVersion, error) {
	result, err := s.repo.ListVersions(ctx, input.ID)
	if err != nil {
		return nil, mapError(err)
	}
	return result, nil
}

// Update closes the current version and opens a replacement with the merged
// fields. Requires a current, non-deleted version.
func (s *Service) Update(ctx context.Context, input types.UpdateAssetInput) (*types.AssetVersion, error) {
	current, err := s.repo.GetCurrent(ctx, input.ID, false)
	if err != nil {
		return nil, mapError(err)
	}
	next := current.Entity.Clone()
	if err := applyMutation(next, input.AssetMutationInput); err != nil {
		return nil, mapError(err)
	}
	if next.Symbol() == "" {
		return nil, mapError(domain.ErrMissingSymbol)
	}
	if next.Symbol() != current.Entity.Symbol() {
		if err := s.ensureSymbolFree(ctx, next.Symbol(), input.ID); err != nil {
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

// Resurrect revives a soft-deleted asset. The marker's data seeds the new
// version; supplied fields override it.
func (s *Service) Resurrect(ctx context.Context, input types.ResurrectAssetInput) (*types.AssetVersion, error) {
	current, err := s.repo.GetCurrent(ctx, input.ID, true)
	if err != nil {
		return nil, mapError(err)
	}
	if !current.Meta.IsDeleted {
		return nil, fmt.Errorf("%w: asset %d is not deleted", versioning.ErrConflict, input.ID)
	}
	next := current.Entity.Clone()
	if err := applyMutation(next, input.AssetMutationInput); err != nil {
		return nil, mapError(err)
	}
	if next.Symbol() == "" {
		return nil, mapError(domain.ErrMissingSymbol)
	}
	if err := s.ensureSymbolFree(ctx, next.Symbol(), input.ID); err != nil {
		return nil, err
	}
	revived, err := s.repo.Resurrect(ctx, input.ID, next)
	if err != nil {
		return nil, mapError(err)
	}
	return revived, nil
}

// ensureSymbolFree scans live current versions only; historical symbols may be
// reused freely.
func (s *Service) ensureSymbolFree(ctx context.Context, symbol string, selfID int64) error {
	other, err := s.repo.FindCurrentBySymbol(ctx, symbol)
	if err != nil {
		if errors.Is(err, versioning.ErrNotFound) {
			return nil
		}
		return mapError(err)
	}
	if other.Meta.EntityID == selfID {
		return nil
	}
	return fmt.Errorf("%w: symbol %q already in use by asset %d", versioning.ErrConflict, symbol, other.Meta.EntityID)
}

func applyMutation(target *domain.Asset, input types.AssetMutationInput) error {
	if input.Name != nil {
		if err := target.Rename(*input.Name); err != nil {
			return err
		}
	}
	if input.Description != nil {
		target.Describe(*input.Description)
	}
	target.MergeAttributes(input.Attributes)
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ ports.Service = (*Service)(nil)

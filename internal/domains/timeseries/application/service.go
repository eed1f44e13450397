// Package application implements the time-series ledger use cases.
package application

import (
	"context"
	"fmt"

	types "github.com/atlasmarkets/refdata/internal/domains/timeseries/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/domain"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/ports"
)

// Service orchestrates ledger reads and writes. Row versioning belongs
// to the ledger adapter; the service owns payload validation and the
// catalog existence checks guarding writes.
type Service struct {
	ledger ports.Ledger
	guard  ports.CatalogGuard
}

// NewService wires the ledger service. guard may be nil when callers
// have already resolved catalog existence.
func NewService(ledger ports.Ledger, guard ports.CatalogGuard) *Service {
	return &Service{ledger: ledger, guard: guard}
}

// Append writes a new row for the key. Identical duplicates are
// idempotent no-ops; diverging duplicates conflict.
func (s *Service) Append(ctx context.Context, input types.WriteInput) error {
	obs, err := s.buildRow(ctx, input)
	if err != nil {
		return err
	}
	return mapError(s.ledger.Append(ctx, obs))
}

// Refresh supersedes the current row for the key, keeping the prior
// version queryable by provenance.
func (s *Service) Refresh(ctx context.Context, input types.WriteInput) error {
	obs, err := s.buildRow(ctx, input)
	if err != nil {
		return err
	}
	return mapError(s.ledger.Refresh(ctx, obs))
}

// QueryRange returns current rows inside the inclusive date range,
// ordered by business date descending. An empty range is not an error.
func (s *Service) QueryRange(ctx context.Context, input types.QueryRangeInput) ([]*types.ObservationRow, error) {
	start := domain.NormalizeDate(input.StartDate)
	end := domain.NormalizeDate(input.EndDate)
	if start.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	rows, err := s.ledger.QueryRange(ctx, input.AssetID, input.DataSourceID, start, end)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

// GetCoverage summarizes the committed date range of a series. A series
// with no rows yields nil without error.
func (s *Service) GetCoverage(ctx context.Context, input types.CoverageInput) (*types.Coverage, error) {
	coverage, err := s.ledger.GetCoverage(ctx, input.AssetID, input.DataSourceID)
	if err != nil {
		return nil, mapError(err)
	}
	return coverage, nil
}

func (s *Service) buildRow(ctx context.Context, input types.WriteInput) (*domain.Observation, error) {
	obs, err := domain.NewObservation(
		input.AssetID, input.DataSourceID, input.BusinessDate,
		input.ValuesDouble, input.ValuesInt, input.ValuesText,
	)
	if err != nil {
		return nil, mapError(err)
	}
	if s.guard != nil {
		if err := s.guard.EnsureAssetLive(ctx, obs.AssetID); err != nil {
			return nil, err
		}
		if err := s.guard.EnsureSourceLive(ctx, obs.DataSourceID); err != nil {
			return nil, err
		}
	}
	return obs, nil
}

var _ ports.Service = (*Service)(nil)

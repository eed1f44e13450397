package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	assetmemory "github.com/atlasmarkets/refdata/internal/domains/assets/adapters/memory"
	assetdomain "github.com/atlasmarkets/refdata/internal/domains/assets/domain"
	sourcememory "github.com/atlasmarkets/refdata/internal/domains/datasources/adapters/memory"
	sourcedomain "github.com/atlasmarkets/refdata/internal/domains/datasources/domain"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/adapters/catalog"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/adapters/memory"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/application"
	types "github.com/atlasmarkets/refdata/internal/domains/timeseries/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/domain"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	svc      *application.Service
	assetID  int64
	sourceID int64
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	assets := assetmemory.NewRepository()
	asset, err := assetdomain.NewAsset(0, "Apple Inc.", "", map[string]string{"symbol": "AAPL"})
	require.NoError(t, err)
	assetVersion, err := assets.Create(ctx, asset)
	require.NoError(t, err)

	sources := sourcememory.NewRepository()
	source, err := sourcedomain.NewDataSource("PRICES", "datalink", "", nil)
	require.NoError(t, err)
	sourceVersion, err := sources.Create(ctx, source)
	require.NoError(t, err)

	svc := application.NewService(memory.NewLedger(), catalog.NewGuard(assets, sources))
	return fixture{
		svc:      svc,
		assetID:  assetVersion.Meta.EntityID,
		sourceID: sourceVersion.Meta.EntityID,
	}
}

func (f fixture) write(day time.Time, closePrice float64) types.WriteInput {
	return types.WriteInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		BusinessDate: day,
		ValuesDouble: map[string]float64{domain.FieldClose: closePrice},
	}
}

func TestAppendAndQueryRange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Append(ctx, f.write(date(2024, 3, 4), 170.1)))
	require.NoError(t, f.svc.Append(ctx, f.write(date(2024, 3, 5), 171.2)))
	require.NoError(t, f.svc.Append(ctx, f.write(date(2024, 3, 6), 169.8)))

	rows, err := f.svc.QueryRange(ctx, types.QueryRangeInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		StartDate:    date(2024, 3, 4),
		EndDate:      date(2024, 3, 6),
	})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	// Most recent business date first, boundaries inclusive.
	assert.Equal(t, date(2024, 3, 6), rows[0].Entity.BusinessDate)
	assert.Equal(t, date(2024, 3, 4), rows[2].Entity.BusinessDate)
}

func TestQueryRangeEmptyIsNotAnError(t *testing.T) {
	f := newFixture(t)

	rows, err := f.svc.QueryRange(context.Background(), types.QueryRangeInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		StartDate:    date(2024, 1, 1),
		EndDate:      date(2024, 1, 31),
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestQueryRangeRejectsInvertedRange(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.QueryRange(context.Background(), types.QueryRangeInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		StartDate:    date(2024, 2, 1),
		EndDate:      date(2024, 1, 1),
	})
	assert.ErrorIs(t, err, application.ErrInvalidRange)
}

func TestAppendIdenticalDuplicateIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	input := f.write(date(2024, 3, 4), 170.1)
	require.NoError(t, f.svc.Append(ctx, input))
	require.NoError(t, f.svc.Append(ctx, input))

	rows, err := f.svc.QueryRange(ctx, types.QueryRangeInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		StartDate:    date(2024, 3, 4),
		EndDate:      date(2024, 3, 4),
	})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAppendDivergingDuplicateConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Append(ctx, f.write(date(2024, 3, 4), 170.1)))
	err := f.svc.Append(ctx, f.write(date(2024, 3, 4), 999.9))
	assert.ErrorIs(t, err, versioning.ErrConflict)
}

func TestRefreshSupersedesRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.Append(ctx, f.write(date(2024, 3, 4), 170.1)))
	require.NoError(t, f.svc.Refresh(ctx, f.write(date(2024, 3, 4), 170.5)))

	rows, err := f.svc.QueryRange(ctx, types.QueryRangeInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		StartDate:    date(2024, 3, 4),
		EndDate:      date(2024, 3, 4),
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 170.5, rows[0].Entity.ValuesDouble[domain.FieldClose])

	// Refresh on a date with no prior row just writes it.
	require.NoError(t, f.svc.Refresh(ctx, f.write(date(2024, 3, 5), 171.0)))
}

func TestCoverage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	coverage, err := f.svc.GetCoverage(ctx, types.CoverageInput{AssetID: f.assetID, DataSourceID: f.sourceID})
	require.NoError(t, err)
	assert.Nil(t, coverage)

	require.NoError(t, f.svc.Append(ctx, f.write(date(2024, 3, 4), 170.1)))
	require.NoError(t, f.svc.Append(ctx, f.write(date(2024, 3, 6), 169.8)))

	coverage, err = f.svc.GetCoverage(ctx, types.CoverageInput{AssetID: f.assetID, DataSourceID: f.sourceID})
	require.NoError(t, err)
	require.NotNil(t, coverage)
	assert.Equal(t, date(2024, 3, 4), coverage.MinDate)
	assert.Equal(t, date(2024, 3, 6), coverage.MaxDate)
	assert.Equal(t, int64(2), coverage.Count)
}

func TestWritesRequireLiveCatalogEntities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.Append(ctx, types.WriteInput{
		AssetID:      9999,
		DataSourceID: f.sourceID,
		BusinessDate: date(2024, 3, 4),
		ValuesDouble: map[string]float64{domain.FieldClose: 1},
	})
	assert.ErrorIs(t, err, versioning.ErrNotFound)

	err = f.svc.Append(ctx, types.WriteInput{
		AssetID:      f.assetID,
		DataSourceID: 9999,
		BusinessDate: date(2024, 3, 4),
		ValuesDouble: map[string]float64{domain.FieldClose: 1},
	})
	assert.ErrorIs(t, err, versioning.ErrNotFound)
}

func TestWriteRejectsEmptyValues(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Append(context.Background(), types.WriteInput{
		AssetID:      f.assetID,
		DataSourceID: f.sourceID,
		BusinessDate: date(2024, 3, 4),
	})
	assert.ErrorIs(t, err, application.ErrInvalidInput)
}

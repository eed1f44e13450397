package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasmarkets/refdata/internal/domains/timeseries/adapters/memory"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/domain"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

func observation(t *testing.T, close float64) *domain.Observation {
	t.Helper()
	obs, err := domain.NewObservation(
		1, 1, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		map[string]float64{domain.FieldClose: close}, nil, nil,
	)
	require.NoError(t, err)
	return obs
}

func TestConcurrentIdenticalAppends_AllIdempotent(t *testing.T) {
	ledger := memory.NewLedger()
	ctx := context.Background()

	const writers = 32
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			require.NoError(t, ledger.Append(ctx, observation(t, 101)))
		}()
	}
	wg.Wait()

	coverage, err := ledger.GetCoverage(ctx, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, coverage)
	assert.Equal(t, int64(1), coverage.Count)
}

func TestConcurrentDivergingAppends_OneWinner(t *testing.T) {
	ledger := memory.NewLedger()
	ctx := context.Background()

	const writers = 16
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			errs <- ledger.Append(ctx, observation(t, float64(100+i)))
		}(i)
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			assert.ErrorIs(t, err, versioning.ErrConflict)
			conflicted++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicted)

	coverage, err := ledger.GetCoverage(ctx, 1, 1)
	require.NoError(t, err)
	require.NotNil(t, coverage)
	assert.Equal(t, int64(1), coverage.Count)
}

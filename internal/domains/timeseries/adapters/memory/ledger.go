package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	types "github.com/atlasmarkets/refdata/internal/domains/timeseries/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/domain"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/ports"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

var _ ports.Ledger = (*Ledger)(nil)

// seriesKey identifies one observation chain. Dates are held as
// YYYY-MM-DD strings so the key stays comparable.
type seriesKey struct {
	asset  int64
	source int64
	date   string
}

func keyOf(obs *domain.Observation) seriesKey {
	return seriesKey{
		asset:  obs.AssetID,
		source: obs.DataSourceID,
		date:   obs.BusinessDate.Format("2006-01-02"),
	}
}

// Ledger is an in-memory observation store used for tests and dev fallbacks.
type Ledger struct {
	store *versioning.MemStore[seriesKey, *domain.Observation]
}

// NewLedger constructs an empty in-memory ledger.
func NewLedger() *Ledger {
	return &Ledger{
		store: versioning.NewMemStore[seriesKey, *domain.Observation]((*domain.Observation).Clone),
	}
}

// WithClock overrides the time source for deterministic testing.
func (l *Ledger) WithClock(now func() time.Time) {
	l.store.SetClock(now)
}

// Append writes a row only when the key has no current row. Identical
// duplicates are no-ops; diverging duplicates conflict.
func (l *Ledger) Append(_ context.Context, obs *domain.Observation) error {
	key := keyOf(obs)
	current, err := l.store.Current(key, true)
	if errors.Is(err, versioning.ErrNotFound) {
		_, err = l.store.Create(key, obs)
		if err == nil || !errors.Is(err, versioning.ErrConflict) {
			return err
		}
		// Lost the create race; the winner's row decides idempotency.
		current, err = l.store.Current(key, true)
	}
	if err != nil {
		return err
	}
	if current.Entity.Equal(obs) {
		return nil
	}
	return fmt.Errorf("%w: observation for asset %d source %d on %s already exists with different values",
		versioning.ErrConflict, obs.AssetID, obs.DataSourceID, key.date)
}

// Refresh supersedes the key's current row, creating the chain when none
// exists yet.
func (l *Ledger) Refresh(_ context.Context, obs *domain.Observation) error {
	_, err := l.store.Replace(keyOf(obs), obs)
	return err
}

// QueryRange returns current rows inside the inclusive range, newest
// business date first.
func (l *Ledger) QueryRange(_ context.Context, assetID, sourceID int64, start, end time.Time) ([]*types.ObservationRow, error) {
	var rows []versioning.Version[*domain.Observation]
	for _, v := range l.store.CurrentAll(false) {
		obs := v.Entity
		if obs.AssetID != assetID || obs.DataSourceID != sourceID {
			continue
		}
		if obs.BusinessDate.Before(start) || obs.BusinessDate.After(end) {
			continue
		}
		rows = append(rows, v)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Entity.BusinessDate.After(rows[j].Entity.BusinessDate)
	})
	out := make([]*types.ObservationRow, 0, len(rows))
	for i := range rows {
		out = append(out, &rows[i])
	}
	return out, nil
}

// GetCoverage summarizes the committed date range of a series; nil when
// the series has no rows.
func (l *Ledger) GetCoverage(_ context.Context, assetID, sourceID int64) (*types.Coverage, error) {
	var coverage *types.Coverage
	for _, v := range l.store.CurrentAll(false) {
		obs := v.Entity
		if obs.AssetID != assetID || obs.DataSourceID != sourceID {
			continue
		}
		if coverage == nil {
			coverage = &types.Coverage{MinDate: obs.BusinessDate, MaxDate: obs.BusinessDate}
		}
		if obs.BusinessDate.Before(coverage.MinDate) {
			coverage.MinDate = obs.BusinessDate
		}
		if obs.BusinessDate.After(coverage.MaxDate) {
			coverage.MaxDate = obs.BusinessDate
		}
		coverage.Count++
	}
	return coverage, nil
}

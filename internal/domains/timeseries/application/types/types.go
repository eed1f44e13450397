// Package types holds the time-series ledger use-case inputs and result
// aliases shared by transport, workflows, and the application service.
package types

import (
	"time"

	"github.com/atlasmarkets/refdata/internal/domains/timeseries/domain"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

// ObservationRow is the projection ledger reads return: one observation
// plus its provenance stamps.
type ObservationRow = versioning.Version[*domain.Observation]

// WriteInput carries one row to append or refresh.
type WriteInput struct {
	AssetID      int64
	DataSourceID int64
	BusinessDate time.Time
	ValuesDouble map[string]float64
	ValuesInt    map[string]int64
	ValuesText   map[string]string
}

// QueryRangeInput scopes a read to a (asset, source) series and an
// inclusive business date range.
type QueryRangeInput struct {
	AssetID      int64
	DataSourceID int64
	StartDate    time.Time
	EndDate      time.Time
}

// CoverageInput identifies a series for coverage inspection.
type CoverageInput struct {
	AssetID      int64
	DataSourceID int64
}

// Coverage summarizes the committed business date range of a series.
type Coverage struct {
	MinDate time.Time
	MaxDate time.Time
	Count   int64
}

package mapper

import (
	"time"

	oapitypes "github.com/oapi-codegen/runtime/types"

	types "github.com/atlasmarkets/refdata/internal/domains/timeseries/application/types"
)

// WriteObservation captures an inbound ledger row. Business dates travel
// as plain calendar dates on the wire.
type WriteObservation struct {
	AssetID      int64              `json:"assetId"`
	DataSourceID int64              `json:"dataSourceId"`
	BusinessDate oapitypes.Date     `json:"businessDate"`
	ValuesDouble map[string]float64 `json:"valuesDouble,omitempty"`
	ValuesInt    map[string]int64   `json:"valuesInt,omitempty"`
	ValuesText   map[string]string  `json:"valuesText,omitempty"`
}

// Observation is the HTTP representation of one ledger row plus its
// provenance stamps.
type Observation struct {
	AssetID      int64              `json:"assetId"`
	DataSourceID int64              `json:"dataSourceId"`
	BusinessDate oapitypes.Date     `json:"businessDate"`
	ValuesDouble map[string]float64 `json:"valuesDouble,omitempty"`
	ValuesInt    map[string]int64   `json:"valuesInt,omitempty"`
	ValuesText   map[string]string  `json:"valuesText,omitempty"`
	ValidFrom    time.Time          `json:"validFrom"`
	ValidTo      time.Time          `json:"validTo"`
	SystemDate   time.Time          `json:"systemDate"`
}

// CoverageSummary reports the committed date range of a series.
type CoverageSummary struct {
	MinDate oapitypes.Date `json:"minDate"`
	MaxDate oapitypes.Date `json:"maxDate"`
	Count   int64          `json:"count"`
}

// ToWriteInput maps an inbound payload into the use-case input.
func ToWriteInput(input WriteObservation) types.WriteInput {
	return types.WriteInput{
		AssetID:      input.AssetID,
		DataSourceID: input.DataSourceID,
		BusinessDate: input.BusinessDate.Time,
		ValuesDouble: input.ValuesDouble,
		ValuesInt:    input.ValuesInt,
		ValuesText:   input.ValuesText,
	}
}

// FromRow maps a ledger row into its transport shape.
func FromRow(row *types.ObservationRow) Observation {
	if row == nil || row.Entity == nil {
		return Observation{}
	}
	return Observation{
		AssetID:      row.Entity.AssetID,
		DataSourceID: row.Entity.DataSourceID,
		BusinessDate: oapitypes.Date{Time: row.Entity.BusinessDate},
		ValuesDouble: row.Entity.ValuesDouble,
		ValuesInt:    row.Entity.ValuesInt,
		ValuesText:   row.Entity.ValuesText,
		ValidFrom:    row.Meta.ValidFrom,
		ValidTo:      row.Meta.ValidTo,
		SystemDate:   row.Meta.SystemDate,
	}
}

// FromRows maps a row slice into transport shapes.
func FromRows(rows []*types.ObservationRow) []Observation {
	out := make([]Observation, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromRow(row))
	}
	return out
}

// FromCoverage maps a coverage summary; nil maps to nil.
func FromCoverage(coverage *types.Coverage) *CoverageSummary {
	if coverage == nil {
		return nil
	}
	return &CoverageSummary{
		MinDate: oapitypes.Date{Time: coverage.MinDate},
		MaxDate: oapitypes.Date{Time: coverage.MaxDate},
		Count:   coverage.Count,
	}
}

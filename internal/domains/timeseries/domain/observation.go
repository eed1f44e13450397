// Package domain models the time-series ledger rows: per business date
// observations tying an asset to the data source that reported them.
package domain

import (
	"errors"
	"time"
)

var (
	ErrMissingAsset  = errors.New("observation requires an asset id")
	ErrMissingSource = errors.New("observation requires a data source id")
	ErrMissingDate   = errors.New("observation requires a business date")
	ErrNoValues      = errors.New("observation carries no values")
)

// Observation is one row of market data for (asset, source, business
// date). The three typed value maps accommodate heterogeneous metrics
// without schema changes: OHLCV floats, counts, and textual flags.
type Observation struct {
	AssetID      int64
	DataSourceID int64
	BusinessDate time.Time
	ValuesDouble map[string]float64
	ValuesInt    map[string]int64
	ValuesText   map[string]string
}

// Common values_double keys written by end-of-day price feeds.
const (
	FieldOpen     = "open"
	FieldHigh     = "high"
	FieldLow      = "low"
	FieldClose    = "close"
	FieldVolume   = "volume"
	FieldAdjClose = "adj_close"
)

// NewObservation validates and constructs a ledger row. The business
// date is normalized to midnight UTC.
func NewObservation(assetID, sourceID int64, businessDate time.Time, doubles map[string]float64, ints map[string]int64, texts map[string]string) (*Observation, error) {
	obs := &Observation{
		AssetID:      assetID,
		DataSourceID: sourceID,
		BusinessDate: NormalizeDate(businessDate),
		ValuesDouble: cloneDoubles(doubles),
		ValuesInt:    cloneInts(ints),
		ValuesText:   cloneTexts(texts),
	}
	if err := obs.Validate(); err != nil {
		return nil, err
	}
	return obs, nil
}

// Validate checks the invariants every stored row must satisfy.
func (o *Observation) Validate() error {
	if o.AssetID == 0 {
		return ErrMissingAsset
	}
	if o.DataSourceID == 0 {
		return ErrMissingSource
	}
	if o.BusinessDate.IsZero() {
		return ErrMissingDate
	}
	if len(o.ValuesDouble) == 0 && len(o.ValuesInt) == 0 && len(o.ValuesText) == 0 {
		return ErrNoValues
	}
	return nil
}

// Equal reports whether two observations carry identical values for the
// same key. Used to detect idempotent duplicate appends.
func (o *Observation) Equal(other *Observation) bool {
	if o == nil || other == nil {
		return o == other
	}
	if o.AssetID != other.AssetID || o.DataSourceID != other.DataSourceID {
		return false
	}
	if !o.BusinessDate.Equal(other.BusinessDate) {
		return false
	}
	if len(o.ValuesDouble) != len(other.ValuesDouble) ||
		len(o.ValuesInt) != len(other.ValuesInt) ||
		len(o.ValuesText) != len(other.ValuesText) {
		return false
	}
	for k, v := range o.ValuesDouble {
		if ov, ok := other.ValuesDouble[k]; !ok || ov != v {
			return false
		}
	}
	for k, v := range o.ValuesInt {
		if ov, ok := other.ValuesInt[k]; !ok || ov != v {
			return false
		}
	}
	for k, v := range o.ValuesText {
		if ov, ok := other.ValuesText[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone deep-copies the observation so version chains never alias.
func (o *Observation) Clone() *Observation {
	if o == nil {
		return nil
	}
	copied := *o
	copied.ValuesDouble = cloneDoubles(o.ValuesDouble)
	copied.ValuesInt = cloneInts(o.ValuesInt)
	copied.ValuesText = cloneTexts(o.ValuesText)
	return &copied
}

// NormalizeDate truncates an instant to its UTC calendar date.
func NormalizeDate(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func cloneDoubles(in map[string]float64) map[string]float64 {
	if in == nil {
		return nil
	}
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneInts(in map[string]int64) map[string]int64 {
	if in == nil {
		return nil
	}
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneTexts(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

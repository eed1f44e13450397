package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/atlasmarkets/refdata/internal/domains/timeseries/application/types"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/domain"
	"github.com/atlasmarkets/refdata/internal/domains/timeseries/ports"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

var _ ports.Ledger = (*Ledger)(nil)

// Ledger persists observation chains in PostgreSQL using GORM. Rows are
// keyed by (asset, source, business date); refresh closes the current
// row for a key and opens its replacement inside one transaction.
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLedger wires a PostgreSQL-backed ledger. Caller manages DB lifecycle.
func NewLedger(db *gorm.DB) *Ledger {
	ledger := &Ledger{db: db, now: time.Now}
	if db != nil {
		_ = db.AutoMigrate(&observationRecord{})
	}
	return ledger
}

// WithClock overrides the time source for deterministic testing.
func (l *Ledger) WithClock(now func() time.Time) {
	l.now = now
}

type observationRecord struct {
	ID           int64              `gorm:"primaryKey;autoIncrement;column:id"`
	AssetID      int64              `gorm:"column:asset_id;index:idx_observations_series,priority:1"`
	DataSourceID int64              `gorm:"column:data_source_id;index:idx_observations_series,priority:2"`
	BusinessDate time.Time          `gorm:"column:business_date;type:date;index:idx_observations_series,priority:3"`
	ValidFrom    time.Time          `gorm:"column:valid_from"`
	ValidTo      time.Time          `gorm:"column:valid_to;index"`
	SystemDate   time.Time          `gorm:"column:system_date"`
	IsDeleted    bool               `gorm:"column:is_deleted"`
	ValuesDouble map[string]float64 `gorm:"column:values_double;type:jsonb;serializer:json"`
	ValuesInt    map[string]int64   `gorm:"column:values_int;type:jsonb;serializer:json"`
	ValuesText   map[string]string  `gorm:"column:values_text;type:jsonb;serializer:json"`
}

func (observationRecord) TableName() string { return "observations" }

// Append writes a row only when the key has no current row. Identical
// duplicates are no-ops; diverging duplicates conflict.
func (l *Ledger) Append(ctx context.Context, obs *domain.Observation) error {
	if err := l.ensureDB(); err != nil {
		return err
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current observationRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("asset_id = ? AND data_source_id = ? AND business_date = ? AND valid_to = ?",
				obs.AssetID, obs.DataSourceID, obs.BusinessDate, versioning.FarFuture).
			First(&current).Error
		switch {
		case err == nil:
			if current.toDomain().Equal(obs) {
				return nil
			}
			return fmt.Errorf("%w: observation for asset %d source %d on %s already exists with different values",
				versioning.ErrConflict, obs.AssetID, obs.DataSourceID, obs.BusinessDate.Format("2006-01-02"))
		case errors.Is(err, gorm.ErrRecordNotFound):
			now := versioning.Timestamp(l.now())
			record := toRecord(obs, now, now)
			if err := tx.Create(&record).Error; err != nil {
				return fmt.Errorf("%w: insert observation: %v", versioning.ErrStorage, err)
			}
			return nil
		default:
			return fmt.Errorf("%w: %v", versioning.ErrStorage, err)
		}
	})
}

// Refresh supersedes the key's current row, creating the chain when none
// exists yet.
func (l *Ledger) Refresh(ctx context.Context, obs *domain.Observation) error {
	if err := l.ensureDB(); err != nil {
		return err
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current observationRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("asset_id = ? AND data_source_id = ? AND business_date = ? AND valid_to = ?",
				obs.AssetID, obs.DataSourceID, obs.BusinessDate, versioning.FarFuture).
			First(&current).Error
		now := l.now()
		validFrom := versioning.Timestamp(now)
		switch {
		case err == nil:
			validFrom = versioning.NextAfter(now, current.ValidFrom)
			closed := tx.Model(&observationRecord{}).
				Where("asset_id = ? AND data_source_id = ? AND business_date = ? AND valid_to = ?",
					obs.AssetID, obs.DataSourceID, obs.BusinessDate, versioning.FarFuture).
				Update("valid_to", validFrom)
			if closed.Error != nil {
				return fmt.Errorf("%w: close observation: %v", versioning.ErrStorage, closed.Error)
			}
			if closed.RowsAffected != 1 {
				return fmt.Errorf("%w: observation for asset %d source %d on %s superseded concurrently",
					versioning.ErrConflict, obs.AssetID, obs.DataSourceID, obs.BusinessDate.Format("2006-01-02"))
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return fmt.Errorf("%w: %v", versioning.ErrStorage, err)
		}
		record := toRecord(obs, validFrom, versioning.Timestamp(now))
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("%w: insert observation: %v", versioning.ErrStorage, err)
		}
		return nil
	})
}

// QueryRange returns current rows inside the inclusive range, newest
// business date first.
func (l *Ledger) QueryRange(ctx context.Context, assetID, sourceID int64, start, end time.Time) ([]*types.ObservationRow, error) {
	if err := l.ensureDB(); err != nil {
		return nil, err
	}
	var records []observationRecord
	err := l.db.WithContext(ctx).
		Where("asset_id = ? AND data_source_id = ? AND business_date >= ? AND business_date <= ? AND valid_to = ? AND is_deleted = false",
			assetID, sourceID, start, end, versioning.FarFuture).
		Order("business_date DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", versioning.ErrStorage, err)
	}
	rows := make([]*types.ObservationRow, 0, len(records))
	for i := range records {
		rows = append(rows, records[i].toRow())
	}
	return rows, nil
}

// GetCoverage summarizes the committed date range of a series; nil when
// the series has no rows.
func (l *Ledger) GetCoverage(ctx context.Context, assetID, sourceID int64) (*types.Coverage, error) {
	if err := l.ensureDB(); err != nil {
		return nil, err
	}
	var agg struct {
		MinDate *time.Time
		MaxDate *time.Time
		Count   int64
	}
	err := l.db.WithContext(ctx).Model(&observationRecord{}).
		Select("MIN(business_date) AS min_date, MAX(business_date) AS max_date, COUNT(*) AS count").
		Where("asset_id = ? AND data_source_id = ? AND valid_to = ? AND is_deleted = false",
			assetID, sourceID, versioning.FarFuture).
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", versioning.ErrStorage, err)
	}
	if agg.Count == 0 || agg.MinDate == nil || agg.MaxDate == nil {
		return nil, nil
	}
	return &types.Coverage{
		MinDate: domain.NormalizeDate(*agg.MinDate),
		MaxDate: domain.NormalizeDate(*agg.MaxDate),
		Count:   agg.Count,
	}, nil
}

func (l *Ledger) ensureDB() error {
	if l == nil || l.db == nil {
		return errors.New("postgres ledger not configured")
	}
	return nil
}

func toRecord(obs *domain.Observation, validFrom, systemDate time.Time) observationRecord {
	return observationRecord{
		AssetID:      obs.AssetID,
		DataSourceID: obs.DataSourceID,
		BusinessDate: obs.BusinessDate,
		ValidFrom:    validFrom,
		ValidTo:      versioning.FarFuture,
		SystemDate:   systemDate,
		IsDeleted:    false,
		ValuesDouble: obs.ValuesDouble,
		ValuesInt:    obs.ValuesInt,
		ValuesText:   obs.ValuesText,
	}
}

func (r observationRecord) toDomain() *domain.Observation {
	obs := &domain.Observation{
		AssetID:      r.AssetID,
		DataSourceID: r.DataSourceID,
		BusinessDate: domain.NormalizeDate(r.BusinessDate),
		ValuesDouble: r.ValuesDouble,
		ValuesInt:    r.ValuesInt,
		ValuesText:   r.ValuesText,
	}
	return obs.Clone()
}

func (r observationRecord) toRow() *types.ObservationRow {
	return &types.ObservationRow{
		Entity: r.toDomain(),
		Meta: versioning.Meta{
			ValidFrom:  r.ValidFrom,
			ValidTo:    r.ValidTo,
			SystemDate: r.SystemDate,
			IsDeleted:  r.IsDeleted,
		},
	}
}

package migrations

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Run applies the schema for the bounded contexts. Intended to replace adapter-level automigrate.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&assetEntity{},
		&assetVersionRecord{},
		&sourceEntity{},
		&sourceVersionRecord{},
		&observationRecord{},
		&sessionRecord{},
	)
}

// Asset schema mirrors the assets Postgres adapter: an id registry plus
// the version chain table.
type assetEntity struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (assetEntity) TableName() string { return "asset_entities" }

type assetVersionRecord struct {
	ID          int64             `gorm:"primaryKey;autoIncrement;column:id"`
	EntityID    int64             `gorm:"column:entity_id;index:idx_asset_versions_chain,priority:1"`
	ValidFrom   time.Time         `gorm:"column:valid_from;index:idx_asset_versions_chain,priority:2"`
	ValidTo     time.Time         `gorm:"column:valid_to;index"`
	SystemDate  time.Time         `gorm:"column:system_date"`
	IsDeleted   bool              `gorm:"column:is_deleted"`
	Name        string            `gorm:"column:name"`
	Description string            `gorm:"column:description"`
	Attributes  map[string]string `gorm:"column:attributes;type:jsonb;serializer:json"`
}

func (assetVersionRecord) TableName() string { return "asset_versions" }

// Data source schema mirrors the datasources Postgres adapter.
type sourceEntity struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	CreatedAt time.Time `gorm:"column:created_at"`
}

func (sourceEntity) TableName() string { return "data_source_entities" }

type sourceVersionRecord struct {
	ID          int64             `gorm:"primaryKey;autoIncrement;column:id"`
	EntityID    int64             `gorm:"column:entity_id;index:idx_source_versions_chain,priority:1"`
	ValidFrom   time.Time         `gorm:"column:valid_from;index:idx_source_versions_chain,priority:2"`
	ValidTo     time.Time         `gorm:"column:valid_to;index"`
	SystemDate  time.Time         `gorm:"column:system_date"`
	IsDeleted   bool              `gorm:"column:is_deleted"`
	Name        string            `gorm:"column:name"`
	Provider    string            `gorm:"column:provider;index"`
	Description string            `gorm:"column:description"`
	Attributes  map[string]string `gorm:"column:attributes;type:jsonb;serializer:json"`
}

func (sourceVersionRecord) TableName() string { return "data_source_versions" }

// Observation schema mirrors the timeseries Postgres ledger.
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

// Session schema mirrors the ingestion session store.
type sessionRecord struct {
	ID           string         `gorm:"primaryKey;column:id"`
	AssetID      int64          `gorm:"column:asset_id;index"`
	DataSourceID int64          `gorm:"column:data_source_id;index"`
	StartDate    time.Time      `gorm:"column:start_date;type:date"`
	EndDate      time.Time      `gorm:"column:end_date;type:date"`
	Mode         string         `gorm:"column:mode"`
	Stage        string         `gorm:"column:stage;index"`
	Reason       string         `gorm:"column:reason"`
	RowsWritten  int            `gorm:"column:rows_written"`
	Progress     pq.StringArray `gorm:"column:progress;type:text[]"`
	CreatedAt    time.Time      `gorm:"column:created_at"`
	UpdatedAt    time.Time      `gorm:"column:updated_at"`
}

func (sessionRecord) TableName() string { return "ingestion_sessions" }

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atlasmarkets/refdata/internal/domains/assets/domain"
	"github.com/atlasmarkets/refdata/internal/domains/assets/ports"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists asset version chains in PostgreSQL using GORM.
// Each entity has exactly one row with valid_to at the far-future
// sentinel; closing that row and opening its successor happens inside
// a single transaction guarded by a row lock.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	repo := &Repository{db: db, now: time.Now}
	if db != nil {
		_ = db.AutoMigrate(&assetEntity{}, &assetVersionRecord{})
	}
	return repo
}

// WithClock overrides the time source for deterministic testing.
func (r *Repository) WithClock(now func() time.Time) {
	r.now = now
}

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

// Create allocates an entity id and writes the opening version.
func (r *Repository) Create(ctx context.Context, asset *domain.Asset) (*versioning.Version[*domain.Asset], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if asset == nil {
		return nil, errors.New("cannot create nil asset")
	}
	var record assetVersionRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entity := assetEntity{}
		if err := tx.Create(&entity).Error; err != nil {
			return fmt.Errorf("%w: allocate asset entity: %v", versioning.ErrStorage, err)
		}
		now := versioning.Timestamp(r.now())
		record = toRecord(entity.ID, asset, now, now, false)
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("%w: insert asset version: %v", versioning.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record.toVersion(), nil
}

// GetCurrent returns the version holding the current slot.
func (r *Repository) GetCurrent(ctx context.Context, id int64, includeDeleted bool) (*versioning.Version[*domain.Asset], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record assetVersionRecord
	query := r.db.WithContext(ctx).Where("entity_id = ? AND valid_to = ?", id, versioning.FarFuture)
	if !includeDeleted {
		query = query.Where("is_deleted = false")
	}
	if err := query.First(&record).Error; err != nil {
		return nil, translate(err)
	}
	return record.toVersion(), nil
}

// GetAsOf returns the version covering the supplied instant.
func (r *Repository) GetAsOf(ctx context.Context, id int64, at time.Time) (*versioning.Version[*domain.Asset], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	at = versioning.Timestamp(at)
	var record assetVersionRecord
	err := r.db.WithContext(ctx).
		Where("entity_id = ? AND valid_from <= ? AND valid_to > ?", id, at, at).
		Order("valid_from DESC").
		First(&record).Error
	if err != nil {
		return nil, translate(err)
	}
	return record.toVersion(), nil
}

// ListCurrent returns each asset's current version ordered by entity id.
func (r *Repository) ListCurrent(ctx context.Context, includeDeleted bool) ([]*versioning.Version[*domain.Asset], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []assetVersionRecord
	query := r.db.WithContext(ctx).Where("valid_to = ?", versioning.FarFuture)
	if !includeDeleted {
		query = query.Where("is_deleted = false")
	}
	if err := query.Order("entity_id ASC").Find(&records).Error; err != nil {
		return nil, translate(err)
	}
	return toVersions(records), nil
}

// ListVersions returns full history newest first; id zero means all entities.
func (r *Repository) ListVersions(ctx context.Context, id int64) ([]*versioning.Version[*domain.Asset], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []assetVersionRecord
	query := r.db.WithContext(ctx).Order("entity_id ASC, valid_from DESC")
	if id != 0 {
		query = query.Where("entity_id = ?", id)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, translate(err)
	}
	if id != 0 && len(records) == 0 {
		return nil, versioning.ErrNotFound
	}
	return toVersions(records), nil
}

// Update closes the current live version and opens a replacement.
func (r *Repository) Update(ctx context.Context, id int64, asset *domain.Asset) (*versioning.Version[*domain.Asset], error) {
	return r.transition(ctx, id, asset, false, false)
}

// SoftDelete closes the current live version and writes a deletion
// marker carrying the entity data forward.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	_, err := r.transition(ctx, id, nil, true, false)
	return err
}

// Resurrect closes a deletion marker and opens a live version.
func (r *Repository) Resurrect(ctx context.Context, id int64, asset *domain.Asset) (*versioning.Version[*domain.Asset], error) {
	return r.transition(ctx, id, asset, false, true)
}

// FindCurrentBySymbol resolves a live asset by its symbol attribute.
func (r *Repository) FindCurrentBySymbol(ctx context.Context, symbol string) (*versioning.Version[*domain.Asset], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record assetVersionRecord
	err := r.db.WithContext(ctx).
		Where("valid_to = ? AND is_deleted = false AND attributes ->> 'symbol' = ?", versioning.FarFuture, symbol).
		First(&record).Error
	if err != nil {
		return nil, translate(err)
	}
	return record.toVersion(), nil
}

// transition performs the close-and-open pair for update, delete and
// resurrect. fromDeleted selects which kind of current version must be
// in place; markDeleted turns the new version into a deletion marker.
func (r *Repository) transition(ctx context.Context, id int64, asset *domain.Asset, markDeleted, fromDeleted bool) (*versioning.Version[*domain.Asset], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record assetVersionRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current assetVersionRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("entity_id = ? AND valid_to = ?", id, versioning.FarFuture).
			First(&current).Error
		if err != nil {
			return translate(err)
		}
		if current.IsDeleted != fromDeleted {
			if fromDeleted {
				return fmt.Errorf("%w: asset %d is not deleted", versioning.ErrConflict, id)
			}
			return fmt.Errorf("%w: asset %d is deleted", versioning.ErrNotFound, id)
		}

		now := r.now()
		validFrom := versioning.NextAfter(now, current.ValidFrom)
		closed := tx.Model(&assetVersionRecord{}).
			Where("entity_id = ? AND valid_to = ?", id, versioning.FarFuture).
			Update("valid_to", validFrom)
		if closed.Error != nil {
			return fmt.Errorf("%w: close asset version: %v", versioning.ErrStorage, closed.Error)
		}
		if closed.RowsAffected != 1 {
			return fmt.Errorf("%w: asset %d version superseded concurrently", versioning.ErrConflict, id)
		}

		if markDeleted {
			asset = current.toDomain()
		}
		record = toRecord(id, asset, validFrom, versioning.Timestamp(now), markDeleted)
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("%w: insert asset version: %v", versioning.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record.toVersion(), nil
}

func (r *Repository) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres asset repository not configured")
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return versioning.ErrNotFound
	}
	return fmt.Errorf("%w: %v", versioning.ErrStorage, err)
}

func toRecord(id int64, asset *domain.Asset, validFrom, systemDate time.Time, isDeleted bool) assetVersionRecord {
	return assetVersionRecord{
		EntityID:    id,
		ValidFrom:   validFrom,
		ValidTo:     versioning.FarFuture,
		SystemDate:  systemDate,
		IsDeleted:   isDeleted,
		Name:        asset.Name,
		Description: asset.Description,
		Attributes:  asset.Attributes,
	}
}

func (r assetVersionRecord) toDomain() *domain.Asset {
	asset := &domain.Asset{
		ID:          r.EntityID,
		Name:        r.Name,
		Description: r.Description,
		Attributes:  r.Attributes,
	}
	return asset.Clone()
}

func (r assetVersionRecord) toVersion() *versioning.Version[*domain.Asset] {
	return &versioning.Version[*domain.Asset]{
		Entity: r.toDomain(),
		Meta: versioning.Meta{
			EntityID:   r.EntityID,
			ValidFrom:  r.ValidFrom,
			ValidTo:    r.ValidTo,
			SystemDate: r.SystemDate,
			IsDeleted:  r.IsDeleted,
		},
	}
}

func toVersions(records []assetVersionRecord) []*versioning.Version[*domain.Asset] {
	out := make([]*versioning.Version[*domain.Asset], 0, len(records))
	for i := range records {
		out = append(out, records[i].toVersion())
	}
	return out
}

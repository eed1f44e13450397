package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/atlasmarkets/refdata/internal/domains/datasources/domain"
	"github.com/atlasmarkets/refdata/internal/domains/datasources/ports"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

var _ ports.Repository = (*Repository)(nil)

// Repository persists data source version chains in PostgreSQL using GORM.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRepository wires a PostgreSQL-backed repository. Caller manages DB lifecycle.
func NewRepository(db *gorm.DB) *Repository {
	repo := &Repository{db: db, now: time.Now}
	if db != nil {
		_ = db.AutoMigrate(&sourceEntity{}, &sourceVersionRecord{})
	}
	return repo
}

// WithClock overrides the time source for deterministic testing.
func (r *Repository) WithClock(now func() time.Time) {
	r.now = now
}

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

// Create allocates an entity id and writes the opening version.
func (r *Repository) Create(ctx context.Context, source *domain.DataSource) (*versioning.Version[*domain.DataSource], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errors.New("cannot create nil data source")
	}
	var record sourceVersionRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entity := sourceEntity{}
		if err := tx.Create(&entity).Error; err != nil {
			return fmt.Errorf("%w: allocate data source entity: %v", versioning.ErrStorage, err)
		}
		now := versioning.Timestamp(r.now())
		record = toRecord(entity.ID, source, now, now, false)
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("%w: insert data source version: %v", versioning.ErrStorage, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return record.toVersion(), nil
}

// GetCurrent returns the version holding the current slot.
func (r *Repository) GetCurrent(ctx context.Context, id int64, includeDeleted bool) (*versioning.Version[*domain.DataSource], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record sourceVersionRecord
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
func (r *Repository) GetAsOf(ctx context.Context, id int64, at time.Time) (*versioning.Version[*domain.DataSource], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	at = versioning.Timestamp(at)
	var record sourceVersionRecord
	err := r.db.WithContext(ctx).
		Where("entity_id = ? AND valid_from <= ? AND valid_to > ?", id, at, at).
		Order("valid_from DESC").
		First(&record).Error
	if err != nil {
		return nil, translate(err)
	}
	return record.toVersion(), nil
}

// ListCurrent returns each source's current version ordered by entity id.
func (r *Repository) ListCurrent(ctx context.Context, includeDeleted bool) ([]*versioning.Version[*domain.DataSource], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []sourceVersionRecord
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
func (r *Repository) ListVersions(ctx context.Context, id int64) ([]*versioning.Version[*domain.DataSource], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []sourceVersionRecord
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
func (r *Repository) Update(ctx context.Context, id int64, source *domain.DataSource) (*versioning.Version[*domain.DataSource], error) {
	return r.transition(ctx, id, source, false, false)
}

// SoftDelete closes the current live version and writes a deletion
// marker carrying the entity data forward.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	_, err := r.transition(ctx, id, nil, true, false)
	return err
}

// Resurrect closes a deletion marker and opens a live version.
func (r *Repository) Resurrect(ctx context.Context, id int64, source *domain.DataSource) (*versioning.Version[*domain.DataSource], error) {
	return r.transition(ctx, id, source, false, true)
}

// FindCurrentByProvider filters live current versions by exact provider.
func (r *Repository) FindCurrentByProvider(ctx context.Context, provider string) ([]*versioning.Version[*domain.DataSource], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var records []sourceVersionRecord
	err := r.db.WithContext(ctx).
		Where("valid_to = ? AND is_deleted = false AND provider = ?", versioning.FarFuture, provider).
		Order("entity_id ASC").
		Find(&records).Error
	if err != nil {
		return nil, translate(err)
	}
	return toVersions(records), nil
}

func (r *Repository) transition(ctx context.Context, id int64, source *domain.DataSource, markDeleted, fromDeleted bool) (*versioning.Version[*domain.DataSource], error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var record sourceVersionRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current sourceVersionRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("entity_id = ? AND valid_to = ?", id, versioning.FarFuture).
			First(&current).Error
		if err != nil {
			return translate(err)
		}
		if current.IsDeleted != fromDeleted {
			if fromDeleted {
				return fmt.Errorf("%w: data source %d is not deleted", versioning.ErrConflict, id)
			}
			return fmt.Errorf("%w: data source %d is deleted", versioning.ErrNotFound, id)
		}

		now := r.now()
		validFrom := versioning.NextAfter(now, current.ValidFrom)
		closed := tx.Model(&sourceVersionRecord{}).
			Where("entity_id = ? AND valid_to = ?", id, versioning.FarFuture).
			Update("valid_to", validFrom)
		if closed.Error != nil {
			return fmt.Errorf("%w: close data source version: %v", versioning.ErrStorage, closed.Error)
		}
		if closed.RowsAffected != 1 {
			return fmt.Errorf("%w: data source %d version superseded concurrently", versioning.ErrConflict, id)
		}

		if markDeleted {
			source = current.toDomain()
		}
		record = toRecord(id, source, validFrom, versioning.Timestamp(now), markDeleted)
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("%w: insert data source version: %v", versioning.ErrStorage, err)
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
		return errors.New("postgres data source repository not configured")
	}
	return nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return versioning.ErrNotFound
	}
	return fmt.Errorf("%w: %v", versioning.ErrStorage, err)
}

func toRecord(id int64, source *domain.DataSource, validFrom, systemDate time.Time, isDeleted bool) sourceVersionRecord {
	return sourceVersionRecord{
		EntityID:    id,
		ValidFrom:   validFrom,
		ValidTo:     versioning.FarFuture,
		SystemDate:  systemDate,
		IsDeleted:   isDeleted,
		Name:        source.Name,
		Provider:    source.Provider,
		Description: source.Description,
		Attributes:  source.Attributes,
	}
}

func (r sourceVersionRecord) toDomain() *domain.DataSource {
	source := &domain.DataSource{
		ID:          r.EntityID,
		Name:        r.Name,
		Provider:    r.Provider,
		Description: r.Description,
		Attributes:  r.Attributes,
	}
	return source.Clone()
}

func (r sourceVersionRecord) toVersion() *versioning.Version[*domain.DataSource] {
	return &versioning.Version[*domain.DataSource]{
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

func toVersions(records []sourceVersionRecord) []*versioning.Version[*domain.DataSource] {
	out := make([]*versioning.Version[*domain.DataSource], 0, len(records))
	for i := range records {
		out = append(out, records[i].toVersion())
	}
	return out
}

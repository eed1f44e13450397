package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/atlasmarkets/refdata/internal/domains/ingestion/domain"
	"github.com/atlasmarkets/refdata/internal/domains/ingestion/ports"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

var _ ports.SessionStore = (*SessionStore)(nil)

// SessionStore persists ingestion sessions in PostgreSQL using GORM.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore wires a PostgreSQL-backed session store. Caller
// manages DB lifecycle.
func NewSessionStore(db *gorm.DB) *SessionStore {
	store := &SessionStore{db: db}
	if db != nil {
		_ = db.AutoMigrate(&sessionRecord{})
	}
	return store
}

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

// Save inserts or replaces a session keyed by id.
func (s *SessionStore) Save(ctx context.Context, session *domain.Session) error {
	if err := s.ensureDB(); err != nil {
		return err
	}
	if session == nil || session.ID == "" {
		return errors.New("cannot save session without an id")
	}
	record := toRecord(session)
	if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
		return fmt.Errorf("%w: save session: %v", versioning.ErrStorage, err)
	}
	return nil
}

// Get loads a session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var record sessionRecord
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: session %s", versioning.ErrNotFound, id)
		}
		return nil, fmt.Errorf("%w: %v", versioning.ErrStorage, err)
	}
	return record.toDomain(), nil
}

// List returns all sessions, newest first.
func (s *SessionStore) List(ctx context.Context) ([]*domain.Session, error) {
	if err := s.ensureDB(); err != nil {
		return nil, err
	}
	var records []sessionRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC, id ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", versioning.ErrStorage, err)
	}
	sessions := make([]*domain.Session, 0, len(records))
	for i := range records {
		sessions = append(sessions, records[i].toDomain())
	}
	return sessions, nil
}

// DefaultSessionRetention bounds how long terminal sessions are kept.
const DefaultSessionRetention = 30 * 24 * time.Hour

// PurgeTerminal deletes complete and failed sessions whose last update
// is older than the retention window. Running sessions are never
// touched.
func (s *SessionStore) PurgeTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	if err := s.ensureDB(); err != nil {
		return 0, err
	}
	if retention <= 0 {
		retention = DefaultSessionRetention
	}
	cutoff := time.Now().UTC().Add(-retention)
	result := s.db.WithContext(ctx).
		Where("stage IN ?", []string{string(domain.StageComplete), string(domain.StageFailed)}).
		Where("updated_at < ?", cutoff).
		Delete(&sessionRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("%w: purge sessions: %v", versioning.ErrStorage, result.Error)
	}
	return result.RowsAffected, nil
}

func (s *SessionStore) ensureDB() error {
	if s == nil || s.db == nil {
		return errors.New("postgres session store not configured")
	}
	return nil
}

func toRecord(session *domain.Session) sessionRecord {
	return sessionRecord{
		ID:           session.ID,
		AssetID:      session.AssetID,
		DataSourceID: session.DataSourceID,
		StartDate:    session.StartDate,
		EndDate:      session.EndDate,
		Mode:         string(session.Mode),
		Stage:        string(session.Stage),
		Reason:       session.Reason,
		RowsWritten:  session.RowsWritten,
		Progress:     pq.StringArray(append([]string(nil), session.Progress...)),
		CreatedAt:    session.CreatedAt,
		UpdatedAt:    session.UpdatedAt,
	}
}

func (r sessionRecord) toDomain() *domain.Session {
	return &domain.Session{
		ID:           r.ID,
		AssetID:      r.AssetID,
		DataSourceID: r.DataSourceID,
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		Mode:         domain.Mode(r.Mode),
		Stage:        domain.Stage(r.Stage),
		Reason:       r.Reason,
		RowsWritten:  r.RowsWritten,
		Progress:     append([]string(nil), r.Progress...),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

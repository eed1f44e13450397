package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/atlasmarkets/refdata/internal/domains/datasources/domain"
	"github.com/atlasmarkets/refdata/internal/domains/datasources/ports"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory temporal store used for tests and dev fallbacks.
type Repository struct {
	store *versioning.MemStore[int64, *domain.DataSource]
}

// NewRepository constructs an empty in-memory store.
func NewRepository() *Repository {
	return &Repository{
		store: versioning.NewMemStore[int64, *domain.DataSource](
			(*domain.DataSource).Clone,
			versioning.WithEntityID[int64, *domain.DataSource](func(id int64) int64 { return id }),
		),
	}
}

// WithClock overrides the time source for deterministic testing.
func (r *Repository) WithClock(now func() time.Time) {
	r.store.SetClock(now)
}

// Create allocates a stable id and writes the first version.
func (r *Repository) Create(_ context.Context, source *domain.DataSource) (*versioning.Version[*domain.DataSource], error) {
	if source == nil {
		return nil, errors.New("cannot create nil data source")
	}
	entity := source.Clone()
	entity.ID = r.store.Allocate()
	v, err := r.store.Create(entity.ID, entity)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetCurrent returns the version holding the current slot.
func (r *Repository) GetCurrent(_ context.Context, id int64, includeDeleted bool) (*versioning.Version[*domain.DataSource], error) {
	v, err := r.store.Current(id, includeDeleted)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetAsOf returns the version covering the supplied instant.
func (r *Repository) GetAsOf(_ context.Context, id int64, at time.Time) (*versioning.Version[*domain.DataSource], error) {
	v, err := r.store.AsOf(id, at)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListCurrent returns each source's current version ordered by entity id.
func (r *Repository) ListCurrent(_ context.Context, includeDeleted bool) ([]*versioning.Version[*domain.DataSource], error) {
	versions := r.store.CurrentAll(includeDeleted)
	sortByEntity(versions)
	return refs(versions), nil
}

// ListVersions returns full history; id zero means all entities.
func (r *Repository) ListVersions(_ context.Context, id int64) ([]*versioning.Version[*domain.DataSource], error) {
	if id == 0 {
		return refs(r.store.AllVersions()), nil
	}
	versions := r.store.VersionsOf(id)
	if len(versions) == 0 {
		return nil, versioning.ErrNotFound
	}
	return refs(versions), nil
}

// Update closes the current live version and opens a replacement.
func (r *Repository) Update(_ context.Context, id int64, source *domain.DataSource) (*versioning.Version[*domain.DataSource], error) {
	entity := source.Clone()
	entity.ID = id
	v, err := r.store.Update(id, entity)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// SoftDelete closes the current live version and writes a deletion marker.
func (r *Repository) SoftDelete(_ context.Context, id int64) error {
	return r.store.SoftDelete(id)
}

// Resurrect closes a deletion marker and opens a live version.
func (r *Repository) Resurrect(_ context.Context, id int64, source *domain.DataSource) (*versioning.Version[*domain.DataSource], error) {
	entity := source.Clone()
	entity.ID = id
	v, err := r.store.Resurrect(id, entity)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FindCurrentByProvider scans live current versions for an exact
// case-sensitive provider match.
func (r *Repository) FindCurrentByProvider(_ context.Context, provider string) ([]*versioning.Version[*domain.DataSource], error) {
	var matched []versioning.Version[*domain.DataSource]
	for _, v := range r.store.CurrentAll(false) {
		if v.Entity.Provider == provider {
			matched = append(matched, v)
		}
	}
	sortByEntity(matched)
	return refs(matched), nil
}

func sortByEntity(versions []versioning.Version[*domain.DataSource]) {
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Meta.EntityID < versions[j].Meta.EntityID
	})
}

func refs(versions []versioning.Version[*domain.DataSource]) []*versioning.Version[*domain.DataSource] {
	out := make([]*versioning.Version[*domain.DataSource], 0, len(versions))
	for i := range versions {
		out = append(out, &versions[i])
	}
	return out
}

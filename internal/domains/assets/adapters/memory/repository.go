package memory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/atlasmarkets/refdata/internal/domains/assets/domain"
	"github.com/atlasmarkets/refdata/internal/domains/assets/ports"
	"github.com/atlasmarkets/refdata/internal/shared/versioning"
)

var _ ports.Repository = (*Repository)(nil)

// Repository is an in-memory temporal store used for tests and dev fallbacks.
type Repository struct {
	store *versioning.MemStore[int64, *domain.Asset]
}

// NewRepository constructs an empty in-memory store.
func NewRepository() *Repository {
	return &Repository{
		store: versioning.NewMemStore[int64, *domain.Asset](
			(*domain.Asset).Clone,
			versioning.WithEntityID[int64, *domain.Asset](func(id int64) int64 { return id }),
		),
	}
}

// WithClock overrides the time source for deterministic testing.
func (r *Repository) WithClock(now func() time.Time) {
	r.store.SetClock(now)
}

// Create allocates a stable id and writes the first version.
func (r *Repository) Create(_ context.Context, asset *domain.Asset) (*versioning.Version[*domain.Asset], error) {
	if asset == nil {
		return nil, errors.New("cannot create nil asset")
	}
	entity := asset.Clone()
	entity.ID = r.store.Allocate()
	v, err := r.store.Create(entity.ID, entity)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetCurrent returns the version holding the current slot.
func (r *Repository) GetCurrent(_ context.Context, id int64, includeDeleted bool) (*versioning.Version[*domain.Asset], error) {
	v, err := r.store.Current(id, includeDeleted)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// GetAsOf returns the version covering the supplied instant.
func (r *Repository) GetAsOf(_ context.Context, id int64, at time.Time) (*versioning.Version[*domain.Asset], error) {
	v, err := r.store.AsOf(id, at)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListCurrent returns each asset's current version ordered by entity id.
func (r *Repository) ListCurrent(_ context.Context, includeDeleted bool) ([]*versioning.Version[*domain.Asset], error) {
	versions := r.store.CurrentAll(includeDeleted)
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Meta.EntityID < versions[j].Meta.EntityID
	})
	return refs(versions), nil
}

// ListVersions returns full history; id zero means all entities.
func (r *Repository) ListVersions(_ context.Context, id int64) ([]*versioning.Version[*domain.Asset], error) {
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
func (r *Repository) Update(_ context.Context, id int64, asset *domain.Asset) (*versioning.Version[*domain.Asset], error) {
	entity := asset.Clone()
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
func (r *Repository) Resurrect(_ context.Context, id int64, asset *domain.Asset) (*versioning.Version[*domain.Asset], error) {
	entity := asset.Clone()
	entity.ID = id
	v, err := r.store.Resurrect(id, entity)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// FindCurrentBySymbol scans live current versions for a symbol match.
func (r *Repository) FindCurrentBySymbol(_ context.Context, symbol string) (*versioning.Version[*domain.Asset], error) {
	for _, v := range r.store.CurrentAll(false) {
		if v.Entity.Symbol() == symbol {
			match := v
			return &match, nil
		}
	}
	return nil, versioning.ErrNotFound
}

func refs(versions []versioning.Version[*domain.Asset]) []*versioning.Version[*domain.Asset] {
	out := make([]*versioning.Version[*domain.Asset], 0, len(versions))
	for i := range versions {
		out = append(out, &versions[i])
	}
	return out
}

package versioning

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type record struct {
	Name string
}

func cloneRecord(r *record) *record {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

func newTestStore(opts ...MemStoreOption[int64, *record]) *MemStore[int64, *record] {
	opts = append(opts, WithEntityID[int64, *record](func(id int64) int64 { return id }))
	return NewMemStore[int64, *record](cloneRecord, opts...)
}

// requireChainInvariants asserts the three chain invariants: exactly one
// current version, no interval overlap, and gapless boundaries.
func requireChainInvariants(t *testing.T, versions []Version[*record]) {
	t.Helper()
	current := 0
	for _, v := range versions {
		if v.Meta.IsCurrent() {
			current++
		}
	}
	require.Equal(t, 1, current, "exactly one current version expected")

	// VersionsOf returns valid_from descending; walk oldest to newest.
	for i := len(versions) - 1; i > 0; i-- {
		older := versions[i]
		newer := versions[i-1]
		require.True(t, older.Meta.ValidFrom.Before(newer.Meta.ValidFrom), "valid_from must be strictly increasing")
		require.True(t, older.Meta.ValidTo.Equal(newer.Meta.ValidFrom), "chain must be gapless")
	}
}

func TestCreateThenCurrent_RoundTrip(t *testing.T) {
	store := newTestStore()
	id := store.Allocate()

	created, err := store.Create(id, &record{Name: "Apple Inc."})
	require.NoError(t, err)
	require.Equal(t, id, created.Meta.EntityID)
	require.False(t, created.Meta.IsDeleted)
	require.True(t, created.Meta.IsCurrent())

	got, err := store.Current(id, false)
	require.NoError(t, err)
	require.Equal(t, "Apple Inc.", got.Entity.Name)
	require.True(t, got.Meta.ValidTo.Equal(FarFuture))
}

func TestCreate_ExistingChainConflicts(t *testing.T) {
	store := newTestStore()
	id := store.Allocate()
	_, err := store.Create(id, &record{Name: "first"})
	require.NoError(t, err)

	_, err = store.Create(id, &record{Name: "second"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpdate_ProducesHistory(t *testing.T) {
	store := newTestStore()
	id := store.Allocate()
	_, err := store.Create(id, &record{Name: "v1"})
	require.NoError(t, err)

	before := store.VersionsOf(id)
	updated, err := store.Update(id, &record{Name: "v2"})
	require.NoError(t, err)
	after := store.VersionsOf(id)

	require.Len(t, after, len(before)+1)
	require.Equal(t, "v2", updated.Entity.Name)

	previous := after[1]
	require.False(t, previous.Meta.IsCurrent(), "closed version keeps a finite valid_to")
	require.True(t, previous.Meta.ValidTo.Equal(updated.Meta.ValidFrom), "close and open share one timestamp")
	requireChainInvariants(t, after)
}

func TestUpdate_MissingOrDeleted(t *testing.T) {
	store := newTestStore()
	_, err := store.Update(99, &record{Name: "x"})
	require.ErrorIs(t, err, ErrNotFound)

	id := store.Allocate()
	_, err = store.Create(id, &record{Name: "x"})
	require.NoError(t, err)
	require.NoError(t, store.SoftDelete(id))

	_, err = store.Update(id, &record{Name: "y"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSoftDelete_MarkerHoldsCurrentSlot(t *testing.T) {
	store := newTestStore()
	id := store.Allocate()
	_, err := store.Create(id, &record{Name: "live"})
	require.NoError(t, err)

	require.NoError(t, store.SoftDelete(id))

	_, err = store.Current(id, false)
	require.ErrorIs(t, err, ErrNotFound)

	marker, err := store.Current(id, true)
	require.NoError(t, err)
	require.True(t, marker.Meta.IsDeleted)
	require.Equal(t, "live", marker.Entity.Name, "marker carries prior data forward")

	// Deleting an already-deleted entity is an error, not a silent no-op.
	require.ErrorIs(t, store.SoftDelete(id), ErrNotFound)
}

func TestResurrect_RoundTrip(t *testing.T) {
	store := newTestStore()
	id := store.Allocate()
	_, err := store.Create(id, &record{Name: "original"})
	require.NoError(t, err)
	require.NoError(t, store.SoftDelete(id))

	revived, err := store.Resurrect(id, &record{Name: "revived"})
	require.NoError(t, err)
	require.False(t, revived.Meta.IsDeleted)
	require.Equal(t, "revived", revived.Entity.Name)

	versions := store.VersionsOf(id)
	require.Len(t, versions, 3)
	requireChainInvariants(t, versions)
}

func TestResurrect_LiveEntityConflicts(t *testing.T) {
	store := newTestStore()
	id := store.Allocate()
	_, err := store.Create(id, &record{Name: "live"})
	require.NoError(t, err)

	_, err = store.Resurrect(id, &record{Name: "zombie"})
	require.ErrorIs(t, err, ErrConflict)
}

func TestAsOf_WalksHistory(t *testing.T) {
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	store := newTestStore(WithClock[int64, *record](func() time.Time { return clock }))

	id := store.Allocate()
	_, err := store.Create(id, &record{Name: "v1"})
	require.NoError(t, err)

	clock = base.Add(time.Hour)
	_, err = store.Update(id, &record{Name: "v2"})
	require.NoError(t, err)

	clock = base.Add(2 * time.Hour)
	require.NoError(t, store.SoftDelete(id))

	v, err := store.AsOf(id, base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Equal(t, "v1", v.Entity.Name)

	v, err = store.AsOf(id, base.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, "v2", v.Entity.Name, "as-of at a boundary resolves to the opening version")

	_, err = store.AsOf(id, base.Add(-time.Minute))
	require.ErrorIs(t, err, ErrNotFound)

	v, err = store.AsOf(id, base.Add(3*time.Hour))
	require.NoError(t, err)
	require.True(t, v.Meta.IsDeleted, "as-of after deletion resolves to the marker")
}

func TestIdenticalTimestamps_StayMonotonic(t *testing.T) {
	frozen := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := newTestStore(WithClock[int64, *record](func() time.Time { return frozen }))

	id := store.Allocate()
	_, err := store.Create(id, &record{Name: "v1"})
	require.NoError(t, err)
	_, err = store.Update(id, &record{Name: "v2"})
	require.NoError(t, err)
	require.NoError(t, store.SoftDelete(id))
	_, err = store.Resurrect(id, &record{Name: "v4"})
	require.NoError(t, err)

	versions := store.VersionsOf(id)
	require.Len(t, versions, 4)
	requireChainInvariants(t, versions)
}

func TestSystemDate_TracksClockNotTieBreak(t *testing.T) {
	frozen := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	store := newTestStore(WithClock[int64, *record](func() time.Time { return frozen }))

	id := store.Allocate()
	_, err := store.Create(id, &record{Name: "v1"})
	require.NoError(t, err)
	v2, err := store.Update(id, &record{Name: "v2"})
	require.NoError(t, err)
	v3, err := store.Update(id, &record{Name: "v3"})
	require.NoError(t, err)

	// valid_from is bumped past the predecessor, system_date records the
	// actual write instant.
	require.True(t, v2.Meta.ValidFrom.After(frozen))
	require.True(t, v3.Meta.ValidFrom.After(v2.Meta.ValidFrom))
	require.True(t, v2.Meta.SystemDate.Equal(frozen))
	require.True(t, v3.Meta.SystemDate.Equal(frozen))

	require.NoError(t, store.SoftDelete(id))
	marker, err := store.Current(id, true)
	require.NoError(t, err)
	require.True(t, marker.Meta.SystemDate.Equal(frozen))

	replaced, err := store.Replace(id, &record{Name: "v5"})
	require.NoError(t, err)
	require.True(t, replaced.Meta.ValidFrom.After(marker.Meta.ValidFrom))
	require.True(t, replaced.Meta.SystemDate.Equal(frozen))
}

func TestReplace_SupersedesAnyCurrent(t *testing.T) {
	store := newTestStore()
	id := store.Allocate()

	// Replace on an empty chain behaves like create.
	first, err := store.Replace(id, &record{Name: "r1"})
	require.NoError(t, err)
	require.True(t, first.Meta.IsCurrent())

	_, err = store.Replace(id, &record{Name: "r2"})
	require.NoError(t, err)

	cur, err := store.Current(id, false)
	require.NoError(t, err)
	require.Equal(t, "r2", cur.Entity.Name)
	requireChainInvariants(t, store.VersionsOf(id))
}

func TestCurrentAll_FiltersMarkers(t *testing.T) {
	store := newTestStore()
	live := store.Allocate()
	_, err := store.Create(live, &record{Name: "live"})
	require.NoError(t, err)

	gone := store.Allocate()
	_, err = store.Create(gone, &record{Name: "gone"})
	require.NoError(t, err)
	require.NoError(t, store.SoftDelete(gone))

	require.Len(t, store.CurrentAll(false), 1)
	require.Len(t, store.CurrentAll(true), 2)
}

func TestConcurrentUpdates_NoLostVersions(t *testing.T) {
	store := newTestStore()
	id := store.Allocate()
	_, err := store.Create(id, &record{Name: "v0"})
	require.NoError(t, err)

	const writers = 32
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := store.Update(id, &record{Name: fmt.Sprintf("writer-%d", i)})
			require.NoError(t, err)
		}(i)
	}
	wg.Wait()

	versions := store.VersionsOf(id)
	require.Len(t, versions, writers+1, "every concurrent update must land as its own version")
	requireChainInvariants(t, versions)
}

func TestAllVersions_OrderedByEntityThenValidFromDesc(t *testing.T) {
	store := newTestStore()
	a := store.Allocate()
	b := store.Allocate()
	_, err := store.Create(a, &record{Name: "a1"})
	require.NoError(t, err)
	_, err = store.Create(b, &record{Name: "b1"})
	require.NoError(t, err)
	_, err = store.Update(a, &record{Name: "a2"})
	require.NoError(t, err)

	all := store.AllVersions()
	require.Len(t, all, 3)
	require.Equal(t, a, all[0].Meta.EntityID)
	require.Equal(t, "a2", all[0].Entity.Name)
	require.Equal(t, "a1", all[1].Entity.Name)
	require.Equal(t, b, all[2].Meta.EntityID)
}

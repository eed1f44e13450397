package versioning

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// MemStore is a generic in-memory version-chain store. It backs the catalog
// and ledger memory adapters and carries the full temporal contract: one
// current version per key, contiguous non-overlapping intervals, soft deletes
// as marker versions, and per-key serialization of close-and-open transitions.
//
// K is the chain key (an entity id for catalogs, a composite business key for
// the ledger); T is the entity payload.
type MemStore[K comparable, T any] struct {
	mu     sync.RWMutex
	chains map[K]*chain[T]
	clone  func(T) T
	keyID  func(K) int64
	now    func() time.Time
	seq    atomic.Int64
}

type chain[T any] struct {
	mu       sync.Mutex
	versions []Version[T] // ascending ValidFrom
}

// MemStoreOption configures a MemStore.
type MemStoreOption[K comparable, T any] func(*MemStore[K, T])

// WithClock overrides the time source for deterministic testing.
func WithClock[K comparable, T any](now func() time.Time) MemStoreOption[K, T] {
	return func(s *MemStore[K, T]) {
		if now != nil {
			s.now = now
		}
	}
}

// WithEntityID derives the Meta.EntityID stamped on versions from the chain
// key. Ledger-style composite keys leave it unset.
func WithEntityID[K comparable, T any](fn func(K) int64) MemStoreOption[K, T] {
	return func(s *MemStore[K, T]) {
		if fn != nil {
			s.keyID = fn
		}
	}
}

// NewMemStore constructs an empty store. clone must produce a deep copy so
// stored versions stay immutable once written.
func NewMemStore[K comparable, T any](clone func(T) T, opts ...MemStoreOption[K, T]) *MemStore[K, T] {
	s := &MemStore[K, T]{
		chains: map[K]*chain[T]{},
		clone:  clone,
		keyID:  func(K) int64 { return 0 },
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Allocate hands out the next stable entity identifier.
func (s *MemStore[K, T]) Allocate() int64 {
	return s.seq.Add(1)
}

// SetClock swaps the time source after construction.
func (s *MemStore[K, T]) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *MemStore[K, T]) chainFor(key K, create bool) *chain[T] {
	s.mu.RLock()
	c, ok := s.chains[key]
	s.mu.RUnlock()
	if ok || !create {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok = s.chains[key]; ok {
		return c
	}
	c = &chain[T]{}
	s.chains[key] = c
	return c
}

// Create opens a brand-new chain for key. A key with any prior history is a
// conflict; callers allocate fresh ids via Allocate.
func (s *MemStore[K, T]) Create(key K, entity T) (Version[T], error) {
	c := s.chainFor(key, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.versions) > 0 {
		return Version[T]{}, fmt.Errorf("%w: key already has a version history", ErrConflict)
	}
	now := Timestamp(s.now())
	v := Version[T]{
		Entity: s.clone(entity),
		Meta: Meta{
			EntityID:   s.keyID(key),
			ValidFrom:  now,
			ValidTo:    FarFuture,
			SystemDate: now,
			IsDeleted:  false,
		},
	}
	c.versions = append(c.versions, v)
	return s.copyVersion(v), nil
}

// Current returns the version holding the current slot. With includeDeleted
// false, a deletion marker reads as not found.
func (s *MemStore[K, T]) Current(key K, includeDeleted bool) (Version[T], error) {
	c := s.chainFor(key, false)
	if c == nil {
		return Version[T]{}, ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.current()
	if !ok {
		return Version[T]{}, ErrNotFound
	}
	if cur.Meta.IsDeleted && !includeDeleted {
		return Version[T]{}, ErrNotFound
	}
	return s.copyVersion(cur), nil
}

// AsOf returns the version whose validity interval contains at.
func (s *MemStore[K, T]) AsOf(key K, at time.Time) (Version[T], error) {
	c := s.chainFor(key, false)
	if c == nil {
		return Version[T]{}, ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.versions) - 1; i >= 0; i-- {
		if c.versions[i].Meta.Covers(at) {
			return s.copyVersion(c.versions[i]), nil
		}
	}
	return Version[T]{}, ErrNotFound
}

// CurrentAll returns every chain's current version, unsorted.
func (s *MemStore[K, T]) CurrentAll(includeDeleted bool) []Version[T] {
	s.mu.RLock()
	chains := make([]*chain[T], 0, len(s.chains))
	for _, c := range s.chains {
		chains = append(chains, c)
	}
	s.mu.RUnlock()

	var out []Version[T]
	for _, c := range chains {
		c.mu.Lock()
		if cur, ok := c.current(); ok && (includeDeleted || !cur.Meta.IsDeleted) {
			out = append(out, s.copyVersion(cur))
		}
		c.mu.Unlock()
	}
	return out
}

// VersionsOf returns a chain's full history ordered by valid_from descending.
func (s *MemStore[K, T]) VersionsOf(key K) []Version[T] {
	c := s.chainFor(key, false)
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Version[T], 0, len(c.versions))
	for i := len(c.versions) - 1; i >= 0; i-- {
		out = append(out, s.copyVersion(c.versions[i]))
	}
	return out
}

// AllVersions returns every version of every chain, ordered by entity id
// ascending then valid_from descending.
func (s *MemStore[K, T]) AllVersions() []Version[T] {
	s.mu.RLock()
	keys := make([]K, 0, len(s.chains))
	for k := range s.chains {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	var out []Version[T]
	for _, k := range keys {
		out = append(out, s.VersionsOf(k)...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Meta.EntityID != out[j].Meta.EntityID {
			return out[i].Meta.EntityID < out[j].Meta.EntityID
		}
		return out[i].Meta.ValidFrom.After(out[j].Meta.ValidFrom)
	})
	return out
}

// Update closes the current live version and opens a replacement in the same
// instant. Requires a current, non-deleted version.
func (s *MemStore[K, T]) Update(key K, entity T) (Version[T], error) {
	return s.transition(key, entity, false, func(cur Version[T]) error {
		if cur.Meta.IsDeleted {
			return ErrNotFound
		}
		return nil
	})
}

// SoftDelete closes the current live version and opens a deletion marker
// carrying the prior entity data forward.
func (s *MemStore[K, T]) SoftDelete(key K) error {
	c := s.chainFor(key, false)
	if c == nil {
		return ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.current()
	if !ok {
		return ErrNotFound
	}
	if cur.Meta.IsDeleted {
		return ErrNotFound
	}
	now := s.now()
	c.append(s.clone(cur.Entity), true, NextAfter(now, cur.Meta.ValidFrom), Timestamp(now), s.keyID(key))
	return nil
}

// Resurrect closes a deletion marker and opens a live version with the
// supplied data. A non-deleted current version is a conflict.
func (s *MemStore[K, T]) Resurrect(key K, entity T) (Version[T], error) {
	return s.transition(key, entity, false, func(cur Version[T]) error {
		if !cur.Meta.IsDeleted {
			return fmt.Errorf("%w: entity is not deleted", ErrConflict)
		}
		return nil
	})
}

// Replace supersedes whatever currently holds the slot, creating the chain if
// none exists. This is the ledger's refresh semantics.
func (s *MemStore[K, T]) Replace(key K, entity T) (Version[T], error) {
	c := s.chainFor(key, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.current()
	now := s.now()
	validFrom := Timestamp(now)
	if ok {
		validFrom = NextAfter(now, cur.Meta.ValidFrom)
	}
	v := c.append(s.clone(entity), false, validFrom, Timestamp(now), s.keyID(key))
	return s.copyVersion(v), nil
}

func (s *MemStore[K, T]) transition(key K, entity T, deleted bool, check func(Version[T]) error) (Version[T], error) {
	c := s.chainFor(key, false)
	if c == nil {
		return Version[T]{}, ErrNotFound
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.current()
	if !ok {
		return Version[T]{}, ErrNotFound
	}
	if err := check(cur); err != nil {
		return Version[T]{}, err
	}
	now := s.now()
	v := c.append(s.clone(entity), deleted, NextAfter(now, cur.Meta.ValidFrom), Timestamp(now), s.keyID(key))
	return s.copyVersion(v), nil
}

func (s *MemStore[K, T]) copyVersion(v Version[T]) Version[T] {
	return Version[T]{Entity: s.clone(v.Entity), Meta: v.Meta}
}

func (c *chain[T]) current() (Version[T], bool) {
	if len(c.versions) == 0 {
		return Version[T]{}, false
	}
	last := c.versions[len(c.versions)-1]
	if !last.Meta.IsCurrent() {
		return Version[T]{}, false
	}
	return last, true
}

// append closes the current version (if any) at `at` and opens a new one in
// the same instant. sysDate is the physical write time, which lags at when
// the tie-break had to advance it. Callers hold c.mu.
func (c *chain[T]) append(entity T, deleted bool, at, sysDate time.Time, entityID int64) Version[T] {
	if len(c.versions) > 0 {
		c.versions[len(c.versions)-1].Meta.ValidTo = at
	}
	v := Version[T]{
		Entity: entity,
		Meta: Meta{
			EntityID:   entityID,
			ValidFrom:  at,
			ValidTo:    FarFuture,
			SystemDate: sysDate,
			IsDeleted:  deleted,
		},
	}
	c.versions = append(c.versions, v)
	return v
}

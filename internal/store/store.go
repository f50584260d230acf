// Package store keeps the profile table in memory and flushes every mutation
// to a Persister before returning.
package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/m3rciful/lovematch/core/logger"
	"github.com/m3rciful/lovematch/internal/metrics"
	"github.com/m3rciful/lovematch/internal/profile"
)

// ErrPersist wraps every failed durable write. The in-memory table has been
// rolled back when it is returned.
var ErrPersist = errors.New("store: persist failed")

// Snapshot is the full durable state: profiles and the notified relation
// (waiting profile id -> source profile ids already announced to it).
type Snapshot struct {
	Profiles map[int64]profile.Profile `json:"profiles"`
	Notified map[int64][]int64         `json:"notified"`
	// Versions counts the upserts of each profile since Load. Persisters that
	// write only changed rows compare it with what they last wrote.
	Versions map[int64]uint64 `json:"-"`
}

// Persister loads and saves whole snapshots.
type Persister interface {
	LoadAll(ctx context.Context) (Snapshot, error)
	SaveAll(ctx context.Context, snap Snapshot) error
}

// Store is the profile table. Mutations are serialized and persisted
// synchronously; reads never wait on a persister write.
type Store struct {
	persister Persister
	backend   string
	now       func() time.Time

	writeMu sync.Mutex

	mu       sync.RWMutex
	profiles map[int64]profile.Profile
	notified map[int64]map[int64]struct{}
	versions map[int64]uint64
}

// New wraps p. backend labels metrics and logs.
func New(p Persister, backend string) *Store {
	if p == nil {
		p = &MemoryStore{}
	}
	return &Store{
		persister: p,
		backend:   backend,
		now:       time.Now,
		profiles:  make(map[int64]profile.Profile),
		notified:  make(map[int64]map[int64]struct{}),
		versions:  make(map[int64]uint64),
	}
}

// Load replaces the table with the persisted snapshot.
func (s *Store) Load(ctx context.Context) error {
	start := time.Now()
	snap, err := s.persister.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("store: load: %w", err)
	}

	profiles := make(map[int64]profile.Profile, len(snap.Profiles))
	for id, p := range snap.Profiles {
		p.ID = id
		if err := p.Validate(); err != nil {
			logger.Store.Warn("corrupt profile",
				slog.String("event", "store.load"),
				slog.Int64("user_id", id),
				slog.String("err", err.Error()),
			)
		}
		profiles[id] = p.Clone()
	}
	notified := make(map[int64]map[int64]struct{}, len(snap.Notified))
	for waiting, sources := range snap.Notified {
		for _, src := range sources {
			if src == waiting {
				continue
			}
			set := notified[waiting]
			if set == nil {
				set = make(map[int64]struct{})
				notified[waiting] = set
			}
			set[src] = struct{}{}
		}
	}

	s.writeMu.Lock()
	s.mu.Lock()
	s.profiles, s.notified = profiles, notified
	s.versions = make(map[int64]uint64)
	s.mu.Unlock()
	s.writeMu.Unlock()

	logger.Store.Info("profiles loaded",
		slog.String("event", "store.load"),
		slog.String("backend", s.backend),
		slog.Int("profiles", len(profiles)),
		slog.Int("waiting", len(notified)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

// Get returns a copy of the profile for id.
func (s *Store) Get(id int64) (profile.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return profile.Profile{}, false
	}
	return p.Clone(), true
}

// All returns copies of every profile ordered by id.
func (s *Store) All() []profile.Profile {
	s.mu.RLock()
	out := make([]profile.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p.Clone())
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b profile.Profile) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// Upsert stores p and flushes the table. On flush failure the previous
// record is restored and an ErrPersist error is returned.
func (s *Store) Upsert(ctx context.Context, p profile.Profile) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := s.now()
	s.mu.Lock()
	prev, existed := s.profiles[p.ID]
	p = p.Clone()
	if existed {
		p.CreatedAt = prev.CreatedAt
	} else if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.profiles[p.ID] = p
	// Versions only grow, so a rolled back write still leaves the row dirty.
	s.versions[p.ID]++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.save(ctx, snap, "upsert", p.ID); err != nil {
		s.mu.Lock()
		if existed {
			s.profiles[p.ID] = prev
		} else {
			delete(s.profiles, p.ID)
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// MarkNotified records that waiting has been told about source. It reports
// false when the pair is already recorded or waiting == source.
func (s *Store) MarkNotified(ctx context.Context, waiting, source int64) (bool, error) {
	if waiting == source {
		return false, nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	set := s.notified[waiting]
	if _, seen := set[source]; seen {
		s.mu.Unlock()
		return false, nil
	}
	if set == nil {
		set = make(map[int64]struct{})
		s.notified[waiting] = set
	}
	set[source] = struct{}{}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.save(ctx, snap, "mark_notified", waiting); err != nil {
		s.mu.Lock()
		delete(s.notified[waiting], source)
		if len(s.notified[waiting]) == 0 {
			delete(s.notified, waiting)
		}
		s.mu.Unlock()
		return false, err
	}
	return true, nil
}

// Notified lists the sources already announced to waiting, sorted.
func (s *Store) Notified(waiting int64) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.notified[waiting]))
}

// CountByState counts profiles per state tag.
func (s *Store) CountByState() map[profile.State]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[profile.State]int)
	for _, p := range s.profiles {
		out[p.State]++
	}
	return out
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Profiles: make(map[int64]profile.Profile, len(s.profiles)),
		Notified: make(map[int64][]int64, len(s.notified)),
		Versions: maps.Clone(s.versions),
	}
	for id, p := range s.profiles {
		snap.Profiles[id] = p.Clone()
	}
	for waiting, set := range s.notified {
		snap.Notified[waiting] = slices.Sorted(maps.Keys(set))
	}
	return snap
}

func (s *Store) save(ctx context.Context, snap Snapshot, op string, userID int64) error {
	start := time.Now()
	err := s.persister.SaveAll(ctx, snap)
	took := time.Since(start)
	metrics.ObserveSave(s.backend, took, err)
	if err != nil {
		logger.LogEvent(ctx, logger.Store, slog.LevelError, "store.save",
			slog.String("op", op),
			slog.String("backend", s.backend),
			slog.Int64("target_id", userID),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%w: %s: %w", ErrPersist, op, err)
	}
	if logger.ShouldSampleDebug() {
		logger.LogEvent(ctx, logger.Store, slog.LevelDebug, "store.save",
			slog.String("op", op),
			slog.String("backend", s.backend),
			slog.Int("profiles", len(snap.Profiles)),
			slog.Duration("duration", logger.RoundMS(took)),
		)
	}
	return nil
}

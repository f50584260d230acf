package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/lovematch/internal/profile"
)

const (
	selectProfilesSQL = `SELECT user_id, state, name, gender, age, age_visible, location, hobbies, bio,
	photo, handle, platform, platform_label, pending_handle, match_step, match_location, created_ms, updated_ms
FROM profiles`

	upsertProfileSQL = `INSERT INTO profiles (user_id, state, name, gender, age, age_visible, location, hobbies,
	bio, photo, handle, platform, platform_label, pending_handle, match_step, match_location, created_ms, updated_ms)
VALUES (:user_id, :state, :name, :gender, :age, :age_visible, :location, :hobbies,
	:bio, :photo, :handle, :platform, :platform_label, :pending_handle, :match_step, :match_location, :created_ms, :updated_ms)
ON CONFLICT (user_id) DO UPDATE SET
	state = EXCLUDED.state,
	name = EXCLUDED.name,
	gender = EXCLUDED.gender,
	age = EXCLUDED.age,
	age_visible = EXCLUDED.age_visible,
	location = EXCLUDED.location,
	hobbies = EXCLUDED.hobbies,
	bio = EXCLUDED.bio,
	photo = EXCLUDED.photo,
	handle = EXCLUDED.handle,
	platform = EXCLUDED.platform,
	platform_label = EXCLUDED.platform_label,
	pending_handle = EXCLUDED.pending_handle,
	match_step = EXCLUDED.match_step,
	match_location = EXCLUDED.match_location,
	updated_ms = EXCLUDED.updated_ms`

	selectNotifiedSQL = `SELECT profile_id, source_id FROM profile_notifications`

	insertNotifiedSQL = `INSERT INTO profile_notifications (profile_id, source_id) VALUES (?, ?)
ON CONFLICT DO NOTHING`
)

type profileRow struct {
	UserID        int64  `db:"user_id"`
	State         string `db:"state"`
	Name          string `db:"name"`
	Gender        string `db:"gender"`
	Age           int    `db:"age"`
	AgeVisible    bool   `db:"age_visible"`
	Location      string `db:"location"`
	Hobbies       string `db:"hobbies"`
	Bio           string `db:"bio"`
	Photo         string `db:"photo"`
	Handle        string `db:"handle"`
	Platform      string `db:"platform"`
	PlatformLabel string `db:"platform_label"`
	PendingHandle string `db:"pending_handle"`
	MatchStep     string `db:"match_step"`
	MatchLocation string `db:"match_location"`
	CreatedMS     int64  `db:"created_ms"`
	UpdatedMS     int64  `db:"updated_ms"`
}

type notifiedRow struct {
	ProfileID int64 `db:"profile_id"`
	SourceID  int64 `db:"source_id"`
}

type pair struct{ waiting, source int64 }

// rowMark identifies the last written state of a profile row.
type rowMark struct {
	version   uint64
	updatedAt time.Time
}

// SQLStore persists snapshots into the profiles and profile_notifications
// tables. Only rows changed since the last successful save are written: a
// row is clean when both its upsert version and UpdatedAt match.
type SQLStore struct {
	db *sqlx.DB

	mu        sync.Mutex
	saved     map[int64]rowMark
	savedPair map[pair]struct{}
}

// NewSQLStore wraps an open connection whose schema is already migrated.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		db:        db,
		saved:     make(map[int64]rowMark),
		savedPair: make(map[pair]struct{}),
	}
}

// LoadAll reads both tables.
func (s *SQLStore) LoadAll(ctx context.Context) (Snapshot, error) {
	var rows []profileRow
	if err := s.db.SelectContext(ctx, &rows, selectProfilesSQL); err != nil {
		return Snapshot{}, fmt.Errorf("sql store: select profiles: %w", err)
	}
	var pairs []notifiedRow
	if err := s.db.SelectContext(ctx, &pairs, selectNotifiedSQL); err != nil {
		return Snapshot{}, fmt.Errorf("sql store: select notifications: %w", err)
	}

	snap := Snapshot{
		Profiles: make(map[int64]profile.Profile, len(rows)),
		Notified: make(map[int64][]int64),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		p, err := r.toProfile()
		if err != nil {
			return Snapshot{}, err
		}
		snap.Profiles[p.ID] = p
		s.saved[p.ID] = rowMark{updatedAt: p.UpdatedAt}
	}
	for _, r := range pairs {
		snap.Notified[r.ProfileID] = append(snap.Notified[r.ProfileID], r.SourceID)
		s.savedPair[pair{r.ProfileID, r.SourceID}] = struct{}{}
	}
	return snap, nil
}

// SaveAll writes changed profiles and new notification pairs in one
// transaction.
func (s *SQLStore) SaveAll(ctx context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dirty []profileRow
	for id, p := range snap.Profiles {
		mark := rowMark{version: snap.Versions[id], updatedAt: p.UpdatedAt}
		if last, ok := s.saved[id]; ok && last.version == mark.version && last.updatedAt.Equal(mark.updatedAt) {
			continue
		}
		row, err := rowFromProfile(p)
		if err != nil {
			return err
		}
		dirty = append(dirty, row)
	}
	var fresh []pair
	for waiting, sources := range snap.Notified {
		for _, src := range sources {
			k := pair{waiting, src}
			if _, ok := s.savedPair[k]; !ok {
				fresh = append(fresh, k)
			}
		}
	}
	if len(dirty) == 0 && len(fresh) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sql store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, row := range dirty {
		if _, err := tx.NamedExecContext(ctx, upsertProfileSQL, row); err != nil {
			return fmt.Errorf("sql store: upsert profile %d: %w", row.UserID, err)
		}
	}
	insert := tx.Rebind(insertNotifiedSQL)
	for _, k := range fresh {
		if _, err := tx.ExecContext(ctx, insert, k.waiting, k.source); err != nil {
			return fmt.Errorf("sql store: insert notification %d<-%d: %w", k.waiting, k.source, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sql store: commit: %w", err)
	}

	for _, row := range dirty {
		s.saved[row.UserID] = rowMark{
			version:   snap.Versions[row.UserID],
			updatedAt: snap.Profiles[row.UserID].UpdatedAt,
		}
	}
	for _, k := range fresh {
		s.savedPair[k] = struct{}{}
	}
	return nil
}

func rowFromProfile(p profile.Profile) (profileRow, error) {
	hobbies := p.Hobbies
	if hobbies == nil {
		hobbies = []string{}
	}
	raw, err := json.Marshal(hobbies)
	if err != nil {
		return profileRow{}, fmt.Errorf("sql store: encode hobbies: %w", err)
	}
	return profileRow{
		UserID:        p.ID,
		State:         string(p.State),
		Name:          p.Name,
		Gender:        string(p.Gender),
		Age:           p.Age,
		AgeVisible:    p.AgeVisible,
		Location:      p.Location,
		Hobbies:       string(raw),
		Bio:           p.Bio,
		Photo:         p.Photo,
		Handle:        p.Handle,
		Platform:      string(p.Platform),
		PlatformLabel: p.PlatformLabel,
		PendingHandle: p.PendingHandle,
		MatchStep:     string(p.MatchStep),
		MatchLocation: p.MatchLocation,
		CreatedMS:     p.CreatedAt.UnixMilli(),
		UpdatedMS:     p.UpdatedAt.UnixMilli(),
	}, nil
}

func (r profileRow) toProfile() (profile.Profile, error) {
	var hobbies []string
	if err := json.Unmarshal([]byte(r.Hobbies), &hobbies); err != nil {
		return profile.Profile{}, fmt.Errorf("sql store: decode hobbies of %d: %w", r.UserID, err)
	}
	return profile.Profile{
		ID:            r.UserID,
		State:         profile.State(r.State),
		Name:          r.Name,
		Gender:        profile.Gender(r.Gender),
		Age:           r.Age,
		AgeVisible:    r.AgeVisible,
		Location:      r.Location,
		Hobbies:       hobbies,
		Bio:           r.Bio,
		Photo:         r.Photo,
		Handle:        r.Handle,
		Platform:      profile.Platform(r.Platform),
		PlatformLabel: r.PlatformLabel,
		PendingHandle: r.PendingHandle,
		MatchStep:     profile.MatchStep(r.MatchStep),
		MatchLocation: r.MatchLocation,
		CreatedAt:     time.UnixMilli(r.CreatedMS),
		UpdatedAt:     time.UnixMilli(r.UpdatedMS),
	}, nil
}

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/m3rciful/lovematch/internal/profile"
)

// DefaultRedisPrefix namespaces keys when no prefix is configured.
const DefaultRedisPrefix = "lovematch"

// RedisStore keeps profiles as JSON in one hash and each waiting profile's
// notified sources in its own set.
type RedisStore struct {
	R      *redis.Client
	Prefix string
}

// NewRedisStore wraps client under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{R: client, Prefix: prefix}
}

func (s *RedisStore) profilesKey() string { return s.Prefix + ":profiles" }

func (s *RedisStore) waitingKey() string { return s.Prefix + ":notified" }

func (s *RedisStore) notifiedKey(id int64) string {
	return s.Prefix + ":notified:" + strconv.FormatInt(id, 10)
}

// LoadAll reads the profile hash and every notified set.
func (s *RedisStore) LoadAll(ctx context.Context) (Snapshot, error) {
	raw, err := s.R.HGetAll(ctx, s.profilesKey()).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis store: profiles: %w", err)
	}
	snap := Snapshot{
		Profiles: make(map[int64]profile.Profile, len(raw)),
		Notified: make(map[int64][]int64),
	}
	for field, val := range raw {
		var p profile.Profile
		if err := json.Unmarshal([]byte(val), &p); err != nil {
			return Snapshot{}, fmt.Errorf("redis store: decode profile %s: %w", field, err)
		}
		snap.Profiles[p.ID] = p
	}

	waiting, err := s.R.SMembers(ctx, s.waitingKey()).Result()
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis store: waiting index: %w", err)
	}
	for _, w := range waiting {
		id, err := strconv.ParseInt(w, 10, 64)
		if err != nil {
			continue
		}
		members, err := s.R.SMembers(ctx, s.notifiedKey(id)).Result()
		if err != nil {
			return Snapshot{}, fmt.Errorf("redis store: notified %d: %w", id, err)
		}
		for _, m := range members {
			src, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			snap.Notified[id] = append(snap.Notified[id], src)
		}
	}
	return snap, nil
}

// SaveAll writes the whole snapshot in one MULTI/EXEC block.
func (s *RedisStore) SaveAll(ctx context.Context, snap Snapshot) error {
	fields := make(map[string]any, len(snap.Profiles))
	for id, p := range snap.Profiles {
		b, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("redis store: encode profile %d: %w", id, err)
		}
		fields[strconv.FormatInt(id, 10)] = b
	}

	_, err := s.R.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(fields) > 0 {
			pipe.HSet(ctx, s.profilesKey(), fields)
		}
		for waiting, sources := range snap.Notified {
			if len(sources) == 0 {
				continue
			}
			members := make([]any, len(sources))
			for i, src := range sources {
				members[i] = src
			}
			pipe.SAdd(ctx, s.waitingKey(), waiting)
			pipe.SAdd(ctx, s.notifiedKey(waiting), members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis store: save: %w", err)
	}
	return nil
}

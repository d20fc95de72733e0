package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	snapshotKeyPrefix  = "intake:snapshot:"
	DefaultSnapshotTTL = 24 * time.Hour
)

// RedisSnapshotStore keeps finalized records in Redis so snapshots stay
// readable after the in-memory session is gone.
type RedisSnapshotStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisSnapshotStore(rdb *redis.Client, ttl time.Duration) *RedisSnapshotStore {
	if rdb == nil {
		panic("handoff: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}
	return &RedisSnapshotStore{rdb: rdb, ttl: ttl}
}

func snapshotKey(sessionID string) string {
	return snapshotKeyPrefix + sessionID
}

func (s *RedisSnapshotStore) Deliver(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("handoff: marshal snapshot: %w", err)
	}
	if err := s.rdb.Set(ctx, snapshotKey(rec.SessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("handoff: save snapshot: %w", err)
	}
	return nil
}

// Load returns the stored record, or nil when none exists.
func (s *RedisSnapshotStore) Load(ctx context.Context, sessionID string) (*Record, error) {
	data, err := s.rdb.Get(ctx, snapshotKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("handoff: get snapshot: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("handoff: unmarshal snapshot: %w", err)
	}
	return &rec, nil
}

func (s *RedisSnapshotStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, snapshotKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("handoff: delete snapshot: %w", err)
	}
	return nil
}

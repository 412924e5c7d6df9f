package session

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kapu/ledger-arcade/internal/game"
	"github.com/kapu/ledger-arcade/internal/rules"
)

const ttlSnapshot = 24 * time.Hour

// Snapshot is the minimum needed to pick a session back up after a client
// restart: where the authoritative record lives and how far we had applied
// it. The position itself is rebuilt from the ledger on resume.
type Snapshot struct {
	SessionID string      `json:"session_id"`
	Kind      game.Kind   `json:"kind"`
	Mode      game.Mode   `json:"mode"`
	Seat      game.Seat   `json:"seat"`
	Seed      uint64      `json:"seed"`
	Table     rules.Table `json:"table"`
	Applied   int         `json:"applied"`
	Finished  bool        `json:"finished"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Store keeps per-player session snapshots in Redis. A nil Store is a
// no-op, so sessions run fine without Redis configured.
type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store {
	if rdb == nil {
		return nil
	}
	return &Store{rdb: rdb}
}

func (s *Store) keySnap(id string) string { return "arcade:session:" + strings.TrimSpace(id) }
func (s *Store) keyPlayer(p string) string { return "arcade:index:player:" + strings.TrimSpace(p) }

func (s *Store) Save(ctx context.Context, playerID string, snap *Snapshot) error {
	if s == nil {
		return nil
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keySnap(snap.SessionID), raw, ttlSnapshot).Err(); err != nil {
		return err
	}
	if strings.TrimSpace(playerID) != "" {
		if err := s.rdb.SAdd(ctx, s.keyPlayer(playerID), snap.SessionID).Err(); err != nil {
			return err
		}
		_ = s.rdb.Expire(ctx, s.keyPlayer(playerID), ttlSnapshot).Err()
	}
	return nil
}

func (s *Store) Load(ctx context.Context, sessionID string) (*Snapshot, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := s.rdb.Get(ctx, s.keySnap(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Store) Delete(ctx context.Context, playerID, sessionID string) error {
	if s == nil {
		return nil
	}
	if strings.TrimSpace(playerID) != "" {
		_ = s.rdb.SRem(ctx, s.keyPlayer(playerID), sessionID).Err()
	}
	return s.rdb.Del(ctx, s.keySnap(sessionID)).Err()
}

// Unfinished lists a player's resumable snapshots, most recent first.
func (s *Store) Unfinished(ctx context.Context, playerID string) ([]*Snapshot, error) {
	if s == nil {
		return nil, nil
	}
	ids, err := s.rdb.SMembers(ctx, s.keyPlayer(playerID)).Result()
	if err != nil {
		return nil, err
	}
	var out []*Snapshot
	for _, id := range ids {
		snap, err := s.Load(ctx, id)
		if err != nil || snap == nil || snap.Finished {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

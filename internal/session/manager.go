package session

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kapu/ledger-arcade/internal/game"
	"github.com/kapu/ledger-arcade/internal/ledger"
	"github.com/kapu/ledger-arcade/internal/obslog"
	"github.com/kapu/ledger-arcade/internal/rules"
	"github.com/kapu/ledger-arcade/pkg/ledgerdto"
)

// ManagerConfig carries the knobs shared by every runner the manager
// builds.
type ManagerConfig struct {
	PlayerID   string
	PlayerName string

	PollInterval   time.Duration
	BotThinkDelay  time.Duration
	ClockStart     time.Duration
	ClockIncrement time.Duration

	Table rules.Table
}

// Manager creates, resumes, and tears down session runners.
type Manager struct {
	cfg      ManagerConfig
	client   *ledger.Client
	store    *Store
	rdb      *redis.Client
	decider  Decider
	notifier Notifier
	reporter Reporter

	mu      sync.Mutex
	runners map[string]*Runner
}

// NewManager wires a manager. redisURL may be empty; snapshots are then
// disabled and sessions cannot be resumed across restarts.
func NewManager(cfg ManagerConfig, client *ledger.Client, redisURL string, decider Decider, notifier Notifier, reporter Reporter) (*Manager, error) {
	if strings.TrimSpace(cfg.PlayerID) == "" {
		return nil, fmt.Errorf("player id required")
	}
	m := &Manager{
		cfg:      cfg,
		client:   client,
		decider:  decider,
		notifier: notifier,
		reporter: reporter,
		runners:  make(map[string]*Runner),
	}
	if strings.TrimSpace(redisURL) != "" {
		opts, err := parseRedisURL(redisURL)
		if err != nil {
			return nil, err
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		m.rdb = rdb
		m.store = NewStore(rdb)
	}
	return m, nil
}

func (m *Manager) Close() error {
	m.mu.Lock()
	runners := make([]*Runner, 0, len(m.runners))
	for _, r := range m.runners {
		runners = append(runners, r)
	}
	m.runners = make(map[string]*Runner)
	m.mu.Unlock()
	for _, r := range runners {
		r.Close()
	}
	if m.rdb != nil {
		return m.rdb.Close()
	}
	return nil
}

func (m *Manager) options(seat game.Seat, onUpdate func(game.Position), withClient bool) Options {
	opt := Options{
		Decider:        m.decider,
		Store:          m.store,
		Notifier:       m.notifier,
		Reporter:       m.reporter,
		OnUpdate:       onUpdate,
		PlayerID:       m.cfg.PlayerID,
		Seat:           seat,
		PollInterval:   m.cfg.PollInterval,
		BotThinkDelay:  m.cfg.BotThinkDelay,
		ClockStart:     m.cfg.ClockStart,
		ClockIncrement: m.cfg.ClockIncrement,
	}
	if withClient {
		opt.Client = m.client
	}
	return opt
}

func (m *Manager) track(r *Runner) {
	m.mu.Lock()
	m.runners[r.ID()] = r
	m.mu.Unlock()
}

// Runner returns a live runner by session id.
func (m *Manager) Runner(id string) (*Runner, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runners[id]
	return r, ok
}

// Drop closes and forgets one runner.
func (m *Manager) Drop(id string) {
	m.mu.Lock()
	r, ok := m.runners[id]
	delete(m.runners, id)
	m.mu.Unlock()
	if ok {
		r.Close()
	}
}

// StartBot creates a ledger session against the machine. Machine moves
// stay local; the ledger records the creator's moves and the final result.
func (m *Manager) StartBot(ctx context.Context, kind game.Kind, onUpdate func(game.Position)) (*Runner, error) {
	if m.client == nil {
		return nil, fmt.Errorf("no ledger client configured")
	}
	rec, err := m.client.CreateSession(ctx, ledgerdto.CreateSessionRequest{
		Kind:       kind,
		Mode:       game.ModeBot,
		PlayerID:   m.cfg.PlayerID,
		PlayerName: m.cfg.PlayerName,
		Table:      tableDTO(m.cfg.Table),
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	r, err := NewRunner(rec, m.options(0, onUpdate, true))
	if err != nil {
		return nil, err
	}
	m.track(r)
	obslog.L().Info("session_start",
		zap.String("session_id", r.ID()),
		zap.String("kind", string(kind)),
		zap.String("mode", string(game.ModeBot)),
	)
	return r, nil
}

// StartLocal runs a session that never touches the ledger: hot-seat for
// chess and poker, solo table for blackjack.
func (m *Manager) StartLocal(kind game.Kind, onUpdate func(game.Position)) (*Runner, error) {
	rec := &ledgerdto.SessionRecord{
		ID:     "local-" + uuid.NewString(),
		Kind:   kind,
		Mode:   game.ModeLocal,
		Status: ledgerdto.SessionInProgress,
		Seed:   uint64(time.Now().UnixNano()),
		Table:  tableDTO(m.cfg.Table),
	}
	r, err := NewRunner(rec, m.options(0, onUpdate, false))
	if err != nil {
		return nil, err
	}
	m.track(r)
	obslog.L().Info("session_start",
		zap.String("session_id", r.ID()),
		zap.String("kind", string(kind)),
		zap.String("mode", string(game.ModeLocal)),
	)
	return r, nil
}

// Join attaches to an existing peer session, picking our seat from the
// record's player list.
func (m *Manager) Join(ctx context.Context, sessionID string, onUpdate func(game.Position)) (*Runner, error) {
	if m.client == nil {
		return nil, fmt.Errorf("no ledger client configured")
	}
	rec, err := m.client.Session(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	seat, ok := seatOf(rec, m.cfg.PlayerID)
	if !ok {
		return nil, fmt.Errorf("player %s not in session %s", m.cfg.PlayerID, sessionID)
	}
	r, err := NewRunner(rec, m.options(seat, onUpdate, true))
	if err != nil {
		return nil, err
	}
	m.track(r)
	obslog.L().Info("session_join",
		zap.String("session_id", r.ID()),
		zap.Int("seat", int(seat)),
	)
	return r, nil
}

// Resume picks the player's most recent unfinished snapshot and rebuilds
// its runner from the current ledger record.
func (m *Manager) Resume(ctx context.Context, onUpdate func(game.Position)) (*Runner, error) {
	if m.store == nil {
		return nil, nil
	}
	snaps, err := m.store.Unfinished(ctx, m.cfg.PlayerID)
	if err != nil || len(snaps) == 0 {
		return nil, err
	}
	snap := snaps[0]
	if snap.Mode == game.ModeLocal {
		// nothing authoritative to rebuild from
		_ = m.store.Delete(ctx, m.cfg.PlayerID, snap.SessionID)
		return nil, nil
	}
	return m.Join(ctx, snap.SessionID, onUpdate)
}

func seatOf(rec *ledgerdto.SessionRecord, playerID string) (game.Seat, bool) {
	switch playerID {
	case rec.Players[0]:
		return 0, true
	case rec.Players[1]:
		return 1, true
	}
	return game.NoSeat, false
}

func tableDTO(t rules.Table) ledgerdto.TableParams {
	return ledgerdto.TableParams{
		PokerStack:      t.PokerStack,
		PokerSmallBlind: t.PokerSmallBlind,
		PokerBigBlind:   t.PokerBigBlind,
		BlackjackSeats:  t.BlackjackSeats,
		BlackjackBet:    t.BlackjackBet,
		BlackjackChips:  t.BlackjackChips,
	}
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

// Package lobby bridges match-making to sessions: create or join a lobby
// on the ledger and poll its record until a session id appears.
package lobby

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/ledger-arcade/internal/game"
	"github.com/kapu/ledger-arcade/internal/ledger"
	"github.com/kapu/ledger-arcade/internal/obslog"
	"github.com/kapu/ledger-arcade/pkg/ledgerdto"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	// ErrLobbyGone means the lobby was cancelled or expired before a
	// session started.
	ErrLobbyGone staticErr = "lobby cancelled or expired"
	// ErrLobbyTimeout means the polling budget ran out with the lobby
	// still waiting. The lobby may still fill later; the caller decides
	// whether to cancel it.
	ErrLobbyTimeout staticErr = "lobby wait timed out"
)

// Bridge drives lobby lifecycle against the ledger.
type Bridge struct {
	client   *ledger.Client
	playerID string

	pollInterval time.Duration
	pollAttempts int
}

func NewBridge(client *ledger.Client, playerID string, pollInterval time.Duration, pollAttempts int) *Bridge {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if pollAttempts <= 0 {
		pollAttempts = 60
	}
	return &Bridge{
		client:       client,
		playerID:     playerID,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
	}
}

// Create opens a lobby. A non-empty secret makes it private; only its
// FNV-1a hash travels to the ledger.
func (b *Bridge) Create(ctx context.Context, kind game.Kind, mode game.Mode, secret string) (*ledgerdto.LobbyRecord, error) {
	vis := ledgerdto.LobbyPublic
	var hash uint64
	if strings.TrimSpace(secret) != "" {
		vis = ledgerdto.LobbyPrivate
		hash = hashSecret(secret)
	}
	rec, err := b.client.CreateLobby(ctx, ledgerdto.CreateLobbyRequest{
		Creator:    b.playerID,
		Kind:       kind,
		Mode:       mode,
		Visibility: vis,
		SecretHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("create lobby: %w", err)
	}
	obslog.L().Info("lobby_create",
		zap.String("lobby_id", rec.ID),
		zap.String("kind", string(kind)),
		zap.String("visibility", string(vis)),
	)
	return rec, nil
}

// Join enters an existing lobby.
func (b *Bridge) Join(ctx context.Context, lobbyID, secret string) (*ledgerdto.LobbyRecord, error) {
	var hash uint64
	if strings.TrimSpace(secret) != "" {
		hash = hashSecret(secret)
	}
	rec, err := b.client.JoinLobby(ctx, lobbyID, ledgerdto.JoinLobbyRequest{
		PlayerID:   b.playerID,
		SecretHash: hash,
	})
	if err != nil {
		return nil, fmt.Errorf("join lobby: %w", err)
	}
	obslog.L().Info("lobby_join", zap.String("lobby_id", rec.ID))
	return rec, nil
}

// Cancel withdraws the caller's own lobby.
func (b *Bridge) Cancel(ctx context.Context, lobbyID string) error {
	if err := b.client.CancelLobby(ctx, lobbyID, b.playerID); err != nil {
		return fmt.Errorf("cancel lobby: %w", err)
	}
	obslog.L().Info("lobby_cancel", zap.String("lobby_id", lobbyID))
	return nil
}

// Open lists joinable public lobbies.
func (b *Bridge) Open(ctx context.Context) ([]ledgerdto.LobbyRecord, error) {
	return b.client.OpenLobbies(ctx)
}

// Resolve polls the lobby until the ledger pairs it with a session and
// returns that session id. It gives up after the configured attempt
// budget, and earlier if the lobby is cancelled or expired or ctx ends.
// Individual fetch failures consume an attempt and are otherwise ignored.
func (b *Bridge) Resolve(ctx context.Context, lobbyID string) (string, error) {
	t := time.NewTicker(b.pollInterval)
	defer t.Stop()
	for attempt := 1; attempt <= b.pollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
		rec, err := b.client.Lobby(ctx, lobbyID)
		if err != nil {
			obslog.L().Debug("lobby_poll_skip",
				zap.String("lobby_id", lobbyID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}
		if rec.Status.Gone() {
			return "", fmt.Errorf("%w: lobby %s is %s", ErrLobbyGone, lobbyID, rec.Status)
		}
		if rec.SessionID != "" {
			obslog.L().Info("lobby_resolved",
				zap.String("lobby_id", lobbyID),
				zap.String("session_id", rec.SessionID),
			)
			return rec.SessionID, nil
		}
	}
	return "", fmt.Errorf("%w: lobby %s after %d attempts", ErrLobbyTimeout, lobbyID, b.pollAttempts)
}

func hashSecret(secret string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.TrimSpace(secret)))
	return h.Sum64()
}

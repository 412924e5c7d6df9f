package ledgerdto

import (
	"time"

	"github.com/kapu/ledger-arcade/internal/game"
)

// LobbyStatus mirrors the ledger's lobby lifecycle.
type LobbyStatus string

const (
	LobbyOpen      LobbyStatus = "open"
	LobbyFull      LobbyStatus = "full"
	LobbyStarted   LobbyStatus = "started"
	LobbyCancelled LobbyStatus = "cancelled"
	LobbyExpired   LobbyStatus = "expired"
)

// Gone reports whether the lobby can no longer produce a session.
func (s LobbyStatus) Gone() bool {
	return s == LobbyCancelled || s == LobbyExpired
}

type LobbyVisibility string

const (
	LobbyPublic  LobbyVisibility = "public"
	LobbyPrivate LobbyVisibility = "private"
)

// LobbyRecord is the authoritative state of one match-making lobby.
// SessionID is set once the ledger pairs the players and starts a session.
type LobbyRecord struct {
	ID         string          `json:"id"`
	Creator    string          `json:"creator"`
	Kind       game.Kind       `json:"kind"`
	Mode       game.Mode       `json:"mode"`
	Visibility LobbyVisibility `json:"visibility"`
	SecretHash uint64          `json:"secret_hash,omitempty"`
	Players    []string        `json:"players"`
	SessionID  string          `json:"session_id,omitempty"`
	Status     LobbyStatus     `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	ExpiresAt  time.Time       `json:"expires_at"`
}

type CreateLobbyRequest struct {
	Creator    string          `json:"creator"`
	Kind       game.Kind       `json:"kind"`
	Mode       game.Mode       `json:"mode"`
	Visibility LobbyVisibility `json:"visibility,omitempty"`
	SecretHash uint64          `json:"secret_hash,omitempty"`
}

type JoinLobbyRequest struct {
	PlayerID   string `json:"player_id"`
	SecretHash uint64 `json:"secret_hash,omitempty"`
}

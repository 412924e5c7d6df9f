package ledgerdto

import (
	"time"

	"github.com/kapu/ledger-arcade/internal/game"
)

// KindStats counts one player's record in one game kind.
type KindStats struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// ProfileRecord is the ledger's per-player profile.
type ProfileRecord struct {
	PlayerID      string    `json:"player_id"`
	Name          string    `json:"name"`
	Chess         KindStats `json:"chess"`
	Poker         KindStats `json:"poker"`
	Blackjack     KindStats `json:"blackjack"`
	CurrentStreak int       `json:"current_streak"`
	BestStreak    int       `json:"best_streak"`
	RegisteredAt  time.Time `json:"registered_at"`
}

type RegisterRequest struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
}

// LeaderboardEntry is one row of the ledger's win-count ranking.
type LeaderboardEntry struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Wins     int    `json:"wins"`
}

// ResultReport is the best-effort end-of-game record submitted for bot
// sessions.
type ResultReport struct {
	PlayerID string    `json:"player_id"`
	Kind     game.Kind `json:"kind"`
	Won      bool      `json:"won"`
	Draw     bool      `json:"draw"`
	Moves    int       `json:"moves"`
	Reason   string    `json:"reason,omitempty"`
}

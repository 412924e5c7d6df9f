// Package ledgerdto holds the wire types exchanged with the remote game
// ledger.
package ledgerdto

import (
	"time"

	"github.com/kapu/ledger-arcade/internal/game"
)

// SessionStatus mirrors the ledger's session lifecycle.
type SessionStatus string

const (
	SessionWaiting    SessionStatus = "waiting_for_opponent"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionCancelled  SessionStatus = "cancelled"
	SessionTimedOut   SessionStatus = "timed_out"
)

// Final reports whether the status admits no further actions.
func (s SessionStatus) Final() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionTimedOut
}

// TableParams fixes the stakes a session was dealt with. The ledger echoes
// these back on every fetch so late joiners reconstruct identical decks.
type TableParams struct {
	PokerStack      int `json:"poker_stack,omitempty"`
	PokerSmallBlind int `json:"poker_small_blind,omitempty"`
	PokerBigBlind   int `json:"poker_big_blind,omitempty"`
	BlackjackSeats  int `json:"blackjack_seats,omitempty"`
	BlackjackBet    int `json:"blackjack_bet,omitempty"`
	BlackjackChips  int `json:"blackjack_chips,omitempty"`
}

// ClockState is the ledger's view of both clocks, in whole seconds.
type ClockState struct {
	RemainingSec [2]int64 `json:"remaining_sec"`
	IncrementSec int64    `json:"increment_sec"`
}

// SessionRecord is the authoritative state of one session. Actions is the
// full ordered log; clients replay the suffix they have not applied yet.
type SessionRecord struct {
	ID          string        `json:"id"`
	Kind        game.Kind     `json:"kind"`
	Mode        game.Mode     `json:"mode"`
	Status      SessionStatus `json:"status"`
	Players     [2]string     `json:"players"`
	PlayerNames [2]string     `json:"player_names"`
	Seed        uint64        `json:"seed"`
	Table       TableParams   `json:"table"`
	Actions     []game.Action `json:"actions"`
	WinnerSeat  *game.Seat    `json:"winner_seat,omitempty"`
	Draw        bool          `json:"draw,omitempty"`
	EndReason   string        `json:"end_reason,omitempty"`
	DrawOffer   *game.Seat    `json:"draw_offer,omitempty"`
	Clock       *ClockState   `json:"clock,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type CreateSessionRequest struct {
	Kind       game.Kind   `json:"kind"`
	Mode       game.Mode   `json:"mode"`
	PlayerID   string      `json:"player_id"`
	PlayerName string      `json:"player_name,omitempty"`
	Table      TableParams `json:"table,omitempty"`
}

type SubmitActionRequest struct {
	PlayerID     string      `json:"player_id"`
	SubmissionID string      `json:"submission_id"`
	Action       game.Action `json:"action"`
}

type SeatRequest struct {
	PlayerID string `json:"player_id"`
}

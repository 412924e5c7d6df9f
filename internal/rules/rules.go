// Package rules builds starting positions and replays action logs for
// every supported game kind.
package rules

import (
	"fmt"

	"github.com/kapu/ledger-arcade/internal/game"
	"github.com/kapu/ledger-arcade/internal/rules/blackjack"
	"github.com/kapu/ledger-arcade/internal/rules/chess"
	"github.com/kapu/ledger-arcade/internal/rules/poker"
)

// Table carries the per-kind table parameters a session was created with.
type Table struct {
	PokerStack      int
	PokerSmallBlind int
	PokerBigBlind   int

	BlackjackSeats int
	BlackjackBet   int
	BlackjackChips int
}

// Start builds the starting position for a kind. The seed fixes every deal.
func Start(kind game.Kind, seed uint64, t Table) (game.Position, error) {
	switch kind {
	case game.KindChess:
		return chess.NewPosition(), nil
	case game.KindPoker:
		cfg := poker.Config{
			StartStack: t.PokerStack,
			SmallBlind: t.PokerSmallBlind,
			BigBlind:   t.PokerBigBlind,
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("poker table: %w", err)
		}
		return poker.New(cfg, seed), nil
	case game.KindBlackjack:
		return blackjack.New(blackjack.Config{
			Seats: t.BlackjackSeats,
			Bet:   t.BlackjackBet,
			Chips: t.BlackjackChips,
		}, seed), nil
	}
	return nil, fmt.Errorf("unknown game kind %q", kind)
}

// Replay applies an action log to a fresh position. It stops with an error
// on the first action the rules reject.
func Replay(kind game.Kind, seed uint64, t Table, actions []game.Action) (game.Position, error) {
	pos, err := Start(kind, seed, t)
	if err != nil {
		return nil, err
	}
	for i, a := range actions {
		next, err := pos.Apply(a)
		if err != nil {
			return nil, fmt.Errorf("replay action %d: %w", i, err)
		}
		pos = next
	}
	return pos, nil
}

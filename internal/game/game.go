package game

import (
	"fmt"
	"strings"
)

// Kind identifies a rule set.
type Kind string

const (
	KindChess     Kind = "chess"
	KindPoker     Kind = "poker"
	KindBlackjack Kind = "blackjack"
)

// ParseKind normalizes a user-supplied kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindChess:
		return KindChess, nil
	case KindPoker:
		return KindPoker, nil
	case KindBlackjack:
		return KindBlackjack, nil
	}
	return "", fmt.Errorf("unknown game kind %q", s)
}

// Mode identifies who sits across the table.
type Mode string

const (
	ModeBot   Mode = "bot"
	ModePeer  Mode = "peer"
	ModeLocal Mode = "local"
)

// Seat indexes a player within a session. Two-seat games use 0 and 1;
// blackjack uses 0..n-1 for player seats and DealerSeat for the house.
type Seat int

const (
	NoSeat     Seat = -2
	DealerSeat Seat = -1
)

// Other flips a two-seat index.
func (s Seat) Other() Seat { return 1 - s }

// Action is one ledger log entry. Exactly one payload is set,
// matching Kind of the session it belongs to.
type Action struct {
	Seq  int  `json:"seq"`
	Seat Seat `json:"seat"`

	Chess     *ChessMove     `json:"chess,omitempty"`
	Poker     *PokerMove     `json:"poker,omitempty"`
	Blackjack *BlackjackMove `json:"blackjack,omitempty"`
}

// ChessMove is a move in long algebraic (UCI) form, e.g. "e2e4", "e7e8q".
type ChessMove struct {
	UCI string `json:"uci"`
}

// PokerVerb is a betting action name.
type PokerVerb string

const (
	PokerFold  PokerVerb = "fold"
	PokerCheck PokerVerb = "check"
	PokerCall  PokerVerb = "call"
	PokerRaise PokerVerb = "raise"
	PokerAllIn PokerVerb = "allin"
)

type PokerMove struct {
	Verb   PokerVerb `json:"verb"`
	Amount int       `json:"amount,omitempty"`
}

// BlackjackVerb is a per-seat blackjack action name.
type BlackjackVerb string

const (
	BlackjackHit    BlackjackVerb = "hit"
	BlackjackStand  BlackjackVerb = "stand"
	BlackjackDouble BlackjackVerb = "double"
)

type BlackjackMove struct {
	Verb BlackjackVerb `json:"verb"`
}

// String renders the action payload in the compact text form used for
// submissions and bot prompts.
func (a Action) String() string {
	switch {
	case a.Chess != nil:
		return a.Chess.UCI
	case a.Poker != nil:
		if a.Poker.Verb == PokerRaise {
			return fmt.Sprintf("raise %d", a.Poker.Amount)
		}
		return string(a.Poker.Verb)
	case a.Blackjack != nil:
		return string(a.Blackjack.Verb)
	}
	return ""
}

// ParseInput turns user text into an action for the given kind. The
// accepted forms mirror Action.String, so any legal action's string form
// parses back to an equal action.
func ParseInput(kind Kind, seat Seat, text string) (Action, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return Action{}, fmt.Errorf("empty action")
	}
	a := Action{Seat: seat}
	switch kind {
	case KindChess:
		uci := fields[0]
		if len(uci) < 4 || len(uci) > 5 {
			return Action{}, fmt.Errorf("expected a move like e2e4 or e7e8q, got %q", text)
		}
		a.Chess = &ChessMove{UCI: uci}
		return a, nil
	case KindPoker:
		verb := PokerVerb(fields[0])
		switch verb {
		case PokerFold, PokerCheck, PokerCall, PokerAllIn:
			a.Poker = &PokerMove{Verb: verb}
			return a, nil
		case PokerRaise:
			if len(fields) < 2 {
				return Action{}, fmt.Errorf("raise needs an amount, e.g. raise 40")
			}
			var n int
			if _, err := fmt.Sscanf(fields[1], "%d", &n); err != nil || n <= 0 {
				return Action{}, fmt.Errorf("bad raise amount %q", fields[1])
			}
			a.Poker = &PokerMove{Verb: PokerRaise, Amount: n}
			return a, nil
		}
		return Action{}, fmt.Errorf("unknown poker action %q", fields[0])
	case KindBlackjack:
		verb := BlackjackVerb(fields[0])
		switch verb {
		case BlackjackHit, BlackjackStand, BlackjackDouble:
			a.Blackjack = &BlackjackMove{Verb: verb}
			return a, nil
		}
		return Action{}, fmt.Errorf("unknown blackjack action %q", fields[0])
	}
	return Action{}, fmt.Errorf("unknown game kind %q", kind)
}

// Equal compares payloads, ignoring Seq.
func (a Action) Equal(b Action) bool {
	if a.Seat != b.Seat {
		return false
	}
	switch {
	case a.Chess != nil:
		return b.Chess != nil && a.Chess.UCI == b.Chess.UCI
	case a.Poker != nil:
		return b.Poker != nil && a.Poker.Verb == b.Poker.Verb && a.Poker.Amount == b.Poker.Amount
	case a.Blackjack != nil:
		return b.Blackjack != nil && a.Blackjack.Verb == b.Blackjack.Verb
	}
	return false
}

// EndReason tags how a session finished.
type EndReason string

const (
	ReasonCheckmate   EndReason = "checkmate"
	ReasonStalemate   EndReason = "stalemate"
	ReasonDrawRule    EndReason = "draw_rule"
	ReasonDrawAgreed  EndReason = "draw_agreed"
	ReasonResignation EndReason = "resignation"
	ReasonTimeout     EndReason = "timeout"
	ReasonFold        EndReason = "fold"
	ReasonShowdown    EndReason = "showdown"
	ReasonSettlement  EndReason = "settlement"
	ReasonCancelled   EndReason = "cancelled"
)

// Verdict is the terminal judgement of a position. Winner is meaningful
// only when Over is true and Draw is false.
type Verdict struct {
	Over   bool      `json:"over"`
	Draw   bool      `json:"draw"`
	Winner Seat      `json:"winner"`
	Reason EndReason `json:"reason,omitempty"`
}

// Position is an immutable game state. Apply returns a new Position and
// never mutates the receiver, so replay and speculative application are
// safe without copying.
type Position interface {
	Kind() Kind
	// SeatToMove reports which seat acts next. Undefined once terminal.
	SeatToMove() Seat
	// Legal enumerates every action the seat to move may take.
	Legal() []Action
	// Apply validates and applies one action.
	Apply(Action) (Position, error)
	// Terminal reports whether the game is over and how.
	Terminal() Verdict
	// Describe renders a short human-readable state line per seat view.
	Describe(viewer Seat) string
}

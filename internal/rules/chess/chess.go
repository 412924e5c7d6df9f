// Package chess adapts the corentings chess engine to the shared Position
// contract. It is the single rules implementation: legality, terminal
// detection, and notation all defer to the library.
package chess

import (
	"errors"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/kapu/ledger-arcade/internal/game"
)

var ErrIllegalMove = errors.New("illegal chess move")

// Position is an immutable chess state: the applied move list plus the
// reconstructed engine game. Apply returns a fresh Position; the embedded
// engine game is never mutated after construction.
type Position struct {
	moves []string
	g     *nchess.Game
}

// NewPosition returns the starting position.
func NewPosition() *Position {
	return &Position{g: nchess.NewGame()}
}

// FromMoves rebuilds a position by replaying UCI moves from the start.
func FromMoves(moves []string) (*Position, error) {
	g := nchess.NewGame()
	for i, mv := range moves {
		if err := g.PushNotationMove(strings.ToLower(strings.TrimSpace(mv)), nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("replay move %d (%s): %w", i, mv, err)
		}
	}
	return &Position{moves: append([]string(nil), moves...), g: g}, nil
}

func (p *Position) Kind() game.Kind { return game.KindChess }

// Moves returns the applied UCI move list.
func (p *Position) Moves() []string { return append([]string(nil), p.moves...) }

// FEN renders the current position.
func (p *Position) FEN() string { return p.g.FEN() }

func (p *Position) SeatToMove() game.Seat {
	if p.g.Position().Turn() == nchess.White {
		return 0
	}
	return 1
}

// Legal enumerates every legal move as a UCI action for the seat to move.
func (p *Position) Legal() []game.Action {
	if p.Terminal().Over {
		return nil
	}
	seat := p.SeatToMove()
	valid := p.g.ValidMoves()
	out := make([]game.Action, 0, len(valid))
	for _, mv := range valid {
		out = append(out, game.Action{Seat: seat, Chess: &game.ChessMove{UCI: mv.String()}})
	}
	return out
}

// LegalFrom lists the destination squares reachable from a square, for
// move-entry hints.
func (p *Position) LegalFrom(square string) []string {
	square = strings.ToLower(strings.TrimSpace(square))
	var out []string
	for _, a := range p.Legal() {
		uci := a.Chess.UCI
		if len(uci) >= 4 && uci[:2] == square {
			out = append(out, uci[2:4])
		}
	}
	return out
}

// Apply validates and plays one move. A four-character UCI string that
// reaches the back rank with a pawn promotes to a queen.
func (p *Position) Apply(a game.Action) (game.Position, error) {
	if a.Chess == nil {
		return nil, fmt.Errorf("%w: not a chess action", ErrIllegalMove)
	}
	if p.Terminal().Over {
		return nil, fmt.Errorf("%w: game is over", ErrIllegalMove)
	}
	if a.Seat != p.SeatToMove() {
		return nil, fmt.Errorf("%w: seat %d is not to move", ErrIllegalMove, a.Seat)
	}
	uci := strings.ToLower(strings.TrimSpace(a.Chess.UCI))
	if uci == "" {
		return nil, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}
	if _, err := (nchess.UCINotation{}).Decode(p.g.Position(), uci); err != nil {
		// bare promotion push like e7e8: default to queen
		if len(uci) == 4 {
			if _, qerr := (nchess.UCINotation{}).Decode(p.g.Position(), uci+"q"); qerr == nil {
				uci += "q"
			} else {
				return nil, fmt.Errorf("%w: %s", ErrIllegalMove, a.Chess.UCI)
			}
		} else {
			return nil, fmt.Errorf("%w: %s", ErrIllegalMove, a.Chess.UCI)
		}
	}
	next, err := FromMoves(append(append([]string(nil), p.moves...), uci))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, a.Chess.UCI)
	}
	return next, nil
}

// Terminal maps the engine outcome to a verdict. Threefold repetition and
// the fifty-move rule are claimed automatically.
func (p *Position) Terminal() game.Verdict {
	switch p.g.Outcome() {
	case nchess.WhiteWon:
		return game.Verdict{Over: true, Winner: 0, Reason: reasonFor(p.g.Method())}
	case nchess.BlackWon:
		return game.Verdict{Over: true, Winner: 1, Reason: reasonFor(p.g.Method())}
	case nchess.Draw:
		if p.g.Method() == nchess.Stalemate {
			return game.Verdict{Over: true, Draw: true, Reason: game.ReasonStalemate}
		}
		return game.Verdict{Over: true, Draw: true, Reason: game.ReasonDrawRule}
	}
	for _, m := range p.g.EligibleDraws() {
		if m == nchess.ThreefoldRepetition || m == nchess.FiftyMoveRule {
			return game.Verdict{Over: true, Draw: true, Reason: game.ReasonDrawRule}
		}
	}
	return game.Verdict{}
}

// SAN renders the last applied move in short algebraic notation.
func (p *Position) SAN() string {
	all := p.g.Moves()
	if len(all) == 0 {
		return ""
	}
	positions := p.g.Positions()
	last := all[len(all)-1]
	return nchess.AlgebraicNotation{}.Encode(positions[len(positions)-2], last)
}

func (p *Position) Describe(viewer game.Seat) string {
	v := p.Terminal()
	if v.Over {
		switch {
		case v.Draw:
			return fmt.Sprintf("draw (%s)  %s", v.Reason, p.g.FEN())
		case v.Winner == viewer:
			return fmt.Sprintf("you win (%s)  %s", v.Reason, p.g.FEN())
		default:
			return fmt.Sprintf("you lose (%s)  %s", v.Reason, p.g.FEN())
		}
	}
	toMove := "white"
	if p.SeatToMove() == 1 {
		toMove = "black"
	}
	return fmt.Sprintf("%s to move  %s", toMove, p.g.FEN())
}

func reasonFor(m nchess.Method) game.EndReason {
	switch m {
	case nchess.Checkmate:
		return game.ReasonCheckmate
	case nchess.Resignation:
		return game.ReasonResignation
	}
	return game.EndReason(strings.ToLower(m.String()))
}

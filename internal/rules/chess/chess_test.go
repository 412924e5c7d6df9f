package chess

import (
	"errors"
	"strings"
	"testing"

	"github.com/kapu/ledger-arcade/internal/game"
)

func mustApply(t *testing.T, p game.Position, uci string) game.Position {
	t.Helper()
	next, err := p.Apply(game.Action{Seat: p.SeatToMove(), Chess: &game.ChessMove{UCI: uci}})
	if err != nil {
		t.Fatalf("apply %s: %v", uci, err)
	}
	return next
}

func TestApplyAndTurnAlternation(t *testing.T) {
	var p game.Position = NewPosition()
	if p.SeatToMove() != 0 {
		t.Fatalf("white should move first")
	}
	p = mustApply(t, p, "e2e4")
	if p.SeatToMove() != 1 {
		t.Fatalf("black should move after e2e4")
	}
	p = mustApply(t, p, "e7e5")
	if v := p.Terminal(); v.Over {
		t.Fatalf("game should not be over: %+v", v)
	}
}

func TestApplyRejectsIllegal(t *testing.T) {
	p := NewPosition()
	cases := []game.Action{
		{Seat: 0, Chess: &game.ChessMove{UCI: "e2e5"}},   // pawn cannot jump three
		{Seat: 1, Chess: &game.ChessMove{UCI: "e7e5"}},   // wrong seat
		{Seat: 0, Chess: &game.ChessMove{UCI: "zzzz"}},   // nonsense
		{Seat: 0, Poker: &game.PokerMove{Verb: "check"}}, // wrong payload
		{Seat: 0, Chess: &game.ChessMove{UCI: ""}},       // empty
	}
	for _, a := range cases {
		if _, err := p.Apply(a); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("action %v: got %v, want ErrIllegalMove", a, err)
		}
	}
	// the rejected applies must not have touched the receiver
	if len(p.Moves()) != 0 {
		t.Fatalf("position mutated by rejected apply")
	}
}

func TestFoolsMate(t *testing.T) {
	var p game.Position = NewPosition()
	for _, mv := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		p = mustApply(t, p, mv)
	}
	v := p.Terminal()
	if !v.Over || v.Draw || v.Winner != 1 || v.Reason != game.ReasonCheckmate {
		t.Fatalf("fool's mate verdict = %+v", v)
	}
	if got := p.Legal(); len(got) != 0 {
		t.Fatalf("terminal position still offers %d moves", len(got))
	}
}

func TestPromotionDefaultsToQueen(t *testing.T) {
	// march the a-pawn through b7xa8 capture to promote
	var p game.Position = NewPosition()
	for _, mv := range []string{"a2a4", "h7h6", "a4a5", "h6h5", "a5a6", "h5h4", "a6b7", "h4h3"} {
		p = mustApply(t, p, mv)
	}
	p = mustApply(t, p, "b7a8") // bare push, promotion piece omitted
	cp := p.(*Position)
	moves := cp.Moves()
	if got := moves[len(moves)-1]; got != "b7a8q" {
		t.Fatalf("promotion move recorded as %q, want b7a8q", got)
	}
	if !strings.Contains(cp.FEN(), "Q") {
		t.Fatalf("no white queen after promotion: %s", cp.FEN())
	}
}

func TestFromMovesReplay(t *testing.T) {
	var p game.Position = NewPosition()
	moves := []string{"e2e4", "c7c5", "g1f3", "d7d6"}
	for _, mv := range moves {
		p = mustApply(t, p, mv)
	}
	replayed, err := FromMoves(moves)
	if err != nil {
		t.Fatalf("FromMoves: %v", err)
	}
	if replayed.FEN() != p.(*Position).FEN() {
		t.Fatalf("replay FEN mismatch:\n%s\n%s", replayed.FEN(), p.(*Position).FEN())
	}
	if _, err := FromMoves([]string{"e2e4", "e2e4"}); err == nil {
		t.Fatalf("expected replay error for illegal sequence")
	}
}

func TestLegalFrom(t *testing.T) {
	p := NewPosition()
	dests := p.LegalFrom("e2")
	if len(dests) != 2 {
		t.Fatalf("e2 destinations = %v, want e3 and e4", dests)
	}
	if len(p.LegalFrom("e5")) != 0 {
		t.Fatalf("empty square should have no moves")
	}
}

func TestEnPassantCapture(t *testing.T) {
	// 1.e4 a6 2.e5 d5 leaves the d-pawn capturable in passing
	var p game.Position = NewPosition()
	for _, mv := range []string{"e2e4", "a7a6", "e4e5", "d7d5"} {
		p = mustApply(t, p, mv)
	}
	found := false
	for _, a := range p.Legal() {
		if a.Chess != nil && a.Chess.UCI == "e5d6" {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("e5d6 en passant missing from legal moves")
	}
	p = mustApply(t, p, "e5d6")
	// white pawn lands on d6 and the captured pawn leaves d5
	if fen := p.(*Position).FEN(); !strings.Contains(fen, "p2P4/8/") {
		t.Fatalf("board after en passant looks wrong: %s", fen)
	}
}

func TestCastlingLegal(t *testing.T) {
	var p game.Position = NewPosition()
	for _, mv := range []string{"e2e4", "e7e5", "g1f3", "b8c6", "f1c4", "g8f6"} {
		p = mustApply(t, p, mv)
	}
	p = mustApply(t, p, "e1g1") // short castle
	// king on g1, rook on f1
	if !strings.Contains(p.(*Position).FEN(), "RK1") {
		t.Fatalf("castling not reflected in FEN: %s", p.(*Position).FEN())
	}
}

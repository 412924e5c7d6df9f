package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/kapu/ledger-arcade/internal/game"
	"github.com/kapu/ledger-arcade/internal/rules/blackjack"
	"github.com/kapu/ledger-arcade/internal/rules/chess"
)

type stubSuggester struct {
	text  string
	err   error
	calls int
}

func (s *stubSuggester) Suggest(context.Context, game.Position, []game.Action) (string, error) {
	s.calls++
	return s.text, s.err
}

func containsAction(t *testing.T, legal []game.Action, a game.Action) {
	t.Helper()
	for _, l := range legal {
		if l.Equal(a) {
			return
		}
	}
	t.Fatalf("decided action %s is not legal", a)
}

func TestDecideTakesExactSuggestion(t *testing.T) {
	pos := chess.NewPosition()
	sg := &stubSuggester{text: "  E2E4 \n"}
	d := NewDecider(sg, 1)

	a, err := d.Decide(context.Background(), pos)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if a.Chess == nil || a.Chess.UCI != "e2e4" {
		t.Fatalf("got %s, want e2e4", a)
	}
	if sg.calls != 1 {
		t.Fatalf("suggester consulted %d times", sg.calls)
	}
}

func TestDecideFallsBackOnIllegalSuggestion(t *testing.T) {
	pos := chess.NewPosition()
	sg := &stubSuggester{text: "e2e4 looks strong here"}
	d := NewDecider(sg, 1)

	a, err := d.Decide(context.Background(), pos)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	containsAction(t, pos.Legal(), a)
}

func TestDecideFallsBackOnSuggesterError(t *testing.T) {
	pos := chess.NewPosition()
	sg := &stubSuggester{err: errors.New("service down")}
	d := NewDecider(sg, 1)

	a, err := d.Decide(context.Background(), pos)
	if err != nil {
		t.Fatalf("Decide must swallow suggester errors, got %v", err)
	}
	containsAction(t, pos.Legal(), a)
}

func TestDecideFallbackIsSeeded(t *testing.T) {
	pos := chess.NewPosition()
	a := mustDecide(t, NewDecider(nil, 42), pos)
	b := mustDecide(t, NewDecider(nil, 42), pos)
	if !a.Equal(b) {
		t.Fatalf("same seed gave %s then %s", a, b)
	}
}

func mustDecide(t *testing.T, d *Decider, pos game.Position) game.Action {
	t.Helper()
	a, err := d.Decide(context.Background(), pos)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	return a
}

func TestDecideErrsWithoutLegalActions(t *testing.T) {
	var pos game.Position = chess.NewPosition()
	for i, uci := range []string{"f2f3", "e7e5", "g2g4", "d8h4"} {
		next, err := pos.Apply(game.Action{Seat: game.Seat(i % 2), Chess: &game.ChessMove{UCI: uci}})
		if err != nil {
			t.Fatalf("apply %s: %v", uci, err)
		}
		pos = next
	}
	if _, err := NewDecider(nil, 1).Decide(context.Background(), pos); err == nil {
		t.Fatalf("expected error on a finished position")
	}
}

// findHand scans shuffle seeds for a live single-seat round whose starting
// hand value satisfies pred.
func findHand(t *testing.T, pred func(v int) bool) *blackjack.Position {
	t.Helper()
	for seed := uint64(0); seed < 5000; seed++ {
		p := blackjack.New(blackjack.Config{Seats: 1}, seed)
		if p.Terminal().Over || p.SeatToMove() != 0 {
			continue
		}
		if v, _ := blackjack.Value(p.Hand(0)); pred(v) {
			return p
		}
	}
	t.Fatalf("no seed produced a matching hand")
	return nil
}

func TestBlackjackHeuristicHitsBelowSeventeen(t *testing.T) {
	pos := findHand(t, func(v int) bool { return v < 17 })
	a := mustDecide(t, NewDecider(nil, 1), pos)
	if a.Blackjack == nil || a.Blackjack.Verb != game.BlackjackHit {
		t.Fatalf("got %s, want hit", a)
	}
}

func TestBlackjackHeuristicStandsAtSeventeen(t *testing.T) {
	pos := findHand(t, func(v int) bool { return v >= 17 && v < 21 })
	a := mustDecide(t, NewDecider(nil, 1), pos)
	if a.Blackjack == nil || a.Blackjack.Verb != game.BlackjackStand {
		t.Fatalf("got %s, want stand", a)
	}
}

package poker

import (
	"errors"
	"testing"

	"github.com/kapu/ledger-arcade/internal/game"
)

func act(seat game.Seat, verb game.PokerVerb, amount int) game.Action {
	return game.Action{Seat: seat, Poker: &game.PokerMove{Verb: verb, Amount: amount}}
}

func mustApply(t *testing.T, p game.Position, a game.Action) game.Position {
	t.Helper()
	next, err := p.Apply(a)
	if err != nil {
		t.Fatalf("apply %s: %v", a, err)
	}
	return next
}

func TestNewPostsBlinds(t *testing.T) {
	p := New(Config{}, 7)
	if p.Pot() != 30 {
		t.Fatalf("pot = %d, want 30 after blinds", p.Pot())
	}
	if p.Stack(0) != 990 || p.Stack(1) != 980 {
		t.Fatalf("stacks = %d/%d, want 990/980", p.Stack(0), p.Stack(1))
	}
	if p.SeatToMove() != 0 {
		t.Fatalf("dealer (small blind) acts first preflop")
	}
	if p.ToCall() != 10 {
		t.Fatalf("to call = %d, want 10", p.ToCall())
	}
	if len(p.Hole(0)) != 2 || len(p.Hole(1)) != 2 || len(p.Community()) != 0 {
		t.Fatalf("bad deal: %v %v %v", p.Hole(0), p.Hole(1), p.Community())
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		cfg Config
		ok  bool
	}{
		{Config{}, true},
		{Config{StartStack: 1000, SmallBlind: 10, BigBlind: 20}, true},
		{Config{StartStack: 20, SmallBlind: 10, BigBlind: 20}, true},
		{Config{StartStack: 15, SmallBlind: 10, BigBlind: 20}, false}, // cannot post the big blind
		{Config{StartStack: 1000, SmallBlind: 30, BigBlind: 20}, false},
	}
	for _, c := range cases {
		if err := c.cfg.Validate(); (err == nil) != c.ok {
			t.Fatalf("Validate(%+v) = %v, want ok=%v", c.cfg, err, c.ok)
		}
	}
}

func TestDealDeterministic(t *testing.T) {
	a, b := New(Config{}, 99), New(Config{}, 99)
	for s := game.Seat(0); s <= 1; s++ {
		ha, hb := a.Hole(s), b.Hole(s)
		if ha[0] != hb[0] || ha[1] != hb[1] {
			t.Fatalf("seat %d holes differ for equal seed", s)
		}
	}
}

func TestFoldEndsHand(t *testing.T) {
	p := New(Config{}, 7)
	q := mustApply(t, p, act(0, game.PokerFold, 0))
	v := q.Terminal()
	if !v.Over || v.Draw || v.Winner != 1 || v.Reason != game.ReasonFold {
		t.Fatalf("fold verdict = %+v", v)
	}
	// folder loses the small blind only
	qp := q.(*Position)
	if qp.Stack(0) != 990 || qp.Stack(1) != 1010 {
		t.Fatalf("stacks after fold = %d/%d, want 990/1010", qp.Stack(0), qp.Stack(1))
	}
	if _, err := q.Apply(act(1, game.PokerCheck, 0)); !errors.Is(err, ErrIllegalAction) {
		t.Fatalf("apply after fold: %v", err)
	}
}

func TestStreetProgression(t *testing.T) {
	var p game.Position = New(Config{}, 7)
	p = mustApply(t, p, act(0, game.PokerCall, 0))
	p = mustApply(t, p, act(1, game.PokerCheck, 0))
	pp := p.(*Position)
	if pp.Street() != Flop || len(pp.Community()) != 3 {
		t.Fatalf("after preflop: street=%s board=%d", pp.Street(), len(pp.Community()))
	}
	if p.SeatToMove() != 1 {
		t.Fatalf("out of position acts first post-flop")
	}
	p = mustApply(t, p, act(1, game.PokerCheck, 0))
	p = mustApply(t, p, act(0, game.PokerCheck, 0))
	if pp = p.(*Position); pp.Street() != Turn || len(pp.Community()) != 4 {
		t.Fatalf("after flop: street=%s board=%d", pp.Street(), len(pp.Community()))
	}
	p = mustApply(t, p, act(1, game.PokerCheck, 0))
	p = mustApply(t, p, act(0, game.PokerCheck, 0))
	p = mustApply(t, p, act(1, game.PokerCheck, 0))
	p = mustApply(t, p, act(0, game.PokerCheck, 0))
	pp = p.(*Position)
	if pp.Street() != Showdown || len(pp.Community()) != 5 {
		t.Fatalf("after river: street=%s board=%d", pp.Street(), len(pp.Community()))
	}
	v := p.Terminal()
	if !v.Over || v.Reason != game.ReasonShowdown {
		t.Fatalf("showdown verdict = %+v", v)
	}
	// chips conserved
	if total := pp.Stack(0) + pp.Stack(1); total != 2000 {
		t.Fatalf("chips not conserved: %d", total)
	}
}

func TestRaiseAndGuards(t *testing.T) {
	var p game.Position = New(Config{}, 7)
	if _, err := p.Apply(act(0, game.PokerCheck, 0)); !errors.Is(err, ErrIllegalAction) {
		t.Fatalf("check facing the big blind: %v", err)
	}
	if _, err := p.Apply(act(1, game.PokerCall, 0)); !errors.Is(err, ErrIllegalAction) {
		t.Fatalf("out-of-turn call: %v", err)
	}
	p = mustApply(t, p, act(0, game.PokerRaise, 40))
	pp := p.(*Position)
	if pp.Pot() != 80 || pp.ToCall() != 40 {
		t.Fatalf("after raise: pot=%d toCall=%d, want 80/40", pp.Pot(), pp.ToCall())
	}
	if _, err := p.Apply(act(1, game.PokerRaise, 5000)); !errors.Is(err, ErrIllegalAction) {
		t.Fatalf("raise beyond stack: %v", err)
	}
	p = mustApply(t, p, act(1, game.PokerCall, 0))
	if pp = p.(*Position); pp.Street() != Flop {
		t.Fatalf("call should close the street, got %s", pp.Street())
	}
}

func TestAllInRunsBoardOut(t *testing.T) {
	var p game.Position = New(Config{}, 7)
	p = mustApply(t, p, act(0, game.PokerAllIn, 0))
	p = mustApply(t, p, act(1, game.PokerAllIn, 0))
	pp := p.(*Position)
	if len(pp.Community()) != 5 {
		t.Fatalf("board not run out: %d cards", len(pp.Community()))
	}
	v := p.Terminal()
	if !v.Over {
		t.Fatalf("all-in hand did not finish")
	}
	if total := pp.Stack(0) + pp.Stack(1); total != 2000 {
		t.Fatalf("chips not conserved: %d", total)
	}
	if !v.Draw {
		if win, lose := pp.Stack(v.Winner), pp.Stack(v.Winner.Other()); win != 2000 || lose != 0 {
			t.Fatalf("winner/loser stacks = %d/%d", win, lose)
		}
	}
}

func TestShortAllInRefund(t *testing.T) {
	// seat 1 covers; seat 0 shoves short after a big raise by seat 1
	var p game.Position = New(Config{StartStack: 1000}, 7)
	p = mustApply(t, p, act(0, game.PokerCall, 0))  // 980 behind each
	p = mustApply(t, p, act(1, game.PokerCheck, 0)) // flop
	p = mustApply(t, p, act(1, game.PokerRaise, 500))
	p = mustApply(t, p, act(0, game.PokerRaise, 480)) // all of seat 0's 980
	pp := p.(*Position)
	if pp.Stack(0) != 0 {
		t.Fatalf("seat 0 should be all-in, stack=%d", pp.Stack(0))
	}
	p = mustApply(t, p, act(1, game.PokerAllIn, 0)) // 480 to call with 480 behind
	pp = p.(*Position)
	if !p.Terminal().Over {
		t.Fatalf("hand should resolve once both are all-in")
	}
	if total := pp.Stack(0) + pp.Stack(1); total != 2000 {
		t.Fatalf("chips not conserved: %d", total)
	}
}

func TestLegalEnumeration(t *testing.T) {
	p := New(Config{}, 7)
	legal := p.Legal()
	verbs := map[game.PokerVerb]bool{}
	for _, a := range legal {
		if a.Seat != 0 {
			t.Fatalf("legal action for wrong seat: %v", a)
		}
		verbs[a.Poker.Verb] = true
	}
	for _, want := range []game.PokerVerb{game.PokerFold, game.PokerCall, game.PokerRaise, game.PokerAllIn} {
		if !verbs[want] {
			t.Fatalf("missing %s in %v", want, legal)
		}
	}
	if verbs[game.PokerCheck] {
		t.Fatalf("check offered while facing the blind")
	}
}

package blackjack

import (
	"errors"
	"testing"

	"github.com/kapu/ledger-arcade/internal/game"
)

func act(seat game.Seat, verb game.BlackjackVerb) game.Action {
	return game.Action{Seat: seat, Blackjack: &game.BlackjackMove{Verb: verb}}
}

// shoe replays the deal order: cards come off the end of the shuffled shoe.
type shoe struct {
	cards []game.Card
}

func newShoe(seed uint64) *shoe {
	return &shoe{cards: game.ShuffledDeck(6, seed)}
}

func (s *shoe) draw() game.Card {
	c := s.cards[len(s.cards)-1]
	s.cards = s.cards[:len(s.cards)-1]
	return c
}

// findSeed scans for a seed whose opening deal satisfies pred, so tests can
// pin down a scenario without hardcoding cards.
func findSeed(t *testing.T, seats int, pred func(hands [][]game.Card, dealer []game.Card) bool) uint64 {
	t.Helper()
	for seed := uint64(0); seed < 5000; seed++ {
		sh := newShoe(seed)
		hands := make([][]game.Card, seats)
		for i := range hands {
			hands[i] = []game.Card{sh.draw(), sh.draw()}
		}
		dealer := []game.Card{sh.draw(), sh.draw()}
		if pred(hands, dealer) {
			return seed
		}
	}
	t.Fatalf("no seed found for scenario")
	return 0
}

func TestValue(t *testing.T) {
	cases := []struct {
		ranks []uint8
		value int
		soft  bool
	}{
		{[]uint8{14, 13}, 21, true},
		{[]uint8{14, 6, 8}, 15, false},
		{[]uint8{14, 14, 9}, 21, true},
		{[]uint8{10, 11, 12}, 30, false},
		{[]uint8{14, 6}, 17, true},
		{[]uint8{2, 3}, 5, false},
	}
	for _, c := range cases {
		cards := make([]game.Card, len(c.ranks))
		for i, r := range c.ranks {
			cards[i] = game.Card{Rank: r, Suit: game.Spades}
		}
		v, soft := Value(cards)
		if v != c.value || soft != c.soft {
			t.Fatalf("Value(%v) = %d/%v, want %d/%v", c.ranks, v, soft, c.value, c.soft)
		}
	}
}

func TestIsNatural(t *testing.T) {
	ak := []game.Card{{Rank: 14, Suit: game.Clubs}, {Rank: 13, Suit: game.Hearts}}
	if !IsNatural(ak) {
		t.Fatalf("A+K should be natural")
	}
	three := []game.Card{{Rank: 7, Suit: game.Clubs}, {Rank: 7, Suit: game.Hearts}, {Rank: 7, Suit: game.Spades}}
	if IsNatural(three) {
		t.Fatalf("three-card 21 is not a natural")
	}
}

func TestDealOrder(t *testing.T) {
	seed := uint64(11)
	p := New(Config{Seats: 2}, seed)
	sh := newShoe(seed)
	for s := game.Seat(0); s < 2; s++ {
		want := []game.Card{sh.draw(), sh.draw()}
		got := p.Hand(s)
		if got[0] != want[0] || got[1] != want[1] {
			t.Fatalf("seat %d dealt %v, want %v", s, got, want)
		}
	}
	up := p.DealerUp()
	if want := sh.draw(); !p.Terminal().Over && up[0] != want {
		t.Fatalf("dealer up card %v, want %v", up[0], want)
	}
}

func TestDealerHoleHiddenUntilDone(t *testing.T) {
	seed := findSeed(t, 1, func(hands [][]game.Card, dealer []game.Card) bool {
		v, _ := Value(hands[0])
		return v < 21 && !IsNatural(dealer)
	})
	var p game.Position = New(Config{}, seed)
	bp := p.(*Position)
	if len(bp.DealerUp()) != 1 {
		t.Fatalf("dealer hole card visible during play")
	}
	next, err := p.Apply(act(0, game.BlackjackStand))
	if err != nil {
		t.Fatalf("stand: %v", err)
	}
	if got := next.(*Position).DealerUp(); len(got) < 2 {
		t.Fatalf("dealer hand hidden after resolution: %v", got)
	}
}

func TestHitUntilBust(t *testing.T) {
	seed := findSeed(t, 1, func(hands [][]game.Card, dealer []game.Card) bool {
		v, _ := Value(hands[0])
		return v >= 12 && v < 21 && !IsNatural(dealer)
	})
	var p game.Position = New(Config{}, seed)
	for !p.Terminal().Over {
		if p.SeatToMove() != 0 {
			break
		}
		next, err := p.Apply(act(0, game.BlackjackHit))
		if err != nil {
			t.Fatalf("hit: %v", err)
		}
		p = next
		if v, _ := Value(p.(*Position).Hand(0)); v > 21 {
			break
		}
	}
	bp := p.(*Position)
	if v, _ := Value(bp.Hand(0)); v > 21 {
		if bp.Result(0) != OutcomeBust {
			t.Fatalf("bust hand result = %s", bp.Result(0))
		}
		if bp.Chips(0) != 900 {
			t.Fatalf("bust should forfeit the bet, chips=%d", bp.Chips(0))
		}
	}
}

func TestNaturalPaysThreeToTwo(t *testing.T) {
	seed := findSeed(t, 1, func(hands [][]game.Card, dealer []game.Card) bool {
		return IsNatural(hands[0]) && !IsNatural(dealer)
	})
	p := New(Config{}, seed)
	if !p.Terminal().Over {
		t.Fatalf("a dealt natural should resolve immediately")
	}
	if p.Result(0) != OutcomeNatural {
		t.Fatalf("result = %s, want blackjack", p.Result(0))
	}
	// 1000 - 100 bet + 100 back + 150 winnings
	if p.Chips(0) != 1150 {
		t.Fatalf("chips = %d, want 1150", p.Chips(0))
	}
	v := p.Terminal()
	if v.Draw || v.Winner != 0 || v.Reason != game.ReasonSettlement {
		t.Fatalf("verdict = %+v", v)
	}
}

func TestDealerNaturalBeatsTwentyOne(t *testing.T) {
	seed := findSeed(t, 1, func(hands [][]game.Card, dealer []game.Card) bool {
		v, _ := Value(hands[0])
		return v < 21 && IsNatural(dealer)
	})
	var p game.Position = New(Config{}, seed)
	next, err := p.Apply(act(0, game.BlackjackStand))
	if err != nil {
		t.Fatalf("stand: %v", err)
	}
	bp := next.(*Position)
	if bp.Result(0) != OutcomeLose {
		t.Fatalf("result vs dealer natural = %s", bp.Result(0))
	}
	if bp.Chips(0) != 900 {
		t.Fatalf("chips = %d, want 900", bp.Chips(0))
	}
}

func TestDealerHitsSoftSeventeen(t *testing.T) {
	seed := findSeed(t, 1, func(hands [][]game.Card, dealer []game.Card) bool {
		v, soft := Value(dealer)
		hv, _ := Value(hands[0])
		return v == 17 && soft && hv < 21 && !IsNatural(dealer)
	})
	var p game.Position = New(Config{}, seed)
	next, err := p.Apply(act(0, game.BlackjackStand))
	if err != nil {
		t.Fatalf("stand: %v", err)
	}
	dealer := next.(*Position).DealerUp()
	if len(dealer) == 2 {
		t.Fatalf("dealer stood on soft 17: %v", dealer)
	}
}

func TestDoubleDown(t *testing.T) {
	seed := findSeed(t, 1, func(hands [][]game.Card, dealer []game.Card) bool {
		v, _ := Value(hands[0])
		return v >= 9 && v <= 11 && !IsNatural(dealer)
	})
	var p game.Position = New(Config{}, seed)
	next, err := p.Apply(act(0, game.BlackjackDouble))
	if err != nil {
		t.Fatalf("double: %v", err)
	}
	bp := next.(*Position)
	if len(bp.Hand(0)) != 3 {
		t.Fatalf("double deals exactly one card, got %d", len(bp.Hand(0)))
	}
	if !next.Terminal().Over {
		t.Fatalf("seat is done after doubling")
	}
	// settled chips reflect a 200 bet
	switch bp.Result(0) {
	case OutcomeWin:
		if bp.Chips(0) != 1200 {
			t.Fatalf("doubled win chips = %d, want 1200", bp.Chips(0))
		}
	case OutcomeLose, OutcomeBust:
		if bp.Chips(0) != 800 {
			t.Fatalf("doubled loss chips = %d, want 800", bp.Chips(0))
		}
	case OutcomePush:
		if bp.Chips(0) != 1000 {
			t.Fatalf("doubled push chips = %d, want 1000", bp.Chips(0))
		}
	}
	// double is first-two-cards only
	if _, err := next.Apply(act(0, game.BlackjackDouble)); !errors.Is(err, ErrIllegalAction) {
		t.Fatalf("double after resolution: %v", err)
	}
}

func TestMultiSeatTurnOrder(t *testing.T) {
	seed := findSeed(t, 3, func(hands [][]game.Card, dealer []game.Card) bool {
		for _, h := range hands {
			if IsNatural(h) {
				return false
			}
		}
		return !IsNatural(dealer)
	})
	var p game.Position = New(Config{Seats: 3}, seed)
	for want := game.Seat(0); want < 3; want++ {
		if p.SeatToMove() != want {
			t.Fatalf("seat to move = %d, want %d", p.SeatToMove(), want)
		}
		wrong := (want + 1) % 3
		if _, err := p.Apply(act(wrong, game.BlackjackHit)); !errors.Is(err, ErrIllegalAction) {
			t.Fatalf("out-of-turn action for seat %d: %v", wrong, err)
		}
		next, err := p.Apply(act(want, game.BlackjackStand))
		if err != nil {
			t.Fatalf("stand seat %d: %v", want, err)
		}
		p = next
	}
	if !p.Terminal().Over {
		t.Fatalf("round should resolve after every seat stands")
	}
	bp := p.(*Position)
	for s := game.Seat(0); s < 3; s++ {
		if bp.Result(s) == OutcomePending {
			t.Fatalf("seat %d unsettled", s)
		}
	}
}

// Package blackjack implements a multi-seat blackjack round as an immutable
// Position: one human seat, a fixed number of house-driven bot seats, and a
// dealer who resolves automatically once every player seat is done.
package blackjack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kapu/ledger-arcade/internal/game"
)

var ErrIllegalAction = errors.New("illegal blackjack action")

const deckCount = 6

type seatStatus uint8

const (
	statusPlaying seatStatus = iota
	statusStood
	statusBust
	statusNatural
	statusDoubled
)

// outcome of one seat after settlement.
type Outcome string

const (
	OutcomeWin     Outcome = "win"
	OutcomeLose    Outcome = "lose"
	OutcomePush    Outcome = "push"
	OutcomeNatural Outcome = "blackjack"
	OutcomeBust    Outcome = "bust"
	OutcomePending Outcome = ""
)

// Config fixes the table. Zero values fall back to defaults.
type Config struct {
	Seats int // player seats including the human at seat 0
	Bet   int
	Chips int
}

func (c Config) withDefaults() Config {
	if c.Seats <= 0 {
		c.Seats = 1
	}
	if c.Bet <= 0 {
		c.Bet = 100
	}
	if c.Chips <= 0 {
		c.Chips = 1000
	}
	return c
}

type seat struct {
	cards  []game.Card
	bet    int
	chips  int
	status seatStatus
	result Outcome
}

// Position is one round mid-play.
type Position struct {
	cfg    Config
	deck   []game.Card // dealt from the end
	seats  []seat
	dealer []game.Card

	done   bool
	result game.Verdict
}

// New shuffles a six-deck shoe from seed, deals two cards to every player
// seat in order and then to the dealer, and flags naturals before any
// hit/stand decisions.
func New(cfg Config, seed uint64) *Position {
	cfg = cfg.withDefaults()
	p := &Position{
		cfg:   cfg,
		deck:  game.ShuffledDeck(deckCount, seed),
		seats: make([]seat, cfg.Seats),
	}
	for i := range p.seats {
		p.seats[i] = seat{
			cards: []game.Card{p.draw(), p.draw()},
			bet:   cfg.Bet,
			chips: cfg.Chips - cfg.Bet,
		}
	}
	p.dealer = []game.Card{p.draw(), p.draw()}
	for i := range p.seats {
		if v, _ := Value(p.seats[i].cards); v == 21 {
			p.seats[i].status = statusNatural
		}
	}
	p.maybeResolve()
	return p
}

func (p *Position) draw() game.Card {
	c := p.deck[len(p.deck)-1]
	p.deck = p.deck[:len(p.deck)-1]
	return c
}

func (p *Position) clone() *Position {
	q := *p
	q.deck = append([]game.Card(nil), p.deck...)
	q.dealer = append([]game.Card(nil), p.dealer...)
	q.seats = make([]seat, len(p.seats))
	for i, s := range p.seats {
		s.cards = append([]game.Card(nil), s.cards...)
		q.seats[i] = s
	}
	return &q
}

// Value computes a hand's blackjack value. Aces count 11 and reduce to 1
// one at a time while the total exceeds 21; soft reports whether an ace
// still counts as 11.
func Value(cards []game.Card) (value int, soft bool) {
	aces := 0
	for _, c := range cards {
		switch {
		case c.Rank >= 11 && c.Rank <= 13:
			value += 10
		case c.Rank == 14:
			aces++
			value += 11
		default:
			value += int(c.Rank)
		}
	}
	for value > 21 && aces > 0 {
		value -= 10
		aces--
	}
	return value, aces > 0
}

// IsNatural reports a two-card 21.
func IsNatural(cards []game.Card) bool {
	if len(cards) != 2 {
		return false
	}
	v, _ := Value(cards)
	return v == 21
}

func (p *Position) Kind() game.Kind { return game.KindBlackjack }

func (p *Position) SeatToMove() game.Seat {
	if p.done {
		return game.NoSeat
	}
	for i := range p.seats {
		if p.seats[i].status == statusPlaying {
			return game.Seat(i)
		}
	}
	return game.NoSeat
}

// Seats returns the number of player seats.
func (p *Position) Seats() int { return len(p.seats) }

// Hand returns a seat's cards.
func (p *Position) Hand(s game.Seat) []game.Card {
	return append([]game.Card(nil), p.seats[s].cards...)
}

// DealerUp returns the dealer's visible card while play is open, or the
// whole dealer hand once resolved.
func (p *Position) DealerUp() []game.Card {
	if p.done {
		return append([]game.Card(nil), p.dealer...)
	}
	return []game.Card{p.dealer[0]}
}

// Result returns a seat's settled outcome, empty while the round runs.
func (p *Position) Result(s game.Seat) Outcome { return p.seats[s].result }

// Chips returns a seat's chips after its bet (and settlement, once done).
func (p *Position) Chips(s game.Seat) int { return p.seats[s].chips }

func (p *Position) Legal() []game.Action {
	active := p.SeatToMove()
	if active == game.NoSeat {
		return nil
	}
	s := p.seats[active]
	out := []game.Action{
		{Seat: active, Blackjack: &game.BlackjackMove{Verb: game.BlackjackHit}},
		{Seat: active, Blackjack: &game.BlackjackMove{Verb: game.BlackjackStand}},
	}
	if len(s.cards) == 2 && s.chips >= s.bet {
		out = append(out, game.Action{Seat: active, Blackjack: &game.BlackjackMove{Verb: game.BlackjackDouble}})
	}
	return out
}

func (p *Position) Apply(a game.Action) (game.Position, error) {
	if a.Blackjack == nil {
		return nil, fmt.Errorf("%w: not a blackjack action", ErrIllegalAction)
	}
	active := p.SeatToMove()
	if active == game.NoSeat {
		return nil, fmt.Errorf("%w: round is over", ErrIllegalAction)
	}
	if a.Seat != active {
		return nil, fmt.Errorf("%w: seat %d is not to act", ErrIllegalAction, a.Seat)
	}

	q := p.clone()
	s := &q.seats[active]
	switch a.Blackjack.Verb {
	case game.BlackjackHit:
		s.cards = append(s.cards, q.draw())
		if v, _ := Value(s.cards); v > 21 {
			s.status = statusBust
			s.result = OutcomeBust
		}
	case game.BlackjackStand:
		s.status = statusStood
	case game.BlackjackDouble:
		if len(s.cards) != 2 {
			return nil, fmt.Errorf("%w: double allowed only on the first two cards", ErrIllegalAction)
		}
		if s.chips < s.bet {
			return nil, fmt.Errorf("%w: %d chips cannot cover the doubled bet", ErrIllegalAction, s.chips)
		}
		s.chips -= s.bet
		s.bet *= 2
		s.cards = append(s.cards, q.draw())
		if v, _ := Value(s.cards); v > 21 {
			s.status = statusBust
			s.result = OutcomeBust
		} else {
			s.status = statusDoubled
		}
	default:
		return nil, fmt.Errorf("%w: unknown verb %q", ErrIllegalAction, a.Blackjack.Verb)
	}

	q.maybeResolve()
	return q, nil
}

// maybeResolve runs the dealer and settles once no seat is still playing.
func (p *Position) maybeResolve() {
	for i := range p.seats {
		if p.seats[i].status == statusPlaying {
			return
		}
	}
	p.playDealer()
	p.settle()
}

// playDealer draws to the dealer hand while its value is below 17 or is a
// soft 17.
func (p *Position) playDealer() {
	for {
		v, soft := Value(p.dealer)
		if v < 17 || (v == 17 && soft) {
			p.dealer = append(p.dealer, p.draw())
			continue
		}
		return
	}
}

func (p *Position) settle() {
	dealerV, _ := Value(p.dealer)
	dealerBust := dealerV > 21
	dealerNatural := IsNatural(p.dealer)

	for i := range p.seats {
		s := &p.seats[i]
		if s.status == statusBust {
			continue
		}
		v, _ := Value(s.cards)
		switch {
		case s.status == statusNatural && !dealerNatural:
			s.result = OutcomeNatural
			s.chips += s.bet + s.bet*3/2 // 3:2
		case dealerBust:
			s.result = OutcomeWin
			s.chips += 2 * s.bet
		case dealerNatural && s.status != statusNatural:
			s.result = OutcomeLose
		case v > dealerV:
			s.result = OutcomeWin
			s.chips += 2 * s.bet
		case v < dealerV:
			s.result = OutcomeLose
		default:
			s.result = OutcomePush
			s.chips += s.bet
		}
	}

	p.done = true
	switch p.seats[0].result {
	case OutcomeWin, OutcomeNatural:
		p.result = game.Verdict{Over: true, Winner: 0, Reason: game.ReasonSettlement}
	case OutcomePush:
		p.result = game.Verdict{Over: true, Draw: true, Reason: game.ReasonSettlement}
	default:
		p.result = game.Verdict{Over: true, Winner: game.DealerSeat, Reason: game.ReasonSettlement}
	}
}

func (p *Position) Terminal() game.Verdict {
	if p.done {
		return p.result
	}
	return game.Verdict{}
}

func (p *Position) Describe(viewer game.Seat) string {
	var b strings.Builder
	for i := range p.seats {
		v, _ := Value(p.seats[i].cards)
		tag := ""
		if game.Seat(i) == viewer {
			tag = "*"
		}
		fmt.Fprintf(&b, "seat%d%s %s (%d", i, tag, cardsString(p.seats[i].cards), v)
		if r := p.seats[i].result; r != OutcomePending {
			fmt.Fprintf(&b, " %s", r)
		}
		b.WriteString(")  ")
	}
	up := p.DealerUp()
	if p.done {
		v, _ := Value(p.dealer)
		fmt.Fprintf(&b, "dealer %s (%d)", cardsString(up), v)
	} else {
		fmt.Fprintf(&b, "dealer %s ?", cardsString(up))
	}
	return b.String()
}

func cardsString(cards []game.Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

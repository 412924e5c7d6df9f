// Package poker implements a heads-up Texas Hold'em hand as an immutable
// Position. Seat 0 is the dealer and posts the small blind; seat 1 posts
// the big blind. The deal is fully determined by the session seed, so two
// clients replaying the same action log hold identical states.
package poker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kapu/ledger-arcade/internal/game"
)

var ErrIllegalAction = errors.New("illegal poker action")

type Stage string

const (
	PreFlop  Stage = "preflop"
	Flop     Stage = "flop"
	Turn     Stage = "turn"
	River    Stage = "river"
	Showdown Stage = "showdown"
)

// Config fixes the stakes of a hand. Zero values fall back to defaults.
type Config struct {
	StartStack int
	SmallBlind int
	BigBlind   int
}

func (c Config) withDefaults() Config {
	if c.StartStack <= 0 {
		c.StartStack = 1000
	}
	if c.SmallBlind <= 0 {
		c.SmallBlind = 10
	}
	if c.BigBlind <= 0 {
		c.BigBlind = 2 * c.SmallBlind
	}
	return c
}

// Validate rejects stakes the stacks cannot post. New assumes a config
// that passed here.
func (c Config) Validate() error {
	c = c.withDefaults()
	if c.BigBlind < c.SmallBlind {
		return fmt.Errorf("big blind %d below small blind %d", c.BigBlind, c.SmallBlind)
	}
	if c.StartStack < c.BigBlind {
		return fmt.Errorf("start stack %d cannot post the %d big blind", c.StartStack, c.BigBlind)
	}
	return nil
}

// Position is one hand mid-play. All slices are owned by the value and
// copied on Apply.
type Position struct {
	cfg  Config
	deck []game.Card // dealt from the end

	holes     [2][]game.Card
	community []game.Card

	pot        int
	currentBet int
	bets       [2]int
	stacks     [2]int
	streetActs [2]bool
	folded     [2]int8 // 0 no, 1 yes
	allIn      [2]bool

	stage     Stage
	active    game.Seat
	lastActor game.Seat

	done   bool
	result game.Verdict
}

// New deals a fresh hand from seed and posts the blinds.
func New(cfg Config, seed uint64) *Position {
	cfg = cfg.withDefaults()
	deck := game.ShuffledDeck(1, seed)
	p := &Position{
		cfg:    cfg,
		deck:   deck,
		stage:  PreFlop,
		active: 0,
	}
	p.holes[0] = []game.Card{p.draw(), p.draw()}
	p.holes[1] = []game.Card{p.draw(), p.draw()}
	p.bets = [2]int{cfg.SmallBlind, cfg.BigBlind}
	p.stacks = [2]int{cfg.StartStack - cfg.SmallBlind, cfg.StartStack - cfg.BigBlind}
	p.pot = cfg.SmallBlind + cfg.BigBlind
	p.currentBet = cfg.BigBlind
	p.lastActor = 1
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
	q.holes[0] = append([]game.Card(nil), p.holes[0]...)
	q.holes[1] = append([]game.Card(nil), p.holes[1]...)
	q.community = append([]game.Card(nil), p.community...)
	return &q
}

func (p *Position) Kind() game.Kind { return game.KindPoker }

func (p *Position) SeatToMove() game.Seat {
	if p.done {
		return game.NoSeat
	}
	return p.active
}

// Stage reports the current street.
func (p *Position) Street() Stage { return p.stage }

// Pot returns the chips in the middle.
func (p *Position) Pot() int { return p.pot }

// Stack returns a seat's remaining chips.
func (p *Position) Stack(s game.Seat) int { return p.stacks[s] }

// Hole returns a seat's hole cards.
func (p *Position) Hole(s game.Seat) []game.Card {
	return append([]game.Card(nil), p.holes[s]...)
}

// Community returns the board cards dealt so far.
func (p *Position) Community() []game.Card {
	return append([]game.Card(nil), p.community...)
}

// ToCall returns what the active seat owes to match the current bet.
func (p *Position) ToCall() int {
	return p.currentBet - p.bets[p.active]
}

// Legal enumerates the active seat's options. Raise amounts are open-ended;
// the enumeration carries the minimum raise as its representative.
func (p *Position) Legal() []game.Action {
	if p.done {
		return nil
	}
	seat := p.active
	toCall := p.ToCall()
	out := []game.Action{{Seat: seat, Poker: &game.PokerMove{Verb: game.PokerFold}}}
	if toCall == 0 {
		out = append(out, game.Action{Seat: seat, Poker: &game.PokerMove{Verb: game.PokerCheck}})
	} else {
		out = append(out, game.Action{Seat: seat, Poker: &game.PokerMove{Verb: game.PokerCall}})
	}
	if p.stacks[seat] > toCall+p.cfg.BigBlind {
		out = append(out, game.Action{Seat: seat, Poker: &game.PokerMove{Verb: game.PokerRaise, Amount: p.cfg.BigBlind}})
	}
	if p.stacks[seat] > 0 {
		out = append(out, game.Action{Seat: seat, Poker: &game.PokerMove{Verb: game.PokerAllIn}})
	}
	return out
}

// Apply plays one betting action for the active seat.
func (p *Position) Apply(a game.Action) (game.Position, error) {
	if a.Poker == nil {
		return nil, fmt.Errorf("%w: not a poker action", ErrIllegalAction)
	}
	if p.done {
		return nil, fmt.Errorf("%w: hand is over", ErrIllegalAction)
	}
	if a.Seat != p.active {
		return nil, fmt.Errorf("%w: seat %d is not to act", ErrIllegalAction, a.Seat)
	}

	q := p.clone()
	seat := a.Seat
	toCall := q.currentBet - q.bets[seat]

	switch a.Poker.Verb {
	case game.PokerFold:
		q.folded[seat] = 1
		q.finish(game.Verdict{Over: true, Winner: seat.Other(), Reason: game.ReasonFold})
		q.stacks[seat.Other()] += q.pot
		return q, nil
	case game.PokerCheck:
		if toCall != 0 {
			return nil, fmt.Errorf("%w: cannot check facing a bet of %d", ErrIllegalAction, toCall)
		}
	case game.PokerCall:
		if toCall <= 0 {
			return nil, fmt.Errorf("%w: nothing to call", ErrIllegalAction)
		}
		if toCall >= q.stacks[seat] {
			// call for less: the uncalled excess comes back at round end
			q.pot += q.stacks[seat]
			q.bets[seat] += q.stacks[seat]
			q.stacks[seat] = 0
			q.allIn[seat] = true
		} else {
			q.pot += toCall
			q.stacks[seat] -= toCall
			q.bets[seat] = q.currentBet
		}
	case game.PokerRaise:
		raise := a.Poker.Amount
		if raise <= 0 {
			raise = q.cfg.BigBlind
		}
		total := toCall + raise
		if total > q.stacks[seat] {
			return nil, fmt.Errorf("%w: raise needs %d chips, have %d", ErrIllegalAction, total, q.stacks[seat])
		}
		q.pot += total
		q.stacks[seat] -= total
		q.bets[seat] = q.currentBet + raise
		q.currentBet = q.bets[seat]
		if q.stacks[seat] == 0 {
			q.allIn[seat] = true
		}
	case game.PokerAllIn:
		chips := q.stacks[seat]
		if chips <= 0 {
			return nil, fmt.Errorf("%w: no chips behind", ErrIllegalAction)
		}
		q.pot += chips
		q.bets[seat] += chips
		q.stacks[seat] = 0
		q.allIn[seat] = true
		if q.bets[seat] > q.currentBet {
			q.currentBet = q.bets[seat]
		}
	default:
		return nil, fmt.Errorf("%w: unknown verb %q", ErrIllegalAction, a.Poker.Verb)
	}

	q.streetActs[seat] = true
	q.lastActor = seat

	if q.roundComplete() {
		q.settleShortAllIn()
		q.advance()
	} else {
		q.active = seat.Other()
	}
	return q, nil
}

func (p *Position) roundComplete() bool {
	if p.allIn[0] && p.allIn[1] {
		return true
	}
	for s := game.Seat(0); s <= 1; s++ {
		o := s.Other()
		if p.allIn[s] && !p.allIn[o] {
			// a lone shove keeps the round open until the covering
			// seat has matched it or called for less
			return p.streetActs[o] && p.bets[o] >= p.bets[s]
		}
	}
	return p.bets[0] == p.bets[1] && p.streetActs[0] && p.streetActs[1]
}

// settleShortAllIn refunds the uncalled excess when one seat is all-in for
// less than the other's street bet.
func (p *Position) settleShortAllIn() {
	for s := game.Seat(0); s <= 1; s++ {
		o := s.Other()
		if p.allIn[s] && p.bets[o] > p.bets[s] {
			excess := p.bets[o] - p.bets[s]
			if excess > p.pot {
				excess = p.pot
			}
			p.pot -= excess
			p.stacks[o] += excess
			p.bets[o] = p.bets[s]
		}
	}
}

func (p *Position) advance() {
	p.bets = [2]int{0, 0}
	p.currentBet = 0
	p.streetActs = [2]bool{false, false}

	for {
		switch p.stage {
		case PreFlop:
			p.stage = Flop
			p.community = append(p.community, p.draw(), p.draw(), p.draw())
		case Flop:
			p.stage = Turn
			p.community = append(p.community, p.draw())
		case Turn:
			p.stage = River
			p.community = append(p.community, p.draw())
		case River:
			p.stage = Showdown
			p.showdown()
			return
		}
		// with a seat all-in there is no more betting: run the board out
		if !p.allIn[0] && !p.allIn[1] {
			p.active = 1 // out of position acts first post-flop
			return
		}
	}
}

func (p *Position) finish(v game.Verdict) {
	p.done = true
	p.active = game.NoSeat
	p.result = v
}

func (p *Position) Terminal() game.Verdict {
	if p.done {
		return p.result
	}
	return game.Verdict{}
}

func (p *Position) Describe(viewer game.Seat) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] pot %d  board %s  hand %s  stacks %d/%d",
		p.stage, p.pot, cardsString(p.community), cardsString(p.holes[viewer]), p.stacks[0], p.stacks[1])
	if p.done {
		v := p.result
		switch {
		case v.Draw:
			b.WriteString("  split pot")
		case v.Winner == viewer:
			fmt.Fprintf(&b, "  you win (%s)", v.Reason)
		case v.Winner == 0 || v.Winner == 1:
			fmt.Fprintf(&b, "  you lose (%s)", v.Reason)
		}
	} else if p.active == viewer {
		fmt.Fprintf(&b, "  to call %d", p.ToCall())
	}
	return b.String()
}

func cardsString(cards []game.Card) string {
	if len(cards) == 0 {
		return "-"
	}
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

package poker

import (
	hp "github.com/paulhankin/poker"

	"github.com/kapu/ledger-arcade/internal/game"
)

// evalCard converts a shared card (rank 2..14, ace high) to the evaluator's
// encoding (rank 1..13, ace = 1).
func evalCard(c game.Card) hp.Card {
	rank := c.Rank
	if rank == 14 {
		rank = 1
	}
	card, err := hp.MakeCard(hp.Suit(c.Suit), hp.Rank(rank))
	if err != nil {
		// decks are built in-package; an invalid card is a programming error
		panic(err)
	}
	return card
}

func (p *Position) sevenOf(seat game.Seat) [7]hp.Card {
	var hand [7]hp.Card
	for i := 0; i < 5; i++ {
		hand[i] = evalCard(p.community[i])
	}
	hand[5] = evalCard(p.holes[seat][0])
	hand[6] = evalCard(p.holes[seat][1])
	return hand
}

// HandScore returns the evaluator score of a seat's best five-card hand.
// Higher beats lower; equal scores tie. Valid only with a full board.
func (p *Position) HandScore(seat game.Seat) int16 {
	hand := p.sevenOf(seat)
	return hp.Eval7(&hand)
}

// DescribeHand names a seat's best hand ("two pair", ...). Valid only with
// a full board.
func (p *Position) DescribeHand(seat game.Seat) (string, error) {
	hand := p.sevenOf(seat)
	return hp.Describe(hand[:])
}

// showdown compares both hands and settles the pot. On a tie the pot is
// split in half with the odd chip going to the last seat that acted.
func (p *Position) showdown() {
	s0 := p.HandScore(0)
	s1 := p.HandScore(1)
	switch {
	case s0 > s1:
		p.stacks[0] += p.pot
		p.finish(game.Verdict{Over: true, Winner: 0, Reason: game.ReasonShowdown})
	case s1 > s0:
		p.stacks[1] += p.pot
		p.finish(game.Verdict{Over: true, Winner: 1, Reason: game.ReasonShowdown})
	default:
		half := p.pot / 2
		p.stacks[0] += half
		p.stacks[1] += half
		p.stacks[p.lastActor] += p.pot - 2*half
		p.finish(game.Verdict{Over: true, Draw: true, Reason: game.ReasonShowdown})
	}
}

package game

import "fmt"

// Card rank 2..14 (14 = ace) and suit, shared by poker and blackjack.
type Suit uint8

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

func (s Suit) String() string {
	switch s {
	case Clubs:
		return "c"
	case Diamonds:
		return "d"
	case Hearts:
		return "h"
	}
	return "s"
}

type Card struct {
	Rank uint8 `json:"rank"`
	Suit Suit  `json:"suit"`
}

var rankGlyphs = map[uint8]string{10: "T", 11: "J", 12: "Q", 13: "K", 14: "A"}

func (c Card) String() string {
	if g, ok := rankGlyphs[c.Rank]; ok {
		return g + c.Suit.String()
	}
	return fmt.Sprintf("%d%s", c.Rank, c.Suit)
}

const lcgMul = 6364136223846793005

// nextSeed advances the shared linear congruential generator. The remote
// ledger derives its deals from the same recurrence, so a deck built from
// the session seed is identical on every client.
func nextSeed(x uint64) uint64 { return x*lcgMul + 1 }

// deckSuitOrder is the canonical build order. The remote ledger lays decks
// out the same way, so seed-derived deals line up card for card.
var deckSuitOrder = [4]Suit{Hearts, Diamonds, Clubs, Spades}

// NewDeck returns decks*52 cards in canonical order: ranks 2..14 within
// each suit. Deal from the end of the slice.
func NewDeck(decks int) []Card {
	cards := make([]Card, 0, decks*52)
	for d := 0; d < decks; d++ {
		for _, s := range deckSuitOrder {
			for r := uint8(2); r <= 14; r++ {
				cards = append(cards, Card{Rank: r, Suit: s})
			}
		}
	}
	return cards
}

// Shuffle permutes cards in place with a seed-driven Fisher-Yates pass.
// The same seed always yields the same permutation.
func Shuffle(cards []Card, seed uint64) {
	rng := seed
	for i := len(cards) - 1; i > 0; i-- {
		rng = nextSeed(rng)
		j := int(rng % uint64(i+1))
		cards[i], cards[j] = cards[j], cards[i]
	}
}

// ShuffledDeck builds and shuffles decks*52 cards from seed.
func ShuffledDeck(decks int, seed uint64) []Card {
	cards := NewDeck(decks)
	Shuffle(cards, seed)
	return cards
}

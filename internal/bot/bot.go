// Package bot picks actions for the machine side of a session. A remote
// text-suggestion service proposes a move; anything it returns that is not
// exactly a legal action falls back to a deterministic local policy, so a
// dead or rambling service never stalls a game.
package bot

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"go.uber.org/zap"

	"github.com/kapu/ledger-arcade/internal/game"
	"github.com/kapu/ledger-arcade/internal/obslog"
	"github.com/kapu/ledger-arcade/internal/rules/blackjack"
)

// Suggester proposes a raw text action for a position. Implementations may
// fail freely; the Decider treats every failure the same way.
type Suggester interface {
	Suggest(ctx context.Context, pos game.Position, legal []game.Action) (string, error)
}

// Decider turns positions into concrete legal actions.
type Decider struct {
	suggester Suggester
	rng       *rand.Rand
}

// NewDecider builds a Decider. suggester may be nil, in which case every
// decision uses the fallback policy. rngSeed fixes the random fallback for
// tests.
func NewDecider(suggester Suggester, rngSeed int64) *Decider {
	return &Decider{
		suggester: suggester,
		rng:       rand.New(rand.NewSource(rngSeed)),
	}
}

// Decide returns a legal action for the seat to move.
func (d *Decider) Decide(ctx context.Context, pos game.Position) (game.Action, error) {
	legal := pos.Legal()
	if len(legal) == 0 {
		return game.Action{}, fmt.Errorf("no legal actions for seat %d", pos.SeatToMove())
	}

	if d.suggester != nil {
		raw, err := d.suggester.Suggest(ctx, pos, legal)
		if err == nil {
			if a, ok := matchSuggestion(raw, legal); ok {
				return a, nil
			}
			obslog.L().Debug("bot_suggestion_illegal",
				zap.String("kind", string(pos.Kind())),
				zap.String("raw", truncate(raw, 64)),
			)
		} else {
			obslog.L().Debug("bot_suggestion_error", zap.String("kind", string(pos.Kind())), zap.Error(err))
		}
	}

	return d.fallback(pos, legal), nil
}

// matchSuggestion accepts a reply only on exact match against a legal
// action's text form, after trimming and lower-casing.
func matchSuggestion(raw string, legal []game.Action) (game.Action, bool) {
	want := strings.ToLower(strings.TrimSpace(raw))
	if want == "" {
		return game.Action{}, false
	}
	for _, a := range legal {
		if strings.ToLower(a.String()) == want {
			return a, true
		}
	}
	return game.Action{}, false
}

// fallback picks without the network: hit below 17 for blackjack, a
// uniformly random legal action otherwise.
func (d *Decider) fallback(pos game.Position, legal []game.Action) game.Action {
	if pos.Kind() == game.KindBlackjack {
		return blackjackHeuristic(pos, legal)
	}
	return legal[d.rng.Intn(len(legal))]
}

// blackjackHeuristic hits while the hand value is below 17, else stands.
func blackjackHeuristic(pos game.Position, legal []game.Action) game.Action {
	verb := game.BlackjackStand
	if bj, ok := pos.(*blackjack.Position); ok {
		if v, _ := blackjack.Value(bj.Hand(pos.SeatToMove())); v < 17 {
			verb = game.BlackjackHit
		}
	}
	for _, a := range legal {
		if a.Blackjack != nil && a.Blackjack.Verb == verb {
			return a
		}
	}
	return legal[0]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

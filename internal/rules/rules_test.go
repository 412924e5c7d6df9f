package rules

import (
	"testing"

	"github.com/kapu/ledger-arcade/internal/game"
)

func TestStartUnknownKind(t *testing.T) {
	if _, err := Start("checkers", 1, Table{}); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestStartAppliesTableParams(t *testing.T) {
	pos, err := Start(game.KindPoker, 5, Table{PokerStack: 500, PokerSmallBlind: 5, PokerBigBlind: 10})
	if err != nil {
		t.Fatalf("Start poker: %v", err)
	}
	if got := pos.Describe(0); got == "" {
		t.Fatalf("empty describe")
	}
	legal := pos.Legal()
	if len(legal) == 0 {
		t.Fatalf("no legal actions at hand start")
	}
}

func TestStartRejectsUnderfundedPokerTable(t *testing.T) {
	if _, err := Start(game.KindPoker, 5, Table{PokerStack: 15, PokerSmallBlind: 10, PokerBigBlind: 20}); err == nil {
		t.Fatalf("expected error for a stack that cannot post the big blind")
	}
}

func TestReplayMatchesLiveApplication(t *testing.T) {
	for _, kind := range []game.Kind{game.KindChess, game.KindPoker, game.KindBlackjack} {
		live, err := Start(kind, 77, Table{})
		if err != nil {
			t.Fatalf("Start %s: %v", kind, err)
		}
		var log []game.Action
		for i := 0; i < 6 && !live.Terminal().Over; i++ {
			legal := live.Legal()
			if len(legal) == 0 {
				break
			}
			a := legal[0]
			next, err := live.Apply(a)
			if err != nil {
				t.Fatalf("%s apply %s: %v", kind, a, err)
			}
			live = next
			log = append(log, a)
		}
		replayed, err := Replay(kind, 77, Table{}, log)
		if err != nil {
			t.Fatalf("%s replay: %v", kind, err)
		}
		if replayed.Describe(0) != live.Describe(0) {
			t.Fatalf("%s replay diverged:\n%s\n%s", kind, replayed.Describe(0), live.Describe(0))
		}
		if replayed.Terminal() != live.Terminal() {
			t.Fatalf("%s replay verdict mismatch", kind)
		}
	}
}

func TestReplayRejectsBadLog(t *testing.T) {
	bad := []game.Action{{Seat: 1, Chess: &game.ChessMove{UCI: "e7e5"}}}
	if _, err := Replay(game.KindChess, 1, Table{}, bad); err == nil {
		t.Fatalf("expected error replaying an out-of-turn log")
	}
}

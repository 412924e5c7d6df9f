package session

import (
	"testing"
	"time"

	"github.com/kapu/ledger-arcade/internal/game"
)

func TestClockTickBurnsActiveOnly(t *testing.T) {
	c := NewClock(10*time.Second, 0)
	for i := 0; i < 3; i++ {
		if flagged, _ := c.Tick(); flagged {
			t.Fatalf("flagged early at tick %d", i)
		}
	}
	if c.Remaining(0) != 7*time.Second || c.Remaining(1) != 10*time.Second {
		t.Fatalf("remaining = %v/%v", c.Remaining(0), c.Remaining(1))
	}
}

func TestClockSwitchCreditsIncrement(t *testing.T) {
	c := NewClock(10*time.Second, 2*time.Second)
	c.Tick()
	c.Switch(1)
	if c.Remaining(0) != 11*time.Second {
		t.Fatalf("mover not credited: %v", c.Remaining(0))
	}
	if c.Active() != 1 {
		t.Fatalf("active = %v, want 1", c.Active())
	}
	c.Tick()
	if c.Remaining(1) != 9*time.Second || c.Remaining(0) != 11*time.Second {
		t.Fatalf("remaining after handoff = %v/%v", c.Remaining(0), c.Remaining(1))
	}
}

func TestClockStartArmsWithoutCredit(t *testing.T) {
	c := NewClock(5*time.Minute, 10*time.Second)
	c.Start(1)
	if c.Remaining(0) != 5*time.Minute || c.Remaining(1) != 5*time.Minute {
		t.Fatalf("arming credited time: %v/%v", c.Remaining(0), c.Remaining(1))
	}
	if c.Active() != 1 {
		t.Fatalf("active = %v, want 1", c.Active())
	}
}

func TestClockFlagFall(t *testing.T) {
	c := NewClock(2*time.Second, 0)
	if flagged, _ := c.Tick(); flagged {
		t.Fatalf("flagged with time left")
	}
	flagged, seat := c.Tick()
	if !flagged || seat != 0 {
		t.Fatalf("flag = %v seat = %v", flagged, seat)
	}
	if c.Remaining(0) != 0 {
		t.Fatalf("remaining after flag = %v", c.Remaining(0))
	}
	// a fallen clock stays down
	if flagged, _ := c.Tick(); flagged {
		t.Fatalf("second flag from a stopped clock")
	}
}

func TestClockPauseResume(t *testing.T) {
	c := NewClock(5*time.Second, 0)
	c.Pause()
	for i := 0; i < 10; i++ {
		if flagged, _ := c.Tick(); flagged {
			t.Fatalf("paused clock flagged")
		}
	}
	if c.Remaining(0) != 5*time.Second {
		t.Fatalf("paused clock burned time: %v", c.Remaining(0))
	}
	c.Resume()
	c.Tick()
	if c.Remaining(0) != 4*time.Second {
		t.Fatalf("resumed clock did not burn: %v", c.Remaining(0))
	}
}

func TestClockNilSafe(t *testing.T) {
	var c *Clock
	if flagged, seat := c.Tick(); flagged || seat != game.NoSeat {
		t.Fatalf("nil clock ticked")
	}
	c.Start(0)
	c.Switch(1)
	c.Pause()
	c.Resume()
	c.Stop()
	if c.Remaining(0) != 0 || c.Active() != game.NoSeat {
		t.Fatalf("nil clock accessors")
	}
}

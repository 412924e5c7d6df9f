package session

import (
	"time"

	"github.com/kapu/ledger-arcade/internal/game"
)

// Clock tracks both players' remaining time. Only the active seat burns
// time, one second per tick. The clock is owned by the session loop and
// is not safe for concurrent use.
type Clock struct {
	remaining [2]time.Duration
	increment time.Duration
	active    game.Seat
	running   bool
	paused    bool
}

func NewClock(start, increment time.Duration) *Clock {
	return &Clock{
		remaining: [2]time.Duration{start, start},
		increment: increment,
		active:    0,
		running:   true,
	}
}

// Tick burns one second from the active seat. It reports a flag fall the
// moment remaining time reaches zero.
func (c *Clock) Tick() (flagged bool, seat game.Seat) {
	if c == nil || !c.running || c.paused {
		return false, game.NoSeat
	}
	c.remaining[c.active] -= time.Second
	if c.remaining[c.active] <= 0 {
		c.remaining[c.active] = 0
		c.running = false
		return true, c.active
	}
	return false, game.NoSeat
}

// Start arms the clock on seat without crediting anything. Increments are
// earned by applied actions only.
func (c *Clock) Start(seat game.Seat) {
	if c == nil || !c.running {
		return
	}
	if seat == 0 || seat == 1 {
		c.active = seat
	}
}

// Switch credits the increment to the seat that just moved and hands the
// clock to next.
func (c *Clock) Switch(next game.Seat) {
	if c == nil || !c.running {
		return
	}
	c.remaining[c.active] += c.increment
	if next == 0 || next == 1 {
		c.active = next
	}
}

// Pause freezes the countdown, e.g. while a confirmation prompt is open.
func (c *Clock) Pause() {
	if c != nil {
		c.paused = true
	}
}

// Resume restarts the countdown after a Pause.
func (c *Clock) Resume() {
	if c != nil {
		c.paused = false
	}
}

// Stop ends the countdown for good.
func (c *Clock) Stop() {
	if c != nil {
		c.running = false
	}
}

// Remaining returns a seat's time left.
func (c *Clock) Remaining(s game.Seat) time.Duration {
	if c == nil {
		return 0
	}
	return c.remaining[s]
}

// Active returns the seat currently on the clock.
func (c *Clock) Active() game.Seat {
	if c == nil {
		return game.NoSeat
	}
	return c.active
}

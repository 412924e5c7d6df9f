// Package session runs one game session: the locally simulated position,
// the optimistic action path, the reconciliation poller against the remote
// ledger, and the game clock. All state mutation happens on a single
// command loop, so optimistic applies and replay never interleave.
package session

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kapu/ledger-arcade/internal/game"
	"github.com/kapu/ledger-arcade/internal/ledger"
	"github.com/kapu/ledger-arcade/internal/obslog"
	"github.com/kapu/ledger-arcade/internal/rules"
	"github.com/kapu/ledger-arcade/pkg/ledgerdto"
)

// Notifier receives non-blocking user-facing notices. Implementations must
// not block.
type Notifier interface {
	Notify(event string, args map[string]any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, map[string]any) {}

// Reporter receives the best-effort end-of-game stats record.
type Reporter interface {
	Report(ctx context.Context, rep ledgerdto.ResultReport)
}

// Decider picks actions for machine-driven seats.
type Decider interface {
	Decide(ctx context.Context, pos game.Position) (game.Action, error)
}

// Options wires one runner. Client may be nil for purely local sessions.
type Options struct {
	Client   *ledger.Client
	Decider  Decider
	Store    *Store
	Notifier Notifier
	Reporter Reporter
	OnUpdate func(pos game.Position)

	PlayerID string
	Seat     game.Seat

	PollInterval   time.Duration
	BotThinkDelay  time.Duration
	ClockStart     time.Duration
	ClockIncrement time.Duration

	// Ticks overrides the 1s clock tick source in tests.
	Ticks <-chan time.Time
}

// Runner owns one session. Exported methods are safe from any goroutine;
// they run their work on the command loop.
type Runner struct {
	id    string
	kind  game.Kind
	mode  game.Mode
	seed  uint64
	table rules.Table
	opt   Options

	pos       game.Position
	log       []game.Action
	applied   int
	clock     *Clock
	verdict   game.Verdict
	finished  bool
	offerSeen bool
	botArmed  bool

	cmds     chan func()
	submitCh chan game.Action
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	ended    atomic.Bool
}

// NewRunner builds a runner over an existing session record and starts its
// loops. rec.Actions already on the ledger are replayed before the first
// command runs.
func NewRunner(rec *ledgerdto.SessionRecord, opt Options) (*Runner, error) {
	if opt.Notifier == nil {
		opt.Notifier = nopNotifier{}
	}
	if opt.PollInterval <= 0 {
		opt.PollInterval = 2 * time.Second
	}
	table := rules.Table{
		PokerStack:      rec.Table.PokerStack,
		PokerSmallBlind: rec.Table.PokerSmallBlind,
		PokerBigBlind:   rec.Table.PokerBigBlind,
		BlackjackSeats:  rec.Table.BlackjackSeats,
		BlackjackBet:    rec.Table.BlackjackBet,
		BlackjackChips:  rec.Table.BlackjackChips,
	}
	pos, err := rules.Replay(rec.Kind, rec.Seed, table, rec.Actions)
	if err != nil {
		return nil, fmt.Errorf("rebuild session %s: %w", rec.ID, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		id:      rec.ID,
		kind:    rec.Kind,
		mode:    rec.Mode,
		seed:    rec.Seed,
		table:   table,
		opt:     opt,
		pos:     pos,
		log:     append([]game.Action(nil), rec.Actions...),
		applied: len(rec.Actions),
		cmds:    make(chan func(), 16),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	if timedKind(rec.Kind) {
		r.clock = NewClock(opt.ClockStart, opt.ClockIncrement)
		r.clock.Start(pos.SeatToMove())
	}
	go r.loop()
	if r.opt.Client != nil {
		r.submitCh = make(chan game.Action, 64)
		go r.pollLoop()
		go r.submitLoop()
	}
	r.post(func() {
		if v := r.pos.Terminal(); v.Over {
			r.finishWith(v)
			return
		}
		r.armBot()
	})
	return r, nil
}

// blackjack rounds are untimed; chess and poker run on the clock.
func timedKind(k game.Kind) bool { return k != game.KindBlackjack }

func (r *Runner) ID() string      { return r.id }
func (r *Runner) Kind() game.Kind { return r.kind }
func (r *Runner) Mode() game.Mode { return r.mode }
func (r *Runner) Seat() game.Seat { return r.opt.Seat }

func (r *Runner) loop() {
	defer close(r.done)
	ticks := r.opt.Ticks
	if ticks == nil {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		ticks = t.C
	}
	for {
		select {
		case <-r.ctx.Done():
			return
		case fn := <-r.cmds:
			fn()
		case <-ticks:
			r.onTick()
		}
	}
}

func (r *Runner) pollLoop() {
	t := time.NewTicker(r.opt.PollInterval)
	defer t.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-t.C:
			if r.ended.Load() {
				return
			}
			rec, err := r.opt.Client.Session(r.ctx, r.id)
			if err != nil {
				// transient fetch failure: keep the local state, try next tick
				obslog.L().Debug("session_poll_skip", zap.String("session_id", r.id), zap.Error(err))
				continue
			}
			r.post(func() { r.reconcile(rec) })
		}
	}
}

func (r *Runner) post(fn func()) bool {
	select {
	case r.cmds <- fn:
		return true
	case <-r.ctx.Done():
		return false
	}
}

func (r *Runner) call(fn func()) error {
	ack := make(chan struct{})
	if !r.post(func() { fn(); close(ack) }) {
		return ErrClosed
	}
	select {
	case <-ack:
		return nil
	case <-r.ctx.Done():
		return ErrClosed
	}
}

// Play applies one local action optimistically. An illegal action returns
// ErrIllegalAction synchronously and changes nothing. Submission to the
// ledger happens asynchronously and its failure never reverts the local
// state.
func (r *Runner) Play(a game.Action) error {
	var err error
	if cerr := r.call(func() { err = r.applyLocal(a) }); cerr != nil {
		return cerr
	}
	return err
}

func (r *Runner) applyLocal(a game.Action) error {
	if r.finished {
		return ErrSessionOver
	}
	if !r.humanControls(a.Seat) {
		return ErrNotYourTurn
	}
	if r.pos.SeatToMove() != a.Seat {
		return ErrNotYourTurn
	}
	next, err := r.pos.Apply(a)
	if err != nil {
		obslog.L().Info("session_action_rejected",
			zap.String("session_id", r.id),
			zap.String("action", a.String()),
			zap.Error(err),
		)
		return fmt.Errorf("%w: %s", ErrIllegalAction, errText(err))
	}
	r.advance(a, next, true)
	return nil
}

// humanControls reports whether the local user drives a seat. Machine
// seats belong to the decider; in peer mode the opponent's seat belongs to
// the other client.
func (r *Runner) humanControls(s game.Seat) bool {
	switch r.mode {
	case game.ModePeer, game.ModeBot:
		return s == r.opt.Seat
	case game.ModeLocal:
		return s != game.NoSeat && !r.machineSeat(s)
	}
	return false
}

func (r *Runner) machineSeat(s game.Seat) bool {
	if s == game.NoSeat || s == game.DealerSeat {
		return false
	}
	switch r.mode {
	case game.ModeBot:
		return s != r.opt.Seat
	case game.ModeLocal:
		// local blackjack still fills the side seats with house players
		return r.kind == game.KindBlackjack && s != r.opt.Seat
	}
	return false
}

// advance commits an applied action: log, clock, persistence, submission,
// terminal check, and the next machine turn.
func (r *Runner) advance(a game.Action, next game.Position, submit bool) {
	a.Seq = len(r.log)
	r.log = append(r.log, a)
	r.applied++
	r.pos = next
	if r.clock != nil {
		r.clock.Switch(next.SeatToMove())
	}
	obslog.L().Info("session_apply",
		zap.String("session_id", r.id),
		zap.String("kind", string(r.kind)),
		zap.Int("seq", a.Seq),
		zap.Int("seat", int(a.Seat)),
		zap.String("action", a.String()),
	)
	if submit && r.opt.Client != nil {
		select {
		case r.submitCh <- a:
		default:
			obslog.L().Warn("session_submit_queue_full", zap.String("session_id", r.id), zap.Int("seq", a.Seq))
			r.opt.Notifier.Notify("submit_failed", map[string]any{"Action": a.String()})
		}
	}
	r.saveSnapshot()
	r.notifyUpdate()
	if v := r.pos.Terminal(); v.Over {
		r.finishWith(v)
		return
	}
	r.armBot()
}

// submitLoop forwards applied actions to the ledger one at a time, in log
// order. Interleaved goroutine submissions could arrive reordered and the
// ledger would reject the out-of-sequence one.
func (r *Runner) submitLoop() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case a := <-r.submitCh:
			r.submit(a)
		}
	}
}

func (r *Runner) submit(a game.Action) {
	req := ledgerdto.SubmitActionRequest{
		PlayerID:     r.opt.PlayerID,
		SubmissionID: uuid.NewString(),
		Action:       a,
	}
	ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
	defer cancel()
	if err := r.opt.Client.SubmitAction(ctx, r.id, req); err != nil {
		if r.ctx.Err() != nil {
			return // closed mid-flight, nobody to tell
		}
		obslog.L().Warn("session_submit_failed",
			zap.String("session_id", r.id),
			zap.Int("seq", a.Seq),
			zap.Error(err),
		)
		r.opt.Notifier.Notify("submit_failed", map[string]any{
			"Action": a.String(),
		})
	}
}

// armBot schedules the machine turn. The decision runs off the loop with
// a position snapshot; the result is validated against the live position
// before it is applied.
func (r *Runner) armBot() {
	if r.opt.Decider == nil || r.finished || r.botArmed {
		return
	}
	seat := r.pos.SeatToMove()
	if !r.machineSeat(seat) {
		return
	}
	r.botArmed = true
	pos := r.pos
	appliedAt := r.applied
	go func() {
		if r.opt.BotThinkDelay > 0 {
			select {
			case <-time.After(r.opt.BotThinkDelay):
			case <-r.ctx.Done():
				return
			}
		}
		a, err := r.opt.Decider.Decide(r.ctx, pos)
		r.post(func() {
			r.botArmed = false
			if r.finished {
				return
			}
			if r.applied != appliedAt {
				// position moved underneath the decision, think again
				r.armBot()
				return
			}
			if err != nil {
				obslog.L().Warn("session_bot_failed", zap.String("session_id", r.id), zap.Error(err))
				return
			}
			next, aerr := r.pos.Apply(a)
			if aerr != nil {
				obslog.L().Warn("session_bot_rejected", zap.String("session_id", r.id), zap.Error(aerr))
				return
			}
			// machine moves stay local; the ledger only learns a bot game's
			// outcome through the end-of-session result record
			r.advance(a, next, false)
		})
	}()
}

// reconcile folds one fetched ledger record into the local state. A final
// remote status always wins over local in-progress state.
func (r *Runner) reconcile(rec *ledgerdto.SessionRecord) {
	if r.finished {
		return
	}
	if rec.Status.Final() {
		if r.mode != game.ModeBot {
			r.replayRemote(rec)
		}
		r.finishWith(verdictFromRecord(rec))
		return
	}
	if r.mode == game.ModeBot {
		// the remote log never carries the machine side's moves; the local
		// simulation is authoritative in bot sessions
		return
	}
	if rec.DrawOffer != nil && *rec.DrawOffer != r.opt.Seat && !r.offerSeen {
		r.offerSeen = true
		r.opt.Notifier.Notify("draw_offered", map[string]any{"SessionID": r.id})
	}
	r.replayRemote(rec)
	if r.finished {
		return
	}
	if v := r.pos.Terminal(); v.Over {
		r.finishWith(v)
	}
}

// replayRemote applies the remote log's unseen suffix. Replay is keyed on
// action count, so a record observed twice applies nothing the second
// time. A prefix mismatch means a local optimistic action never landed;
// the remote log then replaces the local state wholesale.
func (r *Runner) replayRemote(rec *ledgerdto.SessionRecord) {
	n := min(r.applied, len(rec.Actions))
	for i := 0; i < n; i++ {
		if !rec.Actions[i].Equal(r.log[i]) {
			r.rebuildFrom(rec)
			return
		}
	}
	for i := r.applied; i < len(rec.Actions); i++ {
		a := rec.Actions[i]
		next, err := r.pos.Apply(a)
		if err != nil {
			obslog.L().Warn("reconcile_suffix_rejected",
				zap.String("session_id", r.id),
				zap.Int("seq", i),
				zap.Error(err),
			)
			r.rebuildFrom(rec)
			return
		}
		obslog.L().Info("reconcile_replay",
			zap.String("session_id", r.id),
			zap.Int("seq", i),
			zap.String("action", a.String()),
		)
		r.advance(a, next, false)
		if r.finished {
			return
		}
	}
}

func (r *Runner) rebuildFrom(rec *ledgerdto.SessionRecord) {
	pos, err := rules.Replay(r.kind, r.seed, r.table, rec.Actions)
	if err != nil {
		obslog.L().Error("reconcile_rebuild_failed", zap.String("session_id", r.id), zap.Error(err))
		return
	}
	obslog.L().Warn("reconcile_rebuild",
		zap.String("session_id", r.id),
		zap.Int("local_applied", r.applied),
		zap.Int("remote_len", len(rec.Actions)),
	)
	r.pos = pos
	r.log = append([]game.Action(nil), rec.Actions...)
	r.applied = len(rec.Actions)
	if r.clock != nil {
		r.clock.Start(pos.SeatToMove())
	}
	r.saveSnapshot()
	r.notifyUpdate()
	if v := r.pos.Terminal(); v.Over {
		r.finishWith(v)
		return
	}
	r.armBot()
}

// onTick burns clock time. The flag fall is decided before any rule
// terminal is consulted: a timed-out seat loses even if the position also
// happens to be terminal.
func (r *Runner) onTick() {
	if r.finished || r.clock == nil {
		return
	}
	flagged, seat := r.clock.Tick()
	if !flagged {
		return
	}
	winner := seat.Other()
	if r.opt.Client != nil && winner == r.opt.Seat {
		go func() {
			ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
			defer cancel()
			if err := r.opt.Client.ClaimTimeout(ctx, r.id, r.opt.PlayerID); err != nil {
				obslog.L().Warn("session_claim_timeout_failed", zap.String("session_id", r.id), zap.Error(err))
			}
		}()
	}
	r.finishWith(game.Verdict{Over: true, Winner: winner, Reason: game.ReasonTimeout})
}

func (r *Runner) finishWith(v game.Verdict) {
	if r.finished {
		return
	}
	r.finished = true
	r.verdict = v
	if r.clock != nil {
		r.clock.Stop()
	}
	r.ended.Store(true)
	obslog.L().Info("session_end",
		zap.String("session_id", r.id),
		zap.String("kind", string(r.kind)),
		zap.Bool("draw", v.Draw),
		zap.Int("winner", int(v.Winner)),
		zap.String("reason", string(v.Reason)),
	)
	r.opt.Notifier.Notify("session_end", map[string]any{
		"SessionID": r.id,
		"Draw":      v.Draw,
		"Won":       !v.Draw && v.Winner == r.opt.Seat,
		"Reason":    string(v.Reason),
	})
	r.saveSnapshot()
	r.notifyUpdate()
	if r.mode == game.ModeBot && r.opt.Reporter != nil {
		rep := ledgerdto.ResultReport{
			PlayerID: r.opt.PlayerID,
			Kind:     r.kind,
			Won:      !v.Draw && v.Winner == r.opt.Seat,
			Draw:     v.Draw,
			Moves:    r.applied,
			Reason:   string(v.Reason),
		}
		go r.opt.Reporter.Report(r.ctx, rep)
	}
}

func (r *Runner) saveSnapshot() {
	if r.opt.Store == nil {
		return
	}
	snap := &Snapshot{
		SessionID: r.id,
		Kind:      r.kind,
		Mode:      r.mode,
		Seat:      r.opt.Seat,
		Seed:      r.seed,
		Table:     r.table,
		Applied:   r.applied,
		Finished:  r.finished,
		UpdatedAt: time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.opt.Store.Save(ctx, r.opt.PlayerID, snap); err != nil {
		obslog.L().Warn("session_snapshot_save_failed", zap.String("session_id", r.id), zap.Error(err))
	}
}

func (r *Runner) notifyUpdate() {
	if r.opt.OnUpdate != nil {
		r.opt.OnUpdate(r.pos)
	}
}

// State returns the current position and verdict.
func (r *Runner) State() (pos game.Position, verdict game.Verdict, over bool, err error) {
	err = r.call(func() {
		pos = r.pos
		verdict = r.verdict
		over = r.finished
	})
	return
}

// Applied returns how many log actions the local position reflects.
func (r *Runner) Applied() (n int, err error) {
	err = r.call(func() { n = r.applied })
	return
}

// ClockRemaining returns both seats' remaining time. Zeroes for untimed
// kinds.
func (r *Runner) ClockRemaining() (rem [2]time.Duration, err error) {
	err = r.call(func() {
		if r.clock != nil {
			rem[0] = r.clock.Remaining(0)
			rem[1] = r.clock.Remaining(1)
		}
	})
	return
}

// PauseClock freezes the countdown while a confirmation prompt is open.
func (r *Runner) PauseClock() error { return r.call(func() { r.clock.Pause() }) }

// ResumeClock restarts the countdown.
func (r *Runner) ResumeClock() error { return r.call(func() { r.clock.Resume() }) }

// Resign concedes the session. The remote record follows best-effort.
func (r *Runner) Resign() error {
	return r.call(func() {
		if r.finished {
			return
		}
		if r.opt.Client != nil {
			go func() {
				ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
				defer cancel()
				if err := r.opt.Client.Resign(ctx, r.id, r.opt.PlayerID); err != nil {
					obslog.L().Warn("session_resign_submit_failed", zap.String("session_id", r.id), zap.Error(err))
				}
			}()
		}
		r.finishWith(game.Verdict{Over: true, Winner: r.opt.Seat.Other(), Reason: game.ReasonResignation})
	})
}

// OfferDraw submits a draw offer. The opponent's acceptance arrives via
// the poller.
func (r *Runner) OfferDraw() error {
	return r.call(func() {
		if r.finished || r.opt.Client == nil {
			return
		}
		go func() {
			ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
			defer cancel()
			if err := r.opt.Client.OfferDraw(ctx, r.id, r.opt.PlayerID); err != nil {
				obslog.L().Warn("session_draw_offer_failed", zap.String("session_id", r.id), zap.Error(err))
				r.opt.Notifier.Notify("submit_failed", map[string]any{"Action": "draw offer"})
			}
		}()
	})
}

// AcceptDraw accepts the opponent's standing draw offer and ends the
// session as agreed draw.
func (r *Runner) AcceptDraw() error {
	return r.call(func() {
		if r.finished {
			return
		}
		if r.opt.Client != nil {
			go func() {
				ctx, cancel := context.WithTimeout(r.ctx, 10*time.Second)
				defer cancel()
				if err := r.opt.Client.AcceptDraw(ctx, r.id, r.opt.PlayerID); err != nil {
					obslog.L().Warn("session_draw_accept_failed", zap.String("session_id", r.id), zap.Error(err))
				}
			}()
		}
		r.finishWith(game.Verdict{Over: true, Draw: true, Reason: game.ReasonDrawAgreed})
	})
}

// Close tears the runner down: the poller and the clock tick stop
// together, and in-flight network replies are discarded.
func (r *Runner) Close() {
	r.cancel()
	<-r.done
}

func verdictFromRecord(rec *ledgerdto.SessionRecord) game.Verdict {
	v := game.Verdict{Over: true, Draw: rec.Draw, Winner: game.NoSeat, Reason: game.EndReason(rec.EndReason)}
	if rec.WinnerSeat != nil {
		v.Winner = *rec.WinnerSeat
	}
	if rec.Status == ledgerdto.SessionCancelled {
		v.Draw = true
		v.Reason = game.ReasonCancelled
	}
	if rec.Status == ledgerdto.SessionTimedOut && v.Reason == "" {
		v.Reason = game.ReasonTimeout
	}
	return v
}

func errText(err error) string {
	var s string
	if err != nil {
		s = err.Error()
	}
	return s
}

package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/kapu/ledger-arcade/internal/bot"
	appcfg "github.com/kapu/ledger-arcade/internal/config"
	"github.com/kapu/ledger-arcade/internal/game"
	"github.com/kapu/ledger-arcade/internal/ledger"
	"github.com/kapu/ledger-arcade/internal/lobby"
	"github.com/kapu/ledger-arcade/internal/msgcat"
	"github.com/kapu/ledger-arcade/internal/obslog"
	"github.com/kapu/ledger-arcade/internal/rules"
	"github.com/kapu/ledger-arcade/internal/session"
	"github.com/kapu/ledger-arcade/internal/stats"
	"github.com/kapu/ledger-arcade/pkg/ledgerdto"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("log init error: %v", err)
	}

	client := ledger.NewClient(cfg.LedgerBaseURL, ledger.WithRetry(3))

	var suggester bot.Suggester
	if cfg.BotSuggestURL != "" {
		suggester = bot.NewHTTPSuggester(cfg.BotSuggestURL, 5*time.Second)
	}
	decider := bot.NewDecider(suggester, time.Now().UnixNano())

	var repo stats.Repository
	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("stats db error: %v", err)
		}
		repo = stats.NewRepository(db)
	}
	recorder := stats.NewRecorder(client, repo)

	cat, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		log.Fatalf("message catalog error: %v", err)
	}
	notifier := msgcat.NewNotifier(cat, func(text string) { fmt.Println(text) })

	mgr, err := session.NewManager(session.ManagerConfig{
		PlayerID:       cfg.PlayerID,
		PlayerName:     cfg.PlayerName,
		PollInterval:   cfg.PollInterval,
		BotThinkDelay:  cfg.BotThinkDelay,
		ClockStart:     cfg.ClockStart,
		ClockIncrement: cfg.ClockIncrement,
		Table:          rules.Table{BlackjackSeats: 1 + cfg.BlackjackBotSeats},
	}, client, cfg.RedisURL, decider, notifier, recorder)
	if err != nil {
		log.Fatalf("session manager init error: %v", err)
	}
	bridge := lobby.NewBridge(client, cfg.PlayerID, cfg.LobbyPollInterval, cfg.LobbyPollAttempts)

	// Best effort; the ledger upserts, so re-running is harmless.
	regCtx, regCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := client.Register(regCtx, ledgerdto.RegisterRequest{PlayerID: cfg.PlayerID, Name: cfg.PlayerName}); err != nil {
		fmt.Printf("registration failed (continuing): %v\n", err)
	}
	regCancel()

	app := &app{cfg: cfg, client: client, mgr: mgr, bridge: bridge}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	lines := readLines(os.Stdin)

	fmt.Println("ledger-arcade ready. Type 'help' for commands.")
	app.tryResume()

	for {
		select {
		case <-sigCh:
			app.shutdown(db)
			return
		case line, ok := <-lines:
			if !ok {
				app.shutdown(db)
				return
			}
			if !app.dispatch(line) {
				app.shutdown(db)
				return
			}
		}
	}
}

type app struct {
	cfg    *appcfg.AppConfig
	client *ledger.Client
	mgr    *session.Manager
	bridge *lobby.Bridge

	mu      sync.Mutex
	current *session.Runner
}

func (a *app) shutdown(db *sql.DB) {
	_ = a.mgr.Close()
	if db != nil {
		_ = db.Close()
	}
}

func readLines(f *os.File) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			ch <- sc.Text()
		}
	}()
	return ch
}

// dispatch handles one input line. Returns false to quit.
func (a *app) dispatch(line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "quit", "exit":
		return false
	case "help":
		fmt.Println(helpText())
	case "new":
		a.handleNew(args)
	case "join":
		a.handleJoin(args)
	case "resume":
		a.tryResume()
	case "lobby":
		a.handleLobby(args)
	case "state":
		a.handleState()
	case "clock":
		a.handleClock(args)
	case "resign":
		a.withRunner(func(r *session.Runner) {
			if err := r.Resign(); err != nil {
				fmt.Printf("resign failed: %v\n", err)
			}
		})
	case "draw":
		a.handleDraw(args)
	case "profile":
		a.handleProfile()
	case "top":
		a.handleLeaderboard()
	default:
		// anything else is a move for the current session
		a.handleMove(strings.Join(parts, " "))
	}
	return true
}

func helpText() string {
	return strings.Join([]string{
		"Commands:",
		"  new <chess|poker|blackjack> [local]   start a session vs the machine (or hot-seat)",
		"  join <session-id>                     attach to an existing session",
		"  resume                                pick up your latest unfinished session",
		"  lobby create <kind> [secret]          open a lobby and wait for an opponent",
		"  lobby join <lobby-id> [secret]        join a lobby and wait for the session",
		"  lobby list                            show open public lobbies",
		"  lobby cancel <lobby-id>               withdraw your lobby",
		"  state                                 show the current position",
		"  clock [pause|resume]                  show or control the clock",
		"  resign | draw offer | draw accept     end-of-game actions",
		"  profile | top                         stats from the ledger",
		"  <move>                                e2e4, raise 40, call, hit, stand, ...",
		"  quit",
	}, "\n")
}

// setCurrent swaps the active session and shuts the previous one down so
// its poller and ticker do not outlive it.
func (a *app) setCurrent(r *session.Runner) {
	a.mu.Lock()
	prev := a.current
	a.current = r
	a.mu.Unlock()
	if prev != nil && (r == nil || prev.ID() != r.ID()) {
		a.mgr.Drop(prev.ID())
	}
}

func (a *app) withRunner(fn func(r *session.Runner)) {
	a.mu.Lock()
	r := a.current
	a.mu.Unlock()
	if r == nil {
		fmt.Println("no active session. Start one with 'new' or 'lobby'.")
		return
	}
	fn(r)
}

func (a *app) onUpdate(pos game.Position) {
	a.mu.Lock()
	r := a.current
	a.mu.Unlock()
	seat := game.Seat(0)
	if r != nil {
		seat = r.Seat()
	}
	fmt.Println(pos.Describe(seat))
}

func (a *app) handleNew(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: new <chess|poker|blackjack> [local]")
		return
	}
	kind, err := game.ParseKind(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	local := len(args) >= 2 && strings.EqualFold(args[1], "local")

	var r *session.Runner
	if local {
		r, err = a.mgr.StartLocal(kind, a.onUpdate)
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		r, err = a.mgr.StartBot(ctx, kind, a.onUpdate)
	}
	if err != nil {
		fmt.Printf("start failed: %v\n", err)
		return
	}
	a.setCurrent(r)
	fmt.Printf("session %s started (%s)\n", r.ID(), kind)
	a.handleState()
}

func (a *app) handleJoin(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: join <session-id>")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	r, err := a.mgr.Join(ctx, args[0], a.onUpdate)
	if err != nil {
		fmt.Printf("join failed: %v\n", err)
		return
	}
	a.setCurrent(r)
	a.handleState()
}

func (a *app) tryResume() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	r, err := a.mgr.Resume(ctx, a.onUpdate)
	if err != nil {
		fmt.Printf("resume failed: %v\n", err)
		return
	}
	if r == nil {
		return
	}
	a.setCurrent(r)
	fmt.Printf("resumed session %s\n", r.ID())
	a.handleState()
}

func (a *app) handleLobby(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: lobby <create|join|list|cancel> ...")
		return
	}
	sub := strings.ToLower(args[0])
	rest := args[1:]
	switch sub {
	case "create":
		if len(rest) < 1 {
			fmt.Println("usage: lobby create <kind> [secret]")
			return
		}
		kind, err := game.ParseKind(rest[0])
		if err != nil {
			fmt.Println(err)
			return
		}
		secret := ""
		if len(rest) >= 2 {
			secret = rest[1]
		}
		ctx := context.Background()
		rec, err := a.bridge.Create(ctx, kind, game.ModePeer, secret)
		if err != nil {
			fmt.Printf("lobby create failed: %v\n", err)
			return
		}
		fmt.Printf("lobby %s created, waiting for an opponent...\n", rec.ID)
		a.resolveLobby(rec.ID)
	case "join":
		if len(rest) < 1 {
			fmt.Println("usage: lobby join <lobby-id> [secret]")
			return
		}
		secret := ""
		if len(rest) >= 2 {
			secret = rest[1]
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		rec, err := a.bridge.Join(ctx, rest[0], secret)
		cancel()
		if err != nil {
			fmt.Printf("lobby join failed: %v\n", err)
			return
		}
		a.resolveLobby(rec.ID)
	case "list":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		lobbies, err := a.bridge.Open(ctx)
		if err != nil {
			fmt.Printf("lobby list failed: %v\n", err)
			return
		}
		if len(lobbies) == 0 {
			fmt.Println("no open lobbies.")
			return
		}
		for _, l := range lobbies {
			fmt.Printf("  %s  %s  by %s\n", l.ID, l.Kind, l.Creator)
		}
	case "cancel":
		if len(rest) < 1 {
			fmt.Println("usage: lobby cancel <lobby-id>")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.bridge.Cancel(ctx, rest[0]); err != nil {
			fmt.Printf("lobby cancel failed: %v\n", err)
			return
		}
		fmt.Println("lobby cancelled.")
	default:
		fmt.Println("usage: lobby <create|join|list|cancel> ...")
	}
}

func (a *app) resolveLobby(lobbyID string) {
	sessionID, err := a.bridge.Resolve(context.Background(), lobbyID)
	if err != nil {
		switch {
		case errors.Is(err, lobby.ErrLobbyGone):
			fmt.Println("the lobby is no longer available. Create or join another one.")
		case errors.Is(err, lobby.ErrLobbyTimeout):
			fmt.Println("no opponent joined in time. Try again later, or play the machine with 'new'.")
		default:
			fmt.Printf("lobby wait failed: %v\n", err)
		}
		return
	}
	a.handleJoin([]string{sessionID})
}

func (a *app) handleState() {
	a.withRunner(func(r *session.Runner) {
		pos, verdict, over, err := r.State()
		if err != nil {
			fmt.Printf("state unavailable: %v\n", err)
			return
		}
		fmt.Println(pos.Describe(r.Seat()))
		if over {
			fmt.Println(verdictLine(verdict, r.Seat()))
		}
	})
}

func verdictLine(v game.Verdict, seat game.Seat) string {
	switch {
	case v.Draw:
		return fmt.Sprintf("game over: draw (%s)", v.Reason)
	case v.Winner == seat:
		return fmt.Sprintf("game over: you won (%s)", v.Reason)
	default:
		return fmt.Sprintf("game over: you lost (%s)", v.Reason)
	}
}

func (a *app) handleClock(args []string) {
	a.withRunner(func(r *session.Runner) {
		if len(args) >= 1 {
			switch strings.ToLower(args[0]) {
			case "pause":
				if err := r.PauseClock(); err != nil {
					fmt.Printf("clock pause failed: %v\n", err)
				}
				return
			case "resume":
				if err := r.ResumeClock(); err != nil {
					fmt.Printf("clock resume failed: %v\n", err)
				}
				return
			}
		}
		rem, err := r.ClockRemaining()
		if err != nil {
			fmt.Printf("no clock: %v\n", err)
			return
		}
		fmt.Printf("clock: you %s, opponent %s\n",
			rem[r.Seat()].Round(time.Second), rem[r.Seat().Other()].Round(time.Second))
	})
}

func (a *app) handleDraw(args []string) {
	if len(args) < 1 {
		fmt.Println("usage: draw <offer|accept>")
		return
	}
	a.withRunner(func(r *session.Runner) {
		var err error
		switch strings.ToLower(args[0]) {
		case "offer":
			err = r.OfferDraw()
		case "accept":
			err = r.AcceptDraw()
		default:
			fmt.Println("usage: draw <offer|accept>")
			return
		}
		if err != nil {
			fmt.Printf("draw %s failed: %v\n", args[0], err)
		}
	})
}

func (a *app) handleMove(text string) {
	a.withRunner(func(r *session.Runner) {
		act, err := game.ParseInput(r.Kind(), r.Seat(), text)
		if err != nil {
			fmt.Println(err)
			return
		}
		if err := r.Play(act); err != nil {
			switch {
			case errors.Is(err, session.ErrIllegalAction):
				fmt.Printf("illegal: %v\n", err)
			case errors.Is(err, session.ErrNotYourTurn):
				fmt.Println("not your turn.")
			case errors.Is(err, session.ErrSessionOver):
				fmt.Println("the session is over.")
			default:
				fmt.Printf("move failed: %v\n", err)
			}
		}
	})
}

func (a *app) handleProfile() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p, err := a.client.Profile(ctx, a.cfg.PlayerID)
	if err != nil {
		fmt.Printf("profile fetch failed: %v\n", err)
		return
	}
	fmt.Printf("%s (%s)\n", p.Name, p.PlayerID)
	for _, row := range []struct {
		kind  game.Kind
		stats ledgerdto.KindStats
	}{
		{game.KindChess, p.Chess},
		{game.KindPoker, p.Poker},
		{game.KindBlackjack, p.Blackjack},
	} {
		fmt.Printf("  %-10s %dW %dL %dD\n", row.kind, row.stats.Wins, row.stats.Losses, row.stats.Draws)
	}
	fmt.Printf("  streak %d (best %d)\n", p.CurrentStreak, p.BestStreak)
}

func (a *app) handleLeaderboard() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	entries, err := a.client.Leaderboard(ctx, 10)
	if err != nil {
		fmt.Printf("leaderboard fetch failed: %v\n", err)
		return
	}
	for i, e := range entries {
		fmt.Printf("  %2d. %-20s %d wins\n", i+1, e.Name, e.Wins)
	}
}

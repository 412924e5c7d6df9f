// Package ledgertest runs an in-memory stand-in for the remote game ledger.
// It applies submitted actions through the real rule engines, so a client
// polling it observes the same convergence behavior as against the real
// thing. Failure injection knobs cover the eventual-consistency corners:
// dropped submissions and failing fetches.
package ledgertest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/kapu/ledger-arcade/internal/game"
	"github.com/kapu/ledger-arcade/internal/rules"
	"github.com/kapu/ledger-arcade/pkg/ledgerdto"
)

const lobbyTTL = 10 * time.Minute

type Server struct {
	mu       sync.Mutex
	sessions map[string]*ledgerdto.SessionRecord
	lobbies  map[string]*ledgerdto.LobbyRecord
	profiles map[string]*ledgerdto.ProfileRecord
	reports  []ledgerdto.ResultReport
	seen     map[string]bool // submission ids already applied

	dropSubmits int
	failFetches int

	seed uint64

	httpSrv *httptest.Server
}

// New starts the fake ledger on a random local port.
func New() *Server {
	s := &Server{
		sessions: make(map[string]*ledgerdto.SessionRecord),
		lobbies:  make(map[string]*ledgerdto.LobbyRecord),
		profiles: make(map[string]*ledgerdto.ProfileRecord),
		seen:     make(map[string]bool),
		seed:     uint64(time.Now().UnixNano()),
	}
	r := mux.NewRouter()
	r.HandleFunc("/v1/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/v1/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/v1/sessions/{id}/actions", s.handleSubmitAction).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/resign", s.handleResign).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/draw-offer", s.handleDrawOffer).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/draw-accept", s.handleDrawAccept).Methods(http.MethodPost)
	r.HandleFunc("/v1/sessions/{id}/claim-timeout", s.handleClaimTimeout).Methods(http.MethodPost)
	r.HandleFunc("/v1/lobbies", s.handleCreateLobby).Methods(http.MethodPost)
	r.HandleFunc("/v1/lobbies", s.handleOpenLobbies).Methods(http.MethodGet)
	r.HandleFunc("/v1/lobbies/{id}", s.handleGetLobby).Methods(http.MethodGet)
	r.HandleFunc("/v1/lobbies/{id}/join", s.handleJoinLobby).Methods(http.MethodPost)
	r.HandleFunc("/v1/lobbies/{id}/cancel", s.handleCancelLobby).Methods(http.MethodPost)
	r.HandleFunc("/v1/players", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/v1/players/{id}", s.handleGetProfile).Methods(http.MethodGet)
	r.HandleFunc("/v1/leaderboard", s.handleLeaderboard).Methods(http.MethodGet)
	r.HandleFunc("/v1/results", s.handleRecordResult).Methods(http.MethodPost)
	s.httpSrv = httptest.NewServer(r)
	return s
}

func (s *Server) URL() string { return s.httpSrv.URL }

func (s *Server) Close() { s.httpSrv.Close() }

// SetSeed fixes the seed handed to the next created sessions.
func (s *Server) SetSeed(seed uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed = seed
}

// DropNextSubmissions makes the next n action submissions acknowledge
// without recording anything.
func (s *Server) DropNextSubmissions(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropSubmits = n
}

// FailNextFetches makes the next n session fetches return HTTP 500.
func (s *Server) FailNextFetches(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFetches = n
}

// ExpireLobby flips a lobby to expired, as the ledger's TTL sweep would.
func (s *Server) ExpireLobby(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.lobbies[id]; ok {
		l.Status = ledgerdto.LobbyExpired
	}
}

// StartLobbySession pairs a waiting lobby with a session, simulating the
// ledger's matchmaking completing.
func (s *Server) StartLobbySession(lobbyID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return "", fmt.Errorf("no lobby %s", lobbyID)
	}
	rec := s.newSessionLocked(ledgerdto.CreateSessionRequest{
		Kind:     l.Kind,
		Mode:     l.Mode,
		PlayerID: l.Creator,
	})
	if len(l.Players) > 1 {
		rec.Players[1] = l.Players[1]
	}
	l.SessionID = rec.ID
	l.Status = ledgerdto.LobbyStarted
	return rec.ID, nil
}

// JoinSession seats a second player on a waiting session, as the ledger's
// matchmaking would.
func (s *Server) JoinSession(id, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("no session %s", id)
	}
	rec.Players[1] = playerID
	if rec.Status == ledgerdto.SessionWaiting {
		rec.Status = ledgerdto.SessionInProgress
	}
	rec.UpdatedAt = time.Now().UTC()
	return nil
}

// Session returns a copy of a stored session record, for assertions.
func (s *Server) Session(id string) (ledgerdto.SessionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[id]
	if !ok {
		return ledgerdto.SessionRecord{}, false
	}
	return *rec, true
}

// Reports returns every result record received so far.
func (s *Server) Reports() []ledgerdto.ResultReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ledgerdto.ResultReport(nil), s.reports...)
}

func (s *Server) newSessionLocked(req ledgerdto.CreateSessionRequest) *ledgerdto.SessionRecord {
	now := time.Now().UTC()
	status := ledgerdto.SessionInProgress
	if req.Mode == game.ModePeer {
		status = ledgerdto.SessionWaiting
	}
	rec := &ledgerdto.SessionRecord{
		ID:        uuid.NewString(),
		Kind:      req.Kind,
		Mode:      req.Mode,
		Status:    status,
		Seed:      s.seed,
		Table:     req.Table,
		Actions:   []game.Action{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec.Players[0] = req.PlayerID
	rec.PlayerNames[0] = req.PlayerName
	s.sessions[rec.ID] = rec
	return rec
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req ledgerdto.CreateSessionRequest
	if !readJSON(w, r, &req) {
		return
	}
	s.mu.Lock()
	rec := s.newSessionLocked(req)
	out := *rec
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.failFetches > 0 {
		s.failFetches--
		s.mu.Unlock()
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	rec, ok := s.sessions[mux.Vars(r)["id"]]
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	out := *rec
	out.Actions = append([]game.Action(nil), rec.Actions...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSubmitAction(w http.ResponseWriter, r *http.Request) {
	var req ledgerdto.SubmitActionRequest
	if !readJSON(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[mux.Vars(r)["id"]]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if s.dropSubmits > 0 {
		s.dropSubmits--
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}
	if req.SubmissionID != "" && s.seen[req.SubmissionID] {
		// duplicate delivery: ack without re-applying
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}
	if rec.Status.Final() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}
	if rec.Mode == game.ModeBot && (req.PlayerID != rec.Players[0] || req.Action.Seat != 0) {
		// bot sessions accept moves from the creator's own seat only
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}

	table := tableOf(rec)
	next := append(append([]game.Action(nil), rec.Actions...), req.Action)
	pos, err := rules.Replay(rec.Kind, rec.Seed, table, next)
	if err != nil {
		// the real ledger silently drops invalid operations
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
		return
	}
	req.Action.Seq = len(rec.Actions)
	rec.Actions = append(rec.Actions, req.Action)
	rec.Status = ledgerdto.SessionInProgress
	rec.UpdatedAt = time.Now().UTC()
	if req.SubmissionID != "" {
		s.seen[req.SubmissionID] = true
	}
	if v := pos.Terminal(); v.Over {
		rec.Status = ledgerdto.SessionCompleted
		rec.Draw = v.Draw
		rec.EndReason = string(v.Reason)
		if !v.Draw {
			winner := v.Winner
			rec.WinnerSeat = &winner
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) seatOf(rec *ledgerdto.SessionRecord, playerID string) (game.Seat, bool) {
	switch playerID {
	case rec.Players[0]:
		return 0, true
	case rec.Players[1]:
		return 1, true
	}
	return game.NoSeat, false
}

func (s *Server) handleResign(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(rec *ledgerdto.SessionRecord, seat game.Seat) {
		if rec.Status.Final() {
			return
		}
		winner := seat.Other()
		rec.Status = ledgerdto.SessionCompleted
		rec.WinnerSeat = &winner
		rec.EndReason = string(game.ReasonResignation)
		rec.UpdatedAt = time.Now().UTC()
	})
}

func (s *Server) handleDrawOffer(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(rec *ledgerdto.SessionRecord, seat game.Seat) {
		if rec.Status.Final() {
			return
		}
		offer := seat
		rec.DrawOffer = &offer
		rec.UpdatedAt = time.Now().UTC()
	})
}

func (s *Server) handleDrawAccept(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(rec *ledgerdto.SessionRecord, seat game.Seat) {
		if rec.Status.Final() || rec.DrawOffer == nil || *rec.DrawOffer == seat {
			return
		}
		rec.Status = ledgerdto.SessionCompleted
		rec.Draw = true
		rec.EndReason = string(game.ReasonDrawAgreed)
		rec.UpdatedAt = time.Now().UTC()
	})
}

func (s *Server) handleClaimTimeout(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(rec *ledgerdto.SessionRecord, seat game.Seat) {
		if rec.Status.Final() {
			return
		}
		winner := seat
		rec.Status = ledgerdto.SessionTimedOut
		rec.WinnerSeat = &winner
		rec.EndReason = string(game.ReasonTimeout)
		rec.UpdatedAt = time.Now().UTC()
	})
}

func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(*ledgerdto.SessionRecord, game.Seat)) {
	var req ledgerdto.SeatRequest
	if !readJSON(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[mux.Vars(r)["id"]]
	if !ok {
		http.NotFound(w, r)
		return
	}
	seat, ok := s.seatOf(rec, req.PlayerID)
	if !ok {
		http.Error(w, "player not in session", http.StatusForbidden)
		return
	}
	fn(rec, seat)
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleCreateLobby(w http.ResponseWriter, r *http.Request) {
	var req ledgerdto.CreateLobbyRequest
	if !readJSON(w, r, &req) {
		return
	}
	now := time.Now().UTC()
	vis := req.Visibility
	if vis == "" {
		vis = ledgerdto.LobbyPublic
	}
	rec := &ledgerdto.LobbyRecord{
		ID:         uuid.NewString(),
		Creator:    req.Creator,
		Kind:       req.Kind,
		Mode:       req.Mode,
		Visibility: vis,
		SecretHash: req.SecretHash,
		Players:    []string{req.Creator},
		Status:     ledgerdto.LobbyOpen,
		CreatedAt:  now,
		ExpiresAt:  now.Add(lobbyTTL),
	}
	s.mu.Lock()
	s.lobbies[rec.ID] = rec
	out := *rec
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOpenLobbies(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	var out []ledgerdto.LobbyRecord
	for _, l := range s.lobbies {
		if l.Status == ledgerdto.LobbyOpen && l.Visibility == ledgerdto.LobbyPublic {
			out = append(out, *l)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLobby(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.lobbies[mux.Vars(r)["id"]]
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	if rec.Status == ledgerdto.LobbyOpen && time.Now().After(rec.ExpiresAt) {
		rec.Status = ledgerdto.LobbyExpired
	}
	out := *rec
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleJoinLobby(w http.ResponseWriter, r *http.Request) {
	var req ledgerdto.JoinLobbyRequest
	if !readJSON(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lobbies[mux.Vars(r)["id"]]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if rec.Status != ledgerdto.LobbyOpen {
		http.Error(w, "lobby not open", http.StatusConflict)
		return
	}
	if rec.Visibility == ledgerdto.LobbyPrivate && rec.SecretHash != req.SecretHash {
		http.Error(w, "wrong access secret", http.StatusForbidden)
		return
	}
	rec.Players = append(rec.Players, req.PlayerID)
	rec.Status = ledgerdto.LobbyFull
	// matchmaking completes immediately: spin up the session
	sess := s.newSessionLocked(ledgerdto.CreateSessionRequest{
		Kind:     rec.Kind,
		Mode:     rec.Mode,
		PlayerID: rec.Creator,
	})
	sess.Players[1] = req.PlayerID
	sess.Status = ledgerdto.SessionInProgress
	rec.SessionID = sess.ID
	rec.Status = ledgerdto.LobbyStarted
	writeJSON(w, http.StatusOK, *rec)
}

func (s *Server) handleCancelLobby(w http.ResponseWriter, r *http.Request) {
	var req ledgerdto.SeatRequest
	if !readJSON(w, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.lobbies[mux.Vars(r)["id"]]
	if !ok {
		http.NotFound(w, r)
		return
	}
	if rec.Creator != req.PlayerID {
		http.Error(w, "only the creator can cancel", http.StatusForbidden)
		return
	}
	rec.Status = ledgerdto.LobbyCancelled
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req ledgerdto.RegisterRequest
	if !readJSON(w, r, &req) {
		return
	}
	s.mu.Lock()
	if _, ok := s.profiles[req.PlayerID]; !ok {
		s.profiles[req.PlayerID] = &ledgerdto.ProfileRecord{
			PlayerID:     req.PlayerID,
			Name:         req.Name,
			RegisteredAt: time.Now().UTC(),
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	rec, ok := s.profiles[mux.Vars(r)["id"]]
	if !ok {
		s.mu.Unlock()
		http.NotFound(w, r)
		return
	}
	out := *rec
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	s.mu.Lock()
	var out []ledgerdto.LeaderboardEntry
	for _, p := range s.profiles {
		wins := p.Chess.Wins + p.Poker.Wins + p.Blackjack.Wins
		out = append(out, ledgerdto.LeaderboardEntry{PlayerID: p.PlayerID, Name: p.Name, Wins: wins})
	}
	s.mu.Unlock()
	if len(out) > limit {
		out = out[:limit]
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecordResult(w http.ResponseWriter, r *http.Request) {
	var req ledgerdto.ResultReport
	if !readJSON(w, r, &req) {
		return
	}
	s.mu.Lock()
	s.reports = append(s.reports, req)
	if p, ok := s.profiles[req.PlayerID]; ok {
		st := &p.Chess
		switch req.Kind {
		case game.KindPoker:
			st = &p.Poker
		case game.KindBlackjack:
			st = &p.Blackjack
		}
		switch {
		case req.Draw:
			st.Draws++
			p.CurrentStreak = 0
		case req.Won:
			st.Wins++
			p.CurrentStreak++
			if p.CurrentStreak > p.BestStreak {
				p.BestStreak = p.CurrentStreak
			}
		default:
			st.Losses++
			p.CurrentStreak = 0
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func tableOf(rec *ledgerdto.SessionRecord) rules.Table {
	return rules.Table{
		PokerStack:      rec.Table.PokerStack,
		PokerSmallBlind: rec.Table.PokerSmallBlind,
		PokerBigBlind:   rec.Table.PokerBigBlind,
		BlackjackSeats:  rec.Table.BlackjackSeats,
		BlackjackBet:    rec.Table.BlackjackBet,
		BlackjackChips:  rec.Table.BlackjackChips,
	}
}

func readJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Package ledger is the HTTP client for the remote game ledger. The ledger
// is poll-only: mutations are acknowledged, never pushed, so callers learn
// their effect from the next session fetch.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/kapu/ledger-arcade/pkg/ledgerdto"
)

// ErrNotFound marks a 404 from the ledger: the record does not exist (yet).
var ErrNotFound = errors.New("ledger: not found")

// HeaderProvider injects per-request headers, e.g. auth material.
type HeaderProvider func() map[string]string

type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithMaxConnsPerHost(n int) Option {
	return func(c *Client) { c.http.MaxConnsPerHost = n }
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session fetches the full authoritative record of one session.
func (c *Client) Session(ctx context.Context, id string) (*ledgerdto.SessionRecord, error) {
	var rec ledgerdto.SessionRecord
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/sessions/"+url.PathEscape(id), nil, &rec, false); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) CreateSession(ctx context.Context, req ledgerdto.CreateSessionRequest) (*ledgerdto.SessionRecord, error) {
	var rec ledgerdto.SessionRecord
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/sessions", req, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SubmitAction submits one action. Callers treat this as fire-and-forget:
// a rejected or dropped submission surfaces through the next Session fetch,
// not through this call.
func (c *Client) SubmitAction(ctx context.Context, sessionID string, req ledgerdto.SubmitActionRequest) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/actions", req, nil, false)
}

func (c *Client) Resign(ctx context.Context, sessionID, playerID string) error {
	req := ledgerdto.SeatRequest{PlayerID: playerID}
	return c.doJSON(ctx, fasthttp.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/resign", req, nil, false)
}

func (c *Client) OfferDraw(ctx context.Context, sessionID, playerID string) error {
	req := ledgerdto.SeatRequest{PlayerID: playerID}
	return c.doJSON(ctx, fasthttp.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/draw-offer", req, nil, false)
}

func (c *Client) AcceptDraw(ctx context.Context, sessionID, playerID string) error {
	req := ledgerdto.SeatRequest{PlayerID: playerID}
	return c.doJSON(ctx, fasthttp.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/draw-accept", req, nil, false)
}

func (c *Client) ClaimTimeout(ctx context.Context, sessionID, playerID string) error {
	req := ledgerdto.SeatRequest{PlayerID: playerID}
	return c.doJSON(ctx, fasthttp.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/claim-timeout", req, nil, false)
}

// Lobby fetches one lobby record.
func (c *Client) Lobby(ctx context.Context, id string) (*ledgerdto.LobbyRecord, error) {
	var rec ledgerdto.LobbyRecord
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/lobbies/"+url.PathEscape(id), nil, &rec, false); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) CreateLobby(ctx context.Context, req ledgerdto.CreateLobbyRequest) (*ledgerdto.LobbyRecord, error) {
	var rec ledgerdto.LobbyRecord
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/lobbies", req, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) JoinLobby(ctx context.Context, id string, req ledgerdto.JoinLobbyRequest) (*ledgerdto.LobbyRecord, error) {
	var rec ledgerdto.LobbyRecord
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/v1/lobbies/"+url.PathEscape(id)+"/join", req, &rec, false); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) CancelLobby(ctx context.Context, id, playerID string) error {
	req := ledgerdto.SeatRequest{PlayerID: playerID}
	return c.doJSON(ctx, fasthttp.MethodPost, "/v1/lobbies/"+url.PathEscape(id)+"/cancel", req, nil, false)
}

func (c *Client) OpenLobbies(ctx context.Context) ([]ledgerdto.LobbyRecord, error) {
	var out []ledgerdto.LobbyRecord
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/lobbies", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, req ledgerdto.RegisterRequest) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/v1/players", req, nil, true)
}

func (c *Client) Profile(ctx context.Context, playerID string) (*ledgerdto.ProfileRecord, error) {
	var rec ledgerdto.ProfileRecord
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/v1/players/"+url.PathEscape(playerID), nil, &rec, false); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (c *Client) Leaderboard(ctx context.Context, limit int) ([]ledgerdto.LeaderboardEntry, error) {
	path := "/v1/leaderboard"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var out []ledgerdto.LeaderboardEntry
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// RecordResult submits an end-of-game stats record. Best-effort by
// contract; the caller logs and drops failures.
func (c *Client) RecordResult(ctx context.Context, req ledgerdto.ResultReport) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/v1/results", req, nil, false)
}

func (c *Client) Health(ctx context.Context) error {
	return c.doJSON(ctx, fasthttp.MethodGet, "/v1/health", nil, nil, false)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in any, out any, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")

	if c.headers != nil {
		for k, v := range c.headers() {
			if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
				req.Header.Set(k, v)
			}
		}
	}

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry {
		attempts = c.retryMax
		if attempts <= 0 {
			attempts = 1
		}
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		deadline := c.computeDeadline(ctx)
		err := c.http.DoDeadline(req, resp, deadline)
		if err != nil {
			if attempt == attempts || !retry {
				return fmt.Errorf("request failed: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status == fasthttp.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		if status < 200 || status >= 300 {
			body := string(resp.Body())
			err := fmt.Errorf("ledger api error: status=%d body=%s", status, truncate(body, 512))
			if attempt == attempts || !retry || !shouldRetryStatus(status) {
				return err
			}
			lastErr = err
			if sleepErr := c.sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return lastErr
			}
			continue
		}

		if out != nil {
			if err := json.Unmarshal(resp.Body(), out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		clientDL := time.Now().Add(c.defaultTimeout)
		if dl.Before(clientDL) {
			return dl
		}
		return clientDL
	}
	return time.Now().Add(c.defaultTimeout)
}

func (c *Client) sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	base := 100 * time.Millisecond
	return time.Duration(1<<uint(attempt-1)) * base // 100ms, 200ms ...
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

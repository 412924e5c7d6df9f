package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/kapu/ledger-arcade/internal/game"
	"github.com/kapu/ledger-arcade/internal/rules/chess"
)

// HTTPSuggester asks an external text-generation endpoint for a move. The
// reply body's "text" field is returned raw; validation happens upstream.
type HTTPSuggester struct {
	url     string
	http    *fasthttp.Client
	timeout time.Duration
}

func NewHTTPSuggester(url string, timeout time.Duration) *HTTPSuggester {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSuggester{
		url:     strings.TrimSpace(url),
		http:    &fasthttp.Client{ReadTimeout: timeout, WriteTimeout: timeout},
		timeout: timeout,
	}
}

type suggestRequest struct {
	Prompt string `json:"prompt"`
}

type suggestResponse struct {
	Text string `json:"text"`
}

func (s *HTTPSuggester) Suggest(ctx context.Context, pos game.Position, legal []game.Action) (string, error) {
	payload, err := json.Marshal(suggestRequest{Prompt: buildPrompt(pos, legal)})
	if err != nil {
		return "", err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(s.url)
	req.Header.SetContentType("application/json")
	req.SetBody(payload)

	deadline := time.Now().Add(s.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := s.http.DoDeadline(req, resp, deadline); err != nil {
		return "", fmt.Errorf("suggestion request: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("suggestion service status %d", resp.StatusCode())
	}
	var out suggestResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", fmt.Errorf("decode suggestion: %w", err)
	}
	return out.Text, nil
}

// buildPrompt renders a compact position description with the allowed
// action vocabulary spelled out, one line each.
func buildPrompt(pos game.Position, legal []game.Action) string {
	var b strings.Builder
	fmt.Fprintf(&b, "game: %s\n", pos.Kind())
	if cp, ok := pos.(*chess.Position); ok {
		fmt.Fprintf(&b, "fen: %s\n", cp.FEN())
	} else {
		fmt.Fprintf(&b, "state: %s\n", pos.Describe(pos.SeatToMove()))
	}
	b.WriteString("legal actions:\n")
	for _, a := range legal {
		fmt.Fprintf(&b, "  %s\n", a.String())
	}
	b.WriteString("reply with exactly one legal action and nothing else\n")
	return b.String()
}

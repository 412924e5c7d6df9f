package bot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kapu/ledger-arcade/internal/rules/chess"
)

func TestHTTPSuggesterRoundTrip(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in suggestRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Errorf("decode prompt: %v", err)
		}
		prompt = in.Prompt
		_ = json.NewEncoder(w).Encode(suggestResponse{Text: "e2e4"})
	}))
	defer srv.Close()

	pos := chess.NewPosition()
	s := NewHTTPSuggester(srv.URL, time.Second)
	text, err := s.Suggest(context.Background(), pos, pos.Legal())
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if text != "e2e4" {
		t.Fatalf("text = %q", text)
	}
	if !strings.Contains(prompt, "game: chess") || !strings.Contains(prompt, "fen: ") {
		t.Fatalf("prompt missing position header:\n%s", prompt)
	}
	if !strings.Contains(prompt, "e2e4") {
		t.Fatalf("prompt missing legal actions:\n%s", prompt)
	}
}

func TestHTTPSuggesterRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	pos := chess.NewPosition()
	s := NewHTTPSuggester(srv.URL, time.Second)
	if _, err := s.Suggest(context.Background(), pos, pos.Legal()); err == nil {
		t.Fatalf("expected error on non-200 reply")
	}
}

package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/kapu/ledger-arcade/internal/ledger"
)

func main() {
	baseURL := os.Getenv("LEDGER_BASE_URL")
	if baseURL == "" {
		log.Fatal("LEDGER_BASE_URL is required")
	}

	client := ledger.NewClient(baseURL, ledger.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		log.Fatalf("/health error: %v", err)
	}
	log.Println("/health ok")

	lobbies, err := client.OpenLobbies(ctx)
	if err != nil {
		log.Printf("open lobbies error: %v", err)
		return
	}
	log.Printf("open lobbies: %d", len(lobbies))
	for _, l := range lobbies {
		log.Printf("  %s %s by %s (expires %s)", l.ID, l.Kind, l.Creator, l.ExpiresAt.Format(time.RFC3339))
	}
}

package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	LedgerBaseURL string
	PlayerID      string
	PlayerName    string

	BotSuggestURL string
	BotThinkDelay time.Duration

	RedisURL    string
	DatabaseURL string

	PollInterval      time.Duration
	LobbyPollInterval time.Duration
	LobbyPollAttempts int

	ClockStart     time.Duration
	ClockIncrement time.Duration

	BlackjackBotSeats int

	MsgOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		BotThinkDelay:     1500 * time.Millisecond,
		PollInterval:      2 * time.Second,
		LobbyPollInterval: 2 * time.Second,
		LobbyPollAttempts: 60,
		ClockStart:        300 * time.Second,
		ClockIncrement:    10 * time.Second,
		BlackjackBotSeats: 2,
	}

	cfg.LedgerBaseURL = strings.TrimSpace(os.Getenv("LEDGER_BASE_URL"))
	cfg.PlayerID = strings.TrimSpace(os.Getenv("PLAYER_ID"))
	cfg.PlayerName = strings.TrimSpace(os.Getenv("PLAYER_NAME"))
	cfg.BotSuggestURL = strings.TrimSpace(os.Getenv("BOT_SUGGEST_URL"))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))

	if v := envSeconds("POLL_INTERVAL_SEC"); v > 0 {
		cfg.PollInterval = v
	}
	if v := envSeconds("LOBBY_POLL_INTERVAL_SEC"); v > 0 {
		cfg.LobbyPollInterval = v
	}
	if v := strings.TrimSpace(os.Getenv("LOBBY_POLL_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.LobbyPollAttempts = n
		}
	}
	if v := envSeconds("CLOCK_START_SEC"); v > 0 {
		cfg.ClockStart = v
	}
	if v := envSeconds("CLOCK_INCREMENT_SEC"); v >= 0 {
		cfg.ClockIncrement = v
	}
	if v := strings.TrimSpace(os.Getenv("BOT_THINK_DELAY_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.BotThinkDelay = time.Duration(n) * time.Millisecond
		}
	}
	if v := strings.TrimSpace(os.Getenv("BLACKJACK_BOT_SEATS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.BlackjackBotSeats = n
		}
	}

	if cfg.LedgerBaseURL == "" {
		return nil, errors.New("LEDGER_BASE_URL is required")
	}
	if cfg.PlayerID == "" {
		return nil, errors.New("PLAYER_ID is required")
	}

	return cfg, nil
}

func envSeconds(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return -1
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return -1
	}
	return time.Duration(n) * time.Second
}

package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/kapu/ledger-arcade/pkg/ledgerdto"
)

// Repository mirrors game results into a local database for offline
// queries. It is optional; the ledger stays the source of truth.
type Repository interface {
	InsertResult(ctx context.Context, playerID string, rep ledgerdto.ResultReport, endedAt time.Time) error
	BumpProfile(ctx context.Context, playerID string, rep ledgerdto.ResultReport, endedAt time.Time) error
	GetProfile(ctx context.Context, playerID string) (*ProfileRow, error)
}

// ProfileRow is the local mirror of a player's per-kind record.
type ProfileRow struct {
	PlayerID     string
	Kind         string
	Wins         int
	Losses       int
	Draws        int
	Streak       int
	BestStreak   int
	LastPlayedAt time.Time
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) InsertResult(ctx context.Context, playerID string, rep ledgerdto.ResultReport, endedAt time.Time) error {
	const query = `
		INSERT INTO game_results (
			player_id,
			kind,
			won,
			draw,
			moves,
			reason,
			ended_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(
		ctx,
		query,
		playerID,
		string(rep.Kind),
		rep.Won,
		rep.Draw,
		rep.Moves,
		rep.Reason,
		endedAt,
	)
	if err != nil {
		return fmt.Errorf("insert game result: %w", err)
	}
	return nil
}

func (r *repository) BumpProfile(ctx context.Context, playerID string, rep ledgerdto.ResultReport, endedAt time.Time) error {
	var wins, losses, draws, streakDelta int
	switch {
	case rep.Draw:
		draws = 1
	case rep.Won:
		wins = 1
		streakDelta = 1
	default:
		losses = 1
	}

	const query = `
		INSERT INTO player_profiles (
			player_id,
			kind,
			wins,
			losses,
			draws,
			streak,
			best_streak,
			last_played_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7)
		ON CONFLICT (player_id, kind)
		DO UPDATE SET
			wins = player_profiles.wins + EXCLUDED.wins,
			losses = player_profiles.losses + EXCLUDED.losses,
			draws = player_profiles.draws + EXCLUDED.draws,
			streak = CASE WHEN $6 > 0 THEN player_profiles.streak + 1 ELSE 0 END,
			best_streak = GREATEST(
				player_profiles.best_streak,
				CASE WHEN $6 > 0 THEN player_profiles.streak + 1 ELSE 0 END),
			last_played_at = EXCLUDED.last_played_at`

	_, err := r.db.ExecContext(
		ctx,
		query,
		playerID,
		string(rep.Kind),
		wins,
		losses,
		draws,
		streakDelta,
		endedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert player profile: %w", err)
	}
	return nil
}

func (r *repository) GetProfile(ctx context.Context, playerID string) (*ProfileRow, error) {
	const query = `
		SELECT
			player_id,
			kind,
			wins,
			losses,
			draws,
			streak,
			best_streak,
			last_played_at
		FROM player_profiles
		WHERE player_id = $1
		ORDER BY last_played_at DESC
		LIMIT 1`

	var row ProfileRow
	err := r.db.QueryRowContext(ctx, query, playerID).Scan(
		&row.PlayerID,
		&row.Kind,
		&row.Wins,
		&row.Losses,
		&row.Draws,
		&row.Streak,
		&row.BestStreak,
		&row.LastPlayedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select player profile: %w", err)
	}
	return &row, nil
}

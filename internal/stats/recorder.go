// Package stats reports end-of-game results: to the ledger's result
// mutation, and optionally into a local Postgres mirror. Reporting is
// best-effort by contract; a failure is logged and the player goes back
// to the lobby regardless.
package stats

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kapu/ledger-arcade/internal/ledger"
	"github.com/kapu/ledger-arcade/internal/obslog"
	"github.com/kapu/ledger-arcade/pkg/ledgerdto"
)

type Recorder struct {
	client *ledger.Client
	repo   Repository
}

// NewRecorder builds a recorder. repo may be nil to skip the local mirror.
func NewRecorder(client *ledger.Client, repo Repository) *Recorder {
	return &Recorder{client: client, repo: repo}
}

// Report submits one result record. It never returns an error: every
// failure path logs and moves on.
func (r *Recorder) Report(ctx context.Context, rep ledgerdto.ResultReport) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if r.client != nil {
		if err := r.client.RecordResult(ctx, rep); err != nil {
			obslog.L().Warn("stats_record_failed",
				zap.String("player_id", rep.PlayerID),
				zap.String("kind", string(rep.Kind)),
				zap.Error(err),
			)
		} else {
			obslog.L().Info("stats_record",
				zap.String("player_id", rep.PlayerID),
				zap.String("kind", string(rep.Kind)),
				zap.Bool("won", rep.Won),
				zap.Int("moves", rep.Moves),
			)
		}
	}

	if r.repo == nil {
		return
	}
	now := time.Now().UTC()
	if err := r.repo.InsertResult(ctx, rep.PlayerID, rep, now); err != nil {
		obslog.L().Warn("stats_mirror_insert_failed", zap.Error(err))
		return
	}
	if err := r.repo.BumpProfile(ctx, rep.PlayerID, rep, now); err != nil {
		obslog.L().Warn("stats_mirror_profile_failed", zap.Error(err))
	}
}

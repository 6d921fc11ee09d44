package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marinade-finance/psr-dashboard/internal/types"
)

// EstimateRun records one dashboard refresh and the estimates it produced.
type EstimateRun struct {
	RunID              uuid.UUID                           `json:"run_id"`
	StartedAt          time.Time                           `json:"started_at"`
	CompletedAt        time.Time                           `json:"completed_at"`
	ValidatorCount     int                                 `json:"validator_count"`
	SettledEventCount  int                                 `json:"settled_event_count"`
	LatestSettledEpoch uint64                              `json:"latest_settled_epoch"`
	EventCount         int                                 `json:"event_count"`
	LamportsByFunder   map[types.SettlementFunder]math.Int `json:"lamports_by_funder"`
	SettlementConfigID *int64                              `json:"settlement_config_id,omitempty"`
	Events             []types.ProtectedEvent              `json:"events,omitempty"`
}

// SaveEstimateRun stores a completed run.
func SaveEstimateRun(ctx context.Context, run EstimateRun) error {
	if DB == nil {
		return ErrDBNotInitialized
	}
	if run.RunID == uuid.Nil {
		return errors.New("estimate run has no run id")
	}

	lamportsJSON, err := json.Marshal(run.LamportsByFunder)
	if err != nil {
		return fmt.Errorf("failed to marshal lamports_by_funder: %w", err)
	}

	events := run.Events
	if events == nil {
		events = []types.ProtectedEvent{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	query := `
		INSERT INTO estimate_runs (
			run_id, started_at, completed_at,
			validator_count, settled_event_count, latest_settled_epoch,
			event_count, lamports_by_funder, settlement_config_id, events
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	_, err = DB.ExecContext(ctx, query,
		run.RunID, run.StartedAt, run.CompletedAt,
		run.ValidatorCount, run.SettledEventCount, int64(run.LatestSettledEpoch),
		run.EventCount, string(lamportsJSON), run.SettlementConfigID, string(eventsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save estimate run: %w", err)
	}

	log.Info().
		Str("run_id", run.RunID.String()).
		Int("event_count", run.EventCount).
		Uint64("latest_settled_epoch", run.LatestSettledEpoch).
		Msg("Estimate run saved to database")
	return nil
}

package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var ErrRunNotFound = errors.New("estimate run not found")

const (
	defaultRecentRunsLimit = 10
	maxRecentRunsLimit     = 100
)

// RunStatistics aggregates every stored estimate run.
type RunStatistics struct {
	TotalRuns         int        `json:"total_runs"`
	LastRunAt         *time.Time `json:"last_run_at,omitempty"`
	AvgEventCount     float64    `json:"avg_event_count"`
	MaxEventCount     int        `json:"max_event_count"`
	AvgDurationMillis float64    `json:"avg_duration_millis"`
}

// GetRecentEstimateRuns lists the latest runs without their event payloads.
func GetRecentEstimateRuns(ctx context.Context, limit int) ([]EstimateRun, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	if limit <= 0 || limit > maxRecentRunsLimit {
		limit = defaultRecentRunsLimit
	}

	query := `
		SELECT
			run_id, started_at, completed_at,
			validator_count, settled_event_count, latest_settled_epoch,
			event_count, lamports_by_funder, settlement_config_id
		FROM estimate_runs
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := DB.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent estimate runs: %w", err)
	}
	defer rows.Close()

	runs := make([]EstimateRun, 0, limit)
	for rows.Next() {
		var run EstimateRun
		var latestSettledEpoch int64
		var lamportsJSON []byte
		var configID sql.NullInt64

		err := rows.Scan(
			&run.RunID, &run.StartedAt, &run.CompletedAt,
			&run.ValidatorCount, &run.SettledEventCount, &latestSettledEpoch,
			&run.EventCount, &lamportsJSON, &configID,
		)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan estimate run row")
			continue
		}
		if err := json.Unmarshal(lamportsJSON, &run.LamportsByFunder); err != nil {
			log.Error().Err(err).Str("run_id", run.RunID.String()).Msg("Failed to unmarshal lamports_by_funder")
			continue
		}
		run.LatestSettledEpoch = uint64(latestSettledEpoch)
		if configID.Valid {
			run.SettlementConfigID = &configID.Int64
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}

	log.Debug().Int("count", len(runs)).Int("limit", limit).Msg("Retrieved recent estimate runs")
	return runs, nil
}

// GetEstimateRun loads one run including its events.
func GetEstimateRun(ctx context.Context, runID uuid.UUID) (*EstimateRun, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	query := `
		SELECT
			run_id, started_at, completed_at,
			validator_count, settled_event_count, latest_settled_epoch,
			event_count, lamports_by_funder, settlement_config_id, events
		FROM estimate_runs
		WHERE run_id = $1
	`

	var run EstimateRun
	var latestSettledEpoch int64
	var lamportsJSON, eventsJSON []byte
	var configID sql.NullInt64

	err := DB.QueryRowContext(ctx, query, runID).Scan(
		&run.RunID, &run.StartedAt, &run.CompletedAt,
		&run.ValidatorCount, &run.SettledEventCount, &latestSettledEpoch,
		&run.EventCount, &lamportsJSON, &configID, &eventsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to query estimate run %s: %w", runID, err)
	}

	if err := json.Unmarshal(lamportsJSON, &run.LamportsByFunder); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lamports_by_funder: %w", err)
	}
	if err := json.Unmarshal(eventsJSON, &run.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}
	run.LatestSettledEpoch = uint64(latestSettledEpoch)
	if configID.Valid {
		run.SettlementConfigID = &configID.Int64
	}

	return &run, nil
}

// GetRunStatistics aggregates over all stored runs.
func GetRunStatistics(ctx context.Context) (*RunStatistics, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	query := `
		SELECT
			COUNT(*),
			MAX(started_at),
			COALESCE(AVG(event_count), 0),
			COALESCE(MAX(event_count), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - started_at)) * 1000), 0)
		FROM estimate_runs
	`

	stats := &RunStatistics{}
	var lastRunAt sql.NullTime
	err := DB.QueryRowContext(ctx, query).Scan(
		&stats.TotalRuns,
		&lastRunAt,
		&stats.AvgEventCount,
		&stats.MaxEventCount,
		&stats.AvgDurationMillis,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get run statistics: %w", err)
	}
	if lastRunAt.Valid {
		stats.LastRunAt = &lastRunAt.Time
	}

	return stats, nil
}

package state

import (
	"context"

	"github.com/google/uuid"
)

// Repository exposes the package-level store functions as methods so callers can
// depend on small interfaces instead of the global pool.
type Repository struct {
	// SettlementConfigID is stamped on runs saved without one.
	SettlementConfigID *int64
}

func (r Repository) SaveEstimateRun(ctx context.Context, run EstimateRun) error {
	if run.SettlementConfigID == nil {
		run.SettlementConfigID = r.SettlementConfigID
	}
	return SaveEstimateRun(ctx, run)
}

func (Repository) RecentEstimateRuns(ctx context.Context, limit int) ([]EstimateRun, error) {
	return GetRecentEstimateRuns(ctx, limit)
}

func (Repository) EstimateRun(ctx context.Context, runID uuid.UUID) (*EstimateRun, error) {
	return GetEstimateRun(ctx, runID)
}

func (Repository) RunStatistics(ctx context.Context) (*RunStatistics, error) {
	return GetRunStatistics(ctx)
}

func (Repository) Ping(ctx context.Context) error {
	return TestDBConnection(ctx)
}

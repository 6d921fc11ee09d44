/*

The dashboard service combines the protected events already settled on-chain with
local estimates for the epochs that are not settled yet. Each refresh is one
independent computation; the result is cached for the web API.

*/

package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/marinade-finance/psr-dashboard/internal/estimator"
	"github.com/marinade-finance/psr-dashboard/internal/logger"
	"github.com/marinade-finance/psr-dashboard/internal/metrics"
	"github.com/marinade-finance/psr-dashboard/internal/state"
	"github.com/marinade-finance/psr-dashboard/internal/types"
	"github.com/marinade-finance/psr-dashboard/internal/utils"
)

var dashboardLogger = logger.GetForComponent("dashboard")

var (
	ErrValidatorsUnavailable    = errors.New("validators feed unavailable")
	ErrSettledEventsUnavailable = errors.New("protected events feed unavailable")
)

type ValidatorsSource interface {
	FetchValidators(ctx context.Context, epochs int) ([]types.Validator, error)
}

type SettledEventsSource interface {
	FetchProtectedEvents(ctx context.Context) ([]types.ProtectedEvent, error)
}

type BondsSource interface {
	FetchBonds(ctx context.Context) ([]types.BondRecord, error)
}

// RunRecorder persists a summary of every successful refresh.
type RunRecorder interface {
	SaveEstimateRun(ctx context.Context, run state.EstimateRun) error
}

// Config holds the dependencies of a Service. Recorder and Bonds are optional.
type Config struct {
	Validators          ValidatorsSource
	SettledEvents       SettledEventsSource
	Bonds               BondsSource
	Estimator           *estimator.Estimator
	Recorder            RunRecorder
	ValidatorEpochs     int
	LastDryrunEpoch     uint64
	BondStakeMultiplier int64
}

// Snapshot is the result of one refresh.
type Snapshot struct {
	RunID              uuid.UUID              `json:"run_id"`
	GeneratedAt        time.Time              `json:"generated_at"`
	LatestSettledEpoch uint64                 `json:"latest_settled_epoch"`
	LastDryrunEpoch    uint64                 `json:"last_dryrun_epoch"`
	Events             []ProtectedEventView   `json:"events"`
	Estimates          []types.ProtectedEvent `json:"estimates"`
	Summary            Summary                `json:"summary"`
	Bonds              *BondsTable            `json:"bonds,omitempty"` // Nil when bonds are disabled or unavailable
}

// Filter returns the rows matching f in snapshot order.
func (s *Snapshot) Filter(f Filter) []ProtectedEventView {
	result := make([]ProtectedEventView, 0, len(s.Events))
	for _, view := range s.Events {
		if f.Matches(view.ProtectedEventWithValidator) {
			result = append(result, view)
		}
	}
	return result
}

type Service struct {
	logger          zerolog.Logger
	validators          ValidatorsSource
	settledEvents       SettledEventsSource
	bonds               BondsSource
	estimator           *estimator.Estimator
	recorder            RunRecorder
	validatorEpochs     int
	lastDryrunEpoch     uint64
	bondStakeMultiplier int64
	now                 func() time.Time

	mu     sync.RWMutex
	latest *Snapshot
}

func New(cfg Config) (*Service, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("dashboard configuration validation failed: %w", err)
	}

	return &Service{
		logger:              dashboardLogger,
		validators:          cfg.Validators,
		settledEvents:       cfg.SettledEvents,
		bonds:               cfg.Bonds,
		estimator:           cfg.Estimator,
		recorder:            cfg.Recorder,
		validatorEpochs:     cfg.ValidatorEpochs,
		lastDryrunEpoch:     cfg.LastDryrunEpoch,
		bondStakeMultiplier: cfg.BondStakeMultiplier,
		now:                 func() time.Time { return time.Now().UTC() },
	}, nil
}

func validateConfig(cfg Config) error {
	var errs []error
	if cfg.Validators == nil {
		errs = append(errs, errors.New("validators source cannot be nil"))
	}
	if cfg.SettledEvents == nil {
		errs = append(errs, errors.New("protected events source cannot be nil"))
	}
	if cfg.Estimator == nil {
		errs = append(errs, errors.New("estimator cannot be nil"))
	}
	if cfg.ValidatorEpochs < 2 {
		errs = append(errs, errors.New("validator epochs must be at least 2"))
	}
	if cfg.Bonds != nil && cfg.BondStakeMultiplier < 1 {
		errs = append(errs, errors.New("bond stake multiplier must be at least 1"))
	}
	return errors.Join(errs...)
}

// Latest returns the last successful snapshot, if any.
func (s *Service) Latest() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// SettlementConfig returns the bands the estimates are computed with.
func (s *Service) SettlementConfig() types.SettlementConfig {
	return s.estimator.SettlementConfig()
}

// RunLoop refreshes immediately and then on every tick until ctx is done.
// A failed refresh keeps the previous snapshot.
func (s *Service) RunLoop(ctx context.Context, interval time.Duration) {
	s.logger.Info().Dur("interval", interval).Msg("Starting dashboard refresh loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.refreshAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("Dashboard refresh loop stopped due to context cancellation")
			return
		case <-ticker.C:
			s.refreshAndLog(ctx)
		}
	}
}

func (s *Service) refreshAndLog(ctx context.Context) {
	if _, err := s.Refresh(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Dashboard refresh failed, keeping previous snapshot")
	}
}

// Refresh fetches validators, settled events and bonds concurrently, estimates the
// unsettled epochs, merges both lists and caches the result. Bonds are best effort:
// when they cannot be fetched the snapshot carries no bonds table.
func (s *Service) Refresh(ctx context.Context) (snapshot *Snapshot, err error) {
	startedAt := s.now()
	runID := uuid.New()
	runLogger := s.logger.With().Str("run_id", runID.String()).Logger()
	defer func(begin time.Time) {
		metrics.RecordRefresh(time.Since(begin), err)
	}(time.Now())

	runLogger.Info().Msg("--- Starting dashboard refresh ---")

	var (
		validators []types.Validator
		settled    []types.ProtectedEvent
		bonds      []types.BondRecord
		bondsErr   error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetched, err := s.validators.FetchValidators(gctx, s.validatorEpochs)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrValidatorsUnavailable, err)
		}
		validators = fetched
		return nil
	})
	g.Go(func() error {
		fetched, err := s.settledEvents.FetchProtectedEvents(gctx)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSettledEventsUnavailable, err)
		}
		settled = fetched
		return nil
	})
	if s.bonds != nil {
		g.Go(func() error {
			bonds, bondsErr = s.bonds.FetchBonds(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		runLogger.Error().Err(err).Msg("Refresh aborted: failed to fetch inputs")
		return nil, err
	}
	if bondsErr != nil {
		runLogger.Warn().Err(bondsErr).Msg("Bonds unavailable, publishing the snapshot without them")
	}
	runLogger.Info().
		Int("validators", len(validators)).
		Int("settledEvents", len(settled)).
		Int("bonds", len(bonds)).
		Msg("Inputs fetched")

	estimates, err := s.estimator.Estimate(ctx, validators)
	if err != nil {
		runLogger.Error().Err(err).Msg("Refresh aborted: estimation failed")
		return nil, err
	}

	merged := MergeProtectedEvents(validators, settled, estimates, s.lastDryrunEpoch)
	views := make([]ProtectedEventView, 0, len(merged))
	for _, item := range merged {
		views = append(views, NewProtectedEventView(item))
	}

	snapshot = &Snapshot{
		RunID:              runID,
		GeneratedAt:        s.now(),
		LatestSettledEpoch: LatestSettledEpoch(settled),
		LastDryrunEpoch:    s.lastDryrunEpoch,
		Events:             views,
		Estimates:          estimates,
		Summary:            Summarize(merged),
	}
	if s.bonds != nil && bondsErr == nil {
		table := BuildBondsTable(validators, bonds, s.bondStakeMultiplier)
		snapshot.Bonds = &table
		publishBondMetrics(table.Summary)
	}

	lamportsByFunder := LamportsByFunder(estimates)
	publishEstimateMetrics(estimates, lamportsByFunder)
	s.record(ctx, runLogger, state.EstimateRun{
		RunID:              runID,
		StartedAt:          startedAt,
		CompletedAt:        snapshot.GeneratedAt,
		ValidatorCount:     len(validators),
		SettledEventCount:  len(settled),
		LatestSettledEpoch: snapshot.LatestSettledEpoch,
		EventCount:         len(estimates),
		LamportsByFunder:   lamportsByFunder,
		Events:             estimates,
	})

	s.mu.Lock()
	s.latest = snapshot
	s.mu.Unlock()

	runLogger.Info().
		Uint64("latestSettledEpoch", snapshot.LatestSettledEpoch).
		Int("estimates", len(estimates)).
		Int("rows", len(views)).
		Dur("duration", time.Since(startedAt)).
		Msg("--- Dashboard refresh complete ---")

	return snapshot, nil
}

// record stores the run history. Storage problems never fail a refresh.
func (s *Service) record(ctx context.Context, runLogger zerolog.Logger, run state.EstimateRun) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.SaveEstimateRun(ctx, run); err != nil {
		runLogger.Warn().Err(err).Msg("Failed to save estimate run")
	}
}

func publishEstimateMetrics(estimates []types.ProtectedEvent, lamportsByFunder map[types.SettlementFunder]math.Int) {
	eventCounts := make(map[[2]string]int)
	for _, event := range estimates {
		reasonKind := string(event.Reason.Kind())
		if reason, ok := event.Reason.ProtectedEvent(); ok {
			reasonKind = string(reason.Kind())
		}
		eventCounts[[2]string{string(event.Meta.Funder), reasonKind}]++
	}

	lamports := make(map[string]float64, len(lamportsByFunder))
	for funder, amount := range lamportsByFunder {
		lamports[string(funder)] = utils.DecToFloat64(math.LegacyNewDecFromInt(amount))
	}

	metrics.SetEstimates(eventCounts, lamports)
}

func publishBondMetrics(summary BondsSummary) {
	metrics.SetBonds(
		summary.FundedBonds,
		utils.DecToFloat64(math.LegacyNewDecFromInt(summary.ProtectedStake)),
		utils.DecToFloat64(math.LegacyNewDecFromInt(summary.MarinadeStake)),
	)
}

/*

Protected event estimator.

Given validator epoch stats and the network inflation rewards, the estimator
derives which validators caused stakers a yield shortfall (low credits or a
commission increase), quantifies it in lamports and splits it between the
settlement bands. It is a pure computation apart from the single rewards fetch.

*/

package estimator

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/marinade-finance/psr-dashboard/internal/logger"
	"github.com/marinade-finance/psr-dashboard/internal/types"
)

var ErrRewardsUnavailable = errors.New("rewards feed unavailable")

var estimatorLogger = logger.GetForComponent("protected_events_estimator")

// RewardsSource provides the network rewards feed.
type RewardsSource interface {
	FetchRewards(ctx context.Context) (types.RewardsResponse, error)
}

// Estimator estimates protected events for the epochs covered by the rewards feed.
type Estimator struct {
	logger     zerolog.Logger
	rewards    RewardsSource
	settlement types.SettlementConfig
}

// Config holds the dependencies of an Estimator.
type Config struct {
	Rewards    RewardsSource
	Settlement types.SettlementConfig
}

// NewEstimator validates the settlement bands and returns a ready estimator.
func NewEstimator(cfg Config) (*Estimator, error) {
	if cfg.Rewards == nil {
		return nil, fmt.Errorf("rewards source cannot be nil")
	}
	if err := ValidateSettlementConfig(cfg.Settlement); err != nil {
		return nil, err
	}

	return &Estimator{
		logger:     estimatorLogger,
		rewards:    cfg.Rewards,
		settlement: cfg.Settlement,
	}, nil
}

// SettlementConfig returns the bands used by this estimator.
func (e *Estimator) SettlementConfig() types.SettlementConfig {
	return e.settlement
}

// Estimate fetches the rewards feed once and returns low credits events followed
// by commission increase events. A failed fetch aborts the whole estimation.
func (e *Estimator) Estimate(ctx context.Context, validators []types.Validator) ([]types.ProtectedEvent, error) {
	rewards, err := e.rewards.FetchRewards(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("Failed to fetch rewards, aborting estimation")
		return nil, fmt.Errorf("%w: %w", ErrRewardsUnavailable, err)
	}

	events := CalculateProtectedEventEstimates(validators, rewards.RewardsInflationEst, e.settlement)

	e.logger.Info().
		Int("validators", len(validators)).
		Int("rewardEpochs", len(rewards.RewardsInflationEst)).
		Int("events", len(events)).
		Msg("Protected events estimated")

	return events, nil
}

// CalculateProtectedEventEstimates is the deterministic core of Estimate.
func CalculateProtectedEventEstimates(
	validators []types.Validator,
	inflationRewards []types.EpochRewards,
	settlement types.SettlementConfig,
) []types.ProtectedEvent {
	validators = withUniqueEpochStats(validators)

	stakeByEpoch := CalcStakeByEpoch(validators)
	targetCreditsByEpoch := CalcTargetCreditsByEpoch(validators)
	eprCalculators := BuildEprCalculators(stakeByEpoch, inflationRewards)

	lowCredits := CalculateLowCreditsEstimates(validators, targetCreditsByEpoch, eprCalculators, settlement.LowCredits)
	commissionIncrease := CalculateCommissionIncreaseEstimates(validators, eprCalculators, settlement.CommissionIncrease)

	return append(lowCredits, commissionIncrease...)
}

// withUniqueEpochStats drops repeated epochs from every validator's stats, keeping
// the first record, so each validator-epoch is aggregated and settled once.
// The input is not modified.
func withUniqueEpochStats(validators []types.Validator) []types.Validator {
	result := make([]types.Validator, len(validators))
	for i, validator := range validators {
		seen := make(map[uint64]struct{}, len(validator.EpochStats))
		stats := make([]types.ValidatorEpochStat, 0, len(validator.EpochStats))
		for _, epochStat := range validator.EpochStats {
			if _, exists := seen[epochStat.Epoch]; exists {
				continue
			}
			seen[epochStat.Epoch] = struct{}{}
			stats = append(stats, epochStat)
		}
		validator.EpochStats = stats
		result[i] = validator
	}
	return result
}

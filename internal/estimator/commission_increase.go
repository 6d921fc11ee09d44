package estimator

import (
	"github.com/marinade-finance/psr-dashboard/internal/types"
)

// commissionIncreaseLoss measures the shortfall caused by a commission change
// between the previous and the current epoch.
func commissionIncreaseLoss(eprCalculator EprCalculator, prevEpochStat, epochStat types.ValidatorEpochStat) (eprLoss, bool) {
	expectedEpr := eprCalculator(prevEpochStat.CommissionAdvertised)
	actualEpr := eprCalculator(epochStat.CommissionAdvertised)

	return newEprLoss(expectedEpr, actualEpr, epochStat.TotalMarinadeStake())
}

func buildCommissionIncreaseProtectedEvent(
	config types.CommissionIncreaseSettlementConfig,
	eprCalculator EprCalculator,
	validator types.Validator,
	prevEpochStat types.ValidatorEpochStat,
	epochStat types.ValidatorEpochStat,
) (types.ProtectedEvent, bool) {
	increase := int64(epochStat.CommissionAdvertised - prevEpochStat.CommissionAdvertised)
	if increase <= config.GraceCommissionIncrease {
		return types.ProtectedEvent{}, false
	}

	loss, ok := commissionIncreaseLoss(eprCalculator, prevEpochStat, epochStat)
	if !ok {
		return types.ProtectedEvent{}, false
	}

	// The grace is in percentage points while the loss is in basis points. The
	// settlement pipeline compares them directly, so estimates do the same.
	if loss.lossBps < config.GraceCommissionIncrease {
		return types.ProtectedEvent{}, false
	}

	amount, ok := loss.settle(config.CoveredRangeBps, config.MinSettlementLamports)
	if !ok {
		return types.ProtectedEvent{}, false
	}

	return types.ProtectedEvent{
		Epoch:       epochStat.Epoch,
		Amount:      amount,
		VoteAccount: validator.VoteAccount,
		Meta:        config.Meta,
		Reason: types.NewProtectedEventSettlement(types.CommissionIncrease{
			VoteAccount:        validator.VoteAccount,
			PreviousCommission: prevEpochStat.CommissionAdvertised,
			CurrentCommission:  epochStat.CommissionAdvertised,
			ExpectedEpr:        loss.expectedEpr,
			ActualEpr:          loss.actualEpr,
			EprLossBps:         loss.lossBps,
			Stake:              loss.stake,
		}),
	}, true
}

// epochStatsByEpoch indexes a validator's stats. When the feed repeats an epoch the
// first record wins.
func epochStatsByEpoch(validator types.Validator) map[uint64]types.ValidatorEpochStat {
	result := make(map[uint64]types.ValidatorEpochStat, len(validator.EpochStats))
	for _, epochStat := range validator.EpochStats {
		if _, exists := result[epochStat.Epoch]; !exists {
			result[epochStat.Epoch] = epochStat
		}
	}
	return result
}

// CalculateCommissionIncreaseEstimates compares every epoch with the epoch right
// before it. The stats are not assumed to be sorted.
func CalculateCommissionIncreaseEstimates(
	validators []types.Validator,
	eprCalculators EprCalculators,
	configs []types.CommissionIncreaseSettlementConfig,
) []types.ProtectedEvent {
	events := make([]types.ProtectedEvent, 0)

	for _, validator := range validators {
		statsByEpoch := epochStatsByEpoch(validator)

		for _, epochStat := range validator.EpochStats {
			if epochStat.Epoch == 0 {
				continue
			}
			prevEpochStat, hasPrev := statsByEpoch[epochStat.Epoch-1]
			eprCalculator, hasEpr := eprCalculators[epochStat.Epoch]
			if !hasPrev || !hasEpr {
				continue
			}

			for _, config := range configs {
				if event, ok := buildCommissionIncreaseProtectedEvent(config, eprCalculator, validator, prevEpochStat, epochStat); ok {
					estimatorLogger.Debug().
						Str("voteAccount", validator.VoteAccount).
						Uint64("epoch", epochStat.Epoch).
						Str("funder", string(config.Meta.Funder)).
						Int("previousCommission", prevEpochStat.CommissionAdvertised).
						Int("currentCommission", epochStat.CommissionAdvertised).
						Str("amount", event.Amount.String()).
						Msg("Commission increase protected event estimated")
					events = append(events, event)
				}
			}
		}
	}

	return events
}

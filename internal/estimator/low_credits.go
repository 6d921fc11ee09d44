package estimator

import (
	"github.com/marinade-finance/psr-dashboard/internal/types"
)

// lowCreditsLoss measures the reward shortfall of a validator that earned no more
// than the epoch's target credits. The advertised commission is assumed constant
// within the epoch, so expected and actual EPR differ only by the credits ratio.
func lowCreditsLoss(eprCalculator EprCalculator, targetCredits int64, epochStat types.ValidatorEpochStat) (eprLoss, bool) {
	if targetCredits <= 0 || epochStat.Credits > targetCredits {
		return eprLoss{}, false
	}

	expectedEpr := eprCalculator(epochStat.CommissionAdvertised)
	actualEpr := expectedEpr.MulInt64(epochStat.Credits).QuoInt64(targetCredits)

	return newEprLoss(expectedEpr, actualEpr, epochStat.TotalMarinadeStake())
}

func buildLowCreditsProtectedEvent(
	config types.LowCreditsSettlementConfig,
	targetCredits int64,
	validator types.Validator,
	epochStat types.ValidatorEpochStat,
	loss eprLoss,
) (types.ProtectedEvent, bool) {
	if loss.lossBps <= config.GraceLowCreditsBps {
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
		Reason: types.NewProtectedEventSettlement(types.LowCredits{
			VoteAccount:     validator.VoteAccount,
			ExpectedCredits: targetCredits,
			ActualCredits:   epochStat.Credits,
			Commission:      epochStat.CommissionAdvertised,
			ExpectedEpr:     loss.expectedEpr,
			ActualEpr:       loss.actualEpr,
			EprLossBps:      loss.lossBps,
			Stake:           loss.stake,
		}),
	}, true
}

// CalculateLowCreditsEstimates emits at most one event per band for every
// validator-epoch that has both a target credits value and an EPR calculator.
// Each validator is expected to list an epoch once, as CalculateProtectedEventEstimates
// guarantees.
func CalculateLowCreditsEstimates(
	validators []types.Validator,
	targetCreditsByEpoch TargetCreditsByEpoch,
	eprCalculators EprCalculators,
	configs []types.LowCreditsSettlementConfig,
) []types.ProtectedEvent {
	events := make([]types.ProtectedEvent, 0)

	for _, validator := range validators {
		for _, epochStat := range validator.EpochStats {
			targetCredits, hasTarget := targetCreditsByEpoch[epochStat.Epoch]
			eprCalculator, hasEpr := eprCalculators[epochStat.Epoch]
			if !hasTarget || !hasEpr {
				continue
			}

			loss, ok := lowCreditsLoss(eprCalculator, targetCredits, epochStat)
			if !ok {
				continue
			}

			for _, config := range configs {
				if event, ok := buildLowCreditsProtectedEvent(config, targetCredits, validator, epochStat, loss); ok {
					estimatorLogger.Debug().
						Str("voteAccount", validator.VoteAccount).
						Uint64("epoch", epochStat.Epoch).
						Str("funder", string(config.Meta.Funder)).
						Int64("eprLossBps", loss.lossBps).
						Str("amount", event.Amount.String()).
						Msg("Low credits protected event estimated")
					events = append(events, event)
				}
			}
		}
	}

	return events
}

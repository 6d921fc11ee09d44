package estimator

import (
	"cosmossdk.io/math"

	"github.com/marinade-finance/psr-dashboard/internal/types"
	"github.com/marinade-finance/psr-dashboard/internal/utils"
)

// TargetCreditsByEpoch is the stake-weighted mean of vote credits per epoch.
// A validator at or below this value is treated as underperforming.
type TargetCreditsByEpoch map[uint64]int64

// CalcTargetCreditsByEpoch weights every validator's credits by its activated stake
// and rounds the mean to the nearest integer. Epochs without any stake are left out.
func CalcTargetCreditsByEpoch(validators []types.Validator) TargetCreditsByEpoch {
	sumOfWeightedCreditsPerEpoch := make(map[uint64]math.LegacyDec)
	sumOfWeightsPerEpoch := make(map[uint64]math.LegacyDec)

	for _, validator := range validators {
		for _, epochStat := range validator.EpochStats {
			weight := activatedStakeSol(epochStat)

			weighted, ok := sumOfWeightedCreditsPerEpoch[epochStat.Epoch]
			if !ok {
				weighted = math.LegacyZeroDec()
			}
			sumOfWeightedCreditsPerEpoch[epochStat.Epoch] = weighted.Add(weight.MulInt64(epochStat.Credits))

			weights, ok := sumOfWeightsPerEpoch[epochStat.Epoch]
			if !ok {
				weights = math.LegacyZeroDec()
			}
			sumOfWeightsPerEpoch[epochStat.Epoch] = weights.Add(weight)
		}
	}

	result := make(TargetCreditsByEpoch, len(sumOfWeightsPerEpoch))
	for epoch, sumOfWeights := range sumOfWeightsPerEpoch {
		if !sumOfWeights.IsPositive() {
			continue
		}
		mean := sumOfWeightedCreditsPerEpoch[epoch].Quo(sumOfWeights)
		result[epoch] = utils.RoundHalfUp(mean).Int64()
	}

	return result
}

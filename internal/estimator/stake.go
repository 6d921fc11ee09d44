package estimator

import (
	"cosmossdk.io/math"

	"github.com/marinade-finance/psr-dashboard/internal/types"
	"github.com/marinade-finance/psr-dashboard/internal/utils"
)

// StakeByEpoch is the total activated stake of all validators per epoch, in SOL.
type StakeByEpoch map[uint64]math.LegacyDec

// CalcStakeByEpoch sums the activated stake of every validator for each epoch.
func CalcStakeByEpoch(validators []types.Validator) StakeByEpoch {
	result := make(StakeByEpoch)

	for _, validator := range validators {
		for _, epochStat := range validator.EpochStats {
			stake, ok := result[epochStat.Epoch]
			if !ok {
				stake = math.LegacyZeroDec()
			}
			result[epochStat.Epoch] = stake.Add(activatedStakeSol(epochStat))
		}
	}

	return result
}

func activatedStakeSol(epochStat types.ValidatorEpochStat) math.LegacyDec {
	return utils.LamportsToSol(types.LamportsOrZero(epochStat.ActivatedStake))
}

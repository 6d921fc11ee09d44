package estimator

import (
	"cosmossdk.io/math"

	"github.com/marinade-finance/psr-dashboard/internal/types"
)

// EprCalculator maps a commission (percent) to the expected epoch reward rate,
// i.e. the fraction of stake paid out to stakers for one epoch.
type EprCalculator func(commission int) math.LegacyDec

type EprCalculators map[uint64]EprCalculator

// BuildEprCalculators builds one calculator per epoch that has both a reward total
// and a positive total stake. The epoch after the latest rewarded one is estimated
// with the latest known reward, since its rewards are not final yet.
func BuildEprCalculators(stakeByEpoch StakeByEpoch, rewards []types.EpochRewards) EprCalculators {
	result := make(EprCalculators)

	epochRewards := rewards
	if current, ok := currentEpochRewardsEstimate(rewards); ok {
		epochRewards = append(append(make([]types.EpochRewards, 0, len(rewards)+1), rewards...), current)
	}

	for _, entry := range epochRewards {
		epochStake, ok := stakeByEpoch[entry.Epoch]
		if !ok || !epochStake.IsPositive() || entry.TotalReward.IsNil() {
			continue
		}
		result[entry.Epoch] = newEprCalculator(entry.TotalReward, epochStake)
	}

	return result
}

func currentEpochRewardsEstimate(rewards []types.EpochRewards) (types.EpochRewards, bool) {
	if len(rewards) == 0 {
		return types.EpochRewards{}, false
	}
	latest := rewards[0]
	for _, entry := range rewards[1:] {
		if entry.Epoch > latest.Epoch {
			latest = entry
		}
	}
	return types.EpochRewards{Epoch: latest.Epoch + 1, TotalReward: latest.TotalReward}, true
}

func newEprCalculator(epochRewards, epochStake math.LegacyDec) EprCalculator {
	rewardRate := epochRewards.Quo(epochStake)
	return func(commission int) math.LegacyDec {
		return rewardRate.MulInt64(int64(100 - commission)).QuoInt64(100)
	}
}

package estimator

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/marinade-finance/psr-dashboard/internal/types"
)

func TestCalcStakeByEpoch(t *testing.T) {
	t.Parallel()

	t.Run("sums activated stake per epoch in SOL", func(t *testing.T) {
		t.Parallel()
		validators := []types.Validator{
			validator("A", epochStat(600, 0, 0, 300, 0), epochStat(601, 0, 0, 10, 0)),
			validator("B", epochStat(600, 0, 0, 700, 0)),
		}

		stake := CalcStakeByEpoch(validators)
		require.Len(t, stake, 2)
		require.True(t, stake[600].Equal(dec("1000")), stake[600].String())
		require.True(t, stake[601].Equal(dec("10")), stake[601].String())
	})

	t.Run("unset stake counts as zero", func(t *testing.T) {
		t.Parallel()
		validators := []types.Validator{
			validator("A", types.ValidatorEpochStat{Epoch: 600}),
		}

		stake := CalcStakeByEpoch(validators)
		require.True(t, stake[600].IsZero())
	})

	t.Run("no validators gives an empty map", func(t *testing.T) {
		t.Parallel()
		require.Empty(t, CalcStakeByEpoch(nil))
	})
}

func TestCalcTargetCreditsByEpoch(t *testing.T) {
	t.Parallel()

	t.Run("stake weighted mean", func(t *testing.T) {
		t.Parallel()
		validators := []types.Validator{
			validator("A", epochStat(600, 100, 0, 3, 0)),
			validator("B", epochStat(600, 200, 0, 1, 0)),
		}
		require.Equal(t, TargetCreditsByEpoch{600: 125}, CalcTargetCreditsByEpoch(validators))
	})

	t.Run("half rounds up", func(t *testing.T) {
		t.Parallel()
		validators := []types.Validator{
			validator("A", epochStat(600, 100, 0, 1, 0)),
			validator("B", epochStat(600, 101, 0, 1, 0)),
		}
		require.Equal(t, TargetCreditsByEpoch{600: 101}, CalcTargetCreditsByEpoch(validators))
	})

	t.Run("epochs without stake are omitted", func(t *testing.T) {
		t.Parallel()
		validators := []types.Validator{
			validator("A", epochStat(600, 100, 0, 0, 0), epochStat(601, 400, 0, 5, 0)),
		}
		require.Equal(t, TargetCreditsByEpoch{601: 400}, CalcTargetCreditsByEpoch(validators))
	})

	t.Run("large network keeps the baseline", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, TargetCreditsByEpoch{600: 400}, CalcTargetCreditsByEpoch(lowCreditsNetwork(380, 5_000)))
	})
}

func TestBuildEprCalculators(t *testing.T) {
	t.Parallel()

	t.Run("reward rate scaled by commission", func(t *testing.T) {
		t.Parallel()
		calculators := BuildEprCalculators(
			StakeByEpoch{600: dec("1000000")},
			rewards(reward(600, "1000")),
		)

		calc, ok := calculators[600]
		require.True(t, ok)
		require.True(t, calc(0).Equal(dec("0.001")), calc(0).String())
		require.True(t, calc(20).Equal(dec("0.0008")), calc(20).String())
		require.True(t, calc(100).IsZero(), calc(100).String())
	})

	t.Run("next epoch is estimated from the latest reward", func(t *testing.T) {
		t.Parallel()
		calculators := BuildEprCalculators(
			StakeByEpoch{
				600: dec("1000000"),
				601: dec("1000000"),
				602: dec("2000000"),
			},
			rewards(reward(601, "2000"), reward(600, "1000")),
		)

		require.Len(t, calculators, 3)
		require.True(t, calculators[600](0).Equal(dec("0.001")))
		require.True(t, calculators[601](0).Equal(dec("0.002")))
		require.True(t, calculators[602](0).Equal(dec("0.001")), calculators[602](0).String())
	})

	t.Run("epochs missing stake or with zero stake are skipped", func(t *testing.T) {
		t.Parallel()
		calculators := BuildEprCalculators(
			StakeByEpoch{600: math.LegacyZeroDec()},
			rewards(reward(599, "1000"), reward(600, "1000")),
		)
		require.Empty(t, calculators)
	})

	t.Run("no rewards gives no calculators", func(t *testing.T) {
		t.Parallel()
		require.Empty(t, BuildEprCalculators(StakeByEpoch{600: dec("1")}, nil))
	})

	t.Run("input rewards are not modified", func(t *testing.T) {
		t.Parallel()
		input := make([]types.EpochRewards, 1, 4)
		input[0] = reward(600, "1000")

		BuildEprCalculators(StakeByEpoch{600: dec("1"), 601: dec("1")}, input)
		require.Len(t, input, 1)
		require.True(t, input[:2][1].TotalReward.IsNil())
	})
}

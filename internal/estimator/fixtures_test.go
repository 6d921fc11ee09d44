package estimator

import (
	"context"

	"cosmossdk.io/math"

	"github.com/marinade-finance/psr-dashboard/internal/types"
)

const lamportsPerSol = 1_000_000_000

func sol(amount int64) math.Int {
	return math.NewInt(amount).MulRaw(lamportsPerSol)
}

func dec(s string) math.LegacyDec {
	return math.LegacyMustNewDecFromStr(s)
}

func epochStat(epoch uint64, credits int64, commission int, activatedSol, marinadeSol int64) types.ValidatorEpochStat {
	return types.ValidatorEpochStat{
		Epoch:                epoch,
		Credits:              credits,
		CommissionAdvertised: commission,
		ActivatedStake:       sol(activatedSol),
		MarinadeStake:        sol(marinadeSol),
		MarinadeNativeStake:  math.ZeroInt(),
	}
}

func validator(voteAccount string, stats ...types.ValidatorEpochStat) types.Validator {
	return types.Validator{VoteAccount: voteAccount, EpochStats: stats}
}

func rewards(entries ...types.EpochRewards) []types.EpochRewards {
	return entries
}

func reward(epoch uint64, totalSol string) types.EpochRewards {
	return types.EpochRewards{Epoch: epoch, TotalReward: dec(totalSol)}
}

func testSettlementConfig() types.SettlementConfig {
	minimum := math.NewInt(100_000_000)
	return types.SettlementConfig{
		LowCredits: []types.LowCreditsSettlementConfig{
			{
				Meta:                  types.SettlementMeta{Funder: types.FunderValidatorBond},
				MinSettlementLamports: minimum,
				GraceLowCreditsBps:    100,
				CoveredRangeBps:       types.BpsRange{Lower: 0, Upper: 2000},
			},
			{
				Meta:                  types.SettlementMeta{Funder: types.FunderMarinade},
				MinSettlementLamports: minimum,
				GraceLowCreditsBps:    100,
				CoveredRangeBps:       types.BpsRange{Lower: 2000, Upper: 10000},
			},
		},
		CommissionIncrease: []types.CommissionIncreaseSettlementConfig{
			{
				Meta:                    types.SettlementMeta{Funder: types.FunderValidatorBond},
				MinSettlementLamports:   minimum,
				GraceCommissionIncrease: 1,
				CoveredRangeBps:         types.BpsRange{Lower: 0, Upper: 10000},
			},
		},
	}
}

// lowCreditsNetwork returns a network whose epoch 600 has 1,000,000 SOL staked,
// a target of 400 credits and, with 1000 SOL of rewards, a reward rate of 0.001.
// The victim runs a 20% commission so its expected EPR is 0.0008.
func lowCreditsNetwork(victimCredits int64, victimMarinadeSol int64) []types.Validator {
	return []types.Validator{
		validator("BigVa1idator11111111111111111111111111111111",
			epochStat(600, 400, 20, 999_000, 0),
		),
		validator("Victim1111111111111111111111111111111111111",
			epochStat(600, victimCredits, 20, 1_000, victimMarinadeSol),
		),
	}
}

type fakeRewardsSource struct {
	response types.RewardsResponse
	err      error
	calls    int
}

func (f *fakeRewardsSource) FetchRewards(context.Context) (types.RewardsResponse, error) {
	f.calls++
	return f.response, f.err
}

package estimator

import (
	"cosmossdk.io/math"

	"github.com/marinade-finance/psr-dashboard/internal/types"
	"github.com/marinade-finance/psr-dashboard/internal/utils"
)

// ClaimAmountInLossRange returns the lamports owed for the part of the per-stake
// loss (expectedEpr - actualEpr) that falls inside coveredRangeBps, where the
// range is expressed relative to expectedEpr. The result is never negative.
func ClaimAmountInLossRange(coveredRangeBps types.BpsRange, actualEpr, expectedEpr math.LegacyDec, stake math.Int) math.Int {
	maxClaimPerStake := utils.BpsToFraction(coveredRangeBps.Upper).Mul(expectedEpr)
	ignoredClaimPerStake := utils.BpsToFraction(coveredRangeBps.Lower).Mul(expectedEpr)
	claimPerStake := math.LegacyMinDec(expectedEpr.Sub(actualEpr), maxClaimPerStake).Sub(ignoredClaimPerStake)

	claim := math.LegacyNewDecFromInt(stake).Mul(claimPerStake)
	if !claim.IsPositive() {
		return math.ZeroInt()
	}
	return utils.RoundHalfUp(claim)
}

// eprLoss is the stake and reward-rate shortfall of one validator-epoch.
type eprLoss struct {
	expectedEpr math.LegacyDec
	actualEpr   math.LegacyDec
	stake       math.Int
	lossBps     int64
}

// newEprLoss returns false when there is nothing to protect: no Marinade stake or
// no expected rewards to compare against.
func newEprLoss(expectedEpr, actualEpr math.LegacyDec, stake math.Int) (eprLoss, bool) {
	if !stake.IsPositive() || !expectedEpr.IsPositive() {
		return eprLoss{}, false
	}

	expectedRewards := expectedEpr.MulInt(stake)
	actualRewards := actualEpr.MulInt(stake)
	loss := math.LegacyOneDec().Sub(actualRewards.Quo(expectedRewards)).MulInt64(utils.BpsDenominator)

	return eprLoss{
		expectedEpr: expectedEpr,
		actualEpr:   actualEpr,
		stake:       stake,
		lossBps:     utils.RoundHalfUp(loss).Int64(),
	}, true
}

// settle applies one band to the loss. It returns false when the claim is below the
// band's minimum settlement.
func (l eprLoss) settle(coveredRangeBps types.BpsRange, minSettlementLamports math.Int) (math.Int, bool) {
	amount := ClaimAmountInLossRange(coveredRangeBps, l.actualEpr, l.expectedEpr, l.stake)
	if amount.LT(types.LamportsOrZero(minSettlementLamports)) {
		return math.ZeroInt(), false
	}
	return amount, true
}

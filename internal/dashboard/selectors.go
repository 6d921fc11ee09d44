package dashboard

import (
	"fmt"

	"cosmossdk.io/math"

	"github.com/marinade-finance/psr-dashboard/internal/types"
	"github.com/marinade-finance/psr-dashboard/internal/utils"
)

// ReasonDescription is the one-line explanation shown next to a protected event.
func ReasonDescription(event types.ProtectedEvent) string {
	switch event.Reason.Kind() {
	case types.SettlementBidTooLowPenalty:
		return "BidTooLow"
	case types.SettlementBlacklistPenalty:
		return "Blacklist"
	case types.SettlementProtectedEvent:
		reason, ok := event.Reason.ProtectedEvent()
		if !ok {
			break
		}
		switch r := reason.(type) {
		case types.CommissionIncrease:
			return fmt.Sprintf("Commission %d%% -> %d%%", r.PreviousCommission, r.CurrentCommission)
		case types.CommissionSamIncrease:
			return fmt.Sprintf("Inflation Commission %s -> %s; MEV Commission %s -> %s",
				formatPercentage(r.ExpectedInflationCommission), formatPercentage(r.ActualInflationCommission),
				formatPercentage(r.ExpectedMevCommission), formatPercentage(r.ActualMevCommission))
		case types.LowCredits:
			return uptimeDescription(r.ActualCredits, r.ExpectedCredits)
		case types.DowntimeRevenueImpact:
			return uptimeDescription(r.ActualCredits, r.ExpectedCredits)
		}
	}

	dashboardLogger.Warn().
		Str("voteAccount", event.VoteAccount).
		Uint64("epoch", event.Epoch).
		Str("reason", string(event.Reason.Kind())).
		Msg("Unsupported protected event reason")
	return "Unsupported"
}

func uptimeDescription(actualCredits, expectedCredits int64) string {
	if expectedCredits <= 0 {
		return "Uptime n/a"
	}
	return "Uptime " + formatPercentage(math.LegacyNewDec(actualCredits).QuoInt64(expectedCredits))
}

// EprLossBps is the displayed loss. For commission increases it is derived from the
// commissions alone; low credits use the settled value; other reasons show 0.
func EprLossBps(event types.ProtectedEvent) math.LegacyDec {
	reason, ok := event.Reason.ProtectedEvent()
	if !ok {
		return math.LegacyZeroDec()
	}

	switch r := reason.(type) {
	case types.CommissionIncrease:
		previousShare := int64(100 - r.PreviousCommission)
		if previousShare == 0 {
			return math.LegacyZeroDec()
		}
		currentShare := int64(100 - r.CurrentCommission)
		bps := math.LegacyNewDec(utils.BpsDenominator)
		return bps.Sub(bps.MulInt64(currentShare).QuoInt64(previousShare))
	case types.LowCredits:
		return math.LegacyNewDec(r.EprLossBps)
	default:
		return math.LegacyZeroDec()
	}
}

// AmountSol converts the event amount from lamports to SOL.
func AmountSol(event types.ProtectedEvent) math.LegacyDec {
	return utils.LamportsToSol(types.LamportsOrZero(event.Amount))
}

// formatPercentage renders a fraction as a percentage with two decimals, 0.95 -> "95.00%".
func formatPercentage(fraction math.LegacyDec) string {
	if fraction.IsNil() {
		return "0.00%"
	}
	hundredths := utils.RoundHalfUp(fraction.MulInt64(10000))
	sign := ""
	if hundredths.IsNegative() {
		sign = "-"
		hundredths = hundredths.Neg()
	}
	whole := hundredths.QuoRaw(100)
	rest := hundredths.ModRaw(100)
	return fmt.Sprintf("%s%s.%02d%%", sign, whole.String(), rest.Int64())
}

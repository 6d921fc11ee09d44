/*

Settlement band configuration. Every band covers a window of the EPR loss curve
(in basis points) and names the party that pays for losses inside that window.

*/

package types

import (
	"fmt"

	"cosmossdk.io/math"
)

type SettlementFunder string

const (
	FunderValidatorBond SettlementFunder = "ValidatorBond"
	FunderMarinade      SettlementFunder = "Marinade"
)

func (f SettlementFunder) Valid() bool {
	return f == FunderValidatorBond || f == FunderMarinade
}

type SettlementMeta struct {
	Funder SettlementFunder `json:"funder"`
}

// BpsRange is a [Lower, Upper] window of the loss curve in basis points.
type BpsRange struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
}

func (r BpsRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.Lower, r.Upper)
}

// Overlaps reports whether two windows share more than a boundary point.
func (r BpsRange) Overlaps(other BpsRange) bool {
	return r.Lower < other.Upper && other.Lower < r.Upper
}

type LowCreditsSettlementConfig struct {
	Meta                  SettlementMeta `json:"meta"`
	MinSettlementLamports math.Int       `json:"min_settlement_lamports"`
	GraceLowCreditsBps    int64          `json:"grace_low_credits_bps"`
	CoveredRangeBps       BpsRange       `json:"covered_range_bps"`
}

type CommissionIncreaseSettlementConfig struct {
	Meta                    SettlementMeta `json:"meta"`
	MinSettlementLamports   math.Int       `json:"min_settlement_lamports"`
	GraceCommissionIncrease int64          `json:"grace_commission_increase"` // Percentage points
	CoveredRangeBps         BpsRange       `json:"covered_range_bps"`
}

// SettlementConfig groups all bands used by one estimation run.
type SettlementConfig struct {
	LowCredits         []LowCreditsSettlementConfig         `json:"low_credits"`
	CommissionIncrease []CommissionIncreaseSettlementConfig `json:"commission_increase"`
}

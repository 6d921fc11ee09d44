/*

This file contains the default settlement bands used to estimate protected events.

The bands mirror the settlement configuration used by the on-chain settlement
pipeline so that estimates for the running epoch line up with what will be paid.

*/

package config

import (
	"cosmossdk.io/math"

	"github.com/marinade-finance/psr-dashboard/internal/types"
)

// minSettlementLamports is 0.1 SOL.
var minSettlementLamports = math.NewInt(100_000_000)

// DefaultSettlementConfig is used when no active configuration is stored in the database.
var DefaultSettlementConfig = types.SettlementConfig{
	LowCredits: []types.LowCreditsSettlementConfig{
		{
			Meta:                  types.SettlementMeta{Funder: types.FunderValidatorBond},
			MinSettlementLamports: minSettlementLamports,
			GraceLowCreditsBps:    100, // Losses up to 1% of the expected EPR are tolerated.
			CoveredRangeBps:       types.BpsRange{Lower: 0, Upper: 2000},
			// Rationale: the first 20% of lost rewards is the validator's own responsibility
			// and is paid from its bond.
		},
		{
			Meta:                  types.SettlementMeta{Funder: types.FunderMarinade},
			MinSettlementLamports: minSettlementLamports,
			GraceLowCreditsBps:    100,
			CoveredRangeBps:       types.BpsRange{Lower: 2000, Upper: 10000},
			// Rationale: deeper outages are covered by the protocol so stakers are made whole
			// even when a bond would not be large enough.
		},
	},
	CommissionIncrease: []types.CommissionIncreaseSettlementConfig{
		{
			Meta:                    types.SettlementMeta{Funder: types.FunderValidatorBond},
			MinSettlementLamports:   minSettlementLamports,
			GraceCommissionIncrease: 1, // Percentage points.
			CoveredRangeBps:         types.BpsRange{Lower: 0, Upper: 10000},
			// Rationale: a commission hike is a deliberate decision, so the validator's bond
			// covers the whole loss.
		},
	},
}

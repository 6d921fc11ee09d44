package types

import (
	"cosmossdk.io/math"
)

// BondRecord is a validator bond as reported by the validator bonds API.
// Amounts are lamports.
type BondRecord struct {
	Pubkey                         string   `json:"pubkey"`
	VoteAccount                    string   `json:"vote_account"`
	Authority                      string   `json:"authority"`
	CostPerMillePerEpoch           math.Int `json:"cpmpe"`
	UpdatedAt                      string   `json:"updated_at"`
	Epoch                          uint64   `json:"epoch"`
	FundedAmount                   math.Int `json:"funded_amount"`
	EffectiveAmount                math.Int `json:"effective_amount"`
	MaxStakeWanted                 math.Int `json:"max_stake_wanted"`
	RemainingWithdrawRequestAmount math.Int `json:"remaining_withdraw_request_amount"`
	RemainingSettlementClaimAmount math.Int `json:"remaining_settlement_claim_amount"`
}

// IsFunded reports whether the bond holds any usable balance.
func (b BondRecord) IsFunded() bool {
	return LamportsOrZero(b.EffectiveAmount).IsPositive()
}

/*

Validator performance records as delivered by the validators API.
Stake figures are kept in lamports; conversion to SOL happens only where a
computation asks for it.

*/

package types

import (
	"cosmossdk.io/math"
)

// ValidatorEpochStat is one validator's record for one epoch.
type ValidatorEpochStat struct {
	Epoch                uint64   `json:"epoch"`
	Credits              int64    `json:"credits"`               // Vote credits earned in the epoch
	CommissionAdvertised int      `json:"commission_advertised"` // Percent, 0 to 100
	ActivatedStake       math.Int `json:"activated_stake"`       // Lamports
	MarinadeStake        math.Int `json:"marinade_stake"`        // Lamports, liquid staking
	MarinadeNativeStake  math.Int `json:"marinade_native_stake"` // Lamports, native staking
}

// TotalMarinadeStake is the stake delegated by Marinade (liquid + native) in lamports.
func (s ValidatorEpochStat) TotalMarinadeStake() math.Int {
	return LamportsOrZero(s.MarinadeNativeStake).Add(LamportsOrZero(s.MarinadeStake))
}

// LamportsOrZero treats an unset amount as zero lamports.
func LamportsOrZero(amount math.Int) math.Int {
	if amount.IsNil() {
		return math.ZeroInt()
	}
	return amount
}

type Validator struct {
	VoteAccount         string               `json:"vote_account"`
	InfoName            *string              `json:"info_name"`
	ActivatedStake      math.Int             `json:"activated_stake"`
	MarinadeStake       math.Int             `json:"marinade_stake"`
	MarinadeNativeStake math.Int             `json:"marinade_native_stake"`
	EpochStats          []ValidatorEpochStat `json:"epoch_stats"`
}

// TotalMarinadeStake is the current Marinade stake (liquid + native) in lamports.
func (v Validator) TotalMarinadeStake() math.Int {
	return LamportsOrZero(v.MarinadeNativeStake).Add(LamportsOrZero(v.MarinadeStake))
}

// Name returns the published validator name or a placeholder.
func (v Validator) Name() string {
	if v.InfoName == nil || *v.InfoName == "" {
		return "---"
	}
	return *v.InfoName
}

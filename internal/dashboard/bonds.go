package dashboard

import (
	"cosmossdk.io/math"

	"github.com/marinade-finance/psr-dashboard/internal/types"
	"github.com/marinade-finance/psr-dashboard/internal/utils"
)

// ValidatorWithBond pairs a validator with its bond. Bond is nil when none is registered.
type ValidatorWithBond struct {
	Validator types.Validator   `json:"validator"`
	Bond      *types.BondRecord `json:"bond"`
}

// JoinValidatorsWithBonds keeps the validator order. Bonds of unknown validators
// are dropped and a later bond for the same vote account replaces an earlier one.
func JoinValidatorsWithBonds(validators []types.Validator, bonds []types.BondRecord) []ValidatorWithBond {
	result := make([]ValidatorWithBond, len(validators))
	index := make(map[string]int, len(validators))
	for i, validator := range validators {
		result[i] = ValidatorWithBond{Validator: validator}
		index[validator.VoteAccount] = i
	}
	for i := range bonds {
		if at, ok := index[bonds[i].VoteAccount]; ok {
			result[at].Bond = &bonds[i]
		}
	}
	return result
}

// MaxProtectedStake is the stake in lamports a bond can back.
func MaxProtectedStake(bond *types.BondRecord, stakeMultiplier int64) math.Int {
	if bond == nil {
		return math.ZeroInt()
	}
	return types.LamportsOrZero(bond.EffectiveAmount).MulRaw(stakeMultiplier)
}

// ProtectedStake is the part of the Marinade stake covered by the bond.
func ProtectedStake(item ValidatorWithBond, stakeMultiplier int64) math.Int {
	return math.MinInt(MaxProtectedStake(item.Bond, stakeMultiplier), item.Validator.TotalMarinadeStake())
}

// ValidatorBondView is one row of the bonds table. Amounts are lamports.
type ValidatorBondView struct {
	VoteAccount       string            `json:"vote_account"`
	ValidatorName     string            `json:"validator_name"`
	Bond              *types.BondRecord `json:"bond"`
	BondBalance       math.Int          `json:"bond_balance"`
	MarinadeStake     math.Int          `json:"marinade_stake"`
	MaxProtectedStake math.Int          `json:"max_protected_stake"`
	ProtectedStake    math.Int          `json:"protected_stake"`
	ProtectedStakePct math.LegacyDec    `json:"protected_stake_pct"`
}

func NewValidatorBondView(item ValidatorWithBond, stakeMultiplier int64) ValidatorBondView {
	balance := math.ZeroInt()
	if item.Bond != nil {
		balance = types.LamportsOrZero(item.Bond.EffectiveAmount)
	}
	marinadeStake := item.Validator.TotalMarinadeStake()
	protected := ProtectedStake(item, stakeMultiplier)
	return ValidatorBondView{
		VoteAccount:       item.Validator.VoteAccount,
		ValidatorName:     item.Validator.Name(),
		Bond:              item.Bond,
		BondBalance:       balance,
		MarinadeStake:     marinadeStake,
		MaxProtectedStake: MaxProtectedStake(item.Bond, stakeMultiplier),
		ProtectedStake:    protected,
		ProtectedStakePct: ratio(protected, marinadeStake),
	}
}

// BondsSummary holds the totals shown above the bonds table. Amounts are lamports.
type BondsSummary struct {
	FundedBonds       int            `json:"funded_bonds"`
	BondsBalance      math.Int       `json:"bonds_balance"`
	BondsBalanceSol   math.LegacyDec `json:"bonds_balance_sol"`
	MarinadeStake     math.Int       `json:"marinade_stake"`
	ProtectedStake    math.Int       `json:"protected_stake"`
	ProtectedStakePct math.LegacyDec `json:"protected_stake_pct"`
}

// BondsTable is the bonds view of one refresh.
type BondsTable struct {
	Validators []ValidatorBondView `json:"validators"`
	Summary    BondsSummary        `json:"summary"`
}

// BuildBondsTable joins validators with bonds and keeps only the validators that
// hold Marinade stake or a funded bond.
func BuildBondsTable(validators []types.Validator, bonds []types.BondRecord, stakeMultiplier int64) BondsTable {
	table := BondsTable{
		Validators: make([]ValidatorBondView, 0),
		Summary: BondsSummary{
			BondsBalance:   math.ZeroInt(),
			MarinadeStake:  math.ZeroInt(),
			ProtectedStake: math.ZeroInt(),
		},
	}

	for _, item := range JoinValidatorsWithBonds(validators, bonds) {
		funded := item.Bond != nil && item.Bond.IsFunded()
		if !item.Validator.TotalMarinadeStake().IsPositive() && !funded {
			continue
		}
		view := NewValidatorBondView(item, stakeMultiplier)
		table.Validators = append(table.Validators, view)

		if funded {
			table.Summary.FundedBonds++
		}
		table.Summary.BondsBalance = table.Summary.BondsBalance.Add(view.BondBalance)
		table.Summary.MarinadeStake = table.Summary.MarinadeStake.Add(view.MarinadeStake)
		table.Summary.ProtectedStake = table.Summary.ProtectedStake.Add(view.ProtectedStake)
	}

	table.Summary.BondsBalanceSol = utils.LamportsToSol(table.Summary.BondsBalance)
	table.Summary.ProtectedStakePct = ratio(table.Summary.ProtectedStake, table.Summary.MarinadeStake)
	return table
}

// ratio is part/whole, or zero when whole is not positive.
func ratio(part, whole math.Int) math.LegacyDec {
	if !whole.IsPositive() {
		return math.LegacyZeroDec()
	}
	return math.LegacyNewDecFromInt(part).QuoInt(whole)
}

package dashboard

import (
	"cosmossdk.io/math"

	"github.com/marinade-finance/psr-dashboard/internal/types"
)

// ProtectedEventView is a dashboard row with the display fields precomputed.
type ProtectedEventView struct {
	ProtectedEventWithValidator
	ValidatorName string         `json:"validator_name"`
	Description   string         `json:"description"`
	EprLossBps    math.LegacyDec `json:"epr_loss_bps"`
	AmountSol     math.LegacyDec `json:"amount_sol"`
}

func NewProtectedEventView(item ProtectedEventWithValidator) ProtectedEventView {
	name := "---"
	if item.Validator != nil {
		name = item.Validator.Name()
	}
	return ProtectedEventView{
		ProtectedEventWithValidator: item,
		ValidatorName:               name,
		Description:                 ReasonDescription(item.ProtectedEvent),
		EprLossBps:                  EprLossBps(item.ProtectedEvent),
		AmountSol:                   AmountSol(item.ProtectedEvent),
	}
}

// Filter selects dashboard rows. Zero fields match everything.
type Filter struct {
	Epoch  *uint64
	Funder types.SettlementFunder
	Status ProtectedEventStatus
}

func (f Filter) Matches(item ProtectedEventWithValidator) bool {
	if f.Epoch != nil && item.ProtectedEvent.Epoch != *f.Epoch {
		return false
	}
	if f.Funder != "" && item.ProtectedEvent.Meta.Funder != f.Funder {
		return false
	}
	if f.Status != "" && item.Status != f.Status {
		return false
	}
	return true
}

// FundingTotals sums amounts per status for one funder.
type FundingTotals struct {
	Events   int                          `json:"events"`
	Lamports math.Int                     `json:"lamports"`
	ByStatus map[ProtectedEventStatus]int `json:"by_status"`
}

// Summary aggregates a merged list by funder.
type Summary struct {
	TotalEvents int                                       `json:"total_events"`
	ByFunder    map[types.SettlementFunder]*FundingTotals `json:"by_funder"`
}

func Summarize(items []ProtectedEventWithValidator) Summary {
	summary := Summary{ByFunder: make(map[types.SettlementFunder]*FundingTotals)}
	for _, item := range items {
		funder := item.ProtectedEvent.Meta.Funder
		totals, ok := summary.ByFunder[funder]
		if !ok {
			totals = &FundingTotals{Lamports: math.ZeroInt(), ByStatus: make(map[ProtectedEventStatus]int)}
			summary.ByFunder[funder] = totals
		}
		totals.Events++
		totals.Lamports = totals.Lamports.Add(types.LamportsOrZero(item.ProtectedEvent.Amount))
		totals.ByStatus[item.Status]++
		summary.TotalEvents++
	}
	return summary
}

// LamportsByFunder sums event amounts per funder.
func LamportsByFunder(events []types.ProtectedEvent) map[types.SettlementFunder]math.Int {
	result := make(map[types.SettlementFunder]math.Int)
	for _, event := range events {
		total, ok := result[event.Meta.Funder]
		if !ok {
			total = math.ZeroInt()
		}
		result[event.Meta.Funder] = total.Add(types.LamportsOrZero(event.Amount))
	}
	return result
}

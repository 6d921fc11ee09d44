/*

Protected events and the reasons attached to them.

A settlement reason is a closed set of variants. Protected event reasons are a
sealed interface so every switch over them can be exhaustive; the JSON form keeps
the externally tagged shape used by the bonds API:

	{"ProtectedEvent": {"LowCredits": {...}}}
	"BidTooLowPenalty"

*/

package types

import (
	"encoding/json"
	"errors"
	"fmt"

	"cosmossdk.io/math"
)

var ErrUnknownSettlementReason = errors.New("unknown settlement reason")

type ReasonKind string

const (
	ReasonLowCredits            ReasonKind = "LowCredits"
	ReasonCommissionIncrease    ReasonKind = "CommissionIncrease"
	ReasonDowntimeRevenueImpact ReasonKind = "DowntimeRevenueImpact"
	ReasonCommissionSamIncrease ReasonKind = "CommissionSamIncrease"
)

// ProtectedEventReason is implemented only by the variants declared in this file.
type ProtectedEventReason interface {
	Kind() ReasonKind
	protectedEventReason()
}

// LowCredits is raised when a validator earned no more credits than the epoch baseline.
type LowCredits struct {
	VoteAccount     string         `json:"vote_account"`
	ExpectedCredits int64          `json:"expected_credits"`
	ActualCredits   int64          `json:"actual_credits"`
	Commission      int            `json:"commission"`
	ExpectedEpr     math.LegacyDec `json:"expected_epr"`
	ActualEpr       math.LegacyDec `json:"actual_epr"`
	EprLossBps      int64          `json:"epr_loss_bps"`
	Stake           math.Int       `json:"stake"`
}

// CommissionIncrease is raised when the advertised commission grew between two epochs.
type CommissionIncrease struct {
	VoteAccount        string         `json:"vote_account"`
	PreviousCommission int            `json:"previous_commission"`
	CurrentCommission  int            `json:"current_commission"`
	ExpectedEpr        math.LegacyDec `json:"expected_epr"`
	ActualEpr          math.LegacyDec `json:"actual_epr"`
	EprLossBps         int64          `json:"epr_loss_bps"`
	Stake              math.Int       `json:"stake"`
}

// DowntimeRevenueImpact is only settled on-chain; it carries the same details as LowCredits.
type DowntimeRevenueImpact LowCredits

// CommissionSamIncrease is only settled on-chain. Commissions are fractions (0.05 = 5%).
type CommissionSamIncrease struct {
	VoteAccount                 string         `json:"vote_account"`
	ActualInflationCommission   math.LegacyDec `json:"actual_inflation_commission"`
	ExpectedInflationCommission math.LegacyDec `json:"expected_inflation_commission"`
	ActualMevCommission         math.LegacyDec `json:"actual_mev_commission"`
	ExpectedMevCommission       math.LegacyDec `json:"expected_mev_commission"`
	ExpectedEpr                 math.LegacyDec `json:"expected_epr"`
	ActualEpr                   math.LegacyDec `json:"actual_epr"`
	EprLossBps                  int64          `json:"epr_loss_bps"`
	Stake                       math.Int       `json:"stake"`
}

func (LowCredits) Kind() ReasonKind            { return ReasonLowCredits }
func (CommissionIncrease) Kind() ReasonKind    { return ReasonCommissionIncrease }
func (DowntimeRevenueImpact) Kind() ReasonKind { return ReasonDowntimeRevenueImpact }
func (CommissionSamIncrease) Kind() ReasonKind { return ReasonCommissionSamIncrease }

func (LowCredits) protectedEventReason()            {}
func (CommissionIncrease) protectedEventReason()    {}
func (DowntimeRevenueImpact) protectedEventReason() {}
func (CommissionSamIncrease) protectedEventReason() {}

type SettlementReasonKind string

const (
	SettlementProtectedEvent   SettlementReasonKind = "ProtectedEvent"
	SettlementBidding          SettlementReasonKind = "Bidding"
	SettlementBidTooLowPenalty SettlementReasonKind = "BidTooLowPenalty"
	SettlementBlacklistPenalty SettlementReasonKind = "BlacklistPenalty"
)

// SettlementReason explains why a settlement exists. Build it with
// NewProtectedEventSettlement or NewSettlementReason; the zero value is invalid.
type SettlementReason struct {
	kind           SettlementReasonKind
	protectedEvent ProtectedEventReason
}

func NewProtectedEventSettlement(reason ProtectedEventReason) SettlementReason {
	return SettlementReason{kind: SettlementProtectedEvent, protectedEvent: reason}
}

// NewSettlementReason builds one of the unit variants (Bidding and the penalties).
func NewSettlementReason(kind SettlementReasonKind) (SettlementReason, error) {
	switch kind {
	case SettlementBidding, SettlementBidTooLowPenalty, SettlementBlacklistPenalty:
		return SettlementReason{kind: kind}, nil
	default:
		return SettlementReason{}, fmt.Errorf("%w: %q", ErrUnknownSettlementReason, kind)
	}
}

func (r SettlementReason) Kind() SettlementReasonKind {
	return r.kind
}

// ProtectedEvent returns the protected event details when the reason is a protected event.
func (r SettlementReason) ProtectedEvent() (ProtectedEventReason, bool) {
	if r.kind != SettlementProtectedEvent || r.protectedEvent == nil {
		return nil, false
	}
	return r.protectedEvent, true
}

func (r SettlementReason) MarshalJSON() ([]byte, error) {
	switch r.kind {
	case SettlementProtectedEvent:
		if r.protectedEvent == nil {
			return nil, fmt.Errorf("%w: protected event without details", ErrUnknownSettlementReason)
		}
		return json.Marshal(map[SettlementReasonKind]map[ReasonKind]ProtectedEventReason{
			SettlementProtectedEvent: {r.protectedEvent.Kind(): r.protectedEvent},
		})
	case SettlementBidding, SettlementBidTooLowPenalty, SettlementBlacklistPenalty:
		return json.Marshal(string(r.kind))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSettlementReason, r.kind)
	}
}

func (r *SettlementReason) UnmarshalJSON(data []byte) error {
	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		reason, err := NewSettlementReason(SettlementReasonKind(unit))
		if err != nil {
			return err
		}
		*r = reason
		return nil
	}

	var tagged map[SettlementReasonKind]map[ReasonKind]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("%w: %w", ErrUnknownSettlementReason, err)
	}
	details, ok := tagged[SettlementProtectedEvent]
	if !ok || len(tagged) != 1 || len(details) != 1 {
		return fmt.Errorf("%w: %s", ErrUnknownSettlementReason, data)
	}

	for kind, raw := range details {
		reason, err := decodeProtectedEventReason(kind, raw)
		if err != nil {
			return err
		}
		*r = NewProtectedEventSettlement(reason)
	}
	return nil
}

func decodeProtectedEventReason(kind ReasonKind, raw json.RawMessage) (ProtectedEventReason, error) {
	switch kind {
	case ReasonLowCredits:
		var reason LowCredits
		err := json.Unmarshal(raw, &reason)
		return reason, err
	case ReasonCommissionIncrease:
		var reason CommissionIncrease
		err := json.Unmarshal(raw, &reason)
		return reason, err
	case ReasonDowntimeRevenueImpact:
		var reason DowntimeRevenueImpact
		err := json.Unmarshal(raw, &reason)
		return reason, err
	case ReasonCommissionSamIncrease:
		var reason CommissionSamIncrease
		err := json.Unmarshal(raw, &reason)
		return reason, err
	default:
		return nil, fmt.Errorf("%w: protected event %q", ErrUnknownSettlementReason, kind)
	}
}

// ProtectedEvent is one yield-loss compensation, either settled on-chain or estimated.
type ProtectedEvent struct {
	Epoch       uint64           `json:"epoch"`
	Amount      math.Int         `json:"amount"` // Lamports, never negative
	VoteAccount string           `json:"vote_account"`
	Meta        SettlementMeta   `json:"meta"`
	Reason      SettlementReason `json:"reason"`
}

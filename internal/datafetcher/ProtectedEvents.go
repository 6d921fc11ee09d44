/*
This file fetches the protected events already settled on-chain from the
validator bonds API.

The reason is externally tagged ({"ProtectedEvent": {"LowCredits": {...}}} or a
bare string such as "BidTooLowPenalty") and its numbers are plain JSON numbers,
so it is decoded through wire structs before becoming a types.SettlementReason.
*/

package datafetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marinade-finance/psr-dashboard/internal/logger"
	"github.com/marinade-finance/psr-dashboard/internal/types"
)

var protectedEventsLogger = logger.GetForComponent("protected_events_retriever")

var ErrInvalidProtectedEventData = errors.New("invalid protected event data")

type protectedEventsResponse struct {
	ProtectedEvents []protectedEventWire `json:"protected_events"`
}

type protectedEventWire struct {
	Epoch       numericString        `json:"epoch"`
	Amount      numericString        `json:"amount"`
	VoteAccount string               `json:"vote_account"`
	Meta        types.SettlementMeta `json:"meta"`
	Reason      json.RawMessage      `json:"reason"`
}

// reasonDetailsWire is the union of the fields of every protected event reason.
type reasonDetailsWire struct {
	VoteAccount                 string        `json:"vote_account"`
	ExpectedCredits             numericString `json:"expected_credits"`
	ActualCredits               numericString `json:"actual_credits"`
	Commission                  numericString `json:"commission"`
	PreviousCommission          numericString `json:"previous_commission"`
	CurrentCommission           numericString `json:"current_commission"`
	ActualInflationCommission   numericString `json:"actual_inflation_commission"`
	ExpectedInflationCommission numericString `json:"expected_inflation_commission"`
	ActualMevCommission         numericString `json:"actual_mev_commission"`
	ExpectedMevCommission       numericString `json:"expected_mev_commission"`
	ExpectedEpr                 numericString `json:"expected_epr"`
	ActualEpr                   numericString `json:"actual_epr"`
	EprLossBps                  numericString `json:"epr_loss_bps"`
	Stake                       numericString `json:"stake"`
}

// FetchProtectedEvents returns the settled protected events of all epochs.
func (c *Client) FetchProtectedEvents(ctx context.Context) ([]types.ProtectedEvent, error) {
	var response protectedEventsResponse
	if err := c.getJSON(ctx, FeedProtectedEvents, c.bondsAPI+"/protected-events", &response); err != nil {
		return nil, err
	}

	events := make([]types.ProtectedEvent, 0, len(response.ProtectedEvents))
	skippedCount := 0
	for i, wire := range response.ProtectedEvents {
		event, err := convertProtectedEvent(wire)
		if err != nil {
			protectedEventsLogger.Warn().
				Err(err).
				Int("entryIndex", i).
				Str("voteAccount", wire.VoteAccount).
				Str("epoch", string(wire.Epoch)).
				Msg("Skipping unsupported protected event")
			skippedCount++
			continue
		}
		events = append(events, event)
	}

	protectedEventsLogger.Info().
		Int("totalEntries", len(response.ProtectedEvents)).
		Int("validEvents", len(events)).
		Int("skippedEvents", skippedCount).
		Msg("Fetched settled protected events")

	return events, nil
}

func convertProtectedEvent(wire protectedEventWire) (types.ProtectedEvent, error) {
	voteAccount, err := normalizeVoteAccount(wire.VoteAccount)
	if err != nil {
		return types.ProtectedEvent{}, fmt.Errorf("%w: %w", ErrInvalidProtectedEventData, err)
	}
	if !wire.Meta.Funder.Valid() {
		return types.ProtectedEvent{}, fmt.Errorf("%w: unknown funder %q", ErrInvalidProtectedEventData, wire.Meta.Funder)
	}

	var p numberParser
	event := types.ProtectedEvent{
		Epoch:       p.uint64("epoch", wire.Epoch),
		Amount:      p.lamports("amount", wire.Amount),
		VoteAccount: voteAccount,
		Meta:        wire.Meta,
	}
	if p.err != nil {
		return types.ProtectedEvent{}, fmt.Errorf("%w: %w", ErrInvalidProtectedEventData, p.err)
	}

	event.Reason, err = convertSettlementReason(wire.Reason)
	if err != nil {
		return types.ProtectedEvent{}, err
	}
	return event, nil
}

func convertSettlementReason(raw json.RawMessage) (types.SettlementReason, error) {
	var unit string
	if err := json.Unmarshal(raw, &unit); err == nil {
		return types.NewSettlementReason(types.SettlementReasonKind(unit))
	}

	var tagged map[types.SettlementReasonKind]map[types.ReasonKind]reasonDetailsWire
	if err := json.Unmarshal(raw, &tagged); err != nil {
		return types.SettlementReason{}, fmt.Errorf("%w: reason: %w", ErrInvalidProtectedEventData, err)
	}
	variants, ok := tagged[types.SettlementProtectedEvent]
	if !ok || len(tagged) != 1 || len(variants) != 1 {
		return types.SettlementReason{}, fmt.Errorf("%w: reason %s", types.ErrUnknownSettlementReason, raw)
	}

	for kind, details := range variants {
		reason, err := convertProtectedEventReason(kind, details)
		if err != nil {
			return types.SettlementReason{}, err
		}
		return types.NewProtectedEventSettlement(reason), nil
	}
	return types.SettlementReason{}, fmt.Errorf("%w: reason %s", types.ErrUnknownSettlementReason, raw)
}

func convertProtectedEventReason(kind types.ReasonKind, wire reasonDetailsWire) (types.ProtectedEventReason, error) {
	var p numberParser
	var reason types.ProtectedEventReason

	switch kind {
	case types.ReasonLowCredits, types.ReasonDowntimeRevenueImpact:
		lowCredits := types.LowCredits{
			VoteAccount:     wire.VoteAccount,
			ExpectedCredits: p.int64("expected_credits", wire.ExpectedCredits),
			ActualCredits:   p.int64("actual_credits", wire.ActualCredits),
			Commission:      p.int("commission", wire.Commission),
			ExpectedEpr:     p.dec("expected_epr", wire.ExpectedEpr),
			ActualEpr:       p.dec("actual_epr", wire.ActualEpr),
			EprLossBps:      p.int64("epr_loss_bps", wire.EprLossBps),
			Stake:           p.lamports("stake", wire.Stake),
		}
		reason = lowCredits
		if kind == types.ReasonDowntimeRevenueImpact {
			reason = types.DowntimeRevenueImpact(lowCredits)
		}
	case types.ReasonCommissionIncrease:
		reason = types.CommissionIncrease{
			VoteAccount:        wire.VoteAccount,
			PreviousCommission: p.int("previous_commission", wire.PreviousCommission),
			CurrentCommission:  p.int("current_commission", wire.CurrentCommission),
			ExpectedEpr:        p.dec("expected_epr", wire.ExpectedEpr),
			ActualEpr:          p.dec("actual_epr", wire.ActualEpr),
			EprLossBps:         p.int64("epr_loss_bps", wire.EprLossBps),
			Stake:              p.lamports("stake", wire.Stake),
		}
	case types.ReasonCommissionSamIncrease:
		reason = types.CommissionSamIncrease{
			VoteAccount:                 wire.VoteAccount,
			ActualInflationCommission:   p.dec("actual_inflation_commission", wire.ActualInflationCommission),
			ExpectedInflationCommission: p.dec("expected_inflation_commission", wire.ExpectedInflationCommission),
			ActualMevCommission:         p.dec("actual_mev_commission", wire.ActualMevCommission),
			ExpectedMevCommission:       p.dec("expected_mev_commission", wire.ExpectedMevCommission),
			ExpectedEpr:                 p.dec("expected_epr", wire.ExpectedEpr),
			ActualEpr:                   p.dec("actual_epr", wire.ActualEpr),
			EprLossBps:                  p.int64("epr_loss_bps", wire.EprLossBps),
			Stake:                       p.lamports("stake", wire.Stake),
		}
	default:
		return nil, fmt.Errorf("%w: protected event %q", types.ErrUnknownSettlementReason, kind)
	}

	if p.err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidProtectedEventData, kind, p.err)
	}
	return reason, nil
}

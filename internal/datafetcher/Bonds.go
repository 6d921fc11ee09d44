package datafetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/marinade-finance/psr-dashboard/internal/logger"
	"github.com/marinade-finance/psr-dashboard/internal/types"
)

var bondsLogger = logger.GetForComponent("bonds_retriever")

var ErrInvalidBondData = errors.New("invalid bond data")

type bondsResponse struct {
	Bonds []bondWire `json:"bonds"`
}

// The API spells the two remaining amounts differently from the rest of its fields.
type bondWire struct {
	Pubkey                         string        `json:"pubkey"`
	VoteAccount                    string        `json:"vote_account"`
	Authority                      string        `json:"authority"`
	Cpmpe                          numericString `json:"cpmpe"`
	UpdatedAt                      string        `json:"updated_at"`
	Epoch                          numericString `json:"epoch"`
	FundedAmount                   numericString `json:"funded_amount"`
	EffectiveAmount                numericString `json:"effective_amount"`
	MaxStakeWanted                 numericString `json:"max_stake_wanted"`
	RemainingWithdrawRequestAmount numericString `json:"remaining_witdraw_request_amount"`
	RemainingSettlementClaimAmount numericString `json:"remainining_settlement_claim_amount"`
}

// FetchBonds returns the validator bonds known to the bonds API.
func (c *Client) FetchBonds(ctx context.Context) ([]types.BondRecord, error) {
	var response bondsResponse
	if err := c.getJSON(ctx, FeedBonds, c.bondsAPI+"/bonds", &response); err != nil {
		return nil, err
	}

	bonds := make([]types.BondRecord, 0, len(response.Bonds))
	skippedCount := 0
	for i, wire := range response.Bonds {
		bond, err := convertBond(wire)
		if err != nil {
			bondsLogger.Warn().
				Err(err).
				Int("entryIndex", i).
				Str("voteAccount", wire.VoteAccount).
				Msg("Skipping invalid bond entry")
			skippedCount++
			continue
		}
		bonds = append(bonds, bond)
	}

	bondsLogger.Info().
		Int("totalEntries", len(response.Bonds)).
		Int("validBonds", len(bonds)).
		Int("skippedBonds", skippedCount).
		Msg("Fetched bonds")

	return bonds, nil
}

func convertBond(wire bondWire) (types.BondRecord, error) {
	voteAccount, err := normalizeVoteAccount(wire.VoteAccount)
	if err != nil {
		return types.BondRecord{}, fmt.Errorf("%w: %w", ErrInvalidBondData, err)
	}
	pubkey, err := solana.PublicKeyFromBase58(wire.Pubkey)
	if err != nil {
		return types.BondRecord{}, fmt.Errorf("%w: bond pubkey %q: %w", ErrInvalidBondData, wire.Pubkey, err)
	}

	var p numberParser
	bond := types.BondRecord{
		Pubkey:                         pubkey.String(),
		VoteAccount:                    voteAccount,
		Authority:                      wire.Authority,
		CostPerMillePerEpoch:           p.lamports("cpmpe", wire.Cpmpe),
		UpdatedAt:                      wire.UpdatedAt,
		Epoch:                          p.uint64("epoch", wire.Epoch),
		FundedAmount:                   p.lamports("funded_amount", wire.FundedAmount),
		EffectiveAmount:                p.lamports("effective_amount", wire.EffectiveAmount),
		MaxStakeWanted:                 p.lamports("max_stake_wanted", wire.MaxStakeWanted),
		RemainingWithdrawRequestAmount: p.lamports("remaining_witdraw_request_amount", wire.RemainingWithdrawRequestAmount),
		RemainingSettlementClaimAmount: p.lamports("remainining_settlement_claim_amount", wire.RemainingSettlementClaimAmount),
	}
	if p.err != nil {
		return types.BondRecord{}, fmt.Errorf("%w: %w", ErrInvalidBondData, p.err)
	}
	return bond, nil
}

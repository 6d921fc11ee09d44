/*
This file fetches validator performance records from the Marinade validators API.

Stake figures arrive as decimal strings of lamports and are parsed into math.Int
here, so nothing past this boundary deals with wire formats. Records that fail
validation are skipped with a warning rather than failing the whole fetch.
*/

package datafetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/marinade-finance/psr-dashboard/internal/logger"
	"github.com/marinade-finance/psr-dashboard/internal/types"
)

var validatorsLogger = logger.GetForComponent("validators_retriever")

var ErrInvalidValidatorData = errors.New("invalid validator data")

const validatorsPageLimit = 9999

type validatorsResponse struct {
	Validators []validatorWire `json:"validators"`
}

type validatorWire struct {
	VoteAccount         string          `json:"vote_account"`
	InfoName            *string         `json:"info_name"`
	ActivatedStake      numericString   `json:"activated_stake"`
	MarinadeStake       numericString   `json:"marinade_stake"`
	MarinadeNativeStake numericString   `json:"marinade_native_stake"`
	EpochStats          []epochStatWire `json:"epoch_stats"`
}

type epochStatWire struct {
	Epoch                numericString `json:"epoch"`
	Credits              numericString `json:"credits"`
	CommissionAdvertised numericString `json:"commission_advertised"`
	ActivatedStake       numericString `json:"activated_stake"`
	MarinadeStake        numericString `json:"marinade_stake"`
	MarinadeNativeStake  numericString `json:"marinade_native_stake"`
}

// FetchValidators returns every validator with stats for the last `epochs` epochs.
func (c *Client) FetchValidators(ctx context.Context, epochs int) ([]types.Validator, error) {
	if epochs < 0 {
		return nil, fmt.Errorf("epochs cannot be negative: %d", epochs)
	}
	url := fmt.Sprintf("%s/validators?limit=%d&epochs=%d", c.validatorsAPI, validatorsPageLimit, epochs)

	var response validatorsResponse
	if err := c.getJSON(ctx, FeedValidators, url, &response); err != nil {
		return nil, err
	}

	validators := make([]types.Validator, 0, len(response.Validators))
	skippedCount := 0
	skippedStats := 0
	for i, wire := range response.Validators {
		validator, skipped, err := convertValidator(wire)
		if err != nil {
			validatorsLogger.Warn().
				Err(err).
				Int("entryIndex", i).
				Str("voteAccount", wire.VoteAccount).
				Msg("Skipping invalid validator entry")
			skippedCount++
			continue
		}
		skippedStats += skipped
		validators = append(validators, validator)
	}

	validatorsLogger.Info().
		Int("totalEntries", len(response.Validators)).
		Int("validValidators", len(validators)).
		Int("skippedValidators", skippedCount).
		Int("skippedEpochStats", skippedStats).
		Int("epochs", epochs).
		Msg("Fetched validators")

	return validators, nil
}

func convertValidator(wire validatorWire) (types.Validator, int, error) {
	voteAccount, err := normalizeVoteAccount(wire.VoteAccount)
	if err != nil {
		return types.Validator{}, 0, err
	}

	var p numberParser
	validator := types.Validator{
		VoteAccount:         voteAccount,
		InfoName:            wire.InfoName,
		ActivatedStake:      p.lamports("activated_stake", wire.ActivatedStake),
		MarinadeStake:       p.lamports("marinade_stake", wire.MarinadeStake),
		MarinadeNativeStake: p.lamports("marinade_native_stake", wire.MarinadeNativeStake),
		EpochStats:          make([]types.ValidatorEpochStat, 0, len(wire.EpochStats)),
	}
	if p.err != nil {
		return types.Validator{}, 0, fmt.Errorf("%w: %w", ErrInvalidValidatorData, p.err)
	}

	skipped := 0
	for _, statWire := range wire.EpochStats {
		stat, err := convertEpochStat(statWire)
		if err != nil {
			validatorsLogger.Warn().
				Err(err).
				Str("voteAccount", voteAccount).
				Str("epoch", string(statWire.Epoch)).
				Msg("Skipping invalid epoch stat")
			skipped++
			continue
		}
		validator.EpochStats = append(validator.EpochStats, stat)
	}

	return validator, skipped, nil
}

func convertEpochStat(wire epochStatWire) (types.ValidatorEpochStat, error) {
	var p numberParser
	stat := types.ValidatorEpochStat{
		Epoch:                p.uint64("epoch", wire.Epoch),
		Credits:              p.int64("credits", wire.Credits),
		CommissionAdvertised: p.int("commission_advertised", wire.CommissionAdvertised),
		ActivatedStake:       p.lamports("activated_stake", wire.ActivatedStake),
		MarinadeStake:        p.lamports("marinade_stake", wire.MarinadeStake),
		MarinadeNativeStake:  p.lamports("marinade_native_stake", wire.MarinadeNativeStake),
	}
	if p.err != nil {
		return types.ValidatorEpochStat{}, fmt.Errorf("%w: %w", ErrInvalidValidatorData, p.err)
	}
	if stat.Credits < 0 {
		return types.ValidatorEpochStat{}, fmt.Errorf("%w: credits cannot be negative: %d", ErrInvalidValidatorData, stat.Credits)
	}
	if stat.CommissionAdvertised < 0 || stat.CommissionAdvertised > 100 {
		return types.ValidatorEpochStat{}, fmt.Errorf("%w: commission must be within [0, 100]: %d", ErrInvalidValidatorData, stat.CommissionAdvertised)
	}
	return stat, nil
}

// normalizeVoteAccount checks the account is a 32 byte base58 key and returns its canonical form.
func normalizeVoteAccount(voteAccount string) (string, error) {
	pk, err := solana.PublicKeyFromBase58(voteAccount)
	if err != nil {
		return "", fmt.Errorf("%w: vote account %q: %w", ErrInvalidValidatorData, voteAccount, err)
	}
	return pk.String(), nil
}

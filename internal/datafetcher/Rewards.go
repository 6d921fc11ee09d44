package datafetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/marinade-finance/psr-dashboard/internal/logger"
	"github.com/marinade-finance/psr-dashboard/internal/types"
)

var rewardsLogger = logger.GetForComponent("rewards_retriever")

var ErrInvalidRewardsData = errors.New("invalid rewards data")

// Each entry is an [epoch, total reward in SOL] pair.
type rewardsResponse struct {
	RewardsMev          [][]numericString `json:"rewards_mev"`
	RewardsInflationEst [][]numericString `json:"rewards_inflation_est"`
}

// FetchRewards returns the network reward totals per epoch.
func (c *Client) FetchRewards(ctx context.Context) (types.RewardsResponse, error) {
	var response rewardsResponse
	if err := c.getJSON(ctx, FeedRewards, c.validatorsAPI+"/rewards", &response); err != nil {
		return types.RewardsResponse{}, err
	}

	result := types.RewardsResponse{
		RewardsMev:          convertEpochRewards("rewards_mev", response.RewardsMev),
		RewardsInflationEst: convertEpochRewards("rewards_inflation_est", response.RewardsInflationEst),
	}

	rewardsLogger.Info().
		Int("mevEpochs", len(result.RewardsMev)).
		Int("inflationEpochs", len(result.RewardsInflationEst)).
		Msg("Fetched rewards")

	return result, nil
}

func convertEpochRewards(series string, entries [][]numericString) []types.EpochRewards {
	result := make([]types.EpochRewards, 0, len(entries))
	for i, entry := range entries {
		reward, err := convertEpochReward(entry)
		if err != nil {
			rewardsLogger.Warn().
				Err(err).
				Str("series", series).
				Int("entryIndex", i).
				Msg("Skipping invalid rewards entry")
			continue
		}
		result = append(result, reward)
	}
	return result
}

func convertEpochReward(entry []numericString) (types.EpochRewards, error) {
	if len(entry) != 2 {
		return types.EpochRewards{}, fmt.Errorf("%w: expected [epoch, reward], got %d values", ErrInvalidRewardsData, len(entry))
	}

	var p numberParser
	reward := types.EpochRewards{
		Epoch:       p.uint64("epoch", entry[0]),
		TotalReward: p.dec("reward", entry[1]),
	}
	if p.err != nil {
		return types.EpochRewards{}, fmt.Errorf("%w: %w", ErrInvalidRewardsData, p.err)
	}
	if reward.TotalReward.IsNegative() {
		return types.EpochRewards{}, fmt.Errorf("%w: reward cannot be negative: %s", ErrInvalidRewardsData, reward.TotalReward)
	}
	return reward, nil
}

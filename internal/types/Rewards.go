package types

import (
	"cosmossdk.io/math"
)

// EpochRewards is the network-wide reward pool of a single epoch, in SOL.
type EpochRewards struct {
	Epoch       uint64
	TotalReward math.LegacyDec
}

type RewardsResponse struct {
	RewardsMev          []EpochRewards
	RewardsInflationEst []EpochRewards
}

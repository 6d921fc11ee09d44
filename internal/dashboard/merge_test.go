package dashboard

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/marinade-finance/psr-dashboard/internal/types"
)

const (
	voteAccountA = "Vote111111111111111111111111111111111111111"
	voteAccountB = "So11111111111111111111111111111111111111112"
)

func lowCreditsEvent(epoch uint64, voteAccount string, funder types.SettlementFunder, actual, expected int64) types.ProtectedEvent {
	return types.ProtectedEvent{
		Epoch:       epoch,
		Amount:      math.NewInt(200_000_000),
		VoteAccount: voteAccount,
		Meta:        types.SettlementMeta{Funder: funder},
		Reason: types.NewProtectedEventSettlement(types.LowCredits{
			VoteAccount:     voteAccount,
			ExpectedCredits: expected,
			ActualCredits:   actual,
			Commission:      20,
			ExpectedEpr:     math.LegacyMustNewDecFromStr("0.0008"),
			ActualEpr:       math.LegacyMustNewDecFromStr("0.00076"),
			EprLossBps:      500,
			Stake:           math.NewInt(5_000_000_000_000),
		}),
	}
}

func commissionEvent(epoch uint64, voteAccount string, previous, current int) types.ProtectedEvent {
	return types.ProtectedEvent{
		Epoch:       epoch,
		Amount:      math.NewInt(250_000_000),
		VoteAccount: voteAccount,
		Meta:        types.SettlementMeta{Funder: types.FunderValidatorBond},
		Reason: types.NewProtectedEventSettlement(types.CommissionIncrease{
			VoteAccount:        voteAccount,
			PreviousCommission: previous,
			CurrentCommission:  current,
			ExpectedEpr:        math.LegacyMustNewDecFromStr("0.00095"),
			ActualEpr:          math.LegacyMustNewDecFromStr("0.0009"),
			EprLossBps:         526,
			Stake:              math.NewInt(5_000_000_000_000),
		}),
	}
}

func unitEvent(t *testing.T, epoch uint64, kind types.SettlementReasonKind) types.ProtectedEvent {
	t.Helper()
	reason, err := types.NewSettlementReason(kind)
	require.NoError(t, err)
	return types.ProtectedEvent{
		Epoch:       epoch,
		Amount:      math.NewInt(1),
		VoteAccount: voteAccountA,
		Meta:        types.SettlementMeta{Funder: types.FunderValidatorBond},
		Reason:      reason,
	}
}

func namedValidator(voteAccount, name string) types.Validator {
	return types.Validator{VoteAccount: voteAccount, InfoName: &name}
}

func TestMergeProtectedEvents(t *testing.T) {
	t.Parallel()

	validators := []types.Validator{namedValidator(voteAccountA, "Alpha")}

	t.Run("settled events are dryrun up to the last dryrun epoch", func(t *testing.T) {
		t.Parallel()
		settled := []types.ProtectedEvent{
			lowCreditsEvent(608, voteAccountA, types.FunderValidatorBond, 380, 400),
			lowCreditsEvent(609, voteAccountB, types.FunderMarinade, 380, 400),
		}

		merged := MergeProtectedEvents(validators, settled, nil, 608)
		require.Len(t, merged, 2)
		require.Equal(t, StatusDryrun, merged[0].Status)
		require.NotNil(t, merged[0].Validator)
		require.Equal(t, "Alpha", merged[0].Validator.Name())
		require.Equal(t, StatusFact, merged[1].Status)
		require.Nil(t, merged[1].Validator)
	})

	t.Run("estimates only for epochs after the latest settled one", func(t *testing.T) {
		t.Parallel()
		settled := []types.ProtectedEvent{
			lowCreditsEvent(610, voteAccountA, types.FunderValidatorBond, 380, 400),
		}
		estimates := []types.ProtectedEvent{
			commissionEvent(610, voteAccountA, 5, 10),
			commissionEvent(611, voteAccountA, 5, 10),
		}

		merged := MergeProtectedEvents(validators, settled, estimates, 608)
		require.Len(t, merged, 2)
		require.Equal(t, StatusFact, merged[0].Status)
		require.Equal(t, StatusEstimate, merged[1].Status)
		require.Equal(t, uint64(611), merged[1].ProtectedEvent.Epoch)
	})

	t.Run("no settled events keeps every estimate", func(t *testing.T) {
		t.Parallel()
		estimates := []types.ProtectedEvent{commissionEvent(1, voteAccountA, 5, 10)}

		merged := MergeProtectedEvents(validators, nil, estimates, 608)
		require.Len(t, merged, 1)
		require.Equal(t, StatusEstimate, merged[0].Status)
		require.Equal(t, uint64(0), LatestSettledEpoch(nil))
	})
}

func TestReasonDescription(t *testing.T) {
	t.Parallel()

	sam := types.ProtectedEvent{
		Epoch:       700,
		Amount:      math.NewInt(1),
		VoteAccount: voteAccountA,
		Meta:        types.SettlementMeta{Funder: types.FunderMarinade},
		Reason: types.NewProtectedEventSettlement(types.CommissionSamIncrease{
			VoteAccount:                 voteAccountA,
			ActualInflationCommission:   math.LegacyMustNewDecFromStr("0.1"),
			ExpectedInflationCommission: math.LegacyMustNewDecFromStr("0.05"),
			ActualMevCommission:         math.LegacyMustNewDecFromStr("0.125"),
			ExpectedMevCommission:       math.LegacyMustNewDecFromStr("0.1"),
		}),
	}
	downtime := lowCreditsEvent(700, voteAccountA, types.FunderValidatorBond, 1, 3)
	reason, _ := downtime.Reason.ProtectedEvent()
	downtime.Reason = types.NewProtectedEventSettlement(types.DowntimeRevenueImpact(reason.(types.LowCredits)))

	tests := []struct {
		name     string
		event    types.ProtectedEvent
		expected string
	}{
		{"commission increase", commissionEvent(700, voteAccountA, 5, 10), "Commission 5% -> 10%"},
		{"low credits", lowCreditsEvent(700, voteAccountA, types.FunderValidatorBond, 380, 400), "Uptime 95.00%"},
		{"downtime revenue impact", downtime, "Uptime 33.33%"},
		{"zero expected credits", lowCreditsEvent(700, voteAccountA, types.FunderValidatorBond, 0, 0), "Uptime n/a"},
		{"sam increase", sam, "Inflation Commission 5.00% -> 10.00%; MEV Commission 10.00% -> 12.50%"},
		{"bid too low", unitEvent(t, 700, types.SettlementBidTooLowPenalty), "BidTooLow"},
		{"blacklist", unitEvent(t, 700, types.SettlementBlacklistPenalty), "Blacklist"},
		{"bidding", unitEvent(t, 700, types.SettlementBidding), "Unsupported"},
		{"zero reason", types.ProtectedEvent{}, "Unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.expected, ReasonDescription(tt.event))
		})
	}
}

func TestEprLossBps(t *testing.T) {
	t.Parallel()

	// 10000 - 10000 * 90 / 95
	commission := EprLossBps(commissionEvent(700, voteAccountA, 5, 10))
	require.True(t, commission.GT(math.LegacyNewDec(526)), commission.String())
	require.True(t, commission.LT(math.LegacyNewDec(527)), commission.String())

	require.True(t, EprLossBps(commissionEvent(700, voteAccountA, 0, 100)).Equal(math.LegacyNewDec(10000)))
	require.True(t, EprLossBps(commissionEvent(700, voteAccountA, 100, 100)).IsZero())
	require.True(t, EprLossBps(lowCreditsEvent(700, voteAccountA, types.FunderMarinade, 380, 400)).Equal(math.LegacyNewDec(500)))
	require.True(t, EprLossBps(unitEvent(t, 700, types.SettlementBlacklistPenalty)).IsZero())
}

func TestAmountSol(t *testing.T) {
	t.Parallel()

	require.True(t, AmountSol(commissionEvent(700, voteAccountA, 5, 10)).Equal(math.LegacyMustNewDecFromStr("0.25")))
	require.True(t, AmountSol(types.ProtectedEvent{}).IsZero())
}

func TestFormatPercentage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "95.00%", formatPercentage(math.LegacyMustNewDecFromStr("0.95")))
	require.Equal(t, "0.01%", formatPercentage(math.LegacyMustNewDecFromStr("0.00005")))
	require.Equal(t, "100.00%", formatPercentage(math.LegacyOneDec()))
	require.Equal(t, "-2.50%", formatPercentage(math.LegacyMustNewDecFromStr("-0.025")))
	require.Equal(t, "0.00%", formatPercentage(math.LegacyDec{}))
}

func TestSummarizeAndFilter(t *testing.T) {
	t.Parallel()

	settled := []types.ProtectedEvent{
		lowCreditsEvent(608, voteAccountA, types.FunderValidatorBond, 380, 400),
		lowCreditsEvent(609, voteAccountB, types.FunderMarinade, 380, 400),
	}
	estimates := []types.ProtectedEvent{commissionEvent(610, voteAccountA, 5, 10)}
	merged := MergeProtectedEvents(nil, settled, estimates, 608)

	summary := Summarize(merged)
	require.Equal(t, 3, summary.TotalEvents)
	bond := summary.ByFunder[types.FunderValidatorBond]
	require.NotNil(t, bond)
	require.Equal(t, 2, bond.Events)
	require.True(t, bond.Lamports.Equal(math.NewInt(450_000_000)))
	require.Equal(t, 1, bond.ByStatus[StatusDryrun])
	require.Equal(t, 1, bond.ByStatus[StatusEstimate])
	require.Equal(t, 1, summary.ByFunder[types.FunderMarinade].ByStatus[StatusFact])

	byFunder := LamportsByFunder(estimates)
	require.Len(t, byFunder, 1)
	require.True(t, byFunder[types.FunderValidatorBond].Equal(math.NewInt(250_000_000)))

	epoch := uint64(609)
	require.True(t, Filter{}.Matches(merged[0]))
	require.False(t, Filter{Epoch: &epoch}.Matches(merged[0]))
	require.True(t, Filter{Epoch: &epoch, Funder: types.FunderMarinade, Status: StatusFact}.Matches(merged[1]))
	require.False(t, Filter{Status: StatusEstimate}.Matches(merged[1]))
}

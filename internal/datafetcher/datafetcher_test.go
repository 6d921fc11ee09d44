package datafetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/marinade-finance/psr-dashboard/internal/types"
)

const (
	voteAccountA = "Vote111111111111111111111111111111111111111"
	voteAccountB = "So11111111111111111111111111111111111111112"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClientWithConfig(ClientConfig{
		ValidatorsAPI: server.URL,
		BondsAPI:      server.URL,
		Timeout:       5 * time.Second,
		MaxRetries:    3,
		RetryDelay:    time.Millisecond,
	})
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestFetchValidators(t *testing.T) {
	t.Parallel()

	t.Run("parses stakes and stats", func(t *testing.T) {
		t.Parallel()
		queries := make(chan string, 1)
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/validators", r.URL.Path)
			queries <- r.URL.RawQuery
			jsonHandler(`{"validators": [
				{
					"vote_account": "` + voteAccountA + `",
					"info_name": "Alpha",
					"activated_stake": "1000000000000",
					"marinade_stake": "5000000000",
					"marinade_native_stake": "0",
					"epoch_stats": [
						{"epoch": 600, "credits": 380, "commission_advertised": 5,
						 "activated_stake": "1000000000000", "marinade_stake": "5000000000", "marinade_native_stake": "2000000000"},
						{"epoch": 601, "credits": 400, "commission_advertised": 7,
						 "activated_stake": "1000000000000.4", "marinade_stake": null, "marinade_native_stake": ""}
					]
				},
				{
					"vote_account": "` + voteAccountB + `",
					"info_name": null,
					"activated_stake": "1",
					"marinade_stake": "0",
					"marinade_native_stake": "0",
					"epoch_stats": []
				}
			]}`)(w, r)
		}))

		validators, err := client.FetchValidators(context.Background(), 3)
		require.NoError(t, err)
		require.Equal(t, "limit=9999&epochs=3", <-queries)
		require.Len(t, validators, 2)

		alpha := validators[0]
		require.Equal(t, voteAccountA, alpha.VoteAccount)
		require.Equal(t, "Alpha", alpha.Name())
		require.Len(t, alpha.EpochStats, 2)
		require.Equal(t, uint64(600), alpha.EpochStats[0].Epoch)
		require.Equal(t, int64(380), alpha.EpochStats[0].Credits)
		require.Equal(t, 5, alpha.EpochStats[0].CommissionAdvertised)
		require.Equal(t, "7000000000", alpha.EpochStats[0].TotalMarinadeStake().String())
		require.Equal(t, "1000000000000", alpha.EpochStats[1].ActivatedStake.String())
		require.True(t, alpha.EpochStats[1].TotalMarinadeStake().IsZero())

		require.Equal(t, "---", validators[1].Name())
	})

	t.Run("skips invalid validators and stats", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, jsonHandler(`{"validators": [
			{"vote_account": "not-a-key", "activated_stake": "1", "epoch_stats": []},
			{"vote_account": "`+voteAccountA+`", "activated_stake": "-5", "epoch_stats": []},
			{"vote_account": "`+voteAccountB+`", "activated_stake": "1", "epoch_stats": [
				{"epoch": 600, "credits": 400, "commission_advertised": 101, "activated_stake": "1"},
				{"epoch": 601, "credits": -1, "commission_advertised": 5, "activated_stake": "1"},
				{"epoch": "x", "credits": 1, "commission_advertised": 5, "activated_stake": "1"},
				{"epoch": 602, "credits": 400, "commission_advertised": 5, "activated_stake": "1"}
			]}
		]}`))

		validators, err := client.FetchValidators(context.Background(), 3)
		require.NoError(t, err)
		require.Len(t, validators, 1)
		require.Equal(t, voteAccountB, validators[0].VoteAccount)
		require.Len(t, validators[0].EpochStats, 1)
		require.Equal(t, uint64(602), validators[0].EpochStats[0].Epoch)
	})

	t.Run("rejects negative epochs", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, jsonHandler(`{}`))
		_, err := client.FetchValidators(context.Background(), -1)
		require.Error(t, err)
	})
}

func TestFetchRewards(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rewards", r.URL.Path)
		jsonHandler(`{
			"rewards_mev": [[600, 12.5]],
			"rewards_inflation_est": [[600, 81234.123456789], [601, "80000"], [602], [603, -1], [604, 1.5e3]]
		}`)(w, r)
	}))

	rewards, err := client.FetchRewards(context.Background())
	require.NoError(t, err)

	require.Len(t, rewards.RewardsMev, 1)
	require.True(t, rewards.RewardsMev[0].TotalReward.Equal(dec(t, "12.5")))

	require.Len(t, rewards.RewardsInflationEst, 3)
	require.Equal(t, uint64(600), rewards.RewardsInflationEst[0].Epoch)
	require.True(t, rewards.RewardsInflationEst[0].TotalReward.Equal(dec(t, "81234.123456789")))
	require.Equal(t, uint64(601), rewards.RewardsInflationEst[1].Epoch)
	require.True(t, rewards.RewardsInflationEst[1].TotalReward.Equal(dec(t, "80000")))
	require.Equal(t, uint64(604), rewards.RewardsInflationEst[2].Epoch)
	require.True(t, rewards.RewardsInflationEst[2].TotalReward.Equal(dec(t, "1500")))
}

func TestFetchProtectedEvents(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/protected-events", r.URL.Path)
		jsonHandler(`{"protected_events": [
			{
				"epoch": 610, "amount": 200000000, "vote_account": "` + voteAccountA + `",
				"meta": {"funder": "ValidatorBond"},
				"reason": {"ProtectedEvent": {"LowCredits": {
					"vote_account": "` + voteAccountA + `", "expected_credits": 400, "actual_credits": 380,
					"commission": 20, "expected_epr": 0.0008, "actual_epr": 0.00076,
					"epr_loss_bps": 500, "stake": 5000000000000
				}}}
			},
			{
				"epoch": 611, "amount": 250000000, "vote_account": "` + voteAccountB + `",
				"meta": {"funder": "ValidatorBond"},
				"reason": {"ProtectedEvent": {"CommissionIncrease": {
					"vote_account": "` + voteAccountB + `", "previous_commission": 5, "current_commission": 10,
					"expected_epr": 0.00095, "actual_epr": 0.0009, "epr_loss_bps": 526, "stake": 5000000000000
				}}}
			},
			{
				"epoch": 611, "amount": 1, "vote_account": "` + voteAccountB + `",
				"meta": {"funder": "Marinade"},
				"reason": {"ProtectedEvent": {"CommissionSamIncrease": {
					"vote_account": "` + voteAccountB + `",
					"actual_inflation_commission": 0.1, "expected_inflation_commission": 0.05,
					"actual_mev_commission": 0.1, "expected_mev_commission": 0.1,
					"expected_epr": 0.0009, "actual_epr": 0.0008, "epr_loss_bps": 1111, "stake": 1
				}}}
			},
			{
				"epoch": 612, "amount": 3, "vote_account": "` + voteAccountA + `",
				"meta": {"funder": "ValidatorBond"},
				"reason": "BidTooLowPenalty"
			},
			{
				"epoch": 612, "amount": 3, "vote_account": "` + voteAccountA + `",
				"meta": {"funder": "ValidatorBond"},
				"reason": {"ProtectedEvent": {"Slashing": {}}}
			},
			{
				"epoch": 612, "amount": 3, "vote_account": "` + voteAccountA + `",
				"meta": {"funder": "Treasury"},
				"reason": "Bidding"
			}
		]}`)(w, r)
	}))

	events, err := client.FetchProtectedEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 4)

	require.Equal(t, uint64(610), events[0].Epoch)
	require.Equal(t, int64(200_000_000), events[0].Amount.Int64())
	reason, ok := events[0].Reason.ProtectedEvent()
	require.True(t, ok)
	lowCredits, ok := reason.(types.LowCredits)
	require.True(t, ok)
	require.Equal(t, int64(400), lowCredits.ExpectedCredits)
	require.Equal(t, int64(500), lowCredits.EprLossBps)
	require.True(t, lowCredits.ExpectedEpr.Equal(dec(t, "0.0008")))
	require.Equal(t, "5000000000000", lowCredits.Stake.String())

	reason, ok = events[1].Reason.ProtectedEvent()
	require.True(t, ok)
	commission, ok := reason.(types.CommissionIncrease)
	require.True(t, ok)
	require.Equal(t, 5, commission.PreviousCommission)
	require.Equal(t, 10, commission.CurrentCommission)

	reason, ok = events[2].Reason.ProtectedEvent()
	require.True(t, ok)
	require.Equal(t, types.ReasonCommissionSamIncrease, reason.Kind())
	require.Equal(t, types.FunderMarinade, events[2].Meta.Funder)

	require.Equal(t, types.SettlementBidTooLowPenalty, events[3].Reason.Kind())
}

func TestFetchBonds(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/bonds", r.URL.Path)
		jsonHandler(`{"bonds": [
			{
				"pubkey": "` + voteAccountB + `",
				"vote_account": "` + voteAccountA + `",
				"authority": "authority",
				"cpmpe": 0,
				"updated_at": "2024-06-01T12:00:00.000Z",
				"epoch": 610,
				"funded_amount": 3000000000,
				"effective_amount": "2500000000",
				"max_stake_wanted": 1000000000000000,
				"remaining_witdraw_request_amount": 500000000,
				"remainining_settlement_claim_amount": null
			},
			{
				"pubkey": "not-a-key",
				"vote_account": "` + voteAccountA + `",
				"epoch": 610
			},
			{
				"pubkey": "` + voteAccountA + `",
				"vote_account": "` + voteAccountB + `",
				"epoch": 610,
				"effective_amount": -1
			}
		]}`)(w, r)
	}))

	bonds, err := client.FetchBonds(context.Background())
	require.NoError(t, err)
	require.Len(t, bonds, 1)

	bond := bonds[0]
	require.Equal(t, voteAccountA, bond.VoteAccount)
	require.Equal(t, voteAccountB, bond.Pubkey)
	require.Equal(t, uint64(610), bond.Epoch)
	require.True(t, bond.FundedAmount.Equal(math.NewInt(3_000_000_000)))
	require.True(t, bond.EffectiveAmount.Equal(math.NewInt(2_500_000_000)))
	require.True(t, bond.RemainingWithdrawRequestAmount.Equal(math.NewInt(500_000_000)))
	require.True(t, bond.RemainingSettlementClaimAmount.IsZero())
	require.True(t, bond.IsFunded())
}

func TestClientRetries(t *testing.T) {
	t.Parallel()

	t.Run("recovers after transient failures", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			jsonHandler(`{"rewards_mev": [], "rewards_inflation_est": [[600, 1]]}`)(w, r)
		}))

		rewards, err := client.FetchRewards(context.Background())
		require.NoError(t, err)
		require.Len(t, rewards.RewardsInflationEst, 1)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after the configured attempts", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := client.FetchRewards(context.Background())
		require.ErrorIs(t, err, ErrAPIResponseInvalid)
		require.Equal(t, int32(3), calls.Load())
	})

	t.Run("malformed JSON is an error", func(t *testing.T) {
		t.Parallel()
		client := newTestClient(t, jsonHandler(`{"validators": [`))
		_, err := client.FetchValidators(context.Background(), 3)
		require.ErrorIs(t, err, ErrAPIResponseInvalid)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		t.Parallel()
		var calls atomic.Int32
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.FetchProtectedEvents(ctx)
		require.Error(t, err)
		require.LessOrEqual(t, calls.Load(), int32(1))
	})
}

func dec(t *testing.T, s string) math.LegacyDec {
	t.Helper()
	d, err := math.LegacyNewDecFromStr(s)
	require.NoError(t, err)
	return d
}

package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const validatorsResponse = `{"validators": [{
	"vote_account": "Vote111111111111111111111111111111111111111",
	"info_name": "Alpha",
	"activated_stake": "1000000000000000",
	"marinade_stake": "10000000000000",
	"marinade_native_stake": "0",
	"epoch_stats": [
		{"epoch": 600, "credits": 400, "commission_advertised": 5,
		 "activated_stake": "1000000000000000", "marinade_stake": "10000000000000", "marinade_native_stake": "0"},
		{"epoch": 601, "credits": 400, "commission_advertised": 7,
		 "activated_stake": "1000000000000000", "marinade_stake": "10000000000000", "marinade_native_stake": "0"}
	]
}]}`

// One SOL of bond protects 10,000 SOL, the full Marinade stake of the validator.
const bondsResponse = `{"bonds": [{
	"pubkey": "So11111111111111111111111111111111111111112",
	"vote_account": "Vote111111111111111111111111111111111111111",
	"authority": "auth",
	"cpmpe": 0,
	"updated_at": "2024-01-01T00:00:00Z",
	"epoch": 600,
	"funded_amount": 2000000000,
	"effective_amount": 1000000000,
	"max_stake_wanted": 0,
	"remaining_witdraw_request_amount": 0,
	"remainining_settlement_claim_amount": 0
}]}`

func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/validators", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(validatorsResponse))
	})
	mux.HandleFunc("/rewards", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rewards_mev": [], "rewards_inflation_est": [[600, 1000]]}`))
	})
	mux.HandleFunc("/protected-events", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"protected_events": []}`))
	})
	mux.HandleFunc("/bonds", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(bondsResponse))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRunPrintsEstimates(t *testing.T) {
	upstream := newUpstream(t)
	t.Setenv("VALIDATORS_API", upstream.URL)
	t.Setenv("BONDS_API", upstream.URL)

	var out bytes.Buffer
	require.NoError(t, run([]string{"--retries", "1"}, &out))

	var events []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &events), out.String())
	require.Len(t, events, 1)
	require.Equal(t, float64(601), events[0]["epoch"])
	require.Equal(t, "200000000", events[0]["amount"])
}

func TestRunPrintsMergedView(t *testing.T) {
	upstream := newUpstream(t)
	t.Setenv("VALIDATORS_API", upstream.URL)
	t.Setenv("BONDS_API", upstream.URL)

	var out bytes.Buffer
	require.NoError(t, run([]string{"--merged", "--pretty", "--retries", "1"}, &out))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows), out.String())
	require.Len(t, rows, 1)
	require.Equal(t, "ESTIMATE", rows[0]["status"])
	require.Equal(t, "Alpha", rows[0]["validator_name"])
	require.Equal(t, "Commission 5% -> 7%", rows[0]["description"])
}

func TestRunRejectsUnknownFlags(t *testing.T) {
	t.Setenv("VALIDATORS_API", "")
	t.Setenv("BONDS_API", "")

	require.Error(t, run([]string{"--no-such-flag"}, &bytes.Buffer{}))
}

func TestRunPrintsBonds(t *testing.T) {
	upstream := newUpstream(t)
	t.Setenv("VALIDATORS_API", upstream.URL)
	t.Setenv("BONDS_API", upstream.URL)

	var out bytes.Buffer
	require.NoError(t, run([]string{"--bonds", "--retries", "1"}, &out))

	var table struct {
		Validators []map[string]any `json:"validators"`
		Summary    map[string]any   `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &table), out.String())
	require.Len(t, table.Validators, 1)
	require.Equal(t, "Alpha", table.Validators[0]["validator_name"])
	require.Equal(t, "10000000000000", table.Validators[0]["protected_stake"])
	require.Equal(t, float64(1), table.Summary["funded_bonds"])
}

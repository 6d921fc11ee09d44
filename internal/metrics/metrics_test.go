package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.HandleFunc("/api/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	router.Use(Middleware)

	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/runs/{id}", "404"))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/runs/abc", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/runs/def", nil))

	after := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("GET", "/api/runs/{id}", "404"))
	require.Equal(t, before+2, after)
}

func TestRecordFetchAttempt(t *testing.T) {
	before := testutil.ToFloat64(FetchRequestsTotal.WithLabelValues("metrics_test", "error"))
	RecordFetchAttempt("metrics_test", errors.New("boom"))
	RecordFetchAttempt("metrics_test", nil)

	require.Equal(t, before+1, testutil.ToFloat64(FetchRequestsTotal.WithLabelValues("metrics_test", "error")))
	require.GreaterOrEqual(t, testutil.ToFloat64(FetchRequestsTotal.WithLabelValues("metrics_test", "success")), 1.0)
}

func TestRecordRefresh(t *testing.T) {
	before := testutil.ToFloat64(RefreshTotal.WithLabelValues("success"))
	RecordRefresh(time.Second, nil)
	require.Equal(t, before+1, testutil.ToFloat64(RefreshTotal.WithLabelValues("success")))
	require.Greater(t, testutil.ToFloat64(LastSuccessfulRefresh), 0.0)
}

func TestSetEstimatesReplacesPreviousValues(t *testing.T) {
	SetEstimates(
		map[[2]string]int{{"ValidatorBond", "LowCredits"}: 3},
		map[string]float64{"ValidatorBond": 6e8},
	)
	require.Equal(t, 3.0, testutil.ToFloat64(EstimatedEvents.WithLabelValues("ValidatorBond", "LowCredits")))

	SetEstimates(
		map[[2]string]int{{"Marinade", "LowCredits"}: 1},
		map[string]float64{"Marinade": 1e8},
	)
	require.Equal(t, 1, testutil.CollectAndCount(EstimatedEvents))
	require.Equal(t, 1e8, testutil.ToFloat64(EstimatedLamports.WithLabelValues("Marinade")))
}

func TestSetBonds(t *testing.T) {
	SetBonds(4, 2e12, 8e12)
	require.Equal(t, 4.0, testutil.ToFloat64(FundedBonds))
	require.Equal(t, 2e12, testutil.ToFloat64(StakeLamports.WithLabelValues("protected")))
	require.Equal(t, 8e12, testutil.ToFloat64(StakeLamports.WithLabelValues("marinade")))
}

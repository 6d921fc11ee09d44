package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marinade-finance/psr-dashboard/internal/dashboard"
	"github.com/marinade-finance/psr-dashboard/internal/logger"
	"github.com/marinade-finance/psr-dashboard/internal/metrics"
	"github.com/marinade-finance/psr-dashboard/internal/state"
	"github.com/marinade-finance/psr-dashboard/internal/types"
)

var webLogger = logger.GetForComponent("web_server")

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// SnapshotProvider serves the cached dashboard state.
type SnapshotProvider interface {
	Latest() (*dashboard.Snapshot, bool)
	SettlementConfig() types.SettlementConfig
}

// RunHistory serves stored estimate runs. It is nil when persistence is disabled.
type RunHistory interface {
	RecentEstimateRuns(ctx context.Context, limit int) ([]state.EstimateRun, error)
	EstimateRun(ctx context.Context, runID uuid.UUID) (*state.EstimateRun, error)
	RunStatistics(ctx context.Context) (*state.RunStatistics, error)
	Ping(ctx context.Context) error
}

// WebServer exposes the protected events dashboard as a JSON API.
type WebServer struct {
	router    *mux.Router
	port      string
	server    *http.Server
	snapshots SnapshotProvider
	history   RunHistory
	startedAt time.Time
}

// NewWebServer creates a new web server instance
func NewWebServer(port string, snapshots SnapshotProvider, history RunHistory) *WebServer {
	if port == "" {
		port = "8080"
	}

	ws := &WebServer{
		router:    mux.NewRouter(),
		port:      port,
		snapshots: snapshots,
		history:   history,
		startedAt: time.Now(),
	}

	ws.setupRoutes()
	ws.server = &http.Server{
		Addr:         ":" + port,
		Handler:      ws.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return ws
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes() {
	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	ws.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/protected-events", ws.handleGetProtectedEvents).Methods("GET")
	api.HandleFunc("/protected-events/estimates", ws.handleGetEstimates).Methods("GET")
	api.HandleFunc("/bonds", ws.handleGetBonds).Methods("GET")
	api.HandleFunc("/runs", ws.handleGetRuns).Methods("GET")
	api.HandleFunc("/runs/stats", ws.handleGetRunStatistics).Methods("GET")
	api.HandleFunc("/runs/{id}", ws.handleGetRun).Methods("GET")
	api.HandleFunc("/settlement-config", ws.handleGetSettlementConfig).Methods("GET")

	ws.router.Use(ws.corsMiddleware)
	ws.router.Use(ws.loggingMiddleware)
	ws.router.Use(metrics.Middleware)
}

// Handler returns the routed handler, mainly for tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start blocks serving HTTP until Shutdown is called.
func (ws *WebServer) Start() error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.server.Shutdown(ctx)
}

// handleHealth reports whether a snapshot is available and the database answers.
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false
	snapshotInfo := map[string]interface{}{
		"available": false,
	}
	if snapshot, ok := ws.snapshots.Latest(); ok {
		snapshotInfo = map[string]interface{}{
			"available":            true,
			"run_id":               snapshot.RunID,
			"generated_at":         snapshot.GeneratedAt,
			"age_seconds":          int64(time.Since(snapshot.GeneratedAt).Seconds()),
			"latest_settled_epoch": snapshot.LatestSettledEpoch,
			"events":               len(snapshot.Events),
			"bonds_available":      snapshot.Bonds != nil,
		}
	} else {
		hasErrors = true
	}

	databaseStatus := "disabled"
	if ws.history != nil {
		databaseStatus = "healthy"
		if err := ws.history.Ping(r.Context()); err != nil {
			webLogger.Warn().Err(err).Msg("Database health check failed")
			databaseStatus = "unhealthy"
			hasErrors = true
		}
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":          runtime.Version(),
			"goroutines_count": runtime.NumGoroutine(),
			"alloc_bytes":      memStats.Alloc,
			"sys_bytes":        memStats.Sys,
			"gc_cycles":        memStats.NumGC,
			"uptime_seconds":   int64(time.Since(ws.startedAt).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "psr-dashboard",
			"version": "1.0.0",
		},
		"dashboard_status": map[string]interface{}{
			"database": databaseStatus,
			"snapshot": snapshotInfo,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleGetProtectedEvents returns the merged list, optionally filtered by epoch, funder and status.
func (ws *WebServer) handleGetProtectedEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	snapshot, ok := ws.latestSnapshot(w)
	if !ok {
		return
	}

	events := snapshot.Filter(filter)
	response := map[string]interface{}{
		"run_id":               snapshot.RunID,
		"generated_at":         snapshot.GeneratedAt,
		"latest_settled_epoch": snapshot.LatestSettledEpoch,
		"last_dryrun_epoch":    snapshot.LastDryrunEpoch,
		"summary":              snapshot.Summary,
		"events":               events,
		"count":                len(events),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetEstimates returns the raw estimates of the latest refresh.
func (ws *WebServer) handleGetEstimates(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := ws.latestSnapshot(w)
	if !ok {
		return
	}

	response := map[string]interface{}{
		"run_id":       snapshot.RunID,
		"generated_at": snapshot.GeneratedAt,
		"estimates":    snapshot.Estimates,
		"count":        len(snapshot.Estimates),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetBonds returns validators joined with their bonds. With funded=true only
// validators holding a funded bond are listed; the summary always covers every row.
func (ws *WebServer) handleGetBonds(w http.ResponseWriter, r *http.Request) {
	fundedOnly := false
	if fundedStr := r.URL.Query().Get("funded"); fundedStr != "" {
		parsed, err := strconv.ParseBool(fundedStr)
		if err != nil {
			ws.writeErrorResponse(w, http.StatusBadRequest, "invalid funded")
			return
		}
		fundedOnly = parsed
	}

	snapshot, ok := ws.latestSnapshot(w)
	if !ok {
		return
	}
	if snapshot.Bonds == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Bonds data unavailable")
		return
	}

	validators := snapshot.Bonds.Validators
	if fundedOnly {
		validators = make([]dashboard.ValidatorBondView, 0, len(snapshot.Bonds.Validators))
		for _, view := range snapshot.Bonds.Validators {
			if view.Bond != nil && view.Bond.IsFunded() {
				validators = append(validators, view)
			}
		}
	}

	response := map[string]interface{}{
		"run_id":       snapshot.RunID,
		"generated_at": snapshot.GeneratedAt,
		"summary":      snapshot.Bonds.Summary,
		"validators":   validators,
		"count":        len(validators),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetRuns returns recent estimate runs without their events.
func (ws *WebServer) handleGetRuns(w http.ResponseWriter, r *http.Request) {
	if !ws.requireHistory(w) {
		return
	}

	limit := defaultRunsLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= maxRunsLimit {
			limit = parsedLimit
		}
	}

	runs, err := ws.history.RecentEstimateRuns(r.Context(), limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent estimate runs")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve runs")
		return
	}

	response := map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
		"limit": limit,
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetRun returns one run including its events.
func (ws *WebServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if !ws.requireHistory(w) {
		return
	}

	runID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	run, err := ws.history.EstimateRun(r.Context(), runID)
	if err != nil {
		if errors.Is(err, state.ErrRunNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Run not found")
			return
		}
		webLogger.Error().Err(err).Str("runId", runID.String()).Msg("Failed to get estimate run")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve run")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, run)
}

func (ws *WebServer) handleGetRunStatistics(w http.ResponseWriter, r *http.Request) {
	if !ws.requireHistory(w) {
		return
	}

	stats, err := ws.history.RunStatistics(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get run statistics")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve run statistics")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, stats)
}

// handleGetSettlementConfig returns the bands estimates are computed with.
func (ws *WebServer) handleGetSettlementConfig(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"settlement_config": ws.snapshots.SettlementConfig(),
		"timestamp":         time.Now().UTC(),
	}
	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) latestSnapshot(w http.ResponseWriter) (*dashboard.Snapshot, bool) {
	snapshot, ok := ws.snapshots.Latest()
	if !ok {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "No snapshot available yet")
		return nil, false
	}
	return snapshot, true
}

func (ws *WebServer) requireHistory(w http.ResponseWriter) bool {
	if ws.history == nil {
		ws.writeErrorResponse(w, http.StatusServiceUnavailable, "Run history is disabled")
		return false
	}
	return true
}

func parseFilter(r *http.Request) (dashboard.Filter, error) {
	query := r.URL.Query()
	var filter dashboard.Filter

	if epochStr := query.Get("epoch"); epochStr != "" {
		epoch, err := strconv.ParseUint(epochStr, 10, 64)
		if err != nil {
			return dashboard.Filter{}, errors.New("invalid epoch")
		}
		filter.Epoch = &epoch
	}

	if funder := types.SettlementFunder(query.Get("funder")); funder != "" {
		if !funder.Valid() {
			return dashboard.Filter{}, errors.New("invalid funder")
		}
		filter.Funder = funder
	}

	if status := dashboard.ProtectedEventStatus(query.Get("status")); status != "" {
		if !status.Valid() {
			return dashboard.Filter{}, errors.New("invalid status")
		}
		filter.Status = status
	}

	return filter, nil
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// corsMiddleware adds CORS headers
func (ws *WebServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

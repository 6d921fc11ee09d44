package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/marinade-finance/psr-dashboard/internal/config"
	"github.com/marinade-finance/psr-dashboard/internal/dashboard"
	"github.com/marinade-finance/psr-dashboard/internal/datafetcher"
	"github.com/marinade-finance/psr-dashboard/internal/estimator"
	"github.com/marinade-finance/psr-dashboard/internal/logger"
	"github.com/marinade-finance/psr-dashboard/internal/state"
	"github.com/marinade-finance/psr-dashboard/internal/types"
	"github.com/marinade-finance/psr-dashboard/internal/web"
)

const shutdownTimeout = 10 * time.Second

// main is the entry point for the PSR dashboard service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel)
	log.Info().Msg("PSR dashboard starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. Optional persistence and settlement bands ---
	settlement := config.DefaultSettlementConfig
	var recorder dashboard.RunRecorder
	var history web.RunHistory

	if config.PersistenceEnabled() {
		dbCfg := state.DBConfig{
			Host: config.DBHost, Port: config.DBPort,
			User: config.DBUser, Password: config.DBPassword,
			DBName: config.DBName, SSLMode: config.DBSSLMode,
		}
		if err := state.InitDB(dbCfg); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}

		var configID int64
		settlement, configID = loadSettlementConfig(ctx)
		repository := state.Repository{SettlementConfigID: &configID}
		recorder = repository
		history = repository
	} else {
		log.Warn().Msg("DB_HOST not set, run history is disabled and default settlement bands are used")
	}

	// --- 3. Wire the service ---
	client := datafetcher.NewClient()

	est, err := estimator.NewEstimator(estimator.Config{Rewards: client, Settlement: settlement})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create estimator")
	}

	service, err := dashboard.New(dashboard.Config{
		Validators:          client,
		SettledEvents:       client,
		Bonds:               client,
		Estimator:           est,
		Recorder:            recorder,
		ValidatorEpochs:     config.ValidatorEpochs,
		LastDryrunEpoch:     config.LastDryrunEpoch,
		BondStakeMultiplier: config.BondStakeMultiplier,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create dashboard service")
	}

	// --- 4. Start Web Server ---
	webServer := web.NewWebServer(config.WebPort, service, history)
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting PSR dashboard API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
			stop()
		}
	}()

	// --- 5. Refresh loop until a signal arrives ---
	service.RunLoop(ctx, config.RefreshInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	log.Info().Msg("PSR dashboard stopped")
}

// loadSettlementConfig returns the active stored bands, saving the defaults on first boot.
func loadSettlementConfig(ctx context.Context) (types.SettlementConfig, int64) {
	stored, err := state.LoadActiveSettlementConfig(ctx, config.SettlementConfigName)
	if err == nil {
		return stored.Config, stored.ConfigID
	}
	if !errors.Is(err, state.ErrNoActiveSettlementConfig) {
		log.Fatal().Err(err).Msg("Failed to load active settlement config")
	}

	log.Warn().Msg("No active settlement config found, saving defaults.")
	configID, err := state.SaveSettlementConfig(ctx, config.DefaultSettlementConfig,
		config.SettlementConfigName, config.SettlementConfigVersion, true)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to save default settlement config")
	}
	return config.DefaultSettlementConfig, configID
}

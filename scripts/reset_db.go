package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/marinade-finance/psr-dashboard/internal/config"
	"github.com/marinade-finance/psr-dashboard/internal/logger"
	"github.com/marinade-finance/psr-dashboard/internal/state"
)

// Drops and recreates the dashboard tables, then stores the default settlement bands.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found or error loading .env file. Relying on OS environment variables.")
	}

	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Initialize(config.LogLevel)
	log.Info().Msg("Starting database reset script...")

	if !config.PersistenceEnabled() {
		log.Fatal().Msg("DB_HOST environment variable not set.")
	}

	dbCfg := state.DBConfig{
		Host:     config.DBHost,
		Port:     config.DBPort,
		User:     config.DBUser,
		Password: config.DBPassword,
		DBName:   config.DBName,
		SSLMode:  config.DBSSLMode,
	}

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("user", dbCfg.User).
		Str("dbname", dbCfg.DBName).
		Msg("Connecting to database")

	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database connection")
	}
	defer state.CloseDB()

	ctx := context.Background()

	log.Info().Msg("Connected to database. Attempting to drop all tables...")
	dropTablesQuery := `
		DROP TABLE IF EXISTS estimate_runs CASCADE;
		DROP TABLE IF EXISTS settlement_configs CASCADE;
	`
	if _, err := state.DB.ExecContext(ctx, dropTablesQuery); err != nil {
		log.Fatal().Err(err).Msg("Failed to drop tables")
	}
	log.Info().Msg("Successfully dropped all tables")

	log.Info().Msg("Recreating database schema...")
	if err := state.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to recreate database schema")
	}

	if _, err := state.SaveSettlementConfig(ctx, config.DefaultSettlementConfig,
		config.SettlementConfigName, config.SettlementConfigVersion, true); err != nil {
		log.Fatal().Err(err).Msg("Failed to save default settlement config")
	}

	log.Info().Msg("Database reset complete!")
}

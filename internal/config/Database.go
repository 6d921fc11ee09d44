package config

import (
	"github.com/rs/zerolog/log"
)

// Database configuration loaded from environment variables.
// Persistence is optional and enabled only when DB_HOST is set.
var (
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

const (
	// SettlementConfigName is the name the active settlement bands are stored under.
	SettlementConfigName = "default"
	// SettlementConfigVersion is the version written when the defaults are saved on first boot.
	SettlementConfigVersion = 1

	defaultDBPort    = 5432
	defaultDBUser    = "postgres"
	defaultDBName    = "psr_dashboard"
	defaultDBSSLMode = "disable"
)

// loadDatabaseConfig is called by LoadConfig() in General.go.
func loadDatabaseConfig() error {
	var err error

	DBHost = getEnvOrDefault("DB_HOST", "")
	DBPort, err = getEnvAsIntOrDefault("DB_PORT", defaultDBPort)
	if err != nil {
		return err
	}
	DBUser = getEnvOrDefault("DB_USER", defaultDBUser)
	DBPassword = getEnvOrDefault("DB_PASSWORD", "")
	DBName = getEnvOrDefault("DB_NAME", defaultDBName)
	DBSSLMode = getEnvOrDefault("DB_SSLMODE", defaultDBSSLMode)

	log.Debug().
		Bool("enabled", PersistenceEnabled()).
		Str("DBHost", DBHost).
		Int("DBPort", DBPort).
		Str("DBName", DBName).
		Msg("Database configuration loaded.")

	return nil
}

// PersistenceEnabled reports whether run history and settlement configs are stored in PostgreSQL.
func PersistenceEnabled() bool {
	return DBHost != ""
}

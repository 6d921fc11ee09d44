package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// Application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ValidatorEpochs is how many past epochs of stats are requested per validator.
	ValidatorEpochs int

	// LastDryrunEpoch is the last epoch whose on-chain settlements were not paid out.
	LastDryrunEpoch uint64

	// BondStakeMultiplier is how many lamports of stake one lamport of effective
	// bond balance protects.
	BondStakeMultiplier int64

	// RefreshInterval is how often the dashboard recomputes its snapshot.
	RefreshInterval time.Duration

	// HTTPTimeout bounds every upstream request.
	HTTPTimeout time.Duration
	// FetchMaxRetries is the number of attempts per upstream request.
	FetchMaxRetries int

	// WebPort is the port of the dashboard API.
	WebPort string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
)

const (
	defaultValidatorEpochs = 3
	defaultLastDryrunEpoch = 608
	defaultBondMultiplier  = 10_000
	defaultRefreshInterval = 10 * time.Minute
	defaultHTTPTimeout     = 30 * time.Second
	defaultFetchMaxRetries = 3
	defaultWebPort         = "8080"
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// Endpoints are required; tuning knobs fall back to defaults.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	ValidatorEpochs, err = getEnvAsIntOrDefault("VALIDATOR_EPOCHS", defaultValidatorEpochs)
	if err != nil {
		return err
	}
	if ValidatorEpochs < 2 {
		return errors.New("environment variable VALIDATOR_EPOCHS must be at least 2 to compare commissions between epochs")
	}

	LastDryrunEpoch, err = getEnvAsUint64OrDefault("LAST_DRYRUN_EPOCH", defaultLastDryrunEpoch)
	if err != nil {
		return err
	}

	bondStakeMultiplier, err := getEnvAsIntOrDefault("BOND_STAKE_MULTIPLIER", defaultBondMultiplier)
	if err != nil {
		return err
	}
	if bondStakeMultiplier < 1 {
		return errors.New("environment variable BOND_STAKE_MULTIPLIER must be at least 1")
	}
	BondStakeMultiplier = int64(bondStakeMultiplier)

	RefreshInterval, err = getEnvAsDurationOrDefault("REFRESH_INTERVAL", defaultRefreshInterval)
	if err != nil {
		return err
	}

	HTTPTimeout, err = getEnvAsDurationOrDefault("HTTP_TIMEOUT", defaultHTTPTimeout)
	if err != nil {
		return err
	}

	FetchMaxRetries, err = getEnvAsIntOrDefault("FETCH_MAX_RETRIES", defaultFetchMaxRetries)
	if err != nil {
		return err
	}
	if FetchMaxRetries < 1 {
		return errors.New("environment variable FETCH_MAX_RETRIES must be at least 1")
	}

	WebPort = getEnvOrDefault("WEB_PORT", defaultWebPort)
	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	if err := loadDatabaseConfig(); err != nil {
		return err
	}

	log.Debug().
		Int("ValidatorEpochs", ValidatorEpochs).
		Uint64("LastDryrunEpoch", LastDryrunEpoch).
		Int64("BondStakeMultiplier", BondStakeMultiplier).
		Dur("RefreshInterval", RefreshInterval).
		Dur("HTTPTimeout", HTTPTimeout).
		Int("FetchMaxRetries", FetchMaxRetries).
		Str("WebPort", WebPort).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, err := getEnv(key); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault retrieves an environment variable as an int. Returns error if set but invalid.
func getEnvAsIntOrDefault(key string, defaultValue int) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsUint64OrDefault retrieves an environment variable as a uint64. Returns error if set but invalid.
func getEnvAsUint64OrDefault(key string, defaultValue uint64) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return defaultValue, nil
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDurationOrDefault retrieves an environment variable as a duration (e.g. "90s").
func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil || value <= 0 {
		return 0, errors.New("environment variable " + key + " must be a positive duration, got: " + valueStr)
	}
	return value, nil
}

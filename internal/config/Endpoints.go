package config

import (
	"errors"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// Endpoint configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// ValidatorsAPI serves validator epoch stats and the rewards feed.
	ValidatorsAPI string
	// BondsAPI serves bonds and on-chain protected events.
	BondsAPI string
)

var errInvalidEndpoint = errors.New("endpoint must be an absolute URL")

const (
	defaultValidatorsAPI = "https://validators-api.marinade.finance"
	defaultBondsAPI      = "https://validator-bonds-api.marinade.finance"
)

// loadEndpointConfig loads endpoint configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	ValidatorsAPI, err = getEndpoint("VALIDATORS_API", defaultValidatorsAPI)
	if err != nil {
		return err
	}

	BondsAPI, err = getEndpoint("BONDS_API", defaultBondsAPI)
	if err != nil {
		return err
	}

	log.Debug().
		Str("ValidatorsAPI", ValidatorsAPI).
		Str("BondsAPI", BondsAPI).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}

// getEndpoint reads a base URL and strips the trailing slash so routes can be appended.
func getEndpoint(key, defaultValue string) (string, error) {
	raw := getEnvOrDefault(key, defaultValue)
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", &url.Error{Op: "parse " + key, URL: raw, Err: errInvalidEndpoint}
	}
	return strings.TrimRight(raw, "/"), nil
}

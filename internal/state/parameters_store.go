package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marinade-finance/psr-dashboard/internal/types"
)

var ErrNoActiveSettlementConfig = errors.New("no active settlement config")

// StoredSettlementConfig is one versioned set of settlement bands.
type StoredSettlementConfig struct {
	ConfigID    int64                  `json:"config_id"`
	ConfigName  string                 `json:"config_name"`
	Version     int                    `json:"version"`
	IsActive    bool                   `json:"is_active"`
	ActivatedAt time.Time              `json:"activated_at"`
	Config      types.SettlementConfig `json:"config"`
}

// SaveSettlementConfig saves a new version of the settlement bands. When makeActive is
// set, any previously active version of the same name is deactivated in the same transaction.
func SaveSettlementConfig(ctx context.Context, cfg types.SettlementConfig, configName string, version int, makeActive bool) (configID int64, err error) {
	if DB == nil {
		return 0, ErrDBNotInitialized
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal settlement config: %w", err)
	}

	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p) // Re-panic after rollback
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if makeActive {
		stmtDeactivate := `UPDATE settlement_configs SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE;`
		if _, err = tx.ExecContext(ctx, stmtDeactivate, configName); err != nil {
			return 0, fmt.Errorf("failed to deactivate existing settlement configs for %s: %w", configName, err)
		}
	}

	stmt := `
		INSERT INTO settlement_configs (config_name, version, is_active, activated_at, created_at, config)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING config_id;`

	currentTime := time.Now().UTC()
	err = tx.QueryRowContext(ctx, stmt,
		configName, version, makeActive, currentTime, currentTime, string(configJSON),
	).Scan(&configID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert settlement config: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	log.Info().
		Int("version", version).
		Str("config", configName).
		Int64("config_id", configID).
		Bool("active", makeActive).
		Msg("Saved settlement config")
	return configID, nil
}

// LoadActiveSettlementConfig loads the most recently activated active version.
func LoadActiveSettlementConfig(ctx context.Context, configName string) (*StoredSettlementConfig, error) {
	if DB == nil {
		return nil, ErrDBNotInitialized
	}

	query := `
		SELECT config_id, config_name, version, is_active, activated_at, config
		FROM settlement_configs
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC
		LIMIT 1;`

	stored := &StoredSettlementConfig{}
	var configJSON []byte
	err := DB.QueryRowContext(ctx, query, configName).Scan(
		&stored.ConfigID, &stored.ConfigName, &stored.Version, &stored.IsActive, &stored.ActivatedAt, &configJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: config '%s'", ErrNoActiveSettlementConfig, configName)
		}
		return nil, fmt.Errorf("failed to scan active settlement config for '%s': %w", configName, err)
	}

	if err := json.Unmarshal(configJSON, &stored.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settlement config %d: %w", stored.ConfigID, err)
	}

	log.Info().Str("config", configName).Int("version", stored.Version).Msg("Loaded active settlement config")
	return stored, nil
}

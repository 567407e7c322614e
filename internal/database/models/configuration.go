package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/database/dbretry"
	"github.com/shadowdev/shadowbot/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ConfigurationModel handles database operations for per-server configuration.
type ConfigurationModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewConfiguration creates a ConfigurationModel with database access.
func NewConfiguration(db *bun.DB, logger *zap.Logger) *ConfigurationModel {
	return &ConfigurationModel{
		db:     db,
		logger: logger.Named("db_configuration"),
	}
}

// SetConfig creates or replaces a configuration value.
func (m *ConfigurationModel) SetConfig(
	ctx context.Context, serverID snowflake.ID, key types.ConfigKey, value string,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		config := &types.Configuration{
			ServerID:    serverID,
			ConfigKey:   key,
			ConfigValue: value,
			UpdatedAt:   time.Now(),
		}

		_, err := m.db.NewInsert().Model(config).
			On("CONFLICT (server_id, config_key) DO UPDATE").
			Set("config_value = EXCLUDED.config_value").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to set config: %w (serverID=%d, key=%s)", err, serverID, key)
		}

		m.logger.Debug("Saved configuration",
			zap.Uint64("serverID", uint64(serverID)),
			zap.String("key", string(key)))

		return nil
	})
}

// GetConfig retrieves a configuration value.
// Returns types.ErrConfigNotFound when the key was never set.
func (m *ConfigurationModel) GetConfig(
	ctx context.Context, serverID snowflake.ID, key types.ConfigKey,
) (string, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (string, error) {
		var config types.Configuration

		err := m.db.NewSelect().Model(&config).
			Where("server_id = ?", serverID).
			Where("config_key = ?", key).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return "", types.ErrConfigNotFound
			}

			return "", fmt.Errorf("failed to get config: %w (serverID=%d, key=%s)", err, serverID, key)
		}

		return config.ConfigValue, nil
	})
}

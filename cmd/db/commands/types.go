package commands

import (
	"errors"

	"github.com/shadowdev/shadowbot/internal/database"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"
)

var (
	ErrNameRequired    = errors.New("NAME argument required")
	ErrServerRequired  = errors.New("SERVER_ID argument required")
	ErrChannelRequired = errors.New("CHANNEL_ID argument required")
	ErrInvalidID       = errors.New("invalid snowflake ID")
	ErrInvalidAge      = errors.New("--older-than must be positive")
)

// CLIDependencies holds the common dependencies needed by CLI commands.
type CLIDependencies struct {
	DB       database.Client
	Migrator *migrate.Migrator
	Logger   *zap.Logger
}

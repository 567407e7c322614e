package types

import (
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/uptrace/bun"
)

// ErrConfigNotFound is returned when a server has no value for a config key.
var ErrConfigNotFound = errors.New("configuration not found")

// ConfigKey names a per-server configuration value.
type ConfigKey string

// ConfigKeyTicketPanelMessage stores the message ID of the ticket intake panel.
const ConfigKeyTicketPanelMessage ConfigKey = "ticket_panel_message_id"

// Configuration is a per-server key/value row.
type Configuration struct {
	bun.BaseModel `bun:"table:configurations,alias:c"`

	ServerID    snowflake.ID `bun:",pk"`
	ConfigKey   ConfigKey    `bun:",pk"`
	ConfigValue string       `bun:",notnull"`
	UpdatedAt   time.Time    `bun:",notnull"`
}

package config

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

var (
	ErrNoTicketTypes       = errors.New("no ticket types configured")
	ErrInvalidTicketType   = errors.New("invalid ticket type")
	ErrInvalidAutoClose    = errors.New("auto close delay must be positive")
	ErrInvalidPingCooldown = errors.New("ping cooldown must not be negative")
	ErrMissingPanelChannel = errors.New("ticket panel channel is not configured")
)

// Ticket channel names must fit Discord's channel name limits.
const (
	MinTicketNameLength = 2
	MaxTicketNameLength = 100
)

// Tickets contains the ticket system configuration.
type Tickets struct {
	// Channel where the intake panel is posted.
	PanelChannelID snowflake.ID `koanf:"panel_channel_id"`
	// Hours without an owner reply after a staff message before a ticket closes.
	AutoCloseDelayHours int `koanf:"autoclose_delay_hours"`
	// Role whose members ping the ticket owner when they write in a ticket (0 disables).
	AutoPingRoleID snowflake.ID `koanf:"auto_ping_role_id"`
	// Minimum seconds between two auto-pings by the same member in the same ticket.
	PingCooldownSeconds int `koanf:"ping_cooldown_seconds"`
	// Ticket types keyed by their selection value.
	Types map[string]TicketType `koanf:"types"`
}

// TicketType describes one kind of ticket users can open.
type TicketType struct {
	// Display name.
	Name string `koanf:"name"`
	// Description shown in the intake panel.
	Description string `koanf:"description"`
	// Category channel new tickets of this type are created under.
	CategoryID snowflake.ID `koanf:"category_id"`
	// Roles that can see and manage tickets of this type.
	StaffRoleIDs []snowflake.ID `koanf:"staff_role_ids"`
	// Roles mentioned when a ticket of this type is opened.
	PingRoleIDs []snowflake.ID `koanf:"ping_role_ids"`
}

// AutoCloseDelay returns the inactivity window as a duration.
func (t *Tickets) AutoCloseDelay() time.Duration {
	return time.Duration(t.AutoCloseDelayHours) * time.Hour
}

// PingCooldown returns the auto-ping cooldown as a duration.
func (t *Tickets) PingCooldown() time.Duration {
	return time.Duration(t.PingCooldownSeconds) * time.Second
}

// Type returns the ticket type for the key.
func (t *Tickets) Type(key string) (TicketType, bool) {
	tt, ok := t.Types[key]
	return tt, ok
}

// TypeKeys returns the configured type keys in a stable order.
func (t *Tickets) TypeKeys() []string {
	keys := make([]string, 0, len(t.Types))
	for key := range t.Types {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

// IsStaff reports whether any of the roles is a staff role of the ticket type.
func (tt TicketType) IsStaff(roleIDs []snowflake.ID) bool {
	for _, roleID := range roleIDs {
		for _, staffRoleID := range tt.StaffRoleIDs {
			if roleID == staffRoleID {
				return true
			}
		}
	}

	return false
}

// Validate checks the ticket configuration.
func (t *Tickets) Validate() error {
	if len(t.Types) == 0 {
		return ErrNoTicketTypes
	}

	if t.PanelChannelID == 0 {
		return ErrMissingPanelChannel
	}

	if t.AutoCloseDelayHours <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAutoClose, t.AutoCloseDelayHours)
	}

	if t.PingCooldownSeconds < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidPingCooldown, t.PingCooldownSeconds)
	}

	for key, tt := range t.Types {
		switch {
		case key == "":
			return fmt.Errorf("%w: empty key", ErrInvalidTicketType)
		case tt.Name == "":
			return fmt.Errorf("%w: %s has no name", ErrInvalidTicketType, key)
		case tt.CategoryID == 0:
			return fmt.Errorf("%w: %s has no category", ErrInvalidTicketType, key)
		}
	}

	return nil
}

package config

import (
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

var (
	ErrUnknownLogKind    = errors.New("unknown log kind")
	ErrMissingLogChannel = errors.New("enabled log has no channel")
)

// LogKind identifies one kind of ticket event that can be routed to a log channel.
type LogKind string

const (
	LogTicketCreate       LogKind = "ticket_create"
	LogTicketClaim        LogKind = "ticket_claim"
	LogTicketUnclaim      LogKind = "ticket_unclaim"
	LogTicketClose        LogKind = "ticket_close"
	LogTicketAutoClose    LogKind = "ticket_autoclose"
	LogTicketRename       LogKind = "ticket_rename"
	LogTicketDelete       LogKind = "ticket_delete"
	LogTicketMemberAdd    LogKind = "ticket_member_add"
	LogTicketMemberRemove LogKind = "ticket_member_remove"
)

// LogKinds lists every known log kind.
var LogKinds = []LogKind{ //nolint:gochecknoglobals // -
	LogTicketCreate,
	LogTicketClaim,
	LogTicketUnclaim,
	LogTicketClose,
	LogTicketAutoClose,
	LogTicketRename,
	LogTicketDelete,
	LogTicketMemberAdd,
	LogTicketMemberRemove,
}

// IsValid reports whether the kind is one of LogKinds.
func (k LogKind) IsValid() bool {
	for _, kind := range LogKinds {
		if k == kind {
			return true
		}
	}

	return false
}

// LogTarget routes a log kind to a channel.
type LogTarget struct {
	Enabled   bool         `koanf:"enabled"`
	ChannelID snowflake.ID `koanf:"channel_id"`
}

// Logs maps log kinds to their target channel.
type Logs map[LogKind]LogTarget

// Channel returns the channel for the kind, or false if the kind is disabled.
func (l Logs) Channel(kind LogKind) (snowflake.ID, bool) {
	target, ok := l[kind]
	if !ok || !target.Enabled || target.ChannelID == 0 {
		return 0, false
	}

	return target.ChannelID, true
}

// Validate rejects unknown kinds and enabled kinds without a channel.
func (l Logs) Validate() error {
	for kind, target := range l {
		if !kind.IsValid() {
			return fmt.Errorf("%w: %s", ErrUnknownLogKind, kind)
		}

		if target.Enabled && target.ChannelID == 0 {
			return fmt.Errorf("%w: %s", ErrMissingLogChannel, kind)
		}
	}

	return nil
}

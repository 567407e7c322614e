// Package ticket implements the staff ticket system: an in-memory registry
// of open tickets backed by the database, an autoclose scheduler, and the
// controller that applies authorization and sequencing rules.
package ticket

import (
	"slices"

	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/database/types"
	"github.com/shadowdev/shadowbot/internal/setup/config"
)

// Ticket is the ticket record shared with the database layer.
type Ticket = types.Ticket

// Actor is the user performing an operation.
type Actor struct {
	ID             snowflake.ID
	Name           string
	RoleIDs        []snowflake.ID
	ManageChannels bool
	Administrator  bool
}

// Mention renders the actor as a user mention.
func (a Actor) Mention() string {
	return mention(a.ID)
}

// CanManage reports whether the actor may manage the ticket: holders of the
// manage channels permission, the ticket owner and the type's staff roles.
func CanManage(actor Actor, ticket *Ticket, ticketType config.TicketType) bool {
	if actor.ManageChannels {
		return true
	}

	if actor.ID == ticket.OwnerID {
		return true
	}

	return ticketType.IsStaff(actor.RoleIDs)
}

// clone returns a copy that does not share the member slice.
func clone(t *Ticket) *Ticket {
	if t == nil {
		return nil
	}

	c := *t
	c.Members = slices.Clone(t.Members)

	return &c
}

package types

import (
	"errors"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrTicketNotFound is returned when no ticket row exists for a channel.
var ErrTicketNotFound = errors.New("ticket not found")

// Ticket is the persisted row of a ticket. The channel the ticket lives in
// is its primary key; ID is a stable reference handed back on creation.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	ChannelID        snowflake.ID   `bun:",pk"`
	ID               uuid.UUID      `bun:"type:uuid,notnull,unique"`
	ServerID         snowflake.ID   `bun:",notnull"`
	OwnerID          snowflake.ID   `bun:",notnull"`
	TypeKey          string         `bun:",notnull"`
	CreatedAt        time.Time      `bun:",notnull"`
	ClaimedByID      snowflake.ID   `bun:",nullzero"`
	LastOwnerMessage time.Time      `bun:",nullzero"`
	LastStaffMessage time.Time      `bun:",nullzero"`
	Members          []snowflake.ID `bun:",type:jsonb,notnull"`
	IsClosed         bool           `bun:",notnull,default:false"`
	ClosedAt         time.Time      `bun:",nullzero"`
	ClosedByID       snowflake.ID   `bun:",nullzero"`
	CloseReason      string         `bun:",nullzero"`
}

// HasMember reports whether the user is in the member list.
func (t *Ticket) HasMember(userID snowflake.ID) bool {
	return slices.Contains(t.Members, userID)
}

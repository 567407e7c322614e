package ticket

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/shadowdev/shadowbot/internal/database/types"
)

// Store is the durable storage used by the registry.
// Missing rows are reported as types.ErrTicketNotFound and types.ErrConfigNotFound.
type Store interface {
	CreateTicket(ctx context.Context, ticket *types.Ticket) (uuid.UUID, error)
	GetTicketByChannel(ctx context.Context, channelID snowflake.ID) (*types.Ticket, error)
	GetAllTickets(ctx context.Context, serverID snowflake.ID, isClosed bool) ([]*types.Ticket, error)
	GetUserTickets(ctx context.Context, serverID, ownerID snowflake.ID, isClosed bool) ([]*types.Ticket, error)
	UpdateOwnerMessageTime(ctx context.Context, channelID snowflake.ID, at time.Time) error
	UpdateStaffMessageTime(ctx context.Context, channelID snowflake.ID, at time.Time) error
	ClaimTicket(ctx context.Context, channelID, staffID snowflake.ID) error
	UnclaimTicket(ctx context.Context, channelID snowflake.ID) error
	AddMember(ctx context.Context, channelID, memberID snowflake.ID) error
	RemoveMember(ctx context.Context, channelID, memberID snowflake.ID) error
	CloseTicket(ctx context.Context, channelID, closedByID snowflake.ID, reason string, at time.Time) error
	DeleteTicket(ctx context.Context, channelID snowflake.ID) error
	SetConfig(ctx context.Context, serverID snowflake.ID, key types.ConfigKey, value string) error
	GetConfig(ctx context.Context, serverID snowflake.ID, key types.ConfigKey) (string, error)
}

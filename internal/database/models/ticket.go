package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
	"github.com/shadowdev/shadowbot/internal/database/dbretry"
	"github.com/shadowdev/shadowbot/internal/database/types"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// TicketModel handles database operations for tickets.
type TicketModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewTicket creates a TicketModel with database access.
func NewTicket(db *bun.DB, logger *zap.Logger) *TicketModel {
	return &TicketModel{
		db:     db,
		logger: logger.Named("db_ticket"),
	}
}

// CreateTicket inserts a new ticket row and returns its reference ID.
// Inserting a second ticket for the same channel fails on the primary key.
func (m *TicketModel) CreateTicket(ctx context.Context, ticket *types.Ticket) (uuid.UUID, error) {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}

	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}

	if ticket.LastOwnerMessage.IsZero() {
		ticket.LastOwnerMessage = ticket.CreatedAt
	}

	if !ticket.HasMember(ticket.OwnerID) {
		ticket.Members = append([]snowflake.ID{ticket.OwnerID}, ticket.Members...)
	}

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := m.db.NewInsert().Model(ticket).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create ticket: %w (channelID=%d)", err, ticket.ChannelID)
		}

		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	m.logger.Debug("Created ticket",
		zap.Uint64("channelID", uint64(ticket.ChannelID)),
		zap.Uint64("ownerID", uint64(ticket.OwnerID)),
		zap.String("typeKey", ticket.TypeKey))

	return ticket.ID, nil
}

// GetTicketByChannel retrieves the ticket bound to a channel, open or closed.
func (m *TicketModel) GetTicketByChannel(ctx context.Context, channelID snowflake.ID) (*types.Ticket, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.Ticket, error) {
		var ticket types.Ticket

		err := m.db.NewSelect().Model(&ticket).
			Where("channel_id = ?", channelID).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrTicketNotFound
			}

			return nil, fmt.Errorf("failed to get ticket: %w (channelID=%d)", err, channelID)
		}

		return &ticket, nil
	})
}

// GetAllTickets retrieves every ticket of a server with the given closed state.
func (m *TicketModel) GetAllTickets(ctx context.Context, serverID snowflake.ID, isClosed bool) ([]*types.Ticket, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Ticket, error) {
		var tickets []*types.Ticket

		err := m.db.NewSelect().Model(&tickets).
			Where("server_id = ?", serverID).
			Where("is_closed = ?", isClosed).
			Order("created_at ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tickets: %w (serverID=%d)", err, serverID)
		}

		return tickets, nil
	})
}

// GetUserTickets retrieves the tickets a user opened in a server with the given closed state.
func (m *TicketModel) GetUserTickets(
	ctx context.Context, serverID, ownerID snowflake.ID, isClosed bool,
) ([]*types.Ticket, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) ([]*types.Ticket, error) {
		var tickets []*types.Ticket

		err := m.db.NewSelect().Model(&tickets).
			Where("server_id = ?", serverID).
			Where("owner_id = ?", ownerID).
			Where("is_closed = ?", isClosed).
			Order("created_at ASC").
			Scan(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get user tickets: %w (serverID=%d, ownerID=%d)", err, serverID, ownerID)
		}

		return tickets, nil
	})
}

// UpdateOwnerMessageTime records the time of the owner's latest message.
func (m *TicketModel) UpdateOwnerMessageTime(ctx context.Context, channelID snowflake.ID, at time.Time) error {
	return m.updateColumn(ctx, channelID, "last_owner_message", at)
}

// UpdateStaffMessageTime records the time of the latest staff message.
func (m *TicketModel) UpdateStaffMessageTime(ctx context.Context, channelID snowflake.ID, at time.Time) error {
	return m.updateColumn(ctx, channelID, "last_staff_message", at)
}

// ClaimTicket marks a staff member as the ticket's responder.
func (m *TicketModel) ClaimTicket(ctx context.Context, channelID, staffID snowflake.ID) error {
	return m.updateColumn(ctx, channelID, "claimed_by_id", staffID)
}

// UnclaimTicket clears the ticket's responder.
func (m *TicketModel) UnclaimTicket(ctx context.Context, channelID snowflake.ID) error {
	return m.updateColumn(ctx, channelID, "claimed_by_id", nil)
}

// AddMember adds a user to the ticket's member list. Adding an existing member is a no-op.
func (m *TicketModel) AddMember(ctx context.Context, channelID, memberID snowflake.ID) error {
	return m.updateMembers(ctx, channelID, func(members []snowflake.ID) []snowflake.ID {
		if slices.Contains(members, memberID) {
			return members
		}

		return append(members, memberID)
	})
}

// RemoveMember removes a user from the ticket's member list. Removing an absent member is a no-op.
func (m *TicketModel) RemoveMember(ctx context.Context, channelID, memberID snowflake.ID) error {
	return m.updateMembers(ctx, channelID, func(members []snowflake.ID) []snowflake.ID {
		return slices.DeleteFunc(members, func(id snowflake.ID) bool {
			return id == memberID
		})
	})
}

// CloseTicket marks a ticket as closed with the closer and reason.
func (m *TicketModel) CloseTicket(
	ctx context.Context, channelID, closedByID snowflake.ID, reason string, at time.Time,
) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		result, err := m.db.NewUpdate().Model((*types.Ticket)(nil)).
			Set("is_closed = ?", true).
			Set("closed_at = ?", at).
			Set("closed_by_id = ?", closedByID).
			Set("close_reason = ?", reason).
			Where("channel_id = ?", channelID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to close ticket: %w (channelID=%d)", err, channelID)
		}

		return requireAffected(result, channelID)
	})
}

// DeleteTicket removes a ticket row.
func (m *TicketModel) DeleteTicket(ctx context.Context, channelID snowflake.ID) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		result, err := m.db.NewDelete().Model((*types.Ticket)(nil)).
			Where("channel_id = ?", channelID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete ticket: %w (channelID=%d)", err, channelID)
		}

		return requireAffected(result, channelID)
	})
}

// PurgeClosedTickets removes the closed tickets of a server that were closed before the cutoff.
func (m *TicketModel) PurgeClosedTickets(ctx context.Context, serverID snowflake.ID, before time.Time) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		result, err := m.db.NewDelete().Model((*types.Ticket)(nil)).
			Where("server_id = ?", serverID).
			Where("is_closed = ?", true).
			Where("closed_at < ?", before).
			Exec(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to purge closed tickets: %w (serverID=%d)", err, serverID)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read affected rows: %w (serverID=%d)", err, serverID)
		}

		if affected > 0 {
			m.logger.Info("Purged closed tickets",
				zap.Uint64("serverID", uint64(serverID)),
				zap.Int64("count", affected),
				zap.Time("before", before))
		}

		return affected, nil
	})
}

// updateColumn sets a single column on a ticket row.
func (m *TicketModel) updateColumn(ctx context.Context, channelID snowflake.ID, column string, value any) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		result, err := m.db.NewUpdate().Model((*types.Ticket)(nil)).
			Set("? = ?", bun.Ident(column), value).
			Where("channel_id = ?", channelID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update %s: %w (channelID=%d)", column, err, channelID)
		}

		return requireAffected(result, channelID)
	})
}

// updateMembers rewrites the member list inside a transaction holding a row lock.
func (m *TicketModel) updateMembers(
	ctx context.Context, channelID snowflake.ID, mutate func([]snowflake.ID) []snowflake.ID,
) error {
	return dbretry.Transaction(ctx, m.db, func(ctx context.Context, tx bun.Tx) error {
		var ticket types.Ticket

		err := tx.NewSelect().Model(&ticket).
			Column("channel_id", "members").
			Where("channel_id = ?", channelID).
			For("UPDATE").
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return types.ErrTicketNotFound
			}

			return fmt.Errorf("failed to lock ticket members: %w (channelID=%d)", err, channelID)
		}

		members := mutate(ticket.Members)

		_, err = tx.NewUpdate().Model((*types.Ticket)(nil)).
			Set("members = ?", members).
			Where("channel_id = ?", channelID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update ticket members: %w (channelID=%d)", err, channelID)
		}

		return nil
	})
}

// requireAffected turns an update that matched no row into ErrTicketNotFound.
func requireAffected(result sql.Result, channelID snowflake.ID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w (channelID=%d)", err, channelID)
	}

	if affected == 0 {
		return types.ErrTicketNotFound
	}

	return nil
}

package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/bot/constants"
	"github.com/shadowdev/shadowbot/internal/bot/utils"
	"github.com/shadowdev/shadowbot/internal/setup/config"
	"github.com/shadowdev/shadowbot/internal/ticket"
	"go.uber.org/zap"
)

const (
	// Access of a ticket participant.
	participantAllow = discord.PermissionViewChannel |
		discord.PermissionSendMessages |
		discord.PermissionReadMessageHistory |
		discord.PermissionAttachFiles |
		discord.PermissionEmbedLinks

	readOnlyAllow = discord.PermissionViewChannel | discord.PermissionReadMessageHistory
)

var _ ticket.Gateway = (*Gateway)(nil)

// Gateway implements ticket.Gateway over the Discord REST API.
type Gateway struct {
	client bot.Client
	config *config.BotConfig
	logger *zap.Logger
}

// NewGateway creates a Gateway for the client.
func NewGateway(client bot.Client, cfg *config.BotConfig, logger *zap.Logger) *Gateway {
	return &Gateway{
		client: client,
		config: cfg,
		logger: logger.Named("discord_gateway"),
	}
}

// SelfID returns the bot's user ID.
func (g *Gateway) SelfID() snowflake.ID {
	return g.client.ID()
}

// Channel describes a channel.
func (g *Gateway) Channel(ctx context.Context, channelID snowflake.ID) (*ticket.ChannelInfo, error) {
	ch, err := g.client.Rest().GetChannel(channelID, rest.WithCtx(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	info := &ticket.ChannelInfo{
		ID:       ch.ID(),
		Name:     ch.Name(),
		Category: ch.Type() == discord.ChannelTypeGuildCategory,
	}

	if gc, ok := ch.(discord.GuildChannel); ok {
		info.ServerID = gc.GuildID()
		if parentID := gc.ParentID(); parentID != nil {
			info.ParentID = *parentID
		}
	}

	return info, nil
}

// CreateChannel creates a private text channel visible only to the grants.
func (g *Gateway) CreateChannel(ctx context.Context, spec ticket.ChannelSpec) (*ticket.ChannelInfo, error) {
	overwrites := []discord.PermissionOverwrite{
		// @everyone shares the server's ID
		discord.RolePermissionOverwrite{RoleID: spec.ServerID, Deny: discord.PermissionViewChannel},
	}

	for _, grant := range spec.Grants {
		allow, deny := grantPermissions(grant)
		if grant.Role {
			overwrites = append(overwrites, discord.RolePermissionOverwrite{RoleID: grant.TargetID, Allow: allow, Deny: deny})
		} else {
			overwrites = append(overwrites, discord.MemberPermissionOverwrite{UserID: grant.TargetID, Allow: allow, Deny: deny})
		}
	}

	ch, err := g.client.Rest().CreateGuildChannel(spec.ServerID, discord.GuildTextChannelCreate{
		Name:                 spec.Name,
		ParentID:             spec.CategoryID,
		PermissionOverwrites: overwrites,
	}, rest.WithCtx(ctx))
	if err != nil {
		return nil, mapError(err)
	}

	g.logger.Debug("Created ticket channel",
		zap.Uint64("channelID", uint64(ch.ID())),
		zap.String("name", ch.Name()))

	return &ticket.ChannelInfo{
		ID:       ch.ID(),
		ServerID: spec.ServerID,
		ParentID: spec.CategoryID,
		Name:     ch.Name(),
	}, nil
}

// RenameChannel changes a channel's name.
func (g *Gateway) RenameChannel(ctx context.Context, channelID snowflake.ID, name string) error {
	_, err := g.client.Rest().UpdateChannel(channelID, discord.GuildTextChannelUpdate{Name: &name}, rest.WithCtx(ctx))
	return mapError(err)
}

// DeleteChannel deletes a channel.
func (g *Gateway) DeleteChannel(ctx context.Context, channelID snowflake.ID) error {
	return mapError(g.client.Rest().DeleteChannel(channelID, rest.WithCtx(ctx)))
}

// SetAccess creates or replaces the permission overwrite of a grant.
func (g *Gateway) SetAccess(ctx context.Context, channelID snowflake.ID, grant ticket.Grant) error {
	allow, deny := grantPermissions(grant)

	var update discord.PermissionOverwriteUpdate = discord.MemberPermissionOverwriteUpdate{Allow: &allow, Deny: &deny}
	if grant.Role {
		update = discord.RolePermissionOverwriteUpdate{Allow: &allow, Deny: &deny}
	}

	return mapError(g.client.Rest().UpdatePermissionOverwrite(channelID, grant.TargetID, update, rest.WithCtx(ctx)))
}

// RemoveAccess deletes a permission overwrite.
func (g *Gateway) RemoveAccess(ctx context.Context, channelID, targetID snowflake.ID) error {
	return mapError(g.client.Rest().DeletePermissionOverwrite(channelID, targetID, rest.WithCtx(ctx)))
}

// RevokeSend denies sending messages to every overwrite of the channel except
// the bot's own and @everyone.
func (g *Gateway) RevokeSend(ctx context.Context, channelID snowflake.ID) error {
	ch, err := g.client.Rest().GetChannel(channelID, rest.WithCtx(ctx))
	if err != nil {
		return mapError(err)
	}

	gc, ok := ch.(discord.GuildChannel)
	if !ok {
		return fmt.Errorf("%w: channel %d is not a server channel", ticket.ErrUnknownTarget, channelID)
	}

	selfID := g.SelfID()

	var errs []error
	for _, overwrite := range gc.PermissionOverwrites() {
		var (
			targetID    snowflake.ID
			allow, deny discord.Permissions
			role        bool
		)

		switch o := overwrite.(type) {
		case discord.RolePermissionOverwrite:
			targetID, allow, deny, role = o.RoleID, o.Allow, o.Deny, true
		case discord.MemberPermissionOverwrite:
			targetID, allow, deny = o.UserID, o.Allow, o.Deny
		default:
			continue
		}

		if targetID == gc.GuildID() || targetID == selfID {
			continue
		}

		allow = allow.Remove(discord.PermissionSendMessages)
		deny = deny.Add(discord.PermissionSendMessages)

		var update discord.PermissionOverwriteUpdate = discord.MemberPermissionOverwriteUpdate{Allow: &allow, Deny: &deny}
		if role {
			update = discord.RolePermissionOverwriteUpdate{Allow: &allow, Deny: &deny}
		}

		if err := g.client.Rest().UpdatePermissionOverwrite(channelID, targetID, update, rest.WithCtx(ctx)); err != nil {
			errs = append(errs, mapError(err))
		}
	}

	return errors.Join(errs...)
}

// SendMessage posts a message and returns its ID.
func (g *Gateway) SendMessage(ctx context.Context, channelID snowflake.ID, msg ticket.Message) (snowflake.ID, error) {
	message, err := g.client.Rest().CreateMessage(channelID, g.buildMessage(msg), rest.WithCtx(ctx))
	if err != nil {
		return 0, mapError(err)
	}

	return message.ID, nil
}

// EditSurface replaces the interactive components of a message.
func (g *Gateway) EditSurface(ctx context.Context, channelID, messageID snowflake.ID, surface ticket.Surface) error {
	update := discord.NewMessageUpdateBuilder().
		SetContainerComponents(g.surfaceRows(surface)...).
		Build()

	_, err := g.client.Rest().UpdateMessage(channelID, messageID, update, rest.WithCtx(ctx))

	return mapError(err)
}

// SendDirect sends a private message to a user.
func (g *Gateway) SendDirect(ctx context.Context, userID snowflake.ID, msg ticket.Message) error {
	dm, err := g.client.Rest().CreateDMChannel(userID, rest.WithCtx(ctx))
	if err != nil {
		return mapError(err)
	}

	_, err = g.client.Rest().CreateMessage(dm.ID(), g.buildMessage(msg), rest.WithCtx(ctx))

	return mapError(err)
}

// History returns up to limit messages of a channel, newest first.
func (g *Gateway) History(ctx context.Context, channelID snowflake.ID, limit int) ([]ticket.HistoryMessage, error) {
	history := make([]ticket.HistoryMessage, 0, min(limit, constants.HistoryPageSize))

	var before snowflake.ID
	for len(history) < limit {
		pageSize := min(limit-len(history), constants.HistoryPageSize)

		messages, err := g.client.Rest().GetMessages(channelID, 0, before, 0, pageSize, rest.WithCtx(ctx))
		if err != nil {
			return nil, mapError(err)
		}

		for _, m := range messages {
			history = append(history, toHistoryMessage(m))
		}

		if len(messages) < pageSize {
			break
		}

		before = messages[len(messages)-1].ID
	}

	return history, nil
}

// buildMessage converts a ticket message. Only the listed users and roles are pinged.
func (g *Gateway) buildMessage(msg ticket.Message) discord.MessageCreate {
	builder := discord.NewMessageCreateBuilder().
		SetContent(msg.Content).
		SetAllowedMentions(&discord.AllowedMentions{
			Users: msg.MentionUsers,
			Roles: msg.MentionRoles,
		})

	for _, e := range msg.Embeds {
		builder.AddEmbeds(utils.ConvertEmbed(e))
	}

	for _, row := range g.surfaceRows(msg.Surface) {
		builder.AddContainerComponents(row)
	}

	if msg.ReplyTo != 0 {
		builder.SetMessageReferenceByID(msg.ReplyTo)
	}

	for _, f := range msg.Files {
		builder.AddFiles(discord.NewFile(f.Name, "", bytes.NewReader(f.Data)))
	}

	return builder.Build()
}

// grantPermissions returns the allow and deny bits of a grant.
func grantPermissions(grant ticket.Grant) (discord.Permissions, discord.Permissions) {
	if grant.Send {
		return participantAllow, discord.PermissionsNone
	}

	return readOnlyAllow, discord.PermissionSendMessages
}

func toHistoryMessage(m discord.Message) ticket.HistoryMessage {
	titles := make([]string, 0, len(m.Embeds))
	for _, e := range m.Embeds {
		titles = append(titles, e.Title)
	}

	return ticket.HistoryMessage{
		ID:          m.ID,
		AuthorID:    m.Author.ID,
		AuthorName:  m.Author.EffectiveName(),
		Content:     m.Content,
		CreatedAt:   m.CreatedAt,
		EmbedTitles: titles,
	}
}

// mapError marks Discord 404 responses as ticket.ErrUnknownTarget.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var restErr *rest.Error
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ticket.ErrUnknownTarget, err)
	}

	return err
}

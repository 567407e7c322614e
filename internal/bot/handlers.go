package bot

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/bot/constants"
	"github.com/shadowdev/shadowbot/internal/bot/utils"
	"github.com/shadowdev/shadowbot/internal/ticket"
	"go.uber.org/zap"
)

// interaction is the part of an interaction event needed to answer it.
type interaction interface {
	Client() bot.Client
	ApplicationID() snowflake.ID
	Token() string
}

// reply is the outcome of a ticket action shown to the acting user.
type reply struct {
	content string
	file    *ticket.File
}

func replyText(content string) reply {
	return reply{content: content}
}

func replyError(err error) reply {
	return reply{content: ticket.UserMessage(err)}
}

// handleApplicationCommandInteraction runs a ticket slash command.
func (b *Bot) handleApplicationCommandInteraction(event *events.ApplicationCommandInteractionCreate) {
	go func() {
		data := event.SlashCommandInteractionData()

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in application command interaction handler", zap.Any("panic", r))
				b.respond(event, replyText("❌ Internal error. Please report this to an administrator."))
			}

			b.logger.Debug("Application command interaction handled",
				zap.String("command", data.CommandName()),
				zap.Duration("duration", time.Since(start)))
		}()

		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		guildID := event.GuildID()
		if guildID == nil {
			b.respond(event, replyText("❌ This command can only be used in a server"))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), constants.InteractionTimeout)
		defer cancel()

		actor := utils.ActorFromMember(event.User(), event.Member())
		channelID := event.Channel().ID()

		b.respond(event, b.runCommand(ctx, *guildID, channelID, actor, data))
	}()
}

func (b *Bot) runCommand(
	ctx context.Context, guildID, channelID snowflake.ID, actor ticket.Actor, data discord.SlashCommandInteractionData,
) reply {
	switch data.CommandName() {
	case constants.TicketPanelCommandName:
		if _, err := b.controller.PostPanel(ctx, guildID, actor); err != nil {
			return replyError(err)
		}

		return replyText("✅ Ticket panel posted")

	case constants.TicketCloseCommandName:
		return b.closeTicket(ctx, channelID, actor, data.String(constants.ReasonOptionName))

	case constants.TicketAddCommandName:
		return b.addMember(ctx, channelID, actor, data.Snowflake(constants.MemberOptionName))

	case constants.TicketRemoveCommandName:
		return b.removeMember(ctx, channelID, actor, data.Snowflake(constants.MemberOptionName))

	case constants.TicketRenameCommandName:
		return b.renameTicket(ctx, channelID, actor, data.String(constants.NameOptionName))

	case constants.TicketClaimCommandName:
		return b.claimTicket(ctx, channelID, actor)

	case constants.TicketUnclaimCommandName:
		if _, err := b.controller.Unclaim(ctx, channelID, actor); err != nil {
			return replyError(err)
		}

		return replyText("✅ Ticket released")

	default:
		return replyText("❌ This command is not available")
	}
}

// handleComponentInteraction handles the intake panel and ticket buttons.
// Buttons that need input answer with a modal instead of deferring.
func (b *Bot) handleComponentInteraction(event *events.ComponentInteractionCreate) {
	go func() {
		customID := event.Data.CustomID()

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in component interaction handler", zap.Any("panic", r))
				b.respond(event, replyText("❌ Internal error. Please report this to an administrator."))
			}

			b.logger.Debug("Component interaction handled",
				zap.String("customID", customID),
				zap.Duration("duration", time.Since(start)))
		}()

		if modal, ok := componentModal(customID); ok {
			if err := event.Modal(modal); err != nil {
				b.logger.Error("Failed to open modal", zap.String("customID", customID), zap.Error(err))
			}

			return
		}

		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		guildID := event.GuildID()
		if guildID == nil {
			b.respond(event, replyText("❌ Tickets only work in a server"))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), constants.InteractionTimeout)
		defer cancel()

		actor := utils.ActorFromMember(event.User(), event.Member())
		channelID := event.Channel().ID()

		var result reply

		switch customID {
		case constants.OpenTicketSelectCustomID:
			data, ok := event.Data.(discord.StringSelectMenuInteractionData)
			if !ok || len(data.Values) == 0 {
				result = replyText("❌ Please select a ticket type")
				break
			}

			result = b.openTicket(ctx, *guildID, actor, data.Values[0])

		case constants.ClaimButtonCustomID:
			result = b.claimTicket(ctx, channelID, actor)

		case constants.TranscriptButtonCustomID:
			file, err := b.controller.Transcript(ctx, channelID, actor)
			if err != nil {
				result = replyError(err)
				break
			}

			result = reply{content: "📄 Transcript of this ticket", file: file}

		case constants.DeleteButtonCustomID:
			if err := b.controller.Delete(ctx, channelID, actor); err != nil {
				result = replyError(err)
				break
			}

			// The channel is gone along with the deferred response
			return

		default:
			result = replyText("❌ This action is not available")
		}

		b.respond(event, result)
	}()
}

// handleModalSubmit handles the close, rename and member modals.
func (b *Bot) handleModalSubmit(event *events.ModalSubmitInteractionCreate) {
	go func() {
		customID := event.Data.CustomID

		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in modal submit handler", zap.Any("panic", r))
				b.respond(event, replyText("❌ Internal error. Please report this to an administrator."))
			}

			b.logger.Debug("Modal submit handled",
				zap.String("customID", customID),
				zap.Duration("duration", time.Since(start)))
		}()

		if err := event.DeferCreateMessage(true); err != nil {
			b.logger.Error("Failed to defer create message", zap.Error(err))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), constants.InteractionTimeout)
		defer cancel()

		actor := utils.ActorFromMember(event.User(), event.Member())
		channelID := event.Channel().ID()

		var result reply

		switch customID {
		case constants.CloseModalCustomID:
			result = b.closeTicket(ctx, channelID, actor, event.Data.Text(constants.ReasonInputCustomID))

		case constants.RenameModalCustomID:
			result = b.renameTicket(ctx, channelID, actor, event.Data.Text(constants.NameInputCustomID))

		case constants.AddMemberModalCustomID, constants.RemoveMemberModalCustomID:
			memberID, err := utils.ParseUserID(event.Data.Text(constants.MemberInputCustomID))
			if err != nil {
				result = replyText("❌ Invalid member: use a mention or a user ID")
				break
			}

			if customID == constants.AddMemberModalCustomID {
				result = b.addMember(ctx, channelID, actor, memberID)
			} else {
				result = b.removeMember(ctx, channelID, actor, memberID)
			}

		default:
			result = replyText("❌ This form is not available")
		}

		b.respond(event, result)
	}()
}

func componentModal(customID string) (discord.ModalCreate, bool) {
	switch customID {
	case constants.CloseButtonCustomID:
		return closeModal(), true
	case constants.RenameButtonCustomID:
		return renameModal(), true
	case constants.AddMemberButtonCustomID:
		return memberModal(constants.AddMemberModalCustomID, "Add member"), true
	case constants.RemoveMemberButtonID:
		return memberModal(constants.RemoveMemberModalCustomID, "Remove member"), true
	default:
		return discord.ModalCreate{}, false
	}
}

func (b *Bot) openTicket(ctx context.Context, guildID snowflake.ID, actor ticket.Actor, typeKey string) reply {
	opened, err := b.controller.Open(ctx, guildID, actor, typeKey)
	if err != nil {
		return replyError(err)
	}

	return replyText(fmt.Sprintf("✅ Your ticket has been created: <#%d>", opened.Ticket.ChannelID))
}

func (b *Bot) claimTicket(ctx context.Context, channelID snowflake.ID, actor ticket.Actor) reply {
	if _, err := b.controller.Claim(ctx, channelID, actor); err != nil {
		return replyError(err)
	}

	return replyText("✅ You claimed this ticket")
}

func (b *Bot) closeTicket(ctx context.Context, channelID snowflake.ID, actor ticket.Actor, reason string) reply {
	if err := b.controller.Close(ctx, channelID, actor, reason); err != nil {
		return replyError(err)
	}

	return replyText("✅ Ticket closed")
}

func (b *Bot) renameTicket(ctx context.Context, channelID snowflake.ID, actor ticket.Actor, name string) reply {
	if err := b.controller.Rename(ctx, channelID, actor, name); err != nil {
		return replyError(err)
	}

	return replyText("✅ Ticket renamed to `" + name + "`")
}

func (b *Bot) addMember(ctx context.Context, channelID snowflake.ID, actor ticket.Actor, memberID snowflake.ID) reply {
	if err := b.controller.AddMember(ctx, channelID, actor, memberID); err != nil {
		return replyError(err)
	}

	return replyText(fmt.Sprintf("✅ Added <@%d> to this ticket", memberID))
}

func (b *Bot) removeMember(ctx context.Context, channelID snowflake.ID, actor ticket.Actor, memberID snowflake.ID) reply {
	if err := b.controller.RemoveMember(ctx, channelID, actor, memberID); err != nil {
		return replyError(err)
	}

	return replyText(fmt.Sprintf("✅ Removed <@%d> from this ticket", memberID))
}

// respond replaces the deferred response of an interaction.
func (b *Bot) respond(event interaction, r reply) {
	builder := discord.NewMessageUpdateBuilder().
		SetContent(r.content).
		SetAllowedMentions(&discord.AllowedMentions{})

	if r.file != nil {
		builder.AddFiles(discord.NewFile(r.file.Name, "", bytes.NewReader(r.file.Data)))
	}

	_, err := event.Client().Rest().UpdateInteractionResponse(event.ApplicationID(), event.Token(), builder.Build())
	if err != nil {
		b.logger.Error("Failed to update interaction response", zap.Error(err))
	}
}

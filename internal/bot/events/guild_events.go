package events

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

// recoverTimeout bounds the ticket recovery done when a server becomes ready.
const recoverTimeout = 2 * time.Minute

// RecoverFunc restores the ticket state of a server.
type RecoverFunc func(ctx context.Context, guildID snowflake.ID) error

// GuildEventHandler manages guild-related events for the bot.
type GuildEventHandler struct {
	guildID   snowflake.ID
	commands  []discord.ApplicationCommandCreate
	recoverFn RecoverFunc
	logger    *zap.Logger
}

// NewGuildEventHandler creates a new instance of the guild event handler.
// A zero guildID serves every server the bot is in.
func NewGuildEventHandler(
	guildID snowflake.ID, commands []discord.ApplicationCommandCreate, recoverFn RecoverFunc, logger *zap.Logger,
) *GuildEventHandler {
	return &GuildEventHandler{
		guildID:   guildID,
		commands:  commands,
		recoverFn: recoverFn,
		logger:    logger.Named("guild_events"),
	}
}

// OnGuildReady registers commands and recovers tickets for a server
// available at startup.
func (h *GuildEventHandler) OnGuildReady(event *events.GuildReady) {
	h.setupGuild(event.Client(), event.Guild.ID, event.Guild.Name)
}

// OnGuildJoin handles the event when the bot joins a new guild.
func (h *GuildEventHandler) OnGuildJoin(event *events.GuildJoin) {
	h.logger.Info("Bot joined a new guild",
		zap.String("guildID", event.Guild.ID.String()),
		zap.String("guild_name", event.Guild.Name))

	h.setupGuild(event.Client(), event.Guild.ID, event.Guild.Name)
}

func (h *GuildEventHandler) setupGuild(client bot.Client, guildID snowflake.ID, name string) {
	if h.guildID != 0 && guildID != h.guildID {
		h.logger.Debug("Ignoring unconfigured guild", zap.String("guildID", guildID.String()))
		return
	}

	if err := h.registerGuildCommands(client, guildID); err != nil {
		h.logger.Error("Failed to register guild commands",
			zap.String("guildID", guildID.String()),
			zap.Error(err))
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recoverTimeout)
		defer cancel()

		if err := h.recoverFn(ctx, guildID); err != nil {
			h.logger.Error("Failed to recover tickets",
				zap.String("guildID", guildID.String()),
				zap.String("guild_name", name),
				zap.Error(err))
		}
	}()
}

// registerGuildCommands registers the bot's commands for a specific guild.
func (h *GuildEventHandler) registerGuildCommands(client bot.Client, guildID snowflake.ID) error {
	_, err := client.Rest().SetGuildCommands(client.ApplicationID(), guildID, h.commands)
	if err != nil {
		return fmt.Errorf("failed to register guild commands: %w", err)
	}

	h.logger.Debug("Successfully registered guild commands",
		zap.String("guildID", guildID.String()),
		zap.Int("count", len(h.commands)))

	return nil
}

package bot

import (
	"context"
	"fmt"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/snowflake/v2"
	botEvents "github.com/shadowdev/shadowbot/internal/bot/events"
	"github.com/shadowdev/shadowbot/internal/bot/utils"
	"github.com/shadowdev/shadowbot/internal/database"
	"github.com/shadowdev/shadowbot/internal/setup/config"
	"github.com/shadowdev/shadowbot/internal/ticket"
	"go.uber.org/zap"
)

var _ ticket.Store = (*database.TicketStore)(nil)

// Bot connects the ticket controller to Discord.
type Bot struct {
	client     bot.Client
	controller *ticket.Controller
	messages   *utils.ChannelQueue
	config     *config.BotConfig
	logger     *zap.Logger
}

// New creates the Discord client and the ticket controller that drives it.
// The gateway is not opened until Start.
func New(cfg *config.BotConfig, store ticket.Store, cooldown ticket.Cooldown, logger *zap.Logger) (*Bot, error) {
	b := &Bot{
		messages: utils.NewChannelQueue(),
		config:   cfg,
		logger:   logger.Named("bot"),
	}

	guildEvents := botEvents.NewGuildEventHandler(
		snowflake.ID(cfg.Discord.GuildID), commands(), b.recoverGuild, logger,
	)

	client, err := disgo.New(cfg.Discord.Token,
		bot.WithGatewayConfigOpts(
			gateway.WithIntents(
				gateway.IntentGuilds,
				gateway.IntentGuildMembers,
				gateway.IntentGuildMessages,
				gateway.IntentMessageContent,
			),
		),
		bot.WithEventListeners(&events.ListenerAdapter{
			OnGuildReady:                    guildEvents.OnGuildReady,
			OnGuildJoin:                     guildEvents.OnGuildJoin,
			OnGuildMessageCreate:            b.handleGuildMessage,
			OnApplicationCommandInteraction: b.handleApplicationCommandInteraction,
			OnComponentInteraction:          b.handleComponentInteraction,
			OnModalSubmit:                   b.handleModalSubmit,
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord client: %w", err)
	}

	b.client = client
	b.controller = ticket.NewController(
		store, NewGateway(client, cfg, logger), cooldown, cfg, ticket.SystemClock{}, logger,
	)

	return b, nil
}

// Controller returns the ticket controller.
func (b *Bot) Controller() *ticket.Controller {
	return b.controller
}

// Start opens the gateway connection. Commands are registered and tickets
// recovered once the configured server becomes ready.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("Starting bot")
	return b.client.OpenGateway(ctx)
}

// Close disconnects from Discord, lets queued messages finish, then stops pending autocloses.
func (b *Bot) Close(ctx context.Context) {
	b.logger.Info("Closing bot")

	b.client.Close(ctx)
	b.messages.Wait()

	if b.controller != nil {
		b.controller.Shutdown()
	}
}

// recoverGuild restores ticket state for a server that became ready.
func (b *Bot) recoverGuild(ctx context.Context, guildID snowflake.ID) error {
	return b.controller.Recover(ctx, guildID)
}

// handleGuildMessage feeds channel activity to the autoclose and auto-ping rules.
func (b *Bot) handleGuildMessage(event *events.GuildMessageCreate) {
	if b.config.Discord.GuildID != 0 && uint64(event.GuildID) != b.config.Discord.GuildID {
		return
	}

	message := event.Message

	var roleIDs []snowflake.ID
	if message.Member != nil {
		roleIDs = message.Member.RoleIDs
	}

	// Messages of one channel are handled in arrival order
	b.messages.Enqueue(event.ChannelID, func() {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("Panic in guild message handler", zap.Any("panic", r))
			}
		}()

		b.controller.OnMessage(context.Background(), ticket.MessageEvent{
			ChannelID: event.ChannelID,
			MessageID: event.MessageID,
			AuthorID:  message.Author.ID,
			RoleIDs:   roleIDs,
			Bot:       message.Author.Bot,
			CreatedAt: message.CreatedAt,
		})
	})
}

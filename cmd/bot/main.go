package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shadowdev/shadowbot/internal/bot"
	"github.com/shadowdev/shadowbot/internal/redis"
	"github.com/shadowdev/shadowbot/internal/setup"
	"github.com/shadowdev/shadowbot/internal/ticket"
	"go.uber.org/zap"
)

const (
	// BotLogDir specifies where bot log files are stored.
	BotLogDir = "logs/bot_logs"
	// cooldownKeyPrefix namespaces the ticket cooldown keys in Redis.
	cooldownKeyPrefix = "shadowbot:cooldown:"
	// shutdownTimeout bounds the graceful shutdown.
	shutdownTimeout = 30 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	app, err := setup.InitializeApp(ctx, BotLogDir)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Cleanup()

	cooldownClient, err := app.RedisManager.GetClient(redis.CooldownDBIndex)
	if err != nil {
		app.Logger.Error("Failed to get cooldown client", zap.Error(err))
		return
	}

	discordBot, err := bot.New(
		&app.Config.Bot,
		app.DB.Model().TicketStore(),
		ticket.NewRedisCooldown(cooldownClient, cooldownKeyPrefix),
		app.Logger,
	)
	if err != nil {
		app.Logger.Error("Failed to create bot", zap.Error(err))
		return
	}

	if err := discordBot.Start(ctx); err != nil {
		app.Logger.Error("Failed to start bot", zap.Error(err))
		return
	}

	app.Logger.Info("Bot has been started. Waiting for interrupt signal to gracefully shutdown...")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	discordBot.Close(shutdownCtx)
}

package ticket

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/database/types"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

const recoverWorkers = 4

// PostPanel posts the intake panel in the configured channel and stores its message ID.
func (c *Controller) PostPanel(ctx context.Context, serverID snowflake.ID, actor Actor) (snowflake.ID, error) {
	if !actor.Administrator {
		return 0, ErrUnauthorized
	}

	channelID := c.config.Tickets.PanelChannelID

	messageID, err := c.gateway.SendMessage(ctx, channelID, Message{
		Embeds:  []Embed{panelEmbed()},
		Surface: SurfaceIntake,
	})
	if err != nil {
		return 0, c.gatewayError("post panel in", channelID, err)
	}

	if err := c.store.SetConfig(ctx, serverID, types.ConfigKeyTicketPanelMessage, messageID.String()); err != nil {
		c.logger.Error("Failed to save panel message",
			zap.Uint64("serverID", uint64(serverID)),
			zap.Uint64("messageID", uint64(messageID)),
			zap.Error(err))

		return messageID, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	c.logger.Info("Ticket panel posted",
		zap.Uint64("channelID", uint64(channelID)),
		zap.Uint64("messageID", uint64(messageID)))

	return messageID, nil
}

// Recover loads a server's open tickets and re-attaches the interactive
// controls of every ticket channel and of the intake panel. A failure on
// one channel does not stop the others.
func (c *Controller) Recover(ctx context.Context, serverID snowflake.ID) error {
	if _, err := c.registry.Load(ctx, serverID); err != nil {
		return err
	}

	closed, err := c.store.GetAllTickets(ctx, serverID, true)
	if err != nil {
		c.logger.Warn("Failed to list closed tickets", zap.Error(err))
	}

	p := pool.New().WithContext(ctx).WithMaxGoroutines(recoverWorkers)

	for _, t := range c.registry.All() {
		if t.ServerID != serverID {
			continue
		}

		p.Go(func(ctx context.Context) error {
			return c.restoreSurface(ctx, t.ChannelID, SurfaceActions, TicketTitleMarker)
		})
	}

	for _, t := range closed {
		p.Go(func(ctx context.Context) error {
			return c.restoreSurface(ctx, t.ChannelID, SurfaceClosed, ClosedTitleMarker)
		})
	}

	p.Go(func(ctx context.Context) error {
		return c.restorePanel(ctx, serverID)
	})

	if err := p.Wait(); err != nil {
		c.logger.Warn("Some ticket controls could not be restored",
			zap.Uint64("serverID", uint64(serverID)),
			zap.Error(err))
	}

	c.logger.Info("Ticket system recovered", zap.Uint64("serverID", uint64(serverID)))

	return nil
}

// restoreSurface attaches the surface to the newest bot message whose embed title carries the marker.
func (c *Controller) restoreSurface(ctx context.Context, channelID snowflake.ID, surface Surface, marker string) error {
	history, err := c.gateway.History(ctx, channelID, historyScanLimit)
	if err != nil {
		if errors.Is(err, ErrUnknownTarget) {
			return nil
		}

		return fmt.Errorf("failed to read history of %d: %w", channelID, err)
	}

	selfID := c.gateway.SelfID()
	for _, msg := range history {
		if msg.AuthorID != selfID || !hasMarkedTitle(msg.EmbedTitles, marker) {
			continue
		}

		if err := c.gateway.EditSurface(ctx, channelID, msg.ID, surface); err != nil {
			if errors.Is(err, ErrUnknownTarget) {
				return nil
			}

			return fmt.Errorf("failed to restore controls in %d: %w", channelID, err)
		}

		c.logger.Debug("Restored ticket controls",
			zap.Uint64("channelID", uint64(channelID)),
			zap.Uint64("messageID", uint64(msg.ID)))

		return nil
	}

	return nil
}

// restorePanel re-attaches the intake controls to the stored panel message.
// A panel message that no longer exists has its stored ID cleared.
func (c *Controller) restorePanel(ctx context.Context, serverID snowflake.ID) error {
	value, err := c.store.GetConfig(ctx, serverID, types.ConfigKeyTicketPanelMessage)
	if err != nil {
		if errors.Is(err, types.ErrConfigNotFound) {
			return nil
		}

		return fmt.Errorf("failed to read panel message: %w", err)
	}

	if value == "" {
		return nil
	}

	messageID, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return c.clearPanel(ctx, serverID)
	}

	err = c.gateway.EditSurface(ctx, c.config.Tickets.PanelChannelID, snowflake.ID(messageID), SurfaceIntake)
	if err != nil {
		if errors.Is(err, ErrUnknownTarget) {
			return c.clearPanel(ctx, serverID)
		}

		return fmt.Errorf("failed to restore panel: %w", err)
	}

	c.logger.Info("Restored ticket panel",
		zap.Uint64("serverID", uint64(serverID)),
		zap.Uint64("messageID", messageID))

	return nil
}

func (c *Controller) clearPanel(ctx context.Context, serverID snowflake.ID) error {
	c.logger.Info("Ticket panel message is gone, clearing it", zap.Uint64("serverID", uint64(serverID)))

	if err := c.store.SetConfig(ctx, serverID, types.ConfigKeyTicketPanelMessage, ""); err != nil {
		return fmt.Errorf("failed to clear panel message: %w", err)
	}

	return nil
}

func hasMarkedTitle(titles []string, marker string) bool {
	for _, title := range titles {
		if strings.Contains(title, marker) {
			return true
		}
	}

	return false
}

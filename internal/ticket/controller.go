package ticket

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/setup/config"
	"github.com/shadowdev/shadowbot/pkg/utils"
	"go.uber.org/zap"
)

const (
	// ClosedPrefix marks the name of a closed ticket channel.
	ClosedPrefix = "closed-"
	// DefaultCloseReason is used when a closer gives no reason.
	DefaultCloseReason = "No reason given"

	historyScanLimit = 10
	transcriptLimit  = 1000
	autoCloseTimeout = 2 * time.Minute
)

// Opened is the result of opening a ticket.
type Opened struct {
	Ticket    *Ticket
	OpenCount int
}

// MessageEvent is an inbound message observed in a server channel.
type MessageEvent struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
	AuthorID  snowflake.ID
	RoleIDs   []snowflake.ID
	Bot       bool
	// CreatedAt is when the message was sent. Zero means now.
	CreatedAt time.Time
}

// Controller applies authorization and sequencing rules on top of the
// registry and the scheduler, and reports every change through the gateway.
type Controller struct {
	registry  *Registry
	scheduler *Scheduler
	store     Store
	gateway   Gateway
	cooldown  Cooldown
	config    *config.BotConfig
	clock     Clock
	logger    *zap.Logger
	locks     *channelLocks
	retry     utils.RetryOptions
}

// NewController creates a Controller with its own registry and scheduler.
func NewController(
	store Store, gateway Gateway, cooldown Cooldown, cfg *config.BotConfig, clock Clock, logger *zap.Logger,
) *Controller {
	scheduler := NewScheduler(clock, logger)

	return &Controller{
		registry:  NewRegistry(store, scheduler, clock, logger),
		scheduler: scheduler,
		store:     store,
		gateway:   gateway,
		cooldown:  cooldown,
		config:    cfg,
		clock:     clock,
		logger:    logger.Named("ticket_controller"),
		locks:     newChannelLocks(),
		retry:     utils.GetCleanupRetryOptions(),
	}
}

// SetCleanupRetry overrides the retry used for channel cleanup after an autoclose.
func (c *Controller) SetCleanupRetry(opts utils.RetryOptions) {
	c.retry = opts
}

// Registry returns the ticket registry.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Scheduler returns the autoclose scheduler.
func (c *Controller) Scheduler() *Scheduler {
	return c.scheduler
}

// Open creates a ticket channel for the requester and registers the ticket.
func (c *Controller) Open(ctx context.Context, serverID snowflake.ID, requester Actor, typeKey string) (*Opened, error) {
	tt, ok := c.config.Tickets.Type(typeKey)
	if !ok {
		return nil, &ValidationError{Field: "ticket type", Reason: "does not exist"}
	}

	category, err := c.gateway.Channel(ctx, tt.CategoryID)
	if err != nil || !category.Category {
		c.logger.Error("Invalid ticket category",
			zap.String("typeKey", typeKey),
			zap.Uint64("categoryID", uint64(tt.CategoryID)),
			zap.Error(err))

		return nil, &ValidationError{Field: "ticket category", Reason: "is not available"}
	}

	openCount := len(c.registry.OpenTicketsForUser(ctx, serverID, requester.ID)) + 1

	grants := []Grant{
		{TargetID: requester.ID, Send: true},
		{TargetID: c.gateway.SelfID(), Send: true},
	}
	for _, roleID := range tt.StaffRoleIDs {
		grants = append(grants, Grant{TargetID: roleID, Role: true, Send: true})
	}

	channel, err := c.gateway.CreateChannel(ctx, ChannelSpec{
		ServerID:   serverID,
		CategoryID: tt.CategoryID,
		Name:       ChannelName(requester.Name),
		Grants:     grants,
	})
	if err != nil {
		c.logger.Error("Failed to create ticket channel",
			zap.Uint64("requesterID", uint64(requester.ID)),
			zap.Error(err))

		return nil, fmt.Errorf("%w: %w", ErrExternalService, err)
	}

	t, err := c.registry.Create(ctx, serverID, channel.ID, requester.ID, typeKey)
	if err != nil {
		if delErr := c.gateway.DeleteChannel(ctx, channel.ID); delErr != nil {
			c.logger.Warn("Failed to remove orphan ticket channel",
				zap.Uint64("channelID", uint64(channel.ID)),
				zap.Error(delErr))
		}

		return nil, err
	}

	pings := make([]string, 0, len(tt.PingRoleIDs))
	for _, roleID := range tt.PingRoleIDs {
		pings = append(pings, "<@&"+roleID.String()+">")
	}

	_, err = c.gateway.SendMessage(ctx, channel.ID, Message{
		Content:      strings.Join(pings, " "),
		Embeds:       []Embed{openedEmbed(t, tt)},
		Surface:      SurfaceActions,
		MentionRoles: tt.PingRoleIDs,
	})
	if err != nil {
		c.logger.Warn("Failed to post ticket welcome message",
			zap.Uint64("channelID", uint64(channel.ID)),
			zap.Error(err))
	}

	c.sendLog(ctx, config.LogTicketCreate, createLogEmbed(t, tt, openCount))

	c.logger.Info("Ticket opened",
		zap.Uint64("channelID", uint64(channel.ID)),
		zap.Uint64("ownerID", uint64(requester.ID)),
		zap.String("typeKey", typeKey),
		zap.Int("openCount", openCount))

	return &Opened{Ticket: t, OpenCount: openCount}, nil
}

// Claim marks the actor as the ticket's responder.
func (c *Controller) Claim(ctx context.Context, channelID snowflake.ID, actor Actor) (*Ticket, error) {
	unlock := c.locks.Lock(channelID)
	defer unlock()

	t, err := c.manageable(ctx, channelID, actor)
	if err != nil {
		return nil, err
	}

	if t.ClaimedByID != 0 {
		return nil, &AlreadyClaimedError{By: t.ClaimedByID}
	}

	if err := c.registry.Claim(ctx, channelID, actor.ID); err != nil {
		return nil, err
	}
	t.ClaimedByID = actor.ID

	c.announce(ctx, channelID, claimedEmbed(actor.ID))
	c.sendLog(ctx, config.LogTicketClaim, actionLogEmbed("✋ Ticket claimed", ColorBlue, channelID,
		[]string{"**Claimed by:** " + actor.Mention()},
		EmbedField{Name: "Staff ID", Value: actor.ID.String(), Inline: true}))

	return t, nil
}

// Unclaim releases the ticket. Only the claimant or a channel manager may do it.
func (c *Controller) Unclaim(ctx context.Context, channelID snowflake.ID, actor Actor) (*Ticket, error) {
	unlock := c.locks.Lock(channelID)
	defer unlock()

	t, ok := c.registry.Get(ctx, channelID)
	if !ok {
		return nil, fmt.Errorf("%w: ticket %d", ErrNotFound, channelID)
	}

	if t.ClaimedByID == 0 {
		return nil, &ValidationError{Field: "ticket", Reason: "is not claimed"}
	}

	if actor.ID != t.ClaimedByID && !actor.ManageChannels {
		return nil, ErrUnauthorized
	}

	if err := c.registry.Unclaim(ctx, channelID); err != nil {
		return nil, err
	}
	t.ClaimedByID = 0

	c.announce(ctx, channelID, unclaimedEmbed(actor.ID))
	c.sendLog(ctx, config.LogTicketUnclaim, actionLogEmbed("👐 Ticket unclaimed", ColorGold, channelID,
		[]string{"**Released by:** " + actor.Mention()}))

	return t, nil
}

// Close closes an open ticket and locks its channel.
func (c *Controller) Close(ctx context.Context, channelID snowflake.ID, actor Actor, reason string) error {
	unlock := c.locks.Lock(channelID)
	defer unlock()

	t, err := c.manageable(ctx, channelID, actor)
	if err != nil {
		return err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultCloseReason
	}

	return c.closeLocked(ctx, t, actor.ID, reason, 0)
}

// Delete removes a closed ticket and its channel. Requires the manage channels permission.
func (c *Controller) Delete(ctx context.Context, channelID snowflake.ID, actor Actor) error {
	unlock := c.locks.Lock(channelID)
	defer unlock()

	t, ok := c.registry.Lookup(ctx, channelID)
	if !ok {
		return fmt.Errorf("%w: ticket %d", ErrNotFound, channelID)
	}

	if !actor.ManageChannels {
		return ErrUnauthorized
	}

	if !t.IsClosed {
		return &ValidationError{Field: "ticket", Reason: "must be closed before it is deleted"}
	}

	if err := c.gateway.DeleteChannel(ctx, channelID); err != nil && !errors.Is(err, ErrUnknownTarget) {
		c.logger.Error("Failed to delete ticket channel",
			zap.Uint64("channelID", uint64(channelID)),
			zap.Error(err))

		return fmt.Errorf("%w: %w", ErrExternalService, err)
	}

	if err := c.registry.Delete(ctx, channelID); err != nil {
		return err
	}

	c.sendLog(ctx, config.LogTicketDelete, actionLogEmbed("🗑️ Ticket deleted", ColorRed, channelID,
		[]string{"**Deleted by:** " + actor.Mention()},
		EmbedField{Name: "User ID", Value: actor.ID.String(), Inline: true}))

	return nil
}

// Rename changes the ticket channel's name.
func (c *Controller) Rename(ctx context.Context, channelID snowflake.ID, actor Actor, name string) error {
	unlock := c.locks.Lock(channelID)
	defer unlock()

	if _, err := c.manageable(ctx, channelID, actor); err != nil {
		return err
	}

	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n < config.MinTicketNameLength || n > config.MaxTicketNameLength {
		return &ValidationError{
			Field:  "name",
			Reason: fmt.Sprintf("must be between %d and %d characters", config.MinTicketNameLength, config.MaxTicketNameLength),
		}
	}

	var oldName string
	if channel, err := c.gateway.Channel(ctx, channelID); err == nil {
		oldName = channel.Name
	}

	if err := c.gateway.RenameChannel(ctx, channelID, name); err != nil {
		return c.gatewayError("rename channel", channelID, err)
	}

	c.sendLog(ctx, config.LogTicketRename, actionLogEmbed("✏️ Ticket renamed", ColorOrange, channelID,
		[]string{"**Renamed by:** " + actor.Mention()},
		EmbedField{Name: "Old name", Value: orDash(oldName), Inline: true},
		EmbedField{Name: "New name", Value: name, Inline: true}))

	return nil
}

// AddMember gives a user access to the ticket.
func (c *Controller) AddMember(ctx context.Context, channelID snowflake.ID, actor Actor, memberID snowflake.ID) error {
	unlock := c.locks.Lock(channelID)
	defer unlock()

	if _, err := c.manageable(ctx, channelID, actor); err != nil {
		return err
	}

	if err := c.gateway.SetAccess(ctx, channelID, Grant{TargetID: memberID, Send: true}); err != nil {
		return c.gatewayError("grant access", channelID, err)
	}

	if err := c.registry.AddMember(ctx, channelID, memberID); err != nil {
		return err
	}

	c.sendLog(ctx, config.LogTicketMemberAdd, actionLogEmbed("➕ Member added", ColorGreen, channelID,
		[]string{"**Member:** " + mention(memberID), "**Added by:** " + actor.Mention()},
		EmbedField{Name: "Member ID", Value: memberID.String(), Inline: true}))

	return nil
}

// RemoveMember revokes a user's access to the ticket. The owner can never be removed.
func (c *Controller) RemoveMember(
	ctx context.Context, channelID snowflake.ID, actor Actor, memberID snowflake.ID,
) error {
	unlock := c.locks.Lock(channelID)
	defer unlock()

	t, err := c.manageable(ctx, channelID, actor)
	if err != nil {
		return err
	}

	if memberID == t.OwnerID {
		return &ValidationError{Field: "member", Reason: "cannot be the ticket owner"}
	}

	if !t.HasMember(memberID) {
		return &ValidationError{Field: "member", Reason: "is not part of this ticket"}
	}

	if err := c.gateway.RemoveAccess(ctx, channelID, memberID); err != nil && !errors.Is(err, ErrUnknownTarget) {
		return c.gatewayError("revoke access", channelID, err)
	}

	if err := c.registry.RemoveMember(ctx, channelID, memberID); err != nil {
		return err
	}

	c.sendLog(ctx, config.LogTicketMemberRemove, actionLogEmbed("➖ Member removed", ColorOrange, channelID,
		[]string{"**Member:** " + mention(memberID), "**Removed by:** " + actor.Mention()},
		EmbedField{Name: "Member ID", Value: memberID.String(), Inline: true}))

	return nil
}

// OnMessage observes a message for auto-ping and autoclose bookkeeping.
// Staff messages start the autoclose timer, owner messages cancel it.
func (c *Controller) OnMessage(ctx context.Context, event MessageEvent) {
	if event.Bot {
		return
	}

	unlock := c.locks.Lock(event.ChannelID)
	defer unlock()

	t, ok := c.registry.Get(ctx, event.ChannelID)
	if !ok {
		return
	}

	c.autoPing(ctx, t, event)

	tt, _ := c.config.Tickets.Type(t.TypeKey)

	switch {
	case tt.IsStaff(event.RoleIDs):
		at, err := c.registry.TouchStaffActivity(ctx, event.ChannelID, event.CreatedAt)
		if err != nil {
			return
		}

		// A later owner message was already handled
		if t.LastOwnerMessage.After(at) {
			return
		}

		task, scheduled := c.scheduler.ScheduleIfAbsent(
			event.ChannelID, c.config.Tickets.AutoCloseDelay(), c.fireAutoClose,
		)
		if scheduled {
			c.logger.Info("Autoclose timer started",
				zap.Uint64("channelID", uint64(event.ChannelID)),
				zap.Time("fireAt", task.FireAt))
		}

	case event.AuthorID == t.OwnerID:
		if _, err := c.registry.TouchOwnerActivity(ctx, event.ChannelID, event.CreatedAt); err != nil {
			return
		}

		if c.scheduler.Cancel(event.ChannelID) {
			c.logger.Info("Autoclose timer cancelled, owner replied",
				zap.Uint64("channelID", uint64(event.ChannelID)))
		}
	}
}

// Transcript renders the channel history of a ticket as a text file.
func (c *Controller) Transcript(ctx context.Context, channelID snowflake.ID, actor Actor) (*File, error) {
	t, ok := c.registry.Lookup(ctx, channelID)
	if !ok {
		return nil, fmt.Errorf("%w: ticket %d", ErrNotFound, channelID)
	}

	tt, _ := c.config.Tickets.Type(t.TypeKey)
	if !CanManage(actor, t, tt) {
		return nil, ErrUnauthorized
	}

	history, err := c.gateway.History(ctx, channelID, transcriptLimit)
	if err != nil {
		return nil, c.gatewayError("read history of", channelID, err)
	}

	var b strings.Builder
	for _, msg := range slices.Backward(history) {
		fmt.Fprintf(&b, "[%s] %s: %s\n",
			msg.CreatedAt.UTC().Format(time.DateTime), msg.AuthorName, msg.Content)
	}

	c.logger.Info("Generated transcript",
		zap.Uint64("channelID", uint64(channelID)),
		zap.Int("messages", len(history)))

	return &File{
		Name: fmt.Sprintf("transcript-%d.txt", channelID),
		Data: []byte(b.String()),
	}, nil
}

// Shutdown cancels every pending autoclose task.
func (c *Controller) Shutdown() {
	c.scheduler.Shutdown()
}

// manageable returns the open ticket if the actor may manage it.
func (c *Controller) manageable(ctx context.Context, channelID snowflake.ID, actor Actor) (*Ticket, error) {
	t, ok := c.registry.Get(ctx, channelID)
	if !ok {
		return nil, fmt.Errorf("%w: ticket %d", ErrNotFound, channelID)
	}

	tt, _ := c.config.Tickets.Type(t.TypeKey)
	if !CanManage(actor, t, tt) {
		return nil, ErrUnauthorized
	}

	return t, nil
}

// closeLocked closes the ticket and cleans up its channel. A non-zero
// autoDelay marks an autoclose, whose channel cleanup is retried once.
func (c *Controller) closeLocked(
	ctx context.Context, t *Ticket, closedByID snowflake.ID, reason string, autoDelay time.Duration,
) error {
	channelID := t.ChannelID
	c.scheduler.Cancel(channelID)

	if err := c.registry.Close(ctx, channelID, closedByID, reason); err != nil {
		return err
	}

	now := c.clock.Now()
	embed := closedEmbed(closedByID, reason, now)
	if autoDelay > 0 {
		embed = autoClosedEmbed(autoDelay, now)
	}

	if _, err := c.gateway.SendMessage(ctx, channelID, Message{
		Embeds:  []Embed{embed},
		Surface: SurfaceClosed,
	}); err != nil {
		c.logger.Warn("Failed to post closed message",
			zap.Uint64("channelID", uint64(channelID)),
			zap.Error(err))
	}

	channelName, err := c.lockChannel(ctx, channelID, autoDelay > 0)
	if err != nil {
		c.logger.Error("Failed to lock closed ticket channel",
			zap.Uint64("channelID", uint64(channelID)),
			zap.Error(err))
	}

	if err := c.gateway.SendDirect(ctx, t.OwnerID, Message{
		Embeds: []Embed{directCloseEmbed(channelName, reason, now)},
	}); err != nil {
		c.logger.Debug("Could not notify ticket owner",
			zap.Uint64("ownerID", uint64(t.OwnerID)),
			zap.Error(err))
	}

	if autoDelay > 0 {
		c.sendLog(ctx, config.LogTicketAutoClose, actionLogEmbed("⏰ Ticket closed automatically",
			ColorDarkOrange, channelID, nil,
			EmbedField{Name: "Reason", Value: reason}))
	} else {
		c.sendLog(ctx, config.LogTicketClose, actionLogEmbed(ClosedTitleMarker+" Ticket closed", ColorRed, channelID,
			[]string{"**Closed by:** " + mention(closedByID)},
			EmbedField{Name: "Reason", Value: reason}))
	}

	return nil
}

// lockChannel revokes write access and prefixes the channel name. It returns
// the channel's final name.
func (c *Controller) lockChannel(ctx context.Context, channelID snowflake.ID, retry bool) (string, error) {
	var name string

	cleanup := func() error {
		if err := c.gateway.RevokeSend(ctx, channelID); err != nil {
			return err
		}

		channel, err := c.gateway.Channel(ctx, channelID)
		if err != nil {
			return err
		}

		name = channel.Name
		if strings.HasPrefix(name, ClosedPrefix) {
			return nil
		}

		closedName := ChannelName(ClosedPrefix + name)
		if err := c.gateway.RenameChannel(ctx, channelID, closedName); err != nil {
			return err
		}
		name = closedName

		return nil
	}

	var err error
	if retry {
		err = utils.Retry(ctx, cleanup, c.retry)
	} else {
		err = cleanup()
	}

	return name, err
}

// fireAutoClose runs when an autoclose task's delay elapses.
func (c *Controller) fireAutoClose(task Task) {
	ctx, cancel := context.WithTimeout(context.Background(), autoCloseTimeout)
	defer cancel()

	unlock := c.locks.Lock(task.ChannelID)
	defer unlock()

	t, ok := c.registry.Get(ctx, task.ChannelID)
	if !ok {
		return
	}

	// The owner may have replied just before the timer went off
	if t.LastStaffMessage.IsZero() || t.LastOwnerMessage.After(t.LastStaffMessage) {
		c.logger.Info("Autoclose aborted, owner replied after staff",
			zap.Uint64("channelID", uint64(task.ChannelID)),
			zap.Uint64("generation", task.Generation))

		return
	}

	reason := fmt.Sprintf("inactivity timeout (%s without a reply)", formatDelay(task.Delay))
	if err := c.closeLocked(ctx, t, c.gateway.SelfID(), reason, task.Delay); err != nil {
		c.logger.Error("Autoclose failed",
			zap.Uint64("channelID", uint64(task.ChannelID)),
			zap.Error(err))

		return
	}

	c.logger.Info("Ticket closed for inactivity",
		zap.Uint64("channelID", uint64(task.ChannelID)),
		zap.Duration("delay", task.Delay))
}

// autoPing mentions the owner when a member of the auto-ping role writes in the ticket.
func (c *Controller) autoPing(ctx context.Context, t *Ticket, event MessageEvent) {
	roleID := c.config.Tickets.AutoPingRoleID
	if roleID == 0 || event.AuthorID == t.OwnerID || !slices.Contains(event.RoleIDs, roleID) {
		return
	}

	if ttl := c.config.Tickets.PingCooldown(); ttl > 0 && c.cooldown != nil {
		key := fmt.Sprintf("ping:%d:%d", event.ChannelID, event.AuthorID)

		acquired, err := c.cooldown.Acquire(ctx, key, ttl)
		if err != nil {
			c.logger.Warn("Failed to check ping cooldown", zap.Error(err))
		}
		if !acquired {
			return
		}
	}

	if _, err := c.gateway.SendMessage(ctx, event.ChannelID, Message{
		Content:      mention(t.OwnerID),
		MentionUsers: []snowflake.ID{t.OwnerID},
		ReplyTo:      event.MessageID,
	}); err != nil {
		c.logger.Error("Failed to auto-ping ticket owner",
			zap.Uint64("channelID", uint64(event.ChannelID)),
			zap.Error(err))

		return
	}

	c.logger.Debug("Auto-pinged ticket owner",
		zap.Uint64("channelID", uint64(event.ChannelID)),
		zap.Uint64("staffID", uint64(event.AuthorID)))
}

// announce posts an embed in the ticket channel, logging failures.
func (c *Controller) announce(ctx context.Context, channelID snowflake.ID, embed Embed) {
	if _, err := c.gateway.SendMessage(ctx, channelID, Message{Embeds: []Embed{embed}}); err != nil {
		c.logger.Warn("Failed to post ticket announcement",
			zap.Uint64("channelID", uint64(channelID)),
			zap.Error(err))
	}
}

// sendLog posts an embed to the log channel configured for the kind, if enabled.
func (c *Controller) sendLog(ctx context.Context, kind config.LogKind, embed Embed) {
	channelID, ok := c.config.Logs.Channel(kind)
	if !ok {
		return
	}

	if embed.Timestamp.IsZero() {
		embed.Timestamp = c.clock.Now()
	}

	if _, err := c.gateway.SendMessage(ctx, channelID, Message{Embeds: []Embed{embed}}); err != nil {
		c.logger.Warn("Failed to send ticket log",
			zap.String("kind", string(kind)),
			zap.Uint64("logChannelID", uint64(channelID)),
			zap.Error(err))
	}
}

// gatewayError logs and classifies a failed gateway call.
func (c *Controller) gatewayError(action string, channelID snowflake.ID, err error) error {
	c.logger.Error("Failed to "+action+" ticket channel",
		zap.Uint64("channelID", uint64(channelID)),
		zap.Error(err))

	if errors.Is(err, ErrUnknownTarget) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	return fmt.Errorf("%w: %w", ErrExternalService, err)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

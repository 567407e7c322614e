package ticket

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/setup/config"
)

// Embed colors.
const (
	ColorBlue       = 0x3498DB
	ColorGreen      = 0x2ECC71
	ColorOrange     = 0xE67E22
	ColorDarkOrange = 0xA84300
	ColorRed        = 0xE74C3C
	ColorGold       = 0xF1C40F
	ColorPurple     = 0x9B59B6
)

// Title markers used to find the bot's own messages in channel history.
const (
	TicketTitleMarker = "🎫"
	ClosedTitleMarker = "🔒"
)

func mention(id snowflake.ID) string {
	return "<@" + id.String() + ">"
}

func channelMention(id snowflake.ID) string {
	return "<#" + id.String() + ">"
}

func timestamp(t time.Time) string {
	return "<t:" + strconv.FormatInt(t.Unix(), 10) + ":F>"
}

func footer(channelID snowflake.ID) string {
	return "Ticket ID: " + channelID.String()
}

// formatDelay renders a delay in whole hours when possible.
func formatDelay(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}

	return d.String()
}

func panelEmbed() Embed {
	return Embed{
		Title:       TicketTitleMarker + " Tickets",
		Description: "Choose the type of ticket you want to open with the menu below. Please give as much detail as possible so our team can help you quickly.",
		Color:       ColorBlue,
		Footer:      "Use the menu below to pick your ticket category.",
	}
}

func openedEmbed(t *Ticket, tt config.TicketType) Embed {
	return Embed{
		Title:       TicketTitleMarker + " Ticket: " + tt.Name,
		Description: "Thank you for opening a ticket. Staff will answer soon.",
		Color:       ColorGreen,
		Fields: []EmbedField{
			{Name: "Type", Value: tt.Name, Inline: true},
			{Name: "Author", Value: mention(t.OwnerID), Inline: true},
			{Name: "Created", Value: timestamp(t.CreatedAt)},
			{Name: "Instructions", Value: "Describe your request in detail. A staff member will take care of it."},
		},
		Footer: footer(t.ChannelID),
	}
}

func claimedEmbed(staffID snowflake.ID) Embed {
	return Embed{
		Title:       "✋ Ticket claimed",
		Description: mention(staffID) + " is handling this ticket.",
		Color:       ColorBlue,
	}
}

func unclaimedEmbed(actorID snowflake.ID) Embed {
	return Embed{
		Title:       "👐 Ticket unclaimed",
		Description: mention(actorID) + " released this ticket. Any staff member can claim it.",
		Color:       ColorGold,
	}
}

func closedEmbed(closedByID snowflake.ID, reason string, at time.Time) Embed {
	return Embed{
		Title:       ClosedTitleMarker + " Ticket closed",
		Description: "Reason: " + reason,
		Color:       ColorRed,
		Fields: []EmbedField{
			{Name: "Closed by", Value: mention(closedByID), Inline: true},
			{Name: "Closed at", Value: timestamp(at)},
			{Name: "Information", Value: "This ticket is now read-only. Use the button below to delete it for good."},
		},
		Timestamp: at,
	}
}

func autoClosedEmbed(delay time.Duration, at time.Time) Embed {
	return Embed{
		Title:       ClosedTitleMarker + " Ticket closed automatically",
		Description: fmt.Sprintf("This ticket was closed for inactivity (%s without a reply).", formatDelay(delay)),
		Color:       ColorRed,
		Fields: []EmbedField{
			{Name: "Why?", Value: "The ticket author did not answer after staff replied."},
			{Name: "Information", Value: "This ticket is now read-only. Use the button below to delete it for good."},
		},
		Timestamp: at,
	}
}

func directCloseEmbed(channelName string, reason string, at time.Time) Embed {
	description := "Your ticket was closed."
	if channelName != "" {
		description = "Your ticket `" + channelName + "` was closed."
	}

	return Embed{
		Title:       ClosedTitleMarker + " Ticket closed",
		Description: description,
		Color:       ColorRed,
		Fields:      []EmbedField{{Name: "Reason", Value: reason}},
		Timestamp:   at,
	}
}

func createLogEmbed(t *Ticket, tt config.TicketType, openCount int) Embed {
	return Embed{
		Title:       TicketTitleMarker + " Ticket created",
		Description: fmt.Sprintf("**Channel:** %s\n**Author:** %s", channelMention(t.ChannelID), mention(t.OwnerID)),
		Color:       ColorGreen,
		Fields: []EmbedField{
			{Name: "Type", Value: tt.Name, Inline: true},
			{Name: "Channel ID", Value: t.ChannelID.String(), Inline: true},
			{Name: "User ID", Value: t.OwnerID.String(), Inline: true},
			{Name: "Open tickets", Value: strconv.Itoa(openCount), Inline: true},
		},
		Footer: footer(t.ChannelID),
	}
}

func actionLogEmbed(title string, color int, channelID snowflake.ID, lines []string, fields ...EmbedField) Embed {
	description := "**Channel:** " + channelMention(channelID)
	if len(lines) > 0 {
		description += "\n" + strings.Join(lines, "\n")
	}

	return Embed{
		Title:       title,
		Description: description,
		Color:       color,
		Fields:      append(fields, EmbedField{Name: "Channel ID", Value: channelID.String(), Inline: true}),
		Footer:      footer(channelID),
	}
}

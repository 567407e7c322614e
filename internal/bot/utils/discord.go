package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/ticket"
)

// ErrInvalidUserReference is returned when input is neither a user mention nor an ID.
var ErrInvalidUserReference = errors.New("not a user mention or ID")

// ParseUserID accepts "<@123>", "<@!123>" or "123" and returns the user ID.
func ParseUserID(input string) (snowflake.ID, error) {
	s := strings.TrimSpace(input)
	if strings.HasPrefix(s, "<@") && strings.HasSuffix(s, ">") {
		s = strings.TrimPrefix(strings.TrimSuffix(s[2:], ">"), "!")
	}

	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidUserReference, input)
	}

	return snowflake.ID(id), nil
}

// ActorFromMember builds the acting user of an interaction from its resolved member.
func ActorFromMember(user discord.User, member *discord.ResolvedMember) ticket.Actor {
	actor := ticket.Actor{
		ID:   user.ID,
		Name: user.EffectiveName(),
	}

	if member == nil {
		return actor
	}

	if member.Nick != nil && *member.Nick != "" {
		actor.Name = *member.Nick
	}

	actor.RoleIDs = member.RoleIDs
	actor.Administrator = member.Permissions.Has(discord.PermissionAdministrator)
	actor.ManageChannels = actor.Administrator || member.Permissions.Has(discord.PermissionManageChannels)

	return actor
}

// ConvertEmbed turns a ticket embed into a Discord embed.
func ConvertEmbed(e ticket.Embed) discord.Embed {
	builder := discord.NewEmbedBuilder().
		SetTitle(e.Title).
		SetDescription(e.Description).
		SetColor(e.Color)

	for _, field := range e.Fields {
		builder.AddField(field.Name, field.Value, field.Inline)
	}

	if e.Footer != "" {
		builder.SetFooterText(e.Footer)
	}

	if !e.Timestamp.IsZero() {
		builder.SetTimestamp(e.Timestamp)
	}

	return builder.Build()
}

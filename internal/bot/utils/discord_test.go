package utils_test

import (
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/bot/utils"
	"github.com/shadowdev/shadowbot/internal/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUserID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    snowflake.ID
		wantErr bool
	}{
		{name: "Mention", input: "<@123456789>", want: 123456789},
		{name: "NicknameMention", input: "<@!123456789>", want: 123456789},
		{name: "RawID", input: " 987654321 ", want: 987654321},
		{name: "Zero", input: "0", wantErr: true},
		{name: "RoleMention", input: "<@&123>", wantErr: true},
		{name: "Name", input: "alice", wantErr: true},
		{name: "Empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := utils.ParseUserID(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, utils.ErrInvalidUserReference)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestActorFromMember(t *testing.T) {
	t.Parallel()

	user := discord.User{ID: 42, Username: "alice"}

	t.Run("NoMember", func(t *testing.T) {
		t.Parallel()

		actor := utils.ActorFromMember(user, nil)
		assert.Equal(t, ticket.Actor{ID: 42, Name: "alice"}, actor)
	})

	t.Run("ManageChannels", func(t *testing.T) {
		t.Parallel()

		nick := "Ali"
		member := &discord.ResolvedMember{
			Member: discord.Member{
				User:    user,
				Nick:    &nick,
				RoleIDs: []snowflake.ID{7},
			},
			Permissions: discord.PermissionManageChannels | discord.PermissionSendMessages,
		}

		actor := utils.ActorFromMember(user, member)
		assert.Equal(t, "Ali", actor.Name)
		assert.Equal(t, []snowflake.ID{7}, actor.RoleIDs)
		assert.True(t, actor.ManageChannels)
		assert.False(t, actor.Administrator)
	})

	t.Run("Administrator", func(t *testing.T) {
		t.Parallel()

		member := &discord.ResolvedMember{
			Member:      discord.Member{User: user},
			Permissions: discord.PermissionAdministrator,
		}

		actor := utils.ActorFromMember(user, member)
		assert.True(t, actor.Administrator)
		assert.True(t, actor.ManageChannels)
	})
}

func TestConvertEmbed(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	embed := utils.ConvertEmbed(ticket.Embed{
		Title:       "🔒 Ticket closed",
		Description: "done",
		Color:       0xFF0000,
		Fields:      []ticket.EmbedField{{Name: "Reason", Value: "resolved", Inline: true}},
		Footer:      "Ticket ID: 5",
		Timestamp:   at,
	})

	assert.Equal(t, "🔒 Ticket closed", embed.Title)
	assert.Equal(t, "done", embed.Description)
	assert.Equal(t, 0xFF0000, embed.Color)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "Reason", embed.Fields[0].Name)
	require.NotNil(t, embed.Footer)
	assert.Equal(t, "Ticket ID: 5", embed.Footer.Text)
	require.NotNil(t, embed.Timestamp)
	assert.True(t, at.Equal(*embed.Timestamp))
}

func TestTruncateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hello", utils.TruncateString("hello", 10))
	assert.Equal(t, "hello w...", utils.TruncateString("hello world this is long", 10))
	assert.Equal(t, "héllo", utils.TruncateString("héllo", 5))
	assert.Equal(t, "ab", utils.TruncateString("abcdef", 2))
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/setup/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commonTOML = `
version = 1

[debug]
log_level = "debug"
max_logs_to_keep = 3

[postgresql]
host = "db"
port = 5432
db_name = "tickets"

[redis]
host = "cache"
port = 6379
`

const botTOML = `
version = 1

[discord]
guild_id = 100

[tickets]
panel_channel_id = 200
autoclose_delay_hours = 12
ping_cooldown_seconds = 30

[tickets.types.support]
name = "Support"
category_id = 300
staff_role_ids = [400, 401]

[logs.ticket_close]
enabled = true
channel_id = 500
`

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".toml"), []byte(content), 0o600))
}

func TestLoadConfigFrom(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "common", commonTOML)
	writeConfig(t, dir, "bot", botTOML)

	cfg, usedPath, err := config.LoadConfigFrom([]string{filepath.Join(dir, "missing"), dir})
	require.NoError(t, err)

	assert.Equal(t, dir, usedPath)
	assert.Equal(t, "debug", cfg.Common.Debug.LogLevel)
	assert.Equal(t, "db", cfg.Common.PostgreSQL.Host)
	assert.Equal(t, 6379, cfg.Common.Redis.Port)
	assert.Equal(t, uint64(100), cfg.Bot.Discord.GuildID)
	assert.Equal(t, snowflake.ID(200), cfg.Bot.Tickets.PanelChannelID)

	support, ok := cfg.Bot.Tickets.Type("support")
	require.True(t, ok)
	assert.Equal(t, "Support", support.Name)
	assert.Equal(t, []snowflake.ID{400, 401}, support.StaffRoleIDs)

	channelID, ok := cfg.Bot.Logs.Channel(config.LogTicketClose)
	require.True(t, ok)
	assert.Equal(t, snowflake.ID(500), channelID)
}

func TestLoadConfigFromMissingFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeConfig(t, dir, "common", commonTOML)

	_, _, err := config.LoadConfigFrom([]string{dir})
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
}

func TestLoadConfigFromVersionChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		common string
		want   error
	}{
		{name: "missing version", common: "[debug]\nlog_level = \"info\"\n", want: config.ErrConfigVersionMissing},
		{name: "old version", common: "version = 7\n", want: config.ErrConfigVersionMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeConfig(t, dir, "common", tt.common)
			writeConfig(t, dir, "bot", botTOML)

			_, _, err := config.LoadConfigFrom([]string{dir})
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func validTickets() config.Tickets {
	return config.Tickets{
		PanelChannelID:      1,
		AutoCloseDelayHours: 12,
		Types: map[string]config.TicketType{
			"support": {Name: "Support", CategoryID: 2},
		},
	}
}

func TestTicketsValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Tickets)
		want   error
	}{
		{name: "valid", mutate: func(*config.Tickets) {}},
		{name: "no types", mutate: func(c *config.Tickets) { c.Types = nil }, want: config.ErrNoTicketTypes},
		{name: "no panel", mutate: func(c *config.Tickets) { c.PanelChannelID = 0 }, want: config.ErrMissingPanelChannel},
		{name: "zero delay", mutate: func(c *config.Tickets) { c.AutoCloseDelayHours = 0 }, want: config.ErrInvalidAutoClose},
		{name: "negative cooldown", mutate: func(c *config.Tickets) { c.PingCooldownSeconds = -1 }, want: config.ErrInvalidPingCooldown},
		{
			name: "type without category",
			mutate: func(c *config.Tickets) {
				c.Types["report"] = config.TicketType{Name: "Report"}
			},
			want: config.ErrInvalidTicketType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tickets := validTickets()
			tt.mutate(&tickets)

			err := tickets.Validate()
			if tt.want == nil {
				require.NoError(t, err)
				return
			}

			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTicketsHelpers(t *testing.T) {
	t.Parallel()

	tickets := config.Tickets{
		AutoCloseDelayHours: 12,
		PingCooldownSeconds: 30,
		Types: map[string]config.TicketType{
			"report":  {Name: "Report", StaffRoleIDs: []snowflake.ID{7}},
			"appeal":  {Name: "Appeal"},
			"support": {Name: "Support"},
		},
	}

	assert.Equal(t, []string{"appeal", "report", "support"}, tickets.TypeKeys())
	assert.Equal(t, "12h0m0s", tickets.AutoCloseDelay().String())
	assert.Equal(t, "30s", tickets.PingCooldown().String())

	report, _ := tickets.Type("report")
	assert.True(t, report.IsStaff([]snowflake.ID{3, 7}))
	assert.False(t, report.IsStaff([]snowflake.ID{3}))

	_, ok := tickets.Type("missing")
	assert.False(t, ok)
}

func TestLogsValidateAndChannel(t *testing.T) {
	t.Parallel()

	logs := config.Logs{
		config.LogTicketCreate: {Enabled: true, ChannelID: 9},
		config.LogTicketClose:  {Enabled: false, ChannelID: 9},
	}
	require.NoError(t, logs.Validate())

	_, ok := logs.Channel(config.LogTicketClose)
	assert.False(t, ok)

	_, ok = logs.Channel(config.LogTicketDelete)
	assert.False(t, ok)

	require.ErrorIs(t, config.Logs{"ticket_archive": {}}.Validate(), config.ErrUnknownLogKind)
	require.ErrorIs(t, config.Logs{config.LogTicketRename: {Enabled: true}}.Validate(), config.ErrMissingLogChannel)
}

package bot

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/shadowdev/shadowbot/internal/bot/constants"
)

// commands returns the guild slash commands of the ticket system.
func commands() []discord.ApplicationCommandCreate {
	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        constants.TicketPanelCommandName,
			Description: "Post the ticket panel",
		},
		discord.SlashCommandCreate{
			Name:        constants.TicketCloseCommandName,
			Description: "Close this ticket",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        constants.ReasonOptionName,
					Description: "Why the ticket is closed",
					MaxLength:   intPtr(constants.MaxReasonLength),
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.TicketAddCommandName,
			Description: "Add a member to this ticket",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        constants.MemberOptionName,
					Description: "Member to add",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.TicketRemoveCommandName,
			Description: "Remove a member from this ticket",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionUser{
					Name:        constants.MemberOptionName,
					Description: "Member to remove",
					Required:    true,
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.TicketRenameCommandName,
			Description: "Rename this ticket",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionString{
					Name:        constants.NameOptionName,
					Description: "New channel name",
					Required:    true,
					MinLength:   intPtr(2),
					MaxLength:   intPtr(100),
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        constants.TicketClaimCommandName,
			Description: "Claim this ticket",
		},
		discord.SlashCommandCreate{
			Name:        constants.TicketUnclaimCommandName,
			Description: "Release your claim on this ticket",
		},
	}
}

func intPtr(i int) *int {
	return &i
}

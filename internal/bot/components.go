package bot

import (
	"github.com/disgoorg/disgo/discord"
	"github.com/shadowdev/shadowbot/internal/bot/constants"
	"github.com/shadowdev/shadowbot/internal/bot/utils"
	"github.com/shadowdev/shadowbot/internal/ticket"
)

// surfaceRows returns the action rows of an interactive surface.
func (g *Gateway) surfaceRows(surface ticket.Surface) []discord.ContainerComponent {
	switch surface {
	case ticket.SurfaceNone:
		return nil
	case ticket.SurfaceIntake:
		return []discord.ContainerComponent{
			discord.NewActionRow(g.intakeSelect()),
		}
	case ticket.SurfaceActions:
		return []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewSuccessButton("Claim", constants.ClaimButtonCustomID).WithEmoji(discord.ComponentEmoji{Name: "✋"}),
				discord.NewDangerButton("Close", constants.CloseButtonCustomID).WithEmoji(discord.ComponentEmoji{Name: "🔒"}),
				discord.NewSecondaryButton("Rename", constants.RenameButtonCustomID),
			),
			discord.NewActionRow(
				discord.NewSecondaryButton("Add member", constants.AddMemberButtonCustomID),
				discord.NewSecondaryButton("Remove member", constants.RemoveMemberButtonID),
				discord.NewSecondaryButton("Transcript", constants.TranscriptButtonCustomID),
			),
		}
	case ticket.SurfaceClosed:
		return []discord.ContainerComponent{
			discord.NewActionRow(
				discord.NewSecondaryButton("Transcript", constants.TranscriptButtonCustomID),
				discord.NewDangerButton("Delete", constants.DeleteButtonCustomID).WithEmoji(discord.ComponentEmoji{Name: "🗑️"}),
			),
		}
	default:
		return nil
	}
}

// intakeSelect lists the configured ticket types.
func (g *Gateway) intakeSelect() discord.StringSelectMenuComponent {
	keys := g.config.Tickets.TypeKeys()
	options := make([]discord.StringSelectMenuOption, 0, len(keys))

	for _, key := range keys {
		tt, _ := g.config.Tickets.Type(key)

		option := discord.NewStringSelectMenuOption(tt.Name, key)
		if tt.Description != "" {
			option = option.WithDescription(utils.TruncateString(tt.Description, 100))
		}

		options = append(options, option)
	}

	return discord.NewStringSelectMenu(constants.OpenTicketSelectCustomID, "Select a ticket type", options...)
}

// closeModal asks for an optional close reason.
func closeModal() discord.ModalCreate {
	return discord.NewModalCreateBuilder().
		SetCustomID(constants.CloseModalCustomID).
		SetTitle("Close ticket").
		AddActionRow(
			discord.NewParagraphTextInput(constants.ReasonInputCustomID, "Reason").
				WithRequired(false).
				WithMaxLength(constants.MaxReasonLength).
				WithPlaceholder(ticket.DefaultCloseReason),
		).
		Build()
}

// renameModal asks for a new channel name.
func renameModal() discord.ModalCreate {
	return discord.NewModalCreateBuilder().
		SetCustomID(constants.RenameModalCustomID).
		SetTitle("Rename ticket").
		AddActionRow(
			discord.NewShortTextInput(constants.NameInputCustomID, "New name").
				WithRequired(true).
				WithMinLength(2).
				WithMaxLength(100),
		).
		Build()
}

// memberModal asks for a member mention or ID.
func memberModal(customID, title string) discord.ModalCreate {
	return discord.NewModalCreateBuilder().
		SetCustomID(customID).
		SetTitle(title).
		AddActionRow(
			discord.NewShortTextInput(constants.MemberInputCustomID, "Member mention or ID").
				WithRequired(true).
				WithPlaceholder("@member or 123456789012345678"),
		).
		Build()
}

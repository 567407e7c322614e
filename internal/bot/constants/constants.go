package constants

import "time"

const (
	// Commands.
	TicketPanelCommandName   = "ticket_panel"
	TicketCloseCommandName   = "ticket_close"
	TicketAddCommandName     = "ticket_add"
	TicketRemoveCommandName  = "ticket_remove"
	TicketRenameCommandName  = "ticket_rename"
	TicketClaimCommandName   = "ticket_claim"
	TicketUnclaimCommandName = "ticket_unclaim"

	// Command options.
	ReasonOptionName = "reason"
	MemberOptionName = "member"
	NameOptionName   = "name"

	// Intake panel.
	OpenTicketSelectCustomID = "ticket_open"

	// Ticket actions.
	ClaimButtonCustomID      = "ticket_claim"
	CloseButtonCustomID      = "ticket_close"
	RenameButtonCustomID     = "ticket_rename"
	AddMemberButtonCustomID  = "ticket_add"
	RemoveMemberButtonID     = "ticket_remove"
	TranscriptButtonCustomID = "ticket_transcript"
	DeleteButtonCustomID     = "ticket_delete"

	// Modals.
	CloseModalCustomID        = "ticket_close_modal"
	RenameModalCustomID       = "ticket_rename_modal"
	AddMemberModalCustomID    = "ticket_add_modal"
	RemoveMemberModalCustomID = "ticket_remove_modal"

	ReasonInputCustomID = "reason"
	NameInputCustomID   = "name"
	MemberInputCustomID = "member"

	// Limits.
	MaxReasonLength   = 512
	HistoryPageSize   = 100
	InteractionTimeout = 30 * time.Second
)

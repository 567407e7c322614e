package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// ErrUnknownTarget is returned by a Gateway when the channel, message or user no longer exists.
var ErrUnknownTarget = errors.New("unknown target")

// Surface is a set of interactive controls attached to a message.
type Surface int

const (
	SurfaceNone    Surface = iota // no controls
	SurfaceIntake                 // ticket type selection of the intake panel
	SurfaceActions                // claim, close, rename, transcript, add and remove
	SurfaceClosed                 // delete
)

// Grant is a channel access entry for a user or a role.
type Grant struct {
	TargetID snowflake.ID
	Role     bool
	// Send allows writing in the channel; viewing and reading history are always granted.
	Send bool
}

// ChannelSpec describes a ticket channel to create.
type ChannelSpec struct {
	ServerID   snowflake.ID
	CategoryID snowflake.ID
	Name       string
	Grants     []Grant
}

// ChannelInfo is a channel as reported by the gateway.
type ChannelInfo struct {
	ID       snowflake.ID
	ServerID snowflake.ID
	ParentID snowflake.ID
	Name     string
	Category bool
}

// EmbedField is a titled block inside an embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Embed is a formatted card.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
	Timestamp   time.Time
}

// File is an attachment.
type File struct {
	Name string
	Data []byte
}

// Message is an outbound message.
type Message struct {
	Content string
	Embeds  []Embed
	Surface Surface
	// MentionUsers lists the users that may be pinged by Content.
	MentionUsers []snowflake.ID
	// MentionRoles lists the roles that may be pinged by Content.
	MentionRoles []snowflake.ID
	ReplyTo      snowflake.ID
	Files        []File
}

// HistoryMessage is a message read back from a channel.
type HistoryMessage struct {
	ID          snowflake.ID
	AuthorID    snowflake.ID
	AuthorName  string
	Content     string
	CreatedAt   time.Time
	EmbedTitles []string
}

// Gateway delivers messages and manages channels on the chat platform.
// Implementations return ErrUnknownTarget when the target is gone.
type Gateway interface {
	// SelfID is the bot's own user ID, recorded as the closer of autoclosed tickets.
	SelfID() snowflake.ID
	Channel(ctx context.Context, channelID snowflake.ID) (*ChannelInfo, error)
	CreateChannel(ctx context.Context, spec ChannelSpec) (*ChannelInfo, error)
	RenameChannel(ctx context.Context, channelID snowflake.ID, name string) error
	DeleteChannel(ctx context.Context, channelID snowflake.ID) error
	SetAccess(ctx context.Context, channelID snowflake.ID, grant Grant) error
	RemoveAccess(ctx context.Context, channelID, targetID snowflake.ID) error
	// RevokeSend denies writing to every access entry except the server default.
	RevokeSend(ctx context.Context, channelID snowflake.ID) error
	SendMessage(ctx context.Context, channelID snowflake.ID, msg Message) (snowflake.ID, error)
	EditSurface(ctx context.Context, channelID, messageID snowflake.ID, surface Surface) error
	SendDirect(ctx context.Context, userID snowflake.ID, msg Message) error
	// History returns up to limit recent messages, newest first.
	History(ctx context.Context, channelID snowflake.ID, limit int) ([]HistoryMessage, error)
}

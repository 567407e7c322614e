package ticket

import (
	"strings"
	"unicode"

	"github.com/shadowdev/shadowbot/internal/setup/config"
)

// ChannelName turns a display name into a ticket channel name: lowercase,
// whitespace collapsed to dashes, at most the maximum name length.
func ChannelName(name string) string {
	name = strings.ToLower(strings.Join(strings.FieldsFunc(name, unicode.IsSpace), "-"))
	if !strings.HasPrefix(name, "ticket-") && !strings.HasPrefix(name, ClosedPrefix) {
		name = "ticket-" + name
	}

	runes := []rune(name)
	if len(runes) > config.MaxTicketNameLength {
		runes = runes[:config.MaxTicketNameLength]
	}

	return string(runes)
}

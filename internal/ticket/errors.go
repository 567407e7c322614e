package ticket

import (
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrPersistence means the store was unreachable or rejected a write.
	ErrPersistence = errors.New("persistence failure")
	// ErrNotFound means the ticket, channel or member does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the actor lacks the required capability.
	ErrUnauthorized = errors.New("not authorized")
	// ErrValidation means the input was rejected.
	ErrValidation = errors.New("invalid input")
	// ErrExternalService means a gateway call failed.
	ErrExternalService = errors.New("external service failure")
)

// ValidationError names the field and constraint that rejected an input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

// Is lets errors.Is match ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AlreadyClaimedError is returned when claiming a ticket someone else holds.
type AlreadyClaimedError struct {
	By snowflake.ID
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("ticket already claimed by %d", e.By)
}

// UserMessage converts an error into a short message safe to show users.
// Storage and gateway internals are never included.
func UserMessage(err error) string {
	var claimed *AlreadyClaimedError
	var invalid *ValidationError

	switch {
	case err == nil:
		return ""
	case errors.As(err, &claimed):
		return fmt.Sprintf("❌ This ticket is already claimed by <@%d>", claimed.By)
	case errors.As(err, &invalid):
		return fmt.Sprintf("❌ Invalid %s: %s", invalid.Field, invalid.Reason)
	case errors.Is(err, ErrUnauthorized):
		return "❌ You lack permission to do that"
	case errors.Is(err, ErrNotFound):
		return "❌ There is no such ticket here"
	case errors.Is(err, ErrValidation):
		return "❌ Invalid input"
	default:
		return "❌ An error occurred, please try again"
	}
}

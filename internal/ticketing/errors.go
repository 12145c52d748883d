package ticketing

import (
	"errors"
	"fmt"
)

// The coordinator's error taxonomy. Every error is terminal: the coordinator
// never retries on its own, callers may re-issue a purchase with a smaller
// quantity.
var (
	// ErrNotAuthorized rejects a purchase when the ticket type is group
	// restricted and the buyer belongs to none of its groups.
	ErrNotAuthorized = errors.New("not authorized for this ticket type")

	// ErrNotOwner rejects rating attempts on somebody else's ticket.
	ErrNotOwner = errors.New("ticket belongs to another user")

	// ErrNotFound covers unresolved event, ticket type and ticket ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput covers malformed quantities, ratings and definitions.
	ErrInvalidInput = errors.New("invalid input")
)

// InsufficientInventoryError reports a purchase that asked for more than the
// remaining capacity. Remaining is exact at the time of the check so clients
// can adjust and retry.
type InsufficientInventoryError struct {
	Remaining int
}

func (e *InsufficientInventoryError) Error() string {
	return fmt.Sprintf("only %d tickets of this type remain for purchase", e.Remaining)
}

// HasSoldTicketsError blocks destructive edits of a ticket type that has at
// least one issued ticket. TicketTypeID names the conflicting row.
type HasSoldTicketsError struct {
	TicketTypeID int64
}

func (e *HasSoldTicketsError) Error() string {
	return fmt.Sprintf("ticket type %d has sold tickets", e.TicketTypeID)
}

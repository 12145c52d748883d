package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Image       string    `bun:"image,nullzero" json:"image,omitempty"`
	Date        time.Time `bun:"date,notnull" json:"date"`
	Description string    `bun:"description,nullzero" json:"description"`
	Location    string    `bun:"location,nullzero" json:"location"`
	Latitude    float64   `bun:"latitude,notnull" json:"latitude"`
	Longitude   float64   `bun:"longitude,notnull" json:"longitude"`
	IsVisible   bool      `bun:"is_visible,notnull,default:false" json:"is_visible"`

	TicketTypes []*TicketType `bun:"rel:has-many,join:id=event_id" json:"ticket_types,omitempty"`
}

type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID                int64           `bun:"id,pk,autoincrement" json:"id"`
	EventID           int64           `bun:"event_id,notnull" json:"event_id"`
	Name              string          `bun:"name,notnull" json:"name"`
	Price             decimal.Decimal `bun:"price,notnull" json:"price"`
	QuantityAvailable int             `bun:"quantity_available,notnull" json:"quantity_available"`

	Event  *Event   `bun:"rel:belongs-to,join:event_id=id" json:"event,omitempty"`
	Groups []*Group `bun:"m2m:ticket_type_groups,join:TicketType=Group" json:"groups,omitempty"`
}

// TicketTypeGroup is the join table restricting a ticket type to groups.
type TicketTypeGroup struct {
	bun.BaseModel `bun:"table:ticket_type_groups"`

	TicketTypeID int64       `bun:"ticket_type_id,pk"`
	TicketType   *TicketType `bun:"rel:belongs-to,join:ticket_type_id=id"`
	GroupID      int64       `bun:"group_id,pk"`
	Group        *Group      `bun:"rel:belongs-to,join:group_id=id"`
}

// GroupIDs returns the ids of the groups authorized to buy this ticket type.
func (t *TicketType) GroupIDs() []int64 {
	ids := make([]int64, 0, len(t.Groups))
	for _, g := range t.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}

// AuthorizedFor reports whether a viewer with the given group memberships may
// see and purchase this ticket type. An empty group set means the type is open
// to everyone; staff always pass. The same predicate gates both catalog
// listings and the purchase path.
func (t *TicketType) AuthorizedFor(groupIDs []int64, isStaff bool) bool {
	if isStaff || len(t.Groups) == 0 {
		return true
	}
	for _, g := range t.Groups {
		for _, id := range groupIDs {
			if g.ID == id {
				return true
			}
		}
	}
	return false
}

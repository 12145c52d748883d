package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseRequest asks the coordinator for a quantity of one ticket type.
type PurchaseRequest struct {
	TicketTypeID int64 `json:"ticket_type_id"`
	Quantity     int   `json:"quantity"`
}

// RatingRequest sets the rating fields on a purchased ticket.
type RatingRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"rating_comment"`
}

// TicketTypeDefinition is one entry of a ticket-type reconciliation. A
// definition with an ID that resolves to an existing row updates it in place;
// anything else creates a new row. Rows of the event not covered by any
// definition are deleted, subject to the sold-ticket restriction.
type TicketTypeDefinition struct {
	ID                int64           `json:"id,omitempty"`
	Name              string          `json:"name"`
	Price             decimal.Decimal `json:"price"`
	QuantityAvailable int             `json:"quantity_available"`
	GroupIDs          []int64         `json:"groups"`
}

// EventUpdate carries a partial event edit; nil fields are left untouched.
// TicketTypes, when present, replaces the event's whole ticket-type list.
type EventUpdate struct {
	Name        *string                `json:"name"`
	Image       *string                `json:"image"`
	Date        *time.Time             `json:"date"`
	Description *string                `json:"description"`
	Location    *string                `json:"location"`
	Latitude    *float64               `json:"latitude"`
	Longitude   *float64               `json:"longitude"`
	IsVisible   *bool                  `json:"is_visible"`
	TicketTypes []TicketTypeDefinition `json:"ticket_types"`
}

// Apply merges the set fields of the update into the event.
func (u *EventUpdate) Apply(e *Event) {
	if u.Name != nil {
		e.Name = *u.Name
	}
	if u.Image != nil {
		e.Image = *u.Image
	}
	if u.Date != nil {
		e.Date = *u.Date
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.Location != nil {
		e.Location = *u.Location
	}
	if u.Latitude != nil {
		e.Latitude = *u.Latitude
	}
	if u.Longitude != nil {
		e.Longitude = *u.Longitude
	}
	if u.IsVisible != nil {
		e.IsVisible = *u.IsVisible
	}
}

// EventCreate is the payload for a new event, optionally with its initial
// ticket types.
type EventCreate struct {
	Name        string                 `json:"name"`
	Image       string                 `json:"image"`
	Date        time.Time              `json:"date"`
	Description string                 `json:"description"`
	Location    string                 `json:"location"`
	Latitude    float64                `json:"latitude"`
	Longitude   float64                `json:"longitude"`
	IsVisible   bool                   `json:"is_visible"`
	TicketTypes []TicketTypeDefinition `json:"ticket_types"`
}

// TicketTypeUpdate carries a partial ticket-type edit.
type TicketTypeUpdate struct {
	Name              *string          `json:"name"`
	Price             *decimal.Decimal `json:"price"`
	QuantityAvailable *int             `json:"quantity_available"`
	GroupIDs          *[]int64         `json:"groups"`
}

// Apply merges the set fields of the update into the ticket type. Group
// membership is handled separately by the store.
func (u *TicketTypeUpdate) Apply(t *TicketType) {
	if u.Name != nil {
		t.Name = *u.Name
	}
	if u.Price != nil {
		t.Price = *u.Price
	}
	if u.QuantityAvailable != nil {
		t.QuantityAvailable = *u.QuantityAvailable
	}
}

package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Ticket is a user's cumulative holding of one ticket type. At most one row
// exists per (user, ticket type) pair; repeat purchases grow Quantity.
type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	TicketTypeID  int64     `bun:"ticket_type_id,notnull,unique:tickets_user_type" json:"ticket_type_id"`
	UserID        int64     `bun:"user_id,notnull,unique:tickets_user_type" json:"user_id"`
	PurchaseDate  time.Time `bun:"purchase_date,notnull" json:"purchase_date"`
	Quantity      int       `bun:"quantity,notnull" json:"quantity"`
	Rating        *int      `bun:"rating,nullzero" json:"rating,omitempty"`
	RatingComment *string   `bun:"rating_comment,nullzero" json:"rating_comment,omitempty"`
	QRCode        []byte    `bun:"qr_code,nullzero" json:"qr_code,omitempty"`

	TicketType *TicketType `bun:"rel:belongs-to,join:ticket_type_id=id" json:"ticket_type,omitempty"`
	User       *User       `bun:"rel:belongs-to,join:user_id=id" json:"-"`
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"ms-events/internal/models"
	"ms-events/internal/ticketing"
)

// DB is the inventory ledger: the durable record of per-user, per-ticket-type
// purchased quantity. All writes that consume capacity go through Purchase,
// which runs the remaining-capacity check and the write in one transaction.
type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	bunDB.RegisterModel((*models.UserGroup)(nil), (*models.TicketTypeGroup)(nil))
	return &DB{Bun: bunDB}
}

func (d *DB) GetTicketByID(ctx context.Context, id int64) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Relation("TicketType").
		Relation("TicketType.Event").
		Where("ticket.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticketing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (d *DB) GetTicketsByUser(ctx context.Context, userID int64) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Relation("TicketType").
		Relation("TicketType.Event").
		Relation("TicketType.Groups").
		Where("ticket.user_id = ?", userID).
		Order("purchase_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

// FindTicket looks up the purchase row for one (user, ticket type) pair.
// Returns nil without error when the user has not bought this type yet.
func (d *DB) FindTicket(ctx context.Context, userID, ticketTypeID int64) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("user_id = ?", userID).
		Where("ticket_type_id = ?", ticketTypeID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// GetTicketType loads a ticket type with its authorized groups.
func (d *DB) GetTicketType(ctx context.Context, id int64) (*models.TicketType, error) {
	var tt models.TicketType
	err := d.Bun.NewSelect().
		Model(&tt).
		Relation("Groups").
		Where("ticket_type.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticketing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tt, nil
}

// SoldQuantity sums the issued quantities for a ticket type.
func (d *DB) SoldQuantity(ctx context.Context, ticketTypeID int64) (int, error) {
	return soldQuantity(ctx, d.Bun, ticketTypeID)
}

func soldQuantity(ctx context.Context, idb bun.IDB, ticketTypeID int64) (int, error) {
	var sold int
	err := idb.NewSelect().
		Model((*models.Ticket)(nil)).
		ColumnExpr("COALESCE(SUM(quantity), 0)").
		Where("ticket_type_id = ?", ticketTypeID).
		Scan(ctx, &sold)
	return sold, err
}

// Purchase runs the capacity check and the ticket write as one atomic unit.
// The ticket-type row is locked for the duration of the transaction on
// postgres, so two concurrent purchases of the same type cannot both observe
// a stale remaining count. An existing (user, ticket type) row is topped up,
// otherwise a new row is created with the given purchase date and QR code.
func (d *DB) Purchase(ctx context.Context, userID, ticketTypeID int64, quantity int, now time.Time, qrCode []byte) (*models.Ticket, error) {
	var result *models.Ticket

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var tt models.TicketType
		q := tx.NewSelect().
			Model(&tt).
			Where("id = ?", ticketTypeID)
		if d.Bun.Dialect().Name() == dialect.PG {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ticketing.ErrNotFound
			}
			return fmt.Errorf("lock ticket type %d: %w", ticketTypeID, err)
		}

		sold, err := soldQuantity(ctx, tx, ticketTypeID)
		if err != nil {
			return fmt.Errorf("sum sold quantity: %w", err)
		}
		remaining := tt.QuantityAvailable - sold
		if quantity > remaining {
			return &ticketing.InsufficientInventoryError{Remaining: remaining}
		}

		var existing models.Ticket
		err = tx.NewSelect().
			Model(&existing).
			Where("user_id = ?", userID).
			Where("ticket_type_id = ?", ticketTypeID).
			Limit(1).
			Scan(ctx)
		switch {
		case err == nil:
			// Idempotent top-up: merge into the existing row, purchase
			// date stays at the first purchase.
			existing.Quantity += quantity
			if _, err := tx.NewUpdate().
				Model(&existing).
				Column("quantity").
				Where("id = ?", existing.ID).
				Exec(ctx); err != nil {
				return fmt.Errorf("merge ticket %d: %w", existing.ID, err)
			}
			result = &existing
			return nil
		case errors.Is(err, sql.ErrNoRows):
			ticket := models.Ticket{
				TicketTypeID: ticketTypeID,
				UserID:       userID,
				PurchaseDate: now,
				Quantity:     quantity,
				QRCode:       qrCode,
			}
			if _, err := tx.NewInsert().Model(&ticket).Exec(ctx); err != nil {
				return fmt.Errorf("create ticket: %w", err)
			}
			result = &ticket
			return nil
		default:
			return fmt.Errorf("find existing ticket: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateRating overwrites the rating fields of a ticket. Ownership is checked
// by the coordinator, not here.
func (d *DB) UpdateRating(ctx context.Context, ticket *models.Ticket) error {
	_, err := d.Bun.NewUpdate().
		Model(ticket).
		Column("rating", "rating_comment").
		Where("id = ?", ticket.ID).
		Exec(ctx)
	return err
}

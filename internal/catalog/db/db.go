package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-events/internal/models"
	"ms-events/internal/ticketing"
)

// DB is the catalog store: plain reads and non-destructive writes for events
// and ticket types. Destructive edits (deletes, full reconciliation) belong
// to the coordinator's ledger, which owns the sold-ticket restriction.
type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	bunDB.RegisterModel((*models.UserGroup)(nil), (*models.TicketTypeGroup)(nil))
	return &DB{Bun: bunDB}
}

// ListEvents returns events with their ticket types and group restrictions.
// visibleOnly drops hidden events for non-staff viewers.
func (d *DB) ListEvents(ctx context.Context, visibleOnly bool) ([]models.Event, error) {
	var events []models.Event
	q := d.Bun.NewSelect().
		Model(&events).
		Relation("TicketTypes").
		Relation("TicketTypes.Groups").
		Order("date ASC")
	if visibleOnly {
		q = q.Where("is_visible = ?", true)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

func (d *DB) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Relation("TicketTypes").
		Relation("TicketTypes.Groups").
		Where("event.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticketing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// CreateEvent inserts an event together with its initial ticket types and
// their group links in one transaction.
func (d *DB) CreateEvent(ctx context.Context, event *models.Event, defs []models.TicketTypeDefinition) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
			return fmt.Errorf("create event: %w", err)
		}
		for _, def := range defs {
			tt := models.TicketType{
				EventID:           event.ID,
				Name:              def.Name,
				Price:             def.Price,
				QuantityAvailable: def.QuantityAvailable,
			}
			if _, err := tx.NewInsert().Model(&tt).Exec(ctx); err != nil {
				return fmt.Errorf("create ticket type: %w", err)
			}
			if err := linkGroups(ctx, tx, tt.ID, def.GroupIDs); err != nil {
				return err
			}
			event.TicketTypes = append(event.TicketTypes, &tt)
		}
		return nil
	})
}

func (d *DB) UpdateEvent(ctx context.Context, event *models.Event) error {
	res, err := d.Bun.NewUpdate().
		Model(event).
		Column("name", "image", "date", "description", "location", "latitude", "longitude", "is_visible").
		Where("id = ?", event.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ticketing.ErrNotFound
	}
	return nil
}

func (d *DB) EventExists(ctx context.Context, id int64) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Event)(nil)).
		Where("id = ?", id).
		Exists(ctx)
}

func (d *DB) ListTicketTypes(ctx context.Context, eventID int64) ([]models.TicketType, error) {
	var types []models.TicketType
	err := d.Bun.NewSelect().
		Model(&types).
		Relation("Groups").
		Where("event_id = ?", eventID).
		Order("ticket_type.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return types, nil
}

func (d *DB) GetTicketType(ctx context.Context, id int64) (*models.TicketType, error) {
	var tt models.TicketType
	err := d.Bun.NewSelect().
		Model(&tt).
		Relation("Groups").
		Relation("Event").
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

// CreateTicketType inserts a ticket type with its group links.
func (d *DB) CreateTicketType(ctx context.Context, tt *models.TicketType, groupIDs []int64) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(tt).Exec(ctx); err != nil {
			return fmt.Errorf("create ticket type: %w", err)
		}
		return linkGroups(ctx, tx, tt.ID, groupIDs)
	})
}

// UpdateTicketType persists field edits; groupIDs, when non-nil, replaces the
// whole group set.
func (d *DB) UpdateTicketType(ctx context.Context, tt *models.TicketType, groupIDs *[]int64) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		// Capacity may never drop below what is already sold, otherwise
		// remaining counts go negative.
		var sold int
		if err := tx.NewSelect().
			Model((*models.Ticket)(nil)).
			ColumnExpr("COALESCE(SUM(quantity), 0)").
			Where("ticket_type_id = ?", tt.ID).
			Scan(ctx, &sold); err != nil {
			return fmt.Errorf("count sold tickets for ticket type %d: %w", tt.ID, err)
		}
		if tt.QuantityAvailable < sold {
			return fmt.Errorf("%w: quantity_available %d is below the %d already sold",
				ticketing.ErrInvalidInput, tt.QuantityAvailable, sold)
		}
		if _, err := tx.NewUpdate().
			Model(tt).
			Column("name", "price", "quantity_available").
			Where("id = ?", tt.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("update ticket type %d: %w", tt.ID, err)
		}
		if groupIDs == nil {
			return nil
		}
		if _, err := tx.NewDelete().
			Model((*models.TicketTypeGroup)(nil)).
			Where("ticket_type_id = ?", tt.ID).
			Exec(ctx); err != nil {
			return fmt.Errorf("clear groups of ticket type %d: %w", tt.ID, err)
		}
		return linkGroups(ctx, tx, tt.ID, *groupIDs)
	})
}

func linkGroups(ctx context.Context, tx bun.Tx, ticketTypeID int64, groupIDs []int64) error {
	if len(groupIDs) == 0 {
		return nil
	}
	links := make([]models.TicketTypeGroup, 0, len(groupIDs))
	for _, gid := range groupIDs {
		links = append(links, models.TicketTypeGroup{TicketTypeID: ticketTypeID, GroupID: gid})
	}
	if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
		return fmt.Errorf("link groups to ticket type %d: %w", ticketTypeID, err)
	}
	return nil
}

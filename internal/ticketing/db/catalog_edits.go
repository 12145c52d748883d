package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"ms-events/internal/models"
	"ms-events/internal/ticketing"
)

// Destructive catalog edits live with the ledger because the sold-ticket
// restriction has to be checked and acted on inside one transaction.

func ticketCount(ctx context.Context, tx bun.Tx, ticketTypeID int64) (int, error) {
	return tx.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("ticket_type_id = ?", ticketTypeID).
		Count(ctx)
}

// DeleteEvent removes an event and its ticket types. Any ticket type with at
// least one issued ticket aborts the whole deletion.
func (d *DB) DeleteEvent(ctx context.Context, eventID int64) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.Event)(nil)).
			Where("id = ?", eventID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return ticketing.ErrNotFound
		}

		var types []models.TicketType
		if err := tx.NewSelect().
			Model(&types).
			Where("event_id = ?", eventID).
			Scan(ctx); err != nil {
			return fmt.Errorf("load ticket types for event %d: %w", eventID, err)
		}

		for _, tt := range types {
			n, err := ticketCount(ctx, tx, tt.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return &ticketing.HasSoldTicketsError{TicketTypeID: tt.ID}
			}
		}

		for _, tt := range types {
			if err := deleteTicketTypeRow(ctx, tx, tt.ID); err != nil {
				return err
			}
		}

		_, err = tx.NewDelete().
			Model((*models.Event)(nil)).
			Where("id = ?", eventID).
			Exec(ctx)
		return err
	})
}

// DeleteTicketType removes a single ticket type unless tickets reference it.
func (d *DB) DeleteTicketType(ctx context.Context, ticketTypeID int64) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.TicketType)(nil)).
			Where("id = ?", ticketTypeID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return ticketing.ErrNotFound
		}

		n, err := ticketCount(ctx, tx, ticketTypeID)
		if err != nil {
			return err
		}
		if n > 0 {
			return &ticketing.HasSoldTicketsError{TicketTypeID: ticketTypeID}
		}
		return deleteTicketTypeRow(ctx, tx, ticketTypeID)
	})
}

func deleteTicketTypeRow(ctx context.Context, tx bun.Tx, ticketTypeID int64) error {
	if _, err := tx.NewDelete().
		Model((*models.TicketTypeGroup)(nil)).
		Where("ticket_type_id = ?", ticketTypeID).
		Exec(ctx); err != nil {
		return fmt.Errorf("clear groups of ticket type %d: %w", ticketTypeID, err)
	}
	_, err := tx.NewDelete().
		Model((*models.TicketType)(nil)).
		Where("id = ?", ticketTypeID).
		Exec(ctx)
	return err
}

// ReplaceTicketTypes reconciles an event's ticket-type list against the given
// definitions in one transaction. Definitions whose id resolves update that
// row and its group set, the rest create new rows, and existing rows not
// covered by any definition are deleted. A sold-ticket conflict on any
// deletion candidate rolls the whole reconciliation back.
func (d *DB) ReplaceTicketTypes(ctx context.Context, eventID int64, defs []models.TicketTypeDefinition) ([]models.TicketType, error) {
	var result []models.TicketType

	err := d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		result = result[:0]

		exists, err := tx.NewSelect().
			Model((*models.Event)(nil)).
			Where("id = ?", eventID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return ticketing.ErrNotFound
		}

		var existing []models.TicketType
		if err := tx.NewSelect().
			Model(&existing).
			Where("event_id = ?", eventID).
			Scan(ctx); err != nil {
			return fmt.Errorf("load ticket types for event %d: %w", eventID, err)
		}
		byID := make(map[int64]*models.TicketType, len(existing))
		for i := range existing {
			byID[existing[i].ID] = &existing[i]
		}

		kept := make(map[int64]bool, len(defs))
		for _, def := range defs {
			if current, ok := byID[def.ID]; def.ID != 0 && ok {
				sold, err := soldQuantity(ctx, tx, current.ID)
				if err != nil {
					return err
				}
				if def.QuantityAvailable < sold {
					return fmt.Errorf("%w: quantity_available %d is below the %d already sold for ticket type %d",
						ticketing.ErrInvalidInput, def.QuantityAvailable, sold, current.ID)
				}
				current.Name = def.Name
				current.Price = def.Price
				current.QuantityAvailable = def.QuantityAvailable
				if _, err := tx.NewUpdate().
					Model(current).
					Column("name", "price", "quantity_available").
					Where("id = ?", current.ID).
					Exec(ctx); err != nil {
					return fmt.Errorf("update ticket type %d: %w", current.ID, err)
				}
				if err := setGroupLinks(ctx, tx, current.ID, def.GroupIDs); err != nil {
					return err
				}
				kept[current.ID] = true
				result = append(result, *current)
				continue
			}

			// No id, or an id that does not resolve to a row of this
			// event: create a fresh ticket type.
			tt := models.TicketType{
				EventID:           eventID,
				Name:              def.Name,
				Price:             def.Price,
				QuantityAvailable: def.QuantityAvailable,
			}
			if _, err := tx.NewInsert().Model(&tt).Exec(ctx); err != nil {
				return fmt.Errorf("create ticket type: %w", err)
			}
			if err := setGroupLinks(ctx, tx, tt.ID, def.GroupIDs); err != nil {
				return err
			}
			kept[tt.ID] = true
			result = append(result, tt)
		}

		for _, tt := range existing {
			if kept[tt.ID] {
				continue
			}
			n, err := ticketCount(ctx, tx, tt.ID)
			if err != nil {
				return err
			}
			if n > 0 {
				return &ticketing.HasSoldTicketsError{TicketTypeID: tt.ID}
			}
			if err := deleteTicketTypeRow(ctx, tx, tt.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func setGroupLinks(ctx context.Context, tx bun.Tx, ticketTypeID int64, groupIDs []int64) error {
	if _, err := tx.NewDelete().
		Model((*models.TicketTypeGroup)(nil)).
		Where("ticket_type_id = ?", ticketTypeID).
		Exec(ctx); err != nil {
		return fmt.Errorf("clear groups of ticket type %d: %w", ticketTypeID, err)
	}
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

package ticketing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ms-events/internal/logger"
	"ms-events/internal/models"
	qr "ms-events/internal/ticketing/qr_generator"
)

// maxPrice is the ceiling for ticket prices (two decimal places, < 100).
var maxPrice = decimal.NewFromFloat(99.99)

type LedgerDB interface {
	GetTicketByID(ctx context.Context, id int64) (*models.Ticket, error)
	GetTicketsByUser(ctx context.Context, userID int64) ([]models.Ticket, error)
	GetTicketType(ctx context.Context, id int64) (*models.TicketType, error)
	SoldQuantity(ctx context.Context, ticketTypeID int64) (int, error)
	Purchase(ctx context.Context, userID, ticketTypeID int64, quantity int, now time.Time, qrCode []byte) (*models.Ticket, error)
	UpdateRating(ctx context.Context, ticket *models.Ticket) error
	DeleteEvent(ctx context.Context, eventID int64) error
	DeleteTicketType(ctx context.Context, ticketTypeID int64) error
	ReplaceTicketTypes(ctx context.Context, eventID int64, defs []models.TicketTypeDefinition) ([]models.TicketType, error)
}

type PurchaseLock interface {
	LockTicketType(ctx context.Context, ticketTypeID int64, token string) (bool, error)
	UnlockTicketType(ctx context.Context, ticketTypeID int64, token string) error
}

type EventPublisher interface {
	PublishTicketPurchased(ticket models.Ticket) error
	PublishEventDeleted(eventID int64) error
}

// Coordinator is the only path allowed to create or grow ticket rows and to
// run destructive catalog edits. It owns group gating, the lock around the
// purchase transaction, and the sold-ticket restriction.
type Coordinator struct {
	DB     LedgerDB
	Lock   PurchaseLock
	Kafka  EventPublisher
	QR     *qr.QRGenerator
	Logger *logger.Logger

	// lockRetryDelay paces retries while another purchaser holds the
	// ticket-type lock.
	lockRetryDelay time.Duration
	lockRetries    int
}

func NewCoordinator(db LedgerDB, lock PurchaseLock, kafka EventPublisher, qrGen *qr.QRGenerator, log *logger.Logger) *Coordinator {
	return &Coordinator{
		DB:             db,
		Lock:           lock,
		Kafka:          kafka,
		QR:             qrGen,
		Logger:         log,
		lockRetryDelay: 50 * time.Millisecond,
		lockRetries:    100,
	}
}

// Purchase validates group entitlement and capacity, then merges into the
// buyer's existing ticket row or creates a new one. The capacity check and
// the write run inside one transaction; a redis lock per ticket type keeps
// concurrent purchasers from contending on the same row.
func (c *Coordinator) Purchase(ctx context.Context, viewer models.Viewer, req models.PurchaseRequest) (*models.Ticket, error) {
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	tt, err := c.DB.GetTicketType(ctx, req.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if !tt.AuthorizedFor(viewer.GroupIDs, viewer.IsStaff) {
		return nil, ErrNotAuthorized
	}

	token := uuid.NewString()
	if err := c.acquireLock(ctx, req.TicketTypeID, token); err != nil {
		return nil, err
	}
	defer func() {
		if err := c.Lock.UnlockTicketType(ctx, req.TicketTypeID, token); err != nil {
			c.logError("PURCHASE", fmt.Sprintf("failed to unlock ticket type %d: %v", req.TicketTypeID, err))
		}
	}()

	// The QR is only stored when a new row is created; a merge keeps the
	// one minted on first purchase.
	qrCode, err := c.QR.GenerateEncryptedQR(qr.Payload{
		Serial:       uuid.NewString(),
		UserID:       viewer.UserID,
		TicketTypeID: req.TicketTypeID,
		IssuedAt:     time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("generate QR: %w", err)
	}

	ticket, err := c.DB.Purchase(ctx, viewer.UserID, req.TicketTypeID, req.Quantity, time.Now(), qrCode)
	if err != nil {
		return nil, err
	}

	if c.Kafka != nil {
		if err := c.Kafka.PublishTicketPurchased(*ticket); err != nil {
			c.logError("KAFKA", fmt.Sprintf("failed to publish ticket purchase %d: %v", ticket.ID, err))
		}
	}
	return ticket, nil
}

func (c *Coordinator) acquireLock(ctx context.Context, ticketTypeID int64, token string) error {
	for i := 0; i < c.lockRetries; i++ {
		ok, err := c.Lock.LockTicketType(ctx, ticketTypeID, token)
		if err != nil {
			return fmt.Errorf("purchase lock error: %w", err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.lockRetryDelay):
		}
	}
	return fmt.Errorf("ticket type %d is busy, try again", ticketTypeID)
}

// Remaining reports the purchasable quantity left for a ticket type.
func (c *Coordinator) Remaining(ctx context.Context, ticketTypeID int64) (int, error) {
	tt, err := c.DB.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return 0, err
	}
	sold, err := c.DB.SoldQuantity(ctx, ticketTypeID)
	if err != nil {
		return 0, err
	}
	return tt.QuantityAvailable - sold, nil
}

// Rate overwrites the rating fields of a ticket. Only the owning user may
// rate; staff get no bypass here.
func (c *Coordinator) Rate(ctx context.Context, viewer models.Viewer, ticketID int64, req models.RatingRequest) (*models.Ticket, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}

	ticket, err := c.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != viewer.UserID {
		return nil, ErrNotOwner
	}

	rating := req.Rating
	ticket.Rating = &rating
	ticket.RatingComment = req.Comment
	if err := c.DB.UpdateRating(ctx, ticket); err != nil {
		return nil, fmt.Errorf("update rating: %w", err)
	}
	return ticket, nil
}

// ListPurchases returns the viewer's tickets, newest first.
func (c *Coordinator) ListPurchases(ctx context.Context, viewer models.Viewer) ([]models.Ticket, error) {
	return c.DB.GetTicketsByUser(ctx, viewer.UserID)
}

// DeleteEvent cascades over the event's ticket types unless any of them has
// issued tickets.
func (c *Coordinator) DeleteEvent(ctx context.Context, eventID int64) error {
	if err := c.DB.DeleteEvent(ctx, eventID); err != nil {
		return err
	}
	if c.Kafka != nil {
		if err := c.Kafka.PublishEventDeleted(eventID); err != nil {
			c.logError("KAFKA", fmt.Sprintf("failed to publish event deletion %d: %v", eventID, err))
		}
	}
	return nil
}

// DeleteTicketType removes one ticket type, restricted by sold tickets.
func (c *Coordinator) DeleteTicketType(ctx context.Context, ticketTypeID int64) error {
	return c.DB.DeleteTicketType(ctx, ticketTypeID)
}

// ReplaceTicketTypes reconciles an event's ticket-type list atomically: on a
// sold-ticket conflict nothing commits and the conflicting id surfaces in the
// error.
func (c *Coordinator) ReplaceTicketTypes(ctx context.Context, eventID int64, defs []models.TicketTypeDefinition) ([]models.TicketType, error) {
	for _, def := range defs {
		if err := ValidateDefinition(def); err != nil {
			return nil, err
		}
	}
	return c.DB.ReplaceTicketTypes(ctx, eventID, defs)
}

// ValidateDefinition checks the field constraints of a ticket-type
// definition: non-empty name, price in (0, 99.99] with at most two decimal
// places, non-negative capacity.
func ValidateDefinition(def models.TicketTypeDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: ticket type name is required", ErrInvalidInput)
	}
	if def.Price.LessThanOrEqual(decimal.Zero) || def.Price.GreaterThan(maxPrice) {
		return fmt.Errorf("%w: price must be between 0.01 and 99.99", ErrInvalidInput)
	}
	if def.Price.Exponent() < -2 {
		return fmt.Errorf("%w: price has more than two decimal places", ErrInvalidInput)
	}
	if def.QuantityAvailable < 0 {
		return fmt.Errorf("%w: quantity_available cannot be negative", ErrInvalidInput)
	}
	return nil
}

func (c *Coordinator) logError(category, message string) {
	if c.Logger != nil {
		c.Logger.Error(category, message)
	}
}

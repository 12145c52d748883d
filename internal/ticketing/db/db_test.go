package db_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-events/internal/models"
	"ms-events/internal/ticketing"
	"ms-events/internal/ticketing/db"
)

func setupTestDB(t *testing.T) (*db.DB, *bun.DB) {
	// Connect to an in-memory SQLite DB for testing. A single connection
	// keeps every statement on the same in-memory database and serializes
	// the transactions.
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	ledger := db.New(bunDB)

	// Create required tables
	tables := []interface{}{
		(*models.Group)(nil),
		(*models.User)(nil),
		(*models.UserGroup)(nil),
		(*models.Event)(nil),
		(*models.TicketType)(nil),
		(*models.TicketTypeGroup)(nil),
		(*models.Ticket)(nil),
	}
	for _, m := range tables {
		if _, err := bunDB.NewCreateTable().Model(m).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}

	return ledger, bunDB
}

func createTestEvent(t *testing.T, bunDB *bun.DB, capacity int) models.TicketType {
	event := models.Event{
		Name:      "Test Festival",
		Date:      time.Now().AddDate(0, 1, 0),
		IsVisible: true,
	}
	_, err := bunDB.NewInsert().Model(&event).Exec(context.Background())
	assert.NoError(t, err)

	tt := models.TicketType{
		EventID:           event.ID,
		Name:              "General",
		Price:             decimal.NewFromFloat(10.00),
		QuantityAvailable: capacity,
	}
	_, err = bunDB.NewInsert().Model(&tt).Exec(context.Background())
	assert.NoError(t, err)
	return tt
}

func TestPurchaseCreatesTicket(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	tt := createTestEvent(t, bunDB, 10)
	now := time.Now()

	ticket, err := ledger.Purchase(context.Background(), 1, tt.ID, 3, now, []byte("qr-bytes"))
	assert.NoError(t, err)
	assert.NotNil(t, ticket)
	assert.Equal(t, 3, ticket.Quantity)
	assert.Equal(t, []byte("qr-bytes"), ticket.QRCode)

	sold, err := ledger.SoldQuantity(context.Background(), tt.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, sold)
}

func TestPurchaseMergesIntoExistingTicket(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	tt := createTestEvent(t, bunDB, 10)
	firstPurchase := time.Now().Add(-time.Hour)

	first, err := ledger.Purchase(context.Background(), 1, tt.ID, 2, firstPurchase, []byte("first-qr"))
	assert.NoError(t, err)

	second, err := ledger.Purchase(context.Background(), 1, tt.ID, 3, time.Now(), []byte("second-qr"))
	assert.NoError(t, err)

	// Same row topped up, not a second row
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Quantity)

	stored, err := ledger.GetTicketByID(context.Background(), first.ID)
	assert.NoError(t, err)
	assert.Equal(t, 5, stored.Quantity)
	// Purchase date and QR stay from the first purchase
	assert.Equal(t, []byte("first-qr"), stored.QRCode)
	assert.WithinDuration(t, firstPurchase, stored.PurchaseDate, time.Second)

	var count int
	count, err = bunDB.NewSelect().Model((*models.Ticket)(nil)).Count(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPurchaseInsufficientInventory(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	tt := createTestEvent(t, bunDB, 10)

	_, err := ledger.Purchase(context.Background(), 1, tt.ID, 8, time.Now(), nil)
	assert.NoError(t, err)

	// 8 of 10 sold, asking for 3 must fail and report 2 remaining
	_, err = ledger.Purchase(context.Background(), 2, tt.ID, 3, time.Now(), nil)
	var invErr *ticketing.InsufficientInventoryError
	assert.True(t, errors.As(err, &invErr))
	assert.Equal(t, 2, invErr.Remaining)

	// The failed attempt must not have consumed anything
	sold, err := ledger.SoldQuantity(context.Background(), tt.ID)
	assert.NoError(t, err)
	assert.Equal(t, 8, sold)

	// The exact remaining quantity is still purchasable
	ticket, err := ledger.Purchase(context.Background(), 2, tt.ID, 2, time.Now(), nil)
	assert.NoError(t, err)
	assert.Equal(t, 2, ticket.Quantity)
}

func TestPurchaseUnknownTicketType(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	_, err := ledger.Purchase(context.Background(), 1, 999, 1, time.Now(), nil)
	assert.ErrorIs(t, err, ticketing.ErrNotFound)
}

func TestConcurrentPurchasesNeverOversell(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	capacity := 30
	buyers := 50
	tt := createTestEvent(t, bunDB, capacity)

	var wg sync.WaitGroup
	results := make(chan error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := ledger.Purchase(context.Background(), userID, tt.ID, 1, time.Now(), nil)
			results <- err
		}(int64(i + 1))
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var invErr *ticketing.InsufficientInventoryError
		assert.True(t, errors.As(err, &invErr), "unexpected error: %v", err)
	}
	assert.Equal(t, capacity, succeeded)

	sold, err := ledger.SoldQuantity(context.Background(), tt.ID)
	assert.NoError(t, err)
	assert.Equal(t, capacity, sold)
}

func TestFindTicket(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	tt := createTestEvent(t, bunDB, 10)

	// Absent pair returns nil without error
	ticket, err := ledger.FindTicket(context.Background(), 1, tt.ID)
	assert.NoError(t, err)
	assert.Nil(t, ticket)

	_, err = ledger.Purchase(context.Background(), 1, tt.ID, 1, time.Now(), nil)
	assert.NoError(t, err)

	ticket, err = ledger.FindTicket(context.Background(), 1, tt.ID)
	assert.NoError(t, err)
	assert.NotNil(t, ticket)
	assert.Equal(t, int64(1), ticket.UserID)
}

func TestGetTicketsByUser(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	first := createTestEvent(t, bunDB, 10)
	second := createTestEvent(t, bunDB, 10)

	_, err := ledger.Purchase(context.Background(), 1, first.ID, 1, time.Now().Add(-time.Hour), nil)
	assert.NoError(t, err)
	_, err = ledger.Purchase(context.Background(), 1, second.ID, 2, time.Now(), nil)
	assert.NoError(t, err)
	_, err = ledger.Purchase(context.Background(), 2, first.ID, 1, time.Now(), nil)
	assert.NoError(t, err)

	tickets, err := ledger.GetTicketsByUser(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(tickets))
	// Newest first
	assert.Equal(t, second.ID, tickets[0].TicketTypeID)
	assert.Equal(t, first.ID, tickets[1].TicketTypeID)
}

func TestUpdateRating(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	tt := createTestEvent(t, bunDB, 10)
	ticket, err := ledger.Purchase(context.Background(), 1, tt.ID, 1, time.Now(), nil)
	assert.NoError(t, err)

	rating := 4
	comment := "great show"
	ticket.Rating = &rating
	ticket.RatingComment = &comment
	err = ledger.UpdateRating(context.Background(), ticket)
	assert.NoError(t, err)

	stored, err := ledger.GetTicketByID(context.Background(), ticket.ID)
	assert.NoError(t, err)
	assert.NotNil(t, stored.Rating)
	assert.Equal(t, 4, *stored.Rating)
	assert.NotNil(t, stored.RatingComment)
	assert.Equal(t, "great show", *stored.RatingComment)
}

func TestGetTicketByIDNotFound(t *testing.T) {
	ledger, bunDB := setupTestDB(t)
	defer bunDB.Close()

	_, err := ledger.GetTicketByID(context.Background(), 123)
	assert.ErrorIs(t, err, ticketing.ErrNotFound)
}

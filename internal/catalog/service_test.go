package catalog_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-events/internal/catalog"
	catalog_db "ms-events/internal/catalog/db"
	"ms-events/internal/models"
	"ms-events/internal/ticketing"
)

func setupService(t *testing.T) (*catalog.Service, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	store := catalog_db.New(bunDB)

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

	return catalog.NewService(store, nil, nil), bunDB
}

func seedCatalog(t *testing.T, service *catalog.Service, bunDB *bun.DB) (visible, hidden *models.Event, vipGroup models.Group) {
	vipGroup = models.Group{Name: "vip"}
	_, err := bunDB.NewInsert().Model(&vipGroup).Exec(context.Background())
	assert.NoError(t, err)

	visible, err = service.CreateEvent(context.Background(), models.EventCreate{
		Name:      "Open Air",
		Date:      time.Now().AddDate(0, 1, 0),
		IsVisible: true,
		TicketTypes: []models.TicketTypeDefinition{
			{Name: "General", Price: decimal.NewFromFloat(25.00), QuantityAvailable: 100},
			{Name: "VIP", Price: decimal.NewFromFloat(80.00), QuantityAvailable: 20, GroupIDs: []int64{vipGroup.ID}},
		},
	})
	assert.NoError(t, err)

	hidden, err = service.CreateEvent(context.Background(), models.EventCreate{
		Name:      "Secret Show",
		Date:      time.Now().AddDate(0, 2, 0),
		IsVisible: false,
	})
	assert.NoError(t, err)

	return visible, hidden, vipGroup
}

func TestListEventsVisibility(t *testing.T) {
	service, bunDB := setupService(t)
	defer bunDB.Close()

	seedCatalog(t, service, bunDB)

	// Anonymous viewers get the visible event only
	events, err := service.ListEvents(context.Background(), models.Viewer{})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(events))
	assert.Equal(t, "Open Air", events[0].Name)

	// Staff see everything
	events, err = service.ListEvents(context.Background(), models.Viewer{UserID: 1, IsStaff: true})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(events))
}

func TestListEventsFiltersRestrictedTicketTypes(t *testing.T) {
	service, bunDB := setupService(t)
	defer bunDB.Close()

	_, _, vipGroup := seedCatalog(t, service, bunDB)

	// Anonymous: only the open type is listed
	events, err := service.ListEvents(context.Background(), models.Viewer{})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(events[0].TicketTypes))
	assert.Equal(t, "General", events[0].TicketTypes[0].Name)

	// A vip member sees both types
	member := models.Viewer{UserID: 2, GroupIDs: []int64{vipGroup.ID}}
	events, err = service.ListEvents(context.Background(), member)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(events[0].TicketTypes))
}

func TestGetEventHiddenVisibility(t *testing.T) {
	service, bunDB := setupService(t)
	defer bunDB.Close()

	_, hidden, _ := seedCatalog(t, service, bunDB)

	// Hidden events read as not-found for non-staff
	_, err := service.GetEvent(context.Background(), models.Viewer{UserID: 2}, hidden.ID)
	assert.ErrorIs(t, err, ticketing.ErrNotFound)

	event, err := service.GetEvent(context.Background(), models.Viewer{UserID: 1, IsStaff: true}, hidden.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Secret Show", event.Name)
}

func TestCreateEventValidation(t *testing.T) {
	service, bunDB := setupService(t)
	defer bunDB.Close()

	_, err := service.CreateEvent(context.Background(), models.EventCreate{Name: ""})
	assert.ErrorIs(t, err, ticketing.ErrInvalidInput)

	_, err = service.CreateEvent(context.Background(), models.EventCreate{Name: "Bad Coords", Latitude: 91})
	assert.ErrorIs(t, err, ticketing.ErrInvalidInput)

	_, err = service.CreateEvent(context.Background(), models.EventCreate{
		Name: "Bad Type",
		TicketTypes: []models.TicketTypeDefinition{
			{Name: "Too Expensive", Price: decimal.NewFromFloat(120.00), QuantityAvailable: 10},
		},
	})
	assert.ErrorIs(t, err, ticketing.ErrInvalidInput)
}

func TestUpdateEventFields(t *testing.T) {
	service, bunDB := setupService(t)
	defer bunDB.Close()

	visible, _, _ := seedCatalog(t, service, bunDB)

	newName := "Open Air 2026"
	visibleFlag := false
	updated, err := service.UpdateEventFields(context.Background(), visible.ID, models.EventUpdate{
		Name:      &newName,
		IsVisible: &visibleFlag,
	})
	assert.NoError(t, err)
	assert.Equal(t, "Open Air 2026", updated.Name)
	assert.False(t, updated.IsVisible)
	// Untouched fields keep their values
	assert.Equal(t, visible.Latitude, updated.Latitude)

	_, err = service.UpdateEventFields(context.Background(), 999, models.EventUpdate{Name: &newName})
	assert.ErrorIs(t, err, ticketing.ErrNotFound)

	empty := ""
	_, err = service.UpdateEventFields(context.Background(), visible.ID, models.EventUpdate{Name: &empty})
	assert.ErrorIs(t, err, ticketing.ErrInvalidInput)
}

func TestListTicketTypes(t *testing.T) {
	service, bunDB := setupService(t)
	defer bunDB.Close()

	visible, _, vipGroup := seedCatalog(t, service, bunDB)

	types, err := service.ListTicketTypes(context.Background(), models.Viewer{UserID: 2}, visible.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(types))

	member := models.Viewer{UserID: 2, GroupIDs: []int64{vipGroup.ID}}
	types, err = service.ListTicketTypes(context.Background(), member, visible.ID)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(types))

	_, err = service.ListTicketTypes(context.Background(), models.Viewer{}, 999)
	assert.ErrorIs(t, err, ticketing.ErrNotFound)
}

func TestGetTicketTypeRestricted(t *testing.T) {
	service, bunDB := setupService(t)
	defer bunDB.Close()

	visible, _, vipGroup := seedCatalog(t, service, bunDB)
	vipType := visible.TicketTypes[1]

	// Outside the group the restricted type reads as not-found
	_, err := service.GetTicketType(context.Background(), models.Viewer{UserID: 2}, vipType.ID)
	assert.ErrorIs(t, err, ticketing.ErrNotFound)

	member := models.Viewer{UserID: 2, GroupIDs: []int64{vipGroup.ID}}
	tt, err := service.GetTicketType(context.Background(), member, vipType.ID)
	assert.NoError(t, err)
	assert.Equal(t, "VIP", tt.Name)
}

func TestCreateTicketType(t *testing.T) {
	service, bunDB := setupService(t)
	defer bunDB.Close()

	visible, _, vipGroup := seedCatalog(t, service, bunDB)

	tt, err := service.CreateTicketType(context.Background(), visible.ID, models.TicketTypeDefinition{
		Name:              "Backstage",
		Price:             decimal.NewFromFloat(99.99),
		QuantityAvailable: 5,
		GroupIDs:          []int64{vipGroup.ID},
	})
	assert.NoError(t, err)
	assert.Equal(t, visible.ID, tt.EventID)
	assert.Equal(t, []int64{vipGroup.ID}, tt.GroupIDs())

	_, err = service.CreateTicketType(context.Background(), 999, models.TicketTypeDefinition{
		Name:              "Orphan",
		Price:             decimal.NewFromFloat(10.00),
		QuantityAvailable: 5,
	})
	assert.ErrorIs(t, err, ticketing.ErrNotFound)
}

func TestUpdateTicketType(t *testing.T) {
	service, bunDB := setupService(t)
	defer bunDB.Close()

	visible, _, _ := seedCatalog(t, service, bunDB)
	vipType := visible.TicketTypes[1]

	newPrice := decimal.NewFromFloat(60.00)
	noGroups := []int64{}
	updated, err := service.UpdateTicketType(context.Background(), vipType.ID, models.TicketTypeUpdate{
		Price:    &newPrice,
		GroupIDs: &noGroups,
	})
	assert.NoError(t, err)
	assert.True(t, newPrice.Equal(updated.Price))
	// The group restriction was lifted
	assert.Equal(t, 0, len(updated.Groups))
}

func TestTicketTypeRoutesApplyEventVisibility(t *testing.T) {
	service, bunDB := setupService(t)
	defer bunDB.Close()

	_, hidden, _ := seedCatalog(t, service, bunDB)

	tt, err := service.CreateTicketType(context.Background(), hidden.ID, models.TicketTypeDefinition{
		Name:              "Crew",
		Price:             decimal.NewFromFloat(5.00),
		QuantityAvailable: 10,
	})
	assert.NoError(t, err)

	// The sub-resources of a hidden event are not-found for non-staff,
	// same as the event itself
	_, err = service.ListTicketTypes(context.Background(), models.Viewer{}, hidden.ID)
	assert.ErrorIs(t, err, ticketing.ErrNotFound)

	_, err = service.GetTicketType(context.Background(), models.Viewer{}, tt.ID)
	assert.ErrorIs(t, err, ticketing.ErrNotFound)

	// Staff see them as usual
	staff := models.Viewer{UserID: 1, IsStaff: true}
	types, err := service.ListTicketTypes(context.Background(), staff, hidden.ID)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(types))

	got, err := service.GetTicketType(context.Background(), staff, tt.ID)
	assert.NoError(t, err)
	assert.Equal(t, "Crew", got.Name)
}

func TestUpdateTicketTypeCapacityBelowSold(t *testing.T) {
	service, bunDB := setupService(t)
	defer bunDB.Close()

	visible, _, _ := seedCatalog(t, service, bunDB)
	general := visible.TicketTypes[0]

	ticket := models.Ticket{
		UserID:       42,
		TicketTypeID: general.ID,
		PurchaseDate: time.Now(),
		Quantity:     8,
	}
	_, err := bunDB.NewInsert().Model(&ticket).Exec(context.Background())
	assert.NoError(t, err)

	// Cutting capacity below the 8 already sold must be rejected
	lower := 5
	_, err = service.UpdateTicketType(context.Background(), general.ID, models.TicketTypeUpdate{
		QuantityAvailable: &lower,
	})
	assert.ErrorIs(t, err, ticketing.ErrInvalidInput)

	// The stored capacity is untouched
	current, err := service.GetTicketType(context.Background(), models.Viewer{IsStaff: true}, general.ID)
	assert.NoError(t, err)
	assert.Equal(t, 100, current.QuantityAvailable)

	// Shrinking down to exactly the sold quantity is fine
	exact := 8
	updated, err := service.UpdateTicketType(context.Background(), general.ID, models.TicketTypeUpdate{
		QuantityAvailable: &exact,
	})
	assert.NoError(t, err)
	assert.Equal(t, 8, updated.QuantityAvailable)
}

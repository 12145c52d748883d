package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/crypto/bcrypt"

	"ms-events/internal/config"
	"ms-events/internal/database/migrations"
	"ms-events/internal/models"
)

// Development helper: resets the schema and loads a small sample catalog so
// the API has something to serve out of the box.
func main() {
	ctx := context.Background()

	cfg := config.Load()
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())
	db.RegisterModel((*models.UserGroup)(nil), (*models.TicketTypeGroup)(nil))

	runner := migrations.NewRunner(db, migrations.DefaultOptions())
	defer runner.Close()

	log.Println("Resetting schema...")
	if err := runner.MigrateDown(); err != nil {
		log.Fatalf("❌ Failed to roll back schema: %v", err)
	}
	if err := runner.RunMigrations(); err != nil {
		log.Fatalf("❌ Failed to apply migrations: %v", err)
	}

	log.Println("Seeding sample data...")
	if err := seedData(ctx, db); err != nil {
		log.Fatalf("❌ Failed to seed data: %v", err)
	}

	log.Println("✅ Done.")
}

func seedData(ctx context.Context, db *bun.DB) error {
	// Groups (the members group comes from the seed migration)
	vip := models.Group{Name: "vip"}
	if _, err := db.NewInsert().Model(&vip).Exec(ctx); err != nil {
		return err
	}

	// Users
	users := []models.User{
		{Username: "admin", PasswordHash: mustHash("admin123"), Email: "admin@example.com", FirstName: "Ada", LastName: "Admin", IsStaff: true, DateJoined: time.Now()},
		{Username: "alice", PasswordHash: mustHash("alice123"), Email: "alice@example.com", FirstName: "Alice", LastName: "Wonderland", DateJoined: time.Now()},
		{Username: "bob", PasswordHash: mustHash("bob123"), Email: "bob@example.com", FirstName: "Bob", LastName: "Builder", DateJoined: time.Now()},
	}
	if _, err := db.NewInsert().Model(&users).Exec(ctx); err != nil {
		return err
	}

	memberships := []models.UserGroup{
		{UserID: users[1].ID, GroupID: 1},
		{UserID: users[2].ID, GroupID: 1},
		{UserID: users[1].ID, GroupID: vip.ID},
	}
	if _, err := db.NewInsert().Model(&memberships).Exec(ctx); err != nil {
		return err
	}

	// Events
	events := []models.Event{
		{
			Name:        "Summer Fest 2026",
			Description: "Annual summer music festival.",
			Date:        time.Now().AddDate(0, 1, 0),
			Location:    "Parque da Cidade",
			Latitude:    38.7223,
			Longitude:   -9.1393,
			IsVisible:   true,
		},
		{
			Name:        "Crew Rehearsal",
			Description: "Not announced yet.",
			Date:        time.Now().AddDate(0, 2, 0),
			Location:    "Parque da Cidade",
			Latitude:    38.7223,
			Longitude:   -9.1393,
			IsVisible:   false,
		},
	}
	if _, err := db.NewInsert().Model(&events).Exec(ctx); err != nil {
		return err
	}

	ticketTypes := []models.TicketType{
		{EventID: events[0].ID, Name: "General Admission", Price: decimal.NewFromFloat(25.00), QuantityAvailable: 200},
		{EventID: events[0].ID, Name: "VIP Pit", Price: decimal.NewFromFloat(75.50), QuantityAvailable: 30},
		{EventID: events[1].ID, Name: "Crew Pass", Price: decimal.NewFromFloat(0.01), QuantityAvailable: 10},
	}
	if _, err := db.NewInsert().Model(&ticketTypes).Exec(ctx); err != nil {
		return err
	}

	// VIP Pit is restricted to the vip group
	link := models.TicketTypeGroup{TicketTypeID: ticketTypes[1].ID, GroupID: vip.ID}
	if _, err := db.NewInsert().Model(&link).Exec(ctx); err != nil {
		return err
	}

	return nil
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("❌ Failed to hash password: %v", err)
	}
	return string(hash)
}

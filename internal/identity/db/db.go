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

// DB holds users and their group memberships.
type DB struct {
	Bun *bun.DB
}

func New(bunDB *bun.DB) *DB {
	bunDB.RegisterModel((*models.UserGroup)(nil), (*models.TicketTypeGroup)(nil))
	return &DB{Bun: bunDB}
}

func (d *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Relation("Groups").
		Where("user.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticketing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Relation("Groups").
		Where("username = ?", username).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ticketing.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) UsernameExists(ctx context.Context, username string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.User)(nil)).
		Where("username = ?", username).
		Exists(ctx)
}

// CreateUser inserts the user and its group links in one transaction.
func (d *DB) CreateUser(ctx context.Context, user *models.User, groupIDs []int64) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		return linkGroups(ctx, tx, user.ID, groupIDs)
	})
}

func (d *DB) UpdateUser(ctx context.Context, user *models.User) error {
	_, err := d.Bun.NewUpdate().
		Model(user).
		Column("email", "first_name", "last_name", "password_hash").
		Where("id = ?", user.ID).
		Exec(ctx)
	return err
}

// SetGroups replaces the user's whole group membership.
func (d *DB) SetGroups(ctx context.Context, userID int64, groupIDs []int64) error {
	return d.Bun.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.UserGroup)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return fmt.Errorf("clear groups of user %d: %w", userID, err)
		}
		return linkGroups(ctx, tx, userID, groupIDs)
	})
}

func linkGroups(ctx context.Context, tx bun.Tx, userID int64, groupIDs []int64) error {
	if len(groupIDs) == 0 {
		return nil
	}
	links := make([]models.UserGroup, 0, len(groupIDs))
	for _, gid := range groupIDs {
		links = append(links, models.UserGroup{UserID: userID, GroupID: gid})
	}
	if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
		return fmt.Errorf("link groups to user %d: %w", userID, err)
	}
	return nil
}

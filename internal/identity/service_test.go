package identity_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-events/internal/auth"
	"ms-events/internal/identity"
	identity_db "ms-events/internal/identity/db"
	"ms-events/internal/models"
	"ms-events/internal/ticketing"
)

type MockTokenRevoker struct {
	mock.Mock
}

func (m *MockTokenRevoker) Revoke(ctx context.Context, claims *models.Claims) error {
	args := m.Called(ctx, claims)
	return args.Error(0)
}

func setupIdentity(t *testing.T) (*identity.Service, *MockTokenRevoker, *auth.TokenIssuer, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	store := identity_db.New(bunDB)

	tables := []interface{}{
		(*models.Group)(nil),
		(*models.User)(nil),
		(*models.UserGroup)(nil),
	}
	for _, m := range tables {
		if _, err := bunDB.NewCreateTable().Model(m).Exec(context.Background()); err != nil {
			t.Fatalf("Failed to create table for %T: %v", m, err)
		}
	}

	// The default signup group, id 1
	group := models.Group{Name: "members"}
	if _, err := bunDB.NewInsert().Model(&group).Exec(context.Background()); err != nil {
		t.Fatalf("Failed to seed default group: %v", err)
	}

	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	revoker := new(MockTokenRevoker)
	return identity.NewService(store, issuer, revoker), revoker, issuer, bunDB
}

func TestSignup(t *testing.T) {
	service, _, issuer, bunDB := setupIdentity(t)
	defer bunDB.Close()

	user, token, err := service.Signup(context.Background(), models.SignupRequest{
		Username:  "alice",
		Password:  "s3cret",
		Email:     "alice@example.com",
		FirstName: "Alice",
	})
	assert.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.IsStaff)
	// Signups land in the default group
	assert.Equal(t, []int64{1}, user.GroupIDs())

	// The returned token is a valid session for the new user
	claims, err := issuer.Verify(token)
	assert.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, []int64{1}, claims.GroupIDs)
}

func TestSignupValidation(t *testing.T) {
	service, _, _, bunDB := setupIdentity(t)
	defer bunDB.Close()

	_, _, err := service.Signup(context.Background(), models.SignupRequest{Username: "", Password: "x"})
	assert.ErrorIs(t, err, ticketing.ErrInvalidInput)

	_, _, err = service.Signup(context.Background(), models.SignupRequest{Username: "x", Password: ""})
	assert.ErrorIs(t, err, ticketing.ErrInvalidInput)
}

func TestSignupDuplicateUsername(t *testing.T) {
	service, _, _, bunDB := setupIdentity(t)
	defer bunDB.Close()

	_, _, err := service.Signup(context.Background(), models.SignupRequest{Username: "alice", Password: "s3cret"})
	assert.NoError(t, err)

	_, _, err = service.Signup(context.Background(), models.SignupRequest{Username: "alice", Password: "other"})
	assert.ErrorIs(t, err, ticketing.ErrInvalidInput)
}

func TestLogin(t *testing.T) {
	service, _, _, bunDB := setupIdentity(t)
	defer bunDB.Close()

	_, _, err := service.Signup(context.Background(), models.SignupRequest{Username: "alice", Password: "s3cret"})
	assert.NoError(t, err)

	user, token, err := service.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "s3cret"})
	assert.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, token)

	// Wrong password and unknown user fail the same way
	_, _, err = service.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	_, _, err = service.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "s3cret"})
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestLogout(t *testing.T) {
	service, revoker, _, bunDB := setupIdentity(t)
	defer bunDB.Close()

	claims := &models.Claims{Username: "alice"}
	revoker.On("Revoke", mock.Anything, claims).Return(nil)

	err := service.Logout(context.Background(), claims)
	assert.NoError(t, err)
	revoker.AssertExpectations(t)
}

func TestUpdateUserProfileFields(t *testing.T) {
	service, _, _, bunDB := setupIdentity(t)
	defer bunDB.Close()

	created, _, err := service.Signup(context.Background(), models.SignupRequest{Username: "alice", Password: "s3cret"})
	assert.NoError(t, err)

	email := "new@example.com"
	last := "Lidell"
	updated, err := service.UpdateUser(context.Background(), created.ID, models.UserUpdate{
		Email:    &email,
		LastName: &last,
	})
	assert.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, "Lidell", updated.LastName)
	// Username untouched
	assert.Equal(t, "alice", updated.Username)
}

func TestUpdateUserPasswordChange(t *testing.T) {
	service, _, _, bunDB := setupIdentity(t)
	defer bunDB.Close()

	created, _, err := service.Signup(context.Background(), models.SignupRequest{Username: "alice", Password: "s3cret"})
	assert.NoError(t, err)

	newPassword := "n3wpass"
	// Without the old password the change is rejected
	_, err = service.UpdateUser(context.Background(), created.ID, models.UserUpdate{Password: &newPassword})
	assert.ErrorIs(t, err, ticketing.ErrInvalidInput)

	// A wrong old password is rejected the same way
	wrong := "wrong"
	_, err = service.UpdateUser(context.Background(), created.ID, models.UserUpdate{Password: &newPassword, OldPassword: &wrong})
	assert.ErrorIs(t, err, ticketing.ErrInvalidInput)

	old := "s3cret"
	_, err = service.UpdateUser(context.Background(), created.ID, models.UserUpdate{Password: &newPassword, OldPassword: &old})
	assert.NoError(t, err)

	// The new password logs in, the old one no longer does
	_, _, err = service.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "n3wpass"})
	assert.NoError(t, err)
	_, _, err = service.Login(context.Background(), models.LoginRequest{Username: "alice", Password: "s3cret"})
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}

func TestUpdateUserGroups(t *testing.T) {
	service, _, _, bunDB := setupIdentity(t)
	defer bunDB.Close()

	vip := models.Group{Name: "vip"}
	_, err := bunDB.NewInsert().Model(&vip).Exec(context.Background())
	assert.NoError(t, err)

	created, _, err := service.Signup(context.Background(), models.SignupRequest{Username: "alice", Password: "s3cret"})
	assert.NoError(t, err)

	groups := []int64{vip.ID}
	updated, err := service.UpdateUser(context.Background(), created.ID, models.UserUpdate{GroupIDs: &groups})
	assert.NoError(t, err)
	// Membership replaced wholesale
	assert.Equal(t, []int64{vip.ID}, updated.GroupIDs())
}

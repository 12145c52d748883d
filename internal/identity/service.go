package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"ms-events/internal/auth"
	"ms-events/internal/models"
	"ms-events/internal/ticketing"
)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords,
// indistinguishably.
var ErrInvalidCredentials = errors.New("invalid credentials")

// defaultGroupID is the group new signups land in when none is given.
const defaultGroupID int64 = 1

type IdentityDB interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	CreateUser(ctx context.Context, user *models.User, groupIDs []int64) error
	UpdateUser(ctx context.Context, user *models.User) error
	SetGroups(ctx context.Context, userID int64, groupIDs []int64) error
}

type TokenRevoker interface {
	Revoke(ctx context.Context, claims *models.Claims) error
}

// Service owns user accounts and session tokens. Password hashing is
// delegated to bcrypt.
type Service struct {
	DB     IdentityDB
	Tokens *auth.TokenIssuer
	Revoke TokenRevoker
}

func NewService(db IdentityDB, tokens *auth.TokenIssuer, revoker TokenRevoker) *Service {
	return &Service{DB: db, Tokens: tokens, Revoke: revoker}
}

// Signup registers a user and logs them straight in, returning the fresh
// session token alongside the account.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.User, string, error) {
	if req.Username == "" || req.Password == "" {
		return nil, "", fmt.Errorf("%w: username and password are required", ticketing.ErrInvalidInput)
	}

	taken, err := s.DB.UsernameExists(ctx, req.Username)
	if err != nil {
		return nil, "", err
	}
	if taken {
		return nil, "", fmt.Errorf("%w: username already exists", ticketing.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	groupIDs := req.GroupIDs
	if len(groupIDs) == 0 {
		groupIDs = []int64{defaultGroupID}
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: string(hash),
		DateJoined:   time.Now(),
	}
	if err := s.DB.CreateUser(ctx, &user, groupIDs); err != nil {
		return nil, "", err
	}

	// Reload to pick up the group relations for the token claims.
	created, err := s.DB.GetUserByID(ctx, user.ID)
	if err != nil {
		return nil, "", err
	}
	token, err := s.Tokens.Issue(created)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return created, token, nil
}

// Login verifies credentials and issues a session token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.User, string, error) {
	user, err := s.DB.GetUserByUsername(ctx, req.Username)
	if errors.Is(err, ticketing.ErrNotFound) {
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.Tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}
	return user, token, nil
}

// Logout revokes the presented token for its remaining lifetime.
func (s *Service) Logout(ctx context.Context, claims *models.Claims) error {
	return s.Revoke.Revoke(ctx, claims)
}

func (s *Service) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.DB.GetUserByID(ctx, userID)
}

// UpdateUser applies a partial profile edit. A password change requires the
// current password; a wrong one is an invalid-input rejection, matching the
// profile form's semantics rather than a login failure.
func (s *Service) UpdateUser(ctx context.Context, userID int64, update models.UserUpdate) (*models.User, error) {
	user, err := s.DB.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Password != nil {
		if update.OldPassword == nil {
			return nil, fmt.Errorf("%w: old_password is required to change the password", ticketing.ErrInvalidInput)
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(*update.OldPassword)); err != nil {
			return nil, fmt.Errorf("%w: old password is incorrect", ticketing.ErrInvalidInput)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*update.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}
	if update.Email != nil {
		user.Email = *update.Email
	}
	if update.FirstName != nil {
		user.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		user.LastName = *update.LastName
	}

	if err := s.DB.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	if update.GroupIDs != nil {
		if err := s.DB.SetGroups(ctx, userID, *update.GroupIDs); err != nil {
			return nil, err
		}
	}
	return s.DB.GetUserByID(ctx, userID)
}

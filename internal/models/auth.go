package models

import "github.com/golang-jwt/jwt/v5"

// Claims is the payload of the session tokens issued on login. Group ids and
// the staff flag ride along so request handling never needs a user lookup.
type Claims struct {
	jwt.RegisteredClaims

	Username string  `json:"username"`
	IsStaff  bool    `json:"is_staff"`
	GroupIDs []int64 `json:"groups"`
}

// Viewer identifies the caller of a catalog or purchase operation. The zero
// value is an anonymous, group-less viewer.
type Viewer struct {
	UserID   int64
	Username string
	IsStaff  bool
	GroupIDs []int64
}

type SignupRequest struct {
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	GroupIDs  []int64 `json:"groups"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserUpdate is a partial profile edit; a password change requires the old
// password to be supplied alongside the new one.
type UserUpdate struct {
	Email       *string  `json:"email"`
	FirstName   *string  `json:"first_name"`
	LastName    *string  `json:"last_name"`
	Password    *string  `json:"password"`
	OldPassword *string  `json:"old_password"`
	GroupIDs    *[]int64 `json:"groups"`
}

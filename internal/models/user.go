package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Username     string    `bun:"username,unique,notnull" json:"username"`
	Email        string    `bun:"email,nullzero" json:"email"`
	FirstName    string    `bun:"first_name,nullzero" json:"first_name"`
	LastName     string    `bun:"last_name,nullzero" json:"last_name"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	IsStaff      bool      `bun:"is_staff,notnull,default:false" json:"is_staff"`
	DateJoined   time.Time `bun:"date_joined,notnull" json:"date_joined"`

	Groups []*Group `bun:"m2m:user_groups,join:User=Group" json:"groups,omitempty"`
}

type Group struct {
	bun.BaseModel `bun:"table:groups"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,unique,notnull" json:"name"`
}

// UserGroup is the join table between users and groups.
type UserGroup struct {
	bun.BaseModel `bun:"table:user_groups"`

	UserID  int64  `bun:"user_id,pk"`
	User    *User  `bun:"rel:belongs-to,join:user_id=id"`
	GroupID int64  `bun:"group_id,pk"`
	Group   *Group `bun:"rel:belongs-to,join:group_id=id"`
}

// GroupIDs returns the ids of the groups the user belongs to.
func (u *User) GroupIDs() []int64 {
	ids := make([]int64, 0, len(u.Groups))
	for _, g := range u.Groups {
		ids = append(ids, g.ID)
	}
	return ids
}

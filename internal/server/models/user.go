// Package models defines the receiptkeeper domain values shared by the
// repositories, services and the HTTP layer.
package models

import (
	"slices"
	"time"
)

// RoleName is a value from the closed role enumeration.
type RoleName string

const (
	RoleAdmin RoleName = "admin"
	RoleUser  RoleName = "user"
)

// AllRoles lists every role the store must contain.
var AllRoles = []RoleName{RoleAdmin, RoleUser}

// ParseRole validates s against the enumeration.
func ParseRole(s string) (RoleName, bool) {
	r := RoleName(s)
	return r, slices.Contains(AllRoles, r)
}

type User struct {
	ID             int64
	Username       string
	Email          *string
	FullName       string
	ProfilePicture *string
	HashedPassword string
	Disabled       bool
	Roles          []RoleName
	CreatedAt      time.Time
}

// Identity returns the authenticated view of u.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username, Roles: slices.Clone(u.Roles)}
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, FullName: u.FullName}
}

// Identity is who is calling: carried in access token claims and passed to
// every service operation.
type Identity struct {
	ID       int64
	Username string
	Roles    []RoleName
}

func (i Identity) HasRole(r RoleName) bool {
	return slices.Contains(i.Roles, r)
}

func (i Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}

// CanAccess reports whether the identity may read or mutate data owned by
// ownerID.
func (i Identity) CanAccess(ownerID int64) bool {
	return i.ID == ownerID || i.IsAdmin()
}

// UserFilter narrows user listings.
type UserFilter struct {
	Username string
}

// UserPatch carries optional user changes; nil fields stay as they are.
type UserPatch struct {
	Email    *string
	FullName *string
	Password *string
	Disabled *bool
	Roles    []RoleName
}

// RegisterInput is a new account. Roles defaults to RoleUser when empty.
type RegisterInput struct {
	Username string
	Email    *string
	FullName string
	Password string
	Disabled bool
	Roles    []RoleName
}

// UserPage is one page of a user listing.
type UserPage struct {
	Users []*User
	Skip  int
	Limit int
	Total int64
}

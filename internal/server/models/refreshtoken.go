package models

import "time"

// RefreshToken is an opaque rotation token bound to one user. It is
// deleted when redeemed.
type RefreshToken struct {
	ID      int64
	UserID  int64
	Token   string
	Expires time.Time
}

// Expired reports whether the token can no longer be redeemed at now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.Expires)
}

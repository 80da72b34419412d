package domain

import "time"

// Session represents an issued login token.
type Session struct {
	ID        string
	Username  string
	Role      Role
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

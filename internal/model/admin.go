package model

import "time"

// AdminSession is a back-office login. Only the HMAC of the cookie token is stored,
// next to the address and agent the login came from.
type AdminSession struct {
	ID         string    `db:"id" json:"id"`
	TokenHash  string    `db:"token_hash" json:"-"`
	RemoteAddr string    `db:"remote_addr" json:"remote_addr"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	ExpiresAt  time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the session is past its lifetime at now.
func (s *AdminSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type CreateAdminSessionParams struct {
	TokenHash  string
	RemoteAddr string
	UserAgent  string
	ExpiresAt  time.Time
}

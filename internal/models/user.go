package models

import "time"

// Role is a user's authorization role
type Role string

const (
	RoleTestTaker Role = "test_taker"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleTestTaker || r == RoleAdmin
}

// User represents an account in the system
type User struct {
	ID            int64     `db:"id" json:"id"`
	Username      string    `db:"username" json:"username"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	Role          Role      `db:"role" json:"role"`
	IsVerified    bool      `db:"is_verified" json:"isVerified"`
	OAuthProvider *string   `db:"oauth_provider" json:"oauthProvider,omitempty"`
	OAuthSubject  *string   `db:"oauth_subject" json:"-"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `db:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Session represents an authenticated session
type Session struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// OTPPurpose distinguishes what a one-time code authorizes
type OTPPurpose string

const (
	OTPEmailVerification OTPPurpose = "email_verification"
	OTPPasswordReset     OTPPurpose = "password_reset"
)

// OTPCode is a hashed one-time code sent by email
type OTPCode struct {
	ID        int64      `db:"id"`
	UserID    int64      `db:"user_id"`
	Purpose   OTPPurpose `db:"purpose"`
	CodeHash  string     `db:"code_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	Used      bool       `db:"used"`
	CreatedAt time.Time  `db:"created_at"`
}

// IsExpired checks if the code has expired
func (c *OTPCode) IsExpired() bool {
	return time.Now().After(c.ExpiresAt)
}

package repository

import (
	"context"
	"fmt"
	"time"

	"ieltsprep/internal/database"
	"ieltsprep/internal/models"
)

const userColumns = `id, username, email, password_hash, role, is_verified, oauth_provider, oauth_subject, created_at, updated_at`

// UserRepository handles database operations for users, sessions and one-time codes
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *UserRepository) WithTx(tx database.DBTX) *UserRepository {
	return &UserRepository{db: tx}
}

// CreateUser inserts a new user. The first user ever created becomes admin.
func (r *UserRepository) CreateUser(ctx context.Context, username, email, passwordHash string, verified bool) (*models.User, error) {
	var userCount int
	if err := r.db.GetContext(ctx, &userCount, "SELECT COUNT(*) FROM users"); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	role := models.RoleTestTaker
	if userCount == 0 {
		role = models.RoleAdmin
	}

	now := utc(time.Now())
	query := `
		INSERT INTO users (username, email, password_hash, role, is_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, username, email, passwordHash, role, verified, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", duplicateOr(r.db, err))
	}

	return &models.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		IsVerified:   verified,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (r *UserRepository) getUser(ctx context.Context, where string, args ...interface{}) (*models.User, error) {
	user := &models.User{}
	err := r.db.GetContext(ctx, user, "SELECT "+userColumns+" FROM users WHERE "+where, args...)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !found {
		return nil, nil
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return r.getUser(ctx, "id = ?", id)
}

// GetUserByEmail retrieves a user by email address
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getUser(ctx, "email = ?", email)
}

// GetUserByUsername retrieves a user by username
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getUser(ctx, "username = ?", username)
}

// GetUserByOAuth retrieves a user by OAuth provider and subject
func (r *UserRepository) GetUserByOAuth(ctx context.Context, provider, subject string) (*models.User, error) {
	return r.getUser(ctx, "oauth_provider = ? AND oauth_subject = ?", provider, subject)
}

// ListUsers returns users newest first
func (r *UserRepository) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	users := []models.User{}
	query := "SELECT " + userColumns + " FROM users ORDER BY id DESC LIMIT ? OFFSET ?"
	if err := r.db.SelectContext(ctx, &users, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) updateUser(ctx context.Context, id int64, column string, value interface{}) error {
	query := "UPDATE users SET " + column + " = ?, updated_at = ? WHERE id = ?"
	_, err := r.db.ExecContext(ctx, query, value, utc(time.Now()), id)
	return err
}

// SetVerified marks a user's email as verified
func (r *UserRepository) SetVerified(ctx context.Context, id int64) error {
	if err := r.updateUser(ctx, id, "is_verified", true); err != nil {
		return fmt.Errorf("failed to verify user: %w", err)
	}
	return nil
}

// UpdateRole changes a user's role
func (r *UserRepository) UpdateRole(ctx context.Context, id int64, role models.Role) error {
	if err := r.updateUser(ctx, id, "role", role); err != nil {
		return fmt.Errorf("failed to update role: %w", err)
	}
	return nil
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if err := r.updateUser(ctx, id, "password_hash", passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// LinkOAuthProvider links an existing user to an OAuth provider
func (r *UserRepository) LinkOAuthProvider(ctx context.Context, userID int64, provider, subject string) error {
	query := `
		UPDATE users
		SET oauth_provider = ?, oauth_subject = ?, is_verified = ?, updated_at = ?
		WHERE id = ?
		AND (oauth_provider IS NULL OR oauth_provider = '')
	`
	result, err := r.db.ExecContext(ctx, query, provider, subject, true, utc(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("failed to link oauth provider: %w", duplicateOr(r.db, err))
	}

	rows, err := rowsAffected(result)
	if err != nil {
		return fmt.Errorf("failed to read link result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("oauth provider already linked")
	}

	return nil
}

// CreateSession creates a new session for a user
func (r *UserRepository) CreateSession(ctx context.Context, sessionID string, userID int64, expiresAt time.Time) (*models.Session, error) {
	now := utc(time.Now())
	query := `
		INSERT INTO sessions (id, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
	`
	if _, err := r.db.ExecContext(ctx, query, sessionID, userID, utc(expiresAt), now); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &models.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: utc(expiresAt),
		CreatedAt: now,
	}, nil
}

// GetSession retrieves a session by ID
func (r *UserRepository) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session := &models.Session{}
	err := r.db.GetContext(ctx, session, "SELECT id, user_id, expires_at, created_at FROM sessions WHERE id = ?", sessionID)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if !found {
		return nil, nil
	}
	return session, nil
}

// DeleteSession removes a session from the database
func (r *UserRepository) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions removes every session belonging to a user
func (r *UserRepository) DeleteUserSessions(ctx context.Context, userID int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes all expired sessions
func (r *UserRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < ?", utc(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return rowsAffected(result)
}

// CreateOTP stores a hashed one-time code
func (r *UserRepository) CreateOTP(ctx context.Context, userID int64, purpose models.OTPPurpose, codeHash string, expiresAt time.Time) error {
	query := `
		INSERT INTO otp_codes (user_id, purpose, code_hash, expires_at, used, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := r.db.ExecReturningID(ctx, query, userID, purpose, codeHash, utc(expiresAt), false, utc(time.Now())); err != nil {
		return fmt.Errorf("failed to create otp: %w", err)
	}
	return nil
}

// GetLatestOTP returns the newest unused code for a user and purpose
func (r *UserRepository) GetLatestOTP(ctx context.Context, userID int64, purpose models.OTPPurpose) (*models.OTPCode, error) {
	code := &models.OTPCode{}
	query := `
		SELECT id, user_id, purpose, code_hash, expires_at, used, created_at
		FROM otp_codes
		WHERE user_id = ? AND purpose = ? AND used = ?
		ORDER BY id DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, code, query, userID, purpose, false)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get otp: %w", err)
	}
	if !found {
		return nil, nil
	}
	return code, nil
}

// MarkOTPUsed consumes a code. It reports false if the code was already used.
func (r *UserRepository) MarkOTPUsed(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "UPDATE otp_codes SET used = ? WHERE id = ? AND used = ?", true, id, false)
	if err != nil {
		return false, fmt.Errorf("failed to mark otp used: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to mark otp used: %w", err)
	}
	return n == 1, nil
}

// InvalidateOTPs marks all outstanding codes for a purpose as used
func (r *UserRepository) InvalidateOTPs(ctx context.Context, userID int64, purpose models.OTPPurpose) error {
	query := "UPDATE otp_codes SET used = ? WHERE user_id = ? AND purpose = ? AND used = ?"
	if _, err := r.db.ExecContext(ctx, query, true, userID, purpose, false); err != nil {
		return fmt.Errorf("failed to invalidate otps: %w", err)
	}
	return nil
}

// DeleteExpiredOTPs removes codes past their expiry
func (r *UserRepository) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM otp_codes WHERE expires_at < ?", utc(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otps: %w", err)
	}
	return rowsAffected(result)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/credentials"
	"ieltsprep/internal/database"
	"ieltsprep/internal/models"
	"ieltsprep/internal/repository"
	"ieltsprep/internal/security"
	"ieltsprep/internal/validation"
)

// OTPLifetime is how long an emailed code stays valid
const OTPLifetime = 60 * time.Second

var errInvalidCode = apperr.Validation("Invalid or expired code", apperr.FieldError{Field: "code", Message: "invalid or expired code"})

// AuthConfig configures the auth service
type AuthConfig struct {
	SessionDuration time.Duration
	RequireVerified bool
	TokenSecret     string
}

// RegisterInput is a registration request
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=32,username"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

// LoginResult is an authenticated session with its bearer token
type LoginResult struct {
	Session *models.Session `json:"-"`
	User    *models.User    `json:"user"`
	Token   string          `json:"token"`
}

// AuthService handles authentication business logic
type AuthService struct {
	db              *database.DB
	users           *repository.UserRepository
	email           *EmailService
	tokens          *security.TokenIssuer
	sessionDuration time.Duration
	requireVerified bool
	now             func() time.Time
}

// NewAuthService creates a new auth service
func NewAuthService(db *database.DB, users *repository.UserRepository, email *EmailService, cfg AuthConfig) *AuthService {
	return &AuthService{
		db:              db,
		users:           users,
		email:           email,
		tokens:          security.NewTokenIssuer(cfg.TokenSecret),
		sessionDuration: cfg.SessionDuration,
		requireVerified: cfg.RequireVerified,
		now:             time.Now,
	}
}

// Register creates an unverified account and emails a verification code
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := s.createAccount(ctx, in, false)
	if err != nil {
		return nil, err
	}

	if err := s.issueOTP(ctx, user, models.OTPEmailVerification); err != nil {
		// the account exists; the user can ask for a new code
		log.Printf("Failed to send verification code to user %d: %v", user.ID, err)
	}

	return user, nil
}

// CreateAdmin creates a verified admin account without sending any email
func (s *AuthService) CreateAdmin(ctx context.Context, in RegisterInput) (*models.User, error) {
	user, err := s.createAccount(ctx, in, true)
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleAdmin {
		if err := s.users.UpdateRole(ctx, user.ID, models.RoleAdmin); err != nil {
			return nil, err
		}
		user.Role = models.RoleAdmin
	}
	log.Printf("Admin account created: id=%d, username=%s", user.ID, user.Username)
	return user, nil
}

func (s *AuthService) createAccount(ctx context.Context, in RegisterInput, verified bool) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(in.Password, in.Username, in.Email); err != nil {
		return nil, err
	}

	passwordHash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var user *models.User
	err = s.db.InTx(ctx, func(tx *database.Tx) error {
		users := s.users.WithTx(tx)

		existing, err := users.GetUserByEmail(ctx, in.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("An account with this email already exists")
		}
		existing, err = users.GetUserByUsername(ctx, in.Username)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("This username is already taken")
		}

		user, err = users.CreateUser(ctx, in.Username, in.Email, passwordHash, verified)
		return err
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.Conflict("An account with this email or username already exists")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyEmail consumes a verification code and marks the account verified
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errInvalidCode
	}
	if user.IsVerified {
		return user, nil
	}

	if err := s.consumeOTP(ctx, user, models.OTPEmailVerification, code); err != nil {
		return nil, err
	}
	if err := s.users.SetVerified(ctx, user.ID); err != nil {
		return nil, err
	}

	user.IsVerified = true
	return user, nil
}

// ResendVerification sends a fresh verification code. Unknown or already
// verified addresses are ignored.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user == nil || user.IsVerified {
		return nil
	}
	return s.issueOTP(ctx, user, models.OTPEmailVerification)
}

// Login authenticates by email or username and opens a session
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperr.Validation("Identifier and password are required")
	}

	var (
		user *models.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.users.GetUserByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.users.GetUserByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, err
	}
	if user == nil || !security.CheckPassword(password, user.PasswordHash) {
		return nil, apperr.Unauthenticated("Invalid credentials")
	}
	if s.requireVerified && !user.IsVerified {
		return nil, apperr.Unauthenticated("Email address is not verified")
	}

	return s.openSession(ctx, user)
}

func (s *AuthService) openSession(ctx context.Context, user *models.User) (*LoginResult, error) {
	now := s.now()
	expiresAt := now.Add(s.sessionDuration)
	session, err := s.users.CreateSession(ctx, security.GenerateSessionID(), user.ID, expiresAt)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID, session.ID, string(user.Role), now, expiresAt)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Session: session, User: user, Token: token}, nil
}

// ValidateSession checks if a session is valid and returns the associated user
func (s *AuthService) ValidateSession(ctx context.Context, sessionID string) (*models.User, *models.Session, error) {
	if sessionID == "" {
		return nil, nil, apperr.Unauthenticated("Authentication required")
	}

	session, err := s.users.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, apperr.Unauthenticated("Session not found")
	}
	if s.now().After(session.ExpiresAt) {
		_ = s.users.DeleteSession(ctx, sessionID)
		return nil, nil, apperr.Unauthenticated("Session expired")
	}

	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, apperr.Unauthenticated("Session not found")
	}

	return user, session, nil
}

// ValidateToken verifies a bearer token. The token must still reference a
// live session, so logging out revokes it.
func (s *AuthService) ValidateToken(ctx context.Context, raw string) (*models.User, *models.Session, error) {
	claims, err := s.tokens.Parse(raw, s.now())
	if err != nil {
		return nil, nil, apperr.Unauthenticated("Invalid token")
	}

	user, session, err := s.ValidateSession(ctx, claims.SessionID)
	if err != nil {
		return nil, nil, err
	}
	if claims.Subject != strconv.FormatInt(user.ID, 10) {
		return nil, nil, apperr.Unauthenticated("Invalid token")
	}
	return user, session, nil
}

// Logout invalidates a session
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	return s.users.DeleteSession(ctx, sessionID)
}

// RequestPasswordReset emails a reset code. Unknown addresses succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user == nil {
		log.Printf("Password reset requested for unknown email")
		return nil
	}
	return s.issueOTP(ctx, user, models.OTPPasswordReset)
}

// ResetPassword consumes a reset code, sets a new password and ends every
// session of the user
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return err
	}
	if user == nil {
		return errInvalidCode
	}
	if err := validation.ValidatePassword(newPassword, user.Username, user.Email); err != nil {
		return err
	}

	if err := s.consumeOTP(ctx, user, models.OTPPasswordReset, code); err != nil {
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.db.InTx(ctx, func(tx *database.Tx) error {
		users := s.users.WithTx(tx)
		if err := users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
			return err
		}
		// a reset code also proves ownership of the address
		if !user.IsVerified {
			if err := users.SetVerified(ctx, user.ID); err != nil {
				return err
			}
		}
		return users.DeleteUserSessions(ctx, user.ID)
	})
}

// OAuthLogin authenticates or creates a user using an OAuth provider
func (s *AuthService) OAuthLogin(ctx context.Context, provider, subject, email string) (*LoginResult, error) {
	if provider == "" || subject == "" {
		return nil, apperr.Unauthenticated("Missing OAuth identity")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByOAuth(ctx, provider, subject)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup oauth user: %w", err)
	}

	if user == nil {
		existing, err := s.users.GetUserByEmail(ctx, email)
		if err != nil {
			return nil, err
		}

		if existing != nil {
			if existing.OAuthProvider != nil && *existing.OAuthProvider != "" {
				return nil, apperr.Conflict("This email is linked to another sign-in method")
			}
			user = existing
		} else {
			user, err = s.createOAuthUser(ctx, email)
			if err != nil {
				return nil, err
			}
		}

		if err := s.users.LinkOAuthProvider(ctx, user.ID, provider, subject); err != nil {
			return nil, err
		}
		user.OAuthProvider = &provider
		user.IsVerified = true
	}

	return s.openSession(ctx, user)
}

func (s *AuthService) createOAuthUser(ctx context.Context, email string) (*models.User, error) {
	for i := 0; i < 5; i++ {
		username, err := credentials.UsernameFromEmail(email)
		if err != nil {
			return nil, err
		}
		user, err := s.users.CreateUser(ctx, username, email, "", true)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		return user, err
	}
	return nil, apperr.Conflict("Could not allocate a username")
}

// UpdateRole changes a user's role. Only admins may do this.
func (s *AuthService) UpdateRole(ctx context.Context, actor *models.User, userID int64, role models.Role) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, apperr.Validation("Invalid role", apperr.FieldError{Field: "role", Message: "must be test_taker or admin"})
	}
	if actor.ID == userID && role != models.RoleAdmin {
		return nil, apperr.Conflict("You cannot remove your own admin role")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.NotFound("User")
	}

	if err := s.users.UpdateRole(ctx, userID, role); err != nil {
		return nil, err
	}
	user.Role = role
	return user, nil
}

// ListUsers returns a page of users for admins
func (s *AuthService) ListUsers(ctx context.Context, actor *models.User, limit, offset int) ([]models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.users.ListUsers(ctx, clampLimit(limit, 50, 200), max(offset, 0))
}

// CleanupExpired removes expired sessions and one-time codes
func (s *AuthService) CleanupExpired(ctx context.Context) error {
	now := s.now()
	sessions, err := s.users.DeleteExpiredSessions(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to cleanup sessions: %w", err)
	}
	codes, err := s.users.DeleteExpiredOTPs(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to cleanup codes: %w", err)
	}
	if sessions > 0 || codes > 0 {
		log.Printf("Cleanup removed %d expired sessions and %d expired codes", sessions, codes)
	}
	return nil
}

// issueOTP replaces any outstanding code for purpose and emails a new one
func (s *AuthService) issueOTP(ctx context.Context, user *models.User, purpose models.OTPPurpose) error {
	code, err := credentials.GenerateOTP()
	if err != nil {
		return fmt.Errorf("failed to generate code: %w", err)
	}

	if err := s.users.InvalidateOTPs(ctx, user.ID, purpose); err != nil {
		return err
	}
	if err := s.users.CreateOTP(ctx, user.ID, purpose, credentials.HashOTP(code), s.now().Add(OTPLifetime)); err != nil {
		return err
	}

	switch purpose {
	case models.OTPPasswordReset:
		err = s.email.SendPasswordResetCode(ctx, user.Email, user.Username, code)
	default:
		err = s.email.SendVerificationCode(ctx, user.Email, user.Username, code)
	}
	if err != nil {
		return apperr.Upstream("Failed to send email", err)
	}
	return nil
}

// consumeOTP checks code against the newest outstanding code and marks it used
func (s *AuthService) consumeOTP(ctx context.Context, user *models.User, purpose models.OTPPurpose, code string) error {
	otp, err := s.users.GetLatestOTP(ctx, user.ID, purpose)
	if err != nil {
		return err
	}
	if otp == nil || s.now().After(otp.ExpiresAt) || !credentials.VerifyOTP(code, otp.CodeHash) {
		return errInvalidCode
	}

	used, err := s.users.MarkOTPUsed(ctx, otp.ID)
	if err != nil {
		return err
	}
	if !used {
		return errInvalidCode
	}
	return nil
}

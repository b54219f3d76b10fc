package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
)

const testPassword = "Correct-Horse-42"

func TestRegisterAndVerify(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.auth.Register(ctx, RegisterInput{Username: "amira", Email: "Amira@Example.com", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, "amira@example.com", user.Email)
	assert.False(t, user.IsVerified)
	assert.Equal(t, models.RoleAdmin, user.Role, "first account becomes admin")

	_, err = env.auth.Login(ctx, "amira", testPassword)
	requireKind(t, err, apperr.KindAuthentication)

	_, err = env.auth.VerifyEmail(ctx, user.Email, "000000")
	requireKind(t, err, apperr.KindValidation)

	code := env.mail.lastCode(t, user.Email)
	verified, err := env.auth.VerifyEmail(ctx, user.Email, code)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)

	result, err := env.auth.Login(ctx, "amira@example.com", testPassword)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID, result.User.ID)
}

func TestRegisterRejectsDuplicatesAndWeakPasswords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, RegisterInput{Username: "omar", Email: "omar@example.com", Password: testPassword})
	require.NoError(t, err)

	tests := []struct {
		name string
		in   RegisterInput
		kind apperr.Kind
	}{
		{"duplicate email", RegisterInput{Username: "omar2", Email: "OMAR@example.com", Password: testPassword}, apperr.KindConflict},
		{"duplicate username", RegisterInput{Username: "omar", Email: "other@example.com", Password: testPassword}, apperr.KindConflict},
		{"short password", RegisterInput{Username: "layla", Email: "layla@example.com", Password: "abc"}, apperr.KindValidation},
		{"password like username", RegisterInput{Username: "laylahassan", Email: "layla@example.com", Password: "laylahassan1"}, apperr.KindValidation},
		{"bad email", RegisterInput{Username: "layla", Email: "not-an-email", Password: testPassword}, apperr.KindValidation},
		{"bad username", RegisterInput{Username: "la yla", Email: "layla@example.com", Password: testPassword}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(ctx, tt.in)
			requireKind(t, err, tt.kind)
		})
	}
}

func TestVerificationCodeExpires(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.auth.Register(ctx, RegisterInput{Username: "yusuf", Email: "yusuf@example.com", Password: testPassword})
	require.NoError(t, err)
	code := env.mail.lastCode(t, user.Email)

	env.clock.Advance(OTPLifetime + time.Second)
	_, err = env.auth.VerifyEmail(ctx, user.Email, code)
	requireKind(t, err, apperr.KindValidation)

	require.NoError(t, env.auth.ResendVerification(ctx, user.Email))
	fresh := env.mail.lastCode(t, user.Email)
	_, err = env.auth.VerifyEmail(ctx, user.Email, fresh)
	require.NoError(t, err)
}

func TestTokensFollowSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.auth.Register(ctx, RegisterInput{Username: "sara", Email: "sara@example.com", Password: testPassword})
	require.NoError(t, err)
	_, err = env.auth.VerifyEmail(ctx, "sara@example.com", env.mail.lastCode(t, "sara@example.com"))
	require.NoError(t, err)

	result, err := env.auth.Login(ctx, "sara", testPassword)
	require.NoError(t, err)

	user, _, err := env.auth.ValidateToken(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, "sara", user.Username)

	_, _, err = env.auth.ValidateToken(ctx, result.Token+"x")
	requireKind(t, err, apperr.KindAuthentication)

	require.NoError(t, env.auth.Logout(ctx, result.Session.ID))
	_, _, err = env.auth.ValidateToken(ctx, result.Token)
	requireKind(t, err, apperr.KindAuthentication)

	again, err := env.auth.Login(ctx, "sara", testPassword)
	require.NoError(t, err)
	env.clock.Advance(30 * time.Minute)
	_, _, err = env.auth.ValidateToken(ctx, again.Token)
	require.NoError(t, err, "token validity follows the service clock")

	env.clock.Advance(2 * time.Hour)
	_, _, err = env.auth.ValidateToken(ctx, again.Token)
	requireKind(t, err, apperr.KindAuthentication)
	_, _, err = env.auth.ValidateSession(ctx, again.Session.ID)
	requireKind(t, err, apperr.KindAuthentication)
}

func TestPasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, "noor")

	// unknown addresses are accepted silently
	require.NoError(t, env.auth.RequestPasswordReset(ctx, "nobody@example.com"))

	require.NoError(t, env.auth.RequestPasswordReset(ctx, user.Email))
	code := env.mail.lastCode(t, user.Email)

	// an existing session must not survive the reset
	session, err := env.users.CreateSession(ctx, "s-1", user.ID, env.clock.Now().Add(time.Hour))
	require.NoError(t, err)

	err = env.auth.ResetPassword(ctx, user.Email, "111111", "Another-Secret-7")
	requireKind(t, err, apperr.KindValidation)

	require.NoError(t, env.auth.ResetPassword(ctx, user.Email, code, "Another-Secret-7"))

	_, _, err = env.auth.ValidateSession(ctx, session.ID)
	requireKind(t, err, apperr.KindAuthentication)

	err = env.auth.ResetPassword(ctx, user.Email, code, "Yet-Another-Secret-8")
	requireKind(t, err, apperr.KindValidation)

	_, err = env.auth.Login(ctx, user.Email, "Another-Secret-7")
	require.NoError(t, err)
}

func TestOAuthLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	existing := env.user(t, "hana")

	linked, err := env.auth.OAuthLogin(ctx, "google", "g-1", existing.Email)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, linked.User.ID)

	again, err := env.auth.OAuthLogin(ctx, "google", "g-1", existing.Email)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, again.User.ID)

	created, err := env.auth.OAuthLogin(ctx, "google", "g-2", "new.learner@example.com")
	require.NoError(t, err)
	assert.True(t, created.User.IsVerified)
	assert.Contains(t, created.User.Username, "newlearner")
}

func TestUpdateRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin")
	learner := env.user(t, "learner")

	_, err := env.auth.UpdateRole(ctx, learner, admin.ID, models.RoleTestTaker)
	requireKind(t, err, apperr.KindAuthorization)

	_, err = env.auth.UpdateRole(ctx, admin, learner.ID, models.Role("owner"))
	requireKind(t, err, apperr.KindValidation)

	_, err = env.auth.UpdateRole(ctx, admin, admin.ID, models.RoleTestTaker)
	requireKind(t, err, apperr.KindConflict)

	promoted, err := env.auth.UpdateRole(ctx, admin, learner.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	users, err := env.auth.ListUsers(ctx, admin, 0, 0)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestCreateAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first, err := env.auth.Register(ctx, RegisterInput{Username: "first", Email: "first@example.com", Password: testPassword})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, first.Role)

	admin, err := env.auth.CreateAdmin(ctx, RegisterInput{Username: "ops", Email: "ops@example.com", Password: testPassword})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.IsVerified)

	stored, err := env.users.GetUserByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, stored.Role)

	_, err = env.auth.Login(ctx, "ops", testPassword)
	require.NoError(t, err, "admin accounts need no verification code")

	_, err = env.auth.CreateAdmin(ctx, RegisterInput{Username: "ops", Email: "ops2@example.com", Password: testPassword})
	requireKind(t, err, apperr.KindConflict)
}

package handlers

import (
	"net/http"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/security"
	"ieltsprep/internal/service"
)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService          *service.AuthService
	csrf                 *security.CSRFGenerator
	oauthProviders       map[string]OAuthProvider
	oauthRedirectBaseURL string
	reporter             *reporting.Reporter
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, csrf *security.CSRFGenerator, oauthProviders map[string]OAuthProvider, oauthRedirectBaseURL string, reporter *reporting.Reporter) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		csrf:                 csrf,
		oauthProviders:       oauthProviders,
		oauthRedirectBaseURL: oauthRedirectBaseURL,
		reporter:             reporter,
	}
}

type emailRequest struct {
	Email string `json:"email"`
}

type codeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

type resetRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	Password string `json:"password"`
}

type loginResponse struct {
	*service.LoginResult
	CSRFToken string `json:"csrfToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register creates an unverified account and emails a verification code
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	user, err := h.authService.Register(r.Context(), in)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"user":    user,
		"message": "Check your email for a verification code",
	})
}

// VerifyEmail confirms an address with its one-time code
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var in codeRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	user, err := h.authService.VerifyEmail(r.Context(), in.Email, in.Code)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}

// ResendVerification emails a fresh verification code
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	if err := h.authService.ResendVerification(r.Context(), in.Email); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "Verification code sent"})
}

// Login opens a session, sets the session cookie and returns a bearer token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}

	identifier := in.Identifier
	if identifier == "" {
		identifier = in.Email
	}
	if identifier == "" {
		identifier = in.Username
	}

	result, err := h.authService.Login(r.Context(), identifier, in.Password)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	h.startSession(w, r, result)
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, result *service.LoginResult) {
	csrfToken, err := h.csrf.GenerateToken(result.Session.ID)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	http.SetCookie(w, security.CreateSessionCookie(r, security.SessionCookieName, result.Session.ID, result.Session.ExpiresAt))
	respondJSON(w, http.StatusOK, loginResponse{LoginResult: result, CSRFToken: csrfToken})
}

// Logout ends the current session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if session := GetSessionFromContext(r.Context()); session != nil {
		if err := h.authService.Logout(r.Context(), session.ID); err != nil {
			respondError(w, r, h.reporter, err)
			return
		}
	}
	http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookieName))
	respondJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

// ForgotPassword emails a reset code. The reply does not reveal whether the
// address has an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var in emailRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	if err := h.authService.RequestPasswordReset(r.Context(), in.Email); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusAccepted, messageResponse{Message: "If the address has an account, a reset code is on its way"})
}

// ResetPassword sets a new password using a reset code
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var in resetRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	if err := h.authService.ResetPassword(r.Context(), in.Email, in.Code, in.Password); err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "Password updated, please log in again"})
}

// Me returns the authenticated user
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"user": GetUserFromContext(r.Context())})
}

// CSRFToken returns the CSRF token of the current session
func (h *AuthHandler) CSRFToken(w http.ResponseWriter, r *http.Request) {
	session := GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, r, h.reporter, apperr.Unauthenticated("Authentication required"))
		return
	}
	token, err := h.csrf.GenerateToken(session.ID)
	if err != nil {
		respondError(w, r, h.reporter, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}

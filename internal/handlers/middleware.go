package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/security"
	"ieltsprep/internal/service"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserContextKey    ContextKey = "user"
	SessionContextKey ContextKey = "session"
	viaCookieKey      ContextKey = "via_cookie"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	authService *service.AuthService
	csrf        *security.CSRFGenerator
	limiter     *security.RateLimiter
	reporter    *reporting.Reporter
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(authService *service.AuthService, csrf *security.CSRFGenerator, limiter *security.RateLimiter, reporter *reporting.Reporter) *Middleware {
	return &Middleware{
		authService: authService,
		csrf:        csrf,
		limiter:     limiter,
		reporter:    reporter,
	}
}

// RequireAuth accepts a session cookie or an "Authorization: Bearer" token
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			user      *models.User
			session   *models.Session
			err       error
			viaCookie bool
		)

		if raw := security.BearerToken(r); raw != "" {
			user, session, err = m.authService.ValidateToken(r.Context(), raw)
		} else if cookie, cerr := r.Cookie(security.SessionCookieName); cerr == nil && cookie.Value != "" {
			viaCookie = true
			user, session, err = m.authService.ValidateSession(r.Context(), cookie.Value)
			if err != nil && apperr.Is(err, apperr.KindAuthentication) {
				http.SetCookie(w, security.CreateDeleteCookie(r, security.SessionCookieName))
			}
		} else {
			err = apperr.Unauthenticated("Authentication required")
		}
		if err != nil {
			respondError(w, r, m.reporter, err)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		ctx = context.WithValue(ctx, SessionContextKey, session)
		ctx = context.WithValue(ctx, viaCookieKey, viaCookie)
		next(w, r.WithContext(ctx))
	}
}

// RequireAdmin requires an authenticated admin
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !GetUserFromContext(r.Context()).IsAdmin() {
			respondError(w, r, m.reporter, apperr.Forbidden("Admin access required"))
			return
		}
		next(w, r)
	})
}

// CSRFProtect checks the X-CSRF-Token header on unsafe requests
// authenticated by cookie. Bearer requests are not exposed to CSRF.
func (m *Middleware) CSRFProtect(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next(w, r)
			return
		}

		viaCookie, _ := r.Context().Value(viaCookieKey).(bool)
		session := GetSessionFromContext(r.Context())
		if viaCookie && session != nil && !m.csrf.ValidateToken(session.ID, r.Header.Get(security.CSRFHeader)) {
			log.Printf("CSRF token rejected: %s %s", r.Method, r.URL.Path)
			respondError(w, r, m.reporter, apperr.Forbidden("Invalid CSRF token"))
			return
		}
		next(w, r)
	}
}

// RateLimit rejects clients that exceed the limiter's budget
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.limiter.Allow(security.GetClientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondJSON(w, http.StatusTooManyRequests, errorResponse{Error: "Too many requests, please try again later", Kind: "rate_limited"})
			return
		}
		next(w, r)
	}
}

// Protected is RequireAuth followed by CSRFProtect
func (m *Middleware) Protected(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuth(m.CSRFProtect(next))
}

// Admin is RequireAdmin followed by CSRFProtect
func (m *Middleware) Admin(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAdmin(m.CSRFProtect(next))
}

// Recover turns panics into 500 responses and reports them
func (m *Middleware) Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				log.Printf("panic serving %s %s: %v\n%s", r.Method, r.URL.Path, p, debug.Stack())
				m.reporter.RequestError(r, fmt.Errorf("panic: %v", p), 0)
				respondJSON(w, http.StatusInternalServerError, errorResponse{Error: errInternalServer, Kind: apperr.KindInternal.String()})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Logging middleware logs HTTP requests
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// GetUserFromContext retrieves the user from the request context
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}

// GetSessionFromContext retrieves the session from the request context
func GetSessionFromContext(ctx context.Context) *models.Session {
	session, ok := ctx.Value(SessionContextKey).(*models.Session)
	if !ok {
		return nil
	}
	return session
}

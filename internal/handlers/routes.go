package handlers

import (
	"context"
	"net/http"
	"time"
)

// Router bundles the handlers served by the API
type Router struct {
	Middleware    *Middleware
	Auth          *AuthHandler
	Attempts      *AttemptHandler
	Content       *ContentHandler
	Vocabulary    *VocabularyHandler
	Gamification  *GamificationHandler
	Notifications *NotificationHandler
	Media         *MediaHandler
	Admin         *AdminHandler

	// Ping checks the database for /healthz
	Ping func(ctx context.Context) error
}

// Handler registers every route and wraps the mux in Recover and Logging
func (rt *Router) Handler() http.Handler {
	m := rt.Middleware
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", rt.healthz)

	// Auth
	mux.HandleFunc("POST /auth/register", m.RateLimit(rt.Auth.Register))
	mux.HandleFunc("POST /auth/verify-email", m.RateLimit(rt.Auth.VerifyEmail))
	mux.HandleFunc("POST /auth/resend-verification", m.RateLimit(rt.Auth.ResendVerification))
	mux.HandleFunc("POST /auth/login", m.RateLimit(rt.Auth.Login))
	mux.HandleFunc("POST /auth/forgot-password", m.RateLimit(rt.Auth.ForgotPassword))
	mux.HandleFunc("POST /auth/reset-password", m.RateLimit(rt.Auth.ResetPassword))
	mux.HandleFunc("POST /auth/logout", m.Protected(rt.Auth.Logout))
	mux.HandleFunc("GET /auth/me", m.RequireAuth(rt.Auth.Me))
	mux.HandleFunc("GET /auth/csrf-token", m.RequireAuth(rt.Auth.CSRFToken))
	mux.HandleFunc("GET /auth/{provider}/start", m.RateLimit(rt.Auth.StartOAuth))
	mux.HandleFunc("GET /auth/{provider}/callback", m.RateLimit(rt.Auth.OAuthCallback))

	// Tests
	mux.HandleFunc("GET /tests", m.RequireAuth(rt.Content.ListTests))
	mux.HandleFunc("GET /tests/{id}", m.RequireAuth(rt.Content.GetTest))

	// Attempts and answers
	mux.HandleFunc("POST /attempts", m.Protected(rt.Attempts.Create))
	mux.HandleFunc("GET /attempts", m.RequireAuth(rt.Attempts.List))
	mux.HandleFunc("GET /attempts/active", m.RequireAuth(rt.Attempts.Active))
	mux.HandleFunc("GET /attempts/{id}", m.RequireAuth(rt.Attempts.Get))
	mux.HandleFunc("PATCH /attempts/{id}/status", m.Protected(rt.Attempts.UpdateStatus))
	mux.HandleFunc("POST /attempts/{id}/answers", m.Protected(rt.Attempts.RecordAnswer))
	mux.HandleFunc("GET /answers/{id}", m.RequireAuth(rt.Attempts.GetAnswer))
	mux.HandleFunc("PATCH /answers/{id}", m.Admin(rt.Attempts.UpdateAnswer))

	// Vocabulary
	mux.HandleFunc("POST /vocabulary", m.Protected(rt.Vocabulary.Create))
	mux.HandleFunc("GET /vocabulary", m.RequireAuth(rt.Vocabulary.List))
	mux.HandleFunc("GET /vocabulary/review", m.RequireAuth(rt.Vocabulary.Due))
	mux.HandleFunc("GET /vocabulary/stats", m.RequireAuth(rt.Vocabulary.Stats))
	mux.HandleFunc("GET /vocabulary/{id}", m.RequireAuth(rt.Vocabulary.Get))
	mux.HandleFunc("PATCH /vocabulary/{id}", m.Protected(rt.Vocabulary.Update))
	mux.HandleFunc("DELETE /vocabulary/{id}", m.Protected(rt.Vocabulary.Delete))
	mux.HandleFunc("PATCH /vocabulary/{id}/review", m.Protected(rt.Vocabulary.Review))

	// Gamification
	mux.HandleFunc("GET /gamification/user-achievement", m.RequireAuth(rt.Gamification.Achievement))
	mux.HandleFunc("POST /gamification/login-streak", m.Protected(rt.Gamification.LoginStreak))
	mux.HandleFunc("GET /gamification/badges", m.RequireAuth(rt.Gamification.Badges))
	mux.HandleFunc("GET /gamification/points-history", m.RequireAuth(rt.Gamification.PointHistory))
	mux.HandleFunc("GET /gamification/levels", m.RequireAuth(rt.Gamification.Levels))
	mux.HandleFunc("GET /gamification/leaderboard", m.RequireAuth(rt.Gamification.Leaderboard))

	// Notifications
	mux.HandleFunc("GET /notifications", m.RequireAuth(rt.Notifications.List))
	mux.HandleFunc("GET /notifications/unread-count", m.RequireAuth(rt.Notifications.UnreadCount))
	mux.HandleFunc("PATCH /notifications/{id}/read", m.Protected(rt.Notifications.MarkRead))
	mux.HandleFunc("POST /notifications/read-all", m.Protected(rt.Notifications.MarkAllRead))
	mux.HandleFunc("DELETE /notifications/{id}", m.Protected(rt.Notifications.Delete))

	// Media
	if rt.Media != nil {
		mux.HandleFunc("POST /media/audio", m.Protected(rt.Media.UploadAudio))
		mux.HandleFunc("GET /media/{name}", m.RequireAuth(rt.Media.ServeAudio))
	}

	// Admin
	mux.HandleFunc("GET /admin/users", m.RequireAdmin(rt.Admin.ListUsers))
	mux.HandleFunc("PATCH /admin/users/{id}/role", m.Admin(rt.Admin.UpdateRole))
	mux.HandleFunc("GET /admin/answers/pending", m.RequireAdmin(rt.Admin.PendingAnswers))
	mux.HandleFunc("POST /admin/tests", m.Admin(rt.Content.CreateTest))
	mux.HandleFunc("PUT /admin/tests/{id}", m.Admin(rt.Content.UpdateTest))
	mux.HandleFunc("DELETE /admin/tests/{id}", m.Admin(rt.Content.DeleteTest))
	mux.HandleFunc("POST /admin/tests/{id}/questions", m.Admin(rt.Content.CreateQuestion))
	mux.HandleFunc("POST /admin/tests/{id}/questions/import", m.Admin(rt.Content.ImportQuestions))
	mux.HandleFunc("PUT /admin/questions/{id}", m.Admin(rt.Content.UpdateQuestion))
	mux.HandleFunc("DELETE /admin/questions/{id}", m.Admin(rt.Content.DeleteQuestion))
	mux.HandleFunc("GET /admin/content/export", m.RequireAdmin(rt.Content.ExportContent))
	mux.HandleFunc("POST /admin/content/import", m.Admin(rt.Content.ImportContent))

	return Logging(m.Recover(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if rt.Ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.Ping(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

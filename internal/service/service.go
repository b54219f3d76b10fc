package service

import (
	"context"
	"log"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
)

var errAdminRequired = apperr.Forbidden("Admin access required")

// clampLimit applies a default to non-positive limits and caps the rest
func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// requireAdmin returns an authorization error unless actor is an admin
func requireAdmin(actor *models.User) error {
	if !actor.IsAdmin() {
		return errAdminRequired
	}
	return nil
}

// sideEffect runs a best-effort follow-up action. Failures are logged and
// reported but never fail the operation that triggered them.
func sideEffect(ctx context.Context, reporter *reporting.Reporter, name string, userID int64, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		log.Printf("Side effect %s failed for user %d: %v", name, userID, err)
		if reporter != nil {
			reporter.Error("side effect failed: "+name, err, map[string]interface{}{"user_id": userID})
		}
	}
}

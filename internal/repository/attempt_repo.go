package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ieltsprep/internal/database"
	"ieltsprep/internal/models"
)

const attemptColumns = `id, user_id, test_id, status, start_time, end_time, score, created_at, updated_at`

// ErrActiveAttemptExists is returned when a user already has an active attempt at a test
var ErrActiveAttemptExists = errors.New("an active attempt already exists for this test")

// AttemptRepository handles attempts
type AttemptRepository struct {
	db database.DBTX
}

// NewAttemptRepository creates a new attempt repository
func NewAttemptRepository(db database.DBTX) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *AttemptRepository) WithTx(tx database.DBTX) *AttemptRepository {
	return &AttemptRepository{db: tx}
}

// Create inserts an in_progress attempt. The one-active-attempt index turns a
// concurrent duplicate into ErrActiveAttemptExists.
func (r *AttemptRepository) Create(ctx context.Context, userID, testID int64, startTime time.Time) (*models.Attempt, error) {
	start := utc(startTime)
	query := `
		INSERT INTO attempts (user_id, test_id, status, start_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, userID, testID, models.AttemptInProgress, start, start, start)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return nil, ErrActiveAttemptExists
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	return &models.Attempt{
		ID:        id,
		UserID:    userID,
		TestID:    testID,
		Status:    models.AttemptInProgress,
		StartTime: start,
		CreatedAt: start,
		UpdatedAt: start,
	}, nil
}

// GetByID retrieves an attempt
func (r *AttemptRepository) GetByID(ctx context.Context, id int64) (*models.Attempt, error) {
	attempt := &models.Attempt{}
	err := r.db.GetContext(ctx, attempt, "SELECT "+attemptColumns+" FROM attempts WHERE id = ?", id)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if !found {
		return nil, nil
	}
	return attempt, nil
}

// GetActive returns the most recently started in_progress or paused attempt.
// testID 0 matches any test.
func (r *AttemptRepository) GetActive(ctx context.Context, userID, testID int64) (*models.Attempt, error) {
	query := "SELECT " + attemptColumns + " FROM attempts WHERE user_id = ? AND status IN (?, ?)"
	args := []interface{}{userID, models.AttemptInProgress, models.AttemptPaused}
	if testID != 0 {
		query += " AND test_id = ?"
		args = append(args, testID)
	}
	query += " ORDER BY start_time DESC, id DESC LIMIT 1"

	attempt := &models.Attempt{}
	err := r.db.GetContext(ctx, attempt, query, args...)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get active attempt: %w", err)
	}
	if !found {
		return nil, nil
	}
	return attempt, nil
}

// ListByUser returns a user's attempts, newest first
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int64) ([]models.Attempt, error) {
	attempts := []models.Attempt{}
	query := "SELECT " + attemptColumns + " FROM attempts WHERE user_id = ? ORDER BY start_time DESC, id DESC"
	if err := r.db.SelectContext(ctx, &attempts, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}

// UpdateStatus moves an attempt from one status to another. It reports false
// when the attempt was no longer in status from.
func (r *AttemptRepository) UpdateStatus(ctx context.Context, id int64, from, to models.AttemptStatus, endTime *time.Time, score *float64) (bool, error) {
	query := `
		UPDATE attempts
		SET status = ?, end_time = ?, score = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`
	result, err := r.db.ExecContext(ctx, query, to, utcPtr(endTime), score, utc(time.Now()), id, from)
	if err != nil {
		return false, fmt.Errorf("failed to update attempt status: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to update attempt status: %w", err)
	}
	return n == 1, nil
}

// UpdateScore sets an attempt's aggregate score without touching its status
func (r *AttemptRepository) UpdateScore(ctx context.Context, id int64, score float64) error {
	query := "UPDATE attempts SET score = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, score, utc(time.Now()), id); err != nil {
		return fmt.Errorf("failed to update attempt score: %w", err)
	}
	return nil
}

// SumAnswerScores totals the scores of an attempt's answers; ungraded answers count as zero
func (r *AttemptRepository) SumAnswerScores(ctx context.Context, attemptID int64) (float64, error) {
	var total float64
	if err := r.db.GetContext(ctx, &total, "SELECT COALESCE(SUM(score), 0) FROM answers WHERE attempt_id = ?", attemptID); err != nil {
		return 0, fmt.Errorf("failed to sum answer scores: %w", err)
	}
	return total, nil
}

// ActiveAttempt pairs an active attempt with its test's duration
type ActiveAttempt struct {
	models.Attempt
	DurationMinutes int `db:"duration_minutes"`
}

// ListActive returns every in_progress or paused attempt with its test duration
func (r *AttemptRepository) ListActive(ctx context.Context) ([]ActiveAttempt, error) {
	query := `
		SELECT a.id, a.user_id, a.test_id, a.status, a.start_time, a.end_time, a.score, a.created_at, a.updated_at,
		       t.duration_minutes
		FROM attempts a
		JOIN tests t ON t.id = a.test_id
		WHERE a.status IN (?, ?)
		ORDER BY a.start_time
	`
	active := []ActiveAttempt{}
	if err := r.db.SelectContext(ctx, &active, query, models.AttemptInProgress, models.AttemptPaused); err != nil {
		return nil, fmt.Errorf("failed to list active attempts: %w", err)
	}
	return active, nil
}

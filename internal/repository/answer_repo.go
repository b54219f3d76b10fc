package repository

import (
	"context"
	"fmt"
	"time"

	"ieltsprep/internal/database"
	"ieltsprep/internal/models"
)

const answerColumns = `id, attempt_id, question_id, answer_text, is_correct, score, audio_path, feedback, rubric, grading_status, graded_by, grading_attempts, created_at, updated_at`

// AnswerRepository handles answers recorded within attempts
type AnswerRepository struct {
	db database.DBTX
}

// NewAnswerRepository creates a new answer repository
func NewAnswerRepository(db database.DBTX) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *AnswerRepository) WithTx(tx database.DBTX) *AnswerRepository {
	return &AnswerRepository{db: tx}
}

// Upsert records an answer, replacing any earlier answer to the same question in
// the same attempt. The stored row is returned.
func (r *AnswerRepository) Upsert(ctx context.Context, a *models.Answer) (*models.Answer, error) {
	now := utc(time.Now())
	query := `
		INSERT INTO answers (attempt_id, question_id, answer_text, is_correct, score, audio_path, feedback, rubric,
		                     grading_status, graded_by, grading_attempts, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	` + r.db.GetDialect().UpsertClause(
		[]string{"attempt_id", "question_id"},
		[]string{"answer_text", "is_correct", "score", "audio_path", "feedback", "rubric", "grading_status", "graded_by",
			"grading_attempts", "updated_at"},
	)

	// a replaced answer starts with a fresh scoring budget
	_, err := r.db.ExecContext(ctx, query,
		a.AttemptID, a.QuestionID, a.AnswerText, a.IsCorrect, a.Score, a.AudioPath, a.Feedback, a.Rubric,
		a.GradingStatus, a.GradedBy, 0, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to save answer: %w", err)
	}

	return r.GetByQuestion(ctx, a.AttemptID, a.QuestionID)
}

func (r *AnswerRepository) getAnswer(ctx context.Context, where string, args ...interface{}) (*models.Answer, error) {
	answer := &models.Answer{}
	err := r.db.GetContext(ctx, answer, "SELECT "+answerColumns+" FROM answers WHERE "+where, args...)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get answer: %w", err)
	}
	if !found {
		return nil, nil
	}
	return answer, nil
}

// GetByID retrieves an answer
func (r *AnswerRepository) GetByID(ctx context.Context, id int64) (*models.Answer, error) {
	return r.getAnswer(ctx, "id = ?", id)
}

// GetByQuestion retrieves the answer to a question within an attempt
func (r *AnswerRepository) GetByQuestion(ctx context.Context, attemptID, questionID int64) (*models.Answer, error) {
	return r.getAnswer(ctx, "attempt_id = ? AND question_id = ?", attemptID, questionID)
}

// ListByAttempt returns an attempt's answers in question order
func (r *AnswerRepository) ListByAttempt(ctx context.Context, attemptID int64) ([]models.Answer, error) {
	answers := []models.Answer{}
	query := "SELECT " + answerColumns + " FROM answers WHERE attempt_id = ? ORDER BY question_id"
	if err := r.db.SelectContext(ctx, &answers, query, attemptID); err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	return answers, nil
}

// ListByGradingStatus returns answers awaiting AI scoring, oldest first
func (r *AnswerRepository) ListByGradingStatus(ctx context.Context, status models.GradingStatus, limit int) ([]models.Answer, error) {
	answers := []models.Answer{}
	query := "SELECT " + answerColumns + " FROM answers WHERE grading_status = ? ORDER BY updated_at, id LIMIT ?"
	if err := r.db.SelectContext(ctx, &answers, query, status, limit); err != nil {
		return nil, fmt.Errorf("failed to list answers by grading status: %w", err)
	}
	return answers, nil
}

// ListRetryable returns failed answers with fewer than maxAttempts scoring runs, oldest first
func (r *AnswerRepository) ListRetryable(ctx context.Context, maxAttempts, limit int) ([]models.Answer, error) {
	answers := []models.Answer{}
	query := "SELECT " + answerColumns + " FROM answers WHERE grading_status = ? AND grading_attempts < ? ORDER BY updated_at, id LIMIT ?"
	if err := r.db.SelectContext(ctx, &answers, query, models.GradingFailed, maxAttempts, limit); err != nil {
		return nil, fmt.Errorf("failed to list retryable answers: %w", err)
	}
	return answers, nil
}

// RecordGradingFailure marks an answer failed and counts the run. A
// permanent failure spends the whole budget so the answer is never retried.
func (r *AnswerRepository) RecordGradingFailure(ctx context.Context, id int64, permanent bool, maxAttempts int) error {
	query := "UPDATE answers SET grading_status = ?, updated_at = ?, grading_attempts = grading_attempts + 1 WHERE id = ?"
	args := []interface{}{models.GradingFailed, utc(time.Now()), id}
	if permanent {
		query = "UPDATE answers SET grading_status = ?, updated_at = ?, grading_attempts = ? WHERE id = ?"
		args = []interface{}{models.GradingFailed, utc(time.Now()), maxAttempts, id}
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record grading failure: %w", err)
	}
	return nil
}

// SaveAIGrade stores a scorer's result unless an admin graded the answer
// first. It reports whether the row was written.
func (r *AnswerRepository) SaveAIGrade(ctx context.Context, a *models.Answer) (bool, error) {
	a.UpdatedAt = utc(time.Now())
	query := `
		UPDATE answers
		SET is_correct = ?, score = ?, feedback = ?, rubric = ?, grading_status = ?, updated_at = ?
		WHERE id = ? AND graded_by IS NULL
	`
	res, err := r.db.ExecContext(ctx, query,
		a.IsCorrect, a.Score, a.Feedback, a.Rubric, a.GradingStatus, a.UpdatedAt, a.ID)
	if err != nil {
		return false, fmt.Errorf("failed to save grade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to save grade: %w", err)
	}
	return n > 0, nil
}

// SaveGrade stores the outcome of grading an answer
func (r *AnswerRepository) SaveGrade(ctx context.Context, a *models.Answer) error {
	a.UpdatedAt = utc(time.Now())
	query := `
		UPDATE answers
		SET is_correct = ?, score = ?, feedback = ?, rubric = ?, grading_status = ?, graded_by = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		a.IsCorrect, a.Score, a.Feedback, a.Rubric, a.GradingStatus, a.GradedBy, a.UpdatedAt, a.ID)
	if err != nil {
		return fmt.Errorf("failed to save grade: %w", err)
	}
	return nil
}

// SetGradingStatus changes only the grading status of an answer
func (r *AnswerRepository) SetGradingStatus(ctx context.Context, id int64, status models.GradingStatus) error {
	query := "UPDATE answers SET grading_status = ?, updated_at = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, status, utc(time.Now()), id); err != nil {
		return fmt.Errorf("failed to set grading status: %w", err)
	}
	return nil
}

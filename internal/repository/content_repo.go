package repository

import (
	"context"
	"fmt"
	"time"

	"ieltsprep/internal/database"
	"ieltsprep/internal/models"
)

const (
	testColumns     = `id, title, description, module, duration_minutes, passages, is_active, created_at, updated_at`
	questionColumns = `id, test_id, type, content, options, correct_answer, passage_index, audio_path, position, created_at, updated_at`
)

// ContentRepository handles tests and their questions
type ContentRepository struct {
	db database.DBTX
}

// NewContentRepository creates a new content repository
func NewContentRepository(db database.DBTX) *ContentRepository {
	return &ContentRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *ContentRepository) WithTx(tx database.DBTX) *ContentRepository {
	return &ContentRepository{db: tx}
}

// CreateTest inserts a test and fills in its ID and timestamps
func (r *ContentRepository) CreateTest(ctx context.Context, t *models.Test) error {
	now := utc(time.Now())
	query := `
		INSERT INTO tests (title, description, module, duration_minutes, passages, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, t.Title, t.Description, t.Module, t.DurationMinutes, t.Passages, t.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to create test: %w", err)
	}
	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// UpdateTest saves every editable field of a test
func (r *ContentRepository) UpdateTest(ctx context.Context, t *models.Test) error {
	t.UpdatedAt = utc(time.Now())
	query := `
		UPDATE tests
		SET title = ?, description = ?, module = ?, duration_minutes = ?, passages = ?, is_active = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, t.Title, t.Description, t.Module, t.DurationMinutes, t.Passages, t.IsActive, t.UpdatedAt, t.ID); err != nil {
		return fmt.Errorf("failed to update test: %w", err)
	}
	return nil
}

// DeleteTest removes a test; questions and attempts cascade
func (r *ContentRepository) DeleteTest(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM tests WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete test: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to delete test: %w", err)
	}
	return n > 0, nil
}

// GetTest retrieves a test by ID
func (r *ContentRepository) GetTest(ctx context.Context, id int64) (*models.Test, error) {
	test := &models.Test{}
	err := r.db.GetContext(ctx, test, "SELECT "+testColumns+" FROM tests WHERE id = ?", id)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get test: %w", err)
	}
	if !found {
		return nil, nil
	}
	return test, nil
}

// ListTests returns tests ordered by ID, optionally filtered by module and active flag
func (r *ContentRepository) ListTests(ctx context.Context, module models.Module, activeOnly bool) ([]models.Test, error) {
	query := "SELECT " + testColumns + " FROM tests WHERE 1 = 1"
	var args []interface{}
	if module != "" {
		query += " AND module = ?"
		args = append(args, module)
	}
	if activeOnly {
		query += " AND is_active = ?"
		args = append(args, true)
	}
	query += " ORDER BY id"

	tests := []models.Test{}
	if err := r.db.SelectContext(ctx, &tests, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	return tests, nil
}

// CreateQuestion inserts a question and fills in its ID and timestamps
func (r *ContentRepository) CreateQuestion(ctx context.Context, q *models.Question) error {
	now := utc(time.Now())
	query := `
		INSERT INTO questions (test_id, type, content, options, correct_answer, passage_index, audio_path, position, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		q.TestID, q.Type, q.Content, q.Options, q.CorrectAnswer, q.PassageIndex, q.AudioPath, q.Position, now, now)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	q.ID = id
	q.CreatedAt = now
	q.UpdatedAt = now
	return nil
}

// UpdateQuestion saves every editable field of a question
func (r *ContentRepository) UpdateQuestion(ctx context.Context, q *models.Question) error {
	q.UpdatedAt = utc(time.Now())
	query := `
		UPDATE questions
		SET type = ?, content = ?, options = ?, correct_answer = ?, passage_index = ?, audio_path = ?, position = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		q.Type, q.Content, q.Options, q.CorrectAnswer, q.PassageIndex, q.AudioPath, q.Position, q.UpdatedAt, q.ID)
	if err != nil {
		return fmt.Errorf("failed to update question: %w", err)
	}
	return nil
}

// DeleteQuestion removes a question
func (r *ContentRepository) DeleteQuestion(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM questions WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete question: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to delete question: %w", err)
	}
	return n > 0, nil
}

// GetQuestion retrieves a question by ID
func (r *ContentRepository) GetQuestion(ctx context.Context, id int64) (*models.Question, error) {
	q := &models.Question{}
	err := r.db.GetContext(ctx, q, "SELECT "+questionColumns+" FROM questions WHERE id = ?", id)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if !found {
		return nil, nil
	}
	return q, nil
}

// ListQuestions returns a test's questions in position order
func (r *ContentRepository) ListQuestions(ctx context.Context, testID int64) ([]models.Question, error) {
	questions := []models.Question{}
	query := "SELECT " + questionColumns + " FROM questions WHERE test_id = ? ORDER BY position, id"
	if err := r.db.SelectContext(ctx, &questions, query, testID); err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	return questions, nil
}

// NextPosition returns the position after the last question of a test
func (r *ContentRepository) NextPosition(ctx context.Context, testID int64) (int, error) {
	var pos int
	if err := r.db.GetContext(ctx, &pos, "SELECT COALESCE(MAX(position), -1) + 1 FROM questions WHERE test_id = ?", testID); err != nil {
		return 0, fmt.Errorf("failed to get next position: %w", err)
	}
	return pos, nil
}

// ReferencedAudio returns every audio path stored on questions and answers
func (r *ContentRepository) ReferencedAudio(ctx context.Context) ([]string, error) {
	paths := []string{}
	query := `
		SELECT audio_path FROM questions WHERE audio_path IS NOT NULL
		UNION
		SELECT audio_path FROM answers WHERE audio_path IS NOT NULL
	`
	if err := r.db.SelectContext(ctx, &paths, query); err != nil {
		return nil, fmt.Errorf("failed to list audio references: %w", err)
	}
	return paths, nil
}

// DeleteAllContent removes every test; questions, attempts and answers cascade
func (r *ContentRepository) DeleteAllContent(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM tests"); err != nil {
		return fmt.Errorf("failed to clear tests: %w", err)
	}
	return nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"ieltsprep/internal/database"
	"ieltsprep/internal/models"
)

const vocabularyColumns = `id, user_id, word, cefr_level, meaning, example, arabic_meaning, review_stage, last_reviewed, next_review, created_at, updated_at`

// VocabularyRepository handles users' vocabulary lists
type VocabularyRepository struct {
	db database.DBTX
}

// NewVocabularyRepository creates a new vocabulary repository
func NewVocabularyRepository(db database.DBTX) *VocabularyRepository {
	return &VocabularyRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *VocabularyRepository) WithTx(tx database.DBTX) *VocabularyRepository {
	return &VocabularyRepository{db: tx}
}

// Create inserts a word and fills in its ID and timestamps
func (r *VocabularyRepository) Create(ctx context.Context, v *models.Vocabulary) error {
	now := utc(time.Now())
	v.NextReview = utc(v.NextReview)
	query := `
		INSERT INTO vocabulary (user_id, word, cefr_level, meaning, example, arabic_meaning, review_stage, next_review, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		v.UserID, v.Word, v.CEFRLevel, v.Meaning, v.Example, v.ArabicMeaning, v.ReviewStage, v.NextReview, now, now)
	if err != nil {
		return fmt.Errorf("failed to create vocabulary: %w", err)
	}
	v.ID = id
	v.CreatedAt = now
	v.UpdatedAt = now
	return nil
}

// GetByID retrieves a word
func (r *VocabularyRepository) GetByID(ctx context.Context, id int64) (*models.Vocabulary, error) {
	v := &models.Vocabulary{}
	err := r.db.GetContext(ctx, v, "SELECT "+vocabularyColumns+" FROM vocabulary WHERE id = ?", id)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get vocabulary: %w", err)
	}
	if !found {
		return nil, nil
	}
	return v, nil
}

// ListByUser returns a user's words, optionally for one CEFR level
func (r *VocabularyRepository) ListByUser(ctx context.Context, userID int64, cefrLevel string) ([]models.Vocabulary, error) {
	query := "SELECT " + vocabularyColumns + " FROM vocabulary WHERE user_id = ?"
	args := []interface{}{userID}
	if cefrLevel != "" {
		query += " AND cefr_level = ?"
		args = append(args, cefrLevel)
	}
	query += " ORDER BY word, id"

	words := []models.Vocabulary{}
	if err := r.db.SelectContext(ctx, &words, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list vocabulary: %w", err)
	}
	return words, nil
}

// ListDue returns words due at now, lowest stage first then oldest due date
func (r *VocabularyRepository) ListDue(ctx context.Context, userID int64, now time.Time, limit int) ([]models.Vocabulary, error) {
	query := "SELECT " + vocabularyColumns + `
		FROM vocabulary
		WHERE user_id = ? AND next_review <= ?
		ORDER BY review_stage ASC, next_review ASC, id ASC
		LIMIT ?`

	words := []models.Vocabulary{}
	if err := r.db.SelectContext(ctx, &words, query, userID, utc(now), limit); err != nil {
		return nil, fmt.Errorf("failed to list due vocabulary: %w", err)
	}
	return words, nil
}

// UpdateText saves the editable text fields of a word
func (r *VocabularyRepository) UpdateText(ctx context.Context, v *models.Vocabulary) error {
	v.UpdatedAt = utc(time.Now())
	query := `
		UPDATE vocabulary
		SET word = ?, cefr_level = ?, meaning = ?, example = ?, arabic_meaning = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, v.Word, v.CEFRLevel, v.Meaning, v.Example, v.ArabicMeaning, v.UpdatedAt, v.ID); err != nil {
		return fmt.Errorf("failed to update vocabulary: %w", err)
	}
	return nil
}

// UpdateReview stores the outcome of a review
func (r *VocabularyRepository) UpdateReview(ctx context.Context, id int64, stage int, reviewedAt, nextReview time.Time) error {
	query := `
		UPDATE vocabulary
		SET review_stage = ?, last_reviewed = ?, next_review = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := r.db.ExecContext(ctx, query, stage, utc(reviewedAt), utc(nextReview), utc(reviewedAt), id); err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	return nil
}

// Delete removes a word
func (r *VocabularyRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM vocabulary WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete vocabulary: %w", err)
	}
	return nil
}

// Stats counts a user's words per stage and how many are due at now
func (r *VocabularyRepository) Stats(ctx context.Context, userID int64, now time.Time) (*models.VocabularyStats, error) {
	var rows []struct {
		Stage int `db:"review_stage"`
		Count int `db:"n"`
	}
	query := "SELECT review_stage, COUNT(*) AS n FROM vocabulary WHERE user_id = ? GROUP BY review_stage"
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("failed to count vocabulary: %w", err)
	}

	stats := &models.VocabularyStats{ByStage: map[int]int{}}
	for _, row := range rows {
		stats.ByStage[row.Stage] = row.Count
		stats.Total += row.Count
	}

	if err := r.db.GetContext(ctx, &stats.Due, "SELECT COUNT(*) FROM vocabulary WHERE user_id = ? AND next_review <= ?", userID, utc(now)); err != nil {
		return nil, fmt.Errorf("failed to count due vocabulary: %w", err)
	}
	return stats, nil
}

// DueCount is the number of due words for one user
type DueCount struct {
	UserID int64 `db:"user_id"`
	Due    int   `db:"due"`
}

// DueCounts returns every user with words due at now
func (r *VocabularyRepository) DueCounts(ctx context.Context, now time.Time) ([]DueCount, error) {
	counts := []DueCount{}
	query := "SELECT user_id, COUNT(*) AS due FROM vocabulary WHERE next_review <= ? GROUP BY user_id ORDER BY user_id"
	if err := r.db.SelectContext(ctx, &counts, query, utc(now)); err != nil {
		return nil, fmt.Errorf("failed to count due vocabulary: %w", err)
	}
	return counts, nil
}

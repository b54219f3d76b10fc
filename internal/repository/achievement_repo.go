package repository

import (
	"context"
	"fmt"
	"time"

	"ieltsprep/internal/database"
	"ieltsprep/internal/models"
)

const achievementColumns = `user_id, total_points, current_level, login_streak, longest_streak, last_login_date,
	tests_completed, vocabulary_added, vocabulary_reviewed, highest_score, updated_at`

const badgeColumns = `id, code, name, description, module_type, threshold, repeatable, is_active`

// Counter is an achievement counter that can be incremented
type Counter string

const (
	CounterTestsCompleted     Counter = "tests_completed"
	CounterVocabularyAdded    Counter = "vocabulary_added"
	CounterVocabularyReviewed Counter = "vocabulary_reviewed"
)

func (c Counter) valid() bool {
	return c == CounterTestsCompleted || c == CounterVocabularyAdded || c == CounterVocabularyReviewed
}

// AchievementRepository handles points, levels, badges and streaks
type AchievementRepository struct {
	db database.DBTX
}

// NewAchievementRepository creates a new achievement repository
func NewAchievementRepository(db database.DBTX) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *AchievementRepository) WithTx(tx database.DBTX) *AchievementRepository {
	return &AchievementRepository{db: tx}
}

// Ensure creates the user's achievement row if it does not exist yet
func (r *AchievementRepository) Ensure(ctx context.Context, userID int64) error {
	query := "INSERT INTO user_achievements (user_id, updated_at) VALUES (?, ?)" +
		r.db.GetDialect().UpsertClause([]string{"user_id"}, []string{"user_id"})
	if _, err := r.db.ExecContext(ctx, query, userID, utc(time.Now())); err != nil {
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	return nil
}

// Get retrieves a user's achievement row
func (r *AchievementRepository) Get(ctx context.Context, userID int64) (*models.UserAchievement, error) {
	a := &models.UserAchievement{}
	err := r.db.GetContext(ctx, a, "SELECT "+achievementColumns+" FROM user_achievements WHERE user_id = ?", userID)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get achievement: %w", err)
	}
	if !found {
		return nil, nil
	}
	return a, nil
}

// AddPoints atomically increments a user's total points
func (r *AchievementRepository) AddPoints(ctx context.Context, userID int64, points int) error {
	query := "UPDATE user_achievements SET total_points = total_points + ?, updated_at = ? WHERE user_id = ?"
	if _, err := r.db.ExecContext(ctx, query, points, utc(time.Now()), userID); err != nil {
		return fmt.Errorf("failed to add points: %w", err)
	}
	return nil
}

// Increment atomically adds one to a counter
func (r *AchievementRepository) Increment(ctx context.Context, userID int64, counter Counter) error {
	if !counter.valid() {
		return fmt.Errorf("unknown counter %q", counter)
	}
	query := "UPDATE user_achievements SET " + string(counter) + " = " + string(counter) + " + 1, updated_at = ? WHERE user_id = ?"
	if _, err := r.db.ExecContext(ctx, query, utc(time.Now()), userID); err != nil {
		return fmt.Errorf("failed to increment %s: %w", counter, err)
	}
	return nil
}

// RaiseHighestScore stores score if it beats the current highest score
func (r *AchievementRepository) RaiseHighestScore(ctx context.Context, userID int64, score float64) error {
	query := "UPDATE user_achievements SET highest_score = ?, updated_at = ? WHERE user_id = ? AND highest_score < ?"
	if _, err := r.db.ExecContext(ctx, query, score, utc(time.Now()), userID, score); err != nil {
		return fmt.Errorf("failed to update highest score: %w", err)
	}
	return nil
}

// AdvanceLevel raises current_level to level. Only the caller whose update
// changes the row sees true, so each level-up is observed once.
func (r *AchievementRepository) AdvanceLevel(ctx context.Context, userID int64, level int) (bool, error) {
	query := "UPDATE user_achievements SET current_level = ?, updated_at = ? WHERE user_id = ? AND current_level < ?"
	result, err := r.db.ExecContext(ctx, query, level, utc(time.Now()), userID, level)
	if err != nil {
		return false, fmt.Errorf("failed to advance level: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to advance level: %w", err)
	}
	return n == 1, nil
}

// UpdateStreak writes a new streak if last_login_date still equals prevLogin.
// It reports false when another login updated the row first.
func (r *AchievementRepository) UpdateStreak(ctx context.Context, userID int64, prevLogin *time.Time, streak, longest int, loginDate time.Time) (bool, error) {
	query := `
		UPDATE user_achievements
		SET login_streak = ?, longest_streak = ?, last_login_date = ?, updated_at = ?
		WHERE user_id = ? AND `
	args := []interface{}{streak, longest, utc(loginDate), utc(time.Now()), userID}
	if prevLogin == nil {
		query += "last_login_date IS NULL"
	} else {
		query += "last_login_date = ?"
		args = append(args, utc(*prevLogin))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update streak: %w", err)
	}
	n, err := rowsAffected(result)
	if err != nil {
		return false, fmt.Errorf("failed to update streak: %w", err)
	}
	return n == 1, nil
}

// AddPointHistory appends a ledger entry
func (r *AchievementRepository) AddPointHistory(ctx context.Context, userID int64, action models.ActionType, points int, related *string, at time.Time) (*models.PointHistory, error) {
	query := `
		INSERT INTO point_history (user_id, action_type, points, related_entity, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query, userID, action, points, related, utc(at))
	if err != nil {
		return nil, fmt.Errorf("failed to record points: %w", err)
	}
	return &models.PointHistory{
		ID:            id,
		UserID:        userID,
		ActionType:    action,
		Points:        points,
		RelatedEntity: related,
		CreatedAt:     utc(at),
	}, nil
}

// PointHistory returns a user's most recent ledger entries
func (r *AchievementRepository) PointHistory(ctx context.Context, userID int64, limit int) ([]models.PointHistory, error) {
	history := []models.PointHistory{}
	query := `
		SELECT id, user_id, action_type, points, related_entity, created_at
		FROM point_history
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	if err := r.db.SelectContext(ctx, &history, query, userID, limit); err != nil {
		return nil, fmt.Errorf("failed to list point history: %w", err)
	}
	return history, nil
}

// Levels returns the level catalog in ascending order
func (r *AchievementRepository) Levels(ctx context.Context) ([]models.Level, error) {
	levels := []models.Level{}
	if err := r.db.SelectContext(ctx, &levels, "SELECT level, name, required_points, badge_id FROM levels ORDER BY level"); err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	return levels, nil
}

// ActiveBadges returns the active badge catalog
func (r *AchievementRepository) ActiveBadges(ctx context.Context) ([]models.Badge, error) {
	badges := []models.Badge{}
	query := "SELECT " + badgeColumns + " FROM badges WHERE is_active = ? ORDER BY id"
	if err := r.db.SelectContext(ctx, &badges, query, true); err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	return badges, nil
}

// GetBadge retrieves a badge by ID
func (r *AchievementRepository) GetBadge(ctx context.Context, id int64) (*models.Badge, error) {
	badge := &models.Badge{}
	err := r.db.GetContext(ctx, badge, "SELECT "+badgeColumns+" FROM badges WHERE id = ?", id)
	found, err := getOne(err)
	if err != nil {
		return nil, fmt.Errorf("failed to get badge: %w", err)
	}
	if !found {
		return nil, nil
	}
	return badge, nil
}

// GrantBadge records a first award of a badge. It reports false if the user
// already holds it.
func (r *AchievementRepository) GrantBadge(ctx context.Context, userID, badgeID int64, at time.Time) (bool, error) {
	query := `
		INSERT INTO user_badges (user_id, badge_id, times_earned, first_earned_at, last_earned_at)
		VALUES (?, ?, 1, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, userID, badgeID, utc(at), utc(at))
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to grant badge: %w", err)
	}
	return true, nil
}

// RegrantBadge increments times_earned on a held repeatable badge
func (r *AchievementRepository) RegrantBadge(ctx context.Context, userID, badgeID int64, at time.Time) error {
	query := "UPDATE user_badges SET times_earned = times_earned + 1, last_earned_at = ? WHERE user_id = ? AND badge_id = ?"
	if _, err := r.db.ExecContext(ctx, query, utc(at), userID, badgeID); err != nil {
		return fmt.Errorf("failed to regrant badge: %w", err)
	}
	return nil
}

// UserBadges returns the badges a user holds, most recent first
func (r *AchievementRepository) UserBadges(ctx context.Context, userID int64) ([]models.EarnedBadge, error) {
	badges := []models.EarnedBadge{}
	query := `
		SELECT b.id, b.code, b.name, b.description, b.module_type, b.threshold, b.repeatable, b.is_active,
		       ub.times_earned, ub.first_earned_at, ub.last_earned_at
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = ?
		ORDER BY ub.last_earned_at DESC, b.id
	`
	if err := r.db.SelectContext(ctx, &badges, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	return badges, nil
}

// Leaderboard returns the users with the most points
func (r *AchievementRepository) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	entries := []models.LeaderboardEntry{}
	query := `
		SELECT ua.user_id, u.username, ua.total_points, ua.current_level
		FROM user_achievements ua
		JOIN users u ON u.id = ua.user_id
		ORDER BY ua.total_points DESC, ua.user_id ASC
		LIMIT ?
	`
	if err := r.db.SelectContext(ctx, &entries, query, limit); err != nil {
		return nil, fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return entries, nil
}

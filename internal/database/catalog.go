package database

import (
	"context"
	"fmt"
	"log"
)

type seedBadge struct {
	Code        string
	Name        string
	Description string
	ModuleType  string
	Threshold   int
	Repeatable  bool
}

type seedLevel struct {
	Level          int
	Name           string
	RequiredPoints int
	BadgeCode      string
}

var defaultBadges = []seedBadge{
	{"first_test", "First Steps", "Complete your first practice test", "tests_completed", 1, false},
	{"test_regular", "Test Regular", "Complete 10 practice tests", "tests_completed", 10, false},
	{"test_veteran", "Exam Veteran", "Complete 50 practice tests", "tests_completed", 50, false},
	{"word_collector", "Word Collector", "Add 10 words to your vocabulary", "vocabulary_added", 10, false},
	{"lexicon_builder", "Lexicon Builder", "Add 100 words to your vocabulary", "vocabulary_added", 100, false},
	{"diligent_reviewer", "Diligent Reviewer", "Complete 50 vocabulary reviews", "vocabulary_reviewed", 50, false},
	{"review_master", "Review Master", "Complete 500 vocabulary reviews", "vocabulary_reviewed", 500, false},
	{"streak_3", "Warming Up", "Log in 3 days in a row", "login_streak", 3, true},
	{"streak_7", "Week Warrior", "Log in 7 days in a row", "login_streak", 7, true},
	{"streak_30", "Unstoppable", "Log in 30 days in a row", "login_streak", 30, true},
	{"points_1000", "Point Hoarder", "Earn 1000 points", "total_points", 1000, false},
	{"high_scorer", "High Scorer", "Score 30 or more in a single test", "highest_score", 30, false},
	{"level_2", "Elementary", "Reach level 2", "level", 2, false},
	{"level_5", "Upper-Intermediate", "Reach level 5", "level", 5, false},
	{"level_10", "Band Nine", "Reach level 10", "level", 10, false},
}

var defaultLevels = []seedLevel{
	{1, "Beginner", 0, ""},
	{2, "Elementary", 100, "level_2"},
	{3, "Pre-Intermediate", 250, ""},
	{4, "Intermediate", 500, ""},
	{5, "Upper-Intermediate", 1000, "level_5"},
	{6, "Advanced", 2000, ""},
	{7, "Proficient", 3500, ""},
	{8, "Expert", 5000, ""},
	{9, "Master", 7500, ""},
	{10, "Band Nine", 10000, "level_10"},
}

// SeedCatalog populates the badge and level catalogs when they are empty
func (db *DB) SeedCatalog(ctx context.Context) error {
	var count int
	if err := db.GetContext(ctx, &count, "SELECT COUNT(*) FROM badges"); err != nil {
		return fmt.Errorf("failed to check badge count: %w", err)
	}

	if count > 0 {
		log.Printf("Badge catalog already populated with %d badges", count)
		return nil
	}

	return db.InTx(ctx, func(tx *Tx) error {
		ids := make(map[string]int64, len(defaultBadges))
		for _, b := range defaultBadges {
			id, err := tx.ExecReturningID(ctx, `
				INSERT INTO badges (code, name, description, module_type, threshold, repeatable, is_active)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, b.Code, b.Name, b.Description, b.ModuleType, b.Threshold, b.Repeatable, true)
			if err != nil {
				return fmt.Errorf("failed to seed badge %s: %w", b.Code, err)
			}
			ids[b.Code] = id
		}

		for _, l := range defaultLevels {
			var badgeID *int64
			if id, ok := ids[l.BadgeCode]; ok {
				badgeID = &id
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO levels (level, name, required_points, badge_id) VALUES (?, ?, ?, ?)",
				l.Level, l.Name, l.RequiredPoints, badgeID,
			); err != nil {
				return fmt.Errorf("failed to seed level %d: %w", l.Level, err)
			}
		}

		log.Printf("Seeded %d badges and %d levels", len(defaultBadges), len(defaultLevels))
		return nil
	})
}

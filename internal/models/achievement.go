package models

import "time"

// ActionType is an event that earns points
type ActionType string

const (
	ActionTestCompleted      ActionType = "test_completed"
	ActionVocabularyAdded    ActionType = "vocabulary_added"
	ActionVocabularyReviewed ActionType = "vocabulary_reviewed"
	ActionDailyLogin         ActionType = "daily_login"
	ActionStreakMilestone    ActionType = "streak_milestone"
)

var pointValues = map[ActionType]int{
	ActionTestCompleted:      50,
	ActionVocabularyAdded:    5,
	ActionVocabularyReviewed: 2,
	ActionDailyLogin:         10,
	ActionStreakMilestone:    25,
}

// PointValue returns the points awarded for an action and whether the action is known
func PointValue(action ActionType) (int, bool) {
	v, ok := pointValues[action]
	return v, ok
}

// BadgeModuleType names the counter a badge threshold applies to
type BadgeModuleType string

const (
	BadgeTestsCompleted     BadgeModuleType = "tests_completed"
	BadgeVocabularyAdded    BadgeModuleType = "vocabulary_added"
	BadgeVocabularyReviewed BadgeModuleType = "vocabulary_reviewed"
	BadgeLoginStreak        BadgeModuleType = "login_streak"
	BadgeTotalPoints        BadgeModuleType = "total_points"
	BadgeHighestScore       BadgeModuleType = "highest_score"
	BadgeLevel              BadgeModuleType = "level"
)

// UserAchievement is the per-user gamification snapshot
type UserAchievement struct {
	UserID             int64      `db:"user_id" json:"userId"`
	TotalPoints        int        `db:"total_points" json:"totalPoints"`
	CurrentLevel       int        `db:"current_level" json:"currentLevel"`
	LoginStreak        int        `db:"login_streak" json:"loginStreak"`
	LongestStreak      int        `db:"longest_streak" json:"longestStreak"`
	LastLoginDate      *time.Time `db:"last_login_date" json:"lastLoginDate"`
	TestsCompleted     int        `db:"tests_completed" json:"testsCompleted"`
	VocabularyAdded    int        `db:"vocabulary_added" json:"vocabularyAdded"`
	VocabularyReviewed int        `db:"vocabulary_reviewed" json:"vocabularyReviewed"`
	HighestScore       float64    `db:"highest_score" json:"highestScore"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updatedAt"`
}

// Counter returns the value of the counter a badge of the given module type measures
func (a *UserAchievement) Counter(moduleType BadgeModuleType) float64 {
	switch moduleType {
	case BadgeTestsCompleted:
		return float64(a.TestsCompleted)
	case BadgeVocabularyAdded:
		return float64(a.VocabularyAdded)
	case BadgeVocabularyReviewed:
		return float64(a.VocabularyReviewed)
	case BadgeLoginStreak:
		return float64(a.LoginStreak)
	case BadgeTotalPoints:
		return float64(a.TotalPoints)
	case BadgeHighestScore:
		return a.HighestScore
	case BadgeLevel:
		return float64(a.CurrentLevel)
	}
	return 0
}

// Level is a point threshold
type Level struct {
	Level          int    `db:"level" json:"level"`
	Name           string `db:"name" json:"name"`
	RequiredPoints int    `db:"required_points" json:"requiredPoints"`
	BadgeID        *int64 `db:"badge_id" json:"badgeId,omitempty"`
}

// Badge is a catalog entry
type Badge struct {
	ID          int64           `db:"id" json:"id"`
	Code        string          `db:"code" json:"code"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	ModuleType  BadgeModuleType `db:"module_type" json:"moduleType"`
	Threshold   int             `db:"threshold" json:"threshold"`
	Repeatable  bool            `db:"repeatable" json:"repeatable"`
	IsActive    bool            `db:"is_active" json:"isActive"`
}

// UserBadge is an earned badge instance
type UserBadge struct {
	ID            int64     `db:"id" json:"id"`
	UserID        int64     `db:"user_id" json:"userId"`
	BadgeID       int64     `db:"badge_id" json:"badgeId"`
	TimesEarned   int       `db:"times_earned" json:"timesEarned"`
	FirstEarnedAt time.Time `db:"first_earned_at" json:"firstEarnedAt"`
	LastEarnedAt  time.Time `db:"last_earned_at" json:"lastEarnedAt"`
}

// EarnedBadge joins a badge with the user's earned instance
type EarnedBadge struct {
	Badge
	TimesEarned   int       `db:"times_earned" json:"timesEarned"`
	FirstEarnedAt time.Time `db:"first_earned_at" json:"firstEarnedAt"`
	LastEarnedAt  time.Time `db:"last_earned_at" json:"lastEarnedAt"`
}

// PointHistory is an immutable ledger entry
type PointHistory struct {
	ID            int64      `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"userId"`
	ActionType    ActionType `db:"action_type" json:"actionType"`
	Points        int        `db:"points" json:"points"`
	RelatedEntity *string    `db:"related_entity" json:"relatedEntity,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

// LeaderboardEntry is one row of the points leaderboard
type LeaderboardEntry struct {
	UserID       int64  `db:"user_id" json:"userId"`
	Username     string `db:"username" json:"username"`
	TotalPoints  int    `db:"total_points" json:"totalPoints"`
	CurrentLevel int    `db:"current_level" json:"currentLevel"`
}

package service

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/database"
	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/repository"
)

// streak lengths that always count as milestones; past the last one every
// multiple of 7 or 30 does
var streakMilestones = []int{3, 7, 14, 30}

// IsStreakMilestone reports whether a login streak of n days earns a bonus
func IsStreakMilestone(n int) bool {
	for _, m := range streakMilestones {
		if n == m {
			return true
		}
	}
	return n > 30 && (n%7 == 0 || n%30 == 0)
}

// AwardResult describes what a single award changed
type AwardResult struct {
	Points       int            `json:"points"`
	TotalPoints  int            `json:"totalPoints"`
	LevelUp      *models.Level  `json:"levelUp,omitempty"`
	BadgesEarned []models.Badge `json:"badgesEarned"`
}

// StreakResult is the outcome of a login streak update
type StreakResult struct {
	LoginStreak   int          `json:"loginStreak"`
	LongestStreak int          `json:"longestStreak"`
	Updated       bool         `json:"updated"`
	Milestone     bool         `json:"milestone"`
	Award         *AwardResult `json:"award,omitempty"`
}

// AchievementSummary is a user's achievement row with level details
type AchievementSummary struct {
	models.UserAchievement
	LevelName         string        `json:"levelName"`
	NextLevel         *models.Level `json:"nextLevel,omitempty"`
	PointsToNextLevel int           `json:"pointsToNextLevel"`
}

// awardOptions carries the counter changes that accompany an award
type awardOptions struct {
	counter       repository.Counter
	score         *float64
	reachedStreak int
}

// GamificationService awards points, levels and badges
type GamificationService struct {
	db            *database.DB
	repo          *repository.AchievementRepository
	notifications *NotificationService
	reporter      *reporting.Reporter
	now           func() time.Time
}

// NewGamificationService creates a new gamification service
func NewGamificationService(db *database.DB, repo *repository.AchievementRepository, notifications *NotificationService, reporter *reporting.Reporter) *GamificationService {
	return &GamificationService{
		db:            db,
		repo:          repo,
		notifications: notifications,
		reporter:      reporter,
		now:           time.Now,
	}
}

// AwardPoints appends a ledger entry for action and adds its points to the
// user's total, then runs the level and badge checks
func (s *GamificationService) AwardPoints(ctx context.Context, userID int64, action models.ActionType, related *string) (*AwardResult, error) {
	return s.award(ctx, userID, action, related, awardOptions{})
}

func (s *GamificationService) award(ctx context.Context, userID int64, action models.ActionType, related *string, opts awardOptions) (*AwardResult, error) {
	points, ok := models.PointValue(action)
	if !ok {
		return nil, apperr.Validation("Unknown action type", apperr.FieldError{Field: "actionType", Message: "unknown action " + string(action)})
	}

	err := s.db.InTx(ctx, func(tx *database.Tx) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Ensure(ctx, userID); err != nil {
			return err
		}
		if opts.counter != "" {
			if err := repo.Increment(ctx, userID, opts.counter); err != nil {
				return err
			}
		}
		if opts.score != nil {
			if err := repo.RaiseHighestScore(ctx, userID, *opts.score); err != nil {
				return err
			}
		}
		if _, err := repo.AddPointHistory(ctx, userID, action, points, related, s.now()); err != nil {
			return err
		}
		return repo.AddPoints(ctx, userID, points)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to award points: %w", err)
	}

	result := &AwardResult{Points: points, BadgesEarned: []models.Badge{}}

	ach, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	result.TotalPoints = ach.TotalPoints

	level, levelBadge, err := s.checkLevel(ctx, ach)
	if err != nil {
		return nil, err
	}
	result.LevelUp = level
	if level != nil {
		ach.CurrentLevel = level.Level
	}
	if levelBadge != nil {
		result.BadgesEarned = append(result.BadgesEarned, *levelBadge)
	}

	badges, err := s.checkBadges(ctx, ach, opts.reachedStreak)
	if err != nil {
		return nil, err
	}
	result.BadgesEarned = append(result.BadgesEarned, badges...)

	return result, nil
}

// checkLevel advances the user to the highest level their points reach.
// The conditional update makes sure a level-up is only reported once.
func (s *GamificationService) checkLevel(ctx context.Context, ach *models.UserAchievement) (*models.Level, *models.Badge, error) {
	levels, err := s.repo.Levels(ctx)
	if err != nil {
		return nil, nil, err
	}

	var target *models.Level
	for i := range levels {
		if levels[i].RequiredPoints <= ach.TotalPoints {
			target = &levels[i]
		}
	}
	if target == nil || target.Level <= ach.CurrentLevel {
		return nil, nil, nil
	}

	advanced, err := s.repo.AdvanceLevel(ctx, ach.UserID, target.Level)
	if err != nil {
		return nil, nil, err
	}
	if !advanced {
		return nil, nil, nil
	}

	log.Printf("User %d reached level %d", ach.UserID, target.Level)
	s.notify(ctx, Event{Type: models.NotifyLevelUp, UserID: ach.UserID, Subject: target.Name, Value: float64(target.Level), Link: "/gamification/user-achievement"})

	if target.BadgeID == nil {
		return target, nil, nil
	}
	badge, err := s.repo.GetBadge(ctx, *target.BadgeID)
	if err != nil || badge == nil {
		return target, nil, err
	}
	granted, err := s.grant(ctx, ach.UserID, badge)
	if err != nil || !granted {
		return target, nil, err
	}
	return target, badge, nil
}

// checkBadges grants every active badge whose threshold the user meets.
// reachedStreak is the streak length just reached by a login, or 0.
func (s *GamificationService) checkBadges(ctx context.Context, ach *models.UserAchievement, reachedStreak int) ([]models.Badge, error) {
	badges, err := s.repo.ActiveBadges(ctx)
	if err != nil {
		return nil, err
	}

	earned := []models.Badge{}
	for _, badge := range badges {
		if ach.Counter(badge.ModuleType) < float64(badge.Threshold) {
			continue
		}

		granted, err := s.grant(ctx, ach.UserID, &badge)
		if err != nil {
			return nil, err
		}
		if granted {
			earned = append(earned, badge)
			continue
		}

		// a repeatable streak badge is earned again when a rebuilt streak hits its threshold
		if badge.Repeatable && badge.ModuleType == models.BadgeLoginStreak && reachedStreak == badge.Threshold {
			if err := s.repo.RegrantBadge(ctx, ach.UserID, badge.ID, s.now()); err != nil {
				return nil, err
			}
			s.notify(ctx, Event{Type: models.NotifyBadgeEarned, UserID: ach.UserID, Subject: badge.Name, Link: "/gamification/badges"})
			earned = append(earned, badge)
		}
	}
	return earned, nil
}

func (s *GamificationService) grant(ctx context.Context, userID int64, badge *models.Badge) (bool, error) {
	granted, err := s.repo.GrantBadge(ctx, userID, badge.ID, s.now())
	if err != nil {
		return false, err
	}
	if granted {
		log.Printf("User %d earned badge %s", userID, badge.Code)
		s.notify(ctx, Event{Type: models.NotifyBadgeEarned, UserID: userID, Subject: badge.Name, Link: "/gamification/badges"})
	}
	return granted, nil
}

func (s *GamificationService) notify(ctx context.Context, ev Event) {
	if s.notifications == nil {
		return
	}
	sideEffect(ctx, s.reporter, string(ev.Type)+" notification", ev.UserID, func(ctx context.Context) error {
		_, err := s.notifications.Dispatch(ctx, ev)
		return err
	})
}

// RecordTestCompleted counts a completed test and awards its points
func (s *GamificationService) RecordTestCompleted(ctx context.Context, userID, attemptID int64, score float64) (*AwardResult, error) {
	related := "attempt:" + strconv.FormatInt(attemptID, 10)
	return s.award(ctx, userID, models.ActionTestCompleted, &related, awardOptions{
		counter: repository.CounterTestsCompleted,
		score:   &score,
	})
}

// RecordVocabularyAdded counts a new vocabulary word and awards its points
func (s *GamificationService) RecordVocabularyAdded(ctx context.Context, userID, vocabularyID int64) (*AwardResult, error) {
	related := "vocabulary:" + strconv.FormatInt(vocabularyID, 10)
	return s.award(ctx, userID, models.ActionVocabularyAdded, &related, awardOptions{counter: repository.CounterVocabularyAdded})
}

// RecordVocabularyReviewed counts a review and awards its points
func (s *GamificationService) RecordVocabularyReviewed(ctx context.Context, userID, vocabularyID int64) (*AwardResult, error) {
	related := "vocabulary:" + strconv.FormatInt(vocabularyID, 10)
	return s.award(ctx, userID, models.ActionVocabularyReviewed, &related, awardOptions{counter: repository.CounterVocabularyReviewed})
}

func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// UpdateLoginStreak records today's login. A second login on the same UTC
// day changes nothing; a login the day after the last one extends the
// streak and any longer gap restarts it at 1.
func (s *GamificationService) UpdateLoginStreak(ctx context.Context, userID int64) (*StreakResult, error) {
	if err := s.repo.Ensure(ctx, userID); err != nil {
		return nil, err
	}
	ach, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := utcDay(s.now())
	streak := 1
	if ach.LastLoginDate != nil {
		gap := int(today.Sub(utcDay(*ach.LastLoginDate)).Hours() / 24)
		if gap <= 0 {
			return &StreakResult{LoginStreak: ach.LoginStreak, LongestStreak: ach.LongestStreak}, nil
		}
		if gap == 1 {
			streak = ach.LoginStreak + 1
		}
	}
	longest := max(ach.LongestStreak, streak)

	updated, err := s.repo.UpdateStreak(ctx, userID, ach.LastLoginDate, streak, longest, today)
	if err != nil {
		return nil, err
	}
	if !updated {
		// a concurrent login got there first
		current, err := s.repo.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &StreakResult{LoginStreak: current.LoginStreak, LongestStreak: current.LongestStreak}, nil
	}

	result := &StreakResult{LoginStreak: streak, LongestStreak: longest, Updated: true}

	related := "login:" + today.Format("2006-01-02")
	award, err := s.award(ctx, userID, models.ActionDailyLogin, &related, awardOptions{reachedStreak: streak})
	if err != nil {
		return nil, err
	}
	result.Award = award

	if IsStreakMilestone(streak) {
		result.Milestone = true
		s.notify(ctx, Event{Type: models.NotifyStreakMilestone, UserID: userID, Value: float64(streak)})

		related := "streak:" + strconv.Itoa(streak)
		bonus, err := s.award(ctx, userID, models.ActionStreakMilestone, &related, awardOptions{})
		if err != nil {
			return nil, err
		}
		award.Points += bonus.Points
		award.TotalPoints = bonus.TotalPoints
		if bonus.LevelUp != nil {
			award.LevelUp = bonus.LevelUp
		}
		award.BadgesEarned = append(award.BadgesEarned, bonus.BadgesEarned...)
	}

	return result, nil
}

// GetAchievement returns the user's achievement snapshot
func (s *GamificationService) GetAchievement(ctx context.Context, userID int64) (*AchievementSummary, error) {
	if err := s.repo.Ensure(ctx, userID); err != nil {
		return nil, err
	}
	ach, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	levels, err := s.repo.Levels(ctx)
	if err != nil {
		return nil, err
	}

	summary := &AchievementSummary{UserAchievement: *ach}
	for i := range levels {
		if levels[i].Level == ach.CurrentLevel {
			summary.LevelName = levels[i].Name
		}
		if levels[i].Level > ach.CurrentLevel && summary.NextLevel == nil {
			next := levels[i]
			summary.NextLevel = &next
			summary.PointsToNextLevel = max(next.RequiredPoints-ach.TotalPoints, 0)
		}
	}
	return summary, nil
}

// ListBadges returns the badges a user has earned
func (s *GamificationService) ListBadges(ctx context.Context, userID int64) ([]models.EarnedBadge, error) {
	return s.repo.UserBadges(ctx, userID)
}

// PointHistory returns the user's most recent ledger entries
func (s *GamificationService) PointHistory(ctx context.Context, userID int64, limit int) ([]models.PointHistory, error) {
	return s.repo.PointHistory(ctx, userID, clampLimit(limit, 50, 200))
}

// Levels returns the level catalog
func (s *GamificationService) Levels(ctx context.Context) ([]models.Level, error) {
	return s.repo.Levels(ctx)
}

// Leaderboard returns the users with the most points
func (s *GamificationService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	return s.repo.Leaderboard(ctx, clampLimit(limit, 10, 100))
}

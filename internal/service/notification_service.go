package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
	"ieltsprep/internal/repository"
)

// Event is something that happened to a user and may deserve an inbox entry
type Event struct {
	Type    models.NotificationType
	UserID  int64
	Subject string  // test title, badge name or level name
	Value   float64 // score, streak length, level or due count
	Link    string
	At      *time.Time
}

// NotificationService maps domain events to inbox entries
type NotificationService struct {
	repo *repository.NotificationRepository
	now  func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{repo: repo, now: time.Now}
}

// Dispatch stores the inbox entry for an event
func (s *NotificationService) Dispatch(ctx context.Context, ev Event) (*models.Notification, error) {
	n, err := render(ev)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func render(ev Event) (*models.Notification, error) {
	n := &models.Notification{
		UserID:       ev.UserID,
		Type:         ev.Type,
		Priority:     models.PriorityNormal,
		ScheduledFor: ev.At,
	}
	if ev.Link != "" {
		link := ev.Link
		n.ActionLink = &link
	}

	switch ev.Type {
	case models.NotifyTestCompleted:
		n.Title = "Test completed"
		n.Message = fmt.Sprintf("You completed %s with a score of %s.", ev.Subject, formatScore(ev.Value))
	case models.NotifyTestTimedOut:
		n.Title = "Time is up"
		n.Message = fmt.Sprintf("Your attempt at %s ran out of time and was submitted with a score of %s.", ev.Subject, formatScore(ev.Value))
		n.Priority = models.PriorityHigh
	case models.NotifyAnswerGraded:
		n.Title = "Answer graded"
		n.Message = fmt.Sprintf("Your answer for %s was scored band %s.", ev.Subject, formatScore(ev.Value))
	case models.NotifyBadgeEarned:
		n.Title = "Badge earned"
		n.Message = fmt.Sprintf("You earned the %s badge!", ev.Subject)
		n.Priority = models.PriorityHigh
	case models.NotifyLevelUp:
		n.Title = "Level up"
		n.Message = fmt.Sprintf("You reached level %d: %s.", int(ev.Value), ev.Subject)
		n.Priority = models.PriorityHigh
	case models.NotifyStreakMilestone:
		n.Title = "Streak milestone"
		n.Message = fmt.Sprintf("You have studied %d days in a row. Keep it up!", int(ev.Value))
	case models.NotifyReviewDue:
		n.Title = "Words to review"
		n.Message = fmt.Sprintf("You have %d vocabulary words due for review.", int(ev.Value))
		n.Priority = models.PriorityLow
	default:
		return nil, fmt.Errorf("unknown notification type %q", ev.Type)
	}
	return n, nil
}

func formatScore(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}

// List returns the user's visible notifications, newest first
func (s *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]models.Notification, error) {
	return s.repo.ListByUser(ctx, userID, unreadOnly, s.now(), clampLimit(limit, 50, 200))
}

// UnreadCount returns the number of visible unread notifications
func (s *NotificationService) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return s.repo.UnreadCount(ctx, userID, s.now())
}

// MarkRead marks one of the user's notifications read
func (s *NotificationService) MarkRead(ctx context.Context, userID, id int64) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("Notification")
	}
	return nil
}

// MarkAllRead marks every notification of the user read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// Delete removes one of the user's notifications
func (s *NotificationService) Delete(ctx context.Context, userID, id int64) error {
	ok, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("Notification")
	}
	return nil
}

// SendReviewReminders notifies every user with due vocabulary, at most once a day
func (s *NotificationService) SendReviewReminders(ctx context.Context, vocab *repository.VocabularyRepository) (int, error) {
	now := s.now()
	counts, err := vocab.DueCounts(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to count due vocabulary: %w", err)
	}

	sent := 0
	for _, c := range counts {
		if c.Due == 0 {
			continue
		}
		pending, err := s.repo.HasUnreadOfType(ctx, c.UserID, models.NotifyReviewDue, now.Add(-24*time.Hour))
		if err != nil {
			return sent, err
		}
		if pending {
			continue
		}
		if _, err := s.Dispatch(ctx, Event{Type: models.NotifyReviewDue, UserID: c.UserID, Value: float64(c.Due), Link: "/vocabulary/review"}); err != nil {
			log.Printf("Failed to send review reminder to user %d: %v", c.UserID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

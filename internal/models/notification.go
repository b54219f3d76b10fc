package models

import "time"

// NotificationType identifies the event behind a notification
type NotificationType string

const (
	NotifyTestCompleted   NotificationType = "test_completed"
	NotifyTestTimedOut    NotificationType = "test_timed_out"
	NotifyAnswerGraded    NotificationType = "answer_graded"
	NotifyBadgeEarned     NotificationType = "badge_earned"
	NotifyLevelUp         NotificationType = "level_up"
	NotifyStreakMilestone NotificationType = "streak_milestone"
	NotifyReviewDue       NotificationType = "review_due"
)

// Priority orders notifications in the inbox
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Notification is a per-user inbox entry
type Notification struct {
	ID           int64            `db:"id" json:"id"`
	UserID       int64            `db:"user_id" json:"userId"`
	Type         NotificationType `db:"type" json:"type"`
	Title        string           `db:"title" json:"title"`
	Message      string           `db:"message" json:"message"`
	Priority     Priority         `db:"priority" json:"priority"`
	IsRead       bool             `db:"is_read" json:"isRead"`
	ActionLink   *string          `db:"action_link" json:"actionLink,omitempty"`
	ScheduledFor *time.Time       `db:"scheduled_for" json:"scheduledFor,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"createdAt"`
}

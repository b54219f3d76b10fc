package models

import "time"

// AttemptStatus is the lifecycle state of an attempt
type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not_started"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptPaused     AttemptStatus = "paused"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptTimedOut   AttemptStatus = "timed_out"
)

var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptNotStarted: {AttemptInProgress},
	AttemptInProgress: {AttemptPaused, AttemptCompleted, AttemptTimedOut},
	AttemptPaused:     {AttemptInProgress, AttemptCompleted, AttemptTimedOut},
}

// Valid reports whether s is a known status
func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptNotStarted, AttemptInProgress, AttemptPaused, AttemptCompleted, AttemptTimedOut:
		return true
	}
	return false
}

// IsActive reports whether the attempt is in_progress or paused
func (s AttemptStatus) IsActive() bool {
	return s == AttemptInProgress || s == AttemptPaused
}

// IsTerminal reports whether no transition can leave s
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptCompleted || s == AttemptTimedOut
}

// CanTransitionTo reports whether s -> next is a legal transition
func (s AttemptStatus) CanTransitionTo(next AttemptStatus) bool {
	for _, allowed := range attemptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Attempt is one user's timed run through one Test
type Attempt struct {
	ID        int64         `db:"id" json:"id"`
	UserID    int64         `db:"user_id" json:"userId"`
	TestID    int64         `db:"test_id" json:"testId"`
	Status    AttemptStatus `db:"status" json:"status"`
	StartTime time.Time     `db:"start_time" json:"startTime"`
	EndTime   *time.Time    `db:"end_time" json:"endTime"`
	Score     *float64      `db:"score" json:"score"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`

	// TimeRemaining is computed, in seconds
	TimeRemaining *int64 `db:"-" json:"timeRemaining,omitempty"`
}

// RemainingSeconds returns duration minus elapsed time at now, floored at zero
func (a *Attempt) RemainingSeconds(durationSeconds int64, now time.Time) int64 {
	elapsed := int64(now.Sub(a.StartTime) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := durationSeconds - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// GradingStatus tracks asynchronous scoring of an answer
type GradingStatus string

const (
	GradingGraded  GradingStatus = "graded"
	GradingPending GradingStatus = "pending"
	GradingFailed  GradingStatus = "failed"
)

// Answer is a response to one question within an attempt
type Answer struct {
	ID              int64         `db:"id" json:"id"`
	AttemptID       int64         `db:"attempt_id" json:"attemptId"`
	QuestionID      int64         `db:"question_id" json:"questionId"`
	AnswerText      string        `db:"answer_text" json:"answer"`
	IsCorrect       *bool         `db:"is_correct" json:"isCorrect"`
	Score           *float64      `db:"score" json:"score"`
	AudioPath       *string       `db:"audio_path" json:"audioPath,omitempty"`
	Feedback        string        `db:"feedback" json:"feedback"`
	Rubric          RubricScores  `db:"rubric" json:"rubric,omitempty"`
	GradingStatus   GradingStatus `db:"grading_status" json:"gradingStatus"`
	GradedBy        *int64        `db:"graded_by" json:"gradedBy"`
	GradingAttempts int           `db:"grading_attempts" json:"gradingAttempts"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updatedAt"`
}

// AttemptWithAnswers is an attempt and its recorded answers
type AttemptWithAnswers struct {
	Attempt
	Answers []Answer `json:"answers"`
}

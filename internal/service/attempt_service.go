package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/grading"
	"ieltsprep/internal/media"
	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/repository"
)

// Enqueuer schedules answers for asynchronous scoring
type Enqueuer interface {
	Enqueue(answerID int64) bool
}

// StatusUpdate is a requested attempt status change
type StatusUpdate struct {
	Status  models.AttemptStatus `json:"status"`
	EndTime *time.Time           `json:"endTime"`
	Score   *float64             `json:"score"`
}

// AnswerInput is one submitted answer
type AnswerInput struct {
	QuestionID int64   `json:"questionId"`
	Answer     string  `json:"answer"`
	AudioPath  *string `json:"audioPath"`
}

// AttemptService runs the attempt lifecycle
type AttemptService struct {
	attempts      *repository.AttemptRepository
	answers       *repository.AnswerRepository
	content       *repository.ContentRepository
	media         *media.Store
	gamification  *GamificationService
	notifications *NotificationService
	queue         Enqueuer
	reporter      *reporting.Reporter
	now           func() time.Time
}

// NewAttemptService creates a new attempt service
func NewAttemptService(attempts *repository.AttemptRepository, answers *repository.AnswerRepository,
	content *repository.ContentRepository, store *media.Store, gamification *GamificationService,
	notifications *NotificationService, queue Enqueuer, reporter *reporting.Reporter) *AttemptService {
	return &AttemptService{
		attempts:      attempts,
		answers:       answers,
		content:       content,
		media:         store,
		gamification:  gamification,
		notifications: notifications,
		queue:         queue,
		reporter:      reporter,
		now:           time.Now,
	}
}

// Create starts an in_progress attempt of testID for userID. Admins may
// start attempts for other users.
func (s *AttemptService) Create(ctx context.Context, actor *models.User, userID, testID int64) (*models.Attempt, error) {
	if userID == 0 {
		userID = actor.ID
	}
	if userID != actor.ID && !actor.IsAdmin() {
		return nil, apperr.Forbidden("You cannot start attempts for other users")
	}

	test, err := s.content.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if test == nil || !test.IsActive {
		return nil, apperr.NotFound("Test")
	}

	attempt, err := s.attempts.Create(ctx, userID, testID, s.now())
	if errors.Is(err, repository.ErrActiveAttemptExists) {
		return nil, apperr.Conflict("An active attempt already exists for this test")
	}
	if err != nil {
		return nil, err
	}

	remaining := attempt.RemainingSeconds(test.DurationSeconds(), s.now())
	attempt.TimeRemaining = &remaining
	return attempt, nil
}

// GetActive returns the user's most recently started active attempt, for one
// test or any test when testID is 0. It returns nil when there is none.
func (s *AttemptService) GetActive(ctx context.Context, userID, testID int64) (*models.Attempt, error) {
	attempt, err := s.attempts.GetActive(ctx, userID, testID)
	if err != nil || attempt == nil {
		return nil, err
	}

	test, err := s.content.GetTest(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	if test == nil {
		return nil, fmt.Errorf("test %d of attempt %d not found", attempt.TestID, attempt.ID)
	}

	remaining := attempt.RemainingSeconds(test.DurationSeconds(), s.now())
	attempt.TimeRemaining = &remaining
	return attempt, nil
}

// List returns the user's attempts, newest first
func (s *AttemptService) List(ctx context.Context, userID int64) ([]models.Attempt, error) {
	return s.attempts.ListByUser(ctx, userID)
}

// loadOwned fetches an attempt the actor owns, or any attempt for admins
func (s *AttemptService) loadOwned(ctx context.Context, actor *models.User, id int64, allowAdmin bool) (*models.Attempt, error) {
	attempt, err := s.attempts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, apperr.NotFound("Attempt")
	}
	if attempt.UserID != actor.ID && !(allowAdmin && actor.IsAdmin()) {
		return nil, apperr.Forbidden("You do not own this attempt")
	}
	return attempt, nil
}

// Get returns an attempt with its answers to its owner or an admin
func (s *AttemptService) Get(ctx context.Context, actor *models.User, id int64) (*models.AttemptWithAnswers, error) {
	attempt, err := s.loadOwned(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}

	answers, err := s.answers.ListByAttempt(ctx, id)
	if err != nil {
		return nil, err
	}

	if attempt.Status.IsActive() {
		if test, err := s.content.GetTest(ctx, attempt.TestID); err == nil && test != nil {
			remaining := attempt.RemainingSeconds(test.DurationSeconds(), s.now())
			attempt.TimeRemaining = &remaining
		}
	}
	return &models.AttemptWithAnswers{Attempt: *attempt, Answers: answers}, nil
}

// UpdateStatus moves an attempt through its lifecycle. Completing defaults
// the end time to now and the score to the sum of the answer scores.
func (s *AttemptService) UpdateStatus(ctx context.Context, actor *models.User, id int64, in StatusUpdate) (*models.Attempt, error) {
	in.Status = models.AttemptStatus(strings.TrimSpace(string(in.Status)))
	if !in.Status.Valid() {
		return nil, apperr.Validation("Invalid status", apperr.FieldError{Field: "status", Message: "unknown status " + string(in.Status)})
	}
	if in.Score != nil && *in.Score < 0 {
		return nil, apperr.Validation("Invalid score", apperr.FieldError{Field: "score", Message: "must not be negative"})
	}

	attempt, err := s.loadOwned(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	if !attempt.Status.CanTransitionTo(in.Status) {
		return nil, apperr.Conflict(fmt.Sprintf("Cannot change attempt from %s to %s", attempt.Status, in.Status))
	}

	endTime, score := attempt.EndTime, attempt.Score
	if in.Status.IsTerminal() {
		endTime = in.EndTime
		if endTime == nil {
			now := s.now()
			endTime = &now
		}
		score = in.Score
		if score == nil {
			total, err := s.attempts.SumAnswerScores(ctx, id)
			if err != nil {
				return nil, err
			}
			score = &total
		}
	} else if in.Score != nil {
		score = in.Score
	}

	ok, err := s.attempts.UpdateStatus(ctx, id, attempt.Status, in.Status, endTime, score)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Conflict("Attempt was changed by another request")
	}

	updated, err := s.attempts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch updated.Status {
	case models.AttemptCompleted:
		s.AfterCompletion(ctx, updated)
	case models.AttemptTimedOut:
		s.afterTimeout(ctx, updated)
	}
	return updated, nil
}

// AfterCompletion sends the completion notification and records the test
// for gamification. Failures are logged and reported only.
func (s *AttemptService) AfterCompletion(ctx context.Context, attempt *models.Attempt) {
	score := 0.0
	if attempt.Score != nil {
		score = *attempt.Score
	}
	title := s.testTitle(ctx, attempt.TestID)

	sideEffect(ctx, s.reporter, "test_completed notification", attempt.UserID, func(ctx context.Context) error {
		_, err := s.notifications.Dispatch(ctx, Event{
			Type:    models.NotifyTestCompleted,
			UserID:  attempt.UserID,
			Subject: title,
			Value:   score,
			Link:    fmt.Sprintf("/attempts/%d", attempt.ID),
		})
		return err
	})
	sideEffect(ctx, s.reporter, "test_completed award", attempt.UserID, func(ctx context.Context) error {
		_, err := s.gamification.RecordTestCompleted(ctx, attempt.UserID, attempt.ID, score)
		return err
	})
}

func (s *AttemptService) afterTimeout(ctx context.Context, attempt *models.Attempt) {
	score := 0.0
	if attempt.Score != nil {
		score = *attempt.Score
	}
	sideEffect(ctx, s.reporter, "test_timed_out notification", attempt.UserID, func(ctx context.Context) error {
		_, err := s.notifications.Dispatch(ctx, Event{
			Type:    models.NotifyTestTimedOut,
			UserID:  attempt.UserID,
			Subject: s.testTitle(ctx, attempt.TestID),
			Value:   score,
			Link:    fmt.Sprintf("/attempts/%d", attempt.ID),
		})
		return err
	})
}

func (s *AttemptService) testTitle(ctx context.Context, testID int64) string {
	test, err := s.content.GetTest(ctx, testID)
	if err != nil || test == nil {
		return "your test"
	}
	return test.Title
}

// RecordAnswer stores the owner's answer to a question of the attempt's
// test. Closed questions are graded at once; essay and speaking answers are
// queued for AI scoring.
func (s *AttemptService) RecordAnswer(ctx context.Context, actor *models.User, attemptID int64, in AnswerInput) (*models.Answer, error) {
	if in.QuestionID <= 0 {
		return nil, apperr.Validation("Invalid input", apperr.FieldError{Field: "questionId", Message: "questionId is required"})
	}
	if in.AudioPath != nil && strings.TrimSpace(*in.AudioPath) == "" {
		in.AudioPath = nil
	}
	if in.AudioPath != nil && s.media != nil && !s.media.Exists(*in.AudioPath) {
		return nil, apperr.Validation("Invalid input", apperr.FieldError{Field: "audioPath", Message: "audio file not found"})
	}

	attempt, err := s.loadOwned(ctx, actor, attemptID, false)
	if err != nil {
		return nil, err
	}
	if attempt.Status.IsTerminal() {
		return nil, apperr.Conflict("Attempt is already " + string(attempt.Status))
	}

	question, err := s.content.GetQuestion(ctx, in.QuestionID)
	if err != nil {
		return nil, err
	}
	if question == nil {
		return nil, apperr.NotFound("Question")
	}
	if question.TestID != attempt.TestID {
		return nil, apperr.Validation("Question does not belong to this test", apperr.FieldError{Field: "questionId", Message: "not part of this test"})
	}

	answer := &models.Answer{
		AttemptID:  attempt.ID,
		QuestionID: question.ID,
		AnswerText: in.Answer,
		AudioPath:  in.AudioPath,
	}

	if question.Type.AutoGraded() {
		result, err := grading.Grade(question, in.Answer)
		if err != nil {
			return nil, fmt.Errorf("failed to grade answer to question %d: %w", question.ID, err)
		}
		answer.IsCorrect = &result.IsCorrect
		answer.Score = &result.Score
		answer.GradingStatus = models.GradingGraded
	} else {
		if strings.TrimSpace(in.Answer) == "" && (question.Type != models.QuestionSpeaking || in.AudioPath == nil) {
			return nil, apperr.Validation("Answer is empty", apperr.FieldError{Field: "answer", Message: "an answer is required"})
		}
		answer.GradingStatus = models.GradingPending
	}

	saved, err := s.answers.Upsert(ctx, answer)
	if err != nil {
		return nil, err
	}

	if saved.GradingStatus == models.GradingPending && s.queue != nil {
		s.queue.Enqueue(saved.ID)
	}
	return saved, nil
}

// TimeoutExpired closes every active attempt whose time ran out. The end time
// is the moment the time ran out and the score is the sum of the answers.
func (s *AttemptService) TimeoutExpired(ctx context.Context) (int, error) {
	active, err := s.attempts.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	closed := 0
	for _, a := range active {
		deadline := a.StartTime.Add(time.Duration(a.DurationMinutes) * time.Minute)
		if now.Before(deadline) {
			continue
		}

		total, err := s.attempts.SumAnswerScores(ctx, a.ID)
		if err != nil {
			return closed, err
		}
		ok, err := s.attempts.UpdateStatus(ctx, a.ID, a.Status, models.AttemptTimedOut, &deadline, &total)
		if err != nil {
			return closed, err
		}
		if !ok {
			continue
		}

		closed++
		attempt := a.Attempt
		attempt.Status = models.AttemptTimedOut
		attempt.EndTime = &deadline
		attempt.Score = &total
		log.Printf("Attempt %d timed out", attempt.ID)
		s.afterTimeout(ctx, &attempt)
	}
	return closed, nil
}

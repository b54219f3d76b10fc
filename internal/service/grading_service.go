package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"ieltsprep/internal/ai"
	"ieltsprep/internal/apperr"
	"ieltsprep/internal/database"
	"ieltsprep/internal/grading"
	"ieltsprep/internal/media"
	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/repository"
)

// errUngradable marks failures that no retry can fix
var errUngradable = errors.New("answer cannot be scored")

// Scorer assesses open-ended answers
type Scorer interface {
	Enabled() bool
	Score(ctx context.Context, sr ai.ScoreRequest) (*ai.Assessment, error)
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// CompletionHandler runs the follow-up work for a newly completed attempt
type CompletionHandler interface {
	AfterCompletion(ctx context.Context, attempt *models.Attempt)
}

// AnswerOverride is an admin's manual grade. Nil fields are left unchanged.
type AnswerOverride struct {
	IsCorrect *bool    `json:"isCorrect"`
	Score     *float64 `json:"score"`
	Feedback  *string  `json:"feedback"`
}

// GradingConfig configures the asynchronous grading queue
type GradingConfig struct {
	Workers   int
	QueueSize int
	// CallTimeout bounds one answer's transcription plus scoring
	CallTimeout time.Duration
	// MaxAttempts caps scoring runs per answer; past it the answer stays
	// failed for manual grading
	MaxAttempts int
}

// GradingService scores essay and speaking answers in the background and
// applies admin overrides
type GradingService struct {
	db            *database.DB
	answers       *repository.AnswerRepository
	attempts      *repository.AttemptRepository
	content       *repository.ContentRepository
	scorer        Scorer
	media         *media.Store
	notifications *NotificationService
	reporter      *reporting.Reporter
	completions   CompletionHandler

	cfg      GradingConfig
	queue    chan int64
	mu       sync.Mutex
	inflight map[int64]bool
	wg       sync.WaitGroup
}

// NewGradingService creates a new grading service
func NewGradingService(db *database.DB, answers *repository.AnswerRepository, attempts *repository.AttemptRepository,
	content *repository.ContentRepository, scorer Scorer, store *media.Store, notifications *NotificationService,
	reporter *reporting.Reporter, cfg GradingConfig) *GradingService {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 3 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	return &GradingService{
		db:            db,
		answers:       answers,
		attempts:      attempts,
		content:       content,
		scorer:        scorer,
		media:         store,
		notifications: notifications,
		reporter:      reporter,
		cfg:           cfg,
		queue:         make(chan int64, cfg.QueueSize),
		inflight:      make(map[int64]bool),
	}
}

// SetCompletionHandler registers who handles attempts completed by an override
func (s *GradingService) SetCompletionHandler(h CompletionHandler) {
	s.completions = h
}

// Start launches the worker pool. Workers stop when ctx is cancelled.
func (s *GradingService) Start(ctx context.Context) {
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case id := <-s.queue:
					s.process(ctx, id)
					s.done(id)
				}
			}
		}()
	}
	log.Printf("Started %d grading workers", s.cfg.Workers)
}

// Wait blocks until every worker has stopped
func (s *GradingService) Wait() {
	s.wg.Wait()
}

// Drain grades every queued answer on the calling goroutine and returns how
// many it processed. It is for processes that run without workers.
func (s *GradingService) Drain(ctx context.Context) int {
	n := 0
	for {
		select {
		case id := <-s.queue:
			s.process(ctx, id)
			s.done(id)
			n++
		default:
			return n
		}
	}
}

// Enqueue schedules an answer for AI scoring. It reports false when the
// answer is already queued or the queue is full; the requeue job retries those.
func (s *GradingService) Enqueue(answerID int64) bool {
	s.mu.Lock()
	if s.inflight[answerID] {
		s.mu.Unlock()
		return false
	}
	s.inflight[answerID] = true
	s.mu.Unlock()

	select {
	case s.queue <- answerID:
		return true
	default:
		log.Printf("Grading queue full, answer %d will be retried later", answerID)
		s.done(answerID)
		return false
	}
}

func (s *GradingService) done(answerID int64) {
	s.mu.Lock()
	delete(s.inflight, answerID)
	s.mu.Unlock()
}

// process scores one answer. Failures mark the answer failed and count the
// run; the requeue job retries transient failures up to MaxAttempts and
// leaves the rest for an admin.
func (s *GradingService) process(ctx context.Context, answerID int64) {
	err := s.GradeAnswer(ctx, answerID)
	if err == nil {
		return
	}
	log.Printf("Failed to grade answer %d: %v", answerID, err)
	if ctx.Err() != nil {
		return
	}

	permanent := isPermanentGradingError(err)
	if serr := s.answers.RecordGradingFailure(context.WithoutCancel(ctx), answerID, permanent, s.cfg.MaxAttempts); serr != nil {
		log.Printf("Failed to mark answer %d failed: %v", answerID, serr)
	}
	if s.reporter != nil {
		s.reporter.Error("AI grading failed", err, map[string]interface{}{
			"answer_id": answerID,
			"permanent": permanent,
		})
	}
}

func isPermanentGradingError(err error) bool {
	return errors.Is(err, errUngradable) || ai.IsPermanent(err)
}

// GradeAnswer scores a pending essay or speaking answer with the AI scorer,
// stores the band, rubric and feedback, and refreshes the attempt's score
func (s *GradingService) GradeAnswer(ctx context.Context, answerID int64) error {
	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		return err
	}
	if answer == nil || answer.GradingStatus == models.GradingGraded {
		return nil
	}
	if !s.scorer.Enabled() {
		log.Printf("[DEBUG] AI scoring disabled, answer %d left for manual grading", answerID)
		return nil
	}

	question, err := s.content.GetQuestion(ctx, answer.QuestionID)
	if err != nil {
		return err
	}
	if question == nil {
		return fmt.Errorf("%w: question %d not found", errUngradable, answer.QuestionID)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	response := answer.AnswerText
	task := "writing"
	if question.Type == models.QuestionSpeaking {
		task = "speaking"
		if answer.AudioPath != nil && s.media != nil {
			if !s.media.Exists(*answer.AudioPath) {
				return fmt.Errorf("%w: audio %q not found", errUngradable, *answer.AudioPath)
			}
			path, err := s.media.Path(*answer.AudioPath)
			if err != nil {
				return fmt.Errorf("%w: %v", errUngradable, err)
			}
			transcript, err := s.scorer.Transcribe(ctx, path)
			if err != nil {
				return fmt.Errorf("failed to transcribe answer: %w", err)
			}
			response = transcript
		}
	}
	if strings.TrimSpace(response) == "" {
		return fmt.Errorf("%w: no text to score", errUngradable)
	}

	assessment, err := s.scorer.Score(ctx, ai.ScoreRequest{
		Task:     task,
		Prompt:   question.Content,
		Response: response,
		Criteria: grading.CriteriaFor(question.Type),
	})
	if err != nil {
		return fmt.Errorf("failed to score answer: %w", err)
	}

	band := grading.RoundBand(assessment.OverallBand)
	answer.Score = &band
	answer.IsCorrect = nil
	answer.Rubric = grading.NormalizeRubric(question.Type, assessment.Criteria, assessment.OverallBand)
	answer.Feedback = strings.TrimSpace(assessment.Feedback)
	answer.GradingStatus = models.GradingGraded
	answer.GradedBy = nil

	var (
		attempt *models.Attempt
		written bool
	)
	err = s.db.InTx(ctx, func(tx *database.Tx) error {
		var err error
		// an admin may have graded it while the scorer was running
		written, err = s.answers.WithTx(tx).SaveAIGrade(ctx, answer)
		if err != nil || !written {
			return err
		}
		attempts := s.attempts.WithTx(tx)
		total, err := attempts.SumAnswerScores(ctx, answer.AttemptID)
		if err != nil {
			return err
		}
		if err := attempts.UpdateScore(ctx, answer.AttemptID, total); err != nil {
			return err
		}
		attempt, err = attempts.GetByID(ctx, answer.AttemptID)
		return err
	})
	if err != nil {
		return err
	}
	if !written {
		log.Printf("Answer %d was graded manually, discarding AI result", answerID)
		return nil
	}

	log.Printf("Answer %d graded band %.1f", answerID, band)
	if attempt != nil && s.notifications != nil {
		sideEffect(ctx, s.reporter, "answer_graded notification", attempt.UserID, func(ctx context.Context) error {
			_, err := s.notifications.Dispatch(ctx, Event{
				Type:    models.NotifyAnswerGraded,
				UserID:  attempt.UserID,
				Subject: "question " + fmt.Sprint(question.Position+1),
				Value:   band,
				Link:    fmt.Sprintf("/answers/%d", answerID),
			})
			return err
		})
	}
	return nil
}

// RequeueStale re-enqueues answers still pending, and failed answers that
// have scoring runs left
func (s *GradingService) RequeueStale(ctx context.Context, limit int) (int, error) {
	if !s.scorer.Enabled() {
		return 0, nil
	}

	pending, err := s.answers.ListByGradingStatus(ctx, models.GradingPending, limit)
	if err != nil {
		return 0, err
	}
	failed, err := s.answers.ListRetryable(ctx, s.cfg.MaxAttempts, limit)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, a := range pending {
		if s.Enqueue(a.ID) {
			queued++
		}
	}
	for _, a := range failed {
		if err := s.answers.SetGradingStatus(ctx, a.ID, models.GradingPending); err != nil {
			return queued, err
		}
		if s.Enqueue(a.ID) {
			queued++
		}
	}
	return queued, nil
}

// GetAnswer returns an answer to its owner or an admin
func (s *GradingService) GetAnswer(ctx context.Context, actor *models.User, id int64) (*models.Answer, error) {
	answer, err := s.answers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		return nil, apperr.NotFound("Answer")
	}
	if actor.IsAdmin() {
		return answer, nil
	}

	attempt, err := s.attempts.GetByID(ctx, answer.AttemptID)
	if err != nil {
		return nil, err
	}
	if attempt == nil || attempt.UserID != actor.ID {
		return nil, apperr.Forbidden("You do not own this answer")
	}
	return answer, nil
}

// ListPending returns answers waiting for AI scoring or manual grading
func (s *GradingService) ListPending(ctx context.Context, actor *models.User, limit int) ([]models.Answer, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	limit = clampLimit(limit, 50, 200)

	pending, err := s.answers.ListByGradingStatus(ctx, models.GradingPending, limit)
	if err != nil {
		return nil, err
	}
	failed, err := s.answers.ListByGradingStatus(ctx, models.GradingFailed, limit)
	if err != nil {
		return nil, err
	}
	return append(pending, failed...), nil
}

// UpdateAnswer applies an admin's manual grade. The owning attempt's score
// becomes the sum of its answers and the attempt is marked completed,
// unless it already timed out.
func (s *GradingService) UpdateAnswer(ctx context.Context, actor *models.User, answerID int64, in AnswerOverride) (*models.Answer, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if in.IsCorrect == nil && in.Score == nil && in.Feedback == nil {
		return nil, apperr.Validation("Nothing to update")
	}
	if in.Score != nil && *in.Score < 0 {
		return nil, apperr.Validation("Invalid score", apperr.FieldError{Field: "score", Message: "must not be negative"})
	}

	answer, err := s.answers.GetByID(ctx, answerID)
	if err != nil {
		return nil, err
	}
	if answer == nil {
		return nil, apperr.NotFound("Answer")
	}

	if in.IsCorrect != nil {
		answer.IsCorrect = in.IsCorrect
	}
	if in.Score != nil {
		answer.Score = in.Score
	}
	if in.Feedback != nil {
		answer.Feedback = strings.TrimSpace(*in.Feedback)
	}
	graderID := actor.ID
	answer.GradedBy = &graderID
	answer.GradingStatus = models.GradingGraded

	var (
		attempt   *models.Attempt
		completed bool
	)
	err = s.db.InTx(ctx, func(tx *database.Tx) error {
		if err := s.answers.WithTx(tx).SaveGrade(ctx, answer); err != nil {
			return err
		}

		attempts := s.attempts.WithTx(tx)
		var err error
		attempt, err = attempts.GetByID(ctx, answer.AttemptID)
		if err != nil {
			return err
		}
		if attempt == nil {
			return apperr.NotFound("Attempt")
		}
		total, err := attempts.SumAnswerScores(ctx, attempt.ID)
		if err != nil {
			return err
		}

		switch attempt.Status {
		case models.AttemptCompleted, models.AttemptTimedOut:
			if err := attempts.UpdateScore(ctx, attempt.ID, total); err != nil {
				return err
			}
		default:
			end := time.Now()
			ok, err := attempts.UpdateStatus(ctx, attempt.ID, attempt.Status, models.AttemptCompleted, &end, &total)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Conflict("Attempt changed while grading, try again")
			}
			completed = true
		}

		attempt, err = attempts.GetByID(ctx, attempt.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if completed && s.completions != nil {
		s.completions.AfterCompletion(ctx, attempt)
	}
	return answer, nil
}

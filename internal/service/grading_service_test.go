package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ieltsprep/internal/ai"
	"ieltsprep/internal/apperr"
	"ieltsprep/internal/grading"
	"ieltsprep/internal/models"
)

// essayAttempt starts an attempt and answers the essay question
func essayAttempt(t *testing.T, env *testEnv) (admin, learner *models.User, attempt *models.Attempt, essay *models.Answer) {
	t.Helper()
	ctx := context.Background()
	admin = env.user(t, "admin")
	learner = env.user(t, "learner")
	test, questions := env.readingTest(t, admin)

	attempt, err := env.attemptSvc.Create(ctx, learner, 0, test.ID)
	require.NoError(t, err)
	_, err = env.attemptSvc.RecordAnswer(ctx, learner, attempt.ID, AnswerInput{QuestionID: questions[0].ID, Answer: "Phoenicians"})
	require.NoError(t, err)
	essay, err = env.attemptSvc.RecordAnswer(ctx, learner, attempt.ID, AnswerInput{QuestionID: questions[3].ID, Answer: "Urban bees pollinate parks and gardens."})
	require.NoError(t, err)
	return admin, learner, attempt, essay
}

func TestGradeAnswerStoresAssessment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.scorer.assessment = &ai.Assessment{
		OverallBand: 6.3,
		Criteria:    map[string]float64{"Task Achievement": 6, "Lexical Resource": 6.74},
		Feedback:    " Good range of vocabulary. ",
	}
	_, learner, attempt, essay := essayAttempt(t, env)

	require.NoError(t, env.grading.GradeAnswer(ctx, essay.ID))

	graded, err := env.grading.GetAnswer(ctx, learner, essay.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GradingGraded, graded.GradingStatus)
	assert.Equal(t, 6.5, *graded.Score)
	assert.Nil(t, graded.GradedBy)
	assert.Equal(t, "Good range of vocabulary.", graded.Feedback)
	require.Len(t, graded.Rubric, len(grading.WritingCriteria))
	assert.Equal(t, models.CriterionScore{Criterion: "Task Achievement", Band: 6}, graded.Rubric[0])
	assert.Equal(t, 6.5, graded.Rubric[2].Band)

	require.Len(t, env.scorer.requests, 1)
	assert.Equal(t, "writing", env.scorer.requests[0].Task)
	assert.Equal(t, grading.WritingCriteria, env.scorer.requests[0].Criteria)

	got, err := env.attempts.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptInProgress, got.Status, "AI results never change the attempt status")
	assert.Equal(t, 7.5, *got.Score)

	// grading an already graded answer is a no-op
	require.NoError(t, env.grading.GradeAnswer(ctx, essay.ID))
	assert.Len(t, env.scorer.requests, 1)
}

func TestWorkerMarksFailures(t *testing.T) {
	env := newTestEnv(t)
	env.scorer.set(nil, errors.New("upstream unavailable"))
	_, _, _, essay := essayAttempt(t, env)

	ctx, cancel := context.WithCancel(context.Background())
	env.grading.Start(ctx)
	defer func() {
		cancel()
		env.grading.Wait()
	}()

	assert.Eventually(t, func() bool {
		a, err := env.answers.GetByID(context.Background(), essay.ID)
		return err == nil && a.GradingStatus == models.GradingFailed
	}, 5*time.Second, 20*time.Millisecond)

	env.scorer.set(&ai.Assessment{OverallBand: 5}, nil)
	queued, err := env.grading.RequeueStale(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	assert.Eventually(t, func() bool {
		a, err := env.answers.GetByID(context.Background(), essay.ID)
		return err == nil && a.GradingStatus == models.GradingGraded
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRequeueStopsAtAttemptCap(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.scorer.set(nil, errors.New("connection reset by peer"))
	admin, _, _, essay := essayAttempt(t, env)

	require.Equal(t, 1, env.grading.Drain(ctx))
	for run := 2; run <= env.grading.cfg.MaxAttempts; run++ {
		queued, err := env.grading.RequeueStale(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, 1, queued, "run %d", run)
		require.Equal(t, 1, env.grading.Drain(ctx))
	}

	queued, err := env.grading.RequeueStale(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, queued)
	assert.Equal(t, env.grading.cfg.MaxAttempts, env.scorer.calls())

	a, err := env.answers.GetByID(ctx, essay.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GradingFailed, a.GradingStatus)
	assert.Equal(t, env.grading.cfg.MaxAttempts, a.GradingAttempts)

	pending, err := env.grading.ListPending(ctx, admin, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1, "exhausted answers wait for manual grading")
	assert.Equal(t, essay.ID, pending[0].ID)
}

func TestPermanentFailureIsNotRequeued(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.scorer.set(nil, fmt.Errorf("giving up: %w", &ai.APIError{StatusCode: 400, Message: "content policy violation"}))
	_, learner, attempt, essay := essayAttempt(t, env)

	require.Equal(t, 1, env.grading.Drain(ctx))
	queued, err := env.grading.RequeueStale(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, queued)
	assert.Equal(t, 1, env.scorer.calls())

	a, err := env.answers.GetByID(ctx, essay.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GradingFailed, a.GradingStatus)

	// a new answer gets a fresh budget
	env.scorer.set(&ai.Assessment{OverallBand: 6}, nil)
	_, err = env.attemptSvc.RecordAnswer(ctx, learner, attempt.ID, AnswerInput{QuestionID: essay.QuestionID, Answer: "Rewritten essay."})
	require.NoError(t, err)
	require.Equal(t, 1, env.grading.Drain(ctx))

	a, err = env.answers.GetByID(ctx, essay.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GradingGraded, a.GradingStatus)
	assert.Equal(t, 0, a.GradingAttempts)
}

func TestManualGradeWinsOverInFlightScore(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _, attempt, essay := essayAttempt(t, env)

	manual := 5.0
	env.scorer.set(&ai.Assessment{OverallBand: 8}, nil)
	env.scorer.during = func() {
		_, err := env.grading.UpdateAnswer(ctx, admin, essay.ID, AnswerOverride{Score: &manual})
		require.NoError(t, err)
	}

	require.NoError(t, env.grading.GradeAnswer(ctx, essay.ID))

	a, err := env.answers.GetByID(ctx, essay.ID)
	require.NoError(t, err)
	assert.Equal(t, manual, *a.Score)
	assert.Equal(t, admin.ID, *a.GradedBy)

	got, err := env.attempts.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 6.0, *got.Score, "one correct closed answer plus the manual band")
}

func TestDrainGradesQueuedAnswers(t *testing.T) {
	env := newTestEnv(t)
	env.scorer.set(&ai.Assessment{OverallBand: 7}, nil)
	_, _, _, essay := essayAttempt(t, env)
	ctx := context.Background()

	assert.Equal(t, 1, env.grading.Drain(ctx), "recording the essay queued it")
	assert.Equal(t, 0, env.grading.Drain(ctx))

	a, err := env.answers.GetByID(ctx, essay.ID)
	require.NoError(t, err)
	assert.Equal(t, models.GradingGraded, a.GradingStatus)
	assert.Equal(t, 7.0, *a.Score)
}

func TestDisabledScorerLeavesAnswersPending(t *testing.T) {
	env := newTestEnv(t)
	env.scorer.enabled = false
	admin, _, _, essay := essayAttempt(t, env)

	require.NoError(t, env.grading.GradeAnswer(context.Background(), essay.ID))

	pending, err := env.grading.ListPending(context.Background(), admin, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, essay.ID, pending[0].ID)
}

func TestUpdateAnswerOverride(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, learner, attempt, essay := essayAttempt(t, env)

	score := 6.0
	_, err := env.grading.UpdateAnswer(ctx, learner, essay.ID, AnswerOverride{Score: &score})
	requireKind(t, err, apperr.KindAuthorization)

	_, err = env.grading.UpdateAnswer(ctx, admin, essay.ID, AnswerOverride{})
	requireKind(t, err, apperr.KindValidation)

	_, err = env.grading.UpdateAnswer(ctx, admin, essay.ID+100, AnswerOverride{Score: &score})
	requireKind(t, err, apperr.KindNotFound)

	feedback := "Clear position, limited examples."
	updated, err := env.grading.UpdateAnswer(ctx, admin, essay.ID, AnswerOverride{Score: &score, Feedback: &feedback})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, *updated.GradedBy)
	assert.Equal(t, models.GradingGraded, updated.GradingStatus)

	got, err := env.attempts.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptCompleted, got.Status)
	assert.Equal(t, 7.0, *got.Score)

	summary, err := env.gamification.GetAchievement(ctx, learner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TestsCompleted, "completion side effects ran")
}

func TestUpdateAnswerKeepsTimedOutStatus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _, attempt, essay := essayAttempt(t, env)

	env.clock.Advance(2 * time.Hour)
	closed, err := env.attemptSvc.TimeoutExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, closed)

	score := 5.5
	_, err = env.grading.UpdateAnswer(ctx, admin, essay.ID, AnswerOverride{Score: &score})
	require.NoError(t, err)

	got, err := env.attempts.GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptTimedOut, got.Status)
	assert.Equal(t, 6.5, *got.Score)
}

func TestGetAnswerOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin, _, _, essay := essayAttempt(t, env)
	stranger := env.user(t, "stranger")

	_, err := env.grading.GetAnswer(ctx, stranger, essay.ID)
	requireKind(t, err, apperr.KindAuthorization)

	got, err := env.grading.GetAnswer(ctx, admin, essay.ID)
	require.NoError(t, err)
	assert.Equal(t, essay.ID, got.ID)
}

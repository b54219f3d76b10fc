package service

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ieltsprep/internal/ai"
	"ieltsprep/internal/apperr"
	"ieltsprep/internal/database"
	"ieltsprep/internal/media"
	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/repository"
)

// recordingSender keeps every message instead of sending it
type recordingSender struct {
	mu       sync.Mutex
	messages []EmailMessage
}

func (s *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	return nil
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

// lastCode returns the most recent one-time code sent to email
func (s *recordingSender) lastCode(t *testing.T, email string) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].To == email {
			code := codePattern.FindString(s.messages[i].TextBody)
			require.NotEmpty(t, code, "message has no code")
			return code
		}
	}
	t.Fatalf("no message sent to %s", email)
	return ""
}

// fakeScorer returns a fixed assessment or error
type fakeScorer struct {
	enabled    bool
	assessment *ai.Assessment
	err        error
	transcript string

	// during runs while a score is in flight
	during func()

	mu       sync.Mutex
	requests []ai.ScoreRequest
}

func (f *fakeScorer) Enabled() bool { return f.enabled }

func (f *fakeScorer) set(assessment *ai.Assessment, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assessment, f.err = assessment, err
}

func (f *fakeScorer) Score(ctx context.Context, sr ai.ScoreRequest) (*ai.Assessment, error) {
	f.mu.Lock()
	f.requests = append(f.requests, sr)
	assessment, err, during := f.assessment, f.err, f.during
	f.mu.Unlock()

	if during != nil {
		during()
	}
	if err != nil {
		return nil, err
	}
	return assessment, nil
}

func (f *fakeScorer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeScorer) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if f.transcript == "" {
		return "", errors.New("no transcript")
	}
	return f.transcript, nil
}

// clock is a settable time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	db     *database.DB
	mail   *recordingSender
	scorer *fakeScorer
	clock  *clock

	users    *repository.UserRepository
	attempts *repository.AttemptRepository
	answers  *repository.AnswerRepository

	auth          *AuthService
	content       *ContentService
	attemptSvc    *AttemptService
	grading       *GradingService
	store         *media.Store
	vocabulary    *VocabularyService
	gamification  *GamificationService
	notifications *NotificationService
	imports       *ImportService
	backup        *BackupService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:     db,
		mail:   &recordingSender{},
		scorer: &fakeScorer{enabled: true},
		clock:  &clock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)},
	}
	reporter := reporting.Nop()

	env.users = repository.NewUserRepository(db)
	env.attempts = repository.NewAttemptRepository(db)
	env.answers = repository.NewAnswerRepository(db)
	contentRepo := repository.NewContentRepository(db)

	env.auth = NewAuthService(db, env.users, NewEmailService(env.mail, "http://localhost", false), AuthConfig{
		SessionDuration: time.Hour,
		RequireVerified: true,
		TokenSecret:     "test-secret",
	})
	env.auth.now = env.clock.Now

	env.notifications = NewNotificationService(repository.NewNotificationRepository(db))
	env.notifications.now = env.clock.Now

	env.gamification = NewGamificationService(db, repository.NewAchievementRepository(db), env.notifications, reporter)
	env.gamification.now = env.clock.Now

	env.content = NewContentService(db, contentRepo, nil)
	env.store, err = media.NewStore(filepath.Join(t.TempDir(), "media"), 1<<20)
	require.NoError(t, err)
	env.grading = NewGradingService(db, env.answers, env.attempts, contentRepo, env.scorer, env.store, env.notifications, reporter, GradingConfig{Workers: 1})
	env.attemptSvc = NewAttemptService(env.attempts, env.answers, contentRepo, env.store, env.gamification, env.notifications, env.grading, reporter)
	env.attemptSvc.now = env.clock.Now
	env.grading.SetCompletionHandler(env.attemptSvc)

	env.vocabulary = NewVocabularyService(repository.NewVocabularyRepository(db), env.gamification, reporter)
	env.vocabulary.now = env.clock.Now

	env.imports = NewImportService(env.content)
	env.backup = NewBackupService(db, contentRepo)
	return env
}

// user creates a verified account; the first one created is the admin
func (env *testEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	u, err := env.users.CreateUser(context.Background(), username, username+"@example.com", "", true)
	require.NoError(t, err)
	return u
}

// readingTest creates an active test with one question of each closed type
// and one essay question
func (env *testEnv) readingTest(t *testing.T, admin *models.User) (*models.Test, []models.Question) {
	t.Helper()
	ctx := context.Background()

	test, err := env.content.CreateTest(ctx, admin, TestInput{
		Title:           "Academic Reading 1",
		Module:          models.ModuleReading,
		DurationMinutes: 60,
		Passages:        []string{"The history of glass", "Urban beekeeping"},
	})
	require.NoError(t, err)

	key := func(s string) *string { return &s }
	questions, err := env.content.CreateQuestions(ctx, admin, test.ID, []QuestionInput{
		{Type: models.QuestionMultipleChoice, Content: "Who first made glass?", Options: []string{"Romans", "Phoenicians", "Egyptians"}, CorrectAnswer: key("Phoenicians")},
		{Type: models.QuestionTrueFalseNG, Content: "Bees prefer cities.", CorrectAnswer: key("not given"), PassageIndex: 1},
		{Type: models.QuestionMatching, Content: "Match the terms.", CorrectAnswer: key(`{"a":"silica","b":"soda"}`)},
		{Type: models.QuestionEssay, Content: "Discuss the advantages of urban beekeeping."},
	})
	require.NoError(t, err)
	return test, questions
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "unexpected error: %v", err)
}

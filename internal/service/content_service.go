package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/database"
	"ieltsprep/internal/grading"
	"ieltsprep/internal/media"
	"ieltsprep/internal/models"
	"ieltsprep/internal/repository"
	"ieltsprep/internal/validation"
)

// TestInput holds the editable fields of a test
type TestInput struct {
	Title           string        `json:"title" validate:"required,notblank,max=200"`
	Description     string        `json:"description" validate:"max=5000"`
	Module          models.Module `json:"module" validate:"required,ielts_module"`
	DurationMinutes int           `json:"durationMinutes" validate:"required,min=1,max=600"`
	Passages        []string      `json:"passages" validate:"max=10"`
	IsActive        *bool         `json:"isActive"`
}

// QuestionInput holds the editable fields of a question
type QuestionInput struct {
	Type          models.QuestionType `json:"type" validate:"required,question_type"`
	Content       string              `json:"content" validate:"required,notblank,max=10000"`
	Options       []string            `json:"options" validate:"max=26,dive,max=500"`
	CorrectAnswer *string             `json:"correctAnswer"`
	PassageIndex  int                 `json:"passageIndex" validate:"min=0"`
	AudioPath     *string             `json:"audioPath"`
	Position      *int                `json:"position" validate:"omitempty,min=0"`
}

// ContentService manages tests and questions
type ContentService struct {
	db    *database.DB
	repo  *repository.ContentRepository
	media *media.Store
}

// NewContentService creates a new content service. media may be nil, in
// which case audio paths are not checked.
func NewContentService(db *database.DB, repo *repository.ContentRepository, store *media.Store) *ContentService {
	return &ContentService{db: db, repo: repo, media: store}
}

// ListTests returns tests for a module ("" for all). Only admins see inactive tests.
func (s *ContentService) ListTests(ctx context.Context, actor *models.User, module models.Module) ([]models.Test, error) {
	if module != "" && !module.Valid() {
		return nil, apperr.Validation("Invalid module", apperr.FieldError{Field: "module", Message: "must be one of reading, listening, writing, speaking"})
	}
	return s.repo.ListTests(ctx, module, !actor.IsAdmin())
}

// GetTest returns a test with its questions. Answer keys are removed for non-admins.
func (s *ContentService) GetTest(ctx context.Context, actor *models.User, id int64) (*models.TestWithQuestions, error) {
	test, err := s.repo.GetTest(ctx, id)
	if err != nil {
		return nil, err
	}
	if test == nil || (!test.IsActive && !actor.IsAdmin()) {
		return nil, apperr.NotFound("Test")
	}

	questions, err := s.repo.ListQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		RedactAnswerKeys(questions)
	}
	return &models.TestWithQuestions{Test: *test, Questions: questions}, nil
}

// RedactAnswerKeys clears correctAnswer on every question
func RedactAnswerKeys(questions []models.Question) {
	for i := range questions {
		questions[i].CorrectAnswer = nil
	}
}

func (in *TestInput) apply(t *models.Test) {
	t.Title = strings.TrimSpace(in.Title)
	t.Description = strings.TrimSpace(in.Description)
	t.Module = in.Module
	t.DurationMinutes = in.DurationMinutes
	t.Passages = models.StringList(in.Passages)
	if t.Passages == nil {
		t.Passages = models.StringList{}
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
}

// CreateTest adds a test. Tests are active unless isActive is false.
func (s *ContentService) CreateTest(ctx context.Context, actor *models.User, in TestInput) (*models.Test, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	test := &models.Test{IsActive: true}
	in.apply(test)
	if err := s.repo.CreateTest(ctx, test); err != nil {
		return nil, err
	}
	return test, nil
}

// UpdateTest replaces the editable fields of a test
func (s *ContentService) UpdateTest(ctx context.Context, actor *models.User, id int64, in TestInput) (*models.Test, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	test, err := s.repo.GetTest(ctx, id)
	if err != nil {
		return nil, err
	}
	if test == nil {
		return nil, apperr.NotFound("Test")
	}

	in.apply(test)
	if err := s.repo.UpdateTest(ctx, test); err != nil {
		return nil, err
	}
	return test, nil
}

// DeleteTest removes a test with its questions and attempts
func (s *ContentService) DeleteTest(ctx context.Context, actor *models.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteTest(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("Test")
	}
	return nil
}

// checkQuestion validates a question against its type and its test
func (s *ContentService) checkQuestion(test *models.Test, in *QuestionInput) map[string]string {
	in.Content = strings.TrimSpace(in.Content)
	if in.CorrectAnswer != nil {
		key := strings.TrimSpace(*in.CorrectAnswer)
		in.CorrectAnswer = &key
		if key == "" {
			in.CorrectAnswer = nil
		}
	}
	if in.AudioPath != nil && strings.TrimSpace(*in.AudioPath) == "" {
		in.AudioPath = nil
	}

	if err := validation.Struct(in); err != nil {
		fields := map[string]string{}
		var appErr *apperr.Error
		if errors.As(err, &appErr) && len(appErr.Fields) > 0 {
			for _, f := range appErr.Fields {
				fields[f.Field] = f.Message
			}
		} else {
			fields["question"] = err.Error()
		}
		return fields
	}

	fields := map[string]string{}
	if err := grading.ValidateAnswerKey(in.Type, in.CorrectAnswer); err != nil {
		fields["correctAnswer"] = err.Error()
	}
	if in.Type == models.QuestionMultipleChoice {
		if len(in.Options) < 2 {
			fields["options"] = "multiple choice questions need at least two options"
		} else if in.CorrectAnswer != nil && !hasOption(in.Options, *in.CorrectAnswer) {
			fields["correctAnswer"] = "must be one of the options"
		}
	}
	if n := len(test.Passages); (n == 0 && in.PassageIndex != 0) || (n > 0 && in.PassageIndex >= n) {
		fields["passageIndex"] = fmt.Sprintf("test has %d passages", n)
	}
	if in.AudioPath != nil && s.media != nil && !s.media.Exists(*in.AudioPath) {
		fields["audioPath"] = "unknown audio file"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func hasOption(options []string, key string) bool {
	for _, o := range options {
		if strings.EqualFold(strings.TrimSpace(o), key) {
			return true
		}
	}
	return false
}

func (in *QuestionInput) apply(q *models.Question) {
	q.Type = in.Type
	q.Content = in.Content
	q.Options = models.StringList(in.Options)
	if q.Options == nil {
		q.Options = models.StringList{}
	}
	q.CorrectAnswer = in.CorrectAnswer
	q.PassageIndex = in.PassageIndex
	q.AudioPath = in.AudioPath
	if in.Position != nil {
		q.Position = *in.Position
	}
}

func (s *ContentService) requireTest(ctx context.Context, repo *repository.ContentRepository, testID int64) (*models.Test, error) {
	test, err := repo.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}
	if test == nil {
		return nil, apperr.NotFound("Test")
	}
	return test, nil
}

// CreateQuestion appends a question to a test
func (s *ContentService) CreateQuestion(ctx context.Context, actor *models.User, testID int64, in QuestionInput) (*models.Question, error) {
	questions, err := s.CreateQuestions(ctx, actor, testID, []QuestionInput{in})
	if err != nil {
		return nil, err
	}
	return &questions[0], nil
}

// CreateQuestions appends questions to a test in one transaction. Nothing is
// stored unless every question is valid; field errors are keyed by index.
func (s *ContentService) CreateQuestions(ctx context.Context, actor *models.User, testID int64, inputs []QuestionInput) ([]models.Question, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, apperr.Validation("No questions given")
	}

	test, err := s.requireTest(ctx, s.repo, testID)
	if err != nil {
		return nil, err
	}

	problems := map[string]string{}
	for i := range inputs {
		for field, msg := range s.checkQuestion(test, &inputs[i]) {
			if len(inputs) == 1 {
				problems[field] = msg
			} else {
				problems[fmt.Sprintf("questions[%d].%s", i, field)] = msg
			}
		}
	}
	if len(problems) > 0 {
		return nil, apperr.ValidationFields("Invalid question", problems)
	}

	created := make([]models.Question, 0, len(inputs))
	err = s.db.InTx(ctx, func(tx *database.Tx) error {
		repo := s.repo.WithTx(tx)
		next, err := repo.NextPosition(ctx, testID)
		if err != nil {
			return err
		}
		for _, in := range inputs {
			q := models.Question{TestID: testID, Position: next}
			in.apply(&q)
			if err := repo.CreateQuestion(ctx, &q); err != nil {
				return err
			}
			if q.Position >= next {
				next = q.Position + 1
			}
			created = append(created, q)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateQuestion replaces the editable fields of a question
func (s *ContentService) UpdateQuestion(ctx context.Context, actor *models.User, id int64, in QuestionInput) (*models.Question, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	q, err := s.repo.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, apperr.NotFound("Question")
	}
	test, err := s.requireTest(ctx, s.repo, q.TestID)
	if err != nil {
		return nil, err
	}

	if problems := s.checkQuestion(test, &in); problems != nil {
		return nil, apperr.ValidationFields("Invalid question", problems)
	}

	in.apply(q)
	if err := s.repo.UpdateQuestion(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// DeleteQuestion removes a question
func (s *ContentService) DeleteQuestion(ctx context.Context, actor *models.User, id int64) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteQuestion(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperr.NotFound("Question")
	}
	return nil
}

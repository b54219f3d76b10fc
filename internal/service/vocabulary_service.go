package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
	"ieltsprep/internal/reporting"
	"ieltsprep/internal/repository"
	"ieltsprep/internal/srs"
	"ieltsprep/internal/validation"
)

// VocabularyInput holds the editable fields of a word
type VocabularyInput struct {
	Word          string `json:"word" validate:"required,notblank,max=100"`
	CEFRLevel     string `json:"cefrLevel" validate:"required,cefr"`
	Meaning       string `json:"meaning" validate:"required,notblank,max=1000"`
	Example       string `json:"example" validate:"max=1000"`
	ArabicMeaning string `json:"arabicMeaning" validate:"max=1000"`
}

func (in *VocabularyInput) normalize() {
	in.Word = strings.TrimSpace(in.Word)
	in.CEFRLevel = strings.ToUpper(strings.TrimSpace(in.CEFRLevel))
	in.Meaning = strings.TrimSpace(in.Meaning)
	in.Example = strings.TrimSpace(in.Example)
	in.ArabicMeaning = strings.TrimSpace(in.ArabicMeaning)
}

// VocabularyService manages a user's spaced-repetition word list
type VocabularyService struct {
	repo         *repository.VocabularyRepository
	gamification *GamificationService
	reporter     *reporting.Reporter
	now          func() time.Time
}

// NewVocabularyService creates a new vocabulary service
func NewVocabularyService(repo *repository.VocabularyRepository, gamification *GamificationService, reporter *reporting.Reporter) *VocabularyService {
	return &VocabularyService{
		repo:         repo,
		gamification: gamification,
		reporter:     reporter,
		now:          time.Now,
	}
}

// Create adds a word at stage 0, due for its first review in 24 hours
func (s *VocabularyService) Create(ctx context.Context, userID int64, in VocabularyInput) (*models.Vocabulary, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	v := &models.Vocabulary{
		UserID:        userID,
		Word:          in.Word,
		CEFRLevel:     in.CEFRLevel,
		Meaning:       in.Meaning,
		Example:       in.Example,
		ArabicMeaning: in.ArabicMeaning,
		ReviewStage:   0,
		NextReview:    srs.FirstReview(s.now()),
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}

	sideEffect(ctx, s.reporter, "vocabulary_added award", userID, func(ctx context.Context) error {
		_, err := s.gamification.RecordVocabularyAdded(ctx, userID, v.ID)
		return err
	})

	return v, nil
}

// get loads a word and checks the caller owns it
func (s *VocabularyService) get(ctx context.Context, userID, id int64) (*models.Vocabulary, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, apperr.NotFound("Vocabulary")
	}
	if v.UserID != userID {
		return nil, apperr.Forbidden("You do not own this word")
	}
	return v, nil
}

// Get returns one of the user's words
func (s *VocabularyService) Get(ctx context.Context, userID, id int64) (*models.Vocabulary, error) {
	return s.get(ctx, userID, id)
}

// List returns the user's words, optionally filtered by CEFR level
func (s *VocabularyService) List(ctx context.Context, userID int64, cefrLevel string) ([]models.Vocabulary, error) {
	cefrLevel = strings.ToUpper(strings.TrimSpace(cefrLevel))
	if cefrLevel != "" && !models.ValidCEFRLevel(cefrLevel) {
		return nil, apperr.Validation("Invalid CEFR level", apperr.FieldError{Field: "cefrLevel", Message: "must be one of A1, A2, B1, B2, C1, C2"})
	}
	return s.repo.ListByUser(ctx, userID, cefrLevel)
}

// Update replaces the text fields of a word. Review scheduling is untouched.
func (s *VocabularyService) Update(ctx context.Context, userID, id int64, in VocabularyInput) (*models.Vocabulary, error) {
	in.normalize()
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	v, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	v.Word = in.Word
	v.CEFRLevel = in.CEFRLevel
	v.Meaning = in.Meaning
	v.Example = in.Example
	v.ArabicMeaning = in.ArabicMeaning

	if err := s.repo.UpdateText(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Delete removes one of the user's words
func (s *VocabularyService) Delete(ctx context.Context, userID, id int64) error {
	if _, err := s.get(ctx, userID, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// Review applies a 1-5 knowledge rating and reschedules the word
func (s *VocabularyService) Review(ctx context.Context, userID, id int64, rating int) (*models.Vocabulary, error) {
	if rating < srs.MinRating || rating > srs.MaxRating {
		return nil, apperr.Validation("Invalid knowledge rating", apperr.FieldError{Field: "knowledgeRating", Message: srs.ErrInvalidRating.Error()})
	}

	v, err := s.get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	stage, next, err := srs.Review(v.ReviewStage, rating, now)
	if errors.Is(err, srs.ErrInvalidRating) {
		return nil, apperr.Validation("Invalid knowledge rating")
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateReview(ctx, v.ID, stage, now, next); err != nil {
		return nil, err
	}
	v.ReviewStage = stage
	v.LastReviewed = &now
	v.NextReview = next

	sideEffect(ctx, s.reporter, "vocabulary_reviewed award", userID, func(ctx context.Context) error {
		_, err := s.gamification.RecordVocabularyReviewed(ctx, userID, v.ID)
		return err
	})

	return v, nil
}

// DueForReview returns the user's due words, earliest stage and most overdue first
func (s *VocabularyService) DueForReview(ctx context.Context, userID int64, limit int) ([]models.Vocabulary, error) {
	return s.repo.ListDue(ctx, userID, s.now(), clampLimit(limit, 20, 100))
}

// Stats summarizes the user's list
func (s *VocabularyService) Stats(ctx context.Context, userID int64) (*models.VocabularyStats, error) {
	return s.repo.Stats(ctx, userID, s.now())
}

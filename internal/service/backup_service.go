package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/database"
	"ieltsprep/internal/grading"
	"ieltsprep/internal/models"
	"ieltsprep/internal/repository"
)

const backupVersion = "1.0"

// BackupData is the content backup file: every test with its questions
type BackupData struct {
	Version      string       `json:"version"`
	ExportedAt   time.Time    `json:"exported_at"`
	DatabaseType string       `json:"database_type"`
	Tests        []TestBackup `json:"tests"`
}

// TestBackup represents a test record for backup
type TestBackup struct {
	ID              int64            `json:"id"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	Module          models.Module    `json:"module"`
	DurationMinutes int              `json:"duration_minutes"`
	Passages        []string         `json:"passages"`
	IsActive        bool             `json:"is_active"`
	Questions       []QuestionBackup `json:"questions"`
}

// QuestionBackup represents a question record for backup
type QuestionBackup struct {
	Type          models.QuestionType `json:"type"`
	Content       string              `json:"content"`
	Options       []string            `json:"options"`
	CorrectAnswer *string             `json:"correct_answer"`
	PassageIndex  int                 `json:"passage_index"`
	AudioPath     *string             `json:"audio_path"`
	Position      int                 `json:"position"`
}

// BackupStats counts what an export or import covered
type BackupStats struct {
	Tests     int `json:"tests"`
	Questions int `json:"questions"`
}

// BackupService exports and restores exam content
type BackupService struct {
	db      *database.DB
	content *repository.ContentRepository
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, content *repository.ContentRepository) *BackupService {
	return &BackupService{db: db, content: content}
}

// Export writes a content backup to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) (*BackupStats, error) {
	log.Println("Starting content export...")

	file, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	stats, err := s.ExportToWriter(ctx, file)
	if err != nil {
		return nil, err
	}

	log.Printf("Content exported successfully to %s", outputPath)
	log.Printf("Exported: %d tests, %d questions", stats.Tests, stats.Questions)
	return stats, nil
}

// ExportToWriter writes a content backup to w (useful for HTTP responses)
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) (*BackupStats, error) {
	backup := &BackupData{
		Version:      backupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
		Tests:        []TestBackup{},
	}

	stats, err := s.exportTests(ctx, backup)
	if err != nil {
		return nil, fmt.Errorf("failed to export tests: %w", err)
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	return stats, nil
}

func (s *BackupService) exportTests(ctx context.Context, backup *BackupData) (*BackupStats, error) {
	tests, err := s.content.ListTests(ctx, "", false)
	if err != nil {
		return nil, err
	}

	stats := &BackupStats{}
	for _, t := range tests {
		questions, err := s.content.ListQuestions(ctx, t.ID)
		if err != nil {
			return nil, err
		}

		tb := TestBackup{
			ID:              t.ID,
			Title:           t.Title,
			Description:     t.Description,
			Module:          t.Module,
			DurationMinutes: t.DurationMinutes,
			Passages:        t.Passages,
			IsActive:        t.IsActive,
			Questions:       make([]QuestionBackup, 0, len(questions)),
		}
		for _, q := range questions {
			tb.Questions = append(tb.Questions, QuestionBackup{
				Type:          q.Type,
				Content:       q.Content,
				Options:       q.Options,
				CorrectAnswer: q.CorrectAnswer,
				PassageIndex:  q.PassageIndex,
				AudioPath:     q.AudioPath,
				Position:      q.Position,
			})
		}

		backup.Tests = append(backup.Tests, tb)
		stats.Tests++
		stats.Questions += len(questions)
	}
	return stats, nil
}

// Import restores content from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string, clear bool) (*BackupStats, error) {
	log.Printf("Starting content import from %s...", inputPath)

	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file, clear)
}

// ImportFromReader restores content from a backup reader (for file uploads).
// Tests get new IDs. With clear set, existing tests and everything that
// depends on them are removed first. The import is all or nothing.
func (s *BackupService) ImportFromReader(ctx context.Context, reader io.Reader, clear bool) (*BackupStats, error) {
	var backup BackupData
	if err := json.NewDecoder(reader).Decode(&backup); err != nil {
		return nil, apperr.Validation("Invalid backup file", apperr.FieldError{Field: "file", Message: err.Error()})
	}
	if backup.Version != backupVersion {
		return nil, apperr.Validation(fmt.Sprintf("Unsupported backup version %q", backup.Version))
	}

	log.Printf("Backup version: %s, exported at: %s", backup.Version, backup.ExportedAt)

	stats := &BackupStats{}
	err := s.db.InTx(ctx, func(tx *database.Tx) error {
		repo := s.content.WithTx(tx)
		if clear {
			if err := repo.DeleteAllContent(ctx); err != nil {
				return err
			}
		}
		for _, tb := range backup.Tests {
			if err := importTest(ctx, repo, tb); err != nil {
				if apperr.Is(err, apperr.KindValidation) {
					return err
				}
				return fmt.Errorf("failed to import test %d: %w", tb.ID, err)
			}
			stats.Tests++
			stats.Questions += len(tb.Questions)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Content import completed: %d tests, %d questions", stats.Tests, stats.Questions)
	return stats, nil
}

func importTest(ctx context.Context, repo *repository.ContentRepository, tb TestBackup) error {
	if !tb.Module.Valid() {
		return apperr.Validation(fmt.Sprintf("Test %q has unknown module %q", tb.Title, tb.Module))
	}
	if tb.DurationMinutes <= 0 {
		return apperr.Validation(fmt.Sprintf("Test %q needs a positive duration", tb.Title))
	}

	test := &models.Test{
		Title:           tb.Title,
		Description:     tb.Description,
		Module:          tb.Module,
		DurationMinutes: tb.DurationMinutes,
		Passages:        models.StringList(tb.Passages),
		IsActive:        tb.IsActive,
	}
	if err := repo.CreateTest(ctx, test); err != nil {
		return err
	}

	for i, qb := range tb.Questions {
		if err := grading.ValidateAnswerKey(qb.Type, qb.CorrectAnswer); err != nil {
			return apperr.Validation(fmt.Sprintf("Test %q question %d: %v", tb.Title, i, err))
		}
		q := &models.Question{
			TestID:        test.ID,
			Type:          qb.Type,
			Content:       qb.Content,
			Options:       models.StringList(qb.Options),
			CorrectAnswer: qb.CorrectAnswer,
			PassageIndex:  qb.PassageIndex,
			AudioPath:     qb.AudioPath,
			Position:      qb.Position,
		}
		if err := repo.CreateQuestion(ctx, q); err != nil {
			return fmt.Errorf("question %d: %w", i, err)
		}
	}
	return nil
}

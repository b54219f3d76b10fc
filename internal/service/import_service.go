package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
)

// maximum questions accepted in one import
const maxImportRows = 500

// ImportResult reports what a question import stored
type ImportResult struct {
	TestID    int64             `json:"testId"`
	Imported  int               `json:"imported"`
	Questions []models.Question `json:"questions"`
}

// ImportService bulk-loads questions from CSV, XLSX or JSON files
type ImportService struct {
	content *ContentService
}

// NewImportService creates a new import service
func NewImportService(content *ContentService) *ImportService {
	return &ImportService{content: content}
}

// ImportQuestions parses r according to the extension of filename and adds
// every question to the test. The import is all or nothing.
//
// CSV and XLSX files need a header row naming the columns: type, content,
// options, correct_answer, passage_index, audio_path and position. Options
// are separated by "|". JSON files hold an array of question objects.
func (s *ImportService) ImportQuestions(ctx context.Context, actor *models.User, testID int64, filename string, r io.Reader) (*ImportResult, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}

	var (
		inputs []QuestionInput
		err    error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		inputs, err = parseCSVQuestions(r)
	case ".xlsx":
		inputs, err = parseXLSXQuestions(r)
	case ".json":
		inputs, err = parseJSONQuestions(r)
	default:
		return nil, apperr.Validation("Unsupported file type", apperr.FieldError{Field: "file", Message: "must be .csv, .xlsx or .json"})
	}
	if err != nil {
		return nil, err
	}
	if len(inputs) > maxImportRows {
		return nil, apperr.Validation(fmt.Sprintf("Too many questions, at most %d per import", maxImportRows))
	}

	questions, err := s.content.CreateQuestions(ctx, actor, testID, inputs)
	if err != nil {
		return nil, err
	}
	return &ImportResult{TestID: testID, Imported: len(questions), Questions: questions}, nil
}

func parseJSONQuestions(r io.Reader) ([]QuestionInput, error) {
	var inputs []QuestionInput
	if err := json.NewDecoder(r).Decode(&inputs); err != nil {
		return nil, apperr.Validation("Invalid JSON file", apperr.FieldError{Field: "file", Message: err.Error()})
	}
	return inputs, nil
}

func parseCSVQuestions(r io.Reader) ([]QuestionInput, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperr.Validation("Invalid CSV file", apperr.FieldError{Field: "file", Message: err.Error()})
	}
	return rowsToQuestions(rows)
}

func parseXLSXQuestions(r io.Reader) ([]QuestionInput, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Validation("Invalid XLSX file", apperr.FieldError{Field: "file", Message: err.Error()})
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("Workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	return rowsToQuestions(rows)
}

// rowsToQuestions maps a header row plus data rows to question inputs
func rowsToQuestions(rows [][]string) ([]QuestionInput, error) {
	if len(rows) < 2 {
		return nil, apperr.Validation("File has no questions", apperr.FieldError{Field: "file", Message: "expected a header row and at least one question"})
	}

	cols := map[string]int{}
	for i, name := range rows[0] {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		cols[strings.ReplaceAll(name, " ", "_")] = i
	}
	for _, required := range []string{"type", "content"} {
		if _, ok := cols[required]; !ok {
			return nil, apperr.Validation("Missing column", apperr.FieldError{Field: required, Message: "column is required"})
		}
	}

	cell := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	problems := map[string]string{}
	inputs := make([]QuestionInput, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		if isBlankRow(row) {
			continue
		}

		in := QuestionInput{
			Type:    models.QuestionType(strings.ToLower(cell(row, "type"))),
			Content: cell(row, "content"),
		}
		if opts := cell(row, "options"); opts != "" {
			for _, o := range strings.Split(opts, "|") {
				if o = strings.TrimSpace(o); o != "" {
					in.Options = append(in.Options, o)
				}
			}
		}
		if key := cell(row, "correct_answer"); key != "" {
			in.CorrectAnswer = &key
		}
		if audio := cell(row, "audio_path"); audio != "" {
			in.AudioPath = &audio
		}
		if v := cell(row, "passage_index"); v != "" {
			idx, err := strconv.Atoi(v)
			if err != nil {
				problems[fmt.Sprintf("row %d", line)] = "passage_index must be a number"
				continue
			}
			in.PassageIndex = idx
		}
		if v := cell(row, "position"); v != "" {
			pos, err := strconv.Atoi(v)
			if err != nil {
				problems[fmt.Sprintf("row %d", line)] = "position must be a number"
				continue
			}
			in.Position = &pos
		}
		inputs = append(inputs, in)
	}
	if len(problems) > 0 {
		return nil, apperr.ValidationFields("Invalid rows", problems)
	}
	return inputs, nil
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

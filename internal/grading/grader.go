// Package grading scores closed questions and defines the band rubric.
package grading

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"ieltsprep/internal/models"
)

var (
	ErrNotAutoGradable = errors.New("question type is not auto-graded")
	ErrMissingKey      = errors.New("question has no correct answer")
)

// Result is the outcome of grading one closed answer
type Result struct {
	IsCorrect bool
	Score     float64
}

// Grade matches answer against the question's answer key.
// Essay and speaking questions return ErrNotAutoGradable.
func Grade(q *models.Question, answer string) (Result, error) {
	if !q.Type.AutoGraded() {
		return Result{}, ErrNotAutoGradable
	}
	if q.CorrectAnswer == nil {
		return Result{}, ErrMissingKey
	}

	var correct bool
	if q.Type == models.QuestionMatching {
		correct = matchMapping(*q.CorrectAnswer, answer)
	} else {
		correct = matchText(*q.CorrectAnswer, answer)
	}

	if correct {
		return Result{IsCorrect: true, Score: 1}, nil
	}
	return Result{IsCorrect: false, Score: 0}, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func matchText(key, answer string) bool {
	return normalize(key) == normalize(answer)
}

// matchMapping compares decoded key/value mappings so key order is irrelevant
func matchMapping(key, answer string) bool {
	want, err := decodeMapping(key)
	if err != nil {
		return false
	}
	got, err := decodeMapping(answer)
	if err != nil {
		return false
	}
	if len(want) != len(got) {
		return false
	}
	for k, v := range want {
		gv, ok := got[k]
		if !ok || normalize(gv) != normalize(v) {
			return false
		}
	}
	return true
}

func decodeMapping(s string) (map[string]string, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[normalize(k)] = fmt.Sprint(v)
	}
	return out, nil
}

// ValidateAnswerKey checks that a question's key fits its type
func ValidateAnswerKey(qt models.QuestionType, key *string) error {
	switch {
	case !qt.Valid():
		return fmt.Errorf("unknown question type %q", qt)
	case !qt.AutoGraded():
		if key != nil && strings.TrimSpace(*key) != "" {
			return fmt.Errorf("%s questions cannot have a correct answer", qt)
		}
		return nil
	case key == nil || strings.TrimSpace(*key) == "":
		return fmt.Errorf("%s questions require a correct answer", qt)
	case qt == models.QuestionMatching:
		if _, err := decodeMapping(*key); err != nil {
			return fmt.Errorf("matching answer must be a JSON object: %w", err)
		}
	}
	return nil
}

// RoundBand clamps a band score to 0-9 and rounds it to the nearest half band
func RoundBand(band float64) float64 {
	if math.IsNaN(band) || band < 0 {
		return 0
	}
	if band > 9 {
		return 9
	}
	return math.Round(band*2) / 2
}

package models

import "time"

// Module is an IELTS test module
type Module string

const (
	ModuleReading   Module = "reading"
	ModuleListening Module = "listening"
	ModuleWriting   Module = "writing"
	ModuleSpeaking  Module = "speaking"
)

// Valid reports whether m is a known module
func (m Module) Valid() bool {
	switch m {
	case ModuleReading, ModuleListening, ModuleWriting, ModuleSpeaking:
		return true
	}
	return false
}

// QuestionType is the closed set of question kinds
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalseNG    QuestionType = "true_false_ng"
	QuestionFillBlank      QuestionType = "fill_blank"
	QuestionMatching       QuestionType = "matching"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
	QuestionSpeaking       QuestionType = "speaking"
)

// QuestionTypes lists every question type
var QuestionTypes = []QuestionType{
	QuestionMultipleChoice, QuestionTrueFalseNG, QuestionFillBlank, QuestionMatching,
	QuestionShortAnswer, QuestionEssay, QuestionSpeaking,
}

// Valid reports whether t is a known question type
func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// AutoGraded reports whether answers are graded by matching against a stored key
func (t QuestionType) AutoGraded() bool {
	switch t {
	case QuestionMultipleChoice, QuestionTrueFalseNG, QuestionFillBlank, QuestionMatching, QuestionShortAnswer:
		return true
	}
	return false
}

// Test is an admin-authored practice test
type Test struct {
	ID              int64      `db:"id" json:"id"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	Module          Module     `db:"module" json:"module"`
	DurationMinutes int        `db:"duration_minutes" json:"durationMinutes"`
	Passages        StringList `db:"passages" json:"passages"`
	IsActive        bool       `db:"is_active" json:"isActive"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// DurationSeconds returns the test duration in seconds
func (t *Test) DurationSeconds() int64 {
	return int64(t.DurationMinutes) * 60
}

// Question belongs to a Test
type Question struct {
	ID            int64        `db:"id" json:"id"`
	TestID        int64        `db:"test_id" json:"testId"`
	Type          QuestionType `db:"type" json:"type"`
	Content       string       `db:"content" json:"content"`
	Options       StringList   `db:"options" json:"options"`
	CorrectAnswer *string      `db:"correct_answer" json:"correctAnswer,omitempty"`
	PassageIndex  int          `db:"passage_index" json:"passageIndex"`
	AudioPath     *string      `db:"audio_path" json:"audioPath,omitempty"`
	Position      int          `db:"position" json:"position"`
	CreatedAt     time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updatedAt"`
}

// TestWithQuestions is a test and its ordered questions
type TestWithQuestions struct {
	Test
	Questions []Question `json:"questions"`
}

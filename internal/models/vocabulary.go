package models

import "time"

// CEFRLevels lists the vocabulary difficulty levels
var CEFRLevels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

// ValidCEFRLevel reports whether level is one of A1-C2
func ValidCEFRLevel(level string) bool {
	for _, l := range CEFRLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Vocabulary is a word on a user's spaced-repetition list
type Vocabulary struct {
	ID            int64      `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"userId"`
	Word          string     `db:"word" json:"word"`
	CEFRLevel     string     `db:"cefr_level" json:"cefrLevel"`
	Meaning       string     `db:"meaning" json:"meaning"`
	Example       string     `db:"example" json:"example"`
	ArabicMeaning string     `db:"arabic_meaning" json:"arabicMeaning"`
	ReviewStage   int        `db:"review_stage" json:"reviewStage"`
	LastReviewed  *time.Time `db:"last_reviewed" json:"lastReviewed"`
	NextReview    time.Time  `db:"next_review" json:"nextReview"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// VocabularyStats summarizes a user's list
type VocabularyStats struct {
	Total   int         `json:"total"`
	Due     int         `json:"due"`
	ByStage map[int]int `json:"byStage"`
}

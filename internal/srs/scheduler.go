// Package srs implements fixed-interval spaced repetition staging.
package srs

import (
	"errors"
	"time"
)

const (
	// MaxStage is the mastered bucket; stages never advance past it
	MaxStage = 5

	MinRating = 1
	MaxRating = 5

	// InitialDelay is how long a new word waits before its first review
	InitialDelay = 24 * time.Hour
)

var ErrInvalidRating = errors.New("knowledge rating must be between 1 and 5")

// intervals in days, indexed by stage
var intervals = []int{1, 3, 7, 14, 30, 90}

// Interval returns the review interval for a stage
func Interval(stage int) time.Duration {
	if stage < 0 {
		stage = 0
	}
	if stage >= len(intervals) {
		stage = len(intervals) - 1
	}
	return time.Duration(intervals[stage]) * 24 * time.Hour
}

// NextStage applies a 1-5 self-assessment to the current stage.
// 4-5 advances (capped at MaxStage), 1-2 resets to 0, 3 keeps the stage.
func NextStage(stage, rating int) (int, error) {
	if rating < MinRating || rating > MaxRating {
		return stage, ErrInvalidRating
	}
	switch {
	case rating >= 4:
		if stage+1 > MaxStage {
			return MaxStage, nil
		}
		return stage + 1, nil
	case rating <= 2:
		return 0, nil
	default:
		return stage, nil
	}
}

// Review returns the new stage and next review time for a rating given at now
func Review(stage, rating int, now time.Time) (int, time.Time, error) {
	newStage, err := NextStage(stage, rating)
	if err != nil {
		return stage, time.Time{}, err
	}
	return newStage, now.Add(Interval(newStage)), nil
}

// FirstReview returns when a freshly added word becomes due
func FirstReview(now time.Time) time.Time {
	return now.Add(InitialDelay)
}

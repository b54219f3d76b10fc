package srs

import (
	"errors"
	"testing"
	"time"
)

func TestNextStage(t *testing.T) {
	tests := []struct {
		name   string
		stage  int
		rating int
		want   int
	}{
		{"rating 5 advances", 0, 5, 1},
		{"rating 4 advances", 2, 4, 3},
		{"advance capped at max", 5, 5, 5},
		{"advance from 4 reaches max", 4, 4, 5},
		{"rating 3 keeps stage", 3, 3, 3},
		{"rating 3 at zero", 0, 3, 0},
		{"rating 2 resets", 4, 2, 0},
		{"rating 1 resets", 5, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextStage(tt.stage, tt.rating)
			if err != nil {
				t.Fatalf("NextStage() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("NextStage(%d, %d) = %d, want %d", tt.stage, tt.rating, got, tt.want)
			}
		})
	}
}

func TestNextStageRejectsInvalidRating(t *testing.T) {
	for _, rating := range []int{-1, 0, 6, 10} {
		if _, err := NextStage(2, rating); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("NextStage(2, %d) error = %v, want ErrInvalidRating", rating, err)
		}
	}
}

func TestNextStageProperties(t *testing.T) {
	for stage := 0; stage <= MaxStage; stage++ {
		for rating := MinRating; rating <= MaxRating; rating++ {
			got, err := NextStage(stage, rating)
			if err != nil {
				t.Fatalf("NextStage(%d, %d) error = %v", stage, rating, err)
			}
			var want int
			switch {
			case rating >= 4:
				want = stage + 1
				if want > MaxStage {
					want = MaxStage
				}
			case rating <= 2:
				want = 0
			default:
				want = stage
			}
			if got != want {
				t.Errorf("NextStage(%d, %d) = %d, want %d", stage, rating, got, want)
			}
		}
	}
}

func TestRepeatedPerfectReviewsReachMastery(t *testing.T) {
	stage := 0
	for i := 0; i < 5; i++ {
		var err error
		stage, err = NextStage(stage, 5)
		if err != nil {
			t.Fatal(err)
		}
	}
	if stage != 5 {
		t.Fatalf("stage after five perfect reviews = %d, want 5", stage)
	}

	stage, _ = NextStage(stage, 5)
	if stage != 5 {
		t.Errorf("stage after sixth perfect review = %d, want 5", stage)
	}
}

func TestInterval(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		stage int
		want  time.Duration
	}{
		{0, 1 * day},
		{1, 3 * day},
		{2, 7 * day},
		{3, 14 * day},
		{4, 30 * day},
		{5, 90 * day},
		{9, 90 * day},
		{-1, 1 * day},
	}

	for _, tt := range tests {
		if got := Interval(tt.stage); got != tt.want {
			t.Errorf("Interval(%d) = %v, want %v", tt.stage, got, tt.want)
		}
	}

	for stage := 1; stage <= MaxStage; stage++ {
		if Interval(stage) <= Interval(stage-1) {
			t.Errorf("Interval(%d) should be greater than Interval(%d)", stage, stage-1)
		}
	}
}

func TestReview(t *testing.T) {
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)

	stage, next, err := Review(1, 4, now)
	if err != nil {
		t.Fatal(err)
	}
	if stage != 2 {
		t.Errorf("stage = %d, want 2", stage)
	}
	if want := now.Add(7 * 24 * time.Hour); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	if _, _, err := Review(1, 0, now); err == nil {
		t.Error("Review() with rating 0 should fail")
	}
}

func TestFirstReview(t *testing.T) {
	now := time.Now()
	if got := FirstReview(now); !got.Equal(now.Add(24 * time.Hour)) {
		t.Errorf("FirstReview() = %v, want now+24h", got)
	}
}

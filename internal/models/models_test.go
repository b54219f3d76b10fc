package models

import (
	"testing"
	"time"
)

func TestSessionIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "future expiration",
			expiresAt: time.Now().Add(1 * time.Hour),
			want:      false,
		},
		{
			name:      "just expired",
			expiresAt: time.Now().Add(-1 * time.Second),
			want:      true,
		},
		{
			name:      "expired yesterday",
			expiresAt: time.Now().Add(-24 * time.Hour),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := Session{
				ID:        "test-session",
				UserID:    1,
				ExpiresAt: tt.expiresAt,
				CreatedAt: time.Now().Add(-1 * time.Hour),
			}
			result := session.IsExpired()
			if result != tt.want {
				t.Errorf("Session.IsExpired() = %v, want %v", result, tt.want)
			}
		})
	}
}

func TestAttemptStatusTransitions(t *testing.T) {
	tests := []struct {
		from AttemptStatus
		to   AttemptStatus
		want bool
	}{
		{AttemptNotStarted, AttemptInProgress, true},
		{AttemptNotStarted, AttemptCompleted, false},
		{AttemptInProgress, AttemptPaused, true},
		{AttemptPaused, AttemptInProgress, true},
		{AttemptInProgress, AttemptCompleted, true},
		{AttemptPaused, AttemptTimedOut, true},
		{AttemptInProgress, AttemptInProgress, false},
		{AttemptCompleted, AttemptInProgress, false},
		{AttemptCompleted, AttemptTimedOut, false},
		{AttemptTimedOut, AttemptCompleted, false},
		{AttemptTimedOut, AttemptPaused, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAttemptStatusClassification(t *testing.T) {
	for _, s := range []AttemptStatus{AttemptCompleted, AttemptTimedOut} {
		if !s.IsTerminal() || s.IsActive() {
			t.Errorf("%s should be terminal and inactive", s)
		}
	}
	for _, s := range []AttemptStatus{AttemptInProgress, AttemptPaused} {
		if s.IsTerminal() || !s.IsActive() {
			t.Errorf("%s should be active and not terminal", s)
		}
	}
	if AttemptStatus("abandoned").Valid() {
		t.Error("unknown status should be invalid")
	}
}

func TestAttemptRemainingSeconds(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	attempt := Attempt{StartTime: t0}
	duration := int64(60 * 60)

	tests := []struct {
		name string
		now  time.Time
		want int64
	}{
		{"at start", t0, 3600},
		{"after ten minutes", t0.Add(10 * time.Minute), 3000},
		{"exactly at limit", t0.Add(60 * time.Minute), 0},
		{"five minutes over", t0.Add(65 * time.Minute), 0},
		{"clock skew before start", t0.Add(-time.Minute), 3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := attempt.RemainingSeconds(duration, tt.now); got != tt.want {
				t.Errorf("RemainingSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestQuestionTypeAutoGraded(t *testing.T) {
	tests := []struct {
		qt   QuestionType
		want bool
	}{
		{QuestionMultipleChoice, true},
		{QuestionTrueFalseNG, true},
		{QuestionFillBlank, true},
		{QuestionMatching, true},
		{QuestionShortAnswer, true},
		{QuestionEssay, false},
		{QuestionSpeaking, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.qt), func(t *testing.T) {
			if !tt.qt.Valid() {
				t.Fatalf("%s should be valid", tt.qt)
			}
			if got := tt.qt.AutoGraded(); got != tt.want {
				t.Errorf("AutoGraded() = %v, want %v", got, tt.want)
			}
		})
	}

	if QuestionType("drag_drop").Valid() {
		t.Error("unknown type should be invalid")
	}
}

func TestStringListScan(t *testing.T) {
	tests := []struct {
		name string
		src  interface{}
		want int
	}{
		{"string", `["A","B","C"]`, 3},
		{"bytes", []byte(`["only"]`), 1},
		{"null", nil, 0},
		{"empty string", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l StringList
			if err := l.Scan(tt.src); err != nil {
				t.Fatalf("Scan() error = %v", err)
			}
			if len(l) != tt.want {
				t.Errorf("len = %d, want %d", len(l), tt.want)
			}
		})
	}

	var l StringList
	if err := l.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestRubricScoresValue(t *testing.T) {
	var empty RubricScores
	v, err := empty.Value()
	if err != nil || v != nil {
		t.Errorf("empty Value() = %v, %v; want nil, nil", v, err)
	}

	r := RubricScores{{Criterion: "Task Achievement", Band: 6.5}}
	v, err = r.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}

	var back RubricScores
	if err := back.Scan(v); err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(back) != 1 || back[0].Band != 6.5 {
		t.Errorf("Scan() = %+v", back)
	}
}

func TestUserAchievementCounter(t *testing.T) {
	a := UserAchievement{
		TotalPoints: 120, CurrentLevel: 2, LoginStreak: 7, TestsCompleted: 3,
		VocabularyAdded: 11, VocabularyReviewed: 40, HighestScore: 31.5,
	}

	tests := []struct {
		module BadgeModuleType
		want   float64
	}{
		{BadgeTotalPoints, 120},
		{BadgeLevel, 2},
		{BadgeLoginStreak, 7},
		{BadgeTestsCompleted, 3},
		{BadgeVocabularyAdded, 11},
		{BadgeVocabularyReviewed, 40},
		{BadgeHighestScore, 31.5},
		{BadgeModuleType("unknown"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.module), func(t *testing.T) {
			if got := a.Counter(tt.module); got != tt.want {
				t.Errorf("Counter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPointValue(t *testing.T) {
	if v, ok := PointValue(ActionTestCompleted); !ok || v != 50 {
		t.Errorf("PointValue(test_completed) = %d, %v", v, ok)
	}
	if _, ok := PointValue(ActionType("cheating")); ok {
		t.Error("unknown action should not have a point value")
	}
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
	"ieltsprep/internal/repository"
)

func TestVocabularyCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, "learner")

	word, err := env.vocabulary.Create(ctx, user.ID, VocabularyInput{
		Word:          " ubiquitous ",
		CEFRLevel:     "c1",
		Meaning:       "found everywhere",
		ArabicMeaning: "منتشر في كل مكان",
	})
	require.NoError(t, err)
	assert.Equal(t, "ubiquitous", word.Word)
	assert.Equal(t, "C1", word.CEFRLevel)
	assert.Equal(t, 0, word.ReviewStage)
	assert.WithinDuration(t, env.clock.Now().Add(24*time.Hour), word.NextReview, time.Second)

	summary, err := env.gamification.GetAchievement(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.VocabularyAdded)
	assert.Equal(t, 5, summary.TotalPoints)

	tests := []struct {
		name string
		in   VocabularyInput
	}{
		{"missing word", VocabularyInput{CEFRLevel: "B1", Meaning: "x"}},
		{"blank word", VocabularyInput{Word: "   ", CEFRLevel: "B1", Meaning: "x"}},
		{"bad level", VocabularyInput{Word: "apt", CEFRLevel: "D1", Meaning: "x"}},
		{"missing meaning", VocabularyInput{Word: "apt", CEFRLevel: "B1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.vocabulary.Create(ctx, user.ID, tt.in)
			requireKind(t, err, apperr.KindValidation)
		})
	}
}

func TestVocabularyReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, "learner")
	other := env.user(t, "other")

	word, err := env.vocabulary.Create(ctx, user.ID, VocabularyInput{Word: "mitigate", CEFRLevel: "B2", Meaning: "make less severe"})
	require.NoError(t, err)

	_, err = env.vocabulary.Review(ctx, user.ID, word.ID, 6)
	requireKind(t, err, apperr.KindValidation)
	_, err = env.vocabulary.Review(ctx, user.ID, word.ID, 0)
	requireKind(t, err, apperr.KindValidation)

	_, err = env.vocabulary.Review(ctx, other.ID, word.ID, 5)
	requireKind(t, err, apperr.KindAuthorization)

	_, err = env.vocabulary.Review(ctx, user.ID, word.ID+100, 5)
	requireKind(t, err, apperr.KindNotFound)

	reviewed, err := env.vocabulary.Review(ctx, user.ID, word.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, reviewed.ReviewStage)
	assert.WithinDuration(t, env.clock.Now().Add(3*24*time.Hour), reviewed.NextReview, time.Second)
	require.NotNil(t, reviewed.LastReviewed)

	reviewed, err = env.vocabulary.Review(ctx, user.ID, word.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, reviewed.ReviewStage)

	reviewed, err = env.vocabulary.Review(ctx, user.ID, word.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, reviewed.ReviewStage)
	assert.WithinDuration(t, env.clock.Now().Add(24*time.Hour), reviewed.NextReview, time.Second)

	summary, err := env.gamification.GetAchievement(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.VocabularyReviewed)
	assert.Equal(t, 5+3*2, summary.TotalPoints)
}

func TestDueForReview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, "learner")

	create := func(word string) *models.Vocabulary {
		v, err := env.vocabulary.Create(ctx, user.ID, VocabularyInput{Word: word, CEFRLevel: "B1", Meaning: word})
		require.NoError(t, err)
		return v
	}
	early := create("early")
	env.clock.Advance(time.Hour)
	late := create("late")
	advanced := create("advanced")

	due, err := env.vocabulary.DueForReview(ctx, user.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, due, "new words wait a day")

	env.clock.Advance(25 * time.Hour)
	_, err = env.vocabulary.Review(ctx, user.ID, advanced.ID, 5)
	require.NoError(t, err)

	env.clock.Advance(4 * 24 * time.Hour)
	due, err = env.vocabulary.DueForReview(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, due, 3)
	assert.Equal(t, []int64{early.ID, late.ID, advanced.ID}, []int64{due[0].ID, due[1].ID, due[2].ID})

	due, err = env.vocabulary.DueForReview(ctx, user.ID, 1)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	stats, err := env.vocabulary.Stats(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Due)
	assert.Equal(t, 2, stats.ByStage[0])
	assert.Equal(t, 1, stats.ByStage[1])

	sent, err := env.notifications.SendReviewReminders(ctx, repository.NewVocabularyRepository(env.db))
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	sent, err = env.notifications.SendReviewReminders(ctx, repository.NewVocabularyRepository(env.db))
	require.NoError(t, err)
	assert.Equal(t, 0, sent, "one unread reminder a day")
}

func TestVocabularyUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.user(t, "learner")
	other := env.user(t, "other")

	word, err := env.vocabulary.Create(ctx, user.ID, VocabularyInput{Word: "lucid", CEFRLevel: "C1", Meaning: "clear"})
	require.NoError(t, err)

	updated, err := env.vocabulary.Update(ctx, user.ID, word.ID, VocabularyInput{Word: "lucid", CEFRLevel: "C2", Meaning: "expressed clearly", Example: "a lucid account"})
	require.NoError(t, err)
	assert.Equal(t, "C2", updated.CEFRLevel)

	list, err := env.vocabulary.List(ctx, user.ID, "c2")
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = env.vocabulary.List(ctx, user.ID, "A1")
	require.NoError(t, err)
	assert.Empty(t, list)

	requireKind(t, env.vocabulary.Delete(ctx, other.ID, word.ID), apperr.KindAuthorization)
	require.NoError(t, env.vocabulary.Delete(ctx, user.ID, word.ID))
	_, err = env.vocabulary.Get(ctx, user.ID, word.ID)
	requireKind(t, err, apperr.KindNotFound)
}

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ieltsprep/internal/apperr"
	"ieltsprep/internal/models"
)

func TestContentVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin")
	student := env.user(t, "student")

	test, _ := env.readingTest(t, admin)
	inactive := false
	hidden, err := env.content.CreateTest(ctx, admin, TestInput{
		Title:           "Draft listening",
		Module:          models.ModuleListening,
		DurationMinutes: 30,
		IsActive:        &inactive,
	})
	require.NoError(t, err)

	all, err := env.content.ListTests(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	visible, err := env.content.ListTests(ctx, student, "")
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, test.ID, visible[0].ID)

	listening, err := env.content.ListTests(ctx, admin, models.ModuleListening)
	require.NoError(t, err)
	assert.Len(t, listening, 1)

	_, err = env.content.ListTests(ctx, student, "maths")
	requireKind(t, err, apperr.KindValidation)

	_, err = env.content.GetTest(ctx, student, hidden.ID)
	requireKind(t, err, apperr.KindNotFound)

	full, err := env.content.GetTest(ctx, student, test.ID)
	require.NoError(t, err)
	require.Len(t, full.Questions, 4)
	for _, q := range full.Questions {
		assert.Nil(t, q.CorrectAnswer, "question %d leaked its key", q.ID)
	}

	full, err = env.content.GetTest(ctx, admin, test.ID)
	require.NoError(t, err)
	require.NotNil(t, full.Questions[0].CorrectAnswer)
	assert.Equal(t, "Phoenicians", *full.Questions[0].CorrectAnswer)
	assert.Equal(t, []int{0, 1, 2, 3}, []int{full.Questions[0].Position, full.Questions[1].Position, full.Questions[2].Position, full.Questions[3].Position})
}

func TestContentRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin")
	student := env.user(t, "student")
	test, questions := env.readingTest(t, admin)

	_, err := env.content.CreateTest(ctx, student, TestInput{Title: "Mine", Module: models.ModuleWriting, DurationMinutes: 60})
	requireKind(t, err, apperr.KindAuthorization)
	_, err = env.content.UpdateTest(ctx, student, test.ID, TestInput{Title: "Mine", Module: models.ModuleWriting, DurationMinutes: 60})
	requireKind(t, err, apperr.KindAuthorization)
	requireKind(t, env.content.DeleteTest(ctx, student, test.ID), apperr.KindAuthorization)
	_, err = env.content.CreateQuestion(ctx, student, test.ID, QuestionInput{Type: models.QuestionEssay, Content: "Why?"})
	requireKind(t, err, apperr.KindAuthorization)
	requireKind(t, env.content.DeleteQuestion(ctx, student, questions[0].ID), apperr.KindAuthorization)
}

func TestCreateQuestionValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin")
	test, _ := env.readingTest(t, admin)
	key := func(s string) *string { return &s }

	tests := []struct {
		name  string
		in    QuestionInput
		field string
	}{
		{"unknown type", QuestionInput{Type: "riddle", Content: "?"}, "type"},
		{"blank content", QuestionInput{Type: models.QuestionEssay, Content: "  "}, "content"},
		{"missing key", QuestionInput{Type: models.QuestionFillBlank, Content: "The ___ of glass"}, "correctAnswer"},
		{"essay with key", QuestionInput{Type: models.QuestionEssay, Content: "Discuss.", CorrectAnswer: key("yes")}, "correctAnswer"},
		{"one option", QuestionInput{Type: models.QuestionMultipleChoice, Content: "Pick", Options: []string{"a"}, CorrectAnswer: key("a")}, "options"},
		{"key not an option", QuestionInput{Type: models.QuestionMultipleChoice, Content: "Pick", Options: []string{"a", "b"}, CorrectAnswer: key("c")}, "correctAnswer"},
		{"bad mapping", QuestionInput{Type: models.QuestionMatching, Content: "Match", CorrectAnswer: key("a=b")}, "correctAnswer"},
		{"passage out of range", QuestionInput{Type: models.QuestionShortAnswer, Content: "Name it", CorrectAnswer: key("soda"), PassageIndex: 2}, "passageIndex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.content.CreateQuestion(ctx, admin, test.ID, tt.in)
			requireKind(t, err, apperr.KindValidation)
			var fields []string
			for _, f := range err.(*apperr.Error).Fields {
				fields = append(fields, f.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}

	_, err := env.content.CreateQuestion(ctx, admin, test.ID+100, QuestionInput{Type: models.QuestionEssay, Content: "Discuss."})
	requireKind(t, err, apperr.KindNotFound)
}

func TestCreateQuestionsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin")
	test, _ := env.readingTest(t, admin)
	key := func(s string) *string { return &s }

	_, err := env.content.CreateQuestions(ctx, admin, test.ID, []QuestionInput{
		{Type: models.QuestionShortAnswer, Content: "What melts sand?", CorrectAnswer: key("heat")},
		{Type: models.QuestionShortAnswer, Content: "Missing key"},
	})
	requireKind(t, err, apperr.KindValidation)
	assert.Equal(t, "questions[1].correctAnswer", err.(*apperr.Error).Fields[0].Field)

	full, err := env.content.GetTest(ctx, admin, test.ID)
	require.NoError(t, err)
	assert.Len(t, full.Questions, 4)

	created, err := env.content.CreateQuestions(ctx, admin, test.ID, []QuestionInput{
		{Type: models.QuestionShortAnswer, Content: "What melts sand?", CorrectAnswer: key(" heat ")},
		{Type: models.QuestionEssay, Content: "Describe a hive.", CorrectAnswer: key("  ")},
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, 4, created[0].Position)
	assert.Equal(t, 5, created[1].Position)
	assert.Equal(t, "heat", *created[0].CorrectAnswer)
	assert.Nil(t, created[1].CorrectAnswer)
}

func TestUpdateAndDeleteContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin")
	test, questions := env.readingTest(t, admin)
	key := func(s string) *string { return &s }

	updated, err := env.content.UpdateQuestion(ctx, admin, questions[0].ID, QuestionInput{
		Type:          models.QuestionMultipleChoice,
		Content:       "Who first made glass?",
		Options:       []string{"Romans", "Phoenicians", "Mesopotamians"},
		CorrectAnswer: key("Mesopotamians"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Mesopotamians", *updated.CorrectAnswer)
	assert.Equal(t, questions[0].Position, updated.Position)

	_, err = env.content.UpdateQuestion(ctx, admin, questions[0].ID+100, QuestionInput{Type: models.QuestionEssay, Content: "x"})
	requireKind(t, err, apperr.KindNotFound)

	renamed, err := env.content.UpdateTest(ctx, admin, test.ID, TestInput{Title: " Academic Reading 1B ", Module: models.ModuleReading, DurationMinutes: 45, Passages: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Equal(t, "Academic Reading 1B", renamed.Title)
	assert.True(t, renamed.IsActive, "isActive left unchanged when omitted")

	require.NoError(t, env.content.DeleteQuestion(ctx, admin, questions[3].ID))
	requireKind(t, env.content.DeleteQuestion(ctx, admin, questions[3].ID), apperr.KindNotFound)

	require.NoError(t, env.content.DeleteTest(ctx, admin, test.ID))
	requireKind(t, env.content.DeleteTest(ctx, admin, test.ID), apperr.KindNotFound)
	_, err = env.content.GetTest(ctx, admin, test.ID)
	requireKind(t, err, apperr.KindNotFound)
}

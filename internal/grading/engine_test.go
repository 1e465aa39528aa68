package grading

import (
	"context"
	"testing"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func question(t model.QuestionType, correct string, options ...string) model.Question {
	return model.Question{ID: uuid.New(), Type: t, CorrectAnswer: correct, Options: options}
}

func TestGradeSingleMultipleChoice(t *testing.T) {
	q := question(model.QuestionTypeMultipleChoice, "B", "A", "B", "C")
	g := NewGrader()

	res, err := g.Grade(context.Background(), []model.Question{q}, model.Answers{q.ID.String(): "B"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Score)
	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 1, res.Total)
}

func TestGradeEmptyEqualsMissing(t *testing.T) {
	qs := []model.Question{
		question(model.QuestionTypeMultipleChoice, "A", "A", "B"),
		question(model.QuestionTypeFillIn, "paris"),
	}
	g := NewGrader()

	missing, err := g.Grade(context.Background(), qs, model.Answers{})
	require.NoError(t, err)
	empty, err := g.Grade(context.Background(), qs, model.Answers{
		qs[0].ID.String(): "",
		qs[1].ID.String(): "   ",
	})
	require.NoError(t, err)

	assert.Equal(t, missing.Score, empty.Score)
	assert.Equal(t, missing.Correct, empty.Correct)
	assert.Equal(t, 2, empty.Total)
	assert.Equal(t, 0.0, empty.Score)
}

func TestGradeByType(t *testing.T) {
	tests := []struct {
		name   string
		q      model.Question
		answer string
		points float64
	}{
		{name: "mc wrong", q: question(model.QuestionTypeMultipleChoice, "B", "A", "B"), answer: "A", points: 0},
		{name: "true-false case-insensitive", q: question(model.QuestionTypeTrueFalse, "true"), answer: "True", points: 1},
		{name: "true-false wrong", q: question(model.QuestionTypeTrueFalse, "false"), answer: "true", points: 0},
		{name: "fill-in normalised", q: question(model.QuestionTypeFillIn, "Pythagoras"), answer: "  pythagoras. ", points: 1},
		{name: "fill-in alternative", q: question(model.QuestionTypeFillIn, "square|quadrilateral"), answer: "Quadrilateral", points: 1},
		{name: "fill-in wrong", q: question(model.QuestionTypeFillIn, "triangle"), answer: "circle", points: 0},
		{name: "equation numeric", q: question(model.QuestionTypeMathEquation, "x = 2"), answer: "2.0", points: 1},
		{name: "equation fraction", q: question(model.QuestionTypeMathEquation, "0.75"), answer: "3/4", points: 1},
		{name: "equation markup", q: question(model.QuestionTypeMathEquation, "$x^2+1$"), answer: "x^2 + 1", points: 1},
		{name: "equation tolerance", q: question(model.QuestionTypeMathEquation, "3.14159;tol=0.01"), answer: "3.14", points: 1},
		{name: "equation named side", q: question(model.QuestionTypeMathEquation, "x=5"), answer: "x = 5.0", points: 1},
		{name: "equation wrong variable", q: question(model.QuestionTypeMathEquation, "x=5"), answer: "y=5", points: 0},
		{name: "equation constant side", q: question(model.QuestionTypeMathEquation, "x=5"), answer: "0=5", points: 0},
		{name: "equation chained", q: question(model.QuestionTypeMathEquation, "x=5"), answer: "x=2=5", points: 0},
		{name: "equation named answer to bare key", q: question(model.QuestionTypeMathEquation, "5"), answer: "y=5", points: 0},
		{name: "equation outside tolerance", q: question(model.QuestionTypeMathEquation, "3.14159"), answer: "3.14", points: 0},
	}
	g := NewGrader()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := g.Grade(context.Background(), []model.Question{tt.q}, model.Answers{tt.q.ID.String(): tt.answer})
			require.NoError(t, err)
			assert.Equal(t, tt.points, res.Questions[tt.q.ID.String()].Points)
		})
	}
}

func TestGradeEssayExcludedFromTotal(t *testing.T) {
	mc := question(model.QuestionTypeMultipleChoice, "A", "A", "B")
	essay := question(model.QuestionTypeEssay, "")
	g := NewGrader()

	res, err := g.Grade(context.Background(), []model.Question{mc, essay}, model.Answers{
		mc.ID.String():    "A",
		essay.ID.String(): "a long answer",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.PendingManual)
	assert.Equal(t, 100.0, res.Score)
}

func TestGradeFuzzyFillIn(t *testing.T) {
	q := question(model.QuestionTypeFillIn, "hypotenuse")
	g := NewGrader(WithMaxEditDistance(1))

	res, err := g.Grade(context.Background(), []model.Question{q}, model.Answers{q.ID.String(): "hypotenuze"})
	require.NoError(t, err)
	assert.Equal(t, 50.0, res.Score)
	assert.Equal(t, 0, res.Correct)
}

func TestGradeRounding(t *testing.T) {
	qs := []model.Question{
		question(model.QuestionTypeTrueFalse, "true"),
		question(model.QuestionTypeTrueFalse, "true"),
		question(model.QuestionTypeTrueFalse, "true"),
	}
	g := NewGrader()
	res, err := g.Grade(context.Background(), qs, model.Answers{qs[0].ID.String(): "true"})
	require.NoError(t, err)
	assert.Equal(t, 33.33, res.Score)
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 1, levenshtein("abc", "abd"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}

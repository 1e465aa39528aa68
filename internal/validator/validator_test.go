package validator

import (
	"testing"
	"time"

	"github.com/funmath/funmath-backend/internal/model"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() model.CreateExamRequest {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return model.CreateExamRequest{
		Title:           "Fractions quiz",
		EducationLevel:  "grade_5",
		Subject:         "math",
		DurationMinutes: 30,
		StartTime:       start,
		EndTime:         start.Add(time.Hour),
		Difficulty:      "easy",
		Questions: []model.QuestionInput{
			{Text: "1/2 + 1/2 = ?", Type: "multiple-choice", Options: []string{"1", "2"}, CorrectAnswer: "1"},
			{Text: "0.5 equals 1/2", Type: "true-false", CorrectAnswer: "true"},
		},
	}
}

func validate(t *testing.T, req model.CreateExamRequest) map[string]string {
	t.Helper()
	Setup()
	err := binding.Validator.ValidateStruct(&req)
	if err == nil {
		return nil
	}
	return TranslateErrors(err)
}

func TestValidRequestPasses(t *testing.T) {
	assert.Nil(t, validate(t, validRequest()))
}

func TestEducationLevel(t *testing.T) {
	for level, ok := range map[string]bool{
		"grade_1":    true,
		"grade_12":   true,
		"university": true,
		"grade_0":    false,
		"grade_13":   false,
		"grade_05":   false,
		"college":    false,
		"":           false,
	} {
		assert.Equal(t, ok, ValidEducationLevel(level), level)
	}

	req := validRequest()
	req.EducationLevel = "kindergarten"
	fields := validate(t, req)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "education_level")
}

func TestEndMustFollowStart(t *testing.T) {
	req := validRequest()
	req.EndTime = req.StartTime
	fields := validate(t, req)
	require.NotNil(t, fields)
	assert.Contains(t, fields, "end_time")
}

func TestQuestionRules(t *testing.T) {
	cases := []struct {
		name  string
		input model.QuestionInput
		field string
	}{
		{"mc needs two options", model.QuestionInput{Text: "q", Type: "multiple-choice", Options: []string{"a"}, CorrectAnswer: "a"}, "questions[0].options"},
		{"mc correct in options", model.QuestionInput{Text: "q", Type: "multiple-choice", Options: []string{"a", "b"}, CorrectAnswer: "c"}, "questions[0].correct_answer"},
		{"tf literal", model.QuestionInput{Text: "q", Type: "true-false", CorrectAnswer: "yes"}, "questions[0].correct_answer"},
		{"fill-in requires answer", model.QuestionInput{Text: "q", Type: "fill-in"}, "questions[0].correct_answer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			req.Questions = []model.QuestionInput{tc.input}
			fields := validate(t, req)
			require.NotNil(t, fields)
			assert.Contains(t, fields, tc.field)
		})
	}
}

func TestEssayNeedsNoAnswer(t *testing.T) {
	req := validRequest()
	req.Questions = []model.QuestionInput{{Text: "Explain why", Type: "essay"}}
	assert.Nil(t, validate(t, req))
}

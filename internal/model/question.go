package model

import (
	"github.com/google/uuid"
)

// QuestionType enumerates supported question types.
type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple-choice"
	QuestionTypeTrueFalse      QuestionType = "true-false"
	QuestionTypeFillIn         QuestionType = "fill-in"
	QuestionTypeEssay          QuestionType = "essay"
	QuestionTypeMathEquation   QuestionType = "math-equation"
)

// Question is owned by its Exam and has no independent lifecycle.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	ExamID        uuid.UUID    `json:"exam_id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer"`
	Images        []string     `json:"images,omitempty"`
	OrderNum      int          `json:"order_num"`
}

// QuestionForLearner is a question without the correct answer.
type QuestionForLearner struct {
	ID       uuid.UUID    `json:"id"`
	Text     string       `json:"text"`
	Type     QuestionType `json:"type"`
	Options  []string     `json:"options,omitempty"`
	Images   []string     `json:"images,omitempty"`
	OrderNum int          `json:"order_num"`
}

// QuestionInput is one question inside a create/update exam request.
// The multiple-choice and true-false invariants are checked by a struct-level
// validator registered in internal/validator.
type QuestionInput struct {
	Text          string   `json:"text" binding:"required,min=1,max=5000"`
	Type          string   `json:"type" binding:"required,oneof=multiple-choice true-false fill-in essay math-equation"`
	Options       []string `json:"options" binding:"omitempty,max=10,dive,required,max=500"`
	CorrectAnswer string   `json:"correct_answer" binding:"max=2000"`
	Images        []string `json:"images" binding:"omitempty,max=10,dive,required,max=1024"`
}

// ToQuestion converts the input into a Question at the given position.
func (q QuestionInput) ToQuestion(order int) Question {
	out := Question{
		Text:          q.Text,
		Type:          QuestionType(q.Type),
		CorrectAnswer: q.CorrectAnswer,
		Images:        q.Images,
		OrderNum:      order,
	}
	if out.Type == QuestionTypeMultipleChoice {
		out.Options = q.Options
	}
	return out
}

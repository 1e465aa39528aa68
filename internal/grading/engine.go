// Package grading scores an answer sheet against an exam's question set.
// Each question type is handled by a Strategy; essays are left for manual
// review and excluded from the automatic total.
package grading

import (
	"context"
	"strings"

	"github.com/funmath/funmath-backend/internal/model"
)

// Outcome is the result of grading a single answer.
type Outcome struct {
	Points      float64 `json:"points"`
	MaxPoints   float64 `json:"max_points"`
	NeedsManual bool    `json:"needs_manual"`
	Feedback    string  `json:"feedback,omitempty"`
}

// Strategy grades one question type.
type Strategy interface {
	Grade(q model.Question, answer string) Outcome
}

// Result aggregates per-question outcomes.
type Result struct {
	// Score is the percentage of automatically gradable points earned (0..100).
	Score         float64            `json:"score"`
	Correct       int                `json:"correct"`
	Total         int                `json:"total"`
	PendingManual int                `json:"pending_manual"`
	Questions     map[string]Outcome `json:"questions"`
}

// Grader is the grading collaborator.
type Grader interface {
	Grade(ctx context.Context, questions []model.Question, answers model.Answers) (Result, error)
}

type Option func(*options)

type options struct {
	maxEditDistance int
	numericTol      float64
}

// WithMaxEditDistance allows near-miss fill-in answers for half credit.
func WithMaxEditDistance(n int) Option { return func(o *options) { o.maxEditDistance = n } }

// WithNumericTolerance sets the absolute tolerance for math-equation answers.
func WithNumericTolerance(tol float64) Option { return func(o *options) { o.numericTol = tol } }

type engine struct {
	strategies map[model.QuestionType]Strategy
}

// NewGrader installs the built-in strategies.
func NewGrader(opts ...Option) Grader {
	o := &options{maxEditDistance: 0, numericTol: 1e-9}
	for _, fn := range opts {
		fn(o)
	}
	return &engine{
		strategies: map[model.QuestionType]Strategy{
			model.QuestionTypeMultipleChoice: exactStrategy{},
			model.QuestionTypeTrueFalse:      trueFalseStrategy{},
			model.QuestionTypeFillIn:         fillInStrategy{maxEdit: o.maxEditDistance},
			model.QuestionTypeMathEquation:   equationStrategy{tol: o.numericTol},
			model.QuestionTypeEssay:          essayStrategy{},
		},
	}
}

// Grade scores answers. A question absent from answers is graded exactly
// like an empty string.
func (g *engine) Grade(ctx context.Context, questions []model.Question, answers model.Answers) (Result, error) {
	res := Result{Questions: make(map[string]Outcome, len(questions))}
	var earned, possible float64

	for _, q := range questions {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		answer := strings.TrimSpace(answers[q.ID.String()])

		s, ok := g.strategies[q.Type]
		var out Outcome
		switch {
		case !ok:
			out = Outcome{MaxPoints: 1, NeedsManual: true, Feedback: "no strategy available"}
		case answer == "" && q.Type != model.QuestionTypeEssay:
			out = Outcome{MaxPoints: 1, Feedback: "unanswered"}
		default:
			out = s.Grade(q, answer)
		}
		res.Questions[q.ID.String()] = out

		if out.NeedsManual {
			res.PendingManual++
			continue
		}
		res.Total++
		possible += out.MaxPoints
		earned += out.Points
		if out.Points >= out.MaxPoints {
			res.Correct++
		}
	}

	if possible > 0 {
		res.Score = roundScore(earned / possible * 100)
	}
	return res, nil
}

type exactStrategy struct{}

func (exactStrategy) Grade(q model.Question, answer string) Outcome {
	out := Outcome{MaxPoints: 1}
	if answer == strings.TrimSpace(q.CorrectAnswer) {
		out.Points = 1
	}
	return out
}

type trueFalseStrategy struct{}

func (trueFalseStrategy) Grade(q model.Question, answer string) Outcome {
	out := Outcome{MaxPoints: 1}
	if strings.EqualFold(answer, strings.TrimSpace(q.CorrectAnswer)) {
		out.Points = 1
	}
	return out
}

type fillInStrategy struct{ maxEdit int }

func (s fillInStrategy) Grade(q model.Question, answer string) Outcome {
	out := Outcome{MaxPoints: 1}
	got := normalize(answer)
	// correct_answer may list alternatives separated by "|".
	for _, alt := range strings.Split(q.CorrectAnswer, "|") {
		want := normalize(alt)
		if want == "" {
			continue
		}
		if want == got {
			out.Points = 1
			return out
		}
		if s.maxEdit > 0 && levenshtein(want, got) <= s.maxEdit {
			out.Points = 0.5
			out.Feedback = "close match"
		}
	}
	return out
}

type essayStrategy struct{}

func (essayStrategy) Grade(_ model.Question, _ string) Outcome {
	return Outcome{MaxPoints: 1, NeedsManual: true, Feedback: "manual grading required"}
}

func roundScore(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

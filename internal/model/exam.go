package model

import (
	"time"

	"github.com/funmath/funmath-backend/internal/window"
	"github.com/google/uuid"
)

// ExamStatus is the moderation state of an exam.
type ExamStatus string

const (
	ExamStatusPending  ExamStatus = "pending"
	ExamStatusApproved ExamStatus = "approved"
	ExamStatusRejected ExamStatus = "rejected"
)

// Difficulty enumerates exam difficulty bands.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// EducationLevel is a grade band ("grade_1" .. "grade_12") or "university".
type EducationLevel string

const EducationLevelUniversity EducationLevel = "university"

// Exam represents an exam entity.
type Exam struct {
	ID              uuid.UUID      `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	EducationLevel  EducationLevel `json:"education_level"`
	Subject         string         `json:"subject"`
	DurationMinutes int            `json:"duration_minutes"`
	StartTime       time.Time      `json:"start_time"`
	EndTime         time.Time      `json:"end_time"`
	Difficulty      Difficulty     `json:"difficulty"`
	Status          ExamStatus     `json:"status"`
	AuthorID        int64          `json:"author_id"`
	Questions       []Question     `json:"questions,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Window classifies the exam's scheduling window at now.
func (e *Exam) Window(now time.Time) window.Status {
	return window.Classify(now, e.StartTime, e.EndTime)
}

// AnswerKey maps question id to correct answer.
func (e *Exam) AnswerKey() map[string]string {
	key := make(map[string]string, len(e.Questions))
	for _, q := range e.Questions {
		key[q.ID.String()] = q.CorrectAnswer
	}
	return key
}

// Payload strips correct answers for learner delivery.
func (e *Exam) Payload() ExamPayload {
	qs := make([]QuestionForLearner, len(e.Questions))
	for i, q := range e.Questions {
		qs[i] = QuestionForLearner{
			ID:       q.ID,
			Text:     q.Text,
			Type:     q.Type,
			Options:  q.Options,
			Images:   q.Images,
			OrderNum: q.OrderNum,
		}
	}
	return ExamPayload{
		ExamID:          e.ID,
		Title:           e.Title,
		Description:     e.Description,
		EducationLevel:  e.EducationLevel,
		Subject:         e.Subject,
		Difficulty:      e.Difficulty,
		DurationMinutes: e.DurationMinutes,
		StartTime:       e.StartTime,
		EndTime:         e.EndTime,
		Questions:       qs,
	}
}

// ExamPayload is the Redis-cached exam sent to learners (no correct answers).
type ExamPayload struct {
	ExamID          uuid.UUID            `json:"exam_id"`
	Title           string               `json:"title"`
	Description     string               `json:"description"`
	EducationLevel  EducationLevel       `json:"education_level"`
	Subject         string               `json:"subject"`
	Difficulty      Difficulty           `json:"difficulty"`
	DurationMinutes int                  `json:"duration_minutes"`
	StartTime       time.Time            `json:"start_time"`
	EndTime         time.Time            `json:"end_time"`
	Questions       []QuestionForLearner `json:"questions"`
}

// LearnerExam is the exam fetch response: payload plus the server clock so
// clients can correct for skew.
type LearnerExam struct {
	Exam       ExamPayload   `json:"exam"`
	ServerTime time.Time     `json:"server_time"`
	Window     window.Status `json:"window"`
}

// CreateExamRequest is the payload for creating a new exam.
type CreateExamRequest struct {
	Title           string          `json:"title" binding:"required,min=3,max=255"`
	Description     string          `json:"description" binding:"max=5000"`
	EducationLevel  string          `json:"education_level" binding:"required,education_level"`
	Subject         string          `json:"subject" binding:"required,max=100"`
	DurationMinutes int             `json:"duration_minutes" binding:"required,min=1,max=600"`
	StartTime       time.Time       `json:"start_time" binding:"required"`
	EndTime         time.Time       `json:"end_time" binding:"required,gtfield=StartTime"`
	Difficulty      string          `json:"difficulty" binding:"required,oneof=easy medium hard"`
	Questions       []QuestionInput `json:"questions" binding:"required,min=1,dive"`
}

// UpdateExamRequest replaces an exam's attributes and question set.
type UpdateExamRequest CreateExamRequest

// ModerateExamRequest is the admin's approve/reject decision.
type ModerateExamRequest struct {
	Status string `json:"status" binding:"required,oneof=approved rejected"`
}

// ToExam builds an Exam from a create/update request.
func (r *CreateExamRequest) ToExam() *Exam {
	e := &Exam{
		Title:           r.Title,
		Description:     r.Description,
		EducationLevel:  EducationLevel(r.EducationLevel),
		Subject:         r.Subject,
		DurationMinutes: r.DurationMinutes,
		StartTime:       r.StartTime.UTC(),
		EndTime:         r.EndTime.UTC(),
		Difficulty:      Difficulty(r.Difficulty),
		Questions:       make([]Question, len(r.Questions)),
	}
	for i, q := range r.Questions {
		e.Questions[i] = q.ToQuestion(i + 1)
	}
	return e
}

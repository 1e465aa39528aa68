package response

import "net/http"

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden        ErrCode = "FORBIDDEN"
	ErrLearnerOnly      ErrCode = "LEARNER_ACCESS_ONLY"
	ErrNotExamAuthor    ErrCode = "NOT_EXAM_AUTHOR"
	ErrModeratorOnly    ErrCode = "MODERATOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam lifecycle ────────────────────────────────────────────────
	ErrExamNotApproved           ErrCode = "EXAM_NOT_APPROVED"
	ErrExamUpcoming              ErrCode = "EXAM_UPCOMING"
	ErrExamClosed                ErrCode = "EXAM_CLOSED"
	ErrExamLocked                ErrCode = "EXAM_LOCKED"
	ErrInvalidStatusTransition   ErrCode = "INVALID_STATUS_TRANSITION"
	ErrSessionNotStarted         ErrCode = "SESSION_NOT_STARTED"
	ErrSessionSubmitted          ErrCode = "SESSION_SUBMITTED"
	ErrSubmissionInProgress      ErrCode = "SUBMISSION_IN_PROGRESS"
	ErrResultNotAvailable        ErrCode = "RESULT_NOT_AVAILABLE"

	// ─── Server ────────────────────────────────────────────────────────
	ErrServiceUnavailable ErrCode = "SERVICE_UNAVAILABLE"
	ErrInternal           ErrCode = "INTERNAL_ERROR"
)

type codeInfo struct {
	status  int
	message string
}

var catalogue = map[ErrCode]codeInfo{
	ErrInvalidCredentials: {http.StatusUnauthorized, "Invalid email or password."},
	ErrTokenRequired:      {http.StatusUnauthorized, "Authentication token is required."},
	ErrTokenInvalid:       {http.StatusUnauthorized, "Authentication token is invalid."},
	ErrTokenExpired:       {http.StatusUnauthorized, "Authentication token has expired."},

	ErrForbidden:     {http.StatusForbidden, "You do not have permission to access this resource."},
	ErrLearnerOnly:   {http.StatusForbidden, "This resource is restricted to learners."},
	ErrNotExamAuthor: {http.StatusForbidden, "You are not the author of this exam."},
	ErrModeratorOnly: {http.StatusForbidden, "This resource is restricted to moderators."},

	ErrValidation:     {http.StatusBadRequest, "Validation failed. Please check your input."},
	ErrInvalidID:      {http.StatusBadRequest, "Invalid ID format."},
	ErrInvalidPayload: {http.StatusBadRequest, "Invalid request payload."},

	ErrNotFound: {http.StatusNotFound, "Resource not found."},
	ErrConflict: {http.StatusConflict, "Resource already exists."},

	ErrExamNotApproved:         {http.StatusForbidden, "This exam has not been approved yet."},
	ErrExamUpcoming:            {http.StatusForbidden, "This exam has not started yet."},
	ErrExamClosed:              {http.StatusForbidden, "This exam has ended."},
	ErrExamLocked:              {http.StatusConflict, "This exam already has attempts and can no longer be changed."},
	ErrInvalidStatusTransition: {http.StatusConflict, "Only pending exams can be moderated."},
	ErrSessionNotStarted:       {http.StatusConflict, "Start the exam before saving or submitting."},
	ErrSessionSubmitted:        {http.StatusConflict, "This exam has already been submitted."},
	ErrSubmissionInProgress:    {http.StatusConflict, "A submission for this exam is already in progress."},
	ErrResultNotAvailable:      {http.StatusNotFound, "No result is available for this exam yet."},

	ErrServiceUnavailable: {http.StatusServiceUnavailable, "Service temporarily unavailable. Please retry."},
	ErrInternal:           {http.StatusInternalServerError, "An internal server error occurred."},
}

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	if info, ok := catalogue[code]; ok {
		return info.message
	}
	return "An unexpected error occurred."
}

// StatusOf returns the HTTP status conventionally paired with code.
func StatusOf(code ErrCode) int {
	if info, ok := catalogue[code]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

package service

import "errors"

// Common service errors. Handlers map these onto response error codes.
var (
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrEmailTaken              = errors.New("email already registered")
	ErrUserNotFound            = errors.New("user not found")
	ErrExamNotFound            = errors.New("exam not found")
	ErrExamNotApproved         = errors.New("exam is not approved")
	ErrExamUpcoming            = errors.New("exam has not started")
	ErrExamClosed              = errors.New("exam has ended")
	ErrExamLocked              = errors.New("exam already has attempts")
	ErrNotExamAuthor           = errors.New("not the exam author")
	ErrInvalidStatusTransition = errors.New("exam is not pending moderation")
	ErrSessionNotStarted       = errors.New("exam session not started")
	ErrSessionSubmitted        = errors.New("exam session already submitted")
	ErrSubmissionInProgress    = errors.New("submission already in progress")
	ErrResultNotAvailable      = errors.New("result not available")
)

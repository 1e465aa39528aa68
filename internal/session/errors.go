package session

import (
	"errors"
	"fmt"

	"github.com/funmath/funmath-backend/internal/client"
)

var (
	ErrNotActive       = errors.New("session is not active")
	ErrSubmitStarted   = errors.New("submission already started")
	ErrWindowClosed    = errors.New("exam window has closed")
	ErrUnknownQuestion = errors.New("question is not part of this exam")
)

// Failure is the learner-facing form of every API error reaching the
// controller. Raw transport errors stay in Err for logging only.
type Failure struct {
	Kind client.Kind
	Code string
	Err  error
}

func newFailure(err error) *Failure {
	return &Failure{Kind: client.KindOf(err), Code: client.CodeOf(err), Err: err}
}

func (f *Failure) Error() string { return fmt.Sprintf("%s failure: %v", f.Kind, f.Err) }

func (f *Failure) Unwrap() error { return f.Err }

// Recoverable reports whether the learner can retry.
func (f *Failure) Recoverable() bool { return f.Kind == client.KindTransient }

// Message is safe to show the learner.
func (f *Failure) Message() string {
	switch f.Kind {
	case client.KindTransient:
		return "Connection problem. Your answers are kept; please try again."
	case client.KindIneligible:
		return "This exam is not available right now."
	}
	switch f.Code {
	case "NOT_FOUND":
		return "This exam no longer exists."
	case "TOKEN_REQUIRED", "TOKEN_INVALID", "TOKEN_EXPIRED":
		return "Your login has expired. Please log in again."
	case "FORBIDDEN", "LEARNER_ACCESS_ONLY":
		return "You are not allowed to take this exam."
	}
	return "Something went wrong. The exam session has ended."
}

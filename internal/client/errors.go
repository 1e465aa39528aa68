package client

import (
	"errors"
	"fmt"
)

// Kind classifies a failed API call for the session controller.
type Kind int

const (
	// KindTransient failures (transport, timeouts, 5xx, 429) may be retried.
	KindTransient Kind = iota + 1
	// KindIneligible means the exam window or approval state forbids the call.
	KindIneligible
	// KindFatal failures will not succeed on retry.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindIneligible:
		return "ineligible"
	case KindFatal:
		return "fatal"
	}
	return "unknown"
}

// Error is returned by every Client method that fails.
type Error struct {
	Kind    Kind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("%s (%d %s): %s", e.Kind, e.Status, e.Code, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Kind, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind of err. Errors not produced by Client count as
// transient.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindTransient
}

// CodeOf returns the server error code carried by err, if any.
func CodeOf(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

var ineligibleCodes = map[string]bool{
	"EXAM_UPCOMING":     true,
	"EXAM_CLOSED":       true,
	"EXAM_NOT_APPROVED": true,
}

var transientCodes = map[string]bool{
	"SUBMISSION_IN_PROGRESS": true,
	"SERVICE_UNAVAILABLE":    true,
	"INTERNAL_ERROR":         true,
}

func classify(status int, code string) Kind {
	switch {
	case ineligibleCodes[code]:
		return KindIneligible
	case transientCodes[code], status >= 500, status == 429:
		return KindTransient
	}
	return KindFatal
}

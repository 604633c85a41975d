package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrNotFound           = errors.New("not_found")
	ErrRequestNotFound    = errors.New("request_not_found")
	ErrUsernameTaken      = errors.New("username_taken")
	ErrUserExists         = errors.New("user_exists")
	ErrFriendshipExists   = errors.New("friendship_exists")
	ErrTransport          = errors.New("transport_failure")
	ErrVersionConflict    = errors.New("version_conflict")
	ErrPartialCompletion  = errors.New("partial_completion")
	ErrInvariantViolation = errors.New("invariant_violation")
	ErrRateLimited        = errors.New("rate_limited")
	ErrValidation         = errors.New("validation")
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}

// TransportError wraps a non-success outcome from the document store.
func TransportError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

// PartialCompletionError reports a multi-step operation that committed some
// but not all of its steps. Completed steps are not rolled back.
type PartialCompletionError struct {
	Op     Operation
	Result OpResult
	Cause  error
}

func (e *PartialCompletionError) Error() string {
	done := make([]string, 0, len(e.Result.Steps))
	for _, st := range e.Result.Steps {
		if st.Status == StepDone || st.Status == StepSkipped {
			done = append(done, st.Name)
		}
	}
	msg := fmt.Sprintf("%s partially completed (done: %s)", e.Op, strings.Join(done, ","))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PartialCompletionError) Is(target error) bool { return target == ErrPartialCompletion }

func (e *PartialCompletionError) Unwrap() error { return e.Cause }

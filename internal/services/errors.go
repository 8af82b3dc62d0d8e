package services

import (
	"errors"
	"fmt"
)

// Failure categories. Validation, authorization, not-found and conflict
// failures always resolve locally into a user-facing reply and never
// escalate; anything else is treated as an I/O failure and surfaced as a
// generic message after logging.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrNotAllowed = errors.New("not allowed")
	ErrConflict   = errors.New("conflict")
)

// UserError carries the reply shown to the invoking party alongside its
// failure category, so callers can branch with errors.Is.
type UserError struct {
	Category error
	Reply    string
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%v: %s", e.Category, e.Reply)
}

func (e *UserError) Unwrap() error {
	return e.Category
}

func userErr(category error, format string, args ...any) error {
	return &UserError{Category: category, Reply: fmt.Sprintf(format, args...)}
}

// UserReply extracts the user-facing reply from an error, or "" when the
// error is not user-resolvable.
func UserReply(err error) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Reply
	}
	return ""
}

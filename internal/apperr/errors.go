// Package apperr holds the error taxonomy shared by the stores, the
// submission path and the HTTP boundary.
package apperr

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound: a referenced course, question, choice, enrollment,
	// submission or user does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidSelection: at least one selected choice does not belong to
	// the enrollment's course. The message never names the offending IDs.
	ErrInvalidSelection = errors.New("invalid submission")

	// ErrNotEnrolled: the caller has no enrollment for the course.
	ErrNotEnrolled = errors.New("not enrolled in course")

	// ErrChoiceLocked: the choice is referenced by a submission and can no
	// longer be edited or removed.
	ErrChoiceLocked = errors.New("choice is referenced by a submission")

	// ErrCourseInactive: the course does not accept enrollments.
	ErrCourseInactive = errors.New("course is not accepting enrollments")

	// ErrInvalidCredentials is returned by user authentication.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports an authoring-time or input problem on a field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Invalid builds a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

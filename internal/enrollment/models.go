package enrollment

import (
	"strings"
	"time"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
)

type Mode string

const (
	ModeAudit    Mode = "audit"
	ModeHonor    Mode = "honor"
	ModeBeta     Mode = "beta"
	ModeVerified Mode = "verified"
)

// ParseMode accepts the known modes case-insensitively; empty means honor.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeHonor, nil
	case ModeAudit, ModeHonor, ModeBeta, ModeVerified:
		return m, nil
	default:
		return "", apperr.Invalid("mode", "unknown enrollment mode "+s)
	}
}

// Enrollment binds one learner to one course. There is at most one per
// (UserID, CourseID) pair.
type Enrollment struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	CourseID        string     `json:"course_id"`
	Mode            Mode       `json:"mode"`
	IsActive        bool       `json:"is_active"`
	DateEnrolled    time.Time  `json:"date_enrolled"`
	SubmissionCount int        `json:"submission_count"`
	FinalGrade      *float64   `json:"final_grade,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Rating          *float64   `json:"rating,omitempty"`
	Review          string     `json:"review,omitempty"`
}

func (e Enrollment) IsComplete() bool { return e.CompletedAt != nil }

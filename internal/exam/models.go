package exam

import (
	"time"

	"github.com/mind-engage/mindengage-courses/internal/grading"
)

// Submission is one learner attempt: the set of choices selected at submit
// time. Scores are not stored; they are recomputed from the course's
// current questions whenever results are requested.
type Submission struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"enrollment_id"`
	UserID       string    `json:"user_id"`
	Username     string    `json:"username,omitempty"`
	CourseID     string    `json:"course_id"`
	ChoiceIDs    []string  `json:"choice_ids"`
	CreatedAt    time.Time `json:"created_at"`
}

type ListOpts struct {
	EnrollmentID string
	CourseID     string
	UserID       string
	Limit        int
	Offset       int
}

// Results is a submission scored against the current course content.
type Results struct {
	Submission Submission `json:"submission"`
	CourseName string     `json:"course_name"`
	grading.Report
}

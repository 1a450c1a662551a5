// Package users holds identities and their role-specific profiles.
package users

import (
	"strings"
	"time"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
)

type Role string

const (
	RoleLearner    Role = "learner"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleLearner, nil
	case RoleLearner, RoleInstructor, RoleAdmin:
		return r, nil
	default:
		return "", apperr.Invalid("role", "unknown role "+s)
	}
}

type Occupation string

const (
	OccupationStudent       Occupation = "student"
	OccupationDeveloper     Occupation = "developer"
	OccupationDataScientist Occupation = "data_scientist"
	OccupationDBA           Occupation = "dba"
	OccupationPM            Occupation = "pm"
	OccupationUX            Occupation = "ux"
)

func (o Occupation) valid() bool {
	switch o {
	case OccupationStudent, OccupationDeveloper, OccupationDataScientist, OccupationDBA, OccupationPM, OccupationUX:
		return true
	}
	return false
}

type InstructorProfile struct {
	FullTime bool      `json:"full_time"`
	HireDate time.Time `json:"hire_date"`
	Bio      string    `json:"bio,omitempty"`
}

type LearnerProfile struct {
	Occupation         Occupation `json:"occupation"`
	SocialLink         string     `json:"social_link,omitempty"`
	Bio                string     `json:"bio,omitempty"`
	EmailNotifications bool       `json:"email_notifications"`
}

// User is the tagged union of the three roles. Instructor is set only for
// instructors and Learner only for learners; admins carry neither.
type User struct {
	ID         string             `json:"id"`
	Username   string             `json:"username"`
	Role       Role               `json:"role"`
	Instructor *InstructorProfile `json:"instructor,omitempty"`
	Learner    *LearnerProfile    `json:"learner,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// CourseAuthor may create and edit courses.
type CourseAuthor interface {
	AuthorID() string
}

// CourseLearner may enroll in courses and submit exams.
type CourseLearner interface {
	LearnerID() string
}

type author struct{ id string }

func (a author) AuthorID() string { return a.id }

type learner struct{ id string }

func (l learner) LearnerID() string { return l.id }

// AsAuthor returns the authoring capability of instructors and admins.
func (u User) AsAuthor() (CourseAuthor, bool) {
	switch u.Role {
	case RoleInstructor, RoleAdmin:
		return author{id: u.ID}, true
	}
	return nil, false
}

// AsLearner returns the enrolling capability, which only learners have.
func (u User) AsLearner() (CourseLearner, bool) {
	if u.Role == RoleLearner {
		return learner{id: u.ID}, true
	}
	return nil, false
}

// profile is the JSON shape of the users.profile_json column.
type profile struct {
	Instructor *InstructorProfile `json:"instructor,omitempty"`
	Learner    *LearnerProfile    `json:"learner,omitempty"`
}

// normalizeProfiles keeps only the profile matching the role and fills in
// defaults.
func normalizeProfiles(u *User, now time.Time) error {
	switch u.Role {
	case RoleInstructor:
		u.Learner = nil
		if u.Instructor == nil {
			u.Instructor = &InstructorProfile{FullTime: true}
		}
		if u.Instructor.HireDate.IsZero() {
			u.Instructor.HireDate = now
		}
	case RoleLearner:
		u.Instructor = nil
		if u.Learner == nil {
			u.Learner = &LearnerProfile{EmailNotifications: true}
		}
		if u.Learner.Occupation == "" {
			u.Learner.Occupation = OccupationStudent
		}
		if !u.Learner.Occupation.valid() {
			return apperr.Invalid("occupation", "unknown occupation "+string(u.Learner.Occupation))
		}
	default:
		u.Instructor, u.Learner = nil, nil
	}
	return nil
}

package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	authmw "github.com/mind-engage/mindengage-courses/internal/auth/middleware"
	"github.com/mind-engage/mindengage-courses/internal/course"
	"github.com/mind-engage/mindengage-courses/internal/enrollment"
	"github.com/mind-engage/mindengage-courses/internal/exam"
	"github.com/mind-engage/mindengage-courses/internal/rbac"
	"github.com/mind-engage/mindengage-courses/internal/storage"
	"github.com/mind-engage/mindengage-courses/internal/users"
)

// Deps are the collaborators every handler draws from. main builds one
// and passes it to Mount.
type Deps struct {
	Courses     course.Store
	Enrollments enrollment.Store
	Exams       exam.Store
	Users       users.Store
	Blobs       storage.BlobStore
	RBAC        *rbac.Checker
	Auth        *authmw.AuthService
	Log         logrus.FieldLogger

	// DisableLocalLogin leaves /auth/login unmounted.
	DisableLocalLogin bool
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps domain errors to status codes. Unknown errors are logged and
// reported as 500 without detail.
func (d *Deps) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, apperr.ErrInvalidSelection):
		http.Error(w, "invalid submission", http.StatusBadRequest)
	case errors.Is(err, apperr.ErrNotEnrolled):
		http.Error(w, "not enrolled in course", http.StatusForbidden)
	case errors.Is(err, apperr.ErrChoiceLocked):
		http.Error(w, "choice is referenced by a submission", http.StatusConflict)
	case errors.Is(err, apperr.ErrCourseInactive):
		http.Error(w, "course is not accepting enrollments", http.StatusConflict)
	case errors.Is(err, apperr.ErrInvalidCredentials):
		// a wrong current password; the caller's session stays valid, so not 401
		http.Error(w, "invalid credentials", http.StatusBadRequest)
	case apperr.IsValidation(err):
		var ve *apperr.ValidationError
		errors.As(err, &ve)
		http.Error(w, ve.Error(), http.StatusBadRequest)
	default:
		d.Log.WithError(err).WithFields(logrus.Fields{"method": r.Method, "path": r.URL.Path}).Error("request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func currentUser(w http.ResponseWriter, r *http.Request) (users.User, bool) {
	u, ok := authmw.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
	return u, ok
}

// canManage reports whether the caller may edit courseID.
func (d *Deps) canManage(r *http.Request, courseID string) (bool, error) {
	u, _ := authmw.UserFromContext(r.Context())
	teaches, err := d.Courses.IsInstructor(r.Context(), courseID, u.ID)
	if err != nil {
		return false, err
	}
	return d.RBAC.CanManageCourse(r.Context(), teaches), nil
}

// requireManage writes 403 (or the lookup error) and returns false when
// the caller may not edit courseID.
func (d *Deps) requireManage(w http.ResponseWriter, r *http.Request, courseID string) bool {
	ok, err := d.canManage(r, courseID)
	if err != nil {
		d.fail(w, r, err)
		return false
	}
	if !ok {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}

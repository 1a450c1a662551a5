package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	"github.com/mind-engage/mindengage-courses/internal/enrollment"
	"github.com/mind-engage/mindengage-courses/internal/exam"
)

type enrollmentView struct {
	enrollment.Enrollment
	Progress int `json:"progress"`
}

// GET /courses/{courseID}/enrollment
func EnrollmentStatusHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		e, err := d.Enrollments.GetForUserCourse(r.Context(), u.ID, chi.URLParam(r, "courseID"))
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{"enrolled": false})
			return
		}
		if err != nil {
			d.fail(w, r, err)
			return
		}
		p, err := d.Enrollments.Progress(r.Context(), e.ID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"enrolled": true, "enrollment": enrollmentView{e, p}})
	}
}

// POST /courses/{courseID}/enroll  { "mode": "audit" }  (body optional)
// 201 when a new enrollment was made, 200 when it already existed.
func EnrollHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		l, ok := u.AsLearner()
		if !ok {
			http.Error(w, "only learners can enroll", http.StatusForbidden)
			return
		}
		var req struct {
			Mode string `json:"mode"`
		}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
		}
		mode, err := enrollment.ParseMode(req.Mode)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		e, created, err := d.Enrollments.EnrollAs(r.Context(), l.LearnerID(), chi.URLParam(r, "courseID"), mode)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, e)
	}
}

// enrollmentFor resolves the caller's enrollment in the route's course,
// mapping a missing one to ErrNotEnrolled.
func (d *Deps) enrollmentFor(r *http.Request, userID string) (enrollment.Enrollment, error) {
	e, err := d.Enrollments.GetForUserCourse(r.Context(), userID, chi.URLParam(r, "courseID"))
	if errors.Is(err, apperr.ErrNotFound) {
		return e, apperr.ErrNotEnrolled
	}
	return e, err
}

// POST /courses/{courseID}/complete
// Records the most recent submission's percentage as the final grade.
func CompleteEnrollmentHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		e, err := d.enrollmentFor(r, u.ID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		latest, err := d.Exams.ListSubmissions(r.Context(), exam.ListOpts{EnrollmentID: e.ID, Limit: 1})
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if len(latest) == 0 {
			d.fail(w, r, apperr.Invalid("submission", "submit the exam before completing the course"))
			return
		}
		res, err := d.Exams.Results(r.Context(), latest[0].ID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if err := d.Enrollments.Complete(r.Context(), e.ID, res.Percentage); err != nil {
			d.fail(w, r, err)
			return
		}
		e, err = d.Enrollments.Get(r.Context(), e.ID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, enrollmentView{e, 100})
	}
}

// POST /courses/{courseID}/rating  { "rating": 4, "review": "..." }
func RateCourseHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req struct {
			Rating float64 `json:"rating"`
			Review string  `json:"review"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		e, err := d.enrollmentFor(r, u.ID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if err := d.Enrollments.Rate(r.Context(), e.ID, req.Rating, strings.TrimSpace(req.Review)); err != nil {
			d.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /me/enrollments
func MyEnrollmentsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		list, err := d.Enrollments.ListForUser(r.Context(), u.ID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		out := make([]enrollmentView, 0, len(list))
		for _, e := range list {
			p, err := d.Enrollments.Progress(r.Context(), e.ID)
			if err != nil {
				d.fail(w, r, err)
				return
			}
			out = append(out, enrollmentView{e, p})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /courses/{courseID}/submissions
// Accepts {"choice_ids": [...]} or an HTML form with one choice_<id> field
// per selected choice.
func CreateSubmissionHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		var ids []string
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var req struct {
				ChoiceIDs []string `json:"choice_ids"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
			ids = req.ChoiceIDs
		} else {
			if err := r.ParseForm(); err != nil {
				http.Error(w, "bad form", http.StatusBadRequest)
				return
			}
			ids = exam.ExtractChoiceIDs(r.PostForm)
		}
		e, err := d.enrollmentFor(r, u.ID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		sub, err := d.Exams.CreateSubmission(r.Context(), e.ID, ids)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	}
}

package http

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-courses/internal/exam"
	"github.com/mind-engage/mindengage-courses/internal/rbac"
	"github.com/mind-engage/mindengage-courses/internal/report"
)

// GET /submissions/{submissionID}/results
// Visible to the submitting learner and to anyone managing the course.
func ResultsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		sub, err := d.Exams.GetSubmission(r.Context(), chi.URLParam(r, "submissionID"))
		if err != nil {
			d.fail(w, r, err)
			return
		}
		own := sub.UserID == u.ID && d.RBAC.Allowed(r.Context(), rbac.PermSubmissionViewOwn)
		if !own {
			if !d.RBAC.Allowed(r.Context(), rbac.PermSubmissionViewAll) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if !d.requireManage(w, r, sub.CourseID) {
				return
			}
		}
		res, err := d.Exams.Results(r.Context(), sub.ID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// GET /courses/{courseID}/submissions?limit=&offset=
func ListCourseSubmissionsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if !d.requireManage(w, r, courseID) {
			return
		}
		q := r.URL.Query()
		list, err := d.Exams.ListSubmissions(r.Context(), exam.ListOpts{
			CourseID: courseID,
			UserID:   q.Get("user_id"),
			Limit:    parseIntDefault(q.Get("limit"), 50),
			Offset:   parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /courses/{courseID}/analytics
func CourseAnalyticsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if !d.requireManage(w, r, courseID) {
			return
		}
		stats, err := d.Exams.CourseAnalytics(r.Context(), courseID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func csvHeaders(w http.ResponseWriter, name string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

// GET /courses/{courseID}/submissions.csv
func SubmissionsCSVHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if !d.requireManage(w, r, courseID) {
			return
		}
		rows, err := d.Exams.CourseResults(r.Context(), courseID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		csvHeaders(w, courseID+"-submissions.csv")
		if err := report.WriteSubmissionsCSV(w, rows); err != nil {
			d.Log.WithError(err).WithField("course_id", courseID).Warn("submissions export interrupted")
		}
	}
}

// GET /courses/{courseID}/analytics.csv
func AnalyticsCSVHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if !d.requireManage(w, r, courseID) {
			return
		}
		stats, err := d.Exams.CourseAnalytics(r.Context(), courseID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		csvHeaders(w, courseID+"-analytics.csv")
		if err := report.WriteQuestionStatsCSV(w, stats); err != nil {
			d.Log.WithError(err).WithField("course_id", courseID).Warn("analytics export interrupted")
		}
	}
}

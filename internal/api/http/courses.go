package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-courses/internal/course"
	"github.com/mind-engage/mindengage-courses/internal/rbac"
)

// Handlers only; routes live in router.go.

type choiceView struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect *bool  `json:"is_correct,omitempty"`
}

type questionView struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Grade   int          `json:"grade"`
	Choices []choiceView `json:"choices"`
}

type courseView struct {
	course.Course
	Questions   []questionView `json:"questions"`
	TotalPoints int            `json:"total_points"`
	Issues      []course.Issue `json:"issues,omitempty"`
}

// viewCourse renders c; the answer key and authoring issues are included
// only for callers who manage the course.
func viewCourse(c course.Course, manager bool) courseView {
	v := courseView{Course: c, TotalPoints: c.TotalPoints(), Questions: make([]questionView, 0, len(c.Questions))}
	for _, q := range c.Questions {
		qv := questionView{ID: q.ID, Text: q.Text, Grade: q.Grade, Choices: make([]choiceView, 0, len(q.Choices))}
		for _, ch := range q.Choices {
			cv := choiceView{ID: ch.ID, Text: ch.Text}
			if manager {
				ok := ch.IsCorrect
				cv.IsCorrect = &ok
			}
			qv.Choices = append(qv.Choices, cv)
		}
		v.Questions = append(v.Questions, qv)
	}
	if manager {
		v.Issues = course.ValidateCourse(c)
	}
	return v
}

// POST /courses
func CreateCourseHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		author, ok := u.AsAuthor()
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		var req course.NewCourse
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		c, err := d.Courses.CreateCourse(r.Context(), req, author.AuthorID())
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, viewCourse(c, true))
	}
}

// POST /courses/import  (JSON course document)
func ImportCourseHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		author, ok := u.AsAuthor()
		if !ok {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, 2<<20))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}
		c, _, err := d.Courses.Import(r.Context(), raw, author.AuthorID())
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, viewCourse(c, true))
	}
}

// GET /courses?q=&instructor_id=&limit=&offset=
func ListCoursesHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		opts := course.ListOpts{
			Q:            strings.TrimSpace(q.Get("q")),
			InstructorID: strings.TrimSpace(q.Get("instructor_id")),
			Limit:        parseIntDefault(q.Get("limit"), 50),
			Offset:       parseIntDefault(q.Get("offset"), 0),
			// only authors see inactive courses
			ActiveOnly: !d.RBAC.Allowed(r.Context(), rbac.PermCourseCreate),
		}
		list, err := d.Courses.ListCourses(r.Context(), opts)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /courses/{courseID}
func GetCourseHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		c, err := d.Courses.GetCourse(r.Context(), courseID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		manager, err := d.canManage(r, courseID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if !c.IsActive && !manager {
			u, _ := currentUser(w, r)
			enrolled, err := d.Enrollments.IsEnrolled(r.Context(), u.ID, courseID)
			if err != nil {
				d.fail(w, r, err)
				return
			}
			if !enrolled {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
		}
		writeJSON(w, http.StatusOK, viewCourse(c, manager))
	}
}

// DELETE /courses/{courseID}
func DeleteCourseHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if !d.requireManage(w, r, courseID) {
			return
		}
		if !d.RBAC.Any(rbac.RoleFromContext(r.Context()), rbac.PermCourseDeleteOwn, rbac.PermCourseEditAny) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if err := d.Courses.DeleteCourse(r.Context(), courseID); err != nil {
			d.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /courses/{courseID}/instructors  { "instructor_id": "..." }
func AssignInstructorHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if !d.requireManage(w, r, courseID) {
			return
		}
		var req struct {
			InstructorID string `json:"instructor_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InstructorID == "" {
			http.Error(w, "instructor_id required", http.StatusBadRequest)
			return
		}
		target, err := d.Users.Get(r.Context(), req.InstructorID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if _, ok := target.AsAuthor(); !ok {
			http.Error(w, "user cannot author courses", http.StatusBadRequest)
			return
		}
		if err := d.Courses.AssignInstructor(r.Context(), courseID, target.ID); err != nil {
			d.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

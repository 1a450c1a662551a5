package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/mindengage-courses/internal/course"
)

// POST /courses/{courseID}/questions  { "text": "...", "grade": 2 }
func AddQuestionHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if !d.requireManage(w, r, courseID) {
			return
		}
		var req struct {
			Text  string `json:"text"`
			Grade int    `json:"grade"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		q, err := d.Courses.AddQuestion(r.Context(), courseID, req.Text, req.Grade)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// PATCH /questions/{questionID}  { "grade": 5 }
func UpdateQuestionGradeHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := d.Courses.GetQuestion(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if !d.requireManage(w, r, q.CourseID) {
			return
		}
		var req struct {
			Grade int `json:"grade"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if err := d.Courses.UpdateQuestionGrade(r.Context(), q.ID, req.Grade); err != nil {
			d.fail(w, r, err)
			return
		}
		q.Grade = req.Grade
		writeJSON(w, http.StatusOK, q)
	}
}

// POST /questions/{questionID}/choices  { "text": "...", "is_correct": true }
func AddChoiceHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := d.Courses.GetQuestion(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if !d.requireManage(w, r, q.CourseID) {
			return
		}
		var req struct {
			Text      string `json:"text"`
			IsCorrect bool   `json:"is_correct"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		c, err := d.Courses.AddChoice(r.Context(), q.ID, req.Text, req.IsCorrect)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

// PATCH /choices/{choiceID}  { "text": "...", "is_correct": false }
func UpdateChoiceHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		choiceID := chi.URLParam(r, "choiceID")
		courseID, err := d.Courses.ChoiceCourseID(r.Context(), choiceID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if !d.requireManage(w, r, courseID) {
			return
		}
		var patch course.ChoicePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		c, err := d.Courses.UpdateChoice(r.Context(), choiceID, patch)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

// DELETE /choices/{choiceID}
func DeleteChoiceHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		choiceID := chi.URLParam(r, "choiceID")
		courseID, err := d.Courses.ChoiceCourseID(r.Context(), choiceID)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		if !d.requireManage(w, r, courseID) {
			return
		}
		if err := d.Courses.DeleteChoice(r.Context(), choiceID); err != nil {
			d.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Package report renders instructor exports.
package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-courses/internal/exam"
	"github.com/mind-engage/mindengage-courses/internal/grading"
)

var submissionHeader = []string{"submission_id", "username", "user_id", "course", "submitted_at", "earned", "possible", "percentage", "passed"}

// WriteSubmissionsCSV writes one row per scored submission.
func WriteSubmissionsCSV(w io.Writer, rows []exam.Results) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(submissionHeader); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, r := range rows {
		rec := []string{
			r.Submission.ID,
			r.Submission.Username,
			r.Submission.UserID,
			r.CourseName,
			r.Submission.CreatedAt.UTC().Format(time.RFC3339),
			strconv.Itoa(r.Earned),
			strconv.Itoa(r.Possible),
			strconv.FormatFloat(r.Percentage, 'f', 1, 64),
			strconv.FormatBool(r.Passed),
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

var statsHeader = []string{"question_id", "question", "grade", "attempts", "correct", "success_rate", "difficulty"}

func WriteQuestionStatsCSV(w io.Writer, stats []grading.Stats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(statsHeader); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, s := range stats {
		rec := []string{
			s.QuestionID,
			s.Text,
			strconv.Itoa(s.Grade),
			strconv.Itoa(s.Attempts),
			strconv.Itoa(s.Correct),
			strconv.FormatFloat(s.SuccessRate, 'f', 1, 64),
			string(s.Difficulty),
		}
		if err := cw.Write(rec); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

package course_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	"github.com/mind-engage/mindengage-courses/internal/course"
	"github.com/mind-engage/mindengage-courses/internal/db/dbtest"
	"github.com/mind-engage/mindengage-courses/internal/logging"
	syncx "github.com/mind-engage/mindengage-courses/internal/sync"
)

func newStore(t *testing.T) (*course.SQLStore, *sql.DB) {
	t.Helper()
	dbh := dbtest.Open(t)
	return course.NewSQLStore(dbh, syncx.NewEventRepo("test"), logging.Discard()), dbh
}

func seedCourse(t *testing.T, s *course.SQLStore) (course.Course, []course.Question) {
	t.Helper()
	ctx := context.Background()
	c, err := s.CreateCourse(ctx, course.NewCourse{Name: "Go basics"}, "u-prof")
	require.NoError(t, err)

	q1, err := s.AddQuestion(ctx, c.ID, "Pick the keywords", 3)
	require.NoError(t, err)
	for _, ch := range []struct {
		text string
		ok   bool
	}{{"func", true}, {"def", false}, {"go", true}} {
		_, err := s.AddChoice(ctx, q1.ID, ch.text, ch.ok)
		require.NoError(t, err)
	}
	q2, err := s.AddQuestion(ctx, c.ID, "Zero value of int", 2)
	require.NoError(t, err)
	_, err = s.AddChoice(ctx, q2.ID, "0", true)
	require.NoError(t, err)
	_, err = s.AddChoice(ctx, q2.ID, "nil", false)
	require.NoError(t, err)

	got, err := s.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	return got, got.Questions
}

func TestCreateAndGetCourse(t *testing.T) {
	s, _ := newStore(t)
	c, qs := seedCourse(t, s)

	assert.Equal(t, "Go basics", c.Name)
	assert.True(t, c.IsActive)
	require.Len(t, qs, 2)
	assert.Equal(t, "Pick the keywords", qs[0].Text)
	require.Len(t, qs[0].Choices, 3)
	assert.Equal(t, []string{"func", "def", "go"},
		[]string{qs[0].Choices[0].Text, qs[0].Choices[1].Text, qs[0].Choices[2].Text})
	assert.Len(t, qs[0].CorrectIDs(), 2)
	assert.Equal(t, 5, c.TotalPoints())

	ok, err := s.IsInstructor(context.Background(), c.ID, "u-prof")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetCourse_NotFound(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.GetCourse(context.Background(), "c-missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCreateCourse_RejectsBadName(t *testing.T) {
	s, _ := newStore(t)
	_, err := s.CreateCourse(context.Background(), course.NewCourse{Name: "  "}, "u1")
	assert.True(t, apperr.IsValidation(err))
	_, err = s.CreateCourse(context.Background(), course.NewCourse{Name: "a name that is far too long for a course"}, "u1")
	assert.True(t, apperr.IsValidation(err))
}

func TestAddQuestion_Validation(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	c, err := s.CreateCourse(ctx, course.NewCourse{Name: "C"}, "u1")
	require.NoError(t, err)

	_, err = s.AddQuestion(ctx, c.ID, "zero", 0)
	assert.True(t, apperr.IsValidation(err))
	_, err = s.AddQuestion(ctx, c.ID, "", 1)
	assert.True(t, apperr.IsValidation(err))
	_, err = s.AddQuestion(ctx, "c-missing", "q", 1)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = s.AddChoice(ctx, "q-missing", "x", true)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestUpdateQuestionGrade(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	_, qs := seedCourse(t, s)

	require.NoError(t, s.UpdateQuestionGrade(ctx, qs[0].ID, 10))
	q, err := s.GetQuestion(ctx, qs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 10, q.Grade)

	assert.True(t, apperr.IsValidation(s.UpdateQuestionGrade(ctx, qs[0].ID, -2)))
	assert.True(t, errors.Is(s.UpdateQuestionGrade(ctx, "q-missing", 2), apperr.ErrNotFound))
}

// submitRaw links a submission to choiceIDs without going through the
// exam package.
func submitRaw(t *testing.T, dbh *sql.DB, courseID string, choiceIDs ...string) {
	t.Helper()
	_, err := dbh.Exec(`INSERT INTO enrollments (id, user_id, course_id, date_enrolled) VALUES ('e-1','u-learner',$1,0)`, courseID)
	require.NoError(t, err)
	_, err = dbh.Exec(`INSERT INTO submissions (id, enrollment_id, created_at) VALUES ('s-1','e-1',0)`)
	require.NoError(t, err)
	for _, id := range choiceIDs {
		_, err = dbh.Exec(`INSERT INTO submission_choices (submission_id, choice_id) VALUES ('s-1',$1)`, id)
		require.NoError(t, err)
	}
}

func TestChoiceLockedOnceSubmitted(t *testing.T) {
	s, dbh := newStore(t)
	ctx := context.Background()
	c, qs := seedCourse(t, s)
	used := qs[1].Choices[0].ID
	free := qs[1].Choices[1].ID
	submitRaw(t, dbh, c.ID, used)

	text := "zero"
	_, err := s.UpdateChoice(ctx, used, course.ChoicePatch{Text: &text})
	assert.True(t, errors.Is(err, apperr.ErrChoiceLocked))
	assert.True(t, errors.Is(s.DeleteChoice(ctx, used), apperr.ErrChoiceLocked))

	yes := true
	ch, err := s.UpdateChoice(ctx, free, course.ChoicePatch{IsCorrect: &yes})
	require.NoError(t, err)
	assert.True(t, ch.IsCorrect)
	assert.Equal(t, "nil", ch.Text)
	require.NoError(t, s.DeleteChoice(ctx, free))

	q, err := s.GetQuestion(ctx, qs[1].ID)
	require.NoError(t, err)
	require.Len(t, q.Choices, 1)
	assert.Equal(t, "0", q.Choices[0].Text)

	assert.True(t, errors.Is(s.DeleteChoice(ctx, "ch-missing"), apperr.ErrNotFound))
}

func TestDeleteCourse_Cascades(t *testing.T) {
	s, dbh := newStore(t)
	ctx := context.Background()
	c, qs := seedCourse(t, s)
	submitRaw(t, dbh, c.ID, qs[0].Choices[0].ID)

	require.NoError(t, s.DeleteCourse(ctx, c.ID))

	for _, table := range []string{"questions", "choices", "enrollments", "submissions", "submission_choices", "course_instructors"} {
		var n int
		require.NoError(t, dbh.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}
	assert.True(t, errors.Is(s.DeleteCourse(ctx, c.ID), apperr.ErrNotFound))
}

func TestChoiceCourseID(t *testing.T) {
	s, _ := newStore(t)
	c, qs := seedCourse(t, s)
	got, err := s.ChoiceCourseID(context.Background(), qs[0].Choices[1].ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got)
}

func TestListCourses(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	_, err := s.CreateCourse(ctx, course.NewCourse{Name: "Intro to Go"}, "u-a")
	require.NoError(t, err)
	_, err = s.CreateCourse(ctx, course.NewCourse{Name: "Rust", Inactive: true}, "u-b")
	require.NoError(t, err)
	other, err := s.CreateCourse(ctx, course.NewCourse{Name: "Advanced Go"}, "u-b")
	require.NoError(t, err)

	all, err := s.ListCourses(ctx, course.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := s.ListCourses(ctx, course.ListOpts{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	gos, err := s.ListCourses(ctx, course.ListOpts{Q: "go", InstructorID: "u-b"})
	require.NoError(t, err)
	require.Len(t, gos, 1)
	assert.Equal(t, other.ID, gos[0].ID)

	page, err := s.ListCourses(ctx, course.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestInstructorLearnerCount(t *testing.T) {
	s, dbh := newStore(t)
	ctx := context.Background()
	a, err := s.CreateCourse(ctx, course.NewCourse{Name: "A"}, "u-t")
	require.NoError(t, err)
	b, err := s.CreateCourse(ctx, course.NewCourse{Name: "B"}, "u-t")
	require.NoError(t, err)
	c, err := s.CreateCourse(ctx, course.NewCourse{Name: "C"}, "u-other")
	require.NoError(t, err)

	enroll := func(id, user, courseID string) {
		_, err := dbh.Exec(`INSERT INTO enrollments (id, user_id, course_id, date_enrolled) VALUES ($1,$2,$3,0)`, id, user, courseID)
		require.NoError(t, err)
	}
	enroll("e1", "u1", a.ID)
	enroll("e2", "u1", b.ID)
	enroll("e3", "u2", b.ID)
	enroll("e4", "u3", c.ID)

	n, err := s.InstructorLearnerCount(ctx, "u-t")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.AssignInstructor(ctx, c.ID, "u-t"))
	n, err = s.InstructorLearnerCount(ctx, "u-t")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestSetImage(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	c, err := s.CreateCourse(ctx, course.NewCourse{Name: "A"}, "u-t")
	require.NoError(t, err)
	require.NoError(t, s.SetImage(ctx, c.ID, "courses/a.png"))
	got, err := s.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "courses/a.png", got.ImageKey)
	assert.True(t, errors.Is(s.SetImage(ctx, "c-missing", "k"), apperr.ErrNotFound))
}

func TestImport(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	doc := `{
	  "name": "Imported",
	  "questions": [
	    {"text": "Q1", "grade": 2, "choices": [{"text": "yes", "is_correct": true}, {"text": "no"}]},
	    {"text": "Q2", "grade": 1, "choices": [{"text": "a"}, {"text": "b"}]}
	  ]
	}`
	c, issues, err := s.Import(ctx, []byte(doc), "u-t")
	require.NoError(t, err)
	require.Len(t, c.Questions, 2)
	assert.Equal(t, 3, c.TotalPoints())
	require.Len(t, issues, 1)
	assert.Equal(t, course.IssueNoCorrectChoice, issues[0].Code)
	assert.Equal(t, c.Questions[1].ID, issues[0].QuestionID)

	got, err := s.GetCourse(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, got.Questions, 2)
}

func TestImport_SchemaErrorsWriteNothing(t *testing.T) {
	s, dbh := newStore(t)
	ctx := context.Background()
	for _, doc := range []string{
		`{"name": "X", "questions": [{"text": "Q", "grade": 0, "choices": [{"text": "a"}]}]}`,
		`{"questions": []}`,
		`{"name": "X", "questions": [], "extra": 1}`,
		`not json`,
	} {
		_, _, err := s.Import(ctx, []byte(doc), "u-t")
		assert.True(t, apperr.IsValidation(err), doc)
	}
	var n int
	require.NoError(t, dbh.QueryRow(`SELECT COUNT(*) FROM courses`).Scan(&n))
	assert.Zero(t, n)
}

func TestValidate(t *testing.T) {
	q := course.Question{ID: "q1"}
	codes := func(is []course.Issue) []string {
		var out []string
		for _, i := range is {
			out = append(out, i.Code)
		}
		return out
	}
	assert.Equal(t, []string{course.IssueNoChoices, course.IssueNoCorrectChoice}, codes(course.Validate(q)))
	q.Choices = []course.Choice{{ID: "a"}}
	assert.Equal(t, []string{course.IssueNoCorrectChoice}, codes(course.Validate(q)))
	q.Choices[0].IsCorrect = true
	assert.Empty(t, course.Validate(q))
}

func TestAddChoice_WarnsWhileQuestionHasNoKey(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	s := course.NewSQLStore(dbtest.Open(t), syncx.NewEventRepo("test"), logger)
	ctx := context.Background()

	c, err := s.CreateCourse(ctx, course.NewCourse{Name: "Go basics"}, "u-prof")
	require.NoError(t, err)
	q, err := s.AddQuestion(ctx, c.ID, "Pick one", 1)
	require.NoError(t, err)
	hook.Reset()

	_, err = s.AddChoice(ctx, q.ID, "wrong", false)
	require.NoError(t, err)
	warned := func() bool {
		for _, e := range hook.AllEntries() {
			if e.Level == logrus.WarnLevel && e.Data["code"] == course.IssueNoCorrectChoice {
				return true
			}
		}
		return false
	}
	assert.True(t, warned())

	hook.Reset()
	_, err = s.AddChoice(ctx, q.ID, "right", true)
	require.NoError(t, err)
	assert.False(t, warned())
}

package course

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	"github.com/mind-engage/mindengage-courses/internal/db"
	syncx "github.com/mind-engage/mindengage-courses/internal/sync"
)

type NewCourse struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	PubDate     *time.Time `json:"pub_date,omitempty"`
	Inactive    bool       `json:"inactive,omitempty"`
}

type ListOpts struct {
	Q            string
	InstructorID string
	ActiveOnly   bool
	Limit        int
	Offset       int
}

// ChoicePatch carries the editable fields of a choice; nil means unchanged.
type ChoicePatch struct {
	Text      *string `json:"text,omitempty"`
	IsCorrect *bool   `json:"is_correct,omitempty"`
}

type Store interface {
	CreateCourse(ctx context.Context, in NewCourse, createdBy string) (Course, error)
	GetCourse(ctx context.Context, id string) (Course, error)
	ListCourses(ctx context.Context, opts ListOpts) ([]Course, error)
	DeleteCourse(ctx context.Context, id string) error
	Import(ctx context.Context, raw []byte, createdBy string) (Course, []Issue, error)

	AddQuestion(ctx context.Context, courseID, text string, grade int) (Question, error)
	GetQuestion(ctx context.Context, id string) (Question, error)
	UpdateQuestionGrade(ctx context.Context, questionID string, grade int) error
	AddChoice(ctx context.Context, questionID, text string, isCorrect bool) (Choice, error)
	UpdateChoice(ctx context.Context, choiceID string, patch ChoicePatch) (Choice, error)
	DeleteChoice(ctx context.Context, choiceID string) error
	ChoiceCourseID(ctx context.Context, choiceID string) (string, error)

	AssignInstructor(ctx context.Context, courseID, instructorID string) error
	IsInstructor(ctx context.Context, courseID, userID string) (bool, error)
	InstructorLearnerCount(ctx context.Context, instructorID string) (int, error)
	SetImage(ctx context.Context, courseID, key string) error
}

type SQLStore struct {
	db     *sql.DB
	driver db.Driver
	events *syncx.EventRepo
	log    logrus.FieldLogger
}

type Option func(*SQLStore)

// WithDriver tells the store which SQL dialect it talks to; the default
// is sqlite.
func WithDriver(d db.Driver) Option { return func(s *SQLStore) { s.driver = d } }

func NewSQLStore(dbh *sql.DB, events *syncx.EventRepo, log logrus.FieldLogger, opts ...Option) *SQLStore {
	s := &SQLStore{db: dbh, driver: db.DriverSQLite, events: events, log: log.WithField("component", "course-store")}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SQLStore) CreateCourse(ctx context.Context, in NewCourse, createdBy string) (Course, error) {
	if err := checkCourseInput(in.Name); err != nil {
		return Course{}, err
	}
	c := Course{
		ID:          "c-" + uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		PubDate:     in.PubDate,
		IsActive:    !in.Inactive,
		CreatedBy:   createdBy,
		CreatedAt:   time.Unix(time.Now().Unix(), 0).UTC(),
	}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.insertCourse(ctx, tx, c)
	})
	if err != nil {
		return Course{}, err
	}
	s.log.WithFields(logrus.Fields{"course_id": c.ID, "created_by": createdBy}).Info("course created")
	return c, nil
}

func (s *SQLStore) insertCourse(ctx context.Context, tx *sql.Tx, c Course) error {
	var pub sql.NullInt64
	if c.PubDate != nil {
		pub = sql.NullInt64{Int64: c.PubDate.Unix(), Valid: true}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO courses (id, name, description, pub_date, is_active, created_by, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.Name, c.Description, pub, c.IsActive, c.CreatedBy, c.CreatedAt.Unix()); err != nil {
		return errors.Wrap(err, "insert course")
	}
	if c.CreatedBy != "" {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO course_instructors (course_id, instructor_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			c.ID, c.CreatedBy); err != nil {
			return errors.Wrap(err, "insert course instructor")
		}
	}
	return s.events.Append(ctx, tx, syncx.EventCourseCreated, c.ID, map[string]string{"name": c.Name, "created_by": c.CreatedBy})
}

const courseColumns = `id, name, description, image_key, pub_date, is_active, total_enrollment, average_rating, created_by, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCourse(r rowScanner) (Course, error) {
	var (
		c       Course
		pub     sql.NullInt64
		created int64
	)
	if err := r.Scan(&c.ID, &c.Name, &c.Description, &c.ImageKey, &pub, &c.IsActive,
		&c.TotalEnrollment, &c.AverageRating, &c.CreatedBy, &created); err != nil {
		return Course{}, err
	}
	if pub.Valid {
		t := time.Unix(pub.Int64, 0).UTC()
		c.PubDate = &t
	}
	c.CreatedAt = time.Unix(created, 0).UTC()
	return c, nil
}

// GetCourse returns the course with its questions and choices.
func (s *SQLStore) GetCourse(ctx context.Context, id string) (Course, error) {
	c, err := scanCourse(s.db.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Course{}, errors.Wrapf(apperr.ErrNotFound, "course %s", id)
		}
		return Course{}, errors.Wrap(err, "get course")
	}
	c.Questions, err = LoadQuestions(ctx, s.db, id)
	if err != nil {
		return Course{}, err
	}
	return c, nil
}

// LoadQuestions reads the current questions of a course with their choices,
// in authoring order. It runs on q so callers can use it inside a
// transaction.
func LoadQuestions(ctx context.Context, q db.DBTX, courseID string) ([]Question, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, course_id, text, grade FROM questions WHERE course_id=$1 ORDER BY position, id`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "load questions")
	}
	out := []Question{}
	index := map[string]int{}
	for rows.Next() {
		var qu Question
		if err := rows.Scan(&qu.ID, &qu.CourseID, &qu.Text, &qu.Grade); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan question")
		}
		qu.Choices = []Choice{}
		index[qu.ID] = len(out)
		out = append(out, qu)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	crows, err := q.QueryContext(ctx, `
		SELECT c.id, c.question_id, c.text, c.is_correct
		  FROM choices c
		  JOIN questions q ON q.id = c.question_id
		 WHERE q.course_id=$1
		 ORDER BY c.position, c.id`, courseID)
	if err != nil {
		return nil, errors.Wrap(err, "load choices")
	}
	defer crows.Close()
	for crows.Next() {
		var c Choice
		if err := crows.Scan(&c.ID, &c.QuestionID, &c.Text, &c.IsCorrect); err != nil {
			return nil, errors.Wrap(err, "scan choice")
		}
		if i, ok := index[c.QuestionID]; ok {
			out[i].Choices = append(out[i].Choices, c)
		}
	}
	return out, crows.Err()
}

func (s *SQLStore) ListCourses(ctx context.Context, opts ListOpts) ([]Course, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return db.Placeholders(len(args), 1)
	}
	if q := strings.TrimSpace(opts.Q); q != "" {
		where = append(where, `LOWER(name) LIKE '%' || LOWER(`+arg(q)+`) || '%'`)
	}
	if opts.InstructorID != "" {
		where = append(where, `id IN (SELECT course_id FROM course_instructors WHERE instructor_id=`+arg(opts.InstructorID)+`)`)
	}
	if opts.ActiveOnly {
		where = append(where, `is_active=`+arg(true))
	}
	sqlStr := `SELECT ` + courseColumns + ` FROM courses`
	if len(where) > 0 {
		sqlStr += ` WHERE ` + strings.Join(where, ` AND `)
	}
	sqlStr += ` ORDER BY created_at DESC, id LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list courses")
	}
	defer rows.Close()
	out := []Course{}
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan course")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCourse removes the course; questions, choices, enrollments and
// submissions go with it through the foreign keys.
func (s *SQLStore) DeleteCourse(ctx context.Context, id string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE id=$1`, id)
		if err != nil {
			return errors.Wrap(err, "delete course")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.Wrapf(apperr.ErrNotFound, "course %s", id)
		}
		return s.events.Append(ctx, tx, syncx.EventCourseDeleted, id, nil)
	})
}

func (s *SQLStore) AddQuestion(ctx context.Context, courseID, text string, grade int) (Question, error) {
	if err := checkQuestionInput(text, grade); err != nil {
		return Question{}, err
	}
	q := Question{ID: "q-" + uuid.NewString(), CourseID: courseID, Text: strings.TrimSpace(text), Grade: grade, Choices: []Choice{}}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, `SELECT 1 FROM courses WHERE id=$1`, courseID, "course"); err != nil {
			return err
		}
		return insertQuestion(ctx, tx, q)
	})
	if err != nil {
		return Question{}, err
	}
	return q, nil
}

func insertQuestion(ctx context.Context, tx *sql.Tx, q Question) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO questions (id, course_id, text, grade, position, created_at)
		 VALUES ($1,$2,$3,$4,(SELECT COALESCE(MAX(position),0)+1 FROM questions WHERE course_id=$2),$5)`,
		q.ID, q.CourseID, q.Text, q.Grade, time.Now().Unix())
	return errors.Wrap(err, "insert question")
}

func insertChoice(ctx context.Context, tx *sql.Tx, c Choice) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO choices (id, question_id, text, is_correct, position, created_at)
		 VALUES ($1,$2,$3,$4,(SELECT COALESCE(MAX(position),0)+1 FROM choices WHERE question_id=$2),$5)`,
		c.ID, c.QuestionID, c.Text, c.IsCorrect, time.Now().Unix())
	return errors.Wrap(err, "insert choice")
}

func (s *SQLStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	var q Question
	err := s.db.QueryRowContext(ctx, `SELECT id, course_id, text, grade FROM questions WHERE id=$1`, id).
		Scan(&q.ID, &q.CourseID, &q.Text, &q.Grade)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Question{}, errors.Wrapf(apperr.ErrNotFound, "question %s", id)
		}
		return Question{}, errors.Wrap(err, "get question")
	}
	q.Choices, err = loadChoices(ctx, s.db, id)
	return q, err
}

func loadChoices(ctx context.Context, q db.DBTX, questionID string) ([]Choice, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, question_id, text, is_correct FROM choices WHERE question_id=$1 ORDER BY position, id`, questionID)
	if err != nil {
		return nil, errors.Wrap(err, "load choices")
	}
	defer rows.Close()
	out := []Choice{}
	for rows.Next() {
		var c Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Text, &c.IsCorrect); err != nil {
			return nil, errors.Wrap(err, "scan choice")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateQuestionGrade changes the point value. Scores are recomputed on
// read, so existing submissions pick up the new grade.
func (s *SQLStore) UpdateQuestionGrade(ctx context.Context, questionID string, grade int) error {
	if grade <= 0 {
		return apperr.Invalid("grade", "must be a positive integer")
	}
	res, err := s.db.ExecContext(ctx, `UPDATE questions SET grade=$1 WHERE id=$2`, grade, questionID)
	if err != nil {
		return errors.Wrap(err, "update question grade")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(apperr.ErrNotFound, "question %s", questionID)
	}
	return nil
}

func (s *SQLStore) AddChoice(ctx context.Context, questionID, text string, isCorrect bool) (Choice, error) {
	if err := checkChoiceInput(text); err != nil {
		return Choice{}, err
	}
	c := Choice{ID: "ch-" + uuid.NewString(), QuestionID: questionID, Text: strings.TrimSpace(text), IsCorrect: isCorrect}
	var issues []Issue
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, `SELECT 1 FROM questions WHERE id=$1`, questionID, "question"); err != nil {
			return err
		}
		if err := insertChoice(ctx, tx, c); err != nil {
			return err
		}
		var err error
		issues, err = questionIssues(ctx, tx, questionID)
		return err
	})
	if err != nil {
		return Choice{}, err
	}
	s.warnIssues(issues)
	return c, nil
}

// UpdateChoice edits a choice that no submission references yet.
func (s *SQLStore) UpdateChoice(ctx context.Context, choiceID string, patch ChoicePatch) (Choice, error) {
	if patch.Text != nil {
		if err := checkChoiceInput(*patch.Text); err != nil {
			return Choice{}, err
		}
	}
	var (
		c      Choice
		issues []Issue
	)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if c, err = s.lockedChoice(ctx, tx, choiceID); err != nil {
			return err
		}
		if patch.Text != nil {
			c.Text = strings.TrimSpace(*patch.Text)
		}
		if patch.IsCorrect != nil {
			c.IsCorrect = *patch.IsCorrect
		}
		if _, err := tx.ExecContext(ctx, `UPDATE choices SET text=$1, is_correct=$2 WHERE id=$3`, c.Text, c.IsCorrect, c.ID); err != nil {
			return errors.Wrap(err, "update choice")
		}
		issues, err = questionIssues(ctx, tx, c.QuestionID)
		return err
	})
	if err != nil {
		return Choice{}, err
	}
	s.warnIssues(issues)
	return c, nil
}

func (s *SQLStore) DeleteChoice(ctx context.Context, choiceID string) error {
	var issues []Issue
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		c, err := s.lockedChoice(ctx, tx, choiceID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM choices WHERE id=$1`, c.ID); err != nil {
			return errors.Wrap(err, "delete choice")
		}
		issues, err = questionIssues(ctx, tx, c.QuestionID)
		return err
	})
	if err != nil {
		return err
	}
	s.warnIssues(issues)
	return nil
}

// lockedChoice loads a choice for writing and fails with ErrChoiceLocked
// when any submission references it. The row lock is held until the tx
// ends, so a submission resolving the same choice (FOR SHARE) either
// commits first and is seen by the reference check, or waits.
func (s *SQLStore) lockedChoice(ctx context.Context, tx *sql.Tx, choiceID string) (Choice, error) {
	var c Choice
	err := tx.QueryRowContext(ctx, choiceForUpdateQuery(s.driver), choiceID).
		Scan(&c.ID, &c.QuestionID, &c.Text, &c.IsCorrect)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Choice{}, errors.Wrapf(apperr.ErrNotFound, "choice %s", choiceID)
		}
		return Choice{}, errors.Wrap(err, "get choice")
	}
	var referenced bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM submission_choices WHERE choice_id=$1)`, choiceID).Scan(&referenced); err != nil {
		return Choice{}, errors.Wrap(err, "check choice references")
	}
	if referenced {
		return Choice{}, errors.Wrapf(apperr.ErrChoiceLocked, "choice %s", choiceID)
	}
	return c, nil
}

func choiceForUpdateQuery(d db.Driver) string {
	return `SELECT id, question_id, text, is_correct FROM choices WHERE id=$1` + d.RowLock("FOR UPDATE")
}

func questionIssues(ctx context.Context, tx *sql.Tx, questionID string) ([]Issue, error) {
	choices, err := loadChoices(ctx, tx, questionID)
	if err != nil {
		return nil, err
	}
	return Validate(Question{ID: questionID, Choices: choices}), nil
}

func (s *SQLStore) warnIssues(issues []Issue) {
	for _, is := range issues {
		s.log.WithFields(logrus.Fields{"question_id": is.QuestionID, "code": is.Code}).Warn(is.Message)
	}
}

func (s *SQLStore) ChoiceCourseID(ctx context.Context, choiceID string) (string, error) {
	var courseID string
	err := s.db.QueryRowContext(ctx, `
		SELECT q.course_id FROM choices c JOIN questions q ON q.id = c.question_id WHERE c.id=$1`, choiceID).Scan(&courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errors.Wrapf(apperr.ErrNotFound, "choice %s", choiceID)
		}
		return "", errors.Wrap(err, "choice course")
	}
	return courseID, nil
}

func (s *SQLStore) AssignInstructor(ctx context.Context, courseID, instructorID string) error {
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := mustExist(ctx, tx, `SELECT 1 FROM courses WHERE id=$1`, courseID, "course"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO course_instructors (course_id, instructor_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			courseID, instructorID)
		return errors.Wrap(err, "assign instructor")
	})
}

func (s *SQLStore) IsInstructor(ctx context.Context, courseID, userID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM course_instructors WHERE course_id=$1 AND instructor_id=$2)`, courseID, userID).Scan(&ok)
	return ok, errors.Wrap(err, "is instructor")
}

// InstructorLearnerCount counts distinct learners enrolled in any course
// the instructor teaches. It is computed on read.
func (s *SQLStore) InstructorLearnerCount(ctx context.Context, instructorID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT e.user_id)
		  FROM enrollments e
		  JOIN course_instructors ci ON ci.course_id = e.course_id
		 WHERE ci.instructor_id=$1`, instructorID).Scan(&n)
	return n, errors.Wrap(err, "instructor learner count")
}

func (s *SQLStore) SetImage(ctx context.Context, courseID, key string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE courses SET image_key=$1 WHERE id=$2`, key, courseID)
	if err != nil {
		return errors.Wrap(err, "set course image")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(apperr.ErrNotFound, "course %s", courseID)
	}
	return nil
}

func mustExist(ctx context.Context, q db.DBTX, query, id, kind string) error {
	var one int
	if err := q.QueryRowContext(ctx, query, id).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(apperr.ErrNotFound, "%s %s", kind, id)
		}
		return errors.Wrapf(err, "lookup %s", kind)
	}
	return nil
}

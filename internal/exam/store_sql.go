package exam

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	"github.com/mind-engage/mindengage-courses/internal/course"
	"github.com/mind-engage/mindengage-courses/internal/db"
	"github.com/mind-engage/mindengage-courses/internal/grading"
	syncx "github.com/mind-engage/mindengage-courses/internal/sync"
)

type Store interface {
	CreateSubmission(ctx context.Context, enrollmentID string, choiceIDs []string) (Submission, error)
	GetSubmission(ctx context.Context, id string) (Submission, error)
	ListSubmissions(ctx context.Context, opts ListOpts) ([]Submission, error)
	Results(ctx context.Context, submissionID string) (Results, error)
	CourseResults(ctx context.Context, courseID string) ([]Results, error)
	CourseAnalytics(ctx context.Context, courseID string) ([]grading.Stats, error)
}

type SQLStore struct {
	db     *sql.DB
	driver db.Driver
	engine *grading.Engine
	events *syncx.EventRepo
	log    logrus.FieldLogger
}

type Option func(*SQLStore)

// WithDriver selects the SQL dialect; the default is sqlite.
func WithDriver(d db.Driver) Option { return func(s *SQLStore) { s.driver = d } }

func NewSQLStore(dbh *sql.DB, engine *grading.Engine, events *syncx.EventRepo, log logrus.FieldLogger, opts ...Option) *SQLStore {
	s := &SQLStore{db: dbh, driver: db.DriverSQLite, engine: engine, events: events, log: log.WithField("component", "exam-store")}
	for _, o := range opts {
		o(s)
	}
	return s
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// CreateSubmission records the learner's selected choices for the course
// the enrollment belongs to. Either the submission and all of its choice
// links are stored, or nothing is: a selection naming any choice outside
// the course fails with ErrInvalidSelection. An empty selection is a valid
// submission that scores zero.
func (s *SQLStore) CreateSubmission(ctx context.Context, enrollmentID string, choiceIDs []string) (Submission, error) {
	ids := uniqueIDs(choiceIDs)
	sub := Submission{
		ID:           "s-" + uuid.NewString(),
		EnrollmentID: enrollmentID,
		ChoiceIDs:    ids,
		CreatedAt:    time.Unix(time.Now().Unix(), 0).UTC(),
	}
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT user_id, course_id FROM enrollments WHERE id=$1`, enrollmentID).Scan(&sub.UserID, &sub.CourseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Wrapf(apperr.ErrNotFound, "enrollment %s", enrollmentID)
			}
			return errors.Wrap(err, "lookup enrollment")
		}

		if len(ids) > 0 {
			if err := s.resolveChoices(ctx, tx, sub.CourseID, ids); err != nil {
				if errors.Is(err, apperr.ErrInvalidSelection) {
					return errors.Wrapf(err, "enrollment %s", enrollmentID)
				}
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO submissions (id, enrollment_id, created_at) VALUES ($1,$2,$3)`,
			sub.ID, sub.EnrollmentID, sub.CreatedAt.Unix()); err != nil {
			return errors.Wrap(err, "insert submission")
		}
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO submission_choices (submission_id, choice_id) VALUES ($1,$2)`, sub.ID, id); err != nil {
				return errors.Wrap(err, "link submission choice")
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE enrollments SET submission_count = submission_count + 1 WHERE id=$1`, enrollmentID); err != nil {
			return errors.Wrap(err, "bump submission count")
		}
		return s.events.Append(ctx, tx, syncx.EventSubmissionCreated, sub.ID,
			map[string]any{"enrollment_id": enrollmentID, "course_id": sub.CourseID, "choices": len(ids)})
	})
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidSelection) {
			s.log.WithFields(logrus.Fields{"enrollment_id": enrollmentID, "choices": len(ids)}).Warn("rejected submission with foreign choices")
		}
		return Submission{}, err
	}
	s.log.WithFields(logrus.Fields{"submission_id": sub.ID, "enrollment_id": enrollmentID, "choices": len(ids)}).Info("submission recorded")
	return sub, nil
}

// resolveChoices checks that every id is a choice of courseID and
// share-locks those rows until the tx ends. Selections larger than the
// course's choice count are rejected before any lookup.
func (s *SQLStore) resolveChoices(ctx context.Context, tx *sql.Tx, courseID string, ids []string) error {
	var total int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM choices c
		  JOIN questions q ON q.id = c.question_id
		 WHERE q.course_id=$1`, courseID).Scan(&total); err != nil {
		return errors.Wrap(err, "count course choices")
	}
	if len(ids) > total {
		return apperr.ErrInvalidSelection
	}
	matched := 0
	for start := 0; start < len(ids); start += choiceBatch {
		batch := ids[start:min(start+choiceBatch, len(ids))]
		args := make([]any, 0, len(batch)+1)
		args = append(args, courseID)
		for _, id := range batch {
			args = append(args, id)
		}
		rows, err := tx.QueryContext(ctx, courseChoicesQuery(s.driver, len(batch)), args...)
		if err != nil {
			return errors.Wrap(err, "resolve choices")
		}
		for rows.Next() {
			matched++
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return errors.Wrap(err, "resolve choices")
		}
	}
	if matched != len(ids) {
		return apperr.ErrInvalidSelection
	}
	return nil
}

func courseChoicesQuery(d db.Driver, n int) string {
	return `
		SELECT c.id FROM choices c
		  JOIN questions q ON q.id = c.question_id
		 WHERE q.course_id=$1 AND c.id IN (` + db.Placeholders(2, n) + `)` + d.RowLock("FOR SHARE OF c")
}

const submissionSelect = `
	SELECT s.id, s.enrollment_id, e.user_id, COALESCE(u.username, ''), e.course_id, s.created_at
	  FROM submissions s
	  JOIN enrollments e ON e.id = s.enrollment_id
	  LEFT JOIN users u ON u.id = e.user_id`

func scanSubmission(r interface{ Scan(...any) error }) (Submission, error) {
	var (
		sub     Submission
		created int64
	)
	if err := r.Scan(&sub.ID, &sub.EnrollmentID, &sub.UserID, &sub.Username, &sub.CourseID, &created); err != nil {
		return Submission{}, err
	}
	sub.CreatedAt = time.Unix(created, 0).UTC()
	sub.ChoiceIDs = []string{}
	return sub, nil
}

func getSubmission(ctx context.Context, q db.DBTX, id string) (Submission, error) {
	sub, err := scanSubmission(q.QueryRowContext(ctx, submissionSelect+` WHERE s.id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, errors.Wrapf(apperr.ErrNotFound, "submission %s", id)
		}
		return Submission{}, errors.Wrap(err, "get submission")
	}
	rows, err := q.QueryContext(ctx,
		`SELECT choice_id FROM submission_choices WHERE submission_id=$1 ORDER BY choice_id`, id)
	if err != nil {
		return Submission{}, errors.Wrap(err, "load submission choices")
	}
	defer rows.Close()
	for rows.Next() {
		var cid string
		if err := rows.Scan(&cid); err != nil {
			return Submission{}, errors.Wrap(err, "scan submission choice")
		}
		sub.ChoiceIDs = append(sub.ChoiceIDs, cid)
	}
	return sub, rows.Err()
}

func (s *SQLStore) GetSubmission(ctx context.Context, id string) (Submission, error) {
	return getSubmission(ctx, s.db, id)
}

// ListSubmissions returns submissions newest first, with their choices.
func (s *SQLStore) ListSubmissions(ctx context.Context, opts ListOpts) ([]Submission, error) {
	limit := opts.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}
	return listSubmissions(ctx, s.db, opts, limit, offset)
}

func listSubmissions(ctx context.Context, q db.DBTX, opts ListOpts, limit, offset int) ([]Submission, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return db.Placeholders(len(args), 1)
	}
	if opts.EnrollmentID != "" {
		where = append(where, `s.enrollment_id=`+arg(opts.EnrollmentID))
	}
	if opts.CourseID != "" {
		where = append(where, `e.course_id=`+arg(opts.CourseID))
	}
	if opts.UserID != "" {
		where = append(where, `e.user_id=`+arg(opts.UserID))
	}
	query := submissionSelect
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	// created_at has second resolution; seq is the insertion order
	query += ` ORDER BY s.seq DESC`
	if limit > 0 {
		query += ` LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list submissions")
	}
	out := []Submission{}
	index := map[string]int{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan submission")
		}
		index[sub.ID] = len(out)
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if len(out) == 0 {
		return out, nil
	}

	for start := 0; start < len(out); start += choiceBatch {
		end := start + choiceBatch
		if end > len(out) {
			end = len(out)
		}
		if err := loadChoiceLinks(ctx, q, out[start:end], index, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// choiceBatch bounds the IN list so large courses stay under the driver's
// bind variable limit.
const choiceBatch = 500

func loadChoiceLinks(ctx context.Context, q db.DBTX, batch []Submission, index map[string]int, out []Submission) error {
	ids := make([]any, 0, len(batch))
	for _, sub := range batch {
		ids = append(ids, sub.ID)
	}
	rows, err := q.QueryContext(ctx,
		`SELECT submission_id, choice_id FROM submission_choices
		  WHERE submission_id IN (`+db.Placeholders(1, len(ids))+`) ORDER BY submission_id, choice_id`, ids...)
	if err != nil {
		return errors.Wrap(err, "load submission choices")
	}
	defer rows.Close()
	for rows.Next() {
		var sid, cid string
		if err := rows.Scan(&sid, &cid); err != nil {
			return errors.Wrap(err, "scan submission choice")
		}
		if i, ok := index[sid]; ok {
			out[i].ChoiceIDs = append(out[i].ChoiceIDs, cid)
		}
	}
	return rows.Err()
}

func courseName(ctx context.Context, q db.DBTX, courseID string) (string, error) {
	var name string
	if err := q.QueryRowContext(ctx, `SELECT name FROM courses WHERE id=$1`, courseID).Scan(&name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", errors.Wrapf(apperr.ErrNotFound, "course %s", courseID)
		}
		return "", errors.Wrap(err, "get course name")
	}
	return name, nil
}

// Results scores a submission against the course's questions as they are
// now. Nothing is cached: editing a grade changes the next result.
func (s *SQLStore) Results(ctx context.Context, submissionID string) (Results, error) {
	var res Results
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		sub, err := getSubmission(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		name, err := courseName(ctx, tx, sub.CourseID)
		if err != nil {
			return err
		}
		questions, err := course.LoadQuestions(ctx, tx, sub.CourseID)
		if err != nil {
			return err
		}
		res = Results{
			Submission: sub,
			CourseName: name,
			Report:     s.engine.Evaluate(questions, grading.NewSelection(sub.ChoiceIDs...)),
		}
		return nil
	})
	return res, err
}

// CourseResults scores every submission of the course, newest first.
func (s *SQLStore) CourseResults(ctx context.Context, courseID string) ([]Results, error) {
	var out []Results
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		name, err := courseName(ctx, tx, courseID)
		if err != nil {
			return err
		}
		questions, err := course.LoadQuestions(ctx, tx, courseID)
		if err != nil {
			return err
		}
		subs, err := listSubmissions(ctx, tx, ListOpts{CourseID: courseID}, 0, 0)
		if err != nil {
			return err
		}
		out = make([]Results, 0, len(subs))
		for _, sub := range subs {
			out = append(out, Results{
				Submission: sub,
				CourseName: name,
				Report:     s.engine.Evaluate(questions, grading.NewSelection(sub.ChoiceIDs...)),
			})
		}
		return nil
	})
	return out, err
}

// CourseAnalytics reports per-question success rates over every submission
// made for the course.
func (s *SQLStore) CourseAnalytics(ctx context.Context, courseID string) ([]grading.Stats, error) {
	var stats []grading.Stats
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := courseName(ctx, tx, courseID); err != nil {
			return err
		}
		questions, err := course.LoadQuestions(ctx, tx, courseID)
		if err != nil {
			return err
		}
		subs, err := listSubmissions(ctx, tx, ListOpts{CourseID: courseID}, 0, 0)
		if err != nil {
			return err
		}
		selections := make([]grading.Selection, 0, len(subs))
		for _, sub := range subs {
			selections = append(selections, grading.NewSelection(sub.ChoiceIDs...))
		}
		stats = grading.CourseStats(questions, selections)
		return nil
	})
	return stats, err
}

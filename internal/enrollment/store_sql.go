package enrollment

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	"github.com/mind-engage/mindengage-courses/internal/db"
	syncx "github.com/mind-engage/mindengage-courses/internal/sync"
)

type Store interface {
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
	Enroll(ctx context.Context, userID, courseID string) (Enrollment, bool, error)
	EnrollAs(ctx context.Context, userID, courseID string, mode Mode) (Enrollment, bool, error)
	Get(ctx context.Context, id string) (Enrollment, error)
	GetForUserCourse(ctx context.Context, userID, courseID string) (Enrollment, error)
	ListForUser(ctx context.Context, userID string) ([]Enrollment, error)
	Progress(ctx context.Context, enrollmentID string) (int, error)
	Complete(ctx context.Context, enrollmentID string, finalGrade float64) error
	Rate(ctx context.Context, enrollmentID string, rating float64, review string) error
}

type SQLStore struct {
	db     *sql.DB
	events *syncx.EventRepo
	log    logrus.FieldLogger
}

func NewSQLStore(dbh *sql.DB, events *syncx.EventRepo, log logrus.FieldLogger) *SQLStore {
	return &SQLStore{db: dbh, events: events, log: log.WithField("component", "enrollment-store")}
}

const enrollmentColumns = `id, user_id, course_id, mode, is_active, date_enrolled, submission_count, final_grade, completed_at, rating, review`

func scanEnrollment(r interface{ Scan(...any) error }) (Enrollment, error) {
	var (
		e         Enrollment
		mode      string
		enrolled  int64
		grade     sql.NullFloat64
		completed sql.NullInt64
		rating    sql.NullFloat64
		review    sql.NullString
	)
	if err := r.Scan(&e.ID, &e.UserID, &e.CourseID, &mode, &e.IsActive, &enrolled,
		&e.SubmissionCount, &grade, &completed, &rating, &review); err != nil {
		return Enrollment{}, err
	}
	e.Mode = Mode(mode)
	e.DateEnrolled = time.Unix(enrolled, 0).UTC()
	if grade.Valid {
		g := grade.Float64
		e.FinalGrade = &g
	}
	if completed.Valid {
		t := time.Unix(completed.Int64, 0).UTC()
		e.CompletedAt = &t
	}
	if rating.Valid {
		v := rating.Float64
		e.Rating = &v
	}
	e.Review = review.String
	return e, nil
}

func (s *SQLStore) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	var ok bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM enrollments WHERE user_id=$1 AND course_id=$2)`, userID, courseID).Scan(&ok)
	return ok, errors.Wrap(err, "is enrolled")
}

// Enroll enrolls userID in courseID in honor mode.
func (s *SQLStore) Enroll(ctx context.Context, userID, courseID string) (Enrollment, bool, error) {
	return s.EnrollAs(ctx, userID, courseID, ModeHonor)
}

// EnrollAs is idempotent: when the pair is already enrolled the existing
// row is returned with created=false. The unique (user_id, course_id)
// constraint settles concurrent calls, and the course counter moves only
// for the call that actually inserted.
func (s *SQLStore) EnrollAs(ctx context.Context, userID, courseID string, mode Mode) (Enrollment, bool, error) {
	if userID == "" {
		return Enrollment{}, false, apperr.Invalid("user_id", "must not be empty")
	}
	if mode == "" {
		mode = ModeHonor
	}
	var (
		out     Enrollment
		created bool
	)
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var active bool
		if err := tx.QueryRowContext(ctx, `SELECT is_active FROM courses WHERE id=$1`, courseID).Scan(&active); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Wrapf(apperr.ErrNotFound, "course %s", courseID)
			}
			return errors.Wrap(err, "lookup course")
		}
		if !active {
			existing, err := forUserCourse(ctx, tx, userID, courseID)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					return errors.Wrapf(apperr.ErrCourseInactive, "course %s", courseID)
				}
				return err
			}
			out = existing
			return nil
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO enrollments (id, user_id, course_id, mode, is_active, date_enrolled)
			 VALUES ($1,$2,$3,$4,$5,$6)
			 ON CONFLICT (user_id, course_id) DO NOTHING`,
			"e-"+uuid.NewString(), userID, courseID, string(mode), true, time.Now().Unix())
		if err != nil {
			return errors.Wrap(err, "insert enrollment")
		}
		if n, _ := res.RowsAffected(); n == 1 {
			created = true
			if _, err := tx.ExecContext(ctx,
				`UPDATE courses SET total_enrollment = total_enrollment + 1 WHERE id=$1`, courseID); err != nil {
				return errors.Wrap(err, "bump total enrollment")
			}
		}
		out, err = forUserCourse(ctx, tx, userID, courseID)
		if err != nil {
			return err
		}
		if created {
			return s.events.Append(ctx, tx, syncx.EventEnrollmentCreated, out.ID,
				map[string]string{"user_id": userID, "course_id": courseID, "mode": string(mode)})
		}
		return nil
	})
	if err != nil {
		return Enrollment{}, false, err
	}
	if created {
		s.log.WithFields(logrus.Fields{"enrollment_id": out.ID, "user_id": userID, "course_id": courseID}).Info("learner enrolled")
	}
	return out, created, nil
}

func forUserCourse(ctx context.Context, q db.DBTX, userID, courseID string) (Enrollment, error) {
	e, err := scanEnrollment(q.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id=$1 AND course_id=$2`, userID, courseID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Enrollment{}, errors.Wrapf(apperr.ErrNotFound, "enrollment of %s in %s", userID, courseID)
		}
		return Enrollment{}, errors.Wrap(err, "get enrollment")
	}
	return e, nil
}

func (s *SQLStore) GetForUserCourse(ctx context.Context, userID, courseID string) (Enrollment, error) {
	return forUserCourse(ctx, s.db, userID, courseID)
}

func (s *SQLStore) Get(ctx context.Context, id string) (Enrollment, error) {
	e, err := scanEnrollment(s.db.QueryRowContext(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Enrollment{}, errors.Wrapf(apperr.ErrNotFound, "enrollment %s", id)
		}
		return Enrollment{}, errors.Wrap(err, "get enrollment")
	}
	return e, nil
}

func (s *SQLStore) ListForUser(ctx context.Context, userID string) ([]Enrollment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+enrollmentColumns+` FROM enrollments WHERE user_id=$1 ORDER BY date_enrolled DESC, id`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list enrollments")
	}
	defer rows.Close()
	out := []Enrollment{}
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan enrollment")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Progress is the share of the course's questions the learner has answered
// in any submission, as a whole percentage. A completed enrollment is 100.
func (s *SQLStore) Progress(ctx context.Context, enrollmentID string) (int, error) {
	e, err := s.Get(ctx, enrollmentID)
	if err != nil {
		return 0, err
	}
	if e.IsComplete() {
		return 100, nil
	}
	var total, answered int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM questions WHERE course_id=$1`, e.CourseID).Scan(&total); err != nil {
		return 0, errors.Wrap(err, "count questions")
	}
	if total == 0 {
		return 0, nil
	}
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT c.question_id)
		  FROM submission_choices sc
		  JOIN submissions s ON s.id = sc.submission_id
		  JOIN choices c ON c.id = sc.choice_id
		 WHERE s.enrollment_id=$1`, enrollmentID).Scan(&answered); err != nil {
		return 0, errors.Wrap(err, "count answered questions")
	}
	return answered * 100 / total, nil
}

func (s *SQLStore) Complete(ctx context.Context, enrollmentID string, finalGrade float64) error {
	if finalGrade < 0 || finalGrade > 100 {
		return apperr.Invalid("final_grade", "must be between 0 and 100")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrollments SET completed_at=$1, final_grade=$2 WHERE id=$3`,
		time.Now().Unix(), finalGrade, enrollmentID)
	if err != nil {
		return errors.Wrap(err, "complete enrollment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrapf(apperr.ErrNotFound, "enrollment %s", enrollmentID)
	}
	return nil
}

// Rate stores the learner's rating and refreshes the course average in the
// same transaction.
func (s *SQLStore) Rate(ctx context.Context, enrollmentID string, rating float64, review string) error {
	if rating < 1 || rating > 5 {
		return apperr.Invalid("rating", "must be between 1 and 5")
	}
	return db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var courseID string
		if err := tx.QueryRowContext(ctx, `SELECT course_id FROM enrollments WHERE id=$1`, enrollmentID).Scan(&courseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errors.Wrapf(apperr.ErrNotFound, "enrollment %s", enrollmentID)
			}
			return errors.Wrap(err, "lookup enrollment")
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE enrollments SET rating=$1, review=$2 WHERE id=$3`, rating, review, enrollmentID); err != nil {
			return errors.Wrap(err, "rate enrollment")
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE courses SET average_rating =
			  (SELECT COALESCE(AVG(rating), 0) FROM enrollments WHERE course_id=$1 AND rating IS NOT NULL)
			 WHERE id=$1`, courseID)
		return errors.Wrap(err, "refresh average rating")
	})
}

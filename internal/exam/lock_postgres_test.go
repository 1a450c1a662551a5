package exam_test

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	"github.com/mind-engage/mindengage-courses/internal/course"
	"github.com/mind-engage/mindengage-courses/internal/db"
	"github.com/mind-engage/mindengage-courses/internal/db/dbtest"
	"github.com/mind-engage/mindengage-courses/internal/enrollment"
	"github.com/mind-engage/mindengage-courses/internal/exam"
	"github.com/mind-engage/mindengage-courses/internal/grading"
	"github.com/mind-engage/mindengage-courses/internal/logging"
	syncx "github.com/mind-engage/mindengage-courses/internal/sync"
)

// Submissions racing a delete of the choice they select: either the delete
// wins before any submission links the choice, or it fails as locked. A
// stored submission never loses its selection.
func TestChoiceLock_ConcurrentDeletePostgres(t *testing.T) {
	dbh := dbtest.OpenPostgres(t)
	events := syncx.NewEventRepo("test")
	log := logging.Discard()
	f := fixture{
		db:          dbh,
		courses:     course.NewSQLStore(dbh, events, log, course.WithDriver(db.DriverPostgres)),
		enrollments: enrollment.NewSQLStore(dbh, events, log),
		exams:       exam.NewSQLStore(dbh, grading.NewEngine(), events, log, exam.WithDriver(db.DriverPostgres)),
		events:      events,
	}
	s := seed(t, f)
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		q, err := f.courses.AddQuestion(ctx, s.course.ID, "race", 1)
		require.NoError(t, err)
		key, err := f.courses.AddChoice(ctx, q.ID, "key", true)
		require.NoError(t, err)

		const writers = 6
		subErrs := make([]error, writers)
		var (
			wg        sync.WaitGroup
			deleteErr error
			updateErr error
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, subErrs[i] = f.exams.CreateSubmission(ctx, s.enrollmentID, []string{key.ID})
			}(i)
		}
		wg.Add(2)
		go func() {
			defer wg.Done()
			text := "renamed"
			_, updateErr = f.courses.UpdateChoice(ctx, key.ID, course.ChoicePatch{Text: &text})
		}()
		go func() {
			defer wg.Done()
			deleteErr = f.courses.DeleteChoice(ctx, key.ID)
		}()
		wg.Wait()

		stored := 0
		for _, err := range subErrs {
			if err == nil {
				stored++
				continue
			}
			assert.True(t, errors.Is(err, apperr.ErrInvalidSelection), "round %d: %v", round, err)
		}
		links := count(t, dbh, `SELECT COUNT(*) FROM submission_choices WHERE choice_id=$1`, key.ID)
		assert.Equal(t, stored, links, "round %d", round)

		if deleteErr == nil {
			assert.Zero(t, stored, "round %d", round)
		} else {
			assert.True(t, errors.Is(deleteErr, apperr.ErrChoiceLocked), "round %d: %v", round, deleteErr)
		}
		if updateErr != nil {
			assert.True(t, errors.Is(updateErr, apperr.ErrChoiceLocked) || errors.Is(updateErr, apperr.ErrNotFound),
				"round %d: %v", round, updateErr)
		}
	}
}

package syncx_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-courses/internal/db"
	"github.com/mind-engage/mindengage-courses/internal/db/dbtest"
	syncx "github.com/mind-engage/mindengage-courses/internal/sync"
)

func TestEventRepo_AppendAndList(t *testing.T) {
	dbh := dbtest.Open(t)
	ctx := context.Background()
	repo := syncx.NewEventRepo("site-a")

	require.NoError(t, repo.Append(ctx, dbh, syncx.EventCourseCreated, "c1", map[string]string{"name": "Go"}))
	require.NoError(t, repo.Append(ctx, dbh, syncx.EventEnrollmentCreated, "e1", map[string]string{"course_id": "c1"}))

	all, err := repo.List(ctx, dbh, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "site-a", all[0].SiteID)
	assert.Equal(t, syncx.EventCourseCreated, all[0].Type)
	assert.JSONEq(t, `{"name":"Go"}`, all[0].DataJSON)

	tail, err := repo.List(ctx, dbh, all[0].Seq, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, "e1", tail[0].Key)
}

func TestEventRepo_RolledBackWithTx(t *testing.T) {
	dbh := dbtest.Open(t)
	ctx := context.Background()
	repo := syncx.NewEventRepo("")

	err := db.WithTx(ctx, dbh, func(tx *sql.Tx) error {
		if err := repo.Append(ctx, tx, syncx.EventSubmissionCreated, "s1", nil); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	all, err := repo.List(ctx, dbh, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, all)
}

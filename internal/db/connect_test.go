package db_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-courses/internal/db"
	"github.com/mind-engage/mindengage-courses/internal/db/dbtest"
)

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", db.Placeholders(1, 0))
	assert.Equal(t, "$1", db.Placeholders(1, 1))
	assert.Equal(t, "$2,$3,$4", db.Placeholders(2, 3))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := db.Open(context.Background(), db.Driver("oracle"), "")
	require.Error(t, err)
}

func TestWithTx_CommitAndRollback(t *testing.T) {
	dbh := dbtest.Open(t)
	ctx := context.Background()

	err := db.WithTx(ctx, dbh, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO users (id, username, role, created_at) VALUES ($1,$2,$3,$4)`, "u1", "alice", "learner", 1)
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.WithTx(ctx, dbh, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (id, username, role, created_at) VALUES ($1,$2,$3,$4)`, "u2", "bob", "learner", 1); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, dbh.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestRowLock(t *testing.T) {
	assert.Equal(t, " FOR UPDATE", db.DriverPostgres.RowLock("FOR UPDATE"))
	assert.Equal(t, "", db.DriverSQLite.RowLock("FOR UPDATE"))
}

package course

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/mindengage-courses/internal/db"
)

func TestChoiceForUpdateQuery(t *testing.T) {
	assert.Contains(t, choiceForUpdateQuery(db.DriverPostgres), "WHERE id=$1 FOR UPDATE")
	assert.NotContains(t, choiceForUpdateQuery(db.DriverSQLite), "FOR")
}

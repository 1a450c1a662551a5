package exam

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/mindengage-courses/internal/db"
)

func TestCourseChoicesQuery(t *testing.T) {
	pg := courseChoicesQuery(db.DriverPostgres, 3)
	assert.Contains(t, pg, "IN ($2,$3,$4)")
	assert.True(t, strings.HasSuffix(pg, "FOR SHARE OF c"))
	assert.NotContains(t, courseChoicesQuery(db.DriverSQLite, 3), "FOR SHARE")
}

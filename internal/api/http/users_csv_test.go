package http

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-courses/internal/users"
)

func TestReadUserCSV(t *testing.T) {
	in := "username,password,role\n ada , pw1\ngrace,pw2,instructor\nlonely\n"
	rows, err := readUserCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, users.NewUser{Username: "ada", Password: "pw1"}, rows[0])
	assert.Equal(t, users.RoleInstructor, rows[1].Role)

	_, err = readUserCSV(strings.NewReader("a,\"b\n"))
	assert.Error(t, err)
}

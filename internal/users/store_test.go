package users_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	"github.com/mind-engage/mindengage-courses/internal/db/dbtest"
	"github.com/mind-engage/mindengage-courses/internal/logging"
	"github.com/mind-engage/mindengage-courses/internal/users"
)

func newStore(t *testing.T) *users.SQLStore {
	t.Helper()
	return users.NewSQLStore(dbtest.Open(t), logging.Discard(), users.WithBcryptCost(bcrypt.MinCost))
}

func TestCreateAndAuthenticate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u, err := s.Create(ctx, users.NewUser{Username: "ada", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, users.RoleLearner, u.Role)
	require.NotNil(t, u.Learner)
	assert.Nil(t, u.Instructor)
	assert.Equal(t, users.OccupationStudent, u.Learner.Occupation)

	got, err := s.Authenticate(ctx, "ada", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.Learner)

	_, err = s.Authenticate(ctx, "ada", "wrong")
	assert.True(t, errors.Is(err, apperr.ErrInvalidCredentials))
	_, err = s.Authenticate(ctx, "nobody", "s3cret")
	assert.True(t, errors.Is(err, apperr.ErrInvalidCredentials))
}

func TestCreate_Validation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Create(ctx, users.NewUser{Username: "bob", Password: "pw"})
	require.NoError(t, err)

	cases := []users.NewUser{
		{Username: "", Password: "pw"},
		{Username: "carol", Password: ""},
		{Username: "bob", Password: "pw"},
		{Username: "dave", Password: "pw", Role: "superuser"},
		{Username: "erin", Password: "pw", Learner: &users.LearnerProfile{Occupation: "astronaut"}},
	}
	for _, in := range cases {
		_, err := s.Create(ctx, in)
		assert.True(t, apperr.IsValidation(err), "%+v", in)
	}
}

func TestProfilesFollowRole(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	inst, err := s.Create(ctx, users.NewUser{
		Username: "grace", Password: "pw", Role: users.RoleInstructor,
		Learner: &users.LearnerProfile{Occupation: users.OccupationDeveloper},
	})
	require.NoError(t, err)
	got, err := s.Get(ctx, inst.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Instructor)
	assert.True(t, got.Instructor.FullTime)
	assert.False(t, got.Instructor.HireDate.IsZero())
	assert.Nil(t, got.Learner)

	admin, err := s.Create(ctx, users.NewUser{Username: "root", Password: "pw", Role: users.RoleAdmin})
	require.NoError(t, err)
	assert.Nil(t, admin.Instructor)
	assert.Nil(t, admin.Learner)

	_, err = s.Get(ctx, "u-missing")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	instructors, err := s.List(ctx, users.RoleInstructor)
	require.NoError(t, err)
	require.Len(t, instructors, 1)
	assert.Equal(t, "grace", instructors[0].Username)
	everyone, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, everyone, 2)
}

func TestCapabilities(t *testing.T) {
	cases := []struct {
		role           users.Role
		author, learns bool
	}{
		{users.RoleLearner, false, true},
		{users.RoleInstructor, true, false},
		{users.RoleAdmin, true, false},
	}
	for _, tc := range cases {
		u := users.User{ID: "u1", Role: tc.role}
		a, ok := u.AsAuthor()
		assert.Equal(t, tc.author, ok, tc.role)
		if ok {
			assert.Equal(t, "u1", a.AuthorID())
		}
		l, ok := u.AsLearner()
		assert.Equal(t, tc.learns, ok, tc.role)
		if ok {
			assert.Equal(t, "u1", l.LearnerID())
		}
	}
}

func TestChangePassword(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	u, err := s.Create(ctx, users.NewUser{Username: "ada", Password: "old"})
	require.NoError(t, err)

	assert.True(t, errors.Is(s.ChangePassword(ctx, u.ID, "bad", "new"), apperr.ErrInvalidCredentials))
	assert.True(t, apperr.IsValidation(s.ChangePassword(ctx, u.ID, "old", "")))
	require.NoError(t, s.ChangePassword(ctx, u.ID, "old", "new"))

	_, err = s.Authenticate(ctx, "ada", "new")
	require.NoError(t, err)
	assert.True(t, errors.Is(s.ChangePassword(ctx, "u-missing", "a", "b"), apperr.ErrNotFound))
}

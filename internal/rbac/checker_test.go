package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecker_DefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	cases := []struct {
		role, perm string
		want       bool
	}{
		{"learner", PermSubmissionCreate, true},
		{"learner", PermCourseCreate, false},
		{"learner", PermSubmissionViewAll, false},
		{"instructor", PermCourseCreate, true},
		{"instructor", PermAnalyticsView, true},
		{"instructor", PermSubmissionCreate, false},
		{"admin", PermCourseEditAny, true},
		{"admin", "anything:else", true},
		{"", PermCourseView, false},
		{"ghost", PermCourseView, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, c.Has(tc.role, tc.perm), "%s %s", tc.role, tc.perm)
	}
	assert.True(t, c.Any("learner", PermCourseCreate, PermCourseView))
	assert.False(t, c.All("learner", PermCourseCreate, PermCourseView))
}

func TestChecker_WildcardSuffix(t *testing.T) {
	c := NewChecker(map[string][]string{"ta": {"submission:*"}})
	assert.True(t, c.Has("ta", PermSubmissionViewAll))
	assert.False(t, c.Has("ta", PermCourseView))
}

func TestRequire(t *testing.T) {
	c := NewChecker(nil)
	h := c.Require(PermCourseCreate)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[string]int{
		"instructor": http.StatusNoContent,
		"learner":    http.StatusForbidden,
		"":           http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodPost, "/courses", nil)
		if role != "" {
			req = req.WithContext(WithRole(context.Background(), role))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}

func TestCanManageCourse(t *testing.T) {
	c := NewChecker(nil)
	ctx := func(role string) context.Context { return WithRole(context.Background(), role) }

	assert.True(t, c.CanManageCourse(ctx("instructor"), true))
	assert.False(t, c.CanManageCourse(ctx("instructor"), false))
	assert.True(t, c.CanManageCourse(ctx("admin"), false))
	assert.False(t, c.CanManageCourse(ctx("learner"), true))
	assert.False(t, c.CanManageCourse(context.Background(), true))
}

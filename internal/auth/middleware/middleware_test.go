package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	"github.com/mind-engage/mindengage-courses/internal/logging"
	"github.com/mind-engage/mindengage-courses/internal/rbac"
	"github.com/mind-engage/mindengage-courses/internal/users"
)

type fakeUsers map[string]users.User

func (f fakeUsers) Get(_ context.Context, id string) (users.User, error) {
	u, ok := f[id]
	if !ok {
		return users.User{}, apperr.ErrNotFound
	}
	return u, nil
}

func (f fakeUsers) Authenticate(_ context.Context, username, password string) (users.User, error) {
	for _, u := range f {
		if u.Username == username && password == "pw" {
			return u, nil
		}
	}
	return users.User{}, apperr.ErrInvalidCredentials
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret", "")
	tok, err := a.IssueJWT("u1", "learner")
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Subject)
	assert.Equal(t, "learner", c.Role)

	_, err = NewAuthService("other", "").Parse(tok)
	assert.Error(t, err)
	_, err = a.Parse("garbage")
	assert.Error(t, err)
}

func TestJWTAndAttachUser(t *testing.T) {
	a := NewAuthService("secret", "")
	store := fakeUsers{"u1": {ID: "u1", Username: "ada", Role: users.RoleInstructor}}

	var seenRole string
	var seenUser users.User
	h := JWTMiddleware(a)(AttachUser(store, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenRole = rbac.RoleFromContext(r.Context())
		seenUser, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	// token says learner, the store says instructor: the store wins
	tok, err := a.IssueJWT("u1", "learner")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "instructor", seenRole)
	assert.Equal(t, "ada", seenUser.Username)

	gone, err := a.IssueJWT("u-deleted", "admin")
	require.NoError(t, err)
	for _, hdr := range []string{"", "Bearer nope", "Bearer " + gone} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if hdr != "" {
			req.Header.Set("Authorization", hdr)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, hdr)
	}
}

func TestLoginHandler(t *testing.T) {
	a := NewAuthService("secret", "")
	store := fakeUsers{"u1": {ID: "u1", Username: "ada", Role: users.RoleLearner}}
	h := LoginHandler(a, store, logging.Discard())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ada","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	c, err := a.Parse(out.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Subject)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"ada","password":"x"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

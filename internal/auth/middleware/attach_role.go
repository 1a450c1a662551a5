package auth

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	"github.com/mind-engage/mindengage-courses/internal/rbac"
	"github.com/mind-engage/mindengage-courses/internal/users"
)

type UserGetter interface {
	Get(ctx context.Context, id string) (users.User, error)
}

// AttachUser loads the token subject from the user store. The stored role
// is authoritative and replaces the one in the token, so a demoted user
// loses access before the token expires.
func AttachUser(store UserGetter, log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			if sub == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			u, err := store.Get(ctx, sub)
			switch {
			case err == nil:
				ctx = WithUser(ctx, u)
				ctx = rbac.WithRole(ctx, string(u.Role))
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, apperr.ErrNotFound):
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			default:
				log.WithError(err).WithField("sub", sub).Error("load user")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		})
	}
}

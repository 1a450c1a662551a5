package auth

import (
	"context"

	"github.com/mind-engage/mindengage-courses/internal/users"
)

type ctxKey string

const (
	ctxKeySub  ctxKey = "sub"
	ctxKeyUser ctxKey = "user"
)

func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, ctxKeySub, sub)
}

func SubjectFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeySub).(string); ok {
		return s
	}
	return ""
}

func WithUser(ctx context.Context, u users.User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, u)
}

// UserFromContext returns the user loaded by AttachUser.
func UserFromContext(ctx context.Context) (users.User, bool) {
	u, ok := ctx.Value(ctxKeyUser).(users.User)
	return u, ok
}

package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-courses/internal/apperr"
	"github.com/mind-engage/mindengage-courses/internal/db"
)

type NewUser struct {
	Username   string             `json:"username"`
	Password   string             `json:"password"`
	Role       Role               `json:"role"`
	Instructor *InstructorProfile `json:"instructor,omitempty"`
	Learner    *LearnerProfile    `json:"learner,omitempty"`
}

type Store interface {
	Create(ctx context.Context, in NewUser) (User, error)
	Authenticate(ctx context.Context, username, password string) (User, error)
	Get(ctx context.Context, id string) (User, error)
	List(ctx context.Context, role Role) ([]User, error)
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error
}

type Option func(*SQLStore)

// WithBcryptCost overrides the hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option { return func(s *SQLStore) { s.cost = cost } }

type SQLStore struct {
	db   *sql.DB
	log  logrus.FieldLogger
	cost int
}

func NewSQLStore(dbh *sql.DB, log logrus.FieldLogger, opts ...Option) *SQLStore {
	s := &SQLStore{db: dbh, log: log.WithField("component", "user-store"), cost: 12}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *SQLStore) Create(ctx context.Context, in NewUser) (User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return User{}, apperr.Invalid("username", "must not be empty")
	}
	if in.Password == "" {
		return User{}, apperr.Invalid("password", "must not be empty")
	}
	role, err := ParseRole(string(in.Role))
	if err != nil {
		return User{}, err
	}
	now := time.Unix(time.Now().Unix(), 0).UTC()
	u := User{
		ID:         "u-" + uuid.NewString(),
		Username:   username,
		Role:       role,
		Instructor: in.Instructor,
		Learner:    in.Learner,
		CreatedAt:  now,
	}
	if err := normalizeProfiles(&u, now); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return User{}, errors.Wrap(err, "hash password")
	}
	pj, err := json.Marshal(profile{Instructor: u.Instructor, Learner: u.Learner})
	if err != nil {
		return User{}, errors.Wrap(err, "marshal profile")
	}

	err = db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var taken bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE username=$1)`, username).Scan(&taken); err != nil {
			return errors.Wrap(err, "check username")
		}
		if taken {
			return apperr.Invalid("username", "already taken")
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, username, role, password_hash, profile_json, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
			u.ID, u.Username, string(u.Role), string(hash), string(pj), now.Unix())
		return errors.Wrap(err, "insert user")
	})
	if err != nil {
		return User{}, err
	}
	s.log.WithFields(logrus.Fields{"user_id": u.ID, "role": u.Role}).Info("user created")
	return u, nil
}

const userColumns = `id, username, role, profile_json, created_at`

func scanUser(r interface{ Scan(...any) error }, extra ...any) (User, error) {
	var (
		u       User
		role    string
		pj      string
		created int64
	)
	dest := append([]any{&u.ID, &u.Username, &role, &pj, &created}, extra...)
	if err := r.Scan(dest...); err != nil {
		return User{}, err
	}
	u.Role = Role(role)
	u.CreatedAt = time.Unix(created, 0).UTC()
	var p profile
	if pj != "" {
		if err := json.Unmarshal([]byte(pj), &p); err != nil {
			return User{}, errors.Wrapf(err, "decode profile of %s", u.ID)
		}
	}
	u.Instructor, u.Learner = p.Instructor, p.Learner
	return u, nil
}

// Authenticate checks a username/password pair. Unknown users and wrong
// passwords fail the same way.
func (s *SQLStore) Authenticate(ctx context.Context, username, password string) (User, error) {
	var hash string
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+`, password_hash FROM users WHERE username=$1`, strings.TrimSpace(username)), &hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, apperr.ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "lookup user")
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, apperr.ErrInvalidCredentials
	}
	return u, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, errors.Wrapf(apperr.ErrNotFound, "user %s", id)
		}
		return User{}, errors.Wrap(err, "get user")
	}
	return u, nil
}

// List returns users ordered by username; an empty role lists everyone.
func (s *SQLStore) List(ctx context.Context, role Role) ([]User, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if role == "" {
		rows, err = s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	} else {
		rows, err = s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE role=$1 ORDER BY username`, string(role))
	}
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLStore) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if newPassword == "" {
		return apperr.Invalid("new_password", "must not be empty")
	}
	var stored string
	if err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, id).Scan(&stored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.Wrapf(apperr.ErrNotFound, "user %s", id)
		}
		return errors.Wrap(err, "lookup password")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPassword)) != nil {
		return apperr.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), id)
	return errors.Wrap(err, "update password")
}

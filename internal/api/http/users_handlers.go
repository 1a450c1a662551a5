package http

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/mind-engage/mindengage-courses/internal/users"
)

type meView struct {
	users.User
	TotalLearners *int `json:"total_learners,omitempty"`
}

// GET /me
func MeHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		out := meView{User: u}
		if u.Role == users.RoleInstructor {
			n, err := d.Courses.InstructorLearnerCount(r.Context(), u.ID)
			if err != nil {
				d.fail(w, r, err)
				return
			}
			out.TotalLearners = &n
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /users?role=
func ListUsersHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var role users.Role
		if s := r.URL.Query().Get("role"); s != "" {
			var err error
			if role, err = users.ParseRole(s); err != nil {
				d.fail(w, r, err)
				return
			}
		}
		list, err := d.Users.List(r.Context(), role)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// POST /users
// JSON body creates one user. A multipart upload (field "file") with
// username,password,role rows creates many and reports each row.
func CreateUserHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file required", http.StatusBadRequest)
				return
			}
			defer f.Close()
			rows, err := readUserCSV(f)
			if err != nil {
				http.Error(w, "bad csv: "+err.Error(), http.StatusBadRequest)
				return
			}
			type result struct {
				Username string `json:"username"`
				ID       string `json:"id,omitempty"`
				Error    string `json:"error,omitempty"`
			}
			out := make([]result, 0, len(rows))
			for _, in := range rows {
				u, err := d.Users.Create(r.Context(), in)
				if err != nil {
					out = append(out, result{Username: in.Username, Error: err.Error()})
					continue
				}
				out = append(out, result{Username: u.Username, ID: u.ID})
			}
			writeJSON(w, http.StatusOK, out)
			return
		}

		var in users.NewUser
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := d.Users.Create(r.Context(), in)
		if err != nil {
			d.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, u)
	}
}

// readUserCSV parses username,password[,role] rows. A leading header row
// naming "username" is skipped.
func readUserCSV(rd io.Reader) ([]users.NewUser, error) {
	cr := csv.NewReader(rd)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	recs, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	var out []users.NewUser
	for i, rec := range recs {
		if i == 0 && len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "username") {
			continue
		}
		if len(rec) < 2 {
			continue
		}
		in := users.NewUser{Username: strings.TrimSpace(rec[0]), Password: rec[1]}
		if len(rec) > 2 {
			in.Role = users.Role(strings.TrimSpace(rec[2]))
		}
		out = append(out, in)
	}
	return out, nil
}

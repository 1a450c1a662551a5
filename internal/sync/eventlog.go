package syncx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/mind-engage/mindengage-courses/internal/db"
)

const (
	EventCourseCreated     = "CourseCreated"
	EventCourseDeleted     = "CourseDeleted"
	EventEnrollmentCreated = "EnrollmentCreated"
	EventSubmissionCreated = "SubmissionCreated"
)

type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// EventRepo appends audit events. Append takes the executor explicitly so
// the event commits or rolls back together with the write it describes.
type EventRepo struct{ siteID string }

func NewEventRepo(siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{siteID: siteID}
}

func (r *EventRepo) Append(ctx context.Context, q db.DBTX, typ, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "eventlog: marshal")
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, entity_key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(data), time.Now().Unix())
	return errors.Wrapf(err, "eventlog: append %s", typ)
}

// List returns events with seq > after, oldest first.
func (r *EventRepo) List(ctx context.Context, q db.DBTX, after int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := q.QueryContext(ctx,
		`SELECT seq, site_id, typ, entity_key, data, created_at
		   FROM event_log WHERE seq > $1 ORDER BY seq LIMIT $2`, after, limit)
	if err != nil {
		return nil, errors.Wrap(err, "eventlog: list")
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "eventlog: scan")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

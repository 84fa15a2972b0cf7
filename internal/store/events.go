package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mind-engage/mindengage-assess/internal/attempt"
)

const EventResultCreated = "ResultCreated"

type Event struct {
	Seq       int64  `json:"seq"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// resultCreatedData is the event body: enough to route the result without
// loading it.
type resultCreatedData struct {
	ResultID       string `json:"result_id"`
	AssessmentID   string `json:"assessment_id"`
	RespondentID   string `json:"respondent_id"`
	AssessmentType string `json:"assessment_type"`
	TypeCode       string `json:"type,omitempty"`
	Score          *int   `json:"score,omitempty"`
	Forced         bool   `json:"forced,omitempty"`
}

func resultCreatedEvent(siteID string, r attempt.Result) (Event, error) {
	b, err := json.Marshal(resultCreatedData{
		ResultID:       r.ID,
		AssessmentID:   r.AssessmentID,
		RespondentID:   r.RespondentID,
		AssessmentType: string(r.Payload.AssessmentType),
		TypeCode:       r.Payload.TypeCode,
		Score:          r.Payload.Score,
		Forced:         r.Forced,
	})
	if err != nil {
		return Event{}, err
	}
	return Event{SiteID: siteID, Type: EventResultCreated, Key: r.ID, DataJSON: string(b), CreatedAt: time.Now().UnixMilli()}, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendEvent(ctx context.Context, x execer, e Event) error {
	_, err := x.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, e.CreatedAt)
	return err
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-assess/internal/attempt"
	"github.com/mind-engage/mindengage-assess/internal/question"
	"github.com/mind-engage/mindengage-assess/internal/scoring"
)

// SQLStore works against both SQLite and Postgres; queries use $n
// placeholders, which both drivers accept.
type SQLStore struct {
	db     *sql.DB
	siteID string
}

func NewSQLStore(db *sql.DB, siteID string) *SQLStore {
	if siteID == "" {
		siteID = "local"
	}
	return &SQLStore{db: db, siteID: siteID}
}

/* ---------------- catalog ---------------- */

func (s *SQLStore) PutAssessment(ctx context.Context, a Assessment) error {
	if err := question.CheckOrders(a.Questions); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var limit sql.NullInt64
	if a.TimeLimitMinutes != nil {
		limit = sql.NullInt64{Int64: int64(*a.TimeLimitMinutes), Valid: true}
	}
	var threshold sql.NullFloat64
	if a.PassingThreshold != nil {
		threshold = sql.NullFloat64{Float64: *a.PassingThreshold, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO assessments (id,title,assessment_type,time_limit_minutes,passing_threshold,created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, assessment_type=EXCLUDED.assessment_type,
			time_limit_minutes=EXCLUDED.time_limit_minutes, passing_threshold=EXCLUDED.passing_threshold`,
		a.ID, a.Title, string(a.Type), limit, threshold, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE assessment_id=$1`, a.ID); err != nil {
		return err
	}
	for _, q := range a.Questions {
		var opts sql.NullString
		if len(q.RawOptions) > 0 {
			opts = sql.NullString{String: string(q.RawOptions), Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO questions (assessment_id,id,text,question_type,display_order,is_required,options_json,image_url)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			a.ID, q.ID, q.Text, string(q.Type), q.Order, q.IsRequired, opts, q.ImageURL)
		if err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLStore) LoadAssessmentConfig(ctx context.Context, id string) (attempt.AssessmentConfig, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,assessment_type,time_limit_minutes,passing_threshold FROM assessments WHERE id=$1`, id)
	var (
		c         attempt.AssessmentConfig
		typ       string
		limit     sql.NullInt64
		threshold sql.NullFloat64
	)
	if err := row.Scan(&c.ID, &c.Title, &typ, &limit, &threshold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attempt.AssessmentConfig{}, fmt.Errorf("assessment %s: %w", id, ErrNotFound)
		}
		return attempt.AssessmentConfig{}, err
	}
	c.Type = scoring.AssessmentType(typ)
	if limit.Valid {
		n := int(limit.Int64)
		c.TimeLimitMinutes = &n
	}
	if threshold.Valid {
		f := threshold.Float64
		c.PassingThreshold = &f
	}
	return c, nil
}

func (s *SQLStore) LoadQuestions(ctx context.Context, assessmentID string) ([]question.Question, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,text,question_type,display_order,is_required,options_json,image_url
		FROM questions WHERE assessment_id=$1 ORDER BY display_order`, assessmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []question.Question
	for rows.Next() {
		var (
			q    question.Question
			typ  string
			opts sql.NullString
		)
		if err := rows.Scan(&q.ID, &q.Text, &typ, &q.Order, &q.IsRequired, &opts, &q.ImageURL); err != nil {
			return nil, err
		}
		q.Type = question.QuestionType(typ)
		if opts.Valid && opts.String != "" {
			q.RawOptions = json.RawMessage(opts.String)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("questions for %s: %w", assessmentID, ErrNotFound)
	}
	return out, nil
}

/* ---------------- progress ---------------- */

func (s *SQLStore) LoadProgress(ctx context.Context, assessmentID, respondentID string) (attempt.Progress, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT answers_json,last_question_index,time_remaining_sec,saved_at
		FROM assessment_progress WHERE assessment_id=$1 AND respondent_id=$2`, assessmentID, respondentID)
	var (
		p       attempt.Progress
		ajson   string
		left    sql.NullInt64
		savedAt int64
	)
	if err := row.Scan(&ajson, &p.LastQuestionIndex, &left, &savedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return attempt.Progress{}, false, nil
		}
		return attempt.Progress{}, false, err
	}
	if err := json.Unmarshal([]byte(ajson), &p.Answers); err != nil {
		return attempt.Progress{}, false, fmt.Errorf("decode saved answers: %w", err)
	}
	if left.Valid {
		n := int(left.Int64)
		p.TimeRemainingSeconds = &n
	}
	p.SavedAt = time.UnixMilli(savedAt)
	return p, true, nil
}

func (s *SQLStore) SaveProgress(ctx context.Context, assessmentID, respondentID string, p attempt.Progress) error {
	ajson, err := json.Marshal(nonNil(p.Answers))
	if err != nil {
		return err
	}
	var left sql.NullInt64
	if p.TimeRemainingSeconds != nil {
		left = sql.NullInt64{Int64: int64(*p.TimeRemainingSeconds), Valid: true}
	}
	savedAt := p.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO assessment_progress (assessment_id,respondent_id,answers_json,last_question_index,time_remaining_sec,saved_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (assessment_id,respondent_id) DO UPDATE SET answers_json=EXCLUDED.answers_json,
			last_question_index=EXCLUDED.last_question_index, time_remaining_sec=EXCLUDED.time_remaining_sec, saved_at=EXCLUDED.saved_at`,
		assessmentID, respondentID, string(ajson), p.LastQuestionIndex, left, savedAt.UnixMilli())
	return err
}

func (s *SQLStore) ClearProgress(ctx context.Context, assessmentID, respondentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM assessment_progress WHERE assessment_id=$1 AND respondent_id=$2`, assessmentID, respondentID)
	return err
}

/* ---------------- results ---------------- */

// PersistResult inserts r and its ResultCreated event in one transaction.
// Re-persisting an existing id is a no-op.
func (s *SQLStore) PersistResult(ctx context.Context, r attempt.Result) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	pjson, err := json.Marshal(r.Payload)
	if err != nil {
		return "", err
	}
	ajson, err := json.Marshal(nonNil(r.Answers))
	if err != nil {
		return "", err
	}
	missing := r.MissingRequired
	if missing == nil {
		missing = []string{}
	}
	mjson, _ := json.Marshal(missing)
	completed := r.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO results (id,assessment_id,respondent_id,session_id,payload_json,answers_json,forced,missing_json,completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, r.AssessmentID, r.RespondentID, r.SessionID, string(pjson), string(ajson), r.Forced, string(mjson), completed.UnixMilli())
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return r.ID, nil
	}
	ev, err := resultCreatedEvent(s.siteID, r)
	if err != nil {
		return "", err
	}
	if err := appendEvent(ctx, tx, ev); err != nil {
		return "", fmt.Errorf("append event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return r.ID, nil
}

const resultCols = `id,assessment_id,respondent_id,session_id,payload_json,answers_json,forced,missing_json,completed_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanResult(sc scanner) (attempt.Result, error) {
	var (
		r                   attempt.Result
		pjson, ajson, mjson string
		completed           int64
	)
	if err := sc.Scan(&r.ID, &r.AssessmentID, &r.RespondentID, &r.SessionID, &pjson, &ajson, &r.Forced, &mjson, &completed); err != nil {
		return attempt.Result{}, err
	}
	if err := json.Unmarshal([]byte(pjson), &r.Payload); err != nil {
		return attempt.Result{}, fmt.Errorf("decode payload: %w", err)
	}
	if err := json.Unmarshal([]byte(ajson), &r.Answers); err != nil {
		return attempt.Result{}, fmt.Errorf("decode answers: %w", err)
	}
	_ = json.Unmarshal([]byte(mjson), &r.MissingRequired)
	if len(r.MissingRequired) == 0 {
		r.MissingRequired = nil
	}
	r.CompletedAt = time.UnixMilli(completed)
	return r, nil
}

func (s *SQLStore) GetResult(ctx context.Context, id string) (attempt.Result, error) {
	r, err := scanResult(s.db.QueryRowContext(ctx, `SELECT `+resultCols+` FROM results WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return attempt.Result{}, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	return r, err
}

// ListResults returns the respondent's results for an assessment, newest first.
func (s *SQLStore) ListResults(ctx context.Context, assessmentID, respondentID string) ([]attempt.Result, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+resultCols+` FROM results
		WHERE assessment_id=$1 AND respondent_id=$2 ORDER BY completed_at DESC, id`, assessmentID, respondentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []attempt.Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

/* ---------------- events ---------------- */

func (s *SQLStore) Events(ctx context.Context, afterSeq int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT seq,site_id,typ,key,data,created_at FROM event_log
		WHERE seq > $1 ORDER BY seq LIMIT $2`, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// Package cache keeps in-flight assessment progress in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mind-engage/mindengage-assess/internal/attempt"
)

const (
	keyPrefix       = "assess:progress:"
	envelopeVersion = 1
	DefaultTTL      = 7 * 24 * time.Hour
)

// Options locate the Redis server. The record TTL is given to
// NewProgressStore.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// ProgressStore saves one JSON envelope per (assessment, respondent). Every
// save refreshes the TTL, so abandoned attempts expire on their own.
type ProgressStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewProgressStore(client redis.Cmdable, ttl time.Duration) *ProgressStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ProgressStore{client: client, ttl: ttl}
}

// Dial connects and pings; the returned client should be closed on shutdown.
func Dial(ctx context.Context, o Options) (*redis.Client, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.Addr, err)
	}
	return c, nil
}

func progressKey(assessmentID, respondentID string) string {
	return keyPrefix + assessmentID + ":" + respondentID
}

type envelope struct {
	Version  int              `json:"v"`
	Progress attempt.Progress `json:"progress"`
}

func encode(p attempt.Progress) ([]byte, error) {
	if p.Answers == nil {
		p.Answers = map[string]string{}
	}
	return json.Marshal(envelope{Version: envelopeVersion, Progress: p})
}

func decode(b []byte) (attempt.Progress, error) {
	var e envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return attempt.Progress{}, err
	}
	if e.Version != envelopeVersion {
		return attempt.Progress{}, fmt.Errorf("unsupported progress envelope version %d", e.Version)
	}
	if e.Progress.Answers == nil {
		e.Progress.Answers = map[string]string{}
	}
	return e.Progress, nil
}

func (s *ProgressStore) LoadProgress(ctx context.Context, assessmentID, respondentID string) (attempt.Progress, bool, error) {
	b, err := s.client.Get(ctx, progressKey(assessmentID, respondentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return attempt.Progress{}, false, nil
	}
	if err != nil {
		return attempt.Progress{}, false, fmt.Errorf("redis get progress: %w", err)
	}
	p, err := decode(b)
	if err != nil {
		return attempt.Progress{}, false, fmt.Errorf("decode progress: %w", err)
	}
	return p, true, nil
}

func (s *ProgressStore) SaveProgress(ctx context.Context, assessmentID, respondentID string, p attempt.Progress) error {
	if p.SavedAt.IsZero() {
		p.SavedAt = time.Now()
	}
	b, err := encode(p)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, progressKey(assessmentID, respondentID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set progress: %w", err)
	}
	return nil
}

func (s *ProgressStore) ClearProgress(ctx context.Context, assessmentID, respondentID string) error {
	if err := s.client.Del(ctx, progressKey(assessmentID, respondentID)).Err(); err != nil {
		return fmt.Errorf("redis del progress: %w", err)
	}
	return nil
}

var (
	_ attempt.ProgressStore   = (*ProgressStore)(nil)
	_ attempt.ProgressClearer = (*ProgressStore)(nil)
)

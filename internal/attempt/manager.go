package attempt

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-assess/internal/scoring"
)

type sessionKey struct{ assessmentID, respondentID string }

type liveSession struct {
	s      *Session
	cancel context.CancelFunc
}

// Manager keeps at most one live session per (assessment, respondent) in
// this process and runs its background loops. A submitted session stays
// registered so repeated submits return its result; the next Open starts a
// retake.
type Manager struct {
	catalog Catalog
	deps    Deps
	opts    []SessionOption
	log     *zap.Logger

	mu   sync.Mutex
	live map[sessionKey]*liveSession
	wg   sync.WaitGroup
}

func NewManager(catalog Catalog, deps Deps, opts ...SessionOption) *Manager {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		catalog: catalog,
		deps:    deps,
		opts:    opts,
		log:     log,
		live:    map[sessionKey]*liveSession{},
	}
}

// Open returns the live session for the key, or starts one from persisted
// progress (or empty). A save-and-exit still writing is waited out first so
// the new session resumes from what it wrote.
func (m *Manager) Open(ctx context.Context, assessmentID, respondentID string) (*Session, error) {
	k := sessionKey{assessmentID, respondentID}
	for {
		seen, ok := m.Get(assessmentID, respondentID)
		if ok {
			if err := seen.awaitExit(ctx); err != nil {
				return nil, err
			}
			if seen.inPlay() {
				return seen, nil
			}
		}

		s, resumed, err := m.start(ctx, assessmentID, respondentID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		ls, ok := m.live[k]
		if ok && ls.s != seen {
			m.mu.Unlock()
			if ls.s.inPlay() {
				// Lost a race with a concurrent Open.
				return ls.s, nil
			}
			// Registered and left play after the progress was read; s may
			// be stale.
			continue
		}
		if ok {
			ls.cancel()
		}
		runCtx, cancel := context.WithCancel(context.Background())
		m.live[k] = &liveSession{s: s, cancel: cancel}
		m.wg.Add(1)
		m.mu.Unlock()

		go func() {
			defer m.wg.Done()
			_ = s.Run(runCtx)
			s.Settle()
			if s.State() != StateSubmitted {
				m.forget(k, s)
			}
		}()
		m.log.Info("session opened",
			zap.String("assessment_id", assessmentID),
			zap.String("respondent_id", respondentID),
			zap.String("session_id", s.ID),
			zap.Bool("resumed", resumed))
		return s, nil
	}
}

func (m *Manager) start(ctx context.Context, assessmentID, respondentID string) (*Session, bool, error) {
	cfg, err := m.catalog.LoadAssessmentConfig(ctx, assessmentID)
	if err != nil {
		return nil, false, fmt.Errorf("load assessment %s: %w", assessmentID, err)
	}
	if sup, ok := m.deps.Scorer.(interface {
		Supports(scoring.AssessmentType) bool
	}); ok && !sup.Supports(cfg.Type) {
		return nil, false, fmt.Errorf("assessment %s: %w: %q", assessmentID, scoring.ErrUnknownAssessmentType, cfg.Type)
	}
	qs, err := m.catalog.LoadQuestions(ctx, assessmentID)
	if err != nil {
		return nil, false, fmt.Errorf("load questions %s: %w", assessmentID, err)
	}
	opts := append([]SessionOption{}, m.opts...)
	saved, found, err := m.deps.Progress.LoadProgress(ctx, assessmentID, respondentID)
	if err != nil {
		// Starting empty would overwrite the saved record on the next autosave.
		return nil, false, fmt.Errorf("load progress: %w", err)
	}
	if found {
		opts = append(opts, WithProgress(saved))
	}
	s, err := NewSession(cfg, respondentID, qs, m.deps, opts...)
	if err != nil {
		return nil, false, err
	}
	return s, found, nil
}

// Get returns the registered session for the key, which may already be
// submitted or suspended.
func (m *Manager) Get(assessmentID, respondentID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ls, ok := m.live[sessionKey{assessmentID, respondentID}]
	if !ok {
		return nil, false
	}
	return ls.s, true
}

func (m *Manager) forget(k sessionKey, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ls, ok := m.live[k]; ok && ls.s == s {
		ls.cancel()
		delete(m.live, k)
	}
}

// Shutdown flushes every live session's progress and stops its loops.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	all := make([]*liveSession, 0, len(m.live))
	for _, ls := range m.live {
		all = append(all, ls)
	}
	m.mu.Unlock()

	for _, ls := range all {
		ls.s.Autosave(ctx)
		ls.cancel()
	}
	m.wg.Wait()
}

// Package registry owns the lifecycle of every analysis session: creation,
// lookup, teardown, and the periodic eviction of idle sessions.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/revela-app/revela/backend/internal/config"
	"github.com/revela-app/revela/backend/internal/dataset"
	"github.com/revela-app/revela/backend/internal/ingest"
	"github.com/revela-app/revela/backend/internal/logging"
	"github.com/revela-app/revela/backend/internal/model/capture"
	"github.com/revela-app/revela/backend/internal/model/session"
	"github.com/revela-app/revela/backend/internal/summary"
)

var (
	// ErrNotFound covers unknown, expired and explicitly ended sessions
	// alike; a destroyed id is indistinguishable from one never created.
	ErrNotFound = errors.New("session not found or expired")
	// ErrAlreadyExists rejects creation on a live id rather than silently
	// discarding another caller's in-flight session.
	ErrAlreadyExists = errors.New("session already exists")
	// ErrCapacity is returned when the active-session bound is reached.
	ErrCapacity = errors.New("session capacity exceeded")
	// ErrParse covers malformed capture payloads and table markup.
	ErrParse = errors.New("invalid data")
)

// Registry is the concurrent session store. It is constructed at startup and
// injected wherever sessions are needed, never ambient global state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session

	ttl        time.Duration
	maxActive  int
	sampleRows int

	cron *cron.Cron
	log  zerolog.Logger
}

// New builds an empty registry bounded by cfg. The reaper is not started;
// call StartReaper once the process is ready to run background work.
func New(cfg config.SessionConfig) *Registry {
	return &Registry{
		sessions:   make(map[string]*session.Session),
		ttl:        cfg.TTL,
		maxActive:  cfg.MaxActive,
		sampleRows: cfg.SampleRows,
		log:        logging.Component("registry"),
	}
}

// Create ingests the payload, computes its summary, and stores a new session
// under id. The id must not be live: a duplicate fails with ErrAlreadyExists.
func (r *Registry) Create(_ context.Context, id string, p capture.Payload, sourceURL string) (session.Summary, error) {
	if id == "" {
		return session.Summary{}, fmt.Errorf("%w: session id is required", ErrParse)
	}
	if err := p.Validate(); err != nil {
		return session.Summary{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	// Fast-fail before paying for ingestion; rechecked under the write
	// lock below.
	r.mu.RLock()
	_, dup := r.sessions[id]
	live := len(r.sessions)
	r.mu.RUnlock()
	if dup {
		return session.Summary{}, ErrAlreadyExists
	}
	if live >= r.maxActive {
		return session.Summary{}, ErrCapacity
	}

	store, sum, err := r.ingest(p)
	if err != nil {
		return session.Summary{}, err
	}

	sess := session.New(id, p.Kind, sourceURL, store, sum, time.Now())

	r.mu.Lock()
	if _, dup := r.sessions[id]; dup {
		r.mu.Unlock()
		if store != nil {
			store.Close()
		}
		return session.Summary{}, ErrAlreadyExists
	}
	if len(r.sessions) >= r.maxActive {
		r.mu.Unlock()
		if store != nil {
			store.Close()
		}
		return session.Summary{}, ErrCapacity
	}
	r.sessions[id] = sess
	r.mu.Unlock()

	r.log.Info().Str("session", id).Str("kind", string(p.Kind)).
		Int("rows", sum.RowCount).Int("columns", sum.ColumnCount).
		Msg("session created")
	return sum.Clone(), nil
}

func (r *Registry) ingest(p capture.Payload) (*dataset.Store, session.Summary, error) {
	if p.Kind != capture.KindTable {
		return nil, summary.FromCapture(p), nil
	}

	table, err := ingest.ParseHTML(p.HTML)
	if err != nil {
		return nil, session.Summary{}, fmt.Errorf("%w: %v", ErrParse, err)
	}

	store, err := dataset.Open(table.Columns, table.Rows)
	if err != nil {
		return nil, session.Summary{}, err
	}

	sum, err := summary.FromTable(store, r.sampleRows)
	if err != nil {
		store.Close()
		return nil, session.Summary{}, err
	}
	return store, sum, nil
}

// Get returns the live session for id and touches it. A session that was
// ended or evicted behaves exactly like one that never existed.
func (r *Registry) Get(id string) (*session.Session, error) {
	r.mu.RLock()
	sess := r.sessions[id]
	r.mu.RUnlock()
	if sess == nil {
		return nil, ErrNotFound
	}

	sess.Lock()
	defer sess.Unlock()
	if sess.Ended() {
		return nil, ErrNotFound
	}
	sess.Touch(time.Now())
	return sess, nil
}

// Touch refreshes the session's idle clock without returning it.
func (r *Registry) Touch(id string) error {
	_, err := r.Get(id)
	return err
}

// End destroys the session's store and removes it. Idempotent: ending an
// absent id reports alreadyGone rather than an error.
func (r *Registry) End(id string) (alreadyGone bool) {
	r.mu.Lock()
	sess := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if sess == nil {
		return true
	}

	sess.Lock()
	sess.End()
	sess.Unlock()

	r.log.Info().Str("session", id).Msg("session ended")
	return false
}

// ActiveCount returns a snapshot of the live session count.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep evicts every session idle longer than the TTL and returns how many
// were evicted. A session whose guard cannot be acquired without blocking is
// busy and is skipped until the next sweep, so the sweep never stalls on
// live traffic. Directly callable so the eviction logic is testable without
// the timer.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.RLock()
	candidates := make([]*session.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		candidates = append(candidates, sess)
	}
	r.mu.RUnlock()

	evicted := 0
	for _, sess := range candidates {
		if !sess.TryLock() {
			continue // busy, reconsidered next sweep
		}
		expired := !sess.Ended() && now.Sub(sess.LastAccessed()) > r.ttl
		if expired {
			sess.End()
			// Remove the entry before releasing the session lock so a
			// concurrent Create on the same id never sees a destroyed
			// session still registered.
			r.mu.Lock()
			if r.sessions[sess.ID] == sess {
				delete(r.sessions, sess.ID)
			}
			r.mu.Unlock()
		}
		sess.Unlock()

		if !expired {
			continue
		}
		evicted++
		r.log.Info().Str("session", sess.ID).Msg("evicted idle session")
	}
	return evicted
}

// StartReaper schedules Sweep on a fixed period.
func (r *Registry) StartReaper(interval time.Duration) error {
	c := cron.New()
	_, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if n := r.Sweep(time.Now()); n > 0 {
			r.log.Debug().Int("evicted", n).Msg("sweep complete")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reaper: %w", err)
	}
	c.Start()
	r.cron = c
	r.log.Info().Dur("interval", interval).Msg("reaper started")
	return nil
}

// Stop halts the reaper, waits for an in-flight sweep to finish, and drains
// every remaining session. Called once at process shutdown.
func (r *Registry) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
		r.cron = nil
	}

	r.mu.Lock()
	remaining := make([]*session.Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		remaining = append(remaining, sess)
	}
	r.sessions = make(map[string]*session.Session)
	r.mu.Unlock()

	for _, sess := range remaining {
		sess.Lock()
		sess.End()
		sess.Unlock()
	}
	if len(remaining) > 0 {
		r.log.Info().Int("sessions", len(remaining)).Msg("drained registry")
	}
}

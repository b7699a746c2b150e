// LOCK ORDERING INVARIANT:
// The registry mutex must never be held while waiting on a Session's lock,
// and a Session's lock must never be held while acquiring the registry
// mutex for anything other than a non-blocking map update. Callers take a
// Session pointer out of the registry first, release the registry, then
// lock the Session.
package session

import (
	"sync"
	"time"

	"github.com/revela-app/revela/backend/internal/dataset"
	"github.com/revela-app/revela/backend/internal/model/capture"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one entry of a session's conversation history.
type Turn struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is an ephemeral analysis context: one ingested capture, its
// summary, and the conversation about it. ID, Kind, SourceURL, CreatedAt
// and Summary are immutable after construction and safe to read without
// the lock; everything else requires Lock/TryLock.
type Session struct {
	ID        string
	Kind      capture.Kind
	SourceURL string
	CreatedAt time.Time
	Summary   Summary

	mu           sync.Mutex
	lastAccessed time.Time
	history      []Turn
	store        *dataset.Store
	ended        bool
}

// New constructs a live session owning store. The store handle must not be
// shared with any other session.
func New(id string, kind capture.Kind, sourceURL string, store *dataset.Store, summary Summary, now time.Time) *Session {
	return &Session{
		ID:           id,
		Kind:         kind,
		SourceURL:    sourceURL,
		CreatedAt:    now,
		Summary:      summary,
		lastAccessed: now,
		store:        store,
	}
}

// Lock acquires the session guard. Held for the full duration of any call
// that mutates the session, including the external inference call, so the
// reaper never evicts a session mid-use.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session guard.
func (s *Session) Unlock() { s.mu.Unlock() }

// TryLock acquires the guard without blocking. The reaper uses it to treat
// a busy session as ineligible for this sweep.
func (s *Session) TryLock() bool { return s.mu.TryLock() }

// Ended reports whether the session reached its terminal state.
// Caller must hold the lock.
func (s *Session) Ended() bool { return s.ended }

// Touch advances the last-accessed timestamp. It never moves backwards, so
// repeated touches under concurrent clock skew stay monotonic.
// Caller must hold the lock.
func (s *Session) Touch(now time.Time) {
	if now.After(s.lastAccessed) {
		s.lastAccessed = now
	}
}

// LastAccessed returns the last-accessed timestamp.
// Caller must hold the lock.
func (s *Session) LastAccessed() time.Time { return s.lastAccessed }

// Append adds turns to the conversation history.
// Caller must hold the lock.
func (s *Session) Append(turns ...Turn) {
	s.history = append(s.history, turns...)
}

// Recent returns a copy of the newest k turns. Older turns are the ones a
// bounded prompt context drops first.
// Caller must hold the lock.
func (s *Session) Recent(k int) []Turn {
	if k <= 0 || len(s.history) == 0 {
		return nil
	}
	start := 0
	if len(s.history) > k {
		start = len(s.history) - k
	}
	return append([]Turn(nil), s.history[start:]...)
}

// HistoryLen returns the number of recorded turns.
// Caller must hold the lock.
func (s *Session) HistoryLen() int { return len(s.history) }

// End marks the session terminal and destroys its dataset store. Idempotent;
// the store handle is closed exactly once.
// Caller must hold the lock.
func (s *Session) End() {
	if s.ended {
		return
	}
	s.ended = true
	if s.store != nil {
		_ = s.store.Close()
		s.store = nil
	}
}

package session_test

import (
	"testing"
	"time"

	"github.com/revela-app/revela/backend/internal/model/capture"
	"github.com/revela-app/revela/backend/internal/model/session"
)

func newSession() *session.Session {
	return session.New("s", capture.KindTable, "", nil, session.Summary{}, time.Now())
}

func TestTouchMonotonic(t *testing.T) {
	sess := newSession()

	sess.Lock()
	defer sess.Unlock()

	base := sess.LastAccessed()
	later := base.Add(time.Minute)
	sess.Touch(later)
	if !sess.LastAccessed().Equal(later) {
		t.Fatalf("touch did not advance: %v", sess.LastAccessed())
	}

	sess.Touch(base)
	if !sess.LastAccessed().Equal(later) {
		t.Fatalf("touch moved backwards: %v", sess.LastAccessed())
	}
}

func TestRecentReturnsNewestTurns(t *testing.T) {
	sess := newSession()

	sess.Lock()
	defer sess.Unlock()

	for i := 0; i < 7; i++ {
		sess.Append(session.Turn{Role: session.RoleUser, Text: string(rune('a' + i))})
	}

	recent := sess.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(recent))
	}
	if recent[0].Text != "e" || recent[2].Text != "g" {
		t.Fatalf("oldest turns should be dropped first: %v", recent)
	}

	// The copy must not alias the history.
	recent[0].Text = "mutated"
	if sess.Recent(3)[0].Text == "mutated" {
		t.Fatal("Recent returned a view into the history")
	}
}

func TestEndIdempotent(t *testing.T) {
	sess := newSession()

	sess.Lock()
	defer sess.Unlock()

	if sess.Ended() {
		t.Fatal("new session should be live")
	}
	sess.End()
	sess.End()
	if !sess.Ended() {
		t.Fatal("session should be terminal after End")
	}
}

func TestTryLockReportsBusy(t *testing.T) {
	sess := newSession()

	sess.Lock()
	if sess.TryLock() {
		t.Fatal("TryLock should fail while the session is held")
	}
	sess.Unlock()

	if !sess.TryLock() {
		t.Fatal("TryLock should succeed on an idle session")
	}
	sess.Unlock()
}

func TestSummaryCloneIsDeep(t *testing.T) {
	n := session.NumericStats{Min: 1, Max: 3, Mean: 2}
	sum := session.Summary{
		Columns:    []string{"a"},
		SampleRows: [][]string{{"x"}},
		Stats:      map[string]session.ColumnStats{"a": {Numeric: &n}},
	}

	clone := sum.Clone()
	clone.Columns[0] = "b"
	clone.SampleRows[0][0] = "y"
	clone.Stats["a"].Numeric.Max = 99

	if sum.Columns[0] != "a" || sum.SampleRows[0][0] != "x" {
		t.Fatal("clone aliased summary slices")
	}
	if sum.Stats["a"].Numeric.Max != 3 {
		t.Fatal("clone aliased numeric stats")
	}
}

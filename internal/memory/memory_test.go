package memory

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "conversation_state.json"), testLogger())
}

func TestRemember_BoundedAtCapacity(t *testing.T) {
	s := newTestStore(t)

	for i := 1; i <= 7; i++ {
		if err := s.Remember(fmt.Sprintf("question %d", i), fmt.Sprintf("réponse %d", i), nil); err != nil {
			t.Fatalf("Remember(%d) error = %v", i, err)
		}
	}

	history := s.History()
	if len(history) != Capacity {
		t.Fatalf("len(History()) = %d, want %d", len(history), Capacity)
	}
	// Oldest two evicted, entries 3..7 remain
	if history[0].User != "question 3" {
		t.Errorf("oldest entry = %q, want question 3", history[0].User)
	}
	if history[Capacity-1].User != "question 7" {
		t.Errorf("newest entry = %q, want question 7", history[Capacity-1].User)
	}
}

func TestRemember_BlankExchangeIsNoOp(t *testing.T) {
	s := newTestStore(t)

	if err := s.Remember("   ", "\t", nil); err != nil {
		t.Fatalf("Remember(blank) error = %v", err)
	}
	if got := len(s.History()); got != 0 {
		t.Errorf("len(History()) = %d, want 0", got)
	}
}

func TestRemember_OneBlankSideKept(t *testing.T) {
	s := newTestStore(t)

	if err := s.Remember("question sans réponse", "", nil); err != nil {
		t.Fatal(err)
	}
	history := s.History()
	if len(history) != 1 || history[0].User != "question sans réponse" {
		t.Errorf("History() = %v, want single user-only entry", history)
	}
}

func TestSummary_Format(t *testing.T) {
	s := newTestStore(t)
	s.now = func() time.Time {
		return time.Date(2025, 3, 12, 14, 30, 0, 0, time.UTC)
	}

	if err := s.Remember("Bonjour", "Bonjour, je suis Passerelle.", map[string]any{"intent": "greeting"}); err != nil {
		t.Fatal(err)
	}

	got := s.Summary(5)
	want := "[2025-03-12 14:30:00] U (intent=greeting): Bonjour\nA: Bonjour, je suis Passerelle."
	if got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestSummary_EmptyHistory(t *testing.T) {
	s := newTestStore(t)
	if got := s.Summary(5); got != "" {
		t.Errorf("Summary() = %q, want empty", got)
	}
}

func TestSummary_LimitsItems(t *testing.T) {
	s := newTestStore(t)
	for i := 1; i <= 4; i++ {
		s.Remember(fmt.Sprintf("tour %d", i), "ok", nil)
	}

	got := s.Summary(2)
	if strings.Contains(got, "tour 2") {
		t.Errorf("Summary(2) contains evicted turn: %q", got)
	}
	if !strings.Contains(got, "tour 3") || !strings.Contains(got, "tour 4") {
		t.Errorf("Summary(2) = %q, want last two turns", got)
	}
}

func TestStore_PersistsAcrossRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation_state.json")

	s := NewStore(path, testLogger())
	if err := s.Remember("première question", "première réponse", nil); err != nil {
		t.Fatal(err)
	}

	reopened := NewStore(path, testLogger())
	history := reopened.History()
	if len(history) != 1 || history[0].Assistant != "première réponse" {
		t.Errorf("History() after reopen = %v, want the stored exchange", history)
	}
}

func TestStore_CorruptedFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation_state.json")
	if err := os.WriteFile(path, []byte("not json at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, testLogger())
	if got := len(s.History()); got != 0 {
		t.Errorf("len(History()) = %d, want 0 for corrupted state", got)
	}
	if err := s.Remember("nouvelle question", "nouvelle réponse", nil); err != nil {
		t.Errorf("Remember() after corruption error = %v", err)
	}
}

func TestStore_OversizedFileTrimmedOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conversation_state.json")

	var sb strings.Builder
	sb.WriteString(`{"history":[`)
	for i := 1; i <= 9; i++ {
		if i > 1 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, `{"ts":"","user":"q%d","assistant":"r%d"}`, i, i)
	}
	sb.WriteString("]}")
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	s := NewStore(path, testLogger())
	history := s.History()
	if len(history) != Capacity {
		t.Fatalf("len(History()) = %d, want %d", len(history), Capacity)
	}
	if history[0].User != "q5" {
		t.Errorf("oldest entry = %q, want q5", history[0].User)
	}
}

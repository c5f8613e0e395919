// Package journal provides the per-day JSON-lines journal and the bounded
// in-memory event buffer that mirrors into it.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrPersist indicates a journal line could not be appended.
var ErrPersist = errors.New("journal persistence failed")

// Entry is one journal line.
type Entry struct {
	TS         string              `json:"ts"`
	Kind       string              `json:"kind"`
	Scope      string              `json:"scope"`
	Data       map[string]any      `json:"data"`
	Safeguards map[string][]string `json:"safeguards"`
}

// defaultSafeguards tags each line with the governance frame it was
// written under.
func defaultSafeguards() map[string][]string {
	return map[string][]string{
		"6S": {"sécurité", "sobriété"},
		"6R": {"respect", "responsabilité"},
	}
}

// Writer appends JSON lines to one file per day. Safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewWriter creates a journal writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, now: time.Now}
}

func (w *Writer) fileForToday() string {
	return filepath.Join(w.dir, fmt.Sprintf("journal_%s.jsonl", w.now().Format("20060102")))
}

// Record appends one entry to today's journal file. Persistence failures
// surface as ErrPersist rather than being swallowed.
func (w *Writer) Record(kind string, data map[string]any, scope string) (Entry, error) {
	if scope == "" {
		scope = "system"
	}
	entry := Entry{
		TS:         w.now().Format("2006-01-02 15:04:05"),
		Kind:       kind,
		Scope:      scope,
		Data:       data,
		Safeguards: defaultSafeguards(),
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	f, err := os.OpenFile(w.fileForToday(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return entry, nil
}

// Package memory keeps a bounded, persisted short-term conversation
// history used as context for the generation router.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Capacity is the fixed number of exchanges retained. Older entries are
// evicted from the front.
const Capacity = 5

// ErrPersist indicates the history could not be written to disk.
var ErrPersist = errors.New("memory persistence failed")

// Entry is one user/assistant exchange.
type Entry struct {
	TS        string         `json:"ts"`
	User      string         `json:"user"`
	Assistant string         `json:"assistant"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// persistedState is the on-disk JSON shape: the whole bounded sequence,
// rewritten on every mutation.
type persistedState struct {
	History []Entry `json:"history"`
}

// Store owns the bounded history. All mutation happens under a single
// exclusive lock covering the read-modify-persist sequence.
type Store struct {
	mu      sync.Mutex
	path    string
	logger  *slog.Logger
	history []Entry
	now     func() time.Time
}

// NewStore loads the history from path. A missing or malformed file
// degrades to an empty history with a warning.
func NewStore(path string, logger *slog.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
	s.load()
	return s
}

func (s *Store) load() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("memory file unreadable, starting empty", "path", s.path, "error", err)
		}
		return
	}
	var state persistedState
	if err := json.Unmarshal(raw, &state); err != nil {
		s.logger.Warn("memory file corrupted, starting empty", "path", s.path, "error", err)
		return
	}
	s.history = state.History
	if len(s.history) > Capacity {
		s.history = s.history[len(s.history)-Capacity:]
	}
}

// Remember appends one exchange. A call with both texts blank after
// trimming is a no-op. The full bounded sequence is rewritten to disk
// before returning; write failures surface as ErrPersist.
func (s *Store) Remember(userText, assistantText string, meta map[string]any) error {
	userText = strings.TrimSpace(userText)
	assistantText = strings.TrimSpace(assistantText)
	if userText == "" && assistantText == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := Entry{
		TS:        s.now().Format("2006-01-02 15:04:05"),
		User:      userText,
		Assistant: assistantText,
	}
	if len(meta) > 0 {
		entry.Meta = meta
	}
	s.history = append(s.history, entry)
	if len(s.history) > Capacity {
		s.history = s.history[len(s.history)-Capacity:]
	}
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	raw, err := json.MarshalIndent(persistedState{History: s.history}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// History returns the retained exchanges, oldest first.
func (s *Store) History() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.history))
	copy(out, s.history)
	return out
}

// Summary renders the last maxItems exchanges as alternating U:/A: lines.
// User lines carry an (intent=...) tag when present in the entry meta and
// a bracketed timestamp when available. Empty history yields "".
func (s *Store) Summary(maxItems int) string {
	history := s.History()
	if len(history) > maxItems {
		history = history[len(history)-maxItems:]
	}
	if len(history) == 0 {
		return ""
	}

	var lines []string
	for _, item := range history {
		tag := ""
		if intent, ok := item.Meta["intent"].(string); ok && intent != "" {
			tag = fmt.Sprintf(" (intent=%s)", intent)
		}
		if item.TS != "" {
			lines = append(lines, fmt.Sprintf("[%s] U%s: %s", item.TS, tag, item.User))
		} else {
			lines = append(lines, fmt.Sprintf("U%s: %s", tag, item.User))
		}
		if item.Assistant != "" {
			lines = append(lines, "A: "+item.Assistant)
		}
	}
	return strings.Join(lines, "\n")
}

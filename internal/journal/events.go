package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one gateway event held in the bounded buffer.
type Event struct {
	ID   string         `json:"id"`
	TS   string         `json:"ts"`
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

// EventStore keeps the last capacity events and mirrors each one to the
// journal. Mirror failures are logged, not propagated: the event path must
// never break a chat turn.
type EventStore struct {
	mu       sync.Mutex
	capacity int
	buffer   []Event
	journal  *Writer
	logger   *slog.Logger
	now      func() time.Time
}

// NewEventStore creates a store bounded to capacity events.
func NewEventStore(capacity int, journal *Writer, logger *slog.Logger) *EventStore {
	if capacity < 1 {
		capacity = 500
	}
	return &EventStore{
		capacity: capacity,
		journal:  journal,
		logger:   logger,
		now:      time.Now,
	}
}

// Append records one event, evicting the oldest past capacity.
func (s *EventStore) Append(eventType string, data map[string]any) Event {
	event := Event{
		ID:   uuid.NewString(),
		TS:   s.now().Format("2006-01-02 15:04:05"),
		Type: eventType,
		Data: data,
	}

	s.mu.Lock()
	s.buffer = append(s.buffer, event)
	if len(s.buffer) > s.capacity {
		s.buffer = s.buffer[len(s.buffer)-s.capacity:]
	}
	s.mu.Unlock()

	if s.journal != nil {
		if _, err := s.journal.Record(eventType, data, "event"); err != nil {
			s.logger.Error("event journal write failed", "type", eventType, "error", err)
		}
	}
	return event
}

// Snapshot returns up to limit most recent events, oldest first. A
// non-positive limit returns everything retained.
func (s *EventStore) Snapshot(limit int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.buffer
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	out := make([]Event, len(items))
	copy(out, items)
	return out
}

// Heartbeat posts PING events at the given interval until ctx is done.
// Used by the long-running server surface.
func (s *EventStore) Heartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			s.Append("PING", map[string]any{"n": n})
		}
	}
}

// Package governance enforces the sovereign-region policy: binary
// allow/deny decisions for flagged actions, each one audited in an
// append-only, hash-sealed trail. The trail is written to local storage
// only and is never transmitted externally.
package governance

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level grades audit entries.
type Level string

const (
	LevelCritical Level = "CRITICAL"
	LevelHigh     Level = "HIGH"
	LevelMedium   Level = "MEDIUM"
	LevelDebug    Level = "DEBUG"
)

// Export-type actions are always denied, without exception.
var exportActions = map[string]bool{
	"export_data":         true,
	"export_conversation": true,
	"export_document":     true,
}

// External destinations blocked by substring match.
var blockedExternal = []string{
	"openai.com",
	"anthropic.com",
	"huggingface.co",
	"cloud.google.com",
	"aws.amazon.com",
}

// Context identifies the caller of a governed action.
type Context struct {
	UserID    string `json:"user_id"`
	UserRole  string `json:"user_role"`
	SessionID string `json:"session_id"`
	Region    string `json:"region"`
}

// Request describes the action to validate.
type Request struct {
	Action       string         `json:"action"`
	ExternalCall bool           `json:"external_call"`
	Destination  string         `json:"destination,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Decision is the outcome of a validation. A denial is not an error.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// AuditEntry is one sealed, immutable trail record.
type AuditEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     Level          `json:"level"`
	Action    string         `json:"action"`
	User      string         `json:"user"`
	Details   map[string]any `json:"details"`
	Integrity string         `json:"hash"`
}

// seal computes the SHA-256 integrity hash over the canonical JSON
// serialization of the entry fields. Computed once at creation, never
// recomputed.
func (e *AuditEntry) seal() {
	canonical, _ := json.Marshal(map[string]any{
		"ts":      e.Timestamp,
		"level":   string(e.Level),
		"action":  e.Action,
		"user":    e.User,
		"details": e.Details,
	})
	sum := sha256.Sum256(canonical)
	e.Integrity = hex.EncodeToString(sum[:])
}

// Summary aggregates the in-memory audit trail.
type Summary struct {
	Total     int    `json:"total_audit_entries"`
	Critical  int    `json:"critical_events"`
	Blocked   int    `json:"blocked_attempts"`
	LastEntry string `json:"last_entry,omitempty"`
	Region    string `json:"region"`
}

// Gate validates flagged actions against the fixed policy. The audit
// buffer is bounded: oldest entries are evicted past the capacity ceiling.
type Gate struct {
	mu       sync.Mutex
	region   string
	auditDir string
	capacity int
	entries  []AuditEntry
	now      func() time.Time
}

// NewGate creates a gate for the given sovereign region. capacity bounds
// the in-memory audit buffer; values < 1 fall back to a safe default.
func NewGate(region, auditDir string, capacity int) *Gate {
	if capacity < 1 {
		capacity = 2000
	}
	return &Gate{
		region:   region,
		auditDir: auditDir,
		capacity: capacity,
		now:      time.Now,
	}
}

// Validate checks one action. Every branch, the allow path included,
// appends exactly one audit entry.
func (g *Gate) Validate(ctx Context, req Request) Decision {
	details := map[string]any{
		"action":        req.Action,
		"external_call": req.ExternalCall,
	}
	if req.Destination != "" {
		details["destination"] = req.Destination
	}

	if ctx.Region != g.region {
		details["result"] = "DENIED"
		g.append(LevelCritical, "REGION_CHECK_FAILED", ctx.UserID, details)
		return Decision{Allowed: false, Reason: "Unauthorized region"}
	}

	if exportActions[req.Action] {
		details["result"] = "DENIED"
		g.append(LevelCritical, "EXPORT_ATTEMPT", ctx.UserID, details)
		return Decision{Allowed: false, Reason: "Data export forbidden"}
	}

	if req.ExternalCall && req.Destination != "" {
		for _, blocked := range blockedExternal {
			if strings.Contains(req.Destination, blocked) {
				details["result"] = "DENIED"
				details["matched"] = blocked
				g.append(LevelCritical, "EXTERNAL_BLOCKED", ctx.UserID, details)
				return Decision{Allowed: false, Reason: "External destination blocked"}
			}
		}
	}

	g.append(LevelMedium, "REQUEST_ALLOWED", ctx.UserID, details)
	return Decision{Allowed: true, Reason: "Request compliant with governance"}
}

func (g *Gate) append(level Level, action, user string, details map[string]any) {
	entry := AuditEntry{
		Timestamp: g.now().Format(time.RFC3339),
		Level:     level,
		Action:    action,
		User:      user,
		Details:   details,
	}
	entry.seal()

	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append(g.entries, entry)
	if len(g.entries) > g.capacity {
		g.entries = g.entries[len(g.entries)-g.capacity:]
	}
}

// Entries returns a copy of the in-memory trail, oldest first.
func (g *Gate) Entries() []AuditEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]AuditEntry, len(g.entries))
	copy(out, g.entries)
	return out
}

// AuditSummary aggregates the in-memory trail.
func (g *Gate) AuditSummary() Summary {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Summary{Total: len(g.entries), Region: g.region}
	for _, e := range g.entries {
		if e.Level == LevelCritical {
			s.Critical++
		}
		if e.Details["result"] == "DENIED" {
			s.Blocked++
		}
	}
	if len(g.entries) > 0 {
		s.LastEntry = g.entries[len(g.entries)-1].Timestamp
	}
	return s
}

// Export writes the trail as append-only JSON lines under the local audit
// directory and returns the file path. The trail never leaves local storage.
func (g *Gate) Export() (string, error) {
	entries := g.Entries()

	if err := os.MkdirAll(g.auditDir, 0o755); err != nil {
		return "", fmt.Errorf("create audit dir: %w", err)
	}
	path := filepath.Join(g.auditDir, fmt.Sprintf("audit_%s.jsonl", g.now().Format("20060102_150405")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, entry := range entries {
		if err := enc.Encode(entry); err != nil {
			return "", fmt.Errorf("write audit entry: %w", err)
		}
	}
	return path, nil
}

// Package provider defines the generation provider contract shared by the
// local and external backends, plus the deterministic template generator
// used as the last-resort fallback.
package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

// Generation modes.
const (
	ModeNormal  = "normal"
	ModeResume  = "resume"
	ModeActions = "actions"
)

// Reply origin tags.
const (
	UsedLocal = "local"
	UsedCloud = "cloud"
)

// Typed provider errors. The router pattern-matches on these to decide
// fallback behaviour.
var (
	// ErrTimeout indicates the provider did not answer within its deadline.
	ErrTimeout = errors.New("provider timeout")

	// ErrAuth indicates the provider rejected the credentials.
	ErrAuth = errors.New("provider authentication failed")

	// ErrEmptyReply indicates a success status carrying no usable text.
	ErrEmptyReply = errors.New("provider returned an empty reply")

	// ErrMalformed indicates a response that could not be interpreted.
	ErrMalformed = errors.New("provider returned a malformed response")

	// ErrNoValidMessages indicates no turn had both a role and content.
	ErrNoValidMessages = errors.New("no valid messages to send")
)

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request carries the turns and generation parameters for one call.
type Request struct {
	Messages    []Message
	Mode        string
	Temperature float64
	MaxTokens   int
}

// Reply is the outcome of a successful generation call.
type Reply struct {
	Text string
	Used string // UsedLocal or UsedCloud
}

// Provider is the uniform contract both generation backends satisfy.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Reply, error)
}

// toContent converts turns to langchaingo message contents. Unknown roles
// are treated as user turns.
func toContent(messages []Message) []llms.MessageContent {
	out := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case "system":
			role = llms.ChatMessageTypeSystem
		case "assistant":
			role = llms.ChatMessageTypeAI
		}
		out = append(out, llms.TextParts(role, m.Content))
	}
	return out
}

// validMessages keeps only turns with both a role and content.
func validMessages(messages []Message) []Message {
	out := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != "" && m.Content != "" {
			out = append(out, m)
		}
	}
	return out
}

// lastUserText returns the content of the most recent user turn.
func lastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// classify maps transport-level failures onto the typed error set.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	low := strings.ToLower(err.Error())
	switch {
	case strings.Contains(low, "timeout") || strings.Contains(low, "deadline"):
		return ErrTimeout
	case strings.Contains(low, "unauthorized") || strings.Contains(low, "api key") || strings.Contains(low, "401"):
		return ErrAuth
	}
	return err
}

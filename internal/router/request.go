package router

import (
	"encoding/json"
	"errors"
	"fmt"

	"passerelle/internal/provider"
)

// ErrMalformedRequest indicates a payload that cannot be parsed into
// conversation turns. It is the only hard failure the chat path produces.
var ErrMalformedRequest = errors.New("malformed chat request")

// Request defaults.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 512
	DefaultTopK        = 3
)

// ChatRequest is the typed chat payload accepted by the router. Unknown
// shapes are rejected at the boundary instead of being checked deep in
// the pipeline.
type ChatRequest struct {
	Messages    []provider.Message `json:"messages"`
	Mode        string             `json:"mode"`
	Temperature float64            `json:"temperature"`
	MaxTokens   int                `json:"max_tokens"`
	RAGTopK     int                `json:"rag_top_k"`

	// Any one of these set to true is an explicit escalation request.
	UseExternal    bool `json:"use_external"`
	External       bool `json:"external"`
	ForceExternal  bool `json:"force_external"`
	PreferExternal bool `json:"prefer_external"`
}

// ParseRequest decodes and normalizes a raw chat payload.
func ParseRequest(raw []byte) (ChatRequest, error) {
	var req ChatRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return ChatRequest{}, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return req.normalized()
}

// normalized applies defaults and validates the turns.
func (r ChatRequest) normalized() (ChatRequest, error) {
	if len(r.Messages) == 0 {
		return ChatRequest{}, fmt.Errorf("%w: no messages", ErrMalformedRequest)
	}
	switch r.Mode {
	case provider.ModeNormal, provider.ModeResume, provider.ModeActions:
	default:
		r.Mode = provider.ModeNormal
	}
	if r.Temperature <= 0 {
		r.Temperature = DefaultTemperature
	}
	if r.MaxTokens <= 0 {
		r.MaxTokens = DefaultMaxTokens
	}
	if r.RAGTopK <= 0 {
		r.RAGTopK = DefaultTopK
	}
	return r, nil
}

// ExternalRequested reports whether the caller explicitly asked for the
// external provider through any of the accepted flags.
func (r ChatRequest) ExternalRequested() bool {
	return r.UseExternal || r.External || r.ForceExternal || r.PreferExternal
}

// LastUserText returns the content of the most recent user turn.
func (r ChatRequest) LastUserText() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			return r.Messages[i].Content
		}
	}
	return ""
}

// Package router turns a chat request into a reply: it enriches the
// conversation with memory, intent and retrieval context, runs the local
// provider, and escalates to the external provider under the configured
// policy. For a well-formed request it never fails; worst case it answers
// with the deterministic template.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"passerelle/internal/config"
	"passerelle/internal/index"
	"passerelle/internal/intent"
	"passerelle/internal/journal"
	"passerelle/internal/memory"
	"passerelle/internal/metrics"
	"passerelle/internal/provider"
)

// personaPreamble always leads the enriched prompt.
const personaPreamble = "Tu es Passerelle, assistant local souverain. Style public-secteur : clair, sobre, orienté action. " +
	"Tu réponds en t'appuyant d'abord sur le contexte interne fourni."

// snippetLimit bounds retrieval snippets injected into the prompt.
const snippetLimit = 220

// externalErrorLimit bounds the error message recorded in the trace.
const externalErrorLimit = 200

// Trace is the diagnostic record of one routing decision. It lives only
// inside the chat result and the journal event built from it.
type Trace struct {
	Policy            string        `json:"policy"`
	LocalProvider     string        `json:"local_provider"`
	LocalLen          int           `json:"local_len"`
	ExternalRequested bool          `json:"external_requested"`
	ExternalAttempted bool          `json:"external_attempted"`
	ExternalSuccess   bool          `json:"external_success"`
	ExternalProvider  string        `json:"external_provider,omitempty"`
	MemoryUsed        bool          `json:"memory_used"`
	Intent            intent.Result `json:"intent"`
	ExternalError     string        `json:"external_error,omitempty"`
}

// Result is the chat outcome returned to the caller.
type Result struct {
	Reply    string `json:"reply"`
	Provider string `json:"provider"`
	Trace    Trace  `json:"trace"`
}

// Deps holds the collaborators the router needs. Passed explicitly: no
// package-level state.
type Deps struct {
	Local    provider.Provider
	External provider.Provider // nil when escalation is disabled
	Index    *index.Index
	Memory   *memory.Store
	Events   *journal.EventStore
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

// Router orchestrates one chat turn at a time.
type Router struct {
	cfg      config.Config
	local    provider.Provider
	fallback provider.Provider
	external provider.Provider
	index    *index.Index
	memory   *memory.Store
	events   *journal.EventStore
	metrics  *metrics.Collector
	logger   *slog.Logger
}

// New creates a router. deps.Local may be nil, in which case every request
// is answered by the template generator.
func New(cfg config.Config, deps Deps) *Router {
	return &Router{
		cfg:      cfg,
		local:    deps.Local,
		fallback: provider.Template{},
		external: deps.External,
		index:    deps.Index,
		memory:   deps.Memory,
		events:   deps.Events,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// Chat processes one request end to end. The only error it returns is
// ErrMalformedRequest; every provider-side condition is recovered.
func (r *Router) Chat(ctx context.Context, req ChatRequest) (Result, error) {
	req, err := req.normalized()
	if err != nil {
		return Result{}, err
	}

	lastUser := req.LastUserText()
	analysis := intent.Analyze(lastUser)

	// Retrieval is seeded by the raw user text plus extracted keywords.
	seed := strings.TrimSpace(lastUser + " " + strings.Join(analysis.Keywords, " "))
	searchStart := time.Now()
	hits := r.index.Search(seed, req.RAGTopK)
	r.metrics.RecordTiming(metrics.OpIndexSearch, time.Since(searchStart))

	summary := r.memory.Summary(memory.Capacity)

	genReq := provider.Request{
		Messages:    r.enrich(req.Messages, analysis, hits, summary),
		Mode:        req.Mode,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	trace := Trace{
		Policy:            r.cfg.Policy,
		ExternalRequested: req.ExternalRequested(),
		MemoryUsed:        summary != "",
		Intent:            analysis,
	}

	reply, degraded := r.localAttempt(ctx, genReq)
	if degraded {
		trace.LocalProvider = r.fallback.Name()
	} else {
		trace.LocalProvider = r.local.Name()
	}
	trace.LocalLen = len(reply.Text)

	finalText := reply.Text
	finalProvider := trace.LocalProvider

	if r.shouldEscalate(req, degraded) {
		trace.ExternalAttempted = true
		extStart := time.Now()
		ext, err := r.external.Generate(ctx, genReq)
		if err != nil {
			// Escalation failure is always soft: keep the local result.
			r.metrics.RecordError(metrics.OpExternalGenerate)
			r.logger.Warn("external provider failed, keeping local reply",
				"provider", r.external.Name(), "error", err)
			trace.ExternalError = truncate(err.Error(), externalErrorLimit)
		} else {
			r.metrics.RecordTiming(metrics.OpExternalGenerate, time.Since(extStart))
			trace.ExternalSuccess = true
			trace.ExternalProvider = r.external.Name()
			finalText = ext.Text
			finalProvider = r.external.Name()
		}
	}

	r.persistTurn(lastUser, finalText, analysis)
	r.events.Append("CHAT", map[string]any{
		"provider":           finalProvider,
		"policy":             r.cfg.Policy,
		"len":                len(finalText),
		"intent":             string(analysis.Intent),
		"external_attempted": trace.ExternalAttempted,
		"external_success":   trace.ExternalSuccess,
	})

	return Result{Reply: finalText, Provider: finalProvider, Trace: trace}, nil
}

// localAttempt runs the local provider and degrades to the template on any
// typed error. This path always produces some text.
func (r *Router) localAttempt(ctx context.Context, req provider.Request) (provider.Reply, bool) {
	if r.local == nil {
		reply, _ := r.fallback.Generate(ctx, req)
		return reply, true
	}

	start := time.Now()
	reply, err := r.local.Generate(ctx, req)
	if err != nil {
		r.metrics.RecordError(metrics.OpLocalGenerate)
		r.logger.Warn("local provider degraded to template", "provider", r.local.Name(), "error", err)
		reply, _ = r.fallback.Generate(ctx, req)
		return reply, true
	}
	r.metrics.RecordTiming(metrics.OpLocalGenerate, time.Since(start))
	return reply, false
}

// shouldEscalate applies the configured policy. local_first and on_request
// deliberately share the default branch.
func (r *Router) shouldEscalate(req ChatRequest, degraded bool) bool {
	if r.external == nil {
		return false
	}
	switch r.cfg.Policy {
	case config.PolicyExternalFirst, config.PolicyAlways:
		return true
	case config.PolicyFallback:
		return degraded || req.ExternalRequested()
	default:
		return req.ExternalRequested() || (degraded && r.cfg.ExternalOnFallback)
	}
}

// enrich prepends the system-context turns. The relative order is a hard
// contract: persona, intent line, retrieval block, memory block, then the
// original turns.
func (r *Router) enrich(messages []provider.Message, analysis intent.Result, hits []index.Result, summary string) []provider.Message {
	system := []provider.Message{{Role: "system", Content: personaPreamble}}

	if analysis.Intent != intent.Empty {
		system = append(system, provider.Message{
			Role: "system",
			Content: fmt.Sprintf("Analyse d'intention : %s (confiance %.2f, urgent=%t)",
				analysis.Intent, analysis.Confidence, analysis.Urgent),
		})
	}

	if len(hits) > 0 {
		var b strings.Builder
		b.WriteString("Documents internes pertinents :")
		for i, hit := range hits {
			fmt.Fprintf(&b, "\n%d. [%s] (score %.3f) %s", i+1, hit.DocID, hit.Score, snippet(hit.Text))
		}
		system = append(system, provider.Message{Role: "system", Content: b.String()})
	}

	if summary != "" {
		system = append(system, provider.Message{
			Role:    "system",
			Content: "Historique récent :\n" + summary,
		})
	}

	return append(system, messages...)
}

// persistTurn writes the exchange to memory. A failed write is logged and
// journalled but does not fail the chat: the reply already exists.
func (r *Router) persistTurn(userText, replyText string, analysis intent.Result) {
	meta := map[string]any{}
	if analysis.Intent != intent.Empty {
		meta["intent"] = string(analysis.Intent)
	}
	start := time.Now()
	if err := r.memory.Remember(userText, replyText, meta); err != nil {
		r.metrics.RecordError(metrics.OpMemoryWrite)
		r.logger.Error("memory write failed", "error", err)
		r.events.Append("MEMORY_WRITE_FAILED", map[string]any{"error": err.Error()})
		return
	}
	r.metrics.RecordTiming(metrics.OpMemoryWrite, time.Since(start))
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	return truncate(text, snippetLimit)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}

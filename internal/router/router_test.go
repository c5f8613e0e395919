package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"passerelle/internal/config"
	"passerelle/internal/index"
	"passerelle/internal/journal"
	"passerelle/internal/memory"
	"passerelle/internal/metrics"
	"passerelle/internal/provider"
)

// stubProvider counts calls and replays a fixed reply or error.
type stubProvider struct {
	name    string
	reply   string
	err     error
	calls   int
	lastReq provider.Request
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(_ context.Context, req provider.Request) (provider.Reply, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return provider.Reply{}, s.err
	}
	return provider.Reply{Text: s.reply, Used: provider.UsedLocal}, nil
}

type fixture struct {
	router   *Router
	local    *stubProvider
	external *stubProvider
	index    *index.Index
	memory   *memory.Store
	events   *journal.EventStore
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, cfg config.Config) *fixture {
	t.Helper()
	dir := t.TempDir()

	f := &fixture{
		local:    &stubProvider{name: "ollama", reply: "réponse locale"},
		external: &stubProvider{name: "openai", reply: "réponse externe"},
		index:    index.New(filepath.Join(dir, "index.json"), testLogger()),
		memory:   memory.NewStore(filepath.Join(dir, "conversation_state.json"), testLogger()),
		events:   journal.NewEventStore(50, nil, testLogger()),
	}
	f.router = New(cfg, Deps{
		Local:    f.local,
		External: f.external,
		Index:    f.index,
		Memory:   f.memory,
		Events:   f.events,
		Metrics:  metrics.NewCollector(),
		Logger:   testLogger(),
	})
	return f
}

func userRequest(text string) ChatRequest {
	return ChatRequest{Messages: []provider.Message{{Role: "user", Content: text}}}
}

func TestChat_RejectsEmptyRequest(t *testing.T) {
	f := newFixture(t, config.Config{Policy: config.PolicyLocalFirst})

	if _, err := f.router.Chat(context.Background(), ChatRequest{}); !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("Chat(no messages) error = %v, want ErrMalformedRequest", err)
	}
}

func TestChat_LocalFirstStaysLocal(t *testing.T) {
	f := newFixture(t, config.Config{Policy: config.PolicyLocalFirst})

	result, err := f.router.Chat(context.Background(), userRequest("Bonjour, qui es-tu ?"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if result.Reply != "réponse locale" {
		t.Errorf("Reply = %q", result.Reply)
	}
	if result.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", result.Provider)
	}
	if f.external.calls != 0 {
		t.Errorf("external called %d times, want 0", f.external.calls)
	}
	if result.Trace.Intent.Intent != "greeting" {
		t.Errorf("intent = %s, want greeting", result.Trace.Intent.Intent)
	}
	if result.Trace.MemoryUsed {
		t.Error("MemoryUsed = true on first turn")
	}
}

func TestChat_PersistsTurnWithIntent(t *testing.T) {
	f := newFixture(t, config.Config{Policy: config.PolicyLocalFirst})

	if _, err := f.router.Chat(context.Background(), userRequest("Bonjour")); err != nil {
		t.Fatal(err)
	}

	history := f.memory.History()
	if len(history) != 1 {
		t.Fatalf("len(History()) = %d, want 1", len(history))
	}
	if history[0].User != "Bonjour" || history[0].Assistant != "réponse locale" {
		t.Errorf("entry = %+v", history[0])
	}
	if history[0].Meta["intent"] != "greeting" {
		t.Errorf("Meta[intent] = %v, want greeting", history[0].Meta["intent"])
	}
}

func TestChat_LocalFailureDegradesToTemplate(t *testing.T) {
	f := newFixture(t, config.Config{Policy: config.PolicyLocalFirst})
	f.local.err = provider.ErrTimeout

	result, err := f.router.Chat(context.Background(), userRequest("Bonjour"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Provider != provider.TemplateName {
		t.Errorf("Provider = %q, want %q", result.Provider, provider.TemplateName)
	}
	if result.Reply == "" {
		t.Error("degraded reply is empty")
	}
}

func TestChat_EscalationMatrix(t *testing.T) {
	tests := []struct {
		name       string
		policy     string
		onFallback bool
		explicit   bool
		localFails bool
		wantExt    bool
	}{
		{name: "local_first quiet", policy: config.PolicyLocalFirst},
		{name: "local_first explicit", policy: config.PolicyLocalFirst, explicit: true, wantExt: true},
		{name: "local_first degraded without opt-in", policy: config.PolicyLocalFirst, localFails: true},
		{name: "local_first degraded with opt-in", policy: config.PolicyLocalFirst, onFallback: true, localFails: true, wantExt: true},
		{name: "on_request quiet", policy: config.PolicyOnRequest},
		{name: "on_request explicit", policy: config.PolicyOnRequest, explicit: true, wantExt: true},
		{name: "fallback quiet", policy: config.PolicyFallback},
		{name: "fallback degraded", policy: config.PolicyFallback, localFails: true, wantExt: true},
		{name: "fallback explicit", policy: config.PolicyFallback, explicit: true, wantExt: true},
		{name: "external_first", policy: config.PolicyExternalFirst, wantExt: true},
		{name: "always", policy: config.PolicyAlways, wantExt: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, config.Config{Policy: tt.policy, ExternalOnFallback: tt.onFallback})
			if tt.localFails {
				f.local.err = provider.ErrTimeout
			}

			req := userRequest("Compare nos règles aux standards du marché")
			req.UseExternal = tt.explicit

			result, err := f.router.Chat(context.Background(), req)
			if err != nil {
				t.Fatalf("Chat() error = %v", err)
			}

			wantCalls := 0
			if tt.wantExt {
				wantCalls = 1
			}
			if f.external.calls != wantCalls {
				t.Errorf("external calls = %d, want %d", f.external.calls, wantCalls)
			}
			if result.Trace.ExternalAttempted != tt.wantExt {
				t.Errorf("ExternalAttempted = %t, want %t", result.Trace.ExternalAttempted, tt.wantExt)
			}
			if tt.wantExt && result.Reply != "réponse externe" {
				t.Errorf("Reply = %q, want the external reply", result.Reply)
			}
		})
	}
}

func TestChat_NilExternalNeverEscalates(t *testing.T) {
	dir := t.TempDir()
	local := &stubProvider{name: "ollama", reply: "réponse locale"}
	r := New(config.Config{Policy: config.PolicyAlways}, Deps{
		Local:   local,
		Index:   index.New(filepath.Join(dir, "index.json"), testLogger()),
		Memory:  memory.NewStore(filepath.Join(dir, "memory.json"), testLogger()),
		Events:  journal.NewEventStore(10, nil, testLogger()),
		Metrics: metrics.NewCollector(),
		Logger:  testLogger(),
	})

	result, err := r.Chat(context.Background(), userRequest("Bonjour"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Trace.ExternalAttempted {
		t.Error("escalated with no external provider wired")
	}
	if result.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", result.Provider)
	}
}

func TestChat_ExternalFailureKeepsLocalReply(t *testing.T) {
	f := newFixture(t, config.Config{Policy: config.PolicyAlways})
	f.external.err = errors.New("upstream said no: " + strings.Repeat("x", 300))

	result, err := f.router.Chat(context.Background(), userRequest("Bonjour"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if result.Reply != "réponse locale" {
		t.Errorf("Reply = %q, want the local reply kept", result.Reply)
	}
	if result.Provider != "ollama" {
		t.Errorf("Provider = %q, want ollama", result.Provider)
	}
	trace := result.Trace
	if !trace.ExternalAttempted || trace.ExternalSuccess {
		t.Errorf("trace = attempted %t success %t, want attempted-only", trace.ExternalAttempted, trace.ExternalSuccess)
	}
	if trace.ExternalError == "" {
		t.Error("ExternalError empty")
	}
	if n := len([]rune(trace.ExternalError)); n > 200 {
		t.Errorf("ExternalError length = %d runes, want <= 200", n)
	}
}

func TestChat_ExternalSuccessTakesOver(t *testing.T) {
	f := newFixture(t, config.Config{Policy: config.PolicyExternalFirst})

	result, err := f.router.Chat(context.Background(), userRequest("Bonjour"))
	if err != nil {
		t.Fatal(err)
	}
	if result.Provider != "openai" || result.Reply != "réponse externe" {
		t.Errorf("result = %s/%q, want openai/réponse externe", result.Provider, result.Reply)
	}
	if !result.Trace.ExternalSuccess {
		t.Error("ExternalSuccess = false")
	}
	if result.Trace.ExternalProvider != "openai" {
		t.Errorf("ExternalProvider = %q", result.Trace.ExternalProvider)
	}
}

func TestChat_EnrichmentOrder(t *testing.T) {
	f := newFixture(t, config.Config{Policy: config.PolicyLocalFirst})

	if _, err := f.index.Ingest("La charte 6S couvre la sécurité et la sobriété numérique.", "charte", nil); err != nil {
		t.Fatal(err)
	}
	if err := f.memory.Remember("Question précédente", "Réponse précédente", nil); err != nil {
		t.Fatal(err)
	}

	result, err := f.router.Chat(context.Background(), userRequest("Que dit la charte sur la sécurité ?"))
	if err != nil {
		t.Fatal(err)
	}
	if !result.Trace.MemoryUsed {
		t.Error("MemoryUsed = false with prior history")
	}

	msgs := f.local.lastReq.Messages
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5 (persona, intent, retrieval, memory, user)", len(msgs))
	}
	checks := []struct {
		idx    int
		role   string
		prefix string
	}{
		{0, "system", "Tu es Passerelle"},
		{1, "system", "Analyse d'intention"},
		{2, "system", "Documents internes pertinents"},
		{3, "system", "Historique récent"},
		{4, "user", "Que dit la charte"},
	}
	for _, c := range checks {
		if msgs[c.idx].Role != c.role || !strings.HasPrefix(msgs[c.idx].Content, c.prefix) {
			t.Errorf("messages[%d] = %s %q, want %s starting %q",
				c.idx, msgs[c.idx].Role, msgs[c.idx].Content, c.role, c.prefix)
		}
	}
	if !strings.Contains(msgs[2].Content, "[charte]") {
		t.Errorf("retrieval block missing doc id: %q", msgs[2].Content)
	}
}

func TestChat_NoRetrievalBlockWithoutHits(t *testing.T) {
	f := newFixture(t, config.Config{Policy: config.PolicyLocalFirst})

	if _, err := f.router.Chat(context.Background(), userRequest("Bonjour")); err != nil {
		t.Fatal(err)
	}

	for _, m := range f.local.lastReq.Messages {
		if strings.HasPrefix(m.Content, "Documents internes pertinents") {
			t.Error("retrieval block present with an empty index")
		}
		if strings.HasPrefix(m.Content, "Historique récent") {
			t.Error("memory block present with no history")
		}
	}
}

func TestChat_AppendsChatEvent(t *testing.T) {
	f := newFixture(t, config.Config{Policy: config.PolicyLocalFirst})

	if _, err := f.router.Chat(context.Background(), userRequest("Bonjour")); err != nil {
		t.Fatal(err)
	}

	events := f.events.Snapshot(0)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Type != "CHAT" {
		t.Errorf("event type = %s, want CHAT", ev.Type)
	}
	if ev.Data["provider"] != "ollama" || ev.Data["intent"] != "greeting" {
		t.Errorf("event data = %v", ev.Data)
	}
}

func TestChat_MemoryWriteFailureIsSoft(t *testing.T) {
	dir := t.TempDir()
	// A directory at the memory path makes the write fail.
	memPath := filepath.Join(dir, "conversation_state.json")
	if err := os.Mkdir(memPath, 0o755); err != nil {
		t.Fatal(err)
	}

	local := &stubProvider{name: "ollama", reply: "réponse locale"}
	events := journal.NewEventStore(10, nil, testLogger())
	r := New(config.Config{Policy: config.PolicyLocalFirst}, Deps{
		Local:   local,
		Index:   index.New(filepath.Join(dir, "index.json"), testLogger()),
		Memory:  memory.NewStore(memPath, testLogger()),
		Events:  events,
		Metrics: metrics.NewCollector(),
		Logger:  testLogger(),
	})

	result, err := r.Chat(context.Background(), userRequest("Bonjour"))
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if result.Reply != "réponse locale" {
		t.Errorf("Reply = %q", result.Reply)
	}

	var sawFailure bool
	for _, ev := range events.Snapshot(0) {
		if ev.Type == "MEMORY_WRITE_FAILED" {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("no MEMORY_WRITE_FAILED event recorded")
	}
}

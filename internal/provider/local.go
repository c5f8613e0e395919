package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"passerelle/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Local generates through a local Ollama server. It is always the first
// attempt; its failures are recoverable by the Template generator.
type Local struct {
	llm     llms.Model
	model   string
	timeout time.Duration
}

// Compile-time check that Local implements Provider.
var _ Provider = (*Local)(nil)

// NewLocal creates the local provider from configuration.
func NewLocal(cfg config.Config) (*Local, error) {
	model, err := ollama.New(
		ollama.WithModel(cfg.LocalModel),
		ollama.WithServerURL(cfg.OllamaHost),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return &Local{
		llm:     model,
		model:   cfg.LocalModel,
		timeout: cfg.LocalTimeout,
	}, nil
}

// Name returns the provider tag.
func (p *Local) Name() string {
	return "ollama"
}

// Generate runs one bounded generation call. A hung server fails with
// ErrTimeout instead of hanging the request.
func (p *Local) Generate(ctx context.Context, req Request) (Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	resp, err := p.llm.GenerateContent(ctx, toContent(req.Messages),
		llms.WithTemperature(req.Temperature),
		llms.WithMaxTokens(req.MaxTokens),
	)
	if err != nil {
		return Reply{}, fmt.Errorf("local generate: %w", classify(err))
	}
	if len(resp.Choices) == 0 {
		return Reply{}, ErrMalformed
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return Reply{}, ErrEmptyReply
	}
	return Reply{Text: text, Used: UsedLocal}, nil
}

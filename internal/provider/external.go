package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"passerelle/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/openai"
)

// Default models used when the configured one is empty or a known-invalid
// placeholder.
const (
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
)

// placeholderModels are names seen in stale configs that no endpoint
// accepts; they are silently replaced with the provider default.
var placeholderModels = map[string]bool{
	"gpt-5": true,
	"gpt5":  true,
}

// External generates through a cloud provider. Escalation failures are
// soft by contract: the router keeps the local result.
type External struct {
	llm   llms.Model
	name  string
	model string
}

var _ Provider = (*External)(nil)

// NewExternal creates the external provider from configuration. The
// caller is expected to have checked cfg.ExternalEnabled() first.
func NewExternal(cfg config.Config) (*External, error) {
	// Short connect timeout, slightly longer read timeout: a hung cloud
	// endpoint must not hang the request.
	httpClient := &http.Client{
		Timeout: cfg.ExternalTimeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: cfg.ExternalConnectTimeout}).DialContext,
		},
	}

	tag := strings.ToLower(cfg.ExternalProvider)
	model := ResolveModel(tag, cfg.ExternalModel)

	var llm llms.Model
	var err error
	switch tag {
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai: %w", ErrAuth)
		}
		llm, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(model),
			openai.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic: %w", ErrAuth)
		}
		llm, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(model),
			anthropic.WithHTTPClient(httpClient),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported external provider: %s", cfg.ExternalProvider)
	}

	return &External{llm: llm, name: tag, model: model}, nil
}

// ResolveModel replaces an empty or placeholder model name with the safe
// default for the provider.
func ResolveModel(providerTag, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" && !placeholderModels[strings.ToLower(requested)] {
		return requested
	}
	if providerTag == config.ProviderAnthropic {
		return defaultAnthropicModel
	}
	return defaultOpenAIModel
}

// Name returns the provider tag ("openai" or "anthropic").
func (p *External) Name() string {
	return p.name
}

// Model returns the resolved model identifier.
func (p *External) Model() string {
	return p.model
}

// Generate validates the turns and runs one cloud call. Turns missing a
// role or content are dropped; if none remain the call fails with
// ErrNoValidMessages.
func (p *External) Generate(ctx context.Context, req Request) (Reply, error) {
	valid := validMessages(req.Messages)
	if len(valid) == 0 {
		return Reply{}, ErrNoValidMessages
	}

	resp, err := p.llm.GenerateContent(ctx, toContent(valid),
		llms.WithTemperature(req.Temperature),
		llms.WithMaxTokens(req.MaxTokens),
	)
	if err != nil {
		return Reply{}, fmt.Errorf("%s generate: %w", p.name, classify(err))
	}
	if len(resp.Choices) == 0 {
		return Reply{}, ErrMalformed
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		return Reply{}, ErrEmptyReply
	}
	return Reply{Text: text, Used: UsedCloud}, nil
}

// Package llm implements the generative collaborators (category discovery,
// product identification, product research) on top of langchaingo and the
// Google GenAI SDK.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/prodscout/internal/config"
)

// Request is one generation call.
type Request struct {
	System string
	Prompt string
	// JSON asks the backend for a bare JSON document.
	JSON bool
	// Search asks the backend to ground the answer with web search.
	// Backends without search ignore it.
	Search bool
}

// Response is the text of a generation plus whatever metadata the backend reports.
type Response struct {
	Text         string
	SourceURLs   []string
	InputTokens  int64
	OutputTokens int64
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
	Model() string
}

// New creates the generator selected by cfg.
func New(ctx context.Context, cfg config.Config) (Generator, error) {
	if cfg.LLMProvider == config.ProviderGemini {
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.LLMModel)
	}
	return NewModel(cfg)
}

// Model wraps a langchaingo LLM for text generation.
type Model struct {
	llm       llms.Model
	modelName string
}

// NewModel creates a langchaingo model based on configuration.
func NewModel(cfg config.Config) (*Model, error) {
	var model llms.Model
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		model, err = ollama.New(
			ollama.WithModel(cfg.LLMModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(cfg.LLMModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return &Model{
		llm:       model,
		modelName: cfg.LLMModel,
	}, nil
}

// NewModelFrom wraps an existing langchaingo model.
func NewModelFrom(model llms.Model, name string) *Model {
	return &Model{llm: model, modelName: name}
}

// Generate runs one chat completion with an optional system prompt.
func (m *Model) Generate(ctx context.Context, req Request) (Response, error) {
	var messages []llms.MessageContent
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	var opts []llms.CallOption
	if req.JSON {
		opts = append(opts, llms.WithJSONMode())
	}

	start := time.Now()
	resp, err := m.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		slog.Warn("generation failed", "model", m.modelName, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return Response{}, fmt.Errorf("generate: %w", wrapFatalError(err))
	}
	if len(resp.Choices) == 0 {
		return Response{}, fmt.Errorf("no response choices")
	}

	choice := resp.Choices[0]
	in, out := tokenUsage(choice.GenerationInfo)
	slog.Debug("generation complete", "model", m.modelName, "duration_ms", time.Since(start).Milliseconds(),
		"input_tokens", in, "output_tokens", out)

	return Response{Text: choice.Content, InputTokens: in, OutputTokens: out}, nil
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// tokenUsage reads token counts from provider-specific generation info.
func tokenUsage(info map[string]any) (in, out int64) {
	in = firstInt(info, "PromptTokens", "InputTokens", "prompt_tokens", "input_tokens")
	out = firstInt(info, "CompletionTokens", "OutputTokens", "completion_tokens", "output_tokens")
	return in, out
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"
)

func TestIsFatalAPIError(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		fatal bool
	}{
		{"nil", nil, false},
		{"gemini bad key", errors.New("Error 400, Message: API key not valid. Please pass a valid API key."), true},
		{"gemini quota", errors.New("Error 429: Quota exceeded for quota metric 'Generate Content API requests'"), true},
		{"anthropic credits", errors.New("Your credit balance is too low to access the Anthropic API"), true},
		{"openai rate limit", errors.New("Rate limit reached for gpt-4o in organization"), true},
		{"ollama unauthorized", errors.New("unauthorized: missing bearer token"), true},
		{"forbidden status", errors.New("unexpected status 403 from provider"), true},
		{"wrapped", fmt.Errorf("research Sony WH: %w", errors.New("billing hard limit has been reached")), true},
		{"model overloaded", errors.New("503 The model is overloaded. Please try again later."), false},
		{"connection refused", errors.New("dial tcp 127.0.0.1:11434: connect: connection refused"), false},
		{"deadline", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fatal, isFatalAPIError(tt.err))
		})
	}
}

func TestWrapFatalError(t *testing.T) {
	fatal := errors.New("invalid api key provided")
	assert.ErrorIs(t, wrapFatalError(fatal), ErrFatalAPI)
	assert.ErrorIs(t, wrapFatalError(fatal), fatal)

	transient := errors.New("connection reset by peer")
	assert.Same(t, transient, wrapFatalError(transient))

	assert.NoError(t, wrapFatalError(nil))
}

func TestModelGenerate(t *testing.T) {
	m := NewModelFrom(fake.NewFakeLLM([]string{`{"categories": ["Headphones"]}`}), "fake")

	resp, err := m.Generate(context.Background(), Request{System: "sys", Prompt: "p", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"categories": ["Headphones"]}`, resp.Text)
	assert.Equal(t, "fake", m.Model())
}

func TestTokenUsage(t *testing.T) {
	tests := []struct {
		name    string
		info    map[string]any
		in, out int64
	}{
		{"openai", map[string]any{"PromptTokens": 12, "CompletionTokens": 30}, 12, 30},
		{"anthropic", map[string]any{"InputTokens": 7, "OutputTokens": int64(9)}, 7, 9},
		{"float", map[string]any{"prompt_tokens": 3.0, "completion_tokens": 4.0}, 3, 4},
		{"missing", nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out := tokenUsage(tt.info)
			assert.Equal(t, tt.in, in)
			assert.Equal(t, tt.out, out)
		})
	}
}

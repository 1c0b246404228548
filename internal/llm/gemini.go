package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-pro"

// Gemini generates with Google's Gemini API. Search requests attach the
// Google Search tool and return the grounding chunk URLs.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Generate runs one GenerateContent call.
func (g *Gemini) Generate(ctx context.Context, req Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	// The API rejects a JSON mime type combined with tools; grounded calls
	// rely on the prompt and ExtractJSON instead.
	if req.Search {
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), cfg)
	if err != nil {
		slog.Warn("gemini generation failed", "model", g.model, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return Response{}, fmt.Errorf("generate: %w", wrapFatalError(err))
	}

	out := Response{
		Text:       resp.Text(),
		SourceURLs: groundingURLs(resp),
	}
	if u := resp.UsageMetadata; u != nil {
		out.InputTokens = int64(u.PromptTokenCount)
		out.OutputTokens = int64(u.CandidatesTokenCount)
	}
	slog.Debug("gemini generation complete", "model", g.model, "duration_ms", time.Since(start).Milliseconds(),
		"sources", len(out.SourceURLs))
	return out, nil
}

// Model returns the Gemini model name.
func (g *Gemini) Model() string {
	return g.model
}

// groundingURLs lists the web URIs cited by the first candidate, in order.
func groundingURLs(resp *genai.GenerateContentResponse) []string {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	meta := resp.Candidates[0].GroundingMetadata
	if meta == nil {
		return nil
	}
	var urls []string
	for _, chunk := range meta.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" {
			continue
		}
		urls = append(urls, chunk.Web.URI)
	}
	return urls
}

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/raphaelgruber/prodscout/internal/metrics"
	"github.com/raphaelgruber/prodscout/internal/models"
)

const researchSystemPrompt = `You are a meticulous product research analyst.
You answer with a single JSON object and nothing else. Do not wrap it in markdown backticks.`

// Researcher implements category discovery, product identification and
// product research over a Generator.
type Researcher struct {
	gen       Generator
	grounding bool
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// ResearcherOption configures a Researcher.
type ResearcherOption func(*Researcher)

// WithGrounding enables web search grounding on research calls.
func WithGrounding(enabled bool) ResearcherOption {
	return func(r *Researcher) { r.grounding = enabled }
}

// WithMetrics records generation timings and token usage.
func WithMetrics(mc *metrics.Collector) ResearcherOption {
	return func(r *Researcher) { r.metrics = mc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ResearcherOption {
	return func(r *Researcher) { r.logger = logger }
}

// WithClock overrides the clock used for research dates.
func WithClock(now func() time.Time) ResearcherOption {
	return func(r *Researcher) { r.now = now }
}

// NewResearcher creates a Researcher over gen.
func NewResearcher(gen Generator, opts ...ResearcherOption) *Researcher {
	r := &Researcher{
		gen:    gen,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Researcher) generate(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := r.gen.Generate(ctx, req)
	if err != nil {
		return Response{}, err
	}
	r.metrics.RecordLLMUsage(metrics.OpLLMGenerate, time.Since(start), resp.InputTokens, resp.OutputTokens)
	return resp, nil
}

// DiscoverCategories asks for product categories matching query.
func (r *Researcher) DiscoverCategories(ctx context.Context, query string) ([]string, error) {
	prompt := fmt.Sprintf(`Based on the following user query, identify a list of relevant and specific product categories that could be researched. Focus on tangible products.
Query: %q

Respond with JSON of the form {"categories": ["..."]}.`, query)

	resp, err := r.generate(ctx, Request{System: researchSystemPrompt, Prompt: prompt, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("failed to discover product categories: %w", err)
	}

	var out struct {
		Categories []string `json:"categories"`
	}
	if err := decodeJSON(resp.Text, &out); err != nil {
		return nil, fmt.Errorf("failed to discover product categories: %w", err)
	}
	return out.Categories, nil
}

// IdentifyProducts asks for 5-10 researchable product names in category.
func (r *Researcher) IdentifyProducts(ctx context.Context, category string) ([]string, error) {
	prompt := fmt.Sprintf(`List 5-10 specific, popular, and researchable product models/names for the category: %q. Provide only the names.

Respond with JSON of the form {"products": ["..."]}.`, category)

	resp, err := r.generate(ctx, Request{System: researchSystemPrompt, Prompt: prompt, JSON: true})
	if err != nil {
		return nil, fmt.Errorf("failed to identify products: %w", err)
	}

	var out struct {
		Products []string `json:"products"`
	}
	if err := decodeJSON(resp.Text, &out); err != nil {
		return nil, fmt.Errorf("failed to identify products: %w", err)
	}
	return out.Products, nil
}

// ResearchProduct produces a populated record for one product. With
// grounding enabled, the cited search URLs are merged into the record's
// source info.
func (r *Researcher) ResearchProduct(ctx context.Context, productName, category string) (*models.ProductRecord, error) {
	search := "Use your own knowledge"
	if r.grounding {
		search = "Use Google Search to gather up-to-date information"
	}
	prompt := fmt.Sprintf(`Conduct comprehensive research on the product %q in the category %q.
%s. Your goal is to populate a detailed JSON object about the product.

The JSON object must conform to this JSON schema:
%s

Guidance:
- product_id: a unique slug-style ID such as "sony-wh1000xm5".
- price_usd: the approximate current retail price as a number; the average of a range; null if unknown.
- summary.pros and summary.cons: 3-5 entries each.
- specifications: key technical specs relevant to the category (for headphones: connectivity, battery_life, driver_size, weight_grams).
- source_info.research_date: today's date, %s.

Strictly return ONLY the JSON object and nothing else.`,
		productName, category, search, ProductSchema(), r.now().Format(time.DateOnly))

	resp, err := r.generate(ctx, Request{System: researchSystemPrompt, Prompt: prompt, JSON: true, Search: r.grounding})
	if err != nil {
		return nil, fmt.Errorf("failed to research product %q: %w", productName, err)
	}

	rec, err := ParseRecord(resp.Text, productName, category, r.now())
	if err != nil {
		if errors.Is(err, ErrMalformedResponse) {
			r.logger.Debug("unparseable research response", "product", productName, "response", truncate(resp.Text, 500))
			return nil, fmt.Errorf("failed to parse JSON response for %q: %w", productName, err)
		}
		return nil, fmt.Errorf("failed to research product %q: %w", productName, err)
	}
	MergeSourceURLs(&rec.SourceInfo, resp.SourceURLs)
	return rec, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}

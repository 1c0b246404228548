package llm

import (
	"context"
	"errors"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/prodscout/internal/metrics"
)

type scriptedGenerator struct {
	resp Response
	err  error
	reqs []Request
}

func (g *scriptedGenerator) Generate(_ context.Context, req Request) (Response, error) {
	g.reqs = append(g.reqs, req)
	return g.resp, g.err
}

func (g *scriptedGenerator) Model() string { return "scripted" }

func fixedClock() time.Time {
	return time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
}

func TestDiscoverCategories(t *testing.T) {
	gen := &scriptedGenerator{resp: Response{Text: `{"categories": ["Headphones", "Speakers"]}`, InputTokens: 10, OutputTokens: 5}}
	mc := metrics.NewCollector()
	r := NewResearcher(gen, WithMetrics(mc))

	got, err := r.DiscoverCategories(context.Background(), "home audio")
	require.NoError(t, err)
	assert.Equal(t, []string{"Headphones", "Speakers"}, got)
	require.Len(t, gen.reqs, 1)
	assert.True(t, gen.reqs[0].JSON)
	assert.Contains(t, gen.reqs[0].Prompt, `"home audio"`)

	snap := mc.Snapshot()
	require.NotNil(t, snap.LLMGenerate)
	assert.Equal(t, int64(10), *snap.LLMGenerate.TotalInputTokens)
}

func TestIdentifyProductsErrors(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("connection refused")}
	r := NewResearcher(gen)
	_, err := r.IdentifyProducts(context.Background(), "Headphones")
	require.ErrorContains(t, err, "failed to identify products")

	gen = &scriptedGenerator{resp: Response{Text: "not json"}}
	r = NewResearcher(gen)
	_, err = r.IdentifyProducts(context.Background(), "Headphones")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestResearchProductWithGrounding(t *testing.T) {
	gen := &scriptedGenerator{resp: Response{
		Text: "```json\n" + `{
			"product_id": "sony-wh1000xm5",
			"product_name": "Sony WH-1000XM5",
			"source_info": {"review_urls": ["https://a.example"], "retail_urls": ["https://shop.example"]},
		}` + "\n```",
		SourceURLs: []string{"https://shop.example", "https://b.example"},
	}}
	r := NewResearcher(gen, WithGrounding(true), WithClock(fixedClock))

	rec, err := r.ResearchProduct(context.Background(), "Sony WH-1000XM5", "Headphones")
	require.NoError(t, err)
	assert.Equal(t, "sony-wh1000xm5", rec.ProductID)
	assert.Equal(t, "Headphones", rec.Category)
	assert.Equal(t, "2026-10-01", rec.SourceInfo.ResearchDate)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, rec.SourceInfo.ReviewURLs)

	require.Len(t, gen.reqs, 1)
	assert.True(t, gen.reqs[0].Search)
	assert.Contains(t, gen.reqs[0].Prompt, "Google Search")
	assert.Contains(t, gen.reqs[0].Prompt, `"product_id"`)
}

func TestResearchProductErrors(t *testing.T) {
	r := NewResearcher(&scriptedGenerator{resp: Response{Text: "Sorry, I can't help."}})
	_, err := r.ResearchProduct(context.Background(), "Mystery Box", "Gadgets")
	require.ErrorIs(t, err, ErrMalformedResponse)
	assert.Contains(t, err.Error(), `failed to parse JSON response for "Mystery Box"`)

	r = NewResearcher(&scriptedGenerator{err: wrapFatalError(errors.New("HTTP 401: invalid api key"))})
	_, err = r.ResearchProduct(context.Background(), "Mystery Box", "Gadgets")
	require.ErrorIs(t, err, ErrFatalAPI)
	assert.Contains(t, err.Error(), `failed to research product "Mystery Box"`)
	assert.NotErrorIs(t, err, ErrMalformedResponse)
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	assert.Equal(t, "short", truncate("  short  ", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	// "é" is two bytes; cutting at byte 2 would split it.
	got := truncate("aébc", 2)
	assert.Equal(t, "a...", got)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, utf8.ValidString(truncate("日本語のレビュー", 4)))
}

package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/raphaelgruber/prodscout/internal/models"
)

var (
	fencePattern         = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")
	trailingCommaPattern = regexp.MustCompile(`,(\s*[}\]])`)
)

// ExtractJSON pulls a JSON document out of model output: it unwraps a
// markdown code fence, drops prose around a top-level object, and removes
// trailing commas before a closing brace or bracket.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if !strings.HasPrefix(text, "{") && !strings.HasPrefix(text, "[") {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start >= 0 && end > start {
			text = text[start : end+1]
		}
	}
	return trailingCommaPattern.ReplaceAllString(text, "$1")
}

// decodeJSON unmarshals model output into v, tagging failures as malformed.
func decodeJSON(text string, v any) error {
	if err := json.Unmarshal([]byte(ExtractJSON(text)), v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// ParseRecord decodes a research response and fills fields the model left
// empty: product_id from the name, the requested category, and today's date.
func ParseRecord(text, productName, category string, now time.Time) (*models.ProductRecord, error) {
	var rec models.ProductRecord
	if err := decodeJSON(text, &rec); err != nil {
		return nil, err
	}

	if strings.TrimSpace(rec.ProductName) == "" {
		rec.ProductName = productName
	}
	if strings.TrimSpace(rec.ProductID) == "" {
		rec.ProductID = models.Slugify(rec.ProductName)
	}
	if rec.ProductID == "" {
		return nil, fmt.Errorf("%w: no product_id or product_name", ErrMalformedResponse)
	}
	if rec.Category == "" {
		rec.Category = category
	}
	if rec.SourceInfo.ResearchDate == "" {
		rec.SourceInfo.ResearchDate = now.Format(time.DateOnly)
	}
	if rec.SourceInfo.ReviewURLs == nil {
		rec.SourceInfo.ReviewURLs = []string{}
	}
	if rec.SourceInfo.RetailURLs == nil {
		rec.SourceInfo.RetailURLs = []string{}
	}
	return &rec, nil
}

package llm

import (
	"slices"

	"github.com/raphaelgruber/prodscout/internal/models"
)

// MergeSourceURLs appends grounding URLs to the record's review URLs.
// A URL already listed as a review or retail URL is not added again, so each
// grounding URL appears at most once across both lists. URLs the model
// provided itself are left as they are.
func MergeSourceURLs(info *models.ProductSourceInfo, urls []string) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if slices.Contains(info.ReviewURLs, u) || slices.Contains(info.RetailURLs, u) {
			continue
		}
		info.ReviewURLs = append(info.ReviewURLs, u)
	}
}

// Package models defines data structures shared by the research pipeline.
package models

// ProductSummary is the human-readable digest of a researched product.
type ProductSummary struct {
	Description string   `json:"description" yaml:"description" jsonschema:"description=A concise neutral one-paragraph overview of the product"`
	Pros        []string `json:"pros" yaml:"pros" jsonschema:"description=3-5 key advantages or strengths"`
	Cons        []string `json:"cons" yaml:"cons" jsonschema:"description=3-5 key disadvantages or weaknesses"`
}

// ProductSourceInfo records where the research came from.
type ProductSourceInfo struct {
	ReviewURLs   []string `json:"review_urls" yaml:"review_urls" jsonschema:"description=2-3 URLs of detailed reviews from reputable sites"`
	RetailURLs   []string `json:"retail_urls" yaml:"retail_urls" jsonschema:"description=2-3 URLs of major online retailers selling the product"`
	ResearchDate string   `json:"research_date" yaml:"research_date" jsonschema:"description=The research date in ISO 8601 format (YYYY-MM-DD)"`
}

// ProductRecord is one accepted research result.
// ProductID is stable across re-research of the same product and is the
// deduplication key of the knowledge store.
type ProductRecord struct {
	ProductID      string            `json:"product_id" yaml:"product_id" jsonschema:"description=A unique slug-style ID (e.g. sony-wh1000xm5)"`
	ProductName    string            `json:"product_name" yaml:"product_name" jsonschema:"description=The full official product name"`
	Category       string            `json:"category" yaml:"category" jsonschema:"description=The provided category"`
	PriceUSD       *float64          `json:"price_usd" yaml:"price_usd" jsonschema:"description=Approximate current retail price in USD or null if unknown"`
	Summary        ProductSummary    `json:"summary" yaml:"summary"`
	Specifications map[string]any    `json:"specifications" yaml:"specifications" jsonschema:"description=Key technical specs relevant to the category"`
	SourceInfo     ProductSourceInfo `json:"source_info" yaml:"source_info"`
}

// Destination identifies an external tabular mirror (a sheet) that selected
// records can be appended to.
type Destination struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductIDs returns the ids of records in order.
func ProductIDs(records []ProductRecord) []string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ProductID
	}
	return ids
}

// Package export mirrors knowledge records into tabular sheets and documents.
package export

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/raphaelgruber/prodscout/internal/models"
)

// Header is the column layout of a record sheet.
var Header = []string{
	"product_id",
	"product_name",
	"category",
	"price_usd",
	"summary_description",
	"summary_pros",
	"summary_cons",
	"specifications",
	"review_urls",
	"retail_urls",
	"research_date",
}

// Flatten renders a record as one sheet row matching Header.
// List fields are newline-joined; specifications are indented JSON.
func Flatten(rec models.ProductRecord) []string {
	price := ""
	if rec.PriceUSD != nil {
		price = strconv.FormatFloat(*rec.PriceUSD, 'f', -1, 64)
	}

	specs := ""
	if len(rec.Specifications) > 0 {
		if data, err := json.MarshalIndent(rec.Specifications, "", "  "); err == nil {
			specs = string(data)
		}
	}

	return []string{
		rec.ProductID,
		rec.ProductName,
		rec.Category,
		price,
		rec.Summary.Description,
		strings.Join(rec.Summary.Pros, "\n"),
		strings.Join(rec.Summary.Cons, "\n"),
		specs,
		strings.Join(rec.SourceInfo.ReviewURLs, "\n"),
		strings.Join(rec.SourceInfo.RetailURLs, "\n"),
		rec.SourceInfo.ResearchDate,
	}
}

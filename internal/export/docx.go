package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gingfrederik/docx"

	"github.com/raphaelgruber/prodscout/internal/models"
)

// WriteReport saves a Word report of records grouped by category.
func WriteReport(path string, records []models.ProductRecord, generated time.Time) error {
	f := docx.NewFile()

	f.AddParagraph().AddText("Product Research Report").Size(20)
	meta := f.AddParagraph().AddText(fmt.Sprintf("%d products | generated %s", len(records), generated.Format(time.DateOnly)))
	meta.Size(10)
	meta.Color("808080")
	f.AddParagraph()

	byCategory := make(map[string][]models.ProductRecord)
	for _, rec := range records {
		byCategory[rec.Category] = append(byCategory[rec.Category], rec)
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	for _, category := range categories {
		f.AddParagraph().AddText(category).Size(18)

		for _, rec := range byCategory[category] {
			f.AddParagraph().AddText(rec.ProductName).Size(14)

			line := "Price: unknown"
			if rec.PriceUSD != nil {
				line = fmt.Sprintf("Price: $%.2f", *rec.PriceUSD)
			}
			info := f.AddParagraph().AddText(fmt.Sprintf("%s | ID: %s | Researched: %s", line, rec.ProductID, rec.SourceInfo.ResearchDate))
			info.Size(10)
			info.Color("808080")

			if rec.Summary.Description != "" {
				f.AddParagraph().AddText(rec.Summary.Description)
			}
			writeList(f, "Pros", rec.Summary.Pros)
			writeList(f, "Cons", rec.Summary.Cons)

			if len(rec.Specifications) > 0 {
				f.AddParagraph().AddText("Specifications:")
				keys := make([]string, 0, len(rec.Specifications))
				for k := range rec.Specifications {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					f.AddParagraph().AddText(fmt.Sprintf("- %s: %v", strings.ReplaceAll(k, "_", " "), rec.Specifications[k]))
				}
			}

			urls := append(append([]string{}, rec.SourceInfo.ReviewURLs...), rec.SourceInfo.RetailURLs...)
			for _, u := range urls {
				link := f.AddParagraph().AddText(u)
				link.Size(10)
				link.Color("0000FF")
			}
			f.AddParagraph()
		}
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

func writeList(f *docx.File, title string, items []string) {
	if len(items) == 0 {
		return
	}
	f.AddParagraph().AddText(title + ":")
	for _, item := range items {
		f.AddParagraph().AddText("- " + item)
	}
}

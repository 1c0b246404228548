package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/raphaelgruber/prodscout/internal/models"
)

// Output formats accepted by --format.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// writeFormatted renders v as JSON or YAML; text falls back to text().
func writeFormatted(w io.Writer, format string, v any, text func(io.Writer) error) error {
	switch format {
	case formatJSON:
		return writeJSON(w, v)
	case formatYAML:
		return writeYAML(w, v)
	case formatText, "":
		return text(w)
	default:
		return fmt.Errorf("unknown format %q (use text, json, or yaml)", format)
	}
}

// writeRecord prints one record in human-readable form.
func writeRecord(w io.Writer, rec models.ProductRecord) error {
	fmt.Fprintf(w, "%s (%s)\n", rec.ProductName, rec.ProductID)
	fmt.Fprintf(w, "  Category: %s\n", rec.Category)
	if rec.PriceUSD != nil {
		fmt.Fprintf(w, "  Price: $%.2f\n", *rec.PriceUSD)
	}
	if rec.Summary.Description != "" {
		fmt.Fprintf(w, "\n  %s\n", rec.Summary.Description)
	}
	writeBullets(w, "Pros", rec.Summary.Pros)
	writeBullets(w, "Cons", rec.Summary.Cons)

	if len(rec.Specifications) > 0 {
		fmt.Fprintln(w, "\n  Specifications:")
		keys := make([]string, 0, len(rec.Specifications))
		for k := range rec.Specifications {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "    %s: %v\n", k, rec.Specifications[k])
		}
	}

	writeBullets(w, "Reviews", rec.SourceInfo.ReviewURLs)
	writeBullets(w, "Retailers", rec.SourceInfo.RetailURLs)
	if rec.SourceInfo.ResearchDate != "" {
		fmt.Fprintf(w, "\n  Researched: %s\n", rec.SourceInfo.ResearchDate)
	}
	return nil
}

func writeBullets(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n  %s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "    - %s\n", it)
	}
}

// writeRecordTable prints one line per record.
func writeRecordTable(w io.Writer, records []models.ProductRecord) {
	fmt.Fprintf(w, "%-28s %-32s %-20s %10s\n", "ID", "NAME", "CATEGORY", "PRICE")
	fmt.Fprintln(w, strings.Repeat("-", 93))
	for _, r := range records {
		price := "-"
		if r.PriceUSD != nil {
			price = fmt.Sprintf("$%.2f", *r.PriceUSD)
		}
		fmt.Fprintf(w, "%-28s %-32s %-20s %10s\n",
			clip(r.ProductID, 28), clip(r.ProductName, 32), clip(r.Category, 20), price)
	}
}

// clip shortens s to n runes, adding "…" if truncated.
func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n < 2 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

package service

import (
	"log/slog"
	"slices"
)

// SelectionSet holds the user's category and product choices between
// discovery and launch.
//
// It is not safe for concurrent use; each interactive session owns one.
type SelectionSet struct {
	categories []string
	selected   map[string]bool

	identified map[string][]string
	products   map[string]map[string]bool
}

// NewSelectionSet starts a selection over discovered categories, none selected.
func NewSelectionSet(categories []string) *SelectionSet {
	return &SelectionSet{
		categories: slices.Clone(categories),
		selected:   make(map[string]bool),
		identified: make(map[string][]string),
		products:   make(map[string]map[string]bool),
	}
}

// Categories returns the discovered categories in order.
func (s *SelectionSet) Categories() []string {
	return slices.Clone(s.categories)
}

// ToggleCategory flips a category's selection. Categories whose identified
// products are all accounted for cannot be selected; unknown categories are
// ignored. Reports whether the category is selected afterwards.
func (s *SelectionSet) ToggleCategory(t Tracker, category string) bool {
	if !slices.Contains(s.categories, category) {
		return false
	}
	if s.selected[category] {
		delete(s.selected, category)
		return false
	}
	if t.IsCategoryComplete(s.identified[category]) {
		return false
	}
	s.selected[category] = true
	return true
}

// SelectAll selects every category that is not complete.
func (s *SelectionSet) SelectAll(t Tracker) {
	for _, c := range s.categories {
		if !t.IsCategoryComplete(s.identified[c]) {
			s.selected[c] = true
		}
	}
}

// SelectedCategories returns the selected categories in discovery order.
func (s *SelectionSet) SelectedCategories() []string {
	var out []string
	for _, c := range s.categories {
		if s.selected[c] {
			out = append(out, c)
		}
	}
	return out
}

// SetIdentified records identification results and preselects every product
// that is not yet accounted for.
func (s *SelectionSet) SetIdentified(t Tracker, identified map[string][]string) {
	for category, products := range identified {
		s.identified[category] = slices.Clone(products)
		set := make(map[string]bool, len(products))
		for _, p := range t.Unaccounted(products) {
			set[p] = true
		}
		s.products[category] = set
	}
}

// Identified returns the products identified for category.
func (s *SelectionSet) Identified(category string) []string {
	return slices.Clone(s.identified[category])
}

// ToggleProduct flips a product's selection. Accounted-for products and
// products not identified for category are ignored. Reports whether the
// product is selected afterwards.
func (s *SelectionSet) ToggleProduct(t Tracker, category, product string) bool {
	if !slices.Contains(s.identified[category], product) {
		return false
	}
	set := s.products[category]
	if set[product] {
		delete(set, product)
		return false
	}
	if t.IsProductAccounted(product) {
		return false
	}
	set[product] = true
	return true
}

// IsProductSelected reports whether product is selected under category.
func (s *SelectionSet) IsProductSelected(category, product string) bool {
	return s.products[category][product]
}

// TotalSelected counts selected products across all categories.
func (s *SelectionSet) TotalSelected() int {
	n := 0
	for _, set := range s.products {
		n += len(set)
	}
	return n
}

// Selections flattens the selected products, selected categories first in
// discovery order, then products in identification order. A product selected
// under several categories keeps its first occurrence.
func (s *SelectionSet) Selections(logger *slog.Logger) []Selection {
	if logger == nil {
		logger = slog.Default()
	}

	order := s.SelectedCategories()
	for _, c := range s.categories {
		if !s.selected[c] && len(s.products[c]) > 0 {
			order = append(order, c)
		}
	}

	seen := make(map[string]string)
	var out []Selection
	for _, category := range order {
		for _, p := range s.identified[category] {
			if !s.products[category][p] {
				continue
			}
			if first, ok := seen[p]; ok {
				logger.Info("product selected under several categories, keeping first",
					"product", p, "kept", first, "dropped", category)
				continue
			}
			seen[p] = category
			out = append(out, Selection{ProductName: p, Category: category})
		}
	}
	return out
}

// Clear drops all category and product selections after a launch.
// Discovered categories and identification results are kept.
func (s *SelectionSet) Clear() {
	s.selected = make(map[string]bool)
	s.products = make(map[string]map[string]bool)
	for category := range s.identified {
		s.products[category] = make(map[string]bool)
	}
}

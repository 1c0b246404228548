package models

import "strings"

// Slugify converts a name into a lowercase, hyphen-separated identifier.
// Spaces and underscores become hyphens; anything outside [a-z0-9-] is dropped.
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ' || r == '_':
			b.WriteRune('-')
		}
	}
	return b.String()
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

package model

import "strings"

// Filter returns the notes whose title, content or subject contains query, ignoring case.
// An empty (or blank) query keeps every note. Order is preserved.
func Filter(notes []Note, query string) []Note {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return notes
	}
	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if strings.Contains(strings.ToLower(n.Title), q) ||
			strings.Contains(strings.ToLower(n.Content), q) ||
			strings.Contains(strings.ToLower(n.Subject), q) {
			out = append(out, n)
		}
	}
	return out
}

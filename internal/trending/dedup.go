package trending

import "github.com/kevinmichaelchen/repo-pulse/internal/models"

// Dedupe keeps the first occurrence of every identity, preserving order.
// Later duplicates are dropped even when they carry different values.
func Dedupe(summaries []models.Summary) []models.Summary {
	seen := make(map[models.Identity]bool, len(summaries))
	out := make([]models.Summary, 0, len(summaries))
	for _, s := range summaries {
		if seen[s.Identity] {
			continue
		}
		seen[s.Identity] = true
		out = append(out, s)
	}
	return out
}

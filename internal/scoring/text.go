package scoring

import (
	"slices"
	"strings"

	"github.com/spigell/nanny-match/internal/domain"
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// profileText is the lowercased concatenation of every descriptive field of
// the candidate.
func profileText(n domain.NannyProfile) string {
	parts := make([]string, 0, 4+len(n.Skills)+len(n.ChildAges))
	parts = append(parts, n.City, n.Experience, n.About)
	parts = append(parts, n.Skills...)
	parts = append(parts, n.ChildAges...)
	return strings.ToLower(strings.Join(parts, " "))
}

// uniqueTerms trims, drops empty values and removes case-insensitive
// duplicates, keeping the first spelling.
func uniqueTerms(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		term := strings.TrimSpace(raw)
		key := strings.ToLower(term)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, term)
	}
	return out
}

func containsFold(list []string, term string) bool {
	return slices.ContainsFunc(list, func(v string) bool {
		return normalize(v) == term
	})
}

func firstN(terms []string, n int) []string {
	if n > 0 && n < len(terms) {
		return terms[:n]
	}
	return terms
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

package retrieval

import "strings"

// Expander derives superficial rewordings of a query to widen recall.
// Expansion is best effort: queries with no applicable rule come back alone.
type Expander struct {
	Enabled bool
}

// Expand returns the original query first, followed by any variants in rule
// order, with exact duplicates collapsed.
func (e Expander) Expand(query string) []string {
	if !e.Enabled {
		return []string{query}
	}

	variants := []string{query}
	if strings.Contains(strings.ToLower(query), "what") {
		variants = append(variants,
			strings.ReplaceAll(query, "What", "How"),
			strings.ReplaceAll(query, "What", "Why"),
		)
	}

	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

package retrieval

import "retrieval-orchestrator/internal/domain"

// dedupeKeyLen is the fallback identity prefix length for chunks lacking a
// stable id.
const dedupeKeyLen = 50

// Dedupe drops later duplicates from the candidate pool, preserving
// first-seen order. Identity is the chunk id when present and non-empty, else
// the first 50 runes of the chunk text.
func Dedupe(chunks []domain.Chunk) []domain.Chunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		key := chunkKey(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

package retrieval

import (
	"strings"
	"unicode/utf8"
)

// separators tried in priority order by the recursive splitter. The trailing
// empty separator splits into single runes, so any input can be cut down to
// size eventually.
var separators = []string{"\n\n", "\n", ".", "!", "?", ",", " ", ""}

// Segmenter splits document text into overlapping chunks. Chunk size is a
// soft target measured in runes, never a hard cap: a single sentence longer
// than ChunkSize is emitted whole.
type Segmenter struct {
	ChunkSize int
	Overlap   int
	Semantic  bool
}

// NewSegmenter creates a Segmenter. Non-positive sizes fall back to the
// conventional 1000/200 defaults.
func NewSegmenter(chunkSize, overlap int, semantic bool) *Segmenter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 200
	}
	return &Segmenter{ChunkSize: chunkSize, Overlap: overlap, Semantic: semantic}
}

// Segment returns chunk texts in document order. The caller attaches ordinal
// metadata.
func (s *Segmenter) Segment(text string) []string {
	if text == "" {
		return nil
	}
	if s.Semantic {
		return s.segmentSentences(text)
	}
	return s.merge(s.split(text, 0))
}

// split recursively cuts text into pieces no longer than ChunkSize, keeping
// each separator attached to the fragment it terminates.
func (s *Segmenter) split(text string, sepIdx int) []string {
	if utf8.RuneCountInString(text) <= s.ChunkSize || sepIdx >= len(separators) {
		return []string{text}
	}

	sep := separators[sepIdx]
	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.SplitAfter(text, sep)
		if n := len(parts); parts[n-1] == "" {
			parts = parts[:n-1]
		}
	}
	if len(parts) == 1 {
		return s.split(text, sepIdx+1)
	}

	var out []string
	for _, p := range parts {
		if utf8.RuneCountInString(p) > s.ChunkSize {
			out = append(out, s.split(p, sepIdx+1)...)
		} else {
			out = append(out, p)
		}
	}
	return out
}

// merge packs split pieces into chunks close to ChunkSize, seeding each new
// chunk with the trailing Overlap runes of the previous one.
func (s *Segmenter) merge(pieces []string) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0
	fresh := false // cur holds at least one piece beyond the overlap seed

	for _, p := range pieces {
		plen := utf8.RuneCountInString(p)
		if fresh && curLen+plen > s.ChunkSize {
			chunk := cur.String()
			chunks = append(chunks, chunk)
			cur.Reset()
			tail := tailRunes(chunk, s.Overlap)
			cur.WriteString(tail)
			curLen = utf8.RuneCountInString(tail)
			fresh = false
		}
		cur.WriteString(p)
		curLen += plen
		fresh = true
	}
	if fresh {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// segmentSentences accumulates sentences until the next one would overflow
// ChunkSize, then closes the chunk with its period re-appended. The final
// partial chunk is always flushed, and an oversized sentence is emitted whole
// rather than split mid-sentence.
func (s *Segmenter) segmentSentences(text string) []string {
	sentences := strings.Split(text, ". ")

	var chunks []string
	var current []string
	size := 0
	for _, sentence := range sentences {
		n := utf8.RuneCountInString(sentence)
		if size+n > s.ChunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ". ")+".")
			current = []string{sentence}
			size = n
		} else {
			current = append(current, sentence)
			size += n
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ". ")+".")
	}
	return chunks
}

func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

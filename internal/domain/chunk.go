package domain

// Metadata keys stamped onto chunks once at creation time.
const (
	MetaSourceFile     = "source_file"
	MetaSource         = "source"
	MetaChunkIndex     = "chunk_index"
	MetaTotalChunks    = "total_chunks"
	MetaProcessingMode = "processing_mode"
	MetaCollection     = "collection_name"
)

// Embedding prefixes distinguish the query-time from the indexing-time
// embedding convention. Models trained with asymmetric prefixes (e5 family)
// need the right one on each side.
const (
	QueryPrefix   = "query: "
	ContentPrefix = "passage: "
)

// Chunk is the unit of indexing and search: a bounded span of one document's
// text plus provenance metadata.
type Chunk struct {
	ID       string
	Text     string
	Metadata map[string]any
}

// ScoredDocument pairs a chunk with a relevance score. Score semantics depend
// on the pass that produced it: full-context emissions are fixed at 1.0,
// fused hybrid scores are (1 - vectorDistance) + lexicalRank, and reranked
// scores are only comparable within one rerank pass.
type ScoredDocument struct {
	Chunk Chunk
	Score float64
}

// FileSource identifies where a retrievable file came from.
type FileSource string

const (
	SourceKnowledgeBase FileSource = "knowledge_base"
	SourceChatUpload    FileSource = "chat_upload"
	SourceDirectUpload  FileSource = "direct_upload"
)

// FileDescriptor represents one retrievable unit. CollectionName identifies
// the chunk collection to search when the file is not served as full context;
// InlineContent carries the raw text for full-context files.
type FileDescriptor struct {
	Name           string
	Source         FileSource
	SizeBytes      int64
	CollectionName string
	InlineContent  string
}

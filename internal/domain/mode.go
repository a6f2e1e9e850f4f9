package domain

// ProcessingMode is the retrieval strategy assigned to a file: serve the whole
// content as one context block, search its indexed chunks, or both.
type ProcessingMode string

const (
	ModeFullContext       ProcessingMode = "full_context"
	ModeChunkedVectorized ProcessingMode = "chunked_vectorized"
	ModeHybrid            ProcessingMode = "hybrid"
)

// DefaultFullContextThreshold is the direct-upload size below which a file is
// served as full context rather than chunked. 50 KiB.
const DefaultFullContextThreshold int64 = 50 * 1024

// SelectMode classifies a file into its processing mode. Knowledge-base files
// are always chunked, chat uploads always full context, and direct uploads
// switch on size: strictly under the threshold stays full context.
// threshold <= 0 uses the default.
func SelectMode(file FileDescriptor, threshold int64) ProcessingMode {
	if threshold <= 0 {
		threshold = DefaultFullContextThreshold
	}
	switch file.Source {
	case SourceKnowledgeBase:
		return ModeChunkedVectorized
	case SourceChatUpload:
		return ModeFullContext
	default:
		if file.SizeBytes < threshold {
			return ModeFullContext
		}
		return ModeChunkedVectorized
	}
}

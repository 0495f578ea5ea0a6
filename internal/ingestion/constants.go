package ingestion

// Ingestion policy constants
const (
	// DefaultMaxFragmentSize is the fragment size bound, in characters (runes)
	DefaultMaxFragmentSize = 1024

	// PreviewLimit is how many characters (runes) of content are echoed back
	PreviewLimit = 100

	// PreviewEllipsis is appended to a preview that was truncated
	PreviewEllipsis = "..."

	// FallbackContentType is used when nothing can be inferred from the path
	FallbackContentType = "application/octet-stream"

	// binaryPlaceholderFormat is the stored text for non-image binary files
	binaryPlaceholderFormat = "<Binary data of type %s, size %d bytes>"
)

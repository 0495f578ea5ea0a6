package ingestion

// Metadata is the provenance record stored alongside every fragment
type Metadata struct {
	SourceFile  string `json:"source_file"`
	ContentType string `json:"content_type"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	IsBinary    bool   `json:"is_binary"`
}

// Fragment is a bounded-size piece of a source file ready to be appended to a collection
type Fragment struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// Request describes a single ingest call
type Request struct {
	FilePath       string
	CollectionName string
	ContentType    string // optional override
}

// ImagePayload is the inline image returned instead of storing image files
type ImagePayload struct {
	Data   []byte
	Format string // MIME subtype, e.g. "png"
}

// Result summarises a successful ingest call
type Result struct {
	Kind Kind

	// Preview is the truncated text or placeholder, empty for images
	Preview     string
	ContentType string

	// Size is in characters for text and in bytes for binary files and images
	Size          int
	ChunksCreated int
	SourceFile    string

	// Image is set only for KindImage results
	Image *ImagePayload
}

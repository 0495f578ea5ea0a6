package ingestion

import (
	"fmt"
	"unicode/utf8"
)

// BuildMetadata creates the provenance record for fragment index of total
func BuildMetadata(sourcePath, contentType string, index, total int) Metadata {
	return Metadata{
		SourceFile:  sourcePath,
		ContentType: contentType,
		ChunkIndex:  index,
		TotalChunks: total,
	}
}

// BinaryMetadata creates the record for the single placeholder fragment of a binary file
func BinaryMetadata(sourcePath, contentType string) Metadata {
	return Metadata{
		SourceFile:  sourcePath,
		ContentType: contentType,
		ChunkIndex:  0,
		TotalChunks: 1,
		IsBinary:    true,
	}
}

// BinaryPlaceholder describes binary content that cannot be stored as text
// Example: BinaryPlaceholder("application/zip", 42) -> "<Binary data of type application/zip, size 42 bytes>"
func BinaryPlaceholder(contentType string, size int) string {
	return fmt.Sprintf(binaryPlaceholderFormat, contentType, size)
}

// Preview returns the first PreviewLimit characters of content followed by
// PreviewEllipsis, or content unchanged when it is short enough
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewLimit {
		return content
	}

	count := 0
	for i := range content {
		if count == PreviewLimit {
			return content[:i] + PreviewEllipsis
		}
		count++
	}
	return content
}

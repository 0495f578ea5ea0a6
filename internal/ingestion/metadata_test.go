package ingestion_test

import (
	"strings"
	"testing"

	"github.com/docbuilder/mcp-server/internal/ingestion"
)

func TestPreview(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{
			name:     "empty",
			content:  "",
			expected: "",
		},
		{
			name:     "short content is verbatim",
			content:  "hello world",
			expected: "hello world",
		},
		{
			name:     "exactly the limit is verbatim",
			content:  strings.Repeat("a", ingestion.PreviewLimit),
			expected: strings.Repeat("a", ingestion.PreviewLimit),
		},
		{
			name:     "one over the limit is truncated",
			content:  strings.Repeat("a", ingestion.PreviewLimit+1),
			expected: strings.Repeat("a", ingestion.PreviewLimit) + ingestion.PreviewEllipsis,
		},
		{
			name:     "limit counts characters, not bytes",
			content:  strings.Repeat("é", 150),
			expected: strings.Repeat("é", ingestion.PreviewLimit) + ingestion.PreviewEllipsis,
		},
		{
			name:     "multi-byte content under the limit in characters",
			content:  strings.Repeat("日", 80),
			expected: strings.Repeat("日", 80),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := ingestion.Preview(tt.content); result != tt.expected {
				t.Errorf("Preview() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestPreviewConstants(t *testing.T) {
	if ingestion.PreviewLimit != 100 {
		t.Errorf("PreviewLimit = %d, want 100", ingestion.PreviewLimit)
	}
	if ingestion.PreviewEllipsis != "..." {
		t.Errorf("PreviewEllipsis = %q, want %q", ingestion.PreviewEllipsis, "...")
	}
	if ingestion.DefaultMaxFragmentSize != 1024 {
		t.Errorf("DefaultMaxFragmentSize = %d, want 1024", ingestion.DefaultMaxFragmentSize)
	}
}

func TestBuildMetadata(t *testing.T) {
	meta := ingestion.BuildMetadata("/abs/file.md", "text/markdown", 2, 5)

	expected := ingestion.Metadata{
		SourceFile:  "/abs/file.md",
		ContentType: "text/markdown",
		ChunkIndex:  2,
		TotalChunks: 5,
	}
	if meta != expected {
		t.Errorf("BuildMetadata() = %+v, want %+v", meta, expected)
	}
}

func TestBinaryMetadata(t *testing.T) {
	meta := ingestion.BinaryMetadata("/abs/blob", "application/octet-stream")

	if !meta.IsBinary {
		t.Error("BinaryMetadata() should set IsBinary")
	}
	if meta.TotalChunks != 1 || meta.ChunkIndex != 0 {
		t.Errorf("BinaryMetadata() chunk fields = %d/%d, want 0/1", meta.ChunkIndex, meta.TotalChunks)
	}
}

func TestBinaryPlaceholder(t *testing.T) {
	result := ingestion.BinaryPlaceholder("application/zip", 42)
	expected := "<Binary data of type application/zip, size 42 bytes>"
	if result != expected {
		t.Errorf("BinaryPlaceholder() = %q, want %q", result, expected)
	}
}

package ingestion

import (
	"mime"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Kind selects the ingestion branch for a file
type Kind int

const (
	// KindText is decoded and chunked. Files that fail to decode become KindBinary.
	KindText Kind = iota
	// KindImage is returned inline and never stored
	KindImage
	// KindBinary is stored as a single placeholder fragment
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ContentType is a resolved MIME type together with its ingestion branch
type ContentType struct {
	MIME string
	Kind Kind
}

// ResolveContentType determines the content type of path.
// A non-empty override is used verbatim; otherwise the type is inferred from the
// file extension, falling back to application/octet-stream.
func ResolveContentType(path, override string) ContentType {
	contentType := override
	if contentType == "" {
		contentType = typeByExtension(path)
	}
	if contentType == "" {
		contentType = FallbackContentType
	}

	kind := KindText
	if strings.HasPrefix(contentType, "image/") {
		kind = KindImage
	}

	return ContentType{MIME: contentType, Kind: kind}
}

// typeByExtension looks up the extension in the platform MIME table and drops
// media type parameters ("text/plain; charset=utf-8" -> "text/plain")
func typeByExtension(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return ""
	}

	byExt := mime.TypeByExtension(ext)
	if byExt == "" {
		return ""
	}

	mediaType, _, err := mime.ParseMediaType(byExt)
	if err != nil {
		return byExt
	}
	return mediaType
}

// ImageFormat returns the subtype of an image content type ("image/png" -> "png")
func ImageFormat(contentType string) string {
	if idx := strings.LastIndex(contentType, "/"); idx >= 0 {
		return contentType[idx+1:]
	}
	return contentType
}

// DecodeText attempts to interpret raw as UTF-8 text.
// ok is false when raw contains invalid byte sequences; callers treat that as binary content.
func DecodeText(raw []byte) (text string, ok bool) {
	if !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

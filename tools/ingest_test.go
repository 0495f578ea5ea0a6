package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docbuilder/mcp-server/internal/ingestion"
	"github.com/docbuilder/mcp-server/internal/storage"
)

// memoryStore is an in-memory collection store for tool tests
type memoryStore struct {
	mu          sync.Mutex
	collections map[string][]ingestion.Fragment
	listErr     error
}

func newMemoryStore(names ...string) *memoryStore {
	m := &memoryStore{collections: make(map[string][]ingestion.Fragment)}
	for _, name := range names {
		m.collections[name] = nil
	}
	return m
}

func (m *memoryStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *memoryStore) Append(ctx context.Context, collection string, fragments []ingestion.Fragment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = append(m.collections[collection], fragments...)
	return nil
}

func (m *memoryStore) ListCollections(ctx context.Context) ([]storage.Collection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	collections := []storage.Collection{}
	for name, fragments := range m.collections {
		collections = append(collections, storage.Collection{Name: name, Fragments: uint64(len(fragments))})
	}
	return collections, nil
}

func (m *memoryStore) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[name])
}

func newTestHandler(t *testing.T, store *memoryStore) *ingestHandler {
	t.Helper()
	pipeline, err := ingestion.New(store)
	if err != nil {
		t.Fatalf("ingestion.New() failed: %v", err)
	}
	return &ingestHandler{ingester: pipeline}
}

func writeTestFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestIngestFile_Text(t *testing.T) {
	store := newMemoryStore("docs")
	h := newTestHandler(t, store)
	content := strings.Repeat("All work and no play. ", 10)
	path := writeTestFile(t, "notes.txt", []byte(content))

	res, out, err := h.IngestFile(context.Background(), nil, IngestFileInput{FilePath: path, CollectionName: "docs"})
	if err != nil {
		t.Fatalf("IngestFile() returned protocol error: %v", err)
	}
	if out != nil {
		t.Errorf("Expected nil typed output, got %v", out)
	}
	if res.IsError {
		t.Fatalf("IngestFile() reported error: %+v", res.StructuredContent)
	}

	output, ok := res.StructuredContent.(IngestFileOutput)
	if !ok {
		t.Fatalf("StructuredContent is %T, want IngestFileOutput", res.StructuredContent)
	}
	if output.ContentType != "text/plain" {
		t.Errorf("content_type = %q, want text/plain", output.ContentType)
	}
	if output.Size != len(content) || output.ChunksCreated != 1 {
		t.Errorf("Unexpected output: %+v", output)
	}
	if output.Content != content[:ingestion.PreviewLimit]+ingestion.PreviewEllipsis {
		t.Errorf("content preview = %q", output.Content)
	}
	if store.count("docs") != 1 {
		t.Errorf("Store holds %d fragments, want 1", store.count("docs"))
	}

	text, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("Content[0] is %T, want *mcp.TextContent", res.Content[0])
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(text.Text), &decoded); err != nil {
		t.Fatalf("Text content is not JSON: %v", err)
	}
	for _, key := range []string{"content", "content_type", "size", "chunks_created"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("Text content is missing %q", key)
		}
	}
}

func TestIngestFile_Image(t *testing.T) {
	store := newMemoryStore("docs")
	h := newTestHandler(t, store)
	raw := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	path := writeTestFile(t, "logo.png", raw)

	res, _, err := h.IngestFile(context.Background(), nil, IngestFileInput{FilePath: path, CollectionName: "docs"})
	if err != nil {
		t.Fatalf("IngestFile() returned protocol error: %v", err)
	}
	if res.IsError {
		t.Fatalf("IngestFile() reported error: %+v", res.StructuredContent)
	}

	image, ok := res.Content[0].(*mcp.ImageContent)
	if !ok {
		t.Fatalf("Content[0] is %T, want *mcp.ImageContent", res.Content[0])
	}
	if !bytes.Equal(image.Data, raw) || image.MIMEType != "image/png" {
		t.Errorf("Unexpected image content: %d bytes, %s", len(image.Data), image.MIMEType)
	}

	output, ok := res.StructuredContent.(IngestImageOutput)
	if !ok {
		t.Fatalf("StructuredContent is %T, want IngestImageOutput", res.StructuredContent)
	}
	expected := IngestImageOutput{ContentType: "image/png", Size: len(raw), Format: "png"}
	if output != expected {
		t.Errorf("Image output = %+v, want %+v", output, expected)
	}
	if store.count("docs") != 0 {
		t.Error("Images must not be stored")
	}
}

func TestIngestFile_Errors(t *testing.T) {
	existing := writeTestFile(t, "notes.txt", []byte("hello"))

	tests := []struct {
		name     string
		input    IngestFileInput
		wantKind ingestion.ErrorKind
		contains string
	}{
		{
			name:     "missing collection",
			input:    IngestFileInput{FilePath: existing, CollectionName: "missing"},
			wantKind: ingestion.ErrorKindCollectionNotFound,
			contains: "Collection 'missing' does not exist. Please create it first.",
		},
		{
			name:     "missing file",
			input:    IngestFileInput{FilePath: "/definitely/not/here.txt", CollectionName: "docs"},
			wantKind: ingestion.ErrorKindFileNotFound,
			contains: "File not found: /definitely/not/here.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryStore("docs")
			h := newTestHandler(t, store)

			res, _, err := h.IngestFile(context.Background(), nil, tt.input)
			if err != nil {
				t.Fatalf("IngestFile() returned protocol error: %v", err)
			}
			if !res.IsError {
				t.Fatal("Expected IsError result")
			}

			output, ok := res.StructuredContent.(IngestErrorOutput)
			if !ok {
				t.Fatalf("StructuredContent is %T, want IngestErrorOutput", res.StructuredContent)
			}
			if output.ErrorKind != string(tt.wantKind) {
				t.Errorf("error_kind = %q, want %q", output.ErrorKind, tt.wantKind)
			}
			if !strings.Contains(output.Error, tt.contains) {
				t.Errorf("error = %q, want it to contain %q", output.Error, tt.contains)
			}
			if store.count("docs") != 0 {
				t.Error("Failed calls must not write")
			}
		})
	}
}

func TestIngestFile_NoStore(t *testing.T) {
	tests := []struct {
		name     string
		ingester Ingester
	}{
		{name: "nil ingester", ingester: nil},
		{name: "pipeline without store", ingester: func() Ingester {
			p, _ := ingestion.New(nil)
			return p
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &ingestHandler{ingester: tt.ingester}
			res, _, err := h.IngestFile(context.Background(), nil, IngestFileInput{FilePath: "/tmp/x", CollectionName: "docs"})
			if err != nil {
				t.Fatalf("IngestFile() returned protocol error: %v", err)
			}
			output, _ := res.StructuredContent.(IngestErrorOutput)
			if !res.IsError || output.ErrorKind != string(ingestion.ErrorKindStoreUninitialized) {
				t.Errorf("Expected store_uninitialized error, got %+v", res.StructuredContent)
			}
		})
	}
}

type failingIngester struct{ err error }

func (f failingIngester) Ingest(ctx context.Context, req ingestion.Request) (*ingestion.Result, error) {
	return nil, f.err
}

func TestIngestFile_UntypedErrorIsIngestionError(t *testing.T) {
	h := &ingestHandler{ingester: failingIngester{err: errors.New("boom")}}

	res, _, _ := h.IngestFile(context.Background(), nil, IngestFileInput{FilePath: "/x", CollectionName: "docs"})
	output, _ := res.StructuredContent.(IngestErrorOutput)
	if !res.IsError || output.ErrorKind != string(ingestion.ErrorKindIngestion) || output.Error != "boom" {
		t.Errorf("Unexpected error output: %+v", output)
	}
}

// connect starts an in-memory client session against a server with both tools registered
func connect(t *testing.T, store *memoryStore) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	pipeline, err := ingestion.New(store)
	if err != nil {
		t.Fatalf("ingestion.New() failed: %v", err)
	}

	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "v0.0.1"}, nil)
	if err := RegisterIngestTools(server, pipeline); err != nil {
		t.Fatalf("RegisterIngestTools() failed: %v", err)
	}
	if err := RegisterCollectionTools(server, store); err != nil {
		t.Fatalf("RegisterCollectionTools() failed: %v", err)
	}

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	if err != nil {
		t.Fatalf("server.Connect() failed: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client.Connect() failed: %v", err)
	}
	t.Cleanup(func() { session.Close() })

	return session
}

func TestIngestFile_OverMCP(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore("docs")
	session := connect(t, store)

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools() failed: %v", err)
	}
	names := make(map[string]bool)
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	if !names["ingest_file"] || !names["list_collections"] {
		t.Fatalf("Registered tools = %v", names)
	}

	path := writeTestFile(t, "readme.md", []byte("# Title\n\nSome text."))
	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: "ingest_file",
		Arguments: map[string]any{
			"file_path":       path,
			"collection_name": "docs",
		},
	})
	if err != nil {
		t.Fatalf("CallTool() failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("ingest_file reported error: %+v", res.StructuredContent)
	}

	structured, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("StructuredContent is %T, want a JSON object", res.StructuredContent)
	}
	if structured["chunks_created"] != float64(1) {
		t.Errorf("chunks_created = %v, want 1", structured["chunks_created"])
	}
	if store.count("docs") != 1 {
		t.Errorf("Store holds %d fragments, want 1", store.count("docs"))
	}

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name: "ingest_file",
		Arguments: map[string]any{
			"file_path":       path,
			"collection_name": "nope",
		},
	})
	if err != nil {
		t.Fatalf("CallTool() failed: %v", err)
	}
	if !res.IsError {
		t.Fatal("Expected IsError for missing collection")
	}
	structured, _ = res.StructuredContent.(map[string]any)
	if structured["error_kind"] != "collection_not_found" {
		t.Errorf("error_kind = %v, want collection_not_found", structured["error_kind"])
	}
}

func TestListCollections_OverMCP(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore("docs")
	session := connect(t, store)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "list_collections",
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("CallTool() failed: %v", err)
	}
	if res.IsError {
		t.Fatalf("list_collections reported error: %+v", res.Content)
	}

	structured, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("StructuredContent is %T, want a JSON object", res.StructuredContent)
	}
	if structured["total"] != float64(1) {
		t.Errorf("total = %v, want 1", structured["total"])
	}
}

func TestRegisterCollectionTools_RequiresLister(t *testing.T) {
	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "v0.0.1"}, nil)
	if err := RegisterCollectionTools(server, nil); err == nil {
		t.Error("Expected error for nil lister")
	}
}

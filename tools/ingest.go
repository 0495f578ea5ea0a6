package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docbuilder/mcp-server/internal/ingestion"
)

// IngestFileInput defines input for ingest_file tool
type IngestFileInput struct {
	FilePath       string `json:"file_path" jsonschema:"Path to the file to ingest (absolute, relative or starting with ~)"`
	CollectionName string `json:"collection_name" jsonschema:"Name of an existing collection to add the fragments to"`
	ContentType    string `json:"content_type,omitempty" jsonschema:"MIME type override (optional, inferred from the file extension otherwise)"`
}

// IngestFileOutput is the structured result for text and binary files
type IngestFileOutput struct {
	Content       string `json:"content"`
	ContentType   string `json:"content_type"`
	Size          int    `json:"size"`
	ChunksCreated int    `json:"chunks_created"`
}

// IngestImageOutput is the structured result for images; the image itself is
// returned as image content
type IngestImageOutput struct {
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
	Format      string `json:"format"`
}

// IngestErrorOutput is the structured result of a failed call
type IngestErrorOutput struct {
	Error     string `json:"error"`
	ErrorKind string `json:"error_kind"`
}

// Ingester is the pipeline behind ingest_file
type Ingester interface {
	Ingest(ctx context.Context, req ingestion.Request) (*ingestion.Result, error)
}

// ingestHandler adapts an Ingester to the MCP tool signature
type ingestHandler struct {
	ingester Ingester
}

// IngestFile ingests one file into a collection.
// Failures are reported in the tool result (IsError) rather than as protocol errors,
// so the caller always gets the error kind.
func (h *ingestHandler) IngestFile(ctx context.Context, req *mcp.CallToolRequest, input IngestFileInput) (*mcp.CallToolResult, any, error) {
	if h.ingester == nil {
		return errorResult(&ingestion.Error{
			Kind:    ingestion.ErrorKindStoreUninitialized,
			Message: "Collection store not initialized",
			Err:     ingestion.ErrStoreUninitialized,
		}), nil, nil
	}

	result, err := h.ingester.Ingest(ctx, ingestion.Request{
		FilePath:       input.FilePath,
		CollectionName: input.CollectionName,
		ContentType:    input.ContentType,
	})
	if err != nil {
		return errorResult(err), nil, nil
	}

	if result.Kind == ingestion.KindImage {
		return imageResult(result), nil, nil
	}

	output := IngestFileOutput{
		Content:       result.Preview,
		ContentType:   result.ContentType,
		Size:          result.Size,
		ChunksCreated: result.ChunksCreated,
	}
	return structuredResult(output), nil, nil
}

func imageResult(result *ingestion.Result) *mcp.CallToolResult {
	var data []byte
	format := ingestion.ImageFormat(result.ContentType)
	if result.Image != nil {
		data = result.Image.Data
		format = result.Image.Format
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.ImageContent{
				Data:     data,
				MIMEType: result.ContentType,
			},
		},
		StructuredContent: IngestImageOutput{
			ContentType: result.ContentType,
			Size:        result.Size,
			Format:      format,
		},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	output := IngestErrorOutput{
		Error:     err.Error(),
		ErrorKind: string(ingestion.ErrorKindIngestion),
	}

	var ingestErr *ingestion.Error
	if errors.As(err, &ingestErr) {
		output.Error = ingestErr.Message
		output.ErrorKind = string(ingestErr.Kind)
	}

	log.Printf("ingest_file failed (%s): %s", output.ErrorKind, output.Error)

	res := structuredResult(output)
	res.IsError = true
	return res
}

// structuredResult returns output both as structured content and as its JSON text
func structuredResult(output any) *mcp.CallToolResult {
	text, err := json.Marshal(output)
	if err != nil {
		text = []byte(err.Error())
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
		StructuredContent: output,
	}
}

// RegisterIngestTools registers the file ingestion tool
func RegisterIngestTools(server *mcp.Server, ingester Ingester) error {
	if ingester == nil {
		log.Printf("Warning: ingest_file registered without a collection store, calls will fail")
	}

	h := &ingestHandler{ingester: ingester}

	mcp.AddTool(server,
		&mcp.Tool{
			Name: "ingest_file",
			Description: "Ingest a local file into an existing collection. Text is split into fragments of bounded size " +
				"and stored with provenance metadata; other binary content is stored as one placeholder fragment; " +
				"images are returned inline and not stored.",
		},
		h.IngestFile,
	)

	return nil
}

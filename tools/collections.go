package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/docbuilder/mcp-server/internal/storage"
)

// ListCollectionsInput defines input for list_collections tool
type ListCollectionsInput struct{}

// ListCollectionsOutput defines output for list_collections tool
type ListCollectionsOutput struct {
	Collections []storage.Collection `json:"collections"`
	Total       int                  `json:"total"`
}

// CollectionLister lists the collections of a store
type CollectionLister interface {
	ListCollections(ctx context.Context) ([]storage.Collection, error)
}

// RegisterCollectionTools registers the collection listing tool so callers can
// discover valid targets for ingest_file
func RegisterCollectionTools(server *mcp.Server, lister CollectionLister) error {
	if lister == nil {
		return fmt.Errorf("collection lister is required")
	}

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_collections",
			Description: "List the collections of the store with their fragment counts",
		},
		func(ctx context.Context, req *mcp.CallToolRequest, input ListCollectionsInput) (*mcp.CallToolResult, ListCollectionsOutput, error) {
			collections, err := lister.ListCollections(ctx)
			if err != nil {
				return nil, ListCollectionsOutput{}, fmt.Errorf("listing collections: %w", err)
			}
			return nil, ListCollectionsOutput{Collections: collections, Total: len(collections)}, nil
		},
	)

	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/docbuilder/mcp-server/internal/config"
	"github.com/docbuilder/mcp-server/internal/ingestion"
	"github.com/docbuilder/mcp-server/internal/storage"
	"github.com/docbuilder/mcp-server/tools"
)

const (
	version     = "0.1.0"
	serverName  = "docbuilder-mcp-server"
	description = "MCP server for ingesting local files into persistent collections"
)

func main() {
	// Set up logging to stderr (MCP uses stdout for protocol)
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     serverName,
		Short:   description,
		Version: version,
		Long: `Serve the ingest_file MCP tool over stdio (default) or streamable HTTP.

Collections must exist before files can be ingested into them; create them
with the collections command against the same store path.

Examples:
  # Stdio mode
  docbuilder-mcp-server --store-path ~/.docbuilder/store

  # HTTP mode with a TOML config file
  docbuilder-mcp-server --config docbuilder.toml --http :8080`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromFlags(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.SetVersionTemplate(fmt.Sprintf("%s version {{.Version}}\n", serverName))
	config.RegisterFlags(cmd.Flags(), true)

	return cmd
}

// run opens the store and serves until ctx is cancelled
func run(ctx context.Context, cfg config.Config) error {
	log.Printf("%s v%s starting...", serverName, version)
	log.Printf("✓ Persistent store path: %s", cfg.StorePath)

	store, err := storage.Open(ctx, storage.Options{Path: cfg.StorePath, Backend: cfg.Backend})
	if err != nil {
		return fmt.Errorf("failed to open collection store: %w", err)
	}

	// Set up cleanup on shutdown
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing collection store: %v", err)
		}
	}()

	pipeline, err := ingestion.New(store, ingestion.WithMaxFragmentSize(cfg.MaxFragmentSize))
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}

	server := createMCPServer()
	if err := registerTools(server, store, pipeline); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	log.Printf("✓ Server ready and waiting for connections")

	if cfg.HTTPAddr != "" {
		err = runHTTP(ctx, server, cfg.HTTPAddr)
	} else {
		err = server.Run(ctx, &mcp.StdioTransport{})
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}

	log.Printf("Shutting down...")
	return nil
}

// createMCPServer initializes the MCP server
func createMCPServer() *mcp.Server {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    serverName,
			Version: version,
		},
		nil, // Default options
	)

	log.Printf("Server initialized: %s v%s", serverName, version)
	return server
}

// registerTools registers all MCP tools
func registerTools(server *mcp.Server, store storage.Store, pipeline *ingestion.Pipeline) error {
	if err := tools.RegisterIngestTools(server, pipeline); err != nil {
		return fmt.Errorf("failed to register ingest tools: %w", err)
	}
	if err := tools.RegisterCollectionTools(server, store); err != nil {
		return fmt.Errorf("failed to register collection tools: %w", err)
	}

	log.Printf("✓ All tools registered: 2 tools (ingest_file + list_collections)")
	return nil
}

// runHTTP serves the MCP server over streamable HTTP until ctx is cancelled
func runHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Warning: HTTP shutdown: %v", err)
		}
	}()

	log.Printf("✓ Listening on http://%s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

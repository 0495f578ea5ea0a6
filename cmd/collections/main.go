package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/docbuilder/mcp-server/internal/config"
	"github.com/docbuilder/mcp-server/internal/ingestion"
	"github.com/docbuilder/mcp-server/internal/storage"
)

func main() {
	log.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "collections",
		Short:        "Administer the collections of a docbuilder store",
		SilenceUsage: true,
	}
	config.RegisterFlags(root.PersistentFlags(), false)

	root.AddCommand(newCreateCmd(), newListCmd(), newIngestCmd())
	return root
}

// withStore opens the store configured by the command's flags, runs fn and closes it
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg config.Config, store storage.Store) error) error {
	cfg, err := config.FromFlags(cmd.Flags())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := storage.Open(ctx, storage.Options{Path: cfg.StorePath, Backend: cfg.Backend})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing collection store: %v", err)
		}
	}()

	return fn(ctx, cfg, store)
}

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, _ config.Config, store storage.Store) error {
				if err := store.CreateCollection(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created collection %s\n", args[0])
				return nil
			})
		},
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections with their fragment counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, _ config.Config, store storage.Store) error {
				collections, err := store.ListCollections(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tFRAGMENTS")
				for _, c := range collections {
					fmt.Fprintf(w, "%s\t%d\n", c.Name, c.Fragments)
				}
				return w.Flush()
			})
		},
	}
}

func newIngestCmd() *cobra.Command {
	var contentType string

	cmd := &cobra.Command{
		Use:   "ingest <file> <collection>",
		Short: "Ingest one file into an existing collection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, cfg config.Config, store storage.Store) error {
				pipeline, err := ingestion.New(store, ingestion.WithMaxFragmentSize(cfg.MaxFragmentSize))
				if err != nil {
					return err
				}

				log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
				result, err := pipeline.Ingest(ctx, ingestion.Request{
					FilePath:       args[0],
					CollectionName: args[1],
					ContentType:    contentType,
				})
				if err != nil {
					return err
				}
				log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Source:       %s\n", result.SourceFile)
				fmt.Fprintf(out, "Content type: %s (%s)\n", result.ContentType, result.Kind)
				fmt.Fprintf(out, "Size:         %d\n", result.Size)
				if result.Kind == ingestion.KindImage {
					fmt.Fprintf(out, "Images are not stored\n")
					return nil
				}
				fmt.Fprintf(out, "Fragments:    %d\n", result.ChunksCreated)
				fmt.Fprintf(out, "Preview:      %q\n", result.Preview)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type override")

	return cmd
}

package storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/docbuilder/mcp-server/internal/ingestion"
)

const collectionsDir = "collections"

// fragmentDocument is the bleve document stored for each fragment.
// The fragment id is the bleve document id.
type fragmentDocument struct {
	Text        string `json:"text"`
	SourceFile  string `json:"source_file"`
	ContentType string `json:"content_type"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	IsBinary    bool   `json:"is_binary"`
}

func newFragmentDocument(fragment ingestion.Fragment) fragmentDocument {
	return fragmentDocument{
		Text:        fragment.Text,
		SourceFile:  fragment.Metadata.SourceFile,
		ContentType: fragment.Metadata.ContentType,
		ChunkIndex:  fragment.Metadata.ChunkIndex,
		TotalChunks: fragment.Metadata.TotalChunks,
		IsBinary:    fragment.Metadata.IsBinary,
	}
}

// bleveBackend keeps one bleve index per collection under <root>/collections/<name>.
// Opened indexes are cached until Close.
type bleveBackend struct {
	dir string

	// mu guards indexes and serialises appends so the duplicate-id check
	// and the batch write are not interleaved
	mu      sync.Mutex
	indexes map[string]bleve.Index
	closed  bool
}

func openBleve(root string) (*bleveBackend, error) {
	dir := filepath.Join(root, collectionsDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create collections directory: %w", err)
	}
	return &bleveBackend{
		dir:     dir,
		indexes: make(map[string]bleve.Index),
	}, nil
}

// newFragmentIndex creates an empty index with explicit field mappings:
// analysed text for search, keywords and numbers for provenance filters
func newFragmentIndex(path string) (bleve.Index, error) {
	fragmentMapping := bleve.NewDocumentMapping()
	fragmentMapping.AddFieldMappingsAt("text", bleve.NewTextFieldMapping())
	fragmentMapping.AddFieldMappingsAt("source_file", bleve.NewKeywordFieldMapping())
	fragmentMapping.AddFieldMappingsAt("content_type", bleve.NewKeywordFieldMapping())
	fragmentMapping.AddFieldMappingsAt("chunk_index", bleve.NewNumericFieldMapping())
	fragmentMapping.AddFieldMappingsAt("total_chunks", bleve.NewNumericFieldMapping())
	fragmentMapping.AddFieldMappingsAt("is_binary", bleve.NewBooleanFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = fragmentMapping

	return bleve.New(path, indexMapping)
}

func (b *bleveBackend) collectionPath(name string) string {
	return filepath.Join(b.dir, name)
}

// index returns the open index for name, opening it on first use.
// Callers must hold b.mu.
func (b *bleveBackend) index(name string) (bleve.Index, error) {
	if idx, ok := b.indexes[name]; ok {
		return idx, nil
	}
	if ValidateCollectionName(name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	path := b.collectionPath(name)
	if info, err := os.Stat(path); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection index %s: %w", name, err)
	}
	b.indexes[name] = idx
	return idx, nil
}

func (b *bleveBackend) CollectionExists(ctx context.Context, name string) (bool, error) {
	if ValidateCollectionName(name) != nil {
		return false, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, ErrClosed
	}

	if _, ok := b.indexes[name]; ok {
		return true, nil
	}
	info, err := os.Stat(b.collectionPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func (b *bleveBackend) CreateCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	path := b.collectionPath(name)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	idx, err := newFragmentIndex(path)
	if err != nil {
		os.RemoveAll(path)
		return fmt.Errorf("failed to create collection index %s: %w", name, err)
	}
	b.indexes[name] = idx

	log.Printf("✓ Collection '%s' created", name)
	return nil
}

// Append writes all fragments in one bleve batch, which is applied atomically
func (b *bleveBackend) Append(ctx context.Context, collection string, fragments []ingestion.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	if err := checkFragments(fragments); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}

	idx, err := b.index(collection)
	if err != nil {
		return err
	}

	for _, fragment := range fragments {
		doc, err := idx.Document(fragment.ID)
		if err != nil {
			return fmt.Errorf("failed to look up fragment %s: %w", fragment.ID, err)
		}
		if doc != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateFragment, fragment.ID)
		}
	}

	batch := idx.NewBatch()
	for _, fragment := range fragments {
		if err := batch.Index(fragment.ID, newFragmentDocument(fragment)); err != nil {
			return fmt.Errorf("failed to add fragment %s to batch: %w", fragment.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		return fmt.Errorf("failed to index batch: %w", err)
	}

	return nil
}

func (b *bleveBackend) ListCollections(ctx context.Context) ([]Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read collections directory: %w", err)
	}

	collections := make([]Collection, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || ValidateCollectionName(entry.Name()) != nil {
			continue
		}

		idx, err := b.index(entry.Name())
		if err != nil {
			log.Printf("Warning: Skipping unreadable collection %s: %v", entry.Name(), err)
			continue
		}
		count, err := idx.DocCount()
		if err != nil {
			return nil, fmt.Errorf("failed to count fragments in %s: %w", entry.Name(), err)
		}
		collections = append(collections, Collection{Name: entry.Name(), Fragments: count})
	}

	return collections, nil
}

func (b *bleveBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true

	var closeErr error
	for name, idx := range b.indexes {
		if err := idx.Close(); err != nil {
			log.Printf("Error closing collection index %s: %v", name, err)
			if closeErr == nil {
				closeErr = err
			}
		}
	}
	b.indexes = nil

	return closeErr
}

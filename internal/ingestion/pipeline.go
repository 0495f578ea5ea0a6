package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// CollectionStore is the durable fragment store the pipeline writes to.
// Collections are created elsewhere; the pipeline only checks and appends.
type CollectionStore interface {
	// CollectionExists reports whether the named collection has been created
	CollectionExists(ctx context.Context, name string) (bool, error)

	// Append adds all fragments to the collection in one batch.
	// It never overwrites: an id that is already present is an error.
	Append(ctx context.Context, collection string, fragments []Fragment) error
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithMaxFragmentSize sets the fragment size bound in characters
func WithMaxFragmentSize(size int) Option {
	return func(p *Pipeline) {
		p.maxFragmentSize = size
	}
}

// WithIDGenerator replaces the fragment id generator (UUIDv4 by default)
func WithIDGenerator(newID func() string) Option {
	return func(p *Pipeline) {
		if newID != nil {
			p.newID = newID
		}
	}
}

// Pipeline ingests single files into collections.
// It keeps no state between calls; one Pipeline serves concurrent calls.
type Pipeline struct {
	store           CollectionStore
	chunker         *RecursiveChunker
	maxFragmentSize int
	newID           func() string
}

// New creates a pipeline writing to store.
// A nil store is accepted; every Ingest call then fails with ErrStoreUninitialized.
func New(store CollectionStore, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		store:           store,
		maxFragmentSize: DefaultMaxFragmentSize,
		newID:           uuid.NewString,
	}

	for _, opt := range opts {
		opt(p)
	}

	chunker, err := NewRecursiveChunker(p.maxFragmentSize)
	if err != nil {
		return nil, err
	}
	p.chunker = chunker

	return p, nil
}

// MaxFragmentSize returns the configured fragment size bound
func (p *Pipeline) MaxFragmentSize() int {
	return p.maxFragmentSize
}

// Ingest reads one file and appends its fragments to the requested collection.
// Every failure is returned as *Error; a panic raised below is converted too.
func (p *Pipeline) Ingest(ctx context.Context, req Request) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: recovered from panic while ingesting %s: %v", req.FilePath, r)
			result = nil
			err = ingestionError(fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	if p == nil || p.store == nil {
		return nil, storeUninitializedError()
	}

	// Step 1: the collection must already exist
	exists, err := p.store.CollectionExists(ctx, req.CollectionName)
	if err != nil {
		return nil, ingestionError(fmt.Errorf("checking collection %q: %w", req.CollectionName, err))
	}
	if !exists {
		return nil, collectionNotFoundError(req.CollectionName)
	}

	// Step 2: resolve the path
	path, err := ResolvePath(req.FilePath)
	if err != nil {
		return nil, ingestionError(err)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fileNotFoundError(req.FilePath)
		}
		return nil, ingestionError(err)
	}

	// Step 3: resolve the content type
	contentType := ResolveContentType(path, req.ContentType)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, ingestionError(err)
	}

	// Step 4: branch
	switch contentType.Kind {
	case KindImage:
		log.Printf("✓ Returning image %s inline (%s, %d bytes)", path, contentType.MIME, len(raw))
		return &Result{
			Kind:        KindImage,
			ContentType: contentType.MIME,
			Size:        len(raw),
			SourceFile:  path,
			Image: &ImagePayload{
				Data:   raw,
				Format: ImageFormat(contentType.MIME),
			},
		}, nil

	case KindText:
		text, ok := DecodeText(raw)
		if !ok {
			log.Printf("Content of %s is not valid UTF-8, storing as binary", path)
			return p.ingestBinary(ctx, req.CollectionName, path, contentType.MIME, raw)
		}
		return p.ingestText(ctx, req.CollectionName, path, contentType.MIME, text)

	case KindBinary:
		return p.ingestBinary(ctx, req.CollectionName, path, contentType.MIME, raw)

	default:
		return nil, ingestionError(fmt.Errorf("unsupported content kind %v", contentType.Kind))
	}
}

// ingestText chunks decoded text and appends every fragment in one batch
func (p *Pipeline) ingestText(ctx context.Context, collection, path, contentType, text string) (*Result, error) {
	pieces := p.chunker.Chunk(text)

	fragments := make([]Fragment, len(pieces))
	for i, piece := range pieces {
		fragments[i] = Fragment{
			ID:       p.newID(),
			Text:     piece,
			Metadata: BuildMetadata(path, contentType, i, len(pieces)),
		}
	}

	// Empty files produce no fragments and need no write
	if len(fragments) > 0 {
		if err := p.store.Append(ctx, collection, fragments); err != nil {
			return nil, ingestionError(fmt.Errorf("appending to collection %q: %w", collection, err))
		}
	}

	size := utf8.RuneCountInString(text)
	log.Printf("✓ Ingested %s into '%s' (%d chunks, %d chars)", path, collection, len(fragments), size)

	return &Result{
		Kind:          KindText,
		Preview:       Preview(text),
		ContentType:   contentType,
		Size:          size,
		ChunksCreated: len(fragments),
		SourceFile:    path,
	}, nil
}

// ingestBinary stores a single placeholder fragment describing raw
func (p *Pipeline) ingestBinary(ctx context.Context, collection, path, contentType string, raw []byte) (*Result, error) {
	placeholder := BinaryPlaceholder(contentType, len(raw))

	fragment := Fragment{
		ID:       p.newID(),
		Text:     placeholder,
		Metadata: BinaryMetadata(path, contentType),
	}
	if err := p.store.Append(ctx, collection, []Fragment{fragment}); err != nil {
		return nil, ingestionError(fmt.Errorf("appending to collection %q: %w", collection, err))
	}

	log.Printf("✓ Ingested binary %s into '%s' (%s, %d bytes)", path, collection, contentType, len(raw))

	return &Result{
		Kind:          KindBinary,
		Preview:       Preview(placeholder),
		ContentType:   contentType,
		Size:          len(raw),
		ChunksCreated: 1,
		SourceFile:    path,
	}, nil
}

// ResolvePath expands a leading "~", makes path absolute and resolves symlinks
// when the target exists
func ResolvePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home directory: %w", err)
		}
		path = filepath.Join(home, path[1:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", path, err)
	}

	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

// Package storage implements the persistent collection store that ingested
// fragments are appended to.
//
// A store lives in a single directory. The directory holds an inter-process
// lock file, a version marker and the backend's own data: one bleve index per
// collection, or a single SQLite database.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/docbuilder/mcp-server/internal/ingestion"
)

const (
	// BackendBleve stores each collection as an on-disk bleve index
	BackendBleve = "bleve"
	// BackendSQLite stores every collection in one SQLite database
	BackendSQLite = "sqlite"

	// DefaultBackend is used when Options.Backend is empty
	DefaultBackend = BackendBleve

	lockFileName = "store.lock"
)

var (
	ErrInvalidCollectionName = errors.New("invalid collection name")
	ErrCollectionExists      = errors.New("collection already exists")
	ErrCollectionNotFound    = errors.New("collection not found")
	ErrDuplicateFragment     = errors.New("fragment id already present")
	ErrUnknownBackend        = errors.New("unknown storage backend")
	ErrIncompatibleStore     = errors.New("incompatible store")
	ErrClosed                = errors.New("store closed")
)

// collectionNamePattern keeps names usable as directory names: 3-63 characters,
// alphanumeric at both ends
var collectionNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{1,61}[A-Za-z0-9]$`)

// Collection describes a named collection and how many fragments it holds
type Collection struct {
	Name      string `json:"name"`
	Fragments uint64 `json:"fragments"`
}

// Store is a collection store with the administrative operations the
// ingestion path does not need
type Store interface {
	ingestion.CollectionStore

	// CreateCollection creates an empty collection.
	// It fails with ErrCollectionExists when the name is taken.
	CreateCollection(ctx context.Context, name string) error

	// ListCollections returns every collection sorted by name
	ListCollections(ctx context.Context) ([]Collection, error)

	// Path returns the absolute store directory
	Path() string

	// Backend returns the backend name
	Backend() string

	// Close releases the backend and the inter-process lock
	Close() error
}

// Options configures Open
type Options struct {
	// Path is the store directory, created if missing
	Path string

	// Backend is BackendBleve or BackendSQLite
	Backend string
}

// backend is what each storage engine implements; store adds locking on top
type backend interface {
	ingestion.CollectionStore
	CreateCollection(ctx context.Context, name string) error
	ListCollections(ctx context.Context) ([]Collection, error)
	Close() error
}

type store struct {
	backend
	root string
	name string
	lock *fileLock
}

// Open opens (or creates) the store at opts.Path.
// The directory is locked for the lifetime of the returned Store.
func Open(ctx context.Context, opts Options) (Store, error) {
	startTime := time.Now()

	if opts.Path == "" {
		return nil, errors.New("store path is required")
	}
	name := opts.Backend
	if name == "" {
		name = DefaultBackend
	}
	if name != BackendBleve && name != BackendSQLite {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}

	root, err := filepath.Abs(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("resolving store path: %w", err)
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	lock := newFileLock(filepath.Join(root, lockFileName))
	log.Printf("Acquiring store lock...")
	lockStart := time.Now()
	if err := lock.acquire(); err != nil {
		return nil, fmt.Errorf("failed to acquire store lock: %w", err)
	}
	log.Printf("Lock acquired in %v", time.Since(lockStart).Round(time.Millisecond))

	if err := checkStoreVersion(root, name); err != nil {
		lock.release()
		return nil, err
	}

	var b backend
	switch name {
	case BackendBleve:
		b, err = openBleve(root)
	case BackendSQLite:
		b, err = openSQLite(ctx, root)
	}
	if err != nil {
		lock.release()
		return nil, fmt.Errorf("opening %s backend: %w", name, err)
	}

	if err := writeStoreVersion(root, name); err != nil {
		log.Printf("Warning: Failed to write store version: %v", err)
	}

	log.Printf("✓ Collection store opened at %s (%s backend) in %v",
		root, name, time.Since(startTime).Round(time.Millisecond))

	return &store{backend: b, root: root, name: name, lock: lock}, nil
}

func (s *store) Path() string {
	return s.root
}

func (s *store) Backend() string {
	return s.name
}

// Close closes the backend and always attempts to release the lock, even if
// closing the backend failed
func (s *store) Close() error {
	closeErr := s.backend.Close()
	if closeErr != nil {
		log.Printf("Error closing %s backend: %v", s.name, closeErr)
	} else {
		log.Printf("✓ Collection store closed")
	}

	if err := s.lock.release(); err != nil {
		log.Printf("Error releasing lock: %v", err)
		if closeErr == nil {
			closeErr = err
		}
	}

	return closeErr
}

// ValidateCollectionName reports whether name can be used for a collection
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q (3-63 characters, letters, digits, '.', '_' or '-', starting and ending with a letter or digit)",
			ErrInvalidCollectionName, name)
	}
	return nil
}

// checkFragments rejects a batch that repeats an id or has no id at all
func checkFragments(fragments []ingestion.Fragment) error {
	seen := make(map[string]struct{}, len(fragments))
	for _, fragment := range fragments {
		if fragment.ID == "" {
			return errors.New("fragment has an empty id")
		}
		if _, dup := seen[fragment.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateFragment, fragment.ID)
		}
		seen[fragment.ID] = struct{}{}
	}
	return nil
}

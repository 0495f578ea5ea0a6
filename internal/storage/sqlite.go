package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/docbuilder/mcp-server/internal/ingestion"
)

const sqliteFile = "store.db"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS fragments (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
		text TEXT NOT NULL,
		source_file TEXT NOT NULL,
		content_type TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		total_chunks INTEGER NOT NULL,
		is_binary INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_fragments_collection ON fragments(collection)`,
}

// sqliteBackend stores every collection in one database file.
// A single connection serialises all statements.
type sqliteBackend struct {
	db *sql.DB

	mu     sync.Mutex
	closed bool
}

func openSQLite(ctx context.Context, root string) (*sqliteBackend, error) {
	dbPath := filepath.Join(root, sqliteFile)

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating schema: %w", err)
		}
	}

	return &sqliteBackend{db: db}, nil
}

func (s *sqliteBackend) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

func (s *sqliteBackend) CollectionExists(ctx context.Context, name string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM collections WHERE name = ?)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("querying collection: %w", err)
	}
	return exists == 1, nil
}

func (s *sqliteBackend) CreateCollection(ctx context.Context, name string) error {
	if err := ValidateCollectionName(name); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	log.Printf("✓ Collection '%s' created", name)
	return nil
}

// Append inserts all fragments in one transaction; any failure rolls back the whole batch
func (s *sqliteBackend) Append(ctx context.Context, collection string, fragments []ingestion.Fragment) error {
	if len(fragments) == 0 {
		return nil
	}
	if err := checkFragments(fragments); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM collections WHERE name = ?)`, collection).Scan(&exists); err != nil {
		return fmt.Errorf("querying collection: %w", err)
	}
	if exists != 1 {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO fragments (id, collection, text, source_file, content_type, chunk_index, total_chunks, is_binary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, fragment := range fragments {
		meta := fragment.Metadata
		_, err := stmt.ExecContext(ctx, fragment.ID, collection, fragment.Text,
			meta.SourceFile, meta.ContentType, meta.ChunkIndex, meta.TotalChunks, meta.IsBinary)
		if err != nil {
			if strings.Contains(err.Error(), "UNIQUE constraint failed") {
				return fmt.Errorf("%w: %s", ErrDuplicateFragment, fragment.ID)
			}
			return fmt.Errorf("inserting fragment %s: %w", fragment.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing fragments: %w", err)
	}
	return nil
}

func (s *sqliteBackend) ListCollections(ctx context.Context) ([]Collection, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.name, COUNT(f.id)
		FROM collections c
		LEFT JOIN fragments f ON f.collection = c.name
		GROUP BY c.name
		ORDER BY c.name`)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	collections := []Collection{}
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.Name, &c.Fragments); err != nil {
			return nil, fmt.Errorf("scanning collection: %w", err)
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

func (s *sqliteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

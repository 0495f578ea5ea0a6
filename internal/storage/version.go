package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// StoreSchemaVersion is bumped whenever the on-disk fragment layout changes
	StoreSchemaVersion = 1

	storeVersionFile = ".store_version"
)

// readStoreVersion returns the backend and schema version recorded in root.
// A missing file yields ("", 0).
func readStoreVersion(root string) (backend string, version int, err error) {
	data, err := os.ReadFile(filepath.Join(root, storeVersionFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", 0, nil
		}
		return "", 0, fmt.Errorf("reading store version: %w", err)
	}

	content := strings.TrimSpace(string(data))
	backend, rest, ok := strings.Cut(content, ":")
	if !ok {
		return "", 0, fmt.Errorf("%w: malformed version marker %q", ErrIncompatibleStore, content)
	}
	if _, err := fmt.Sscanf(rest, "v%d", &version); err != nil {
		return "", 0, fmt.Errorf("%w: malformed version marker %q", ErrIncompatibleStore, content)
	}
	return backend, version, nil
}

// writeStoreVersion marks root as a store of the current schema version
func writeStoreVersion(root, backend string) error {
	content := fmt.Sprintf("%s:v%d", backend, StoreSchemaVersion)
	return os.WriteFile(filepath.Join(root, storeVersionFile), []byte(content), 0644)
}

// checkStoreVersion refuses to open a store written by another backend or schema.
// Unlike a rebuildable search index, stored fragments are never discarded.
func checkStoreVersion(root, backend string) error {
	recorded, version, err := readStoreVersion(root)
	if err != nil {
		return err
	}
	if recorded == "" {
		return nil // fresh store
	}
	if recorded != backend {
		return fmt.Errorf("%w: %s was created with the %s backend, not %s",
			ErrIncompatibleStore, root, recorded, backend)
	}
	if version != StoreSchemaVersion {
		return fmt.Errorf("%w: %s has schema v%d, want v%d",
			ErrIncompatibleStore, root, version, StoreSchemaVersion)
	}
	return nil
}

package ingestion_test

import (
	"context"
	"sync"

	"github.com/docbuilder/mcp-server/internal/ingestion"
)

// appendCall records a single Append invocation
type appendCall struct {
	collection string
	fragments  []ingestion.Fragment
}

// mockStore is an in-memory CollectionStore that records every write
type mockStore struct {
	mu            sync.Mutex
	collections   map[string]bool
	appends       []appendCall
	existsError   error
	appendError   error
	panicOnAppend bool
}

func newMockStore(collections ...string) *mockStore {
	m := &mockStore{collections: make(map[string]bool)}
	for _, name := range collections {
		m.collections[name] = true
	}
	return m
}

func (m *mockStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsError != nil {
		return false, m.existsError
	}
	return m.collections[name], nil
}

func (m *mockStore) Append(ctx context.Context, collection string, fragments []ingestion.Fragment) error {
	if m.panicOnAppend {
		panic("store exploded")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendError != nil {
		return m.appendError
	}
	m.appends = append(m.appends, appendCall{
		collection: collection,
		fragments:  append([]ingestion.Fragment(nil), fragments...),
	})
	return nil
}

// writes returns the number of Append calls that succeeded
func (m *mockStore) writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.appends)
}

// Package blob stores original statement documents as opaque bytes.
package blob

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/dvloznov/creditscore/internal/apperr"
)

// Store persists documents under a key and returns a URI that identifies
// them for Get and Delete.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (uri string, err error)
	Get(ctx context.Context, uri string) ([]byte, error)
	Delete(ctx context.Context, uri string) error
}

// FilenameFromURI extracts the final path element from a blob URI.
// e.g., "gs://bucket/folder/file.pdf" → "file.pdf"
func FilenameFromURI(uri string) string {
	if i := strings.Index(uri, "://"); i != -1 {
		uri = uri[i+3:]
	}
	parts := strings.SplitN(uri, "/", 2)
	if len(parts) < 2 {
		return uri
	}
	return path.Base(parts[1])
}

const memScheme = "mem://"

// MemoryStore keeps documents in process memory. URIs look like mem://key.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

// Put implements Store.
func (m *MemoryStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("Put: key is required")
	}
	cp := make([]byte, len(data))
	copy(cp, data)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = cp
	return memScheme + key, nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, uri string) ([]byte, error) {
	key, err := memKey(uri)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "blob.Get", "document %s not found", uri)
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// Delete implements Store. Deleting a missing key is not an error.
func (m *MemoryStore) Delete(ctx context.Context, uri string) error {
	key, err := memKey(uri)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

// Len reports the number of stored documents.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

func memKey(uri string) (string, error) {
	if !strings.HasPrefix(uri, memScheme) {
		return "", fmt.Errorf("invalid memory URI: %s", uri)
	}
	return strings.TrimPrefix(uri, memScheme), nil
}

var _ Store = (*MemoryStore)(nil)

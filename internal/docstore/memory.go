package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	fields    map[string]any
	createdAt time.Time
	updatedAt time.Time
}

// MemoryStore keeps documents in process memory. Used in tests and single-node dev runs.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]memoryEntry
	hub  *hub
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs: make(map[string]memoryEntry),
		hub:  newHub(),
		now:  time.Now,
	}
}

func (m *MemoryStore) Get(ctx context.Context, path string) (Document, error) {
	if err := ValidatePath(path); err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	entry, ok := m.docs[path]
	m.mu.RUnlock()
	if !ok {
		return Document{}, ErrNotFound
	}
	return toDocument(path, entry), nil
}

func (m *MemoryStore) Set(ctx context.Context, path string, fields map[string]any) error {
	return m.write(path, fields, false)
}

func (m *MemoryStore) Merge(ctx context.Context, path string, fields map[string]any) error {
	return m.write(path, fields, true)
}

func (m *MemoryStore) write(path string, fields map[string]any, merge bool) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}

	now := m.now()
	m.mu.Lock()
	entry, exists := m.docs[path]
	if !exists {
		entry.createdAt = now
	}
	if merge && exists {
		entry.fields = mergeFields(entry.fields, normalized)
	} else {
		entry.fields = normalized
	}
	entry.updatedAt = now
	m.docs[path] = entry
	m.mu.Unlock()

	m.hub.changed(path)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, path string) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	m.mu.Lock()
	_, exists := m.docs[path]
	delete(m.docs, path)
	m.mu.Unlock()

	if exists {
		m.hub.changed(path)
	}
	return nil
}

func (m *MemoryStore) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if err := ValidatePath(collection); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := m.Set(ctx, Child(collection, id), fields); err != nil {
		return "", err
	}
	return id, nil
}

func (m *MemoryStore) List(ctx context.Context, collection string, q Query) ([]Document, error) {
	if err := ValidatePath(collection); err != nil {
		return nil, err
	}
	m.mu.RLock()
	docs := make([]Document, 0)
	for path, entry := range m.docs {
		if parent, _ := Split(path); parent == collection {
			docs = append(docs, toDocument(path, entry))
		}
	}
	m.mu.RUnlock()
	return q.apply(docs), nil
}

func (m *MemoryStore) SubscribeDoc(ctx context.Context, path string) (<-chan Snapshot, error) {
	if err := ValidatePath(path); err != nil {
		return nil, err
	}
	return m.hub.subscribe(ctx, path, false, docLoader(m.Get, path)), nil
}

func (m *MemoryStore) SubscribeCollection(ctx context.Context, collection string, q Query) (<-chan Snapshot, error) {
	if err := ValidatePath(collection); err != nil {
		return nil, err
	}
	return m.hub.subscribe(ctx, collection, true, collectionLoader(m.List, collection, q)), nil
}

func toDocument(path string, entry memoryEntry) Document {
	_, id := Split(path)
	fields := make(map[string]any, len(entry.fields))
	for k, v := range entry.fields {
		fields[k] = v
	}
	return Document{
		ID:        id,
		Path:      path,
		Data:      fields,
		CreatedAt: entry.createdAt,
		UpdatedAt: entry.updatedAt,
	}
}

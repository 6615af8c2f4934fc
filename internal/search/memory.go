package search

import (
	"context"
	"sort"
	"strings"
	"sync"
)

var _ Index = (*MemoryIndex)(nil)

type memoryEntry struct {
	doc     Document
	version int64
	deleted bool
}

// MemoryIndex индекс в памяти. Удаленные документы остаются надгробиями с версией,
// чтобы запоздавший upsert не вернул их обратно.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs map[string]memoryEntry
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{docs: make(map[string]memoryEntry)}
}

func (m *MemoryIndex) Version(_ context.Context, id string) (Version, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.docs[id]
	if !ok {
		return Version{}, nil
	}
	return Version{Value: e.version, Deleted: e.deleted}, nil
}

func (m *MemoryIndex) Upsert(_ context.Context, doc Document, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.docs[doc.ID]; ok {
		if version < e.version || (version == e.version && e.deleted) {
			return ErrStale
		}
	}
	m.docs[doc.ID] = memoryEntry{doc: doc, version: version}
	return nil
}

func (m *MemoryIndex) Delete(_ context.Context, id string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.docs[id]; ok && version < e.version {
		return ErrStale
	}
	m.docs[id] = memoryEntry{doc: Document{ID: id}, version: version, deleted: true}
	return nil
}

// Get возвращает документ, если он присутствует
func (m *MemoryIndex) Get(id string) (Document, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.docs[id]
	if !ok || e.deleted {
		return Document{}, false
	}
	return e.doc, true
}

// Len число живых документов
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, e := range m.docs {
		if !e.deleted {
			n++
		}
	}
	return n
}

// Search ищет подстроку без учета регистра, новые документы первыми
func (m *MemoryIndex) Search(_ context.Context, query string, limit int) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	var out []Document
	for _, e := range m.docs {
		if e.deleted {
			continue
		}
		if q == "" || strings.Contains(strings.ToLower(e.doc.Title), q) || strings.Contains(strings.ToLower(e.doc.Content), q) {
			out = append(out, e.doc)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryIndex) Ping(context.Context) error {
	return nil
}

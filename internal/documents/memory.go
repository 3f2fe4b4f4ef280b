package documents

import (
	"context"
	"sort"
	"sync"

	"github.com/raysh454/regress/internal/model"
)

// MemorySource keeps documents in process memory. Like SQLiteSource, a
// Put with a zero PublishedAt keeps the stored publish time.
type MemorySource struct {
	mu   sync.RWMutex
	docs map[string]model.Document
}

func NewMemorySource(docs ...model.Document) *MemorySource {
	s := &MemorySource{docs: make(map[string]model.Document, len(docs))}
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return s
}

var _ Source = (*MemorySource)(nil)

func (s *MemorySource) Get(ctx context.Context, id string) (model.Document, error) {
	if err := ctx.Err(); err != nil {
		return model.Document{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return model.Document{}, ErrNotFound
	}
	return doc, nil
}

func (s *MemorySource) Put(ctx context.Context, doc model.Document) error {
	if doc.ID == "" {
		return ErrEmptyID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.docs[doc.ID]; ok && doc.PublishedAt.IsZero() {
		doc.PublishedAt = prev.PublishedAt
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemorySource) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

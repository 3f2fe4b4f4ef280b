package snapshot

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/raysh454/regress/internal/lockmap"
	"github.com/raysh454/regress/internal/model"
)

// MemoryStore keeps histories in process memory.
type MemoryStore struct {
	capacity int
	docLocks lockmap.Map

	mu        sync.RWMutex
	histories map[string][]model.Metrics
}

// NewMemoryStore creates an in-memory store with the given capacity
// (0 means DefaultCapacity).
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		capacity:  normalizeCapacity(capacity),
		histories: make(map[string][]model.Metrics),
	}
}

// Ensure MemoryStore implements Store at compile-time.
var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Capacity() int { return s.capacity }

func (s *MemoryStore) Append(ctx context.Context, documentID string, metrics model.Metrics) error {
	if documentID == "" {
		return ErrEmptyDocumentID
	}
	unlock, err := s.docLocks.Lock(ctx, documentID)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.RLock()
	history := s.histories[documentID]
	var latest *model.Metrics
	if len(history) > 0 {
		latest = &history[len(history)-1]
	}
	skip, err := checkAppend(latest, metrics)
	s.mu.RUnlock()
	if err != nil || skip {
		return err
	}

	m := metrics.Clone()
	m.DocumentID = documentID
	if m.SnapshotID == "" {
		m.SnapshotID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := append(s.histories[documentID], m)
	if over := len(next) - s.capacity; over > 0 {
		next = append([]model.Metrics(nil), next[over:]...)
	}
	s.histories[documentID] = next
	return nil
}

func (s *MemoryStore) History(ctx context.Context, documentID string) ([]model.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.CloneHistory(s.histories[documentID]), nil
}

func (s *MemoryStore) Latest(ctx context.Context, documentID string) (*model.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.histories[documentID]
	if len(history) == 0 {
		return nil, nil
	}
	latest := history[len(history)-1].Clone()
	return &latest, nil
}

func (s *MemoryStore) Reset(ctx context.Context, documentID string) error {
	if documentID == "" {
		return ErrEmptyDocumentID
	}
	unlock, err := s.docLocks.Lock(ctx, documentID)
	if err != nil {
		return err
	}
	defer unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, documentID)
	return nil
}

func (s *MemoryStore) Documents(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.histories))
	for id := range s.histories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Close() error { return nil }

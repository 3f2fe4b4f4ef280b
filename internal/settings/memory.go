package settings

import (
	"context"
	"slices"
	"sync"

	"github.com/raysh454/regress/internal/model"
)

// MemoryRepository keeps settings in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	settings map[string]model.DocumentSettings
	acks     map[string]model.Acknowledgement
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		settings: make(map[string]model.DocumentSettings),
		acks:     make(map[string]model.Acknowledgement),
	}
}

var _ Repository = (*MemoryRepository)(nil)

func (r *MemoryRepository) Get(ctx context.Context, documentID string) (model.DocumentSettings, error) {
	if err := ctx.Err(); err != nil {
		return model.DocumentSettings{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.settings[documentID]
	if !ok {
		return model.DocumentSettings{DocumentID: documentID}, nil
	}
	return s, nil
}

func (r *MemoryRepository) Save(ctx context.Context, s model.DocumentSettings) error {
	if s.DocumentID == "" {
		return ErrEmptyDocumentID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[s.DocumentID] = s
	return nil
}

func (r *MemoryRepository) GetAcknowledgement(ctx context.Context, documentID string) (*model.Acknowledgement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ack, ok := r.acks[documentID]
	if !ok {
		return nil, nil
	}
	ack.Fingerprints = slices.Clone(ack.Fingerprints)
	return &ack, nil
}

func (r *MemoryRepository) SaveAcknowledgement(ctx context.Context, ack model.Acknowledgement) error {
	if ack.DocumentID == "" {
		return ErrEmptyDocumentID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ack.Fingerprints = slices.Clone(ack.Fingerprints)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.acks[ack.DocumentID] = ack
	return nil
}

func (r *MemoryRepository) ClearAcknowledgement(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.acks, documentID)
	return nil
}

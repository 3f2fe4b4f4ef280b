// Package settings stores per-document overrides and mark-intentional
// acknowledgements.
package settings

import (
	"context"
	"errors"

	"github.com/raysh454/regress/internal/model"
)

var ErrEmptyDocumentID = errors.New("settings: document id is empty")

// Repository persists DocumentSettings and Acknowledgements.
type Repository interface {
	// Get returns the settings for id, or the zero settings when none are stored.
	Get(ctx context.Context, documentID string) (model.DocumentSettings, error)
	Save(ctx context.Context, s model.DocumentSettings) error

	// GetAcknowledgement returns nil when the document has none.
	GetAcknowledgement(ctx context.Context, documentID string) (*model.Acknowledgement, error)
	SaveAcknowledgement(ctx context.Context, ack model.Acknowledgement) error
	ClearAcknowledgement(ctx context.Context, documentID string) error
}

// Update describes a partial settings change; nil fields are left alone.
type Update struct {
	DetectionDisabled *bool `json:"detection_disabled,omitempty"`
	IsShortForm       *bool `json:"is_short_form,omitempty"`
}

// Apply merges u into s.
func (u Update) Apply(s model.DocumentSettings) model.DocumentSettings {
	if u.DetectionDisabled != nil {
		s.DetectionDisabled = *u.DetectionDisabled
	}
	if u.IsShortForm != nil {
		s.IsShortForm = *u.IsShortForm
	}
	return s
}

// Merge loads the stored settings for id, applies u and saves the result.
func Merge(ctx context.Context, repo Repository, documentID string, u Update) (model.DocumentSettings, error) {
	current, err := repo.Get(ctx, documentID)
	if err != nil {
		return model.DocumentSettings{}, err
	}
	next := u.Apply(current)
	next.DocumentID = documentID
	if err := repo.Save(ctx, next); err != nil {
		return model.DocumentSettings{}, err
	}
	return next, nil
}

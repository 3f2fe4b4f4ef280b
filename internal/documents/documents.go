// Package documents is the engine's view of the host system's content:
// where batch runs and the query endpoint read the current markup from.
package documents

import (
	"context"
	"errors"

	"github.com/raysh454/regress/internal/model"
)

var (
	ErrNotFound = errors.New("documents: not found")
	ErrEmptyID  = errors.New("documents: document id is empty")
)

// Source reads and writes host documents.
type Source interface {
	// Get returns ErrNotFound when id is unknown.
	Get(ctx context.Context, id string) (model.Document, error)
	Put(ctx context.Context, doc model.Document) error
	// List returns every document id, sorted.
	List(ctx context.Context) ([]string, error)
}
